// Package memalloc implements a fixed-capacity, table-driven allocator over
// one contiguous physical memory window.
//
// The window is carved into chunks whose sizes come from a Profile. Requests
// are served first-fit in table order and a failed request returns bus
// address 0.
package memalloc

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/smazurov/spearcam/internal/events"
	"github.com/smazurov/spearcam/internal/logging"
	"github.com/smazurov/spearcam/internal/metrics"
)

const (
	// DefaultBase is the bus address of the first chunk.
	DefaultBase uint32 = 0x36600000
	// DefaultWindow is the amount of RAM reserved for the allocator.
	DefaultWindow uint64 = 96 << 20
)

// Errors returned by the allocator and its sessions.
var (
	ErrUnknownProfile  = errors.New("unknown allocation profile")
	ErrInvalidProfile  = errors.New("invalid allocation profile")
	ErrInvalidBase     = errors.New("invalid region base")
	ErrNotOwner        = errors.New("chunk owned by another session")
	ErrTooManySessions = errors.New("too many open sessions")
	ErrSessionClosed   = errors.New("session closed")
	ErrUnknownCommand  = errors.New("inappropriate ioctl for device")
	ErrBadAddress      = errors.New("bad address")
)

// SessionID identifies an open session.
type SessionID int

// NoOwner marks a free chunk.
const NoOwner SessionID = -1

// Chunk is one slot of the allocation table.
type Chunk struct {
	Index      int       `json:"index"`
	BusAddress uint32    `json:"bus_address"`
	Size       uint32    `json:"size"`
	InUse      bool      `json:"in_use"`
	Owner      SessionID `json:"owner"`
}

// Stats summarises the table.
type Stats struct {
	TotalChunks   int    `json:"total_chunks"`
	UsedChunks    int    `json:"used_chunks"`
	TotalBytes    uint64 `json:"total_bytes"`
	ReservedBytes uint64 `json:"reserved_bytes"`
	Failures      uint64 `json:"failures"`
	OverWindow    bool   `json:"over_window"`
}

// EventPublisher receives allocator events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// Config selects the table and where it lives.
type Config struct {
	Profile Profile
	Base    uint32
	Window  uint64
}

// DefaultConfig returns the android profile at the default base and window.
func DefaultConfig() Config {
	p, _ := ProfileByName(DefaultProfile)
	return Config{Profile: p, Base: DefaultBase, Window: DefaultWindow}
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(a *Allocator) { a.logger = l }
}

// WithEventBus sets the event publisher.
func WithEventBus(bus EventPublisher) Option {
	return func(a *Allocator) { a.bus = bus }
}

// WithStrictFree makes sessions refuse to free chunks they do not own.
func WithStrictFree(strict bool) Option {
	return func(a *Allocator) { a.strict = strict }
}

// Allocator hands out chunks of a fixed table.
type Allocator struct {
	mu       sync.Mutex
	profile  Profile
	base     uint32
	window   uint64
	chunks   []Chunk
	failures uint64
	strict   bool

	logger logging.Logger
	bus    EventPublisher
}

// New validates cfg, builds the chunk table and resets it.
func New(cfg Config, opts ...Option) (*Allocator, error) {
	if cfg.Profile.Len() == 0 {
		return nil, fmt.Errorf("%w: empty table", ErrInvalidProfile)
	}
	if cfg.Profile.Len() > MaxChunks {
		return nil, fmt.Errorf("%w: %d chunks exceeds %d", ErrInvalidProfile, cfg.Profile.Len(), MaxChunks)
	}
	if cfg.Base == 0 {
		return nil, fmt.Errorf("%w: base must be non-zero", ErrInvalidBase)
	}
	if uint64(cfg.Base)+cfg.Profile.TotalBytes() > math.MaxUint32+1 {
		return nil, fmt.Errorf("%w: table of %d bytes at 0x%08x overflows the bus", ErrInvalidBase, cfg.Profile.TotalBytes(), cfg.Base)
	}
	if cfg.Window == 0 {
		cfg.Window = DefaultWindow
	}

	a := &Allocator{
		profile: cfg.Profile,
		base:    cfg.Base,
		window:  cfg.Window,
		chunks:  make([]Chunk, cfg.Profile.Len()),
		logger:  logging.GetLogger("memalloc"),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.logger.Info("Linear memory allocator configured",
		"profile", a.profile.Name,
		"base", fmt.Sprintf("0x%08x", a.base),
		"chunks", len(a.chunks))

	a.Reset()
	return a, nil
}

// Profile returns the active profile.
func (a *Allocator) Profile() Profile {
	return a.profile
}

// Base returns the bus address of the first chunk.
func (a *Allocator) Base() uint32 {
	return a.base
}

// StrictFree reports whether sessions enforce ownership on free.
func (a *Allocator) StrictFree() bool {
	return a.strict
}

// Reset lays the table out from the region base and marks every chunk free.
// A table larger than the window only logs a warning.
func (a *Allocator) Reset() {
	a.mu.Lock()
	addr := uint64(a.base)
	for i, pages := range a.profile.pages {
		size := pages * PageSize
		a.chunks[i] = Chunk{
			Index:      i,
			BusAddress: uint32(addr),
			Size:       size,
			Owner:      NoOwner,
		}
		addr += uint64(size)
	}
	total := addr - uint64(a.base)
	over := total > a.window
	a.publishUsage()
	a.mu.Unlock()

	metrics.SetMemallocTable(len(a.chunks), total)

	if over {
		a.logger.Warn("Allocation table exceeds memory window, check RAM size",
			"bytes", total,
			"mb", total>>20,
			"window_mb", a.window>>20)
	} else {
		a.logger.Info("Allocation table reset", "bytes", total, "mb", total>>20)
	}

	a.publish(events.AllocatorResetEvent{
		Profile:    a.profile.Name,
		TotalBytes: total,
		OverWindow: over,
		Timestamp:  time.Now().Format(time.RFC3339),
	})
}

// Allocate grants the first free chunk of at least size bytes to owner and
// returns its bus address, or 0 when nothing fits.
func (a *Allocator) Allocate(size uint32, owner SessionID) uint32 {
	a.mu.Lock()
	for i := range a.chunks {
		c := &a.chunks[i]
		if c.InUse || c.Size < size {
			continue
		}
		c.InUse = true
		c.Owner = owner
		addr, reserved := c.BusAddress, c.Size
		a.publishUsage()
		a.mu.Unlock()

		a.logger.Debug("Allocated chunk",
			"size", size,
			"reserved", reserved,
			"address", fmt.Sprintf("0x%08x", addr),
			"session", int(owner))
		return addr
	}
	a.failures++
	a.mu.Unlock()

	metrics.IncAllocationFailures()
	a.logger.Warn("Allocation failed", "size", size, "session", int(owner))
	a.publish(events.AllocationFailedEvent{
		Size:      size,
		Session:   int(owner),
		Timestamp: time.Now().Format(time.RFC3339),
	})
	return 0
}

// Free releases the chunk at exactly addr regardless of owner and reports
// whether it was in use. Unknown addresses are ignored.
func (a *Allocator) Free(addr uint32) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	c := a.find(addr)
	if c == nil {
		return false
	}
	wasInUse := c.InUse
	c.InUse = false
	c.Owner = NoOwner
	a.publishUsage()
	return wasInUse
}

// FreeOwned releases the chunk at addr only if owner holds it and reports
// whether a chunk was released.
func (a *Allocator) FreeOwned(addr uint32, owner SessionID) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	c := a.find(addr)
	if c == nil || !c.InUse {
		return false, nil
	}
	if c.Owner != owner {
		return false, fmt.Errorf("%w: 0x%08x held by session %d", ErrNotOwner, addr, c.Owner)
	}
	c.InUse = false
	c.Owner = NoOwner
	a.publishUsage()
	return true, nil
}

// ReleaseSession frees every chunk held by owner and returns how many were
// freed.
func (a *Allocator) ReleaseSession(owner SessionID) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	freed := 0
	for i := range a.chunks {
		c := &a.chunks[i]
		if c.InUse && c.Owner == owner {
			c.InUse = false
			c.Owner = NoOwner
			freed++
		}
	}
	if freed > 0 {
		a.publishUsage()
	}
	return freed
}

// Chunks returns a snapshot of the table.
func (a *Allocator) Chunks() []Chunk {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Chunk, len(a.chunks))
	copy(out, a.chunks)
	return out
}

// Stats returns table totals.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Stats{TotalChunks: len(a.chunks), Failures: a.failures}
	for _, c := range a.chunks {
		s.TotalBytes += uint64(c.Size)
		if c.InUse {
			s.UsedChunks++
			s.ReservedBytes += uint64(c.Size)
		}
	}
	s.OverWindow = s.TotalBytes > a.window
	return s
}

// find must be called with a.mu held.
func (a *Allocator) find(addr uint32) *Chunk {
	if addr == 0 {
		return nil
	}
	for i := range a.chunks {
		if a.chunks[i].BusAddress == addr {
			return &a.chunks[i]
		}
	}
	return nil
}

// publishUsage must be called with a.mu held.
func (a *Allocator) publishUsage() {
	used := 0
	var reserved uint64
	for _, c := range a.chunks {
		if c.InUse {
			used++
			reserved += uint64(c.Size)
		}
	}
	metrics.SetMemallocUsage(used, reserved)
}

func (a *Allocator) publish(ev events.Event) {
	if a.bus != nil {
		a.bus.Publish(ev)
	}
}
