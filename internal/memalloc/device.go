package memalloc

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/smazurov/spearcam/internal/events"
	"github.com/smazurov/spearcam/internal/metrics"
)

// MaxOpen is the number of sessions that may be open at once.
const MaxOpen = 32

// Command is a request understood by Session.Ioctl.
type Command uint32

// Supported commands.
const (
	CmdHardReset Command = iota + 1
	CmdGetBuffer
	CmdFreeBuffer
)

func (c Command) String() string {
	switch c {
	case CmdHardReset:
		return "HARDRESET"
	case CmdGetBuffer:
		return "GETBUFFER"
	case CmdFreeBuffer:
		return "FREEBUFFER"
	default:
		return fmt.Sprintf("Command(%d)", uint32(c))
	}
}

// Params carries GETBUFFER and FREEBUFFER arguments. GETBUFFER reads Size
// and writes BusAddress; FREEBUFFER reads BusAddress.
type Params struct {
	BusAddress uint32 `json:"bus_address"`
	Size       uint32 `json:"size"`
}

// Device hands out sessions over a shared Allocator.
type Device struct {
	alloc *Allocator

	mu       sync.Mutex
	sessions [MaxOpen]*Session
}

// NewDevice wraps alloc.
func NewDevice(alloc *Allocator) *Device {
	metrics.SetSessionsOpen(0)
	return &Device{alloc: alloc}
}

// Allocator returns the underlying allocator.
func (d *Device) Allocator() *Allocator {
	return d.alloc
}

// Open returns a session with the lowest free id.
func (d *Device) Open() (*Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.sessions {
		if d.sessions[i] == nil {
			s := &Session{id: SessionID(i), dev: d}
			d.sessions[i] = s
			metrics.SetSessionsOpen(d.countLocked())
			d.alloc.logger.Debug("Session opened", "session", i)
			return s, nil
		}
	}
	return nil, ErrTooManySessions
}

// Lookup returns the open session with the given id.
func (d *Device) Lookup(id SessionID) (*Session, bool) {
	if id < 0 || id >= MaxOpen {
		return nil, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.sessions[id]
	return s, s != nil
}

// Sessions returns the ids of all open sessions in ascending order.
func (d *Device) Sessions() []SessionID {
	d.mu.Lock()
	defer d.mu.Unlock()

	var ids []SessionID
	for _, s := range d.sessions {
		if s != nil {
			ids = append(ids, s.id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// countLocked must be called with d.mu held.
func (d *Device) countLocked() int {
	n := 0
	for _, s := range d.sessions {
		if s != nil {
			n++
		}
	}
	return n
}

// Session is one open handle on the device. Chunks it allocates are stamped
// with its id and returned when it closes.
type Session struct {
	id     SessionID
	dev    *Device
	closed bool
}

// ID returns the session id.
func (s *Session) ID() SessionID {
	return s.id
}

// Close releases every chunk the session holds and frees its id. It returns
// the number of chunks released. Closing twice is a no-op.
func (s *Session) Close() int {
	d := s.dev
	d.mu.Lock()
	if s.closed {
		d.mu.Unlock()
		return 0
	}
	s.closed = true
	freed := d.alloc.ReleaseSession(s.id)
	d.sessions[s.id] = nil
	open := d.countLocked()
	d.mu.Unlock()

	metrics.SetSessionsOpen(open)
	d.alloc.logger.Debug("Session closed", "session", int(s.id), "freed", freed)
	d.alloc.publish(events.SessionReleasedEvent{
		Session:   int(s.id),
		Freed:     freed,
		Timestamp: time.Now().Format(time.RFC3339),
	})
	return freed
}

// FreeBuffer releases the chunk at addr and reports whether one was in use.
// It checks and frees under one allocator lock, so two callers racing on the
// same address see exactly one true.
func (s *Session) FreeBuffer(addr uint32) (bool, error) {
	d := s.dev
	d.mu.Lock()
	closed := s.closed
	d.mu.Unlock()
	if closed {
		return false, ErrSessionClosed
	}
	return s.free(addr)
}

func (s *Session) free(addr uint32) (bool, error) {
	if s.dev.alloc.StrictFree() {
		return s.dev.alloc.FreeOwned(addr, s.id)
	}
	return s.dev.alloc.Free(addr), nil
}

// Ioctl executes cmd. An allocation that finds no chunk is not an error:
// p.BusAddress is set to 0.
func (s *Session) Ioctl(cmd Command, p *Params) error {
	d := s.dev
	d.mu.Lock()
	closed := s.closed
	d.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}

	switch cmd {
	case CmdHardReset:
		d.alloc.logger.Debug("HARDRESET", "session", int(s.id))
		d.alloc.Reset()
		return nil

	case CmdGetBuffer:
		if p == nil {
			return ErrBadAddress
		}
		p.BusAddress = d.alloc.Allocate(p.Size, s.id)
		return nil

	case CmdFreeBuffer:
		if p == nil {
			return ErrBadAddress
		}
		_, err := s.free(p.BusAddress)
		return err

	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}
}
