package memalloc

import (
	"errors"
	"sync"
	"testing"

	"github.com/smazurov/spearcam/internal/events"
)

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(ev events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

func (b *recordingBus) all() []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]events.Event(nil), b.events...)
}

func newTestAllocator(t *testing.T, pages []uint32, base uint32, opts ...Option) *Allocator {
	t.Helper()
	p, err := NewProfile("test", pages)
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}
	a, err := New(Config{Profile: p, Base: base, Window: DefaultWindow}, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestWorkedExample(t *testing.T) {
	a := newTestAllocator(t, []uint32{1, 2}, 0x1000)

	if got := a.Allocate(5000, 0); got != 0x2000 {
		t.Fatalf("Expected 0x2000 for 5000 bytes, got 0x%x", got)
	}
	if got := a.Allocate(100, 0); got != 0x1000 {
		t.Fatalf("Expected 0x1000 for 100 bytes, got 0x%x", got)
	}
	a.Free(0x1000)
	if got := a.Allocate(100, 0); got != 0x1000 {
		t.Errorf("Expected 0x1000 after free, got 0x%x", got)
	}
}

func TestLayoutInvariantAllProfiles(t *testing.T) {
	for _, p := range Profiles() {
		t.Run(p.Name, func(t *testing.T) {
			a, err := New(Config{Profile: p, Base: DefaultBase})
			if err != nil {
				t.Fatalf("New: %v", err)
			}

			chunks := a.Chunks()
			if len(chunks) != p.Len() {
				t.Fatalf("Expected %d chunks, got %d", p.Len(), len(chunks))
			}
			if chunks[0].BusAddress != DefaultBase {
				t.Errorf("Expected first chunk at 0x%08x, got 0x%08x", DefaultBase, chunks[0].BusAddress)
			}
			for i := 1; i < len(chunks); i++ {
				prev := chunks[i-1]
				if chunks[i].BusAddress != prev.BusAddress+prev.Size {
					t.Errorf("Chunk %d at 0x%08x, expected 0x%08x", i, chunks[i].BusAddress, prev.BusAddress+prev.Size)
				}
				if chunks[i].BusAddress <= prev.BusAddress {
					t.Errorf("Chunk %d address not increasing", i)
				}
			}
			for _, c := range chunks {
				if c.InUse || c.Owner != NoOwner {
					t.Errorf("Expected chunk %d free after reset", c.Index)
				}
			}
		})
	}
}

func TestBuiltinProfileShapes(t *testing.T) {
	tests := []struct {
		name   string
		chunks int
		pages  uint64
		last   uint32
	}{
		{"basic", 75, 28742, 8192},
		{"max-output", 6, 12288, 8448},
		{"basic-x2", 150, 57484, 8192},
		{"basic-16k-still", 76, 47742, 19000},
		{"basic-mvc-dbp", 80, 48727, 8192},
		{"basic-4k-output", 81, 98150, 17400},
		{"android", 88, 22934, 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ProfileByName(tt.name)
			if err != nil {
				t.Fatalf("ProfileByName: %v", err)
			}
			if p.Len() != tt.chunks {
				t.Errorf("Expected %d chunks, got %d", tt.chunks, p.Len())
			}
			if p.TotalBytes() != tt.pages*PageSize {
				t.Errorf("Expected %d bytes, got %d", tt.pages*PageSize, p.TotalBytes())
			}
			pages := p.Pages()
			if pages[len(pages)-1] != tt.last {
				t.Errorf("Expected last entry %d, got %d", tt.last, pages[len(pages)-1])
			}
		})
	}
}

func TestProfileByID(t *testing.T) {
	if got := ProfileByID(ProfileAndroid).Name; got != "android" {
		t.Errorf("Expected android for id 11, got %s", got)
	}
	if got := ProfileByID(3).Name; got != "basic-16k-still" {
		t.Errorf("Expected basic-16k-still for id 3, got %s", got)
	}
	if got := ProfileByID(42).Name; got != "basic" {
		t.Errorf("Expected unknown id to fall back to basic, got %s", got)
	}
	if _, err := ProfileByName("huge"); !errors.Is(err, ErrUnknownProfile) {
		t.Errorf("Expected ErrUnknownProfile, got %v", err)
	}
}

func TestNewProfileValidation(t *testing.T) {
	if _, err := NewProfile("empty", nil); !errors.Is(err, ErrInvalidProfile) {
		t.Errorf("Expected ErrInvalidProfile for empty table, got %v", err)
	}
	if _, err := NewProfile("zero", []uint32{1, 0}); !errors.Is(err, ErrInvalidProfile) {
		t.Errorf("Expected ErrInvalidProfile for zero entry, got %v", err)
	}
	if _, err := NewProfile("big", make([]uint32, MaxChunks+1)); !errors.Is(err, ErrInvalidProfile) {
		t.Errorf("Expected ErrInvalidProfile for oversize table, got %v", err)
	}
}

func TestNewRejectsBadBase(t *testing.T) {
	p, _ := NewProfile("one", []uint32{1})
	if _, err := New(Config{Profile: p, Base: 0}); !errors.Is(err, ErrInvalidBase) {
		t.Errorf("Expected ErrInvalidBase for zero base, got %v", err)
	}
	if _, err := New(Config{Profile: p, Base: 0xFFFFF000}); err != nil {
		t.Errorf("Expected table ending at 4GiB to fit, got %v", err)
	}
	if _, err := New(Config{Profile: p, Base: 0xFFFFF001}); !errors.Is(err, ErrInvalidBase) {
		t.Errorf("Expected ErrInvalidBase for overflowing table, got %v", err)
	}
}

func TestOverWindowStillOperates(t *testing.T) {
	bus := &recordingBus{}
	p, _ := ProfileByName("basic")
	a, err := New(Config{Profile: p, Base: DefaultBase, Window: DefaultWindow}, WithEventBus(bus))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if !a.Stats().OverWindow {
		t.Error("Expected basic profile to exceed 96MiB window")
	}
	if a.Allocate(PageSize, 0) == 0 {
		t.Error("Expected allocation to succeed despite window overrun")
	}

	var reset *events.AllocatorResetEvent
	for _, ev := range bus.all() {
		if e, ok := ev.(events.AllocatorResetEvent); ok {
			reset = &e
		}
	}
	if reset == nil || !reset.OverWindow || reset.Profile != "basic" {
		t.Errorf("Expected over-window reset event for basic, got %+v", reset)
	}
}

func TestAllocateFirstFitAndMinimumSize(t *testing.T) {
	a := newTestAllocator(t, []uint32{1, 4, 2, 4}, 0x10000)

	addr := a.Allocate(2*PageSize, 0)
	if addr != 0x11000 {
		t.Errorf("Expected first eligible chunk 0x11000, got 0x%x", addr)
	}
	for _, c := range a.Chunks() {
		if c.BusAddress == addr && c.Size < 2*PageSize {
			t.Errorf("Granted chunk smaller than request")
		}
	}

	if got := a.Allocate(2*PageSize, 0); got != 0x15000 {
		t.Errorf("Expected next eligible chunk 0x15000, got 0x%x", got)
	}
}

func TestAllocateZeroTakesFirstFree(t *testing.T) {
	a := newTestAllocator(t, []uint32{1, 1}, 0x1000)

	if got := a.Allocate(0, 0); got != 0x1000 {
		t.Errorf("Expected 0x1000, got 0x%x", got)
	}
	if got := a.Allocate(0, 0); got != 0x2000 {
		t.Errorf("Expected 0x2000, got 0x%x", got)
	}
}

func TestExhaustionRepeatsWithoutStateChange(t *testing.T) {
	bus := &recordingBus{}
	a := newTestAllocator(t, []uint32{1}, 0x1000, WithEventBus(bus))

	if a.Allocate(1, 0) == 0 {
		t.Fatal("Expected first allocation to succeed")
	}
	before := a.Chunks()

	for range 3 {
		if got := a.Allocate(1, 1); got != 0 {
			t.Fatalf("Expected 0 on exhaustion, got 0x%x", got)
		}
	}

	after := a.Chunks()
	if before[0] != after[0] {
		t.Errorf("Expected failed allocation to leave state unchanged: %+v vs %+v", before[0], after[0])
	}
	if got := a.Stats().Failures; got != 3 {
		t.Errorf("Expected 3 failures, got %d", got)
	}

	failed := 0
	for _, ev := range bus.all() {
		if e, ok := ev.(events.AllocationFailedEvent); ok {
			failed++
			if e.Session != 1 || e.Size != 1 {
				t.Errorf("Unexpected failure event %+v", e)
			}
		}
	}
	if failed != 3 {
		t.Errorf("Expected 3 failure events, got %d", failed)
	}
}

func TestFreeUnknownAddressIsNoop(t *testing.T) {
	a := newTestAllocator(t, []uint32{1, 1}, 0x1000)
	a.Allocate(1, 0)

	for _, addr := range []uint32{0x1800, 0, 0xdead0000} {
		if a.Free(addr) {
			t.Errorf("Expected nothing freed at 0x%08x", addr)
		}
	}

	if got := a.Stats().UsedChunks; got != 1 {
		t.Errorf("Expected 1 used chunk, got %d", got)
	}
}

func TestFreeIgnoresOwnerByDefault(t *testing.T) {
	a := newTestAllocator(t, []uint32{1}, 0x1000)
	addr := a.Allocate(1, 3)

	if !a.Free(addr) {
		t.Error("Expected Free to report the release")
	}
	if a.Chunks()[0].InUse {
		t.Error("Expected Free to release a chunk owned by another session")
	}
	if a.Free(addr) {
		t.Error("Expected a second Free to report nothing released")
	}
}

func TestFreeOwned(t *testing.T) {
	a := newTestAllocator(t, []uint32{1}, 0x1000)
	addr := a.Allocate(1, 3)

	freed, err := a.FreeOwned(addr, 4)
	if !errors.Is(err, ErrNotOwner) || freed {
		t.Fatalf("Expected ErrNotOwner and nothing freed, got %v %v", freed, err)
	}
	if !a.Chunks()[0].InUse {
		t.Error("Expected chunk to stay allocated after refused free")
	}

	if freed, err := a.FreeOwned(addr, 3); err != nil || !freed {
		t.Fatalf("Expected owner free to succeed, got %v %v", freed, err)
	}
	if a.Chunks()[0].InUse {
		t.Error("Expected chunk to be free")
	}
	if freed, err := a.FreeOwned(addr, 4); err != nil || freed {
		t.Errorf("Expected freeing an idle chunk to report nothing, got %v %v", freed, err)
	}
}

func TestReleaseSessionOnlyTouchesOwner(t *testing.T) {
	a := newTestAllocator(t, []uint32{1, 1, 1, 1}, 0x1000)
	a.Allocate(1, 0)
	a.Allocate(1, 1)
	a.Allocate(1, 0)
	a.Allocate(1, 2)

	if freed := a.ReleaseSession(0); freed != 2 {
		t.Errorf("Expected 2 chunks freed, got %d", freed)
	}

	owners := []SessionID{NoOwner, 1, NoOwner, 2}
	for i, c := range a.Chunks() {
		if c.Owner != owners[i] {
			t.Errorf("Chunk %d: expected owner %d, got %d", i, owners[i], c.Owner)
		}
	}
}

func TestResetClearsOwnership(t *testing.T) {
	a := newTestAllocator(t, []uint32{1, 1}, 0x1000)
	a.Allocate(1, 0)
	a.Allocate(1, 1)

	a.Reset()

	s := a.Stats()
	if s.UsedChunks != 0 || s.ReservedBytes != 0 {
		t.Errorf("Expected empty table after reset, got %+v", s)
	}
}

func TestStats(t *testing.T) {
	a := newTestAllocator(t, []uint32{1, 2, 3}, 0x1000)
	a.Allocate(PageSize+1, 0)

	s := a.Stats()
	if s.TotalChunks != 3 || s.UsedChunks != 1 {
		t.Errorf("Expected 1/3 chunks used, got %d/%d", s.UsedChunks, s.TotalChunks)
	}
	if s.TotalBytes != 6*PageSize {
		t.Errorf("Expected %d total bytes, got %d", 6*PageSize, s.TotalBytes)
	}
	if s.ReservedBytes != 2*PageSize {
		t.Errorf("Expected %d reserved bytes, got %d", 2*PageSize, s.ReservedBytes)
	}
}

func TestConcurrentAllocateNeverDoubleGrants(t *testing.T) {
	a := newTestAllocator(t, []uint32{1, 1, 1, 1, 1, 1, 1, 1}, 0x1000)

	var wg sync.WaitGroup
	results := make(chan uint32, 16)
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- a.Allocate(1, SessionID(i%MaxOpen))
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[uint32]bool)
	granted := 0
	for addr := range results {
		if addr == 0 {
			continue
		}
		if seen[addr] {
			t.Errorf("Address 0x%x granted twice", addr)
		}
		seen[addr] = true
		granted++
	}
	if granted != 8 {
		t.Errorf("Expected 8 grants, got %d", granted)
	}
}
