package camera

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/smazurov/spearcam/internal/events"
)

type logLine struct {
	level string
	msg   string
}

// recordingLogger captures log lines for assertions.
type recordingLogger struct {
	mu    sync.Mutex
	lines []logLine
}

func (l *recordingLogger) record(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, logLine{level, msg})
}

func (l *recordingLogger) Debug(msg string, _ ...any) { l.record("debug", msg) }
func (l *recordingLogger) Info(msg string, _ ...any)  { l.record("info", msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.record("warn", msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.record("error", msg) }

func (l *recordingLogger) count(level, msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, line := range l.lines {
		if line.level == level && line.msg == msg {
			n++
		}
	}
	return n
}

var errFake = errors.New("fake failure")

// fakeDevice records calls. Frames are served from frames in order; once
// exhausted GrabFrame sleeps briefly and fails.
type fakeDevice struct {
	mu    sync.Mutex
	calls []string

	openErr   error
	initErr   error
	streamErr error

	frames [][]byte
	width  int
	height int

	// block, when set, parks every GrabFrame until it is closed.
	block    chan struct{}
	grabbing chan struct{}
	grabs    int
}

func (d *fakeDevice) call(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, name)
}

func (d *fakeDevice) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *fakeDevice) Open(path string, width, height int, _ uint32) error {
	d.call("open " + path)
	if d.openErr != nil {
		return d.openErr
	}
	d.mu.Lock()
	if d.width == 0 {
		d.width, d.height = width, height
	}
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) Init() error {
	d.call("init")
	return d.initErr
}

func (d *fakeDevice) StartStreaming() error {
	d.call("streamon")
	return d.streamErr
}

func (d *fakeDevice) GrabFrame() ([]byte, error) {
	d.mu.Lock()
	d.grabs++
	if d.grabbing != nil {
		select {
		case d.grabbing <- struct{}{}:
		default:
		}
	}
	if block := d.block; block != nil {
		d.mu.Unlock()
		<-block
		return nil, errFake
	}
	if len(d.frames) > 0 {
		f := d.frames[0]
		d.frames = d.frames[1:]
		d.mu.Unlock()
		return f, nil
	}
	d.mu.Unlock()
	time.Sleep(time.Millisecond)
	return nil, errFake
}

func (d *fakeDevice) ReleaseFrame() error { return nil }

func (d *fakeDevice) Grabs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.grabs
}

func (d *fakeDevice) StopStreaming() error {
	d.call("streamoff")
	return nil
}

func (d *fakeDevice) Uninit() error {
	d.call("uninit")
	return nil
}

func (d *fakeDevice) Close() error {
	d.call("close")
	return nil
}

func (d *fakeDevice) Width() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.width
}

func (d *fakeDevice) Height() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.height
}

// deviceFactory hands out the queued devices in order, then fresh working
// devices once the queue is empty.
type deviceFactory struct {
	mu      sync.Mutex
	devices []*fakeDevice
	made    []*fakeDevice
}

func (f *deviceFactory) New() CaptureDevice {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := &fakeDevice{}
	if len(f.devices) > 0 {
		d = f.devices[0]
		f.devices = f.devices[1:]
	}
	f.made = append(f.made, d)
	return d
}

func (f *deviceFactory) Made() []*fakeDevice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeDevice(nil), f.made...)
}

// fakeSurface fails the first dequeueFailures dequeues.
type fakeSurface struct {
	mu sync.Mutex

	usage    uint32
	width    int
	height   int
	format   SurfaceFormat
	count    int
	countErr error

	dequeueFailures int
	gone            bool
	buffers         [][]byte
	next            int
	enqueued        int
	dequeued        chan struct{}
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{dequeued: make(chan struct{}, 64)}
}

func (s *fakeSurface) SetUsage(usage uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage = usage
	return nil
}

func (s *fakeSurface) SetBufferGeometry(w, h int, format SurfaceFormat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height, s.format = w, h, format
	s.buffers = [][]byte{make([]byte, w*h*3/2), make([]byte, w*h*3/2)}
	return nil
}

func (s *fakeSurface) SetBufferCount(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countErr != nil {
		return s.countErr
	}
	s.count = n
	return nil
}

func (s *fakeSurface) DequeueBuffer() (BufferHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gone {
		return 0, ErrSurfaceGone
	}
	if s.dequeueFailures > 0 {
		s.dequeueFailures--
		select {
		case s.dequeued <- struct{}{}:
		default:
		}
		return 0, fmt.Errorf("dequeue: %w", errFake)
	}
	h := BufferHandle(s.next)
	s.next = (s.next + 1) % len(s.buffers)
	return h, nil
}

func (s *fakeSurface) Lock(h BufferHandle) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffers[h], nil
}

func (s *fakeSurface) Unlock(BufferHandle) error { return nil }

func (s *fakeSurface) EnqueueBuffer(BufferHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueued++
	return nil
}

func (s *fakeSurface) Enqueued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enqueued
}

type dataCall struct {
	msg  MsgType
	data []byte
}

// fakeCallbacks copies every payload and signals on data.
type fakeCallbacks struct {
	mu       sync.Mutex
	notifies []MsgType
	data     []dataCall
	stamped  int
	gotData  chan MsgType
	requests []int
}

func newFakeCallbacks() *fakeCallbacks {
	return &fakeCallbacks{gotData: make(chan MsgType, 64)}
}

func (f *fakeCallbacks) Notify(msg MsgType, _, _ int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifies = append(f.notifies, msg)
}

func (f *fakeCallbacks) Data(msg MsgType, data []byte) {
	f.mu.Lock()
	f.data = append(f.data, dataCall{msg, append([]byte(nil), data...)})
	f.mu.Unlock()
	select {
	case f.gotData <- msg:
	default:
	}
}

func (f *fakeCallbacks) DataTimestamp(_ int64, _ MsgType, _ []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stamped++
}

func (f *fakeCallbacks) RequestMemory(size int) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, size)
	return nil
}

func (f *fakeCallbacks) DataCalls() []dataCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dataCall(nil), f.data...)
}

func (f *fakeCallbacks) Notifies() []MsgType {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]MsgType(nil), f.notifies...)
}

type fakeEncoder struct{}

func (fakeEncoder) Encode(_ []byte, _, _, _ int) ([]byte, error) {
	return []byte{0xFF, 0xD8, 0xFF, 0xDB, 0x00, 0x01, 0xFF, 0xD9}, nil
}

type fakeMetadata struct {
	mu   sync.Mutex
	info PictureInfo
}

func (m *fakeMetadata) Generate(info PictureInfo) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.info = info
	return []byte{0xFF, 0xE1, 0x00, 0x04, 'E', 'x'}, nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) previewStates() []events.PreviewStateChangedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.PreviewStateChangedEvent
	for _, ev := range b.events {
		if e, ok := ev.(events.PreviewStateChangedEvent); ok {
			out = append(out, e)
		}
	}
	return out
}

func (b *recordingBus) pictures() []events.PictureTakenEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.PictureTakenEvent
	for _, ev := range b.events {
		if e, ok := ev.(events.PictureTakenEvent); ok {
			out = append(out, e)
		}
	}
	return out
}

func (b *recordingBus) Publish(ev events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

// yuyvFrame returns a w x h YUYV frame with Y=0x10, U=0x80, V=0xF0.
func yuyvFrame(w, h int) []byte {
	f := make([]byte, w*h*2)
	for i := 0; i < len(f); i += 4 {
		f[i], f[i+1], f[i+2], f[i+3] = 0x10, 0x80, 0x10, 0xF0
	}
	return f
}
