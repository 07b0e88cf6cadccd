package camera

import "sync/atomic"

// frameBuffer is the per-session scratch frame shared with callbacks.
type frameBuffer struct {
	data    []byte
	lent    atomic.Int32
	maxLent atomic.Int32
}

// newFrameBuffer takes memory from the host when it offers some.
func newFrameBuffer(cb Callbacks, size int) *frameBuffer {
	var data []byte
	if cb != nil {
		data = cb.RequestMemory(size)
	}
	if len(data) < size {
		data = make([]byte, size)
	}
	return &frameBuffer{data: data[:size]}
}

// lend hands the buffer to fn and takes it back when fn returns.
func (f *frameBuffer) lend(fn func([]byte)) {
	n := f.lent.Add(1)
	for {
		m := f.maxLent.Load()
		if n <= m || f.maxLent.CompareAndSwap(m, n) {
			break
		}
	}
	defer f.lent.Add(-1)
	fn(f.data)
}

func (f *frameBuffer) outstanding() int {
	return int(f.lent.Load())
}

func (f *frameBuffer) release() {
	f.data = nil
}
