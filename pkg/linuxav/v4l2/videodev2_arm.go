//go:build linux && arm

package v4l2

import "unsafe"

var (
	_ [204]byte = [unsafe.Sizeof(v4l2Format{})]byte{}
	_ [68]byte  = [unsafe.Sizeof(v4l2Buffer{})]byte{}
)

// v4l2Format has size 204 bytes on 32-bit ARM.
type v4l2Format struct {
	typ uint32        // offset 0
	pix v4l2PixFormat // offset 4
	_   [152]byte
}

// v4l2Buffer has size 68 bytes on 32-bit ARM.
type v4l2Buffer struct {
	index     uint32   // offset 0
	typ       uint32   // offset 4
	bytesused uint32   // offset 8
	flags     uint32   // offset 12
	field     uint32   // offset 16
	timestamp [8]byte  // offset 20 - struct timeval
	timecode  [16]byte // offset 28
	sequence  uint32   // offset 44
	memory    uint32   // offset 48
	m         uint32   // offset 52 - union, mmap offset
	length    uint32   // offset 56
	reserved2 uint32   // offset 60
	requestFD int32    // offset 64
}

func (b *v4l2Buffer) offset() int64 {
	return int64(b.m)
}
