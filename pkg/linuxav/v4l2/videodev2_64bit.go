//go:build linux && (amd64 || arm64)

package v4l2

import "unsafe"

var (
	_ [208]byte = [unsafe.Sizeof(v4l2Format{})]byte{}
	_ [88]byte  = [unsafe.Sizeof(v4l2Buffer{})]byte{}
)

// v4l2Format has size 208 bytes. The fmt union is 8-byte aligned because
// some members hold pointers.
type v4l2Format struct {
	typ uint32 // offset 0
	_   uint32
	pix v4l2PixFormat // offset 8
	_   [152]byte
}

// v4l2Buffer has size 88 bytes.
type v4l2Buffer struct {
	index     uint32   // offset 0
	typ       uint32   // offset 4
	bytesused uint32   // offset 8
	flags     uint32   // offset 12
	field     uint32   // offset 16
	_         uint32   // padding
	timestamp [16]byte // offset 24 - struct timeval
	timecode  [16]byte // offset 40
	sequence  uint32   // offset 56
	memory    uint32   // offset 60
	m         uint64   // offset 64 - union, mmap offset in the low word
	length    uint32   // offset 72
	reserved2 uint32   // offset 76
	requestFD int32    // offset 80
	_         uint32   // padding
}

func (b *v4l2Buffer) offset() int64 {
	return int64(uint32(b.m))
}
