package camera

import (
	"strings"
	"sync/atomic"
)

// MsgType is a bit in the enabled-message mask.
type MsgType int32

// Message bits, matching the Android camera HAL.
const (
	MsgError           MsgType = 0x001
	MsgShutter         MsgType = 0x002
	MsgFocus           MsgType = 0x004
	MsgZoom            MsgType = 0x008
	MsgPreviewFrame    MsgType = 0x010
	MsgVideoFrame      MsgType = 0x020
	MsgPostviewFrame   MsgType = 0x040
	MsgRawImage        MsgType = 0x080
	MsgCompressedImage MsgType = 0x100
	MsgRawImageNotify  MsgType = 0x200
	MsgAll             MsgType = 0xFFFF
)

var msgNames = []struct {
	msg  MsgType
	name string
}{
	{MsgError, "error"},
	{MsgShutter, "shutter"},
	{MsgFocus, "focus"},
	{MsgZoom, "zoom"},
	{MsgPreviewFrame, "preview-frame"},
	{MsgVideoFrame, "video-frame"},
	{MsgPostviewFrame, "postview-frame"},
	{MsgRawImage, "raw-image"},
	{MsgCompressedImage, "compressed-image"},
	{MsgRawImageNotify, "raw-image-notify"},
}

// Names lists the set bits of m.
func (m MsgType) Names() []string {
	var out []string
	for _, n := range msgNames {
		if m&n.msg != 0 {
			out = append(out, n.name)
		}
	}
	return out
}

func (m MsgType) String() string {
	return strings.Join(m.Names(), "|")
}

// ParseMsgType maps a name from Names back to its bit. It reports false for
// unknown names.
func ParseMsgType(name string) (MsgType, bool) {
	if name == "all" {
		return MsgAll, true
	}
	for _, n := range msgNames {
		if n.name == name {
			return n.msg, true
		}
	}
	return 0, false
}

type msgMask struct {
	v atomic.Int32
}

func (m *msgMask) enable(msg MsgType) {
	m.v.Or(int32(msg))
}

func (m *msgMask) disable(msg MsgType) {
	m.v.And(^int32(msg))
}

func (m *msgMask) has(msg MsgType) bool {
	return m.v.Load()&int32(msg) != 0
}

func (m *msgMask) load() MsgType {
	return MsgType(m.v.Load())
}
