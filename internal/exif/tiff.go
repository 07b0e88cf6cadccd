package exif

import (
	"bytes"
	"encoding/binary"
	"slices"
)

// TIFF field types.
const (
	typeByte      uint16 = 1
	typeASCII     uint16 = 2
	typeShort     uint16 = 3
	typeLong      uint16 = 4
	typeRational  uint16 = 5
	typeUndefined uint16 = 7
	typeSRational uint16 = 10
)

var order = binary.LittleEndian

type field struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

// ifd is one image file directory. Values longer than four bytes live in
// an area directly after the entry table.
type ifd struct {
	fields []field
	next   uint32
}

func (d *ifd) add(tag, typ uint16, count uint32, data []byte) {
	for i := range d.fields {
		if d.fields[i].tag == tag {
			d.fields[i] = field{tag, typ, count, data}
			return
		}
	}
	d.fields = append(d.fields, field{tag, typ, count, data})
}

func (d *ifd) ascii(tag uint16, s string) {
	data := append([]byte(s), 0)
	d.add(tag, typeASCII, uint32(len(data)), data)
}

func (d *ifd) short(tag uint16, v uint16) {
	d.add(tag, typeShort, 1, order.AppendUint16(nil, v))
}

func (d *ifd) long(tag uint16, v uint32) {
	d.add(tag, typeLong, 1, order.AppendUint32(nil, v))
}

func (d *ifd) byteSeq(tag uint16, v ...byte) {
	d.add(tag, typeByte, uint32(len(v)), v)
}

func (d *ifd) undefined(tag uint16, v []byte) {
	d.add(tag, typeUndefined, uint32(len(v)), v)
}

func (d *ifd) rational(tag uint16, pairs ...uint32) {
	var data []byte
	for _, v := range pairs {
		data = order.AppendUint32(data, v)
	}
	d.add(tag, typeRational, uint32(len(pairs)/2), data)
}

func (d *ifd) srational(tag uint16, num, den int32) {
	data := order.AppendUint32(nil, uint32(num))
	data = order.AppendUint32(data, uint32(den))
	d.add(tag, typeSRational, 1, data)
}

func (d *ifd) size() int {
	n := 2 + 12*len(d.fields) + 4
	for _, f := range d.fields {
		if len(f.data) > 4 {
			n += len(f.data) + len(f.data)%2
		}
	}
	return n
}

// encode appends the directory assuming it starts at offset from the TIFF
// header.
func (d *ifd) encode(buf *bytes.Buffer, offset uint32) {
	slices.SortFunc(d.fields, func(a, b field) int { return int(a.tag) - int(b.tag) })

	var extra []byte
	extraOff := offset + uint32(2+12*len(d.fields)+4)

	_ = binary.Write(buf, order, uint16(len(d.fields)))
	for _, f := range d.fields {
		_ = binary.Write(buf, order, f.tag)
		_ = binary.Write(buf, order, f.typ)
		_ = binary.Write(buf, order, f.count)
		if len(f.data) <= 4 {
			var v [4]byte
			copy(v[:], f.data)
			buf.Write(v[:])
			continue
		}
		_ = binary.Write(buf, order, extraOff+uint32(len(extra)))
		extra = append(extra, f.data...)
		if len(f.data)%2 != 0 {
			extra = append(extra, 0)
		}
	}
	_ = binary.Write(buf, order, d.next)
	buf.Write(extra)
}
