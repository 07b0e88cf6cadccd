package camera

import "fmt"

// YUYVToI420 converts packed 4:2:2 to planar 4:2:0 (Y, then U, then V).
// Chroma is sampled from even rows. w and h must be even (see
// checkFrameSize); dst must hold w*h*3/2 bytes and src w*h*2.
func YUYVToI420(dst, src []byte, w, h int) {
	wh := w * h
	u := dst[wh : wh+wh/4]
	v := dst[wh+wh/4 : wh*3/2]
	cw := w / 2

	for y := 0; y < h; y++ {
		row := src[y*w*2 : (y+1)*w*2]
		luma := dst[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			luma[x] = row[x*2]
		}
		if y%2 != 0 {
			continue
		}
		off := (y / 2) * cw
		for x := 0; x < cw; x++ {
			u[off+x] = row[x*4+1]
			v[off+x] = row[x*4+3]
		}
	}
}

// YUYVToNV21 converts packed 4:2:2 to semi-planar 4:2:0 with interleaved
// V then U samples, the yuv420sp layout preview consumers expect.
func YUYVToNV21(dst, src []byte, w, h int) {
	wh := w * h
	vu := dst[wh : wh*3/2]

	for y := 0; y < h; y++ {
		row := src[y*w*2 : (y+1)*w*2]
		luma := dst[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			luma[x] = row[x*2]
		}
		if y%2 != 0 {
			continue
		}
		off := (y / 2) * w
		for x := 0; x < w/2; x++ {
			vu[off+x*2] = row[x*4+3]
			vu[off+x*2+1] = row[x*4+1]
		}
	}
}

// CopyI420ToYV12 copies an I420 frame into a YV12 buffer by swapping the
// chroma planes.
func CopyI420ToYV12(dst, src []byte, w, h int) {
	wh := w * h
	q := wh / 4
	copy(dst[:wh], src[:wh])
	copy(dst[wh:wh+q], src[wh+q:wh+2*q])
	copy(dst[wh+q:wh+2*q], src[wh:wh+q])
}

// ScaleI420 resizes an I420 frame with nearest-neighbour sampling.
func ScaleI420(src []byte, sw, sh, dw, dh int) []byte {
	dst := make([]byte, dw*dh*3/2)

	scalePlane(dst[:dw*dh], src[:sw*sh], sw, sh, dw, dh)

	sq, dq := sw*sh/4, dw*dh/4
	sOff, dOff := sw*sh, dw*dh
	scalePlane(dst[dOff:dOff+dq], src[sOff:sOff+sq], sw/2, sh/2, dw/2, dh/2)
	scalePlane(dst[dOff+dq:dOff+2*dq], src[sOff+sq:sOff+2*sq], sw/2, sh/2, dw/2, dh/2)
	return dst
}

func scalePlane(dst, src []byte, sw, sh, dw, dh int) {
	for y := 0; y < dh; y++ {
		sy := y * sh / dh
		for x := 0; x < dw; x++ {
			dst[y*dw+x] = src[sy*sw+x*sw/dw]
		}
	}
}

// SpliceMetadata inserts meta right after the SOI marker of a JPEG.
func SpliceMetadata(encoded, meta []byte) ([]byte, error) {
	if len(encoded) < 2 {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortImage, len(encoded))
	}
	out := make([]byte, 0, len(encoded)+len(meta))
	out = append(out, encoded[:2]...)
	out = append(out, meta...)
	out = append(out, encoded[2:]...)
	return out, nil
}
