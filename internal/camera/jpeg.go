package camera

import (
	"bytes"
	"fmt"
	"image/jpeg"

	"github.com/AlexxIT/go2rtc/pkg/y4m"
)

// JPEGEncoder compresses planar 4:2:0 frames with image/jpeg.
type JPEGEncoder struct{}

// Encode implements Encoder.
func (JPEGEncoder) Encode(frame []byte, width, height, quality int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: frame size %dx%d", ErrBadValue, width, height)
	}
	if len(frame) < width*height*3/2 {
		return nil, fmt.Errorf("%w: frame is %d bytes, want %d", ErrBadValue, len(frame), width*height*3/2)
	}
	quality = max(1, min(quality, 100))

	fmtp := y4m.ParseHeader(fmt.Appendf(nil, "W%d H%d C420jpeg", width, height))
	img := y4m.NewImage(fmtp)(frame)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
