package camera

import (
	"context"
	"fmt"
	"time"

	"github.com/smazurov/spearcam/internal/events"
	"github.com/smazurov/spearcam/internal/metrics"
)

// TakePicture stops the preview and captures one still at the picture
// size. The preview is left stopped.
func (c *Camera) TakePicture(ctx context.Context) (err error) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	c.stopPreview()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return ErrInvalidOperation
	}

	cb := c.getCallbacks()
	if cb != nil && c.msgs.has(MsgShutter) {
		cb.Notify(MsgShutter, 0, 0)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	size := c.params.Picture.Size
	w, h := size.Width, size.Height
	if err := checkFrameSize(w, h); err != nil {
		return err
	}
	dev, path, err := c.probe(w, h)
	if err != nil {
		return err
	}

	var produced int
	defer func() {
		c.closeDevice(dev, path)

		ev := events.PictureTakenEvent{
			Width:     w,
			Height:    h,
			Bytes:     produced,
			Timestamp: time.Now().Format(time.RFC3339),
		}
		result := "ok"
		if err != nil {
			ev.Error = err.Error()
			result = "error"
		}
		metrics.IncPictures(result)
		c.publish(ev)
	}()

	if err := dev.Init(); err != nil {
		return fmt.Errorf("init %s: %w", path, err)
	}
	if err := dev.StartStreaming(); err != nil {
		return fmt.Errorf("start streaming %s: %w", path, err)
	}
	if dw, dh, changed := c.deviceSize(dev, size); changed {
		if err := checkFrameSize(dw, dh); err != nil {
			return err
		}
		w, h = dw, dh
	}
	c.logger.Info("Taking picture", "device", path, "size", Size{w, h}.String())

	if c.msgs.has(MsgRawImage) {
		if err := c.deliverRaw(dev, cb, w, h); err != nil {
			return err
		}
	} else if cb != nil && c.msgs.has(MsgRawImageNotify) {
		cb.Notify(MsgRawImageNotify, 0, 0)
	}

	if c.msgs.has(MsgCompressedImage) {
		n, err := c.deliverCompressed(dev, cb, w, h)
		if err != nil {
			return err
		}
		produced = n
	}
	return nil
}

func (c *Camera) deliverRaw(dev CaptureDevice, cb Callbacks, w, h int) error {
	frame, err := dev.GrabFrame()
	if err != nil {
		return fmt.Errorf("grab raw frame: %w", err)
	}
	defer func() {
		if rerr := dev.ReleaseFrame(); rerr != nil {
			c.logger.Warn("Failed to release frame", "error", rerr)
		}
	}()

	size := w * h * 2
	if len(frame) < size {
		return fmt.Errorf("grab raw frame: short frame %d bytes, want %d", len(frame), size)
	}
	if cb == nil {
		return nil
	}
	raw := cb.RequestMemory(size)
	if len(raw) < size {
		raw = make([]byte, size)
	}
	raw = raw[:size]
	copy(raw, frame)
	cb.Data(MsgRawImage, raw)
	return nil
}

func (c *Camera) deliverCompressed(dev CaptureDevice, cb Callbacks, w, h int) (int, error) {
	frame, err := dev.GrabFrame()
	if err != nil {
		return 0, fmt.Errorf("grab frame: %w", err)
	}
	defer func() {
		if rerr := dev.ReleaseFrame(); rerr != nil {
			c.logger.Warn("Failed to release frame", "error", rerr)
		}
	}()
	if len(frame) < w*h*2 {
		return 0, fmt.Errorf("grab frame: short frame %d bytes, want %d", len(frame), w*h*2)
	}

	i420 := make([]byte, w*h*3/2)
	YUYVToI420(i420, frame, w, h)

	encoded, err := c.opts.Encoder.Encode(i420, w, h, c.params.Picture.JPEGQuality)
	if err != nil {
		return 0, fmt.Errorf("encode picture: %w", err)
	}

	if c.opts.Metadata != nil {
		info := PictureInfo{
			Width:       w,
			Height:      h,
			Orientation: c.params.Rotation,
			Time:        time.Now(),
			GPS:         c.gpsInfo(),
		}

		thumb := c.params.Thumbnail
		if thumb.Size.Width > 0 && thumb.Size.Height > 0 {
			small := ScaleI420(i420, w, h, thumb.Size.Width, thumb.Size.Height)
			data, terr := c.opts.Encoder.Encode(small, thumb.Size.Width, thumb.Size.Height, thumb.Quality)
			if terr != nil {
				c.logger.Warn("Failed to encode thumbnail", "error", terr)
			} else {
				info.Thumbnail = data
				info.ThumbWidth = thumb.Size.Width
				info.ThumbHeight = thumb.Size.Height
			}
		}

		meta, merr := c.opts.Metadata.Generate(info)
		if merr != nil {
			return 0, fmt.Errorf("generate metadata: %w", merr)
		}
		if encoded, err = SpliceMetadata(encoded, meta); err != nil {
			return 0, err
		}
	}

	c.logger.Debug("Picture encoded", "bytes", len(encoded))
	if cb != nil {
		cb.Data(MsgCompressedImage, encoded)
	}
	return len(encoded), nil
}

// gpsInfo must be called with mu held. It returns nil unless both
// latitude and longitude are set.
func (c *Camera) gpsInfo() *GPSInfo {
	g := c.params.GPS
	if g == nil || g.Latitude == 0 && g.Longitude == 0 {
		return nil
	}
	return &GPSInfo{
		Latitude:         g.Latitude,
		Longitude:        g.Longitude,
		Altitude:         g.Altitude,
		Hour:             c.gps.hour,
		Minute:           c.gps.minute,
		Second:           c.gps.second,
		Date:             c.gps.date,
		ProcessingMethod: c.gps.method,
	}
}
