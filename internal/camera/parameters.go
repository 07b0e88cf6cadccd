package camera

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Preview formats.
const (
	FormatYUV420SP = "yuv420sp"
	FormatYUV420P  = "yuv420p"
	FormatJPEG     = "jpeg"
	FocusFixed     = "fixed"
)

// Size is a frame geometry. Its text form is "WxH".
type Size struct {
	Width  int
	Height int
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// MarshalText implements encoding.TextMarshaler.
func (s Size) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Size) UnmarshalText(b []byte) error {
	parsed, err := ParseSize(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSize parses "WxH".
func ParseSize(v string) (Size, error) {
	ws, hs, ok := strings.Cut(strings.TrimSpace(v), "x")
	if !ok {
		return Size{}, fmt.Errorf("%w: size %q", ErrBadValue, v)
	}
	w, err := strconv.Atoi(ws)
	if err != nil {
		return Size{}, fmt.Errorf("%w: size %q", ErrBadValue, v)
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return Size{}, fmt.Errorf("%w: size %q", ErrBadValue, v)
	}
	return Size{Width: w, Height: h}, nil
}

// FPSRange is a preview frame rate range in frames per 1000 seconds.
type FPSRange struct {
	Min int `toml:"min" json:"min"`
	Max int `toml:"max" json:"max"`
}

// PreviewParams configures the preview stream.
type PreviewParams struct {
	FrameRates []int    `toml:"frame_rates" json:"frame_rates"`
	FrameRate  int      `toml:"frame_rate" json:"frame_rate"`
	Formats    []string `toml:"formats" json:"formats"`
	Format     string   `toml:"format" json:"format"`
	Sizes      []Size   `toml:"sizes" json:"sizes"`
	Size       Size     `toml:"size" json:"size"`
	FPSRange   FPSRange `toml:"fps_range" json:"fps_range"`
}

// VideoParams configures recording.
type VideoParams struct {
	FrameFormat          string `toml:"frame_format" json:"frame_format"`
	Sizes                []Size `toml:"sizes" json:"sizes"`
	Size                 Size   `toml:"size" json:"size"`
	PreferredPreviewSize Size   `toml:"preferred_preview_size" json:"preferred_preview_size"`
}

// FocusParams configures focus.
type FocusParams struct {
	Modes     []string `toml:"modes" json:"modes"`
	Mode      string   `toml:"mode" json:"mode"`
	Distances string   `toml:"distances" json:"distances"`
}

// PictureParams configures still capture.
type PictureParams struct {
	Formats     []string `toml:"formats" json:"formats"`
	Format      string   `toml:"format" json:"format"`
	Sizes       []Size   `toml:"sizes" json:"sizes"`
	Size        Size     `toml:"size" json:"size"`
	JPEGQuality int      `toml:"jpeg_quality" json:"jpeg_quality"`
}

// ThumbnailParams configures the EXIF thumbnail. A zero size disables it.
type ThumbnailParams struct {
	Sizes   []Size `toml:"sizes" json:"sizes"`
	Size    Size   `toml:"size" json:"size"`
	Quality int    `toml:"quality" json:"quality"`
}

// LensParams describes the fixed lens.
type LensParams struct {
	HorizontalViewAngle float64 `toml:"horizontal_view_angle" json:"horizontal_view_angle"`
	VerticalViewAngle   float64 `toml:"vertical_view_angle" json:"vertical_view_angle"`
	FocalLength         float64 `toml:"focal_length" json:"focal_length"`
}

// ExposureParams configures exposure compensation.
type ExposureParams struct {
	Compensation int     `toml:"compensation" json:"compensation"`
	Min          int     `toml:"min" json:"min"`
	Max          int     `toml:"max" json:"max"`
	Step         float64 `toml:"step" json:"step"`
}

// GPSParams is the location stamped into pictures. Timestamp is unix seconds
// and zero leaves the previous GPS time in place.
type GPSParams struct {
	Latitude         float64 `toml:"latitude" json:"latitude"`
	Longitude        float64 `toml:"longitude" json:"longitude"`
	Altitude         float64 `toml:"altitude" json:"altitude"`
	Timestamp        int64   `toml:"timestamp" json:"timestamp,omitempty"`
	ProcessingMethod string  `toml:"processing_method" json:"processing_method,omitempty"`
}

// Parameters is the full camera configuration.
type Parameters struct {
	Preview   PreviewParams   `toml:"preview" json:"preview"`
	Video     VideoParams     `toml:"video" json:"video"`
	Focus     FocusParams     `toml:"focus" json:"focus"`
	Picture   PictureParams   `toml:"picture" json:"picture"`
	Thumbnail ThumbnailParams `toml:"thumbnail" json:"thumbnail"`
	Lens      LensParams      `toml:"lens" json:"lens"`
	Exposure  ExposureParams  `toml:"exposure" json:"exposure"`
	Rotation  int             `toml:"rotation" json:"rotation"`
	GPS       *GPSParams      `toml:"gps,omitempty" json:"gps,omitempty"`
}

var standardSizes = []Size{{640, 480}, {352, 288}, {176, 144}}

// DefaultParameters returns the power-on configuration.
func DefaultParameters() Parameters {
	return Parameters{
		Preview: PreviewParams{
			FrameRates: []int{15, 30},
			FrameRate:  30,
			Formats:    []string{FormatYUV420SP, FormatYUV420P},
			Format:     FormatYUV420SP,
			Sizes:      slices.Clone(standardSizes),
			Size:       Size{320, 240},
			FPSRange:   FPSRange{Min: 15000, Max: 30000},
		},
		Video: VideoParams{
			FrameFormat:          FormatYUV420P,
			Sizes:                slices.Clone(standardSizes),
			Size:                 Size{320, 240},
			PreferredPreviewSize: Size{640, 480},
		},
		Focus: FocusParams{
			Modes:     []string{FocusFixed},
			Mode:      FocusFixed,
			Distances: "0.60,1.20,Infinity",
		},
		Picture: PictureParams{
			Formats:     []string{FormatJPEG},
			Format:      FormatJPEG,
			Sizes:       slices.Clone(standardSizes),
			Size:        Size{320, 240},
			JPEGQuality: 90,
		},
		Thumbnail: ThumbnailParams{
			Sizes:   []Size{{160, 120}, {0, 0}},
			Size:    Size{160, 120},
			Quality: 100,
		},
		Lens: LensParams{
			HorizontalViewAngle: 52.6,
			VerticalViewAngle:   36.9,
			FocalLength:         2.8,
		},
		Exposure: ExposureParams{
			Compensation: 0,
			Min:          -3,
			Max:          3,
			Step:         0.1,
		},
	}
}

// Validate reports the first unsupported setting, wrapped in ErrBadValue.
func (p Parameters) Validate() error {
	if p.Picture.Format != FormatJPEG {
		return fmt.Errorf("%w: only jpeg still pictures are supported, got %q", ErrBadValue, p.Picture.Format)
	}
	if p.Preview.Size.Width < 0 || p.Preview.Size.Height < 0 {
		return fmt.Errorf("%w: unsupported preview size %s", ErrBadValue, p.Preview.Size)
	}
	for _, fs := range []struct {
		name string
		size Size
	}{
		{"preview", p.Preview.Size},
		{"video", p.Video.Size},
		{"thumbnail", p.Thumbnail.Size},
	} {
		if fs.size.Width%2 != 0 || fs.size.Height%2 != 0 || fs.size.Width < 0 || fs.size.Height < 0 {
			return fmt.Errorf("%w: unsupported %s size %s", ErrBadValue, fs.name, fs.size)
		}
	}
	if err := checkFrameSize(p.Picture.Size.Width, p.Picture.Size.Height); err != nil {
		return fmt.Errorf("picture size: %w", err)
	}
	if p.Preview.Format != FormatYUV420SP && p.Preview.Format != FormatYUV420P {
		return fmt.Errorf("%w: unsupported preview format %q", ErrBadValue, p.Preview.Format)
	}
	if p.Focus.Mode != FocusFixed {
		return fmt.Errorf("%w: unsupported focus mode %q", ErrBadValue, p.Focus.Mode)
	}
	r := p.Preview.FPSRange
	if r.Min < 0 || r.Max < 0 || r.Min > r.Max {
		return fmt.Errorf("%w: unsupported fps range %d,%d", ErrBadValue, r.Min, r.Max)
	}
	return nil
}

// checkFrameSize rejects geometries the 4:2:0 conversions cannot address.
func checkFrameSize(w, h int) error {
	if w <= 0 || h <= 0 || w%2 != 0 || h%2 != 0 {
		return fmt.Errorf("%w: frame size %dx%d must be positive and even", ErrBadValue, w, h)
	}
	return nil
}

// Clone returns a deep copy.
func (p Parameters) Clone() Parameters {
	out := p
	out.Preview.FrameRates = slices.Clone(p.Preview.FrameRates)
	out.Preview.Formats = slices.Clone(p.Preview.Formats)
	out.Preview.Sizes = slices.Clone(p.Preview.Sizes)
	out.Video.Sizes = slices.Clone(p.Video.Sizes)
	out.Focus.Modes = slices.Clone(p.Focus.Modes)
	out.Picture.Formats = slices.Clone(p.Picture.Formats)
	out.Picture.Sizes = slices.Clone(p.Picture.Sizes)
	out.Thumbnail.Sizes = slices.Clone(p.Thumbnail.Sizes)
	if p.GPS != nil {
		gps := *p.GPS
		out.GPS = &gps
	}
	return out
}
