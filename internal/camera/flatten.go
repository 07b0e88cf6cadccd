package camera

import (
	"fmt"
	"strconv"
	"strings"
)

type paramKey struct {
	key string
	get func(p *Parameters) (string, bool)
	set func(p *Parameters, v string) error
}

func intKey(key string, field func(p *Parameters) *int) paramKey {
	return paramKey{
		key: key,
		get: func(p *Parameters) (string, bool) { return strconv.Itoa(*field(p)), true },
		set: func(p *Parameters, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			*field(p) = n
			return nil
		},
	}
}

func floatKey(key string, field func(p *Parameters) *float64) paramKey {
	return paramKey{
		key: key,
		get: func(p *Parameters) (string, bool) { return formatFloat(*field(p)), true },
		set: func(p *Parameters, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return err
			}
			*field(p) = f
			return nil
		},
	}
}

func stringKey(key string, field func(p *Parameters) *string) paramKey {
	return paramKey{
		key: key,
		get: func(p *Parameters) (string, bool) { return *field(p), true },
		set: func(p *Parameters, v string) error {
			*field(p) = v
			return nil
		},
	}
}

func listKey(key string, field func(p *Parameters) *[]string) paramKey {
	return paramKey{
		key: key,
		get: func(p *Parameters) (string, bool) { return strings.Join(*field(p), ","), true },
		set: func(p *Parameters, v string) error {
			*field(p) = splitList(v)
			return nil
		},
	}
}

func sizeKey(key string, field func(p *Parameters) *Size) paramKey {
	return paramKey{
		key: key,
		get: func(p *Parameters) (string, bool) { return field(p).String(), true },
		set: func(p *Parameters, v string) error {
			s, err := ParseSize(v)
			if err != nil {
				return err
			}
			*field(p) = s
			return nil
		},
	}
}

func sizesKey(key string, field func(p *Parameters) *[]Size) paramKey {
	return paramKey{
		key: key,
		get: func(p *Parameters) (string, bool) {
			parts := make([]string, len(*field(p)))
			for i, s := range *field(p) {
				parts[i] = s.String()
			}
			return strings.Join(parts, ","), true
		},
		set: func(p *Parameters, v string) error {
			var sizes []Size
			for _, part := range splitList(v) {
				s, err := ParseSize(part)
				if err != nil {
					return err
				}
				sizes = append(sizes, s)
			}
			*field(p) = sizes
			return nil
		},
	}
}

func gpsKey(key string, get func(g *GPSParams) string, set func(g *GPSParams, v string) error) paramKey {
	return paramKey{
		key: key,
		get: func(p *Parameters) (string, bool) {
			if p.GPS == nil {
				return "", false
			}
			return get(p.GPS), true
		},
		set: func(p *Parameters, v string) error {
			if p.GPS == nil {
				p.GPS = &GPSParams{}
			}
			return set(p.GPS, v)
		},
	}
}

func gpsFloat(field func(g *GPSParams) *float64) (func(*GPSParams) string, func(*GPSParams, string) error) {
	return func(g *GPSParams) string { return formatFloat(*field(g)) },
		func(g *GPSParams, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return err
			}
			*field(g) = f
			return nil
		}
}

var paramKeys = func() []paramKey {
	latGet, latSet := gpsFloat(func(g *GPSParams) *float64 { return &g.Latitude })
	lonGet, lonSet := gpsFloat(func(g *GPSParams) *float64 { return &g.Longitude })
	altGet, altSet := gpsFloat(func(g *GPSParams) *float64 { return &g.Altitude })

	return []paramKey{
		{
			key: "preview-frame-rate-values",
			get: func(p *Parameters) (string, bool) {
				parts := make([]string, len(p.Preview.FrameRates))
				for i, r := range p.Preview.FrameRates {
					parts[i] = strconv.Itoa(r)
				}
				return strings.Join(parts, ","), true
			},
			set: func(p *Parameters, v string) error {
				var rates []int
				for _, part := range splitList(v) {
					n, err := strconv.Atoi(part)
					if err != nil {
						return err
					}
					rates = append(rates, n)
				}
				p.Preview.FrameRates = rates
				return nil
			},
		},
		intKey("preview-frame-rate", func(p *Parameters) *int { return &p.Preview.FrameRate }),
		listKey("preview-format-values", func(p *Parameters) *[]string { return &p.Preview.Formats }),
		stringKey("preview-format", func(p *Parameters) *string { return &p.Preview.Format }),
		sizesKey("preview-size-values", func(p *Parameters) *[]Size { return &p.Preview.Sizes }),
		sizeKey("preview-size", func(p *Parameters) *Size { return &p.Preview.Size }),
		{
			key: "preview-fps-range",
			get: func(p *Parameters) (string, bool) {
				return fmt.Sprintf("%d,%d", p.Preview.FPSRange.Min, p.Preview.FPSRange.Max), true
			},
			set: func(p *Parameters, v string) error {
				lo, hi, ok := strings.Cut(v, ",")
				if !ok {
					return fmt.Errorf("want min,max")
				}
				minFPS, err := strconv.Atoi(strings.TrimSpace(lo))
				if err != nil {
					return err
				}
				maxFPS, err := strconv.Atoi(strings.TrimSpace(hi))
				if err != nil {
					return err
				}
				p.Preview.FPSRange = FPSRange{Min: minFPS, Max: maxFPS}
				return nil
			},
		},
		stringKey("video-frame-format", func(p *Parameters) *string { return &p.Video.FrameFormat }),
		sizesKey("video-size-values", func(p *Parameters) *[]Size { return &p.Video.Sizes }),
		sizeKey("video-size", func(p *Parameters) *Size { return &p.Video.Size }),
		sizeKey("preferred-preview-size-for-video", func(p *Parameters) *Size { return &p.Video.PreferredPreviewSize }),
		listKey("focus-mode-values", func(p *Parameters) *[]string { return &p.Focus.Modes }),
		stringKey("focus-mode", func(p *Parameters) *string { return &p.Focus.Mode }),
		stringKey("focus-distances", func(p *Parameters) *string { return &p.Focus.Distances }),
		listKey("picture-format-values", func(p *Parameters) *[]string { return &p.Picture.Formats }),
		stringKey("picture-format", func(p *Parameters) *string { return &p.Picture.Format }),
		sizesKey("picture-size-values", func(p *Parameters) *[]Size { return &p.Picture.Sizes }),
		sizeKey("picture-size", func(p *Parameters) *Size { return &p.Picture.Size }),
		intKey("jpeg-quality", func(p *Parameters) *int { return &p.Picture.JPEGQuality }),
		sizesKey("jpeg-thumbnail-size-values", func(p *Parameters) *[]Size { return &p.Thumbnail.Sizes }),
		intKey("jpeg-thumbnail-width", func(p *Parameters) *int { return &p.Thumbnail.Size.Width }),
		intKey("jpeg-thumbnail-height", func(p *Parameters) *int { return &p.Thumbnail.Size.Height }),
		intKey("jpeg-thumbnail-quality", func(p *Parameters) *int { return &p.Thumbnail.Quality }),
		floatKey("horizontal-view-angle", func(p *Parameters) *float64 { return &p.Lens.HorizontalViewAngle }),
		floatKey("vertical-view-angle", func(p *Parameters) *float64 { return &p.Lens.VerticalViewAngle }),
		floatKey("focal-length", func(p *Parameters) *float64 { return &p.Lens.FocalLength }),
		intKey("exposure-compensation", func(p *Parameters) *int { return &p.Exposure.Compensation }),
		intKey("max-exposure-compensation", func(p *Parameters) *int { return &p.Exposure.Max }),
		intKey("min-exposure-compensation", func(p *Parameters) *int { return &p.Exposure.Min }),
		floatKey("exposure-compensation-step", func(p *Parameters) *float64 { return &p.Exposure.Step }),
		intKey("rotation", func(p *Parameters) *int { return &p.Rotation }),
		gpsKey("gps-latitude", latGet, latSet),
		gpsKey("gps-longitude", lonGet, lonSet),
		gpsKey("gps-altitude", altGet, altSet),
		gpsKey("gps-timestamp",
			func(g *GPSParams) string { return strconv.FormatInt(g.Timestamp, 10) },
			func(g *GPSParams, v string) error {
				n, err := strconv.ParseInt(v, 10, 64)
				if err != nil {
					return err
				}
				g.Timestamp = n
				return nil
			}),
		gpsKey("gps-processing-method",
			func(g *GPSParams) string { return g.ProcessingMethod },
			func(g *GPSParams, v string) error {
				g.ProcessingMethod = v
				return nil
			}),
	}
}()

// Flatten renders p as "key=value;key=value" text.
func (p Parameters) Flatten() string {
	parts := make([]string, 0, len(paramKeys))
	for _, k := range paramKeys {
		if v, ok := k.get(&p); ok {
			parts = append(parts, k.key+"="+v)
		}
	}
	return strings.Join(parts, ";")
}

// Unflatten applies "key=value;key=value" text on top of p. Unknown keys
// are ignored and malformed values return ErrBadValue.
func (p *Parameters) Unflatten(s string) error {
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("%w: malformed pair %q", ErrBadValue, pair)
		}
		for _, k := range paramKeys {
			if k.key != key {
				continue
			}
			if err := k.set(p, value); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrBadValue, key, err)
			}
			break
		}
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
