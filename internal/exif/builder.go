// Package exif builds the APP1 segment stamped into still pictures.
package exif

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/smazurov/spearcam/internal/camera"
	"github.com/smazurov/spearcam/internal/logging"
)

// Default identification strings.
const (
	DefaultMake  = "STMicroelectronics"
	DefaultModel = "SPEAr1340-Cam"
)

// ErrTooLarge is returned when the segment cannot fit in one APP1 marker.
var ErrTooLarge = errors.New("exif segment exceeds 64KiB")

const maxSegment = 0xFFFF

// IFD0 tags.
const (
	tagImageWidth     uint16 = 0x0100
	tagImageLength    uint16 = 0x0101
	tagCompression    uint16 = 0x0103
	tagMake           uint16 = 0x010F
	tagModel          uint16 = 0x0110
	tagOrientation    uint16 = 0x0112
	tagSoftware       uint16 = 0x0131
	tagDateTime       uint16 = 0x0132
	tagJPEGOffset     uint16 = 0x0201
	tagJPEGLength     uint16 = 0x0202
	tagExifIFDPointer uint16 = 0x8769
	tagGPSIFDPointer  uint16 = 0x8825
)

// Exif IFD tags.
const (
	tagFNumber           uint16 = 0x829D
	tagExposureProgram   uint16 = 0x8822
	tagISOSpeedRatings   uint16 = 0x8827
	tagExifVersion       uint16 = 0x9000
	tagDateTimeOriginal  uint16 = 0x9003
	tagDateTimeDigitized uint16 = 0x9004
	tagApertureValue     uint16 = 0x9202
	tagBrightnessValue   uint16 = 0x9203
	tagExposureBias      uint16 = 0x9204
	tagMaxApertureValue  uint16 = 0x9205
	tagMeteringMode      uint16 = 0x9207
	tagFlash             uint16 = 0x9209
	tagFocalLength       uint16 = 0x920A
	tagPixelXDimension   uint16 = 0xA002
	tagPixelYDimension   uint16 = 0xA003
	tagExposureMode      uint16 = 0xA402
	tagWhiteBalance      uint16 = 0xA403
	tagSceneCaptureType  uint16 = 0xA406
	tagContrast          uint16 = 0xA408
	tagSaturation        uint16 = 0xA409
	tagSharpness         uint16 = 0xA40A
)

// GPS IFD tags.
const (
	tagGPSVersionID        uint16 = 0x0000
	tagGPSLatitudeRef      uint16 = 0x0001
	tagGPSLatitude         uint16 = 0x0002
	tagGPSLongitudeRef     uint16 = 0x0003
	tagGPSLongitude        uint16 = 0x0004
	tagGPSAltitudeRef      uint16 = 0x0005
	tagGPSAltitude         uint16 = 0x0006
	tagGPSTimeStamp        uint16 = 0x0007
	tagGPSProcessingMethod uint16 = 0x001B
	tagGPSDateStamp        uint16 = 0x001D
)

// asciiPrefix is the character-code header of EXIF UNDEFINED text.
var asciiPrefix = []byte{'A', 'S', 'C', 'I', 'I', 0, 0, 0}

// Builder generates EXIF metadata for captured pictures.
type Builder struct {
	Make  string
	Model string
	// Version is the sensor firmware word. Bytes 2 and 3 are the firmware
	// version and bytes 0 and 1 the parameter set version.
	Version uint32
	Logger  logging.Logger
}

// NewBuilder returns a Builder with the board's identification strings.
func NewBuilder(version uint32) *Builder {
	return &Builder{
		Make:    DefaultMake,
		Model:   DefaultModel,
		Version: version,
		Logger:  logging.GetLogger("camera"),
	}
}

// Software renders the firmware word as shown in the Software tag.
func (b *Builder) Software() string {
	v := b.Version
	return fmt.Sprintf("fw %02d.%02d prm %02d.%02d",
		(v>>16)&0xFF, (v>>24)&0xFF, v&0xFF, (v>>8)&0xFF)
}

// Orientation maps a rotation in degrees to the EXIF orientation value.
func Orientation(rotation int) uint16 {
	switch rotation {
	case 90:
		return 6
	case 180:
		return 3
	case 270:
		return 8
	default:
		return 1
	}
}

// Generate implements camera.MetadataGenerator. A thumbnail that would
// overflow the segment is dropped.
func (b *Builder) Generate(info camera.PictureInfo) ([]byte, error) {
	seg, err := b.build(info)
	if errors.Is(err, ErrTooLarge) && len(info.Thumbnail) > 0 {
		if b.Logger != nil {
			b.Logger.Warn("Thumbnail too large for EXIF segment, dropping it", "bytes", len(info.Thumbnail))
		}
		info.Thumbnail = nil
		return b.build(info)
	}
	return seg, err
}

func (b *Builder) build(info camera.PictureInfo) ([]byte, error) {
	ts := info.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	stamp := ts.Format("2006:01:02 15:04:05")

	ifd0 := &ifd{}
	ifd0.long(tagImageWidth, uint32(info.Width))
	ifd0.long(tagImageLength, uint32(info.Height))
	ifd0.ascii(tagMake, b.Make)
	ifd0.ascii(tagModel, b.Model)
	ifd0.short(tagOrientation, Orientation(info.Orientation))
	ifd0.ascii(tagSoftware, b.Software())
	ifd0.ascii(tagDateTime, stamp)
	ifd0.long(tagExifIFDPointer, 0)

	exif := &ifd{}
	exif.short(tagExposureProgram, 1)
	exif.rational(tagFNumber, 28, 10)
	exif.short(tagISOSpeedRatings, 100)
	exif.undefined(tagExifVersion, []byte("0220"))
	exif.ascii(tagDateTimeOriginal, stamp)
	exif.ascii(tagDateTimeDigitized, stamp)
	exif.rational(tagApertureValue, 28, 10)
	exif.srational(tagBrightnessValue, 5, 9)
	exif.srational(tagExposureBias, 0, 10)
	exif.rational(tagMaxApertureValue, 26, 10)
	exif.short(tagMeteringMode, 2)
	exif.short(tagFlash, 0)
	exif.rational(tagFocalLength, 2800, 1000)
	exif.long(tagPixelXDimension, uint32(info.Width))
	exif.long(tagPixelYDimension, uint32(info.Height))
	exif.short(tagExposureMode, 0)
	exif.short(tagWhiteBalance, 1)
	exif.short(tagSceneCaptureType, 4)
	exif.short(tagContrast, 0)
	exif.short(tagSaturation, 0)
	exif.short(tagSharpness, 0)

	var gps *ifd
	if info.GPS != nil {
		ifd0.long(tagGPSIFDPointer, 0)
		gps = gpsDirectory(info.GPS)
	}

	var ifd1 *ifd
	if len(info.Thumbnail) > 0 {
		ifd1 = &ifd{}
		ifd1.long(tagImageWidth, uint32(info.ThumbWidth))
		ifd1.long(tagImageLength, uint32(info.ThumbHeight))
		ifd1.short(tagCompression, 6)
		ifd1.long(tagJPEGOffset, 0)
		ifd1.long(tagJPEGLength, uint32(len(info.Thumbnail)))
	}

	// Lay out IFD0, Exif, GPS, IFD1 then the thumbnail after the header.
	off0 := uint32(8)
	offExif := off0 + uint32(ifd0.size())
	next := offExif + uint32(exif.size())
	ifd0.long(tagExifIFDPointer, offExif)

	var offGPS uint32
	if gps != nil {
		offGPS = next
		next += uint32(gps.size())
		ifd0.long(tagGPSIFDPointer, offGPS)
	}

	var off1, offThumb uint32
	if ifd1 != nil {
		off1 = next
		offThumb = off1 + uint32(ifd1.size())
		ifd1.long(tagJPEGOffset, offThumb)
		ifd0.next = off1
	}

	total := int(next) + 2 + 6
	if ifd1 != nil {
		total = int(offThumb) + len(info.Thumbnail) + 2 + 6
	}
	if total > maxSegment {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, total)
	}

	var tiff bytes.Buffer
	tiff.WriteString("II")
	_ = binary.Write(&tiff, order, uint16(42))
	_ = binary.Write(&tiff, order, off0)
	ifd0.encode(&tiff, off0)
	exif.encode(&tiff, offExif)
	if gps != nil {
		gps.encode(&tiff, offGPS)
	}
	if ifd1 != nil {
		ifd1.encode(&tiff, off1)
		tiff.Write(info.Thumbnail)
	}

	out := make([]byte, 0, 4+6+tiff.Len())
	out = append(out, 0xFF, 0xE1)
	out = binary.BigEndian.AppendUint16(out, uint16(2+6+tiff.Len()))
	out = append(out, "Exif\x00\x00"...)
	out = append(out, tiff.Bytes()...)
	return out, nil
}

func gpsDirectory(g *camera.GPSInfo) *ifd {
	d := &ifd{}
	d.byteSeq(tagGPSVersionID, 2, 2, 0, 0)

	d.ascii(tagGPSLatitudeRef, latitudeRef(g.Latitude))
	deg, minutes, sec := dms(g.Latitude)
	d.rational(tagGPSLatitude, deg, 1, minutes, 1, sec, 60)

	d.ascii(tagGPSLongitudeRef, longitudeRef(g.Longitude))
	deg, minutes, sec = dms(g.Longitude)
	d.rational(tagGPSLongitude, deg, 1, minutes, 1, sec, 60)

	d.byteSeq(tagGPSAltitudeRef, altitudeRef(g.Altitude))
	d.rational(tagGPSAltitude, uint32(math.Abs(g.Altitude)), 1)

	d.rational(tagGPSTimeStamp, uint32(g.Hour), 1, uint32(g.Minute), 1, uint32(g.Second), 1)

	method := append(append([]byte(nil), asciiPrefix...), g.ProcessingMethod...)
	d.undefined(tagGPSProcessingMethod, method)

	if g.Date != "" {
		d.ascii(tagGPSDateStamp, g.Date)
	}
	return d
}
