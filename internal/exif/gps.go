package exif

import "math"

// dms splits a coordinate into degrees, minutes and seconds. Seconds are
// in sixtieths so they can be stored over a denominator of 60.
func dms(coord float64) (deg, minutes, sec uint32) {
	coord = math.Abs(coord)
	d := math.Floor(coord)
	m := (coord - d) * 60
	s := (m - math.Floor(m)) * 3600

	deg, minutes, sec = uint32(d), uint32(math.Floor(m)), uint32(math.Floor(s))
	if sec >= 3600 {
		sec = 0
		minutes++
	}
	if minutes >= 60 {
		minutes = 0
		deg++
	}
	return deg, minutes, sec
}

func latitudeRef(lat float64) string {
	if lat > 0 {
		return "N"
	}
	return "S"
}

func longitudeRef(lon float64) string {
	if lon > 0 {
		return "E"
	}
	return "W"
}

// altitudeRef is 0 above sea level and 1 otherwise.
func altitudeRef(alt float64) byte {
	if alt > 0 {
		return 0
	}
	return 1
}
