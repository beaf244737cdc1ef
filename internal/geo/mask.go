// Package geo obscures party locations and measures distances between coordinates.
package geo

import (
	"math"
	"unicode/utf16"
)

// MaxOffset is the largest shift applied to either axis, roughly 1.5 km.
const MaxOffset = 0.0135

// Offset returns the deterministic coordinate shift for a party id.
//
// The hash is a plain 32-bit polynomial over the id's UTF-16 code units. It
// keeps map pins stable between renders but is not a security control: anyone
// who knows the id can undo the shift.
func Offset(partyID string) (dLat, dLng float64) {
	var h int32
	for _, c := range utf16.Encode([]rune(partyID)) {
		h = (h << 5) - h + int32(c)
	}

	latBucket := abs64(int64(h)) % 1000
	lngBucket := abs64(int64(h>>10)) % 1000

	dLat = (float64(latBucket)/1000 - 0.5) * 2 * MaxOffset
	dLng = (float64(lngBucket)/1000 - 0.5) * 2 * MaxOffset
	return dLat, dLng
}

// Location is the privacy-sensitive subset of a party's position.
type Location struct {
	ExactAddress string
	Latitude     *float64
	Longitude    *float64
	Masked       bool
}

// Mask returns loc as seen by a viewer who is neither host nor attendee.
func Mask(partyID string, loc Location) Location {
	dLat, dLng := Offset(partyID)
	out := Location{Masked: true}
	if loc.Latitude != nil {
		v := *loc.Latitude + dLat
		out.Latitude = &v
	}
	if loc.Longitude != nil {
		v := *loc.Longitude + dLng
		out.Longitude = &v
	}
	return out
}

// ForViewer masks loc unless privileged is true.
func ForViewer(partyID string, loc Location, privileged bool) Location {
	if privileged {
		loc.Masked = false
		return loc
	}
	return Mask(partyID, loc)
}

func abs64(v int64) int64 {
	return int64(math.Abs(float64(v)))
}
