package geo

import (
	"math"

	"github.com/partyhop/backend/internal/models"
)

const earthRadiusKm = 6371.0

// kmPerDegree approximates the length of one degree of latitude.
const kmPerDegree = 111.0

// DistanceKm returns the great-circle distance between two points using the Haversine formula.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// Within reports whether the point lies inside radiusKm of the center. Nil
// coordinates are never within range.
func Within(centerLat, centerLng float64, lat, lng *float64, radiusKm float64) bool {
	if lat == nil || lng == nil {
		return false
	}
	return DistanceKm(centerLat, centerLng, *lat, *lng) <= radiusKm
}

// BoundingBox returns a rectangle enclosing the circle around the center. It
// is deliberately generous and only meant to narrow a query before Within runs.
func BoundingBox(lat, lng, radiusKm float64) models.Bounds {
	latDelta := radiusKm/kmPerDegree + MaxOffset
	b := models.Bounds{
		MinLat: math.Max(-90, lat-latDelta),
		MaxLat: math.Min(90, lat+latDelta),
		MinLng: -180,
		MaxLng: 180,
	}

	cos := math.Cos(lat * math.Pi / 180)
	if cos < 0.01 {
		return b
	}
	lngDelta := radiusKm/(kmPerDegree*cos) + MaxOffset
	if lng-lngDelta < -180 || lng+lngDelta > 180 {
		// crosses the antimeridian
		return b
	}
	b.MinLng = lng - lngDelta
	b.MaxLng = lng + lngDelta
	return b
}
