package geo

import (
	"math"
	"testing"
)

func TestDistanceKm(t *testing.T) {
	d := DistanceKm(0, 0, 0, 0.01)
	if math.Abs(d-1.112) > 0.01 {
		t.Fatalf("expected ~1.11km got %v", d)
	}

	if got := DistanceKm(10, 10, 10, 10); got != 0 {
		t.Fatalf("expected zero distance got %v", got)
	}
}

func TestWithin(t *testing.T) {
	lat, lng := 0.0, 0.0

	cases := []struct {
		name   string
		lat    *float64
		lng    *float64
		radius float64
		want   bool
	}{
		{"insideTwoKm", &lat, &lng, 2, true},
		{"outsideOneKm", &lat, &lng, 1, false},
		{"nilLatitude", nil, &lng, 100, false},
		{"nilLongitude", &lat, nil, 100, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Within(0, 0.01, tc.lat, tc.lng, tc.radius); got != tc.want {
				t.Fatalf("expected %v got %v", tc.want, got)
			}
		})
	}
}

func TestBoundingBoxContainsRadius(t *testing.T) {
	b := BoundingBox(48.85, 2.35, 10)
	if b.MinLat > 48.85-10/111.0 || b.MaxLat < 48.85+10/111.0 {
		t.Fatalf("latitude bounds too tight: %+v", b)
	}
	if b.MinLng >= 2.35 || b.MaxLng <= 2.35 {
		t.Fatalf("longitude bounds should surround center: %+v", b)
	}

	polar := BoundingBox(89.999, 10, 5)
	if polar.MinLng != -180 || polar.MaxLng != 180 {
		t.Fatalf("expected full longitude range near the pole: %+v", polar)
	}

	dateline := BoundingBox(0, 179.99, 50)
	if dateline.MinLng != -180 || dateline.MaxLng != 180 {
		t.Fatalf("expected full longitude range across the antimeridian: %+v", dateline)
	}
}
