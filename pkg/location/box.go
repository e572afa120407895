package location

import "math"

// BoundingBox is an axis-aligned latitude/longitude rectangle.
// A box whose Min exceeds its Max matches nothing.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// BoxAroundKm approximates a circle of radiusKm around (lat, lng).
// Longitude degrees shrink with cos(lat); near the poles, where the
// span would reach or pass 180 degrees, the box covers every longitude.
func BoxAroundKm(lat, lng, radiusKm float64) BoundingBox {
	dLat := radiusKm / KmPerDegree
	cos := math.Cos(rad(lat))
	dLng := math.Inf(sign(radiusKm))
	if math.Abs(cos) > 1e-9 {
		dLng = radiusKm / (KmPerDegree * cos)
	}
	return box(lat, lng, dLat, dLng)
}

// BoxAroundDegrees is a fixed ±delta box in both axes.
func BoxAroundDegrees(lat, lng, delta float64) BoundingBox {
	return box(lat, lng, delta, delta)
}

func box(lat, lng, dLat, dLng float64) BoundingBox {
	b := BoundingBox{
		MinLat: lat - dLat,
		MaxLat: lat + dLat,
		MinLng: lng - dLng,
		MaxLng: lng + dLng,
	}
	if dLng >= 180 {
		b.MinLng, b.MaxLng = -180, 180
	}
	return b
}

func sign(v float64) int {
	if v < 0 {
		return -1
	}
	return 1
}

// Contains reports whether the point lies inside the box, edges included.
func (b BoundingBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// Empty reports whether the box can match no point at all.
func (b BoundingBox) Empty() bool {
	return b.MinLat > b.MaxLat || b.MinLng > b.MaxLng
}
