package geo

import "math"

const (
	// EarthRadiusKm is Earth's mean radius in kilometres for Haversine calculation.
	EarthRadiusKm = 6371.0088
	// DefaultNearbyRadiusKm is used when a proximity query gives no radius.
	DefaultNearbyRadiusKm = 5.0
	// MaxNearbyRadiusKm caps proximity queries.
	MaxNearbyRadiusKm = 50.0

	degToRad = math.Pi / 180
)

// ValidCoordinates reports whether lat/lng form a WGS84 coordinate.
func ValidCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// HaversineKm calculates the great-circle distance between two points
// on Earth in kilometres using the Haversine formula.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * degToRad
	dLng := (lng2 - lng1) * degToRad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// IsWithinRadiusKm checks if two coordinates are within radiusKm of each other.
func IsWithinRadiusKm(lat1, lng1, lat2, lng2, radiusKm float64) bool {
	return HaversineKm(lat1, lng1, lat2, lng2) <= radiusKm
}

// Box is a latitude/longitude rectangle. MinLng > MaxLng means the box
// wraps across the antimeridian.
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// BoundingBox returns a box that contains every point within radiusKm of
// (lat, lng). It over-approximates; callers filter with HaversineKm.
func BoundingBox(lat, lng, radiusKm float64) Box {
	dLat := radiusKm / EarthRadiusKm / degToRad
	b := Box{MinLat: lat - dLat, MaxLat: lat + dLat, MinLng: -180, MaxLng: 180}
	if b.MinLat <= -90 || b.MaxLat >= 90 {
		// The circle reaches a pole, so every longitude is in range.
		b.MinLat = math.Max(b.MinLat, -90)
		b.MaxLat = math.Min(b.MaxLat, 90)
		return b
	}
	dLng := math.Asin(math.Min(1, math.Sin(radiusKm/EarthRadiusKm)/math.Cos(lat*degToRad))) / degToRad
	if dLng >= 180 {
		return b
	}
	b.MinLng, b.MaxLng = lng-dLng, lng+dLng
	if b.MinLng < -180 {
		b.MinLng += 360
	}
	if b.MaxLng > 180 {
		b.MaxLng -= 360
	}
	return b
}

// ClampRadiusKm applies the default and maximum to a requested radius.
func ClampRadiusKm(r float64) float64 {
	if r <= 0 || math.IsNaN(r) {
		return DefaultNearbyRadiusKm
	}
	return math.Min(r, MaxNearbyRadiusKm)
}
