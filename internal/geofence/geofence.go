// Package geofence scores how close a photo's device GPS is to the
// orphanage's reference coordinates.
package geofence

import (
	"math"

	"classlog/internal/verification/models"
)

// EarthRadiusMeters is the spherical Earth approximation used for distances.
const EarthRadiusMeters = 6371000.0

// Inclusive upper bounds, in meters, for each tier.
const (
	HighMaxMeters      = 200
	LikelyMaxMeters    = 500
	UncertainMaxMeters = 2000
)

// Result is the distance between two points and the tier it falls in.
type Result struct {
	DistanceMeters int
	Tier           models.MatchTier
}

// Evaluate compares device to reference. It reports false when either point
// is absent, in which case GPS must not contribute to the verdict.
func Evaluate(device, reference *models.GeoPoint) (Result, bool) {
	if device == nil || reference == nil {
		return Result{}, false
	}
	d := int(math.Round(Distance(*device, *reference)))
	return Result{DistanceMeters: d, Tier: TierFor(d)}, true
}

// TierFor maps a distance in meters to its match tier.
func TierFor(meters int) models.MatchTier {
	switch {
	case meters <= HighMaxMeters:
		return models.TierHigh
	case meters <= LikelyMaxMeters:
		return models.TierLikely
	case meters <= UncertainMaxMeters:
		return models.TierUncertain
	default:
		return models.TierUnlikely
	}
}

// Distance returns the haversine great-circle distance between a and b in meters.
func Distance(a, b models.GeoPoint) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// Rounding can push h marginally past 1 for antipodal points.
	h = math.Min(1, h)
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
