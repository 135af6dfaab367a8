// Package geo contains the pure geographic and estimation helpers used by
// order pricing and driver dispatch. Everything here is side-effect-free and
// safe for concurrent use.
package geo

import "math"

const (
	// EarthRadiusKm is Earth's radius for the Haversine calculation.
	EarthRadiusKm = 6371.0

	// DefaultBaseFeeCents and DefaultPerKmCents are the delivery-fee knobs.
	DefaultBaseFeeCents = 250
	DefaultPerKmCents   = 50

	// DefaultPrepMinutes is the kitchen prep time assumed before a courier
	// can move, and DefaultSpeedKmPerMin the assumed courier speed.
	DefaultPrepMinutes    = 15
	DefaultSpeedKmPerMin  = 0.5
	OrderETABufferMinutes = 10
)

// DistanceKm returns the great-circle distance in kilometres between two
// points given in decimal degrees.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	const degToRad = math.Pi / 180
	dLat := (lat2 - lat1) * degToRad
	dLng := (lng2 - lng1) * degToRad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// DeliveryFeeCents prices a delivery as base + perKm * distance, rounded to
// the nearest cent.
func DeliveryFeeCents(distanceKm float64, baseCents, perKmCents int64) int64 {
	return baseCents + int64(math.Round(float64(perKmCents)*distanceKm))
}

// TravelMinutes estimates prep plus travel time, floored to whole minutes.
func TravelMinutes(distanceKm float64, prepMinutes int, speedKmPerMin float64) int {
	if speedKmPerMin <= 0 {
		return prepMinutes
	}
	return prepMinutes + int(distanceKm/speedKmPerMin)
}

// OrderETAMinutes is the order-level estimate shown to customers: prep plus
// travel plus a fixed buffer.
func OrderETAMinutes(distanceKm float64, prepMinutes int, speedKmPerMin float64) int {
	return TravelMinutes(distanceKm, prepMinutes, speedKmPerMin) + OrderETABufferMinutes
}
