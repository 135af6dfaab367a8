package geo

import (
	"math"
	"testing"
)

func TestDistanceKm(t *testing.T) {
	if d := DistanceKm(24.7136, 46.6753, 24.7136, 46.6753); d != 0 {
		t.Fatalf("expected zero distance for identical points, got %f", d)
	}

	// One degree of latitude is roughly 111 km.
	d := DistanceKm(0, 0, 1, 0)
	if math.Abs(d-111.19) > 0.5 {
		t.Fatalf("expected ~111.19 km, got %f", d)
	}

	forward := DistanceKm(24.7136, 46.6753, 21.4858, 39.1925)
	backward := DistanceKm(21.4858, 39.1925, 24.7136, 46.6753)
	if math.Abs(forward-backward) > 1e-9 {
		t.Fatalf("distance must be symmetric: %f vs %f", forward, backward)
	}
}

func TestDeliveryFeeCents(t *testing.T) {
	if fee := DeliveryFeeCents(0, DefaultBaseFeeCents, DefaultPerKmCents); fee != 250 {
		t.Fatalf("expected base fee only, got %d", fee)
	}
	if fee := DeliveryFeeCents(4, DefaultBaseFeeCents, DefaultPerKmCents); fee != 450 {
		t.Fatalf("expected 450 for 4km, got %d", fee)
	}
	// 2.5km at 50c/km rounds 125.0 to 125.
	if fee := DeliveryFeeCents(2.5, DefaultBaseFeeCents, DefaultPerKmCents); fee != 375 {
		t.Fatalf("expected 375 for 2.5km, got %d", fee)
	}
}

func TestTravelMinutes(t *testing.T) {
	if m := TravelMinutes(5, 15, 0.5); m != 25 {
		t.Fatalf("expected 25 minutes, got %d", m)
	}
	if m := TravelMinutes(5, 15, 0); m != 15 {
		t.Fatalf("zero speed should fall back to prep, got %d", m)
	}
}

func TestOrderETAMinutes(t *testing.T) {
	if m := OrderETAMinutes(5, 15, 0.5); m != 35 {
		t.Fatalf("expected 35 minutes with buffer, got %d", m)
	}
}
