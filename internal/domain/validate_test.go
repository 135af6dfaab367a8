package domain

import (
	"errors"
	"math"
	"testing"
)

func TestValidateLocation(t *testing.T) {
	valid := []Location{
		{Lat: 0, Lng: 0},
		{Lat: 90, Lng: 180},
		{Lat: -90, Lng: -180},
		{Lat: 24.7136, Lng: 46.6753},
	}
	for _, loc := range valid {
		if err := ValidateLocation(loc); err != nil {
			t.Fatalf("expected %+v to be valid, got %v", loc, err)
		}
	}

	invalid := []Location{
		{Lat: 90.0001, Lng: 0},
		{Lat: -91, Lng: 0},
		{Lat: 0, Lng: 180.5},
		{Lat: 0, Lng: -181},
		{Lat: math.NaN(), Lng: 0},
		{Lat: 0, Lng: math.NaN()},
		{Lat: math.Inf(1), Lng: 0},
		{Lat: 0, Lng: math.Inf(-1)},
	}
	for _, loc := range invalid {
		if err := ValidateLocation(loc); !errors.Is(err, ErrInvalid) {
			t.Fatalf("expected %+v to be rejected, got %v", loc, err)
		}
	}
}
