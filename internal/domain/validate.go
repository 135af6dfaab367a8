package domain

import (
	"fmt"
	"math"
)

func ValidateLocation(loc Location) error {
	if !validCoordinate(loc.Lat) || loc.Lat < -90 || loc.Lat > 90 {
		return fmt.Errorf("%w: lat out of range", ErrInvalid)
	}
	if !validCoordinate(loc.Lng) || loc.Lng < -180 || loc.Lng > 180 {
		return fmt.Errorf("%w: lng out of range", ErrInvalid)
	}
	return nil
}

// validCoordinate rejects NaN and infinities, which pass range comparisons.
func validCoordinate(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func ValidateRole(role string) bool {
	switch role {
	case RoleCustomer, RoleRestaurant, RoleDriver, RoleAdmin:
		return true
	default:
		return false
	}
}
