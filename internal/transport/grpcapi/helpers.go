package grpcapi

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"mealdrop/internal/auth"
	"mealdrop/internal/domain"
)

func getClaims(ctx context.Context) (*auth.Claims, error) {
	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}
	return claims, nil
}

func requireRole(ctx context.Context, role string) (*auth.Claims, error) {
	claims, err := getClaims(ctx)
	if err != nil {
		return nil, err
	}
	if claims.Role != role {
		return nil, status.Error(codes.PermissionDenied, "forbidden")
	}
	return claims, nil
}

func mapServiceError(err error) error {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		return status.Error(codes.PermissionDenied, "forbidden")
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, domain.ErrNoEligibleDriver):
		return status.Error(codes.NotFound, "no eligible driver available")
	case errors.Is(err, domain.ErrConflict):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, domain.ErrInvalid):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

// restaurantFor resolves which restaurant a staff token acts for, matching
// the HTTP transport's convention.
func restaurantFor(claims *auth.Claims) string {
	if claims.RestaurantID != "" {
		return claims.RestaurantID
	}
	return claims.Subject
}
