// Package locindex keeps a Redis GEO set of driver positions. It is a hot
// shortlist for dispatch, not a source of truth; Postgres pings decide
// eligibility.
package locindex

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const driverGeoKey = "dispatch:drivers"

type Index struct {
	client *redis.Client
}

func New(client *redis.Client) *Index {
	return &Index{client: client}
}

func (i *Index) Update(ctx context.Context, driverID string, lat, lng float64) error {
	return i.client.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{
		Name:      driverID,
		Longitude: lng,
		Latitude:  lat,
	}).Err()
}

func (i *Index) Remove(ctx context.Context, driverID string) error {
	return i.client.ZRem(ctx, driverGeoKey, driverID).Err()
}

func (i *Index) Nearby(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]string, error) {
	return i.client.GeoSearch(ctx, driverGeoKey, &redis.GeoSearchQuery{
		Longitude:  lng,
		Latitude:   lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
		Count:      limit,
	}).Result()
}

func (i *Index) Close() error {
	return i.client.Close()
}
