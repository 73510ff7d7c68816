// Package redisgeo keeps courier positions in a Redis GEO set for radius prefiltering.
package redisgeo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"courier-dispatch/internal/geo"
)

// DefaultKey is the GEO set holding available courier positions.
const DefaultKey = "dispatch:couriers:geo"

// Index is a courier location index backed by Redis GEO commands.
type Index struct {
	rdb *redis.Client
	key string
}

// New creates an Index. An empty key falls back to DefaultKey.
func New(rdb *redis.Client, key string) *Index {
	if key == "" {
		key = DefaultKey
	}
	return &Index{rdb: rdb, key: key}
}

// NewClient creates and pings a redis client.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Upsert stores or moves the courier position.
func (i *Index) Upsert(ctx context.Context, courierID int64, p geo.Point) error {
	err := i.rdb.GeoAdd(ctx, i.key, &redis.GeoLocation{
		Name:      strconv.FormatInt(courierID, 10),
		Longitude: p.Lon,
		Latitude:  p.Lat,
	}).Err()
	if err != nil {
		return fmt.Errorf("geoadd courier %d: %w", courierID, err)
	}
	return nil
}

// Remove drops the courier from the index, missing members are ignored.
func (i *Index) Remove(ctx context.Context, courierID int64) error {
	if err := i.rdb.ZRem(ctx, i.key, strconv.FormatInt(courierID, 10)).Err(); err != nil {
		return fmt.Errorf("zrem courier %d: %w", courierID, err)
	}
	return nil
}

// Nearby returns courier ids within radiusKm of p, nearest first.
func (i *Index) Nearby(ctx context.Context, p geo.Point, radiusKm float64) ([]int64, error) {
	members, err := i.rdb.GeoSearch(ctx, i.key, &redis.GeoSearchQuery{
		Longitude:  p.Lon,
		Latitude:   p.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("geosearch: %w", err)
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
