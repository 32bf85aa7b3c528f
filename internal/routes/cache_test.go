package routes

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "github.com/sabanago/ride-sharing/pkg/redis"
)

func testRoute() *RouteResult {
	return &RouteResult{
		DistanceMeters:  12400,
		DurationSeconds: 1260,
		EncodedPolyline: "abc123",
		FetchedAt:       time.Date(2025, 3, 10, 7, 30, 0, 0, time.UTC),
		Provider:        "osrm",
	}
}

func TestCacheKey_JitterPastFifthDecimalSharesEntry(t *testing.T) {
	origin := Coordinate{Latitude: 4.86153, Longitude: -74.03352}
	destination := Coordinate{Latitude: 4.75435, Longitude: -74.04589}

	jittered := Coordinate{Latitude: 4.861534, Longitude: -74.033521}

	assert.Equal(t,
		cacheKey(origin, destination, ModeDriving),
		cacheKey(jittered, destination, ModeDriving),
		"sixth-decimal GPS noise must land on the same entry")
}

func TestCacheKey_DiffersByInputs(t *testing.T) {
	origin := Coordinate{Latitude: 4.86153, Longitude: -74.03352}
	destination := Coordinate{Latitude: 4.75435, Longitude: -74.04589}

	base := cacheKey(origin, destination, ModeDriving)

	assert.NotEqual(t, base, cacheKey(origin, destination, ModeWalking), "mode is part of the key")
	assert.NotEqual(t, base, cacheKey(destination, origin, ModeDriving), "direction is part of the key")
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	cache := NewCache(nil, time.Minute)
	ctx := context.Background()

	origin := Coordinate{Latitude: 4.86153, Longitude: -74.03352}
	destination := Coordinate{Latitude: 4.75435, Longitude: -74.04589}

	assert.Nil(t, cache.Get(ctx, origin, destination, ModeDriving))

	cache.Set(ctx, origin, destination, ModeDriving, testRoute())

	got := cache.Get(ctx, origin, destination, ModeDriving)
	require.NotNil(t, got)
	assert.Equal(t, float64(12400), got.DistanceMeters)
	assert.False(t, got.CacheHit, "cache stores results unmarked; the service decorates hits")
}

func TestMemoryCache_ExpiredEntryMisses(t *testing.T) {
	// Negative TTL writes entries that are already expired.
	cache := NewCache(nil, -time.Second)
	ctx := context.Background()

	origin := Coordinate{Latitude: 4.86153, Longitude: -74.03352}
	destination := Coordinate{Latitude: 4.75435, Longitude: -74.04589}

	cache.Set(ctx, origin, destination, ModeDriving, testRoute())

	assert.Nil(t, cache.Get(ctx, origin, destination, ModeDriving))
}

func TestMemoryCache_GetReturnsCopy(t *testing.T) {
	cache := NewCache(nil, time.Minute)
	ctx := context.Background()

	origin := Coordinate{Latitude: 4.86153, Longitude: -74.03352}
	destination := Coordinate{Latitude: 4.75435, Longitude: -74.04589}

	cache.Set(ctx, origin, destination, ModeDriving, testRoute())

	first := cache.Get(ctx, origin, destination, ModeDriving)
	require.NotNil(t, first)
	first.CacheHit = true
	first.DistanceMeters = 1

	second := cache.Get(ctx, origin, destination, ModeDriving)
	require.NotNil(t, second)
	assert.False(t, second.CacheHit, "mutating a returned result must not touch the stored entry")
	assert.Equal(t, float64(12400), second.DistanceMeters)
}

func TestRedisCache_SetAndGet(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewCache(&redisclient.Client{Client: db}, 15*time.Minute)
	ctx := context.Background()

	origin := Coordinate{Latitude: 4.86153, Longitude: -74.03352}
	destination := Coordinate{Latitude: 4.75435, Longitude: -74.04589}
	key := cacheKey(origin, destination, ModeDriving)

	route := testRoute()
	payload, err := json.Marshal(route)
	require.NoError(t, err)

	mock.ExpectSet(key, payload, 15*time.Minute).SetVal("OK")
	cache.Set(ctx, origin, destination, ModeDriving, route)

	mock.ExpectGet(key).SetVal(string(payload))
	got := cache.Get(ctx, origin, destination, ModeDriving)
	require.NotNil(t, got)
	assert.Equal(t, route.DistanceMeters, got.DistanceMeters)
	assert.Equal(t, route.Provider, got.Provider)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_MissReturnsNil(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewCache(&redisclient.Client{Client: db}, 15*time.Minute)

	origin := Coordinate{Latitude: 4.86153, Longitude: -74.03352}
	destination := Coordinate{Latitude: 4.75435, Longitude: -74.04589}

	mock.ExpectGet(cacheKey(origin, destination, ModeDriving)).RedisNil()

	assert.Nil(t, cache.Get(context.Background(), origin, destination, ModeDriving))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_CorruptEntryDropped(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewCache(&redisclient.Client{Client: db}, 15*time.Minute)

	origin := Coordinate{Latitude: 4.86153, Longitude: -74.03352}
	destination := Coordinate{Latitude: 4.75435, Longitude: -74.04589}
	key := cacheKey(origin, destination, ModeDriving)

	mock.ExpectGet(key).SetVal("{not json")
	mock.ExpectDel(key).SetVal(1)

	assert.Nil(t, cache.Get(context.Background(), origin, destination, ModeDriving))
	assert.NoError(t, mock.ExpectationsWereMet())
}
