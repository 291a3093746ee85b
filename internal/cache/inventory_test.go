package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedValue struct {
	Name string `json:"name"`
}

func withTestRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	prev := GetClient()
	SetClient(rdb)
	t.Cleanup(func() {
		SetClient(prev)
		rdb.Close()
	})
	return mr
}

func TestAside(t *testing.T) {
	mr := withTestRedis(t)
	ctx := context.Background()

	t.Run("miss populates the cache", func(t *testing.T) {
		fetches := 0
		var v cachedValue
		err := Aside(ctx, "k1", &v, time.Minute, func() error {
			fetches++
			v.Name = "dana"
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, fetches)
		assert.True(t, mr.Exists("k1"))

		// Second read is served from the cache.
		var again cachedValue
		err = Aside(ctx, "k1", &again, time.Minute, func() error {
			fetches++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, fetches)
		assert.Equal(t, "dana", again.Name)
	})

	t.Run("fetch error is returned and nothing cached", func(t *testing.T) {
		var v cachedValue
		err := Aside(ctx, "k2", &v, time.Minute, func() error {
			return errors.New("db down")
		})
		require.Error(t, err)
		assert.False(t, mr.Exists("k2"))
	})

	t.Run("invalidate removes the key", func(t *testing.T) {
		require.NoError(t, SetJSON(ctx, "k3", cachedValue{Name: "sam"}, time.Minute))
		Invalidate(ctx, "k3")
		assert.False(t, mr.Exists("k3"))
	})
}

func TestGetJSONTreatsRedisErrorsAsMiss(t *testing.T) {
	mr := withTestRedis(t)
	mr.Close()

	var v cachedValue
	found, err := GetJSON(context.Background(), "k", &v)
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestKeys(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "user:7", UserKey(7))
	assert.Equal(t, "travel_request:42", TravelRequestKey(42))
}
