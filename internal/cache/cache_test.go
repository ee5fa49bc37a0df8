package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *miniredis.Miniredis {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		client = nil
	})
	return mr
}

type cachedThing struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func TestGetSetJSON_RoundTrip(t *testing.T) {
	newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, SetJSON(ctx, "thing:1", &cachedThing{ID: 1, Name: "first"}, time.Minute))

	var got cachedThing
	found, err := GetJSON(ctx, "thing:1", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, cachedThing{ID: 1, Name: "first"}, got)
}

func TestGetJSON_MissingKey(t *testing.T) {
	newTestRedis(t)

	var got cachedThing
	found, err := GetJSON(context.Background(), "thing:none", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetJSON_NilClientIsMiss(t *testing.T) {
	var got cachedThing
	found, err := GetJSON(context.Background(), "thing:1", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAside_MissThenHit(t *testing.T) {
	newTestRedis(t)
	ctx := context.Background()

	fetches := 0
	fetch := func(dest *cachedThing) func() error {
		return func() error {
			fetches++
			*dest = cachedThing{ID: 2, Name: "fetched"}
			return nil
		}
	}

	var first cachedThing
	require.NoError(t, Aside(ctx, "thing:2", &first, time.Minute, fetch(&first)))
	assert.Equal(t, 1, fetches)
	assert.Equal(t, "fetched", first.Name)

	// Second read is served from the cache.
	var second cachedThing
	require.NoError(t, Aside(ctx, "thing:2", &second, time.Minute, fetch(&second)))
	assert.Equal(t, 1, fetches)
	assert.Equal(t, "fetched", second.Name)
}

func TestAside_FetchErrorIsNotCached(t *testing.T) {
	mr := newTestRedis(t)
	ctx := context.Background()

	wantErr := assert.AnError
	var got cachedThing
	err := Aside(ctx, "thing:3", &got, time.Minute, func() error { return wantErr })
	assert.ErrorIs(t, err, wantErr)
	assert.False(t, mr.Exists("thing:3"))
}

func TestInvalidatePost(t *testing.T) {
	mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, SetJSON(ctx, PostKey(5), &cachedThing{ID: 5}, PostTTL))
	require.True(t, mr.Exists(PostKey(5)))

	InvalidatePost(ctx, 5)
	assert.False(t, mr.Exists(PostKey(5)))
}

func TestPostsListKey_VersionBumpInvalidates(t *testing.T) {
	newTestRedis(t)
	ctx := context.Background()

	before := PostsListKey(ctx, 1, 20)
	InvalidatePostsList(ctx)
	after := PostsListKey(ctx, 1, 20)

	// The key changes, so cached pages under the old version are never read.
	assert.NotEqual(t, before, after)
}
