package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix = "user:%d"
	PostKeyPrefix = "post:%d"
	// PostsListVersionKey versions the public post list; bumping it
	// invalidates every cached page at once.
	PostsListVersionKey = "posts:list:version"
	PostsListKeyPrefix  = "posts:list:v%d:p%d:s%d"
	statsKey            = "stats:platform"
)

const (
	UserTTL      = 5 * time.Minute
	PostTTL      = 10 * time.Minute
	PostsListTTL = time.Minute
	StatsTTL     = time.Minute
)

func StatsKey() string {
	return statsKey
}

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

// PostsListKey builds a versioned key for a page of the public post list.
func PostsListKey(ctx context.Context, page, pageSize int) string {
	var version int64
	if client != nil {
		version, _ = client.Get(ctx, PostsListVersionKey).Int64()
	}
	return fmt.Sprintf(PostsListKeyPrefix, version, page, pageSize)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

func InvalidatePost(ctx context.Context, postID uint) {
	Invalidate(ctx, PostKey(postID))
}

// InvalidatePostsList bumps the list version so stale pages are never served.
func InvalidatePostsList(ctx context.Context) {
	if client != nil {
		client.Incr(ctx, PostsListVersionKey)
	}
}
