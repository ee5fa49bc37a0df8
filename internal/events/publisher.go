// Package events publishes activity events into Redis channels so other
// processes (feed builders, websocket fan-out) can react without polling.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"inkwell/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// Event types published on the activity channels.
const (
	TypePostCreated    = "post_created"
	TypePostDeleted    = "post_deleted"
	TypeCommentCreated = "comment_created"
	TypeCommentDeleted = "comment_deleted"
	TypePostLiked      = "post_liked"
	TypePostUnliked    = "post_unliked"
)

// Event is the payload published on activity channels.
type Event struct {
	Type      string    `json:"type"`
	ActorID   uint      `json:"actor_id"`
	PostID    uint      `json:"post_id"`
	CommentID uint      `json:"comment_id,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher sends activity events into Redis channels. A nil client makes
// every publish a no-op, so the server runs fine without Redis.
type Publisher struct {
	rdb *redis.Client
}

// NewPublisher creates a Publisher backed by the given Redis client.
func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// PostChannel derives the Redis channel name for a post's activity.
func PostChannel(postID uint) string {
	return "activity:post:" + strconv.FormatUint(uint64(postID), 10)
}

// BroadcastChannel carries every activity event.
const BroadcastChannel = "activity:all"

// Publish sends the event to the post channel and the broadcast channel.
// Failures are logged, not returned; events are best effort.
func (p *Publisher) Publish(ctx context.Context, ev Event) {
	if p.rdb == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "Failed to marshal event", slog.String("type", ev.Type), slog.Any("error", err))
		return
	}

	for _, channel := range []string{PostChannel(ev.PostID), BroadcastChannel} {
		if err := p.rdb.Publish(ctx, channel, payload).Err(); err != nil {
			middleware.RedisErrors.WithLabelValues("publish").Inc()
			middleware.Logger.WarnContext(ctx, "Failed to publish event",
				slog.String("type", ev.Type), slog.String("channel", channel), slog.Any("error", err))
		}
	}
}

// Subscribe listens on the broadcast channel plus per-post patterns and calls
// onMessage for each incoming message. The subscription ends when ctx is done.
func (p *Publisher) Subscribe(ctx context.Context, onMessage func(channel string, ev Event)) error {
	if p.rdb == nil {
		return nil
	}
	sub := p.rdb.PSubscribe(ctx, "activity:post:*", BroadcastChannel)
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					middleware.Logger.Warn("Dropping malformed event",
						slog.String("channel", msg.Channel), slog.Any("error", err))
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error(fmt.Sprintf("PANIC in event subscriber: %v", r))
						}
					}()
					onMessage(msg.Channel, ev)
				}()
			}
		}
	}()

	return nil
}
