// Package analytics keeps per-subscription trigger counters in Redis,
// bucketed by time window.
package analytics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultWindow    = time.Hour
	DefaultRetention = 7 * 24 * time.Hour
)

type Counter struct {
	client    *redis.Client
	window    time.Duration
	retention time.Duration
}

func NewCounter(client *redis.Client) *Counter {
	return &Counter{client: client, window: DefaultWindow, retention: DefaultRetention}
}

// WithWindow sets the bucket width. Supported widths are one minute, five
// minutes, one hour and one day; anything else buckets per minute.
func (c *Counter) WithWindow(window time.Duration) *Counter {
	c.window = window
	return c
}

func (c *Counter) WithRetention(retention time.Duration) *Counter {
	c.retention = retention
	return c
}

// Incr counts one triggering of subscriptionID in the bucket containing at.
func (c *Counter) Incr(ctx context.Context, subscriptionID int64, at time.Time) error {
	key := buildKey(subscriptionID, at, c.window)

	pipe := c.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, c.retention)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

// Count returns the triggerings of subscriptionID in the bucket containing at.
func (c *Counter) Count(ctx context.Context, subscriptionID int64, at time.Time) (int64, error) {
	n, err := c.client.Get(ctx, buildKey(subscriptionID, at, c.window)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get: %w", err)
	}
	return n, nil
}

func buildKey(subscriptionID int64, t time.Time, window time.Duration) string {
	return "sub:" + strconv.FormatInt(subscriptionID, 10) + ":triggered:" + truncateToBucket(t, window)
}

func truncateToBucket(t time.Time, window time.Duration) string {
	t = t.UTC()
	switch window {
	case 5 * time.Minute:
		minute := (t.Minute() / 5) * 5
		return t.Format("2006010215") + fmt.Sprintf("%02d", minute)
	case time.Hour:
		return t.Format("2006010215")
	case 24 * time.Hour:
		return t.Format("20060102")
	default:
		return t.Format("200601021504")
	}
}
