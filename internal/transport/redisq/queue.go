// Package redisq is a list-backed message queue on Redis. Senders LPUSH
// JSON envelopes, consumers BRPOP them, one list per destination.
package redisq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/redis/go-redis/v9"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/domain"
)

const (
	DefaultKeyPrefix    = "subtrigger:queue:"
	DefaultBlockTimeout = 5 * time.Second
	DefaultSendAttempts = 5
)

type Option func(*Queue)

func WithKeyPrefix(prefix string) Option {
	return func(q *Queue) { q.prefix = prefix }
}

// WithBlockTimeout sets how long one BRPOP waits before polling ctx again.
func WithBlockTimeout(d time.Duration) Option {
	return func(q *Queue) { q.blockTimeout = d }
}

func WithSendAttempts(n uint) Option {
	return func(q *Queue) { q.attempts = n }
}

type Queue struct {
	client       *redis.Client
	prefix       string
	blockTimeout time.Duration
	attempts     uint
}

func New(client *redis.Client, opts ...Option) *Queue {
	q := &Queue{
		client:       client,
		prefix:       DefaultKeyPrefix,
		blockTimeout: DefaultBlockTimeout,
		attempts:     DefaultSendAttempts,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Queue) key(destination string) string {
	return q.prefix + destination
}

// Send pushes msg onto its destination list, retrying transient failures.
func (q *Queue) Send(ctx context.Context, msg domain.Message) error {
	body, err := Encode(msg)
	if err != nil {
		return err
	}
	key := q.key(msg.Destination)

	err = retry.Do(
		func() error {
			return q.client.LPush(ctx, key, body).Err()
		},
		retry.Attempts(q.attempts),
		retry.Delay(100*time.Millisecond),
		retry.MaxDelay(2*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("redisq: send retry attempt=%d key=%s: %v", n+1, key, err)
		}),
	)
	if err != nil {
		return fmt.Errorf("redisq: send to %s: %w", key, err)
	}
	return nil
}

// Messages pops envelopes from destination until ctx is cancelled, then
// closes the returned channel. Undecodable envelopes are logged and dropped.
func (q *Queue) Messages(ctx context.Context, destination string) <-chan domain.Message {
	out := make(chan domain.Message)
	key := q.key(destination)

	go func() {
		defer close(out)
		for ctx.Err() == nil {
			res, err := q.client.BRPop(ctx, q.blockTimeout, key).Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("redisq: receive from %s: %v", key, err)
				sleep(ctx, time.Second)
				continue
			}

			// BRPOP replies with [key, value].
			msg, err := Decode(res[len(res)-1])
			if err != nil {
				log.Printf("redisq: dropped envelope from %s: %v", key, err)
				continue
			}

			select {
			case out <- msg:
			case <-ctx.Done():
				// Put it back so another consumer can take it.
				if err := q.client.RPush(context.Background(), key, res[len(res)-1]).Err(); err != nil {
					log.Printf("redisq: requeue to %s failed: %v", key, err)
				}
				return
			}
		}
	}()
	return out
}

// Len returns the number of queued envelopes for destination.
func (q *Queue) Len(ctx context.Context, destination string) (int64, error) {
	return q.client.LLen(ctx, q.key(destination)).Result()
}

// Encode serializes msg for the wire.
func Encode(msg domain.Message) (string, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("redisq: encode message %s: %w", msg.ID, err)
	}
	return string(b), nil
}

// Decode is the inverse of Encode. Envelopes without destination or source are rejected.
func Decode(s string) (domain.Message, error) {
	var msg domain.Message
	if err := json.Unmarshal([]byte(s), &msg); err != nil {
		return domain.Message{}, domain.Malformed("envelope", "%v", err)
	}
	if msg.Destination == "" || msg.Source == "" {
		return domain.Message{}, domain.Malformed("envelope", "destination and source are required")
	}
	return msg, nil
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
