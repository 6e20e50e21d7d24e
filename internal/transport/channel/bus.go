// Package channel is the in-process transport: one buffered channel per destination.
package channel

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/domain"
)

var ErrBufferFull = errors.New("event bus buffer full")

const DefaultEmitTimeout = 5 * time.Second

type MetricsSink interface {
	BufferSizeUpdate(size int)
	EmitError()
}

type Option func(*EventBus)

// WithEmitTimeout bounds how long Send waits for buffer space.
func WithEmitTimeout(d time.Duration) Option {
	return func(b *EventBus) { b.emitTimeout = d }
}

func WithMetrics(m MetricsSink) Option {
	return func(b *EventBus) { b.metrics = m }
}

type EventBus struct {
	buffer      int
	emitTimeout time.Duration
	metrics     MetricsSink

	mu    sync.Mutex
	chans map[string]chan domain.Message
}

func NewEventBus(buffer int, opts ...Option) *EventBus {
	b := &EventBus{
		buffer:      buffer,
		emitTimeout: DefaultEmitTimeout,
		chans:       make(map[string]chan domain.Message),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *EventBus) channel(destination string) chan domain.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.chans[destination]
	if !ok {
		ch = make(chan domain.Message, b.buffer)
		b.chans[destination] = ch
	}
	return ch
}

// Send queues msg on its destination. It returns ErrBufferFull when no space
// frees up within the emit timeout.
func (b *EventBus) Send(ctx context.Context, msg domain.Message) error {
	ch := b.channel(msg.Destination)

	timer := time.NewTimer(b.emitTimeout)
	defer timer.Stop()

	select {
	case ch <- msg:
		if b.metrics != nil {
			b.metrics.BufferSizeUpdate(len(ch))
		}
		return nil
	case <-timer.C:
		if b.metrics != nil {
			b.metrics.EmitError()
		}
		return ErrBufferFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Messages returns the channel of destination. The channel is never closed;
// consumers stop on their own context.
func (b *EventBus) Messages(ctx context.Context, destination string) <-chan domain.Message {
	return b.channel(destination)
}

// Len returns the number of buffered messages for destination.
func (b *EventBus) Len(destination string) int {
	return len(b.channel(destination))
}
