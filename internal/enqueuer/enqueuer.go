// Package enqueuer hands due subscription executions to the downstream
// dispatcher.
//
// Each cycle claims PENDING executions whose requested time has passed,
// marking them QUEUED, and publishes one message per execution to the
// execution destination. An execution whose publish fails is put back to
// PENDING and picked up by a later cycle.
package enqueuer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/domain"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/metrics"
)

type Store interface {
	// ClaimDueExecutions moves up to limit due PENDING executions to QUEUED.
	ClaimDueExecutions(ctx context.Context, now time.Time, limit int) ([]domain.SubscriptionExecution, error)
	// RequeueExecution returns a QUEUED execution to PENDING.
	RequeueExecution(ctx context.Context, executionID int64) error
}

type Sender interface {
	Send(ctx context.Context, msg domain.Message) error
}

// Config holds enqueuer configuration.
type Config struct {
	// Interval is how often a cycle runs. Default: 30 seconds.
	Interval time.Duration

	// BatchSize is the maximum number of executions claimed per cycle. Default: 100.
	BatchSize int
}

func DefaultConfig() Config {
	return Config{
		Interval:  30 * time.Second,
		BatchSize: 100,
	}
}

// Payload is the body of an execution message.
type Payload struct {
	ExecutionID             int64     `json:"executionId"`
	TriggeredSubscriptionID int64     `json:"triggeredSubscriptionId"`
	RequestedTime           time.Time `json:"requestedTime"`
	QueuedTime              time.Time `json:"queuedTime"`
}

type Enqueuer struct {
	config  Config
	store   Store
	sender  Sender
	clock   func() time.Time
	metrics metrics.Sink
}

func New(config Config, store Store, sender Sender) *Enqueuer {
	def := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	return &Enqueuer{
		config:  config,
		store:   store,
		sender:  sender,
		clock:   time.Now,
		metrics: metrics.NewNoopSink(),
	}
}

func (e *Enqueuer) WithMetrics(sink metrics.Sink) *Enqueuer {
	e.metrics = sink
	return e
}

func (e *Enqueuer) WithClock(clock func() time.Time) *Enqueuer {
	e.clock = clock
	return e
}

// Run starts the enqueue loop. It blocks until ctx is cancelled.
func (e *Enqueuer) Run(ctx context.Context) {
	ticker := time.NewTicker(e.config.Interval)
	defer ticker.Stop()

	log.Printf("enqueuer: started (interval=%s, batch=%d)", e.config.Interval, e.config.BatchSize)

	e.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("enqueuer: stopped")
			return
		case <-ticker.C:
			e.RunCycle(ctx)
		}
	}
}

// RunCycle claims and publishes one batch and returns how many executions
// were published.
func (e *Enqueuer) RunCycle(ctx context.Context) int {
	now := e.clock().UTC()

	due, err := e.store.ClaimDueExecutions(ctx, now, e.config.BatchSize)
	if err != nil {
		log.Printf("enqueuer: failed to claim executions: %v", err)
		return 0
	}
	if len(due) == 0 {
		return 0
	}

	published := 0
	for i, exec := range due {
		if ctx.Err() != nil {
			log.Printf("enqueuer: cycle interrupted, published %d/%d executions", published, len(due))
			e.requeue(context.WithoutCancel(ctx), due[i:])
			break
		}

		if err := e.publish(ctx, exec, now); err != nil {
			log.Printf("enqueuer: failed to publish execution=%d triggered=%d: %v",
				exec.ID, exec.TriggeredSubscriptionID, err)
			e.requeue(ctx, due[i:i+1])
			continue
		}
		published++
	}

	e.metrics.ExecutionsQueued(published)
	log.Printf("enqueuer: cycle complete, published=%d, claimed=%d", published, len(due))
	return published
}

func (e *Enqueuer) publish(ctx context.Context, exec domain.SubscriptionExecution, now time.Time) error {
	queued := now
	if exec.QueuedTime != nil {
		queued = *exec.QueuedTime
	}
	body, err := json.Marshal(Payload{
		ExecutionID:             exec.ID,
		TriggeredSubscriptionID: exec.TriggeredSubscriptionID,
		RequestedTime:           exec.RequestedTime,
		QueuedTime:              queued,
	})
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	return e.sender.Send(ctx, domain.Message{
		ID:            uuid.NewString(),
		Destination:   domain.DestinationExecution,
		Source:        "enqueuer",
		Payload:       string(body),
		CorrelationID: fmt.Sprintf("execution-%d", exec.ID),
		ReceivedAt:    now,
	})
}

func (e *Enqueuer) requeue(ctx context.Context, execs []domain.SubscriptionExecution) {
	for _, exec := range execs {
		if err := e.store.RequeueExecution(ctx, exec.ID); err != nil {
			log.Printf("enqueuer: failed to requeue execution=%d: %v", exec.ID, err)
		}
	}
}
