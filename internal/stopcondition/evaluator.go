// Package stopcondition ends open triggerings when their asset leaves the
// subscription's areas or reports a terminating activity.
package stopcondition

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/domain"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/matching"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/metrics"
)

type Store interface {
	// FindByStopConditionCriteria returns the ACTIVE triggerings for which
	// matching.MatchesStop holds.
	FindByStopConditionCriteria(ctx context.Context, c matching.StopCriteria) ([]domain.TriggeredSubscription, error)
	UpdateTriggeredStatus(ctx context.Context, triggeredID int64, status domain.TriggeredStatus) error
}

type Evaluator struct {
	store   Store
	metrics metrics.Sink
}

func NewEvaluator(store Store) *Evaluator {
	return &Evaluator{store: store, metrics: metrics.NewNoopSink()}
}

// WithMetrics sets the metrics sink.
func (e *Evaluator) WithMetrics(sink metrics.Sink) *Evaluator {
	e.metrics = sink
	return e
}

// Evaluate stops every triggering matched by c and returns how many were stopped.
// A triggering removed concurrently is skipped.
func (e *Evaluator) Evaluate(ctx context.Context, c matching.StopCriteria) (int, error) {
	if c.ConnectID == "" {
		return 0, fmt.Errorf("%w: connect id is required", domain.ErrInvalidCriteria)
	}
	if !c.AreasReported && len(c.Activities) == 0 {
		return 0, nil
	}

	matched, err := e.store.FindByStopConditionCriteria(ctx, c)
	if err != nil {
		return 0, fmt.Errorf("find stop candidates for %s: %w", c.ConnectID, err)
	}

	stopped := 0
	for _, ts := range matched {
		err := e.store.UpdateTriggeredStatus(ctx, ts.ID, domain.TriggeredStatusStopped)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			e.metrics.TriggeringsStopped(stopped)
			return stopped, fmt.Errorf("stop triggered subscription %d: %w", ts.ID, err)
		}
		stopped++
		log.Printf("stopcondition: stopped triggered=%d subscription=%d connect_id=%s", ts.ID, ts.SubscriptionID, c.ConnectID)
	}

	e.metrics.TriggeringsStopped(stopped)
	return stopped, nil
}
