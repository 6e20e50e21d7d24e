// Package scheduler fires subscriptions with trigger type SCHEDULER when
// their next scheduled execution is due.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/cron"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/domain"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/metrics"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/paging"
)

type Store interface {
	// FindDueScheduledSubscriptionIDs returns up to limit ids greater than
	// afterID of active SCHEDULER subscriptions due at now, ordered by id.
	FindDueScheduledSubscriptionIDs(ctx context.Context, now time.Time, afterID int64, limit int) ([]int64, error)
	// UpdateScheduledSubscription locks the subscription row, calls fn and
	// stores the returned next execution. An error from fn rolls back.
	UpdateScheduledSubscription(ctx context.Context, id int64, fn func(sub domain.Subscription) (*time.Time, error)) error
}

type Schedule interface {
	Next(after time.Time) time.Time
}

type Config struct {
	// PageSize bounds the ids handled per run.
	PageSize int
	// AssetPageSize is the page size of the asset sweeps started per subscription.
	AssetPageSize int
}

type Service struct {
	config  Config
	store   Store
	sender  paging.Sender
	clock   func() time.Time
	metrics metrics.Sink

	mu      sync.Mutex
	afterID int64 // keyset cursor carried between runs
}

func New(config Config, store Store, sender paging.Sender) *Service {
	if config.PageSize <= 0 {
		config.PageSize = 100
	}
	if config.AssetPageSize <= 0 {
		config.AssetPageSize = 100
	}
	return &Service{
		config:  config,
		store:   store,
		sender:  sender,
		clock:   time.Now,
		metrics: metrics.NewNoopSink(),
	}
}

// WithMetrics sets the metrics sink.
func (s *Service) WithMetrics(sink metrics.Sink) *Service {
	s.metrics = sink
	return s
}

// WithClock overrides the time source.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Run fires RunOnce on every tick of sched until ctx is cancelled.
func (s *Service) Run(ctx context.Context, sched Schedule) error {
	log.Println("scheduler: started")

	for {
		now := s.clock()
		wait := sched.Next(now).Sub(now)
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			log.Println("scheduler: stopped")
			return ctx.Err()
		case <-timer.C:
			if _, err := s.RunOnce(ctx); err != nil {
				log.Printf("scheduler: run error: %v", err)
			}
		}
	}
}

// RunOnce enqueues one page of due subscriptions, each in its own
// transaction, and returns how many were enqueued. A failing subscription
// does not stop the others. Later runs pick up the rest.
func (s *Service) RunOnce(ctx context.Context) (int, error) {
	start := s.clock()
	now := start.UTC()

	ids, err := s.FindScheduledSubscriptionIDsForTriggering(ctx, now)
	if err != nil {
		s.metrics.ScheduledRunCompleted(s.clock().Sub(start), 0, err)
		return 0, err
	}

	enqueued := 0
	for _, id := range ids {
		err := s.EnqueueForTriggeringInNewTransaction(ctx, id)
		switch {
		case err == nil:
			enqueued++
		case errors.Is(err, domain.ErrAlreadyProcessed), errors.Is(err, domain.ErrSubscriptionInactive):
			log.Printf("scheduler: subscription=%d skipped: %v", id, err)
		default:
			log.Printf("scheduler: subscription=%d error: %v", id, err)
		}
	}

	s.metrics.ScheduledRunCompleted(s.clock().Sub(start), enqueued, nil)
	if len(ids) > 0 {
		log.Printf("scheduler: run done due=%d enqueued=%d", len(ids), enqueued)
	}
	return enqueued, nil
}

// FindScheduledSubscriptionIDsForTriggering returns one page of due
// scheduled subscription ids. Each call continues after the last id of the
// previous full page and wraps to the start once a short page is read, so
// subscriptions that keep failing cannot starve the ones behind them.
func (s *Service) FindScheduledSubscriptionIDsForTriggering(ctx context.Context, now time.Time) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.store.FindDueScheduledSubscriptionIDs(ctx, now, s.afterID, s.config.PageSize)
	if err != nil {
		return nil, fmt.Errorf("find due subscriptions after %d: %w", s.afterID, err)
	}
	if len(ids) < s.config.PageSize {
		s.afterID = 0
	} else {
		s.afterID = ids[len(ids)-1]
	}
	return ids, nil
}

// EnqueueForTriggeringInNewTransaction starts the asset sweeps of one due
// subscription and moves its next execution forward. Expired subscriptions
// are retired instead.
func (s *Service) EnqueueForTriggeringInNewTransaction(ctx context.Context, id int64) error {
	now := s.clock().UTC()

	retired := false
	err := s.store.UpdateScheduledSubscription(ctx, id, func(sub domain.Subscription) (*time.Time, error) {
		if !sub.Active || sub.Execution.TriggerType != domain.TriggerTypeScheduler {
			return nil, fmt.Errorf("subscription %d: %w", id, domain.ErrSubscriptionInactive)
		}
		due := sub.Execution.NextScheduledExecution
		if due == nil || due.After(now) {
			return nil, fmt.Errorf("subscription %d: %w", id, domain.ErrAlreadyProcessed)
		}

		if sub.Expired(now) {
			retired = true
			return nil, nil
		}

		next, err := NextExecution(now, sub.Execution.TimeExpression, sub.Execution.Frequency, sub.Execution.FrequencyUnit)
		if err != nil {
			return nil, fmt.Errorf("subscription %d: %w", id, err)
		}

		sent, err := paging.StartSweep(ctx, s.sender, sub, domain.SourceScheduled, s.config.AssetPageSize, now)
		if err != nil {
			return nil, err
		}

		log.Printf("scheduler: enqueued subscription=%d pages=%d next=%s", id, sent, next.Format(time.RFC3339))
		return &next, nil
	})
	if err != nil {
		return err
	}

	if retired {
		s.metrics.ScheduledSubscriptionRetired()
		log.Printf("scheduler: retired subscription=%d, validity ended", id)
	}
	return nil
}

// NextExecution anchors timeExpr on the UTC date of now and adds the smallest
// positive whole number of frequency units that lands strictly after now.
func NextExecution(now time.Time, timeExpr string, frequency int, unit domain.TimeUnit) (time.Time, error) {
	if frequency <= 0 {
		return time.Time{}, fmt.Errorf("frequency must be positive, got %d", frequency)
	}
	tod, err := cron.ParseTimeOfDay(timeExpr)
	if err != nil {
		return time.Time{}, err
	}
	now = now.UTC()
	anchor := tod.On(now)

	var step time.Duration
	switch unit {
	case domain.TimeUnitMinutes:
		step = time.Duration(frequency) * time.Minute
	case domain.TimeUnitHours:
		step = time.Duration(frequency) * time.Hour
	case domain.TimeUnitDays, domain.TimeUnitWeeks, domain.TimeUnitMonths:
		// A whole day or more past today's anchor is always after now.
		return addCalendar(anchor, frequency, unit), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported frequency unit %q", unit)
	}

	k := int64(1)
	if elapsed := now.Sub(anchor); elapsed >= step {
		k = int64(elapsed/step) + 1
	}
	return anchor.Add(time.Duration(k) * step), nil
}

func addCalendar(t time.Time, n int, unit domain.TimeUnit) time.Time {
	switch unit {
	case domain.TimeUnitWeeks:
		return t.AddDate(0, 0, 7*n)
	case domain.TimeUnitMonths:
		return t.AddDate(0, n, 0)
	default:
		return t.AddDate(0, 0, n)
	}
}
