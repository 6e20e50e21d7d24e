// Package testutil provides shared test helpers for the triggering engine.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/domain"
)

// FakeClock provides deterministic time for testing.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
}

// NewFakeClock creates a FakeClock set to the given time.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{current: t}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// TestContext returns a context with a 5-second timeout.
// The context is cancelled when the test completes.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

var (
	ValidFrom  = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	ValidUntil = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
)

// ActiveSubscription returns an active manual subscription valid from
// ValidFrom until ValidUntil with no criteria configured.
func ActiveSubscription(id int64, name string) domain.Subscription {
	return domain.Subscription{
		ID:        id,
		Name:      name,
		Active:    true,
		StartDate: ValidFrom,
		EndDate:   ValidUntil,
		Output: domain.OutputConfig{
			MessageType: domain.MessageTypeNone,
		},
		Execution: domain.ExecutionConfig{
			TriggerType: domain.TriggerTypeManual,
		},
	}
}

// ScheduledSubscription returns an active daily subscription firing at
// timeExpr whose next execution is next.
func ScheduledSubscription(id int64, timeExpr string, next time.Time) domain.Subscription {
	sub := ActiveSubscription(id, "scheduled")
	sub.Execution = domain.ExecutionConfig{
		TriggerType:            domain.TriggerTypeScheduler,
		Frequency:              1,
		FrequencyUnit:          domain.TimeUnitDays,
		TimeExpression:         timeExpr,
		NextScheduledExecution: &next,
	}
	return sub
}
