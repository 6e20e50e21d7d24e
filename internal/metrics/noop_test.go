package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoopSink_AllMethods(t *testing.T) {
	s := NewNoopSink()

	assert.NotPanics(t, func() {
		s.MessageConsumed("activity", OutcomeHandled)
		s.CommandExecuted("trigger", time.Millisecond, errors.New("boom"))
		s.MessagesInFlightIncr()
		s.MessagesInFlightDecr()
		s.TriggeringCreated("manual")
		s.DuplicateSuppressed("manual")
		s.TriggeringMerged("activity")
		s.TriggeringsStopped(2)
		s.ScheduledRunCompleted(time.Second, 3, nil)
		s.ScheduledSubscriptionRetired()
		s.BufferSizeUpdate(10)
		s.EmitError()
		s.ExecutionsQueued(4)
		s.LeaderStatusChanged(true)
	})
}

// Verify both sinks implement Sink.
var (
	_ Sink = (*NoopSink)(nil)
	_ Sink = (*PrometheusSink)(nil)
)
