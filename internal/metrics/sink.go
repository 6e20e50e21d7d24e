package metrics

import "time"

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate errors.
type Sink interface {
	// Consumer metrics
	MessageConsumed(source, outcome string)
	CommandExecuted(kind string, duration time.Duration, err error)
	MessagesInFlightIncr()
	MessagesInFlightDecr()

	// Triggering metrics
	TriggeringCreated(source string)
	DuplicateSuppressed(source string)
	TriggeringMerged(source string)
	TriggeringsStopped(count int)

	// Scheduler metrics
	ScheduledRunCompleted(duration time.Duration, enqueued int, err error)
	ScheduledSubscriptionRetired()

	// EventBus metrics
	BufferSizeUpdate(size int)
	EmitError()

	// Enqueuer metrics
	ExecutionsQueued(count int)

	// Leader election metrics
	LeaderStatusChanged(isLeader bool)
}

// Outcome constants for MessageConsumed.
const (
	OutcomeHandled       = "handled"
	OutcomeMalformed     = "malformed"
	OutcomeFailed        = "failed"
	OutcomeUnknownSource = "unknown_source"
)
