package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) MessageConsumed(source, outcome string)                                {}
func (n *NoopSink) CommandExecuted(kind string, duration time.Duration, err error)        {}
func (n *NoopSink) MessagesInFlightIncr()                                                 {}
func (n *NoopSink) MessagesInFlightDecr()                                                 {}
func (n *NoopSink) TriggeringCreated(source string)                                       {}
func (n *NoopSink) DuplicateSuppressed(source string)                                     {}
func (n *NoopSink) TriggeringMerged(source string)                                        {}
func (n *NoopSink) TriggeringsStopped(count int)                                          {}
func (n *NoopSink) ScheduledRunCompleted(duration time.Duration, enqueued int, err error) {}
func (n *NoopSink) ScheduledSubscriptionRetired()                                         {}
func (n *NoopSink) BufferSizeUpdate(size int)                                             {}
func (n *NoopSink) EmitError()                                                            {}
func (n *NoopSink) ExecutionsQueued(count int)                                            {}
func (n *NoopSink) LeaderStatusChanged(isLeader bool)                                     {}
