package domain

import "time"

type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "PENDING"
	ExecutionStatusQueued    ExecutionStatus = "QUEUED"
	ExecutionStatusExecuting ExecutionStatus = "EXECUTING"
	ExecutionStatusDone      ExecutionStatus = "DONE"
	ExecutionStatusFailed    ExecutionStatus = "FAILED"
)

// SubscriptionExecution is one unit of work for the downstream dispatcher.
type SubscriptionExecution struct {
	ID                      int64
	TriggeredSubscriptionID int64

	RequestedTime time.Time
	QueuedTime    *time.Time
	ExecutionTime *time.Time
	Status        ExecutionStatus
}
