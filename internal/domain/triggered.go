package domain

import "time"

type TriggeredStatus string

const (
	TriggeredStatusActive  TriggeredStatus = "ACTIVE"
	TriggeredStatusStopped TriggeredStatus = "STOPPED"
)

// Source tags of the extractors that create triggerings.
const (
	SourceManual    = "manual"
	SourceScheduled = "scheduled"
	SourceActivity  = "activity"
)

// Correlation data keys.
const (
	DataKeyConnectID  = "connectId"
	DataKeyOccurrence = "occurrence"
	DataKeyReportID   = "reportId"
	DataKeyTripID     = "tripId"
)

// TriggeredSubscription is one live match of a subscription.
type TriggeredSubscription struct {
	ID             int64
	SubscriptionID int64
	Source         string

	CreatedAt time.Time
	// EffectiveFrom is the reception time of the event that caused the triggering.
	EffectiveFrom time.Time
	Status        TriggeredStatus

	Data map[string]string
}

// TriggeredSubscriptionData is the row form of one correlation entry.
type TriggeredSubscriptionData struct {
	TriggeredSubscriptionID int64
	Key                     string
	Value                   string
}

func (t TriggeredSubscription) Rows() []TriggeredSubscriptionData {
	rows := make([]TriggeredSubscriptionData, 0, len(t.Data))
	for k, v := range t.Data {
		rows = append(rows, TriggeredSubscriptionData{TriggeredSubscriptionID: t.ID, Key: k, Value: v})
	}
	return rows
}

// Subset returns the entries of t.Data named by keys. Missing keys are omitted.
func (t TriggeredSubscription) Subset(keys ...string) map[string]string {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := t.Data[k]; ok {
			out[k] = v
		}
	}
	return out
}
