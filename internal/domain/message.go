package domain

import "time"

// Transport destinations.
const (
	DestinationTriggering = "subscription.triggering"
	DestinationExecution  = "subscription.execution"
)

// Message is the envelope carried by the transport.
type Message struct {
	ID            string    `json:"id"`
	Destination   string    `json:"destination"`
	Source        string    `json:"source"`
	Payload       string    `json:"payload"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Sender        *Sender   `json:"sender,omitempty"`
	ReceivedAt    time.Time `json:"received_at"`
}
