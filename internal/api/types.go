package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// Headers describing the origin of an ingested message.
const (
	HeaderSenderOrganisation = "X-Sender-Organisation"
	HeaderSenderEndpoint     = "X-Sender-Endpoint"
	HeaderSenderChannel      = "X-Sender-Channel"
	HeaderCorrelationID      = "X-Correlation-ID"
)

type TriggerResponse struct {
	SubscriptionID int64 `json:"subscription_id"`
	PageRequests   int   `json:"page_requests"`
}

type AcceptedResponse struct {
	MessageID     string `json:"message_id"`
	CorrelationID string `json:"correlation_id"`
}

type TriggeredResponse struct {
	ID             int64             `json:"id"`
	SubscriptionID int64             `json:"subscription_id"`
	Source         string            `json:"source"`
	Status         string            `json:"status"`
	CreatedAt      string            `json:"created_at"`
	EffectiveFrom  string            `json:"effective_from"`
	Data           map[string]string `json:"data"`
}

type ListTriggeredResponse struct {
	Triggered []TriggeredResponse `json:"triggered"`
	Total     int                 `json:"total"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
