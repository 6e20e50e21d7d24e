package api

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/domain"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/paging"
)

// Pagination defaults and limits.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

type Store interface {
	FindSubscriptionByID(ctx context.Context, id int64) (domain.Subscription, error)
	ListTriggered(ctx context.Context, subscriptionID int64) ([]domain.TriggeredSubscription, error)
}

// Sender publishes messages to the triggering consumer.
type Sender interface {
	Send(ctx context.Context, msg domain.Message) error
}

// HealthChecker reports the status of one dependency for verbose /health responses.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	store    Store
	sender   Sender
	pageSize int
	clock    func() time.Time
	checks   map[string]HealthChecker
	mux      *http.ServeMux
}

func NewHandler(store Store, sender Sender, pageSize int) *Handler {
	h := &Handler{
		store:    store,
		sender:   sender,
		pageSize: pageSize,
		clock:    time.Now,
		checks:   make(map[string]HealthChecker),
		mux:      http.NewServeMux(),
	}
	h.mux.HandleFunc("GET /health", h.health)
	h.mux.HandleFunc("POST /subscriptions/{id}/trigger", h.triggerSubscription)
	h.mux.HandleFunc("GET /subscriptions/{id}/triggered", h.listTriggered)
	h.mux.HandleFunc("POST /activity-reports", h.ingestActivityReport)
	h.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	return h
}

// WithHealthChecker registers a named dependency for verbose /health responses.
func (h *Handler) WithHealthChecker(name string, c HealthChecker) *Handler {
	h.checks[name] = c
	return h
}

func (h *Handler) WithClock(clock func() time.Time) *Handler {
	h.clock = clock
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || len(h.checks) == 0 {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string, len(h.checks)),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	for name, c := range h.checks {
		if err := c.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Components[name] = "unhealthy: " + err.Error()
		} else {
			resp.Components[name] = "healthy"
		}
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, resp)
}

// triggerSubscription starts a manual sweep over every asset of the subscription.
func (h *Handler) triggerSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := parseSubscriptionID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.store.FindSubscriptionByID(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "subscription not found")
		return
	}
	if err != nil {
		log.Printf("api: find subscription error: id=%d err=%v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to load subscription")
		return
	}

	now := h.clock().UTC()
	if !sub.Active || !sub.ValidAt(now) {
		writeError(w, http.StatusConflict, "subscription is not active")
		return
	}

	pages, err := paging.StartSweep(r.Context(), h.sender, sub, domain.SourceManual, h.pageSize, now)
	if err != nil {
		log.Printf("api: start sweep error: id=%d sent=%d err=%v", id, pages, err)
		writeError(w, http.StatusServiceUnavailable, "failed to start triggering")
		return
	}

	writeJSON(w, http.StatusAccepted, TriggerResponse{SubscriptionID: id, PageRequests: pages})
}

func (h *Handler) listTriggered(w http.ResponseWriter, r *http.Request) {
	id, err := parseSubscriptionID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	triggered, err := h.store.ListTriggered(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "subscription not found")
		return
	}
	if err != nil {
		log.Printf("api: list triggered error: id=%d err=%v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to list triggered subscriptions")
		return
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filtered := triggered[:0:0]
		for _, ts := range triggered {
			if string(ts.Status) == status {
				filtered = append(filtered, ts)
			}
		}
		triggered = filtered
	}

	total := len(triggered)
	from := min(offset, total)
	to := min(from+limit, total)

	resp := ListTriggeredResponse{
		Triggered: make([]TriggeredResponse, 0, to-from),
		Total:     total,
	}
	for _, ts := range triggered[from:to] {
		resp.Triggered = append(resp.Triggered, toTriggeredResponse(ts))
	}
	writeJSON(w, http.StatusOK, resp)
}

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

// ingestActivityReport validates an activity report and queues it for extraction.
func (h *Handler) ingestActivityReport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	if err := validateActivityReport(string(body)); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sender, err := senderFromHeaders(r.Header)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	correlationID := r.Header.Get(HeaderCorrelationID)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	msg := domain.Message{
		ID:            uuid.NewString(),
		Destination:   domain.DestinationTriggering,
		Source:        domain.SourceActivity,
		Payload:       string(body),
		CorrelationID: correlationID,
		Sender:        sender,
		ReceivedAt:    h.clock().UTC(),
	}
	if err := h.sender.Send(r.Context(), msg); err != nil {
		log.Printf("api: queue activity report error: correlation=%s err=%v", correlationID, err)
		writeError(w, http.StatusServiceUnavailable, "failed to queue activity report")
		return
	}

	writeJSON(w, http.StatusAccepted, AcceptedResponse{MessageID: msg.ID, CorrelationID: correlationID})
}

func toTriggeredResponse(ts domain.TriggeredSubscription) TriggeredResponse {
	return TriggeredResponse{
		ID:             ts.ID,
		SubscriptionID: ts.SubscriptionID,
		Source:         ts.Source,
		Status:         string(ts.Status),
		CreatedAt:      formatTime(ts.CreatedAt),
		EffectiveFrom:  formatTime(ts.EffectiveFrom),
		Data:           ts.Data,
	}
}

// parsePagination extracts and validates limit/offset query parameters.
func parsePagination(r *http.Request) (limit, offset int, err error) {
	limit = DefaultLimit

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			return 0, 0, err
		}
		if limit < 0 {
			return 0, 0, strconv.ErrRange
		}
		if limit > MaxLimit {
			return 0, 0, &limitExceededError{max: MaxLimit}
		}
		if limit == 0 {
			limit = DefaultLimit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil {
			return 0, 0, err
		}
		if offset < 0 {
			return 0, 0, strconv.ErrRange
		}
	}

	return limit, offset, nil
}

type limitExceededError struct {
	max int
}

func (e *limitExceededError) Error() string {
	return "limit exceeds maximum of " + strconv.Itoa(e.max)
}
