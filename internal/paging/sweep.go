package paging

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/domain"
)

type Sender interface {
	Send(ctx context.Context, msg domain.Message) error
}

// Message wraps c in a transport envelope addressed to the triggering consumer.
func Message(source string, c Continuation, correlationID string, receivedAt time.Time) (domain.Message, error) {
	payload, err := c.Encode()
	if err != nil {
		return domain.Message{}, err
	}
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	return domain.Message{
		ID:            uuid.NewString(),
		Destination:   domain.DestinationTriggering,
		Source:        source,
		Payload:       payload,
		CorrelationID: correlationID,
		ReceivedAt:    receivedAt,
	}, nil
}

// FirstPages returns one page-1 token per asset group of sub plus one for its own asset set.
func FirstPages(sub domain.Subscription, pageSize int) []Continuation {
	pages := make([]Continuation, 0, len(sub.AssetGroups)+1)
	for _, g := range sub.AssetGroups {
		pages = append(pages, ForGroup(sub.ID, g.GUID, pageSize))
	}
	return append(pages, ForOwnAssets(sub.ID, pageSize))
}

// StartSweep sends the first page request of every asset population of sub.
// All page chains started together share one correlation id.
func StartSweep(ctx context.Context, sender Sender, sub domain.Subscription, source string, pageSize int, receivedAt time.Time) (int, error) {
	correlationID := uuid.NewString()
	sent := 0
	for _, c := range FirstPages(sub, pageSize) {
		msg, err := Message(source, c, correlationID, receivedAt)
		if err != nil {
			return sent, fmt.Errorf("build page request for subscription %d: %w", sub.ID, err)
		}
		if err := sender.Send(ctx, msg); err != nil {
			return sent, fmt.Errorf("send page request for subscription %d: %w", sub.ID, err)
		}
		sent++
	}
	return sent, nil
}
