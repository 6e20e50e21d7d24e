package matching

import (
	"context"
	"fmt"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/domain"
)

type Store interface {
	// FindSubscriptions returns every subscription for which Matches(sub, c) holds.
	FindSubscriptions(ctx context.Context, c Criteria) ([]domain.Subscription, error)
}

type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// FindTriggeredSubscriptions returns the subscriptions triggered by c, or an
// empty slice when none match.
func (e *Engine) FindTriggeredSubscriptions(ctx context.Context, c Criteria) ([]domain.Subscription, error) {
	if c.ValidAt.IsZero() {
		return nil, fmt.Errorf("%w: valid-at instant is required", domain.ErrInvalidCriteria)
	}

	subs, err := e.store.FindSubscriptions(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("find subscriptions: %w", err)
	}
	if subs == nil {
		subs = []domain.Subscription{}
	}
	return subs, nil
}
