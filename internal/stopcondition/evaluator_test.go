package stopcondition

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/domain"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/matching"
)

// mockStore evaluates matching.MatchesStop over fixed subscriptions and triggerings.
type mockStore struct {
	subs      map[int64]domain.Subscription
	triggered map[int64]*domain.TriggeredSubscription
	updateErr error
}

func (s *mockStore) FindByStopConditionCriteria(ctx context.Context, c matching.StopCriteria) ([]domain.TriggeredSubscription, error) {
	var out []domain.TriggeredSubscription
	for _, ts := range s.triggered {
		if matching.MatchesStop(*ts, s.subs[ts.SubscriptionID], c) {
			out = append(out, *ts)
		}
	}
	return out, nil
}

func (s *mockStore) UpdateTriggeredStatus(ctx context.Context, id int64, status domain.TriggeredStatus) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	ts, ok := s.triggered[id]
	if !ok {
		return domain.NotFound("triggered subscription", id)
	}
	ts.Status = status
	return nil
}

var areaX = domain.Area{Type: domain.AreaTypeEEZ, GID: "X"}

func newFixture(stopWhenQuitArea bool) *mockStore {
	sub := domain.Subscription{
		ID:               1,
		Name:             "in X",
		Active:           true,
		StartDate:        time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:          time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		Areas:            []domain.Area{areaX},
		StopWhenQuitArea: stopWhenQuitArea,
		StopActivities:   []domain.Activity{{Type: "FISHING_ACTIVITY", Value: "ARRIVAL"}},
	}
	return &mockStore{
		subs: map[int64]domain.Subscription{1: sub},
		triggered: map[int64]*domain.TriggeredSubscription{
			10: {
				ID:             10,
				SubscriptionID: 1,
				Status:         domain.TriggeredStatusActive,
				Data:           map[string]string{domain.DataKeyConnectID: "asset-1"},
			},
		},
	}
}

func TestEvaluate_LeftAreaStops(t *testing.T) {
	store := newFixture(true)
	ev := NewEvaluator(store)

	n, err := ev.Evaluate(context.Background(), matching.StopCriteria{
		ConnectID:     "asset-1",
		AreasReported: true,
		CurrentAreas:  []domain.Area{{Type: domain.AreaTypeEEZ, GID: "Y"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, domain.TriggeredStatusStopped, store.triggered[10].Status)
}

func TestEvaluate_StillInAreaStaysActive(t *testing.T) {
	store := newFixture(true)
	ev := NewEvaluator(store)

	n, err := ev.Evaluate(context.Background(), matching.StopCriteria{
		ConnectID:     "asset-1",
		AreasReported: true,
		CurrentAreas:  []domain.Area{areaX},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, domain.TriggeredStatusActive, store.triggered[10].Status)
}

func TestEvaluate_AreaExitIgnoredWithoutStopFlag(t *testing.T) {
	store := newFixture(false)
	ev := NewEvaluator(store)

	n, err := ev.Evaluate(context.Background(), matching.StopCriteria{
		ConnectID:     "asset-1",
		AreasReported: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, domain.TriggeredStatusActive, store.triggered[10].Status)
}

func TestEvaluate_TerminatingActivityStops(t *testing.T) {
	store := newFixture(false)
	ev := NewEvaluator(store)

	n, err := ev.Evaluate(context.Background(), matching.StopCriteria{
		ConnectID:  "asset-1",
		Activities: []domain.Activity{{Type: "FISHING_ACTIVITY", Value: "ARRIVAL"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, domain.TriggeredStatusStopped, store.triggered[10].Status)
}

func TestEvaluate_OtherAssetUntouched(t *testing.T) {
	store := newFixture(true)
	ev := NewEvaluator(store)

	n, err := ev.Evaluate(context.Background(), matching.StopCriteria{
		ConnectID:     "asset-2",
		AreasReported: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestEvaluate_RequiresConnectID(t *testing.T) {
	ev := NewEvaluator(newFixture(true))
	_, err := ev.Evaluate(context.Background(), matching.StopCriteria{AreasReported: true})
	assert.True(t, errors.Is(err, domain.ErrInvalidCriteria))
}

func TestEvaluate_UpdateError(t *testing.T) {
	store := newFixture(true)
	store.updateErr = errors.New("deadlock detected")
	ev := NewEvaluator(store)

	_, err := ev.Evaluate(context.Background(), matching.StopCriteria{ConnectID: "asset-1", AreasReported: true})
	assert.ErrorContains(t, err, "deadlock detected")
}
