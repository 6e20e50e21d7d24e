// Package memory is a process-local store. It evaluates the matching rules
// directly and is used for STORE=memory and in tests.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/domain"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/matching"
)

type Store struct {
	mu sync.RWMutex

	nextSubscriptionID int64
	nextTriggeredID    int64
	nextExecutionID    int64

	subscriptions map[int64]domain.Subscription
	triggered     map[int64]domain.TriggeredSubscription
	executions    map[int64]domain.SubscriptionExecution

	// rowLocks serialize UpdateScheduledSubscription per subscription.
	rowMu    sync.Mutex
	rowLocks map[int64]*sync.Mutex
}

func New() *Store {
	return &Store{
		subscriptions: make(map[int64]domain.Subscription),
		triggered:     make(map[int64]domain.TriggeredSubscription),
		executions:    make(map[int64]domain.SubscriptionExecution),
		rowLocks:      make(map[int64]*sync.Mutex),
	}
}

// CreateSubscription validates and stores sub, assigning an id when sub.ID is zero.
func (s *Store) CreateSubscription(ctx context.Context, sub domain.Subscription) (domain.Subscription, error) {
	if err := sub.Validate(); err != nil {
		return domain.Subscription{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.subscriptions {
		if existing.Name == sub.Name && existing.ID != sub.ID {
			return domain.Subscription{}, fmt.Errorf("subscription name %q already in use", sub.Name)
		}
	}
	if sub.ID == 0 {
		s.nextSubscriptionID++
		sub.ID = s.nextSubscriptionID
	} else if sub.ID > s.nextSubscriptionID {
		s.nextSubscriptionID = sub.ID
	}
	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	s.subscriptions[sub.ID] = sub
	return sub, nil
}

func (s *Store) FindSubscriptionByID(ctx context.Context, id int64) (domain.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subscriptions[id]
	if !ok {
		return domain.Subscription{}, domain.NotFound("subscription", id)
	}
	return sub, nil
}

func (s *Store) FindSubscriptions(ctx context.Context, c matching.Criteria) ([]domain.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Subscription
	for _, sub := range s.subscriptions {
		if matching.Matches(sub, c) {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) FindDueScheduledSubscriptionIDs(ctx context.Context, now time.Time, afterID int64, limit int) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	for id, sub := range s.subscriptions {
		if id <= afterID || !dueAt(sub, now) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func dueAt(sub domain.Subscription, now time.Time) bool {
	next := sub.Execution.NextScheduledExecution
	return sub.Active && sub.Execution.TriggerType == domain.TriggerTypeScheduler &&
		next != nil && !next.After(now)
}

func (s *Store) rowLock(id int64) *sync.Mutex {
	s.rowMu.Lock()
	defer s.rowMu.Unlock()
	l, ok := s.rowLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.rowLocks[id] = l
	}
	return l
}

func (s *Store) UpdateScheduledSubscription(ctx context.Context, id int64, fn func(domain.Subscription) (*time.Time, error)) error {
	l := s.rowLock(id)
	l.Lock()
	defer l.Unlock()

	sub, err := s.FindSubscriptionByID(ctx, id)
	if err != nil {
		return err
	}

	next, err := fn(sub)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptions[id]
	if !ok {
		return domain.NotFound("subscription", id)
	}
	sub.Execution.NextScheduledExecution = next
	sub.UpdatedAt = time.Now().UTC()
	s.subscriptions[id] = sub
	return nil
}

// activeHolding returns the ACTIVE triggerings of subscriptionID holding every entry of data.
// Caller must hold s.mu.
func (s *Store) activeHolding(subscriptionID int64, data map[string]string) []domain.TriggeredSubscription {
	var out []domain.TriggeredSubscription
	for _, ts := range s.triggered {
		if ts.SubscriptionID != subscriptionID || ts.Status != domain.TriggeredStatusActive {
			continue
		}
		if holds(ts.Data, data) {
			out = append(out, cloneTriggered(ts))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func holds(data, want map[string]string) bool {
	for k, v := range want {
		if got, ok := data[k]; !ok || got != v {
			return false
		}
	}
	return true
}

func (s *Store) IsDuplicate(ctx context.Context, subscriptionID int64, data map[string]string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.activeHolding(subscriptionID, data)) > 0, nil
}

func (s *Store) FindAlreadyActivated(ctx context.Context, subscriptionID int64, data map[string]string) ([]domain.TriggeredSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeHolding(subscriptionID, data), nil
}

func (s *Store) SaveTriggered(ctx context.Context, ts domain.TriggeredSubscription, exec domain.SubscriptionExecution) (domain.TriggeredSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subscriptions[ts.SubscriptionID]; !ok {
		return domain.TriggeredSubscription{}, domain.NotFound("subscription", ts.SubscriptionID)
	}

	s.nextTriggeredID++
	ts.ID = s.nextTriggeredID
	ts = cloneTriggered(ts)
	s.triggered[ts.ID] = ts

	s.nextExecutionID++
	exec.ID = s.nextExecutionID
	exec.TriggeredSubscriptionID = ts.ID
	s.executions[exec.ID] = exec

	return cloneTriggered(ts), nil
}

// MergeTriggeredData computes and applies the merge under the store lock.
func (s *Store) MergeTriggeredData(ctx context.Context, triggeredID int64, merge func(data map[string]string) map[string]string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts, ok := s.triggered[triggeredID]
	if !ok {
		return nil, domain.NotFound("triggered subscription", triggeredID)
	}
	if ts.Data == nil {
		ts.Data = make(map[string]string)
		s.triggered[triggeredID] = ts
	}
	added := make(map[string]string)
	for k, v := range merge(maps.Clone(ts.Data)) {
		if _, exists := ts.Data[k]; !exists {
			ts.Data[k] = v
			added[k] = v
		}
	}
	return added, nil
}

func (s *Store) FindByStopConditionCriteria(ctx context.Context, c matching.StopCriteria) ([]domain.TriggeredSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.TriggeredSubscription
	for _, ts := range s.triggered {
		sub, ok := s.subscriptions[ts.SubscriptionID]
		if !ok {
			continue
		}
		if matching.MatchesStop(ts, sub, c) {
			out = append(out, cloneTriggered(ts))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateTriggeredStatus(ctx context.Context, triggeredID int64, status domain.TriggeredStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts, ok := s.triggered[triggeredID]
	if !ok {
		return domain.NotFound("triggered subscription", triggeredID)
	}
	ts.Status = status
	s.triggered[triggeredID] = ts
	return nil
}

// ListTriggered returns the triggerings of subscriptionID ordered by id.
func (s *Store) ListTriggered(ctx context.Context, subscriptionID int64) ([]domain.TriggeredSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.subscriptions[subscriptionID]; !ok {
		return nil, domain.NotFound("subscription", subscriptionID)
	}
	out := []domain.TriggeredSubscription{}
	for _, ts := range s.triggered {
		if ts.SubscriptionID == subscriptionID {
			out = append(out, cloneTriggered(ts))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ClaimDueExecutions moves up to limit PENDING executions requested at or
// before now to QUEUED and returns them. Executions of stopped triggerings
// stay PENDING.
func (s *Store) ClaimDueExecutions(ctx context.Context, now time.Time, limit int) ([]domain.SubscriptionExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []domain.SubscriptionExecution
	for _, e := range s.executions {
		if e.Status != domain.ExecutionStatusPending || e.RequestedTime.After(now) {
			continue
		}
		if ts, ok := s.triggered[e.TriggeredSubscriptionID]; ok && ts.Status == domain.TriggeredStatusActive {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	if len(due) > limit {
		due = due[:limit]
	}

	for i := range due {
		queued := now
		due[i].Status = domain.ExecutionStatusQueued
		due[i].QueuedTime = &queued
		s.executions[due[i].ID] = due[i]
	}
	return due, nil
}

// RequeueExecution returns a QUEUED execution to PENDING.
func (s *Store) RequeueExecution(ctx context.Context, executionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.executions[executionID]
	if !ok {
		return domain.NotFound("execution", executionID)
	}
	if e.Status == domain.ExecutionStatusQueued {
		e.Status = domain.ExecutionStatusPending
		e.QueuedTime = nil
		s.executions[executionID] = e
	}
	return nil
}

// Executions returns the executions of triggeredID ordered by id.
func (s *Store) Executions(ctx context.Context, triggeredID int64) ([]domain.SubscriptionExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.SubscriptionExecution
	for _, e := range s.executions {
		if e.TriggeredSubscriptionID == triggeredID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return nil
}

func cloneTriggered(ts domain.TriggeredSubscription) domain.TriggeredSubscription {
	ts.Data = maps.Clone(ts.Data)
	if ts.Data == nil {
		ts.Data = map[string]string{}
	}
	return ts
}
