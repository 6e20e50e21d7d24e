// Package triggering persists triggered subscriptions and suppresses or merges
// repeated triggerings of the same real-world match.
package triggering

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/domain"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/metrics"
)

type Store interface {
	// IsDuplicate reports whether an ACTIVE triggering of subscriptionID holds
	// every entry of data.
	IsDuplicate(ctx context.Context, subscriptionID int64, data map[string]string) (bool, error)
	// FindAlreadyActivated returns the ACTIVE triggerings of subscriptionID
	// holding every entry of data.
	FindAlreadyActivated(ctx context.Context, subscriptionID int64, data map[string]string) ([]domain.TriggeredSubscription, error)
	// SaveTriggered persists ts together with exec in one transaction.
	SaveTriggered(ctx context.Context, ts domain.TriggeredSubscription, exec domain.SubscriptionExecution) (domain.TriggeredSubscription, error)
	// MergeTriggeredData locks triggeredID, calls merge with its current data
	// and stores the entries merge returns before releasing the lock. It
	// returns the stored entries.
	MergeTriggeredData(ctx context.Context, triggeredID int64, merge func(data map[string]string) map[string]string) (map[string]string, error)
}

// Counter records per-subscription trigger activity.
type Counter interface {
	Incr(ctx context.Context, subscriptionID int64, at time.Time) error
}

type Service struct {
	store   Store
	clock   func() time.Time
	metrics metrics.Sink
	counter Counter
}

func NewService(store Store) *Service {
	return &Service{
		store:   store,
		clock:   time.Now,
		metrics: metrics.NewNoopSink(),
	}
}

// WithMetrics sets the metrics sink.
func (s *Service) WithMetrics(sink metrics.Sink) *Service {
	s.metrics = sink
	return s
}

// WithCounter sets a per-subscription trigger counter. Counter failures are logged only.
func (s *Service) WithCounter(c Counter) *Service {
	s.counter = c
	return s
}

// WithClock overrides the time source.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// TriggerUnlessDuplicate saves ts unless an ACTIVE triggering of the same
// subscription already carries the same values for dupKeys. The returned bool
// is false when the triggering was suppressed.
func (s *Service) TriggerUnlessDuplicate(ctx context.Context, ts domain.TriggeredSubscription, dupKeys []string) (bool, error) {
	dup, err := s.store.IsDuplicate(ctx, ts.SubscriptionID, ts.Subset(dupKeys...))
	if err != nil {
		return false, fmt.Errorf("check duplicate for subscription %d: %w", ts.SubscriptionID, err)
	}
	if dup {
		s.metrics.DuplicateSuppressed(ts.Source)
		return false, nil
	}

	if _, err := s.save(ctx, ts); err != nil {
		return false, err
	}
	return true, nil
}

// TriggerOrMerge folds the accumulate values of ts into every ACTIVE
// triggering that matches on dupKeys. When none exists ts is saved as new.
// Accumulated values are stored under numbered keys (reportId_1, reportId_2, ...).
func (s *Service) TriggerOrMerge(ctx context.Context, ts domain.TriggeredSubscription, dupKeys, accumulate []string) error {
	open, err := s.store.FindAlreadyActivated(ctx, ts.SubscriptionID, ts.Subset(dupKeys...))
	if err != nil {
		return fmt.Errorf("find activated for subscription %d: %w", ts.SubscriptionID, err)
	}

	if len(open) == 0 {
		ts.Data = numberAccumulated(ts.Data, accumulate)
		_, err := s.save(ctx, ts)
		return err
	}

	incoming := ts.Subset(accumulate...)
	for _, existing := range open {
		added, err := s.store.MergeTriggeredData(ctx, existing.ID, func(data map[string]string) map[string]string {
			return MergeData(data, incoming)
		})
		if err != nil {
			return fmt.Errorf("merge into triggered subscription %d: %w", existing.ID, err)
		}
		if len(added) == 0 {
			continue
		}
		s.metrics.TriggeringMerged(ts.Source)
		log.Printf("triggering: merged into triggered=%d subscription=%d keys=%d", existing.ID, ts.SubscriptionID, len(added))
	}
	return nil
}

func (s *Service) save(ctx context.Context, ts domain.TriggeredSubscription) (domain.TriggeredSubscription, error) {
	now := s.clock().UTC()
	if ts.CreatedAt.IsZero() {
		ts.CreatedAt = now
	}
	if ts.EffectiveFrom.IsZero() {
		ts.EffectiveFrom = now
	}
	ts.Status = domain.TriggeredStatusActive

	exec := domain.SubscriptionExecution{
		RequestedTime: ts.CreatedAt,
		Status:        domain.ExecutionStatusPending,
	}

	saved, err := s.store.SaveTriggered(ctx, ts, exec)
	if err != nil {
		return domain.TriggeredSubscription{}, fmt.Errorf("save triggered subscription for subscription %d: %w", ts.SubscriptionID, err)
	}

	s.metrics.TriggeringCreated(ts.Source)
	if s.counter != nil {
		if err := s.counter.Incr(ctx, ts.SubscriptionID, now); err != nil {
			log.Printf("triggering: counter subscription=%d error: %v", ts.SubscriptionID, err)
		}
	}
	log.Printf("triggering: created triggered=%d subscription=%d source=%s", saved.ID, saved.SubscriptionID, saved.Source)
	return saved, nil
}

// NumberedKey returns key_n.
func NumberedKey(key string, n int) string {
	return key + "_" + strconv.Itoa(n)
}

// MergeData returns the numbered entries to add to existing so that it holds
// every value of incoming. Values already present under key or any key_N are skipped.
func MergeData(existing, incoming map[string]string) map[string]string {
	added := make(map[string]string)
	keys := make([]string, 0, len(incoming))
	for k := range incoming {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := incoming[key]
		if hasValue(existing, key, value) {
			continue
		}
		n := 1
		for {
			nk := NumberedKey(key, n)
			_, taken := existing[nk]
			_, pending := added[nk]
			if !taken && !pending {
				added[nk] = value
				break
			}
			n++
		}
	}
	return added
}

// AccumulatedValues returns the values stored under key and key_N, ordered by N.
func AccumulatedValues(data map[string]string, key string) []string {
	type entry struct {
		n     int
		value string
	}
	var entries []entry
	for k, v := range data {
		if k == key {
			entries = append(entries, entry{0, v})
			continue
		}
		suffix, ok := strings.CutPrefix(k, key+"_")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(suffix)
		if err != nil || n < 1 {
			continue
		}
		entries = append(entries, entry{n, v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].n < entries[j].n })

	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.value
	}
	return out
}

func hasValue(data map[string]string, key, value string) bool {
	for _, v := range AccumulatedValues(data, key) {
		if v == value {
			return true
		}
	}
	return false
}

func numberAccumulated(data map[string]string, accumulate []string) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = v
	}
	for _, k := range accumulate {
		if v, ok := out[k]; ok {
			delete(out, k)
			out[NumberedKey(k, 1)] = v
		}
	}
	return out
}
