package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/domain"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/matching"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/paging"
)

type mockTriggerer struct {
	unlessDup []domain.TriggeredSubscription
	merged    [][]string
	err       error
}

func (m *mockTriggerer) TriggerUnlessDuplicate(ctx context.Context, ts domain.TriggeredSubscription, dupKeys []string) (bool, error) {
	m.unlessDup = append(m.unlessDup, ts)
	return m.err == nil, m.err
}

func (m *mockTriggerer) TriggerOrMerge(ctx context.Context, ts domain.TriggeredSubscription, dupKeys, accumulate []string) error {
	m.merged = append(m.merged, accumulate)
	return m.err
}

type mockEvaluator struct {
	criteria []matching.StopCriteria
}

func (m *mockEvaluator) Evaluate(ctx context.Context, c matching.StopCriteria) (int, error) {
	m.criteria = append(m.criteria, c)
	return 1, nil
}

type recordingSender struct {
	msgs []domain.Message
	err  error
}

func (s *recordingSender) Send(ctx context.Context, msg domain.Message) error {
	if s.err != nil {
		return s.err
	}
	s.msgs = append(s.msgs, msg)
	return nil
}

func TestTrigger_Execute(t *testing.T) {
	tr := &mockTriggerer{}
	cmd := &Trigger{Triggerer: tr, Triggering: domain.TriggeredSubscription{SubscriptionID: 4}}

	require.NoError(t, cmd.Execute(context.Background()))
	require.Len(t, tr.unlessDup, 1)
	assert.Equal(t, int64(4), tr.unlessDup[0].SubscriptionID)
	assert.Equal(t, "trigger", cmd.Kind())
}

func TestTrigger_PropagatesError(t *testing.T) {
	tr := &mockTriggerer{err: errors.New("store down")}
	cmd := &Trigger{Triggerer: tr}
	assert.ErrorContains(t, cmd.Execute(context.Background()), "store down")
}

func TestTriggerAndMerge_Execute(t *testing.T) {
	tr := &mockTriggerer{}
	cmd := &TriggerAndMerge{Triggerer: tr, Accumulate: []string{domain.DataKeyReportID}}

	require.NoError(t, cmd.Execute(context.Background()))
	assert.Equal(t, [][]string{{domain.DataKeyReportID}}, tr.merged)
}

func TestStop_Execute(t *testing.T) {
	ev := &mockEvaluator{}
	cmd := &Stop{Evaluator: ev, Criteria: matching.StopCriteria{ConnectID: "asset-1"}}

	require.NoError(t, cmd.Execute(context.Background()))
	require.Len(t, ev.criteria, 1)
	assert.Equal(t, "asset-1", ev.criteria[0].ConnectID)
}

func TestNextPage_SendsFollowingPage(t *testing.T) {
	sender := &recordingSender{}
	receivedAt := time.Date(2020, 5, 5, 12, 0, 0, 0, time.UTC)
	cmd := &NextPage{
		Sender:        sender,
		Source:        domain.SourceScheduled,
		Current:       paging.ForGroup(7, "greece", 10),
		CorrelationID: "corr-1",
		ReceivedAt:    receivedAt,
	}

	require.NoError(t, cmd.Execute(context.Background()))
	require.Len(t, sender.msgs, 1)

	msg := sender.msgs[0]
	assert.Equal(t, "g;7;greece;2;10", msg.Payload)
	assert.Equal(t, domain.SourceScheduled, msg.Source)
	assert.Equal(t, domain.DestinationTriggering, msg.Destination)
	assert.Equal(t, "corr-1", msg.CorrelationID)
	assert.Equal(t, receivedAt, msg.ReceivedAt)
}

func TestNextPage_SendError(t *testing.T) {
	cmd := &NextPage{
		Sender:  &recordingSender{err: errors.New("queue full")},
		Source:  domain.SourceManual,
		Current: paging.ForOwnAssets(7, 10),
	}
	assert.ErrorContains(t, cmd.Execute(context.Background()), "queue full")
}
