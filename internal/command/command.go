// Package command holds the independently executable units of work produced
// by extractors. A command captures everything it needs at construction.
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/domain"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/matching"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/paging"
)

type Command interface {
	Execute(ctx context.Context) error
	// Kind labels the command in logs and metrics.
	Kind() string
}

type Triggerer interface {
	TriggerUnlessDuplicate(ctx context.Context, ts domain.TriggeredSubscription, dupKeys []string) (bool, error)
	TriggerOrMerge(ctx context.Context, ts domain.TriggeredSubscription, dupKeys, accumulate []string) error
}

type StopEvaluator interface {
	Evaluate(ctx context.Context, c matching.StopCriteria) (int, error)
}

// Trigger saves a triggering unless an equivalent one is already active.
type Trigger struct {
	Triggerer     Triggerer
	Triggering    domain.TriggeredSubscription
	DuplicateKeys []string
}

func (c *Trigger) Kind() string { return "trigger" }

func (c *Trigger) Execute(ctx context.Context) error {
	_, err := c.Triggerer.TriggerUnlessDuplicate(ctx, c.Triggering, c.DuplicateKeys)
	return err
}

// TriggerAndMerge saves a triggering or folds its accumulated values into
// the already active ones.
type TriggerAndMerge struct {
	Triggerer     Triggerer
	Triggering    domain.TriggeredSubscription
	DuplicateKeys []string
	Accumulate    []string
}

func (c *TriggerAndMerge) Kind() string { return "trigger_and_merge" }

func (c *TriggerAndMerge) Execute(ctx context.Context) error {
	return c.Triggerer.TriggerOrMerge(ctx, c.Triggering, c.DuplicateKeys, c.Accumulate)
}

// Stop ends the open triggerings matched by Criteria.
type Stop struct {
	Evaluator StopEvaluator
	Criteria  matching.StopCriteria
}

func (c *Stop) Kind() string { return "stop" }

func (c *Stop) Execute(ctx context.Context) error {
	_, err := c.Evaluator.Evaluate(ctx, c.Criteria)
	return err
}

// NextPage requests the page after Current on the same chain.
type NextPage struct {
	Sender        paging.Sender
	Source        string
	Current       paging.Continuation
	CorrelationID string
	// ReceivedAt is carried along the chain so every page shares one occurrence.
	ReceivedAt time.Time
}

func (c *NextPage) Kind() string { return "next_page" }

func (c *NextPage) Execute(ctx context.Context) error {
	msg, err := paging.Message(c.Source, c.Current.Next(), c.CorrelationID, c.ReceivedAt)
	if err != nil {
		return fmt.Errorf("build next page request: %w", err)
	}
	if err := c.Sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send next page request: %w", err)
	}
	return nil
}
