// Package consumer reads triggering messages from the transport, extracts
// commands with the extractor registered for the message source and runs them.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/command"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/domain"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/extractor"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/metrics"
)

// ErrUnknownSource is returned by Handle when no extractor serves the message source.
var ErrUnknownSource = errors.New("no extractor for source")

// DefaultDrainTimeout is the maximum time to wait for buffered messages during shutdown.
const DefaultDrainTimeout = 30 * time.Second

type Registry interface {
	Lookup(source string) (extractor.Extractor, bool)
}

type Consumer struct {
	registry     Registry
	metrics      metrics.Sink
	clock        func() time.Time
	drainTimeout time.Duration
}

func New(registry Registry) *Consumer {
	return &Consumer{
		registry:     registry,
		metrics:      metrics.NewNoopSink(),
		clock:        time.Now,
		drainTimeout: DefaultDrainTimeout,
	}
}

// WithMetrics attaches a metrics sink to the consumer.
func (c *Consumer) WithMetrics(sink metrics.Sink) *Consumer {
	c.metrics = sink
	return c
}

func (c *Consumer) WithDrainTimeout(d time.Duration) *Consumer {
	c.drainTimeout = d
	return c
}

// Run starts workers goroutines reading ch and blocks until ctx is cancelled
// and every worker has drained.
func (c *Consumer) Run(ctx context.Context, ch <-chan domain.Message, workers int) error {
	if workers < 1 {
		workers = 1
	}
	log.Printf("consumer: started workers=%d", workers)

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			c.work(ctx, ch)
			return nil
		})
	}
	err := g.Wait()
	log.Println("consumer: stopped")
	return err
}

func (c *Consumer) work(ctx context.Context, ch <-chan domain.Message) {
	for {
		select {
		case <-ctx.Done():
			c.drain(ch)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := c.Handle(ctx, msg); err != nil {
				log.Printf("consumer: message=%s source=%s error: %v", msg.ID, msg.Source, err)
			}
		}
	}
}

// drain processes messages still buffered after shutdown.
// Uses a background context since the main context is already cancelled.
func (c *Consumer) drain(ch <-chan domain.Message) {
	drainCtx, cancel := context.WithTimeout(context.Background(), c.drainTimeout)
	defer cancel()

	count := 0
	for {
		select {
		case <-drainCtx.Done():
			if count > 0 {
				log.Printf("consumer: drain timeout, processed %d messages", count)
			}
			return
		case msg, ok := <-ch:
			if !ok {
				log.Printf("consumer: drain complete, processed %d messages", count)
				return
			}
			if err := c.Handle(drainCtx, msg); err != nil {
				log.Printf("consumer: drain message=%s error: %v", msg.ID, err)
			}
			count++
		default:
			if count > 0 {
				log.Printf("consumer: drain complete, processed %d messages", count)
			}
			return
		}
	}
}

// Handle extracts and executes the commands of one message. Every command
// runs even when a sibling fails; the failures are joined.
func (c *Consumer) Handle(ctx context.Context, msg domain.Message) error {
	c.metrics.MessagesInFlightIncr()
	defer c.metrics.MessagesInFlightDecr()

	ex, ok := c.registry.Lookup(msg.Source)
	if !ok {
		c.metrics.MessageConsumed(msg.Source, metrics.OutcomeUnknownSource)
		return fmt.Errorf("%w %q", ErrUnknownSource, msg.Source)
	}

	receptionTime := msg.ReceivedAt
	if receptionTime.IsZero() {
		receptionTime = c.clock().UTC()
	}

	cmds, err := ex.ExtractCommands(ctx, msg.Payload, msg.Sender, msg.CorrelationID, receptionTime)
	if err != nil {
		outcome := metrics.OutcomeFailed
		if errors.Is(err, domain.ErrMalformed) {
			outcome = metrics.OutcomeMalformed
		}
		c.metrics.MessageConsumed(msg.Source, outcome)
		return fmt.Errorf("extract commands: %w", err)
	}

	if err := c.execute(ctx, cmds); err != nil {
		c.metrics.MessageConsumed(msg.Source, metrics.OutcomeFailed)
		return err
	}

	c.metrics.MessageConsumed(msg.Source, metrics.OutcomeHandled)
	return nil
}

func (c *Consumer) execute(ctx context.Context, cmds []command.Command) error {
	var errs []error
	for _, cmd := range cmds {
		start := time.Now()
		err := cmd.Execute(ctx)
		c.metrics.CommandExecuted(cmd.Kind(), time.Since(start), err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", cmd.Kind(), err))
		}
	}
	return errors.Join(errs...)
}
