// Package consumer implements the polling loop shared by the evaluator
// and dispatcher stages: batched receive, per-item isolation, batched
// acknowledgment of only the items that processed cleanly.
package consumer

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"coldchain-monitor/pipeline/internal/metrics"
	"coldchain-monitor/pipeline/internal/queue"
)

// ErrMalformed marks an item that can never parse into its expected
// shape. Handlers wrap it to request dead-lettering instead of the
// redelivery cycle an ordinary failure gets.
var ErrMalformed = errors.New("malformed queue item")

type Handler interface {
	Handle(ctx context.Context, d queue.Delivery) error
}

type HandlerFunc func(ctx context.Context, d queue.Delivery) error

func (f HandlerFunc) Handle(ctx context.Context, d queue.Delivery) error {
	return f(ctx, d)
}

type Consumer struct {
	source   queue.Source
	handler  Handler
	maxBatch int
	pollWait time.Duration
	backoff  time.Duration
	log      *zap.Logger
}

func New(
	source queue.Source,
	handler Handler,
	maxBatch int,
	pollWait, backoff time.Duration,
	log *zap.Logger,
) *Consumer {
	return &Consumer{
		source:   source,
		handler:  handler,
		maxBatch: maxBatch,
		pollWait: pollWait,
		backoff:  backoff,
		log:      log,
	}
}

// Run polls until ctx is canceled and returns ctx's error. Poll-level
// transport errors are logged and retried after a fixed backoff; they
// never terminate the loop.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := c.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.PollErrors.Add(1)
			c.log.Warn("poll failed, backing off",
				zap.Duration("backoff", c.backoff),
				zap.Error(err))
			if err := sleep(ctx, c.backoff); err != nil {
				return err
			}
		}
	}
}

// RunOnce performs a single poll/process/ack cycle. Exported so tests can
// drive a bounded number of iterations deterministically.
func (c *Consumer) RunOnce(ctx context.Context) error {
	deliveries, err := c.source.Poll(ctx, c.maxBatch, c.pollWait)
	if err != nil {
		return err
	}
	if len(deliveries) == 0 {
		return nil
	}

	acks := make([]string, 0, len(deliveries))
	for _, d := range deliveries {
		err := c.handler.Handle(ctx, d)
		switch {
		case err == nil:
			acks = append(acks, d.Token)

		case errors.Is(err, ErrMalformed):
			if dlErr := c.source.DeadLetter(ctx, d, err.Error()); dlErr != nil {
				// Token withheld; the item comes back after the
				// visibility deadline and gets dead-lettered then.
				c.log.Error("dead-letter failed", zap.String("token", d.Token), zap.Error(dlErr))
				continue
			}
			metrics.ItemsDeadLettered.Add(1)
			c.log.Warn("item dead-lettered", zap.String("token", d.Token), zap.Error(err))

		default:
			metrics.ItemFailures.Add(1)
			c.log.Warn("item failed, withholding ack for redelivery",
				zap.String("token", d.Token),
				zap.Error(err))
		}
	}

	return c.source.AckBatch(ctx, acks)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
