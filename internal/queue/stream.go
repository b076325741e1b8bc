package queue

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Delivery is one queued item handed to a consumer. Token is the opaque
// acknowledgment token (the stream entry ID); it stays valid until the
// item's visibility deadline elapses and the entry becomes claimable by
// any consumer again.
type Delivery struct {
	Token string
	Body  []byte
}

// Source is the consuming side of a queue.
//
// Poll blocks up to wait for at least one item and returns 0..max items;
// an empty result is a normal outcome, not an error. AckBatch removes all
// given tokens in one call; tokens withheld from the batch make their items
// eligible for redelivery once the visibility deadline elapses. DeadLetter
// parks an unparseable item on the side and acknowledges it.
type Source interface {
	Poll(ctx context.Context, max int, wait time.Duration) ([]Delivery, error)
	AckBatch(ctx context.Context, tokens []string) error
	DeadLetter(ctx context.Context, d Delivery, reason string) error
}

// Sink is the producing side of a queue.
type Sink interface {
	Publish(ctx context.Context, body []byte) error
}

// Stream is an at-least-once queue on a Redis stream with a consumer
// group. Delivered-but-unacked entries sit in the group's pending list;
// Poll reclaims entries idle past the visibility timeout before reading
// new ones, which is what makes unacked items reappear.
type Stream struct {
	client     *redis.Client
	stream     string
	group      string
	consumer   string
	visibility time.Duration
	retention  time.Duration
}

func NewStream(
	ctx context.Context,
	client *redis.Client,
	stream, group, consumer string,
	visibility, retention time.Duration,
) (*Stream, error) {
	err := client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("create group %s on %s: %w", group, stream, err)
	}

	return &Stream{
		client:     client,
		stream:     stream,
		group:      group,
		consumer:   consumer,
		visibility: visibility,
		retention:  retention,
	}, nil
}

func (s *Stream) Name() string {
	return s.stream
}

func (s *Stream) Publish(ctx context.Context, body []byte) error {
	// Stream entry IDs are millisecond timestamps, so trimming by MinID
	// implements time-based retention.
	minID := strconv.FormatInt(time.Now().Add(-s.retention).UnixMilli(), 10)

	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MinID:  minID,
		Approx: true,
		Values: map[string]interface{}{"body": body},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", s.stream, err)
	}
	return nil
}

func (s *Stream) Poll(ctx context.Context, max int, wait time.Duration) ([]Delivery, error) {
	// Reclaim first: entries another consumer received but never acked
	// within the visibility timeout are delivered here again.
	claimed, _, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   s.stream,
		Group:    s.group,
		Consumer: s.consumer,
		MinIdle:  s.visibility,
		Start:    "0",
		Count:    int64(max),
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("claim pending on %s: %w", s.stream, err)
	}

	deliveries := make([]Delivery, 0, max)
	for _, msg := range claimed {
		deliveries = append(deliveries, toDelivery(msg))
	}
	if len(deliveries) >= max {
		return deliveries, nil
	}

	// Only block when the reclaim produced nothing; a negative Block
	// makes XREADGROUP return immediately.
	block := wait
	if len(deliveries) > 0 {
		block = -1
	}

	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{s.stream, ">"},
		Count:    int64(max - len(deliveries)),
		Block:    block,
	}).Result()
	if err == redis.Nil {
		return deliveries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.stream, err)
	}

	for _, str := range streams {
		for _, msg := range str.Messages {
			deliveries = append(deliveries, toDelivery(msg))
		}
	}
	return deliveries, nil
}

func (s *Stream) AckBatch(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	if err := s.client.XAck(ctx, s.stream, s.group, tokens...).Err(); err != nil {
		return fmt.Errorf("ack %d on %s: %w", len(tokens), s.stream, err)
	}
	return nil
}

// DeadLetter moves an unparseable item to <stream>:dead and acks it.
// Parse failures are deterministic, so letting the entry cycle through
// redelivery would only repeat the same outcome.
func (s *Stream) DeadLetter(ctx context.Context, d Delivery, reason string) error {
	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream + ":dead",
		Values: map[string]interface{}{
			"body":   d.Body,
			"reason": reason,
			"source": s.stream,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("dead-letter on %s: %w", s.stream, err)
	}
	return s.AckBatch(ctx, []string{d.Token})
}

func toDelivery(msg redis.XMessage) Delivery {
	body, _ := msg.Values["body"].(string)
	return Delivery{Token: msg.ID, Body: []byte(body)}
}
