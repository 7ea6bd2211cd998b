package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

type MessageHandler interface {
	Handle(ctx context.Context, msg *sarama.ConsumerMessage) error
}

// DefaultRetryBackoff is used between attempts at one failing message.
var DefaultRetryBackoff = []time.Duration{200 * time.Millisecond, time.Second, 5 * time.Second}

// Consumer runs a consumer group over the maintenance feed. A failing
// message is retried in place with Backoff; once the attempts are spent it
// is logged and committed so the partition keeps moving.
type Consumer struct {
	group   sarama.ConsumerGroup
	handler MessageHandler
	logger  *slog.Logger
	backoff []time.Duration
}

func NewConsumer(brokers []string, groupID string, cfg *sarama.Config, handler MessageHandler, logger *slog.Logger) (*Consumer, error) {
	cfg = baseConfig(cfg)
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	g, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{group: g, handler: handler, logger: logger, backoff: DefaultRetryBackoff}, nil
}

func (c *Consumer) Run(ctx context.Context, topics []string) error {
	h := claimHandler{handler: c.handler, logger: c.logger, backoff: c.backoff}
	for {
		if err := c.group.Consume(ctx, topics, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

type claimHandler struct {
	handler MessageHandler
	logger  *slog.Logger
	backoff []time.Duration
}

func (h claimHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h claimHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h claimHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for message := range claim.Messages() {
		if err := h.deliver(ctx, message); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			h.logger.ErrorContext(ctx, "kafka message abandoned",
				"topic", message.Topic, "partition", message.Partition, "offset", message.Offset, "error", err)
		}
		sess.MarkMessage(message, "")
	}
	return nil
}

// deliver hands msg to the handler, retrying after each configured pause.
func (h claimHandler) deliver(ctx context.Context, msg *sarama.ConsumerMessage) error {
	err := h.handler.Handle(ctx, msg)
	for _, pause := range h.backoff {
		if err == nil {
			return nil
		}
		h.logger.WarnContext(ctx, "kafka message failed, retrying",
			"topic", msg.Topic, "offset", msg.Offset, "retry_in", pause, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause):
		}
		err = h.handler.Handle(ctx, msg)
	}
	return err
}
