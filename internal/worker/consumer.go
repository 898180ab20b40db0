package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/review-monitor/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// TriggerConsumer delivers on-demand "run now" messages
type TriggerConsumer interface {
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
	Cancel(consumerTag string) error
}

// consumeTriggers runs an ingestion for every trigger delivered until ctx is
// done or the delivery channel closes.
func (w *Worker) consumeTriggers(ctx context.Context, deliveries <-chan amqp.Delivery) {
	w.logger.Info("Trigger consumer started", slog.String("consumer_tag", w.consumerTag))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Trigger consumer stopped - context canceled")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed")
				return
			}
			w.handleDelivery(ctx, delivery)
		}
	}
}

func (w *Worker) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	msg, err := parseJobMessage(delivery)
	if err == nil {
		err = w.runIngestion(ctx, "trigger:"+msg.RequestedBy)
	}

	if err != nil && !shouldAck(err) {
		w.logger.Error("Rejecting trigger message",
			slog.Uint64("delivery_tag", delivery.DeliveryTag),
			slog.String("error", err.Error()),
		)
		if nackErr := delivery.Nack(false, false); nackErr != nil {
			w.logger.Error("Failed to NACK message", slog.String("error", nackErr.Error()))
		}
		return
	}

	if ackErr := delivery.Ack(false); ackErr != nil {
		w.logger.Error("Failed to ACK message", slog.String("error", ackErr.Error()))
	}
}

func parseJobMessage(delivery amqp.Delivery) (*domain.JobMessage, error) {
	var msg domain.JobMessage
	if err := json.Unmarshal(delivery.Body, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if msg.JobType != domain.JobTypeReviewFetch {
		return nil, fmt.Errorf("%w: unsupported job type %q", domain.ErrInvalidPayload, msg.JobType)
	}
	msg.DeliveryTag = delivery.DeliveryTag
	return &msg, nil
}

// shouldAck reports whether a trigger that ended with err is done with.
// A failed run is already recorded in the job log and is not redelivered.
func shouldAck(err error) bool {
	return !errors.Is(err, domain.ErrInvalidPayload)
}
