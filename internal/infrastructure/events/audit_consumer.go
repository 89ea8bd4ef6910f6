package events

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/pastejet/pastejet/internal/domain"
	"github.com/pastejet/pastejet/internal/infrastructure/contracts"
	"github.com/pastejet/pastejet/internal/infrastructure/logging"
	"github.com/pastejet/pastejet/internal/infrastructure/messaging"
)

// auditConsumer drains the audit queue into the audit log collection.
type auditConsumer struct {
	rabbitmq *messaging.RabbitMQ
	repo     domain.RoomAuditRepository
	logger   logging.Logger
}

func NewAuditConsumer(rabbitmq *messaging.RabbitMQ, repo domain.RoomAuditRepository, logger logging.Logger) *auditConsumer {
	return &auditConsumer{
		rabbitmq: rabbitmq,
		repo:     repo,
		logger:   logger,
	}
}

func (c *auditConsumer) Listen() error {
	return c.rabbitmq.ConsumeMessages(messaging.AuditQueue, func(ctx context.Context, msg amqp.Delivery) error {
		var message contracts.AmqpMessage
		if err := json.Unmarshal(msg.Body, &message); err != nil {
			c.logger.Error(logging.RabbitMQ, logging.Consume, "malformed envelope",
				map[logging.ExtraKey]any{logging.ErrorMessage: err.Error()})
			return err
		}

		var payload messaging.AuditEventData
		if err := json.Unmarshal(message.Data, &payload); err != nil {
			c.logger.Error(logging.RabbitMQ, logging.Consume, "malformed audit payload",
				map[logging.ExtraKey]any{logging.ErrorMessage: err.Error(), logging.RoomID: message.RoomID})
			return err
		}

		metadata := payload.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata["actor_id"] = payload.ActorID

		entry := domain.NewRoomAuditLog(payload.RoomID, payload.EventType, metadata)
		if err := c.repo.Log(ctx, entry); err != nil {
			return err
		}

		c.logger.Debug(logging.RabbitMQ, logging.Consume, "audit event recorded",
			map[logging.ExtraKey]any{logging.RoomID: payload.RoomID, logging.RoutingKey: msg.RoutingKey})

		return nil
	})
}
