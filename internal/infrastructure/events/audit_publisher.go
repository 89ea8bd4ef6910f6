package events

import (
	"context"
	"encoding/json"

	"github.com/pastejet/pastejet/internal/domain"
	"github.com/pastejet/pastejet/internal/infrastructure/contracts"
	"github.com/pastejet/pastejet/internal/infrastructure/logging"
	"github.com/pastejet/pastejet/internal/infrastructure/messaging"
)

// routingKeys maps each room event to its broker routing key.
var routingKeys = map[domain.RoomEventType]string{
	domain.EventRoomCreated:    contracts.EventRoomCreated,
	domain.EventRoomClosed:     contracts.EventRoomClosed,
	domain.EventMemberJoined:   contracts.EventMemberJoined,
	domain.EventMemberLeft:     contracts.EventMemberLeft,
	domain.EventMemberRemoved:  contracts.EventMemberRemoved,
	domain.EventMemberMuted:    contracts.EventMemberMuted,
	domain.EventMemberUnmuted:  contracts.EventMemberUnmuted,
	domain.EventVersionSaved:   contracts.EventVersionSaved,
	domain.EventCodeExecuted:   contracts.EventCodeExecuted,
	domain.EventSettingsChange: contracts.EventSettingsChanged,
}

// AuditPublisher fans room lifecycle events out to the broker. A nil
// publisher drops everything, so callers never have to guard for a
// deployment without RabbitMQ.
type AuditPublisher struct {
	rabbitmq *messaging.RabbitMQ
	logger   logging.Logger
}

func NewAuditPublisher(rabbitmq *messaging.RabbitMQ, logger logging.Logger) *AuditPublisher {
	return &AuditPublisher{
		rabbitmq: rabbitmq,
		logger:   logger,
	}
}

// Publish logs its own failures: audit events ride alongside the request
// that caused them and must never fail it. The error return is for tests
// and callers that do care.
func (p *AuditPublisher) Publish(ctx context.Context, roomID string, eventType domain.RoomEventType, actorID string, metadata map[string]any) error {
	if p == nil || p.rabbitmq == nil {
		return nil
	}

	key, ok := routingKeys[eventType]
	if !ok {
		p.logger.Error(logging.RabbitMQ, logging.Publish, "unknown audit event type", map[logging.ExtraKey]any{
			logging.RoomID: roomID,
			"event_type":   string(eventType),
		})
		return domain.ErrUnknownAuditEvent
	}

	payload := messaging.AuditEventData{
		RoomID:    roomID,
		EventType: eventType,
		ActorID:   actorID,
		Metadata:  metadata,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if err := p.rabbitmq.PublishMessage(ctx, key, contracts.AmqpMessage{
		RoomID: roomID,
		Data:   data,
	}); err != nil {
		p.logger.Error(logging.RabbitMQ, logging.Publish, "audit publish failed", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.RoutingKey:   key,
			logging.ErrorMessage: err.Error(),
		})
		return err
	}
	return nil
}

func (p *AuditPublisher) RoomCreated(ctx context.Context, roomID, actorID string) {
	p.Publish(ctx, roomID, domain.EventRoomCreated, actorID, nil)
}

func (p *AuditPublisher) RoomClosed(ctx context.Context, roomID, actorID string) {
	p.Publish(ctx, roomID, domain.EventRoomClosed, actorID, nil)
}

func (p *AuditPublisher) MemberJoined(ctx context.Context, roomID, userID string) {
	p.Publish(ctx, roomID, domain.EventMemberJoined, userID, nil)
}

func (p *AuditPublisher) MemberLeft(ctx context.Context, roomID, userID string) {
	p.Publish(ctx, roomID, domain.EventMemberLeft, userID, nil)
}

func (p *AuditPublisher) MemberRemoved(ctx context.Context, roomID, actorID, userID string) {
	p.Publish(ctx, roomID, domain.EventMemberRemoved, actorID, map[string]any{"user_id": userID})
}

func (p *AuditPublisher) MemberMuted(ctx context.Context, roomID, actorID, userID string) {
	p.Publish(ctx, roomID, domain.EventMemberMuted, actorID, map[string]any{"user_id": userID})
}

func (p *AuditPublisher) MemberUnmuted(ctx context.Context, roomID, actorID, userID string) {
	p.Publish(ctx, roomID, domain.EventMemberUnmuted, actorID, map[string]any{"user_id": userID})
}

func (p *AuditPublisher) VersionSaved(ctx context.Context, roomID, actorID, versionID string) {
	p.Publish(ctx, roomID, domain.EventVersionSaved, actorID, map[string]any{"version_id": versionID})
}

func (p *AuditPublisher) CodeExecuted(ctx context.Context, roomID, actorID, language string) {
	p.Publish(ctx, roomID, domain.EventCodeExecuted, actorID, map[string]any{"language": language})
}

func (p *AuditPublisher) SettingsChanged(ctx context.Context, roomID, actorID string) {
	p.Publish(ctx, roomID, domain.EventSettingsChange, actorID, nil)
}
