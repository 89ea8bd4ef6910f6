package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pastejet/pastejet/internal/domain"
	"github.com/pastejet/pastejet/internal/infrastructure/logging"
	"github.com/pastejet/pastejet/internal/infrastructure/messaging"
)

func TestAuditPublisherNilIsSafe(t *testing.T) {
	ctx := context.Background()

	var p *AuditPublisher
	require.NotPanics(t, func() {
		p.RoomCreated(ctx, "ROOM42", "alice")
		p.MemberMuted(ctx, "ROOM42", "alice", "bob")
	})
	assert.NoError(t, p.Publish(ctx, "ROOM42", domain.EventRoomCreated, "alice", nil))

	disabled := NewAuditPublisher(nil, logging.NewNop())
	assert.NoError(t, disabled.Publish(ctx, "ROOM42", domain.EventRoomClosed, "alice", nil))
}

func TestAuditPublisherRejectsUnknownEventType(t *testing.T) {
	p := NewAuditPublisher(&messaging.RabbitMQ{}, logging.NewNop())

	err := p.Publish(context.Background(), "ROOM42", domain.RoomEventType("room.vanished"), "alice", nil)
	assert.ErrorIs(t, err, domain.ErrUnknownAuditEvent)
}

func TestAuditRoutingKeysCoverAllEvents(t *testing.T) {
	for _, ev := range []domain.RoomEventType{
		domain.EventRoomCreated,
		domain.EventRoomClosed,
		domain.EventMemberJoined,
		domain.EventMemberLeft,
		domain.EventMemberRemoved,
		domain.EventMemberMuted,
		domain.EventMemberUnmuted,
		domain.EventVersionSaved,
		domain.EventCodeExecuted,
		domain.EventSettingsChange,
	} {
		assert.Contains(t, routingKeys, ev)
	}
}
