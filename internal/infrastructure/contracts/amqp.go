package contracts

// AmqpMessage is the envelope every broker message travels in. Data carries
// the event-specific JSON payload.
type AmqpMessage struct {
	RoomID string `json:"roomId"`
	Data   []byte `json:"data"`
}

// Routing keys follow a resource.action pattern so queues can bind with
// wildcards like "member.*".
const (
	EventRoomCreated     = "room.created"
	EventRoomClosed      = "room.closed"
	EventMemberJoined    = "member.joined"
	EventMemberLeft      = "member.left"
	EventMemberRemoved   = "member.removed"
	EventMemberMuted     = "member.muted"
	EventMemberUnmuted   = "member.unmuted"
	EventVersionSaved    = "version.saved"
	EventCodeExecuted    = "code.executed"
	EventSettingsChanged = "settings.changed"
)
