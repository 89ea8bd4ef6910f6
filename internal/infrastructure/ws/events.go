package ws

// Events pushed to the client.
const (
	ContentSync     = "content.sync"
	CursorUpdate    = "cursor.update"
	CursorRemoved   = "cursor.removed"
	ChatReceived    = "chat.message"
	PresenceUpdate  = "presence.update"
	PresenceRemoved = "presence.removed"
	AudioPeers      = "audio.peers"
	RoomClosed      = "room.closed"

	ErrorEvent = "error"
)

// Commands accepted from the client.
const (
	CmdContentUpdate = "content.update"
	CmdCursorMove    = "cursor.move"
	CmdChatSend      = "chat.send"
	CmdAudioStart    = "audio.start"
	CmdAudioStop     = "audio.stop"
	CmdAudioMute     = "audio.mute"
	CmdVolumeSet     = "volume.set"
)
