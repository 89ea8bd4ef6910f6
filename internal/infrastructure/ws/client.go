package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pastejet/pastejet/internal/infrastructure/logging"
	"github.com/pastejet/pastejet/internal/lab"
	"github.com/pastejet/pastejet/internal/rooms"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Max inbound frame; room buffers are capped well below this.
	maxMessageSize = 1 << 20
)

type Client struct {
	conn    *connWrapper
	Message chan *WSMessage

	UserID      string
	RoomID      string
	DisplayName string

	session *lab.Session
	rooms   *rooms.Service
	logger  logging.Logger

	closeOnce sync.Once
	done      chan struct{}
}

func NewClient(conn *websocket.Conn, userID, roomID, displayName string, session *lab.Session, roomsSvc *rooms.Service, logger logging.Logger) *Client {
	return &Client{
		conn:        newConnWrapper(conn),
		Message:     make(chan *WSMessage, 64), // buffered to avoid dead-locks on slow clients
		UserID:      userID,
		RoomID:      roomID,
		DisplayName: displayName,
		session:     session,
		rooms:       roomsSvc,
		logger:      logger,
		done:        make(chan struct{}),
	}
}

// Send queues a message for the client, dropping it when the buffer is full.
func (c *Client) Send(msg *WSMessage) {
	select {
	case <-c.done:
	case c.Message <- msg:
	default:
		c.logger.Warn(logging.Lab, logging.LiveQuery, "client buffer full, dropping message",
			map[logging.ExtraKey]any{logging.RoomID: c.RoomID, "Type": msg.Type})
	}
}

func (c *Client) CloseNotify() <-chan struct{} {
	return c.done
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// ReadLoop blocks until the connection drops, dispatching each command to
// the session. cancel unwinds everything the gateway attached to this
// connection.
func (c *Client) ReadLoop(ctx context.Context, cancel context.CancelFunc) {
	defer func() {
		cancel()
		c.shutdown()
	}()

	c.conn.conn.SetReadLimit(maxMessageSize)
	c.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.conn.SetPongHandler(func(string) error {
		return c.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn(logging.Lab, logging.LiveQuery, "websocket read failed",
					map[logging.ExtraKey]any{logging.RoomID: c.RoomID, logging.ErrorMessage: err.Error()})
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			c.Send(NewError(c.RoomID, "malformed command"))
			continue
		}

		if err := c.handleCommand(ctx, cmd); err != nil {
			c.Send(NewError(c.RoomID, err.Error()))
		}
	}
}

func (c *Client) handleCommand(ctx context.Context, cmd Command) error {
	switch cmd.Type {
	case CmdContentUpdate:
		var p ContentPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		c.session.UpdateContent(ctx, p.Content)
		return nil

	case CmdCursorMove:
		var p CursorMovePayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		return c.session.UpdateCursor(ctx, p.Offset)

	case CmdChatSend:
		var p ChatSendPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		_, err := c.rooms.SendMessage(ctx, c.RoomID, c.UserID, c.DisplayName, p.Content)
		return err

	case CmdAudioStart:
		if err := c.session.StartAudio(ctx); err != nil {
			return err
		}
		c.Send(NewAudioPeers(c.RoomID, c.session.ActivePeers()))
		return nil

	case CmdAudioStop:
		return c.session.StopAudio(ctx)

	case CmdAudioMute:
		c.session.ToggleMute()
		c.Send(&WSMessage{Type: CmdAudioMute, RoomID: c.RoomID, Data: MutePayload{Muted: c.session.Muted()}})
		return nil

	case CmdVolumeSet:
		var p VolumePayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		c.session.SetVolume(p.Peer, p.Volume)
		return nil

	default:
		c.Send(NewError(c.RoomID, "unknown command: "+cmd.Type))
		return nil
	}
}

// WriteLoop drains the outbound buffer and keeps the connection alive with
// pings.
func (c *Client) WriteLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.shutdown()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.Message:
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(); err != nil {
				return
			}
		}
	}
}
