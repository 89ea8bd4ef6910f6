package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/pastejet/pastejet/internal/auth"
	"github.com/pastejet/pastejet/internal/domain"
	"github.com/pastejet/pastejet/internal/infrastructure/json"
	"github.com/pastejet/pastejet/internal/infrastructure/logging"
	"github.com/pastejet/pastejet/internal/infrastructure/metrics"
	"github.com/pastejet/pastejet/internal/lab"
	"github.com/pastejet/pastejet/internal/rooms"
	"github.com/pastejet/pastejet/internal/store"
)

// Gateway upgrades authenticated requests into live room connections. Each
// connection runs its own lab.Session; fan-out between participants happens
// through store subscriptions, not an in-process hub, so multiple gateway
// instances can serve the same room.
type Gateway struct {
	store    store.Store
	rooms    *rooms.Service
	factory  lab.PeerFactory
	logger   logging.Logger
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
}

func NewGateway(st store.Store, roomsSvc *rooms.Service, factory lab.PeerFactory, logger logging.Logger, m *metrics.Metrics) *Gateway {
	return &Gateway{
		store:   st,
		rooms:   roomsSvc,
		factory: factory,
		logger:  logger,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// HandleRoom joins the caller to the room, upgrades the connection, and
// streams room state until either side disconnects. Join is idempotent, so
// reconnecting clients pass through it again.
func (g *Gateway) HandleRoom(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		json.WriteError(w, http.StatusUnauthorized, nil, "authentication required")
		return
	}

	roomID := chi.URLParam(r, "roomID")
	if _, err := g.rooms.Join(r.Context(), roomID, identity.UserID, r.URL.Query().Get("password")); err != nil {
		switch {
		case errors.Is(err, domain.ErrRoomNotFound):
			json.WriteError(w, http.StatusNotFound, err, "room not found")
		case errors.Is(err, domain.ErrWrongPassword):
			json.WriteError(w, http.StatusForbidden, err, "incorrect password")
		case errors.Is(err, domain.ErrRoomInactive):
			json.WriteError(w, http.StatusGone, err, "room is closed")
		default:
			json.WriteError(w, http.StatusInternalServerError, err, "failed to join room")
		}
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn(logging.Lab, logging.LiveQuery, "websocket upgrade failed",
			map[logging.ExtraKey]any{logging.RoomID: roomID, logging.ErrorMessage: err.Error()})
		return
	}

	g.serve(conn, roomID, identity)
}

func (g *Gateway) serve(conn *websocket.Conn, roomID string, identity auth.Identity) {
	ctx, cancel := context.WithCancel(context.Background())

	client := NewClient(conn, identity.UserID, roomID, identity.DisplayName, nil, g.rooms, g.logger)

	session := lab.NewSession(lab.SessionOptions{
		Store:       g.store,
		RoomID:      roomID,
		UserID:      identity.UserID,
		DisplayName: identity.DisplayName,
		Factory:     g.factory,
		Logger:      g.logger,
		Metrics:     g.metrics,
		OnContent: func(text string) {
			client.Send(NewContentSync(roomID, text))
		},
		OnClosed: func() {
			client.Send(NewRoomClosed(roomID))
			client.shutdown()
		},
	})
	client.session = session

	if err := session.Start(ctx); err != nil {
		g.logger.Error(logging.Lab, logging.LiveQuery, "session start failed",
			map[logging.ExtraKey]any{logging.RoomID: roomID, logging.ErrorMessage: err.Error()})
		_ = conn.WriteJSON(NewError(roomID, "failed to attach to room"))
		_ = conn.Close()
		cancel()
		return
	}

	// Initial buffer before any live event.
	client.Send(NewContentSync(roomID, session.Content()))

	g.forwardCursors(ctx, client)
	g.forwardPresence(ctx, client)
	g.forwardChat(ctx, client)

	go client.WriteLoop()
	client.ReadLoop(ctx, cancel)

	session.Stop()
}

func (g *Gateway) forwardCursors(ctx context.Context, client *Client) {
	g.forward(ctx, client, store.RoomCursors, func(ev store.Event) *WSMessage {
		return translateCursorEvent(client, ev)
	})
}

func translateCursorEvent(client *Client, ev store.Event) *WSMessage {
	userID, ok := docUser(ev.Doc.ID, client.RoomID)
	if !ok || userID == client.UserID {
		return nil
	}
	if ev.Type == store.Removed {
		return NewCursorRemoved(client.RoomID, userID)
	}

	var cursor domain.Cursor
	if err := ev.Doc.Decode(&cursor); err != nil {
		return nil
	}
	return NewCursorUpdate(client.RoomID, cursor)
}

func (g *Gateway) forwardPresence(ctx context.Context, client *Client) {
	g.forward(ctx, client, store.RoomPresence, func(ev store.Event) *WSMessage {
		return translatePresenceEvent(client, ev)
	})
}

func translatePresenceEvent(client *Client, ev store.Event) *WSMessage {
	userID, ok := docUser(ev.Doc.ID, client.RoomID)
	if !ok {
		return nil
	}
	if ev.Type == store.Removed {
		return NewPresenceRemoved(client.RoomID, userID)
	}

	var presence domain.Presence
	if err := ev.Doc.Decode(&presence); err != nil {
		return nil
	}
	return NewPresenceUpdate(client.RoomID, presence)
}

func (g *Gateway) forward(ctx context.Context, client *Client, collection string, translate func(store.Event) *WSMessage) {
	sub, err := g.store.Subscribe(ctx, collection, store.Query{
		Filters: []store.Filter{store.Where("room_id", store.OpEq, client.RoomID)},
	})
	if err != nil {
		g.logger.Error(logging.Lab, logging.LiveQuery, "subscription failed",
			map[logging.ExtraKey]any{logging.RoomID: client.RoomID, logging.ErrorMessage: err.Error()})
		return
	}

	g.metrics.LiveSubscriptions.Inc()
	go func() {
		defer g.metrics.LiveSubscriptions.Dec()
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				if msg := translate(ev); msg != nil {
					client.Send(msg)
				}
			}
		}
	}()
}

func (g *Gateway) forwardChat(ctx context.Context, client *Client) {
	msgCh, unsubscribe, err := g.rooms.SubscribeMessages(ctx, client.RoomID)
	if err != nil {
		g.logger.Error(logging.Lab, logging.LiveQuery, "chat subscription failed",
			map[logging.ExtraKey]any{logging.RoomID: client.RoomID, logging.ErrorMessage: err.Error()})
		return
	}

	g.metrics.LiveSubscriptions.Inc()
	go func() {
		defer g.metrics.LiveSubscriptions.Dec()
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgCh:
				if !ok {
					return
				}
				client.Send(NewChatReceived(client.RoomID, m))
			}
		}
	}()
}

// Per-user documents are keyed "roomID:userID".
// docUser extracts the user part of a "roomID:userID" doc key. Delete events
// come through unfiltered on the mongo store, so a doc from another room
// reports ok=false and must be dropped, not forwarded.
func docUser(docID, roomID string) (string, bool) {
	prefix := roomID + ":"
	if !strings.HasPrefix(docID, prefix) {
		return "", false
	}
	return strings.TrimPrefix(docID, prefix), true
}
