package lab

import (
	"context"
	"fmt"

	"github.com/pastejet/pastejet/internal/domain"
	"github.com/pastejet/pastejet/internal/infrastructure/logging"
	"github.com/pastejet/pastejet/internal/store"
)

// Channel is the signaling mailbox for one room. Messages are appended with
// Send and consumed by the addressee, who deletes each message after
// processing it. Delivery is at least once: a failed delete means the message
// shows up again on the next snapshot, so processing must be idempotent.
type Channel struct {
	store  store.Store
	roomID string
	logger logging.Logger
}

func NewChannel(st store.Store, roomID string, logger logging.Logger) *Channel {
	return &Channel{
		store:  st,
		roomID: roomID,
		logger: logger,
	}
}

// Send appends one signaling message. Fire and forget: the caller gets the
// error but there is no retry.
func (c *Channel) Send(ctx context.Context, sig *domain.Signal) error {
	if err := sig.Validate(); err != nil {
		return err
	}
	sig.RoomID = c.roomID

	data, err := store.Encode(sig)
	if err != nil {
		return err
	}

	if _, err := c.store.Add(ctx, store.RoomSignaling, data); err != nil {
		return fmt.Errorf("send %s signal: %w", sig.Kind, err)
	}
	return nil
}

// Ack deletes a processed message. Failures are logged and swallowed; the
// message will be redelivered and reprocessing must not corrupt state.
func (c *Channel) Ack(ctx context.Context, messageID string) {
	if err := c.store.Delete(ctx, store.RoomSignaling, messageID); err != nil && err != store.ErrNotFound {
		c.logger.Warn(logging.Lab, logging.Signaling, "failed to delete signaling message", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
			logging.RoomID:       c.roomID,
			"message_id":         messageID,
		})
	}
}

// SubscribeInbound delivers signaling messages addressed to self, in arrival
// order. The returned cancel func tears the subscription down.
func (c *Channel) SubscribeInbound(ctx context.Context, self string) (<-chan domain.Signal, func(), error) {
	sub, err := c.store.Subscribe(ctx, store.RoomSignaling, store.Query{
		Filters: []store.Filter{
			store.Where("room_id", store.OpEq, c.roomID),
			store.Where("to", store.OpEq, self),
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe signaling: %w", err)
	}

	out := make(chan domain.Signal, 64)
	go func() {
		defer close(out)
		for ev := range sub.Events() {
			if ev.Type == store.Removed {
				continue
			}

			var sig domain.Signal
			if err := ev.Doc.Decode(&sig); err != nil {
				c.logger.Error(logging.Lab, logging.Signaling, "malformed signaling message", map[logging.ExtraKey]any{
					logging.ErrorMessage: err.Error(),
					logging.RoomID:       c.roomID,
					"message_id":         ev.Doc.ID,
				})
				continue
			}
			sig.ID = ev.Doc.ID

			select {
			case out <- sig:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, sub.Close, nil
}
