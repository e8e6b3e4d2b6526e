package ws

import (
	"context"
	"encoding/json"

	"github.com/Strob0t/licensed/internal/port/messagequeue"
)

// BroadcastEvent is a convenience method that marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}

// Relay returns a queue handler that forwards every lifecycle event to the
// connected dashboard clients. The NATS subject becomes the message type.
func (h *Hub) Relay() messagequeue.Handler {
	return func(ctx context.Context, subject string, data []byte) error {
		h.Broadcast(ctx, Message{Type: subject, Payload: json.RawMessage(data)})
		return nil
	}
}
