package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Strob0t/licensed/internal/domain/event"
	"github.com/Strob0t/licensed/internal/logger"
	"github.com/Strob0t/licensed/internal/port/broadcast"
	"github.com/Strob0t/licensed/internal/port/messagequeue"
	"github.com/Strob0t/licensed/internal/resilience"
)

const publishTimeout = 2 * time.Second

// EventPublisher emits lifecycle events after a mutation has committed.
// Publishing is best effort: failures are logged and never reach the caller,
// and a circuit breaker stops hammering an unavailable broker.
type EventPublisher struct {
	queue   messagequeue.Queue
	breaker *resilience.Breaker
	local   broadcast.Broadcaster
}

// NewEventPublisher creates a publisher. A nil queue disables publishing.
func NewEventPublisher(queue messagequeue.Queue, breaker *resilience.Breaker) *EventPublisher {
	return &EventPublisher{queue: queue, breaker: breaker}
}

// WithLocal sets a broadcaster that receives events directly while no
// queue is configured. With a queue, the broadcaster is fed by a
// subscription instead.
func (p *EventPublisher) WithLocal(b broadcast.Broadcaster) *EventPublisher {
	p.local = b
	return p
}

// Publish sends payload on the subject named by t. The request's
// cancellation does not apply; the commit it reports has already happened.
func (p *EventPublisher) Publish(ctx context.Context, t event.Type, payload any) {
	if p == nil {
		return
	}
	if p.queue == nil {
		if p.local != nil {
			p.local.BroadcastEvent(context.WithoutCancel(ctx), string(t), payload)
		}
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal event", "type", t, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	publish := func() error { return p.queue.Publish(ctx, string(t), data) }
	if p.breaker != nil {
		err = p.breaker.Execute(publish)
	} else {
		err = publish()
	}
	if err != nil {
		logger.From(ctx).Warn("event publish failed", "type", t, "error", err)
	}
}

// requestID is a short alias used when stamping events.
func requestID(ctx context.Context) string {
	return logger.RequestID(ctx)
}
