package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"renthub/internal/models"

	"github.com/segmentio/kafka-go"
)

// NotificationHandler consumes order notification events.
type NotificationHandler func(ctx context.Context, event *models.OrderNotification) error

// EventRouter decodes broker messages and routes them to the registered
// notification handler.
type EventRouter struct {
	onNotification NotificationHandler
}

// NewEventRouter creates an event router
func NewEventRouter() *EventRouter {
	return &EventRouter{}
}

// OnNotification registers the handler for order notification events.
func (r *EventRouter) OnNotification(handler NotificationHandler) {
	r.onNotification = handler
}

// HandleMessage decodes a message and dispatches it by event type.
func (r *EventRouter) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var event models.OrderNotification
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal notification event: %w", err)
	}

	switch event.EventType {
	case models.EventTypeOrderPlaced,
		models.EventTypeOrderStatusChanged,
		models.EventTypePaymentConfirmed:
		if r.onNotification != nil {
			return r.onNotification(ctx, &event)
		}
	}
	return nil
}
