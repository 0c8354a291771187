package worker

import (
	"context"
	"time"

	"renthub/internal/apperr"
	"renthub/internal/broker"
	"renthub/internal/models"
	"renthub/internal/notify"
	"renthub/internal/store"
	"renthub/internal/util"

	"go.uber.org/zap"
)

// Publisher hands serialized events to the broker.
type Publisher interface {
	PublishRaw(ctx context.Context, key string, payload []byte) error
}

// Broadcaster pushes a realtime message to connected sessions.
type Broadcaster interface {
	Broadcast(msg notify.Message)
}

// ProcessedEventStore tracks which notification events have been handled, so
// broker redelivery never produces a second email or push.
type ProcessedEventStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// OutboxDispatcher polls the outbox table and publishes pending events to the
// broker. Events are marked published only after the broker accepts them, so a
// crash between write and mark causes redelivery, never loss.
type OutboxDispatcher struct {
	store     *store.Store
	publisher Publisher
	interval  time.Duration
	batchSize int
	logger    *zap.Logger
}

func NewOutboxDispatcher(s *store.Store, publisher Publisher, interval time.Duration) *OutboxDispatcher {
	return &OutboxDispatcher{
		store:     s,
		publisher: publisher,
		interval:  interval,
		batchSize: 100,
		logger:    util.GetLogger(),
	}
}

// Run polls until ctx is cancelled.
func (d *OutboxDispatcher) Run(ctx context.Context) {
	d.logger.Info("outbox dispatcher started", zap.Duration("interval", d.interval))

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("outbox dispatcher stopped")
			return
		case <-ticker.C:
			if err := d.dispatchBatch(ctx); err != nil {
				d.logger.Error("outbox dispatch failed", zap.Error(err))
			}
		}
	}
}

func (d *OutboxDispatcher) dispatchBatch(ctx context.Context) error {
	events, err := d.store.FetchUnpublishedEvents(ctx, d.batchSize)
	if err != nil {
		return err
	}

	for _, event := range events {
		if err := d.publisher.PublishRaw(ctx, event.ID.String(), event.Payload); err != nil {
			// Leave the event pending; the next tick retries it.
			d.logger.Error("failed to publish outbox event",
				zap.String("event_id", event.ID.String()),
				zap.String("event_type", event.EventType),
				zap.Error(err))
			return err
		}
		if err := d.store.MarkEventPublished(ctx, event.ID); err != nil {
			return err
		}
		util.OutboxPublishedTotal.Inc()
	}
	return nil
}

// NotificationDispatcher delivers one order notification to both channels:
// email via SMTP and a realtime push through the hub. Delivery is idempotent
// per event id.
type NotificationDispatcher struct {
	processed ProcessedEventStore
	email     notify.EmailSender
	hub       Broadcaster
	logger    *zap.Logger
}

func NewNotificationDispatcher(processed ProcessedEventStore, email notify.EmailSender, hub Broadcaster) *NotificationDispatcher {
	return &NotificationDispatcher{
		processed: processed,
		email:     email,
		hub:       hub,
		logger:    util.GetLogger(),
	}
}

// Handle delivers the event. Returning an error leaves the broker message
// uncommitted for redelivery; the processed-events check makes that safe.
func (d *NotificationDispatcher) Handle(ctx context.Context, event *models.OrderNotification) error {
	done, err := d.processed.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return err
	}
	if done {
		d.logger.Debug("skipping already processed event", zap.String("event_id", event.EventID))
		return nil
	}

	subject, body := composeEmail(event)
	accepted, err := d.email.Send(ctx, event.BuyerEmail, subject, body)
	if err != nil {
		util.NotificationsFailedTotal.WithLabelValues("email").Inc()
		return apperr.Wrap(apperr.KindDelivery, "failed to send notification email", err)
	}
	if len(accepted) == 0 {
		util.NotificationsFailedTotal.WithLabelValues("email").Inc()
		return apperr.Newf(apperr.KindDelivery, "email to %s was not accepted by the server", event.BuyerEmail)
	}
	util.NotificationsSentTotal.WithLabelValues("email").Inc()

	d.hub.Broadcast(notify.Message{
		UserID:  event.BuyerUserID,
		Content: subject,
		OrderID: event.OrderID,
		Status:  event.Status,
	})
	util.NotificationsSentTotal.WithLabelValues("websocket").Inc()

	return d.processed.MarkEventProcessed(ctx, event.EventID, event.EventType)
}

func composeEmail(event *models.OrderNotification) (subject, body string) {
	if event.EventType == models.EventTypePaymentConfirmed {
		return notify.PaymentConfirmationSubject(event.OrderID),
			notify.PaymentConfirmationBody(event.OrderID, event.PaymentID, event.ListingTitle, event.Amount)
	}
	return notify.OrderStatusSubject(event.OrderID),
		notify.OrderStatusBody(event.OrderID, event.Status, event.ListingTitle)
}

// NotificationWorker consumes order notification events from the broker and
// routes them to the dispatcher.
type NotificationWorker struct {
	consumer   *broker.Consumer
	router     *broker.EventRouter
	dispatcher *NotificationDispatcher
	logger     *zap.Logger
}

func NewNotificationWorker(consumer *broker.Consumer, dispatcher *NotificationDispatcher) *NotificationWorker {
	router := broker.NewEventRouter()
	router.OnNotification(dispatcher.Handle)
	return &NotificationWorker{
		consumer:   consumer,
		router:     router,
		dispatcher: dispatcher,
		logger:     util.GetLogger(),
	}
}

// Start consumes until ctx is cancelled.
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("notification worker started")
	return w.consumer.StartConsuming(ctx, w.router.HandleMessage)
}

// DiscountSweeper flips listing discounts on and off as their scheduled
// windows open and close.
type DiscountSweeper struct {
	store    *store.Store
	interval time.Duration
	logger   *zap.Logger
}

func NewDiscountSweeper(s *store.Store, interval time.Duration) *DiscountSweeper {
	return &DiscountSweeper{store: s, interval: interval, logger: util.GetLogger()}
}

// Run sweeps until ctx is cancelled.
func (s *DiscountSweeper) Run(ctx context.Context) {
	s.logger.Info("discount sweeper started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("discount sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *DiscountSweeper) sweep(ctx context.Context) {
	now := time.Now()

	activated, err := s.store.ActivateDueDiscounts(ctx, now)
	if err != nil {
		s.logger.Error("failed to activate due discounts", zap.Error(err))
	} else if activated > 0 {
		s.logger.Info("activated discounts", zap.Int64("count", activated))
	}

	expired, err := s.store.ExpireDueDiscounts(ctx, now)
	if err != nil {
		s.logger.Error("failed to expire due discounts", zap.Error(err))
	} else if expired > 0 {
		s.logger.Info("expired discounts", zap.Int64("count", expired))
	}
}
