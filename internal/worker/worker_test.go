package worker

import (
	"context"
	"errors"
	"testing"

	"renthub/internal/apperr"
	"renthub/internal/models"
	"renthub/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcessedStore struct {
	seen      map[string]string
	checkErr  error
	markCalls int
}

func newFakeProcessedStore() *fakeProcessedStore {
	return &fakeProcessedStore{seen: map[string]string{}}
}

func (f *fakeProcessedStore) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	if f.checkErr != nil {
		return false, f.checkErr
	}
	_, ok := f.seen[eventID]
	return ok, nil
}

func (f *fakeProcessedStore) MarkEventProcessed(_ context.Context, eventID, eventType string) error {
	f.markCalls++
	f.seen[eventID] = eventType
	return nil
}

type sentEmail struct {
	to      string
	subject string
	body    string
}

type fakeEmailSender struct {
	sent     []sentEmail
	err      error
	accepted []string
}

func (f *fakeEmailSender) Send(_ context.Context, to, subject, body string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, sentEmail{to: to, subject: subject, body: body})
	if f.accepted != nil {
		return f.accepted, nil
	}
	return []string{to}, nil
}

type fakeBroadcaster struct {
	messages []notify.Message
}

func (f *fakeBroadcaster) Broadcast(msg notify.Message) {
	f.messages = append(f.messages, msg)
}

func statusEvent(eventID string) *models.OrderNotification {
	return &models.OrderNotification{
		BaseEvent: models.BaseEvent{
			EventID:   eventID,
			EventType: models.EventTypeOrderStatusChanged,
		},
		OrderID:      "O-00042",
		BuyerUserID:  "B-00007",
		BuyerEmail:   "buyer@example.com",
		ListingID:    "L-00003",
		ListingTitle: "Lakeside Cabin",
		Status:       "processing",
	}
}

func TestDispatchDeliversEmailAndPushExactlyOnce(t *testing.T) {
	processed := newFakeProcessedStore()
	email := &fakeEmailSender{}
	hub := &fakeBroadcaster{}
	d := NewNotificationDispatcher(processed, email, hub)

	err := d.Handle(context.Background(), statusEvent("evt-1"))
	require.NoError(t, err)

	require.Len(t, email.sent, 1)
	assert.Equal(t, "buyer@example.com", email.sent[0].to)
	assert.Contains(t, email.sent[0].subject, "O-00042")
	assert.Contains(t, email.sent[0].body, "processing")
	assert.Contains(t, email.sent[0].body, "Lakeside Cabin")

	require.Len(t, hub.messages, 1)
	assert.Equal(t, "B-00007", hub.messages[0].UserID)
	assert.Equal(t, "O-00042", hub.messages[0].OrderID)
	assert.Equal(t, "processing", hub.messages[0].Status)

	assert.Equal(t, 1, processed.markCalls)
}

func TestDispatchSkipsAlreadyProcessedEvent(t *testing.T) {
	processed := newFakeProcessedStore()
	processed.seen["evt-1"] = models.EventTypeOrderStatusChanged
	email := &fakeEmailSender{}
	hub := &fakeBroadcaster{}
	d := NewNotificationDispatcher(processed, email, hub)

	err := d.Handle(context.Background(), statusEvent("evt-1"))
	require.NoError(t, err)

	assert.Empty(t, email.sent)
	assert.Empty(t, hub.messages)
	assert.Equal(t, 0, processed.markCalls)
}

func TestDispatchRedeliveryAfterSuccessIsIdempotent(t *testing.T) {
	processed := newFakeProcessedStore()
	email := &fakeEmailSender{}
	hub := &fakeBroadcaster{}
	d := NewNotificationDispatcher(processed, email, hub)

	require.NoError(t, d.Handle(context.Background(), statusEvent("evt-1")))
	require.NoError(t, d.Handle(context.Background(), statusEvent("evt-1")))

	assert.Len(t, email.sent, 1)
	assert.Len(t, hub.messages, 1)
}

func TestDispatchEmailFailureReturnsDeliveryError(t *testing.T) {
	processed := newFakeProcessedStore()
	email := &fakeEmailSender{err: errors.New("connection refused")}
	hub := &fakeBroadcaster{}
	d := NewNotificationDispatcher(processed, email, hub)

	err := d.Handle(context.Background(), statusEvent("evt-1"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindDelivery, apperr.KindOf(err))

	// Nothing downstream happens and the event stays unprocessed for retry.
	assert.Empty(t, hub.messages)
	assert.Equal(t, 0, processed.markCalls)
}

func TestDispatchNoAcceptedRecipientsIsDeliveryFailure(t *testing.T) {
	processed := newFakeProcessedStore()
	email := &fakeEmailSender{accepted: []string{}}
	hub := &fakeBroadcaster{}
	d := NewNotificationDispatcher(processed, email, hub)

	err := d.Handle(context.Background(), statusEvent("evt-1"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindDelivery, apperr.KindOf(err))
	assert.Empty(t, hub.messages)
}

func TestDispatchPaymentConfirmationUsesPaymentTemplate(t *testing.T) {
	processed := newFakeProcessedStore()
	email := &fakeEmailSender{}
	hub := &fakeBroadcaster{}
	d := NewNotificationDispatcher(processed, email, hub)

	event := statusEvent("evt-2")
	event.EventType = models.EventTypePaymentConfirmed
	event.Status = "paid"
	event.PaymentID = "pay_abc123"
	event.Amount = 450

	require.NoError(t, d.Handle(context.Background(), event))

	require.Len(t, email.sent, 1)
	assert.Contains(t, email.sent[0].subject, "Payment Confirmation")
	assert.Contains(t, email.sent[0].body, "pay_abc123")
	assert.Contains(t, email.sent[0].body, "450")
}
