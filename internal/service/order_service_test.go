package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"renthub/internal/apperr"
	"renthub/internal/models"
	"renthub/internal/payment"
	"renthub/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapBankStatus(t *testing.T) {
	tests := []struct {
		bankStatus string
		want       string
	}{
		{"Success", models.OrderStatusPaid},
		{"Failed", models.OrderStatusPending},
		{"Cancel", models.OrderStatusCancelled},
		{"Initiated", models.OrderStatusPending},
		{"", models.OrderStatusPending},
		{"garbage", models.OrderStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.bankStatus, func(t *testing.T) {
			assert.Equal(t, tt.want, MapBankStatus(tt.bankStatus))
		})
	}
}

func TestFrozenOrderStatuses(t *testing.T) {
	assert.True(t, frozenOrderStatuses[models.OrderStatusPaid])
	assert.True(t, frozenOrderStatuses[models.OrderStatusCompleted])
	assert.True(t, frozenOrderStatuses[models.OrderStatusCancelled])

	assert.False(t, frozenOrderStatuses[models.OrderStatusPending])
	assert.False(t, frozenOrderStatuses[models.OrderStatusProcessing])
	assert.False(t, frozenOrderStatuses[models.OrderStatusOutForDelivery])
}

func TestParseGatewayTime(t *testing.T) {
	parsed := parseGatewayTime("2025-03-14 09:30:00")
	require.True(t, parsed.Valid)
	assert.Equal(t, time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC), parsed.Time)

	assert.False(t, parseGatewayTime("").Valid)
	assert.False(t, parseGatewayTime("not-a-date").Valid)
}

// Integration tests below need Postgres; run with DATABASE_URL set.

func integrationStore(t *testing.T) *store.Store {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	s, err := store.NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedBuyerAndListing(t *testing.T, s *store.Store) (buyerID, listingID string) {
	t.Helper()
	ctx := context.Background()

	suffix := time.Now().UnixNano()
	buyer := &models.User{
		Name:   "Test Buyer",
		Email:  fmt.Sprintf("buyer-%d@example.com", suffix),
		Role:   models.RoleBuyer,
		Status: models.UserStatusActive,
	}
	require.NoError(t, s.CreateUser(context.Background(), buyer))

	seller := &models.User{
		Name:   "Test Seller",
		Email:  fmt.Sprintf("seller-%d@example.com", suffix),
		Role:   models.RoleSeller,
		Status: models.UserStatusActive,
	}
	require.NoError(t, s.CreateUser(ctx, seller))

	cat := &models.Category{Title: fmt.Sprintf("cat-%d", suffix)}
	require.NoError(t, s.CreateCategory(ctx, cat))

	listing := &models.Listing{
		Title:       "Integration Listing",
		CategoryID:  cat.ID,
		Price:       1000,
		SellerID:    seller.UserID,
		IsAvailable: true,
	}
	require.NoError(t, s.CreateListing(ctx, listing))

	return buyer.UserID, listing.ListingID
}

func TestDuplicateOpenOrderConflictIntegration(t *testing.T) {
	s := integrationStore(t)
	buyerID, listingID := seedBuyerAndListing(t, s)
	svc := NewOrderService(s, nil, nil)

	input := CreateOrderInput{
		BuyerID:     buyerID,
		ListingID:   listingID,
		PaymentType: models.PaymentTypeCash,
	}

	first, err := svc.CreateOrder(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, first.Status)

	_, err = svc.CreateOrder(context.Background(), input)
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))
}

func TestChangeStatusOnPaidOrderIntegration(t *testing.T) {
	s := integrationStore(t)
	buyerID, listingID := seedBuyerAndListing(t, s)
	svc := NewOrderService(s, nil, nil)

	order, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		BuyerID:     buyerID,
		ListingID:   listingID,
		PaymentType: models.PaymentTypeCash,
	})
	require.NoError(t, err)

	// Drive the order to paid directly through the store; the service refuses
	// paid as a manual target.
	order.Status = models.OrderStatusPaid
	event, err := newOrderEvent(models.EventTypeOrderStatusChanged, order, "buyer@example.com", "Integration Listing")
	require.NoError(t, err)
	require.NoError(t, s.UpdateOrderStatusTx(context.Background(), order.OrderID, models.OrderStatusPaid, event))

	_, err = svc.ChangeStatus(context.Background(), order.OrderID, models.OrderStatusCompleted)
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))

	stored, err := s.GetOrderByOrderID(context.Background(), order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, stored.Status)
}

type stubGateway struct {
	verifications []payment.Verification
}

func (g *stubGateway) MakePayment(context.Context, *payment.Request) (*payment.Result, error) {
	return nil, errors.New("not used")
}

func (g *stubGateway) VerifyPayment(context.Context, string) ([]payment.Verification, error) {
	return g.verifications, nil
}

func TestVerifyCancelledPaymentSendsNoNotificationIntegration(t *testing.T) {
	s := integrationStore(t)
	buyerID, listingID := seedBuyerAndListing(t, s)
	ctx := context.Background()

	gw := &stubGateway{verifications: []payment.Verification{{
		BankStatus:        "Cancel",
		Code:              "1064",
		Message:           "cancelled by user",
		Method:            "card",
		DateTime:          "2025-03-14 09:30:00",
		TransactionStatus: "Cancel",
	}}}
	svc := NewOrderService(s, gw, nil)

	order, err := svc.CreateOrder(ctx, CreateOrderInput{
		BuyerID:     buyerID,
		ListingID:   listingID,
		PaymentType: models.PaymentTypeOnline,
	})
	require.NoError(t, err)

	paymentID := fmt.Sprintf("pay-%d", time.Now().UnixNano())
	require.NoError(t, s.SetPaymentInitiated(ctx, order.OrderID, paymentID, "Initiated", "https://checkout.example.com"))

	updated, err := svc.VerifyPayment(ctx, paymentID)
	require.NoError(t, err)

	// The transaction record and the mapped status are written.
	assert.Equal(t, models.OrderStatusCancelled, updated.Status)
	assert.Equal(t, "Cancel", updated.BankStatus)
	assert.Equal(t, "1064", updated.GatewayCode)
	assert.Equal(t, "card", updated.Method)
	assert.True(t, updated.PaidAt.Valid)

	// No confirmation is enqueued and the listing stays available.
	var confirmations int
	require.NoError(t, s.GetDB().GetContext(ctx, &confirmations, `
		SELECT COUNT(*) FROM outbox_events
		WHERE event_type = $1 AND payload->>'order_id' = $2`,
		models.EventTypePaymentConfirmed, order.OrderID))
	assert.Zero(t, confirmations)

	listing, err := s.GetListingByListingID(ctx, listingID)
	require.NoError(t, err)
	assert.True(t, listing.IsAvailable)
}

func TestVerifyFailedPaymentKeepsOrderPendingIntegration(t *testing.T) {
	s := integrationStore(t)
	buyerID, listingID := seedBuyerAndListing(t, s)
	ctx := context.Background()

	gw := &stubGateway{verifications: []payment.Verification{{
		BankStatus:        "Failed",
		Code:              "1011",
		Message:           "insufficient funds",
		Method:            "card",
		TransactionStatus: "Failed",
	}}}
	svc := NewOrderService(s, gw, nil)

	order, err := svc.CreateOrder(ctx, CreateOrderInput{
		BuyerID:     buyerID,
		ListingID:   listingID,
		PaymentType: models.PaymentTypeOnline,
	})
	require.NoError(t, err)

	paymentID := fmt.Sprintf("pay-%d", time.Now().UnixNano())
	require.NoError(t, s.SetPaymentInitiated(ctx, order.OrderID, paymentID, "Initiated", "https://checkout.example.com"))

	updated, err := svc.VerifyPayment(ctx, paymentID)
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPending, updated.Status)
	assert.Equal(t, "Failed", updated.BankStatus)

	var confirmations int
	require.NoError(t, s.GetDB().GetContext(ctx, &confirmations, `
		SELECT COUNT(*) FROM outbox_events
		WHERE event_type = $1 AND payload->>'order_id' = $2`,
		models.EventTypePaymentConfirmed, order.OrderID))
	assert.Zero(t, confirmations)
}
