package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"renthub/internal/apperr"
	"renthub/internal/models"
	"renthub/internal/query"

	"github.com/lib/pq"
)

// OrderColumns maps external field names to order columns for the query
// builder.
var OrderColumns = map[string]query.Column{
	"orderId":     {Name: "order_id", Kind: query.KindText},
	"buyerId":     {Name: "buyer_id", Kind: query.KindText},
	"listingId":   {Name: "listing_id", Kind: query.KindText},
	"sellerId":    {Name: "seller_id", Kind: query.KindText},
	"status":      {Name: "status", Kind: query.KindText},
	"paymentType": {Name: "payment_type", Kind: query.KindText},
	"totalPrice":  {Name: "total_price", Kind: query.KindNumeric},
	"createdAt":   {Name: "created_at", Kind: query.KindText},
}

// Statuses that still allow a new order for the same (buyer, listing) pair.
var closedOrderStatuses = []string{models.OrderStatusCompleted, models.OrderStatusCancelled}

// CreateOrderTx inserts an order in one transaction together with its
// placement notification. A second open order for the same (buyer, listing)
// pair is a conflict; the partial unique index on open orders backs the check
// under concurrent writers.
func (s *Store) CreateOrderTx(ctx context.Context, order *models.Order, event *models.OutboxEvent) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists bool
	err = tx.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM orders
			WHERE buyer_id = $1 AND listing_id = $2 AND status NOT IN ($3, $4)
		)`,
		order.BuyerID, order.ListingID, closedOrderStatuses[0], closedOrderStatuses[1])
	if err != nil {
		return fmt.Errorf("failed to check existing order: %w", err)
	}
	if exists {
		return apperr.New(apperr.KindConflict, "you have already applied for this listing")
	}

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO orders (
			order_id, buyer_id, listing_id, seller_id, total_price,
			payment_type, status, message, seller_phone
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		order.OrderID, order.BuyerID, order.ListingID, order.SellerID,
		order.TotalPrice, order.PaymentType, order.Status, order.Message,
		order.SellerPhone).
		Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		// A concurrent writer can pass the EXISTS check before either commit;
		// the partial unique index catches that race.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == "idx_orders_open_pair" {
			return apperr.New(apperr.KindConflict, "you have already applied for this listing")
		}
		return fmt.Errorf("failed to create order: %w", err)
	}

	if err := insertOutbox(ctx, tx, event); err != nil {
		return err
	}
	return tx.Commit()
}

// GetOrderByOrderID retrieves an order by its "O-" id.
func (s *Store) GetOrderByOrderID(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE order_id = $1", orderID)
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.KindNotFound, "order not found: %s", orderID)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByPaymentID retrieves the order holding a gateway transaction id.
func (s *Store) GetOrderByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE tx_payment_id = $1", paymentID)
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.KindNotFound, "no order for payment: %s", paymentID)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrderStatusTx persists a status change together with its notification.
// Enqueue failure rolls the status write back. The frozen-status set is
// enforced in the UPDATE itself, so a verification landing paid between the
// service's read and this write is never overwritten.
func (s *Store) UpdateOrderStatusTx(ctx context.Context, orderID, status string, event *models.OutboxEvent) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE order_id = $2 AND status NOT IN ($3, $4, $5)`,
		status, orderID, models.OrderStatusPaid, models.OrderStatusCompleted,
		models.OrderStatusCancelled)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var current string
		err := tx.GetContext(ctx, &current,
			"SELECT status FROM orders WHERE order_id = $1", orderID)
		if err == sql.ErrNoRows {
			return apperr.Newf(apperr.KindNotFound, "order not found: %s", orderID)
		}
		if err != nil {
			return err
		}
		return apperr.Newf(apperr.KindConflict,
			"order %s is %s and can no longer change status", orderID, current)
	}

	if err := insertOutbox(ctx, tx, event); err != nil {
		return err
	}
	return tx.Commit()
}

// SetPaymentInitiated stores the gateway's initiation result on the order.
func (s *Store) SetPaymentInitiated(ctx context.Context, orderID, paymentID, txStatus, checkoutURL string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET
			tx_payment_id = $1, tx_status = $2, tx_checkout_url = $3, updated_at = NOW()
		WHERE order_id = $4`,
		paymentID, txStatus, checkoutURL, orderID)
	if err != nil {
		return fmt.Errorf("failed to store payment initiation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.Newf(apperr.KindNotFound, "order not found: %s", orderID)
	}
	return nil
}

// ApplyVerification writes the gateway's verification record and the status
// derived from it, keyed by gateway transaction id, and returns the updated
// order. This write always happens regardless of the payment outcome.
func (s *Store) ApplyVerification(ctx context.Context, paymentID string, tr models.Transaction, status string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, `
		UPDATE orders SET
			tx_bank_status = $1, tx_gateway_code = $2, tx_gateway_message = $3,
			tx_method = $4, tx_paid_at = $5, tx_status = $6, status = $7,
			updated_at = NOW()
		WHERE tx_payment_id = $8
		RETURNING *`,
		tr.BankStatus, tr.GatewayCode, tr.GatewayMessage, tr.Method, tr.PaidAt,
		tr.TransactionStatus, status, paymentID)
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.KindNotFound, "no order for payment: %s", paymentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to apply verification: %w", err)
	}
	return &order, nil
}

// ConfirmPaymentTx performs the post-payment step in one transaction: the
// listing becomes unavailable and the confirmation notification is enqueued.
// A failure here rolls back only this step, not the verification write.
func (s *Store) ConfirmPaymentTx(ctx context.Context, listingID string, event *models.OutboxEvent) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE listings SET is_available = FALSE, updated_at = NOW() WHERE listing_id = $1",
		listingID)
	if err != nil {
		return fmt.Errorf("failed to update listing availability: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.Newf(apperr.KindNotFound, "listing not found: %s", listingID)
	}

	if err := insertOutbox(ctx, tx, event); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteOrder removes an order. Guard conditions live in the service layer.
func (s *Store) DeleteOrder(ctx context.Context, orderID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM orders WHERE order_id = $1", orderID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.Newf(apperr.KindNotFound, "order not found: %s", orderID)
	}
	return nil
}
