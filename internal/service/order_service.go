// Package service holds the business rules between the HTTP layer and the
// store. Services take their dependencies through constructors; gateway and
// notification side effects always go through interfaces.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/url"
	"time"

	"renthub/internal/apperr"
	"renthub/internal/models"
	"renthub/internal/payment"
	"renthub/internal/query"
	"renthub/internal/redisclient"
	"renthub/internal/store"
	"renthub/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var validOrderStatuses = map[string]bool{
	models.OrderStatusPending:        true,
	models.OrderStatusProcessing:     true,
	models.OrderStatusOutForDelivery: true,
	models.OrderStatusPaid:           true,
	models.OrderStatusCompleted:      true,
	models.OrderStatusCancelled:      true,
}

// Statuses that no longer accept a manual status change.
var frozenOrderStatuses = map[string]bool{
	models.OrderStatusPaid:      true,
	models.OrderStatusCompleted: true,
	models.OrderStatusCancelled: true,
}

// MapBankStatus translates the gateway's bank status into an order status.
// Anything unrecognized leaves the order pending so a later verification can
// still resolve it.
func MapBankStatus(bankStatus string) string {
	switch bankStatus {
	case "Success":
		return models.OrderStatusPaid
	case "Cancel":
		return models.OrderStatusCancelled
	case "Failed":
		return models.OrderStatusPending
	default:
		return models.OrderStatusPending
	}
}

// OrderService owns the order lifecycle: creation, status transitions, payment
// initiation and verification, deletion.
type OrderService struct {
	store   *store.Store
	gateway payment.Gateway
	cache   *redisclient.Client
	logger  *zap.Logger
}

func NewOrderService(s *store.Store, gateway payment.Gateway, cache *redisclient.Client) *OrderService {
	return &OrderService{
		store:   s,
		gateway: gateway,
		cache:   cache,
		logger:  util.GetLogger(),
	}
}

// invalidateStats drops the cached statistics rollup after a write that
// changes it.
func (s *OrderService) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateStats(ctx); err != nil {
		s.logger.Warn("stats cache invalidation failed", zap.Error(err))
	}
}

// CreateOrderInput is the order placement request.
type CreateOrderInput struct {
	BuyerID     string `json:"buyerId" binding:"required"`
	ListingID   string `json:"listingId" binding:"required"`
	PaymentType string `json:"paymentType" binding:"required"`
	Message     string `json:"message"`
}

// CreateOrder places a pending order against a listing. The insert, the
// duplicate check and the placement notification commit in one transaction.
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if input.PaymentType != models.PaymentTypeOnline && input.PaymentType != models.PaymentTypeCash {
		util.OrdersFailedTotal.WithLabelValues("validation").Inc()
		return nil, apperr.Newf(apperr.KindValidation, "invalid payment type: %s", input.PaymentType)
	}

	listing, err := s.store.GetListingByListingID(ctx, input.ListingID)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("listing").Inc()
		return nil, err
	}
	if !listing.IsAvailable {
		util.OrdersFailedTotal.WithLabelValues("unavailable").Inc()
		return nil, apperr.Newf(apperr.KindConflict, "listing is not available: %s", input.ListingID)
	}

	buyer, err := s.store.GetUserByUserID(ctx, input.BuyerID)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("buyer").Inc()
		return nil, err
	}
	seller, err := s.store.GetUserByUserID(ctx, listing.SellerID)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("seller").Inc()
		return nil, err
	}

	orderID, err := s.store.NextID(ctx, "O")
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("sequence").Inc()
		return nil, err
	}

	order := &models.Order{
		OrderID:     orderID,
		BuyerID:     buyer.UserID,
		ListingID:   listing.ListingID,
		SellerID:    seller.UserID,
		TotalPrice:  EffectivePrice(listing),
		PaymentType: input.PaymentType,
		Status:      models.OrderStatusPending,
		Message:     input.Message,
		SellerPhone: seller.Phone,
	}

	event, err := newOrderEvent(models.EventTypeOrderPlaced, order, buyer.Email, listing.Title)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateOrderTx(ctx, order, event); err != nil {
		if apperr.IsConflict(err) {
			util.OrdersFailedTotal.WithLabelValues("duplicate").Inc()
		} else {
			util.OrdersFailedTotal.WithLabelValues("db").Inc()
		}
		return nil, err
	}

	util.OrdersCreatedTotal.Inc()
	s.invalidateStats(ctx)
	s.logger.Info("order created",
		zap.String("order_id", order.OrderID),
		zap.String("buyer_id", order.BuyerID),
		zap.String("listing_id", order.ListingID))
	return order, nil
}

// ChangeStatus moves an order to a new status. Orders that are paid,
// completed or cancelled are frozen; the stored status does not change.
func (s *OrderService) ChangeStatus(ctx context.Context, orderID, status string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ChangeStatus")
	defer span.End()

	if !validOrderStatuses[status] {
		return nil, apperr.Newf(apperr.KindValidation, "invalid order status: %s", status)
	}

	order, err := s.store.GetOrderByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if frozenOrderStatuses[order.Status] {
		return nil, apperr.Newf(apperr.KindConflict,
			"order %s is %s and can no longer change status", orderID, order.Status)
	}

	buyer, err := s.store.GetUserByUserID(ctx, order.BuyerID)
	if err != nil {
		return nil, err
	}
	listing, err := s.store.GetListingByListingID(ctx, order.ListingID)
	if err != nil {
		return nil, err
	}

	order.Status = status
	event, err := newOrderEvent(models.EventTypeOrderStatusChanged, order, buyer.Email, listing.Title)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateOrderStatusTx(ctx, orderID, status, event); err != nil {
		return nil, err
	}

	util.OrderStatusChangesTotal.WithLabelValues(status).Inc()
	s.invalidateStats(ctx)
	s.logger.Info("order status changed",
		zap.String("order_id", orderID),
		zap.String("status", status))
	return order, nil
}

// CreatePayment initiates the online payment for an order and stores the
// gateway's transaction handle and checkout URL on it.
func (s *OrderService) CreatePayment(ctx context.Context, orderID, clientIP string) (*payment.Result, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreatePayment")
	defer span.End()

	order, err := s.store.GetOrderByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentType != models.PaymentTypeOnline {
		return nil, apperr.Newf(apperr.KindValidation, "order %s is not an online payment order", orderID)
	}
	if frozenOrderStatuses[order.Status] {
		return nil, apperr.Newf(apperr.KindConflict, "order %s is %s", orderID, order.Status)
	}

	buyer, err := s.store.GetUserByUserID(ctx, order.BuyerID)
	if err != nil {
		return nil, err
	}

	req := &payment.Request{
		Amount:          order.TotalPrice,
		OrderID:         order.OrderID,
		Currency:        "BDT",
		CustomerName:    buyer.Name,
		CustomerAddress: buyer.Address,
		CustomerEmail:   buyer.Email,
		CustomerPhone:   buyer.Phone,
		CustomerCity:    buyer.Address,
		ClientIP:        clientIP,
	}

	start := time.Now()
	result, err := s.gateway.MakePayment(ctx, req)
	util.GatewayCallLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, apperr.Wrap(apperr.KindGateway, "payment initiation failed", err)
	}
	if result == nil || result.PaymentID == "" {
		return nil, apperr.New(apperr.KindGateway, "gateway returned no transaction")
	}

	if err := s.store.SetPaymentInitiated(ctx, orderID, result.PaymentID, result.TransactionStatus, result.CheckoutURL); err != nil {
		return nil, err
	}

	util.PaymentsInitiatedTotal.Inc()
	s.logger.Info("payment initiated",
		zap.String("order_id", orderID),
		zap.String("payment_id", result.PaymentID))
	return result, nil
}

// VerifyPayment resolves a gateway transaction and applies the outcome. The
// transaction record and mapped status are always persisted; only a successful
// payment additionally retires the listing and enqueues the confirmation
// notification, in a separate transaction that never undoes the first write.
func (s *OrderService) VerifyPayment(ctx context.Context, paymentID string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.VerifyPayment")
	defer span.End()

	start := time.Now()
	verifications, err := s.gateway.VerifyPayment(ctx, paymentID)
	util.GatewayCallLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		util.PaymentVerificationsTotal.WithLabelValues("gateway_error").Inc()
		return nil, apperr.Wrap(apperr.KindGateway, "payment verification failed", err)
	}
	if len(verifications) == 0 {
		util.PaymentVerificationsTotal.WithLabelValues("unresolved").Inc()
		return nil, apperr.Newf(apperr.KindGateway, "no verification record for payment: %s", paymentID)
	}

	v := verifications[0]
	status := MapBankStatus(v.BankStatus)

	tr := models.Transaction{
		BankStatus:        v.BankStatus,
		GatewayCode:       v.Code,
		GatewayMessage:    v.Message,
		Method:            v.Method,
		TransactionStatus: v.TransactionStatus,
		PaidAt:            parseGatewayTime(v.DateTime),
	}

	order, err := s.store.ApplyVerification(ctx, paymentID, tr, status)
	if err != nil {
		return nil, err
	}
	s.invalidateStats(ctx)

	if status != models.OrderStatusPaid {
		util.PaymentVerificationsTotal.WithLabelValues(status).Inc()
		s.logger.Info("payment not successful",
			zap.String("payment_id", paymentID),
			zap.String("bank_status", v.BankStatus),
			zap.String("status", status))
		return order, nil
	}

	buyer, err := s.store.GetUserByUserID(ctx, order.BuyerID)
	if err != nil {
		return order, err
	}
	listing, err := s.store.GetListingByListingID(ctx, order.ListingID)
	if err != nil {
		return order, err
	}

	event, err := newOrderEvent(models.EventTypePaymentConfirmed, order, buyer.Email, listing.Title)
	if err != nil {
		return order, err
	}
	if err := s.store.ConfirmPaymentTx(ctx, order.ListingID, event); err != nil {
		// The verification write above stands; confirmation is retried by
		// the next webhook delivery.
		s.logger.Error("payment confirmation step failed",
			zap.String("order_id", order.OrderID),
			zap.Error(err))
		return order, err
	}

	util.PaymentVerificationsTotal.WithLabelValues("paid").Inc()
	s.logger.Info("payment verified",
		zap.String("order_id", order.OrderID),
		zap.String("payment_id", paymentID))
	return order, nil
}

// DeleteOrder removes an order. An online order whose payment has been
// initiated carries gateway state and cannot be deleted.
func (s *OrderService) DeleteOrder(ctx context.Context, orderID string) error {
	ctx, span := util.StartSpan(ctx, "OrderService.DeleteOrder")
	defer span.End()

	order, err := s.store.GetOrderByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.PaymentType == models.PaymentTypeOnline && order.PaymentID != "" {
		return apperr.Newf(apperr.KindConflict,
			"order %s has an initiated online payment and cannot be deleted", orderID)
	}
	if err := s.store.DeleteOrder(ctx, orderID); err != nil {
		return err
	}
	s.invalidateStats(ctx)
	return nil
}

// GetOrder retrieves one order by its public id.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()
	return s.store.GetOrderByOrderID(ctx, orderID)
}

// ListOrders lists all orders through the query builder.
func (s *OrderService) ListOrders(ctx context.Context, params url.Values) ([]models.Order, query.Meta, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	b := query.New("orders", store.OrderColumns, params).
		Search("orderId", "buyerId", "listingId", "status").
		Filter().
		Sort().
		Paginate().
		Fields()

	start := time.Now()
	orders := []models.Order{}
	meta, err := s.store.List(ctx, b, &orders)
	util.ListQueryLatency.WithLabelValues("orders").Observe(time.Since(start).Seconds())
	return orders, meta, err
}

// ListUserOrders lists the orders a user participates in, as buyer or seller.
func (s *OrderService) ListUserOrders(ctx context.Context, userID string, params url.Values) ([]models.Order, query.Meta, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListUserOrders")
	defer span.End()

	b := query.New("orders", store.OrderColumns, params).
		Where("(buyer_id = ? OR seller_id = ?)", userID, userID).
		Search("orderId", "listingId", "status").
		Filter().
		Sort().
		Paginate().
		Fields()

	start := time.Now()
	orders := []models.Order{}
	meta, err := s.store.List(ctx, b, &orders)
	util.ListQueryLatency.WithLabelValues("orders").Observe(time.Since(start).Seconds())
	return orders, meta, err
}

// newOrderEvent builds the outbox row for an order notification. Buyer email
// and listing title are denormalized in so the worker never re-reads state.
func newOrderEvent(eventType string, order *models.Order, buyerEmail, listingTitle string) (*models.OutboxEvent, error) {
	n := models.OrderNotification{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: time.Now().UTC(),
		},
		OrderID:      order.OrderID,
		BuyerUserID:  order.BuyerID,
		BuyerEmail:   buyerEmail,
		ListingID:    order.ListingID,
		ListingTitle: listingTitle,
		Status:       order.Status,
		PaymentID:    order.PaymentID,
		Amount:       order.TotalPrice,
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	return &models.OutboxEvent{EventType: eventType, Payload: payload}, nil
}

func parseGatewayTime(raw string) (t sql.NullTime) {
	if raw == "" {
		return t
	}
	parsed, err := time.Parse("2006-01-02 15:04:05", raw)
	if err != nil {
		return t
	}
	t.Time = parsed
	t.Valid = true
	return t
}
