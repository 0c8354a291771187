package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// User roles
const (
	RoleAdmin  = "admin"
	RoleSeller = "seller"
	RoleBuyer  = "buyer"
)

// User statuses
const (
	UserStatusActive  = "active"
	UserStatusBlocked = "blocked"
)

// User represents a registered account. Password handling lives outside this
// service; only identity and contact fields are stored here.
type User struct {
	ID        int64     `db:"id" json:"-"`
	UserID    string    `db:"user_id" json:"userId"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone" json:"phone,omitempty"`
	Address   string    `db:"address" json:"address,omitempty"`
	Role      string    `db:"role" json:"role"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Category is simple reference data for listings.
type Category struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Image       string    `db:"image" json:"image,omitempty"`
	Description string    `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Listing is a rentable/sellable unit offered by a seller.
type Listing struct {
	ID                int64          `db:"id" json:"-"`
	ListingID         string         `db:"listing_id" json:"listingId"`
	Title             string         `db:"title" json:"title"`
	CategoryID        uuid.UUID      `db:"category_id" json:"category"`
	Description       string         `db:"description" json:"description"`
	Price             int64          `db:"price" json:"price"`
	Images            pq.StringArray `db:"images" json:"images"`
	SellerID          string         `db:"seller_id" json:"sellerId"`
	IsAvailable       bool           `db:"is_available" json:"isAvailable"`
	Discount          int            `db:"discount" json:"discount"`
	DiscountStartDate sql.NullTime   `db:"discount_start_date" json:"discountStartDate,omitempty"`
	DiscountEndDate   sql.NullTime   `db:"discount_end_date" json:"discountEndDate,omitempty"`
	IsDiscountActive  bool           `db:"is_discount_active" json:"isDiscountActive"`
	IsDeleted         bool           `db:"is_deleted" json:"isDeleted"`
	RatingScore       float64        `db:"rating_score" json:"ratingScore"`
	RatingCount       int64          `db:"rating_count" json:"ratingCount"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}

// Order statuses
const (
	OrderStatusPending        = "pending"
	OrderStatusProcessing     = "processing"
	OrderStatusOutForDelivery = "out_for_delivery"
	OrderStatusPaid           = "paid"
	OrderStatusCompleted      = "completed"
	OrderStatusCancelled      = "cancelled"
)

// Payment types
const (
	PaymentTypeOnline = "online"
	PaymentTypeCash   = "cash"
)

// Transaction is the gateway payment record attached to an order. Fields are
// write-once-then-append: empty at creation, payment id/status/checkout URL set
// by payment initiation, the rest by verification.
type Transaction struct {
	PaymentID         string       `db:"tx_payment_id" json:"paymentId,omitempty"`
	TransactionStatus string       `db:"tx_status" json:"transactionStatus,omitempty"`
	CheckoutURL       string       `db:"tx_checkout_url" json:"paymentUrl,omitempty"`
	BankStatus        string       `db:"tx_bank_status" json:"bankStatus,omitempty"`
	GatewayCode       string       `db:"tx_gateway_code" json:"gatewayCode,omitempty"`
	GatewayMessage    string       `db:"tx_gateway_message" json:"gatewayMessage,omitempty"`
	Method            string       `db:"tx_method" json:"method,omitempty"`
	PaidAt            sql.NullTime `db:"tx_paid_at" json:"dateTime,omitempty"`
}

// Order is a buyer's request against a listing, carrying a payment lifecycle.
type Order struct {
	ID          int64  `db:"id" json:"-"`
	OrderID     string `db:"order_id" json:"orderId"`
	BuyerID     string `db:"buyer_id" json:"buyerId"`
	ListingID   string `db:"listing_id" json:"listingId"`
	SellerID    string `db:"seller_id" json:"sellerId"`
	TotalPrice  int64  `db:"total_price" json:"totalPrice"`
	PaymentType string `db:"payment_type" json:"paymentType"`
	Status      string `db:"status" json:"status"`
	Message     string `db:"message" json:"message,omitempty"`
	SellerPhone string `db:"seller_phone" json:"sellerPhoneNumber,omitempty"`
	Transaction
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Review is a buyer's rating of a listing. At most one per (user, listing).
type Review struct {
	ID        int64     `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	ListingID string    `db:"listing_id" json:"listingId"`
	Rating    int       `db:"rating" json:"rating"`
	Comment   string    `db:"comment" json:"comment,omitempty"`
	Reviewed  bool      `db:"reviewed" json:"reviewed"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// OutboxEvent is a pending notification written in the same transaction as the
// state change that produced it. The dispatcher publishes it to the broker.
type OutboxEvent struct {
	ID        uuid.UUID `db:"id"`
	EventType string    `db:"event_type"`
	Payload   []byte    `db:"payload"`
	Published bool      `db:"published"`
	CreatedAt time.Time `db:"created_at"`
}

// ProcessedEvent records consumed notification events for idempotency.
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
