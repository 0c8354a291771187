// Package payment wraps the external payment provider's HTTP API. The core
// never talks to the provider directly; it goes through the Gateway interface
// so the order service can be exercised against a stub.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Request is the payload sent to the provider to initiate a payment.
type Request struct {
	Amount          int64  `json:"amount"`
	OrderID         string `json:"order_id"`
	Currency        string `json:"currency"`
	CustomerName    string `json:"customer_name"`
	CustomerAddress string `json:"customer_address"`
	CustomerEmail   string `json:"customer_email"`
	CustomerPhone   string `json:"customer_phone"`
	CustomerCity    string `json:"customer_city"`
	ClientIP        string `json:"client_ip"`
}

// Result is the provider's answer to a payment initiation.
type Result struct {
	PaymentID         string `json:"gw_payment_id"`
	TransactionStatus string `json:"transaction_status"`
	CheckoutURL       string `json:"checkout_url"`
}

// Verification is one entry of the provider's transaction lookup. An empty
// slice from VerifyPayment means the transaction is not yet resolved.
type Verification struct {
	BankStatus        string `json:"bank_status"`
	Code              string `json:"gw_code"`
	Message           string `json:"gw_message"`
	Method            string `json:"method"`
	DateTime          string `json:"date_time"`
	TransactionStatus string `json:"transaction_status"`
}

// Gateway is the payment provider contract consumed by the order service.
type Gateway interface {
	MakePayment(ctx context.Context, req *Request) (*Result, error)
	VerifyPayment(ctx context.Context, paymentID string) ([]Verification, error)
}

// Client is the HTTP implementation of Gateway. Authentication uses a
// short-lived bearer token fetched from the provider and cached until expiry.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a gateway client. Timeout policy for provider calls lives
// here; callers add no retry on top.
func NewClient(baseURL, username, password string) *Client {
	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

func (c *Client) getToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	body, err := json.Marshal(map[string]string{
		"username": c.username,
		"password": c.password,
	})
	if err != nil {
		return "", err
	}

	var tr tokenResponse
	if err := c.postJSON(ctx, "/api/get_token", "", body, &tr); err != nil {
		return "", fmt.Errorf("failed to get gateway token: %w", err)
	}
	if tr.Token == "" {
		return "", fmt.Errorf("empty gateway token received")
	}

	c.token = tr.Token
	c.tokenExpiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	return c.token, nil
}

// MakePayment initiates a payment and returns the provider's transaction
// handle and checkout URL.
func (c *Client) MakePayment(ctx context.Context, req *Request) (*Result, error) {
	token, err := c.getToken(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment request: %w", err)
	}

	var result Result
	if err := c.postJSON(ctx, "/api/secret-pay", token, body, &result); err != nil {
		return nil, fmt.Errorf("payment initiation failed: %w", err)
	}
	if result.PaymentID == "" {
		return nil, fmt.Errorf("gateway returned no transaction id")
	}
	return &result, nil
}

// VerifyPayment fetches the current transaction state by gateway payment id.
func (c *Client) VerifyPayment(ctx context.Context, paymentID string) ([]Verification, error) {
	token, err := c.getToken(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]string{"payment_id": paymentID})
	if err != nil {
		return nil, err
	}

	var verifications []Verification
	if err := c.postJSON(ctx, "/api/verification", token, body, &verifications); err != nil {
		return nil, fmt.Errorf("payment verification failed: %w", err)
	}
	return verifications, nil
}

func (c *Client) postJSON(ctx context.Context, path, token string, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway responded %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
