package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// EmailSender delivers a transactional email and reports which recipients the
// server accepted. An empty accepted list is a delivery failure.
type EmailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) ([]string, error)
}

// SMTPSender sends mail through a plain SMTP relay.
type SMTPSender struct {
	host     string
	port     string
	username string
	password string
	from     string
}

func NewSMTPSender(host, port, username, password, from string) *SMTPSender {
	return &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

// Send delivers one HTML email. net/smtp reports per-recipient rejection as an
// error, so a nil error means every recipient was accepted.
func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	msg.WriteString("\r\n" + htmlBody + "\r\n")

	auth := smtp.PlainAuth("", s.username, s.password, s.host)
	addr := s.host + ":" + s.port
	if err := smtp.SendMail(addr, auth, s.from, []string{to}, []byte(msg.String())); err != nil {
		return nil, fmt.Errorf("smtp send failed: %w", err)
	}
	return []string{to}, nil
}

// OrderStatusSubject builds the subject line for a status-change email.
func OrderStatusSubject(orderID string) string {
	return "Order Status Update - " + orderID
}

// OrderStatusBody builds the HTML body for a status-change email.
func OrderStatusBody(orderID, status, listingTitle string) string {
	return fmt.Sprintf(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>Order Status Update</h2>
  <p>Dear User,</p>
  <p>Your order <strong>%s</strong> for <strong>%s</strong> has been updated.</p>
  <p>Current Status: <span style="color: blue;">%s</span></p>
  <p>If you have any questions, please contact our support team.</p>
  <p>Best regards,<br>The RentHub Team</p>
</div>`, orderID, listingTitle, status)
}

// PaymentConfirmationSubject builds the subject line for a payment email.
func PaymentConfirmationSubject(orderID string) string {
	return "Payment Confirmation - " + orderID
}

// PaymentConfirmationBody builds the HTML body for a payment email.
func PaymentConfirmationBody(orderID, paymentID, listingTitle string, amount int64) string {
	return fmt.Sprintf(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>Payment Confirmation</h2>
  <p>Dear User,</p>
  <p>Your payment for <strong>%s</strong> has been successfully processed.</p>
  <ul>
    <li>Order ID: %s</li>
    <li>Payment ID: %s</li>
    <li>Amount Paid: $%d</li>
  </ul>
  <p>Thank you for your payment. Enjoy your booking!</p>
  <p>Best regards,<br>The RentHub Team</p>
</div>`, listingTitle, orderID, paymentID, amount)
}
