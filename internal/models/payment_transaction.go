package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentTransactionStatus represents the status of a gateway payment attempt
type PaymentTransactionStatus string

const (
	PaymentTransactionCreated PaymentTransactionStatus = "created"
	PaymentTransactionPending PaymentTransactionStatus = "pending"
	PaymentTransactionSuccess PaymentTransactionStatus = "success"
	PaymentTransactionFailed  PaymentTransactionStatus = "failed"
)

// PaymentTransaction is one gateway payment attempt for a booking
type PaymentTransaction struct {
	ID               uuid.UUID                `json:"id" db:"id"`
	BookingID        uuid.UUID                `json:"booking_id" db:"booking_id"`
	OrderID          string                   `json:"order_id" db:"order_id"`
	GatewayPaymentID *string                  `json:"gateway_payment_id,omitempty" db:"gateway_payment_id"`
	Status           PaymentTransactionStatus `json:"status" db:"status"`
	Amount           decimal.Decimal          `json:"amount" db:"amount"`
	Currency         string                   `json:"currency" db:"currency"`
	GatewayResponse  JSONB                    `json:"gateway_response,omitempty" db:"gateway_response"`
	Signature        *string                  `json:"-" db:"signature"`
	CreatedAt        time.Time                `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time                `json:"updated_at" db:"updated_at"`
	CompletedAt      *time.Time               `json:"completed_at,omitempty" db:"completed_at"`
}

// IsTerminal reports whether the transaction outcome is final
func (t *PaymentTransaction) IsTerminal() bool {
	return t.Status == PaymentTransactionSuccess || t.Status == PaymentTransactionFailed
}

// IsLive reports whether the transaction still blocks a new payment session
func (t *PaymentTransaction) IsLive() bool {
	return t.Status != PaymentTransactionFailed
}

// Complete records the gateway outcome on a non-terminal transaction
func (t *PaymentTransaction) Complete(success bool, paymentID string, signature *string, payload JSONB, now time.Time) {
	if success {
		t.Status = PaymentTransactionSuccess
	} else {
		t.Status = PaymentTransactionFailed
	}
	if paymentID != "" {
		t.GatewayPaymentID = &paymentID
	}
	t.Signature = signature
	t.GatewayResponse = payload
	t.UpdatedAt = now
	t.CompletedAt = &now
}

// InitiatePaymentRequest opens a gateway payment session for a booking
type InitiatePaymentRequest struct {
	BookingID uuid.UUID       `json:"booking_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// InitiatePaymentResponse is returned to the client to start checkout
type InitiatePaymentResponse struct {
	OrderID              string                   `json:"order_id"`
	PaymentURL           string                   `json:"payment_url"`
	PaymentTransactionID uuid.UUID                `json:"payment_transaction_id"`
	Amount               decimal.Decimal          `json:"amount"`
	Currency             string                   `json:"currency"`
	Status               PaymentTransactionStatus `json:"status"`
	ExpiresAt            time.Time                `json:"expires_at"`
}

// PaymentCallbackRequest is the gateway's payment notification.
// Payload carries the raw notification and is set by the handler.
type PaymentCallbackRequest struct {
	OrderID   string  `json:"order_id"`
	PaymentID string  `json:"payment_id"`
	Success   bool    `json:"success"`
	Signature *string `json:"signature,omitempty"`
	Payload   JSONB   `json:"-"`
}

// PaymentCallbackResponse reports the reconciled outcome of a callback.
// Duplicate is set when the transaction was already terminal.
type PaymentCallbackResponse struct {
	OrderID       string                   `json:"order_id"`
	Status        PaymentTransactionStatus `json:"status"`
	BookingID     uuid.UUID                `json:"booking_id"`
	BookingStatus BookingStatus            `json:"booking_status"`
	PNR           *string                  `json:"pnr,omitempty"`
	Duplicate     bool                     `json:"duplicate"`
	WalletCredit  *decimal.Decimal         `json:"wallet_credit,omitempty"`
}

// PaymentStatusResponse reports a transaction with its booking
type PaymentStatusResponse struct {
	Transaction   *PaymentTransaction `json:"transaction"`
	BookingStatus BookingStatus       `json:"booking_status"`
	PNR           *string             `json:"pnr,omitempty"`
}
