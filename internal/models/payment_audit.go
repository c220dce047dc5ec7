package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentEventType represents the type of ledger or payment event
type PaymentEventType string

const (
	PaymentEventWalletDeposit          PaymentEventType = "wallet_deposit"
	PaymentEventWalletDebit            PaymentEventType = "wallet_debit"
	PaymentEventWalletDebitDeclined    PaymentEventType = "wallet_debit_declined"
	PaymentEventWalletRefund           PaymentEventType = "wallet_refund"
	PaymentEventInitiated              PaymentEventType = "payment_initiated"
	PaymentEventCallbackReceived       PaymentEventType = "callback_received"
	PaymentEventSuccess                PaymentEventType = "payment_success"
	PaymentEventFailed                 PaymentEventType = "payment_failed"
	PaymentEventExpired                PaymentEventType = "payment_expired"
	PaymentEventBookingConfirmed       PaymentEventType = "booking_confirmed"
	PaymentEventBookingCancelled       PaymentEventType = "booking_cancelled"
	PaymentEventReconciliationMismatch PaymentEventType = "reconciliation_mismatch"
	PaymentEventError                  PaymentEventType = "error"
)

// PaymentEventSource identifies where the event originated
type PaymentEventSource string

const (
	PaymentSourceBackend         PaymentEventSource = "backend"
	PaymentSourceGatewayCallback PaymentEventSource = "gateway_callback"
	PaymentSourceUser            PaymentEventSource = "user"
	PaymentSourceSystem          PaymentEventSource = "system"
)

// PaymentAudit represents an immutable audit log entry for payment events
type PaymentAudit struct {
	ID                   uuid.UUID  `json:"id" db:"id"`
	BookingID            *uuid.UUID `json:"booking_id,omitempty" db:"booking_id"`
	ProfileID            *uuid.UUID `json:"profile_id,omitempty" db:"profile_id"`
	PaymentTransactionID *uuid.UUID `json:"payment_transaction_id,omitempty" db:"payment_transaction_id"`
	OrderID              *string    `json:"order_id,omitempty" db:"order_id"`

	EventType   PaymentEventType   `json:"event_type" db:"event_type"`
	EventSource PaymentEventSource `json:"event_source" db:"event_source"`

	// Amount tracking
	ExpectedAmount *decimal.Decimal `json:"expected_amount,omitempty" db:"expected_amount"`
	ReceivedAmount *decimal.Decimal `json:"received_amount,omitempty" db:"received_amount"`
	Currency       *string          `json:"currency,omitempty" db:"currency"`
	AmountsMatch   *bool            `json:"amounts_match,omitempty" db:"amounts_match"`

	PaymentStatus    *string `json:"payment_status,omitempty" db:"payment_status"`
	GatewayPaymentID *string `json:"gateway_payment_id,omitempty" db:"gateway_payment_id"`

	// Raw payloads
	RequestPayload JSONB `json:"request_payload,omitempty" db:"request_payload"`

	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`
	ErrorCode    *string `json:"error_code,omitempty" db:"error_code"`

	ProcessingTimeMs *int `json:"processing_time_ms,omitempty" db:"processing_time_ms"`
	IsDuplicate      bool `json:"is_duplicate" db:"is_duplicate"`

	// Metadata
	IPAddress     *string `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent     *string `json:"user_agent,omitempty" db:"user_agent"`
	DeviceType    *string `json:"device_type,omitempty" db:"device_type"`
	CorrelationID *string `json:"correlation_id,omitempty" db:"correlation_id"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty" db:"processed_at"`
}

// RequestMeta is the client information attached to audit rows
type RequestMeta struct {
	IPAddress     string
	UserAgent     string
	DeviceType    string // mobile, tablet, desktop, bot
	CorrelationID string
}

// NewPaymentAudit creates a new payment audit entry with required fields
func NewPaymentAudit(eventType PaymentEventType, source PaymentEventSource) *PaymentAudit {
	return &PaymentAudit{
		ID:          uuid.New(),
		EventType:   eventType,
		EventSource: source,
		CreatedAt:   time.Now(),
	}
}

// SetBooking sets the booking ID for the audit
func (pa *PaymentAudit) SetBooking(bookingID uuid.UUID) *PaymentAudit {
	pa.BookingID = &bookingID
	return pa
}

// SetProfile sets the wallet owner
func (pa *PaymentAudit) SetProfile(profileID uuid.UUID) *PaymentAudit {
	pa.ProfileID = &profileID
	return pa
}

// SetTransaction sets the payment transaction and its order id
func (pa *PaymentAudit) SetTransaction(txn *PaymentTransaction) *PaymentAudit {
	pa.PaymentTransactionID = &txn.ID
	pa.OrderID = &txn.OrderID
	return pa
}

// SetOrderID sets the gateway order id
func (pa *PaymentAudit) SetOrderID(orderID string) *PaymentAudit {
	pa.OrderID = &orderID
	return pa
}

// SetGatewayPaymentID sets the gateway's payment id
func (pa *PaymentAudit) SetGatewayPaymentID(id string) *PaymentAudit {
	if id != "" {
		pa.GatewayPaymentID = &id
	}
	return pa
}

// SetAmounts sets and verifies amounts - returns whether they match
func (pa *PaymentAudit) SetAmounts(expected, received decimal.Decimal, currency string) bool {
	pa.ExpectedAmount = &expected
	pa.ReceivedAmount = &received
	pa.Currency = &currency

	match := expected.Equal(received)
	pa.AmountsMatch = &match
	return match
}

// SetAmount records a single ledger amount
func (pa *PaymentAudit) SetAmount(amount decimal.Decimal, currency string) *PaymentAudit {
	pa.ReceivedAmount = &amount
	pa.Currency = &currency
	return pa
}

// SetPaymentStatus sets the payment status
func (pa *PaymentAudit) SetPaymentStatus(status string) *PaymentAudit {
	pa.PaymentStatus = &status
	return pa
}

// SetError sets error information
func (pa *PaymentAudit) SetError(message string, code *string) *PaymentAudit {
	pa.ErrorMessage = &message
	pa.ErrorCode = code
	return pa
}

// SetRequestPayload sets the payload received
func (pa *PaymentAudit) SetRequestPayload(payload map[string]interface{}) *PaymentAudit {
	pa.RequestPayload = JSONB(payload)
	return pa
}

// SetMetadata sets request metadata
func (pa *PaymentAudit) SetMetadata(meta RequestMeta) *PaymentAudit {
	if meta.IPAddress != "" {
		pa.IPAddress = &meta.IPAddress
	}
	if meta.UserAgent != "" {
		pa.UserAgent = &meta.UserAgent
	}
	if meta.DeviceType != "" {
		pa.DeviceType = &meta.DeviceType
	}
	if meta.CorrelationID != "" {
		pa.CorrelationID = &meta.CorrelationID
	}
	return pa
}

// SetProcessingTime calculates and sets processing time
func (pa *PaymentAudit) SetProcessingTime(startTime time.Time) *PaymentAudit {
	durationMs := int(time.Since(startTime).Milliseconds())
	pa.ProcessingTimeMs = &durationMs
	now := time.Now()
	pa.ProcessedAt = &now
	return pa
}

// MarkAsDuplicate marks this event as a duplicate
func (pa *PaymentAudit) MarkAsDuplicate() *PaymentAudit {
	pa.IsDuplicate = true
	return pa
}
