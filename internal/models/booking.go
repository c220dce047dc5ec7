package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BookingStatus represents the lifecycle state of a Tatkal booking
type BookingStatus string

const (
	BookingStatusInitiated      BookingStatus = "initiated"
	BookingStatusPaymentPending BookingStatus = "payment_pending"
	BookingStatusBooked         BookingStatus = "booked"
	BookingStatusFailed         BookingStatus = "failed"
	BookingStatusCancelled      BookingStatus = "cancelled"
)

// JourneyDateLayout is the wire format of journey dates
const JourneyDateLayout = "2006-01-02"

// PNRLength is the number of digits in a booking confirmation code
const PNRLength = 10

// Booking represents one reservation attempt
type Booking struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	ProfileID      uuid.UUID       `json:"profile_id" db:"profile_id"`
	UserID         uuid.UUID       `json:"user_id" db:"user_id"`
	TrainNo        string          `json:"train_no" db:"train_no"`
	PassengerName  string          `json:"passenger_name" db:"passenger_name"`
	PassengerAge   int             `json:"passenger_age" db:"passenger_age"`
	PassengerSex   string          `json:"passenger_sex" db:"passenger_sex"`
	Source         string          `json:"source" db:"source"`
	Destination    string          `json:"destination" db:"destination"`
	JourneyDate    time.Time       `json:"journey_date" db:"journey_date"`
	PreferredBerth *string         `json:"preferred_berth,omitempty" db:"preferred_berth"`
	Fare           decimal.Decimal `json:"fare" db:"fare"`
	Paid           bool            `json:"paid" db:"paid"`
	PaidViaWallet  bool            `json:"paid_via_wallet" db:"paid_via_wallet"`
	BookingStatus  BookingStatus   `json:"booking_status" db:"booking_status"`
	PNR            *string         `json:"pnr" db:"pnr"`
	Feedback       *string         `json:"feedback,omitempty" db:"feedback"`
	RefundedAmount decimal.Decimal `json:"refunded_amount" db:"refunded_amount"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
	CancelledAt    *time.Time      `json:"cancelled_at,omitempty" db:"cancelled_at"`
}

// IsPayable reports whether the booking still accepts a payment
func (b *Booking) IsPayable() bool {
	return b.BookingStatus == BookingStatusInitiated || b.BookingStatus == BookingStatusPaymentPending
}

// CanBeCancelled checks if the booking can be cancelled
func (b *Booking) CanBeCancelled() bool {
	return b.IsPayable() || b.BookingStatus == BookingStatusBooked
}

// MarkPaymentPending moves an initiated booking into the gateway payment path
func (b *Booking) MarkPaymentPending(now time.Time) error {
	if !b.IsPayable() {
		return fmt.Errorf("%w: booking is %s", ErrInvalidTransition, b.BookingStatus)
	}
	b.BookingStatus = BookingStatusPaymentPending
	b.UpdatedAt = now
	return nil
}

// MarkBooked records a successful payment and assigns the PNR
func (b *Booking) MarkBooked(pnr string, viaWallet bool, now time.Time) error {
	if !b.IsPayable() {
		return fmt.Errorf("%w: booking is %s", ErrInvalidTransition, b.BookingStatus)
	}
	b.Paid = true
	b.PaidViaWallet = viaWallet
	b.BookingStatus = BookingStatusBooked
	b.PNR = &pnr
	b.UpdatedAt = now
	return nil
}

// MarkFailed records a failed gateway payment
func (b *Booking) MarkFailed(now time.Time) error {
	if !b.IsPayable() {
		return fmt.Errorf("%w: booking is %s", ErrInvalidTransition, b.BookingStatus)
	}
	b.BookingStatus = BookingStatusFailed
	b.UpdatedAt = now
	return nil
}

// Cancel cancels the booking and returns the amount owed back to the
// passenger's wallet (the fare when the booking was paid, zero otherwise).
func (b *Booking) Cancel(feedback *string, now time.Time) (decimal.Decimal, error) {
	if !b.CanBeCancelled() {
		return decimal.Zero, fmt.Errorf("%w: booking is %s", ErrInvalidTransition, b.BookingStatus)
	}

	refund := decimal.Zero
	if b.Paid {
		refund = b.Fare
	}

	b.BookingStatus = BookingStatusCancelled
	b.Paid = false
	b.PaidViaWallet = false
	b.PNR = nil
	b.Feedback = feedback
	b.RefundedAmount = refund
	b.CancelledAt = &now
	b.UpdatedAt = now

	return refund, nil
}

// CheckInvariants verifies the paid/status/PNR relationships
func (b *Booking) CheckInvariants() error {
	if b.PaidViaWallet && !b.Paid {
		return fmt.Errorf("booking %s: paid_via_wallet without paid", b.ID)
	}
	if b.Paid && b.BookingStatus != BookingStatusBooked {
		return fmt.Errorf("booking %s: paid but status is %s", b.ID, b.BookingStatus)
	}
	if (b.PNR != nil) != (b.BookingStatus == BookingStatusBooked) {
		return fmt.Errorf("booking %s: pnr presence does not match status %s", b.ID, b.BookingStatus)
	}
	return nil
}

// CreateBookingRequest represents the request to create a Tatkal booking
type CreateBookingRequest struct {
	ProfileID      uuid.UUID       `json:"profile_id"`
	TrainNo        string          `json:"train_no"`
	PassengerName  string          `json:"passenger_name"`
	PassengerAge   int             `json:"passenger_age"`
	PassengerSex   string          `json:"passenger_sex"`
	Source         string          `json:"source"`
	Destination    string          `json:"destination"`
	JourneyDate    string          `json:"journey_date"`
	PreferredBerth *string         `json:"preferred_berth,omitempty"`
	Fare           decimal.Decimal `json:"fare"`
}

var validPassengerSex = map[string]bool{"M": true, "F": true, "O": true}

// Validate validates the create booking request and normalizes its fields
func (r *CreateBookingRequest) Validate() error {
	r.TrainNo = strings.TrimSpace(r.TrainNo)
	r.PassengerName = strings.TrimSpace(r.PassengerName)
	r.PassengerSex = strings.ToUpper(strings.TrimSpace(r.PassengerSex))
	r.Source = strings.TrimSpace(r.Source)
	r.Destination = strings.TrimSpace(r.Destination)

	if r.ProfileID == uuid.Nil {
		return fmt.Errorf("%w: profile_id is required", ErrInvalidInput)
	}

	required := map[string]string{
		"train_no":       r.TrainNo,
		"passenger_name": r.PassengerName,
		"passenger_sex":  r.PassengerSex,
		"source":         r.Source,
		"destination":    r.Destination,
		"journey_date":   r.JourneyDate,
	}
	for _, field := range []string{"train_no", "passenger_name", "passenger_sex", "source", "destination", "journey_date"} {
		if required[field] == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
		}
	}

	if r.PassengerAge <= 0 {
		return fmt.Errorf("%w: passenger_age must be positive", ErrInvalidInput)
	}
	if !validPassengerSex[r.PassengerSex] {
		return fmt.Errorf("%w: passenger_sex must be one of M, F, O", ErrInvalidInput)
	}
	if strings.EqualFold(r.Source, r.Destination) {
		return fmt.Errorf("%w: source and destination must differ", ErrInvalidInput)
	}
	if _, err := r.ParsedJourneyDate(); err != nil {
		return fmt.Errorf("%w: journey_date must be YYYY-MM-DD", ErrInvalidInput)
	}
	if r.Fare.IsNegative() {
		return fmt.Errorf("%w: fare must not be negative", ErrInvalidInput)
	}
	if !IsMoney(r.Fare) {
		return fmt.Errorf("%w: fare must have at most %d decimal places", ErrInvalidInput, MoneyScale)
	}

	return nil
}

// ParsedJourneyDate parses the journey date
func (r *CreateBookingRequest) ParsedJourneyDate() (time.Time, error) {
	return time.Parse(JourneyDateLayout, r.JourneyDate)
}

// CreateBookingResponse is the booking plus the wallet auto-debit outcome.
// An insufficient balance is reported here, not as an error.
type CreateBookingResponse struct {
	*Booking
	WalletAutoDebited bool             `json:"wallet_auto_debited"`
	RechargeRequired  bool             `json:"recharge_required"`
	WalletBalance     *decimal.Decimal `json:"wallet_balance,omitempty"`
	Error             *string          `json:"error,omitempty"`
}

// CancelBookingRequest represents the request to cancel a booking
type CancelBookingRequest struct {
	Feedback *string `json:"feedback,omitempty"`
}

// CancelBookingResponse reports a cancellation
type CancelBookingResponse struct {
	Success        bool             `json:"success"`
	Booking        *Booking         `json:"booking"`
	RefundedAmount decimal.Decimal  `json:"refunded_amount"`
	WalletBalance  *decimal.Decimal `json:"wallet_balance,omitempty"`
}
