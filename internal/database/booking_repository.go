package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/railtatkal/tatkal-backend/internal/models"
)

// BookingRepository handles Tatkal booking database operations
type BookingRepository struct {
	db Querier
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db Querier) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `
	id, profile_id, user_id, train_no, passenger_name, passenger_age,
	passenger_sex, source, destination, journey_date, preferred_berth,
	fare, paid, paid_via_wallet, booking_status, pnr, feedback,
	refunded_amount, created_at, updated_at, cancelled_at`

// Create inserts a new booking
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	now := time.Now()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = booking.CreatedAt

	query := `
		INSERT INTO bookings (` + bookingColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20, $21
		)`

	_, err := r.db.ExecContext(ctx, query,
		booking.ID, booking.ProfileID, booking.UserID, booking.TrainNo, booking.PassengerName, booking.PassengerAge,
		booking.PassengerSex, booking.Source, booking.Destination, booking.JourneyDate, booking.PreferredBerth,
		booking.Fare, booking.Paid, booking.PaidViaWallet, booking.BookingStatus, booking.PNR, booking.Feedback,
		booking.RefundedAmount, booking.CreatedAt, booking.UpdatedAt, booking.CancelledAt,
	)
	if err != nil {
		if isPNRViolation(err) {
			return fmt.Errorf("%w: %w", models.ErrConflict, ErrPNRTaken)
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: booking already exists: %v", models.ErrConflict, err)
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

// GetByID retrieves a booking by ID. Returns nil, nil when absent.
func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return r.get(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

// GetByIDForUpdate retrieves a booking and locks its row until the
// surrounding transaction ends
func (r *BookingRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return r.get(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
}

func (r *BookingRepository) get(ctx context.Context, query string, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.GetContext(ctx, &booking, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

// ListByUser returns a user's bookings, newest first
func (r *BookingRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	bookings := []models.Booking{}
	if err := r.db.SelectContext(ctx, &bookings, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// Update writes the mutable booking columns. The write only applies while the
// stored status still equals from; otherwise ErrConflict is returned.
func (r *BookingRepository) Update(ctx context.Context, booking *models.Booking, from models.BookingStatus) error {
	query := `
		UPDATE bookings
		SET paid = $3,
			paid_via_wallet = $4,
			booking_status = $5,
			pnr = $6,
			feedback = $7,
			refunded_amount = $8,
			cancelled_at = $9,
			updated_at = $10
		WHERE id = $1 AND booking_status = $2`

	result, err := r.db.ExecContext(ctx, query,
		booking.ID, from,
		booking.Paid, booking.PaidViaWallet, booking.BookingStatus, booking.PNR,
		booking.Feedback, booking.RefundedAmount, booking.CancelledAt, booking.UpdatedAt,
	)
	if err != nil {
		if isPNRViolation(err) {
			return fmt.Errorf("%w: %w", models.ErrConflict, ErrPNRTaken)
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: booking update conflicts: %v", models.ErrConflict, err)
		}
		return fmt.Errorf("failed to update booking: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: booking %s is no longer %s", models.ErrConflict, booking.ID, from)
	}
	return nil
}

// PNRExists checks whether a PNR is already assigned
func (r *BookingRepository) PNRExists(ctx context.Context, pnr string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM bookings WHERE pnr = $1)`, pnr)
	if err != nil {
		return false, fmt.Errorf("failed to check pnr uniqueness: %w", err)
	}
	return exists, nil
}
