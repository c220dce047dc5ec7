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

// PaymentTransactionRepository handles gateway payment transaction operations
type PaymentTransactionRepository struct {
	db Querier
}

// NewPaymentTransactionRepository creates a new PaymentTransactionRepository
func NewPaymentTransactionRepository(db Querier) *PaymentTransactionRepository {
	return &PaymentTransactionRepository{db: db}
}

const paymentTransactionColumns = `
	id, booking_id, order_id, gateway_payment_id, status, amount, currency,
	gateway_response, signature, created_at, updated_at, completed_at`

// Create inserts a new payment transaction. A duplicate order id or a second
// live transaction for the same booking yields ErrConflict.
func (r *PaymentTransactionRepository) Create(ctx context.Context, txn *models.PaymentTransaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}
	txn.UpdatedAt = txn.CreatedAt

	query := `
		INSERT INTO payment_transactions (` + paymentTransactionColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.ExecContext(ctx, query,
		txn.ID, txn.BookingID, txn.OrderID, txn.GatewayPaymentID, txn.Status, txn.Amount, txn.Currency,
		txn.GatewayResponse, txn.Signature, txn.CreatedAt, txn.UpdatedAt, txn.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: payment transaction already exists: %v", models.ErrConflict, err)
		}
		return fmt.Errorf("failed to create payment transaction: %w", err)
	}
	return nil
}

// GetByID retrieves a transaction by ID. Returns nil, nil when absent.
func (r *PaymentTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error) {
	return r.get(ctx, `SELECT `+paymentTransactionColumns+` FROM payment_transactions WHERE id = $1`, id)
}

// GetByOrderIDForUpdate retrieves a transaction by gateway order id and locks it
func (r *PaymentTransactionRepository) GetByOrderIDForUpdate(ctx context.Context, orderID string) (*models.PaymentTransaction, error) {
	return r.get(ctx, `SELECT `+paymentTransactionColumns+` FROM payment_transactions WHERE order_id = $1 FOR UPDATE`, orderID)
}

// GetLiveByBookingID returns the booking's non-failed transaction, if any
func (r *PaymentTransactionRepository) GetLiveByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.PaymentTransaction, error) {
	query := `
		SELECT ` + paymentTransactionColumns + `
		FROM payment_transactions
		WHERE booking_id = $1 AND status <> 'failed'
		ORDER BY created_at DESC
		LIMIT 1`
	return r.get(ctx, query, bookingID)
}

func (r *PaymentTransactionRepository) get(ctx context.Context, query string, arg interface{}) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := r.db.GetContext(ctx, &txn, query, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payment transaction: %w", err)
	}
	return &txn, nil
}

// OrderIDExists checks whether a gateway order id is taken
func (r *PaymentTransactionRepository) OrderIDExists(ctx context.Context, orderID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM payment_transactions WHERE order_id = $1)`, orderID)
	if err != nil {
		return false, fmt.Errorf("failed to check order id uniqueness: %w", err)
	}
	return exists, nil
}

// Complete stores the terminal outcome. Terminal rows are never rewritten:
// if the stored row is already success or failed, ErrConflict is returned.
func (r *PaymentTransactionRepository) Complete(ctx context.Context, txn *models.PaymentTransaction) error {
	query := `
		UPDATE payment_transactions
		SET status = $2,
			gateway_payment_id = $3,
			gateway_response = $4,
			signature = $5,
			completed_at = $6,
			updated_at = $7
		WHERE id = $1 AND status IN ('created', 'pending')`

	result, err := r.db.ExecContext(ctx, query,
		txn.ID, txn.Status, txn.GatewayPaymentID, txn.GatewayResponse, txn.Signature, txn.CompletedAt, txn.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to complete payment transaction: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: payment transaction %s already completed", models.ErrConflict, txn.OrderID)
	}
	return nil
}

// ListStalePending returns pending transactions created before olderThan
func (r *PaymentTransactionRepository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.PaymentTransaction, error) {
	query := `
		SELECT ` + paymentTransactionColumns + `
		FROM payment_transactions
		WHERE status IN ('created', 'pending') AND created_at < $1
		ORDER BY created_at
		LIMIT $2`

	txns := []models.PaymentTransaction{}
	if err := r.db.SelectContext(ctx, &txns, query, olderThan, limit); err != nil {
		return nil, fmt.Errorf("failed to list stale payment transactions: %w", err)
	}
	return txns, nil
}
