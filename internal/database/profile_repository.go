package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/railtatkal/tatkal-backend/internal/models"
	"github.com/shopspring/decimal"
)

// ProfileRepository handles passenger profile and wallet balance operations
type ProfileRepository struct {
	db Querier
}

// NewProfileRepository creates a new ProfileRepository
func NewProfileRepository(db Querier) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetByID retrieves a profile by ID. Returns nil, nil when absent.
func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	query := `
		SELECT id, user_id, full_name, age, phone, preferred_berth,
			wallet_balance, created_at, updated_at
		FROM profiles
		WHERE id = $1`

	var profile models.Profile
	err := r.db.GetContext(ctx, &profile, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &profile, nil
}

// AddBalance credits amount to the wallet in a single statement and returns
// the new balance
func (r *ProfileRepository) AddBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	query := `
		UPDATE profiles
		SET wallet_balance = wallet_balance + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING wallet_balance`

	var balance decimal.Decimal
	err := r.db.QueryRowxContext(ctx, query, id, amount).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("%w: profile %s", models.ErrNotFound, id)
		}
		return decimal.Zero, fmt.Errorf("failed to credit wallet: %w", err)
	}
	return balance, nil
}

// DeductBalance debits amount only when the balance covers it. The check and
// the write are one conditional UPDATE, so concurrent deductions serialize on
// the row lock and can never overdraw. ok is false when funds are insufficient;
// the returned balance is then the untouched current balance.
func (r *ProfileRepository) DeductBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, bool, error) {
	query := `
		UPDATE profiles
		SET wallet_balance = wallet_balance - $2, updated_at = NOW()
		WHERE id = $1 AND wallet_balance >= $2
		RETURNING wallet_balance`

	var balance decimal.Decimal
	err := r.db.QueryRowxContext(ctx, query, id, amount).Scan(&balance)
	if err == nil {
		return balance, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, false, fmt.Errorf("failed to debit wallet: %w", err)
	}

	// No row updated: either the profile is missing or the balance is short
	err = r.db.GetContext(ctx, &balance, `SELECT wallet_balance FROM profiles WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, false, fmt.Errorf("%w: profile %s", models.ErrNotFound, id)
		}
		return decimal.Zero, false, fmt.Errorf("failed to read wallet balance: %w", err)
	}
	return balance, false, nil
}
