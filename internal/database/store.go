package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/railtatkal/tatkal-backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Querier is satisfied by both *sqlx.DB and *sqlx.Tx so every repository
// can run inside or outside a unit of work.
type Querier interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
}

// ProfileStore is the profile directory. Wallet balance changes go through
// AddBalance and DeductBalance only.
type ProfileStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	AddBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
	DeductBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, bool, error)
}

// BookingStore persists bookings
type BookingStore interface {
	Create(ctx context.Context, booking *models.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Booking, error)
	Update(ctx context.Context, booking *models.Booking, from models.BookingStatus) error
	PNRExists(ctx context.Context, pnr string) (bool, error)
}

// PaymentTransactionStore persists gateway payment attempts
type PaymentTransactionStore interface {
	Create(ctx context.Context, txn *models.PaymentTransaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error)
	GetByOrderIDForUpdate(ctx context.Context, orderID string) (*models.PaymentTransaction, error)
	GetLiveByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.PaymentTransaction, error)
	OrderIDExists(ctx context.Context, orderID string) (bool, error)
	Complete(ctx context.Context, txn *models.PaymentTransaction) error
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.PaymentTransaction, error)
}

// PaymentAuditStore appends audit entries
type PaymentAuditStore interface {
	Log(ctx context.Context, audit *models.PaymentAudit) error
}

// Repositories groups the stores bound to one Querier
type Repositories struct {
	Profiles     ProfileStore
	Bookings     BookingStore
	Transactions PaymentTransactionStore
	Audits       PaymentAuditStore
}

// TxManager runs a function inside one database transaction.
// The function's error (or panic) rolls everything back.
type TxManager interface {
	Repositories() Repositories
	WithinTx(ctx context.Context, fn func(repos Repositories) error) error
}

// Store is the PostgreSQL TxManager
type Store struct {
	db     *sqlx.DB
	logger *logrus.Logger
	repos  Repositories
}

// NewStore creates a new Store
func NewStore(db *sqlx.DB, logger *logrus.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
		repos:  newRepositories(db, logger),
	}
}

func newRepositories(q Querier, logger *logrus.Logger) Repositories {
	return Repositories{
		Profiles:     NewProfileRepository(q),
		Bookings:     NewBookingRepository(q),
		Transactions: NewPaymentTransactionRepository(q),
		Audits:       NewPaymentAuditRepository(q, logger),
	}
}

// Repositories returns stores running outside any transaction
func (s *Store) Repositories() Repositories {
	return s.repos
}

// WithinTx runs fn in a transaction and commits when it returns nil
func (s *Store) WithinTx(ctx context.Context, fn func(repos Repositories) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(newRepositories(tx, s.logger)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.WithError(rbErr).Error("Failed to roll back transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// pnrConstraint is the unique constraint on bookings.pnr
const pnrConstraint = "bookings_pnr_key"

// ErrPNRTaken is wrapped into the ErrConflict returned when a booking write
// loses a PNR to a concurrent booking. The unit of work can be retried with
// a fresh PNR.
var ErrPNRTaken = errors.New("pnr already assigned")

// isUniqueViolation reports whether err is a PostgreSQL unique_violation
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func isPNRViolation(err error) bool {
	var pqErr *pq.Error
	return isUniqueViolation(err) && errors.As(err, &pqErr) && pqErr.Constraint == pnrConstraint
}
