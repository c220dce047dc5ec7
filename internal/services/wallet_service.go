package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/railtatkal/tatkal-backend/internal/database"
	"github.com/railtatkal/tatkal-backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// WalletService is the prepaid wallet ledger. Every balance change is a
// single conditional UPDATE on the profile row, so concurrent callers never
// lose updates or overdraw.
type WalletService struct {
	store    database.TxManager
	currency string
	logger   *logrus.Logger
}

// NewWalletService creates a new WalletService
func NewWalletService(store database.TxManager, currency string, logger *logrus.Logger) *WalletService {
	return &WalletService{
		store:    store,
		currency: currency,
		logger:   logger,
	}
}

// Deposit credits amount to the profile's wallet and returns the new balance
func (s *WalletService) Deposit(ctx context.Context, profileID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	return s.deposit(ctx, nil, profileID, amount, models.RequestMeta{})
}

// DepositForUser is Deposit restricted to the profile's owner
func (s *WalletService) DepositForUser(ctx context.Context, userID, profileID uuid.UUID, amount decimal.Decimal, meta models.RequestMeta) (decimal.Decimal, error) {
	return s.deposit(ctx, &userID, profileID, amount, meta)
}

func (s *WalletService) deposit(ctx context.Context, userID *uuid.UUID, profileID uuid.UUID, amount decimal.Decimal, meta models.RequestMeta) (decimal.Decimal, error) {
	if err := models.ValidatePositiveAmount("amount", amount); err != nil {
		return decimal.Zero, err
	}

	if userID != nil {
		if _, err := s.ownedProfile(ctx, *userID, profileID); err != nil {
			return decimal.Zero, err
		}
	}

	var balance decimal.Decimal
	err := s.store.WithinTx(ctx, func(repos database.Repositories) error {
		var err error
		balance, err = s.CreditWithin(ctx, repos, profileID, amount)
		if err != nil {
			return err
		}

		audit := models.NewPaymentAudit(models.PaymentEventWalletDeposit, models.PaymentSourceUser).
			SetProfile(profileID).
			SetAmount(amount, s.currency).
			SetMetadata(meta)
		return repos.Audits.Log(ctx, audit)
	})
	if err != nil {
		return decimal.Zero, err
	}

	s.logger.WithFields(logrus.Fields{
		"profile_id": profileID,
		"amount":     amount.StringFixed(models.MoneyScale),
		"balance":    balance.StringFixed(models.MoneyScale),
	}).Info("Wallet deposit completed")

	return balance, nil
}

// CanAfford reports whether the wallet covers amount. Pure read.
func (s *WalletService) CanAfford(ctx context.Context, profileID uuid.UUID, amount decimal.Decimal) (bool, error) {
	profile, err := s.store.Repositories().Profiles.GetByID(ctx, profileID)
	if err != nil {
		return false, err
	}
	if profile == nil {
		return false, fmt.Errorf("%w: profile %s", models.ErrNotFound, profileID)
	}
	return profile.CanAfford(amount), nil
}

// Deduct debits amount if the balance covers it. false means insufficient
// funds and no mutation.
func (s *WalletService) Deduct(ctx context.Context, profileID uuid.UUID, amount decimal.Decimal) (bool, error) {
	var ok bool
	err := s.store.WithinTx(ctx, func(repos database.Repositories) error {
		var err error
		_, ok, err = s.DeductWithin(ctx, repos, profileID, amount)
		return err
	})
	return ok, err
}

// DeductWithin is Deduct bound to the caller's unit of work
func (s *WalletService) DeductWithin(ctx context.Context, repos database.Repositories, profileID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, bool, error) {
	if amount.IsNegative() || !models.IsMoney(amount) {
		return decimal.Zero, false, fmt.Errorf("%w: invalid debit amount %s", models.ErrInvalidInput, amount)
	}

	balance, ok, err := repos.Profiles.DeductBalance(ctx, profileID, amount)
	if err != nil {
		return decimal.Zero, false, err
	}

	s.logger.WithFields(logrus.Fields{
		"profile_id": profileID,
		"amount":     amount.StringFixed(models.MoneyScale),
		"debited":    ok,
	}).Debug("Wallet debit attempted")

	return balance, ok, nil
}

// CreditWithin adds amount to the wallet inside the caller's unit of work
func (s *WalletService) CreditWithin(ctx context.Context, repos database.Repositories, profileID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() || !models.IsMoney(amount) {
		return decimal.Zero, fmt.Errorf("%w: invalid credit amount %s", models.ErrInvalidInput, amount)
	}
	return repos.Profiles.AddBalance(ctx, profileID, amount)
}

// Balance returns the wallet balance of a profile owned by userID
func (s *WalletService) Balance(ctx context.Context, userID, profileID uuid.UUID) (*models.WalletBalanceResponse, error) {
	profile, err := s.ownedProfile(ctx, userID, profileID)
	if err != nil {
		return nil, err
	}
	return &models.WalletBalanceResponse{
		ProfileID:     profile.ID,
		WalletBalance: profile.WalletBalance,
		Currency:      s.currency,
	}, nil
}

func (s *WalletService) ownedProfile(ctx context.Context, userID, profileID uuid.UUID) (*models.Profile, error) {
	profile, err := s.store.Repositories().Profiles.GetByID(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, fmt.Errorf("%w: profile %s", models.ErrNotFound, profileID)
	}
	if !profile.OwnedBy(userID) {
		return nil, fmt.Errorf("%w: profile belongs to another user", models.ErrForbidden)
	}
	return profile, nil
}
