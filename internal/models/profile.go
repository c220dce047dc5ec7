package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Profile is a passenger profile owned by one user. It holds the prepaid
// wallet balance; only wallet ledger operations change that balance.
type Profile struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	UserID         uuid.UUID       `json:"user_id" db:"user_id"`
	FullName       string          `json:"full_name" db:"full_name"`
	Age            int             `json:"age" db:"age"`
	Phone          string          `json:"phone" db:"phone"`
	PreferredBerth *string         `json:"preferred_berth,omitempty" db:"preferred_berth"`
	WalletBalance  decimal.Decimal `json:"wallet_balance" db:"wallet_balance"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// OwnedBy reports whether the profile belongs to userID
func (p *Profile) OwnedBy(userID uuid.UUID) bool {
	return p.UserID == userID
}

// CanAfford reports whether the wallet covers amount
func (p *Profile) CanAfford(amount decimal.Decimal) bool {
	return p.WalletBalance.GreaterThanOrEqual(amount)
}

// DepositWalletRequest is the body of a wallet top-up
type DepositWalletRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// WalletBalanceResponse reports a profile's balance
type WalletBalanceResponse struct {
	ProfileID     uuid.UUID       `json:"profile_id"`
	WalletBalance decimal.Decimal `json:"wallet_balance"`
	Currency      string          `json:"currency"`
}
