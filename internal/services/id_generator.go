package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/railtatkal/tatkal-backend/internal/database"
	"github.com/railtatkal/tatkal-backend/internal/models"
)

const (
	orderIDPrefix    = "order_"
	orderIDLength    = 14
	maxIDGenAttempts = 10
	base62Alphabet   = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

// IDGenerator produces booking confirmation codes and gateway order ids
type IDGenerator interface {
	NewPNR() (string, error)
	NewOrderID() (string, error)
}

// RandomIDGenerator draws ids from crypto/rand
type RandomIDGenerator struct{}

// NewRandomIDGenerator creates a new RandomIDGenerator
func NewRandomIDGenerator() *RandomIDGenerator {
	return &RandomIDGenerator{}
}

// NewPNR returns a 10 digit numeric code
func (g *RandomIDGenerator) NewPNR() (string, error) {
	return randomString("0123456789", models.PNRLength)
}

// NewOrderID returns "order_" followed by 14 base62 characters
func (g *RandomIDGenerator) NewOrderID() (string, error) {
	suffix, err := randomString(base62Alphabet, orderIDLength)
	if err != nil {
		return "", err
	}
	return orderIDPrefix + suffix, nil
}

func randomString(alphabet string, length int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}

// generateUniquePNR draws PNRs until one is unused
func generateUniquePNR(ctx context.Context, ids IDGenerator, bookings database.BookingStore) (string, error) {
	for attempts := 0; attempts < maxIDGenAttempts; attempts++ {
		pnr, err := ids.NewPNR()
		if err != nil {
			return "", err
		}

		exists, err := bookings.PNRExists(ctx, pnr)
		if err != nil {
			return "", err
		}
		if !exists {
			return pnr, nil
		}
	}

	return "", fmt.Errorf("failed to generate unique PNR after %d attempts", maxIDGenAttempts)
}

// generateUniqueOrderID draws order ids until one is unused
func generateUniqueOrderID(ctx context.Context, ids IDGenerator, txns database.PaymentTransactionStore) (string, error) {
	for attempts := 0; attempts < maxIDGenAttempts; attempts++ {
		orderID, err := ids.NewOrderID()
		if err != nil {
			return "", err
		}

		exists, err := txns.OrderIDExists(ctx, orderID)
		if err != nil {
			return "", err
		}
		if !exists {
			return orderID, nil
		}
	}

	return "", fmt.Errorf("failed to generate unique order id after %d attempts", maxIDGenAttempts)
}
