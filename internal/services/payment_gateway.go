package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"github.com/railtatkal/tatkal-backend/internal/config"
	"github.com/railtatkal/tatkal-backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// OrderRequest is what the orchestrator asks the gateway to open
type OrderRequest struct {
	OrderID   string
	BookingID uuid.UUID
	Amount    decimal.Decimal
	Currency  string
}

// GatewayOrder is a checkout session opened at the gateway
type GatewayOrder struct {
	OrderID    string
	PaymentURL string
	KeyID      string
	Amount     decimal.Decimal
	Currency   string
}

// PaymentGateway is the external payment gateway adapter
type PaymentGateway interface {
	IsConfigured() bool
	CreateOrder(ctx context.Context, req OrderRequest) (*GatewayOrder, error)
	VerifyCallback(orderID, paymentID, signature string) bool
}

// CheckoutGateway opens hosted checkout sessions and verifies callbacks
// signed with HMAC-SHA256 over "order_id|payment_id" using the key secret.
type CheckoutGateway struct {
	config config.PaymentConfig
	logger *logrus.Logger
}

// NewCheckoutGateway creates the gateway adapter once at startup
func NewCheckoutGateway(cfg config.PaymentConfig, logger *logrus.Logger) *CheckoutGateway {
	return &CheckoutGateway{
		config: cfg,
		logger: logger,
	}
}

// IsConfigured returns true if payment gateway is properly configured
func (g *CheckoutGateway) IsConfigured() bool {
	return g.config.KeyID != "" && g.config.KeySecret != "" && g.config.CheckoutBaseURL != ""
}

// CreateOrder builds the checkout URL for an order
func (g *CheckoutGateway) CreateOrder(ctx context.Context, req OrderRequest) (*GatewayOrder, error) {
	if !g.IsConfigured() {
		return nil, models.ErrGatewayUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base, err := url.Parse(g.config.CheckoutBaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid checkout URL: %v", models.ErrGatewayUnavailable, err)
	}

	query := base.Query()
	query.Set("key_id", g.config.KeyID)
	query.Set("order_id", req.OrderID)
	query.Set("amount", req.Amount.StringFixed(models.MoneyScale))
	query.Set("currency", req.Currency)
	base.RawQuery = query.Encode()

	g.logger.WithFields(logrus.Fields{
		"order_id":   req.OrderID,
		"booking_id": req.BookingID,
		"amount":     req.Amount.StringFixed(models.MoneyScale),
	}).Info("Gateway order created")

	return &GatewayOrder{
		OrderID:    req.OrderID,
		PaymentURL: base.String(),
		KeyID:      g.config.KeyID,
		Amount:     req.Amount,
		Currency:   req.Currency,
	}, nil
}

// Sign returns the callback signature for an order/payment pair
func (g *CheckoutGateway) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(g.config.KeySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyCallback checks a callback signature in constant time
func (g *CheckoutGateway) VerifyCallback(orderID, paymentID, signature string) bool {
	if g.config.KeySecret == "" || signature == "" {
		return false
	}
	expected := g.Sign(orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
