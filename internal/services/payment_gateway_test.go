package services

import (
	"context"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/railtatkal/tatkal-backend/internal/config"
	"github.com/railtatkal/tatkal-backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCheckoutGateway() *CheckoutGateway {
	return NewCheckoutGateway(config.PaymentConfig{
		KeyID:           "rzp_test_key",
		KeySecret:       "test_secret",
		CheckoutBaseURL: "https://checkout.test/pay",
		Currency:        "INR",
	}, testLogger())
}

func TestCheckoutGateway_CreateOrder(t *testing.T) {
	gateway := newTestCheckoutGateway()
	require.True(t, gateway.IsConfigured())

	order, err := gateway.CreateOrder(context.Background(), OrderRequest{
		OrderID:   "order_AbCdEfGh123456",
		BookingID: uuid.New(),
		Amount:    decimal.RequireFromString("200"),
		Currency:  "INR",
	})
	require.NoError(t, err)

	parsed, err := url.Parse(order.PaymentURL)
	require.NoError(t, err)
	assert.Equal(t, "checkout.test", parsed.Host)
	assert.Equal(t, "order_AbCdEfGh123456", parsed.Query().Get("order_id"))
	assert.Equal(t, "200.00", parsed.Query().Get("amount"))
	assert.Equal(t, "rzp_test_key", parsed.Query().Get("key_id"))
}

func TestCheckoutGateway_NotConfigured(t *testing.T) {
	gateway := NewCheckoutGateway(config.PaymentConfig{CheckoutBaseURL: "https://checkout.test/pay"}, testLogger())
	assert.False(t, gateway.IsConfigured())

	_, err := gateway.CreateOrder(context.Background(), OrderRequest{OrderID: "order_x"})
	assert.ErrorIs(t, err, models.ErrGatewayUnavailable)
}

func TestCheckoutGateway_VerifyCallback(t *testing.T) {
	gateway := newTestCheckoutGateway()
	signature := gateway.Sign("order_1", "pay_1")

	assert.Len(t, signature, 64)
	assert.True(t, gateway.VerifyCallback("order_1", "pay_1", signature))
	assert.False(t, gateway.VerifyCallback("order_1", "pay_2", signature))
	assert.False(t, gateway.VerifyCallback("order_1", "pay_1", ""))

	other := NewCheckoutGateway(config.PaymentConfig{KeySecret: "another_secret"}, testLogger())
	assert.False(t, other.VerifyCallback("order_1", "pay_1", signature))
}
