package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/railtatkal/tatkal-backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// WalletService is the profile wallet ledger
type WalletService interface {
	DepositForUser(ctx context.Context, userID, profileID uuid.UUID, amount decimal.Decimal, meta models.RequestMeta) (decimal.Decimal, error)
	Balance(ctx context.Context, userID, profileID uuid.UUID) (*models.WalletBalanceResponse, error)
}

// WalletHandler handles wallet endpoints
type WalletHandler struct {
	wallet   WalletService
	currency string
	logger   *logrus.Logger
}

// NewWalletHandler creates a new WalletHandler
func NewWalletHandler(wallet WalletService, currency string, logger *logrus.Logger) *WalletHandler {
	return &WalletHandler{
		wallet:   wallet,
		currency: currency,
		logger:   logger,
	}
}

// Deposit handles POST /api/v1/profiles/:id/wallet/deposit
func (h *WalletHandler) Deposit(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	profileID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req models.DepositWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}

	balance, err := h.wallet.DepositForUser(c.Request.Context(), userID, profileID, req.Amount, requestMeta(c))
	if err != nil {
		respondError(c, h.logger, "wallet_deposit", err)
		return
	}

	c.JSON(http.StatusOK, models.WalletBalanceResponse{
		ProfileID:     profileID,
		WalletBalance: balance,
		Currency:      h.currency,
	})
}

// GetBalance handles GET /api/v1/profiles/:id/wallet
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	profileID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	response, err := h.wallet.Balance(c.Request.Context(), userID, profileID)
	if err != nil {
		respondError(c, h.logger, "wallet_balance", err)
		return
	}

	c.JSON(http.StatusOK, response)
}
