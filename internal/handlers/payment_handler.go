package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/railtatkal/tatkal-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// PaymentService is the gateway side of the orchestrator
type PaymentService interface {
	InitiatePaymentSession(ctx context.Context, userID uuid.UUID, req *models.InitiatePaymentRequest, meta models.RequestMeta) (*models.InitiatePaymentResponse, error)
	ReconcileCallback(ctx context.Context, req *models.PaymentCallbackRequest, meta models.RequestMeta) (*models.PaymentCallbackResponse, error)
	GetPaymentStatus(ctx context.Context, userID, transactionID uuid.UUID) (*models.PaymentStatusResponse, error)
}

// PaymentHandler handles payment session and gateway callback endpoints
type PaymentHandler struct {
	payments PaymentService
	logger   *logrus.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments PaymentService, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		logger:   logger,
	}
}

// ============================================================================
// INITIATE PAYMENT - POST /api/v1/payments/initiate
// ============================================================================

// InitiatePayment opens a gateway checkout session for an unpaid booking
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.BookingID == uuid.Nil {
		respondBadRequest(c, "booking_id is required")
		return
	}

	response, err := h.payments.InitiatePaymentSession(c.Request.Context(), userID, &req, requestMeta(c))
	if err != nil {
		respondError(c, h.logger, "initiate_payment", err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ============================================================================
// PAYMENT CALLBACK - POST /api/v1/payments/callback
// ============================================================================

// PaymentCallback reconciles a gateway notification. Public; authenticity
// comes from the callback signature. Replays return the recorded outcome.
func (h *PaymentHandler) PaymentCallback(c *gin.Context) {
	bodyBytes, err := c.GetRawData()
	if err != nil {
		h.logger.WithError(err).Error("Failed to read callback body")
		respondBadRequest(c, "failed to read request body")
		return
	}

	var req models.PaymentCallbackRequest
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		respondBadRequest(c, "invalid callback payload")
		return
	}
	// Keep the raw notification for the audit trail
	var payload models.JSONB
	if err := json.Unmarshal(bodyBytes, &payload); err == nil {
		req.Payload = payload
	}

	h.logger.WithFields(logrus.Fields{
		"order_id":   req.OrderID,
		"payment_id": req.PaymentID,
		"success":    req.Success,
	}).Info("Payment callback received")

	response, err := h.payments.ReconcileCallback(c.Request.Context(), &req, requestMeta(c))
	if err != nil {
		respondError(c, h.logger, "payment_callback", err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ============================================================================
// PAYMENT STATUS - GET /api/v1/payments/:id/status
// ============================================================================

// GetPaymentStatus returns a payment transaction with its booking state
func (h *PaymentHandler) GetPaymentStatus(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	transactionID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	response, err := h.payments.GetPaymentStatus(c.Request.Context(), userID, transactionID)
	if err != nil {
		respondError(c, h.logger, "get_payment_status", err)
		return
	}

	c.JSON(http.StatusOK, response)
}
