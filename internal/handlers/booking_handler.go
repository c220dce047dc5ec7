package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/railtatkal/tatkal-backend/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// BookingService is the booking side of the orchestrator
type BookingService interface {
	CreateBooking(ctx context.Context, userID uuid.UUID, req *models.CreateBookingRequest, meta models.RequestMeta) (*models.CreateBookingResponse, error)
	ListBookings(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Booking, error)
	GetBookingStatus(ctx context.Context, userID, bookingID uuid.UUID) (*models.Booking, error)
	CancelBooking(ctx context.Context, userID, bookingID uuid.UUID, req *models.CancelBookingRequest, meta models.RequestMeta) (*models.CancelBookingResponse, error)
}

// TicketRenderer renders e-tickets for booked bookings
type TicketRenderer interface {
	RenderPDF(booking *models.Booking) ([]byte, error)
}

// BookingHandler handles booking endpoints
type BookingHandler struct {
	bookings BookingService
	tickets  TicketRenderer
	logger   *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(bookings BookingService, tickets TicketRenderer, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		bookings: bookings,
		tickets:  tickets,
		logger:   logger,
	}
}

// ============================================================================
// CREATE BOOKING - POST /api/v1/bookings
// ============================================================================

// CreateBooking records a booking and attempts wallet auto-pay.
// 201 with wallet_auto_debited=true when paid, otherwise recharge_required=true
// and the booking stays initiated for gateway payment.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}

	response, err := h.bookings.CreateBooking(c.Request.Context(), userID, &req, requestMeta(c))
	if err != nil {
		respondError(c, h.logger, "create_booking", err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// ============================================================================
// LIST BOOKINGS - GET /api/v1/bookings
// ============================================================================

// ListBookings returns the caller's bookings, newest first
func (h *BookingHandler) ListBookings(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	limit := defaultListLimit
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			respondBadRequest(c, "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxListLimit)
	}
	offset := 0
	if o := c.Query("offset"); o != "" {
		parsed, err := strconv.Atoi(o)
		if err != nil || parsed < 0 {
			respondBadRequest(c, "offset must be a non-negative integer")
			return
		}
		offset = parsed
	}

	bookings, err := h.bookings.ListBookings(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(c, h.logger, "list_bookings", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bookings": bookings,
		"limit":    limit,
		"offset":   offset,
	})
}

// ============================================================================
// GET BOOKING - GET /api/v1/bookings/:id
// ============================================================================

// GetBooking returns the current state of one booking
func (h *BookingHandler) GetBooking(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	bookingID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	booking, err := h.bookings.GetBookingStatus(c.Request.Context(), userID, bookingID)
	if err != nil {
		respondError(c, h.logger, "get_booking", err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// ============================================================================
// CANCEL BOOKING - POST /api/v1/bookings/:id/cancel
// ============================================================================

// CancelBooking cancels a booking; a paid fare goes back to the wallet
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	bookingID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	// Body is optional
	var req models.CancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}

	response, err := h.bookings.CancelBooking(c.Request.Context(), userID, bookingID, &req, requestMeta(c))
	if err != nil {
		respondError(c, h.logger, "cancel_booking", err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ============================================================================
// E-TICKET - GET /api/v1/bookings/:id/ticket
// ============================================================================

// GetTicket streams the PDF e-ticket of a booked booking
func (h *BookingHandler) GetTicket(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	bookingID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	booking, err := h.bookings.GetBookingStatus(c.Request.Context(), userID, bookingID)
	if err != nil {
		respondError(c, h.logger, "get_ticket", err)
		return
	}

	pdf, err := h.tickets.RenderPDF(booking)
	if err != nil {
		respondError(c, h.logger, "get_ticket", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="ticket-%s.pdf"`, *booking.PNR))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
