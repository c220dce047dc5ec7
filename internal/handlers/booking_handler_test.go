package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/railtatkal/tatkal-backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupBookingRouter(userID uuid.UUID) (*mockBookingService, *mockTicketRenderer, *gin.Engine) {
	bookings := &mockBookingService{}
	tickets := &mockTicketRenderer{}
	handler := NewBookingHandler(bookings, tickets, testLogger())

	router := newTestRouter(userID)
	router.POST("/bookings", handler.CreateBooking)
	router.GET("/bookings", handler.ListBookings)
	router.GET("/bookings/:id", handler.GetBooking)
	router.POST("/bookings/:id/cancel", handler.CancelBooking)
	router.GET("/bookings/:id/ticket", handler.GetTicket)
	return bookings, tickets, router
}

func TestCreateBooking_Success(t *testing.T) {
	userID := uuid.New()
	bookings, _, router := setupBookingRouter(userID)
	profileID := uuid.New()
	balance := decimal.RequireFromString("300")

	bookings.On("CreateBooking",
		mock.Anything,
		userID,
		mock.MatchedBy(func(req *models.CreateBookingRequest) bool {
			return req.ProfileID == profileID && req.TrainNo == "12951" && req.Fare.Equal(decimal.NewFromInt(200))
		}),
		mock.MatchedBy(func(meta models.RequestMeta) bool {
			return meta.DeviceType == "mobile" && meta.CorrelationID != "" && meta.IPAddress != ""
		}),
	).Return(&models.CreateBookingResponse{
		Booking:           &models.Booking{ID: uuid.New(), BookingStatus: models.BookingStatusBooked, Paid: true},
		WalletAutoDebited: true,
		WalletBalance:     &balance,
	}, nil)

	w := doJSON(router, http.MethodPost, "/bookings", map[string]interface{}{
		"profile_id":     profileID,
		"train_no":       "12951",
		"passenger_name": "Asha Rao",
		"passenger_age":  34,
		"passenger_sex":  "F",
		"source":         "NDLS",
		"destination":    "BCT",
		"journey_date":   "2026-11-02",
		"fare":           "200.00",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["wallet_auto_debited"])
	assert.Equal(t, "booked", body["booking_status"])
	bookings.AssertExpectations(t)
}

func TestCreateBooking_RechargeRequired(t *testing.T) {
	userID := uuid.New()
	bookings, _, router := setupBookingRouter(userID)
	message := "Insufficient wallet balance"

	bookings.On("CreateBooking", mock.Anything, userID, mock.Anything, mock.Anything).
		Return(&models.CreateBookingResponse{
			Booking:          &models.Booking{ID: uuid.New(), BookingStatus: models.BookingStatusInitiated},
			RechargeRequired: true,
			Error:            &message,
		}, nil)

	w := doJSON(router, http.MethodPost, "/bookings", map[string]interface{}{"fare": 200})

	require.Equal(t, http.StatusCreated, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["recharge_required"])
	assert.Equal(t, "initiated", body["booking_status"])
	assert.Equal(t, message, body["error"])
}

func TestCreateBooking_BadRequests(t *testing.T) {
	userID := uuid.New()

	t.Run("Malformed JSON", func(t *testing.T) {
		bookings, _, router := setupBookingRouter(userID)

		w := doJSON(router, http.MethodPost, "/bookings", `{"train_no":`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_input", decodeError(w).Error)
		bookings.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Validation failure", func(t *testing.T) {
		bookings, _, router := setupBookingRouter(userID)
		bookings.On("CreateBooking", mock.Anything, userID, mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("%w: source and destination must differ", models.ErrInvalidInput))

		w := doJSON(router, http.MethodPost, "/bookings", map[string]interface{}{"source": "NDLS", "destination": "NDLS"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeError(w)
		assert.Equal(t, "invalid_input", resp.Error)
		assert.Contains(t, resp.Message, "source and destination must differ")
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		bookings, _, router := setupBookingRouter(uuid.Nil)

		w := doJSON(router, http.MethodPost, "/bookings", map[string]interface{}{"fare": 200})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		bookings.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestGetBooking_ErrorMapping(t *testing.T) {
	userID := uuid.New()
	bookingID := uuid.New()

	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"Not found", fmt.Errorf("%w: booking %s", models.ErrNotFound, bookingID), http.StatusNotFound, "not_found", "not found"},
		{"Forbidden", fmt.Errorf("%w: booking belongs to another user", models.ErrForbidden), http.StatusForbidden, "forbidden", "another user"},
		{"Conflict", fmt.Errorf("%w: live session exists", models.ErrConflict), http.StatusConflict, "conflict", "live session"},
		{"Invalid transition", fmt.Errorf("%w: booking is cancelled", models.ErrInvalidTransition), http.StatusConflict, "invalid_transition", "cancelled"},
		{"Gateway unavailable", fmt.Errorf("%w: not configured", models.ErrGatewayUnavailable), http.StatusServiceUnavailable, "gateway_unavailable", "not configured"},
		{"Internal", errors.New("pq: connection reset"), http.StatusInternalServerError, "internal_error", "An internal error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bookings, _, router := setupBookingRouter(userID)
			bookings.On("GetBookingStatus", mock.Anything, userID, bookingID).Return(nil, tt.err)

			w := doJSON(router, http.MethodGet, "/bookings/"+bookingID.String(), nil)

			assert.Equal(t, tt.status, w.Code)
			resp := decodeError(w)
			assert.Equal(t, tt.code, resp.Error)
			assert.Contains(t, resp.Message, tt.message)
			assert.NotContains(t, resp.Message, "pq:")
		})
	}
}

func TestGetBooking_InvalidID(t *testing.T) {
	bookings, _, router := setupBookingRouter(uuid.New())

	w := doJSON(router, http.MethodGet, "/bookings/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	bookings.AssertNotCalled(t, "GetBookingStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestListBookings_Pagination(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name   string
		query  string
		limit  int
		offset int
	}{
		{"Defaults", "", 20, 0},
		{"Explicit", "?limit=5&offset=10", 5, 10},
		{"Clamped", "?limit=500", 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bookings, _, router := setupBookingRouter(userID)
			bookings.On("ListBookings", mock.Anything, userID, tt.limit, tt.offset).
				Return([]models.Booking{{ID: uuid.New(), UserID: userID}}, nil)

			w := doJSON(router, http.MethodGet, "/bookings"+tt.query, nil)

			require.Equal(t, http.StatusOK, w.Code)
			var body struct {
				Bookings []models.Booking `json:"bookings"`
				Limit    int              `json:"limit"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Len(t, body.Bookings, 1)
			assert.Equal(t, tt.limit, body.Limit)
			bookings.AssertExpectations(t)
		})
	}

	t.Run("Invalid limit", func(t *testing.T) {
		bookings, _, router := setupBookingRouter(userID)

		w := doJSON(router, http.MethodGet, "/bookings?limit=abc", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		bookings.AssertNotCalled(t, "ListBookings", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCancelBooking(t *testing.T) {
	userID := uuid.New()
	bookingID := uuid.New()

	t.Run("With feedback", func(t *testing.T) {
		bookings, _, router := setupBookingRouter(userID)
		bookings.On("CancelBooking", mock.Anything, userID, bookingID,
			mock.MatchedBy(func(req *models.CancelBookingRequest) bool {
				return req.Feedback != nil && *req.Feedback == "change of plans"
			}),
			mock.Anything,
		).Return(&models.CancelBookingResponse{
			Success:        true,
			Booking:        &models.Booking{ID: bookingID, BookingStatus: models.BookingStatusCancelled},
			RefundedAmount: decimal.NewFromInt(200),
		}, nil)

		w := doJSON(router, http.MethodPost, "/bookings/"+bookingID.String()+"/cancel", map[string]string{"feedback": "change of plans"})

		require.Equal(t, http.StatusOK, w.Code)
		var body models.CancelBookingResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.True(t, body.Success)
		assert.True(t, body.RefundedAmount.Equal(decimal.NewFromInt(200)))
	})

	t.Run("Empty body", func(t *testing.T) {
		bookings, _, router := setupBookingRouter(userID)
		bookings.On("CancelBooking", mock.Anything, userID, bookingID, &models.CancelBookingRequest{}, mock.Anything).
			Return(&models.CancelBookingResponse{Success: true}, nil)

		w := doJSON(router, http.MethodPost, "/bookings/"+bookingID.String()+"/cancel", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		bookings.AssertExpectations(t)
	})

	t.Run("Already cancelled", func(t *testing.T) {
		bookings, _, router := setupBookingRouter(userID)
		bookings.On("CancelBooking", mock.Anything, userID, bookingID, mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("%w: booking is already cancelled", models.ErrInvalidTransition))

		w := doJSON(router, http.MethodPost, "/bookings/"+bookingID.String()+"/cancel", nil)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "invalid_transition", decodeError(w).Error)
	})
}

func TestGetTicket(t *testing.T) {
	userID := uuid.New()
	bookingID := uuid.New()
	pnr := "4829103311"

	t.Run("Booked", func(t *testing.T) {
		bookings, tickets, router := setupBookingRouter(userID)
		booking := &models.Booking{ID: bookingID, BookingStatus: models.BookingStatusBooked, PNR: &pnr}
		bookings.On("GetBookingStatus", mock.Anything, userID, bookingID).Return(booking, nil)
		tickets.On("RenderPDF", booking).Return([]byte("%PDF-1.3 test"), nil)

		w := doJSON(router, http.MethodGet, "/bookings/"+bookingID.String()+"/ticket", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), pnr)
		assert.Equal(t, "%PDF-1.3 test", w.Body.String())
	})

	t.Run("Not booked", func(t *testing.T) {
		bookings, tickets, router := setupBookingRouter(userID)
		booking := &models.Booking{ID: bookingID, BookingStatus: models.BookingStatusInitiated}
		bookings.On("GetBookingStatus", mock.Anything, userID, bookingID).Return(booking, nil)
		tickets.On("RenderPDF", booking).Return(nil, fmt.Errorf("%w: no ticket issued", models.ErrInvalidTransition))

		w := doJSON(router, http.MethodGet, "/bookings/"+bookingID.String()+"/ticket", nil)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}
