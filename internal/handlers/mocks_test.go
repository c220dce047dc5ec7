package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/railtatkal/tatkal-backend/internal/middleware"
	"github.com/railtatkal/tatkal-backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

type mockBookingService struct {
	mock.Mock
}

func (m *mockBookingService) CreateBooking(ctx context.Context, userID uuid.UUID, req *models.CreateBookingRequest, meta models.RequestMeta) (*models.CreateBookingResponse, error) {
	args := m.Called(ctx, userID, req, meta)
	resp, _ := args.Get(0).(*models.CreateBookingResponse)
	return resp, args.Error(1)
}

func (m *mockBookingService) ListBookings(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Booking, error) {
	args := m.Called(ctx, userID, limit, offset)
	bookings, _ := args.Get(0).([]models.Booking)
	return bookings, args.Error(1)
}

func (m *mockBookingService) GetBookingStatus(ctx context.Context, userID, bookingID uuid.UUID) (*models.Booking, error) {
	args := m.Called(ctx, userID, bookingID)
	booking, _ := args.Get(0).(*models.Booking)
	return booking, args.Error(1)
}

func (m *mockBookingService) CancelBooking(ctx context.Context, userID, bookingID uuid.UUID, req *models.CancelBookingRequest, meta models.RequestMeta) (*models.CancelBookingResponse, error) {
	args := m.Called(ctx, userID, bookingID, req, meta)
	resp, _ := args.Get(0).(*models.CancelBookingResponse)
	return resp, args.Error(1)
}

type mockTicketRenderer struct {
	mock.Mock
}

func (m *mockTicketRenderer) RenderPDF(booking *models.Booking) ([]byte, error) {
	args := m.Called(booking)
	pdf, _ := args.Get(0).([]byte)
	return pdf, args.Error(1)
}

type mockPaymentService struct {
	mock.Mock
}

func (m *mockPaymentService) InitiatePaymentSession(ctx context.Context, userID uuid.UUID, req *models.InitiatePaymentRequest, meta models.RequestMeta) (*models.InitiatePaymentResponse, error) {
	args := m.Called(ctx, userID, req, meta)
	resp, _ := args.Get(0).(*models.InitiatePaymentResponse)
	return resp, args.Error(1)
}

func (m *mockPaymentService) ReconcileCallback(ctx context.Context, req *models.PaymentCallbackRequest, meta models.RequestMeta) (*models.PaymentCallbackResponse, error) {
	args := m.Called(ctx, req, meta)
	resp, _ := args.Get(0).(*models.PaymentCallbackResponse)
	return resp, args.Error(1)
}

func (m *mockPaymentService) GetPaymentStatus(ctx context.Context, userID, transactionID uuid.UUID) (*models.PaymentStatusResponse, error) {
	args := m.Called(ctx, userID, transactionID)
	resp, _ := args.Get(0).(*models.PaymentStatusResponse)
	return resp, args.Error(1)
}

type mockWalletService struct {
	mock.Mock
}

func (m *mockWalletService) DepositForUser(ctx context.Context, userID, profileID uuid.UUID, amount decimal.Decimal, meta models.RequestMeta) (decimal.Decimal, error) {
	args := m.Called(ctx, userID, profileID, amount, meta)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockWalletService) Balance(ctx context.Context, userID, profileID uuid.UUID) (*models.WalletBalanceResponse, error) {
	args := m.Called(ctx, userID, profileID)
	resp, _ := args.Get(0).(*models.WalletBalanceResponse)
	return resp, args.Error(1)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// newTestRouter simulates AuthMiddleware for userID; uuid.Nil leaves the
// request unauthenticated
func newTestRouter(userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.RequestID())
	if userID != uuid.Nil {
		router.Use(func(c *gin.Context) {
			c.Set(middleware.UserContextKey, middleware.UserContext{UserID: userID, Roles: []string{"passenger"}})
			c.Next()
		})
	}
	return router
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader = http.NoBody
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewBuffer(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(w *httptest.ResponseRecorder) ErrorResponse {
	var resp ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}
