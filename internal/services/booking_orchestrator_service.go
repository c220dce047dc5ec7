package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/railtatkal/tatkal-backend/internal/database"
	"github.com/railtatkal/tatkal-backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// InsufficientBalanceMessage is returned when wallet auto-pay is declined
const InsufficientBalanceMessage = "Insufficient wallet balance. Recharge your wallet or pay via the payment gateway."

// BookingOrchestratorConfig holds configuration for the orchestrator
type BookingOrchestratorConfig struct {
	Currency         string        // Currency of every fare (default INR)
	SessionTTL       time.Duration // How long a gateway session stays payable (default 15 min)
	VerifySignatures bool          // Reject unsigned or mis-signed gateway callbacks
	MaxListLimit     int
}

// DefaultOrchestratorConfig returns default configuration
func DefaultOrchestratorConfig() BookingOrchestratorConfig {
	return BookingOrchestratorConfig{
		Currency:     "INR",
		SessionTTL:   15 * time.Minute,
		MaxListLimit: 100,
	}
}

// BookingOrchestratorService owns the booking state machine and keeps the
// booking, wallet and payment transaction records consistent.
type BookingOrchestratorService struct {
	store   database.TxManager
	wallet  *WalletService
	gateway PaymentGateway
	ids     IDGenerator
	cache   bookingCache
	config  BookingOrchestratorConfig
	logger  *logrus.Logger
	now     func() time.Time
}

// NewBookingOrchestratorService creates a new orchestrator service
func NewBookingOrchestratorService(
	store database.TxManager,
	wallet *WalletService,
	gateway PaymentGateway,
	ids IDGenerator,
	cache *BookingCache,
	config BookingOrchestratorConfig,
	logger *logrus.Logger,
) *BookingOrchestratorService {
	return &BookingOrchestratorService{
		store:   store,
		wallet:  wallet,
		gateway: gateway,
		ids:     ids,
		cache:   cache,
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
}

// ============================================================================
// CREATE BOOKING (wallet auto-pay)
// ============================================================================

// CreateBooking records a booking and tries to pay it from the wallet in the
// same unit of work. Insufficient funds leave the booking initiated and are
// reported in the response.
func (s *BookingOrchestratorService) CreateBooking(
	ctx context.Context,
	userID uuid.UUID,
	req *models.CreateBookingRequest,
	meta models.RequestMeta,
) (*models.CreateBookingResponse, error) {
	// 1. Validate request
	if err := req.Validate(); err != nil {
		return nil, err
	}
	journeyDate, _ := req.ParsedJourneyDate()

	// 2. Profile must exist and belong to the caller
	profile, err := s.store.Repositories().Profiles.GetByID(ctx, req.ProfileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if profile == nil {
		return nil, fmt.Errorf("%w: profile %s", models.ErrNotFound, req.ProfileID)
	}
	if !profile.OwnedBy(userID) {
		return nil, fmt.Errorf("%w: profile belongs to another user", models.ErrForbidden)
	}

	now := s.now()
	booking := &models.Booking{
		ID:             uuid.New(),
		ProfileID:      profile.ID,
		UserID:         userID,
		TrainNo:        req.TrainNo,
		PassengerName:  req.PassengerName,
		PassengerAge:   req.PassengerAge,
		PassengerSex:   req.PassengerSex,
		Source:         req.Source,
		Destination:    req.Destination,
		JourneyDate:    journeyDate,
		PreferredBerth: req.PreferredBerth,
		Fare:           req.Fare,
		BookingStatus:  models.BookingStatusInitiated,
		RefundedAmount: decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var (
		debited bool
		balance decimal.Decimal
	)

	// 3. Debit the wallet and persist the booking together
	draft := *booking
	err = s.withinTxRetryingPNR(ctx, func(repos database.Repositories) error {
		*booking = draft

		var err error
		balance, debited, err = s.wallet.DeductWithin(ctx, repos, profile.ID, booking.Fare)
		if err != nil {
			return fmt.Errorf("failed to debit wallet: %w", err)
		}

		if debited {
			pnr, err := generateUniquePNR(ctx, s.ids, repos.Bookings)
			if err != nil {
				return err
			}
			if err := booking.MarkBooked(pnr, true, now); err != nil {
				return err
			}
		}

		if err := repos.Bookings.Create(ctx, booking); err != nil {
			return err
		}

		eventType := models.PaymentEventWalletDebitDeclined
		if debited {
			eventType = models.PaymentEventWalletDebit
		}
		audit := models.NewPaymentAudit(eventType, models.PaymentSourceBackend).
			SetBooking(booking.ID).
			SetProfile(profile.ID).
			SetMetadata(meta).
			SetPaymentStatus(string(booking.BookingStatus))
		audit.SetAmounts(booking.Fare, booking.Fare, s.config.Currency)
		return repos.Audits.Log(ctx, audit)
	})
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"user_id":    userID,
			"profile_id": profile.ID,
		}).Error("Failed to create booking")
		return nil, err
	}

	s.cache.Set(ctx, booking)

	s.logger.WithFields(logrus.Fields{
		"booking_id":          booking.ID,
		"user_id":             userID,
		"fare":                booking.Fare.StringFixed(models.MoneyScale),
		"wallet_auto_debited": debited,
	}).Info("Booking created")

	resp := &models.CreateBookingResponse{
		Booking:           booking,
		WalletAutoDebited: debited,
		RechargeRequired:  !debited,
		WalletBalance:     &balance,
	}
	if !debited {
		msg := InsufficientBalanceMessage
		resp.Error = &msg
	}
	return resp, nil
}

// ============================================================================
// INITIATE PAYMENT SESSION (gateway path)
// ============================================================================

// InitiatePaymentSession opens a gateway order for an unpaid booking
func (s *BookingOrchestratorService) InitiatePaymentSession(
	ctx context.Context,
	userID uuid.UUID,
	req *models.InitiatePaymentRequest,
	meta models.RequestMeta,
) (*models.InitiatePaymentResponse, error) {
	repos := s.store.Repositories()

	// 1. Pre-checks outside the write transaction
	booking, err := s.ownedBooking(ctx, repos, userID, req.BookingID)
	if err != nil {
		return nil, err
	}
	if err := s.checkPayable(ctx, repos, booking, req.Amount); err != nil {
		return nil, err
	}

	// 2. Reserve an order id and open the gateway session; no lock is held here
	orderID, err := generateUniqueOrderID(ctx, s.ids, repos.Transactions)
	if err != nil {
		return nil, err
	}

	order, err := s.gateway.CreateOrder(ctx, OrderRequest{
		OrderID:   orderID,
		BookingID: booking.ID,
		Amount:    booking.Fare,
		Currency:  s.config.Currency,
	})
	if err != nil {
		s.logAuditOutsideTx(ctx, models.NewPaymentAudit(models.PaymentEventError, models.PaymentSourceBackend).
			SetBooking(booking.ID).
			SetOrderID(orderID).
			SetMetadata(meta).
			SetError(err.Error(), nil))
		if errors.Is(err, models.ErrGatewayUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", models.ErrGatewayUnavailable, err)
	}

	now := s.now()
	txn := &models.PaymentTransaction{
		ID:        uuid.New(),
		BookingID: booking.ID,
		OrderID:   order.OrderID,
		Status:    models.PaymentTransactionPending,
		Amount:    booking.Fare,
		Currency:  s.config.Currency,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// 3. Re-check under the booking row lock, then record the session
	var pending *models.Booking
	err = s.store.WithinTx(ctx, func(repos database.Repositories) error {
		locked, err := repos.Bookings.GetByIDForUpdate(ctx, booking.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return fmt.Errorf("%w: booking %s", models.ErrNotFound, booking.ID)
		}
		if err := s.checkPayable(ctx, repos, locked, req.Amount); err != nil {
			return err
		}

		if err := repos.Transactions.Create(ctx, txn); err != nil {
			return err
		}

		from := locked.BookingStatus
		if err := locked.MarkPaymentPending(now); err != nil {
			return err
		}
		if err := repos.Bookings.Update(ctx, locked, from); err != nil {
			return err
		}

		audit := models.NewPaymentAudit(models.PaymentEventInitiated, models.PaymentSourceUser).
			SetBooking(locked.ID).
			SetTransaction(txn).
			SetMetadata(meta).
			SetPaymentStatus(string(txn.Status))
		audit.SetAmounts(locked.Fare, req.Amount, s.config.Currency)
		if err := repos.Audits.Log(ctx, audit); err != nil {
			return err
		}
		pending = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, pending)

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"order_id":   txn.OrderID,
		"amount":     txn.Amount.StringFixed(models.MoneyScale),
	}).Info("Payment session initiated")

	return &models.InitiatePaymentResponse{
		OrderID:              txn.OrderID,
		PaymentURL:           order.PaymentURL,
		PaymentTransactionID: txn.ID,
		Amount:               txn.Amount,
		Currency:             txn.Currency,
		Status:               txn.Status,
		ExpiresAt:            now.Add(s.config.SessionTTL),
	}, nil
}

// checkPayable applies the session checks in order: live transaction,
// booking status, amount, gateway availability
func (s *BookingOrchestratorService) checkPayable(ctx context.Context, repos database.Repositories, booking *models.Booking, amount decimal.Decimal) error {
	live, err := repos.Transactions.GetLiveByBookingID(ctx, booking.ID)
	if err != nil {
		return err
	}
	if live != nil {
		return fmt.Errorf("%w: booking already has %s payment %s", models.ErrConflict, live.Status, live.OrderID)
	}
	if !booking.IsPayable() {
		return fmt.Errorf("%w: booking is %s", models.ErrInvalidTransition, booking.BookingStatus)
	}
	if !amount.Equal(booking.Fare) {
		return fmt.Errorf("%w: amount %s does not match fare %s", models.ErrInvalidInput,
			amount.StringFixed(models.MoneyScale), booking.Fare.StringFixed(models.MoneyScale))
	}
	if !s.gateway.IsConfigured() {
		return models.ErrGatewayUnavailable
	}
	return nil
}

// ============================================================================
// RECONCILE CALLBACK (gateway path)
// ============================================================================

// ReconcileCallback applies a gateway payment notification. Callbacks for a
// transaction that is already terminal are replays: the recorded outcome is
// returned unchanged.
func (s *BookingOrchestratorService) ReconcileCallback(
	ctx context.Context,
	req *models.PaymentCallbackRequest,
	meta models.RequestMeta,
) (*models.PaymentCallbackResponse, error) {
	startTime := time.Now()

	if req.OrderID == "" {
		return nil, fmt.Errorf("%w: order_id is required", models.ErrInvalidInput)
	}
	if req.Success && req.PaymentID == "" {
		return nil, fmt.Errorf("%w: payment_id is required for a successful payment", models.ErrInvalidInput)
	}

	// 1. Signature check
	if s.config.VerifySignatures {
		signature := ""
		if req.Signature != nil {
			signature = *req.Signature
		}
		if !s.gateway.VerifyCallback(req.OrderID, req.PaymentID, signature) {
			code := "invalid_signature"
			s.logAuditOutsideTx(ctx, models.NewPaymentAudit(models.PaymentEventError, models.PaymentSourceGatewayCallback).
				SetOrderID(req.OrderID).
				SetGatewayPaymentID(req.PaymentID).
				SetRequestPayload(req.Payload).
				SetMetadata(meta).
				SetError("callback signature verification failed", &code))
			return nil, fmt.Errorf("%w: invalid callback signature", models.ErrForbidden)
		}
	}

	var (
		resp       *models.PaymentCallbackResponse
		reconciled *models.Booking
	)

	// 2. Lock transaction then booking, and apply the outcome
	err := s.withinTxRetryingPNR(ctx, func(repos database.Repositories) error {
		txn, err := repos.Transactions.GetByOrderIDForUpdate(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if txn == nil {
			return fmt.Errorf("%w: payment order %s", models.ErrNotFound, req.OrderID)
		}

		booking, err := repos.Bookings.GetByIDForUpdate(ctx, txn.BookingID)
		if err != nil {
			return err
		}
		if booking == nil {
			return fmt.Errorf("%w: booking %s", models.ErrNotFound, txn.BookingID)
		}

		// Replay of an already reconciled transaction
		if txn.IsTerminal() {
			audit := models.NewPaymentAudit(models.PaymentEventCallbackReceived, models.PaymentSourceGatewayCallback).
				SetBooking(booking.ID).
				SetTransaction(txn).
				SetGatewayPaymentID(req.PaymentID).
				SetPaymentStatus(string(txn.Status)).
				SetRequestPayload(req.Payload).
				SetMetadata(meta).
				MarkAsDuplicate()
			if (txn.Status == models.PaymentTransactionSuccess) != req.Success {
				audit.EventType = models.PaymentEventReconciliationMismatch
				s.logger.WithFields(logrus.Fields{
					"order_id":        txn.OrderID,
					"recorded_status": txn.Status,
					"callback_status": req.Success,
				}).Warn("Callback outcome differs from recorded transaction outcome")
			}
			resp = buildCallbackResponse(txn, booking, true, nil)
			return repos.Audits.Log(ctx, audit.SetProcessingTime(startTime))
		}

		now := s.now()
		txn.Complete(req.Success, req.PaymentID, req.Signature, req.Payload, now)
		if err := repos.Transactions.Complete(ctx, txn); err != nil {
			return err
		}

		received := models.NewPaymentAudit(models.PaymentEventCallbackReceived, models.PaymentSourceGatewayCallback).
			SetBooking(booking.ID).
			SetTransaction(txn).
			SetGatewayPaymentID(req.PaymentID).
			SetPaymentStatus(string(txn.Status)).
			SetRequestPayload(req.Payload).
			SetMetadata(meta)
		received.SetAmounts(booking.Fare, txn.Amount, txn.Currency)
		if err := repos.Audits.Log(ctx, received); err != nil {
			return err
		}

		var credit *decimal.Decimal
		if req.Success {
			credit, err = s.applySuccess(ctx, repos, txn, booking, now)
		} else {
			err = s.applyFailure(ctx, repos, txn, booking, now)
		}
		if err != nil {
			return err
		}

		resp = buildCallbackResponse(txn, booking, false, credit)
		reconciled = booking
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			code := models.ErrorCode(err)
			s.logAuditOutsideTx(ctx, models.NewPaymentAudit(models.PaymentEventError, models.PaymentSourceGatewayCallback).
				SetOrderID(req.OrderID).
				SetGatewayPaymentID(req.PaymentID).
				SetRequestPayload(req.Payload).
				SetMetadata(meta).
				SetError(err.Error(), &code))
		}
		return nil, err
	}

	// Replays changed nothing
	if reconciled != nil {
		s.cache.Set(ctx, reconciled)
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":       resp.OrderID,
		"status":         resp.Status,
		"booking_id":     resp.BookingID,
		"booking_status": resp.BookingStatus,
		"duplicate":      resp.Duplicate,
	}).Info("Payment callback reconciled")

	return resp, nil
}

func (s *BookingOrchestratorService) applySuccess(
	ctx context.Context,
	repos database.Repositories,
	txn *models.PaymentTransaction,
	booking *models.Booking,
	now time.Time,
) (*decimal.Decimal, error) {
	captured := models.NewPaymentAudit(models.PaymentEventSuccess, models.PaymentSourceGatewayCallback).
		SetBooking(booking.ID).
		SetTransaction(txn).
		SetGatewayPaymentID(derefString(txn.GatewayPaymentID)).
		SetAmount(txn.Amount, txn.Currency).
		SetPaymentStatus(string(txn.Status))
	if err := repos.Audits.Log(ctx, captured); err != nil {
		return nil, err
	}

	if booking.IsPayable() {
		pnr, err := generateUniquePNR(ctx, s.ids, repos.Bookings)
		if err != nil {
			return nil, err
		}
		from := booking.BookingStatus
		if err := booking.MarkBooked(pnr, false, now); err != nil {
			return nil, err
		}
		if err := repos.Bookings.Update(ctx, booking, from); err != nil {
			return nil, err
		}

		return nil, repos.Audits.Log(ctx, models.NewPaymentAudit(models.PaymentEventBookingConfirmed, models.PaymentSourceGatewayCallback).
			SetBooking(booking.ID).
			SetTransaction(txn).
			SetPaymentStatus(string(booking.BookingStatus)))
	}

	// Money was captured for a booking that can no longer be confirmed
	// (cancelled while the session was open). Credit it to the wallet.
	if _, err := s.wallet.CreditWithin(ctx, repos, booking.ProfileID, txn.Amount); err != nil {
		return nil, fmt.Errorf("failed to credit wallet: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":       txn.OrderID,
		"booking_id":     booking.ID,
		"booking_status": booking.BookingStatus,
		"amount":         txn.Amount.StringFixed(models.MoneyScale),
	}).Warn("Payment captured for non-payable booking, credited to wallet")

	audit := models.NewPaymentAudit(models.PaymentEventReconciliationMismatch, models.PaymentSourceGatewayCallback).
		SetBooking(booking.ID).
		SetProfile(booking.ProfileID).
		SetTransaction(txn).
		SetAmount(txn.Amount, txn.Currency).
		SetPaymentStatus(string(booking.BookingStatus))
	if err := repos.Audits.Log(ctx, audit); err != nil {
		return nil, err
	}

	credit := txn.Amount
	return &credit, nil
}

func (s *BookingOrchestratorService) applyFailure(
	ctx context.Context,
	repos database.Repositories,
	txn *models.PaymentTransaction,
	booking *models.Booking,
	now time.Time,
) error {
	audit := models.NewPaymentAudit(models.PaymentEventFailed, models.PaymentSourceGatewayCallback).
		SetBooking(booking.ID).
		SetTransaction(txn)

	if booking.IsPayable() {
		from := booking.BookingStatus
		if err := booking.MarkFailed(now); err != nil {
			return err
		}
		if err := repos.Bookings.Update(ctx, booking, from); err != nil {
			return err
		}
	}

	return repos.Audits.Log(ctx, audit.SetPaymentStatus(string(booking.BookingStatus)))
}

func buildCallbackResponse(txn *models.PaymentTransaction, booking *models.Booking, duplicate bool, credit *decimal.Decimal) *models.PaymentCallbackResponse {
	return &models.PaymentCallbackResponse{
		OrderID:       txn.OrderID,
		Status:        txn.Status,
		BookingID:     booking.ID,
		BookingStatus: booking.BookingStatus,
		PNR:           booking.PNR,
		Duplicate:     duplicate,
		WalletCredit:  credit,
	}
}

// ============================================================================
// CANCEL BOOKING
// ============================================================================

// CancelBooking cancels an initiated, payment_pending or booked booking. A
// paid fare is refunded to the wallet in the same unit of work.
func (s *BookingOrchestratorService) CancelBooking(
	ctx context.Context,
	userID uuid.UUID,
	bookingID uuid.UUID,
	req *models.CancelBookingRequest,
	meta models.RequestMeta,
) (*models.CancelBookingResponse, error) {
	var (
		booking *models.Booking
		refund  decimal.Decimal
		balance *decimal.Decimal
	)

	err := s.store.WithinTx(ctx, func(repos database.Repositories) error {
		var err error
		booking, err = repos.Bookings.GetByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if booking == nil {
			return fmt.Errorf("%w: booking %s", models.ErrNotFound, bookingID)
		}
		if booking.UserID != userID {
			return fmt.Errorf("%w: booking belongs to another user", models.ErrForbidden)
		}

		from := booking.BookingStatus
		var feedback *string
		if req != nil {
			feedback = req.Feedback
		}
		refund, err = booking.Cancel(feedback, s.now())
		if err != nil {
			return err
		}
		if err := repos.Bookings.Update(ctx, booking, from); err != nil {
			return err
		}

		audit := models.NewPaymentAudit(models.PaymentEventBookingCancelled, models.PaymentSourceUser).
			SetBooking(booking.ID).
			SetProfile(booking.ProfileID).
			SetMetadata(meta).
			SetPaymentStatus(string(from))
		if err := repos.Audits.Log(ctx, audit); err != nil {
			return err
		}

		if refund.IsPositive() {
			newBalance, err := s.wallet.CreditWithin(ctx, repos, booking.ProfileID, refund)
			if err != nil {
				return fmt.Errorf("failed to refund fare: %w", err)
			}
			balance = &newBalance

			refundAudit := models.NewPaymentAudit(models.PaymentEventWalletRefund, models.PaymentSourceBackend).
				SetBooking(booking.ID).
				SetProfile(booking.ProfileID).
				SetAmount(refund, s.config.Currency).
				SetMetadata(meta)
			if err := repos.Audits.Log(ctx, refundAudit); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, booking)

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"user_id":    userID,
		"refunded":   refund.StringFixed(models.MoneyScale),
	}).Info("Booking cancelled")

	return &models.CancelBookingResponse{
		Success:        true,
		Booking:        booking,
		RefundedAmount: refund,
		WalletBalance:  balance,
	}, nil
}

// ============================================================================
// READS
// ============================================================================

// GetBookingStatus returns one of the caller's bookings. The cache is only
// read here; a miss falls through to the database without refilling it, since
// a mutation may commit between this read and any write back.
func (s *BookingOrchestratorService) GetBookingStatus(ctx context.Context, userID, bookingID uuid.UUID) (*models.Booking, error) {
	if cached, ok := s.cache.Get(ctx, bookingID); ok {
		if cached.UserID != userID {
			return nil, fmt.Errorf("%w: booking belongs to another user", models.ErrForbidden)
		}
		return cached, nil
	}

	return s.ownedBooking(ctx, s.store.Repositories(), userID, bookingID)
}

// ListBookings returns the caller's bookings, newest first
func (s *BookingOrchestratorService) ListBookings(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Booking, error) {
	if limit <= 0 || limit > s.config.MaxListLimit {
		limit = s.config.MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.Repositories().Bookings.ListByUser(ctx, userID, limit, offset)
}

// GetPaymentStatus returns a payment transaction of one of the caller's bookings
func (s *BookingOrchestratorService) GetPaymentStatus(ctx context.Context, userID, transactionID uuid.UUID) (*models.PaymentStatusResponse, error) {
	repos := s.store.Repositories()

	txn, err := repos.Transactions.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, fmt.Errorf("%w: payment transaction %s", models.ErrNotFound, transactionID)
	}

	booking, err := s.ownedBooking(ctx, repos, userID, txn.BookingID)
	if err != nil {
		return nil, err
	}

	return &models.PaymentStatusResponse{
		Transaction:   txn,
		BookingStatus: booking.BookingStatus,
		PNR:           booking.PNR,
	}, nil
}

func (s *BookingOrchestratorService) ownedBooking(ctx context.Context, repos database.Repositories, userID, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := repos.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, fmt.Errorf("%w: booking %s", models.ErrNotFound, bookingID)
	}
	if booking.UserID != userID {
		return nil, fmt.Errorf("%w: booking belongs to another user", models.ErrForbidden)
	}
	return booking, nil
}

// withinTxRetryingPNR runs a unit of work that assigns a PNR. When a
// concurrent booking commits the same PNR first, the whole unit is rolled back
// and run again with a fresh one.
func (s *BookingOrchestratorService) withinTxRetryingPNR(ctx context.Context, fn func(repos database.Repositories) error) error {
	var err error
	for attempt := 1; attempt <= maxIDGenAttempts; attempt++ {
		err = s.store.WithinTx(ctx, fn)
		if !errors.Is(err, database.ErrPNRTaken) {
			return err
		}
		s.logger.WithField("attempt", attempt).Warn("PNR taken by a concurrent booking, retrying")
	}
	return err
}

// logAuditOutsideTx records events whose surrounding work was rolled back
func (s *BookingOrchestratorService) logAuditOutsideTx(ctx context.Context, audit *models.PaymentAudit) {
	if err := s.store.Repositories().Audits.Log(ctx, audit); err != nil {
		s.logger.WithError(err).WithField("event_type", audit.EventType).Error("Failed to record audit entry")
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
