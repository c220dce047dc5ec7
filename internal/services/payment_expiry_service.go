package services

import (
	"context"
	"fmt"
	"time"

	"github.com/railtatkal/tatkal-backend/internal/database"
	"github.com/railtatkal/tatkal-backend/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const expirySweepBatchSize = 100

// PaymentExpiryService fails gateway sessions that were never completed
type PaymentExpiryService struct {
	cron     *cron.Cron
	schedule string
	store    database.TxManager
	cache    bookingCache
	ttl      time.Duration
	logger   *logrus.Logger
	now      func() time.Time
}

// NewPaymentExpiryService creates a new PaymentExpiryService
func NewPaymentExpiryService(
	store database.TxManager,
	cache *BookingCache,
	schedule string,
	ttl time.Duration,
	logger *logrus.Logger,
) *PaymentExpiryService {
	return &PaymentExpiryService{
		cron:     cron.New(),
		schedule: schedule,
		store:    store,
		cache:    cache,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// Start schedules the sweep job
func (s *PaymentExpiryService) Start() error {
	_, err := s.cron.AddFunc(s.schedule, s.sweepJob)
	if err != nil {
		return fmt.Errorf("failed to schedule payment expiry job: %w", err)
	}

	s.cron.Start()
	s.logger.WithFields(logrus.Fields{
		"schedule": s.schedule,
		"ttl":      s.ttl.String(),
	}).Info("Payment expiry service started")
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish
func (s *PaymentExpiryService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Payment expiry service stopped")
}

func (s *PaymentExpiryService) sweepJob() {
	startTime := time.Now()

	expired, err := s.ExpireStale(context.Background())
	if err != nil {
		s.logger.WithError(err).Error("Payment expiry sweep failed")
		return
	}
	if expired > 0 {
		s.logger.WithFields(logrus.Fields{
			"expired":  expired,
			"duration": time.Since(startTime).String(),
		}).Info("Expired stale payment sessions")
	}
}

// ExpireStale fails every pending transaction older than the session TTL and
// fails its booking if still payable. Each transaction is its own unit of work.
func (s *PaymentExpiryService) ExpireStale(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.ttl)

	stale, err := s.store.Repositories().Transactions.ListStalePending(ctx, cutoff, expirySweepBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, candidate := range stale {
		booking, err := s.expireOne(ctx, candidate.OrderID)
		if err != nil {
			s.logger.WithError(err).WithField("order_id", candidate.OrderID).Warn("Failed to expire payment session")
			continue
		}
		if booking != nil {
			expired++
			s.cache.Set(ctx, booking)
		}
	}
	return expired, nil
}

// expireOne returns the booking of the expired session, or nil when a
// callback got there first
func (s *PaymentExpiryService) expireOne(ctx context.Context, orderID string) (*models.Booking, error) {
	var expired *models.Booking

	err := s.store.WithinTx(ctx, func(repos database.Repositories) error {
		txn, err := repos.Transactions.GetByOrderIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		// A callback completed it since the listing
		if txn == nil || txn.IsTerminal() {
			return nil
		}

		booking, err := repos.Bookings.GetByIDForUpdate(ctx, txn.BookingID)
		if err != nil {
			return err
		}
		if booking == nil {
			return fmt.Errorf("%w: booking %s", models.ErrNotFound, txn.BookingID)
		}

		now := s.now()
		txn.Complete(false, "", nil, models.JSONB{"reason": "session_expired"}, now)
		if err := repos.Transactions.Complete(ctx, txn); err != nil {
			return err
		}

		if booking.IsPayable() {
			from := booking.BookingStatus
			if err := booking.MarkFailed(now); err != nil {
				return err
			}
			if err := repos.Bookings.Update(ctx, booking, from); err != nil {
				return err
			}
		}

		audit := models.NewPaymentAudit(models.PaymentEventExpired, models.PaymentSourceSystem).
			SetBooking(booking.ID).
			SetTransaction(txn).
			SetAmount(txn.Amount, txn.Currency).
			SetPaymentStatus(string(booking.BookingStatus))
		if err := repos.Audits.Log(ctx, audit); err != nil {
			return err
		}
		expired = booking
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}
