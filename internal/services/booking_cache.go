package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/railtatkal/tatkal-backend/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// storeIfNewer writes the booking only when no newer copy has been cached.
// KEYS[1] holds the booking JSON, KEYS[2] the version it was written at.
var storeIfNewer = redis.NewScript(`
local current = redis.call('GET', KEYS[2])
if current and tonumber(current) > tonumber(ARGV[1]) then
  return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
redis.call('SET', KEYS[2], ARGV[1], 'PX', ARGV[4])
return 1
`)

// bookingCache is the part of *BookingCache the orchestrator depends on
type bookingCache interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Booking, bool)
	Set(ctx context.Context, booking *models.Booking)
}

// BookingCache keeps committed bookings in Redis. Only writers populate it:
// every committed mutation writes its booking through, versioned by UpdatedAt,
// so a slower writer can never replace a newer copy. A nil *BookingCache is a
// disabled cache; every method is then a no-op.
type BookingCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewBookingCache creates a new BookingCache
func NewBookingCache(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *BookingCache {
	return &BookingCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func bookingCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("booking:%s", id.String())
}

func bookingVersionKey(id uuid.UUID) string {
	return fmt.Sprintf("booking:%s:version", id.String())
}

// Get returns a cached booking. Cache failures are logged and reported as a miss.
func (c *BookingCache) Get(ctx context.Context, id uuid.UUID) (*models.Booking, bool) {
	if c == nil {
		return nil, false
	}

	raw, err := c.client.Get(ctx, bookingCacheKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WithError(err).WithField("booking_id", id).Warn("Booking cache read failed")
		}
		return nil, false
	}

	var booking models.Booking
	if err := json.Unmarshal(raw, &booking); err != nil {
		c.logger.WithError(err).WithField("booking_id", id).Warn("Discarding malformed cached booking")
		return nil, false
	}
	return &booking, true
}

// Set writes a committed booking through to the cache unless a newer version
// is already there. If the write fails the cached copy is dropped.
func (c *BookingCache) Set(ctx context.Context, booking *models.Booking) {
	if c == nil || booking == nil {
		return
	}

	raw, err := json.Marshal(booking)
	if err != nil {
		c.logger.WithError(err).WithField("booking_id", booking.ID).Warn("Failed to encode booking for cache")
		c.Invalidate(ctx, booking.ID)
		return
	}

	keys := []string{bookingCacheKey(booking.ID), bookingVersionKey(booking.ID)}
	stored, err := storeIfNewer.Run(ctx, c.client, keys,
		booking.UpdatedAt.UnixMicro(),
		string(raw),
		c.ttl.Milliseconds(),
		(2 * c.ttl).Milliseconds(),
	).Int64()
	if err != nil {
		c.logger.WithError(err).WithField("booking_id", booking.ID).Warn("Booking cache write failed")
		c.Invalidate(ctx, booking.ID)
		return
	}
	if stored == 0 {
		c.logger.WithFields(logrus.Fields{
			"booking_id": booking.ID,
			"updated_at": booking.UpdatedAt,
		}).Debug("Skipped caching an older booking version")
	}
}

// Invalidate drops the cached booking. The version key is kept so that older
// copies are still rejected.
func (c *BookingCache) Invalidate(ctx context.Context, id uuid.UUID) {
	if c == nil {
		return
	}

	if err := c.client.Del(ctx, bookingCacheKey(id)).Err(); err != nil {
		c.logger.WithError(err).WithField("booking_id", id).Warn("Booking cache invalidation failed")
	}
}
