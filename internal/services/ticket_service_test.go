package services

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/railtatkal/tatkal-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketService_RenderPDF(t *testing.T) {
	svc := NewTicketService("INR")
	pnr := "4829103311"
	booking := &models.Booking{
		ID:            uuid.New(),
		TrainNo:       "12951",
		PassengerName: "Asha Rao",
		PassengerAge:  34,
		PassengerSex:  "F",
		Source:        "NDLS",
		Destination:   "BCT",
		JourneyDate:   time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC),
		Fare:          dec("200"),
		Paid:          true,
		PaidViaWallet: true,
		BookingStatus: models.BookingStatusBooked,
		PNR:           &pnr,
		UpdatedAt:     time.Now(),
	}

	pdf, err := svc.RenderPDF(booking)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))

	booking.BookingStatus = models.BookingStatusCancelled
	booking.PNR = nil
	_, err = svc.RenderPDF(booking)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}
