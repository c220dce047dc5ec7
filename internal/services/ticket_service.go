package services

import (
	"bytes"
	"fmt"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/railtatkal/tatkal-backend/internal/models"
)

// TicketService renders e-tickets for confirmed bookings
type TicketService struct {
	currency string
}

// NewTicketService creates a new TicketService
func NewTicketService(currency string) *TicketService {
	return &TicketService{currency: currency}
}

// RenderPDF returns the e-ticket PDF. Only booked bookings have a ticket.
func (s *TicketService) RenderPDF(booking *models.Booking) ([]byte, error) {
	if booking.BookingStatus != models.BookingStatusBooked || booking.PNR == nil {
		return nil, fmt.Errorf("%w: booking is %s, no ticket issued", models.ErrInvalidTransition, booking.BookingStatus)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("E-Ticket "+*booking.PNR, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "TATKAL E-TICKET")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, "PNR: "+*booking.PNR)
	pdf.Ln(10)

	berth := "-"
	if booking.PreferredBerth != nil && *booking.PreferredBerth != "" {
		berth = *booking.PreferredBerth
	}
	paidVia := "Payment gateway"
	if booking.PaidViaWallet {
		paidVia = "Wallet"
	}

	lines := []string{
		"Train No     : " + booking.TrainNo,
		"From         : " + booking.Source,
		"To           : " + booking.Destination,
		"Journey Date : " + booking.JourneyDate.Format(models.JourneyDateLayout),
		fmt.Sprintf("Passenger    : %s (%d, %s)", booking.PassengerName, booking.PassengerAge, booking.PassengerSex),
		"Berth Pref.  : " + berth,
		fmt.Sprintf("Fare         : %s %s", s.currency, booking.Fare.StringFixed(models.MoneyScale)),
		"Paid Via     : " + paidVia,
		"Booked At    : " + booking.UpdatedAt.Format(time.RFC1123),
	}

	pdf.SetFont("Helvetica", "", 12)
	for _, line := range lines {
		pdf.Cell(0, 7, line)
		pdf.Ln(7)
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "This e-ticket is valid for one passenger. Carry a photo ID matching the passenger name.", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render ticket: %w", err)
	}
	return buf.Bytes(), nil
}
