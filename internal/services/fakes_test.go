package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/railtatkal/tatkal-backend/internal/database"
	"github.com/railtatkal/tatkal-backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// memStore is an in-memory database.TxManager. Units of work are serialized
// and rolled back by restoring a snapshot.
type memStore struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]models.Profile
	bookings map[uuid.UUID]models.Booking
	txns     map[uuid.UUID]models.PaymentTransaction
	audits   []models.PaymentAudit

	// afterBookingRead runs after a booking read outside a unit of work
	afterBookingRead func(id uuid.UUID)
	// pnrCheckMisses makes PNRExists report taken PNRs as free, as if the
	// other booking committed after the check
	pnrCheckMisses int
}

func newMemStore() *memStore {
	return &memStore{
		profiles: map[uuid.UUID]models.Profile{},
		bookings: map[uuid.UUID]models.Booking{},
		txns:     map[uuid.UUID]models.PaymentTransaction{},
	}
}

type memSnapshot struct {
	profiles map[uuid.UUID]models.Profile
	bookings map[uuid.UUID]models.Booking
	txns     map[uuid.UUID]models.PaymentTransaction
	audits   []models.PaymentAudit
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		profiles: make(map[uuid.UUID]models.Profile, len(s.profiles)),
		bookings: make(map[uuid.UUID]models.Booking, len(s.bookings)),
		txns:     make(map[uuid.UUID]models.PaymentTransaction, len(s.txns)),
		audits:   append([]models.PaymentAudit(nil), s.audits...),
	}
	for k, v := range s.profiles {
		snap.profiles[k] = v
	}
	for k, v := range s.bookings {
		snap.bookings[k] = v
	}
	for k, v := range s.txns {
		snap.txns[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.profiles = snap.profiles
	s.bookings = snap.bookings
	s.txns = snap.txns
	s.audits = snap.audits
}

func (s *memStore) Repositories() database.Repositories {
	return s.repos(false)
}

func (s *memStore) WithinTx(ctx context.Context, fn func(repos database.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	committed := false
	defer func() {
		if !committed {
			s.restore(snap)
		}
	}()

	if err := fn(s.repos(true)); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *memStore) repos(inTx bool) database.Repositories {
	r := &memRepo{store: s, inTx: inTx}
	return database.Repositories{
		Profiles:     memProfiles{r},
		Bookings:     memBookings{r},
		Transactions: memTxns{r},
		Audits:       memAudits{r},
	}
}

// test helpers

func (s *memStore) addProfile(userID uuid.UUID, balance string) models.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := models.Profile{
		ID:            uuid.New(),
		UserID:        userID,
		FullName:      "Asha Rao",
		Age:           34,
		Phone:         "+919800000000",
		WalletBalance: decimal.RequireFromString(balance),
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	s.profiles[p.ID] = p
	return p
}

func (s *memStore) balance(profileID uuid.UUID) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profiles[profileID].WalletBalance
}

func (s *memStore) booking(id uuid.UUID) models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookings[id]
}

func (s *memStore) transaction(orderID string) models.PaymentTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.txns {
		if t.OrderID == orderID {
			return t
		}
	}
	return models.PaymentTransaction{}
}

func (s *memStore) auditCount(eventType models.PaymentEventType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.audits {
		if a.EventType == eventType {
			n++
		}
	}
	return n
}

func (s *memStore) duplicateAudits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.audits {
		if a.IsDuplicate {
			n++
		}
	}
	return n
}

func (s *memStore) counts() (bookings, txns int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookings), len(s.txns)
}

func (s *memStore) ageTransactions(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.txns {
		t.CreatedAt = t.CreatedAt.Add(-d)
		s.txns[id] = t
	}
}

type memRepo struct {
	store *memStore
	inTx  bool
}

func (r *memRepo) do(fn func(s *memStore)) {
	if !r.inTx {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()
	}
	fn(r.store)
}

type memProfiles struct{ r *memRepo }

func (m memProfiles) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var out *models.Profile
	m.r.do(func(s *memStore) {
		if p, ok := s.profiles[id]; ok {
			out = &p
		}
	})
	return out, nil
}

func (m memProfiles) AddBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	var (
		balance decimal.Decimal
		err     error
	)
	m.r.do(func(s *memStore) {
		p, ok := s.profiles[id]
		if !ok {
			err = fmt.Errorf("%w: profile %s", models.ErrNotFound, id)
			return
		}
		p.WalletBalance = p.WalletBalance.Add(amount)
		s.profiles[id] = p
		balance = p.WalletBalance
	})
	return balance, err
}

func (m memProfiles) DeductBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, bool, error) {
	var (
		balance decimal.Decimal
		ok      bool
		err     error
	)
	m.r.do(func(s *memStore) {
		p, found := s.profiles[id]
		if !found {
			err = fmt.Errorf("%w: profile %s", models.ErrNotFound, id)
			return
		}
		if p.WalletBalance.LessThan(amount) {
			balance = p.WalletBalance
			return
		}
		p.WalletBalance = p.WalletBalance.Sub(amount)
		s.profiles[id] = p
		balance, ok = p.WalletBalance, true
	})
	return balance, ok, err
}

type memBookings struct{ r *memRepo }

func (m memBookings) Create(ctx context.Context, booking *models.Booking) error {
	var err error
	m.r.do(func(s *memStore) {
		if _, exists := s.bookings[booking.ID]; exists {
			err = fmt.Errorf("%w: booking exists", models.ErrConflict)
			return
		}
		if booking.PNR != nil && pnrTaken(s, *booking.PNR) {
			err = fmt.Errorf("%w: %w", models.ErrConflict, database.ErrPNRTaken)
			return
		}
		s.bookings[booking.ID] = *booking
	})
	return err
}

func (m memBookings) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var out *models.Booking
	m.r.do(func(s *memStore) {
		if b, ok := s.bookings[id]; ok {
			out = &b
		}
	})
	if hook := m.r.store.afterBookingRead; hook != nil && !m.r.inTx {
		hook(id)
	}
	return out, nil
}

func (m memBookings) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return m.GetByID(ctx, id)
}

func (m memBookings) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Booking, error) {
	out := []models.Booking{}
	m.r.do(func(s *memStore) {
		for _, b := range s.bookings {
			if b.UserID == userID {
				out = append(out, b)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return []models.Booking{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m memBookings) Update(ctx context.Context, booking *models.Booking, from models.BookingStatus) error {
	var err error
	m.r.do(func(s *memStore) {
		stored, ok := s.bookings[booking.ID]
		if !ok || stored.BookingStatus != from {
			err = fmt.Errorf("%w: booking %s is no longer %s", models.ErrConflict, booking.ID, from)
			return
		}
		if booking.PNR != nil && (stored.PNR == nil || *stored.PNR != *booking.PNR) && pnrTaken(s, *booking.PNR) {
			err = fmt.Errorf("%w: %w", models.ErrConflict, database.ErrPNRTaken)
			return
		}
		s.bookings[booking.ID] = *booking
	})
	return err
}

func (m memBookings) PNRExists(ctx context.Context, pnr string) (bool, error) {
	var exists bool
	m.r.do(func(s *memStore) {
		if s.pnrCheckMisses > 0 {
			s.pnrCheckMisses--
			return
		}
		exists = pnrTaken(s, pnr)
	})
	return exists, nil
}

func pnrTaken(s *memStore, pnr string) bool {
	for _, b := range s.bookings {
		if b.PNR != nil && *b.PNR == pnr {
			return true
		}
	}
	return false
}

type memTxns struct{ r *memRepo }

func (m memTxns) Create(ctx context.Context, txn *models.PaymentTransaction) error {
	var err error
	m.r.do(func(s *memStore) {
		for _, t := range s.txns {
			if t.OrderID == txn.OrderID || (t.BookingID == txn.BookingID && t.IsLive()) {
				err = fmt.Errorf("%w: payment transaction exists", models.ErrConflict)
				return
			}
		}
		s.txns[txn.ID] = *txn
	})
	return err
}

func (m memTxns) GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error) {
	var out *models.PaymentTransaction
	m.r.do(func(s *memStore) {
		if t, ok := s.txns[id]; ok {
			out = &t
		}
	})
	return out, nil
}

func (m memTxns) GetByOrderIDForUpdate(ctx context.Context, orderID string) (*models.PaymentTransaction, error) {
	var out *models.PaymentTransaction
	m.r.do(func(s *memStore) {
		for _, t := range s.txns {
			if t.OrderID == orderID {
				t := t
				out = &t
				return
			}
		}
	})
	return out, nil
}

func (m memTxns) GetLiveByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.PaymentTransaction, error) {
	var out *models.PaymentTransaction
	m.r.do(func(s *memStore) {
		for _, t := range s.txns {
			if t.BookingID == bookingID && t.IsLive() {
				t := t
				out = &t
				return
			}
		}
	})
	return out, nil
}

func (m memTxns) OrderIDExists(ctx context.Context, orderID string) (bool, error) {
	t, _ := m.GetByOrderIDForUpdate(ctx, orderID)
	return t != nil, nil
}

func (m memTxns) Complete(ctx context.Context, txn *models.PaymentTransaction) error {
	var err error
	m.r.do(func(s *memStore) {
		stored, ok := s.txns[txn.ID]
		if !ok || stored.IsTerminal() {
			err = fmt.Errorf("%w: payment transaction %s already completed", models.ErrConflict, txn.OrderID)
			return
		}
		s.txns[txn.ID] = *txn
	})
	return err
}

func (m memTxns) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.PaymentTransaction, error) {
	out := []models.PaymentTransaction{}
	m.r.do(func(s *memStore) {
		for _, t := range s.txns {
			if !t.IsTerminal() && t.CreatedAt.Before(olderThan) && len(out) < limit {
				out = append(out, t)
			}
		}
	})
	return out, nil
}

type memAudits struct{ r *memRepo }

func (m memAudits) Log(ctx context.Context, audit *models.PaymentAudit) error {
	m.r.do(func(s *memStore) { s.audits = append(s.audits, *audit) })
	return nil
}

// fakeGateway records orders and signs with a fixed secret
type fakeGateway struct {
	mu         sync.Mutex
	configured bool
	createErr  error
	orders     []OrderRequest
	inner      *CheckoutGateway
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{configured: true, inner: newTestCheckoutGateway()}
}

func (g *fakeGateway) IsConfigured() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.configured
}

func (g *fakeGateway) CreateOrder(ctx context.Context, req OrderRequest) (*GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.orders = append(g.orders, req)
	return &GatewayOrder{
		OrderID:    req.OrderID,
		PaymentURL: "https://checkout.test/pay?order_id=" + req.OrderID,
		Amount:     req.Amount,
		Currency:   req.Currency,
	}, nil
}

func (g *fakeGateway) VerifyCallback(orderID, paymentID, signature string) bool {
	return g.inner.VerifyCallback(orderID, paymentID, signature)
}

// stubIDs hands out queued ids first, then random ones
type stubIDs struct {
	mu     sync.Mutex
	pnrs   []string
	orders []string
	random RandomIDGenerator
}

func (g *stubIDs) NewPNR() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.pnrs) > 0 {
		next := g.pnrs[0]
		g.pnrs = g.pnrs[1:]
		return next, nil
	}
	return g.random.NewPNR()
}

func (g *stubIDs) NewOrderID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.orders) > 0 {
		next := g.orders[0]
		g.orders = g.orders[1:]
		return next, nil
	}
	return g.random.NewOrderID()
}

// recordingCache is an in-memory bookingCache that keeps every write
type recordingCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]models.Booking
	writes  []models.Booking
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: map[uuid.UUID]models.Booking{}}
}

func (c *recordingCache) Get(ctx context.Context, id uuid.UUID) (*models.Booking, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	return &b, true
}

func (c *recordingCache) Set(ctx context.Context, booking *models.Booking) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[booking.ID] = *booking
	c.writes = append(c.writes, *booking)
}

func (c *recordingCache) evict(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

func (c *recordingCache) written() []models.Booking {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Booking(nil), c.writes...)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type testEnv struct {
	store        *memStore
	wallet       *WalletService
	gateway      *fakeGateway
	ids          *stubIDs
	orchestrator *BookingOrchestratorService
	userID       uuid.UUID
	profile      models.Profile
}

func newTestEnv(t *testing.T, balance string) *testEnv {
	t.Helper()
	store := newMemStore()
	logger := testLogger()
	wallet := NewWalletService(store, "INR", logger)
	gateway := newFakeGateway()
	ids := &stubIDs{}
	orchestrator := NewBookingOrchestratorService(store, wallet, gateway, ids, nil, DefaultOrchestratorConfig(), logger)

	userID := uuid.New()
	profile := store.addProfile(userID, balance)

	return &testEnv{
		store:        store,
		wallet:       wallet,
		gateway:      gateway,
		ids:          ids,
		orchestrator: orchestrator,
		userID:       userID,
		profile:      profile,
	}
}

func (e *testEnv) bookingRequest(fare string) *models.CreateBookingRequest {
	return &models.CreateBookingRequest{
		ProfileID:     e.profile.ID,
		TrainNo:       "12951",
		PassengerName: "Asha Rao",
		PassengerAge:  34,
		PassengerSex:  "F",
		Source:        "NDLS",
		Destination:   "BCT",
		JourneyDate:   "2026-11-02",
		Fare:          decimal.RequireFromString(fare),
	}
}
