package repository

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for local runs and tests. A transaction
// takes an exclusive per-flight section on first touch and works on a private
// copy of that flight's seats and assignments; Commit publishes the copy and
// Rollback drops it. Unlike PGStore it serializes whole flights.
type MemoryStore struct {
	mu       sync.RWMutex
	flights  map[int64]*memFlight
	bookings map[uuid.UUID]domain.Booking
	refs     map[string]uuid.UUID
	outbox   []domain.OutboxMessage
	now      func() time.Time
}

type memFlight struct {
	flight      domain.Flight
	sem         chan struct{}
	seats       map[string]domain.Seat
	assignments []domain.SeatAssignment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		flights:  make(map[int64]*memFlight),
		bookings: make(map[uuid.UUID]domain.Booking),
		refs:     make(map[string]uuid.UUID),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SeedFlight registers a flight and its seat map, replacing any previous state for it.
func (s *MemoryStore) SeedFlight(f domain.Flight, seats []domain.Seat) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := &memFlight{flight: f, sem: make(chan struct{}, 1), seats: make(map[string]domain.Seat, len(seats))}
	for _, seat := range seats {
		seat.FlightID = f.ID
		m.seats[seat.SeatNumber] = seat
	}
	s.flights[f.ID] = m
}

func (s *MemoryStore) List(_ context.Context) ([]domain.Flight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flights := make([]domain.Flight, 0, len(s.flights))
	for _, f := range s.flights {
		flights = append(flights, f.flight)
	}
	slices.SortFunc(flights, func(a, b domain.Flight) int { return a.DepartureTime.Compare(b.DepartureTime) })
	return flights, nil
}

func (s *MemoryStore) GetByID(_ context.Context, id int64) (*domain.Flight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.flights[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	flight := f.flight
	return &flight, nil
}

func (s *MemoryStore) BeginTx(ctx context.Context) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memTx{
		store:  s,
		held:   make(map[int64]*flightWork),
		staged: make(map[uuid.UUID]*domain.Booking),
	}, nil
}

func (s *MemoryStore) ListSeats(_ context.Context, flightID int64) ([]domain.Seat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.flights[flightID]
	if !ok {
		return []domain.Seat{}, nil
	}
	seats := make([]domain.Seat, 0, len(f.seats))
	for _, seat := range f.seats {
		seats = append(seats, seat)
	}
	domain.SortSeats(seats)
	return seats, nil
}

func (s *MemoryStore) GetSeat(_ context.Context, flightID int64, seatNumber string) (*domain.Seat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.flights[flightID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	seat, ok := f.seats[seatNumber]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &seat, nil
}

func (s *MemoryStore) GetBooking(_ context.Context, id uuid.UUID) (*domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	var assignments []domain.SeatAssignment
	if f, ok := s.flights[b.FlightID]; ok {
		assignments = f.assignments
	}
	return bookingView(b, assignments), nil
}

func (s *MemoryStore) ReleaseOrphanedSeats(ctx context.Context, flightID int64, seatNumbers []string) (int64, error) {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	w, err := tx.(*memTx).acquire(ctx, flightID)
	if err != nil || w == nil {
		return 0, err
	}
	var released int64
	for _, n := range seatNumbers {
		seat, ok := w.seats[n]
		if !ok || seat.IsAvailable || w.activeFor(n) != nil {
			continue
		}
		seat.IsAvailable = true
		w.seats[n] = seat
		released++
	}
	return released, tx.Commit()
}

func (s *MemoryStore) AuditFlight(_ context.Context, flightID int64) (domain.InventoryAudit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	audit := domain.InventoryAudit{FlightID: flightID}
	f, ok := s.flights[flightID]
	if !ok {
		return audit.Check(), nil
	}
	for _, seat := range f.seats {
		if !seat.IsAvailable {
			audit.UnavailableSeats++
		}
	}
	for _, a := range f.assignments {
		if a.Active {
			audit.ActiveAssignments++
		}
	}
	return audit.Check(), nil
}

func (s *MemoryStore) ClaimPending(_ context.Context, limit int, lease time.Duration) ([]domain.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	pending := make([]domain.OutboxMessage, 0, limit)
	for i := range s.outbox {
		m := &s.outbox[i]
		if m.Status != domain.OutboxStatusPending || m.NextAttemptAt.After(now) {
			continue
		}
		if len(pending) == limit {
			break
		}
		m.NextAttemptAt = now.Add(lease)
		pending = append(pending, *m)
	}
	return pending, nil
}

func (s *MemoryStore) MarkSent(_ context.Context, id uuid.UUID) error {
	return s.updateOutbox(id, func(m *domain.OutboxMessage) { m.Status = domain.OutboxStatusSent })
}

func (s *MemoryStore) MarkFailed(_ context.Context, id uuid.UUID, lastErr string, retryAt time.Time, final bool) error {
	return s.updateOutbox(id, func(m *domain.OutboxMessage) {
		m.Attempts++
		m.LastError = lastErr
		m.NextAttemptAt = retryAt
		if final {
			m.Status = domain.OutboxStatusFailed
		}
	})
}

func (s *MemoryStore) updateOutbox(id uuid.UUID, fn func(*domain.OutboxMessage)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.outbox {
		if s.outbox[i].ID == id {
			fn(&s.outbox[i])
			return nil
		}
	}
	return domain.ErrNotFound
}

// flightWork is a transaction's private copy of one flight.
type flightWork struct {
	flight      *memFlight
	seats       map[string]domain.Seat
	assignments []domain.SeatAssignment
}

func (w *flightWork) activeFor(seatNumber string) *domain.SeatAssignment {
	for i := range w.assignments {
		if w.assignments[i].Active && w.assignments[i].SeatNumber == seatNumber {
			return &w.assignments[i]
		}
	}
	return nil
}

type memTx struct {
	store  *MemoryStore
	held   map[int64]*flightWork
	staged map[uuid.UUID]*domain.Booking
	outbox []domain.OutboxMessage
	done   bool
}

// acquire enters the flight's exclusive section. It returns nil work for an unknown flight.
func (t *memTx) acquire(ctx context.Context, flightID int64) (*flightWork, error) {
	if t.done {
		return nil, sql.ErrTxDone
	}
	if w, ok := t.held[flightID]; ok {
		return w, nil
	}

	t.store.mu.RLock()
	f, ok := t.store.flights[flightID]
	t.store.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	select {
	case f.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	t.store.mu.RLock()
	w := &flightWork{
		flight:      f,
		seats:       make(map[string]domain.Seat, len(f.seats)),
		assignments: slices.Clone(f.assignments),
	}
	for k, v := range f.seats {
		w.seats[k] = v
	}
	t.store.mu.RUnlock()

	t.held[flightID] = w
	return w, nil
}

func (t *memTx) LockSeats(ctx context.Context, flightID int64, seatNumbers []string) ([]domain.Seat, error) {
	w, err := t.acquire(ctx, flightID)
	if err != nil {
		return nil, err
	}
	seats := make([]domain.Seat, 0, len(seatNumbers))
	if w == nil {
		return seats, nil
	}
	for _, n := range seatNumbers {
		if seat, ok := w.seats[n]; ok {
			seats = append(seats, seat)
		}
	}
	domain.SortSeats(seats)
	return seats, nil
}

func (t *memTx) MarkSeatsUnavailable(ctx context.Context, flightID int64, seatNumbers []string) (int64, error) {
	return t.setAvailability(ctx, flightID, seatNumbers, false)
}

func (t *memTx) MarkSeatsAvailable(ctx context.Context, flightID int64, seatNumbers []string) (int64, error) {
	return t.setAvailability(ctx, flightID, seatNumbers, true)
}

func (t *memTx) setAvailability(ctx context.Context, flightID int64, seatNumbers []string, available bool) (int64, error) {
	w, err := t.acquire(ctx, flightID)
	if err != nil || w == nil {
		return 0, err
	}
	var changed int64
	for _, n := range seatNumbers {
		seat, ok := w.seats[n]
		if !ok || seat.IsAvailable == available {
			continue
		}
		seat.IsAvailable = available
		w.seats[n] = seat
		changed++
	}
	return changed, nil
}

func (t *memTx) UpdateSeat(ctx context.Context, flightID int64, seatNumber string, patch domain.SeatPatch) (*domain.Seat, error) {
	w, err := t.acquire(ctx, flightID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, domain.ErrNotFound
	}
	seat, ok := w.seats[seatNumber]
	if !ok {
		return nil, domain.ErrNotFound
	}
	seat = patch.Apply(seat)
	w.seats[seatNumber] = seat
	return &seat, nil
}

func (t *memTx) HasActiveAssignment(ctx context.Context, flightID int64, seatNumber string) (bool, error) {
	w, err := t.acquire(ctx, flightID)
	if err != nil || w == nil {
		return false, err
	}
	return w.activeFor(seatNumber) != nil, nil
}

func (t *memTx) ReferenceExists(_ context.Context, reference string) (bool, error) {
	for _, b := range t.staged {
		if b.BookingReference == reference {
			return true, nil
		}
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	_, ok := t.store.refs[reference]
	return ok, nil
}

func (t *memTx) InsertBooking(ctx context.Context, b *domain.Booking) error {
	if _, err := t.acquire(ctx, b.FlightID); err != nil {
		return err
	}
	if exists, _ := t.ReferenceExists(ctx, b.BookingReference); exists {
		return fmt.Errorf("%w: bookings_booking_reference_key", ErrConflict)
	}
	now := t.store.now()
	b.CreatedAt, b.UpdatedAt = now, now

	staged := *b
	staged.Passengers = nil
	staged.SeatNumbers = nil
	t.staged[b.ID] = &staged
	return nil
}

func (t *memTx) InsertPassengers(_ context.Context, bookingID uuid.UUID, passengers []domain.Passenger) error {
	b, ok := t.staged[bookingID]
	if !ok {
		return domain.ErrNotFound
	}
	for i := range passengers {
		passengers[i].BookingID = bookingID
		b.Passengers = append(b.Passengers, passengers[i])
	}
	return nil
}

func (t *memTx) InsertSeatAssignments(ctx context.Context, assignments []domain.SeatAssignment) error {
	for _, a := range assignments {
		w, err := t.acquire(ctx, a.FlightID)
		if err != nil {
			return err
		}
		if w == nil {
			return domain.ErrNotFound
		}
		if _, ok := w.seats[a.SeatNumber]; !ok {
			return fmt.Errorf("insert assignment for seat %s: %w", a.SeatNumber, domain.ErrNotFound)
		}
		if a.Active && w.activeFor(a.SeatNumber) != nil {
			return fmt.Errorf("insert assignment for seat %s: %w: seat_assignments_active_uniq", a.SeatNumber, ErrConflict)
		}
		w.assignments = append(w.assignments, a)
	}
	return nil
}

func (t *memTx) GetBookingForUpdate(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	b, w, err := t.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	var assignments []domain.SeatAssignment
	if w != nil {
		assignments = w.assignments
	}
	return bookingView(*b, assignments), nil
}

func (t *memTx) UpdateBookingStatus(ctx context.Context, id uuid.UUID, status domain.BookingStatus, at time.Time) error {
	b, _, err := t.lookup(ctx, id)
	if err != nil {
		return err
	}
	b.Status = status
	b.UpdatedAt = at
	return nil
}

func (t *memTx) DeactivateAssignments(ctx context.Context, bookingID uuid.UUID) ([]domain.SeatAssignment, error) {
	_, w, err := t.lookup(ctx, bookingID)
	if err != nil || w == nil {
		return nil, err
	}
	released := make([]domain.SeatAssignment, 0)
	for i := range w.assignments {
		if w.assignments[i].BookingID == bookingID && w.assignments[i].Active {
			w.assignments[i].Active = false
			released = append(released, w.assignments[i])
		}
	}
	return released, nil
}

func (t *memTx) EnqueueOutbox(_ context.Context, messages ...domain.OutboxMessage) error {
	now := t.store.now()
	for _, m := range messages {
		m.Status = domain.OutboxStatusPending
		m.CreatedAt = now
		m.NextAttemptAt = now
		t.outbox = append(t.outbox, m)
	}
	return nil
}

// lookup returns the transaction's mutable copy of a booking together with its
// flight's working set. A committed booking is staged only after the flight
// section is held, so it reflects every transaction that held it before.
func (t *memTx) lookup(ctx context.Context, id uuid.UUID) (*domain.Booking, *flightWork, error) {
	if b, ok := t.staged[id]; ok {
		w, err := t.acquire(ctx, b.FlightID)
		return b, w, err
	}
	b, ok := t.committedBooking(id)
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	w, err := t.acquire(ctx, b.FlightID)
	if err != nil {
		return nil, nil, err
	}
	if b, ok = t.committedBooking(id); !ok {
		return nil, nil, domain.ErrNotFound
	}
	b.Passengers = slices.Clone(b.Passengers)
	t.staged[id] = &b
	return &b, w, nil
}

func (t *memTx) committedBooking(id uuid.UUID) (domain.Booking, bool) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	b, ok := t.store.bookings[id]
	return b, ok
}

func (t *memTx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.store.mu.Lock()
	for _, w := range t.held {
		w.flight.seats = w.seats
		w.flight.assignments = w.assignments
	}
	for id, b := range t.staged {
		t.store.bookings[id] = *b
		t.store.refs[b.BookingReference] = id
	}
	t.store.outbox = append(t.store.outbox, t.outbox...)
	t.store.mu.Unlock()

	t.finish()
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.finish()
	return nil
}

func (t *memTx) finish() {
	t.done = true
	for _, w := range t.held {
		<-w.flight.sem
	}
	t.held = nil
}

func bookingView(b domain.Booking, assignments []domain.SeatAssignment) *domain.Booking {
	b.Passengers = slices.Clone(b.Passengers)
	b.SeatNumbers = make([]string, 0, len(b.Passengers))
	for _, a := range assignments {
		if a.BookingID == b.ID {
			b.SeatNumbers = append(b.SeatNumbers, a.SeatNumber)
		}
	}
	slices.SortFunc(b.SeatNumbers, domain.CompareSeatNumbers)
	if b.Passengers == nil {
		b.Passengers = []domain.Passenger{}
	}
	return &b
}

var (
	_ Store            = (*MemoryStore)(nil)
	_ Tx               = (*memTx)(nil)
	_ FlightRepository = (*MemoryStore)(nil)
	_ OutboxRepository = (*MemoryStore)(nil)
)
