package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	seatColumns      = `flight_id, seat_number, class, price_modifier_cents, is_available`
	bookingColumns   = `id, booking_reference, user_id, flight_id, status, total_amount_cents, created_at, updated_at`
	passengerColumns = `id, booking_id, first_name, last_name, email, document_number, date_of_birth, seat_number, seat_class, fare_cents, modifier_cents`
)

// PGStore keeps seats, bookings and the outbox in Postgres. Seat reservation
// relies on row locks taken in seat_number order plus a guarded update, so two
// transactions naming the same seat serialize while disjoint seats do not.
type PGStore struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

func (s *PGStore) ListSeats(ctx context.Context, flightID int64) ([]domain.Seat, error) {
	seats := make([]domain.Seat, 0)
	if err := s.db.SelectContext(ctx, &seats, `SELECT `+seatColumns+` FROM seats WHERE flight_id = $1 ORDER BY seat_number`, flightID); err != nil {
		return nil, err
	}
	domain.SortSeats(seats)
	return seats, nil
}

func (s *PGStore) GetSeat(ctx context.Context, flightID int64, seatNumber string) (*domain.Seat, error) {
	var seat domain.Seat
	if err := s.db.GetContext(ctx, &seat, `SELECT `+seatColumns+` FROM seats WHERE flight_id = $1 AND seat_number = $2`, flightID, seatNumber); err != nil {
		return nil, translateError(err)
	}
	return &seat, nil
}

func (s *PGStore) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	return loadBooking(ctx, s.db, id, false)
}

// ReleaseOrphanedSeats locks the seat rows before it looks for assignments. The
// update runs as a separate statement so it sees assignments committed by
// whoever held the rows before.
func (s *PGStore) ReleaseOrphanedSeats(ctx context.Context, flightID int64, seatNumbers []string) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	locked := make([]string, 0, len(seatNumbers))
	if err := tx.SelectContext(ctx, &locked, `SELECT seat_number FROM seats
		WHERE flight_id = $1 AND seat_number = ANY($2) AND NOT is_available
		ORDER BY seat_number
		FOR UPDATE`, flightID, pq.Array(seatNumbers)); err != nil {
		return 0, err
	}
	if len(locked) == 0 {
		return 0, tx.Commit()
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE seats s
		SET is_available = TRUE, updated_at = now()
		WHERE s.flight_id = $1
		  AND s.seat_number = ANY($2)
		  AND s.is_available = FALSE
		  AND NOT EXISTS (
		      SELECT 1 FROM seat_assignments a
		      WHERE a.flight_id = s.flight_id AND a.seat_number = s.seat_number AND a.active
		  )`, flightID, pq.Array(locked))
	if err != nil {
		return 0, err
	}
	released, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return released, tx.Commit()
}

func (s *PGStore) AuditFlight(ctx context.Context, flightID int64) (domain.InventoryAudit, error) {
	audit := domain.InventoryAudit{FlightID: flightID}
	err := s.db.QueryRowxContext(ctx, `
		SELECT
		  (SELECT COUNT(*) FROM seats WHERE flight_id = $1 AND NOT is_available),
		  (SELECT COUNT(*) FROM seat_assignments WHERE flight_id = $1 AND active)`, flightID).
		Scan(&audit.UnavailableSeats, &audit.ActiveAssignments)
	if err != nil {
		return audit, err
	}
	return audit.Check(), nil
}

type pgTx struct {
	tx *sqlx.Tx
}

func (t *pgTx) LockSeats(ctx context.Context, flightID int64, seatNumbers []string) ([]domain.Seat, error) {
	seats := make([]domain.Seat, 0, len(seatNumbers))
	err := t.tx.SelectContext(ctx, &seats, `SELECT `+seatColumns+` FROM seats
		WHERE flight_id = $1 AND seat_number = ANY($2)
		ORDER BY seat_number
		FOR UPDATE`, flightID, pq.Array(seatNumbers))
	if err != nil {
		return nil, err
	}
	return seats, nil
}

func (t *pgTx) MarkSeatsUnavailable(ctx context.Context, flightID int64, seatNumbers []string) (int64, error) {
	return t.setAvailability(ctx, flightID, seatNumbers, false)
}

func (t *pgTx) MarkSeatsAvailable(ctx context.Context, flightID int64, seatNumbers []string) (int64, error) {
	return t.setAvailability(ctx, flightID, seatNumbers, true)
}

// setAvailability only touches seats currently in the opposite state, so the
// affected row count tells the caller how many seats actually changed hands.
func (t *pgTx) setAvailability(ctx context.Context, flightID int64, seatNumbers []string, available bool) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `UPDATE seats SET is_available = $3, updated_at = now()
		WHERE flight_id = $1 AND seat_number = ANY($2) AND is_available = $4`,
		flightID, pq.Array(seatNumbers), available, !available)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *pgTx) UpdateSeat(ctx context.Context, flightID int64, seatNumber string, patch domain.SeatPatch) (*domain.Seat, error) {
	var class sql.NullString
	if patch.Class != nil {
		class = sql.NullString{String: string(*patch.Class), Valid: true}
	}
	var modifier sql.NullInt64
	if patch.PriceModifierCents != nil {
		modifier = sql.NullInt64{Int64: *patch.PriceModifierCents, Valid: true}
	}
	var available sql.NullBool
	if patch.IsAvailable != nil {
		available = sql.NullBool{Bool: *patch.IsAvailable, Valid: true}
	}

	var seat domain.Seat
	err := t.tx.GetContext(ctx, &seat, `UPDATE seats SET
		  class = COALESCE($3, class),
		  price_modifier_cents = COALESCE($4, price_modifier_cents),
		  is_available = COALESCE($5, is_available),
		  updated_at = now()
		WHERE flight_id = $1 AND seat_number = $2
		RETURNING `+seatColumns, flightID, seatNumber, class, modifier, available)
	if err != nil {
		return nil, translateError(err)
	}
	return &seat, nil
}

func (t *pgTx) HasActiveAssignment(ctx context.Context, flightID int64, seatNumber string) (bool, error) {
	var exists bool
	err := t.tx.GetContext(ctx, &exists, `SELECT EXISTS (
		SELECT 1 FROM seat_assignments WHERE flight_id = $1 AND seat_number = $2 AND active)`, flightID, seatNumber)
	return exists, err
}

func (t *pgTx) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	var exists bool
	err := t.tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM bookings WHERE booking_reference = $1)`, reference)
	return exists, err
}

func (t *pgTx) InsertBooking(ctx context.Context, b *domain.Booking) error {
	err := t.tx.QueryRowxContext(ctx, `INSERT INTO bookings (id, booking_reference, user_id, flight_id, status, total_amount_cents)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		b.ID, b.BookingReference, b.UserID, b.FlightID, b.Status, b.TotalAmountCents).
		Scan(&b.CreatedAt, &b.UpdatedAt)
	return translateError(err)
}

func (t *pgTx) InsertPassengers(ctx context.Context, bookingID uuid.UUID, passengers []domain.Passenger) error {
	for i := range passengers {
		p := &passengers[i]
		p.BookingID = bookingID
		if _, err := t.tx.ExecContext(ctx, `INSERT INTO passengers (`+passengerColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			p.ID, p.BookingID, p.FirstName, p.LastName, p.Email, p.DocumentNumber, p.DateOfBirth, p.SeatNumber,
			p.SeatClass, p.FareCents, p.ModifierCents); err != nil {
			return fmt.Errorf("insert passenger for seat %s: %w", p.SeatNumber, translateError(err))
		}
	}
	return nil
}

func (t *pgTx) InsertSeatAssignments(ctx context.Context, assignments []domain.SeatAssignment) error {
	for _, a := range assignments {
		if _, err := t.tx.ExecContext(ctx, `INSERT INTO seat_assignments (booking_id, flight_id, seat_number, active)
			VALUES ($1, $2, $3, $4)`, a.BookingID, a.FlightID, a.SeatNumber, a.Active); err != nil {
			return fmt.Errorf("insert assignment for seat %s: %w", a.SeatNumber, translateError(err))
		}
	}
	return nil
}

func (t *pgTx) GetBookingForUpdate(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	return loadBooking(ctx, t.tx, id, true)
}

func (t *pgTx) UpdateBookingStatus(ctx context.Context, id uuid.UUID, status domain.BookingStatus, at time.Time) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE bookings SET status = $2, updated_at = $3 WHERE id = $1`, id, status, at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *pgTx) DeactivateAssignments(ctx context.Context, bookingID uuid.UUID) ([]domain.SeatAssignment, error) {
	released := make([]domain.SeatAssignment, 0)
	err := t.tx.SelectContext(ctx, &released, `UPDATE seat_assignments
		SET active = FALSE, released_at = now()
		WHERE booking_id = $1 AND active
		RETURNING booking_id, flight_id, seat_number, active`, bookingID)
	if err != nil {
		return nil, err
	}
	return released, nil
}

func (t *pgTx) EnqueueOutbox(ctx context.Context, messages ...domain.OutboxMessage) error {
	for _, m := range messages {
		if _, err := t.tx.ExecContext(ctx, `INSERT INTO outbox (id, topic, message_key, payload, status)
			VALUES ($1, $2, $3, $4, $5)`, m.ID, m.Topic, m.Key, m.Payload, domain.OutboxStatusPending); err != nil {
			return fmt.Errorf("enqueue outbox message: %w", err)
		}
	}
	return nil
}

func (t *pgTx) Commit() error {
	return t.tx.Commit()
}

func (t *pgTx) Rollback() error {
	return t.tx.Rollback()
}

func loadBooking(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID, forUpdate bool) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var b domain.Booking
	if err := sqlx.GetContext(ctx, q, &b, query, id); err != nil {
		return nil, translateError(err)
	}

	b.Passengers = make([]domain.Passenger, 0)
	if err := sqlx.SelectContext(ctx, q, &b.Passengers, `SELECT `+passengerColumns+` FROM passengers WHERE booking_id = $1 ORDER BY seat_number`, id); err != nil {
		return nil, fmt.Errorf("load passengers: %w", err)
	}

	b.SeatNumbers = make([]string, 0, len(b.Passengers))
	if err := sqlx.SelectContext(ctx, q, &b.SeatNumbers, `SELECT seat_number FROM seat_assignments WHERE booking_id = $1 ORDER BY seat_number`, id); err != nil {
		return nil, fmt.Errorf("load seat assignments: %w", err)
	}
	return &b, nil
}

var (
	_ Store = (*PGStore)(nil)
	_ Tx    = (*pgTx)(nil)
)
