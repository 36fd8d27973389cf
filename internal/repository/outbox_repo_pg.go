package repository

import (
	"context"
	"slices"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type PGOutboxRepository struct {
	db *sqlx.DB
}

func NewOutboxRepository(db *sqlx.DB) OutboxRepository {
	return &PGOutboxRepository{db: db}
}

// ClaimPending pushes next_attempt_at of the claimed rows past the lease.
// SKIP LOCKED lets concurrent relays take disjoint batches.
func (r *PGOutboxRepository) ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]domain.OutboxMessage, error) {
	messages := make([]domain.OutboxMessage, 0)
	err := r.db.SelectContext(ctx, &messages, `UPDATE outbox o
		SET next_attempt_at = now() + make_interval(secs => $3)
		FROM (
		    SELECT id FROM outbox
		    WHERE status = $1 AND next_attempt_at <= now()
		    ORDER BY created_at
		    LIMIT $2
		    FOR UPDATE SKIP LOCKED
		) due
		WHERE o.id = due.id
		RETURNING o.id, o.topic, o.message_key, o.payload, o.status, o.attempts, o.last_error, o.created_at, o.next_attempt_at`,
		domain.OutboxStatusPending, limit, lease.Seconds())
	if err != nil {
		return nil, err
	}
	slices.SortFunc(messages, func(a, b domain.OutboxMessage) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return messages, nil
}

func (r *PGOutboxRepository) MarkSent(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE outbox SET status = $2, sent_at = now() WHERE id = $1`, id, domain.OutboxStatusSent)
	return err
}

func (r *PGOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, lastErr string, retryAt time.Time, final bool) error {
	status := domain.OutboxStatusPending
	if final {
		status = domain.OutboxStatusFailed
	}
	_, err := r.db.ExecContext(ctx, `UPDATE outbox SET attempts = attempts + 1, last_error = $2, status = $3, next_attempt_at = $4 WHERE id = $1`,
		id, lastErr, status, retryAt)
	return err
}

var _ OutboxRepository = (*PGOutboxRepository)(nil)
