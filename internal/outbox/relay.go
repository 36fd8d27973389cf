package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/flightbooking/internal/repository"
	"github.com/sirupsen/logrus"
)

type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
}

// Relay moves pending outbox rows to the broker. Delivery is at least once:
// a crash between publish and MarkSent republishes the row.
type Relay struct {
	repo        repository.OutboxRepository
	publisher   Publisher
	batchSize   int
	maxAttempts int
	interval    time.Duration
	lease       time.Duration
	baseBackoff time.Duration
	maxBackoff  time.Duration
	now         func() time.Time
	logger      logrus.FieldLogger
}

type Option func(*Relay)

// WithRetryBackoff sets the delay after the first failed attempt. It doubles
// with every further attempt up to ceiling.
func WithRetryBackoff(base, ceiling time.Duration) Option {
	return func(r *Relay) {
		r.baseBackoff = base
		r.maxBackoff = ceiling
	}
}

// WithClaimLease sets how long a claimed batch stays hidden from other relays.
func WithClaimLease(d time.Duration) Option {
	return func(r *Relay) { r.lease = d }
}

func WithClock(now func() time.Time) Option {
	return func(r *Relay) { r.now = now }
}

func NewRelay(repo repository.OutboxRepository, publisher Publisher, batchSize, maxAttempts int, interval time.Duration, logger logrus.FieldLogger, opts ...Option) *Relay {
	r := &Relay{
		repo:        repo,
		publisher:   publisher,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
		interval:    interval,
		lease:       30 * time.Second,
		baseBackoff: interval,
		maxBackoff:  5 * time.Minute,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      logger.WithField("component", "outbox-relay"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// backoff returns the wait after a message's attempts-th failure.
func (r *Relay) backoff(attempts int) time.Duration {
	d := r.baseBackoff
	for i := 1; i < attempts && d < r.maxBackoff; i++ {
		d *= 2
	}
	return min(d, r.maxBackoff)
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.WithError(err).Error("outbox relay pass failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce publishes one batch and returns how many messages were sent.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	pending, err := r.repo.ClaimPending(ctx, r.batchSize, r.lease)
	if err != nil {
		return 0, fmt.Errorf("claim pending outbox: %w", err)
	}

	sent := 0
	for _, m := range pending {
		log := r.logger.WithFields(logrus.Fields{"message_id": m.ID, "topic": m.Topic, "key": m.Key})
		if err := r.publisher.Publish(ctx, m.Topic, m.Key, m.Payload); err != nil {
			attempts := m.Attempts + 1
			final := attempts >= r.maxAttempts
			retryAt := r.now().Add(r.backoff(attempts))
			if markErr := r.repo.MarkFailed(ctx, m.ID, err.Error(), retryAt, final); markErr != nil {
				return sent, fmt.Errorf("mark outbox message failed: %w", markErr)
			}
			if final {
				log.WithError(err).WithField("attempts", attempts).Error("outbox message dropped after max attempts")
			} else {
				log.WithError(err).WithField("retry_at", retryAt).Warn("outbox publish failed, will retry")
			}
			continue
		}
		if err := r.repo.MarkSent(ctx, m.ID); err != nil {
			return sent, fmt.Errorf("mark outbox message sent: %w", err)
		}
		sent++
	}
	if sent > 0 {
		r.logger.WithField("sent", sent).Debug("outbox batch relayed")
	}
	return sent, nil
}
