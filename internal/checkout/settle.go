package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/atmin009/tutor-frontend/pkg/queue"
)

const settleKeyPrefix = "settle:order:"

// ErrNothingToSettle is returned when neither an order id nor a transaction
// id is available.
var ErrNothingToSettle = errors.New("checkout: nothing to settle")

// SettleOrder identifies a payment to settle. The bearer token is carried so
// the confirm call can be made on the user's behalf after the triggering
// request has finished.
type SettleOrder struct {
	OrderID       string
	TransactionID string
	CourseID      int
	Token         string
}

// dedupeKeys returns the marker keys for this order. Both ids participate:
// the poller knows the order id, the gateway-return landing only the
// transaction id, and the two paths must collide on whichever they share.
func (o SettleOrder) dedupeKeys() []string {
	var keys []string
	if o.OrderID != "" {
		keys = append(keys, o.OrderID)
	}
	if o.TransactionID != "" {
		keys = append(keys, o.TransactionID)
	}
	return keys
}

// Settler is the single settlement entry point shared by the status poller
// and the gateway-return landing path. Settling the same order twice is a
// no-op; the upstream confirm is idempotent regardless, so a lost dedupe key
// degrades to a duplicate confirm, not an error.
type Settler interface {
	Settle(ctx context.Context, order SettleOrder) error
}

// Deduper acquires a one-shot marker per order. Acquire returns false when
// the order was already settled.
type Deduper interface {
	Acquire(ctx context.Context, key string) (bool, error)
}

// RedisDeduper implements Deduper with SETNX and a TTL.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a Redis-backed settle deduper.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

// Acquire sets the settle marker for key if absent.
func (d *RedisDeduper) Acquire(ctx context.Context, key string) (bool, error) {
	return d.client.SetNX(ctx, settleKeyPrefix+key, 1, d.ttl).Result()
}

type confirmEnqueuer interface {
	EnqueueConfirm(ctx context.Context, payload queue.ConfirmPayload) error
}

// QueueSettler dedupes per order and enqueues one best-effort confirm job,
// processed by the settlement worker with bounded retries.
type QueueSettler struct {
	dedupe Deduper
	queue  confirmEnqueuer
	logger *zap.Logger
}

// NewQueueSettler creates the queue-backed settler.
func NewQueueSettler(dedupe Deduper, q confirmEnqueuer, logger *zap.Logger) *QueueSettler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueSettler{dedupe: dedupe, queue: q, logger: logger}
}

// Settle schedules exactly one confirmation for the order. It proceeds only
// when every known id is newly marked; a prior settle under either id means
// the order is already being confirmed.
func (s *QueueSettler) Settle(ctx context.Context, order SettleOrder) error {
	keys := order.dedupeKeys()
	if len(keys) == 0 {
		return ErrNothingToSettle
	}

	acquired := true
	for _, key := range keys {
		ok, err := s.dedupe.Acquire(ctx, key)
		if err != nil {
			// Dedupe unavailable: proceed, the upstream confirm is idempotent.
			s.logger.Warn("settle dedupe unavailable, proceeding", zap.Error(err), zap.String("order", key))
			continue
		}
		if !ok {
			acquired = false
		}
	}
	key := keys[0]
	if !acquired {
		s.logger.Debug("order already settled", zap.String("order", key))
		return nil
	}

	payload := queue.ConfirmPayload{
		OrderID:       order.OrderID,
		TransactionID: order.TransactionID,
		CourseID:      order.CourseID,
		Token:         order.Token,
	}
	if err := s.queue.EnqueueConfirm(ctx, payload); err != nil {
		s.logger.Error("enqueue confirm failed", zap.Error(err), zap.String("order", key))
		return err
	}
	s.logger.Info("payment settlement scheduled", zap.String("order", key))
	return nil
}
