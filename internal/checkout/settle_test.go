package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atmin009/tutor-frontend/pkg/queue"
)

type fakeDeduper struct {
	seen map[string]bool
	err  error
}

func (f *fakeDeduper) Acquire(ctx context.Context, key string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

type fakeEnqueuer struct {
	payloads []queue.ConfirmPayload
	err      error
}

func (f *fakeEnqueuer) EnqueueConfirm(ctx context.Context, payload queue.ConfirmPayload) error {
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func TestSettleEnqueuesOncePerOrder(t *testing.T) {
	enq := &fakeEnqueuer{}
	s := NewQueueSettler(&fakeDeduper{}, enq, nil)

	order := SettleOrder{OrderID: "ORD-1", TransactionID: "TXN-1", CourseID: 5, Token: "tok"}
	require.NoError(t, s.Settle(context.Background(), order))
	require.NoError(t, s.Settle(context.Background(), order))

	require.Len(t, enq.payloads, 1)
	require.Equal(t, "ORD-1", enq.payloads[0].OrderID)
	require.Equal(t, "TXN-1", enq.payloads[0].TransactionID)
	require.Equal(t, 5, enq.payloads[0].CourseID)
	require.Equal(t, "tok", enq.payloads[0].Token)
}

func TestSettleFallsBackToTransactionKey(t *testing.T) {
	enq := &fakeEnqueuer{}
	dedupe := &fakeDeduper{}
	s := NewQueueSettler(dedupe, enq, nil)

	require.NoError(t, s.Settle(context.Background(), SettleOrder{TransactionID: "TXN-7"}))
	require.NoError(t, s.Settle(context.Background(), SettleOrder{TransactionID: "TXN-7"}))

	require.Len(t, enq.payloads, 1)
	require.True(t, dedupe.seen["TXN-7"])
}

func TestSettleDedupesAcrossPollerAndDeepLink(t *testing.T) {
	enq := &fakeEnqueuer{}
	s := NewQueueSettler(&fakeDeduper{}, enq, nil)

	// Poller settles with both ids, the gateway-return landing only with the
	// transaction id. The shared id must collide.
	require.NoError(t, s.Settle(context.Background(), SettleOrder{OrderID: "ORD-1", TransactionID: "TXN-1"}))
	require.NoError(t, s.Settle(context.Background(), SettleOrder{TransactionID: "TXN-1"}))
	require.Len(t, enq.payloads, 1)

	// Same race, landing first.
	require.NoError(t, s.Settle(context.Background(), SettleOrder{TransactionID: "TXN-2"}))
	require.NoError(t, s.Settle(context.Background(), SettleOrder{OrderID: "ORD-2", TransactionID: "TXN-2"}))
	require.Len(t, enq.payloads, 2)
}

func TestSettleNothingToSettle(t *testing.T) {
	s := NewQueueSettler(&fakeDeduper{}, &fakeEnqueuer{}, nil)
	err := s.Settle(context.Background(), SettleOrder{})
	require.ErrorIs(t, err, ErrNothingToSettle)
}

func TestSettleProceedsWhenDedupeUnavailable(t *testing.T) {
	enq := &fakeEnqueuer{}
	s := NewQueueSettler(&fakeDeduper{err: errors.New("redis down")}, enq, nil)

	require.NoError(t, s.Settle(context.Background(), SettleOrder{OrderID: "ORD-1"}))
	require.NoError(t, s.Settle(context.Background(), SettleOrder{OrderID: "ORD-1"}))

	// Without dedupe both settles go through; the upstream confirm is
	// idempotent.
	require.Len(t, enq.payloads, 2)
}

func TestSettlePropagatesEnqueueError(t *testing.T) {
	enq := &fakeEnqueuer{err: errors.New("queue full")}
	s := NewQueueSettler(&fakeDeduper{}, enq, nil)
	require.Error(t, s.Settle(context.Background(), SettleOrder{OrderID: "ORD-1"}))
}
