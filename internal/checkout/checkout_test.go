package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/atmin009/tutor-frontend/internal/models"
)

type fakeAPI struct {
	mu          sync.Mutex
	statuses    []*models.PaymentStatus
	statusIdx   int
	polls       int
	creates     map[models.PaymentMethod]int
	createCodes []string
	createDelay time.Duration
	sessionTxn  string
	couponErr   error
	discount    float64
	lastCoupon  string
}

func newFakeAPI(statuses ...*models.PaymentStatus) *fakeAPI {
	return &fakeAPI{statuses: statuses, creates: make(map[models.PaymentMethod]int)}
}

func (f *fakeAPI) CreatePayment(ctx context.Context, courseID int, method models.PaymentMethod, couponCode string) (*models.PaymentSession, error) {
	if f.createDelay > 0 {
		time.Sleep(f.createDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates[method]++
	f.createCodes = append(f.createCodes, couponCode)
	return &models.PaymentSession{
		OrderID:       fmt.Sprintf("ORD-%s-%d", method, f.creates[method]),
		Amount:        990,
		TransactionID: f.sessionTxn,
	}, nil
}

func (f *fakeAPI) PaymentStatus(ctx context.Context, orderID string) (*models.PaymentStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	idx := f.statusIdx
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	} else {
		f.statusIdx++
	}
	return f.statuses[idx], nil
}

func (f *fakeAPI) ValidateCoupon(ctx context.Context, code string, courseID int) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCoupon = code
	if f.couponErr != nil {
		return 0, f.couponErr
	}
	return f.discount, nil
}

func (f *fakeAPI) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

type fakeSettler struct {
	mu     sync.Mutex
	orders []SettleOrder
}

func (f *fakeSettler) Settle(ctx context.Context, order SettleOrder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, order)
	return nil
}

func (f *fakeSettler) settled() []SettleOrder {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]SettleOrder, len(f.orders))
	copy(out, f.orders)
	return out
}

func testConfig() Config {
	return Config{
		PollInterval:       5 * time.Millisecond,
		PollTimeout:        2 * time.Second,
		ConfirmDelay:       20 * time.Millisecond,
		PendingTxnFallback: true,
	}
}

func pending() *models.PaymentStatus {
	return &models.PaymentStatus{OrderID: "ORD-qrnone-1", Status: models.PaymentStatusPending}
}

func paid(txn string) *models.PaymentStatus {
	return &models.PaymentStatus{OrderID: "ORD-qrnone-1", Status: models.PaymentStatusPaid, TransactionID: &txn}
}

func TestPaidAfterPendingSettlesOnceAndRedirects(t *testing.T) {
	api := newFakeAPI(pending(), pending(), paid("TXN-1"))
	settler := &fakeSettler{}
	ck := newCheckout("u1", 42, "tok-1", api, settler, nil, testConfig(), nil)
	events, cancel := ck.Subscribe()
	defer cancel()
	defer ck.Teardown()

	require.NoError(t, ck.Start(context.Background()))

	require.Eventually(t, func() bool {
		return ck.Snapshot().State == StateRedirecting
	}, 2*time.Second, 5*time.Millisecond)

	snap := ck.Snapshot()
	require.Equal(t, "/learning/42", snap.RedirectTo)

	orders := settler.settled()
	require.Len(t, orders, 1)
	require.Equal(t, "ORD-qrnone-1", orders[0].OrderID)
	require.Equal(t, "TXN-1", orders[0].TransactionID)
	require.Equal(t, 42, orders[0].CourseID)
	require.Equal(t, "tok-1", orders[0].Token)

	// Confirming comes before redirecting, with the delay in between.
	var seen []State
	for {
		select {
		case ev := <-events:
			seen = append(seen, ev.State)
		default:
			confirmAt, redirectAt := -1, -1
			for i, s := range seen {
				if s == StateConfirming && confirmAt < 0 {
					confirmAt = i
				}
				if s == StateRedirecting && redirectAt < 0 {
					redirectAt = i
				}
			}
			require.GreaterOrEqual(t, confirmAt, 0)
			require.Greater(t, redirectAt, confirmAt)
			return
		}
	}
}

func TestQRPendingWithTransactionTreatedAsPaid(t *testing.T) {
	st := pending()
	txn := "TXN-9"
	st.TransactionID = &txn
	api := newFakeAPI(st)
	settler := &fakeSettler{}
	ck := newCheckout("u1", 7, "tok", api, settler, nil, testConfig(), nil)
	defer ck.Teardown()

	require.NoError(t, ck.Start(context.Background()))

	require.Eventually(t, func() bool {
		return ck.Snapshot().State == StateRedirecting
	}, 2*time.Second, 5*time.Millisecond)

	orders := settler.settled()
	require.Len(t, orders, 1)
	require.Equal(t, "TXN-9", orders[0].TransactionID)
}

func TestPendingTransactionFallbackDisabled(t *testing.T) {
	st := pending()
	txn := "TXN-9"
	st.TransactionID = &txn
	api := newFakeAPI(st)
	settler := &fakeSettler{}
	cfg := testConfig()
	cfg.PendingTxnFallback = false
	cfg.PollTimeout = 50 * time.Millisecond
	ck := newCheckout("u1", 7, "tok", api, settler, nil, cfg, nil)
	defer ck.Teardown()

	require.NoError(t, ck.Start(context.Background()))

	require.Eventually(t, func() bool {
		return ck.Snapshot().State == StateTimedOut
	}, 2*time.Second, 5*time.Millisecond)
	require.Empty(t, settler.settled())
}

func TestFailedStopsWithoutConfirm(t *testing.T) {
	api := newFakeAPI(&models.PaymentStatus{OrderID: "ORD-qrnone-1", Status: models.PaymentStatusFailed})
	settler := &fakeSettler{}
	ck := newCheckout("u1", 7, "tok", api, settler, nil, testConfig(), nil)
	defer ck.Teardown()

	require.NoError(t, ck.Start(context.Background()))

	require.Eventually(t, func() bool {
		return ck.Snapshot().State == StateFailed
	}, 2*time.Second, 5*time.Millisecond)
	require.Empty(t, settler.settled())

	polls := api.pollCount()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, polls, api.pollCount())
}

func TestTeardownStopsPollingAndClosesSubscribers(t *testing.T) {
	api := newFakeAPI(pending())
	ck := newCheckout("u1", 7, "tok", api, &fakeSettler{}, nil, testConfig(), nil)
	events, cancel := ck.Subscribe()
	defer cancel()

	require.NoError(t, ck.Start(context.Background()))
	require.Eventually(t, func() bool { return api.pollCount() > 0 }, 2*time.Second, 5*time.Millisecond)

	ck.Teardown()
	polls := api.pollCount()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, polls, api.pollCount())

	require.Eventually(t, func() bool {
		for {
			select {
			case _, open := <-events:
				if !open {
					return true
				}
			default:
				return false
			}
		}
	}, time.Second, 5*time.Millisecond)
}

func TestSelectMethodCreatesCardSessionOnce(t *testing.T) {
	api := newFakeAPI(pending())
	ck := newCheckout("u1", 7, "tok", api, &fakeSettler{}, nil, testConfig(), nil)
	defer ck.Teardown()

	require.NoError(t, ck.Start(context.Background()))
	require.NoError(t, ck.SelectMethod(context.Background(), models.MethodCard))
	require.NoError(t, ck.SelectMethod(context.Background(), models.MethodQR))
	require.NoError(t, ck.SelectMethod(context.Background(), models.MethodCard))

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Equal(t, 1, api.creates[models.MethodQR])
	require.Equal(t, 1, api.creates[models.MethodCard])

	snap := ck.Snapshot()
	require.NotNil(t, snap.QRSession)
	require.NotNil(t, snap.CardSession)
	require.Equal(t, models.MethodCard, snap.Method)
}

func TestApplyCouponRecreatesSelectedSession(t *testing.T) {
	api := newFakeAPI(pending())
	api.discount = 100
	ck := newCheckout("u1", 7, "tok", api, &fakeSettler{}, nil, testConfig(), nil)
	defer ck.Teardown()

	require.NoError(t, ck.Start(context.Background()))

	coupon, err := ck.ApplyCoupon(context.Background(), "  sale50 ")
	require.NoError(t, err)
	require.Equal(t, "SALE50", coupon.Code)
	require.Equal(t, float64(100), coupon.DiscountAmount)
	require.Equal(t, "SALE50", api.lastCoupon)

	api.mu.Lock()
	require.Equal(t, 2, api.creates[models.MethodQR])
	require.Equal(t, "SALE50", api.createCodes[len(api.createCodes)-1])
	api.mu.Unlock()

	snap := ck.Snapshot()
	require.NotNil(t, snap.Coupon)
	require.Nil(t, snap.CardSession)
}

func TestApplyCouponValidationFailureKeepsState(t *testing.T) {
	api := newFakeAPI(pending())
	api.couponErr = errors.New("invalid coupon")
	ck := newCheckout("u1", 7, "tok", api, &fakeSettler{}, nil, testConfig(), nil)
	defer ck.Teardown()

	require.NoError(t, ck.Start(context.Background()))

	_, err := ck.ApplyCoupon(context.Background(), "NOPE")
	require.Error(t, err)

	snap := ck.Snapshot()
	require.Nil(t, snap.Coupon)
	require.NotNil(t, snap.QRSession)
	api.mu.Lock()
	require.Equal(t, 1, api.creates[models.MethodQR])
	api.mu.Unlock()
}

func TestApplyCouponEmptyCode(t *testing.T) {
	api := newFakeAPI(pending())
	ck := newCheckout("u1", 7, "tok", api, &fakeSettler{}, nil, testConfig(), nil)
	defer ck.Teardown()

	_, err := ck.ApplyCoupon(context.Background(), "   ")
	require.ErrorIs(t, err, ErrEmptyCoupon)
}

func TestRemoveCouponRestoresPricing(t *testing.T) {
	api := newFakeAPI(pending())
	api.discount = 50
	ck := newCheckout("u1", 7, "tok", api, &fakeSettler{}, nil, testConfig(), nil)
	defer ck.Teardown()

	require.NoError(t, ck.Start(context.Background()))
	_, err := ck.ApplyCoupon(context.Background(), "HALF")
	require.NoError(t, err)
	require.NoError(t, ck.RemoveCoupon(context.Background()))

	snap := ck.Snapshot()
	require.Nil(t, snap.Coupon)
	api.mu.Lock()
	require.Equal(t, 3, api.creates[models.MethodQR])
	require.Equal(t, "", api.createCodes[len(api.createCodes)-1])
	api.mu.Unlock()
}

type fakeEvents struct {
	mu       sync.Mutex
	handlers map[string]func(OrderEvent)
}

func (f *fakeEvents) Subscribe(orderID string, handler func(OrderEvent)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers == nil {
		f.handlers = make(map[string]func(OrderEvent))
	}
	f.handlers[orderID] = handler
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, orderID)
	}, nil
}

func (f *fakeEvents) push(orderID string, ev OrderEvent) bool {
	f.mu.Lock()
	handler := f.handlers[orderID]
	f.mu.Unlock()
	if handler == nil {
		return false
	}
	handler(ev)
	return true
}

func TestPushedEventBeatsPollTick(t *testing.T) {
	api := newFakeAPI(pending())
	settler := &fakeSettler{}
	events := &fakeEvents{}
	cfg := testConfig()
	cfg.PollInterval = time.Minute
	ck := newCheckout("u1", 11, "tok", api, settler, events, cfg, nil)
	defer ck.Teardown()

	require.NoError(t, ck.Start(context.Background()))
	require.Eventually(t, func() bool {
		return events.push("ORD-qrnone-1", OrderEvent{OrderID: "ORD-qrnone-1", Status: models.PaymentStatusPaid, TransactionID: "TXN-2"})
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return ck.Snapshot().State == StateRedirecting
	}, 2*time.Second, 5*time.Millisecond)

	require.Zero(t, api.pollCount())
	orders := settler.settled()
	require.Len(t, orders, 1)
	require.Equal(t, "TXN-2", orders[0].TransactionID)
}

func TestPollTimeout(t *testing.T) {
	api := newFakeAPI(pending())
	cfg := testConfig()
	cfg.PollTimeout = 30 * time.Millisecond
	ck := newCheckout("u1", 7, "tok", api, &fakeSettler{}, nil, cfg, nil)
	defer ck.Teardown()

	require.NoError(t, ck.Start(context.Background()))
	require.Eventually(t, func() bool {
		return ck.Snapshot().State == StateTimedOut
	}, 2*time.Second, 5*time.Millisecond)
}
