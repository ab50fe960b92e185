// Package checkout holds the purchase flow core: one checkout instance per
// (user, course) owning at most one payment session per method, one status
// poller, coupon state, and the settlement handoff.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atmin009/tutor-frontend/internal/models"
	"github.com/atmin009/tutor-frontend/internal/upstream"
)

// ErrEmptyCoupon is returned when a blank coupon code is submitted.
var ErrEmptyCoupon = errors.New("checkout: empty coupon code")

// State is the checkout lifecycle state.
type State string

const (
	StateIdle        State = "idle"
	StatePolling     State = "polling"
	StateConfirming  State = "confirming"
	StateRedirecting State = "redirecting"
	StateFailed      State = "failed"
	StateTimedOut    State = "timed_out"
)

// Event is a state-change notification delivered to checkout subscribers.
type Event struct {
	State      State  `json:"state"`
	Status     string `json:"status,omitempty"`
	RedirectTo string `json:"redirectTo,omitempty"`
}

// Snapshot is the externally visible checkout state.
type Snapshot struct {
	CourseID    int                    `json:"courseId"`
	Method      models.PaymentMethod   `json:"method"`
	State       State                  `json:"state"`
	Status      string                 `json:"status,omitempty"`
	QRSession   *models.PaymentSession `json:"qrSession,omitempty"`
	CardSession *models.PaymentSession `json:"cardSession,omitempty"`
	Coupon      *models.Coupon         `json:"coupon,omitempty"`
	RedirectTo  string                 `json:"redirectTo,omitempty"`
}

// Config tunes the payment flow timing.
type Config struct {
	// PollInterval is the status poll cadence.
	PollInterval time.Duration
	// PollTimeout bounds the total polling window; expiry ends the checkout
	// in StateTimedOut.
	PollTimeout time.Duration
	// ConfirmDelay is the pause between terminal success and the redirect.
	ConfirmDelay time.Duration
	// PendingTxnFallback treats a pending QR order that already carries a
	// transaction id as paid. Compensates for missed gateway webhooks; keep
	// enabled until upstream webhook delivery is reliable.
	PendingTxnFallback bool
}

func (cfg Config) withDefaults() Config {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 10 * time.Minute
	}
	if cfg.ConfirmDelay <= 0 {
		cfg.ConfirmDelay = 2 * time.Second
	}
	return cfg
}

// PaymentAPI is the slice of the upstream client the checkout flow uses.
type PaymentAPI interface {
	CreatePayment(ctx context.Context, courseID int, method models.PaymentMethod, couponCode string) (*models.PaymentSession, error)
	PaymentStatus(ctx context.Context, orderID string) (*models.PaymentStatus, error)
	ValidateCoupon(ctx context.Context, code string, courseID int) (float64, error)
}

// Subscriber is the order-event push channel the poller listens on alongside
// its ticker. Implemented by OrderEvents; nil means polling only.
type Subscriber interface {
	Subscribe(orderID string, handler func(OrderEvent)) (cancel func(), err error)
}

// Checkout is one user's purchase flow for one course.
type Checkout struct {
	userID   string
	courseID int
	token    string

	api     PaymentAPI
	settler Settler
	events  Subscriber
	cfg     Config
	logger  *zap.Logger

	mu            sync.Mutex
	method        models.PaymentMethod
	sessions      map[models.PaymentMethod]*models.PaymentSession
	coupon        *models.Coupon
	state         State
	lastStatus    string
	redirectTo    string
	redirectTimer *time.Timer
	poller        *poller
	subs          map[chan Event]struct{}
	closed        bool
}

func newCheckout(userID string, courseID int, token string, api PaymentAPI, settler Settler, events Subscriber, cfg Config, logger *zap.Logger) *Checkout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checkout{
		userID:   userID,
		courseID: courseID,
		token:    token,
		api:      api,
		settler:  settler,
		events:   events,
		cfg:      cfg.withDefaults(),
		logger:   logger.With(zap.String("user_id", userID), zap.Int("course_id", courseID)),
		method:   models.MethodQR,
		sessions: make(map[models.PaymentMethod]*models.PaymentSession),
		state:    StateIdle,
		subs:     make(map[chan Event]struct{}),
	}
}

// Start eagerly creates the QR session and begins polling its order. A
// failure leaves the checkout without a session; no retry is attempted.
func (c *Checkout) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createSessionLocked(ctx, c.method)
}

// SelectMethod switches the active payment method. The card session is
// created lazily on first selection; the poller always follows the selected
// method's order. A creation failure leaves the other method's session
// untouched.
func (c *Checkout) SelectMethod(ctx context.Context, method models.PaymentMethod) error {
	c.mu.Lock()
	if method == c.method {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	c.stopPoller()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.method = method
	c.state = StateIdle
	c.redirectTo = ""
	if session := c.sessions[method]; session != nil {
		c.startPollerLocked(session)
		return nil
	}
	return c.createSessionLocked(ctx, method)
}

// ApplyCoupon validates the code upstream and, on success, invalidates both
// sessions and recreates the selected method's session under the new
// pricing. A validation failure leaves the applied-coupon state unchanged.
func (c *Checkout) ApplyCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrEmptyCoupon
	}

	discount, err := c.api.ValidateCoupon(c.authCtx(ctx), code, c.courseID)
	if err != nil {
		return nil, err
	}

	c.stopPoller()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.coupon = &models.Coupon{Code: code, DiscountAmount: discount}
	c.sessions = make(map[models.PaymentMethod]*models.PaymentSession)
	c.state = StateIdle
	c.redirectTo = ""
	if err := c.createSessionLocked(ctx, c.method); err != nil {
		return c.coupon, err
	}
	return c.coupon, nil
}

// RemoveCoupon drops the applied coupon locally (no upstream call) and
// recreates the selected method's session at pre-coupon pricing.
func (c *Checkout) RemoveCoupon(ctx context.Context) error {
	c.stopPoller()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.coupon = nil
	c.sessions = make(map[models.PaymentMethod]*models.PaymentSession)
	c.state = StateIdle
	c.redirectTo = ""
	return c.createSessionLocked(ctx, c.method)
}

// Teardown stops the poller and closes all subscribers. No status or
// confirm calls tied to this instance happen after Teardown returns.
func (c *Checkout) Teardown() {
	c.stopPoller()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.state = StateIdle
	for ch := range c.subs {
		delete(c.subs, ch)
		close(ch)
	}
}

// Snapshot returns the current externally visible state.
func (c *Checkout) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		CourseID:    c.courseID,
		Method:      c.method,
		State:       c.state,
		Status:      c.lastStatus,
		QRSession:   c.sessions[models.MethodQR],
		CardSession: c.sessions[models.MethodCard],
		Coupon:      c.coupon,
		RedirectTo:  c.redirectTo,
	}
}

// Subscribe registers an event channel. The returned cancel must be called
// when the subscriber is done; the channel is closed on cancel or teardown.
func (c *Checkout) Subscribe() (<-chan Event, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan Event, 8)
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	c.subs[ch] = struct{}{}
	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

func (c *Checkout) authCtx(ctx context.Context) context.Context {
	return upstream.WithToken(ctx, c.token)
}

func (c *Checkout) fetchStatus(ctx context.Context, orderID string) (*models.PaymentStatus, error) {
	return c.api.PaymentStatus(c.authCtx(ctx), orderID)
}

// createSessionLocked creates a payment session for method and, when method
// is the selected one, starts polling its order.
func (c *Checkout) createSessionLocked(ctx context.Context, method models.PaymentMethod) error {
	couponCode := ""
	if c.coupon != nil {
		couponCode = c.coupon.Code
	}
	session, err := c.api.CreatePayment(c.authCtx(ctx), c.courseID, method, couponCode)
	if err != nil {
		return err
	}
	c.sessions[method] = session
	c.logger.Info("payment session created",
		zap.String("order_id", session.OrderID),
		zap.String("method", string(method)),
		zap.Float64("amount", session.Amount),
	)
	if method == c.method {
		c.startPollerLocked(session)
	}
	return nil
}

func (c *Checkout) startPollerLocked(session *models.PaymentSession) {
	if c.closed || c.poller != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &poller{
		c:        c,
		orderID:  session.OrderID,
		method:   c.method,
		interval: c.cfg.PollInterval,
		timeout:  c.cfg.PollTimeout,
		push:     make(chan *models.PaymentStatus, 4),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		logger:   c.logger,
	}
	if c.events != nil {
		cancelSub, err := c.events.Subscribe(session.OrderID, func(ev OrderEvent) {
			select {
			case p.push <- ev.status():
			default:
			}
		})
		if err != nil {
			c.logger.Warn("order event subscribe failed, polling only", zap.Error(err))
		} else {
			p.cancelSub = cancelSub
		}
	}
	c.poller = p
	c.state = StatePolling
	c.lastStatus = models.PaymentStatusPending
	c.redirectTo = ""
	c.broadcastLocked()
	go p.run()
}

// stopPoller cancels the active poller, waits for it to exit, and cancels a
// pending redirect. Callers must not hold the mutex.
func (c *Checkout) stopPoller() {
	c.mu.Lock()
	p := c.poller
	c.poller = nil
	if c.redirectTimer != nil {
		c.redirectTimer.Stop()
		c.redirectTimer = nil
	}
	c.mu.Unlock()
	if p != nil {
		p.stop()
	}
}

// observe evaluates one status observation. Returns true when the poller
// should stop.
func (c *Checkout) observe(p *poller, st *models.PaymentStatus) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.poller != p {
		return true
	}

	txn := st.Transaction()
	if txn == "" {
		if session := c.sessions[p.method]; session != nil {
			txn = session.TransactionID
		}
	}

	changed := st.Status != c.lastStatus
	c.lastStatus = st.Status

	switch {
	case st.Status == models.PaymentStatusFailed:
		c.poller = nil
		c.state = StateFailed
		c.logger.Info("payment failed", zap.String("order_id", p.orderID))
		c.broadcastLocked()
		return true

	case c.isPaidLocked(st.Status, txn, p.method):
		if st.Status != models.PaymentStatusPaid {
			c.logger.Warn("order pending but transaction id present, treating as paid",
				zap.String("order_id", p.orderID), zap.String("transaction_id", txn))
		}
		c.poller = nil
		c.state = StateConfirming
		c.broadcastLocked()
		c.settleAsync(p.orderID, txn)
		c.scheduleRedirectLocked()
		return true

	default:
		if changed {
			c.broadcastLocked()
		}
		return false
	}
}

func (c *Checkout) isPaidLocked(status, txn string, method models.PaymentMethod) bool {
	if status == models.PaymentStatusPaid {
		return true
	}
	return c.cfg.PendingTxnFallback &&
		method == models.MethodQR &&
		status == models.PaymentStatusPending &&
		txn != ""
}

// settleAsync schedules the best-effort confirmation. Its outcome never
// blocks the redirect.
func (c *Checkout) settleAsync(orderID, txn string) {
	order := SettleOrder{
		OrderID:       orderID,
		TransactionID: txn,
		CourseID:      c.courseID,
		Token:         c.token,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.settler.Settle(ctx, order); err != nil {
			c.logger.Error("settle failed", zap.Error(err), zap.String("order_id", orderID))
		}
	}()
}

func (c *Checkout) scheduleRedirectLocked() {
	c.redirectTimer = time.AfterFunc(c.cfg.ConfirmDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || c.state != StateConfirming {
			return
		}
		c.state = StateRedirecting
		c.redirectTo = fmt.Sprintf("/learning/%d", c.courseID)
		c.broadcastLocked()
	})
}

func (c *Checkout) onPollTimeout(p *poller) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.poller != p {
		return
	}
	c.poller = nil
	c.state = StateTimedOut
	c.logger.Warn("payment polling timed out", zap.String("order_id", p.orderID))
	c.broadcastLocked()
}

// onAuthLost handles an upstream 401 mid-poll: the session is gone, so the
// checkout stops without confirming.
func (c *Checkout) onAuthLost(p *poller) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.poller != p {
		return
	}
	c.poller = nil
	c.state = StateIdle
	c.logger.Info("session expired, stopped polling", zap.String("order_id", p.orderID))
	c.broadcastLocked()
}

func (c *Checkout) broadcastLocked() {
	ev := Event{State: c.state, Status: c.lastStatus, RedirectTo: c.redirectTo}
	for ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
