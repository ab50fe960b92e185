package checkout

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Registry holds active checkouts, one per (user, course). Starting a new
// checkout supersedes any prior instance for the same pair.
type Registry struct {
	api     PaymentAPI
	settler Settler
	events  Subscriber
	cfg     Config
	logger  *zap.Logger

	mu        sync.RWMutex
	checkouts map[string]*Checkout
}

// NewRegistry creates the checkout registry.
func NewRegistry(api PaymentAPI, settler Settler, events Subscriber, cfg Config, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		api:       api,
		settler:   settler,
		events:    events,
		cfg:       cfg,
		logger:    logger,
		checkouts: make(map[string]*Checkout),
	}
}

func key(userID string, courseID int) string {
	return fmt.Sprintf("%s|%d", userID, courseID)
}

// Start creates (or replaces) the checkout for (userID, courseID) and starts
// its QR session and poller. Registration is the supersede point: whichever
// instance the map held when the new one registers is torn down, so a race
// between concurrent starts never leaves an unreachable poller running.
func (r *Registry) Start(ctx context.Context, userID string, courseID int, token string) (*Checkout, error) {
	k := key(userID, courseID)

	ck := newCheckout(userID, courseID, token, r.api, r.settler, r.events, r.cfg, r.logger)
	if err := ck.Start(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	displaced := r.checkouts[k]
	r.checkouts[k] = ck
	r.mu.Unlock()
	if displaced != nil {
		displaced.Teardown()
	}
	return ck, nil
}

// Get returns the active checkout for (userID, courseID).
func (r *Registry) Get(userID string, courseID int) (*Checkout, bool) {
	r.mu.RLock()
	ck := r.checkouts[key(userID, courseID)]
	r.mu.RUnlock()
	return ck, ck != nil
}

// Teardown stops and removes the checkout for (userID, courseID).
func (r *Registry) Teardown(userID string, courseID int) bool {
	r.mu.Lock()
	k := key(userID, courseID)
	ck := r.checkouts[k]
	delete(r.checkouts, k)
	r.mu.Unlock()
	if ck == nil {
		return false
	}
	ck.Teardown()
	return true
}

// TeardownUser stops and removes all checkouts belonging to userID, e.g.
// after logout or session invalidation.
func (r *Registry) TeardownUser(userID string) {
	prefix := userID + "|"
	var victims []*Checkout
	r.mu.Lock()
	for k, ck := range r.checkouts {
		if strings.HasPrefix(k, prefix) {
			victims = append(victims, ck)
			delete(r.checkouts, k)
		}
	}
	r.mu.Unlock()
	for _, ck := range victims {
		ck.Teardown()
	}
	if len(victims) > 0 {
		r.logger.Info("checkouts torn down for user", zap.String("user_id", userID), zap.Int("count", len(victims)))
	}
}
