package checkout

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/atmin009/tutor-frontend/internal/models"
	"github.com/atmin009/tutor-frontend/internal/upstream"
)

// poller watches one order until a terminal outcome, the poll timeout, or
// cancellation. It is the only component issuing status queries for its
// checkout; exactly one poller runs per checkout at any time.
type poller struct {
	c       *Checkout
	orderID string
	method  models.PaymentMethod

	interval time.Duration
	timeout  time.Duration

	push      chan *models.PaymentStatus
	cancelSub func()

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	logger *zap.Logger
}

// stop cancels the loop and waits for it to exit. Callers must not hold the
// checkout mutex.
func (p *poller) stop() {
	p.cancel()
	<-p.done
}

func (p *poller) run() {
	defer close(p.done)
	defer func() {
		if p.cancelSub != nil {
			p.cancelSub()
		}
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	deadline := time.NewTimer(p.timeout)
	defer deadline.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-deadline.C:
			p.c.onPollTimeout(p)
			return
		case st := <-p.push:
			if p.ctx.Err() != nil {
				return
			}
			if p.c.observe(p, st) {
				return
			}
		case <-ticker.C:
			st, err := p.c.fetchStatus(p.ctx, p.orderID)
			if err != nil {
				if errors.Is(err, upstream.ErrUnauthorized) {
					p.c.onAuthLost(p)
					return
				}
				if p.ctx.Err() != nil {
					return
				}
				// Transient failures retry on the next tick within the
				// poll timeout window.
				p.logger.Debug("status poll failed, retrying next tick",
					zap.Error(err), zap.String("order_id", p.orderID))
				continue
			}
			if p.ctx.Err() != nil {
				return
			}
			if p.c.observe(p, st) {
				return
			}
		}
	}
}
