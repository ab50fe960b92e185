package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/atmin009/tutor-frontend/internal/upstream"
	"github.com/atmin009/tutor-frontend/pkg/queue"
)

// PaymentConfirmer confirms a payment with the course backend.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, orderID, transactionID string) error
}

// SettlementProcessor drains the settlement queue and confirms payments
// with the backend on the buying user's behalf.
type SettlementProcessor struct {
	api    PaymentConfirmer
	queue  *queue.Queue
	logger *zap.Logger
}

// NewSettlementProcessor creates a settlement worker.
func NewSettlementProcessor(api PaymentConfirmer, q *queue.Queue, logger *zap.Logger) *SettlementProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettlementProcessor{api: api, queue: q, logger: logger}
}

// Process executes one confirmation job.
func (p *SettlementProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeConfirmPayment {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.ConfirmPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	ctx = upstream.WithToken(ctx, payload.Token)
	if err := p.api.ConfirmPayment(ctx, payload.OrderID, payload.TransactionID); err != nil {
		if errors.Is(err, upstream.ErrUnauthorized) {
			// The user's backend token expired. Retrying cannot succeed and
			// the backend webhook confirms the payment independently.
			p.logger.Warn("confirm skipped, backend token expired",
				zap.String("order_id", payload.OrderID))
			return nil
		}
		return fmt.Errorf("confirm payment: %w", err)
	}

	p.logger.Info("payment confirmed",
		zap.String("order_id", payload.OrderID),
		zap.Int("course_id", payload.CourseID))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *SettlementProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("settlement worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info("settlement worker stopping")
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
