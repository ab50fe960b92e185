package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/atmin009/tutor-frontend/internal/models"
)

const (
	orderChannelPrefix = "payments:order:"
	publishTimeout     = 5 * time.Second
)

// OrderEvent is a status observation pushed by the payment gateway webhook.
// Active checkouts watching the order consume it between poll ticks, so
// polling remains the fallback rather than the only detection path.
type OrderEvent struct {
	OrderID       string  `json:"orderId"`
	Status        string  `json:"status"`
	TransactionID string  `json:"transactionId,omitempty"`
	Amount        float64 `json:"amount,omitempty"`
	PaymentType   string  `json:"paymentType,omitempty"`
	At            int64   `json:"at"`
}

func (ev OrderEvent) status() *models.PaymentStatus {
	st := &models.PaymentStatus{OrderID: ev.OrderID, Status: ev.Status, Amount: ev.Amount}
	if ev.TransactionID != "" {
		txn := ev.TransactionID
		st.TransactionID = &txn
	}
	if ev.PaymentType != "" {
		pt := ev.PaymentType
		st.PaymentType = &pt
	}
	return st
}

// OrderEvents bridges order events across instances via Redis pub/sub.
type OrderEvents struct {
	client *redis.Client
	logger *zap.Logger
}

// NewOrderEvents creates the order event bridge.
func NewOrderEvents(client *redis.Client, logger *zap.Logger) *OrderEvents {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderEvents{client: client, logger: logger}
}

// Publish publishes an event to the order's Redis channel.
func (e *OrderEvents) Publish(ev OrderEvent) error {
	ev.At = time.Now().Unix()
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return e.client.Publish(ctx, orderChannelPrefix+ev.OrderID, body).Err()
}

// Subscribe subscribes to an order's Redis channel and calls handler for each
// event. Returns a cancel function to stop the subscription.
func (e *OrderEvents) Subscribe(orderID string, handler func(OrderEvent)) (cancel func(), err error) {
	channel := orderChannelPrefix + orderID
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := e.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		cancelCtx()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev OrderEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					e.logger.Warn("invalid order event", zap.String("channel", channel), zap.Error(err))
					continue
				}
				handler(ev)
			}
		}
	}()
	return func() { cancelCtx() }, nil
}
