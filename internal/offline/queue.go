package offline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Abdallaheslam/ostaz-edge/internal/conf"
	"github.com/Abdallaheslam/ostaz-edge/internal/datastore/entities"
	"github.com/Abdallaheslam/ostaz-edge/internal/datastore/repository"
	"github.com/Abdallaheslam/ostaz-edge/internal/errors"
	"github.com/Abdallaheslam/ostaz-edge/internal/logger"
	"github.com/Abdallaheslam/ostaz-edge/internal/notification"
)

// OrderQueue durably stores orders created while the backend is unreachable
// and replays them when connectivity returns.
type OrderQueue struct {
	repo      repository.OrderQueueRepository
	client    *http.Client
	submitURL string
	timeout   time.Duration
	notifier  Notifier
	log       logger.Logger
}

// NewOrderQueue creates an OrderQueue. The HTTP client is owned by the
// caller so tests can swap its transport.
func NewOrderQueue(repo repository.OrderQueueRepository, client *http.Client, settings *conf.OrderSettings, notifier Notifier, log logger.Logger) *OrderQueue {
	timeout := settings.Timeout.Std()
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &OrderQueue{
		repo:      repo,
		client:    client,
		submitURL: settings.SubmitURL,
		timeout:   timeout,
		notifier:  notifier,
		log:       log,
	}
}

// Enqueue assigns a new id to the payload, persists it as pending, and
// returns the id once the durable write has completed. Storage failures
// propagate: losing an order silently is unacceptable.
func (q *OrderQueue) Enqueue(ctx context.Context, payload json.RawMessage) (string, error) {
	if len(payload) == 0 || !json.Valid(payload) {
		return "", errors.WithComponent(errors.ComponentOrderQueue,
			fmt.Errorf("order payload must be valid JSON"))
	}

	order := &entities.PendingOrder{
		ID:        uuid.NewString(),
		Payload:   string(payload),
		Status:    entities.OrderStatusPending,
		CreatedAt: time.Now(),
	}
	if err := q.repo.Enqueue(ctx, order); err != nil {
		return "", err
	}

	q.log.Info("order saved offline", logger.String("order_id", order.ID))
	return order.ID, nil
}

// ListPending returns all orders awaiting sync, in insertion order.
func (q *OrderQueue) ListPending(ctx context.Context) ([]entities.PendingOrder, error) {
	return q.repo.ListPending(ctx)
}

// MarkSynced transitions an order to synced. No-op if absent or already
// synced.
func (q *OrderQueue) MarkSynced(ctx context.Context, id string) error {
	return q.repo.MarkSynced(ctx, id, time.Now())
}

// ReplayAll submits every pending order sequentially. A failed submission
// leaves the order pending and moves on; partial success is expected.
// After the sweep, a notification summarizes how many orders synced.
// Returns the synced count; only storage failures produce an error.
func (q *OrderQueue) ReplayAll(ctx context.Context) (int, error) {
	pending, err := q.repo.ListPending(ctx)
	if err != nil {
		return 0, err
	}

	synced := 0
	for i := range pending {
		order := &pending[i]
		if err := q.submit(ctx, order); err != nil {
			q.log.Warn("order submission failed, will retry on next sync",
				logger.String("order_id", order.ID),
				logger.Error(err))
			continue
		}
		if err := q.repo.MarkSynced(ctx, order.ID, time.Now()); err != nil {
			return synced, err
		}
		synced++
		q.log.Info("order synced", logger.String("order_id", order.ID))
	}

	if synced > 0 && q.notifier != nil {
		msg := fmt.Sprintf("%d order(s) submitted successfully", synced)
		if err := q.notifier.Notify(notification.TypeSync, notification.PriorityMedium, "Orders synced", msg, nil); err != nil {
			q.log.Warn("failed to send sync notification", logger.Error(err))
		}
	}
	return synced, nil
}

// submit POSTs one order payload to the backend write endpoint. Any
// 2xx-class response counts as success.
func (q *OrderQueue) submit(ctx context.Context, order *entities.PendingOrder) error {
	submitCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(submitCtx, http.MethodPost, q.submitURL,
		bytes.NewReader([]byte(order.Payload)))
	if err != nil {
		return fmt.Errorf("failed to build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("submit order %s: %w", order.ID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("submit order %s: backend returned %d", order.ID, resp.StatusCode)
	}
	return nil
}
