package repository

import (
	"context"
	"time"

	"github.com/Abdallaheslam/ostaz-edge/internal/datastore/entities"
	"github.com/Abdallaheslam/ostaz-edge/internal/errors"
)

// ErrOrderNotFound is returned when a pending order id does not exist.
var ErrOrderNotFound = errors.New("pending order not found")

// OrderQueueRepository durably stores orders captured while offline.
// Unlike response caching, failures here must propagate: silently losing
// an order is unacceptable.
type OrderQueueRepository interface {
	// Enqueue persists a new order. The order's ID, status and creation
	// timestamp must already be set by the caller.
	Enqueue(ctx context.Context, order *entities.PendingOrder) error
	// Get returns a single order by id, or ErrOrderNotFound.
	Get(ctx context.Context, id string) (*entities.PendingOrder, error)
	// ListPending returns all orders still awaiting sync, in insertion order.
	ListPending(ctx context.Context) ([]entities.PendingOrder, error)
	// MarkSynced transitions an order from pending to synced and records
	// the sync time. It is a no-op if the id is absent or already synced;
	// a repeated call never changes the recorded sync timestamp.
	MarkSynced(ctx context.Context, id string, at time.Time) error
}
