package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Abdallaheslam/ostaz-edge/internal/datastore/entities"
	"github.com/Abdallaheslam/ostaz-edge/internal/errors"
)

// orderQueueRepository implements OrderQueueRepository.
type orderQueueRepository struct {
	db *gorm.DB
}

// NewOrderQueueRepository creates a new OrderQueueRepository.
func NewOrderQueueRepository(db *gorm.DB) OrderQueueRepository {
	return &orderQueueRepository{db: db}
}

func (r *orderQueueRepository) Enqueue(ctx context.Context, order *entities.PendingOrder) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(order).Error
	})
	if err != nil {
		return errors.WithComponent(errors.ComponentOrderQueue,
			fmt.Errorf("failed to enqueue order %s: %w", order.ID, err))
	}
	return nil
}

func (r *orderQueueRepository) Get(ctx context.Context, id string) (*entities.PendingOrder, error) {
	var order entities.PendingOrder
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, errors.WithComponent(errors.ComponentOrderQueue,
			fmt.Errorf("failed to get order %s: %w", id, err))
	}
	return &order, nil
}

func (r *orderQueueRepository) ListPending(ctx context.Context) ([]entities.PendingOrder, error) {
	var orders []entities.PendingOrder
	err := r.db.WithContext(ctx).
		Where("status = ?", entities.OrderStatusPending).
		Order("created_at ASC, id ASC").
		Find(&orders).Error
	if err != nil {
		return nil, errors.WithComponent(errors.ComponentOrderQueue,
			fmt.Errorf("failed to list pending orders: %w", err))
	}
	return orders, nil
}

// MarkSynced guards the transition with a status predicate inside one
// transaction, so a racing duplicate call affects zero rows and the
// original sync timestamp survives.
func (r *orderQueueRepository) MarkSynced(ctx context.Context, id string, at time.Time) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Model(&entities.PendingOrder{}).
			Where("id = ? AND status = ?", id, entities.OrderStatusPending).
			Updates(map[string]any{
				"status":    entities.OrderStatusSynced,
				"synced_at": at,
			}).Error
	})
	if err != nil {
		return errors.WithComponent(errors.ComponentOrderQueue,
			fmt.Errorf("failed to mark order %s synced: %w", id, err))
	}
	return nil
}
