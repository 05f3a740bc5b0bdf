package entities

import "time"

// Pending order statuses. Transitions are one-way: pending → synced.
const (
	OrderStatusPending = "pending"
	OrderStatusSynced  = "synced"
)

// PendingOrder is a user order captured while the backend was unreachable,
// held durably until replay succeeds. Unlike cached responses, these records
// are never removed by the eviction sweep.
type PendingOrder struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	Payload   string     `gorm:"type:text;not null" json:"payload"`
	Status    string     `gorm:"size:10;not null;index" json:"status"`
	CreatedAt time.Time  `gorm:"not null;index" json:"created_at"`
	SyncedAt  *time.Time `json:"synced_at,omitempty"`
}

// TableName returns the table name for GORM.
func (PendingOrder) TableName() string {
	return "pending_orders"
}
