// Package notification provides user-facing notifications with in-process
// broadcast to subscribers (e.g. connected pages over SSE).
package notification

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type categorizes a notification.
type Type string

const (
	TypeSystem Type = "system"
	TypeSync   Type = "sync"
	TypePush   Type = "push"
)

// Priority indicates how prominently a notification should be shown.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Notification is a single user-facing message.
type Notification struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	Priority  Priority       `json:"priority"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ServiceConfig configures the notification service.
type ServiceConfig struct {
	// BufferSize is the per-subscriber channel capacity. A subscriber that
	// falls behind loses notifications rather than blocking broadcast.
	BufferSize int
}

// Service creates notifications and broadcasts them to subscribers.
type Service struct {
	cfg         ServiceConfig
	mu          sync.RWMutex
	subscribers map[int]chan *Notification
	nextSubID   int
}

// NewService creates a notification service.
func NewService(cfg *ServiceConfig) *Service {
	c := ServiceConfig{BufferSize: 10}
	if cfg != nil && cfg.BufferSize > 0 {
		c.BufferSize = cfg.BufferSize
	}
	return &Service{
		cfg:         c,
		subscribers: make(map[int]chan *Notification),
	}
}

// Create builds a notification without broadcasting it.
func (s *Service) Create(typ Type, priority Priority, title, message string) (*Notification, error) {
	return &Notification{
		ID:        uuid.NewString(),
		Type:      typ,
		Priority:  priority,
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
	}, nil
}

// CreateAndBroadcast builds a notification and delivers it to all
// subscribers.
func (s *Service) CreateAndBroadcast(typ Type, priority Priority, title, message string) (*Notification, error) {
	n, err := s.Create(typ, priority, title, message)
	if err != nil {
		return nil, err
	}
	s.Broadcast(n)
	return n, nil
}

// Broadcast delivers a notification to all subscribers. Non-blocking:
// a full subscriber channel drops the notification for that subscriber.
func (s *Service) Broadcast(n *Notification) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- n:
		default:
		}
	}
}

// Subscribe registers a new subscriber and returns its channel together
// with an unsubscribe function. The channel is closed on unsubscribe.
func (s *Service) Subscribe() (<-chan *Notification, func()) {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	ch := make(chan *Notification, s.cfg.BufferSize)
	s.subscribers[id] = ch
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existing, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(existing)
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (s *Service) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}
