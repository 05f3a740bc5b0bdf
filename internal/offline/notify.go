package offline

import (
	"github.com/Abdallaheslam/ostaz-edge/internal/errors"
	"github.com/Abdallaheslam/ostaz-edge/internal/notification"
)

// Notifier abstracts the notification service for testability.
type Notifier interface {
	Notify(typ notification.Type, priority notification.Priority, title, message string, metadata map[string]any) error
}

// serviceNotifier lazily resolves the global notification service, avoiding
// hard initialization ordering between subsystems.
type serviceNotifier struct{}

// NewServiceNotifier returns a Notifier backed by the global notification
// service. Notifications are dropped silently until the service is
// initialized.
func NewServiceNotifier() Notifier {
	return &serviceNotifier{}
}

func (*serviceNotifier) Notify(typ notification.Type, priority notification.Priority, title, message string, metadata map[string]any) error {
	svc := notification.GetService()
	if svc == nil {
		return nil
	}
	n, err := svc.Create(typ, priority, title, message)
	if err != nil {
		return errors.WithComponent(errors.ComponentNotification, err)
	}
	if len(metadata) > 0 {
		n.Metadata = metadata
	}
	svc.Broadcast(n)
	return nil
}
