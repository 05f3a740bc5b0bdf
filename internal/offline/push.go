package offline

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/Abdallaheslam/ostaz-edge/internal/logger"
	"github.com/Abdallaheslam/ostaz-edge/internal/notification"
)

// PushPayload is the optional JSON body of a push notification.
type PushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon"`
	Badge string `json:"badge"`
	URL   string `json:"url"`
}

// HandlePush turns a received push payload into a user notification.
// Parsing falls back from JSON to plain text to fixed defaults; a
// notification is always shown, never dropped silently.
func (c *Controller) HandlePush(ctx context.Context, data []byte) PushPayload {
	p := c.parsePushPayload(data)

	meta := map[string]any{
		"icon":  p.Icon,
		"badge": p.Badge,
	}
	if p.URL != "" {
		meta["url"] = p.URL
	}
	if c.notifier != nil {
		if err := c.notifier.Notify(notification.TypePush, notification.PriorityHigh, p.Title, p.Body, meta); err != nil {
			c.log.Error("failed to show push notification", logger.Error(err))
		}
	}
	return p
}

func (c *Controller) parsePushPayload(data []byte) PushPayload {
	defaults := PushPayload{
		Title: c.settings.Notification.DefaultTitle,
		Body:  c.settings.Notification.DefaultBody,
		Icon:  c.settings.Notification.Icon,
		Badge: c.settings.Notification.Badge,
	}

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return defaults
	}

	var parsed PushPayload
	if err := json.Unmarshal(data, &parsed); err == nil {
		// JSON fields override defaults only where present.
		if parsed.Title != "" {
			defaults.Title = parsed.Title
		}
		if parsed.Body != "" {
			defaults.Body = parsed.Body
		}
		if parsed.Icon != "" {
			defaults.Icon = parsed.Icon
		}
		if parsed.Badge != "" {
			defaults.Badge = parsed.Badge
		}
		defaults.URL = parsed.URL
		return defaults
	}

	// Malformed JSON: treat the raw bytes as the notification body.
	defaults.Body = trimmed
	return defaults
}
