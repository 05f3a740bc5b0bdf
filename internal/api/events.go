package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Abdallaheslam/ostaz-edge/internal/notification"
	"github.com/Abdallaheslam/ostaz-edge/internal/offline"
)

// eventChannelBuffer is the per-subscriber buffer; a slow consumer loses
// events rather than blocking broadcast.
const eventChannelBuffer = 10

// EventStream fans controller broadcasts out to connected SSE clients.
// It implements offline.MessageSink.
type EventStream struct {
	mu     sync.RWMutex
	subs   map[int]chan offline.Reply
	nextID int
}

// NewEventStream creates an EventStream.
func NewEventStream() *EventStream {
	return &EventStream{subs: make(map[int]chan offline.Reply)}
}

// Broadcast delivers a controller reply to every connected client.
func (s *EventStream) Broadcast(reply offline.Reply) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- reply:
		default:
		}
	}
}

func (s *EventStream) subscribe() (<-chan offline.Reply, func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	ch := make(chan offline.Reply, eventChannelBuffer)
	s.subs[id] = ch
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existing, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(existing)
		}
	}
}

// Events streams controller broadcasts and notifications to the page as
// server-sent events.
func (c *Controller) Events(ctx echo.Context) error {
	resp := ctx.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set(echo.HeaderConnection, "keep-alive")
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	replies, unsubscribe := c.events.subscribe()
	defer unsubscribe()

	var notifs <-chan *notification.Notification
	var unsubNotifs func()
	if svc := notification.GetService(); svc != nil {
		notifs, unsubNotifs = svc.Subscribe()
		defer unsubNotifs()
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	done := ctx.Request().Context().Done()
	for {
		select {
		case <-done:
			return nil
		case reply, ok := <-replies:
			if !ok {
				return nil
			}
			if err := writeSSE(resp, "message", reply); err != nil {
				return nil
			}
		case n, ok := <-notifs:
			if !ok {
				notifs = nil
				continue
			}
			if err := writeSSE(resp, "notification", n); err != nil {
				return nil
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(resp, ": heartbeat\n\n"); err != nil {
				return nil
			}
			resp.Flush()
		}
	}
}

func writeSSE(resp *echo.Response, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(resp, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	resp.Flush()
	return nil
}
