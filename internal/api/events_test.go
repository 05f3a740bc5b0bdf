package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abdallaheslam/ostaz-edge/internal/offline"
)

func TestEventStream_BroadcastReachesSubscribers(t *testing.T) {
	t.Parallel()
	s := NewEventStream()

	ch, unsubscribe := s.subscribe()
	defer unsubscribe()

	s.Broadcast(offline.Reply{Type: offline.BroadcastActivated, Version: "v1"})

	select {
	case reply := <-ch:
		assert.Equal(t, offline.BroadcastActivated, reply.Type)
		assert.Equal(t, "v1", reply.Version)
	case <-time.After(time.Second):
		t.Fatal("broadcast was not delivered")
	}
}

func TestEventStream_SlowSubscriberDrops(t *testing.T) {
	t.Parallel()
	s := NewEventStream()

	ch, unsubscribe := s.subscribe()
	defer unsubscribe()

	// Overflow the buffer; Broadcast must not block.
	for i := 0; i < eventChannelBuffer+5; i++ {
		s.Broadcast(offline.Reply{Type: offline.ReplyVersion})
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
			continue
		default:
		}
		break
	}
	assert.Equal(t, eventChannelBuffer, received)
}

func TestEventStream_UnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()
	s := NewEventStream()

	ch, unsubscribe := s.subscribe()
	unsubscribe()

	_, open := <-ch
	assert.False(t, open)

	// Safe to call twice, and to broadcast afterwards.
	unsubscribe()
	s.Broadcast(offline.Reply{Type: offline.ReplyVersion})
}

func (s *EventStream) subscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

func TestEvents_StreamsBroadcasts(t *testing.T) {
	f := newFixture(t)

	reqCtx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/sw/events", http.NoBody).WithContext(reqCtx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		f.echo.ServeHTTP(rec, req)
		close(done)
	}()

	// Wait for the handler to subscribe before broadcasting.
	require.Eventually(t, func() bool {
		return f.events.subscriberCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	f.events.Broadcast(offline.Reply{Type: offline.BroadcastActivated, Version: "v1"})

	// Give the handler a moment to flush, then hang up.
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/event-stream")
	body := rec.Body.String()
	assert.Contains(t, body, "event: message")
	assert.Contains(t, body, `"type":"SW_ACTIVATED"`)
	assert.Equal(t, 0, f.events.subscriberCount(), "handler unsubscribes on disconnect")
}
