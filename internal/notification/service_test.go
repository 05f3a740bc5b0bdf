package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestService_Create(t *testing.T) {
	t.Parallel()
	svc := NewService(nil)

	n, err := svc.Create(TypeSync, PriorityMedium, "Orders synced", "2 order(s) submitted successfully")
	require.NoError(t, err)

	assert.NotEmpty(t, n.ID)
	assert.Equal(t, TypeSync, n.Type)
	assert.Equal(t, PriorityMedium, n.Priority)
	assert.Equal(t, "Orders synced", n.Title)
	assert.Equal(t, "2 order(s) submitted successfully", n.Message)
	assert.WithinDuration(t, time.Now(), n.Timestamp, time.Second)
}

func TestService_SubscribeAndBroadcast(t *testing.T) {
	t.Parallel()
	svc := NewService(&ServiceConfig{BufferSize: 4})

	ch, unsubscribe := svc.Subscribe()
	defer unsubscribe()
	assert.Equal(t, 1, svc.SubscriberCount())

	sent, err := svc.CreateAndBroadcast(TypePush, PriorityHigh, "Weekend sale", "20% off")
	require.NoError(t, err)

	select {
	case got := <-ch:
		assert.Equal(t, sent.ID, got.ID)
		assert.Equal(t, "Weekend sale", got.Title)
	case <-time.After(time.Second):
		t.Fatal("notification was not delivered")
	}
}

func TestService_BroadcastToMultipleSubscribers(t *testing.T) {
	t.Parallel()
	svc := NewService(nil)

	ch1, unsub1 := svc.Subscribe()
	defer unsub1()
	ch2, unsub2 := svc.Subscribe()
	defer unsub2()
	assert.Equal(t, 2, svc.SubscriberCount())

	_, err := svc.CreateAndBroadcast(TypeSystem, PriorityLow, "hello", "world")
	require.NoError(t, err)

	for _, ch := range []<-chan *Notification{ch1, ch2} {
		select {
		case got := <-ch:
			assert.Equal(t, "hello", got.Title)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive the broadcast")
		}
	}
}

func TestService_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	t.Parallel()
	svc := NewService(&ServiceConfig{BufferSize: 1})

	ch, unsubscribe := svc.Subscribe()
	defer unsubscribe()

	// The second broadcast overflows the buffer and is dropped for this
	// subscriber; Broadcast itself never blocks.
	_, err := svc.CreateAndBroadcast(TypeSystem, PriorityLow, "first", "")
	require.NoError(t, err)
	_, err = svc.CreateAndBroadcast(TypeSystem, PriorityLow, "second", "")
	require.NoError(t, err)

	got := <-ch
	assert.Equal(t, "first", got.Title)
	select {
	case n := <-ch:
		t.Fatalf("expected overflow drop, got %q", n.Title)
	default:
	}
}

func TestService_UnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()
	svc := NewService(nil)

	ch, unsubscribe := svc.Subscribe()
	unsubscribe()
	assert.Equal(t, 0, svc.SubscriberCount())

	_, open := <-ch
	assert.False(t, open, "channel is closed after unsubscribe")

	// Repeated unsubscribe is safe.
	unsubscribe()
}

func TestService_BroadcastAfterUnsubscribe(t *testing.T) {
	t.Parallel()
	svc := NewService(nil)

	_, unsubscribe := svc.Subscribe()
	unsubscribe()

	// Must not panic on the closed channel.
	_, err := svc.CreateAndBroadcast(TypeSystem, PriorityLow, "late", "")
	require.NoError(t, err)
}
