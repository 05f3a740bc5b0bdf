package offline

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_HandleMessage_GetVersion(t *testing.T) {
	f := newTestController(t)

	reply := f.ctrl.HandleMessage(context.Background(), Message{Type: MsgGetVersion})
	assert.Equal(t, ReplyVersion, reply.Type)
	assert.Equal(t, "v1", reply.Version)
}

func TestController_HandleMessage_GetCacheInfo(t *testing.T) {
	f := newTestController(t)
	ctx := context.Background()

	seedSnapshot(t, f.cache, "static-v1", "/index.html", "text/html", "shell")
	seedSnapshot(t, f.cache, "images-v1", "/a.png", "image/png", "img")

	reply := f.ctrl.HandleMessage(ctx, Message{Type: MsgGetCacheInfo})
	assert.Equal(t, ReplyCacheInfo, reply.Type)
	assert.ElementsMatch(t, []string{"static-v1", "images-v1"}, reply.Caches)
}

func TestController_HandleMessage_ClearCache(t *testing.T) {
	f := newTestController(t)
	ctx := context.Background()

	seedSnapshot(t, f.cache, "static-v1", "/index.html", "text/html", "shell")
	seedSnapshot(t, f.cache, "images-v1", "/a.png", "image/png", "img")
	seedSnapshot(t, f.cache, "images-v1", "/b.png", "image/png", "img")

	t.Run("with prefix clears matching partitions", func(t *testing.T) {
		reply := f.ctrl.HandleMessage(ctx, Message{Type: MsgClearCache, Prefix: "images-"})
		assert.Equal(t, ReplyCacheCleared, reply.Type)
		assert.Equal(t, int64(2), reply.Cleared)

		names, err := f.cache.ListPartitions(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"static-v1"}, names)
	})

	t.Run("without prefix clears everything", func(t *testing.T) {
		reply := f.ctrl.HandleMessage(ctx, Message{Type: MsgClearCache})
		assert.Equal(t, ReplyCacheCleared, reply.Type)
		assert.Equal(t, int64(1), reply.Cleared)

		names, err := f.cache.ListPartitions(ctx)
		require.NoError(t, err)
		assert.Empty(t, names)
	})
}

func TestController_HandleMessage_ClearCache_LeavesOrders(t *testing.T) {
	f := newTestController(t)
	ctx := context.Background()

	// No responder registered: submission fails and the order stays queued.
	saved := f.ctrl.HandleMessage(ctx, Message{Type: MsgSaveOrder, Order: json.RawMessage(`{"n":1}`)})
	require.Equal(t, ReplyOrderSaved, saved.Type)

	seedSnapshot(t, f.cache, "dynamic-v1", "/page", "text/html", "page")
	f.ctrl.HandleMessage(ctx, Message{Type: MsgClearCache})

	reply := f.ctrl.HandleMessage(ctx, Message{Type: MsgGetPendingOrders})
	assert.Equal(t, ReplyPendingOrders, reply.Type)
	assert.Len(t, reply.Orders, 1, "clearing caches never discards queued orders")
}

func TestController_HandleMessage_SaveOrder(t *testing.T) {
	f := newTestController(t)
	ctx := context.Background()

	httpmock.RegisterResponder(http.MethodPost, testSubmitURL,
		httpmock.NewStringResponder(http.StatusOK, `{"name":"-N1"}`))

	reply := f.ctrl.HandleMessage(ctx, Message{Type: MsgSaveOrder, Order: json.RawMessage(`{"items":[{"sku":"milk","qty":1}]}`)})
	assert.Equal(t, ReplyOrderSaved, reply.Type)
	assert.NotEmpty(t, reply.OrderID)
}

func TestController_HandleMessage_SaveOrder_InvalidPayload(t *testing.T) {
	f := newTestController(t)

	reply := f.ctrl.HandleMessage(context.Background(), Message{Type: MsgSaveOrder, Order: json.RawMessage(`{broken`)})
	assert.Equal(t, ReplyOrderError, reply.Type)
	assert.NotEmpty(t, reply.Error)
}

func TestController_HandleMessage_GetPendingOrders_Empty(t *testing.T) {
	f := newTestController(t)

	reply := f.ctrl.HandleMessage(context.Background(), Message{Type: MsgGetPendingOrders})
	assert.Equal(t, ReplyPendingOrders, reply.Type)
	assert.NotNil(t, reply.Orders, "empty list is an empty array, not null")
	assert.Empty(t, reply.Orders)
}

func TestController_HandleMessage_SkipWaiting(t *testing.T) {
	f := newTestController(t)
	ctx := context.Background()

	f.serveManifest()
	require.NoError(t, f.ctrl.Install(ctx))

	reply := f.ctrl.HandleMessage(ctx, Message{Type: MsgSkipWaiting})
	assert.Equal(t, ReplyWaitingSkipped, reply.Type)
	assert.Equal(t, "v1", reply.Version)
	assert.Equal(t, StateActive, f.ctrl.State())
}

func TestController_HandleMessage_Unknown(t *testing.T) {
	f := newTestController(t)

	reply := f.ctrl.HandleMessage(context.Background(), Message{Type: "REWIND_TAPE"})
	assert.Equal(t, ReplyUnknown, reply.Type)
}
