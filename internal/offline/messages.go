package offline

import (
	"context"
	"encoding/json"

	"github.com/Abdallaheslam/ostaz-edge/internal/datastore/entities"
	"github.com/Abdallaheslam/ostaz-edge/internal/logger"
)

// Message is a page → controller request. Type discriminates the variant;
// the remaining fields are per-type payloads.
type Message struct {
	Type string `json:"type"`
	// Order carries the order payload for SAVE_ORDER.
	Order json.RawMessage `json:"order,omitempty"`
	// Prefix optionally narrows CLEAR_CACHE to partitions with this name
	// prefix. Empty clears all response partitions.
	Prefix string `json:"prefix,omitempty"`
}

// Reply is a controller → page response or broadcast.
type Reply struct {
	Type    string                  `json:"type"`
	Version string                  `json:"version,omitempty"`
	Caches  []string                `json:"caches,omitempty"`
	OrderID string                  `json:"orderId,omitempty"`
	Orders  []entities.PendingOrder `json:"orders,omitempty"`
	Cleared int64                   `json:"cleared,omitempty"`
	Error   string                  `json:"error,omitempty"`
}

// HandleMessage dispatches one page message. The message set is closed;
// an unrecognized type is acknowledged as UNKNOWN_MESSAGE and otherwise
// ignored.
func (c *Controller) HandleMessage(ctx context.Context, msg Message) Reply {
	switch msg.Type {
	case MsgSkipWaiting:
		if err := c.SkipWaiting(ctx); err != nil {
			c.log.Error("skip waiting failed", logger.Error(err))
		}
		return Reply{Type: ReplyWaitingSkipped, Version: c.settings.Version}

	case MsgClearCache:
		cleared, err := c.cache.DeleteByPrefix(ctx, msg.Prefix)
		if err != nil {
			c.log.Error("cache clear failed", logger.Error(err))
			return Reply{Type: ReplyCacheCleared, Error: "failed to clear cache"}
		}
		return Reply{Type: ReplyCacheCleared, Cleared: cleared}

	case MsgGetCacheInfo:
		names, err := c.cache.ListPartitions(ctx)
		if err != nil {
			c.log.Error("cache info failed", logger.Error(err))
			names = []string{}
		}
		return Reply{Type: ReplyCacheInfo, Caches: names}

	case MsgSaveOrder:
		id, err := c.queue.Enqueue(ctx, msg.Order)
		if err != nil {
			return Reply{Type: ReplyOrderError, Error: err.Error()}
		}
		// The page expects the queued order to be submitted as soon as
		// connectivity allows, mirroring a sync-orders registration.
		go func() {
			replayCtx, cancel := context.WithTimeout(context.Background(), periodicJobTimeout)
			defer cancel()
			if _, err := c.queue.ReplayAll(replayCtx); err != nil {
				c.log.Warn("post-save order replay failed", logger.Error(err))
			}
		}()
		return Reply{Type: ReplyOrderSaved, OrderID: id}

	case MsgGetPendingOrders:
		orders, err := c.queue.ListPending(ctx)
		if err != nil {
			return Reply{Type: ReplyOrderError, Error: err.Error()}
		}
		if orders == nil {
			orders = []entities.PendingOrder{}
		}
		return Reply{Type: ReplyPendingOrders, Orders: orders}

	case MsgGetVersion:
		return Reply{Type: ReplyVersion, Version: c.settings.Version}

	default:
		c.log.Debug("ignoring unknown message", logger.String("type", msg.Type))
		return Reply{Type: ReplyUnknown}
	}
}
