// Package offline implements the offline cache controller: request
// classification, response strategies, the pending-order queue and the
// install/activate lifecycle.
package offline

// Class is the handling strategy assigned to an intercepted request.
type Class string

const (
	// ClassPassThrough requests are forwarded untouched, never cached.
	ClassPassThrough Class = "pass_through"
	// ClassStatic assets are served cache-first with background revalidation.
	ClassStatic Class = "static"
	// ClassImage requests are served cache-first with an icon fallback.
	ClassImage Class = "image"
	// ClassNavigation document loads are served network-first with the
	// offline page as last resort.
	ClassNavigation Class = "navigation"
	// ClassAPI read-only catalog requests are served stale-while-revalidate.
	ClassAPI Class = "api"
	// ClassGeneric is everything else, served network-first.
	ClassGeneric Class = "generic"
)

// Partition roles. One partition per role is current at any time; the
// partition name is role + "-" + version.
const (
	RoleStatic  = "static"
	RoleDynamic = "dynamic"
	RoleImages  = "images"
	RoleAPI     = "api"
)

// PartitionName returns the partition name for a role under a version tag.
func PartitionName(role, version string) string {
	return role + "-" + version
}

// Message types of the page → controller protocol.
const (
	MsgSkipWaiting      = "SKIP_WAITING"
	MsgClearCache       = "CLEAR_CACHE"
	MsgGetCacheInfo     = "GET_CACHE_INFO"
	MsgSaveOrder        = "SAVE_ORDER"
	MsgGetPendingOrders = "GET_PENDING_ORDERS"
	MsgGetVersion       = "GET_VERSION"
)

// Reply types of the controller → page protocol.
const (
	ReplyCacheCleared   = "CACHE_CLEARED"
	ReplyCacheInfo      = "CACHE_INFO"
	ReplyOrderSaved     = "ORDER_SAVED"
	ReplyOrderError     = "ORDER_ERROR"
	ReplyPendingOrders  = "PENDING_ORDERS"
	ReplyVersion        = "VERSION"
	ReplyWaitingSkipped = "WAITING_SKIPPED"
	ReplyUnknown        = "UNKNOWN_MESSAGE"

	// BroadcastActivated is pushed to all connected pages when activation
	// completes.
	BroadcastActivated = "SW_ACTIVATED"
)

// Background-sync and periodic-sync tags.
const (
	TagSyncOrders     = "sync-orders"
	TagSyncCart       = "sync-cart" // reserved, currently a no-op
	TagUpdateProducts = "update-products"
	TagCleanupCache   = "cleanup-cache"
)
