package offline

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mileusna/crontab"

	"github.com/Abdallaheslam/ostaz-edge/internal/conf"
	"github.com/Abdallaheslam/ostaz-edge/internal/datastore/entities"
	"github.com/Abdallaheslam/ostaz-edge/internal/datastore/repository"
	"github.com/Abdallaheslam/ostaz-edge/internal/errors"
	"github.com/Abdallaheslam/ostaz-edge/internal/logger"
)

// Controller states. Transitions: new → installing → installed →
// activating → active.
const (
	StateNew        = "new"
	StateInstalling = "installing"
	StateInstalled  = "installed"
	StateActivating = "activating"
	StateActive     = "active"
)

// periodicJobTimeout bounds a single periodic-sync job run.
const periodicJobTimeout = 2 * time.Minute

// MessageSink receives outbound controller → page broadcasts.
type MessageSink interface {
	Broadcast(reply Reply)
}

// ControllerConfig wires a Controller's collaborators.
type ControllerConfig struct {
	Settings   *conf.Settings
	Cache      repository.ResponseCacheRepository
	Engine     *Engine
	Queue      *OrderQueue
	Classifier *Classifier
	Fetch      Fetcher
	Notifier   Notifier
	Sink       MessageSink
	Log        logger.Logger
}

// Controller coordinates the cache lifecycle: install-time precache,
// activation cleanup, page messaging, background sync and periodic
// maintenance.
type Controller struct {
	settings   *conf.Settings
	cache      repository.ResponseCacheRepository
	engine     *Engine
	queue      *OrderQueue
	classifier *Classifier
	fetch      Fetcher
	notifier   Notifier
	sink       MessageSink
	log        logger.Logger

	mu    sync.Mutex
	state string
	cron  *crontab.Crontab
}

// NewController creates a Controller in the "new" state.
func NewController(cfg ControllerConfig) *Controller {
	return &Controller{
		settings:   cfg.Settings,
		cache:      cfg.Cache,
		engine:     cfg.Engine,
		queue:      cfg.Queue,
		classifier: cfg.Classifier,
		fetch:      cfg.Fetch,
		notifier:   cfg.Notifier,
		sink:       cfg.Sink,
		log:        cfg.Log,
		state:      StateNew,
	}
}

// State returns the controller's lifecycle state.
func (c *Controller) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s string) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Version returns the current cache version tag.
func (c *Controller) Version() string {
	return c.settings.Version
}

// Classifier returns the request classifier.
func (c *Controller) Classifier() *Classifier {
	return c.classifier
}

// Engine returns the response strategy engine.
func (c *Controller) Engine() *Engine {
	return c.engine
}

// Install precaches the configured asset manifest plus the offline page
// into the static partition. The precache is all-or-nothing: any failed
// fetch fails the install and nothing is persisted. A partially cached
// shell is worse than retrying installation.
func (c *Controller) Install(ctx context.Context) error {
	c.setState(StateInstalling)
	partition := PartitionName(RoleStatic, c.settings.Version)

	assets := c.settings.Precache.Assets
	urls := make([]string, 0, len(assets)+1)
	seen := make(map[string]struct{}, len(assets)+1)
	for _, u := range append(append([]string{}, assets...), c.settings.Precache.OfflinePage) {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}

	snaps := make([]entities.CachedResponse, 0, len(urls))
	for _, u := range urls {
		res, err := c.fetch.Fetch(ctx, http.MethodGet, u, nil)
		if err != nil {
			c.setState(StateNew)
			return errors.WithComponent(errors.ComponentCacheControl,
				fmt.Errorf("install failed: precache fetch %s: %w", u, err))
		}
		if res.Status != http.StatusOK {
			c.setState(StateNew)
			return errors.WithComponent(errors.ComponentCacheControl,
				fmt.Errorf("install failed: precache fetch %s returned %d", u, res.Status))
		}
		snaps = append(snaps, *snapshotFromResult(partition, u, res))
	}

	if err := c.cache.PutAll(ctx, snaps); err != nil {
		c.setState(StateNew)
		return errors.WithComponent(errors.ComponentCacheControl,
			fmt.Errorf("install failed: %w", err))
	}

	c.setState(StateInstalled)
	c.log.Info("install complete",
		logger.String("version", c.settings.Version),
		logger.Int("precached", len(snaps)))
	return nil
}

// Activate deletes every cache partition absent from the current
// allow-list, then broadcasts SW_ACTIVATED to all connected pages.
// Pending orders live outside the partitions and are never touched.
func (c *Controller) Activate(ctx context.Context) error {
	c.setState(StateActivating)

	deleted, err := c.cache.DeletePartitionsExcept(ctx, c.allowedPartitions())
	if err != nil {
		c.setState(StateInstalled)
		return errors.WithComponent(errors.ComponentCacheControl,
			fmt.Errorf("activate failed: %w", err))
	}
	for _, name := range deleted {
		c.log.Info("removed stale cache partition", logger.String("partition", name))
	}

	c.setState(StateActive)
	if c.sink != nil {
		c.sink.Broadcast(Reply{Type: BroadcastActivated, Version: c.settings.Version})
	}
	c.log.Info("activation complete", logger.String("version", c.settings.Version))
	return nil
}

// SkipWaiting applies a waiting update immediately: an installed
// controller activates without waiting for pages to close.
func (c *Controller) SkipWaiting(ctx context.Context) error {
	if c.State() != StateInstalled {
		return nil
	}
	return c.Activate(ctx)
}

func (c *Controller) allowedPartitions() []string {
	v := c.settings.Version
	return []string{
		PartitionName(RoleStatic, v),
		PartitionName(RoleDynamic, v),
		PartitionName(RoleImages, v),
		PartitionName(RoleAPI, v),
	}
}

// HandleSync reacts to a background-sync signal. sync-orders replays the
// pending-order queue; sync-cart is a registered no-op placeholder.
func (c *Controller) HandleSync(ctx context.Context, tag string) error {
	switch tag {
	case TagSyncOrders:
		synced, err := c.queue.ReplayAll(ctx)
		if err != nil {
			return err
		}
		c.log.Info("order sync complete", logger.Int("synced", synced))
		return nil
	case TagSyncCart:
		return nil
	default:
		return fmt.Errorf("unknown sync tag %q", tag)
	}
}

// StartPeriodicSync schedules the update-products and cleanup-cache jobs.
// Both are best-effort; a failed run is logged and retried on the next tick.
func (c *Controller) StartPeriodicSync() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return
	}
	c.cron = crontab.New()
	c.cron.MustAddJob(c.settings.Sync.ProductRefreshSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), periodicJobTimeout)
		defer cancel()
		c.RefreshCatalog(ctx)
	})
	c.cron.MustAddJob(c.settings.Sync.CleanupSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), periodicJobTimeout)
		defer cancel()
		c.CleanupCache(ctx)
	})
}

// Stop shuts down the periodic scheduler.
func (c *Controller) Stop() {
	c.mu.Lock()
	cron := c.cron
	c.cron = nil
	c.mu.Unlock()
	if cron != nil {
		cron.Shutdown()
	}
}

// RefreshCatalog re-fetches the configured catalog URLs into the API
// partition. Individual failures are logged and skipped.
func (c *Controller) RefreshCatalog(ctx context.Context) {
	for _, u := range c.settings.Sync.ProductURLs {
		if err := c.engine.Refresh(ctx, u); err != nil {
			c.log.Warn("catalog refresh failed",
				logger.String("url", u),
				logger.Error(err))
		}
	}
}

// CleanupCache evicts cached responses older than the configured horizon.
// The current static partition is exempt: the precached shell is replaced
// wholesale on version bumps, not aged out.
func (c *Controller) CleanupCache(ctx context.Context) {
	cutoff := time.Now().Add(-c.settings.Sync.EvictionHorizon.Std())
	exempt := []string{PartitionName(RoleStatic, c.settings.Version)}

	deleted, err := c.cache.DeleteCapturedBefore(ctx, cutoff, exempt)
	if err != nil {
		c.log.Error("cache cleanup failed", logger.Error(err))
		return
	}
	if deleted > 0 {
		c.log.Info("cache cleanup complete", logger.Int64("deleted", deleted))
	}
}
