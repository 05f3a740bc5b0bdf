package offline

import (
	"context"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/Abdallaheslam/ostaz-edge/internal/conf"
	"github.com/Abdallaheslam/ostaz-edge/internal/datastore/entities"
	"github.com/Abdallaheslam/ostaz-edge/internal/datastore/repository"
	"github.com/Abdallaheslam/ostaz-edge/internal/logger"
)

const (
	// backgroundFetchTimeout bounds revalidation fetches, which are not
	// tied to any request's lifetime.
	backgroundFetchTimeout = 30 * time.Second

	offlineBody     = "no connectivity"
	offlineJSONBody = `{"error":"offline"}`
)

// Engine routes classified requests through their response strategy
// against the cache store. Each request is handled statelessly given the
// cache contents at call time.
type Engine struct {
	cache   repository.ResponseCacheRepository
	fetch   Fetcher
	log     logger.Logger
	version string

	offlinePage     string
	placeholderIcon string

	// guard deduplicates concurrent background revalidations per URL.
	guard *gocache.Cache
}

// NewEngine creates a strategy engine.
func NewEngine(cache repository.ResponseCacheRepository, fetch Fetcher, settings *conf.Settings, log logger.Logger) *Engine {
	guardTTL := settings.Sync.RevalidateGuard.Std()
	if guardTTL <= 0 {
		guardTTL = 30 * time.Second
	}
	return &Engine{
		cache:           cache,
		fetch:           fetch,
		log:             log,
		version:         settings.Version,
		offlinePage:     settings.Precache.OfflinePage,
		placeholderIcon: settings.Precache.PlaceholderIcon,
		guard:           gocache.New(guardTTL, 2*guardTTL),
	}
}

// Handle produces a response for an already-classified request. It never
// fails: every strategy ends in a fallback response.
func (e *Engine) Handle(ctx context.Context, r *http.Request, class Class) *Result {
	key := requestKey(r)

	switch class {
	case ClassStatic:
		return e.cacheFirst(ctx, r, key, RoleStatic, e.staticFallback)
	case ClassImage:
		return e.cacheFirst(ctx, r, key, RoleImages, e.imageFallback)
	case ClassNavigation:
		return e.networkFirst(ctx, r, key, true)
	case ClassAPI:
		return e.staleWhileRevalidate(ctx, r, key)
	default:
		return e.networkFirst(ctx, r, key, false)
	}
}

// requestKey is the cache key for a request: the full URL for cross-origin
// requests, the page-relative URI otherwise, so precached manifest entries
// match runtime requests.
func requestKey(r *http.Request) string {
	if r.URL.Host != "" {
		return r.URL.String()
	}
	return r.URL.RequestURI()
}

// cacheFirst returns a cached hit immediately and revalidates in the
// background; on a miss it fetches, stores a 200 and returns whatever the
// network produced. Transport failure falls back per component.
func (e *Engine) cacheFirst(ctx context.Context, r *http.Request, key, role string, fallback func(ctx context.Context) *Result) *Result {
	partition := PartitionName(role, e.version)

	if snap, err := e.cache.MatchIn(ctx, partition, http.MethodGet, key); err == nil {
		e.revalidate(key, r.Header.Clone(), partition)
		return resultFromSnapshot(snap)
	}

	res, err := e.fetch.Fetch(ctx, http.MethodGet, key, r.Header)
	if err == nil {
		e.storeIfOK(ctx, partition, key, res)
		return res
	}

	e.log.Debug("cache-first fetch failed, serving fallback",
		logger.String("url", key),
		logger.Error(err))
	return fallback(ctx)
}

// networkFirst fetches, stores an exactly-200 response, and returns any
// HTTP status as-is. Transport failure falls back to an exact cached
// match, then the offline page for navigations, then a synthetic 408.
func (e *Engine) networkFirst(ctx context.Context, r *http.Request, key string, navigation bool) *Result {
	partition := PartitionName(RoleDynamic, e.version)

	res, err := e.fetch.Fetch(ctx, http.MethodGet, key, r.Header)
	if err == nil {
		e.storeIfOK(ctx, partition, key, res)
		return res
	}

	if snap, merr := e.cache.Match(ctx, http.MethodGet, key, e.preferredPartitions()...); merr == nil {
		return resultFromSnapshot(snap)
	}

	if navigation {
		if page := e.lookupCached(ctx, e.offlinePage); page != nil {
			return page
		}
	}

	e.log.Debug("network-first fetch failed with no cached fallback",
		logger.String("url", key),
		logger.Error(err))
	return synthetic408()
}

// staleWhileRevalidate returns a cached catalog read immediately while a
// background fetch refreshes it. With no cache it blocks on the network;
// total failure yields a parseable offline JSON payload with status 200.
func (e *Engine) staleWhileRevalidate(ctx context.Context, r *http.Request, key string) *Result {
	partition := PartitionName(RoleAPI, e.version)

	if snap, err := e.cache.MatchIn(ctx, partition, http.MethodGet, key); err == nil {
		e.revalidate(key, r.Header.Clone(), partition)
		return resultFromSnapshot(snap)
	}

	res, err := e.fetch.Fetch(ctx, http.MethodGet, key, r.Header)
	if err == nil {
		e.storeIfOK(ctx, partition, key, res)
		return res
	}

	e.log.Debug("api fetch failed with no cache, serving offline payload",
		logger.String("url", key),
		logger.Error(err))
	return offlineJSON()
}

// Refresh force-fetches a catalog URL and stores it in the API partition.
// Used by the update-products periodic job.
func (e *Engine) Refresh(ctx context.Context, rawURL string) error {
	res, err := e.fetch.Fetch(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	e.storeIfOK(ctx, PartitionName(RoleAPI, e.version), rawURL, res)
	return nil
}

// revalidate refreshes a cache entry in the background. Concurrent
// revalidations of the same URL are deduplicated; failures are logged
// and swallowed.
func (e *Engine) revalidate(key string, header http.Header, partition string) {
	if err := e.guard.Add(key, struct{}{}, gocache.DefaultExpiration); err != nil {
		return // revalidation already in flight or recently done
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundFetchTimeout)
		defer cancel()

		res, err := e.fetch.Fetch(ctx, http.MethodGet, key, header)
		if err != nil {
			e.log.Debug("background revalidation failed",
				logger.String("url", key),
				logger.Error(err))
			return
		}
		e.storeIfOK(ctx, partition, key, res)
	}()
}

// storeIfOK caches a response only when it is exactly 200. Cache write
// failures are best-effort: logged, never surfaced to the requester.
func (e *Engine) storeIfOK(ctx context.Context, partition, key string, res *Result) {
	if res.Status != http.StatusOK {
		return
	}
	snap := snapshotFromResult(partition, key, res)
	if err := e.cache.Put(ctx, snap); err != nil {
		e.log.Warn("failed to cache response",
			logger.String("url", key),
			logger.String("partition", partition),
			logger.Error(err))
	}
}

func (e *Engine) preferredPartitions() []string {
	return []string{PartitionName(RoleStatic, e.version)}
}

func (e *Engine) lookupCached(ctx context.Context, url string) *Result {
	snap, err := e.cache.Match(ctx, http.MethodGet, url, e.preferredPartitions()...)
	if err != nil {
		return nil
	}
	return resultFromSnapshot(snap)
}

func (e *Engine) imageFallback(ctx context.Context) *Result {
	if icon := e.lookupCached(ctx, e.placeholderIcon); icon != nil {
		return icon
	}
	return synthetic408()
}

func (e *Engine) staticFallback(ctx context.Context) *Result {
	if page := e.lookupCached(ctx, e.offlinePage); page != nil {
		return page
	}
	return synthetic408()
}

func resultFromSnapshot(snap *entities.CachedResponse) *Result {
	return &Result{
		Status: snap.Status,
		Header: snap.Header(),
		Body:   snap.Body,
	}
}

func snapshotFromResult(partition, key string, res *Result) *entities.CachedResponse {
	snap := &entities.CachedResponse{
		Partition:   partition,
		Method:      http.MethodGet,
		URL:         key,
		Status:      res.Status,
		ContentType: res.ContentType(),
		Body:        res.Body,
		CapturedAt:  time.Now(),
	}
	snap.SetHeader(res.Header)
	return snap
}

func synthetic408() *Result {
	h := http.Header{}
	h.Set("Content-Type", "text/plain; charset=utf-8")
	return &Result{
		Status: http.StatusRequestTimeout,
		Header: h,
		Body:   []byte(offlineBody),
	}
}

func offlineJSON() *Result {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return &Result{
		Status: http.StatusOK,
		Header: h,
		Body:   []byte(offlineJSONBody),
	}
}
