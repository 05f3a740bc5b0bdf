// Package conf loads and validates application settings.
package conf

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings holds the full application configuration.
type Settings struct {
	// Listen is the address the gateway binds to.
	Listen string `mapstructure:"listen"`
	// Version tags the current cache generation (e.g. "v2026.4").
	Version string `mapstructure:"version"`
	// Upstream is the origin base URL relative request paths resolve against.
	Upstream string `mapstructure:"upstream"`

	Database     DatabaseSettings     `mapstructure:"database"`
	Precache     PrecacheSettings     `mapstructure:"precache"`
	Routing      RoutingSettings      `mapstructure:"routing"`
	Orders       OrderSettings        `mapstructure:"orders"`
	Sync         SyncSettings         `mapstructure:"sync"`
	Notification NotificationSettings `mapstructure:"notification"`
}

// DatabaseSettings configures the durable store backing cache partitions
// and the pending-order queue.
type DatabaseSettings struct {
	Path string `mapstructure:"path"`
}

// PrecacheSettings lists the assets cached unconditionally at install time.
type PrecacheSettings struct {
	// Assets is the ordered install manifest. Install is all-or-nothing.
	Assets []string `mapstructure:"assets"`
	// OfflinePage is served for navigations that fail with no cached match.
	OfflinePage string `mapstructure:"offline_page"`
	// PlaceholderIcon is served for image fetches that fail with no cached match.
	PlaceholderIcon string `mapstructure:"placeholder_icon"`
}

// RoutingSettings drives request classification.
type RoutingSettings struct {
	// BackendMarkers identify backend database/auth/storage traffic that is
	// never intercepted. Matched as substrings of the request host or path.
	BackendMarkers []string `mapstructure:"backend_markers"`
	// CatalogPaths are read-only backend endpoints that are cached despite
	// matching a backend marker.
	CatalogPaths []string `mapstructure:"catalog_paths"`

	ImageExtensions    []string `mapstructure:"image_extensions"`
	StaticExtensions   []string `mapstructure:"static_extensions"`
	DocumentExtensions []string `mapstructure:"document_extensions"`
	// CDNHosts are static-asset hosts (fonts, icon libraries) treated as
	// cacheable static content.
	CDNHosts []string `mapstructure:"cdn_hosts"`
}

// OrderSettings configures offline order submission.
type OrderSettings struct {
	// SubmitURL receives queued order payloads as JSON POSTs on replay.
	SubmitURL string   `mapstructure:"submit_url"`
	Timeout   Duration `mapstructure:"timeout"`
}

// SyncSettings configures the periodic background work.
type SyncSettings struct {
	// EvictionHorizon is the maximum age of a cached response before the
	// cleanup sweep removes it.
	EvictionHorizon Duration `mapstructure:"eviction_horizon"`
	// ProductRefreshSchedule and CleanupSchedule are cron expressions for
	// the update-products and cleanup-cache jobs.
	ProductRefreshSchedule string `mapstructure:"product_refresh_schedule"`
	CleanupSchedule        string `mapstructure:"cleanup_schedule"`
	// RevalidateGuard is how long a background revalidation for a URL
	// suppresses duplicate revalidations of the same URL.
	RevalidateGuard Duration `mapstructure:"revalidate_guard"`
	// ProductURLs are the catalog endpoints refreshed by the
	// update-products job.
	ProductURLs []string `mapstructure:"product_urls"`
}

// NotificationSettings configures user-facing notifications.
type NotificationSettings struct {
	DefaultTitle string `mapstructure:"default_title"`
	DefaultBody  string `mapstructure:"default_body"`
	Icon         string `mapstructure:"icon"`
	Badge        string `mapstructure:"badge"`
	BufferSize   int    `mapstructure:"buffer_size"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":8090")
	v.SetDefault("version", "v2026.4")
	v.SetDefault("upstream", "http://localhost:8080")

	v.SetDefault("database.path", "ostaz-edge.db")

	v.SetDefault("precache.assets", []string{
		"/",
		"/index.html",
		"/offline.html",
		"/manifest.json",
		"/icons/icon-72x72.png",
		"/icons/icon-144x144.png",
		"/icons/icon-192x192.png",
		"/icons/icon-512x512.png",
		"https://fonts.googleapis.com/css2?family=Cairo:wght@300;400;500;600;700;800;900&display=swap",
		"https://cdnjs.cloudflare.com/ajax/libs/font-awesome/6.4.0/css/all.min.css",
		"https://cdnjs.cloudflare.com/ajax/libs/animate.css/4.1.1/animate.min.css",
	})
	v.SetDefault("precache.offline_page", "/offline.html")
	v.SetDefault("precache.placeholder_icon", "/icons/icon-192x192.png")

	v.SetDefault("routing.backend_markers", []string{
		"firebaseio.com",
		"firebaseapp.com",
		"firestore.googleapis.com",
		"firebasestorage.googleapis.com",
		"identitytoolkit.googleapis.com",
		"sockjs",
		"hot-update",
	})
	v.SetDefault("routing.catalog_paths", []string{
		"/products.json",
		"/categories.json",
	})
	v.SetDefault("routing.image_extensions", []string{
		".png", ".jpg", ".jpeg", ".webp", ".gif", ".svg", ".ico",
	})
	v.SetDefault("routing.static_extensions", []string{
		".css", ".js", ".woff", ".woff2", ".ttf",
	})
	v.SetDefault("routing.document_extensions", []string{".html"})
	v.SetDefault("routing.cdn_hosts", []string{
		"fonts.googleapis.com",
		"fonts.gstatic.com",
		"cdnjs.cloudflare.com",
	})

	v.SetDefault("orders.submit_url", "https://supermarket-3aboda-default-rtdb.firebaseio.com/orders.json")
	v.SetDefault("orders.timeout", "15s")

	v.SetDefault("sync.eviction_horizon", "168h")
	v.SetDefault("sync.product_refresh_schedule", "0 * * * *")
	v.SetDefault("sync.cleanup_schedule", "30 3 * * *")
	v.SetDefault("sync.revalidate_guard", "30s")
	v.SetDefault("sync.product_urls", []string{
		"https://supermarket-3aboda-default-rtdb.firebaseio.com/products.json",
		"https://supermarket-3aboda-default-rtdb.firebaseio.com/categories.json",
	})

	v.SetDefault("notification.default_title", "Ostaz Market")
	v.SetDefault("notification.default_body", "You have a new notification")
	v.SetDefault("notification.icon", "/icons/icon-192x192.png")
	v.SetDefault("notification.badge", "/icons/icon-72x72.png")
	v.SetDefault("notification.buffer_size", 10)
}

// Load reads settings from the given config file (YAML), falling back to a
// config.yaml in the working directory, environment variables with the
// OSTAZ_EDGE prefix, and built-in defaults. A missing config file is not an
// error; a malformed one is.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("OSTAZ_EDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/ostaz-edge")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s, viper.DecodeHook(DurationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks invariants the rest of the application relies on.
func (s *Settings) Validate() error {
	if s.Version == "" {
		return fmt.Errorf("config: version must not be empty")
	}
	if s.Upstream == "" {
		return fmt.Errorf("config: upstream must not be empty")
	}
	if len(s.Precache.Assets) == 0 {
		return fmt.Errorf("config: precache.assets must not be empty")
	}
	if s.Precache.OfflinePage == "" {
		return fmt.Errorf("config: precache.offline_page must not be empty")
	}
	if s.Orders.SubmitURL == "" {
		return fmt.Errorf("config: orders.submit_url must not be empty")
	}
	if s.Sync.EvictionHorizon.Std() <= 0 {
		return fmt.Errorf("config: sync.eviction_horizon must be positive")
	}
	if s.Orders.Timeout.Std() <= 0 {
		s.Orders.Timeout = Duration(15 * time.Second)
	}
	return nil
}
