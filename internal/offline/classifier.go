package offline

import (
	"net/http"
	"path"
	"strings"

	"github.com/Abdallaheslam/ostaz-edge/internal/conf"
)

// Classifier assigns every intercepted request to exactly one handling
// strategy. Classification is deterministic and total.
type Classifier struct {
	backendMarkers []string
	catalogPaths   []string
	imageExts      map[string]struct{}
	staticExts     map[string]struct{}
	documentExts   map[string]struct{}
	cdnHosts       map[string]struct{}
}

// NewClassifier builds a Classifier from routing settings.
func NewClassifier(routing *conf.RoutingSettings) *Classifier {
	return &Classifier{
		backendMarkers: routing.BackendMarkers,
		catalogPaths:   routing.CatalogPaths,
		imageExts:      toSet(routing.ImageExtensions),
		staticExts:     toSet(routing.StaticExtensions),
		documentExts:   toSet(routing.DocumentExtensions),
		cdnHosts:       toSet(routing.CDNHosts),
	}
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.ToLower(v)] = struct{}{}
	}
	return set
}

// Classify applies the classification rules in precedence order:
//  1. non-GET methods pass through untouched,
//  2. backend service traffic passes through, except read-only catalog
//     endpoints which are API reads,
//  3. image extensions,
//  4. document loads (extension, Accept header, or navigation mode),
//  5. script/stylesheet extensions and known static CDN hosts,
//  6. everything else is generic.
func (c *Classifier) Classify(r *http.Request) Class {
	if r.Method != http.MethodGet {
		return ClassPassThrough
	}

	host := strings.ToLower(r.URL.Host)
	urlPath := r.URL.Path

	if c.matchesBackend(host, urlPath) {
		if c.isCatalogRead(urlPath) {
			return ClassAPI
		}
		return ClassPassThrough
	}

	ext := strings.ToLower(path.Ext(urlPath))
	if _, ok := c.imageExts[ext]; ok {
		return ClassImage
	}

	if c.isNavigation(r, ext) {
		return ClassNavigation
	}

	if _, ok := c.staticExts[ext]; ok {
		return ClassStatic
	}
	if _, ok := c.cdnHosts[host]; ok {
		return ClassStatic
	}

	return ClassGeneric
}

func (c *Classifier) matchesBackend(host, urlPath string) bool {
	for _, marker := range c.backendMarkers {
		if strings.Contains(host, marker) || strings.Contains(urlPath, marker) {
			return true
		}
	}
	return false
}

func (c *Classifier) isCatalogRead(urlPath string) bool {
	for _, p := range c.catalogPaths {
		if strings.HasSuffix(urlPath, p) {
			return true
		}
	}
	return false
}

func (c *Classifier) isNavigation(r *http.Request, ext string) bool {
	if _, ok := c.documentExts[ext]; ok {
		return true
	}
	if r.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		return true
	}
	// The root document has no extension and plain clients send no
	// navigation headers.
	return r.URL.Path == "/" || strings.HasSuffix(r.URL.Path, "/")
}
