// Package entities defines the persistent data model.
package entities

import (
	"encoding/json"
	"net/http"
	"time"
)

// CachedResponse is a stored snapshot of a network response, keyed by
// partition, method and URL. Entries are overwritten on re-capture;
// last write wins.
type CachedResponse struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Partition   string    `gorm:"size:100;not null;index;uniqueIndex:idx_cache_key,priority:1" json:"partition"`
	Method      string    `gorm:"size:10;not null;uniqueIndex:idx_cache_key,priority:2" json:"method"`
	URL         string    `gorm:"size:2048;not null;uniqueIndex:idx_cache_key,priority:3" json:"url"`
	Status      int       `gorm:"not null" json:"status"`
	ContentType string    `gorm:"size:255;default:''" json:"content_type"`
	Headers     string    `gorm:"type:text;default:''" json:"headers"`
	Body        []byte    `gorm:"type:blob" json:"-"`
	CapturedAt  time.Time `gorm:"not null;index" json:"captured_at"`
}

// TableName returns the table name for GORM.
func (CachedResponse) TableName() string {
	return "cached_responses"
}

// Header decodes the stored header JSON. A missing or malformed header
// blob yields an empty header set rather than an error; cached headers
// are advisory.
func (c *CachedResponse) Header() http.Header {
	h := http.Header{}
	if c.Headers == "" {
		return h
	}
	var m map[string][]string
	if err := json.Unmarshal([]byte(c.Headers), &m); err != nil {
		return h
	}
	for k, vs := range m {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	return h
}

// SetHeader encodes the given headers into the stored JSON blob.
func (c *CachedResponse) SetHeader(h http.Header) {
	if len(h) == 0 {
		c.Headers = ""
		return
	}
	b, err := json.Marshal(map[string][]string(h))
	if err != nil {
		c.Headers = ""
		return
	}
	c.Headers = string(b)
}
