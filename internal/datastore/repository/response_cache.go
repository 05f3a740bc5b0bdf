// Package repository provides data access for cached responses and
// pending orders.
package repository

import (
	"context"
	"time"

	"github.com/Abdallaheslam/ostaz-edge/internal/datastore/entities"
	"github.com/Abdallaheslam/ostaz-edge/internal/errors"
)

// ErrNoMatch is returned when no cached response exists for a request key.
var ErrNoMatch = errors.New("no cached response matches the request")

// ResponseCacheRepository manages named cache partitions of captured
// responses. Partitions are created implicitly on first write.
type ResponseCacheRepository interface {
	// Put stores a snapshot, overwriting any existing entry with the same
	// (partition, method, url) key.
	Put(ctx context.Context, snap *entities.CachedResponse) error
	// PutAll stores all snapshots in a single transaction. Either every
	// snapshot is persisted or none are.
	PutAll(ctx context.Context, snaps []entities.CachedResponse) error

	// Match searches all partitions for the request key. Partitions listed
	// in preferred win in order; among the rest the most recent capture
	// wins. Returns ErrNoMatch when nothing is cached.
	Match(ctx context.Context, method, url string, preferred ...string) (*entities.CachedResponse, error)
	// MatchIn searches a single partition for the request key.
	MatchIn(ctx context.Context, partition, method, url string) (*entities.CachedResponse, error)

	// ListPartitions returns the names of all partitions holding at least
	// one entry.
	ListPartitions(ctx context.Context) ([]string, error)
	// DeletePartition removes a partition and returns the number of
	// entries deleted.
	DeletePartition(ctx context.Context, name string) (int64, error)
	// DeletePartitionsExcept removes every partition not in keep and
	// returns the names of the partitions deleted.
	DeletePartitionsExcept(ctx context.Context, keep []string) ([]string, error)
	// DeleteByPrefix removes all partitions whose name starts with prefix
	// and returns the number of entries deleted.
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)

	// DeleteCapturedBefore removes entries captured before cutoff, skipping
	// partitions listed in exempt. Returns the number of entries deleted.
	DeleteCapturedBefore(ctx context.Context, cutoff time.Time, exempt []string) (int64, error)

	// CountEntries returns the number of entries in a partition. An empty
	// partition name counts all entries.
	CountEntries(ctx context.Context, partition string) (int64, error)
}
