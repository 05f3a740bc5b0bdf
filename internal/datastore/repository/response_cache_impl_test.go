package repository

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/Abdallaheslam/ostaz-edge/internal/datastore/entities"
)

// setupCacheTestDB creates an in-memory SQLite database for cache tests.
// Uses shared-cache mode with a single connection to ensure all operations
// see the same in-memory database.
func setupCacheTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_foreign_keys=ON"), &gorm.Config{
		Logger: gorm_logger.Default.LogMode(gorm_logger.Silent),
	})
	require.NoError(t, err, "failed to open in-memory database")

	sqlDB, err := db.DB()
	require.NoError(t, err, "failed to get sql.DB")
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(
		&entities.CachedResponse{},
		&entities.PendingOrder{},
	)
	require.NoError(t, err, "failed to migrate tables")
	return db
}

// putSnapshot stores a GET snapshot with the given capture time.
func putSnapshot(t *testing.T, repo ResponseCacheRepository, partition, url string, capturedAt time.Time) {
	t.Helper()
	err := repo.Put(context.Background(), &entities.CachedResponse{
		Partition:   partition,
		Method:      http.MethodGet,
		URL:         url,
		Status:      http.StatusOK,
		ContentType: "text/plain",
		Body:        []byte("body of " + url),
		CapturedAt:  capturedAt,
	})
	require.NoError(t, err)
}

func TestResponseCacheRepository_PutAndMatchIn(t *testing.T) {
	db := setupCacheTestDB(t)
	repo := NewResponseCacheRepository(db)
	ctx := context.Background()

	snap := &entities.CachedResponse{
		Partition:   "static-v2026.4",
		Method:      http.MethodGet,
		URL:         "/index.html",
		Status:      http.StatusOK,
		ContentType: "text/html",
		Body:        []byte("<html></html>"),
		CapturedAt:  time.Now(),
	}
	snap.SetHeader(http.Header{"Cache-Control": {"no-cache"}})
	require.NoError(t, repo.Put(ctx, snap))

	got, err := repo.MatchIn(ctx, "static-v2026.4", http.MethodGet, "/index.html")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, got.Status)
	assert.Equal(t, "text/html", got.ContentType)
	assert.Equal(t, []byte("<html></html>"), got.Body)
	assert.Equal(t, "no-cache", got.Header().Get("Cache-Control"))
}

func TestResponseCacheRepository_PutOverwrites(t *testing.T) {
	db := setupCacheTestDB(t)
	repo := NewResponseCacheRepository(db)
	ctx := context.Background()

	first := &entities.CachedResponse{
		Partition:  "dynamic-v2026.4",
		Method:     http.MethodGet,
		URL:        "/products.json",
		Status:     http.StatusOK,
		Body:       []byte(`{"rev":1}`),
		CapturedAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, repo.Put(ctx, first))

	second := &entities.CachedResponse{
		Partition:  "dynamic-v2026.4",
		Method:     http.MethodGet,
		URL:        "/products.json",
		Status:     http.StatusOK,
		Body:       []byte(`{"rev":2}`),
		CapturedAt: time.Now(),
	}
	require.NoError(t, repo.Put(ctx, second))

	got, err := repo.MatchIn(ctx, "dynamic-v2026.4", http.MethodGet, "/products.json")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"rev":2}`), got.Body)

	count, err := repo.CountEntries(ctx, "dynamic-v2026.4")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestResponseCacheRepository_MatchIn_NoMatch(t *testing.T) {
	db := setupCacheTestDB(t)
	repo := NewResponseCacheRepository(db)

	_, err := repo.MatchIn(context.Background(), "static-v2026.4", http.MethodGet, "/missing")
	require.ErrorIs(t, err, ErrNoMatch)
}

func TestResponseCacheRepository_Match_PreferredPartitionWins(t *testing.T) {
	db := setupCacheTestDB(t)
	repo := NewResponseCacheRepository(db)
	ctx := context.Background()

	now := time.Now()
	// The dynamic copy is newer, but the static partition is preferred.
	putSnapshot(t, repo, "static-v2026.4", "/offline.html", now.Add(-time.Hour))
	putSnapshot(t, repo, "dynamic-v2026.4", "/offline.html", now)

	got, err := repo.Match(ctx, http.MethodGet, "/offline.html", "static-v2026.4")
	require.NoError(t, err)
	assert.Equal(t, "static-v2026.4", got.Partition)

	// Without a preference the most recent capture wins.
	got, err = repo.Match(ctx, http.MethodGet, "/offline.html")
	require.NoError(t, err)
	assert.Equal(t, "dynamic-v2026.4", got.Partition)
}

func TestResponseCacheRepository_Match_NoMatch(t *testing.T) {
	db := setupCacheTestDB(t)
	repo := NewResponseCacheRepository(db)

	_, err := repo.Match(context.Background(), http.MethodGet, "/nowhere", "static-v2026.4")
	require.ErrorIs(t, err, ErrNoMatch)
}

func TestResponseCacheRepository_PutAll(t *testing.T) {
	db := setupCacheTestDB(t)
	repo := NewResponseCacheRepository(db)
	ctx := context.Background()

	snaps := []entities.CachedResponse{
		{Partition: "static-v2026.4", Method: http.MethodGet, URL: "/", Status: http.StatusOK, CapturedAt: time.Now()},
		{Partition: "static-v2026.4", Method: http.MethodGet, URL: "/index.html", Status: http.StatusOK, CapturedAt: time.Now()},
		{Partition: "static-v2026.4", Method: http.MethodGet, URL: "/offline.html", Status: http.StatusOK, CapturedAt: time.Now()},
	}
	require.NoError(t, repo.PutAll(ctx, snaps))

	count, err := repo.CountEntries(ctx, "static-v2026.4")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestResponseCacheRepository_ListAndDeletePartitions(t *testing.T) {
	db := setupCacheTestDB(t)
	repo := NewResponseCacheRepository(db)
	ctx := context.Background()

	now := time.Now()
	putSnapshot(t, repo, "static-v1", "/a", now)
	putSnapshot(t, repo, "static-v2", "/a", now)
	putSnapshot(t, repo, "dynamic-v2", "/b", now)
	putSnapshot(t, repo, "images-v2", "/c.png", now)

	names, err := repo.ListPartitions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"dynamic-v2", "images-v2", "static-v1", "static-v2"}, names)

	deleted, err := repo.DeletePartition(ctx, "static-v1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	names, err = repo.ListPartitions(ctx)
	require.NoError(t, err)
	assert.NotContains(t, names, "static-v1")
}

func TestResponseCacheRepository_DeletePartitionsExcept(t *testing.T) {
	db := setupCacheTestDB(t)
	repo := NewResponseCacheRepository(db)
	ctx := context.Background()

	now := time.Now()
	putSnapshot(t, repo, "static-v1", "/a", now)
	putSnapshot(t, repo, "dynamic-v1", "/b", now)
	putSnapshot(t, repo, "static-v2", "/a", now)
	putSnapshot(t, repo, "dynamic-v2", "/b", now)

	deleted, err := repo.DeletePartitionsExcept(ctx, []string{"static-v2", "dynamic-v2"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"static-v1", "dynamic-v1"}, deleted)

	names, err := repo.ListPartitions(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"static-v2", "dynamic-v2"}, names)
}

func TestResponseCacheRepository_DeleteByPrefix(t *testing.T) {
	db := setupCacheTestDB(t)
	repo := NewResponseCacheRepository(db)
	ctx := context.Background()

	now := time.Now()
	putSnapshot(t, repo, "images-v1", "/a.png", now)
	putSnapshot(t, repo, "images-v2", "/b.png", now)
	putSnapshot(t, repo, "static-v2", "/c.css", now)

	deleted, err := repo.DeleteByPrefix(ctx, "images-")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	names, err := repo.ListPartitions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"static-v2"}, names)
}

func TestResponseCacheRepository_DeleteCapturedBefore(t *testing.T) {
	db := setupCacheTestDB(t)
	repo := NewResponseCacheRepository(db)
	ctx := context.Background()

	now := time.Now()
	// Eight days old: stale. Six days old: still fresh.
	putSnapshot(t, repo, "dynamic-v2", "/stale", now.Add(-8*24*time.Hour))
	putSnapshot(t, repo, "dynamic-v2", "/fresh", now.Add(-6*24*time.Hour))
	// Stale but in an exempt partition, so it survives.
	putSnapshot(t, repo, "static-v2", "/shell", now.Add(-8*24*time.Hour))

	cutoff := now.Add(-7 * 24 * time.Hour)
	deleted, err := repo.DeleteCapturedBefore(ctx, cutoff, []string{"static-v2"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.MatchIn(ctx, "dynamic-v2", http.MethodGet, "/stale")
	require.ErrorIs(t, err, ErrNoMatch)

	_, err = repo.MatchIn(ctx, "dynamic-v2", http.MethodGet, "/fresh")
	require.NoError(t, err)

	_, err = repo.MatchIn(ctx, "static-v2", http.MethodGet, "/shell")
	require.NoError(t, err)
}

func TestResponseCacheRepository_CountEntries(t *testing.T) {
	db := setupCacheTestDB(t)
	repo := NewResponseCacheRepository(db)
	ctx := context.Background()

	now := time.Now()
	putSnapshot(t, repo, "static-v2", "/a", now)
	putSnapshot(t, repo, "static-v2", "/b", now)
	putSnapshot(t, repo, "dynamic-v2", "/c", now)

	count, err := repo.CountEntries(ctx, "static-v2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	total, err := repo.CountEntries(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}
