package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Abdallaheslam/ostaz-edge/internal/datastore/entities"
	"github.com/Abdallaheslam/ostaz-edge/internal/errors"
)

// responseCacheRepository implements ResponseCacheRepository.
type responseCacheRepository struct {
	db *gorm.DB
}

// NewResponseCacheRepository creates a new ResponseCacheRepository.
func NewResponseCacheRepository(db *gorm.DB) ResponseCacheRepository {
	return &responseCacheRepository{db: db}
}

// Put overwrites any existing entry for the same key inside one transaction
// so a reader never observes the key absent mid-replace.
func (r *responseCacheRepository) Put(ctx context.Context, snap *entities.CachedResponse) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("partition = ? AND method = ? AND url = ?",
			snap.Partition, snap.Method, snap.URL).Delete(&entities.CachedResponse{}).Error; err != nil {
			return err
		}
		snap.ID = 0
		return tx.Create(snap).Error
	})
	if err != nil {
		return errors.WithComponent(errors.ComponentDatastore,
			fmt.Errorf("failed to store response for %s %s: %w", snap.Method, snap.URL, err))
	}
	return nil
}

func (r *responseCacheRepository) PutAll(ctx context.Context, snaps []entities.CachedResponse) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range snaps {
			snap := &snaps[i]
			if err := tx.Where("partition = ? AND method = ? AND url = ?",
				snap.Partition, snap.Method, snap.URL).Delete(&entities.CachedResponse{}).Error; err != nil {
				return err
			}
			snap.ID = 0
			if err := tx.Create(snap).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.WithComponent(errors.ComponentDatastore,
			fmt.Errorf("failed to store %d responses: %w", len(snaps), err))
	}
	return nil
}

func (r *responseCacheRepository) Match(ctx context.Context, method, url string, preferred ...string) (*entities.CachedResponse, error) {
	var matches []entities.CachedResponse
	if err := r.db.WithContext(ctx).
		Where("method = ? AND url = ?", method, url).
		Order("captured_at DESC").
		Find(&matches).Error; err != nil {
		return nil, errors.WithComponent(errors.ComponentDatastore,
			fmt.Errorf("failed to match %s %s: %w", method, url, err))
	}
	if len(matches) == 0 {
		return nil, ErrNoMatch
	}
	for _, p := range preferred {
		for i := range matches {
			if matches[i].Partition == p {
				return &matches[i], nil
			}
		}
	}
	// Most recently captured wins.
	return &matches[0], nil
}

func (r *responseCacheRepository) MatchIn(ctx context.Context, partition, method, url string) (*entities.CachedResponse, error) {
	var snap entities.CachedResponse
	err := r.db.WithContext(ctx).
		Where("partition = ? AND method = ? AND url = ?", partition, method, url).
		First(&snap).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoMatch
		}
		return nil, errors.WithComponent(errors.ComponentDatastore,
			fmt.Errorf("failed to match %s %s in %s: %w", method, url, partition, err))
	}
	return &snap, nil
}

func (r *responseCacheRepository) ListPartitions(ctx context.Context) ([]string, error) {
	var names []string
	if err := r.db.WithContext(ctx).
		Model(&entities.CachedResponse{}).
		Distinct("partition").
		Order("partition ASC").
		Pluck("partition", &names).Error; err != nil {
		return nil, errors.WithComponent(errors.ComponentDatastore,
			fmt.Errorf("failed to list partitions: %w", err))
	}
	return names, nil
}

func (r *responseCacheRepository) DeletePartition(ctx context.Context, name string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("partition = ?", name).
		Delete(&entities.CachedResponse{})
	if result.Error != nil {
		return 0, errors.WithComponent(errors.ComponentDatastore,
			fmt.Errorf("failed to delete partition %s: %w", name, result.Error))
	}
	return result.RowsAffected, nil
}

func (r *responseCacheRepository) DeletePartitionsExcept(ctx context.Context, keep []string) ([]string, error) {
	existing, err := r.ListPartitions(ctx)
	if err != nil {
		return nil, err
	}

	keepSet := make(map[string]struct{}, len(keep))
	for _, k := range keep {
		keepSet[k] = struct{}{}
	}

	var deleted []string
	for _, name := range existing {
		if _, ok := keepSet[name]; ok {
			continue
		}
		if _, err := r.DeletePartition(ctx, name); err != nil {
			return deleted, err
		}
		deleted = append(deleted, name)
	}
	return deleted, nil
}

func (r *responseCacheRepository) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("partition LIKE ?", prefix+"%").
		Delete(&entities.CachedResponse{})
	if result.Error != nil {
		return 0, errors.WithComponent(errors.ComponentDatastore,
			fmt.Errorf("failed to delete partitions with prefix %s: %w", prefix, result.Error))
	}
	return result.RowsAffected, nil
}

func (r *responseCacheRepository) DeleteCapturedBefore(ctx context.Context, cutoff time.Time, exempt []string) (int64, error) {
	query := r.db.WithContext(ctx).Where("captured_at < ?", cutoff)
	if len(exempt) > 0 {
		query = query.Where("partition NOT IN ?", exempt)
	}
	result := query.Delete(&entities.CachedResponse{})
	if result.Error != nil {
		return 0, errors.WithComponent(errors.ComponentDatastore,
			fmt.Errorf("failed to evict entries before %v: %w", cutoff, result.Error))
	}
	return result.RowsAffected, nil
}

func (r *responseCacheRepository) CountEntries(ctx context.Context, partition string) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&entities.CachedResponse{})
	if partition != "" {
		query = query.Where("partition = ?", partition)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, errors.WithComponent(errors.ComponentDatastore,
			fmt.Errorf("failed to count entries: %w", err))
	}
	return count, nil
}
