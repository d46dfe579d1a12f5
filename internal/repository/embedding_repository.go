package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"careercompass/internal/model"
)

var ErrDuplicateContent = errors.New("embedding for content already exists")

type EmbeddingRepository struct {
	db *gorm.DB
}

func NewEmbeddingRepository(db *gorm.DB) *EmbeddingRepository {
	return &EmbeddingRepository{db: db}
}

// CandidateFilter narrows the rows a similarity scan reads.
type CandidateFilter struct {
	ContentTypes []model.ContentType
	UserID       uint // 0 = any owner
	ExcludeIDs   []uint
}

// StaleFilter selects records for retention cleanup.
type StaleFilter struct {
	Status model.Status
	Before time.Time
	UserID uint // 0 = any owner
}

func (r *EmbeddingRepository) Create(ctx context.Context, record *model.EmbeddingRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s/%s", ErrDuplicateContent, record.ContentType, record.ContentID)
		}
		return fmt.Errorf("create embedding failed: %w", err)
	}
	return nil
}

// Save writes every column, running the model hooks that refresh derived fields.
func (r *EmbeddingRepository) Save(ctx context.Context, record *model.EmbeddingRecord) error {
	if err := r.db.WithContext(ctx).Save(record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s/%s", ErrDuplicateContent, record.ContentType, record.ContentID)
		}
		return fmt.Errorf("save embedding failed: %w", err)
	}
	return nil
}

func (r *EmbeddingRepository) GetByID(ctx context.Context, id uint) (*model.EmbeddingRecord, error) {
	var record model.EmbeddingRecord
	if err := r.db.WithContext(ctx).First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get embedding failed: %w", err)
	}
	return &record, nil
}

// FindCandidates returns active records matching filter in insertion order.
// A limit <= 0 reads every match.
func (r *EmbeddingRepository) FindCandidates(ctx context.Context, filter CandidateFilter, limit int) ([]model.EmbeddingRecord, error) {
	q := r.db.WithContext(ctx).Where("status = ?", model.StatusActive)
	if len(filter.ContentTypes) > 0 {
		q = q.Where("content_type IN ?", filter.ContentTypes)
	}
	if filter.UserID != 0 {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if len(filter.ExcludeIDs) > 0 {
		q = q.Where("id NOT IN ?", filter.ExcludeIDs)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var records []model.EmbeddingRecord
	if err := q.Order("id ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("find embedding candidates failed: %w", err)
	}
	return records, nil
}

// TouchAccess bumps access tracking columns without running hooks.
func (r *EmbeddingRepository) TouchAccess(ctx context.Context, ids []uint, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&model.EmbeddingRecord{}).
		Where("id IN ?", ids).
		UpdateColumns(map[string]interface{}{
			"search_last_accessed": at,
			"search_access_count":  gorm.Expr("search_access_count + ?", 1),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("track embedding access failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *EmbeddingRepository) UpdateStatus(ctx context.Context, id uint, status model.Status, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.EmbeddingRecord{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"status":     status,
			"updated_at": at,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("update embedding status failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *EmbeddingRepository) CountStale(ctx context.Context, filter StaleFilter) (int64, error) {
	var count int64
	if err := r.staleQuery(ctx, filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count stale embeddings failed: %w", err)
	}
	return count, nil
}

func (r *EmbeddingRepository) DeleteStale(ctx context.Context, filter StaleFilter) (int64, error) {
	res := r.staleQuery(ctx, filter).Delete(&model.EmbeddingRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete stale embeddings failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteExpired removes every record whose expires_at has passed.
func (r *EmbeddingRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Delete(&model.EmbeddingRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete expired embeddings failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *EmbeddingRepository) staleQuery(ctx context.Context, filter StaleFilter) *gorm.DB {
	q := r.db.WithContext(ctx).
		Model(&model.EmbeddingRecord{}).
		Where("status = ? AND updated_at < ?", filter.Status, filter.Before)
	if filter.UserID != 0 {
		q = q.Where("user_id = ?", filter.UserID)
	}
	return q
}
