package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"careercompass/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.WithContext(ctx).First(&doc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

// ListByKindAndIDs returns the documents of one content kind among ids.
func (r *DocumentRepository) ListByKindAndIDs(ctx context.Context, kind model.ContentType, ids []uint) ([]model.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var docs []model.Document
	if err := r.db.WithContext(ctx).Where("kind = ? AND id IN ?", kind, ids).Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents by ids failed: %w", err)
	}
	return docs, nil
}

// DocumentResolver resolves document references of a single content kind.
type DocumentResolver struct {
	repo *DocumentRepository
	kind model.ContentType
}

func NewDocumentResolver(repo *DocumentRepository, kind model.ContentType) *DocumentResolver {
	return &DocumentResolver{repo: repo, kind: kind}
}

func (r *DocumentResolver) Resolve(ctx context.Context, ids []uint) (map[uint]model.ContentProjection, error) {
	docs, err := r.repo.ListByKindAndIDs(ctx, r.kind, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[uint]model.ContentProjection, len(docs))
	for i := range docs {
		out[docs[i].ID] = docs[i].Projection()
	}
	return out, nil
}
