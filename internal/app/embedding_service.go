package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"careercompass/internal/model"
	"careercompass/internal/pkg/vecmath"
	"careercompass/internal/repository"
)

const defaultCleanupDays = 90

// Invalidator is told whenever stored vectors or their visibility change.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type EmbeddingService struct {
	repo        *repository.EmbeddingRepository
	invalidator Invalidator
	now         func() time.Time
}

func NewEmbeddingService(repo *repository.EmbeddingRepository, invalidator Invalidator) *EmbeddingService {
	return &EmbeddingService{
		repo:        repo,
		invalidator: invalidator,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SemanticsInput carries optional analysis results for a record.
type SemanticsInput struct {
	Topics     []string
	Entities   []string
	Categories []string
	Sentiment  model.Sentiment
	Confidence float64
}

// SearchMetadataInput overrides the search defaults (boost 1.0, no tags, medium priority).
type SearchMetadataInput struct {
	Boost    *float64
	Tags     []string
	Priority model.Priority
}

// CreateInput is the content snapshot and vector for a new record.
type CreateInput struct {
	ContentID     string
	ContentType   model.ContentType
	DocumentRefID uint
	UserID        uint

	Text     string
	Title    string
	Summary  string
	Keywords []string
	Language string

	Vector []float64
	Model  string

	Chunk            *model.ChunkInfo // nil = single chunk {0, 1}
	Semantics        SemanticsInput
	Search           SearchMetadataInput
	ReadabilityScore float64
	ExpiresAt        *time.Time
}

// BatchItemResult reports the outcome of one BatchCreate input, by position.
type BatchItemResult struct {
	Index  int                    `json:"index"`
	Record *model.EmbeddingRecord `json:"record,omitempty"`
	Err    error                  `json:"-"`
	Error  string                 `json:"error,omitempty"`
}

type BatchResult struct {
	Items     []BatchItemResult `json:"items"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

func (s *EmbeddingService) Create(ctx context.Context, input CreateInput) (*model.EmbeddingRecord, error) {
	record, err := s.create(ctx, input)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return record, nil
}

// BatchCreate inserts each input independently; one failure never stops the rest.
func (s *EmbeddingService) BatchCreate(ctx context.Context, inputs []CreateInput) (*BatchResult, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrInvalidInput)
	}

	result := &BatchResult{Items: make([]BatchItemResult, len(inputs))}
	for i := range inputs {
		item := BatchItemResult{Index: i}
		record, err := s.create(ctx, inputs[i])
		if err != nil {
			item.Err = err
			item.Error = err.Error()
			result.Failed++
		} else {
			item.Record = record
			result.Succeeded++
		}
		result.Items[i] = item
	}
	if result.Succeeded > 0 {
		s.invalidate(ctx)
	}
	return result, nil
}

func (s *EmbeddingService) create(ctx context.Context, input CreateInput) (*model.EmbeddingRecord, error) {
	now := s.now()
	record := &model.EmbeddingRecord{
		ContentID:     strings.TrimSpace(input.ContentID),
		ContentType:   input.ContentType,
		DocumentRefID: input.DocumentRefID,
		UserID:        input.UserID,
		Title:         input.Title,
		Summary:       input.Summary,
		Keywords:      nonNil(input.Keywords),
		Language:      input.Language,
		Model:         input.Model,
		EmbeddedAt:    now,
		Chunk:         model.ChunkInfo{Index: 0, Total: 1},
		Semantics: model.Semantics{
			Topics:     nonNil(input.Semantics.Topics),
			Entities:   nonNil(input.Semantics.Entities),
			Categories: nonNil(input.Semantics.Categories),
			Sentiment:  input.Semantics.Sentiment,
			Confidence: input.Semantics.Confidence,
		},
		Search: model.SearchMetadata{
			Boost:    model.DefaultBoost,
			Tags:     nonNil(input.Search.Tags),
			Priority: model.PriorityMedium,
		},
		Quality:   model.Quality{ReadabilityScore: input.ReadabilityScore},
		Version:   1,
		Status:    model.StatusActive,
		ExpiresAt: input.ExpiresAt,
	}
	if record.Language == "" {
		record.Language = model.DefaultLanguage
	}
	if record.Model == "" {
		record.Model = model.DefaultModel
	}
	if input.Chunk != nil {
		record.Chunk = *input.Chunk
	}
	if input.Search.Boost != nil {
		record.Search.Boost = *input.Search.Boost
	}
	if input.Search.Priority != "" {
		record.Search.Priority = input.Search.Priority
	}
	record.SetText(input.Text)
	record.SetVector(append([]float64(nil), input.Vector...))

	if err := validateRecord(record); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, record); err != nil {
		if errors.Is(err, repository.ErrDuplicateContent) {
			return nil, fmt.Errorf("%w: %s/%s", ErrConflict, record.ContentType, record.ContentID)
		}
		return nil, err
	}
	return record, nil
}

func (s *EmbeddingService) Get(ctx context.Context, id uint) (*model.EmbeddingRecord, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return record, nil
}

// UpdatePatch lists the fields to change; nil leaves a field untouched.
type UpdatePatch struct {
	Text      *string
	Title     *string
	Summary   *string
	Keywords  *[]string
	Vector    *[]float64
	Model     *string
	Boost     *float64
	Tags      *[]string
	Priority  *model.Priority
	Status    *model.Status
	Chunk     *model.ChunkInfo
	Semantics *SemanticsInput
	ExpiresAt *time.Time
}

// Update applies patch. Changing text refreshes the quality metrics and
// changing the vector refreshes dimensions; either one bumps the version.
func (s *EmbeddingService) Update(ctx context.Context, id uint, patch UpdatePatch) (*model.EmbeddingRecord, error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	contentChanged := false
	if patch.Text != nil {
		record.SetText(*patch.Text)
		contentChanged = true
	}
	if patch.Vector != nil {
		record.SetVector(append([]float64(nil), (*patch.Vector)...))
		record.EmbeddedAt = s.now()
		contentChanged = true
	}
	if patch.Title != nil {
		record.Title = *patch.Title
	}
	if patch.Summary != nil {
		record.Summary = *patch.Summary
	}
	if patch.Keywords != nil {
		record.Keywords = nonNil(*patch.Keywords)
	}
	if patch.Model != nil {
		record.Model = *patch.Model
	}
	if patch.Boost != nil {
		record.Search.Boost = *patch.Boost
	}
	if patch.Tags != nil {
		record.Search.Tags = nonNil(*patch.Tags)
	}
	if patch.Priority != nil {
		record.Search.Priority = *patch.Priority
	}
	if patch.Status != nil {
		record.Status = *patch.Status
	}
	if patch.Chunk != nil {
		record.Chunk = *patch.Chunk
	}
	if patch.Semantics != nil {
		record.Semantics = model.Semantics{
			Topics:     nonNil(patch.Semantics.Topics),
			Entities:   nonNil(patch.Semantics.Entities),
			Categories: nonNil(patch.Semantics.Categories),
			Sentiment:  patch.Semantics.Sentiment,
			Confidence: patch.Semantics.Confidence,
		}
	}
	if patch.ExpiresAt != nil {
		expiresAt := *patch.ExpiresAt
		record.ExpiresAt = &expiresAt
	}
	if contentChanged {
		record.Version++
	}

	if err := validateRecord(record); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, record); err != nil {
		if errors.Is(err, repository.ErrDuplicateContent) {
			return nil, fmt.Errorf("%w: %s/%s", ErrConflict, record.ContentType, record.ContentID)
		}
		return nil, err
	}
	s.invalidate(ctx)
	return record, nil
}

// TrackAccess records that ids were surfaced to a user. It skips validation
// and hooks so the read path stays a single column update.
func (s *EmbeddingService) TrackAccess(ctx context.Context, ids ...uint) (int64, error) {
	unique := make([]uint, 0, len(ids))
	seen := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return s.repo.TouchAccess(ctx, unique, s.now())
}

func (s *EmbeddingService) MarkOutdated(ctx context.Context, id uint) error {
	if id == 0 {
		return ErrInvalidInput
	}
	n, err := s.repo.UpdateStatus(ctx, id, model.StatusOutdated, s.now())
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	s.invalidate(ctx)
	return nil
}

// CleanupOptions selects records for deletion by status and age of last update.
// A non-zero UserID limits the sweep to that owner.
type CleanupOptions struct {
	OlderThanDays int
	Status        model.Status
	UserID        uint
	DryRun        bool
}

func DefaultCleanupOptions() CleanupOptions {
	return CleanupOptions{
		OlderThanDays: defaultCleanupDays,
		Status:        model.StatusOutdated,
	}
}

type CleanupResult struct {
	DryRun  bool      `json:"dry_run"`
	Matched int64     `json:"matched"`
	Deleted int64     `json:"deleted"`
	Cutoff  time.Time `json:"cutoff"`
}

// Cleanup deletes, or with DryRun only counts, records whose status matches
// and whose last update is older than the retention window.
func (s *EmbeddingService) Cleanup(ctx context.Context, opts CleanupOptions) (*CleanupResult, error) {
	if opts.OlderThanDays < 0 {
		return nil, fmt.Errorf("%w: older_than_days must not be negative", ErrValidation)
	}
	if opts.Status == "" {
		opts.Status = model.StatusOutdated
	}
	if !opts.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, opts.Status)
	}

	cutoff := s.now().AddDate(0, 0, -opts.OlderThanDays)
	result := &CleanupResult{DryRun: opts.DryRun, Cutoff: cutoff}
	filter := repository.StaleFilter{Status: opts.Status, Before: cutoff, UserID: opts.UserID}
	if opts.DryRun {
		count, err := s.repo.CountStale(ctx, filter)
		if err != nil {
			return nil, err
		}
		result.Matched = count
		return result, nil
	}

	deleted, err := s.repo.DeleteStale(ctx, filter)
	if err != nil {
		return nil, err
	}
	result.Matched = deleted
	result.Deleted = deleted
	if deleted > 0 {
		log.Printf("cleanup removed %d %s embeddings older than %s", deleted, opts.Status, cutoff.Format(time.RFC3339))
		s.invalidate(ctx)
	}
	return result, nil
}

// SweepExpired deletes every record whose expires_at has passed.
func (s *EmbeddingService) SweepExpired(ctx context.Context) (int64, error) {
	deleted, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.invalidate(ctx)
	}
	return deleted, nil
}

func (s *EmbeddingService) invalidate(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx); err != nil {
		log.Printf("invalidate search cache failed: %v", err)
	}
}

func validateRecord(r *model.EmbeddingRecord) error {
	switch {
	case r.ContentID == "":
		return fmt.Errorf("%w: content_id is required", ErrValidation)
	case !r.ContentType.Valid():
		return fmt.Errorf("%w: unknown content_type %q", ErrValidation, r.ContentType)
	case strings.TrimSpace(r.Text) == "":
		return fmt.Errorf("%w: text is required", ErrValidation)
	case utf8.RuneCountInString(r.Text) > model.MaxTextLength:
		return fmt.Errorf("%w: text exceeds %d characters", ErrValidation, model.MaxTextLength)
	case len(r.Vector) == 0:
		return fmt.Errorf("%w: vector is empty", ErrValidation)
	case len(r.Vector) > model.MaxDimensions:
		return fmt.Errorf("%w: vector has %d dimensions, max %d", ErrValidation, len(r.Vector), model.MaxDimensions)
	case !vecmath.Finite(r.Vector):
		return fmt.Errorf("%w: vector must not contain NaN or Inf", ErrValidation)
	case r.Dimensions != len(r.Vector):
		return fmt.Errorf("%w: dimensions %d do not match vector length %d", ErrValidation, r.Dimensions, len(r.Vector))
	case r.Chunk.Total < 1 || r.Chunk.Index < 0 || r.Chunk.Index >= r.Chunk.Total:
		return fmt.Errorf("%w: chunk index %d out of range for total %d", ErrValidation, r.Chunk.Index, r.Chunk.Total)
	case !(r.Search.Boost >= 0 && r.Search.Boost <= model.MaxBoost):
		return fmt.Errorf("%w: boost must be within [0, %v]", ErrValidation, model.MaxBoost)
	case !r.Search.Priority.Valid():
		return fmt.Errorf("%w: unknown priority %q", ErrValidation, r.Search.Priority)
	case !r.Semantics.Sentiment.Valid():
		return fmt.Errorf("%w: unknown sentiment %q", ErrValidation, r.Semantics.Sentiment)
	case !(r.Semantics.Confidence >= 0 && r.Semantics.Confidence <= 1):
		return fmt.Errorf("%w: confidence must be within [0, 1]", ErrValidation)
	case r.Search.AccessCount < 0:
		return fmt.Errorf("%w: access_count must not be negative", ErrValidation)
	case !r.Status.Valid():
		return fmt.Errorf("%w: unknown status %q", ErrValidation, r.Status)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
