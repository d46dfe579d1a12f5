package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"careercompass/internal/ai"
	"careercompass/internal/model"
	"careercompass/internal/pkg/textstats"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 100
	embeddingBatchSize  = 10 // providers commonly cap the batch size
)

// EmbeddingClient produces vectors for chunk text.
type EmbeddingClient interface {
	EmbedBatch(ctx context.Context, cfg ai.EmbeddingConfig, texts []string) ([][]float64, error)
}

type IngestConfig struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
}

type IngestService struct {
	embeddings *EmbeddingService
	client     EmbeddingClient
	embConfig  ai.EmbeddingConfig
	cfg        IngestConfig
}

func NewIngestService(embeddings *EmbeddingService, client EmbeddingClient, embConfig ai.EmbeddingConfig, cfg IngestConfig) *IngestService {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = defaultChunkOverlap
		if cfg.ChunkOverlap >= cfg.ChunkSize {
			cfg.ChunkOverlap = cfg.ChunkSize / 2
		}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = embeddingBatchSize
	}
	return &IngestService{
		embeddings: embeddings,
		client:     client,
		embConfig:  embConfig,
		cfg:        cfg,
	}
}

// IngestInput is a long piece of content to split, embed and store.
// An empty ContentID gets a generated one.
type IngestInput struct {
	ContentID     string            `json:"content_id"`
	ContentType   model.ContentType `json:"content_type"`
	DocumentRefID uint              `json:"document_ref_id"`
	UserID        uint              `json:"user_id"`
	Title         string            `json:"title"`
	Text          string            `json:"text"`
	Keywords      []string          `json:"keywords,omitempty"`
	Language      string            `json:"language,omitempty"`
	Tags          []string          `json:"tags,omitempty"`
	ExpiresAt     *time.Time        `json:"expires_at,omitempty"`
}

type IngestResult struct {
	ContentID  string       `json:"content_id"`
	ChunkCount int          `json:"chunk_count"`
	Batch      *BatchResult `json:"batch"`
}

// IngestText chunks the text, embeds each chunk, and batch-creates one record per chunk.
func (s *IngestService) IngestText(ctx context.Context, input IngestInput) (*IngestResult, error) {
	if s.client == nil {
		return nil, fmt.Errorf("%w: embedding client is not configured", ErrInvalidInput)
	}
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: text is required", ErrInvalidInput)
	}
	if !input.ContentType.Valid() {
		return nil, fmt.Errorf("%w: unknown content_type %q", ErrValidation, input.ContentType)
	}
	baseID := strings.TrimSpace(input.ContentID)
	if baseID == "" {
		baseID = uuid.NewString()
	}

	chunks := textstats.Split(text, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	if len(chunks) == 0 {
		return nil, ErrInvalidInput
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}

	// Embed in batches to stay under provider limits.
	var vectors [][]float64
	for i := 0; i < len(texts); i += s.cfg.BatchSize {
		end := i + s.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batched, err := s.client.EmbedBatch(ctx, s.embConfig, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d..%d failed: %w", i, end-1, err)
		}
		vectors = append(vectors, batched...)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(chunks))
	}

	inputs := make([]CreateInput, len(chunks))
	for i, chunk := range chunks {
		overlap := 0
		if i > 0 {
			overlap = chunks[i-1].End - chunk.Start
		}
		inputs[i] = CreateInput{
			ContentID:     chunkContentID(baseID, i, len(chunks)),
			ContentType:   input.ContentType,
			DocumentRefID: input.DocumentRefID,
			UserID:        input.UserID,
			Text:          chunk.Text,
			Title:         input.Title,
			Keywords:      input.Keywords,
			Language:      input.Language,
			Vector:        vectors[i],
			Model:         s.embConfig.Model,
			Chunk: &model.ChunkInfo{
				Index:         i,
				Total:         len(chunks),
				StartPosition: chunk.Start,
				EndPosition:   chunk.End,
				Overlap:       overlap,
			},
			Search:    SearchMetadataInput{Tags: input.Tags},
			ExpiresAt: input.ExpiresAt,
		}
	}

	batch, err := s.embeddings.BatchCreate(ctx, inputs)
	if err != nil {
		return nil, err
	}
	return &IngestResult{
		ContentID:  baseID,
		ChunkCount: len(chunks),
		Batch:      batch,
	}, nil
}

// chunkContentID keeps single-chunk content under its own id.
func chunkContentID(base string, index, total int) string {
	if total == 1 {
		return base
	}
	return fmt.Sprintf("%s#%d", base, index)
}
