package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"careercompass/internal/ai"
	"careercompass/internal/model"
	"careercompass/internal/pkg/vecmath"
	"careercompass/internal/repository"
)

const (
	defaultSearchLimit    = 10
	defaultMinSimilarity  = 0.7
	candidateOverfetch    = 2
	contextCheckInterval  = 256
	defaultSearchTimeout  = 5 * time.Second
	defaultMaxSearchLimit = 100
)

// ContentResolver loads content projections for document references of one content type.
type ContentResolver interface {
	Resolve(ctx context.Context, ids []uint) (map[uint]model.ContentProjection, error)
}

// ResultCache stores ranked results under a fingerprint of the query. Get
// reports the store generation it read; Set writes under that generation.
type ResultCache interface {
	Get(ctx context.Context, fingerprint string, dest interface{}) (int64, bool, error)
	Set(ctx context.Context, gen int64, fingerprint string, value interface{}) error
}

// QueryEmbedder turns query text into a vector.
type QueryEmbedder interface {
	Embed(ctx context.Context, cfg ai.EmbeddingConfig, text string) ([]float64, error)
}

type SearchConfig struct {
	MaxLimit int
	Timeout  time.Duration
	FullScan bool
}

type SearchService struct {
	repo      *repository.EmbeddingRepository
	resolvers map[model.ContentType]ContentResolver
	cache     ResultCache
	embedder  QueryEmbedder
	embConfig ai.EmbeddingConfig
	cfg       SearchConfig
}

func NewSearchService(
	repo *repository.EmbeddingRepository,
	resolvers map[model.ContentType]ContentResolver,
	cache ResultCache,
	embedder QueryEmbedder,
	embConfig ai.EmbeddingConfig,
	cfg SearchConfig,
) *SearchService {
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = defaultMaxSearchLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSearchTimeout
	}
	if resolvers == nil {
		resolvers = map[model.ContentType]ContentResolver{}
	}
	return &SearchService{
		repo:      repo,
		resolvers: resolvers,
		cache:     cache,
		embedder:  embedder,
		embConfig: embConfig,
		cfg:       cfg,
	}
}

// SearchOptions filters and ranks a similarity query. Start from
// DefaultSearchOptions; a zero MinSimilarity is a real threshold.
type SearchOptions struct {
	ContentTypes   []model.ContentType `json:"content_types,omitempty"`
	UserID         uint                `json:"user_id,omitempty"`
	Limit          int                 `json:"limit"`
	MinSimilarity  float64             `json:"min_similarity"`
	ExcludeIDs     []uint              `json:"exclude_ids,omitempty"`
	IncludeContent bool                `json:"include_content"`
	// FullScan reads every filtered candidate instead of the first 2*Limit.
	FullScan bool `json:"full_scan"`
}

func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		Limit:         defaultSearchLimit,
		MinSimilarity: defaultMinSimilarity,
	}
}

type SearchHit struct {
	Record     model.EmbeddingRecord    `json:"record"`
	Similarity float64                  `json:"similarity"`
	Content    *model.ContentProjection `json:"content,omitempty"`
}

type SearchResult struct {
	Hits []SearchHit `json:"hits"`
	// Scanned is the number of candidates scored; Skipped counts candidates
	// whose dimensions differ from the query.
	Scanned int `json:"scanned"`
	Skipped int `json:"skipped"`
}

// FindSimilar scores a bounded set of active candidates by cosine similarity
// and returns those at or above MinSimilarity, best first, capped at Limit.
func (s *SearchService) FindSimilar(ctx context.Context, query []float64, opts SearchOptions) (*SearchResult, error) {
	opts, err := s.normalize(query, opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var (
		fingerprint string
		gen         int64
		cacheable   bool
	)
	if s.cache != nil {
		fingerprint = searchFingerprint(query, opts)
		var cached SearchResult
		var hit bool
		gen, hit, err = s.cache.Get(ctx, fingerprint, &cached)
		switch {
		case err != nil:
			log.Printf("search cache get failed: %v", err)
		case hit:
			return &cached, nil
		default:
			cacheable = true
		}
	}

	fetchLimit := opts.Limit * candidateOverfetch
	if opts.FullScan {
		fetchLimit = 0
	}
	candidates, err := s.repo.FindCandidates(ctx, repository.CandidateFilter{
		ContentTypes: opts.ContentTypes,
		UserID:       opts.UserID,
		ExcludeIDs:   opts.ExcludeIDs,
	}, fetchLimit)
	if err != nil {
		return nil, err
	}

	result := &SearchResult{Hits: make([]SearchHit, 0, opts.Limit)}
	for i := range candidates {
		if i%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("similarity scan aborted: %w", err)
			}
		}
		similarity, err := vecmath.Cosine(query, candidates[i].Vector)
		if err != nil {
			var dimErr *vecmath.DimensionMismatchError
			if errors.As(err, &dimErr) {
				result.Skipped++
				continue
			}
			return nil, err
		}
		result.Scanned++
		if !(similarity >= opts.MinSimilarity) {
			continue
		}
		result.Hits = append(result.Hits, SearchHit{Record: candidates[i], Similarity: similarity})
	}

	rankHits(result.Hits)
	if len(result.Hits) > opts.Limit {
		result.Hits = result.Hits[:opts.Limit]
	}

	if opts.IncludeContent {
		if err := s.attachContent(ctx, result.Hits); err != nil {
			return nil, err
		}
	}

	if cacheable {
		if err := s.cache.Set(ctx, gen, fingerprint, result); err != nil {
			log.Printf("search cache set failed: %v", err)
		}
	}
	return result, nil
}

// FindSimilarText embeds text with the configured model, then runs FindSimilar.
func (s *SearchService) FindSimilarText(ctx context.Context, text string, opts SearchOptions) (*SearchResult, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: text queries are not enabled", ErrInvalidInput)
	}
	vec, err := s.embedder.Embed(ctx, s.embConfig, text)
	if err != nil {
		return nil, fmt.Errorf("embed query failed: %w", err)
	}
	return s.FindSimilar(ctx, vec, opts)
}

func (s *SearchService) normalize(query []float64, opts SearchOptions) (SearchOptions, error) {
	if len(query) == 0 || len(query) > model.MaxDimensions {
		return opts, fmt.Errorf("%w: query vector must have 1..%d dimensions", ErrValidation, model.MaxDimensions)
	}
	if !vecmath.Finite(query) {
		return opts, fmt.Errorf("%w: query vector must not contain NaN or Inf", ErrValidation)
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultSearchLimit
	}
	if opts.Limit > s.cfg.MaxLimit {
		opts.Limit = s.cfg.MaxLimit
	}
	if !(opts.MinSimilarity >= -1 && opts.MinSimilarity <= 1) {
		return opts, fmt.Errorf("%w: min_similarity must be within [-1, 1]", ErrValidation)
	}
	for _, t := range opts.ContentTypes {
		if !t.Valid() {
			return opts, fmt.Errorf("%w: unknown content_type %q", ErrValidation, t)
		}
	}
	if s.cfg.FullScan {
		opts.FullScan = true
	}
	return opts, nil
}

// rankHits orders by similarity descending, then content id and id ascending.
func rankHits(hits []SearchHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		if hits[i].Record.ContentID != hits[j].Record.ContentID {
			return hits[i].Record.ContentID < hits[j].Record.ContentID
		}
		return hits[i].Record.ID < hits[j].Record.ID
	})
}

// attachContent resolves document references once per content type, after ranking.
func (s *SearchService) attachContent(ctx context.Context, hits []SearchHit) error {
	byType := make(map[model.ContentType][]uint)
	for i := range hits {
		ref := hits[i].Record.DocumentRef()
		if ref.ID == 0 {
			continue
		}
		byType[ref.Type] = append(byType[ref.Type], ref.ID)
	}

	resolved := make(map[model.DocumentRef]model.ContentProjection)
	for contentType, ids := range byType {
		resolver, ok := s.resolvers[contentType]
		if !ok {
			log.Printf("no content resolver registered for %s", contentType)
			continue
		}
		projections, err := resolver.Resolve(ctx, ids)
		if err != nil {
			return fmt.Errorf("resolve %s content failed: %w", contentType, err)
		}
		for id, projection := range projections {
			resolved[model.DocumentRef{Type: contentType, ID: id}] = projection
		}
	}

	for i := range hits {
		if projection, ok := resolved[hits[i].Record.DocumentRef()]; ok {
			p := projection
			hits[i].Content = &p
		}
	}
	return nil
}

func searchFingerprint(query []float64, opts SearchOptions) string {
	payload, _ := json.Marshal(struct {
		Query []float64     `json:"q"`
		Opts  SearchOptions `json:"o"`
	}{Query: query, Opts: opts})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
