package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"careercompass/internal/app"
	"careercompass/internal/model"
	"careercompass/internal/transport/http/response"
)

type AccessRecorder interface {
	RecordAccess(ctx context.Context, ids []uint)
}

// SearchDefaults fill request fields the caller leaves out.
type SearchDefaults struct {
	Limit         int
	MinSimilarity float64
}

type SearchHandler struct {
	search   *app.SearchService
	access   AccessRecorder
	defaults SearchDefaults
}

type SearchRequest struct {
	Vector         []float64           `json:"vector"`
	Text           string              `json:"text"`
	ContentTypes   []model.ContentType `json:"content_types"`
	Limit          *int                `json:"limit"`
	MinSimilarity  *float64            `json:"min_similarity"`
	ExcludeIDs     []uint              `json:"exclude_ids"`
	IncludeContent bool                `json:"include_content"`
	FullScan       bool                `json:"full_scan"`
	// SkipAccessTracking keeps the hits from counting as surfaced to the user.
	SkipAccessTracking bool `json:"skip_access_tracking"`
}

type SearchHitResponse struct {
	ID          uint                     `json:"id"`
	ContentID   string                   `json:"content_id"`
	ContentType model.ContentType        `json:"content_type"`
	DocumentRef model.DocumentRef        `json:"document_ref"`
	UserID      uint                     `json:"user_id"`
	Title       string                   `json:"title,omitempty"`
	Summary     string                   `json:"summary,omitempty"`
	Text        string                   `json:"text"`
	Chunk       model.ChunkInfo          `json:"chunk"`
	Tags        []string                 `json:"tags"`
	Similarity  float64                  `json:"similarity"`
	Content     *model.ContentProjection `json:"content,omitempty"`
}

type SearchResponse struct {
	Hits    []SearchHitResponse `json:"hits"`
	Scanned int                 `json:"scanned"`
	Skipped int                 `json:"skipped"`
}

func NewSearchHandler(search *app.SearchService, access AccessRecorder, defaults SearchDefaults) *SearchHandler {
	return &SearchHandler{search: search, access: access, defaults: defaults}
}

// Search scores only the caller's own records, the same ownership rule the
// record endpoints apply.
func (h *SearchHandler) Search(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	text := strings.TrimSpace(req.Text)
	if len(req.Vector) == 0 && text == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "vector or text is required")
		return
	}

	opts := app.SearchOptions{
		ContentTypes:   req.ContentTypes,
		UserID:         userID,
		Limit:          h.defaults.Limit,
		MinSimilarity:  h.defaults.MinSimilarity,
		ExcludeIDs:     req.ExcludeIDs,
		IncludeContent: req.IncludeContent,
		FullScan:       req.FullScan,
	}
	if req.Limit != nil {
		opts.Limit = *req.Limit
	}
	if req.MinSimilarity != nil {
		opts.MinSimilarity = *req.MinSimilarity
	}

	var (
		result *app.SearchResult
		err    error
	)
	if len(req.Vector) > 0 {
		result, err = h.search.FindSimilar(c.Request.Context(), req.Vector, opts)
	} else {
		result, err = h.search.FindSimilarText(c.Request.Context(), text, opts)
	}
	if err != nil {
		writeServiceError(c, err, "search failed")
		return
	}

	resp := SearchResponse{
		Hits:    make([]SearchHitResponse, len(result.Hits)),
		Scanned: result.Scanned,
		Skipped: result.Skipped,
	}
	ids := make([]uint, len(result.Hits))
	for i, hit := range result.Hits {
		rec := hit.Record
		resp.Hits[i] = SearchHitResponse{
			ID:          rec.ID,
			ContentID:   rec.ContentID,
			ContentType: rec.ContentType,
			DocumentRef: rec.DocumentRef(),
			UserID:      rec.UserID,
			Title:       rec.Title,
			Summary:     rec.Summary,
			Text:        rec.Text,
			Chunk:       rec.Chunk,
			Tags:        rec.Search.Tags,
			Similarity:  hit.Similarity,
			Content:     hit.Content,
		}
		ids[i] = rec.ID
	}
	if h.access != nil && !req.SkipAccessTracking {
		h.access.RecordAccess(c.Request.Context(), ids)
	}
	response.OK(c, resp)
}
