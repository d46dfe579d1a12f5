package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"careercompass/internal/app"
	"careercompass/internal/model"
	"careercompass/internal/transport/http/response"
)

const maxBatchItems = 100

type EmbeddingHandler struct {
	embeddings  *app.EmbeddingService
	ingest      *app.IngestService
	ingestQueue app.Publisher
}

type SemanticsRequest struct {
	Topics     []string        `json:"topics"`
	Entities   []string        `json:"entities"`
	Categories []string        `json:"categories"`
	Sentiment  model.Sentiment `json:"sentiment"`
	Confidence float64         `json:"confidence"`
}

type SearchMetadataRequest struct {
	Boost    *float64       `json:"boost"`
	Tags     []string       `json:"tags"`
	Priority model.Priority `json:"priority"`
}

// CreateEmbeddingRequest carries no binding rules: the store validates every
// field so a bad batch item fails alone instead of rejecting the whole batch.
type CreateEmbeddingRequest struct {
	ContentID        string                `json:"content_id"`
	ContentType      model.ContentType     `json:"content_type"`
	DocumentRefID    uint                  `json:"document_ref_id"`
	Text             string                `json:"text"`
	Title            string                `json:"title"`
	Summary          string                `json:"summary"`
	Keywords         []string              `json:"keywords"`
	Language         string                `json:"language"`
	Vector           []float64             `json:"vector"`
	Model            string                `json:"model"`
	Chunk            *model.ChunkInfo      `json:"chunk"`
	Semantics        SemanticsRequest      `json:"semantics"`
	Search           SearchMetadataRequest `json:"search"`
	ReadabilityScore float64               `json:"readability_score"`
	ExpiresAt        *time.Time            `json:"expires_at"`
}

type BatchCreateEmbeddingRequest struct {
	Items []CreateEmbeddingRequest `json:"items" binding:"required,min=1"`
}

type UpdateEmbeddingRequest struct {
	Text      *string           `json:"text"`
	Title     *string           `json:"title"`
	Summary   *string           `json:"summary"`
	Keywords  *[]string         `json:"keywords"`
	Vector    *[]float64        `json:"vector"`
	Model     *string           `json:"model"`
	Boost     *float64          `json:"boost"`
	Tags      *[]string         `json:"tags"`
	Priority  *model.Priority   `json:"priority"`
	Status    *model.Status     `json:"status"`
	Chunk     *model.ChunkInfo  `json:"chunk"`
	Semantics *SemanticsRequest `json:"semantics"`
	ExpiresAt *time.Time        `json:"expires_at"`
}

type IngestRequest struct {
	ContentID     string            `json:"content_id"`
	ContentType   model.ContentType `json:"content_type" binding:"required"`
	DocumentRefID uint              `json:"document_ref_id"`
	Title         string            `json:"title"`
	Text          string            `json:"text" binding:"required"`
	Keywords      []string          `json:"keywords"`
	Language      string            `json:"language"`
	Tags          []string          `json:"tags"`
	ExpiresAt     *time.Time        `json:"expires_at"`
}

func NewEmbeddingHandler(embeddings *app.EmbeddingService, ingest *app.IngestService, ingestQueue app.Publisher) *EmbeddingHandler {
	return &EmbeddingHandler{
		embeddings:  embeddings,
		ingest:      ingest,
		ingestQueue: ingestQueue,
	}
}

func (req CreateEmbeddingRequest) toInput(userID uint) app.CreateInput {
	return app.CreateInput{
		ContentID:     req.ContentID,
		ContentType:   req.ContentType,
		DocumentRefID: req.DocumentRefID,
		UserID:        userID,
		Text:          req.Text,
		Title:         req.Title,
		Summary:       req.Summary,
		Keywords:      req.Keywords,
		Language:      req.Language,
		Vector:        req.Vector,
		Model:         req.Model,
		Chunk:         req.Chunk,
		Semantics:     app.SemanticsInput(req.Semantics),
		Search: app.SearchMetadataInput{
			Boost:    req.Search.Boost,
			Tags:     req.Search.Tags,
			Priority: req.Search.Priority,
		},
		ReadabilityScore: req.ReadabilityScore,
		ExpiresAt:        req.ExpiresAt,
	}
}

func (h *EmbeddingHandler) Create(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	var req CreateEmbeddingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	record, err := h.embeddings.Create(c.Request.Context(), req.toInput(userID))
	if err != nil {
		writeServiceError(c, err, "create embedding failed")
		return
	}
	response.OK(c, record)
}

// BatchCreate stores every item it can; per-item failures are reported, not fatal.
func (h *EmbeddingHandler) BatchCreate(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	var req BatchCreateEmbeddingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	if len(req.Items) > maxBatchItems {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, fmt.Sprintf("batch exceeds %d items", maxBatchItems))
		return
	}

	inputs := make([]app.CreateInput, len(req.Items))
	for i, item := range req.Items {
		if item.ContentID == "" {
			item.ContentID = uuid.NewString()
		}
		inputs[i] = item.toInput(userID)
	}
	result, err := h.embeddings.BatchCreate(c.Request.Context(), inputs)
	if err != nil {
		writeServiceError(c, err, "batch create embeddings failed")
		return
	}
	response.OK(c, result)
}

func (h *EmbeddingHandler) Get(c *gin.Context) {
	record, ok := h.ownedRecord(c)
	if !ok {
		return
	}
	response.OK(c, record)
}

func (h *EmbeddingHandler) Update(c *gin.Context) {
	record, ok := h.ownedRecord(c)
	if !ok {
		return
	}
	var req UpdateEmbeddingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	patch := app.UpdatePatch{
		Text:      req.Text,
		Title:     req.Title,
		Summary:   req.Summary,
		Keywords:  req.Keywords,
		Vector:    req.Vector,
		Model:     req.Model,
		Boost:     req.Boost,
		Tags:      req.Tags,
		Priority:  req.Priority,
		Status:    req.Status,
		Chunk:     req.Chunk,
		ExpiresAt: req.ExpiresAt,
	}
	if req.Semantics != nil {
		semantics := app.SemanticsInput(*req.Semantics)
		patch.Semantics = &semantics
	}

	updated, err := h.embeddings.Update(c.Request.Context(), record.ID, patch)
	if err != nil {
		writeServiceError(c, err, "update embedding failed")
		return
	}
	response.OK(c, updated)
}

func (h *EmbeddingHandler) MarkOutdated(c *gin.Context) {
	record, ok := h.ownedRecord(c)
	if !ok {
		return
	}
	if err := h.embeddings.MarkOutdated(c.Request.Context(), record.ID); err != nil {
		writeServiceError(c, err, "mark outdated failed")
		return
	}
	response.OK(c, gin.H{"id": record.ID, "status": model.StatusOutdated})
}

func (h *EmbeddingHandler) Ingest(c *gin.Context) {
	input, ok := h.bindIngest(c)
	if !ok {
		return
	}
	result, err := h.ingest.IngestText(c.Request.Context(), input)
	if err != nil {
		writeServiceError(c, err, "ingest failed")
		return
	}
	response.OK(c, result)
}

// IngestAsync queues the job for the ingest worker and returns the assigned content id.
func (h *EmbeddingHandler) IngestAsync(c *gin.Context) {
	if h.ingestQueue == nil {
		response.Error(c, http.StatusServiceUnavailable, response.CodeUnavailable, "async ingest is not enabled")
		return
	}
	input, ok := h.bindIngest(c)
	if !ok {
		return
	}
	if input.ContentID == "" {
		input.ContentID = uuid.NewString()
	}
	if err := h.ingestQueue.Publish(c.Request.Context(), input); err != nil {
		writeServiceError(c, err, "enqueue ingest failed")
		return
	}
	response.Accepted(c, gin.H{"content_id": input.ContentID})
}

func (h *EmbeddingHandler) bindIngest(c *gin.Context) (app.IngestInput, bool) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return app.IngestInput{}, false
	}
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return app.IngestInput{}, false
	}
	if !req.ContentType.Valid() {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "unknown content_type")
		return app.IngestInput{}, false
	}
	return app.IngestInput{
		ContentID:     req.ContentID,
		ContentType:   req.ContentType,
		DocumentRefID: req.DocumentRefID,
		UserID:        userID,
		Title:         req.Title,
		Text:          req.Text,
		Keywords:      req.Keywords,
		Language:      req.Language,
		Tags:          req.Tags,
		ExpiresAt:     req.ExpiresAt,
	}, true
}

// ownedRecord loads :id and hides records owned by other users behind a 404.
func (h *EmbeddingHandler) ownedRecord(c *gin.Context) (*model.EmbeddingRecord, bool) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return nil, false
	}
	id, err := parseUintParam(c, "id")
	if err != nil || id == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid embedding id")
		return nil, false
	}
	record, err := h.embeddings.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err, "get embedding failed")
		return nil, false
	}
	if record.UserID != userID {
		response.Error(c, http.StatusNotFound, response.CodeNotFound, app.ErrNotFound.Error())
		return nil, false
	}
	return record, true
}
