package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"careercompass/internal/app"
	"careercompass/internal/model"
	"careercompass/internal/transport/http/response"
)

type MaintenanceHandler struct {
	embeddings *app.EmbeddingService
	defaults   app.CleanupOptions
}

type CleanupRequest struct {
	OlderThanDays *int         `json:"older_than_days"`
	Status        model.Status `json:"status"`
	DryRun        bool         `json:"dry_run"`
}

func NewMaintenanceHandler(embeddings *app.EmbeddingService, defaults app.CleanupOptions) *MaintenanceHandler {
	return &MaintenanceHandler{embeddings: embeddings, defaults: defaults}
}

// Cleanup only ever touches the caller's records; the fleet-wide sweep is a
// compassctl command.
func (h *MaintenanceHandler) Cleanup(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	var req CleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	opts := h.defaults
	opts.UserID = userID
	opts.DryRun = req.DryRun
	if req.OlderThanDays != nil {
		opts.OlderThanDays = *req.OlderThanDays
	}
	if req.Status != "" {
		opts.Status = req.Status
	}

	result, err := h.embeddings.Cleanup(c.Request.Context(), opts)
	if err != nil {
		writeServiceError(c, err, "cleanup failed")
		return
	}
	response.OK(c, result)
}
