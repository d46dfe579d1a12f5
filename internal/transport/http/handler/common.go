package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"careercompass/internal/app"
	"careercompass/internal/pkg/vecmath"
	"careercompass/internal/transport/http/middleware"
	"careercompass/internal/transport/http/response"
)

func getUserIDFromContext(c *gin.Context) (uint, bool) {
	userIDAny, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	userID, ok := userIDAny.(uint)
	return userID, ok
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	u, err := strconv.ParseUint(c.Param(key), 10, 64)
	return uint(u), err
}

// writeServiceError maps app sentinels onto the response envelope.
func writeServiceError(c *gin.Context, err error, fallback string) {
	var dimErr *vecmath.DimensionMismatchError
	switch {
	case errors.As(err, &dimErr):
		response.Error(c, http.StatusUnprocessableEntity, response.CodeDimensionMismatch, err.Error())
	case errors.Is(err, app.ErrValidation), errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
	case errors.Is(err, app.ErrConflict):
		response.Error(c, http.StatusConflict, response.CodeConflict, err.Error())
	default:
		log.Printf("%s: %v", fallback, err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}
