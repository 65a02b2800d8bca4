package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/user/vidcatalog/internal/catalog"
)

var errInvalidID = &catalog.ValidationError{Field: "id", Message: "must be a positive integer"}

// respondError maps a failure to a status code. Internal detail is logged, never returned.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var (
		verr *catalog.ValidationError
		serr *catalog.UploadSubmissionError
	)
	switch {
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.Is(err, catalog.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Video not found"})
	case errors.As(err, &serr):
		RecordError("provider")
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "The hosting provider rejected the upload"})
	default:
		RecordError("internal")
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// idParam parses the :id path parameter
func idParam(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errInvalidID
	}
	return uint(id), nil
}

// pageParam reads ?page, leaving normalization to the store
func pageParam(c *gin.Context) int {
	n, _ := strconv.Atoi(c.Query("page"))
	return n
}
