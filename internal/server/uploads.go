package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timehug/timehug/internal/storage"
	"github.com/timehug/timehug/internal/usercontext"
)

// UploadImage accepts a multipart photo upload and stores it under the
// caller's prefix. The "type" field selects the person or child slot.
func (s *Server) UploadImage(c *gin.Context) {
	userID, ok := usercontext.UserIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	imageType := strings.TrimSpace(c.PostForm("type"))
	switch imageType {
	case storage.TypePerson, storage.TypeChild:
	default:
		AbortWithError(c, newValidationError("type", "invalid_type", "type must be person or child"))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		AbortWithError(c, newValidationError("file", "required", "file is required"))
		return
	}
	if fileHeader.Size > s.cfg.Storage.MaxUploadSize {
		AbortWithError(c, storage.ErrTooLarge)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		AbortWithError(c, ErrInternal)
		return
	}
	defer file.Close()

	// Read one byte past the limit so a lying Content-Length can't sneak
	// an oversized body through.
	data, err := io.ReadAll(io.LimitReader(file, s.cfg.Storage.MaxUploadSize+1))
	if err != nil {
		AbortWithError(c, ErrInternal)
		return
	}
	if int64(len(data)) > s.cfg.Storage.MaxUploadSize {
		AbortWithError(c, storage.ErrTooLarge)
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	object, err := s.store.Save(c.Request.Context(), userID, imageType, contentType, data)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedType) || errors.Is(err, storage.ErrTooLarge) {
			AbortWithError(c, err)
			return
		}
		AbortWithError(c, ErrInternal)
		return
	}

	s.obsMetrics.RecordUpload(c.Request.Context(), imageType)

	c.JSON(http.StatusOK, gin.H{
		"path": object.Key,
		"url":  object.URL,
	})
}

// ServeObject serves stored objects from the configured bucket.
func (s *Server) ServeObject(c *gin.Context) {
	if c.Param("bucket") != s.cfg.Storage.Bucket {
		AbortWithError(c, storage.ErrObjectNotFound)
		return
	}

	key := strings.TrimPrefix(c.Param("key"), "/")
	data, contentType, err := s.store.Get(c.Request.Context(), key)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Data(http.StatusOK, contentType, data)
}
