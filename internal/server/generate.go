package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	creditdomain "github.com/timehug/timehug/internal/credit/domain"
	generationdomain "github.com/timehug/timehug/internal/generation/domain"
	templatedomain "github.com/timehug/timehug/internal/template/domain"
	"github.com/timehug/timehug/internal/usercontext"
)

type generateRequest struct {
	RecentImagePath  string `json:"recentImagePath"`
	YoungerImagePath string `json:"youngerImagePath"`
	TemplateID       string `json:"templateId"`
}

type generationView struct {
	ID               string    `json:"id"`
	Status           string    `json:"status"`
	TemplateSlug     string    `json:"templateSlug"`
	InputImages      []string  `json:"inputImages"`
	CreditsCharged   int64     `json:"creditsCharged"`
	OutputURL        *string   `json:"outputUrl"`
	ErrorMessage     *string   `json:"errorMessage,omitempty"`
	ProcessingTimeMS *int64    `json:"processingTimeMs,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// CreateGeneration handles POST /api/generate. The response shapes are
// part of the client contract, so errors are written flat here instead
// of going through the shared envelope.
func (s *Server) CreateGeneration(c *gin.Context) {
	userID, ok := usercontext.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Both recentImagePath and youngerImagePath are required"})
		return
	}

	recent := strings.TrimSpace(req.RecentImagePath)
	younger := strings.TrimSpace(req.YoungerImagePath)
	if recent == "" || younger == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Both recentImagePath and youngerImagePath are required"})
		return
	}

	// Uploads from another user's prefix must be rejected before any
	// credits move.
	if !s.store.OwnedBy(recent, userID) || !s.store.OwnedBy(younger, userID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image paths must reference your own uploads"})
		return
	}

	ctx := c.Request.Context()
	if s.generateLimiter.Enabled() {
		result, err := s.generateLimiter.AllowUser(ctx, userID.String())
		if err != nil {
			s.obsMetrics.RecordRateLimitDenied(ctx, "generate", "limiter_error")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create generation"})
			return
		}
		if !result.Allowed {
			s.obsMetrics.RecordRateLimitDenied(ctx, "generate", "rate")
			c.Header("Retry-After", retryAfterSeconds(result.RetryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		s.obsMetrics.RecordRateLimitAllowed(ctx, "generate")

		lockToken, locked, err := s.generateLimiter.TryLockUser(ctx, userID.String())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create generation"})
			return
		}
		if !locked {
			s.obsMetrics.RecordRateLimitDenied(ctx, "generate", "concurrency")
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "A generation is already in progress"})
			return
		}
		defer func() {
			_ = s.generateLimiter.ReleaseUser(ctx, userID.String(), lockToken)
		}()
	}

	generation, err := s.generationSvc.Create(ctx, generationdomain.CreateRequest{
		UserID:      userID,
		TemplateRef: strings.TrimSpace(req.TemplateID),
		InputImages: []string{recent, younger},
	})
	if err != nil {
		var insufficient *creditdomain.InsufficientCreditsError
		switch {
		case errors.As(err, &insufficient):
			c.JSON(http.StatusPaymentRequired, gin.H{
				"error":     "Insufficient credits",
				"required":  insufficient.Required,
				"available": insufficient.Available,
			})
		case errors.Is(err, templatedomain.ErrTemplateNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
		case errors.Is(err, generationdomain.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Both recentImagePath and youngerImagePath are required"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create generation"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"generationId": generation.ID.String(),
		"status":       generation.Status,
		"outputUrl":    s.resolveOutputURL(generation.OutputImage),
		"message":      "Generation queued for processing",
	})
}

// GetGeneration handles GET /api/generate?id=. Foreign rows read as 404.
func (s *Server) GetGeneration(c *gin.Context) {
	userID, ok := usercontext.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	raw := strings.TrimSpace(c.Query("id"))
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Generation ID required"})
		return
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Generation not found"})
		return
	}

	generation, err := s.generationSvc.Get(c.Request.Context(), userID, id)
	if err != nil {
		if errors.Is(err, generationdomain.ErrGenerationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Generation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load generation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"generation": s.toGenerationView(generation)})
}

func (s *Server) ListGenerations(c *gin.Context) {
	userID, ok := usercontext.UserIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	generations, err := s.generationSvc.List(c.Request.Context(), userID, 50)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	views := make([]generationView, 0, len(generations))
	for i := range generations {
		views = append(views, s.toGenerationView(&generations[i]))
	}
	c.JSON(http.StatusOK, gin.H{"generations": views})
}

// toGenerationView renders a row for the API. output_image holds a
// storage key, resolved into a public URL here so stored rows survive a
// base-URL change.
func (s *Server) toGenerationView(g *generationdomain.Generation) generationView {
	return generationView{
		ID:               g.ID.String(),
		Status:           g.Status,
		TemplateSlug:     g.TemplateSlug,
		InputImages:      []string(g.InputImages),
		CreditsCharged:   g.CreditsCharged,
		OutputURL:        s.resolveOutputURL(g.OutputImage),
		ErrorMessage:     g.ErrorMessage,
		ProcessingTimeMS: g.ProcessingTimeMS,
		CreatedAt:        g.CreatedAt,
		UpdatedAt:        g.UpdatedAt,
	}
}

func (s *Server) resolveOutputURL(key *string) *string {
	if key == nil {
		return nil
	}
	url := s.store.PublicURL(*key)
	return &url
}

func retryAfterSeconds(d time.Duration) string {
	seconds := int(d.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}
