package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	templatedomain "github.com/timehug/timehug/internal/template/domain"
)

type templateView struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreditCost  int64  `json:"credit_cost"`
}

// ListTemplates returns the active templates. The prompt stays server-side.
func (s *Server) ListTemplates(c *gin.Context) {
	templates, err := s.templateSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	views := make([]templateView, 0, len(templates))
	for _, t := range templates {
		views = append(views, toTemplateView(t))
	}

	c.JSON(http.StatusOK, gin.H{"templates": views})
}

func toTemplateView(t templatedomain.Template) templateView {
	return templateView{
		ID:          t.ID.String(),
		Slug:        t.Slug,
		Name:        t.Name,
		Description: t.Description,
		CreditCost:  t.CreditCost,
	}
}
