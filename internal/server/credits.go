package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	creditdomain "github.com/timehug/timehug/internal/credit/domain"
	"github.com/timehug/timehug/internal/usercontext"
)

const creditHistoryLimit = 50

type creditTransactionView struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Amount       int64     `json:"amount"`
	Description  string    `json:"description,omitempty"`
	GenerationID string    `json:"generation_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (s *Server) GetCredits(c *gin.Context) {
	userID, ok := usercontext.UserIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	balance, err := s.creditSvc.Balance(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	transactions, err := s.creditSvc.ListTransactions(c.Request.Context(), userID, creditHistoryLimit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	views := make([]creditTransactionView, 0, len(transactions))
	for _, tx := range transactions {
		views = append(views, toCreditTransactionView(tx))
	}

	c.JSON(http.StatusOK, gin.H{
		"balance":      balance,
		"transactions": views,
	})
}

func toCreditTransactionView(tx creditdomain.CreditTransaction) creditTransactionView {
	view := creditTransactionView{
		ID:          tx.ID.String(),
		Type:        tx.Type,
		Amount:      tx.Amount,
		Description: tx.Description,
		CreatedAt:   tx.CreatedAt,
	}
	if tx.GenerationID != nil {
		view.GenerationID = tx.GenerationID.String()
	}
	return view
}
