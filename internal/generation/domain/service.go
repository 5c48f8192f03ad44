package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// Create records the generation, charges the template's credit cost
	// and leaves the row pending for asynchronous fulfillment.
	Create(ctx context.Context, req CreateRequest) (*Generation, error)
	// Get returns the generation only when owned by userID.
	Get(ctx context.Context, userID, id snowflake.ID) (*Generation, error)
	List(ctx context.Context, userID snowflake.ID, limit int) ([]Generation, error)
	// Complete finishes fulfillment. Idempotent for completed rows.
	Complete(ctx context.Context, id snowflake.ID, outputImage string, processingTime time.Duration) error
	// Fail finishes fulfillment with an error and refunds the charge.
	Fail(ctx context.Context, id snowflake.ID, message string) error
}

type CreateRequest struct {
	UserID      snowflake.ID
	TemplateRef string
	InputImages []string
}
