package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	Create(ctx context.Context, generation *Generation) error
	FindByID(ctx context.Context, id snowflake.ID) (*Generation, error)
	// FindByIDForUser scopes lookup to the owner. Rows owned by another
	// user read as not found.
	FindByIDForUser(ctx context.Context, id, userID snowflake.ID) (*Generation, error)
	ListByUser(ctx context.Context, userID snowflake.ID, limit int) ([]Generation, error)
	// ClaimBatch moves up to limit pending generations to processing and
	// returns them. Processing rows claimed before stale are reclaimed,
	// covering workers that died mid-flight.
	ClaimBatch(ctx context.Context, limit int, now, stale time.Time) ([]Generation, error)
	// MarkCompleted finishes a non-terminal generation. Replays against an
	// already completed row are no-ops; a failed row returns
	// ErrInvalidTransition.
	MarkCompleted(ctx context.Context, id snowflake.ID, outputImage string, processingTime time.Duration, now time.Time) error
	// MarkFailed mirrors MarkCompleted for the failed status.
	MarkFailed(ctx context.Context, id snowflake.ID, message string, now time.Time) error
}
