package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/timehug/timehug/internal/generation/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func New(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) Create(ctx context.Context, generation *domain.Generation) error {
	return r.db.WithContext(ctx).Create(generation).Error
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*domain.Generation, error) {
	var generation domain.Generation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&generation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrGenerationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &generation, nil
}

func (r *repo) FindByIDForUser(ctx context.Context, id, userID snowflake.ID) (*domain.Generation, error) {
	var generation domain.Generation
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&generation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrGenerationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &generation, nil
}

func (r *repo) ListByUser(ctx context.Context, userID snowflake.ID, limit int) ([]domain.Generation, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var generations []domain.Generation
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&generations).Error
	if err != nil {
		return nil, err
	}
	return generations, nil
}

func (r *repo) ClaimBatch(ctx context.Context, limit int, now, stale time.Time) ([]domain.Generation, error) {
	if limit <= 0 {
		limit = 10
	}

	var claimed []domain.Generation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var candidates []snowflake.ID
		err := tx.Model(&domain.Generation{}).
			Select("id").
			Where("status = ?", domain.StatusPending).
			Or("status = ? AND claimed_at <= ?", domain.StatusProcessing, stale).
			Order("created_at ASC").
			Limit(limit).
			Scan(&candidates).Error
		if err != nil {
			return err
		}

		for _, id := range candidates {
			// Conditional update keeps concurrent workers from claiming
			// the same row twice.
			result := tx.Exec(
				`UPDATE generations
				 SET status = ?, claimed_at = ?, updated_at = ?
				 WHERE id = ? AND (status = ? OR (status = ? AND claimed_at <= ?))`,
				domain.StatusProcessing, now, now,
				id, domain.StatusPending, domain.StatusProcessing, stale,
			)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				continue
			}

			var generation domain.Generation
			if err := tx.Where("id = ?", id).First(&generation).Error; err != nil {
				return err
			}
			claimed = append(claimed, generation)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *repo) MarkCompleted(ctx context.Context, id snowflake.ID, outputImage string, processingTime time.Duration, now time.Time) error {
	ms := processingTime.Milliseconds()
	result := r.db.WithContext(ctx).Exec(
		`UPDATE generations
		 SET status = ?, output_image = ?, processing_time_ms = ?, error_message = NULL, updated_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		domain.StatusCompleted, outputImage, ms, now,
		id, domain.StatusPending, domain.StatusProcessing,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	return r.terminalReplay(ctx, id, domain.StatusCompleted)
}

func (r *repo) MarkFailed(ctx context.Context, id snowflake.ID, message string, now time.Time) error {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE generations
		 SET status = ?, error_message = ?, updated_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		domain.StatusFailed, message, now,
		id, domain.StatusPending, domain.StatusProcessing,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	return r.terminalReplay(ctx, id, domain.StatusFailed)
}

// terminalReplay distinguishes an idempotent replay from a conflicting
// transition after a gated update touched no rows.
func (r *repo) terminalReplay(ctx context.Context, id snowflake.ID, want string) error {
	generation, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if generation.Status == want {
		return nil
	}
	return domain.ErrInvalidTransition
}
