// Package domain contains core types for photo generations.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Generation statuses. Completed and failed are terminal.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Generation is one paid image generation request. Template prompt and
// cost are snapshotted at creation so later template edits never change
// what a user was charged or what the generator renders.
type Generation struct {
	ID               snowflake.ID                `gorm:"primaryKey"`
	UserID           snowflake.ID                `gorm:"column:user_id;not null;index:idx_generations_user_created"`
	TemplateID       snowflake.ID                `gorm:"column:template_id;not null"`
	TemplateSlug     string                      `gorm:"column:template_slug;type:text;not null"`
	Status           string                      `gorm:"column:status;type:text;not null;default:pending;index"`
	InputImages      datatypes.JSONSlice[string] `gorm:"column:input_images;not null"`
	PromptUsed       string                      `gorm:"column:prompt_used;type:text;not null"`
	CreditsCharged   int64                       `gorm:"column:credits_charged;not null;default:0"`
	OutputImage      *string                     `gorm:"column:output_image;type:text"`
	ErrorMessage     *string                     `gorm:"column:error_message;type:text"`
	ProcessingTimeMS *int64                      `gorm:"column:processing_time_ms"`
	ClaimedAt        *time.Time                  `gorm:"column:claimed_at"`
	CreatedAt        time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP;index:idx_generations_user_created"`
	UpdatedAt        time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Generation) TableName() string { return "generations" }

// Terminal reports whether the generation reached a final status.
func (g *Generation) Terminal() bool {
	return g.Status == StatusCompleted || g.Status == StatusFailed
}
