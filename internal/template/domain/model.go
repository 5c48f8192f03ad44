// Package domain contains core types for generation templates.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// DefaultSlug is the template used when a request names none.
const DefaultSlug = "hug-younger-self"

// Template is a reusable generation recipe with a fixed credit price.
type Template struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	Slug        string       `gorm:"column:slug;type:text;not null;uniqueIndex"`
	Name        string       `gorm:"column:name;type:text;not null"`
	Description string       `gorm:"column:description;type:text"`
	Prompt      string       `gorm:"column:prompt;type:text;not null"`
	CreditCost  int64        `gorm:"column:credit_cost;not null"`
	IsActive    bool         `gorm:"column:is_active;not null"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Template) TableName() string { return "templates" }
