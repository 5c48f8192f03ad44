// Package domain contains core types for user profiles.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Profile holds the per-user credit balance.
type Profile struct {
	UserID        snowflake.ID `gorm:"column:user_id;primaryKey"`
	DisplayName   string       `gorm:"column:display_name;type:text"`
	CreditBalance int64        `gorm:"column:credit_balance;not null;default:0"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Profile) TableName() string { return "profiles" }
