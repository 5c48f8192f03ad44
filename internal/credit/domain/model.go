// Package domain contains core types for the credit ledger.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Transaction types recorded in the ledger.
const (
	TypeGenerationCharge = "generation_charge"
	TypeRefund           = "refund"
	TypeGrant            = "grant"
	TypePurchase         = "purchase"
)

// CreditTransaction is an append-only ledger row. Amount is signed:
// negative for charges, positive for grants and refunds.
type CreditTransaction struct {
	ID           snowflake.ID  `gorm:"primaryKey"`
	UserID       snowflake.ID  `gorm:"column:user_id;not null;index"`
	GenerationID *snowflake.ID `gorm:"column:generation_id;uniqueIndex:idx_credit_tx_generation_type"`
	Type         string        `gorm:"column:type;type:text;not null;uniqueIndex:idx_credit_tx_generation_type"`
	Amount       int64         `gorm:"column:amount;not null"`
	Description  string        `gorm:"column:description;type:text"`
	CreatedAt    time.Time     `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CreditTransaction) TableName() string { return "credit_transactions" }
