package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	// Charge debits the user's balance and records the ledger row in a
	// single transaction. Replays keyed on the same generation are no-ops.
	Charge(ctx context.Context, req ChargeRequest) error
	// ChargeTx runs the charge inside a caller-owned transaction so the
	// debit commits or rolls back together with the caller's writes.
	ChargeTx(ctx context.Context, tx *gorm.DB, req ChargeRequest) error
	// Refund restores a previously charged amount. Idempotent per generation.
	Refund(ctx context.Context, req RefundRequest) error
	// Grant credits the balance, creating the profile row when absent.
	Grant(ctx context.Context, req GrantRequest) error
	Balance(ctx context.Context, userID snowflake.ID) (int64, error)
	ListTransactions(ctx context.Context, userID snowflake.ID, limit int) ([]CreditTransaction, error)
}

type ChargeRequest struct {
	UserID       snowflake.ID
	GenerationID snowflake.ID
	Amount       int64
	Description  string
}

type RefundRequest struct {
	UserID       snowflake.ID
	GenerationID snowflake.ID
	Amount       int64
	Description  string
}

type GrantRequest struct {
	UserID      snowflake.ID
	Amount      int64
	Type        string
	Description string
}
