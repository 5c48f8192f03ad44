package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"github.com/timehug/timehug/internal/clock"
	creditdomain "github.com/timehug/timehug/internal/credit/domain"
	profiledomain "github.com/timehug/timehug/internal/profile/domain"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func TestChargeDebitsBalanceOnce(t *testing.T) {
	svc, db, node := setupCreditService(t)
	ctx := context.Background()

	userID := node.Generate()
	generationID := node.Generate()
	seedProfile(t, db, userID, 5)

	req := creditdomain.ChargeRequest{
		UserID:       userID,
		GenerationID: generationID,
		Amount:       1,
		Description:  "generation: hug-younger-self",
	}
	require.NoError(t, svc.Charge(ctx, req))

	balance, err := svc.Balance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, int64(4), balance)

	rows := listTransactions(t, db, userID)
	require.Len(t, rows, 1)
	require.Equal(t, creditdomain.TypeGenerationCharge, rows[0].Type)
	require.Equal(t, int64(-1), rows[0].Amount)
	require.NotNil(t, rows[0].GenerationID)
	require.Equal(t, generationID, *rows[0].GenerationID)

	// Replays keyed on the same generation leave balance and ledger alone.
	require.NoError(t, svc.Charge(ctx, req))
	balance, err = svc.Balance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, int64(4), balance)
	require.Len(t, listTransactions(t, db, userID), 1)
}

func TestChargeInsufficientBalance(t *testing.T) {
	svc, db, node := setupCreditService(t)
	ctx := context.Background()

	userID := node.Generate()
	seedProfile(t, db, userID, 0)

	err := svc.Charge(ctx, creditdomain.ChargeRequest{
		UserID:       userID,
		GenerationID: node.Generate(),
		Amount:       1,
	})
	require.Error(t, err)
	require.ErrorIs(t, err, creditdomain.ErrInsufficientCredits)

	var insufficient *creditdomain.InsufficientCreditsError
	require.True(t, errors.As(err, &insufficient))
	require.Equal(t, int64(1), insufficient.Required)
	require.Equal(t, int64(0), insufficient.Available)

	// The rollback leaves no ledger row behind.
	require.Empty(t, listTransactions(t, db, userID))
	balance, err := svc.Balance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, int64(0), balance)
}

func TestChargeExhaustsBalanceExactly(t *testing.T) {
	svc, db, node := setupCreditService(t)
	ctx := context.Background()

	userID := node.Generate()
	seedProfile(t, db, userID, 1)

	require.NoError(t, svc.Charge(ctx, creditdomain.ChargeRequest{
		UserID:       userID,
		GenerationID: node.Generate(),
		Amount:       1,
	}))

	// A second charge for a different generation finds nothing left.
	err := svc.Charge(ctx, creditdomain.ChargeRequest{
		UserID:       userID,
		GenerationID: node.Generate(),
		Amount:       1,
	})
	require.ErrorIs(t, err, creditdomain.ErrInsufficientCredits)

	var insufficient *creditdomain.InsufficientCreditsError
	require.True(t, errors.As(err, &insufficient))
	require.Equal(t, int64(1), insufficient.Required)
	require.Equal(t, int64(0), insufficient.Available)

	balance, err := svc.Balance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, int64(0), balance)
	require.Len(t, listTransactions(t, db, userID), 1)
}

func TestChargeMissingProfile(t *testing.T) {
	svc, db, node := setupCreditService(t)
	ctx := context.Background()

	userID := node.Generate()
	err := svc.Charge(ctx, creditdomain.ChargeRequest{
		UserID:       userID,
		GenerationID: node.Generate(),
		Amount:       2,
	})

	var insufficient *creditdomain.InsufficientCreditsError
	require.True(t, errors.As(err, &insufficient))
	require.Equal(t, int64(2), insufficient.Required)
	require.Equal(t, int64(0), insufficient.Available)
	require.Empty(t, listTransactions(t, db, userID))
}

func TestChargeValidation(t *testing.T) {
	svc, _, node := setupCreditService(t)
	ctx := context.Background()

	err := svc.Charge(ctx, creditdomain.ChargeRequest{GenerationID: node.Generate(), Amount: 1})
	require.ErrorIs(t, err, creditdomain.ErrInvalidUser)

	err = svc.Charge(ctx, creditdomain.ChargeRequest{UserID: node.Generate(), Amount: 1})
	require.ErrorIs(t, err, creditdomain.ErrInvalidGeneration)

	err = svc.Charge(ctx, creditdomain.ChargeRequest{UserID: node.Generate(), GenerationID: node.Generate()})
	require.ErrorIs(t, err, creditdomain.ErrInvalidAmount)
}

func TestRefundRestoresChargeOnce(t *testing.T) {
	svc, db, node := setupCreditService(t)
	ctx := context.Background()

	userID := node.Generate()
	generationID := node.Generate()
	seedProfile(t, db, userID, 3)

	require.NoError(t, svc.Charge(ctx, creditdomain.ChargeRequest{
		UserID:       userID,
		GenerationID: generationID,
		Amount:       1,
	}))

	refund := creditdomain.RefundRequest{
		UserID:       userID,
		GenerationID: generationID,
		Amount:       1,
		Description:  "refund: hug-younger-self",
	}
	require.NoError(t, svc.Refund(ctx, refund))

	balance, err := svc.Balance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, int64(3), balance)
	require.Len(t, listTransactions(t, db, userID), 2)

	// A second refund for the same generation is a no-op.
	require.NoError(t, svc.Refund(ctx, refund))
	balance, err = svc.Balance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, int64(3), balance)
	require.Len(t, listTransactions(t, db, userID), 2)
}

func TestRefundWithoutChargeIsNoOp(t *testing.T) {
	svc, db, node := setupCreditService(t)
	ctx := context.Background()

	userID := node.Generate()
	seedProfile(t, db, userID, 2)

	require.NoError(t, svc.Refund(ctx, creditdomain.RefundRequest{
		UserID:       userID,
		GenerationID: node.Generate(),
		Amount:       1,
	}))

	balance, err := svc.Balance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, int64(2), balance)
	require.Empty(t, listTransactions(t, db, userID))
}

func TestGrantCreatesProfile(t *testing.T) {
	svc, db, node := setupCreditService(t)
	ctx := context.Background()

	userID := node.Generate()
	require.NoError(t, svc.Grant(ctx, creditdomain.GrantRequest{
		UserID:      userID,
		Amount:      3,
		Description: "signup grant",
	}))

	balance, err := svc.Balance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, int64(3), balance)

	rows := listTransactions(t, db, userID)
	require.Len(t, rows, 1)
	require.Equal(t, creditdomain.TypeGrant, rows[0].Type)
	require.Equal(t, int64(3), rows[0].Amount)

	// Granting again tops up the same profile.
	require.NoError(t, svc.Grant(ctx, creditdomain.GrantRequest{UserID: userID, Amount: 2}))
	balance, err = svc.Balance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, int64(5), balance)
}

func TestBalanceMissingProfileIsZero(t *testing.T) {
	svc, _, node := setupCreditService(t)

	balance, err := svc.Balance(context.Background(), node.Generate())
	require.NoError(t, err)
	require.Equal(t, int64(0), balance)
}

func setupCreditService(t *testing.T) (creditdomain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db := openTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(Params{
		DB:    db,
		Log:   zaptest.NewLogger(t),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	})
	return svc, db, node
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&profiledomain.Profile{},
		&creditdomain.CreditTransaction{},
	))
	return db
}

func seedProfile(t *testing.T, db *gorm.DB, userID snowflake.ID, balance int64) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, db.Create(&profiledomain.Profile{
		UserID:        userID,
		CreditBalance: balance,
		CreatedAt:     now,
		UpdatedAt:     now,
	}).Error)
}

func listTransactions(t *testing.T, db *gorm.DB, userID snowflake.ID) []creditdomain.CreditTransaction {
	t.Helper()
	var rows []creditdomain.CreditTransaction
	require.NoError(t, db.Where("user_id = ?", userID).Order("id ASC").Find(&rows).Error)
	return rows
}
