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
	creditservice "github.com/timehug/timehug/internal/credit/service"
	"github.com/timehug/timehug/internal/generation/domain"
	generationrepo "github.com/timehug/timehug/internal/generation/repository"
	profiledomain "github.com/timehug/timehug/internal/profile/domain"
	templatedomain "github.com/timehug/timehug/internal/template/domain"
	templaterepo "github.com/timehug/timehug/internal/template/repository"
	templateservice "github.com/timehug/timehug/internal/template/service"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fixture struct {
	svc       domain.Service
	creditSvc creditdomain.Service
	db        *gorm.DB
	node      *snowflake.Node
	clock     *clock.FakeClock
	template  *templatedomain.Template
}

func TestCreateChargesAndSnapshots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	userID := f.node.Generate()
	seedBalance(t, f.db, userID, 5)

	generation, err := f.svc.Create(ctx, domain.CreateRequest{
		UserID:      userID,
		InputImages: []string{"u/person_1.jpg", "u/child_1.jpg"},
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, generation.Status)
	require.Equal(t, f.template.ID, generation.TemplateID)
	require.Equal(t, f.template.Slug, generation.TemplateSlug)
	require.Equal(t, f.template.Prompt, generation.PromptUsed)
	require.Equal(t, f.template.CreditCost, generation.CreditsCharged)
	require.Equal(t, []string{"u/person_1.jpg", "u/child_1.jpg"}, []string(generation.InputImages))

	balance, err := f.creditSvc.Balance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, int64(4), balance)

	var rows []creditdomain.CreditTransaction
	require.NoError(t, f.db.Where("user_id = ?", userID).Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, creditdomain.TypeGenerationCharge, rows[0].Type)
	require.Equal(t, -generation.CreditsCharged, rows[0].Amount)
	require.Equal(t, generation.ID, *rows[0].GenerationID)
}

func TestCreateInsufficientCreditsLeavesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	userID := f.node.Generate()
	seedBalance(t, f.db, userID, 0)

	_, err := f.svc.Create(ctx, domain.CreateRequest{
		UserID:      userID,
		InputImages: []string{"u/person_1.jpg", "u/child_1.jpg"},
	})
	require.ErrorIs(t, err, creditdomain.ErrInsufficientCredits)

	var insufficient *creditdomain.InsufficientCreditsError
	require.True(t, errors.As(err, &insufficient))
	require.Equal(t, f.template.CreditCost, insufficient.Required)
	require.Equal(t, int64(0), insufficient.Available)

	// Rollback leaves no generation row and no ledger row.
	var generations int64
	require.NoError(t, f.db.Model(&domain.Generation{}).Where("user_id = ?", userID).Count(&generations).Error)
	require.Zero(t, generations)

	var transactions int64
	require.NoError(t, f.db.Model(&creditdomain.CreditTransaction{}).Where("user_id = ?", userID).Count(&transactions).Error)
	require.Zero(t, transactions)
}

func TestCreateUnknownTemplate(t *testing.T) {
	f := newFixture(t)

	userID := f.node.Generate()
	seedBalance(t, f.db, userID, 5)

	_, err := f.svc.Create(context.Background(), domain.CreateRequest{
		UserID:      userID,
		TemplateRef: "no-such-template",
		InputImages: []string{"u/person_1.jpg", "u/child_1.jpg"},
	})
	require.ErrorIs(t, err, templatedomain.ErrTemplateNotFound)
}

func TestCreateInputValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	userID := f.node.Generate()
	seedBalance(t, f.db, userID, 5)

	_, err := f.svc.Create(ctx, domain.CreateRequest{
		UserID:      userID,
		InputImages: []string{"u/person_1.jpg"},
	})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.Create(ctx, domain.CreateRequest{
		UserID:      userID,
		InputImages: []string{"u/person_1.jpg", "   "},
	})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.Create(ctx, domain.CreateRequest{
		InputImages: []string{"u/person_1.jpg", "u/child_1.jpg"},
	})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestGetScopedToOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.node.Generate()
	other := f.node.Generate()
	seedBalance(t, f.db, owner, 5)

	generation, err := f.svc.Create(ctx, domain.CreateRequest{
		UserID:      owner,
		InputImages: []string{"u/person_1.jpg", "u/child_1.jpg"},
	})
	require.NoError(t, err)

	found, err := f.svc.Get(ctx, owner, generation.ID)
	require.NoError(t, err)
	require.Equal(t, generation.ID, found.ID)

	_, err = f.svc.Get(ctx, other, generation.ID)
	require.ErrorIs(t, err, domain.ErrGenerationNotFound)
}

func TestListNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	userID := f.node.Generate()
	seedBalance(t, f.db, userID, 5)

	first, err := f.svc.Create(ctx, domain.CreateRequest{
		UserID:      userID,
		InputImages: []string{"u/person_1.jpg", "u/child_1.jpg"},
	})
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	second, err := f.svc.Create(ctx, domain.CreateRequest{
		UserID:      userID,
		InputImages: []string{"u/person_2.jpg", "u/child_2.jpg"},
	})
	require.NoError(t, err)

	list, err := f.svc.List(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, second.ID, list[0].ID)
	require.Equal(t, first.ID, list[1].ID)

	empty, err := f.svc.List(ctx, f.node.Generate(), 10)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestCompleteIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	userID := f.node.Generate()
	seedBalance(t, f.db, userID, 5)

	generation, err := f.svc.Create(ctx, domain.CreateRequest{
		UserID:      userID,
		InputImages: []string{"u/person_1.jpg", "u/child_1.jpg"},
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.Complete(ctx, generation.ID, "u/output_1.png", 2*time.Second))
	require.NoError(t, f.svc.Complete(ctx, generation.ID, "u/output_1.png", 2*time.Second))

	found, err := f.svc.Get(ctx, userID, generation.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, found.Status)
	require.NotNil(t, found.OutputImage)
	require.Equal(t, "u/output_1.png", *found.OutputImage)
	require.NotNil(t, found.ProcessingTimeMS)
	require.Equal(t, int64(2000), *found.ProcessingTimeMS)

	// A completed generation cannot flip to failed.
	require.ErrorIs(t, f.svc.Fail(ctx, generation.ID, "too late"), domain.ErrInvalidTransition)
}

func TestFailRefundsCharge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	userID := f.node.Generate()
	seedBalance(t, f.db, userID, 5)

	generation, err := f.svc.Create(ctx, domain.CreateRequest{
		UserID:      userID,
		InputImages: []string{"u/person_1.jpg", "u/child_1.jpg"},
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.Fail(ctx, generation.ID, "render timed out"))

	found, err := f.svc.Get(ctx, userID, generation.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusFailed, found.Status)
	require.NotNil(t, found.ErrorMessage)
	require.Equal(t, "render timed out", *found.ErrorMessage)

	balance, err := f.creditSvc.Balance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, int64(5), balance)

	// Replaying the failure does not refund twice.
	require.NoError(t, f.svc.Fail(ctx, generation.ID, "render timed out"))
	balance, err = f.creditSvc.Balance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, int64(5), balance)
}

func newFixture(t *testing.T) *fixture {
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
		&templatedomain.Template{},
		&domain.Generation{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	log := zaptest.NewLogger(t)

	template := &templatedomain.Template{
		ID:         node.Generate(),
		Slug:       templatedomain.DefaultSlug,
		Name:       "Hug Your Younger Self",
		Prompt:     "A warm embrace across time.",
		CreditCost: 1,
		IsActive:   true,
		CreatedAt:  fakeClock.Now(),
		UpdatedAt:  fakeClock.Now(),
	}
	require.NoError(t, db.Create(template).Error)

	creditSvc := creditservice.NewService(creditservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fakeClock,
	})
	templateSvc := templateservice.New(log, templaterepo.New(db))

	svc := NewService(Params{
		DB:          db,
		Log:         log,
		Repo:        generationrepo.New(db),
		TemplateSvc: templateSvc,
		CreditSvc:   creditSvc,
		GenID:       node,
		Clock:       fakeClock,
	})

	return &fixture{
		svc:       svc,
		creditSvc: creditSvc,
		db:        db,
		node:      node,
		clock:     fakeClock,
		template:  template,
	}
}

func seedBalance(t *testing.T, db *gorm.DB, userID snowflake.ID, balance int64) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, db.Create(&profiledomain.Profile{
		UserID:        userID,
		CreditBalance: balance,
		CreatedAt:     now,
		UpdatedAt:     now,
	}).Error)
}
