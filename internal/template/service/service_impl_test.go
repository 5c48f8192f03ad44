package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"github.com/timehug/timehug/internal/template/domain"
	"github.com/timehug/timehug/internal/template/repository"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func TestResolveDefaultsToHugTemplate(t *testing.T) {
	svc, _, seeded := setupTemplateService(t)

	template, err := svc.Resolve(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, domain.DefaultSlug, template.Slug)
	require.Equal(t, seeded.ID, template.ID)
}

func TestResolveBySlugAndID(t *testing.T) {
	svc, _, seeded := setupTemplateService(t)
	ctx := context.Background()

	bySlug, err := svc.Resolve(ctx, seeded.Slug)
	require.NoError(t, err)
	require.Equal(t, seeded.ID, bySlug.ID)

	byID, err := svc.Resolve(ctx, seeded.ID.String())
	require.NoError(t, err)
	require.Equal(t, seeded.ID, byID.ID)

	// Slugs normalize the same way they were written.
	mixed, err := svc.Resolve(ctx, "Hug Younger Self")
	require.NoError(t, err)
	require.Equal(t, seeded.ID, mixed.ID)
}

func TestResolveUnknownTemplate(t *testing.T) {
	svc, _, _ := setupTemplateService(t)

	_, err := svc.Resolve(context.Background(), "no-such-template")
	require.ErrorIs(t, err, domain.ErrTemplateNotFound)
}

func TestResolveInactiveTemplate(t *testing.T) {
	svc, db, _ := setupTemplateService(t)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	inactive := &domain.Template{
		ID:         node.Generate(),
		Slug:       "retired-style",
		Name:       "Retired Style",
		Prompt:     "unused",
		CreditCost: 0,
		IsActive:   false,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	require.NoError(t, db.Create(inactive).Error)

	// Zero-valued fields must survive the insert as written.
	var stored domain.Template
	require.NoError(t, db.First(&stored, "slug = ?", "retired-style").Error)
	require.False(t, stored.IsActive)
	require.Equal(t, int64(0), stored.CreditCost)

	_, err = svc.Resolve(context.Background(), "retired-style")
	require.ErrorIs(t, err, domain.ErrTemplateNotFound)

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, domain.DefaultSlug, list[0].Slug)
}

func setupTemplateService(t *testing.T) (domain.Service, *gorm.DB, *domain.Template) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&domain.Template{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	seeded := &domain.Template{
		ID:         node.Generate(),
		Slug:       domain.DefaultSlug,
		Name:       "Hug Your Younger Self",
		Prompt:     "A warm embrace across time.",
		CreditCost: 1,
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	require.NoError(t, db.Create(seeded).Error)

	svc := New(zaptest.NewLogger(t), repository.New(db))
	return svc, db, seeded
}
