package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/timehug/timehug/internal/template/domain"
	"github.com/timehug/timehug/pkg/db"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func New(conn *gorm.DB) domain.Repository {
	return &repo{db: conn}
}

func (r *repo) Create(ctx context.Context, template *domain.Template) error {
	err := r.db.WithContext(ctx).Create(template).Error
	if db.IsDuplicateKeyErr(err) {
		return domain.ErrTemplateExists
	}
	return err
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*domain.Template, error) {
	var template domain.Template
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&template).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTemplateNotFound
	}
	if err != nil {
		return nil, err
	}
	return &template, nil
}

func (r *repo) FindBySlug(ctx context.Context, slug string) (*domain.Template, error) {
	var template domain.Template
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&template).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTemplateNotFound
	}
	if err != nil {
		return nil, err
	}
	return &template, nil
}

func (r *repo) ListActive(ctx context.Context) ([]domain.Template, error) {
	var templates []domain.Template
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&templates).Error
	if err != nil {
		return nil, err
	}
	return templates, nil
}
