package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	gosimpleslug "github.com/gosimple/slug"
	"github.com/timehug/timehug/internal/template/domain"
	"go.uber.org/zap"
)

type Service struct {
	log  *zap.Logger
	repo domain.Repository
}

func New(log *zap.Logger, repo domain.Repository) domain.Service {
	return &Service{
		log:  log.Named("template.service"),
		repo: repo,
	}
}

func (s *Service) Resolve(ctx context.Context, ref string) (*domain.Template, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		ref = domain.DefaultSlug
	}

	var (
		template *domain.Template
		err      error
	)
	if id, parseErr := snowflake.ParseString(ref); parseErr == nil {
		template, err = s.repo.FindByID(ctx, id)
	} else {
		template, err = s.repo.FindBySlug(ctx, gosimpleslug.Make(ref))
	}
	if err != nil {
		return nil, err
	}
	if !template.IsActive {
		return nil, domain.ErrTemplateNotFound
	}
	return template, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Template, error) {
	return s.repo.ListActive(ctx)
}
