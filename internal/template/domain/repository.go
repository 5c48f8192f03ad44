package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	Create(ctx context.Context, template *Template) error
	FindByID(ctx context.Context, id snowflake.ID) (*Template, error)
	FindBySlug(ctx context.Context, slug string) (*Template, error)
	ListActive(ctx context.Context) ([]Template, error)
}
