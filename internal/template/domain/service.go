package domain

import "context"

type Service interface {
	// Resolve finds an active template by ID or slug. An empty reference
	// resolves to the default template.
	Resolve(ctx context.Context, ref string) (*Template, error)
	List(ctx context.Context) ([]Template, error)
}
