package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	// Ensure creates the profile row when absent. Existing rows are left untouched.
	Ensure(ctx context.Context, profile *Profile) error
	FindByUserID(ctx context.Context, userID snowflake.ID) (*Profile, error)
}
