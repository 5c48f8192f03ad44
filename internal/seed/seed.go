// Package seed bootstraps reference data for local and self-hosted installs.
package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/timehug/timehug/internal/auth/domain"
	"github.com/timehug/timehug/internal/auth/password"
	creditdomain "github.com/timehug/timehug/internal/credit/domain"
	profiledomain "github.com/timehug/timehug/internal/profile/domain"
	templatedomain "github.com/timehug/timehug/internal/template/domain"
	"gorm.io/gorm"
)

const (
	defaultTemplateName        = "Hug Your Younger Self"
	defaultTemplateDescription = "Upload a photo of yourself today and one from your childhood to receive an image of the two of you embracing."
	defaultTemplatePrompt      = "A heartwarming, photorealistic portrait of the adult from the first reference photo gently hugging the child from the second reference photo. Soft natural light, warm tones, shallow depth of field."

	defaultDevEmail    = "dev@timehug.local"
	defaultDevPassword = "timehug-dev"
	defaultDevDisplay  = "Dev User"
)

// EnsureDefaultTemplate seeds the template used when requests name none.
func EnsureDefaultTemplate(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := ensureTemplateTx(ctx, tx, node)
		return err
	})
}

// EnsureDevUser seeds a login with starting credits for development.
func EnsureDevUser(db *gorm.DB, creditGrant int64) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user authdomain.User
		err := tx.WithContext(ctx).
			Where("email = ?", defaultDevEmail).
			First(&user).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			hashed, err := password.Hash(defaultDevPassword)
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			user = authdomain.User{
				ID:           node.Generate(),
				Email:        strings.ToLower(defaultDevEmail),
				DisplayName:  defaultDevDisplay,
				PasswordHash: &hashed,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := tx.WithContext(ctx).Create(&user).Error; err != nil {
				return err
			}
		}

		var profile profiledomain.Profile
		err = tx.WithContext(ctx).
			Where("user_id = ?", user.ID).
			First(&profile).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			now := time.Now().UTC()
			profile = profiledomain.Profile{
				UserID:        user.ID,
				DisplayName:   user.DisplayName,
				CreditBalance: creditGrant,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if err := tx.WithContext(ctx).Create(&profile).Error; err != nil {
				return err
			}
			if creditGrant > 0 {
				grant := creditdomain.CreditTransaction{
					ID:          node.Generate(),
					UserID:      user.ID,
					Type:        creditdomain.TypeGrant,
					Amount:      creditGrant,
					Description: "development starting balance",
					CreatedAt:   now,
				}
				if err := tx.WithContext(ctx).Create(&grant).Error; err != nil {
					return err
				}
			}
		}

		return nil
	})
}

func ensureTemplateTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) (*templatedomain.Template, error) {
	var template templatedomain.Template
	err := tx.WithContext(ctx).
		Where("slug = ?", templatedomain.DefaultSlug).
		First(&template).Error
	if err == nil {
		return &template, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	template = templatedomain.Template{
		ID:          node.Generate(),
		Slug:        templatedomain.DefaultSlug,
		Name:        defaultTemplateName,
		Description: defaultTemplateDescription,
		Prompt:      defaultTemplatePrompt,
		CreditCost:  1,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.WithContext(ctx).Create(&template).Error; err != nil {
		return nil, err
	}
	return &template, nil
}
