package migration

import (
	authdomain "github.com/timehug/timehug/internal/auth/domain"
	"github.com/timehug/timehug/internal/config"
	creditdomain "github.com/timehug/timehug/internal/credit/domain"
	generationdomain "github.com/timehug/timehug/internal/generation/domain"
	profiledomain "github.com/timehug/timehug/internal/profile/domain"
	"github.com/timehug/timehug/internal/seed"
	templatedomain "github.com/timehug/timehug/internal/template/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// Non-postgres dialects (sqlite for dev, mysql) take the
			// schema from the models directly.
			if err := conn.AutoMigrate(
				&authdomain.User{},
				&authdomain.Session{},
				&profiledomain.Profile{},
				&creditdomain.CreditTransaction{},
				&templatedomain.Template{},
				&generationdomain.Generation{},
			); err != nil {
				return err
			}
		}

		if cfg.Bootstrap.EnsureDefaultTemplate {
			if err := seed.EnsureDefaultTemplate(conn); err != nil {
				return err
			}
		}
		if cfg.Bootstrap.EnsureDevUser {
			return seed.EnsureDevUser(conn, cfg.Bootstrap.SignupCreditGrant)
		}
		return nil
	}),
)
