package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/timehug/timehug/internal/clock"
	creditdomain "github.com/timehug/timehug/internal/credit/domain"
	obsmetrics "github.com/timehug/timehug/internal/observability/metrics"
	profiledomain "github.com/timehug/timehug/internal/profile/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) creditdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("credit.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Charge(ctx context.Context, req creditdomain.ChargeRequest) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.ChargeTx(ctx, tx, req)
	})
}

func (s *Service) ChargeTx(ctx context.Context, tx *gorm.DB, req creditdomain.ChargeRequest) error {
	if req.UserID == 0 {
		return creditdomain.ErrInvalidUser
	}
	if req.GenerationID == 0 {
		return creditdomain.ErrInvalidGeneration
	}
	if req.Amount <= 0 {
		return creditdomain.ErrInvalidAmount
	}

	generationID := req.GenerationID
	entry := &creditdomain.CreditTransaction{
		ID:           s.genID.Generate(),
		UserID:       req.UserID,
		GenerationID: &generationID,
		Type:         creditdomain.TypeGenerationCharge,
		Amount:       -req.Amount,
		Description:  strings.TrimSpace(req.Description),
		CreatedAt:    s.clock.Now(),
	}
	result := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "generation_id"}, {Name: "type"}},
		DoNothing: true,
	}).Create(entry)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Replay of an already recorded charge.
		return nil
	}

	update := tx.WithContext(ctx).Exec(
		`UPDATE profiles
		 SET credit_balance = credit_balance - ?, updated_at = ?
		 WHERE user_id = ? AND credit_balance >= ?`,
		req.Amount, s.clock.Now(), req.UserID, req.Amount,
	)
	if update.Error != nil {
		return update.Error
	}
	if update.RowsAffected == 0 {
		available, err := balanceTx(tx, req.UserID)
		if err != nil {
			return err
		}
		return &creditdomain.InsufficientCreditsError{
			Required:  req.Amount,
			Available: available,
		}
	}

	s.obsMetrics.RecordCreditDebit(ctx, req.Amount)
	s.log.Info("credits charged",
		zap.String("user_id", req.UserID.String()),
		zap.String("generation_id", req.GenerationID.String()),
		zap.Int64("amount", req.Amount),
	)
	return nil
}

func (s *Service) Refund(ctx context.Context, req creditdomain.RefundRequest) error {
	if req.UserID == 0 {
		return creditdomain.ErrInvalidUser
	}
	if req.GenerationID == 0 {
		return creditdomain.ErrInvalidGeneration
	}
	if req.Amount <= 0 {
		return creditdomain.ErrInvalidAmount
	}

	refunded := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Only a recorded charge can be refunded. A generation that failed
		// before its charge landed has nothing to restore.
		var charges int64
		err := tx.Model(&creditdomain.CreditTransaction{}).
			Where("generation_id = ? AND type = ? AND user_id = ?",
				req.GenerationID, creditdomain.TypeGenerationCharge, req.UserID).
			Count(&charges).Error
		if err != nil {
			return err
		}
		if charges == 0 {
			return nil
		}

		generationID := req.GenerationID
		entry := &creditdomain.CreditTransaction{
			ID:           s.genID.Generate(),
			UserID:       req.UserID,
			GenerationID: &generationID,
			Type:         creditdomain.TypeRefund,
			Amount:       req.Amount,
			Description:  strings.TrimSpace(req.Description),
			CreatedAt:    s.clock.Now(),
		}
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "generation_id"}, {Name: "type"}},
			DoNothing: true,
		}).Create(entry)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		update := tx.Exec(
			`UPDATE profiles
			 SET credit_balance = credit_balance + ?, updated_at = ?
			 WHERE user_id = ?`,
			req.Amount, s.clock.Now(), req.UserID,
		)
		if update.Error != nil {
			return update.Error
		}
		if update.RowsAffected == 0 {
			return profiledomain.ErrProfileNotFound
		}

		refunded = true
		return nil
	})
	if err != nil {
		return err
	}

	if refunded {
		s.obsMetrics.RecordCreditRefund(ctx, req.Amount)
		s.log.Info("credits refunded",
			zap.String("user_id", req.UserID.String()),
			zap.String("generation_id", req.GenerationID.String()),
			zap.Int64("amount", req.Amount),
		)
	}
	return nil
}

func (s *Service) Grant(ctx context.Context, req creditdomain.GrantRequest) error {
	if req.UserID == 0 {
		return creditdomain.ErrInvalidUser
	}
	if req.Amount <= 0 {
		return creditdomain.ErrInvalidAmount
	}
	txType := strings.TrimSpace(req.Type)
	if txType == "" {
		txType = creditdomain.TypeGrant
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(&profiledomain.Profile{
			UserID:        req.UserID,
			CreditBalance: 0,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		if result.Error != nil {
			return result.Error
		}

		update := tx.Exec(
			`UPDATE profiles
			 SET credit_balance = credit_balance + ?, updated_at = ?
			 WHERE user_id = ?`,
			req.Amount, now, req.UserID,
		)
		if update.Error != nil {
			return update.Error
		}

		return tx.Create(&creditdomain.CreditTransaction{
			ID:          s.genID.Generate(),
			UserID:      req.UserID,
			Type:        txType,
			Amount:      req.Amount,
			Description: strings.TrimSpace(req.Description),
			CreatedAt:   now,
		}).Error
	})
}

func (s *Service) Balance(ctx context.Context, userID snowflake.ID) (int64, error) {
	if userID == 0 {
		return 0, creditdomain.ErrInvalidUser
	}
	return balanceTx(s.db.WithContext(ctx), userID)
}

func (s *Service) ListTransactions(ctx context.Context, userID snowflake.ID, limit int) ([]creditdomain.CreditTransaction, error) {
	if userID == 0 {
		return nil, creditdomain.ErrInvalidUser
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var rows []creditdomain.CreditTransaction
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// balanceTx reads the balance, treating a missing profile as zero.
func balanceTx(tx *gorm.DB, userID snowflake.ID) (int64, error) {
	var profile profiledomain.Profile
	err := tx.Where("user_id = ?", userID).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return profile.CreditBalance, nil
}
