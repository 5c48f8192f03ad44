package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/timehug/timehug/internal/clock"
	creditdomain "github.com/timehug/timehug/internal/credit/domain"
	"github.com/timehug/timehug/internal/generation/domain"
	obsmetrics "github.com/timehug/timehug/internal/observability/metrics"
	templatedomain "github.com/timehug/timehug/internal/template/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const requiredInputImages = 2

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Repo        domain.Repository
	TemplateSvc templatedomain.Service
	CreditSvc   creditdomain.Service
	GenID       *snowflake.Node
	Clock       clock.Clock
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	repo        domain.Repository
	templateSvc templatedomain.Service
	creditSvc   creditdomain.Service
	genID       *snowflake.Node
	clock       clock.Clock
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("generation.service"),
		repo:        p.Repo,
		templateSvc: p.TemplateSvc,
		creditSvc:   p.CreditSvc,
		genID:       p.GenID,
		clock:       p.Clock,
		obsMetrics:  p.ObsMetrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Generation, error) {
	if req.UserID == 0 {
		return nil, domain.ErrInvalidInput
	}
	inputs, err := normalizeInputs(req.InputImages)
	if err != nil {
		return nil, err
	}

	template, err := s.templateSvc.Resolve(ctx, req.TemplateRef)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	generation := &domain.Generation{
		ID:             s.genID.Generate(),
		UserID:         req.UserID,
		TemplateID:     template.ID,
		TemplateSlug:   template.Slug,
		Status:         domain.StatusPending,
		InputImages:    datatypes.NewJSONSlice(inputs),
		PromptUsed:     template.Prompt,
		CreditsCharged: template.CreditCost,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	// Row insert and debit commit together. An insufficient balance rolls
	// the whole transaction back, leaving no trace of the attempt.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(generation).Error; err != nil {
			return err
		}
		return s.creditSvc.ChargeTx(ctx, tx, creditdomain.ChargeRequest{
			UserID:       req.UserID,
			GenerationID: generation.ID,
			Amount:       template.CreditCost,
			Description:  "generation: " + template.Slug,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("generation created",
		zap.String("generation_id", generation.ID.String()),
		zap.String("user_id", req.UserID.String()),
		zap.String("template", template.Slug),
		zap.Int64("credits_charged", template.CreditCost),
	)
	return generation, nil
}

func (s *Service) Get(ctx context.Context, userID, id snowflake.ID) (*domain.Generation, error) {
	if userID == 0 || id == 0 {
		return nil, domain.ErrGenerationNotFound
	}
	return s.repo.FindByIDForUser(ctx, id, userID)
}

func (s *Service) List(ctx context.Context, userID snowflake.ID, limit int) ([]domain.Generation, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidInput
	}
	return s.repo.ListByUser(ctx, userID, limit)
}

func (s *Service) Complete(ctx context.Context, id snowflake.ID, outputImage string, processingTime time.Duration) error {
	outputImage = strings.TrimSpace(outputImage)
	if outputImage == "" {
		return domain.ErrInvalidInput
	}

	if err := s.repo.MarkCompleted(ctx, id, outputImage, processingTime, s.clock.Now()); err != nil {
		return err
	}
	s.obsMetrics.RecordGeneration(ctx, domain.StatusCompleted)
	return nil
}

func (s *Service) Fail(ctx context.Context, id snowflake.ID, message string) error {
	generation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.MarkFailed(ctx, id, strings.TrimSpace(message), s.clock.Now()); err != nil {
		return err
	}

	// The refund replays safely; the ledger keys it on the generation.
	if generation.CreditsCharged > 0 {
		if err := s.creditSvc.Refund(ctx, creditdomain.RefundRequest{
			UserID:       generation.UserID,
			GenerationID: generation.ID,
			Amount:       generation.CreditsCharged,
			Description:  "refund: " + generation.TemplateSlug,
		}); err != nil {
			return err
		}
	}

	s.obsMetrics.RecordGeneration(ctx, domain.StatusFailed)
	return nil
}

func normalizeInputs(raw []string) ([]string, error) {
	inputs := make([]string, 0, len(raw))
	for _, image := range raw {
		image = strings.TrimSpace(image)
		if image == "" {
			return nil, domain.ErrInvalidInput
		}
		inputs = append(inputs, image)
	}
	if len(inputs) != requiredInputImages {
		return nil, domain.ErrInvalidInput
	}
	return inputs, nil
}
