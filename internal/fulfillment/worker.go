// Package fulfillment drains pending generations through the configured
// image backend.
package fulfillment

import (
	"context"
	"errors"
	"time"

	"github.com/timehug/timehug/internal/clock"
	generationdomain "github.com/timehug/timehug/internal/generation/domain"
	"github.com/timehug/timehug/internal/generator"
	obsmetrics "github.com/timehug/timehug/internal/observability/metrics"
	"github.com/timehug/timehug/internal/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("fulfillment worker misconfigured")

type Params struct {
	fx.In

	Log           *zap.Logger
	Repo          generationdomain.Repository
	GenerationSvc generationdomain.Service
	Generator     generator.Generator
	Store         storage.Store
	Clock         clock.Clock
	Config        Config                      `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics         `optional:"true"`
}

type Worker struct {
	log           *zap.Logger
	repo          generationdomain.Repository
	generationSvc generationdomain.Service
	generator     generator.Generator
	store         storage.Store
	clock         clock.Clock
	cfg           Config
	obsMetrics    *obsmetrics.Metrics
}

func New(p Params) (*Worker, error) {
	if p.Log == nil || p.Repo == nil || p.GenerationSvc == nil || p.Generator == nil || p.Store == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Worker{
		log:           p.Log.Named("fulfillment.worker"),
		repo:          p.Repo,
		generationSvc: p.GenerationSvc,
		generator:     p.Generator,
		store:         p.Store,
		clock:         p.Clock,
		cfg:           p.Config.withDefaults(),
		obsMetrics:    p.ObsMetrics,
	}, nil
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil {
			w.log.Warn("fulfillment run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce claims one batch and fulfills each generation in turn.
func (w *Worker) RunOnce(ctx context.Context) error {
	now := w.clock.Now()
	stale := now.Add(-w.cfg.RecoveryThreshold)

	claimCtx, cancel := context.WithTimeout(ctx, w.cfg.StoreTimeout)
	claimed, err := w.repo.ClaimBatch(claimCtx, w.cfg.BatchSize, now, stale)
	cancel()
	if err != nil {
		return err
	}

	for i := range claimed {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.fulfill(ctx, &claimed[i])
	}
	return nil
}

func (w *Worker) fulfill(ctx context.Context, generation *generationdomain.Generation) {
	log := w.log.With(
		zap.String("generation_id", generation.ID.String()),
		zap.String("user_id", generation.UserID.String()),
		zap.String("template", generation.TemplateSlug),
	)

	start := w.clock.Now()
	genCtx, cancel := context.WithTimeout(ctx, w.cfg.RequestTimeout)
	defer cancel()

	inputs := make([]string, 0, len(generation.InputImages))
	for _, key := range generation.InputImages {
		inputs = append(inputs, w.store.PublicURL(key))
	}

	result, err := w.generator.Generate(genCtx, generator.Request{
		Prompt:      generation.PromptUsed,
		InputImages: inputs,
	})
	if err != nil {
		log.Warn("generation render failed", zap.Error(err))
		w.finishFailed(ctx, generation, err)
		return
	}

	saveCtx, cancelSave := context.WithTimeout(ctx, w.cfg.StoreTimeout)
	object, err := w.store.Save(saveCtx, generation.UserID, storage.TypeOutput, result.ContentType, result.Data)
	cancelSave()
	if err != nil {
		log.Warn("output store failed", zap.Error(err))
		w.finishFailed(ctx, generation, err)
		return
	}

	elapsed := w.clock.Now().Sub(start)
	// The stored reference is the object key; handlers resolve it into a
	// public URL at read time.
	completeCtx, cancelComplete := context.WithTimeout(ctx, w.cfg.StoreTimeout)
	defer cancelComplete()
	if err := w.generationSvc.Complete(completeCtx, generation.ID, object.Key, elapsed); err != nil {
		log.Error("complete transition failed", zap.Error(err))
		return
	}

	w.obsMetrics.RecordFulfillmentDuration(ctx, generationdomain.StatusCompleted, elapsed)
	log.Info("generation fulfilled",
		zap.String("output", object.Key),
		zap.Duration("elapsed", elapsed),
	)
}

func (w *Worker) finishFailed(ctx context.Context, generation *generationdomain.Generation, cause error) {
	elapsed := w.clock.Now().Sub(generation.CreatedAt)
	failCtx, cancel := context.WithTimeout(ctx, w.cfg.StoreTimeout)
	defer cancel()
	if err := w.generationSvc.Fail(failCtx, generation.ID, cause.Error()); err != nil {
		w.log.Error("fail transition failed",
			zap.String("generation_id", generation.ID.String()),
			zap.Error(err),
		)
		return
	}
	w.obsMetrics.RecordFulfillmentDuration(ctx, generationdomain.StatusFailed, elapsed)
}
