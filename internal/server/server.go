package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/timehug/timehug/internal/auth"
	authdomain "github.com/timehug/timehug/internal/auth/domain"
	"github.com/timehug/timehug/internal/auth/session"
	"github.com/timehug/timehug/internal/config"
	"github.com/timehug/timehug/internal/credit"
	creditdomain "github.com/timehug/timehug/internal/credit/domain"
	"github.com/timehug/timehug/internal/fulfillment"
	"github.com/timehug/timehug/internal/generation"
	generationdomain "github.com/timehug/timehug/internal/generation/domain"
	"github.com/timehug/timehug/internal/generator"
	"github.com/timehug/timehug/internal/observability"
	obsmiddleware "github.com/timehug/timehug/internal/observability/logger"
	obsmetrics "github.com/timehug/timehug/internal/observability/metrics"
	obstracing "github.com/timehug/timehug/internal/observability/tracing"
	"github.com/timehug/timehug/internal/profile"
	profiledomain "github.com/timehug/timehug/internal/profile/domain"
	"github.com/timehug/timehug/internal/ratelimit"
	"github.com/timehug/timehug/internal/storage"
	"github.com/timehug/timehug/internal/template"
	templatedomain "github.com/timehug/timehug/internal/template/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	auth.Module,
	session.Module,
	profile.Module,
	credit.Module,
	template.Module,
	generation.Module,
	storage.Module,
	generator.Module,
	fulfillment.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug: obsCfg.Debug(),
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	authsvc         authdomain.Service
	sessions        *session.Manager
	genID           *snowflake.Node
	profileRepo     profiledomain.Repository
	creditSvc       creditdomain.Service
	templateSvc     templatedomain.Service
	generationSvc   generationdomain.Service
	store           storage.Store
	obsMetrics      *obsmetrics.Metrics
	generateLimiter *ratelimit.GenerateLimiter
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	Authsvc       authdomain.Service
	Sessions      *session.Manager
	GenID         *snowflake.Node
	ProfileRepo   profiledomain.Repository
	CreditSvc     creditdomain.Service
	TemplateSvc   templatedomain.Service
	GenerationSvc generationdomain.Service
	Store         storage.Store

	ObsMetrics      *obsmetrics.Metrics        `optional:"true"`
	GenerateLimiter *ratelimit.GenerateLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		authsvc:         p.Authsvc,
		sessions:        p.Sessions,
		genID:           p.GenID,
		profileRepo:     p.ProfileRepo,
		creditSvc:       p.CreditSvc,
		templateSvc:     p.TemplateSvc,
		generationSvc:   p.GenerationSvc,
		store:           p.Store,
		obsMetrics:      p.ObsMetrics,
		generateLimiter: p.GenerateLimiter,
	}

	svc.registerAuthRoutes()
	svc.registerAPIRoutes()
	svc.registerStorageRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/signup", s.Signup)
	auth.POST("/login", s.Login)
	auth.POST("/logout", s.Logout)
	auth.GET("/me", s.AuthRequired(), s.Me)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	api.POST("/generate", s.CreateGeneration)
	api.GET("/generate", s.GetGeneration)
	api.GET("/history", s.ListGenerations)
	api.GET("/templates", s.ListTemplates)
	api.GET("/credits", s.GetCredits)
	api.POST("/uploads", s.UploadImage)
}

func (s *Server) registerStorageRoutes() {
	s.engine.GET("/storage/:bucket/*key", s.ServeObject)
}
