package server

import (
	"context"
	"net/http"
	"time"

	"github.com/IkramBagban/proxlay-sub001/internal/auth"
	"github.com/IkramBagban/proxlay-sub001/internal/config"
	obsmetrics "github.com/IkramBagban/proxlay-sub001/internal/observability/metrics"
	paymentdomain "github.com/IkramBagban/proxlay-sub001/internal/payment/domain"
	subscriptiondomain "github.com/IkramBagban/proxlay-sub001/internal/subscription/domain"
	workspacedomain "github.com/IkramBagban/proxlay-sub001/internal/workspace/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, registry *prometheus.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return r
}

func registerGin(log *zap.Logger, registry *prometheus.Registry) *gin.Engine {
	return NewEngine(log, registry)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
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
	log             *zap.Logger
	subscriptionSvc subscriptiondomain.Service
	paymentSvc      paymentdomain.Service
	webhookSvc      paymentdomain.WebhookService
	workspaceSvc    workspacedomain.Service
	obsMetrics      *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	SubscriptionSvc subscriptiondomain.Service
	PaymentSvc      paymentdomain.Service
	WebhookSvc      paymentdomain.WebhookService
	WorkspaceSvc    workspacedomain.Service
	ObsMetrics      *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http"),
		subscriptionSvc: p.SubscriptionSvc,
		paymentSvc:      p.PaymentSvc,
		webhookSvc:      p.WebhookSvc,
		workspaceSvc:    p.WorkspaceSvc,
		obsMetrics:      p.ObsMetrics,
	}

	svc.registerAPIRoutes()
	svc.registerWebhookRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Subscriptions --------
	api.POST("/subscriptions", auth.RequireUser(), s.CreateSubscription)
	api.POST("/subscriptions/trial", auth.RequireUser(), s.CreateTrialSubscription)
	api.POST("/subscriptions/verify-payment", auth.RequireUser(), s.VerifyPayment)
	api.GET("/subscriptions/status", auth.RequireUser(), s.GetSubscriptionStatus)

	// -------- Workspaces --------
	api.POST("/workspaces", auth.RequireUser(), s.CreateWorkspace)
	api.POST("/workspaces/:id/members", auth.RequireUser(), s.AddWorkspaceMember)
	api.POST("/workspaces/:id/videos", auth.RequireUser(), s.RecordVideoUpload)
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/gateway", s.HandleGatewayWebhook)
}
