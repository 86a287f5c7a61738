package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/api/handlers"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/health"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/metrics"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/middleware"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/services"
	"github.com/sirupsen/logrus"
)

// RouterConfig carries everything the HTTP surface is built from.
type RouterConfig struct {
	SessionService  *services.SessionService
	FeedbackService *services.FeedbackService
	AnalysisService *services.AnalysisService
	HealthChecker   *health.HealthChecker
	RateLimiter     *middleware.RateLimiter
	Metrics         *metrics.Metrics
	Logger          *logrus.Logger

	CORSOrigins []string
	// UploadsDir is served under /uploads when attachments are stored locally.
	UploadsDir string
	// JWTSecret enables bearer authentication on /api/v1 when set.
	JWTSecret           string
	RequireSubscription bool
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.CORSOrigins))
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.Metrics(cfg.Metrics))

	healthHandler := handlers.NewHealthHandler(cfg.HealthChecker)
	sessionHandler := handlers.NewSessionHandler(cfg.SessionService, cfg.Logger)
	feedbackHandler := handlers.NewFeedbackHandler(cfg.FeedbackService, cfg.AnalysisService, cfg.Logger)

	router.GET("/health", healthHandler.HandleHealth)
	if cfg.Metrics != nil {
		router.GET("/metrics", cfg.Metrics.ExportHandler())
	}
	if cfg.UploadsDir != "" {
		router.Static("/uploads", cfg.UploadsDir)
	}

	v1 := router.Group("/api/v1")
	if cfg.RateLimiter != nil {
		v1.Use(cfg.RateLimiter.RateLimit())
	}
	if cfg.JWTSecret != "" {
		v1.Use(middleware.Auth([]byte(cfg.JWTSecret), cfg.Logger))
		if cfg.RequireSubscription {
			v1.Use(middleware.RequireSubscription())
		}
	}
	{
		sessions := v1.Group("/sessions")
		sessions.POST("", sessionHandler.HandleCreate)
		sessions.GET("", sessionHandler.HandleList)
		sessions.GET("/:id", sessionHandler.HandleGet)
		sessions.PATCH("/:id", sessionHandler.HandleRename)
		sessions.PUT("/:id/pin", sessionHandler.HandlePin)
		sessions.DELETE("/:id", sessionHandler.HandleDelete)
		sessions.POST("/:id/chat", sessionHandler.HandleChat)
		sessions.GET("/:id/analysis", feedbackHandler.HandleAnalysis)
		sessions.POST("/:id/queries/:queryId/feedback", feedbackHandler.HandleFeedback)
	}

	return router
}
