package http

import (
	"context"
	"net/http"
	"time"

	"github.com/jmehdipour/clinic-notify/internal/config"
	"github.com/jmehdipour/clinic-notify/internal/http/middleware"
	"github.com/jmehdipour/clinic-notify/internal/logger"
	"github.com/jmehdipour/clinic-notify/internal/reminder"
	"github.com/jmehdipour/clinic-notify/internal/repository"
	"github.com/jmehdipour/clinic-notify/internal/transport"
	"github.com/jmehdipour/clinic-notify/internal/webhook"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deps are the components the HTTP surface exposes. EventLog, Redis and
// Gatherer are optional.
type Deps struct {
	Config     config.Config
	Log        *zap.Logger
	Reminders  *reminder.Service
	Sender     transport.Sender
	Reconciler *webhook.Reconciler
	EventLog   repository.EventLog
	Redis      redis.UniversalClient
	Health     *Health
	Gatherer   prometheus.Gatherer
}

type Server struct {
	e   *echo.Echo
	log *zap.Logger
}

func NewServer(d Deps) *Server {
	log := logger.OrNop(d.Log)
	cfg := d.Config

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(
		echoMid.Recover(),
		echoMid.RequestID(),
		middleware.RequestLogger(log),
		echoMid.CORSWithConfig(echoMid.CORSConfig{
			AllowOrigins: cfg.HTTP.AllowedOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderContentType, "X-API-Key"},
		}),
	)

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// health
	health := d.Health
	if health == nil {
		health = NewHealth()
	}
	e.GET("/healthz", healthHandler(health))

	// middlewares
	authMW := middleware.APIKeyMiddleware(cfg.HTTP.APIKeys)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          d.Redis,
		RPS:            cfg.RateLimit.RPS,
		KeyPrefix:      "rl:api:",
		Window:         cfg.RateLimit.Window,
		RetryAfterHint: true,
	})

	// the provider authenticates with a signature, not an API key
	var verifier *webhook.SignatureVerifier
	if cfg.Webhook.ValidateSignature {
		verifier = webhook.NewSignatureVerifier(cfg.Webhook.AuthToken, cfg.Webhook.PublicURL)
	}
	e.POST("/api/whatsapp-webhook", whatsappWebhookHandler(d.Reconciler, verifier, log))

	// routes
	api := e.Group("/api", authMW, rlMW)
	api.POST("/schedule-reminder", scheduleReminderHandler(d.Reminders, log))
	api.POST("/send-whatsapp", sendWhatsAppHandler(d.Sender, cfg.Transport.CountryCode, log))
	api.GET("/reminders", listRemindersHandler(d.Reminders, log))
	api.GET("/reminders/:id", getReminderHandler(d.Reminders, log))
	api.DELETE("/reminders/:id", cancelReminderHandler(d.Reminders, log))
	if d.EventLog != nil {
		api.GET("/reports/events", listEventsHandler(d.EventLog, cfg.Transport.CountryCode, log))
	}

	return &Server{e: e, log: log}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.e }

func (s *Server) Start(addr string) error {
	s.log.Info("http: listening", zap.String("addr", addr))
	s.e.Server.ReadHeaderTimeout = 10 * time.Second
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }

func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]any{"success": false, "error": msg})
}
