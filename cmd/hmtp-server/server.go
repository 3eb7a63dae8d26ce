package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hmtp/hmtp/internal/config"
	"github.com/hmtp/hmtp/internal/domain/audit"
	"github.com/hmtp/hmtp/internal/domain/billing"
	"github.com/hmtp/hmtp/internal/domain/identity"
	"github.com/hmtp/hmtp/internal/domain/patient"
	"github.com/hmtp/hmtp/internal/domain/pharmacy"
	"github.com/hmtp/hmtp/internal/domain/scheduling"
	"github.com/hmtp/hmtp/internal/platform/apperr"
	"github.com/hmtp/hmtp/internal/platform/auth"
	"github.com/hmtp/hmtp/internal/platform/db"
	"github.com/hmtp/hmtp/internal/platform/events"
	"github.com/hmtp/hmtp/internal/platform/lock"
	"github.com/hmtp/hmtp/internal/platform/middleware"
	"github.com/hmtp/hmtp/internal/platform/telemetry"
)

const version = "0.1.0"

// routeRegistrar is implemented by every domain handler.
type routeRegistrar interface {
	RegisterRoutes(api *echo.Group)
}

// stack holds the wired services for one process.
type stack struct {
	tokens     *auth.TokenService
	audit      *audit.Recorder
	identity   *identity.Service
	patients   *patient.Service
	scheduling *scheduling.Service
	booking    *scheduling.BookingCoordinator
	pharmacy   *pharmacy.Service
	ledger     *pharmacy.Ledger
	billing    *billing.Service
}

func newStack(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, locker lock.Locker, pub events.Publisher) *stack {
	tx := db.NewTransactor(pool)
	rec := audit.NewRecorder(audit.NewStorePG(pool))
	tokens := auth.NewTokenService(cfg.SigningKey(), cfg.JWTIssuer, cfg.TokenTTL)
	notifier := events.NewNotifier(pub, logger)

	patients := patient.NewService(patient.NewRepoPG(pool), tx, rec)

	doctors := scheduling.NewDoctorRepoPG(pool)
	windows := scheduling.NewAvailabilityRepoPG(pool)
	sched := scheduling.NewService(doctors, windows, tx, rec)
	booking := scheduling.NewBookingCoordinator(scheduling.BookingDeps{
		Appointments: scheduling.NewAppointmentRepoPG(pool),
		Doctors:      doctors,
		Windows:      windows,
		Patients:     patients,
		Tx:           tx,
		Locker:       locker,
		Audit:        rec,
		Notifier:     notifier,
	})

	meds := pharmacy.NewMedicineRepoPG(pool)
	rx := pharmacy.NewPrescriptionRepoPG(pool)

	return &stack{
		tokens:     tokens,
		audit:      rec,
		identity:   identity.NewService(identity.NewRepoPG(pool), tokens, tx, rec),
		patients:   patients,
		scheduling: sched,
		booking:    booking,
		pharmacy:   pharmacy.NewService(meds, rx, patients, pharmacy.ExistsFunc(sched.DoctorExists), tx, rec),
		ledger:     pharmacy.NewLedger(meds, rx, tx, rec, notifier),
		billing: billing.NewService(billing.NewInvoiceRepoPG(pool), billing.NewPaymentRepoPG(pool),
			billing.NewClaimRepoPG(pool), patients, tx, rec),
	}
}

func (s *stack) handlers() []routeRegistrar {
	return []routeRegistrar{
		identity.NewHandler(s.identity),
		patient.NewHandler(s.patients),
		scheduling.NewHandler(s.scheduling, s.booking),
		pharmacy.NewHandler(s.pharmacy, s.ledger),
		billing.NewHandler(s.billing),
		audit.NewHandler(s.audit),
	}
}

// newEcho builds the HTTP server with the global middleware chain. tenant
// binds the authenticated tenant to a pooled connection; it runs after
// authentication so it only ever sees a verified tenant id.
func newEcho(cfg *config.Config, logger zerolog.Logger, gate *auth.Gate, tenant echo.MiddlewareFunc, handlers ...routeRegistrar) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(audit.RequestMeta())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.Sanitize(logger))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderXRequestID},
	}))
	e.Use(telemetry.Metrics())
	e.Use(telemetry.Tracing())
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(auth.Middleware(gate))
	e.Use(tenant)

	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	})
	e.Use(limiter.Middleware())

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"service": "hmtp", "version": version})
	})
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	e.GET("/metrics", telemetry.Handler())

	api := e.Group("/api/v1")
	for _, h := range handlers {
		h.RegisterRoutes(api)
	}
	return e
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)

	ctx := context.Background()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		ServiceVersion: version,
		Environment:    cfg.Env,
		Endpoint:       cfg.OTLPEndpoint,
		Insecure:       cfg.OTLPInsecure,
		SampleRatio:    cfg.TraceSampling,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise tracing")
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	pool, err := openPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	prometheus.MustRegister(telemetry.NewPoolCollector(pool))
	logger.Info().Msg("connected to database")

	var locker lock.Locker = lock.NoopLocker{}
	if cfg.RedisURL != "" {
		var client *redis.Client
		client, err = lock.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer client.Close()
		locker = lock.NewRedisLocker(client, cfg.BookingLockTTL, cfg.BookingLockTTL)
		logger.Info().Msg("booking locks backed by redis")
	}

	var pub events.Publisher = events.NopPublisher{}
	if cfg.AMQPURL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to amqp")
		}
		defer amqpPub.Close()
		pub = amqpPub
		logger.Info().Str("exchange", cfg.AMQPExchange).Msg("publishing events to amqp")
	}

	st := newStack(cfg, logger, pool, locker, pub)
	gate := auth.NewGate(st.tokens, st.identity)
	e := newEcho(cfg, logger, gate, db.TenantMiddleware(pool, auth.Skipper), st.handlers()...)
	e.GET("/health/db", db.HealthHandler(pool, logger))

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
