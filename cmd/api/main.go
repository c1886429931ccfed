package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/illusia-ry-organization/illusia-ry/internal/audit"
	"github.com/illusia-ry-organization/illusia-ry/internal/auth"
	"github.com/illusia-ry-organization/illusia-ry/internal/availability"
	"github.com/illusia-ry-organization/illusia-ry/internal/bookings"
	"github.com/illusia-ry-organization/illusia-ry/internal/cart"
	"github.com/illusia-ry-organization/illusia-ry/internal/common"
	"github.com/illusia-ry-organization/illusia-ry/internal/config"
	"github.com/illusia-ry-organization/illusia-ry/internal/db"
	"github.com/illusia-ry-organization/illusia-ry/internal/events"
	"github.com/illusia-ry-organization/illusia-ry/internal/health"
	"github.com/illusia-ry-organization/illusia-ry/internal/items"
	"github.com/illusia-ry-organization/illusia-ry/internal/lock"
	"github.com/illusia-ry-organization/illusia-ry/internal/notify"
	"github.com/illusia-ry-organization/illusia-ry/internal/obs"
	"github.com/illusia-ry-organization/illusia-ry/internal/ratelimit"
	"github.com/illusia-ry-organization/illusia-ry/internal/security"
	"github.com/illusia-ry-organization/illusia-ry/internal/tasks"
	"github.com/illusia-ry-organization/illusia-ry/internal/users"

	validator "github.com/go-playground/validator/v10"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(envOrDefault("OBS_LOG_FORMAT", "json"), envOrDefault("OBS_LOG_LEVEL", "info")).
		With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "illusia")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", false)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "illusia-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}
	pool, err := db.Connect(ctx, cfg.DatabaseURL, "illusia-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()
	if tracingEnabled {
		if err := redisotel.InstrumentTracing(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	asynqOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for task queue")
	}
	asynqClient := asynq.NewClient(asynqOpt)
	defer func() { _ = asynqClient.Close() }()
	enqueuer := tasks.Enqueuer{Client: asynqClient, Queue: cfg.TaskQueueName}

	validate := validator.New()
	auditRecorder := &audit.Recorder{Pool: pool, Log: logger}

	usersSvc := &users.Service{
		Store:    &users.Repo{Pool: pool},
		Validate: validate,
		Audit:    auditRecorder,
		Log:      logger,
	}
	usersHandler := &users.Handler{Svc: usersSvc}

	bus := &events.Bus{
		Store:     &events.PGStore{Pool: pool},
		Scheduler: enqueuer,
	}
	usersSvc.Bus = bus

	source := &availability.Source{
		Pool:  pool,
		Cache: redisClient,
		TTL:   cfg.AvailabilityTTL,
	}

	itemsSvc := &items.Service{
		Store:     &items.Repo{Pool: pool},
		Validate:  validate,
		Snapshots: source,
		Log:       logger,
	}
	itemsHandler := &items.Handler{Svc: itemsSvc}

	cartStore := &cart.Store{Client: redisClient, TTL: cfg.CartTTL}
	cartSvc := &cart.Service{
		Store:        cartStore,
		Availability: source,
		Lines:        itemsSvc,
		MaxDays:      cfg.MaxBookingDays,
		Log:          logger,
	}
	cartHandler := &cart.Handler{Svc: cartSvc}

	bookingSvc := &bookings.Service{
		Store:        &bookings.Repo{Pool: pool},
		Carts:        cartStore,
		Availability: source,
		Accounts:     usersSvc,
		Snapshots:    source,
		Bus:          bus,
		Audit:        auditRecorder,
		Lock:         lock.Locker{Client: redisClient},
		LockTTL:      cfg.BookingLockTTL,
		MaxDays:      cfg.MaxBookingDays,
		Log:          logger,
	}
	bookingHandler := &bookings.Handler{Svc: bookingSvc}

	notifyHandler := &notify.Handler{Store: &notify.Store{Pool: pool}}
	auditHandler := &audit.Handler{Recorder: auditRecorder}

	authMW := auth.Middleware{
		Verifier: auth.Verifier{
			Secret:   []byte(cfg.AuthJWTSecret),
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
		},
		Roles: usersSvc,
	}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}
	bookingLimit := ratelimit.Middleware{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "rl:"},
		Window:  cfg.BookingRateWindow,
		Max:     cfg.BookingRateMax,
		OnError: func(err error) { logger.Error().Err(err).Msg("rate limiter unavailable") },
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", "")), nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers)
	r.Use(security.BodyLimit{Max: cfg.MaxRequestBodyBytes}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.Handler{Pool: pool, Redis: redisClient}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	adminRoles := []string{users.RoleAdmin, users.RoleHeadAdmin}

	r.Route("/api/v1", func(v chi.Router) {
		v.Route("/items", func(i chi.Router) {
			i.Use(authMW.Authenticate)
			itemsHandler.PublicRoutes(i)
		})

		v.Route("/users/me", func(me chi.Router) {
			me.Use(authMW.RequireAuth)
			usersHandler.MeRoutes(me)
		})

		// carts work before sign-in via the X-Cart-Session header
		v.Route("/cart", func(c chi.Router) {
			c.Use(authMW.Authenticate)
			cartHandler.Routes(c)
		})

		v.Route("/bookings", func(b chi.Router) {
			b.Use(authMW.RequireAuth)
			b.Get("/", bookingHandler.List)
			b.Get("/{bookingID}", bookingHandler.Get)
			b.Post("/{bookingID}/cancel", bookingHandler.Cancel)
			b.With(idem.Middleware, bookingLimit.Wrap).Post("/", bookingHandler.Create)
		})

		v.Route("/notifications", func(n chi.Router) {
			n.Use(authMW.RequireAuth)
			notifyHandler.Routes(n)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMW.RequireAuth)
			admin.Use(authMW.RequireRole(adminRoles...))
			admin.Route("/items", itemsHandler.AdminRoutes)
			admin.Route("/users", usersHandler.AdminRoutes)
			admin.Route("/bookings", bookingHandler.AdminRoutes)
			admin.Route("/audit-logs", auditHandler.Routes)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
