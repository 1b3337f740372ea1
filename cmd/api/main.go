package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadline_backend/internal/classify"
	"leadline_backend/internal/compliance"
	"leadline_backend/internal/conversation"
	"leadline_backend/internal/delivery"
	"leadline_backend/internal/email"
	"leadline_backend/internal/events"
	"leadline_backend/internal/experiments"
	apphttp "leadline_backend/internal/http"
	"leadline_backend/internal/leads"
	"leadline_backend/internal/matching"
	"leadline_backend/internal/messaging"
	"leadline_backend/internal/partners"
	"leadline_backend/internal/scheduler"
	"leadline_backend/internal/tables"
	"leadline_backend/internal/users"
	"leadline_backend/internal/vendors"
	"leadline_backend/internal/whatsapp"
	"leadline_backend/platform/config"
	"leadline_backend/platform/db"
	"leadline_backend/platform/httpkit"
	"leadline_backend/platform/logger"
	"leadline_backend/platform/phone"
	"leadline_backend/platform/ratelimit"
	"leadline_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	phone.SetDefaultRegion(cfg.GetDefaultPhoneRegion())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	tbl, err := tables.Load(cfg.GetTablesPath())
	if err != nil {
		log.Error("failed to load keyword tables", "error", err, "path", cfg.GetTablesPath())
		panic("failed to load keyword tables: " + err.Error())
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Repositories
	// ========================================================================

	userRepo := users.New(pool)
	complianceRepo := compliance.NewRepository(pool)
	leadRepo := leads.NewRepository(pool)
	vendorRepo := vendors.NewRepository(pool)
	partnerRepo := partners.NewRepository(pool)
	experimentRepo := experiments.NewRepository(pool)
	messageRepo := messaging.New(pool)

	// ========================================================================
	// Outbound Channels
	// ========================================================================

	var smsSender delivery.TextSender
	if c := delivery.NewSMSClient(cfg, log); c != nil {
		smsSender = c
	}
	var waSender delivery.TextSender
	if c := whatsapp.NewClient(cfg, log); c != nil {
		waSender = c
	}
	var voiceSender delivery.VoiceCaller
	if c := delivery.NewVoiceClient(cfg, log); c != nil {
		voiceSender = c
	}
	var mailSender delivery.EmailSender
	if cfg.GetEmailEnabled() {
		mailSender = email.NewSenderFromConfig(cfg)
	}

	// Asynq client for the manual-support queue and payment reminders.
	var manualQueue delivery.ManualQueue
	var reminders partners.ReminderScheduler
	if cfg.GetRedisURL() != "" {
		schedClient, err := scheduler.NewClient(cfg)
		if err != nil {
			log.Error("failed to initialize scheduler client", "error", err)
			panic("failed to initialize scheduler client: " + err.Error())
		}
		defer schedClient.Close()
		manualQueue = schedClient
		reminders = schedClient
	} else {
		log.Warn("REDIS_URL not configured; manual-support queue and payment reminders disabled")
	}

	stepTimeout := cfg.GetDeliveryStepTimeout()
	if stepTimeout <= 0 {
		stepTimeout = 5 * time.Second
	}
	dispatcher := delivery.NewDispatcher(smsSender, waSender, voiceSender, mailSender,
		userRepo, manualQueue, stepTimeout, log)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	experimentSvc := experiments.NewService(experimentRepo, experimentRepo, log)
	machine := conversation.New(userRepo, complianceRepo, tbl, val, experimentSvc, eventBus, log)
	gate := compliance.NewGate(complianceRepo, userRepo, tbl, eventBus, log)
	classifier := classify.NewHTTPClassifier(cfg, log)
	materializer := leads.NewMaterializer(leadRepo, userRepo, tbl, eventBus, log)

	engine := matching.NewEngine(vendorRepo, leadRepo, leadRepo, log)
	matching.RegisterSubscriber(eventBus, engine, leadRepo, log)
	matchingModule := matching.NewModule(
		matching.NewHandler(engine, leadRepo, vendorRepo, log))

	pipeline := messaging.NewPipeline(userRepo, messageRepo, gate, machine, classifier,
		materializer, dispatcher, log)
	messagingModule := messaging.NewModule(messaging.NewHandler(pipeline, cfg, log))

	var cipher *partners.PhoneCipher
	if pem := cfg.GetPartnerRSAPrivateKeyPEM(); pem != "" {
		cipher, err = partners.NewPhoneCipher(pem)
		if err != nil {
			log.Error("failed to parse partner RSA key", "error", err)
			panic("failed to parse partner RSA key: " + err.Error())
		}
	} else {
		log.Warn("PARTNER_RSA_PRIVATE_KEY not configured; partner ingestion will reject payloads")
	}
	partnerSvc := partners.NewService(partnerRepo, cipher, userRepo, complianceRepo,
		leadRepo, reminders, eventBus, log)
	partnersModule := partners.NewModule(
		partners.NewHandler(partnerSvc, partnerRepo, val, log))

	complianceModule := compliance.NewModule(
		compliance.NewHandler(complianceRepo, log))

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	limiter := newLimiter(cfg, log)

	app := &apphttp.App{
		Config:        cfg,
		Logger:        log,
		Health:        pool,
		EventBus:      eventBus,
		APILimiter:    limiter,
		GlobalLimiter: newGlobalLimiter(cfg, log),
		Modules: []apphttp.Module{
			messagingModule,
			partnersModule,
			matchingModule,
			complianceModule,
		},
	}

	engineHTTP := app.BuildEngine()

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engineHTTP.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// newGlobalLimiter builds the engine-level per-IP token bucket from the same
// per-minute settings the API limiter uses.
func newGlobalLimiter(cfg config.RateLimitConfig, log *logger.Logger) *httpkit.IPRateLimiter {
	perMinute := cfg.GetRateLimitPerMinute()
	if perMinute <= 0 {
		log.Warn("per-IP throttle disabled; RATE_LIMIT_PER_MINUTE not set")
		return nil
	}
	burst := cfg.GetRateLimitBurst()
	if burst < 1 {
		burst = 1
	}
	return httpkit.NewIPRateLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst, log)
}

// newLimiter picks the rate-limit counter store: Redis when configured, so
// multiple instances share one window, otherwise in-process.
func newLimiter(cfg *config.Config, log *logger.Logger) ratelimit.Limiter {
	limit := cfg.GetRateLimitPerMinute() + cfg.GetRateLimitBurst()
	if cfg.GetRedisURL() == "" {
		log.Info("rate limiter using in-process store")
		return ratelimit.NewMemoryLimiter(limit, time.Minute)
	}

	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		log.Warn("invalid REDIS_URL for rate limiter; falling back to in-process store", "error", err)
		return ratelimit.NewMemoryLimiter(limit, time.Minute)
	}
	log.Info("rate limiter using redis store")
	return ratelimit.NewRedisLimiter(redis.NewClient(opt), limit, time.Minute)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
