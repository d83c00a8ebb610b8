package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"clinic-queue-api/internal/app"
	"clinic-queue-api/internal/auth"
	"clinic-queue-api/internal/config"
	"clinic-queue-api/internal/handler"
	"clinic-queue-api/internal/middleware"
	"clinic-queue-api/internal/model"
	"clinic-queue-api/internal/notify"
	"clinic-queue-api/internal/queue"
	"clinic-queue-api/internal/session"
	"clinic-queue-api/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	ctx := context.Background()

	var (
		st   stores
		pool *pgxpool.Pool
	)
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, state is in memory and lost on restart")
		st = seedMemory(cfg.ScopeMode)
	} else {
		var err error
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("db connect failed", zap.Error(err))
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			logger.Fatal("db ping failed", zap.Error(err))
		}
		logger.Info("connected to postgres")

		migrator, err := app.NewMigrator(pool, "db/migrations")
		if err != nil {
			logger.Fatal("migrator init failed", zap.Error(err))
		}
		if err := migrator.Run(ctx); err != nil {
			logger.Fatal("migrations failed", zap.Error(err))
		}
		version, err := migrator.Version(ctx)
		if err != nil {
			logger.Fatal("migration version check failed", zap.Error(err))
		}
		migrator.Close()
		logger.Info("migrations applied", zap.Int64("version", version))

		st = store.New(pool, cfg.ScopeMode)
	}

	if err := seedAdmin(ctx, st, cfg); err != nil {
		logger.Fatal("admin seed failed", zap.Error(err))
	}

	// notification channels
	notifier, closers := buildNotifier(cfg, logger)
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	// session authority
	var sessions session.Store
	switch {
	case cfg.SessionStore == "postgres" && pool != nil:
		sessions = store.NewSessionStore(pool)
	case cfg.SessionStore == "postgres":
		logger.Warn("postgres session store needs DATABASE_URL, using memory")
		sessions = session.NewMemoryStore()
	default:
		sessions = session.NewMemoryStore()
	}
	authority := session.NewAuthority(st, sessions, cfg.SessionTTL, logger)

	qsvc := queue.NewService(st, notifier, queue.Config{
		Mode:           cfg.ScopeMode,
		ServiceMinutes: cfg.ServiceMinutes,
		NotifyWindow:   cfg.NotifyWindow,
		OpeningHour:    cfg.OpeningHour,
	}, logger)

	jobs, err := app.StartJobs(qsvc, authority, logger)
	if err != nil {
		logger.Fatal("jobs start failed", zap.Error(err))
	}
	defer jobs.Stop()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	h := handler.New(qsvc, authority, st, st, cfg.ScopeMode, logger)
	rl := middleware.NewRateLimiter(5, 10)

	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: h.Router(rl),
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.ListenAddr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", zap.Error(err))
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

// stores is the persistence surface main wires together; both the
// Postgres store and the in-memory store provide it.
type stores interface {
	queue.Store
	handler.Directory
	handler.Users
	SeedAdmin(ctx context.Context, u *model.User) error
}

// seedMemory mirrors the doctors the migrations seed, so doctor-scoped
// queues work without a database.
func seedMemory(mode model.ScopeMode) *store.Memory {
	mem := store.NewMemory(mode)
	mem.AddDoctor(model.Doctor{ID: "doc-ajay", Name: "Dr. Ajay", Specialty: "General Medicine", TokenPrefix: "A", Active: true})
	mem.AddDoctor(model.Doctor{ID: "doc-vinay", Name: "Dr. Vinay", Specialty: "Pediatrics", TokenPrefix: "B", Active: true})
	return mem
}

func seedAdmin(ctx context.Context, st stores, cfg *config.Config) error {
	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}
	return st.SeedAdmin(ctx, &model.User{
		ID:           uuid.New().String(),
		Username:     cfg.AdminUsername,
		PasswordHash: hash,
		Name:         "System Administrator",
		Role:         "admin",
	})
}

type closer interface{ Close() error }

func buildNotifier(cfg *config.Config, logger *zap.Logger) (notify.Notifier, []closer) {
	var notifiers []notify.Notifier
	var closers []closer

	if cfg.SMSGatewayURL != "" {
		notifiers = append(notifiers, notify.NewSMSGateway(cfg.SMSGatewayURL, cfg.SMSGatewayKey))
		logger.Info("sms gateway notifier enabled")
	}
	if cfg.KafkaBroker != "" {
		kn := notify.NewKafkaNotifier(cfg.KafkaBroker, cfg.KafkaTopic)
		notifiers = append(notifiers, kn)
		closers = append(closers, kn)
		logger.Info("kafka notifier enabled", zap.String("topic", cfg.KafkaTopic))
	}

	switch len(notifiers) {
	case 0:
		logger.Info("no notification channel configured, logging only")
		return &notify.LogNotifier{Logger: logger}, nil
	case 1:
		return notifiers[0], closers
	default:
		return &notify.Multi{Notifiers: notifiers}, closers
	}
}
