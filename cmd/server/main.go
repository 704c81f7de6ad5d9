package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/aryan0dhankhar/teamtasks/internal/domain"
	"github.com/aryan0dhankhar/teamtasks/internal/featureflags"
	"github.com/aryan0dhankhar/teamtasks/internal/handler"
	"github.com/aryan0dhankhar/teamtasks/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/teamtasks/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/teamtasks/internal/observability/metrics"
	"github.com/aryan0dhankhar/teamtasks/internal/observability/tracing"
	"github.com/aryan0dhankhar/teamtasks/internal/repository"
	"github.com/aryan0dhankhar/teamtasks/internal/repository/memory"
	"github.com/aryan0dhankhar/teamtasks/internal/security"
	"github.com/aryan0dhankhar/teamtasks/internal/security/audit"
	"github.com/aryan0dhankhar/teamtasks/internal/security/auth"
	"github.com/aryan0dhankhar/teamtasks/internal/security/middleware"
	"github.com/aryan0dhankhar/teamtasks/internal/security/ratelimit"
	"github.com/aryan0dhankhar/teamtasks/internal/service"
	"github.com/aryan0dhankhar/teamtasks/internal/worker"
	"github.com/aryan0dhankhar/teamtasks/pkg/cache"
	"github.com/aryan0dhankhar/teamtasks/pkg/config"
	"github.com/aryan0dhankhar/teamtasks/pkg/database"
)

// repositories bundles the storage backend chosen by configuration
type repositories struct {
	users    domain.UserRepository
	projects domain.ProjectRepository
	tasks    domain.TaskRepository
	ping     func(ctx context.Context) error
	close    func() error
}

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("starting teamtasks server",
		slog.String("environment", cfg.Environment),
		slog.String("store", cfg.Store),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Tracing
	shutdownTracing, err := tracing.Init(ctx, log, cfg.OTLPEndpoint, "teamtasks", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Storage
	repos, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer repos.close()

	// 5. Redis-backed cache and notification queue, or in-process fallbacks
	var (
		viewCache   domain.Cache
		notifier    domain.Notifier
		stream      handler.NotificationSource
		redisHealth func(context.Context) error
	)
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(cfg.RedisURL, log)
		if err != nil {
			log.Error("failed to connect to Redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer redisClient.Close()

		queue := redis.NewNotificationQueue(redisClient)
		viewCache = redis.NewCache(redisClient)
		notifier = queue
		stream = queue
		redisHealth = redisClient.Ping
	} else {
		log.Warn("REDIS_URL not set: using in-memory cache and log-only notifications")
		viewCache = cache.New()
		notifier = service.NewLogNotifier(log)
	}

	// 6. Security components
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, "teamtasks")
	rateLimiter := ratelimit.NewLimiter(cfg.RateLimitPerMinute, time.Minute)
	auditLogger := audit.NewLogger(log)
	authz := security.NewAuthorizationService(log)
	flags := featureflags.New(cfg.Flags)

	// 7. Services
	side := service.NewSideChannel(viewCache, notifier, cfg.CacheTTL(), log)
	authService := service.NewAuthService(repos.users, tokenManager, cfg.TokenTTL(), auditLogger, log)
	projectService := service.NewProjectService(repos.projects, repos.users, authz, side, auditLogger, log)
	taskService := service.NewTaskService(repos.tasks, repos.projects, repos.users, authz, side, auditLogger, flags, log)

	if err := authService.EnsureAdmin(ctx, cfg.BootstrapAdmin.Name, cfg.BootstrapAdmin.Email, cfg.BootstrapAdmin.Password); err != nil {
		log.Error("failed to bootstrap admin", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 8. Setup HTTP routes
	mux := http.NewServeMux()
	handler.Handlers{
		Auth:     handler.NewAuthHandler(authService, log),
		Projects: handler.NewProjectHandler(projectService, log),
		Tasks:    handler.NewTaskHandler(taskService, log),
		Health: handler.NewHealthHandler(log,
			handler.Check{Name: "store", Ping: repos.ping},
			handler.Check{Name: "redis", Ping: redisHealth},
		),
		Notifications: handler.NewNotificationsHandler(stream, log, cfg.CORSAllowedOrigins),
	}.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Chain middleware: request ID -> CORS -> JWT -> rate limit -> audit -> input checks -> tracing -> metrics
	var root http.Handler = metrics.HTTPMetricsMiddleware(mux)
	root = otelhttp.NewHandler(root, "teamtasks")
	root = middleware.SanitizeQuery(log)(root)
	root = middleware.ValidateJSONBody(log)(root)
	root = middleware.AuditMiddleware(auditLogger)(root)
	root = middleware.RateLimitMiddleware(rateLimiter, log)(root)
	root = middleware.JWTMiddleware(tokenManager, log)(root)
	root = middleware.CORSMiddleware(cfg.CORSAllowedOrigins)(root)
	root = middleware.RequestIDMiddleware(log)(root)

	// 9. Start overdue reminder worker in background
	overdueWorker := worker.NewOverdueWorker(repos.tasks, viewCache, side, log, cfg.OverdueScanInterval())
	go overdueWorker.Start(ctx)

	// 10. Start HTTP server. No write timeout: the notification stream is long-lived.
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.String("auth", "jwt"),
		slog.Int("rate_limit", cfg.RateLimitPerMinute),
		slog.String("rate_limit_window", "1m"),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", slog.String("error", err.Error()))
			sigChan <- syscall.SIGTERM
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel() // stop overdue worker
	side.Wait()
	rateLimiter.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracing shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
}

func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (*repositories, error) {
	if cfg.Store == config.StoreMemory {
		log.Warn("using in-memory store: data is lost on restart")
		store := memory.NewStore()
		return &repositories{
			users:    store.Users(),
			projects: store.Projects(),
			tasks:    store.Tasks(),
			close:    func() error { return nil },
		}, nil
	}

	pool, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}

	db := pool.DB()
	return &repositories{
		users:    repository.NewPostgresUserRepository(db, log),
		projects: repository.NewPostgresProjectRepository(db, log),
		tasks:    repository.NewPostgresTaskRepository(db, log),
		ping:     pool.Ping,
		close:    pool.Close,
	}, nil
}
