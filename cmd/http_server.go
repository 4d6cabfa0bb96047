package cmd

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

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/frahmantamala/document-request/internal"
	"github.com/frahmantamala/document-request/internal/auth"
	"github.com/frahmantamala/document-request/internal/catalog"
	catalogpostgres "github.com/frahmantamala/document-request/internal/catalog/postgres"
	"github.com/frahmantamala/document-request/internal/core/events"
	"github.com/frahmantamala/document-request/internal/docrequest"
	docrequestpostgres "github.com/frahmantamala/document-request/internal/docrequest/postgres"
	"github.com/frahmantamala/document-request/internal/intent"
	"github.com/frahmantamala/document-request/internal/notification"
	notificationpostgres "github.com/frahmantamala/document-request/internal/notification/postgres"
	"github.com/frahmantamala/document-request/internal/paymentgateway"
	"github.com/frahmantamala/document-request/internal/sms"
	"github.com/frahmantamala/document-request/internal/transport"
	"github.com/frahmantamala/document-request/internal/transport/rest"
	"github.com/frahmantamala/document-request/pkg/logger"
	"github.com/frahmantamala/document-request/pkg/metrics"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server that takes submissions and the gateway payment redirects`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

// intentBackend is the store plus whatever it needs to release on shutdown.
type intentBackend interface {
	docrequest.IntentStore
	Close() error
}

type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	GormDB   *gorm.DB
	Router   *chi.Mux
	Intents  intentBackend
	EventBus *events.EventBus
	Registry *prometheus.Registry
	Logger   *slog.Logger
	// cancels background workers owned by the server process
	stopWorkers context.CancelFunc
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	setupRoutes(deps)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr, "env", deps.Config.Env)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		deps.close()
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("Server failed to start", "error", err)
			deps.close()
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

// close drains event handlers before releasing the stores they may still use.
func (d *Dependencies) close() {
	d.stopWorkers()
	d.EventBus.Wait()

	err := multierr.Combine(
		d.Intents.Close(),
		d.DB.Close(),
	)
	if err != nil {
		d.Logger.Error("Shutdown close error", "error", err)
	}
}

func setupRoutes(deps *Dependencies) {
	cfg := deps.Config
	lg := deps.Logger
	baseHandler := transport.NewBaseHandler(lg)

	var reconcileMetrics *metrics.Reconciliation
	var gatherer prometheus.Gatherer
	if cfg.Observability.Metrics.Enabled {
		reconcileMetrics = metrics.NewReconciliation(deps.Registry)
		gatherer = deps.Registry
	}

	gateway := paymentgateway.NewClient(paymentgateway.Config{
		BaseURL:    cfg.Gateway.BaseURL,
		SecretKey:  cfg.Gateway.SecretKey,
		SuccessURL: cfg.Gateway.SuccessURL,
		CancelURL:  cfg.Gateway.CancelURL,
		Timeout:    cfg.Gateway.Timeout,
	}, lg, reconcileMetrics)

	var sender sms.Sender = sms.LogSender{Logger: lg}
	if cfg.SMS.Enabled {
		sender = sms.NewClient(sms.Config{
			BaseURL:    cfg.SMS.BaseURL,
			APIKey:     cfg.SMS.APIKey,
			SenderName: cfg.SMS.SenderName,
			Timeout:    cfg.SMS.Timeout,
		}, lg)
	}

	notificationRepo := notificationpostgres.NewNotificationRepository(deps.GormDB)
	notifier := notification.NewNotifier(sender, notificationRepo, lg, reconcileMetrics)

	catalogService := catalog.NewService(catalogpostgres.NewCatalogRepository(deps.DB), lg)
	requestRepo := docrequestpostgres.NewDocumentRequestRepository(deps.GormDB)

	docService := docrequest.NewService(docrequest.ServiceDeps{
		Repo:      requestRepo,
		Catalog:   catalogService,
		Checkout:  gateway,
		Intents:   deps.Intents,
		Notifier:  notifier,
		Publisher: deps.EventBus,
		Logger:    lg,
		Metrics:   reconcileMetrics,
	})
	reconciler := docrequest.NewReconciler(docrequest.ReconcilerDeps{
		Verifier:  gateway,
		Intents:   deps.Intents,
		Repo:      requestRepo,
		Notifier:  notifier,
		Publisher: deps.EventBus,
		Metrics:   reconcileMetrics,
	}, docrequest.ReconcilerConfig{
		SoftVerify:     cfg.Gateway.SoftVerify,
		FallbackMaxAge: cfg.Intent.FallbackMaxAge,
	})
	if cfg.Gateway.SoftVerify {
		lg.Warn("gateway soft verification enabled, unreachable gateway will not block reconciliation")
	}

	docrequest.NewEventHandler(lg).RegisterEventHandlers(deps.EventBus)

	tokens := auth.NewJWTTokenGenerator(cfg.Security.JWTSecret, cfg.Security.JWTIssuer, cfg.Security.AccessTokenDuration)

	handlers := rest.Handlers{
		Auth: auth.NewHandler(baseHandler, tokens),
		DocRequest: docrequest.NewHandler(baseHandler, docService, reconciler, docrequest.RedirectConfig{
			SuccessURL: cfg.Frontend.SuccessURL,
			FailureURL: cfg.Frontend.FailureURL,
		}),
		Catalog:      catalog.NewHandler(baseHandler, catalogService),
		Notification: notification.NewHandler(baseHandler, notificationRepo),
	}

	checks := map[string]rest.Checker{
		"database": deps.DB.PingContext,
	}
	if pinger, ok := deps.Intents.(interface{ Ping(context.Context) error }); ok {
		checks["intent_store"] = pinger.Ping
	}

	rest.RegisterAllRoutes(deps.Router, handlers, rest.Options{
		HealthChecks: checks,
		Gatherer:     gatherer,
		MetricsPath:  cfg.Observability.Metrics.Path,
		Logger:       lg,
	})
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := initGorm(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	intents, err := initIntentStore(workerCtx, config, lg)
	if err != nil {
		stopWorkers()
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize intent store: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Dependencies{
		Config:      config,
		Logger:      lg,
		DB:          db,
		GormDB:      gormDB,
		Router:      chi.NewRouter(),
		Intents:     intents,
		EventBus:    events.NewEventBus(lg),
		Registry:    registry,
		stopWorkers: stopWorkers,
	}, nil
}

// initIntentStore picks the configured driver. The memory store sweeps itself
// until ctx is cancelled; redis expiry is handled by key ttl plus the worker.
func initIntentStore(ctx context.Context, cfg *internal.Config, lg *slog.Logger) (intentBackend, error) {
	switch cfg.Intent.Driver {
	case internal.IntentDriverRedis:
		client, err := intent.DialRedis(ctx, intent.RedisConfig{
			URL:      cfg.Redis.URL,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			return nil, err
		}
		lg.Info("payment intents stored in redis", "ttl", cfg.Intent.TTL)
		return &redisBackend{
			RedisStore: intent.NewRedisStore(client, cfg.Intent.TTL, intent.WithLogger(lg)),
			closeFn:    client.Close,
		}, nil
	default:
		store := intent.NewMemoryStore(cfg.Intent.TTL, intent.WithLogger(lg))
		store.StartSweeper(ctx, cfg.Intent.SweepInterval)
		lg.Info("payment intents stored in memory", "ttl", cfg.Intent.TTL, "sweep_interval", cfg.Intent.SweepInterval)
		return store, nil
	}
}

type redisBackend struct {
	*intent.RedisStore
	closeFn func() error
}

func (b *redisBackend) Close() error {
	return b.closeFn()
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm shares the sqlx pool so both layers see the same connections.
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{
		TranslateError: true,
	})
}
