// Command auditserver runs the web performance audit HTTP service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pagepulse/pagepulse/internal/api"
	"github.com/pagepulse/pagepulse/internal/audit"
	"github.com/pagepulse/pagepulse/internal/backend"
	"github.com/pagepulse/pagepulse/internal/backend/chrome"
	"github.com/pagepulse/pagepulse/internal/backend/insights"
	"github.com/pagepulse/pagepulse/internal/clock/system"
	"github.com/pagepulse/pagepulse/internal/config"
	"github.com/pagepulse/pagepulse/internal/discover"
	iduuid "github.com/pagepulse/pagepulse/internal/id/uuid"
	"github.com/pagepulse/pagepulse/internal/logging"
	pubmem "github.com/pagepulse/pagepulse/internal/publisher/memory"
	"github.com/pagepulse/pagepulse/internal/publisher/pubsub"
	"github.com/pagepulse/pagepulse/internal/storage/gcs"
	storemem "github.com/pagepulse/pagepulse/internal/storage/memory"
	"github.com/pagepulse/pagepulse/internal/storage/postgres"
	"github.com/pagepulse/pagepulse/internal/tasks"
	"github.com/pagepulse/pagepulse/internal/tasks/cloudtasks"
	"github.com/pagepulse/pagepulse/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional, env vars used otherwise)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush on exit
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry.Init()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	clk := system.New()
	mapping := audit.DefaultFieldMapping()

	auditor, cleanup, err := buildAuditor(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	formatter, err := audit.NewFormatter(mapping, clk)
	if err != nil {
		return fmt.Errorf("create formatter: %w", err)
	}
	runner := audit.NewRunner(auditor, logger)

	store, storeClose, err := buildResultStore(ctx, cfg, mapping, logger)
	if err != nil {
		return err
	}
	defer storeClose()

	reports, reportsClose, err := buildReportStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer reportsClose()

	publisher, pubClose, err := buildPublisher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pubClose()

	service := audit.NewService(
		runner,
		formatter,
		store,
		reports,
		publisher,
		iduuid.NewGenerator(),
		audit.ServiceConfig{ReportPrefix: cfg.Storage.Prefix, Topic: cfg.Audit.Topic},
		logger,
	)

	queue, lister, queueClose, err := buildQueue(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer queueClose()

	callbackURL := cfg.Audit.CallbackURL
	if callbackURL == "" {
		// Only reachable when the queue is disabled; Schedule fails before
		// the callback is ever dispatched.
		callbackURL = fmt.Sprintf("http://localhost:%d/audit", cfg.Server.Port)
	}
	scheduler, err := tasks.NewScheduler(queue, clk, tasks.SchedulerConfig{
		CallbackURL: callbackURL,
		ChunkSize:   cfg.Audit.ChunkSize,
		Stagger:     cfg.Stagger(),
	}, logger)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	reporter, err := tasks.NewReporter(lister)
	if err != nil {
		return fmt.Errorf("create reporter: %w", err)
	}

	collector := discover.New(discover.Config{
		UserAgent: cfg.Discover.UserAgent,
		Timeout:   time.Duration(cfg.Discover.TimeoutSeconds) * time.Second,
		MaxURLs:   cfg.Discover.MaxURLs,
	})

	server := api.NewServer(service, scheduler, reporter, collector, cfg, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.Int("port", cfg.Server.Port),
			zap.String("backend", cfg.Audit.Backend),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func buildAuditor(cfg config.Config) (audit.Auditor, func(), error) {
	switch cfg.Audit.Backend {
	case config.BackendChrome:
		chromeAuditor, err := chrome.New(chrome.Config{
			NavigationTimeout: time.Duration(cfg.Chrome.NavTimeoutSec) * time.Second,
			Settle:            time.Duration(cfg.Chrome.SettleMillis) * time.Millisecond,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create chrome auditor: %w", err)
		}
		instrumented := backend.Instrumented{Name: config.BackendChrome, Inner: chromeAuditor}
		return instrumented, chromeAuditor.Close, nil
	case config.BackendInsights:
		insightsAuditor := insights.New(insights.Config{
			Endpoint: cfg.Insights.Endpoint,
			APIKey:   cfg.Insights.APIKey,
			Timeout:  time.Duration(cfg.Insights.TimeoutSeconds) * time.Second,
		})
		instrumented := backend.Instrumented{Name: config.BackendInsights, Inner: insightsAuditor}
		return instrumented, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown audit backend %q", cfg.Audit.Backend)
	}
}

func buildResultStore(ctx context.Context, cfg config.Config, mapping audit.FieldMapping, logger *zap.Logger) (audit.ResultStore, func(), error) {
	switch cfg.DB.Provider {
	case "postgres":
		store, err := postgres.NewResultStore(ctx, postgres.ResultStoreConfig{
			DSN:      cfg.DB.DSN,
			Table:    cfg.DB.Table,
			MaxConns: cfg.DB.MaxConns,
		}, mapping)
		if err != nil {
			return nil, nil, fmt.Errorf("create postgres store: %w", err)
		}
		return store, store.Close, nil
	case "memory":
		logger.Warn("using in-memory result store, records are not durable")
		return storemem.NewResultStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown db provider %q", cfg.DB.Provider)
	}
}

func buildReportStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (audit.ReportStore, func(), error) {
	switch cfg.Storage.Provider {
	case "gcs":
		store, err := gcs.NewReportStore(ctx, cfg.Storage.Bucket, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("create gcs report store: %w", err)
		}
		closeStore := func() {
			if err := store.Close(); err != nil {
				logger.Warn("close gcs report store failed", zap.Error(err))
			}
		}
		return store, closeStore, nil
	case "noop":
		return nil, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
}

func buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (audit.Publisher, func(), error) {
	switch cfg.PubSub.Provider {
	case "pubsub":
		pub, err := pubsub.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicID)
		if err != nil {
			return nil, nil, fmt.Errorf("create pubsub publisher: %w", err)
		}
		closePub := func() {
			if err := pub.Close(); err != nil {
				logger.Warn("close pubsub publisher failed", zap.Error(err))
			}
		}
		return pub, closePub, nil
	case "memory":
		logger.Warn("using in-memory publisher, completion events are not delivered")
		return pubmem.New(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown pubsub provider %q", cfg.PubSub.Provider)
	}
}

func buildQueue(ctx context.Context, cfg config.Config, logger *zap.Logger) (tasks.Queue, tasks.Lister, func(), error) {
	if !cfg.TasksConfigured() {
		logger.Warn("cloud tasks is not configured, async audits are disabled")
		return tasks.Disabled{}, tasks.Disabled{}, func() {}, nil
	}
	client, err := cloudtasks.New(ctx, cloudtasks.Config{
		ProjectID:  cfg.Tasks.ProjectID,
		LocationID: cfg.Tasks.LocationID,
		QueueID:    cfg.Tasks.QueueID,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create cloud tasks client: %w", err)
	}
	closeClient := func() {
		if err := client.Close(); err != nil {
			logger.Warn("close cloud tasks client failed", zap.Error(err))
		}
	}
	return client, client, closeClient, nil
}
