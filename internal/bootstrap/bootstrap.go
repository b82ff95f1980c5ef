package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/contract-risk-assistant/internal/config"
	"github.com/kirillkom/contract-risk-assistant/internal/core/ports"
	"github.com/kirillkom/contract-risk-assistant/internal/core/usecase"
	"github.com/kirillkom/contract-risk-assistant/internal/infrastructure/analyzer/heuristic"
	"github.com/kirillkom/contract-risk-assistant/internal/infrastructure/events"
	"github.com/kirillkom/contract-risk-assistant/internal/infrastructure/events/nats"
	"github.com/kirillkom/contract-risk-assistant/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/contract-risk-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/contract-risk-assistant/internal/infrastructure/report/xlsx"
	"github.com/kirillkom/contract-risk-assistant/internal/infrastructure/repository/memory"
	"github.com/kirillkom/contract-risk-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/contract-risk-assistant/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/contract-risk-assistant/internal/infrastructure/storage/s3"
	"github.com/kirillkom/contract-risk-assistant/internal/observability/metrics"
)

// ShutdownTimeout bounds Close when the caller has no deadline of its own.
const ShutdownTimeout = 10 * time.Second

type App struct {
	Config config.Config
	Logger *slog.Logger

	HTTPMetrics *metrics.HTTPServerMetrics

	Store    *memory.DocumentStore
	IngestUC *usecase.IngestDocumentUseCase
	RisksUC  *usecase.RiskBrowserUseCase
	ChatUC   *usecase.ChatUseCase
	Feed     *usecase.ChangeFeed

	closeFns []func()
}

func New(ctx context.Context, cfg config.Config, service string, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	registry := prometheus.NewRegistry()
	httpMetrics := metrics.NewHTTPServerMetricsWithRegistry(service, registry)
	pipelineMetrics := metrics.NewPipelineMetrics(service, registry)

	executor := resilience.NewExecutor(cfg.Resilience(),
		resilience.WithLogger(logger),
		resilience.WithStateObserver(pipelineMetrics.ObserveBreaker),
	)

	app := &App{Config: cfg, Logger: logger, HTTPMetrics: httpMetrics}

	storage, err := newObjectStorage(ctx, cfg, executor)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	analyzer, err := newAnalyzer(cfg, executor, logger)
	if err != nil {
		return nil, err
	}

	rules, err := usecase.LoadAnswerRules(cfg.QARulesPath)
	if err != nil {
		return nil, fmt.Errorf("load answer rules: %w", err)
	}

	var publisher ports.EventPublisher = events.Discard{}
	if cfg.NATSURL != "" {
		natsPublisher, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init change feed publisher: %w", err)
		}
		publisher = natsPublisher
		app.closeFns = append(app.closeFns, natsPublisher.Close)
	}

	store := memory.NewDocumentStore(logger)
	app.Store = store
	app.IngestUC = usecase.NewIngestDocumentUseCase(
		store,
		storage,
		plaintext.NewExtractor(),
		analyzer,
		pipelineMetrics,
		logger,
		usecase.IngestConfig{
			MaxUploadBytes:  cfg.MaxUploadBytes,
			AnalysisTimeout: cfg.AnalysisTimeout,
		},
	)
	app.RisksUC = usecase.NewRiskBrowserUseCase(store, xlsx.NewWriter(), httpMetrics, logger)
	app.ChatUC = usecase.NewChatUseCase(store, usecase.NewAnswerEngine(rules), httpMetrics)
	app.Feed = usecase.NewChangeFeed(store, publisher, pipelineMetrics, logger)

	logger.Info("application wired",
		"analyzer", cfg.Analyzer,
		"storage", cfg.Storage,
		"change_feed", cfg.NATSURL != "",
	)
	return app, nil
}

func newObjectStorage(ctx context.Context, cfg config.Config, executor *resilience.Executor) (ports.ObjectStorage, error) {
	switch cfg.Storage {
	case config.StorageS3:
		return s3.New(ctx, s3.Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		}, executor)
	case config.StorageLocalFS, "":
		return localfs.New(cfg.StoragePath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}

func newAnalyzer(cfg config.Config, executor *resilience.Executor, logger *slog.Logger) (ports.DocumentAnalyzer, error) {
	switch cfg.Analyzer {
	case config.AnalyzerOllama:
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaTimeout)
		return ollama.NewAnalyzer(client, executor, logger), nil
	case config.AnalyzerHeuristic, "":
		return heuristic.New(), nil
	default:
		return nil, fmt.Errorf("unknown analyzer %q", cfg.Analyzer)
	}
}

// Start launches background publishers.
func (a *App) Start(ctx context.Context) {
	a.Feed.Start(ctx)
}

// Close stops the change feed, drains in-flight analyses and releases
// connections, in that order.
func (a *App) Close(ctx context.Context) {
	a.Feed.Stop()
	if err := a.IngestUC.Shutdown(ctx); err != nil {
		a.Logger.Warn("analysis drain incomplete", "error", err)
	}
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
}
