package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"newsdigest/internal/aggregate"
	"newsdigest/internal/config"
	"newsdigest/internal/dedup"
	"newsdigest/internal/domain"
	"newsdigest/internal/infrastructure/email"
	"newsdigest/internal/infrastructure/llm"
	"newsdigest/internal/infrastructure/scheduler"
	"newsdigest/internal/infrastructure/source"
	"newsdigest/internal/infrastructure/storage"
	"newsdigest/internal/logging"
	"newsdigest/internal/metrics"
	"newsdigest/internal/ports"
	"newsdigest/internal/rank"
	"newsdigest/internal/usecase"
)

// Application wires configuration to the pipeline and its adapters.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	pipeline  *usecase.Pipeline
	topics    []usecase.Topic
	collector *metrics.Collector
	closers   []func() error
}

// New builds a runnable application instance. The history store is Postgres
// when a DSN is configured, otherwise the JSON file store; summarization and
// delivery stay disabled until their credentials are present.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{cfg: cfg, logger: baseLogger}

	collector, err := metrics.NewCollector()
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	app.collector = collector

	history, err := app.buildHistory(ctx)
	if err != nil {
		return nil, err
	}

	var summarizer ports.Summarizer
	if cfg.OpenAI.APIKey != "" {
		summarizer = llm.NewSummarizer(
			cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.MaxTokens, cfg.OpenAI.Temperature)
	} else {
		baseLogger.Warn("no OpenAI key configured, digests use article descriptions")
	}

	var composer ports.Composer
	var sender ports.Sender
	if cfg.Email.Host != "" && cfg.Email.From != "" && cfg.Email.Recipient != "" {
		composer = email.NewComposer()
		sender = email.NewSender(email.Config{
			Host:      cfg.Email.Host,
			Port:      cfg.Email.Port,
			Username:  cfg.Email.Username,
			Password:  cfg.Email.Password,
			From:      cfg.Email.From,
			Recipient: cfg.Email.Recipient,
		})
	} else {
		baseLogger.Warn("email delivery not configured, runs stop after summarization")
	}

	weights := rank.Weights{
		Depth:   cfg.Ranking.DepthWeight,
		Recency: cfg.Ranking.RecencyWeight,
		Trust:   cfg.Ranking.TrustWeight,
	}

	app.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Aggregator:    aggregate.New(cfg.Pipeline.SourceTimeout(), baseLogger.With("component", "aggregator")),
		Deduplicator:  dedup.New(cfg.Dedup.TitleThreshold, baseLogger.With("component", "dedup")),
		Ranker:        rank.New(weights, baseLogger.With("component", "ranker")),
		History:       history,
		Summarizer:    summarizer,
		Composer:      composer,
		Sender:        sender,
		Metrics:       collector,
		Logger:        baseLogger.With("component", "pipeline"),
		HistoryWindow: cfg.History.Window(),
		TopicBudget:   cfg.Pipeline.TopicBudget(),
	})

	app.topics = buildTopics(cfg)

	return app, nil
}

// Run executes one pipeline pass over all configured topics.
func (a *Application) Run(ctx context.Context) error {
	a.serveMetrics(ctx)

	results := a.pipeline.Run(ctx, a.topics)

	failed := 0
	for _, result := range results {
		if result.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d topic runs failed", failed, len(results))
	}
	return nil
}

// RunScheduled loops the pipeline on the configured cron expression until
// the context is canceled.
func (a *Application) RunScheduled(ctx context.Context) error {
	a.serveMetrics(ctx)

	driver := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, a.cfg.Scheduler.Location())
	sched := usecase.NewScheduler(driver, a.pipeline, a.topics)

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started", "cron", a.cfg.Scheduler.CronExpression)

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return sched.Stop(stopCtx)
}

// Close releases long-lived resources such as the database pool.
func (a *Application) Close() error {
	var firstErr error
	for _, closer := range a.closers {
		if err := closer(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (a *Application) buildHistory(ctx context.Context) (ports.HistoryStore, error) {
	if dsn := a.cfg.History.DSN; dsn != "" {
		store, err := storage.OpenPostgresHistory(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("open history store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	}
	return storage.NewFileHistory(a.cfg.History.File), nil
}

func (a *Application) serveMetrics(ctx context.Context) {
	addr := a.cfg.Metrics.Addr
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", a.collector.Handler())
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server stopped", "error", err)
		}
	}()
}

// buildTopics turns every topic block into a policy plus its adapters:
// one RSS adapter per feed, one arXiv adapter per topic with categories,
// and one Hacker News adapter when enabled.
func buildTopics(cfg config.Config) []usecase.Topic {
	topics := make([]usecase.Topic, 0, len(cfg.Topics))
	for _, tc := range cfg.Topics {
		topic := usecase.Topic{Policy: tc.Policy()}

		for _, feed := range tc.Feeds {
			name := feed.Name
			if name == "" {
				name = feed.URL
			}
			topic.Adapters = append(topic.Adapters,
				source.NewRSSAdapter(name, tc.Name, feed.URL, feed.MaxArticles, nil))
		}

		if len(tc.Arxiv.Categories) > 0 {
			categories := make([]source.ArxivCategory, 0, len(tc.Arxiv.Categories))
			for _, cat := range tc.Arxiv.Categories {
				categories = append(categories, source.ArxivCategory{Name: cat.Name, URL: cat.URL})
			}
			topic.Adapters = append(topic.Adapters,
				source.NewArxivAdapter("arxiv", tc.Name, categories, tc.Arxiv.MaxPerCategory, nil))
		}

		if tc.HackerNews.Enabled {
			topic.Adapters = append(topic.Adapters,
				source.NewHackerNewsAdapter("hackernews", tc.Name, source.HackerNewsFilters{
					MinScore: tc.HackerNews.MinScore,
					MaxAge:   time.Duration(tc.HackerNews.MaxAgeHours) * time.Hour,
					Keywords: tc.HackerNews.Keywords,
				}, nil))
		}

		topics = append(topics, topic)
	}
	return topics
}

// Topics exposes the wired topics, mainly for inspection in tests.
func (a *Application) Topics() []domain.TopicPolicy {
	policies := make([]domain.TopicPolicy, 0, len(a.topics))
	for _, t := range a.topics {
		policies = append(policies, t.Policy)
	}
	return policies
}
