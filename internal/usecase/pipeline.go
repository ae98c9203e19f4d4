package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"newsdigest/internal/aggregate"
	"newsdigest/internal/dedup"
	"newsdigest/internal/domain"
	"newsdigest/internal/metrics"
	"newsdigest/internal/ports"
	"newsdigest/internal/rank"
)

const defaultHistoryWindow = 30 * 24 * time.Hour

// Topic couples a policy with the source adapters configured for it.
type Topic struct {
	Policy   domain.TopicPolicy
	Adapters []ports.SourceAdapter
}

// PipelineDeps wires the core components and driven adapters into the
// orchestrator. Summarizer, Composer, Sender, and Metrics may be nil; the
// pipeline degrades instead of failing when they are absent.
type PipelineDeps struct {
	Aggregator    *aggregate.Aggregator
	Deduplicator  *dedup.Deduplicator
	Ranker        *rank.Ranker
	History       ports.HistoryStore
	Summarizer    ports.Summarizer
	Composer      ports.Composer
	Sender        ports.Sender
	Metrics       *metrics.Collector
	Logger        *slog.Logger
	HistoryWindow time.Duration
	TopicBudget   time.Duration
	Clock         func() time.Time
}

// Pipeline sequences fetch, dedup, rank, summarize, compose, and send for
// each topic, absorbing failures that have a safe degraded behavior and
// surfacing the rest on the run result.
type Pipeline struct {
	aggregator    *aggregate.Aggregator
	deduplicator  *dedup.Deduplicator
	ranker        *rank.Ranker
	history       ports.HistoryStore
	summarizer    ports.Summarizer
	composer      ports.Composer
	sender        ports.Sender
	metrics       *metrics.Collector
	logger        *slog.Logger
	historyWindow time.Duration
	topicBudget   time.Duration
	clock         func() time.Time
}

// NewPipeline constructs the orchestrator.
func NewPipeline(deps PipelineDeps) *Pipeline {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	window := deps.HistoryWindow
	if window <= 0 {
		window = defaultHistoryWindow
	}
	return &Pipeline{
		aggregator:    deps.Aggregator,
		deduplicator:  deps.Deduplicator,
		ranker:        deps.Ranker,
		history:       deps.History,
		summarizer:    deps.Summarizer,
		composer:      deps.Composer,
		sender:        deps.Sender,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		historyWindow: window,
		topicBudget:   deps.TopicBudget,
		clock:         clock,
	}
}

// Run processes all topics concurrently. Topics share no mutable state
// except the history store, which serializes its own writes.
func (p *Pipeline) Run(ctx context.Context, topics []Topic) []domain.RunResult {
	results := make([]domain.RunResult, len(topics))

	var wg sync.WaitGroup
	for i, topic := range topics {
		wg.Add(1)
		go func(idx int, t Topic) {
			defer wg.Done()
			results[idx] = p.RunTopic(ctx, t)
		}(i, topic)
	}
	wg.Wait()

	return results
}

// RunTopic executes one pipeline pass for a single topic. Replaying it for
// the same day is safe: history is appended only after a confirmed send, so
// a crash mid-pipeline cannot double-deliver on the next run.
func (p *Pipeline) RunTopic(ctx context.Context, topic Topic) domain.RunResult {
	result := domain.RunResult{
		RunID:          uuid.NewString(),
		Topic:          topic.Policy.Name,
		SourceFailures: map[string]*domain.FetchError{},
		StartedAt:      p.clock(),
	}
	defer p.finish(&result)

	if err := topic.Policy.Validate(); err != nil {
		result.Err = err
		return result
	}

	// The budget bounds fetch through rank. A source that exhausts it shows
	// up as a timeout in the manifest; articles collected before expiry are
	// preserved and used.
	budgetCtx := ctx
	if p.topicBudget > 0 {
		var cancel context.CancelFunc
		budgetCtx, cancel = context.WithTimeout(ctx, p.topicBudget)
		defer cancel()
	}

	fetched := p.aggregator.Fetch(budgetCtx, topic.Policy.Name, topic.Adapters)
	result.Fetched = len(fetched.Articles)
	result.SourceFailures = fetched.Failures
	result.StageReached = domain.StageFetched

	if ctx.Err() != nil {
		result.Err = fmt.Errorf("topic %s canceled while fetching: %w", topic.Policy.Name, ctx.Err())
		return result
	}
	if len(fetched.Articles) == 0 && len(fetched.Failures) >= len(topic.Adapters) {
		result.Note = domain.NoteNoSources
		return result
	}

	history, err := p.history.LoadRecent(ctx, topic.Policy.Name, p.historyWindow)
	if err != nil {
		// Without history the no-resend guarantee is gone, so the topic
		// fails instead of risking duplicate delivery.
		result.Err = fmt.Errorf("load history for %s: %w", topic.Policy.Name, err)
		return result
	}

	kept := p.deduplicator.Apply(fetched.Articles, history)
	result.Deduped = len(kept)
	result.StageReached = domain.StageDeduped

	ranked := p.ranker.Rank(kept, topic.Policy)
	result.StageReached = domain.StageRanked
	if len(ranked) == 0 {
		result.Note = domain.NoteNoQualifyingItems
		return result
	}

	result.Selected = p.summarize(ctx, topic.Policy, ranked)
	result.StageReached = domain.StageSummarized

	if p.composer == nil || p.sender == nil {
		result.Note = "delivery disabled"
		return result
	}

	digest, err := p.composer.Compose(topic.Policy.Name, result.Selected)
	if err != nil {
		result.Err = fmt.Errorf("compose digest for %s: %w", topic.Policy.Name, err)
		return result
	}

	if err := p.sender.Send(ctx, digest); err != nil {
		result.Err = &domain.SendError{Topic: topic.Policy.Name, Err: err}
		return result
	}
	result.StageReached = domain.StageSent

	if err := p.recordSent(ctx, topic.Policy.Name, result.Selected); err != nil {
		// Delivery succeeded but the next run may re-select these articles.
		result.Err = fmt.Errorf("update history for %s: %w", topic.Policy.Name, err)
	}

	return result
}

// summarize invokes the summarizer per article and falls back to the
// article's own description on any failure. A summarizer outage degrades
// quality; it never stops delivery.
func (p *Pipeline) summarize(ctx context.Context, policy domain.TopicPolicy, ranked []rank.RankedArticle) []domain.SelectedArticle {
	selected := make([]domain.SelectedArticle, 0, len(ranked))
	for _, item := range ranked {
		entry := domain.SelectedArticle{Article: item.Article, Score: item.Score}

		if p.summarizer == nil {
			entry.Summary = item.Article.Description
			entry.SummaryFallback = true
			selected = append(selected, entry)
			continue
		}

		summary, err := p.summarizer.Summarize(ctx, item.Article, policy.AudienceLevel)
		if err != nil || strings.TrimSpace(summary) == "" {
			if err != nil {
				p.logger.Warn("summarization failed, using description",
					"topic", policy.Name, "url", item.Article.URL, "error", err)
			}
			entry.Summary = item.Article.Description
			entry.SummaryFallback = true
		} else {
			entry.Summary = summary
		}
		selected = append(selected, entry)
	}
	return selected
}

func (p *Pipeline) recordSent(ctx context.Context, topic string, selected []domain.SelectedArticle) error {
	entries := make([]domain.HistoryEntry, 0, len(selected))
	sentAt := p.clock()
	for _, item := range selected {
		entries = append(entries, domain.HistoryEntry{
			URL:    item.Article.URL,
			Title:  item.Article.Title,
			SentAt: sentAt,
		})
	}
	return p.history.Append(ctx, topic, entries)
}

func (p *Pipeline) finish(result *domain.RunResult) {
	result.FinishedAt = p.clock()

	switch {
	case result.Err != nil:
		p.logger.Error("topic run failed",
			"run_id", result.RunID, "topic", result.Topic,
			"stage", string(result.StageReached), "error", result.Err)
	case result.Note != "":
		p.logger.Info("topic run short-circuited",
			"run_id", result.RunID, "topic", result.Topic,
			"stage", string(result.StageReached), "note", result.Note)
	default:
		p.logger.Info("topic run complete",
			"run_id", result.RunID, "topic", result.Topic,
			"fetched", result.Fetched, "deduped", result.Deduped,
			"selected", len(result.Selected), "degraded", result.Degraded())
	}

	if p.metrics != nil {
		p.metrics.ObserveRun(*result)
	}
}
