package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"newsdigest/internal/domain"
	"newsdigest/internal/ports"
)

const defaultSourceTimeout = 20 * time.Second

// Aggregator fans out over the source adapters of a topic and collects
// whatever each of them produced. A failing or panicking adapter becomes an
// entry in the failure manifest; it never takes its siblings down.
type Aggregator struct {
	sourceTimeout time.Duration
	logger        *slog.Logger
}

// Result carries the concatenated articles of all successful sources plus
// the failure manifest. An empty article list with a non-empty manifest is
// a valid outcome, not an error.
type Result struct {
	Articles []domain.Article
	Failures map[string]*domain.FetchError
}

// New builds an aggregator; sourceTimeout bounds each adapter independently
// and defaults to 20s.
func New(sourceTimeout time.Duration, logger *slog.Logger) *Aggregator {
	if sourceTimeout <= 0 {
		sourceTimeout = defaultSourceTimeout
	}
	return &Aggregator{sourceTimeout: sourceTimeout, logger: logger}
}

type sourceOutcome struct {
	index    int
	articles []domain.Article
	failure  *domain.FetchError
}

// Fetch runs all adapters concurrently and returns their combined outcome.
// Output order is adapter order, so repeated runs over the same inputs feed
// the deduplicator identically.
func (a *Aggregator) Fetch(ctx context.Context, topic string, adapters []ports.SourceAdapter) Result {
	result := Result{Failures: map[string]*domain.FetchError{}}
	if len(adapters) == 0 {
		return result
	}

	outcomes := make(chan sourceOutcome, len(adapters))
	for i, adapter := range adapters {
		go func(idx int, src ports.SourceAdapter) {
			outcomes <- a.fetchOne(ctx, topic, idx, src)
		}(i, adapter)
	}

	collected := make([][]domain.Article, len(adapters))
	for range adapters {
		outcome := <-outcomes
		if outcome.failure != nil {
			result.Failures[outcome.failure.Source] = outcome.failure
			continue
		}
		collected[outcome.index] = outcome.articles
	}

	for _, articles := range collected {
		result.Articles = append(result.Articles, articles...)
	}

	return result
}

func (a *Aggregator) fetchOne(ctx context.Context, topic string, idx int, src ports.SourceAdapter) (out sourceOutcome) {
	out.index = idx

	defer func() {
		if r := recover(); r != nil {
			out.articles = nil
			out.failure = &domain.FetchError{
				Source: src.Name(),
				Kind:   domain.FailureUnreachable,
				Err:    fmt.Errorf("adapter panic: %v", r),
			}
			a.logger.Error("source adapter panicked", "topic", topic, "source", src.Name(), "panic", r)
		}
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, a.sourceTimeout)
	defer cancel()

	articles, err := src.Fetch(fetchCtx)
	if err != nil {
		failure := domain.ClassifyFetchErr(src.Name(), err)
		a.logger.Warn("source fetch failed",
			"topic", topic, "source", src.Name(), "kind", string(failure.Kind), "error", err)
		out.failure = failure
		return out
	}

	out.articles = a.normalize(topic, src.Name(), articles)
	a.logger.Debug("source fetched", "topic", topic, "source", src.Name(), "count", len(out.articles))
	return out
}

// normalize canonicalizes URLs, drops articles that fail the URL invariant,
// and fills in source/topic tags adapters left blank.
func (a *Aggregator) normalize(topic, source string, articles []domain.Article) []domain.Article {
	normalized := make([]domain.Article, 0, len(articles))
	for _, article := range articles {
		canonical, err := domain.CanonicalURL(article.URL)
		if err != nil {
			a.logger.Debug("dropping article with invalid url",
				"topic", topic, "source", source, "url", article.URL, "error", err)
			continue
		}
		article.URL = canonical
		if article.Source == "" {
			article.Source = source
		}
		if article.Topic == "" {
			article.Topic = topic
		}
		normalized = append(normalized, article)
	}
	return normalized
}
