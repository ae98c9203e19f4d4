package rank

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"newsdigest/internal/domain"
)

// Weights control the composite quality score. They are configuration, not
// business logic; DefaultWeights documents the standard split.
type Weights struct {
	Depth   float64
	Recency float64
	Trust   float64
}

// DefaultWeights is the documented default split.
var DefaultWeights = Weights{Depth: 0.4, Recency: 0.3, Trust: 0.3}

func (w Weights) total() float64 {
	return w.Depth + w.Recency + w.Trust
}

// RankedArticle pairs an article with its composite quality score in [0, 1].
type RankedArticle struct {
	Article domain.Article
	Score   float64
}

// Ranker scores articles on content depth, recency, and source trust, drops
// everything below the topic threshold, and truncates to the topic cap.
type Ranker struct {
	weights Weights
	now     func() time.Time
	logger  *slog.Logger
}

// Option customizes a Ranker.
type Option func(*Ranker)

// WithClock overrides the time source; recency scoring in tests needs a
// fixed reference point.
func WithClock(now func() time.Time) Option {
	return func(r *Ranker) { r.now = now }
}

// New builds a ranker. Zero or negative weight sums fall back to
// DefaultWeights.
func New(weights Weights, logger *slog.Logger, opts ...Option) *Ranker {
	if weights.total() <= 0 {
		weights = DefaultWeights
	}
	r := &Ranker{weights: weights, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rank scores, filters, and caps the deduplicated articles of one topic.
// Output is sorted by descending score; ties break by newer publish time,
// then shorter canonical URL, then lexical URL, so repeated runs over the
// same input yield identical order.
func (r *Ranker) Rank(articles []domain.Article, policy domain.TopicPolicy) []RankedArticle {
	if len(articles) == 0 {
		return nil
	}

	now := r.now()
	ranked := make([]RankedArticle, 0, len(articles))
	for _, article := range articles {
		score := r.Score(article, policy, now)
		if score < policy.MinQualityScore {
			continue
		}
		ranked = append(ranked, RankedArticle{Article: article, Score: score})
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Article.PublishedAt.Equal(b.Article.PublishedAt) {
			return a.Article.PublishedAt.After(b.Article.PublishedAt)
		}
		if len(a.Article.URL) != len(b.Article.URL) {
			return len(a.Article.URL) < len(b.Article.URL)
		}
		return a.Article.URL < b.Article.URL
	})

	if len(ranked) > policy.MaxArticlesPerDay {
		ranked = ranked[:policy.MaxArticlesPerDay]
	}

	r.logger.Debug("ranking complete",
		"topic", policy.Name, "candidates", len(articles), "selected", len(ranked))
	return ranked
}

// Score computes the weighted composite quality score for one article.
func (r *Ranker) Score(article domain.Article, policy domain.TopicPolicy, now time.Time) float64 {
	composite := depthScore(article.ContentLength())*r.weights.Depth +
		recencyScore(article.PublishedAt, now)*r.weights.Recency +
		trustScore(article.Source, policy.TrustedSources)*r.weights.Trust
	return composite / r.weights.total()
}

// depthScore is monotonic non-decreasing in content length and saturates:
// under 200 chars climbs to 0.5, 200-500 climbs to 0.8, everything past 500
// earns diminishing returns up to 1.0.
func depthScore(length int) float64 {
	switch {
	case length < 200:
		return float64(length) / 400.0
	case length < 500:
		return 0.5 + float64(length-200)/1000.0
	default:
		extra := length - 500
		if extra > 1000 {
			extra = 1000
		}
		return 0.8 + float64(extra)/5000.0
	}
}

// recencyScore decays stepwise with age. An unknown publish time scores
// zero so it can never game the ranking.
func recencyScore(publishedAt, now time.Time) float64 {
	if publishedAt.IsZero() {
		return 0
	}
	age := now.Sub(publishedAt)
	switch {
	case age < 24*time.Hour:
		return 1.0
	case age < 48*time.Hour:
		return 0.5
	case age < 72*time.Hour:
		return 0.2
	default:
		return 0
	}
}

// trustScore boosts sources on the topic's trusted list and keeps a neutral
// baseline for everything else, so a strong article from an unlisted source
// can still qualify.
func trustScore(source string, trusted []string) float64 {
	if len(trusted) == 0 {
		return 0.5
	}
	sourceLower := strings.ToLower(source)
	for _, t := range trusted {
		tLower := strings.ToLower(t)
		if strings.Contains(sourceLower, tLower) || strings.Contains(tLower, sourceLower) {
			return 1.0
		}
	}
	return 0.5
}
