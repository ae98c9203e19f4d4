package ports

import (
	"context"
	"time"

	"newsdigest/internal/domain"
)

// SourceAdapter fetches one feed or API and normalizes its items into
// articles. Implementations must respect the caller's context and must
// return a typed error (domain.FetchError) instead of panicking.
type SourceAdapter interface {
	Name() string
	Fetch(ctx context.Context) ([]domain.Article, error)
}

// HistoryStore keeps previously delivered articles for re-send suppression.
// Append is idempotent per canonical URL and implementations serialize
// writes so concurrent topic runs cannot lose updates.
type HistoryStore interface {
	LoadRecent(ctx context.Context, topic string, window time.Duration) ([]domain.HistoryEntry, error)
	Append(ctx context.Context, topic string, entries []domain.HistoryEntry) error
}

// Summarizer produces delivery text for one selected article.
type Summarizer interface {
	Summarize(ctx context.Context, article domain.Article, audience domain.AudienceLevel) (string, error)
}

// Composer turns the selected articles of one topic into a digest payload.
type Composer interface {
	Compose(topic string, selected []domain.SelectedArticle) (domain.Digest, error)
}

// Sender delivers a composed digest. On failure the caller keeps the digest
// content (via RunResult.Selected) for manual resend.
type Sender interface {
	Send(ctx context.Context, digest domain.Digest) error
}

// Scheduler triggers recurring pipeline runs.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
