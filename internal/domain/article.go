package domain

import (
	"time"
	"unicode/utf8"
)

// Article is the single normalized shape every source adapter produces.
// URL is canonical (see CanonicalURL) and serves as the identity key.
type Article struct {
	URL         string
	Title       string
	Description string
	PublishedAt time.Time // zero value means the publish time is unknown
	Source      string
	Topic       string
}

// ContentLength reports the character count of the description body.
func (a Article) ContentLength() int {
	return utf8.RuneCountInString(a.Description)
}

// HistoryEntry records one previously delivered article.
type HistoryEntry struct {
	URL    string
	Title  string
	SentAt time.Time
}

// AudienceLevel controls downstream summarization style.
type AudienceLevel string

const (
	AudienceBeginner  AudienceLevel = "beginner"
	AudienceCSStudent AudienceLevel = "cs_student"
)

// TopicPolicy carries the per-topic selection rules. Thresholds and quotas
// are evaluated per topic, never shared across topics.
type TopicPolicy struct {
	Name              string
	MinQualityScore   float64
	MaxArticlesPerDay int
	TrustedSources    []string
	AudienceLevel     AudienceLevel
}

// Validate reports a ConfigError when the policy cannot drive a run.
func (p TopicPolicy) Validate() error {
	if p.Name == "" {
		return &ConfigError{Field: "name", Reason: "topic name is empty"}
	}
	if p.MinQualityScore < 0 || p.MinQualityScore > 1 {
		return &ConfigError{Topic: p.Name, Field: "min_quality_score", Reason: "must be within [0, 1]"}
	}
	if p.MaxArticlesPerDay <= 0 {
		return &ConfigError{Topic: p.Name, Field: "max_articles_per_day", Reason: "must be positive"}
	}
	switch p.AudienceLevel {
	case AudienceBeginner, AudienceCSStudent:
	default:
		return &ConfigError{Topic: p.Name, Field: "audience_level", Reason: "unknown audience level"}
	}
	return nil
}

// SelectedArticle is a ranked article with its delivery text attached.
// SummaryFallback marks summaries that reused the article description
// because the summarizer was unavailable or failed for this article.
type SelectedArticle struct {
	Article         Article
	Score           float64
	Summary         string
	SummaryFallback bool
}

// Digest is the composed per-topic payload handed to the sender.
type Digest struct {
	Topic   string
	Subject string
	Body    string
}

// Stage names the furthest pipeline milestone a topic run reached.
type Stage string

const (
	StageFetched    Stage = "fetched"
	StageDeduped    Stage = "deduped"
	StageRanked     Stage = "ranked"
	StageSummarized Stage = "summarized"
	StageSent       Stage = "sent"
)

// Markers for short-circuited but healthy runs.
const (
	NoteNoSources         = "no sources available"
	NoteNoQualifyingItems = "no qualifying articles"
)

// RunResult is the structured outcome of one orchestrator pass for a topic.
// When Err is set after summarization, Selected still holds the full payload
// with summaries attached so the caller can persist it for manual resend.
type RunResult struct {
	RunID          string
	Topic          string
	Selected       []SelectedArticle
	SourceFailures map[string]*FetchError
	Fetched        int
	Deduped        int
	StageReached   Stage
	Note           string
	Err            error
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Degraded reports whether the run produced output despite source failures
// or summary fallbacks.
func (r RunResult) Degraded() bool {
	if len(r.SourceFailures) > 0 {
		return true
	}
	for _, s := range r.Selected {
		if s.SummaryFallback {
			return true
		}
	}
	return false
}
