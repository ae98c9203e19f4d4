package dedup

import (
	"log/slog"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"

	"newsdigest/internal/domain"
)

// DefaultTitleThreshold is the similarity ratio above which two titles are
// considered the same story.
const DefaultTitleThreshold = 0.85

// Deduplicator removes intra-batch and cross-run duplicates from a topic's
// candidate set. History is per topic: quotas are per topic, so suppression
// is too.
type Deduplicator struct {
	threshold float64
	logger    *slog.Logger
}

// New builds a deduplicator; threshold defaults to DefaultTitleThreshold
// when out of range.
func New(threshold float64, logger *slog.Logger) *Deduplicator {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultTitleThreshold
	}
	return &Deduplicator{threshold: threshold, logger: logger}
}

// Apply returns the candidates that are neither URL-exact nor title-similar
// duplicates of an already-kept candidate or a history entry. Candidates are
// processed in input order and the first of a near-duplicate pair wins;
// quality ordering is the ranker's job, not this one's.
//
// Title comparison is O(n^2) over the batch plus O(history) per candidate.
// Batches are bounded by feed count times per-feed caps and history by the
// retention window, which keeps this tractable without an index.
func (d *Deduplicator) Apply(candidates []domain.Article, history []domain.HistoryEntry) []domain.Article {
	seenURLs := make(map[string]struct{}, len(history)+len(candidates))
	blockedTitles := make([]string, 0, len(history)+len(candidates))

	for _, entry := range history {
		seenURLs[entry.URL] = struct{}{}
		if title := normalizeTitle(entry.Title); title != "" {
			blockedTitles = append(blockedTitles, title)
		}
	}

	kept := make([]domain.Article, 0, len(candidates))
	for _, candidate := range candidates {
		if _, dup := seenURLs[candidate.URL]; dup {
			d.logger.Debug("dropping url duplicate", "topic", candidate.Topic, "url", candidate.URL)
			continue
		}

		title := normalizeTitle(candidate.Title)
		if d.titleBlocked(title, blockedTitles) {
			seenURLs[candidate.URL] = struct{}{}
			d.logger.Debug("dropping title duplicate",
				"topic", candidate.Topic, "url", candidate.URL, "title", candidate.Title)
			continue
		}

		seenURLs[candidate.URL] = struct{}{}
		if title != "" {
			blockedTitles = append(blockedTitles, title)
		}
		kept = append(kept, candidate)
	}

	return kept
}

func (d *Deduplicator) titleBlocked(title string, blocked []string) bool {
	if title == "" {
		return false
	}
	for _, other := range blocked {
		if similarity(title, other) >= d.threshold {
			return true
		}
	}
	return false
}

// similarity is a normalized edit-distance ratio in [0, 1].
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 1
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1 - float64(distance)/float64(longest)
}

// normalizeTitle lowercases, strips punctuation, and collapses whitespace so
// formatting differences do not defeat the similarity measure.
func normalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	lastSpace := true
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}
