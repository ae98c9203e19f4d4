package dedup

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"newsdigest/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func article(url, title string) domain.Article {
	return domain.Article{URL: url, Title: title, Topic: "ai"}
}

func TestApplyDropsURLDuplicates(t *testing.T) {
	t.Parallel()

	d := New(DefaultTitleThreshold, testLogger())
	candidates := []domain.Article{
		article("https://a.com/1", "Transformers revisited"),
		article("https://a.com/1", "A completely different headline"),
		article("https://b.com/2", "Databases at scale"),
	}

	kept := d.Apply(candidates, nil)
	if len(kept) != 2 {
		t.Fatalf("expected 2 kept articles, got %d", len(kept))
	}
	if kept[0].URL != "https://a.com/1" || kept[1].URL != "https://b.com/2" {
		t.Fatalf("unexpected survivors: %q, %q", kept[0].URL, kept[1].URL)
	}
}

func TestApplyFirstOfSimilarTitlesWins(t *testing.T) {
	t.Parallel()

	d := New(DefaultTitleThreshold, testLogger())
	candidates := []domain.Article{
		article("https://a.com/1", "OpenAI Releases GPT-5 Model"),
		article("https://b.com/1", "OpenAI releases GPT-5 model!"),
		article("https://c.com/1", "Kernel scheduler rewrite lands"),
	}

	kept := d.Apply(candidates, nil)
	if len(kept) != 2 {
		t.Fatalf("expected 2 kept articles, got %d", len(kept))
	}
	if kept[0].URL != "https://a.com/1" {
		t.Fatalf("expected first occurrence to win, got %q", kept[0].URL)
	}
	if kept[1].URL != "https://c.com/1" {
		t.Fatalf("expected unrelated article to survive, got %q", kept[1].URL)
	}
}

func TestApplyKeepsDissimilarTitles(t *testing.T) {
	t.Parallel()

	d := New(DefaultTitleThreshold, testLogger())
	candidates := []domain.Article{
		article("https://a.com/1", "Go 1.25 released"),
		article("https://b.com/1", "Rust 1.80 released"),
	}

	if kept := d.Apply(candidates, nil); len(kept) != 2 {
		t.Fatalf("expected both dissimilar titles kept, got %d", len(kept))
	}
}

func TestApplySuppressesHistory(t *testing.T) {
	t.Parallel()

	d := New(DefaultTitleThreshold, testLogger())
	history := []domain.HistoryEntry{
		{URL: "https://a.com/1", Title: "Old story about AI", SentAt: time.Now().Add(-5 * 24 * time.Hour)},
	}
	candidates := []domain.Article{
		article("https://a.com/1", "Old story about AI"),
		article("https://b.com/1", "Old story about AI!"),
		article("https://c.com/1", "Fresh and unrelated research result"),
	}

	kept := d.Apply(candidates, history)
	if len(kept) != 1 {
		t.Fatalf("expected only the fresh article, got %d", len(kept))
	}
	if kept[0].URL != "https://c.com/1" {
		t.Fatalf("unexpected survivor %q", kept[0].URL)
	}
}

func TestApplyEmptyTitlesNeverCollide(t *testing.T) {
	t.Parallel()

	d := New(DefaultTitleThreshold, testLogger())
	candidates := []domain.Article{
		article("https://a.com/1", ""),
		article("https://b.com/1", "   "),
	}

	if kept := d.Apply(candidates, nil); len(kept) != 2 {
		t.Fatalf("expected untitled articles kept, got %d", len(kept))
	}
}

func TestNewClampsThreshold(t *testing.T) {
	t.Parallel()

	for _, bad := range []float64{-0.1, 0, 1.5} {
		d := New(bad, testLogger())
		if d.threshold != DefaultTitleThreshold {
			t.Fatalf("threshold %v not clamped, got %v", bad, d.threshold)
		}
	}
}

func TestNormalizeTitle(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{"  Hello,  World!  ", "hello world"},
		{"GPT-4o: a review", "gpt 4o a review"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := normalizeTitle(tc.in); got != tc.want {
			t.Fatalf("normalizeTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	t.Parallel()

	if got := similarity("abc", "abc"); got != 1 {
		t.Fatalf("identical strings score %v, want 1", got)
	}
	if got := similarity("", ""); got != 1 {
		t.Fatalf("empty strings score %v, want 1", got)
	}
	if got := similarity("aaaa", "bbbb"); got != 0 {
		t.Fatalf("disjoint strings score %v, want 0", got)
	}
	if got := similarity("kitten", "sitten"); got <= 0.8 || got >= 0.9 {
		t.Fatalf("one-edit distance score %v, want 5/6", got)
	}
}
