package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"newsdigest/internal/domain"
)

var hnNow = time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)

func newHNServer(t *testing.T, ids []int64, stories map[int64]hnStory) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/topstories.json":
			_ = json.NewEncoder(w).Encode(ids)
		case strings.HasPrefix(r.URL.Path, "/item/"):
			raw := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/item/"), ".json")
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				http.NotFound(w, r)
				return
			}
			story, ok := stories[id]
			if !ok {
				http.NotFound(w, r)
				return
			}
			_ = json.NewEncoder(w).Encode(story)
		default:
			http.NotFound(w, r)
		}
	}))
}

func newHNAdapter(server *httptest.Server, filters HackerNewsFilters) *HackerNewsAdapter {
	adapter := NewHackerNewsAdapter("hackernews", "ai", filters, server.Client())
	adapter.baseURL = server.URL
	adapter.clock = func() time.Time { return hnNow }
	return adapter
}

func TestHackerNewsAdapterFetch(t *testing.T) {
	t.Parallel()

	stories := map[int64]hnStory{
		1: {ID: 1, Title: "New LLM inference engine", URL: "https://example.com/llm", Score: 250, Time: hnNow.Add(-2 * time.Hour).Unix(), Type: "story"},
		2: {ID: 2, Title: "Show HN: my LLM sideproject", URL: "https://example.com/side", Score: 10, Time: hnNow.Add(-2 * time.Hour).Unix(), Type: "story"},
		3: {ID: 3, Title: "Old LLM benchmark", URL: "https://example.com/old", Score: 500, Time: hnNow.Add(-80 * time.Hour).Unix(), Type: "story"},
		4: {ID: 4, Title: "Ask HN: which LLM?", Score: 300, Time: hnNow.Add(-2 * time.Hour).Unix(), Type: "story"},
		5: {ID: 5, Title: "Gardening tips", URL: "https://example.com/garden", Score: 400, Time: hnNow.Add(-2 * time.Hour).Unix(), Type: "story"},
	}
	server := newHNServer(t, []int64{1, 2, 3, 4, 5}, stories)
	defer server.Close()

	adapter := newHNAdapter(server, HackerNewsFilters{
		MinScore: 100,
		MaxAge:   48 * time.Hour,
		Keywords: []string{"llm"},
	})

	articles, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected 1 matching story, got %d", len(articles))
	}

	got := articles[0]
	if got.URL != "https://example.com/llm" {
		t.Fatalf("unexpected URL %q", got.URL)
	}
	if got.Source != "hackernews" || got.Topic != "ai" {
		t.Fatalf("source/topic not set: %q %q", got.Source, got.Topic)
	}
	if got.Description != got.Title {
		t.Fatalf("title fallback not applied for description: %q", got.Description)
	}
	if got.PublishedAt.IsZero() {
		t.Fatal("published time not set from unix timestamp")
	}
}

func TestHackerNewsAdapterSkipsFailedItems(t *testing.T) {
	t.Parallel()

	stories := map[int64]hnStory{
		1: {ID: 1, Title: "Reachable story", URL: "https://example.com/a", Score: 200, Time: hnNow.Add(-time.Hour).Unix(), Type: "story"},
		// id 2 is served as 404
	}
	server := newHNServer(t, []int64{1, 2}, stories)
	defer server.Close()

	adapter := newHNAdapter(server, HackerNewsFilters{MinScore: 100, MaxAge: 48 * time.Hour})

	articles, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("a failed item lookup must not fail the source: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected 1 article, got %d", len(articles))
	}
}

func TestHackerNewsAdapterNoKeywordsMatchesAll(t *testing.T) {
	t.Parallel()

	stories := map[int64]hnStory{
		1: {ID: 1, Title: "Anything goes", URL: "https://example.com/a", Score: 200, Time: hnNow.Add(-time.Hour).Unix(), Type: "story"},
	}
	server := newHNServer(t, []int64{1}, stories)
	defer server.Close()

	adapter := newHNAdapter(server, HackerNewsFilters{MinScore: 100, MaxAge: 48 * time.Hour})

	articles, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected keywordless filter to pass the story, got %d", len(articles))
	}
}

func TestHackerNewsAdapterTopStoriesFailureIsFatal(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	adapter := newHNAdapter(server, HackerNewsFilters{})

	_, err := adapter.Fetch(context.Background())
	var fe *domain.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.Kind != domain.FailureRateLimited {
		t.Fatalf("kind = %q, want rate_limited", fe.Kind)
	}
}

func TestHackerNewsAdapterCapsStoryList(t *testing.T) {
	t.Parallel()

	ids := make([]int64, 0, hnStoryLimit+50)
	stories := make(map[int64]hnStory, hnStoryLimit+50)
	for i := int64(1); i <= hnStoryLimit+50; i++ {
		ids = append(ids, i)
		stories[i] = hnStory{
			ID:    i,
			Title: fmt.Sprintf("Story %d", i),
			URL:   fmt.Sprintf("https://example.com/%d", i),
			Score: 200,
			Time:  hnNow.Add(-time.Hour).Unix(),
			Type:  "story",
		}
	}
	server := newHNServer(t, ids, stories)
	defer server.Close()

	adapter := newHNAdapter(server, HackerNewsFilters{MinScore: 1, MaxAge: 48 * time.Hour})

	articles, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(articles) != hnStoryLimit {
		t.Fatalf("expected story list capped at %d, got %d", hnStoryLimit, len(articles))
	}
}
