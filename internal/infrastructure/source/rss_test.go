package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"newsdigest/internal/domain"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Engineering Blog</title>
    <item>
      <title>First article</title>
      <link>https://blog.example.com/first</link>
      <description>Short summary of the first article.</description>
      <pubDate>Mon, 09 Jun 2025 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Second article</title>
      <link>https://blog.example.com/second</link>
      <description>Short summary of the second article.</description>
    </item>
    <item>
      <title>No link item</title>
      <description>Should be skipped.</description>
    </item>
    <item>
      <title>Third article</title>
      <link>https://blog.example.com/third</link>
      <description>Summary of the third.</description>
    </item>
  </channel>
</rss>`

func TestRSSAdapterFetch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "newsdigest/1.0" {
			t.Errorf("unexpected user agent %q", ua)
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, sampleFeed)
	}))
	defer server.Close()

	adapter := NewRSSAdapter("blog", "ai", server.URL, 0, server.Client())
	articles, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(articles) != 3 {
		t.Fatalf("expected 3 articles (linkless item skipped), got %d", len(articles))
	}

	first := articles[0]
	if first.URL != "https://blog.example.com/first" {
		t.Fatalf("unexpected URL %q", first.URL)
	}
	if first.Title != "First article" {
		t.Fatalf("unexpected title %q", first.Title)
	}
	if first.Source != "blog" || first.Topic != "ai" {
		t.Fatalf("source/topic not set: %q %q", first.Source, first.Topic)
	}
	want := time.Date(2025, 6, 9, 10, 0, 0, 0, time.UTC)
	if !first.PublishedAt.Equal(want) {
		t.Fatalf("published at %v, want %v", first.PublishedAt, want)
	}
	if !articles[1].PublishedAt.IsZero() {
		t.Fatalf("undated item should have zero time, got %v", articles[1].PublishedAt)
	}
}

func TestRSSAdapterRespectsCap(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sampleFeed)
	}))
	defer server.Close()

	adapter := NewRSSAdapter("blog", "ai", server.URL, 2, server.Client())
	articles, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("expected cap at 2 articles, got %d", len(articles))
	}
}

func TestRSSAdapterStatusErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status int
		kind   domain.FailureKind
	}{
		{http.StatusTooManyRequests, domain.FailureRateLimited},
		{http.StatusInternalServerError, domain.FailureUnreachable},
		{http.StatusNotFound, domain.FailureUnreachable},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(fmt.Sprintf("status %d", tc.status), func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer server.Close()

			adapter := NewRSSAdapter("blog", "ai", server.URL, 0, server.Client())
			_, err := adapter.Fetch(context.Background())

			var fe *domain.FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("expected FetchError, got %v", err)
			}
			if fe.Kind != tc.kind {
				t.Fatalf("kind = %q, want %q", fe.Kind, tc.kind)
			}
		})
	}
}

func TestRSSAdapterMalformedBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "this is not xml at all")
	}))
	defer server.Close()

	adapter := NewRSSAdapter("blog", "ai", server.URL, 0, server.Client())
	_, err := adapter.Fetch(context.Background())

	var fe *domain.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.Kind != domain.FailureParse {
		t.Fatalf("kind = %q, want parse_error", fe.Kind)
	}
}
