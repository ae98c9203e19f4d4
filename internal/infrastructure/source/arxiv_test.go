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

const arxivListing = `<!DOCTYPE html>
<html>
<body>
<dl>
  <dt>
    <a href="/abs/2506.01234" title="Abstract">arXiv:2506.01234</a>
  </dt>
  <dd>
    <div class="list-title">Title: Attention Is Still All You Need</div>
    <p class="mathjax">Abstract: We revisit the transformer architecture and show it remains competitive.</p>
    <div class="list-date">Submitted 9 Jun 2025</div>
  </dd>
  <dt>
    <a href="https://arxiv.org/abs/2506.05678" title="Abstract">arXiv:2506.05678</a>
  </dt>
  <dd>
    <div class="list-title">Title: Sparse Retrieval at Scale</div>
    <p class="mathjax">Abstract: A study of sparse retrieval methods on web-scale corpora.</p>
    <div class="list-dateline">8 Jun 2025</div>
  </dd>
  <dt>
    <span>entry without an abs link</span>
  </dt>
  <dd>
    <div class="list-title">Title: Ignored</div>
  </dd>
</dl>
</body>
</html>`

func TestArxivAdapterFetch(t *testing.T) {
	t.Parallel()

	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, arxivListing)
	}))
	defer server.Close()

	categories := []ArxivCategory{{Name: "cs.AI", URL: server.URL + "/list/cs.AI/recent"}}
	adapter := NewArxivAdapter("arxiv", "ai", categories, 5, server.Client())

	articles, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if gotQuery != "show=5&skip=0" {
		t.Fatalf("listing query = %q, want show=5&skip=0", gotQuery)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 parsed entries, got %d", len(articles))
	}

	first := articles[0]
	if first.URL != "https://arxiv.org/abs/2506.01234" {
		t.Fatalf("relative href not absolutized: %q", first.URL)
	}
	if first.Title != "Attention Is Still All You Need" {
		t.Fatalf("title prefix not stripped: %q", first.Title)
	}
	if first.Description != "We revisit the transformer architecture and show it remains competitive." {
		t.Fatalf("abstract prefix not stripped: %q", first.Description)
	}
	want := time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)
	if !first.PublishedAt.Equal(want) {
		t.Fatalf("published at %v, want %v", first.PublishedAt, want)
	}
	if first.Source != "arxiv/cs.AI" {
		t.Fatalf("source = %q, want arxiv/cs.AI", first.Source)
	}

	second := articles[1]
	if second.URL != "https://arxiv.org/abs/2506.05678" {
		t.Fatalf("absolute href rewritten: %q", second.URL)
	}
	if second.PublishedAt.IsZero() {
		t.Fatal("dateline fallback not parsed")
	}
}

func TestArxivAdapterCapsPerCategory(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, arxivListing)
	}))
	defer server.Close()

	categories := []ArxivCategory{{Name: "cs.AI", URL: server.URL + "/list/cs.AI/recent"}}
	adapter := NewArxivAdapter("arxiv", "ai", categories, 1, server.Client())

	articles, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected cap at 1 entry, got %d", len(articles))
	}
}

func TestArxivAdapterDeduplicatesAcrossCategories(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, arxivListing)
	}))
	defer server.Close()

	categories := []ArxivCategory{
		{Name: "cs.AI", URL: server.URL + "/list/cs.AI/recent"},
		{Name: "cs.LG", URL: server.URL + "/list/cs.LG/recent"},
	}
	adapter := NewArxivAdapter("arxiv", "ai", categories, 5, server.Client())

	articles, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("expected cross-category dedup to 2 entries, got %d", len(articles))
	}
}

func TestArxivAdapterStatusErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status int
		kind   domain.FailureKind
	}{
		{http.StatusTooManyRequests, domain.FailureRateLimited},
		{http.StatusServiceUnavailable, domain.FailureUnreachable},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(fmt.Sprintf("status %d", tc.status), func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer server.Close()

			categories := []ArxivCategory{{Name: "cs.AI", URL: server.URL + "/list/cs.AI/recent"}}
			adapter := NewArxivAdapter("arxiv", "ai", categories, 5, server.Client())

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

func TestArxivAdapterNoCategories(t *testing.T) {
	t.Parallel()

	adapter := NewArxivAdapter("arxiv", "ai", nil, 5, nil)
	_, err := adapter.Fetch(context.Background())

	var fe *domain.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.Kind != domain.FailureParse {
		t.Fatalf("kind = %q, want parse_error", fe.Kind)
	}
}

func TestBuildListingURL(t *testing.T) {
	t.Parallel()

	got, err := buildListingURL("https://arxiv.org/list/cs.AI/recent", 25)
	if err != nil {
		t.Fatalf("buildListingURL returned error: %v", err)
	}
	if got != "https://arxiv.org/list/cs.AI/recent?show=25&skip=0" {
		t.Fatalf("unexpected listing url %q", got)
	}
}
