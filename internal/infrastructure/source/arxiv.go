package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"newsdigest/internal/domain"
	"newsdigest/internal/ports"
)

const (
	arxivBaseURL          = "https://arxiv.org"
	defaultPerCategoryCap = 5
)

var dateExpr = regexp.MustCompile(`\d{1,2} [A-Za-z]{3} \d{4}`)

// ArxivCategory is one category listing endpoint to crawl.
type ArxivCategory struct {
	Name string
	URL  string
}

// ArxivAdapter crawls arXiv category listing pages and extracts the most
// recent entries per category.
type ArxivAdapter struct {
	name           string
	topic          string
	categories     []ArxivCategory
	maxPerCategory int
	client         *http.Client
}

var _ ports.SourceAdapter = (*ArxivAdapter)(nil)

// NewArxivAdapter wires an HTTP client; maxPerCategory defaults to 5.
func NewArxivAdapter(name, topic string, categories []ArxivCategory, maxPerCategory int, client *http.Client) *ArxivAdapter {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if maxPerCategory <= 0 {
		maxPerCategory = defaultPerCategoryCap
	}
	return &ArxivAdapter{
		name:           name,
		topic:          topic,
		categories:     categories,
		maxPerCategory: maxPerCategory,
		client:         client,
	}
}

// Name identifies the adapter inside the failure manifest.
func (a *ArxivAdapter) Name() string {
	return a.name
}

// Fetch walks each category listing and returns its newest entries.
func (a *ArxivAdapter) Fetch(ctx context.Context) ([]domain.Article, error) {
	if len(a.categories) == 0 {
		return nil, &domain.FetchError{
			Source: a.name,
			Kind:   domain.FailureParse,
			Err:    fmt.Errorf("no categories configured"),
		}
	}

	results := make([]domain.Article, 0, len(a.categories)*a.maxPerCategory)
	seen := map[string]struct{}{}

	for _, cat := range a.categories {
		pageURL, err := buildListingURL(cat.URL, a.maxPerCategory)
		if err != nil {
			return nil, &domain.FetchError{
				Source: a.name,
				Kind:   domain.FailureParse,
				Err:    fmt.Errorf("category %s: %w", cat.Name, err),
			}
		}

		doc, err := a.fetchDocument(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", cat.Name, err)
		}

		for _, article := range a.extractArticles(doc, cat.Name) {
			if _, ok := seen[article.URL]; ok {
				continue
			}
			seen[article.URL] = struct{}{}
			results = append(results, article)
		}
	}

	return results, nil
}

func (a *ArxivAdapter) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "newsdigest/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &domain.FetchError{
			Source: a.name,
			Kind:   domain.FailureRateLimited,
			Err:    fmt.Errorf("arxiv returned %s", resp.Status),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &domain.FetchError{
			Source: a.name,
			Kind:   domain.FailureUnreachable,
			Err:    fmt.Errorf("arxiv returned %s", resp.Status),
		}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &domain.FetchError{
			Source: a.name,
			Kind:   domain.FailureParse,
			Err:    fmt.Errorf("parse document: %w", err),
		}
	}

	return doc, nil
}

func (a *ArxivAdapter) extractArticles(doc *goquery.Document, category string) []domain.Article {
	var collected []domain.Article

	doc.Find("dl > dt").EachWithBreak(func(i int, dt *goquery.Selection) bool {
		if len(collected) >= a.maxPerCategory {
			return false
		}

		article, ok := a.parseEntry(dt, dt.Next(), category)
		if ok {
			collected = append(collected, article)
		}
		return true
	})

	return collected
}

func (a *ArxivAdapter) parseEntry(dt, dd *goquery.Selection, category string) (domain.Article, bool) {
	link := dt.Find("a[href*=\"/abs/\"]").First()
	href, _ := link.Attr("href")
	if href == "" {
		return domain.Article{}, false
	}
	if !strings.HasPrefix(href, "http") {
		href = strings.TrimSuffix(arxivBaseURL, "/") + href
	}

	title := strings.TrimSpace(dd.Find(".list-title").First().Text())
	title = strings.TrimSpace(strings.TrimPrefix(title, "Title:"))

	abstract := dd.Find(".mathjax").First().Text()
	abstract = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(abstract), "Abstract:"))

	dateText := strings.TrimSpace(dd.Find(".list-date").First().Text())
	if dateText == "" {
		dateText = strings.TrimSpace(dd.Find(".list-dateline").First().Text())
	}

	var publishedAt time.Time
	if match := dateExpr.FindString(dateText); match != "" {
		if parsed, err := time.Parse("2 Jan 2006", match); err == nil {
			publishedAt = parsed.UTC()
		}
	}

	source := a.name
	if category != "" {
		source = fmt.Sprintf("%s/%s", a.name, category)
	}

	return domain.Article{
		URL:         href,
		Title:       title,
		Description: abstract,
		PublishedAt: publishedAt,
		Source:      source,
		Topic:       a.topic,
	}, true
}

func buildListingURL(base string, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid category url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("skip", "0")
	query.Set("show", strconv.Itoa(pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
