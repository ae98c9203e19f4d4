package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"newsdigest/internal/domain"
	"newsdigest/internal/ports"
)

const defaultFeedCap = 10

// RSSAdapter fetches one RSS/Atom feed and normalizes its items.
type RSSAdapter struct {
	name        string
	topic       string
	feedURL     string
	maxArticles int
	client      *http.Client
	parser      *gofeed.Parser
}

var _ ports.SourceAdapter = (*RSSAdapter)(nil)

// NewRSSAdapter wires one feed endpoint; maxArticles defaults to 10.
func NewRSSAdapter(name, topic, feedURL string, maxArticles int, client *http.Client) *RSSAdapter {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if maxArticles <= 0 {
		maxArticles = defaultFeedCap
	}
	return &RSSAdapter{
		name:        name,
		topic:       topic,
		feedURL:     feedURL,
		maxArticles: maxArticles,
		client:      client,
		parser:      gofeed.NewParser(),
	}
}

// Name identifies the feed inside the failure manifest.
func (a *RSSAdapter) Name() string {
	return a.name
}

// Fetch downloads and parses the feed, returning at most maxArticles items.
func (a *RSSAdapter) Fetch(ctx context.Context) ([]domain.Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "newsdigest/1.0")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &domain.FetchError{
			Source: a.name,
			Kind:   domain.FailureRateLimited,
			Err:    fmt.Errorf("feed returned %s", resp.Status),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &domain.FetchError{
			Source: a.name,
			Kind:   domain.FailureUnreachable,
			Err:    fmt.Errorf("feed returned %s", resp.Status),
		}
	}

	feed, err := a.parser.Parse(resp.Body)
	if err != nil {
		return nil, &domain.FetchError{
			Source: a.name,
			Kind:   domain.FailureParse,
			Err:    fmt.Errorf("parse feed: %w", err),
		}
	}

	articles := make([]domain.Article, 0, a.maxArticles)
	for _, item := range feed.Items {
		if len(articles) >= a.maxArticles {
			break
		}
		if item == nil || item.Link == "" {
			continue
		}
		articles = append(articles, domain.Article{
			URL:         item.Link,
			Title:       item.Title,
			Description: itemBody(item),
			PublishedAt: itemTime(item),
			Source:      a.name,
			Topic:       a.topic,
		})
	}

	return articles, nil
}

// itemBody prefers full content over the summary field.
func itemBody(item *gofeed.Item) string {
	if item.Content != "" {
		return item.Content
	}
	return item.Description
}

// itemTime falls back to the update time; a zero time means unknown and the
// ranker treats it as oldest.
func itemTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC()
	}
	return time.Time{}
}
