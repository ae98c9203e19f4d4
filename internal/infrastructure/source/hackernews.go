package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"newsdigest/internal/domain"
	"newsdigest/internal/ports"
)

const (
	hnDefaultBaseURL = "https://hacker-news.firebaseio.com/v0"
	hnStoryLimit     = 100
	hnConcurrency    = 10
)

// HackerNewsFilters restrict which top stories qualify as articles.
type HackerNewsFilters struct {
	MinScore int
	MaxAge   time.Duration
	Keywords []string
}

// HackerNewsAdapter pulls trending stories from the Hacker News API and
// keeps the ones matching the topic's keyword filters.
type HackerNewsAdapter struct {
	name    string
	topic   string
	baseURL string
	filters HackerNewsFilters
	client  *http.Client
	clock   func() time.Time
}

var _ ports.SourceAdapter = (*HackerNewsAdapter)(nil)

// NewHackerNewsAdapter wires the adapter against the public API; baseURL is
// overridable for tests.
func NewHackerNewsAdapter(name, topic string, filters HackerNewsFilters, client *http.Client) *HackerNewsAdapter {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if filters.MaxAge <= 0 {
		filters.MaxAge = 48 * time.Hour
	}
	return &HackerNewsAdapter{
		name:    name,
		topic:   topic,
		baseURL: hnDefaultBaseURL,
		filters: filters,
		client:  client,
		clock:   time.Now,
	}
}

// Name identifies the adapter inside the failure manifest.
func (a *HackerNewsAdapter) Name() string {
	return a.name
}

type hnStory struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Text  string `json:"text"`
	Score int    `json:"score"`
	Time  int64  `json:"time"`
	Type  string `json:"type"`
}

// Fetch retrieves the top story IDs and resolves them with bounded
// concurrency. Individual story lookups that fail are skipped; only the
// top-stories listing itself is fatal for the source.
func (a *HackerNewsAdapter) Fetch(ctx context.Context) ([]domain.Article, error) {
	ids, err := a.fetchTopIDs(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) > hnStoryLimit {
		ids = ids[:hnStoryLimit]
	}

	stories := make([]*hnStory, len(ids))
	sem := make(chan struct{}, hnConcurrency)
	done := make(chan int, len(ids))

	for i, id := range ids {
		go func(idx int, storyID int64) {
			sem <- struct{}{}
			defer func() { <-sem }()

			story, fetchErr := a.fetchStory(ctx, storyID)
			if fetchErr == nil {
				stories[idx] = story
			}
			done <- idx
		}(i, id)
	}
	for range ids {
		<-done
	}

	cutoff := a.clock().Add(-a.filters.MaxAge)
	articles := make([]domain.Article, 0, len(stories))
	for _, story := range stories {
		if story == nil || !a.matches(story, cutoff) {
			continue
		}
		articles = append(articles, a.toArticle(story))
	}

	return articles, nil
}

func (a *HackerNewsAdapter) fetchTopIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := a.getJSON(ctx, a.baseURL+"/topstories.json", &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (a *HackerNewsAdapter) fetchStory(ctx context.Context, id int64) (*hnStory, error) {
	var story hnStory
	if err := a.getJSON(ctx, fmt.Sprintf("%s/item/%d.json", a.baseURL, id), &story); err != nil {
		return nil, err
	}
	return &story, nil
}

func (a *HackerNewsAdapter) getJSON(ctx context.Context, endpoint string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &domain.FetchError{
			Source: a.name,
			Kind:   domain.FailureRateLimited,
			Err:    fmt.Errorf("hacker news returned %s", resp.Status),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return &domain.FetchError{
			Source: a.name,
			Kind:   domain.FailureUnreachable,
			Err:    fmt.Errorf("hacker news returned %s", resp.Status),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &domain.FetchError{
			Source: a.name,
			Kind:   domain.FailureParse,
			Err:    fmt.Errorf("decode response: %w", err),
		}
	}

	return nil
}

// matches applies the score, age, URL, and keyword filters. Text-only posts
// (Ask HN) carry no external URL and are skipped.
func (a *HackerNewsAdapter) matches(story *hnStory, cutoff time.Time) bool {
	if story.URL == "" || story.Score < a.filters.MinScore {
		return false
	}
	if story.Time > 0 && time.Unix(story.Time, 0).Before(cutoff) {
		return false
	}
	if len(a.filters.Keywords) == 0 {
		return true
	}

	title := strings.ToLower(story.Title)
	for _, keyword := range a.filters.Keywords {
		if strings.Contains(title, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}

func (a *HackerNewsAdapter) toArticle(story *hnStory) domain.Article {
	var publishedAt time.Time
	if story.Time > 0 {
		publishedAt = time.Unix(story.Time, 0).UTC()
	}

	description := story.Text
	if description == "" {
		description = story.Title
	}

	return domain.Article{
		URL:         story.URL,
		Title:       story.Title,
		Description: description,
		PublishedAt: publishedAt,
		Source:      a.name,
		Topic:       a.topic,
	}
}
