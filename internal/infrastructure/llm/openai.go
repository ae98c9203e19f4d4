package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"newsdigest/internal/domain"
	"newsdigest/internal/ports"
)

const (
	beginnerPrompt = "You summarize technology news for curious readers with no " +
		"technical background. Write 2-3 short sentences in plain language, " +
		"avoiding jargon, explaining why the story matters."

	csStudentPrompt = "You summarize technology news for computer science " +
		"students. Write 2-3 concise sentences, keep the correct technical " +
		"terms, and call out the mechanism or result that makes the story " +
		"interesting."
)

// Summarizer generates per-article digest text via the OpenAI chat API.
type Summarizer struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

var _ ports.Summarizer = (*Summarizer)(nil)

// NewSummarizer builds a client; model defaults to gpt-4o-mini.
func NewSummarizer(apiKey, model string, maxTokens int, temperature float32) *Summarizer {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if maxTokens <= 0 {
		maxTokens = 500
	}
	return &Summarizer{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// Summarize asks the model for a short audience-tailored summary. Failures
// come back as a SummarizeError; the orchestrator falls back to the article
// description.
func (s *Summarizer) Summarize(ctx context.Context, article domain.Article, audience domain.AudienceLevel) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(audience)},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(article)},
		},
	})
	if err != nil {
		return "", &domain.SummarizeError{URL: article.URL, Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &domain.SummarizeError{URL: article.URL, Err: fmt.Errorf("empty completion")}
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func systemPrompt(audience domain.AudienceLevel) string {
	if audience == domain.AudienceCSStudent {
		return csStudentPrompt
	}
	return beginnerPrompt
}

func userPrompt(article domain.Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", article.Title)
	fmt.Fprintf(&b, "Source: %s\n", article.Source)
	if !article.PublishedAt.IsZero() {
		fmt.Fprintf(&b, "Published: %s\n", article.PublishedAt.Format("2006-01-02"))
	}
	fmt.Fprintf(&b, "\n%s\n", article.Description)
	return b.String()
}
