package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	gomail "gopkg.in/mail.v2"

	"newsdigest/internal/domain"
	"newsdigest/internal/ports"
)

// Config holds SMTP settings for digest delivery.
type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	Recipient string
}

// Composer renders a plain-text digest for one topic.
type Composer struct {
	clock func() time.Time
}

var _ ports.Composer = (*Composer)(nil)

// NewComposer builds a plain-text composer.
func NewComposer() *Composer {
	return &Composer{clock: time.Now}
}

// Compose turns the selected articles into a subject and body.
func (c *Composer) Compose(topic string, selected []domain.SelectedArticle) (domain.Digest, error) {
	if len(selected) == 0 {
		return domain.Digest{}, fmt.Errorf("nothing to compose for topic %s", topic)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Daily digest for %s: %d article(s)\n\n", topic, len(selected))
	for i, item := range selected {
		fmt.Fprintf(&b, "%d. %s\n", i+1, item.Article.Title)
		fmt.Fprintf(&b, "   Source: %s | Score: %.2f\n", item.Article.Source, item.Score)
		if summary := strings.TrimSpace(item.Summary); summary != "" {
			fmt.Fprintf(&b, "   %s\n", summary)
		}
		fmt.Fprintf(&b, "   %s\n\n", item.Article.URL)
	}

	subject := fmt.Sprintf("[%s] %s: %d article(s)",
		topic, c.clock().Format("2006-01-02"), len(selected))

	return domain.Digest{Topic: topic, Subject: subject, Body: b.String()}, nil
}

// Sender delivers digests via SMTP.
type Sender struct {
	cfg Config
}

var _ ports.Sender = (*Sender)(nil)

// NewSender creates a sender with the given SMTP configuration.
func NewSender(cfg Config) *Sender {
	return &Sender{cfg: cfg}
}

// Send delivers the digest to the configured recipient.
func (s *Sender) Send(ctx context.Context, digest domain.Digest) error {
	if s.cfg.Host == "" || s.cfg.From == "" || s.cfg.Recipient == "" {
		return fmt.Errorf("email sender misconfigured")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", s.cfg.Recipient)
	m.SetHeader("Subject", digest.Subject)
	m.SetBody("text/plain", digest.Body)

	dialer := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	dialer.Timeout = 10 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && remaining < dialer.Timeout {
			dialer.Timeout = remaining
		}
	}

	if err := dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("dial and send: %w", err)
	}

	return nil
}
