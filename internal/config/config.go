package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"newsdigest/internal/domain"
)

const (
	defaultTimezone  = "UTC"
	configPathEnv    = "NEWSDIGEST_CONFIG"
	databaseDSNEnv   = "DATABASE_DSN"
	openAIAPIKeyEnv  = "OPENAI_API_KEY"
	openAIModelEnv   = "OPENAI_MODEL"
	smtpPasswordEnv  = "SMTP_PASSWORD"
	recipientEnv     = "DIGEST_RECIPIENT"
)

// Config holds every setting required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	History   HistoryConfig   `yaml:"history"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Ranking   RankingConfig   `yaml:"ranking"`
	Dedup     DedupConfig     `yaml:"dedup"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Email     EmailConfig     `yaml:"email"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Topics    []TopicConfig   `yaml:"topics"`
}

// LoggingConfig selects the console log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SchedulerConfig defines when scheduled digest runs fire.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// HistoryConfig describes where sent-article history lives. When DSN is set
// the Postgres store is used, otherwise the JSON file store.
type HistoryConfig struct {
	DSN        string `yaml:"dsn"`
	File       string `yaml:"file"`
	WindowDays int    `yaml:"windowDays"`
}

// Window returns the retention window as a duration.
func (h HistoryConfig) Window() time.Duration {
	days := h.WindowDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}

// PipelineConfig bounds the orchestration timing.
type PipelineConfig struct {
	SourceTimeoutSeconds int `yaml:"sourceTimeoutSeconds"`
	TopicBudgetSeconds   int `yaml:"topicBudgetSeconds"`
}

// SourceTimeout is the independent per-adapter fetch timeout.
func (p PipelineConfig) SourceTimeout() time.Duration {
	return time.Duration(p.SourceTimeoutSeconds) * time.Second
}

// TopicBudget bounds the whole fetch-through-rank sequence of one topic.
func (p PipelineConfig) TopicBudget() time.Duration {
	return time.Duration(p.TopicBudgetSeconds) * time.Second
}

// RankingConfig overrides the composite score weights.
type RankingConfig struct {
	DepthWeight   float64 `yaml:"depthWeight"`
	RecencyWeight float64 `yaml:"recencyWeight"`
	TrustWeight   float64 `yaml:"trustWeight"`
}

// DedupConfig tunes duplicate detection.
type DedupConfig struct {
	TitleThreshold float64 `yaml:"titleThreshold"`
}

// OpenAIConfig defines how to contact the summarization API.
type OpenAIConfig struct {
	APIKey      string  `yaml:"apiKey"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"maxTokens"`
	Temperature float32 `yaml:"temperature"`
}

// EmailConfig wires all data required to deliver digests over SMTP.
type EmailConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	From      string `yaml:"from"`
	Recipient string `yaml:"recipient"`
}

// MetricsConfig exposes the Prometheus endpoint when Addr is non-empty.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// TopicConfig describes a single topic with its policy and sources.
type TopicConfig struct {
	Name              string           `yaml:"name"`
	AudienceLevel     string           `yaml:"audienceLevel"`
	MinQualityScore   float64          `yaml:"minQualityScore"`
	MaxArticlesPerDay int              `yaml:"maxArticlesPerDay"`
	TrustedSources    []string         `yaml:"trustedSources"`
	Feeds             []FeedConfig     `yaml:"feeds"`
	Arxiv             ArxivConfig      `yaml:"arxiv"`
	HackerNews        HackerNewsConfig `yaml:"hackerNews"`
}

// Policy converts the topic block to its domain policy.
func (t TopicConfig) Policy() domain.TopicPolicy {
	return domain.TopicPolicy{
		Name:              t.Name,
		MinQualityScore:   t.MinQualityScore,
		MaxArticlesPerDay: t.MaxArticlesPerDay,
		TrustedSources:    t.TrustedSources,
		AudienceLevel:     domain.AudienceLevel(t.AudienceLevel),
	}
}

// FeedConfig holds one RSS/Atom feed endpoint.
type FeedConfig struct {
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	MaxArticles int    `yaml:"maxArticles"`
}

// ArxivConfig holds the category listing endpoints to crawl.
type ArxivConfig struct {
	Categories     []CategoryConfig `yaml:"categories"`
	MaxPerCategory int              `yaml:"maxPerCategory"`
}

// CategoryConfig names one arXiv category listing URL.
type CategoryConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// HackerNewsConfig enables the Hacker News source with its filters.
type HackerNewsConfig struct {
	Enabled     bool     `yaml:"enabled"`
	MinScore    int      `yaml:"minScore"`
	MaxAgeHours int      `yaml:"maxAgeHours"`
	Keywords    []string `yaml:"keywords"`
}

// Load reads YAML configuration (if present) and applies environment
// overrides. Missing file settings keep their defaults.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			cfg = defaultConfig()
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

// Validate checks every topic block; the first invalid policy aborts before
// any topic runs.
func (c Config) Validate() error {
	if len(c.Topics) == 0 {
		return fmt.Errorf("config: no topics configured")
	}
	for _, topic := range c.Topics {
		if err := topic.Policy().Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.History.DSN = v
	}

	if v := os.Getenv(openAIAPIKeyEnv); v != "" {
		c.OpenAI.APIKey = v
	}

	if v := os.Getenv(openAIModelEnv); v != "" {
		c.OpenAI.Model = v
	}

	if v := os.Getenv(smtpPasswordEnv); v != "" {
		c.Email.Password = v
	}

	if v := os.Getenv(recipientEnv); v != "" {
		c.Email.Recipient = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:   LoggingConfig{Level: "info"},
		Scheduler: SchedulerConfig{CronExpression: "0 8 * * *", Timezone: defaultTimezone, location: tz},
		History:   HistoryConfig{File: "data/sent_articles.json", WindowDays: 30},
		Pipeline:  PipelineConfig{SourceTimeoutSeconds: 20, TopicBudgetSeconds: 120},
		Ranking:   RankingConfig{DepthWeight: 0.4, RecencyWeight: 0.3, TrustWeight: 0.3},
		Dedup:     DedupConfig{TitleThreshold: 0.85},
		OpenAI: OpenAIConfig{
			Model:       "gpt-4o-mini",
			MaxTokens:   500,
			Temperature: 0.3,
		},
		Email: EmailConfig{Port: 587},
	}
}
