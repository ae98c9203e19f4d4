package domain

import (
	"context"
	"errors"
	"fmt"
)

// FailureKind classifies why one source fetch produced no articles.
type FailureKind string

const (
	FailureTimeout     FailureKind = "timeout"
	FailureParse       FailureKind = "parse_error"
	FailureUnreachable FailureKind = "unreachable"
	FailureRateLimited FailureKind = "rate_limited"
)

// FetchError is the typed failure of a single source adapter invocation.
// The aggregator absorbs it into the run's failure manifest; it never
// aborts sibling sources.
type FetchError struct {
	Source string
	Kind   FailureKind
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.Source, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ClassifyFetchErr wraps an adapter error into a FetchError tagged with the
// source name. Already-typed errors keep their kind; context deadlines map
// to a timeout; everything else counts as unreachable.
func ClassifyFetchErr(source string, err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		if fe.Source == "" {
			fe.Source = source
		}
		return fe
	}
	kind := FailureUnreachable
	if errors.Is(err, context.DeadlineExceeded) {
		kind = FailureTimeout
	}
	return &FetchError{Source: source, Kind: kind, Err: err}
}

// SummarizeError marks a failed summarization call. The orchestrator
// recovers it locally by falling back to the article description.
type SummarizeError struct {
	URL string
	Err error
}

func (e *SummarizeError) Error() string {
	return fmt.Sprintf("summarize %s: %v", e.URL, e.Err)
}

func (e *SummarizeError) Unwrap() error {
	return e.Err
}

// SendError marks a failed delivery. It has no safe degraded behavior and
// propagates to the orchestrator's caller on the run result.
type SendError struct {
	Topic string
	Err   error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send digest for %s: %v", e.Topic, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// ConfigError marks a malformed topic policy. It is fatal for the topic and
// stops the run before any fetching happens.
type ConfigError struct {
	Topic  string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Topic == "" {
		return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("config: topic %s: %s: %s", e.Topic, e.Field, e.Reason)
}
