package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// Query parameters that only identify a click, never a document.
var trackingParams = map[string]struct{}{
	"fbclid": {},
	"gclid":  {},
	"yclid":  {},
	"igshid": {},
	"mc_cid": {},
	"mc_eid": {},
}

// CanonicalURL normalizes a raw URL into the identity key used for
// deduplication: lowercased scheme and host, tracking parameters and
// fragment removed, remaining query sorted, trailing slash stripped.
// Non-absolute or non-HTTP URLs are rejected; such articles never enter
// the pipeline.
func CanonicalURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty url")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", raw, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return "", fmt.Errorf("url %q is not absolute", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("url %q has unsupported scheme %s", raw, u.Scheme)
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	query := u.Query()
	for key := range query {
		if _, tracked := trackingParams[key]; tracked || strings.HasPrefix(strings.ToLower(key), "utm_") {
			query.Del(key)
		}
	}
	u.RawQuery = query.Encode() // Encode sorts keys, keeping output stable

	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String(), nil
}
