package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ValidationError holds details about a configuration validation failure.
type ValidationError struct {
	Field   string
	Message string
	Context string
}

func (e ValidationError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (in %s)", e.Field, e.Message, e.Context)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, e := range errs {
		msgs = append(msgs, "  - "+e.Error())
	}
	return fmt.Sprintf("validation failed with %d error(s):\n%s", len(errs), strings.Join(msgs, "\n"))
}

// HasErrors returns true if there are any validation errors.
func (errs ValidationErrors) HasErrors() bool {
	return len(errs) > 0
}

var knownLevels = []string{"debug", "info", "warn", "warning", "error"}

// Validate checks a config for errors and returns detailed validation errors.
func Validate(cfg *Config) ValidationErrors {
	var errs ValidationErrors
	add := func(field, ctx, format string, args ...interface{}) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Context: ctx})
	}

	for field, v := range map[string]string{"runs": cfg.Paths.Runs, "bundles": cfg.Paths.Bundles, "logs": cfg.Paths.Logs} {
		if strings.TrimSpace(v) == "" {
			add(field, "paths", "path is required")
		}
	}

	hn := cfg.Sources.HN
	rd := cfg.Sources.Reddit
	if !hn.IsEnabled() && !rd.Enabled {
		add("sources", "", "at least one source must be enabled")
	}
	if hn.IsEnabled() {
		if strings.TrimSpace(hn.Query) == "" {
			add("query", "sources.hn", "query is required")
		}
		if hn.HitsPerPage < 1 || hn.HitsPerPage > 1000 {
			add("hits_per_page", "sources.hn", "must be between 1 and 1000, got %d", hn.HitsPerPage)
		}
		checkURL(add, "api_url", "sources.hn", hn.APIURL)
		checkDuration(add, "timeout", "sources.hn", hn.Timeout)
	}
	if rd.Enabled {
		if strings.TrimSpace(rd.Subreddit) == "" {
			add("subreddit", "sources.reddit", "subreddit is required")
		}
		if rd.Limit < 1 || rd.Limit > 100 {
			add("limit", "sources.reddit", "must be between 1 and 100, got %d", rd.Limit)
		}
		checkURL(add, "base_url", "sources.reddit", rd.BaseURL)
		checkDuration(add, "timeout", "sources.reddit", rd.Timeout)
	}

	if len(cfg.Pricing.Currency) != 3 {
		add("currency", "pricing", "expected a 3-letter currency code, got %q", cfg.Pricing.Currency)
	}
	if cfg.Pricing.Price < 0 {
		add("price", "pricing", "must not be negative")
	}

	if s3 := cfg.Publish.S3; s3.Enabled {
		if s3.Endpoint == "" {
			add("endpoint", "publish.s3", "endpoint is required when enabled")
		}
		if s3.Bucket == "" {
			add("bucket", "publish.s3", "bucket is required when enabled")
		}
		checkDuration(add, "presign_ttl", "publish.s3", s3.PresignTTL)
	}

	level := strings.ToLower(cfg.Log.Level)
	known := false
	for _, l := range knownLevels {
		if l == level {
			known = true
			break
		}
	}
	if !known {
		add("level", "log", "unknown level %q, known levels: %s", cfg.Log.Level, strings.Join(knownLevels, ", "))
	}

	return errs
}

func checkURL(add func(string, string, string, ...interface{}), field, ctx, raw string) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		add(field, ctx, "invalid URL %q", raw)
	}
}

func checkDuration(add func(string, string, string, ...interface{}), field, ctx, raw string) {
	if raw == "" {
		return
	}
	if _, err := time.ParseDuration(raw); err != nil {
		add(field, ctx, "invalid duration %q", raw)
	}
}

// ValidateConfig is a convenience function returning nil when cfg is valid.
func ValidateConfig(cfg *Config) error {
	errs := Validate(cfg)
	if errs.HasErrors() {
		return errs
	}
	return nil
}
