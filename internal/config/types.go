package config

import (
	"path/filepath"
	"time"
)

// DefaultFileName is the config file looked up in the working directory.
const DefaultFileName = "pipegate.yaml"

// Config is the full pipegate configuration, loaded once per process.
type Config struct {
	Root     string         `yaml:"root"`
	Paths    PathsConfig    `yaml:"paths"`
	Sources  SourcesConfig  `yaml:"sources"`
	Approval ApprovalConfig `yaml:"approval"`
	Pricing  PricingConfig  `yaml:"pricing"`
	Publish  PublishConfig  `yaml:"publish"`
	Log      LogConfig      `yaml:"log"`
}

// PathsConfig holds directories relative to Root unless absolute.
type PathsConfig struct {
	Runs    string `yaml:"runs"`
	Bundles string `yaml:"bundles"`
	Logs    string `yaml:"logs"`
}

type SourcesConfig struct {
	HN     HNConfig     `yaml:"hn"`
	Reddit RedditConfig `yaml:"reddit"`
}

// HNConfig configures the Hacker News Algolia search adapter.
type HNConfig struct {
	Enabled     *bool    `yaml:"enabled,omitempty"`
	Query       string   `yaml:"query"`
	HitsPerPage int      `yaml:"hits_per_page"`
	Tags        []string `yaml:"tags"`
	APIURL      string   `yaml:"api_url"`
	Timeout     string   `yaml:"timeout"`
}

// IsEnabled returns whether the source is enabled (defaults to true).
func (h HNConfig) IsEnabled() bool {
	if h.Enabled == nil {
		return true
	}
	return *h.Enabled
}

// RedditConfig configures the read-only subreddit listing adapter.
type RedditConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Subreddit string `yaml:"subreddit"`
	Limit     int    `yaml:"limit"`
	BaseURL   string `yaml:"base_url"`
	UserAgent string `yaml:"user_agent"`
	Timeout   string `yaml:"timeout"`
}

type ApprovalConfig struct {
	CarryForward *bool  `yaml:"carry_forward,omitempty"`
	Approver     string `yaml:"approver"`
}

// CarryForwardEnabled returns whether approvals follow the product into
// later runs (defaults to true).
func (a ApprovalConfig) CarryForwardEnabled() bool {
	if a.CarryForward == nil {
		return true
	}
	return *a.CarryForward
}

type PricingConfig struct {
	Currency  string  `yaml:"currency"`
	Price     float64 `yaml:"price"`
	Rationale string  `yaml:"rationale"`
}

type PublishConfig struct {
	S3 S3Config `yaml:"s3"`
}

// S3Config configures optional bundle upload to an S3-compatible store.
type S3Config struct {
	Enabled    bool   `yaml:"enabled"`
	Endpoint   string `yaml:"endpoint"`
	Bucket     string `yaml:"bucket"`
	Region     string `yaml:"region"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	UseSSL     bool   `yaml:"use_ssl"`
	Prefix     string `yaml:"prefix"`
	PresignTTL string `yaml:"presign_ttl"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Root == "" {
		c.Root = "."
	}
	if c.Paths.Runs == "" {
		c.Paths.Runs = "runs"
	}
	if c.Paths.Bundles == "" {
		c.Paths.Bundles = filepath.Join("outputs", "bundles")
	}
	if c.Paths.Logs == "" {
		c.Paths.Logs = "logs"
	}

	hn := &c.Sources.HN
	if hn.Query == "" {
		hn.Query = "python"
	}
	if hn.HitsPerPage == 0 {
		hn.HitsPerPage = 50
	}
	if len(hn.Tags) == 0 {
		hn.Tags = []string{"story"}
	}
	if hn.APIURL == "" {
		hn.APIURL = "https://hn.algolia.com/api/v1/search_by_date"
	}
	if hn.Timeout == "" {
		hn.Timeout = "10s"
	}

	rd := &c.Sources.Reddit
	if rd.Subreddit == "" {
		rd.Subreddit = "all"
	}
	if rd.Limit == 0 {
		rd.Limit = 20
	}
	if rd.BaseURL == "" {
		rd.BaseURL = "https://www.reddit.com"
	}
	if rd.UserAgent == "" {
		rd.UserAgent = "pipegate/0.1"
	}
	if rd.Timeout == "" {
		rd.Timeout = "10s"
	}

	if c.Approval.Approver == "" {
		c.Approval.Approver = "operator"
	}

	if c.Pricing.Currency == "" {
		c.Pricing.Currency = "USD"
	}
	if c.Pricing.Price == 0 {
		c.Pricing.Price = 19.0
	}
	if c.Pricing.Rationale == "" {
		c.Pricing.Rationale = "Flat MVP price."
	}

	if c.Publish.S3.Region == "" {
		c.Publish.S3.Region = "us-east-1"
	}
	if c.Publish.S3.PresignTTL == "" {
		c.Publish.S3.PresignTTL = "24h"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// RunsDir is the directory holding run folders, the KILL sentinel and the latest pointer.
func (c *Config) RunsDir() string { return c.resolve(c.Paths.Runs) }

// BundlesDir is where finished bundles and their zips land.
func (c *Config) BundlesDir() string { return c.resolve(c.Paths.Bundles) }

// LogsDir holds one log file per run.
func (c *Config) LogsDir() string { return c.resolve(c.Paths.Logs) }

// parseDuration returns fallback for empty or malformed values; Validate
// reports the malformed ones.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// GetTimeout parses and returns the HN request timeout.
func (h HNConfig) GetTimeout() time.Duration { return parseDuration(h.Timeout, 10*time.Second) }

// GetTimeout parses and returns the Reddit request timeout.
func (r RedditConfig) GetTimeout() time.Duration { return parseDuration(r.Timeout, 10*time.Second) }

// GetPresignTTL parses and returns how long published bundle links stay valid.
func (s S3Config) GetPresignTTL() time.Duration { return parseDuration(s.PresignTTL, 24*time.Hour) }
