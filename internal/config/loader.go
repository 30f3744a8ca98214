package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"unicode"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads the YAML config at path. A .env file next to it is loaded into
// the environment first, then ${VAR} references are expanded. A missing
// config file yields the defaults. The result is validated.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultFileName
	}
	// Existing environment wins over .env, so an absent file is fine.
	_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := Default()
		if err := ValidateConfig(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed for %s:\n%w", path, err)
	}
	return cfg, nil
}

// Parse expands environment references in data and decodes it, filling
// defaults for anything left unset. It does not validate.
func Parse(data []byte) (*Config, error) {
	data = ExpandEnvVars(data)

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// TemplateData fills the starter config written by `pipegate init`.
type TemplateData struct {
	Root  string
	Query string
}

const defaultConfigTemplate = `# pipegate configuration
root: "{{.Root}}"

paths:
  runs: runs
  bundles: outputs/bundles
  logs: logs

sources:
  hn:
    query: "${PIPEGATE_HN_QUERY:-{{.Query}}}"
    hits_per_page: 50
    tags: [story]
    api_url: https://hn.algolia.com/api/v1/search_by_date
    timeout: 10s
  reddit:
    enabled: false
    subreddit: all
    limit: 20

approval:
  carry_forward: true
  approver: "${USER:-operator}"

pricing:
  currency: USD
  price: 19.0
  rationale: Flat MVP price.

publish:
  s3:
    enabled: false
    endpoint: "${PIPEGATE_S3_ENDPOINT}"
    bucket: "${PIPEGATE_S3_BUCKET}"
    access_key: "${PIPEGATE_S3_ACCESS_KEY}"
    secret_key: "${PIPEGATE_S3_SECRET_KEY}"
    use_ssl: true
    prefix: bundles
    presign_ttl: 24h

log:
  level: info
`

// RenderTemplate produces the starter config file.
func RenderTemplate(data TemplateData) ([]byte, error) {
	if data.Root == "" {
		data.Root = "."
	}
	if data.Query == "" {
		data.Query = "python"
	}
	if err := checkTemplateValue("root", data.Root); err != nil {
		return nil, err
	}
	if err := checkTemplateValue("query", data.Query); err != nil {
		return nil, err
	}
	tmpl, err := template.New("config").Parse(defaultConfigTemplate)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// checkTemplateValue rejects values that would break out of a quoted YAML
// scalar or a ${VAR:-default} reference.
func checkTemplateValue(name, v string) error {
	if strings.ContainsAny(v, "\"\\${}") || strings.ContainsFunc(v, unicode.IsControl) {
		return fmt.Errorf("invalid %s %q: contains characters the config template cannot hold", name, v)
	}
	return nil
}
