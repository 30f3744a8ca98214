// Package discovery turns raw source items into ranked problem statements.
package discovery

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"github.com/chr1sbest/pipegate/internal/model"
	"github.com/chr1sbest/pipegate/internal/runerr"
)

// candidatePatterns flag questions, complaints and tooling gaps.
var candidatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bhow do i\b`),
	regexp.MustCompile(`\bproblem\b`),
	regexp.MustCompile(`\bissue\b`),
	regexp.MustCompile(`\bcan't\b`),
	regexp.MustCompile(`\bneed\b`),
	regexp.MustCompile(`\bmissing\b`),
	regexp.MustCompile(`\btool\b`),
	regexp.MustCompile(`\bhelp\b`),
	regexp.MustCompile(`\bwhy\b`),
	regexp.MustCompile(`\bwhat's the best\b`),
	regexp.MustCompile(`\bworkflow\b`),
}

// Extractor applies deterministic keyword heuristics. Items missing a
// title, id or timestamp are skipped.
type Extractor struct{}

func NewExtractor() *Extractor { return &Extractor{} }

// Extract returns one problem per qualifying item, deduplicated by problem id
// and in input order. An empty result is an extraction error.
func (e *Extractor) Extract(items []model.RawItem) ([]model.Problem, error) {
	var problems []model.Problem
	seen := make(map[string]bool)

	for _, item := range items {
		title := firstNonEmpty(item.Title, item.StoryTitle)
		text := firstNonEmpty(item.Text, item.StoryText)
		if title == "" || item.ObjectID == "" || item.CreatedAt == "" {
			continue
		}
		if !IsCandidate(title, text) {
			continue
		}
		retrieved, err := time.Parse(time.RFC3339, item.CreatedAt)
		if err != nil {
			continue
		}

		id := StableHash(title + text)
		if seen[id] {
			continue
		}
		seen[id] = true

		source := firstNonEmpty(item.Source, "hn_algolia")
		problems = append(problems, model.Problem{
			ProblemID: id,
			Title:     title,
			Summary:   summarize(title, text),
			WhoIsHurt: whoIsHurt(text),
			WhyNow:    whyNow(text),
			Evidence: []model.Evidence{{
				Ref: model.SourceRef{
					SourceName:   source,
					SourceItemID: item.ObjectID,
					SourceURL:    sourceURL(item, source),
					RetrievedAt:  retrieved.UTC(),
				},
				Quote:   title,
				Signals: map[string]float64{"title_length": float64(len(title))},
			}},
			Tags:           []string{sourceTag(source)},
			ScoreBreakdown: map[string]float64{},
		})
	}

	if len(problems) == 0 {
		return nil, runerr.Newf(runerr.KindExtraction, "extract", "no candidate problems extracted from %d raw items", len(items))
	}
	return problems, nil
}

// IsCandidate reports whether title or text reads like a problem worth solving.
func IsCandidate(title, text string) bool {
	combined := strings.ToLower(title + " " + text)
	for _, p := range candidatePatterns {
		if p.MatchString(combined) {
			return true
		}
	}
	return false
}

// StableHash is the first 16 hex chars of the SHA-256 of s.
func StableHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}

func summarize(title, text string) string {
	if title != "" {
		return title
	}
	if len(text) > 120 {
		return text[:120]
	}
	return text
}

func whoIsHurt(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "developer"):
		return "Developers"
	case strings.Contains(lower, "user"):
		return "Users"
	case strings.Contains(lower, "i ") || strings.Contains(lower, " my "):
		return "Individual user"
	default:
		return "Unknown"
	}
}

func whyNow(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "now"):
		return "Recent/urgent issue"
	case strings.Contains(lower, "today"):
		return "Current relevance"
	default:
		return "Not specified"
	}
}

func sourceURL(item model.RawItem, source string) string {
	if u := firstNonEmpty(item.URL, item.StoryURL); u != "" {
		return u
	}
	if source == "hn_algolia" {
		return "https://news.ycombinator.com/item?id=" + item.ObjectID
	}
	return ""
}

func sourceTag(source string) string {
	if source == "hn_algolia" {
		return "hn"
	}
	return source
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
