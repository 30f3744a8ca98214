// Package model holds the data shapes passed between pipeline collaborators.
package model

import "time"

// RawItem is one fetched source record. Field names follow the HN Algolia
// hit shape; other sources map onto it.
type RawItem struct {
	ObjectID    string `json:"objectID"`
	Source      string `json:"source,omitempty"`
	Title       string `json:"title,omitempty"`
	StoryTitle  string `json:"story_title,omitempty"`
	Text        string `json:"text,omitempty"`
	StoryText   string `json:"story_text,omitempty"`
	URL         string `json:"url,omitempty"`
	StoryURL    string `json:"story_url,omitempty"`
	Author      string `json:"author,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	Points      int    `json:"points,omitempty"`
	NumComments int    `json:"num_comments,omitempty"`
}

// SourceRef points back at the item a piece of evidence came from.
type SourceRef struct {
	SourceName   string    `json:"source_name"`
	SourceItemID string    `json:"source_item_id"`
	SourceURL    string    `json:"source_url"`
	RetrievedAt  time.Time `json:"retrieved_at"`
}

type Evidence struct {
	Ref     SourceRef          `json:"ref"`
	Quote   string             `json:"quote"`
	Signals map[string]float64 `json:"signals"`
	Notes   *string            `json:"notes"`
}

// Problem is a candidate pain point extracted from raw items.
type Problem struct {
	ProblemID      string             `json:"problem_id"`
	Title          string             `json:"title"`
	Summary        string             `json:"summary"`
	WhoIsHurt      string             `json:"who_is_hurt"`
	WhyNow         string             `json:"why_now"`
	Evidence       []Evidence         `json:"evidence"`
	Tags           []string           `json:"tags"`
	Score          float64            `json:"score"`
	ScoreBreakdown map[string]float64 `json:"score_breakdown"`
}

// ProductType tags what kind of product a spec describes.
type ProductType string

const ProductTemplatePack ProductType = "template_pack"

type ProductSpec struct {
	ProductID          string      `json:"product_id"`
	ProblemID          string      `json:"problem_id"`
	ProductType        ProductType `json:"product_type"`
	TargetUser         string      `json:"target_user"`
	ValueProp          string      `json:"value_prop"`
	Deliverables       []string    `json:"deliverables"`
	NonGoals           []string    `json:"non_goals"`
	Constraints        []string    `json:"constraints"`
	AcceptanceCriteria []string    `json:"acceptance_criteria"`
}

// Artifact describes one generated file, relative to its bundle root.
type Artifact struct {
	Bytes  int64  `json:"bytes"`
	Kind   string `json:"kind"`
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

type ListingDraft struct {
	FAQ               []map[string]string `json:"faq"`
	LongDescriptionMD string              `json:"long_description_md"`
	Requirements      []string            `json:"requirements"`
	ShortDescription  string              `json:"short_description"`
	Title             string              `json:"title"`
	WhatYouGet        []string            `json:"what_you_get"`
}

type PricingSuggestion struct {
	Currency  string  `json:"currency"`
	Price     float64 `json:"price"`
	Rationale string  `json:"rationale"`
}

// BundleManifest is written as bundle_manifest.json at the bundle root.
type BundleManifest struct {
	Artifacts []Artifact        `json:"artifacts"`
	BundleID  string            `json:"bundle_id"`
	CreatedAt time.Time         `json:"created_at"`
	Listing   ListingDraft      `json:"listing"`
	Pricing   PricingSuggestion `json:"pricing"`
	ProductID string            `json:"product_id"`
}

// Bundle is the packaging step's result.
type Bundle struct {
	Dir          string
	ZipPath      string
	ManifestPath string
	Manifest     BundleManifest
	// PublishedURL is set when the bundle was uploaded to remote storage.
	PublishedURL string
}
