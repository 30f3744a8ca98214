// Package packaging assembles generated artifacts into a bundle directory,
// manifest and zip, and optionally publishes the zip.
package packaging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/chr1sbest/pipegate/internal/atomicfile"
	"github.com/chr1sbest/pipegate/internal/config"
	"github.com/chr1sbest/pipegate/internal/model"
	"github.com/chr1sbest/pipegate/internal/runerr"
	"github.com/chr1sbest/pipegate/internal/schema"
)

// ManifestFileName sits at the root of every bundle directory.
const ManifestFileName = "bundle_manifest.json"

// Publisher uploads a finished bundle zip and returns a link to it.
type Publisher interface {
	Publish(ctx context.Context, key, path string) (string, error)
}

// Packager builds bundles under bundlesDir.
type Packager struct {
	bundlesDir string
	pricing    config.PricingConfig
	publisher  Publisher
	clock      func() time.Time
	writer     atomicfile.Writer
}

type Option func(*Packager)

// WithPublisher uploads each zip after it is written.
func WithPublisher(p Publisher) Option {
	return func(pk *Packager) { pk.publisher = p }
}

func WithClock(clock func() time.Time) Option {
	return func(pk *Packager) { pk.clock = clock }
}

func New(bundlesDir string, pricing config.PricingConfig, opts ...Option) *Packager {
	p := &Packager{bundlesDir: bundlesDir, pricing: pricing, clock: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// BundleDir is where the bundle for productID lands.
func (p *Packager) BundleDir(productID string) string {
	return filepath.Join(p.bundlesDir, productID)
}

// ZipPath is where the zipped bundle for productID lands.
func (p *Packager) ZipPath(productID string) string {
	return filepath.Join(p.bundlesDir, productID+".zip")
}

// Package copies artifacts from staging into the bundle directory, writes the
// manifest, and zips the result. The bundle directory is assembled next to its
// final location and swapped in with a rename, so a failed packaging leaves
// any earlier bundle for the product untouched.
func (p *Packager) Package(ctx context.Context, spec model.ProductSpec, artifacts []model.Artifact, staging string) (model.Bundle, error) {
	const op = "package bundle"
	if spec.ProductID == "" {
		return model.Bundle{}, runerr.Newf(runerr.KindValidation, op, "product id is required")
	}
	if len(artifacts) == 0 {
		return model.Bundle{}, runerr.Newf(runerr.KindValidation, op, "no artifacts to package")
	}
	if err := os.MkdirAll(p.bundlesDir, 0o755); err != nil {
		return model.Bundle{}, runerr.New(runerr.KindGeneration, op, err)
	}

	sorted := append([]model.Artifact(nil), artifacts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	tmpDir, err := os.MkdirTemp(p.bundlesDir, "."+spec.ProductID+".tmp-")
	if err != nil {
		return model.Bundle{}, runerr.New(runerr.KindGeneration, op, err)
	}
	defer os.RemoveAll(tmpDir)

	for _, a := range sorted {
		if err := copyVerified(filepath.Join(staging, filepath.FromSlash(a.Path)), filepath.Join(tmpDir, filepath.FromSlash(a.Path)), a); err != nil {
			return model.Bundle{}, runerr.New(runerr.KindGeneration, op, err)
		}
	}

	manifest := p.manifest(spec, sorted)
	data, err := atomicfile.MarshalJSON(manifest)
	if err != nil {
		return model.Bundle{}, runerr.New(runerr.KindGeneration, op, err)
	}
	if err := schema.Validate(schema.BundleManifest, data); err != nil {
		return model.Bundle{}, runerr.Validation(op, err)
	}
	if err := p.writer.WriteFile(filepath.Join(tmpDir, ManifestFileName), data, 0o644); err != nil {
		return model.Bundle{}, runerr.New(runerr.KindGeneration, op, err)
	}

	dir := p.BundleDir(spec.ProductID)
	if err := os.RemoveAll(dir); err != nil {
		return model.Bundle{}, runerr.New(runerr.KindGeneration, op, err)
	}
	if err := os.Rename(tmpDir, dir); err != nil {
		return model.Bundle{}, runerr.New(runerr.KindGeneration, op, err)
	}

	zipPath := p.ZipPath(spec.ProductID)
	if err := p.writeZip(dir, zipPath, sorted, manifest.CreatedAt); err != nil {
		return model.Bundle{}, runerr.New(runerr.KindGeneration, op, err)
	}

	bundle := model.Bundle{
		Dir:          dir,
		ZipPath:      zipPath,
		ManifestPath: filepath.Join(dir, ManifestFileName),
		Manifest:     manifest,
	}
	if p.publisher != nil {
		link, err := p.publisher.Publish(ctx, filepath.Base(zipPath), zipPath)
		if err != nil {
			return model.Bundle{}, runerr.Transport("publish bundle", err)
		}
		bundle.PublishedURL = link
	}
	return bundle, nil
}

func (p *Packager) manifest(spec model.ProductSpec, artifacts []model.Artifact) model.BundleManifest {
	whatYouGet := append([]string{}, spec.Deliverables...)
	return model.BundleManifest{
		Artifacts: artifacts,
		BundleID:  spec.ProductID,
		CreatedAt: p.clock().UTC(),
		Listing: model.ListingDraft{
			FAQ:               []map[string]string{},
			LongDescriptionMD: spec.ValueProp,
			Requirements:      []string{},
			ShortDescription:  spec.ValueProp,
			Title:             spec.ValueProp,
			WhatYouGet:        whatYouGet,
		},
		Pricing: model.PricingSuggestion{
			Currency:  p.pricing.Currency,
			Price:     p.pricing.Price,
			Rationale: p.pricing.Rationale,
		},
		ProductID: spec.ProductID,
	}
}

// copyVerified copies src to dst and checks the copy against the artifact's
// recorded hash and size.
func copyVerified(src, dst string, a model.Artifact) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open artifact %s: %w", a.Path, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy artifact %s: %w", a.Path, err)
	}
	if err := out.Close(); err != nil {
		return err
	}

	sum, size, err := atomicfile.SHA256File(dst)
	if err != nil {
		return err
	}
	if sum != a.SHA256 || size != a.Bytes {
		return fmt.Errorf("artifact %s changed after generation: sha256 %s (%d bytes), want %s (%d bytes)", a.Path, sum, size, a.SHA256, a.Bytes)
	}
	return nil
}
