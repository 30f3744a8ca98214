package product

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/chr1sbest/pipegate/internal/atomicfile"
	"github.com/chr1sbest/pipegate/internal/model"
	"github.com/chr1sbest/pipegate/internal/runerr"
)

// packFiles maps each deliverable to its template. Templates only see the
// product spec, so output is a pure function of it.
var packFiles = map[string]string{
	"README.md": `# {{.ValueProp}}

A template pack for {{.TargetUser}}.

## Contents
{{range .Deliverables}}- {{.}}
{{end}}
See templates/ to get started and docs/usage.md for a walkthrough.
`,
	"LICENSE.txt": mitLicense,
	"templates/base_template.md": `# Base Template

Problem: {{.ValueProp}}

## Context
Describe the situation in two or three sentences.

## Steps
1. ...
2. ...
`,
	"templates/advanced_template.md": `# Advanced Template

Extends the base template for {{.TargetUser}} who need more structure.

## Constraints
{{range .Constraints}}- {{.}}
{{end}}
## Checklist
{{range .AcceptanceCriteria}}- [ ] {{.}}
{{end}}`,
	"examples/filled_example.md": `# Example

A filled-out copy of templates/base_template.md.

Problem: {{.ValueProp}}
`,
	"docs/usage.md": `# Usage

1. Copy a file from templates/.
2. Fill in each section.
3. Compare against examples/filled_example.md.
`,
	"docs/customization.md": `# Customization

Templates are plain Markdown. Rename headings, drop sections, or add your own.
Out of scope:
{{range .NonGoals}}- {{.}}
{{end}}`,
	"listing.md": `# Listing

{{.ValueProp}}
`,
}

const mitLicense = `MIT License

Copyright (c) 2026 pipegate

Permission is hereby granted, free of charge, to any person obtaining a copy of this software and associated documentation files (the "Software"), to deal in the Software without restriction, including without limitation the rights to use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of the Software, and to permit persons to whom the Software is furnished to do so, subject to the following conditions:

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
`

var packTemplates = template.Must(parsePackTemplates())

func parsePackTemplates() (*template.Template, error) {
	root := template.New("pack")
	for name, body := range packFiles {
		if _, err := root.New(name).Parse(body); err != nil {
			return nil, err
		}
	}
	return root, nil
}

// TemplatePackGenerator writes template_pack deliverables into a staging directory.
type TemplatePackGenerator struct {
	writer atomicfile.Writer
}

func NewTemplatePackGenerator() *TemplatePackGenerator {
	return &TemplatePackGenerator{}
}

// Generate renders every deliverable under dir and returns the artifacts
// sorted by path. Each file is written atomically and hashed after the write.
func (g *TemplatePackGenerator) Generate(spec model.ProductSpec, dir string) ([]model.Artifact, error) {
	const op = "generate files"
	if spec.ProductType != model.ProductTemplatePack {
		return nil, runerr.Newf(runerr.KindGeneration, op, "unsupported product type %q", spec.ProductType)
	}

	var missing []string
	if strings.TrimSpace(spec.ProductID) == "" {
		missing = append(missing, "product_id")
	}
	if len(spec.Deliverables) == 0 {
		missing = append(missing, "deliverables")
	}
	if len(missing) > 0 {
		return nil, runerr.Newf(runerr.KindGeneration, op, "product spec missing required fields: %s", strings.Join(missing, ", "))
	}

	deliverables := append([]string(nil), spec.Deliverables...)
	sort.Strings(deliverables)

	artifacts := make([]model.Artifact, 0, len(deliverables))
	for _, rel := range deliverables {
		if packTemplates.Lookup(rel) == nil {
			return nil, runerr.Newf(runerr.KindGeneration, op, "no template for deliverable %q", rel)
		}
		if !filepath.IsLocal(filepath.FromSlash(rel)) {
			return nil, runerr.Newf(runerr.KindGeneration, op, "deliverable path %q escapes the staging dir", rel)
		}

		var buf bytes.Buffer
		if err := packTemplates.ExecuteTemplate(&buf, rel, spec); err != nil {
			return nil, runerr.New(runerr.KindGeneration, op, fmt.Errorf("render %s: %w", rel, err))
		}

		target := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, runerr.New(runerr.KindGeneration, op, err)
		}
		if err := g.writer.WriteFile(target, buf.Bytes(), 0o644); err != nil {
			return nil, runerr.New(runerr.KindGeneration, op, err)
		}
		sum, size, err := atomicfile.SHA256File(target)
		if err != nil {
			return nil, runerr.New(runerr.KindGeneration, op, err)
		}
		artifacts = append(artifacts, model.Artifact{
			Bytes:  size,
			Kind:   kindOf(rel),
			Path:   rel,
			SHA256: sum,
		})
	}
	return artifacts, nil
}

func kindOf(rel string) string {
	if strings.EqualFold(path.Ext(rel), ".md") {
		return "markdown"
	}
	return "text"
}
