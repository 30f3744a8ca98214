package product

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chr1sbest/pipegate/internal/model"
	"github.com/chr1sbest/pipegate/internal/runerr"
)

func sampleProblem() model.Problem {
	return model.Problem{
		ProblemID: "0123456789abcdef",
		Title:     "How do I document a workflow tool",
		Summary:   "How do I document a workflow tool",
		WhoIsHurt: "Developers",
	}
}

func TestDefineTemplatePack(t *testing.T) {
	spec, err := NewDefiner().Define(sampleProblem())
	require.NoError(t, err)
	require.Equal(t, "0123456789abcdef", spec.ProductID)
	require.Equal(t, spec.ProductID, spec.ProblemID)
	require.Equal(t, model.ProductTemplatePack, spec.ProductType)
	require.Equal(t, "Developers", spec.TargetUser)
	require.Equal(t, TemplatePackDeliverables, spec.Deliverables)
	require.NotEmpty(t, spec.NonGoals)
	require.NotEmpty(t, spec.Constraints)
	require.NotEmpty(t, spec.AcceptanceCriteria)

	spec.Deliverables[0] = "mutated"
	require.Equal(t, "README.md", TemplatePackDeliverables[0])
}

func TestDefineDefaultsTargetUser(t *testing.T) {
	p := sampleProblem()
	p.WhoIsHurt = ""
	spec, err := NewDefiner().Define(p)
	require.NoError(t, err)
	require.Equal(t, "User", spec.TargetUser)
}

func TestDefineMissingFields(t *testing.T) {
	_, err := NewDefiner().Define(model.Problem{ProblemID: "x"})
	require.Error(t, err)
	require.Equal(t, runerr.KindDefinition, runerr.KindOf(err))
	require.Contains(t, err.Error(), "title, summary")
}

func TestGenerateWritesSortedHashedArtifacts(t *testing.T) {
	spec, err := NewDefiner().Define(sampleProblem())
	require.NoError(t, err)
	dir := t.TempDir()

	artifacts, err := NewTemplatePackGenerator().Generate(spec, dir)
	require.NoError(t, err)
	require.Len(t, artifacts, len(TemplatePackDeliverables))

	paths := make([]string, len(artifacts))
	for i, a := range artifacts {
		paths[i] = a.Path
	}
	require.True(t, sort.StringsAreSorted(paths))

	for _, a := range artifacts {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(a.Path)))
		require.NoError(t, err)
		sum := sha256.Sum256(data)
		require.Equal(t, hex.EncodeToString(sum[:]), a.SHA256, a.Path)
		require.Equal(t, int64(len(data)), a.Bytes)
		if strings.HasSuffix(a.Path, ".md") {
			require.Equal(t, "markdown", a.Kind)
		} else {
			require.Equal(t, "text", a.Kind)
		}
	}

	readme, err := os.ReadFile(filepath.Join(dir, "README.md"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(readme), "# How do I document a workflow tool\n"))
	require.Contains(t, string(readme), "- templates/base_template.md\n")

	leftovers, err := filepath.Glob(filepath.Join(dir, "*", ".*.tmp-*"))
	require.NoError(t, err)
	require.Empty(t, leftovers)
}

func TestGenerateIsDeterministic(t *testing.T) {
	spec, err := NewDefiner().Define(sampleProblem())
	require.NoError(t, err)
	a, err := NewTemplatePackGenerator().Generate(spec, t.TempDir())
	require.NoError(t, err)
	b, err := NewTemplatePackGenerator().Generate(spec, t.TempDir())
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestGenerateRejectsUnsupported(t *testing.T) {
	spec, err := NewDefiner().Define(sampleProblem())
	require.NoError(t, err)

	other := spec
	other.ProductType = "saas"
	_, err = NewTemplatePackGenerator().Generate(other, t.TempDir())
	require.Equal(t, runerr.KindGeneration, runerr.KindOf(err))

	unknown := spec
	unknown.Deliverables = []string{"../escape.md"}
	_, err = NewTemplatePackGenerator().Generate(unknown, t.TempDir())
	require.Equal(t, runerr.KindGeneration, runerr.KindOf(err))
}

func TestGenerateRejectsIncompleteSpec(t *testing.T) {
	spec, err := NewDefiner().Define(sampleProblem())
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func(*model.ProductSpec)
		want   string
	}{
		{"no product id", func(s *model.ProductSpec) { s.ProductID = " " }, "product_id"},
		{"no deliverables", func(s *model.ProductSpec) { s.Deliverables = nil }, "deliverables"},
		{"both", func(s *model.ProductSpec) { s.ProductID, s.Deliverables = "", []string{} }, "product_id, deliverables"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bad := spec
			bad.Deliverables = append([]string(nil), spec.Deliverables...)
			tc.mutate(&bad)
			dir := t.TempDir()

			_, err := NewTemplatePackGenerator().Generate(bad, dir)
			require.Equal(t, runerr.KindGeneration, runerr.KindOf(err))
			require.Contains(t, err.Error(), tc.want)

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			require.Empty(t, entries)
		})
	}
}
