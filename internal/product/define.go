// Package product turns the selected problem into a product spec and
// generates its files.
package product

import (
	"strings"

	"github.com/chr1sbest/pipegate/internal/model"
	"github.com/chr1sbest/pipegate/internal/runerr"
)

// TemplatePackDeliverables lists every file a template pack ships, in
// generation order.
var TemplatePackDeliverables = []string{
	"README.md",
	"LICENSE.txt",
	"templates/base_template.md",
	"templates/advanced_template.md",
	"examples/filled_example.md",
	"docs/usage.md",
	"docs/customization.md",
	"listing.md",
}

// Definer maps a problem onto a template_pack product spec.
type Definer struct{}

func NewDefiner() *Definer { return &Definer{} }

// Define derives the product spec. The product id reuses the problem id, so the same
// problem always yields the same product.
func (d *Definer) Define(p model.Problem) (model.ProductSpec, error) {
	var missing []string
	if strings.TrimSpace(p.ProblemID) == "" {
		missing = append(missing, "problem_id")
	}
	if strings.TrimSpace(p.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(p.Summary) == "" {
		missing = append(missing, "summary")
	}
	if len(missing) > 0 {
		return model.ProductSpec{}, runerr.Newf(runerr.KindDefinition, "define product", "problem missing required fields: %s", strings.Join(missing, ", "))
	}

	target := p.WhoIsHurt
	if target == "" {
		target = "User"
	}

	return model.ProductSpec{
		ProductID:    p.ProblemID,
		ProblemID:    p.ProblemID,
		ProductType:  model.ProductTemplatePack,
		TargetUser:   target,
		ValueProp:    p.Summary,
		Deliverables: append([]string(nil), TemplatePackDeliverables...),
		NonGoals:     []string{"Not a full SaaS product", "No code generation"},
		Constraints:  []string{"Offline use", "Markdown only"},
		AcceptanceCriteria: []string{
			"All deliverables present",
			"README explains usage",
			"Templates are clear and customizable",
		},
	}, nil
}
