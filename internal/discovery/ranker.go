package discovery

import (
	"sort"
	"strings"

	"github.com/chr1sbest/pipegate/internal/model"
	"github.com/chr1sbest/pipegate/internal/runerr"
)

// Score breakdown keys.
const (
	ScoreClarity     = "clarity"
	ScoreSpecificity = "specificity"
	ScoreAction      = "actionability"
	ScoreFrequency   = "frequency_proxy"
	ScoreEngagement  = "engagement_proxy"
)

// Ranker scores problems with an explicit per-criterion breakdown.
type Ranker struct{}

func NewRanker() *Ranker { return &Ranker{} }

// Breakdown scores a single problem. Each criterion is 0 or 1.
func Breakdown(p model.Problem) map[string]float64 {
	title := strings.ToLower(p.Title)
	return map[string]float64{
		ScoreClarity:     boolScore(len(p.Title) > 10),
		ScoreSpecificity: boolScore(strings.Contains(title, "how") || strings.Contains(title, "why")),
		ScoreAction:      boolScore(strings.Contains(title, "tool")),
		ScoreFrequency:   1,
		ScoreEngagement:  1,
	}
}

// RankAll scores every problem and returns them best first. Ties keep input order.
func (r *Ranker) RankAll(problems []model.Problem) ([]model.Problem, error) {
	if len(problems) == 0 {
		return nil, runerr.Newf(runerr.KindRanking, "rank", "no problems to rank")
	}
	scored := make([]model.Problem, len(problems))
	for i, p := range problems {
		p.ScoreBreakdown = Breakdown(p)
		p.Score = 0
		for _, v := range p.ScoreBreakdown {
			p.Score += v
		}
		scored[i] = p
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored, nil
}

// Rank returns the single best problem.
func (r *Ranker) Rank(problems []model.Problem) (model.Problem, error) {
	scored, err := r.RankAll(problems)
	if err != nil {
		return model.Problem{}, err
	}
	return scored[0], nil
}

func boolScore(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
