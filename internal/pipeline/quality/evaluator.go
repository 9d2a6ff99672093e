// Package quality scores candidates along independent dimensions and renders
// a publish / revise / reject verdict with actionable feedback.
package quality

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/fairyhunter13/ai-puzzle-forge/internal/domain"
	"github.com/fairyhunter13/ai-puzzle-forge/pkg/textx"
)

// Dimension names.
const (
	DimClarity     = "clarity"
	DimNovelty     = "novelty"
	DimRichness    = "richness"
	DimSolvability = "solvability"
	DimStructure   = "structure"
)

// Thresholds are the verdict cut lines for one evaluation. The orchestrator
// adjusts them per attempt, so they are parameters rather than evaluator state.
type Thresholds struct {
	Publish  int
	Revision int
}

// Evaluator computes dimension scores and aggregates them with a configured
// weight table. Dimensions missing from the table default to weight 0.
type Evaluator struct {
	weights map[string]float64
}

// NewEvaluator constructs an Evaluator with the given weight table.
func NewEvaluator(weights map[string]float64) *Evaluator {
	return &Evaluator{weights: weights}
}

// Evaluate scores the candidate at its calibrated difficulty and converts the
// weighted overall into a verdict plus improvement actions.
func (e *Evaluator) Evaluate(cand domain.Candidate, calibratedDifficulty int, th Thresholds) domain.QualityReport {
	dims := map[string]int{
		DimClarity:     clarityScore(cand),
		DimNovelty:     noveltyScore(cand),
		DimRichness:    richnessScore(cand),
		DimSolvability: solvabilityScore(cand, calibratedDifficulty),
		DimStructure:   structureScore(cand),
	}

	overall := weightedOverall(dims, e.weights)
	report := domain.QualityReport{
		Dimensions: dims,
		Overall:    overall,
		Verdict:    verdictFor(overall, th),
		Actions:    actionsFor(dims, e.weights),
	}

	slog.Debug("quality evaluated",
		slog.String("candidate_id", cand.ID),
		slog.Int("overall", report.Overall),
		slog.String("verdict", string(report.Verdict)))
	return report
}

func weightedOverall(dims map[string]int, weights map[string]float64) int {
	var sum, totalWeight float64
	for name, score := range dims {
		w := weights[name]
		sum += float64(score) * w
		totalWeight += w
	}
	if totalWeight == 0 {
		return 0
	}
	return int(math.Round(sum / totalWeight))
}

func verdictFor(overall int, th Thresholds) domain.Verdict {
	switch {
	case overall >= th.Publish:
		return domain.VerdictPublish
	case overall >= th.Revision:
		return domain.VerdictRevise
	default:
		return domain.VerdictReject
	}
}

// actionsFor derives improvement actions from the lowest-scoring weighted
// dimensions, worst first.
func actionsFor(dims map[string]int, weights map[string]float64) []string {
	type dimScore struct {
		name  string
		score int
	}
	var ranked []dimScore
	for name, score := range dims {
		if weights[name] <= 0 || score >= 70 {
			continue
		}
		ranked = append(ranked, dimScore{name, score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score < ranked[j].score
		}
		return ranked[i].name < ranked[j].name
	})
	actions := make([]string, 0, len(ranked))
	for _, d := range ranked {
		actions = append(actions, actionText(d.name, d.score))
	}
	return actions
}

func actionText(dim string, score int) string {
	switch dim {
	case DimClarity:
		return fmt.Sprintf("clarity scored %d: tighten the explanation to one or two plain sentences", score)
	case DimNovelty:
		return fmt.Sprintf("novelty scored %d: avoid recently used structures and push pattern novelty", score)
	case DimRichness:
		return fmt.Sprintf("richness scored %d: add distinct visual symbols to the composition", score)
	case DimSolvability:
		return fmt.Sprintf("solvability scored %d: rebalance difficulty or add progressive hints", score)
	case DimStructure:
		return fmt.Sprintf("structure scored %d: order hints from vague to specific and keep the label short", score)
	default:
		return fmt.Sprintf("%s scored %d: improve this dimension", dim, score)
	}
}

// clarityScore grades the explanation against length bounds: long enough to
// explain, short enough to stay crisp.
func clarityScore(cand domain.Candidate) int {
	n := len([]rune(cand.Explanation))
	switch {
	case n == 0:
		return 0
	case n < 20:
		return 40
	case n <= 240:
		return 90
	case n <= 400:
		return 70
	default:
		return 50
	}
}

// noveltyScore maps the pattern-novelty sub-factor onto 0-100, neutral when
// the profile lacks one.
func noveltyScore(cand domain.Candidate) int {
	v, ok := cand.Profile[domain.FactorPatternNovelty]
	if !ok {
		return 50
	}
	return v * 10
}

// richnessScore grades visual density by distinct notable symbols.
func richnessScore(cand domain.Candidate) int {
	n := len(textx.NotableSymbols(cand.Content))
	switch {
	case n == 0:
		return 30
	case n == 1:
		return 55
	case n <= 4:
		return 90
	case n <= 7:
		return 75
	default:
		return 60
	}
}

// solvabilityScore is an inverse function of difficulty blended with hint
// count: hard puzzles stay solvable when hints carry the solver.
func solvabilityScore(cand domain.Candidate, difficulty int) int {
	base := 100 - difficulty*8
	hintBonus := len(cand.Hints) * 5
	if hintBonus > 20 {
		hintBonus = 20
	}
	s := base + hintBonus
	if s > 100 {
		return 100
	}
	if s < 0 {
		return 0
	}
	return s
}

// structureScore checks the hint ladder and label shape.
func structureScore(cand domain.Candidate) int {
	s := 50
	if n := len(cand.Hints); n >= 2 && n <= 4 {
		s += 25
	} else if n == 1 || n > 4 {
		s += 10
	}
	if l := len([]rune(cand.Label)); l >= 3 && l <= 24 {
		s += 25
	}
	if s > 100 {
		s = 100
	}
	return s
}
