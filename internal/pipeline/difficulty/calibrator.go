// Package difficulty converts weighted complexity sub-factors into a single
// calibrated difficulty value, overriding the backend's self-reported estimate.
package difficulty

import (
	"log/slog"
	"math"
	"strings"

	"github.com/fairyhunter13/ai-puzzle-forge/internal/domain"
)

// Band is the configured output range for calibrated difficulty, e.g. [1,10]
// or a narrower [4,8] challenging-only band.
type Band struct {
	Min int
	Max int
}

// Clamp forces v into the band.
func (b Band) Clamp(v int) int {
	if v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// Calibrator aggregates complexity sub-factors with configured weights.
// Weights sum to ~1.0 by configuration convention, but the calibrator applies
// them exactly as given.
type Calibrator struct {
	weights map[string]float64
	band    Band
}

// NewCalibrator constructs a Calibrator with the given weight table and band.
func NewCalibrator(weights map[string]float64, band Band) *Calibrator {
	return &Calibrator{weights: weights, band: band}
}

// Calibrate computes the weighted sub-factor sum, rounds it, and clamps into
// the band. A missing profile falls back to a cheap heuristic instead of
// failing; the backend's proposed difficulty is used only as a hint there.
func (c *Calibrator) Calibrate(cand domain.Candidate) int {
	if len(cand.Profile) == 0 {
		d := c.band.Clamp(heuristicDifficulty(cand))
		slog.Debug("difficulty calibrated from heuristic",
			slog.String("candidate_id", cand.ID),
			slog.Int("difficulty", d))
		return d
	}
	score := 0.0
	for name, value := range cand.Profile {
		score += float64(value) * c.weights[name]
	}
	d := c.band.Clamp(int(math.Round(score)))
	slog.Debug("difficulty calibrated from profile",
		slog.String("candidate_id", cand.ID),
		slog.Float64("raw_score", score),
		slog.Int("difficulty", d),
		slog.Int("proposed", cand.ProposedDifficulty))
	return d
}

// heuristicDifficulty estimates difficulty from label length and a category
// multiplier, seeded by the backend's proposal when one exists.
func heuristicDifficulty(cand domain.Candidate) int {
	if cand.ProposedDifficulty >= 1 && cand.ProposedDifficulty <= 10 {
		return cand.ProposedDifficulty
	}
	base := 3 + len([]rune(cand.Label))/4
	switch strings.ToLower(cand.Category) {
	case "logic":
		base += 2
	case "wordplay":
		base++
	}
	if base > 10 {
		base = 10
	}
	if base < 1 {
		base = 1
	}
	return base
}
