package uniqueness

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/fairyhunter13/ai-puzzle-forge/internal/domain"
	"github.com/fairyhunter13/ai-puzzle-forge/pkg/textx"
)

// Config carries the uniqueness policy thresholds. These are product tuning
// constants, injected rather than hard-coded.
type Config struct {
	WindowDays          int
	DiversityWindowDays int
	ConflictThreshold   float64
	RejectThreshold     float64
	SymbolOverlapLimit  float64
}

// DefaultConfig returns the tuned production thresholds.
func DefaultConfig() Config {
	return Config{
		WindowDays:          30,
		DiversityWindowDays: 7,
		ConflictThreshold:   0.7,
		RejectThreshold:     0.8,
		SymbolOverlapLimit:  0.7,
	}
}

// Engine validates candidate novelty against a recent-history window. It is
// read-only over history and safe to share across pipeline runs.
type Engine struct {
	cfg Config
	now func() time.Time
}

// NewEngine constructs an Engine with the given policy.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg, now: time.Now}
}

// Validate checks a candidate against the history window. Duplicate
// suppression is best-effort: history reads may be stale, and that is fine.
func (e *Engine) Validate(c domain.Candidate, history []domain.PuzzleSummary) domain.UniquenessResult {
	fp := FingerprintCandidate(c)

	// Exact fingerprint match rejects immediately, no pairwise scan needed.
	for _, h := range history {
		if h.Fingerprint != "" && h.Fingerprint == fp {
			return domain.UniquenessResult{
				IsUnique:      false,
				MaxSimilarity: 1.0,
				Conflicts:     []string{h.Label},
				Score:         0,
				Notes:         []string{"exact fingerprint match"},
			}
		}
	}

	symbols := textx.NotableSymbols(c.Content)
	res := domain.UniquenessResult{IsUnique: true}
	var notes []string

	for _, h := range history {
		sim := Similarity(c.Label, symbols, h.Label, h.Symbols)
		if sim > res.MaxSimilarity {
			res.MaxSimilarity = sim
		}
		if sim > e.cfg.ConflictThreshold {
			res.Conflicts = append(res.Conflicts, h.Label)
		}
		if overlap := SymbolOverlap(symbols, h.Symbols); overlap > e.cfg.SymbolOverlapLimit {
			res.IsUnique = false
			notes = append(notes, fmt.Sprintf("symbol overlap %.0f%% with %q", overlap*100, h.Label))
		}
	}
	if len(res.Conflicts) > 0 && res.MaxSimilarity > e.cfg.RejectThreshold {
		res.IsUnique = false
		notes = append(notes, fmt.Sprintf("max similarity %.2f above threshold", res.MaxSimilarity))
	}

	if overused, pattern, count := e.patternOverused(c, history); overused {
		res.IsUnique = false
		notes = append(notes, fmt.Sprintf("pattern %q used %d times in diversity window", pattern, count))
	}

	res.Score = uniquenessScore(res.MaxSimilarity, len(res.Conflicts))
	res.Notes = notes

	slog.Debug("uniqueness validated",
		slog.String("candidate_id", c.ID),
		slog.Bool("is_unique", res.IsUnique),
		slog.Float64("max_similarity", res.MaxSimilarity),
		slog.Int("conflicts", len(res.Conflicts)),
		slog.Int("score", res.Score))
	return res
}

// patternOverused reports whether the candidate's structural pattern has been
// used more than ceil(windowDays/3) times within the diversity window.
func (e *Engine) patternOverused(c domain.Candidate, history []domain.PuzzleSummary) (bool, string, int) {
	pattern := ClassifyPattern(c)
	if pattern == PatternUnknown {
		return false, pattern, 0
	}
	cutoff := e.now().AddDate(0, 0, -e.cfg.DiversityWindowDays)
	count := 0
	for _, h := range history {
		if h.CreatedAt.Before(cutoff) {
			continue
		}
		if ClassifySummary(h) == pattern {
			count++
		}
	}
	limit := int(math.Ceil(float64(e.cfg.WindowDays) / 3.0))
	return count > limit, pattern, count
}

// uniquenessScore grades an accepted-but-imperfect candidate: penalized by
// the strongest similarity and by every conflict, floored at zero.
func uniquenessScore(maxSimilarity float64, conflicts int) int {
	score := 100.0 - maxSimilarity*30.0 - float64(10*conflicts)
	if score < 0 {
		return 0
	}
	return int(math.Round(score))
}
