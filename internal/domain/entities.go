package domain

import (
	"context"
	"time"
)

// CapabilityTier selects how much model capability a generation request asks
// for. Each tier maps to an ordered fallback chain in configuration.
type CapabilityTier string

const (
	TierFast     CapabilityTier = "fast"
	TierBalanced CapabilityTier = "balanced"
	TierDeep     CapabilityTier = "deep"
)

// ComplexityProfile maps named sub-factors to integer scores in [1,10].
// The backend is untrusted: out-of-range or fractional inputs are coerced at
// ingestion (see ClampFactor), never rejected.
type ComplexityProfile map[string]int

// Well-known sub-factor names. Profiles may carry others; the calibrator
// applies whatever weights configuration provides.
const (
	FactorAmbiguity      = "ambiguity"
	FactorCognitiveSteps = "cognitive_steps"
	FactorBackground     = "required_background"
	FactorVocabulary     = "vocabulary_level"
	FactorPatternNovelty = "pattern_novelty"
)

// ClampFactor coerces a raw sub-factor value into the valid [1,10] band,
// rounding to the nearest integer.
func ClampFactor(v float64) int {
	n := int(v + 0.5)
	if v < 0 {
		n = int(v - 0.5)
	}
	if n < 1 {
		return 1
	}
	if n > 10 {
		return 10
	}
	return n
}

// Candidate is one generated puzzle before acceptance. Immutable once
// produced; downstream stages wrap it in richer records instead of mutating.
type Candidate struct {
	ID                 string
	Content            string
	Label              string
	Explanation        string
	Hints              []string
	Category           string
	ProposedDifficulty int
	Profile            ComplexityProfile
	Model              string
	CreatedAt          time.Time
}

// Fingerprint is a deterministic hash over normalized candidate fields, used
// for exact-duplicate detection only.
type Fingerprint string

// Verdict is the outcome of a quality evaluation.
type Verdict string

const (
	VerdictPublish Verdict = "publish"
	VerdictRevise  Verdict = "revise"
	VerdictReject  Verdict = "reject"
)

// QualityReport carries per-dimension scores (0-100), the weighted overall
// score, the verdict, and ordered improvement actions for the next attempt.
type QualityReport struct {
	Dimensions map[string]int
	Overall    int
	Verdict    Verdict
	Actions    []string
}

// UniquenessResult is the outcome of validating a candidate against the
// recent-history window.
type UniquenessResult struct {
	IsUnique      bool
	MaxSimilarity float64
	Conflicts     []string // labels of conflicting history items
	Score         int      // 0-100, penalized by similarity and conflicts
	Notes         []string
}

// PuzzleSummary is the slice of a persisted puzzle the uniqueness engine
// needs: enough to fingerprint and compare, nothing more.
type PuzzleSummary struct {
	Label       string
	Symbols     []string
	Category    string
	PatternType string
	Fingerprint Fingerprint
	CreatedAt   time.Time
}

// GenerationAttempt records one loop iteration. Only the best-scoring attempt
// survives the loop; the rest are dropped after comparison.
type GenerationAttempt struct {
	Index       int
	Candidate   Candidate
	Difficulty  int
	Report      QualityReport
	Uniqueness  UniquenessResult
	FinalScore  int
	Elapsed     time.Duration
	FailureNote string
}

// GenerationResult is the immutable output of a successful pipeline run.
type GenerationResult struct {
	Candidate       Candidate
	Difficulty      int
	Report          QualityReport
	Fingerprint     Fingerprint
	UniquenessScore int
	Attempts        int
	Degraded        bool
	ElapsedMs       int64
}

// GenerationSpec is what callers pass into the pipeline.
type GenerationSpec struct {
	TargetDifficulty int
	Category         string
	RequireNovelty   bool
	Tier             CapabilityTier
	Temperature      float64
	MaxAttempts      int
	// QualityThreshold overrides the configured publish bar for this call.
	// Zero keeps the configured default.
	QualityThreshold int
	// Feedback carries action items from a previous attempt; the orchestrator
	// owns feeding these back, not the evaluator.
	Feedback []string
}

// ModelRequest is one outbound call to the generative backend.
type ModelRequest struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
	Timeout      time.Duration
}

// TokenUsage reports backend token consumption for one call.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ModelResponse is the raw backend output before candidate parsing.
type ModelResponse struct {
	Content string
	Model   string
	Usage   TokenUsage
}

// GenerativeBackend is the external generation collaborator (port).
type GenerativeBackend interface {
	Complete(ctx context.Context, req ModelRequest) (ModelResponse, error)
}

// CandidateSource produces parsed candidates, hiding model selection and
// fallback behind the port.
type CandidateSource interface {
	Generate(ctx context.Context, spec GenerationSpec) (Candidate, error)
}

// HistoryStore is the read-mostly recent-history collaborator (port).
// Reads may be eventually consistent; duplicate suppression is best-effort.
type HistoryStore interface {
	QueryRecent(ctx context.Context, windowDays, maxItems int) ([]PuzzleSummary, error)
	Save(ctx context.Context, s PuzzleSummary) error
}
