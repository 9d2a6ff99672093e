package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-puzzle-forge/internal/domain"
	"github.com/fairyhunter13/ai-puzzle-forge/internal/pipeline/difficulty"
	"github.com/fairyhunter13/ai-puzzle-forge/internal/pipeline/quality"
	"github.com/fairyhunter13/ai-puzzle-forge/internal/pipeline/uniqueness"
	"github.com/fairyhunter13/ai-puzzle-forge/pkg/textx"
)

// fakeSource replays a scripted list of outcomes, repeating the last one.
type fakeSource struct {
	script []func() (domain.Candidate, error)
	specs  []domain.GenerationSpec
	calls  int
}

func (f *fakeSource) Generate(_ context.Context, spec domain.GenerationSpec) (domain.Candidate, error) {
	f.specs = append(f.specs, spec)
	idx := f.calls
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	f.calls++
	return f.script[idx]()
}

func yield(c domain.Candidate) func() (domain.Candidate, error) {
	return func() (domain.Candidate, error) { return c, nil }
}

func yieldErr(err error) func() (domain.Candidate, error) {
	return func() (domain.Candidate, error) { return domain.Candidate{}, err }
}

type fakeHistory struct {
	mu       sync.Mutex
	items    []domain.PuzzleSummary
	saved    []domain.PuzzleSummary
	queryErr error
	saveErr  error
}

func (f *fakeHistory) QueryRecent(_ context.Context, _, _ int) ([]domain.PuzzleSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.items, nil
}

func (f *fakeHistory) Save(_ context.Context, s domain.PuzzleSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, s)
	return nil
}

func qualityWeights() map[string]float64 {
	return map[string]float64{
		"clarity":     0.25,
		"novelty":     0.25,
		"richness":    0.2,
		"solvability": 0.2,
		"structure":   0.1,
	}
}

func difficultyWeights() map[string]float64 {
	return map[string]float64{
		"ambiguity":           0.25,
		"cognitive_steps":     0.3,
		"required_background": 0.15,
		"vocabulary_level":    0.1,
		"pattern_novelty":     0.2,
	}
}

func newService(source domain.CandidateSource, history domain.HistoryStore, cfg PipelineConfig) *GenerateService {
	return NewGenerateService(
		source,
		history,
		uniqueness.NewEngine(uniqueness.DefaultConfig()),
		difficulty.NewCalibrator(difficultyWeights(), difficulty.Band{Min: 1, Max: 10}),
		quality.NewEvaluator(qualityWeights()),
		cfg,
	)
}

// goodCandidate evaluates to overall 80 (publish at default thresholds).
func goodCandidate(label string) domain.Candidate {
	return domain.Candidate{
		ID:          "cand-" + label,
		Content:     "🌕🚶✨",
		Label:       label,
		Explanation: "The symbols together read as " + label + ".",
		Hints:       []string{"Read in order", "Say it out loud"},
		Category:    "visual",
		Profile: domain.ComplexityProfile{
			"ambiguity":           5,
			"cognitive_steps":     6,
			"required_background": 4,
			"vocabulary_level":    5,
			"pattern_novelty":     7,
		},
		Model:     "test/model-a",
		CreatedAt: time.Now().UTC(),
	}
}

// weakCandidate evaluates to overall 51 (revise at every threshold in use).
func weakCandidate(label string) domain.Candidate {
	return domain.Candidate{
		ID:          "weak-" + label,
		Content:     "🌕 plain",
		Label:       label,
		Explanation: "too short",
		Hints:       nil,
		Category:    "visual",
		Profile: domain.ComplexityProfile{
			"ambiguity":           5,
			"cognitive_steps":     5,
			"required_background": 5,
			"vocabulary_level":    5,
			"pattern_novelty":     4,
		},
		Model:     "test/model-a",
		CreatedAt: time.Now().UTC(),
	}
}

// borderCandidate evaluates to overall 68: publish only under the
// first-attempt discount (threshold 60), revise at the configured 70.
func borderCandidate(label string) domain.Candidate {
	return domain.Candidate{
		ID:          "border-" + label,
		Content:     "🌕 mostly text",
		Label:       label,
		Explanation: "The single symbol stands in for the first word of " + label + ".",
		Hints:       []string{"Look at the symbol", "First word is celestial"},
		Category:    "visual",
		Profile: domain.ComplexityProfile{
			"ambiguity":           5,
			"cognitive_steps":     5,
			"required_background": 5,
			"vocabulary_level":    5,
			"pattern_novelty":     4,
		},
		Model:     "test/model-a",
		CreatedAt: time.Now().UTC(),
	}
}

func baseSpec() domain.GenerationSpec {
	return domain.GenerationSpec{
		TargetDifficulty: 5,
		Category:         "visual",
		Tier:             domain.TierBalanced,
	}
}

func TestGenerate_AcceptsGoodCandidateFirstAttempt(t *testing.T) {
	t.Parallel()

	source := &fakeSource{script: []func() (domain.Candidate, error){yield(goodCandidate("Moonwalker"))}}
	history := &fakeHistory{}
	svc := newService(source, history, DefaultPipelineConfig())

	res, err := svc.Generate(context.Background(), baseSpec())
	require.NoError(t, err)

	assert.Equal(t, "Moonwalker", res.Candidate.Label)
	assert.Equal(t, 1, res.Attempts)
	assert.False(t, res.Degraded)
	assert.Equal(t, domain.VerdictPublish, res.Report.Verdict)
	assert.Equal(t, 80, res.Report.Overall)
	assert.Equal(t, 6, res.Difficulty)
	assert.Equal(t, 100, res.UniquenessScore)
	assert.NotEmpty(t, res.Fingerprint)
	assert.GreaterOrEqual(t, res.ElapsedMs, int64(0))

	require.Len(t, history.saved, 1)
	assert.Equal(t, "Moonwalker", history.saved[0].Label)
	assert.Equal(t, res.Fingerprint, history.saved[0].Fingerprint)
	assert.Equal(t, textx.NotableSymbols("🌕🚶✨"), history.saved[0].Symbols)
}

func TestGenerate_FirstAttemptDiscountAcceptsBorderline(t *testing.T) {
	t.Parallel()

	source := &fakeSource{script: []func() (domain.Candidate, error){yield(borderCandidate("Moonrise"))}}
	svc := newService(source, &fakeHistory{}, DefaultPipelineConfig())

	res, err := svc.Generate(context.Background(), baseSpec())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 68, res.Report.Overall)
	assert.Equal(t, domain.VerdictPublish, res.Report.Verdict, "68 clears the discounted threshold 60")
}

func TestGenerate_NoDiscountBorderlineGoesDegraded(t *testing.T) {
	t.Parallel()

	source := &fakeSource{script: []func() (domain.Candidate, error){yield(borderCandidate("Moonrise"))}}
	cfg := DefaultPipelineConfig()
	cfg.FirstAttemptDiscount = 0
	svc := newService(source, &fakeHistory{}, cfg)

	res, err := svc.Generate(context.Background(), baseSpec())
	require.NoError(t, err)
	assert.True(t, res.Degraded, "68 never clears 70, best-so-far wins degraded")
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, source.calls)
	assert.Equal(t, 68, res.Report.Overall)
}

func TestGenerate_RetryThenAccept(t *testing.T) {
	t.Parallel()

	source := &fakeSource{script: []func() (domain.Candidate, error){
		yield(weakCandidate("Dull one")),
		yield(goodCandidate("Moonwalker")),
	}}
	svc := newService(source, &fakeHistory{}, DefaultPipelineConfig())

	res, err := svc.Generate(context.Background(), baseSpec())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, "Moonwalker", res.Candidate.Label)

	// the second call carries feedback derived from the first report
	require.Len(t, source.specs, 2)
	assert.Empty(t, source.specs[0].Feedback)
	assert.NotEmpty(t, source.specs[1].Feedback)
}

func TestGenerate_DuplicateRejectedThenFreshAccepted(t *testing.T) {
	t.Parallel()

	dup := goodCandidate("Moonwalker")
	history := &fakeHistory{items: []domain.PuzzleSummary{{
		Label:       "Moonwalker",
		Symbols:     textx.NotableSymbols(dup.Content),
		Category:    "visual",
		Fingerprint: uniqueness.FingerprintCandidate(dup),
		CreatedAt:   time.Now().UTC(),
	}}}
	fresh := goodCandidate("Starcatcher")
	fresh.Content = "⭐🧤🪜"
	fresh.Explanation = "A star, a glove and a ladder read as starcatcher."
	source := &fakeSource{script: []func() (domain.Candidate, error){
		yield(dup),
		yield(fresh),
	}}
	svc := newService(source, history, DefaultPipelineConfig())

	res, err := svc.Generate(context.Background(), baseSpec())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, "Starcatcher", res.Candidate.Label)

	require.Len(t, source.specs, 2)
	found := false
	for _, f := range source.specs[1].Feedback {
		if f == "the previous puzzle was too similar to recent ones; use a different answer and different symbols" {
			found = true
		}
	}
	assert.True(t, found, "duplicate rejection must reach the next prompt as feedback")
}

func TestGenerate_AllDuplicatesFails(t *testing.T) {
	t.Parallel()

	dup := goodCandidate("Moonwalker")
	history := &fakeHistory{items: []domain.PuzzleSummary{{
		Label:       "Moonwalker",
		Symbols:     textx.NotableSymbols(dup.Content),
		Category:    "visual",
		Fingerprint: uniqueness.FingerprintCandidate(dup),
		CreatedAt:   time.Now().UTC(),
	}}}
	source := &fakeSource{script: []func() (domain.Candidate, error){yield(dup)}}
	svc := newService(source, history, DefaultPipelineConfig())

	_, err := svc.Generate(context.Background(), baseSpec())
	require.Error(t, err)

	var failure *domain.GenerationFailedError
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 3, failure.Attempts)
	assert.Equal(t, 0, failure.BestScore)
	assert.Equal(t, "candidate not unique", failure.LastReason)
	assert.Equal(t, 3, source.calls)
	assert.Empty(t, history.saved)
}

func TestGenerate_BestSoFarBelowMinimumFails(t *testing.T) {
	t.Parallel()

	source := &fakeSource{script: []func() (domain.Candidate, error){yield(weakCandidate("Dull one"))}}
	cfg := DefaultPipelineConfig()
	cfg.MinAcceptableScore = 80
	svc := newService(source, &fakeHistory{}, cfg)

	_, err := svc.Generate(context.Background(), baseSpec())
	require.Error(t, err)

	var failure *domain.GenerationFailedError
	require.ErrorAs(t, err, &failure)
	// final score blends quality 51 with uniqueness 100: 0.7*51 + 0.3*100 = 66
	assert.Equal(t, 66, failure.BestScore)
	require.NotNil(t, failure.BestReport)
	assert.Equal(t, 51, failure.BestReport.Overall)
}

func TestGenerate_DegradedPreservesBestSoFar(t *testing.T) {
	t.Parallel()

	source := &fakeSource{script: []func() (domain.Candidate, error){
		yield(weakCandidate("First")),
		yield(borderCandidate("Second")),
		yield(weakCandidate("Third")),
	}}
	cfg := DefaultPipelineConfig()
	cfg.FirstAttemptDiscount = 0
	svc := newService(source, &fakeHistory{}, cfg)

	res, err := svc.Generate(context.Background(), baseSpec())
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, "Second", res.Candidate.Label, "highest final score wins")
	assert.Equal(t, 68, res.Report.Overall)
}

func TestGenerate_FatalSourceErrorAbortsImmediately(t *testing.T) {
	t.Parallel()

	source := &fakeSource{script: []func() (domain.Candidate, error){
		yieldErr(fmt.Errorf("%w: api key missing", domain.ErrInvalidArgument)),
	}}
	svc := newService(source, &fakeHistory{}, DefaultPipelineConfig())

	_, err := svc.Generate(context.Background(), baseSpec())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Equal(t, 1, source.calls, "fatal errors must not consume further attempts")
}

func TestGenerate_TransientErrorConsumesAttempt(t *testing.T) {
	t.Parallel()

	source := &fakeSource{script: []func() (domain.Candidate, error){
		yieldErr(fmt.Errorf("chain exhausted: %w", domain.ErrTransientGateway)),
		yield(goodCandidate("Moonwalker")),
	}}
	svc := newService(source, &fakeHistory{}, DefaultPipelineConfig())

	res, err := svc.Generate(context.Background(), baseSpec())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
}

func TestGenerate_AttemptBudgetExhausted(t *testing.T) {
	t.Parallel()

	source := &fakeSource{script: []func() (domain.Candidate, error){
		yieldErr(fmt.Errorf("chain exhausted: %w", domain.ErrTransientGateway)),
	}}
	svc := newService(source, &fakeHistory{}, DefaultPipelineConfig())

	_, err := svc.Generate(context.Background(), baseSpec())
	require.Error(t, err)

	var failure *domain.GenerationFailedError
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 3, source.calls)
}

func TestGenerate_HistoryUnavailableStillGenerates(t *testing.T) {
	t.Parallel()

	source := &fakeSource{script: []func() (domain.Candidate, error){yield(goodCandidate("Moonwalker"))}}
	history := &fakeHistory{queryErr: errors.New("db down")}
	svc := newService(source, history, DefaultPipelineConfig())

	res, err := svc.Generate(context.Background(), baseSpec())
	require.NoError(t, err)
	assert.Equal(t, 100, res.UniquenessScore)
}

func TestGenerate_SaveFailureNotFatal(t *testing.T) {
	t.Parallel()

	source := &fakeSource{script: []func() (domain.Candidate, error){yield(goodCandidate("Moonwalker"))}}
	history := &fakeHistory{saveErr: errors.New("db down")}
	svc := newService(source, history, DefaultPipelineConfig())

	_, err := svc.Generate(context.Background(), baseSpec())
	require.NoError(t, err)
}

func TestGenerate_StagePanicConsumesAttempt(t *testing.T) {
	t.Parallel()

	source := &fakeSource{script: []func() (domain.Candidate, error){yield(goodCandidate("Moonwalker"))}}
	svc := NewGenerateService(
		source,
		&fakeHistory{},
		uniqueness.NewEngine(uniqueness.DefaultConfig()),
		nil, // nil calibrator panics inside the attempt
		quality.NewEvaluator(qualityWeights()),
		DefaultPipelineConfig(),
	)

	_, err := svc.Generate(context.Background(), baseSpec())
	require.Error(t, err)
	assert.Equal(t, 3, source.calls, "every attempt should run despite the panic")

	var failed *domain.GenerationFailedError
	require.ErrorAs(t, err, &failed)
	assert.Contains(t, failed.LastReason, "stage panic")
}

func TestGenerate_InvalidSpec(t *testing.T) {
	t.Parallel()

	svc := newService(&fakeSource{script: []func() (domain.Candidate, error){yield(goodCandidate("x"))}}, &fakeHistory{}, DefaultPipelineConfig())

	_, err := svc.Generate(context.Background(), domain.GenerationSpec{TargetDifficulty: 5})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument, "missing category")

	_, err = svc.Generate(context.Background(), domain.GenerationSpec{TargetDifficulty: 0, Category: "visual"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument, "difficulty out of range")

	_, err = svc.Generate(context.Background(), domain.GenerationSpec{TargetDifficulty: 11, Category: "visual"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = svc.Generate(context.Background(), domain.GenerationSpec{TargetDifficulty: 5, Category: "visual", QualityThreshold: 101})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument, "quality threshold out of range")
}

func TestGenerate_EscalatesTierAndTemperatureAcrossAttempts(t *testing.T) {
	t.Parallel()

	source := &fakeSource{script: []func() (domain.Candidate, error){yield(weakCandidate("Dull one"))}}
	cfg := DefaultPipelineConfig()
	cfg.FirstAttemptDiscount = 0
	svc := newService(source, &fakeHistory{}, cfg)

	_, err := svc.Generate(context.Background(), baseSpec())
	require.NoError(t, err) // weak still clears the degraded floor

	require.Len(t, source.specs, 3)
	assert.Equal(t, domain.TierBalanced, source.specs[0].Tier)
	assert.Equal(t, domain.TierBalanced, source.specs[1].Tier)
	assert.Equal(t, domain.TierDeep, source.specs[2].Tier, "final attempt escalates the tier")
	assert.InDelta(t, 0.7, source.specs[0].Temperature, 1e-9)
	assert.InDelta(t, 0.8, source.specs[1].Temperature, 1e-9)
	assert.InDelta(t, 0.9, source.specs[2].Temperature, 1e-9)
}

func TestGenerate_SpecOverridesDefaults(t *testing.T) {
	t.Parallel()

	source := &fakeSource{script: []func() (domain.Candidate, error){
		yieldErr(fmt.Errorf("%w: injected", domain.ErrTransientGateway)),
	}}
	svc := newService(source, &fakeHistory{}, DefaultPipelineConfig())

	spec := baseSpec()
	spec.MaxAttempts = 1
	spec.Temperature = 0.3

	_, err := svc.Generate(context.Background(), spec)
	require.Error(t, err)
	assert.Equal(t, 1, source.calls)
	assert.InDelta(t, 0.3, source.specs[0].Temperature, 1e-9)
}

func TestGenerate_QualityThresholdRaisesPublishBar(t *testing.T) {
	t.Parallel()

	// Overall 80 publishes at the default bar of 70 but not at 95: even the
	// first-attempt discount leaves the bar at 85.
	source := &fakeSource{script: []func() (domain.Candidate, error){yield(goodCandidate("Moonwalker"))}}
	svc := newService(source, &fakeHistory{}, DefaultPipelineConfig())

	spec := baseSpec()
	spec.QualityThreshold = 95

	res, err := svc.Generate(context.Background(), spec)
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, source.calls)
}

func TestGenerate_QualityThresholdLowersPublishBar(t *testing.T) {
	t.Parallel()

	// Overall 51 never publishes at the default bar; a per-call bar of 40
	// accepts it on the first attempt.
	source := &fakeSource{script: []func() (domain.Candidate, error){yield(weakCandidate("Plain one"))}}
	svc := newService(source, &fakeHistory{}, DefaultPipelineConfig())

	spec := baseSpec()
	spec.QualityThreshold = 40

	res, err := svc.Generate(context.Background(), spec)
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, domain.VerdictPublish, res.Report.Verdict)
}

func TestFinalScore(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 100, finalScore(100, 100))
	assert.Equal(t, 70, finalScore(100, 0))
	assert.Equal(t, 30, finalScore(0, 100))
	assert.Equal(t, 66, finalScore(51, 100))
	assert.Equal(t, 0, finalScore(0, 0))
}

func TestTierAbove(t *testing.T) {
	t.Parallel()

	assert.Equal(t, domain.TierBalanced, tierAbove(domain.TierFast))
	assert.Equal(t, domain.TierDeep, tierAbove(domain.TierBalanced))
	assert.Equal(t, domain.TierDeep, tierAbove(domain.TierDeep))
}
