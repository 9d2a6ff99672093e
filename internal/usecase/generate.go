// Package usecase wires the generation pipeline: candidate sourcing,
// difficulty calibration, quality evaluation, uniqueness validation, and the
// retry loop that arbitrates between them.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/fairyhunter13/ai-puzzle-forge/internal/adapter/observability"
	"github.com/fairyhunter13/ai-puzzle-forge/internal/domain"
	"github.com/fairyhunter13/ai-puzzle-forge/internal/pipeline/difficulty"
	"github.com/fairyhunter13/ai-puzzle-forge/internal/pipeline/quality"
	"github.com/fairyhunter13/ai-puzzle-forge/internal/pipeline/uniqueness"
	"github.com/fairyhunter13/ai-puzzle-forge/pkg/textx"
)

// PipelineConfig carries the orchestration policy knobs.
type PipelineConfig struct {
	MaxAttempts          int
	PublishThreshold     int
	RevisionThreshold    int
	MinAcceptableScore   int
	FirstAttemptDiscount int
	EscalateTiers        bool
	BaseTemperature      float64
	HistoryWindowDays    int
	HistoryMaxItems      int
}

// DefaultPipelineConfig returns the tuned production policy.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		MaxAttempts:          3,
		PublishThreshold:     70,
		RevisionThreshold:    50,
		MinAcceptableScore:   55,
		FirstAttemptDiscount: 10,
		EscalateTiers:        true,
		BaseTemperature:      0.7,
		HistoryWindowDays:    30,
		HistoryMaxItems:      200,
	}
}

// GenerateService runs the generation pipeline end to end.
type GenerateService struct {
	source     domain.CandidateSource
	history    domain.HistoryStore
	uniq       *uniqueness.Engine
	calibrator *difficulty.Calibrator
	evaluator  *quality.Evaluator
	cfg        PipelineConfig
}

// NewGenerateService wires the pipeline stages together.
func NewGenerateService(
	source domain.CandidateSource,
	history domain.HistoryStore,
	uniq *uniqueness.Engine,
	calibrator *difficulty.Calibrator,
	evaluator *quality.Evaluator,
	cfg PipelineConfig,
) *GenerateService {
	return &GenerateService{
		source:     source,
		history:    history,
		uniq:       uniq,
		calibrator: calibrator,
		evaluator:  evaluator,
		cfg:        cfg,
	}
}

// finalScore blends quality and uniqueness into the acceptance score.
// Quality dominates; uniqueness breaks ties between passable candidates.
func finalScore(overall, uniquenessScore int) int {
	return int(math.Round(0.7*float64(overall) + 0.3*float64(uniquenessScore)))
}

// tierAbove returns the next stronger capability tier, saturating at deep.
func tierAbove(t domain.CapabilityTier) domain.CapabilityTier {
	switch t {
	case domain.TierFast:
		return domain.TierBalanced
	case domain.TierBalanced:
		return domain.TierDeep
	default:
		return domain.TierDeep
	}
}

func (s *GenerateService) normalize(spec domain.GenerationSpec) (domain.GenerationSpec, error) {
	if spec.Category == "" {
		return spec, fmt.Errorf("%w: category required", domain.ErrInvalidArgument)
	}
	if spec.TargetDifficulty < 1 || spec.TargetDifficulty > 10 {
		return spec, fmt.Errorf("%w: target difficulty %d out of range", domain.ErrInvalidArgument, spec.TargetDifficulty)
	}
	if spec.Tier == "" {
		spec.Tier = domain.TierBalanced
	}
	if spec.Temperature <= 0 {
		spec.Temperature = s.cfg.BaseTemperature
	}
	if spec.MaxAttempts <= 0 {
		spec.MaxAttempts = s.cfg.MaxAttempts
	}
	if spec.QualityThreshold < 0 || spec.QualityThreshold > 100 {
		return spec, fmt.Errorf("%w: quality threshold %d out of range", domain.ErrInvalidArgument, spec.QualityThreshold)
	}
	if spec.QualityThreshold == 0 {
		spec.QualityThreshold = s.cfg.PublishThreshold
	}
	return spec, nil
}

// Generate runs the attempt loop until a candidate is accepted or the budget
// is exhausted. When every attempt falls short, the best unique candidate is
// returned degraded if it clears the minimum acceptable score; otherwise the
// caller gets a GenerationFailedError with diagnostics.
func (s *GenerateService) Generate(ctx context.Context, spec domain.GenerationSpec) (domain.GenerationResult, error) {
	start := time.Now()
	spec, err := s.normalize(spec)
	if err != nil {
		return domain.GenerationResult{}, err
	}

	history, err := s.history.QueryRecent(ctx, s.cfg.HistoryWindowDays, s.cfg.HistoryMaxItems)
	if err != nil {
		// Duplicate suppression is best-effort; an unavailable history store
		// must not block the daily puzzle.
		slog.Warn("history unavailable, proceeding without uniqueness context", slog.Any("error", err))
		history = nil
	}

	var best *domain.GenerationAttempt
	var feedback []string
	lastReason := "no attempts completed"

	for attempt := 1; attempt <= spec.MaxAttempts; attempt++ {
		attemptStart := time.Now()
		attemptSpec := spec
		attemptSpec.Feedback = feedback
		// later attempts run hotter and, on the final try, on a stronger tier
		attemptSpec.Temperature = math.Min(spec.Temperature+0.1*float64(attempt-1), 1.0)
		if s.cfg.EscalateTiers && attempt == spec.MaxAttempts && attempt > 1 {
			attemptSpec.Tier = tierAbove(spec.Tier)
		}

		cand, err := s.source.Generate(ctx, attemptSpec)
		if err != nil {
			if ctx.Err() != nil {
				return domain.GenerationResult{}, fmt.Errorf("op=generate: %w", ctx.Err())
			}
			if errors.Is(err, domain.ErrInvalidArgument) {
				return domain.GenerationResult{}, err
			}
			lastReason = err.Error()
			observability.GenerationAttemptsTotal.WithLabelValues("error").Inc()
			slog.Warn("generation attempt failed",
				slog.Int("attempt", attempt),
				slog.Any("error", err))
			continue
		}

		attemptRec, err := s.evaluateCandidate(cand, history, spec.QualityThreshold, attempt, attemptStart)
		if err != nil {
			lastReason = err.Error()
			observability.GenerationAttemptsTotal.WithLabelValues("error").Inc()
			slog.Error("attempt evaluation failed",
				observability.AttemptGroup(cand.ID, attempt),
				slog.Any("error", err))
			continue
		}

		slog.Info("attempt evaluated",
			observability.AttemptGroup(cand.ID, attempt),
			slog.String("verdict", string(attemptRec.Report.Verdict)),
			slog.Int("overall", attemptRec.Report.Overall),
			slog.Int("uniqueness", attemptRec.Uniqueness.Score),
			slog.Int("final_score", attemptRec.FinalScore),
			slog.Bool("is_unique", attemptRec.Uniqueness.IsUnique))

		if attemptRec.Uniqueness.IsUnique {
			if best == nil || attemptRec.FinalScore > best.FinalScore {
				best = &attemptRec
			}
			accepted := attemptRec.Report.Verdict == domain.VerdictPublish ||
				(attempt >= 2 && attemptRec.Report.Overall >= spec.QualityThreshold)
			if accepted {
				observability.GenerationAttemptsTotal.WithLabelValues("accepted").Inc()
				return s.finish(ctx, attemptRec, attempt, false, start)
			}
			lastReason = fmt.Sprintf("verdict %s with overall %d", attemptRec.Report.Verdict, attemptRec.Report.Overall)
		} else {
			lastReason = "candidate not unique"
			attemptRec.FailureNote = lastReason
		}

		observability.GenerationAttemptsTotal.WithLabelValues("retried").Inc()
		feedback = attemptRec.Report.Actions
		if !attemptRec.Uniqueness.IsUnique {
			feedback = append(feedback, "the previous puzzle was too similar to recent ones; use a different answer and different symbols")
		}
	}

	if best != nil && best.FinalScore >= s.cfg.MinAcceptableScore {
		slog.Warn("accepting degraded candidate",
			slog.Int("final_score", best.FinalScore),
			slog.Int("attempts", spec.MaxAttempts))
		observability.GenerationAttemptsTotal.WithLabelValues("degraded").Inc()
		return s.finish(ctx, *best, spec.MaxAttempts, true, start)
	}

	observability.GenerationAttemptsTotal.WithLabelValues("failed").Inc()
	failure := &domain.GenerationFailedError{
		Attempts:   spec.MaxAttempts,
		LastReason: lastReason,
	}
	if best != nil {
		failure.BestScore = best.FinalScore
		failure.BestReport = &best.Report
	}
	return domain.GenerationResult{}, failure
}

// evaluateCandidate runs the scoring stages for one attempt. A panic in any
// stage consumes the attempt instead of the process.
func (s *GenerateService) evaluateCandidate(cand domain.Candidate, history []domain.PuzzleSummary, publishThreshold, attempt int, attemptStart time.Time) (rec domain.GenerationAttempt, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("op=generate.evaluate: %w: stage panic: %v", domain.ErrInternal, r)
		}
	}()

	calibrated := s.calibrator.Calibrate(cand)

	th := quality.Thresholds{Publish: publishThreshold, Revision: s.cfg.RevisionThreshold}
	if attempt == 1 {
		th.Publish -= s.cfg.FirstAttemptDiscount
		th.Revision -= s.cfg.FirstAttemptDiscount
	}
	report := s.evaluator.Evaluate(cand, calibrated, th)
	uniqRes := s.uniq.Validate(cand, history)
	score := finalScore(report.Overall, uniqRes.Score)

	observability.GenerationVerdictsTotal.WithLabelValues(string(report.Verdict)).Inc()
	observability.QualityOverallHistogram.Observe(float64(report.Overall))
	observability.UniquenessScoreHistogram.Observe(float64(uniqRes.Score))

	return domain.GenerationAttempt{
		Index:      attempt,
		Candidate:  cand,
		Difficulty: calibrated,
		Report:     report,
		Uniqueness: uniqRes,
		FinalScore: score,
		Elapsed:    time.Since(attemptStart),
	}, nil
}

// finish persists the accepted puzzle's summary and assembles the result.
// History persistence is best-effort: a failed save is logged, not fatal.
func (s *GenerateService) finish(ctx context.Context, a domain.GenerationAttempt, attempts int, degraded bool, start time.Time) (domain.GenerationResult, error) {
	fp := uniqueness.FingerprintCandidate(a.Candidate)
	summary := domain.PuzzleSummary{
		Label:       a.Candidate.Label,
		Symbols:     textx.NotableSymbols(a.Candidate.Content),
		Category:    a.Candidate.Category,
		PatternType: uniqueness.ClassifyPattern(a.Candidate),
		Fingerprint: fp,
		CreatedAt:   a.Candidate.CreatedAt,
	}
	if err := s.history.Save(ctx, summary); err != nil {
		slog.Warn("history save failed", slog.String("candidate_id", a.Candidate.ID), slog.Any("error", err))
	}

	elapsed := time.Since(start)
	observability.GenerationDuration.Observe(elapsed.Seconds())
	slog.Info("puzzle generated",
		slog.String("candidate_id", a.Candidate.ID),
		slog.String("label", a.Candidate.Label),
		slog.Int("difficulty", a.Difficulty),
		slog.Int("overall", a.Report.Overall),
		slog.Int("attempts", attempts),
		slog.Bool("degraded", degraded),
		slog.Duration("elapsed", elapsed))

	return domain.GenerationResult{
		Candidate:       a.Candidate,
		Difficulty:      a.Difficulty,
		Report:          a.Report,
		Fingerprint:     fp,
		UniquenessScore: a.Uniqueness.Score,
		Attempts:        attempts,
		Degraded:        degraded,
		ElapsedMs:       elapsed.Milliseconds(),
	}, nil
}
