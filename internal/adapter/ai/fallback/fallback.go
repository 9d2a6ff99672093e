// Package fallback implements domain.CandidateSource by walking an ordered
// model chain. Each model gets its own backoff window; retryable failures
// move down the chain, fatal ones abort it.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fairyhunter13/ai-puzzle-forge/internal/adapter/ai"
	"github.com/fairyhunter13/ai-puzzle-forge/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/ai-puzzle-forge/internal/adapter/observability"
	"github.com/fairyhunter13/ai-puzzle-forge/internal/config"
	"github.com/fairyhunter13/ai-puzzle-forge/internal/domain"
)

// Completion caps. The cap fits what the prompt leaves of the context
// budget, bounded so retry feedback never squeezes a candidate below a
// parseable size.
const (
	contextTokenBudget     = 4096
	completionTokenCeiling = 1024
	completionTokenFloor   = 256
)

// Client walks per-tier model chains over a single generative backend.
type Client struct {
	backend     domain.GenerativeBackend
	chains      map[string]config.ModelChain
	retry       domain.RetryConfig
	counter     *tokencount.Counter
	callTimeout time.Duration
}

// New constructs a fallback client over backend using the configured chains.
func New(backend domain.GenerativeBackend, tables config.PipelineTables, retry domain.RetryConfig, callTimeout time.Duration) *Client {
	return &Client{
		backend:     backend,
		chains:      tables.Chains,
		retry:       retry,
		counter:     tokencount.NewCounter(),
		callTimeout: callTimeout,
	}
}

// sizeMaxTokens returns the completion cap for one call. Counting failures
// fall back to the ceiling.
func (c *Client) sizeMaxTokens(model, systemPrompt, userPrompt string) int {
	prompt, err := c.counter.Count(systemPrompt+"\n"+userPrompt, model)
	if err != nil {
		return completionTokenCeiling
	}
	budget := contextTokenBudget - prompt
	switch {
	case budget > completionTokenCeiling:
		return completionTokenCeiling
	case budget < completionTokenFloor:
		return completionTokenFloor
	default:
		return budget
	}
}

// chainFor resolves the model list for a tier. An unknown tier degrades to
// the balanced chain rather than failing the whole generation.
func (c *Client) chainFor(tier domain.CapabilityTier) ([]string, string, error) {
	name := string(tier)
	if name == "" {
		name = string(domain.TierBalanced)
	}
	chain, ok := c.chains[name]
	if !ok {
		slog.Warn("unknown capability tier, using balanced chain", slog.String("tier", name))
		name = string(domain.TierBalanced)
		chain, ok = c.chains[name]
	}
	models := chain.Models()
	if !ok || len(models) == 0 {
		return nil, name, fmt.Errorf("%w: no model chain for tier %q", domain.ErrInvalidArgument, name)
	}
	return models, name, nil
}

// Generate tries each model in the tier's chain until one produces a parseable
// candidate. Within one model, transient failures are retried with backoff;
// quota exhaustion skips straight to the next model.
func (c *Client) Generate(ctx context.Context, spec domain.GenerationSpec) (domain.Candidate, error) {
	models, tier, err := c.chainFor(spec.Tier)
	if err != nil {
		return domain.Candidate{}, err
	}

	userPrompt := ai.BuildUserPrompt(spec)
	var lastErr error
	for i, model := range models {
		req := domain.ModelRequest{
			Model:        model,
			SystemPrompt: ai.SystemPrompt(),
			UserPrompt:   userPrompt,
			Temperature:  spec.Temperature,
			MaxTokens:    c.sizeMaxTokens(model, ai.SystemPrompt(), userPrompt),
			Timeout:      c.callTimeout,
		}

		var resp domain.ModelResponse
		err := domain.WithRetry(ctx, func() error {
			r, err := c.backend.Complete(ctx, req)
			if err != nil {
				return err
			}
			resp = r
			return nil
		}, c.retry)
		if err != nil {
			if ctx.Err() != nil {
				return domain.Candidate{}, fmt.Errorf("op=fallback.Generate: %w", ctx.Err())
			}
			if !domain.IsRetryable(err) {
				return domain.Candidate{}, fmt.Errorf("op=fallback.Generate model=%s: %w", model, err)
			}
			lastErr = err
			c.hop(tier, model, i, len(models), hopReason(err), err)
			continue
		}

		cand, err := ai.ParseCandidate(resp.Content, resp.Model, spec.Category)
		if err != nil {
			// A model emitting unparseable output is a model problem; the
			// next model in the chain may do better.
			lastErr = err
			c.hop(tier, model, i, len(models), "schema_invalid", err)
			continue
		}

		slog.Info("candidate generated",
			slog.String("tier", tier),
			slog.String("model", resp.Model),
			slog.Int("chain_position", i),
			slog.Int("total_tokens", resp.Usage.TotalTokens))
		return cand, nil
	}

	return domain.Candidate{}, fmt.Errorf("op=fallback.Generate tier=%s: chain exhausted after %d models: %w", tier, len(models), lastErr)
}

func (c *Client) hop(tier, model string, index, total int, reason string, err error) {
	observability.FallbackHopsTotal.WithLabelValues(tier, reason).Inc()
	slog.Warn("model failed, moving down fallback chain",
		slog.String("tier", tier),
		slog.String("model", model),
		slog.Int("chain_position", index),
		slog.Int("chain_length", total),
		slog.String("reason", reason),
		slog.Any("error", err))
}

func hopReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrModelNotFound):
		return "model_not_found"
	case errors.Is(err, domain.ErrQuotaExhausted):
		return "quota_exhausted"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrProviderUnavailable):
		return "provider_unavailable"
	case errors.Is(err, domain.ErrTransientGateway):
		return "gateway_error"
	default:
		return "other"
	}
}
