package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy (sentinels). Backend failures are classified once, here,
// and every retry loop consumes the same classification.
var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrNotFound            = errors.New("not found")
	ErrModelNotFound       = errors.New("model not found")
	ErrQuotaExhausted      = errors.New("quota exhausted")
	ErrRateLimited         = errors.New("rate limited")
	ErrTransientGateway    = errors.New("transient gateway failure")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrSchemaInvalid       = errors.New("schema invalid")
	ErrInternal            = errors.New("internal error")
)

// IsRetryable reports whether an error should move the fallback chain to the
// next model (or be retried by WithRetry). Quota exhaustion is retryable
// across models but not within one model; see IsBackoffRetryable.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrModelNotFound) ||
		errors.Is(err, ErrQuotaExhausted) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTransientGateway) ||
		errors.Is(err, ErrProviderUnavailable)
}

// IsBackoffRetryable reports whether retrying the same operation can succeed.
// Quota exhaustion cannot recover within a backoff window, so it is excluded.
func IsBackoffRetryable(err error) bool {
	if errors.Is(err, ErrQuotaExhausted) {
		return false
	}
	return IsRetryable(err)
}

// GenerationFailedError is returned when every attempt is exhausted and even
// the best candidate fell below the minimum acceptable score. It carries the
// best-effort diagnostics so callers can alert or degrade without parsing text.
type GenerationFailedError struct {
	Attempts   int
	BestScore  int
	BestReport *QualityReport
	LastReason string
}

func (e *GenerationFailedError) Error() string {
	return fmt.Sprintf("generation failed after %d attempts: best score %d (%s)", e.Attempts, e.BestScore, e.LastReason)
}
