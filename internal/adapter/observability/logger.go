package observability

import (
	"log/slog"
	"os"

	"github.com/fairyhunter13/ai-puzzle-forge/internal/config"
)

// SetupLogger builds the process-wide JSON logger. Dev runs at debug so
// the per-attempt pipeline records are visible; everything else stays at
// info to keep batch runs readable.
func SetupLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.IsDev() {
		level = slog.LevelDebug
	}
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h).With(
		slog.String("service", cfg.OTELServiceName),
		slog.String("env", cfg.AppEnv),
	)
}

// AttemptGroup bundles the identifiers every per-attempt log record carries
// so pipeline stages stay greppable by candidate and attempt.
func AttemptGroup(candidateID string, attempt int) slog.Attr {
	return slog.Group("gen",
		slog.String("candidate_id", candidateID),
		slog.Int("attempt", attempt))
}
