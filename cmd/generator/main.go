// Package main provides the puzzle generator entry point.
// It runs one generation batch across the configured categories, persists the
// accepted puzzles, and exits non-zero when every category fails.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/ai-puzzle-forge/internal/adapter/ai/fallback"
	"github.com/fairyhunter13/ai-puzzle-forge/internal/adapter/ai/openrouter"
	"github.com/fairyhunter13/ai-puzzle-forge/internal/adapter/ai/stub"
	"github.com/fairyhunter13/ai-puzzle-forge/internal/adapter/observability"
	"github.com/fairyhunter13/ai-puzzle-forge/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/ai-puzzle-forge/internal/adapter/repo/redishist"
	"github.com/fairyhunter13/ai-puzzle-forge/internal/config"
	"github.com/fairyhunter13/ai-puzzle-forge/internal/domain"
	"github.com/fairyhunter13/ai-puzzle-forge/internal/pipeline/difficulty"
	"github.com/fairyhunter13/ai-puzzle-forge/internal/pipeline/quality"
	"github.com/fairyhunter13/ai-puzzle-forge/internal/pipeline/uniqueness"
	"github.com/fairyhunter13/ai-puzzle-forge/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		slog.Error("generator failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.MetricsPort)
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("metrics server error", slog.Any("error", err))
		}
	}()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	slog.Info("starting generator", slog.String("env", cfg.AppEnv))

	// one connection per concurrent generation, plus one for cleanup
	pool, err := postgres.NewPool(ctx, cfg.DBURL, int32(cfg.BatchConcurrency+1))
	if err != nil {
		return fmt.Errorf("database connection: %w", err)
	}
	defer pool.Close()

	puzzleRepo := postgres.NewPuzzleRepo(pool)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer func() { _ = rdb.Close() }()
	var history domain.HistoryStore = puzzleRepo
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, history cache disabled", slog.Any("error", err))
	} else {
		history = redishist.New(rdb, puzzleRepo, cfg.HistoryTTL)
	}

	tables, err := config.LoadPipelineTables(cfg.ModelChainsPath)
	if err != nil {
		return fmt.Errorf("pipeline tables: %w", err)
	}

	var backend domain.GenerativeBackend
	if cfg.ProviderAPIKey == "" {
		slog.Warn("PROVIDER_API_KEY not set, using deterministic stub backend")
		backend = stub.New()
	} else {
		backend = openrouter.New(cfg)
	}

	maxAttempts, initialDelay, maxDelay, multiplier := cfg.RetryConfig()
	retryCfg := domain.RetryConfig{
		MaxAttempts:  maxAttempts,
		InitialDelay: initialDelay,
		MaxDelay:     maxDelay,
		Multiplier:   multiplier,
	}
	source := fallback.New(backend, tables, retryCfg, cfg.ProviderTimeout)

	svc := usecase.NewGenerateService(
		source,
		history,
		uniqueness.NewEngine(uniqueness.Config{
			WindowDays:          cfg.HistoryWindowDays,
			DiversityWindowDays: cfg.DiversityWindow,
			ConflictThreshold:   cfg.ConflictThreshold,
			RejectThreshold:     cfg.RejectThreshold,
			SymbolOverlapLimit:  cfg.SymbolOverlapLimit,
		}),
		difficulty.NewCalibrator(tables.DifficultyWeights, difficulty.Band{Min: cfg.DifficultyMin, Max: cfg.DifficultyMax}),
		quality.NewEvaluator(tables.QualityWeights),
		usecase.PipelineConfig{
			MaxAttempts:          cfg.MaxAttempts,
			PublishThreshold:     cfg.PublishThreshold,
			RevisionThreshold:    cfg.RevisionThreshold,
			MinAcceptableScore:   cfg.MinAcceptableScore,
			FirstAttemptDiscount: cfg.FirstAttemptDiscount,
			EscalateTiers:        cfg.EscalateTiers,
			BaseTemperature:      cfg.BaseTemperature,
			HistoryWindowDays:    cfg.HistoryWindowDays,
			HistoryMaxItems:      cfg.HistoryMaxItems,
		},
	)

	target := (cfg.DifficultyMin + cfg.DifficultyMax + 1) / 2
	specs := make([]domain.GenerationSpec, 0, len(cfg.BatchCategories))
	for _, cat := range cfg.BatchCategories {
		specs = append(specs, domain.GenerationSpec{
			TargetDifficulty: target,
			Category:         cat,
			RequireNovelty:   true,
			Tier:             domain.TierBalanced,
		})
	}

	start := time.Now()
	items := svc.GenerateBatch(ctx, specs, cfg.BatchConcurrency)

	failures := 0
	enc := json.NewEncoder(os.Stdout)
	for _, item := range items {
		if item.Err != nil {
			failures++
			continue
		}
		if err := enc.Encode(item.Result); err != nil {
			slog.Error("result encode failed", slog.Any("error", err))
		}
	}
	slog.Info("batch finished",
		slog.Int("requested", len(items)),
		slog.Int("failed", failures),
		slog.Duration("elapsed", time.Since(start)))

	// prune history rows that fell out of every uniqueness window
	cleanup := postgres.NewCleanupService(pool, cfg.HistoryWindowDays*3)
	if err := cleanup.CleanupOldData(ctx); err != nil {
		slog.Warn("history cleanup failed", slog.Any("error", err))
	}

	if failures == len(items) && len(items) > 0 {
		return fmt.Errorf("all %d categories failed", len(items))
	}
	return nil
}
