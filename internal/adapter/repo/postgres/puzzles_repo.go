package postgres

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-puzzle-forge/internal/domain"
)

// PuzzleRepo stores and queries puzzle history summaries.
type PuzzleRepo struct{ Pool PgxPool }

// NewPuzzleRepo constructs a PuzzleRepo with the given pool.
func NewPuzzleRepo(p PgxPool) *PuzzleRepo { return &PuzzleRepo{Pool: p} }

// QueryRecent returns summaries created within the last windowDays, newest
// first, capped at maxItems.
func (r *PuzzleRepo) QueryRecent(ctx context.Context, windowDays, maxItems int) ([]domain.PuzzleSummary, error) {
	tracer := otel.Tracer("repo.puzzles")
	ctx, span := tracer.Start(ctx, "puzzles.QueryRecent")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "puzzles"),
		attribute.Int("window_days", windowDays),
	)
	if windowDays <= 0 || maxItems <= 0 {
		return nil, fmt.Errorf("%w: window and limit must be positive", domain.ErrInvalidArgument)
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -windowDays)
	q := `SELECT label, symbols, category, pattern_type, fingerprint, created_at
	      FROM puzzles WHERE created_at >= $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.Pool.Query(ctx, q, cutoff, maxItems)
	if err != nil {
		return nil, fmt.Errorf("op=puzzles.query_recent: %w", err)
	}
	defer rows.Close()

	var out []domain.PuzzleSummary
	for rows.Next() {
		var s domain.PuzzleSummary
		var fp string
		if err := rows.Scan(&s.Label, &s.Symbols, &s.Category, &s.PatternType, &fp, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("op=puzzles.query_recent: scan: %w", err)
		}
		s.Fingerprint = domain.Fingerprint(fp)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=puzzles.query_recent: rows: %w", err)
	}
	return out, nil
}

// Save stores one published puzzle summary.
func (r *PuzzleRepo) Save(ctx context.Context, s domain.PuzzleSummary) error {
	tracer := otel.Tracer("repo.puzzles")
	ctx, span := tracer.Start(ctx, "puzzles.Save")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "puzzles"),
	)
	if s.Label == "" || s.Fingerprint == "" {
		return fmt.Errorf("%w: label and fingerprint required", domain.ErrInvalidArgument)
	}
	created := s.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	q := `INSERT INTO puzzles (label, symbols, category, pattern_type, fingerprint, created_at)
	      VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := r.Pool.Exec(ctx, q, s.Label, s.Symbols, s.Category, s.PatternType, string(s.Fingerprint), created)
	if err != nil {
		return fmt.Errorf("op=puzzles.save: %w", err)
	}
	return nil
}
