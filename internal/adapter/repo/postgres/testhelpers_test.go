package postgres_test

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fairyhunter13/ai-puzzle-forge/internal/domain"
)

// poolStub implements postgres.PgxPool for tests. Shared across the package's
// test files to avoid redefinitions.
type poolStub struct {
	execErr  error
	execTag  pgconn.CommandTag
	execSQL  string
	execArgs []any

	queryErr error
	rows     *rowsStub
}

func (p *poolStub) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	p.execSQL = sql
	p.execArgs = args
	return p.execTag, p.execErr
}

func (p *poolStub) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	return rowStub{scan: func(_ ...any) error { return errors.New("no row configured") }}
}

func (p *poolStub) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	if p.queryErr != nil {
		return nil, p.queryErr
	}
	if p.rows == nil {
		return &rowsStub{}, nil
	}
	return p.rows, nil
}

type rowStub struct{ scan func(dest ...any) error }

func (r rowStub) Scan(dest ...any) error { return r.scan(dest...) }

// rowsStub implements pgx.Rows over a fixed set of summaries.
type rowsStub struct {
	summaries []domain.PuzzleSummary
	idx       int
	scanErr   error
	rowsErr   error
	closed    bool
}

func (r *rowsStub) Close()                                       { r.closed = true }
func (r *rowsStub) Err() error                                   { return r.rowsErr }
func (r *rowsStub) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *rowsStub) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *rowsStub) Values() ([]any, error)                       { return nil, nil }
func (r *rowsStub) RawValues() [][]byte                          { return nil }
func (r *rowsStub) Conn() *pgx.Conn                              { return nil }

func (r *rowsStub) Next() bool {
	return r.idx < len(r.summaries)
}

func (r *rowsStub) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	s := r.summaries[r.idx]
	r.idx++
	*(dest[0].(*string)) = s.Label
	*(dest[1].(*[]string)) = s.Symbols
	*(dest[2].(*string)) = s.Category
	*(dest[3].(*string)) = s.PatternType
	*(dest[4].(*string)) = string(s.Fingerprint)
	*(dest[5].(*time.Time)) = s.CreatedAt
	return nil
}
