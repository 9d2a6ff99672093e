package usecase

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fairyhunter13/ai-puzzle-forge/internal/domain"
)

// BatchItem pairs one requested spec with its outcome. Failures are isolated:
// one category failing does not abort the rest of the batch.
type BatchItem struct {
	Spec   domain.GenerationSpec
	Result domain.GenerationResult
	Err    error
}

// GenerateBatch runs Generate for each spec with bounded concurrency and
// returns outcomes in input order. Concurrent runs share the same history
// window snapshot semantics as sequential ones: duplicate suppression between
// in-flight generations is best-effort.
func (s *GenerateService) GenerateBatch(ctx context.Context, specs []domain.GenerationSpec, concurrency int) []BatchItem {
	if concurrency < 1 {
		concurrency = 1
	}
	items := make([]BatchItem, len(specs))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, spec := range specs {
		wg.Add(1)
		go func(i int, spec domain.GenerationSpec) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res, err := s.Generate(ctx, spec)
			items[i] = BatchItem{Spec: spec, Result: res, Err: err}
			if err != nil {
				slog.Error("batch item failed",
					slog.String("category", spec.Category),
					slog.Any("error", err))
			}
		}(i, spec)
	}
	wg.Wait()
	return items
}
