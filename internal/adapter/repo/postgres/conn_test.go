package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-puzzle-forge/internal/adapter/repo/postgres"
)

func TestNewPool_InvalidDSN(t *testing.T) {
	t.Parallel()

	_, err := postgres.NewPool(context.Background(), "not-a-dsn://///", 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=postgres.NewPool")
}
