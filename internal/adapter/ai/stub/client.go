// Package stub provides a fast, deterministic generative backend for local
// development. No network, no API key, stable output for a given prompt.
package stub

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/fairyhunter13/ai-puzzle-forge/internal/domain"
)

// Client is a deterministic in-process backend.
type Client struct{}

// New constructs a stub backend.
func New() *Client { return &Client{} }

var sampleSymbols = []string{"🌕🚶", "🔥🐝", "🌧️🎀", "⏳🏃", "🧊🔨", "🎭🔑"}

var sampleLabels = []string{"Moonwalker", "Firefly", "Rainbow", "Race against time", "Icebreaker", "Keyplayer"}

// Complete fabricates a schema-valid puzzle payload. The prompt hash picks
// the sample so repeated identical requests return identical candidates.
func (c *Client) Complete(_ context.Context, req domain.ModelRequest) (domain.ModelResponse, error) {
	// resemble real latency without slowing tests meaningfully
	time.Sleep(10 * time.Millisecond)

	h := fnv.New32a()
	_, _ = h.Write([]byte(req.UserPrompt))
	idx := int(h.Sum32()) % len(sampleLabels)
	if idx < 0 {
		idx = -idx
	}

	payload := map[string]any{
		"content":             sampleSymbols[idx],
		"label":               sampleLabels[idx],
		"explanation":         fmt.Sprintf("The symbols read left to right spell out %q.", sampleLabels[idx]),
		"hints":               []string{"Read the symbols in order", "Say it out loud"},
		"category":            "visual",
		"proposed_difficulty": 5,
		"complexity_profile": map[string]int{
			"ambiguity":           4,
			"cognitive_steps":     5,
			"required_background": 3,
			"vocabulary_level":    4,
			"pattern_novelty":     5,
		},
	}
	model := req.Model
	if model == "" {
		model = "stub/deterministic-v1"
	}
	b, _ := json.Marshal(payload)
	return domain.ModelResponse{
		Content: string(b),
		Model:   model,
		Usage:   domain.TokenUsage{PromptTokens: 64, CompletionTokens: 96, TotalTokens: 160},
	}, nil
}
