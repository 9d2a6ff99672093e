// Package ai holds shared pieces of the generation adapter: prompt assembly
// and candidate parsing from raw model output.
package ai

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"

	"github.com/fairyhunter13/ai-puzzle-forge/internal/domain"
	"github.com/fairyhunter13/ai-puzzle-forge/pkg/textx"
)

var (
	vld     *validator.Validate
	vldOnce sync.Once
)

var ulidEntropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0) //nolint:gosec // Weak random is sufficient for ULID entropy.

// candidatePayload is the JSON schema models are asked to emit. Profile values
// arrive as float64 because models routinely return fractional scores.
type candidatePayload struct {
	Content            string             `json:"content" validate:"required"`
	Label              string             `json:"label" validate:"required"`
	Explanation        string             `json:"explanation" validate:"required"`
	Hints              []string           `json:"hints"`
	Category           string             `json:"category"`
	ProposedDifficulty int                `json:"proposed_difficulty"`
	ComplexityProfile  map[string]float64 `json:"complexity_profile"`
}

// stripFences removes markdown code fences models wrap JSON in.
func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	return strings.TrimSpace(raw)
}

// ParseCandidate converts raw model output into a validated Candidate.
// Malformed or incomplete payloads return ErrSchemaInvalid so the caller can
// retry generation instead of treating it as a backend outage.
func ParseCandidate(raw, model, category string) (domain.Candidate, error) {
	var payload candidatePayload
	if err := json.Unmarshal([]byte(stripFences(raw)), &payload); err != nil {
		return domain.Candidate{}, fmt.Errorf("%w: unmarshal candidate: %v", domain.ErrSchemaInvalid, err)
	}

	vldOnce.Do(func() { vld = validator.New() })
	if err := vld.Struct(payload); err != nil {
		return domain.Candidate{}, fmt.Errorf("%w: %v", domain.ErrSchemaInvalid, err)
	}

	profile := make(domain.ComplexityProfile, len(payload.ComplexityProfile))
	for name, v := range payload.ComplexityProfile {
		profile[name] = domain.ClampFactor(v)
	}

	hints := make([]string, 0, len(payload.Hints))
	for _, h := range payload.Hints {
		if h = textx.SanitizeText(h); h != "" {
			hints = append(hints, h)
		}
	}

	if payload.Category == "" {
		payload.Category = category
	}
	if payload.ProposedDifficulty < 1 || payload.ProposedDifficulty > 10 {
		payload.ProposedDifficulty = 0
	}

	id, err := ulid.New(ulid.Timestamp(time.Now()), ulidEntropy)
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("op=ai.ParseCandidate: new ulid: %w", err)
	}

	return domain.Candidate{
		ID:                 id.String(),
		Content:            textx.SanitizeText(payload.Content),
		Label:              textx.SanitizeText(payload.Label),
		Explanation:        textx.SanitizeText(payload.Explanation),
		Hints:              hints,
		Category:           strings.ToLower(strings.TrimSpace(payload.Category)),
		ProposedDifficulty: payload.ProposedDifficulty,
		Profile:            profile,
		Model:              model,
		CreatedAt:          time.Now().UTC(),
	}, nil
}
