// Package config provides loading of model chain and weight tables.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModelChain is an ordered fallback list for one capability tier: one primary
// model plus zero or more fallbacks, tried in order.
type ModelChain struct {
	Primary   string   `yaml:"primary"`
	Fallbacks []string `yaml:"fallbacks"`
}

// Models returns the chain as a deduplicated, primary-first ordered slice.
func (mc ModelChain) Models() []string {
	seen := make(map[string]bool, len(mc.Fallbacks)+1)
	out := make([]string, 0, len(mc.Fallbacks)+1)
	for _, m := range append([]string{mc.Primary}, mc.Fallbacks...) {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// PipelineTables holds the YAML-configurable tables of the pipeline: per-tier
// model chains, quality dimension weights, and difficulty factor weights.
type PipelineTables struct {
	Chains map[string]ModelChain `yaml:"model_chains"`
	// QualityWeights maps dimension name to weight; unspecified dimensions
	// default to weight 0 at evaluation time.
	QualityWeights map[string]float64 `yaml:"quality_weights"`
	// DifficultyWeights maps complexity sub-factor to weight. Weights sum to
	// ~1.0 by convention but the calibrator applies them as given.
	DifficultyWeights map[string]float64 `yaml:"difficulty_weights"`
}

// DefaultPipelineTables returns the built-in tables used when no YAML file is
// configured.
func DefaultPipelineTables() PipelineTables {
	return PipelineTables{
		Chains: map[string]ModelChain{
			"fast":     {Primary: "meta-llama/llama-3.1-8b-instruct", Fallbacks: []string{"mistralai/mistral-7b-instruct", "google/gemma-2-9b-it"}},
			"balanced": {Primary: "anthropic/claude-3.5-haiku", Fallbacks: []string{"openai/gpt-4o-mini", "meta-llama/llama-3.1-70b-instruct"}},
			"deep":     {Primary: "anthropic/claude-3.5-sonnet", Fallbacks: []string{"openai/gpt-4o", "google/gemini-pro-1.5"}},
		},
		QualityWeights: map[string]float64{
			"clarity":     0.25,
			"novelty":     0.25,
			"richness":    0.2,
			"solvability": 0.2,
			"structure":   0.1,
		},
		DifficultyWeights: map[string]float64{
			"ambiguity":           0.25,
			"cognitive_steps":     0.3,
			"required_background": 0.15,
			"vocabulary_level":    0.1,
			"pattern_novelty":     0.2,
		},
	}
}

// LoadPipelineTables reads pipeline tables from a YAML file, falling back to
// the defaults for any table the file omits.
func LoadPipelineTables(path string) (PipelineTables, error) {
	tables := DefaultPipelineTables()
	if path == "" {
		return tables, nil
	}
	// #nosec G304 -- Configuration files are expected to be safe
	content, err := os.ReadFile(path)
	if err != nil {
		return PipelineTables{}, fmt.Errorf("op=config.LoadPipelineTables: %w", err)
	}
	var loaded PipelineTables
	if err := yaml.Unmarshal(content, &loaded); err != nil {
		return PipelineTables{}, fmt.Errorf("op=config.LoadPipelineTables: %w", err)
	}
	if len(loaded.Chains) > 0 {
		tables.Chains = loaded.Chains
	}
	if len(loaded.QualityWeights) > 0 {
		tables.QualityWeights = loaded.QualityWeights
	}
	if len(loaded.DifficultyWeights) > 0 {
		tables.DifficultyWeights = loaded.DifficultyWeights
	}
	return tables, nil
}
