package uniqueness

import (
	"strings"

	"github.com/fairyhunter13/ai-puzzle-forge/internal/domain"
	"github.com/fairyhunter13/ai-puzzle-forge/pkg/textx"
)

// Structural pattern types. First matching heuristic wins.
const (
	PatternSymbolOnly     = "symbol_only"
	PatternPositionalCues = "positional_cues"
	PatternPhonetic       = "phonetic_wordplay"
	PatternMultiWord      = "multi_word_phrase"
	PatternUnknown        = "unknown"
)

var positionalRunes = []string{"→", "←", "↑", "↓", "⬆", "⬇", "➡", "⬅", "↔", "↕"}

var phoneticMarkers = []string{"sounds like", "rhymes with", "homophone", "phonetic", "say it aloud", "pronounce"}

// ClassifyPattern identifies the structural pattern type of a candidate by
// heuristics over its content and explanation.
func ClassifyPattern(c domain.Candidate) string {
	return classify(c.Content, c.Explanation, c.Label)
}

// ClassifySummary applies the same heuristics to a history summary, deferring
// to the persisted pattern type when present.
func ClassifySummary(s domain.PuzzleSummary) string {
	if s.PatternType != "" {
		return s.PatternType
	}
	return classify(strings.Join(s.Symbols, ""), "", s.Label)
}

func classify(content, explanation, label string) string {
	symbols := textx.NotableSymbols(content)
	tokens := textx.Tokens(content)

	if len(symbols) > 0 && len(tokens) == 0 {
		return PatternSymbolOnly
	}
	for _, r := range positionalRunes {
		if strings.Contains(content, r) {
			return PatternPositionalCues
		}
	}
	lowerExpl := strings.ToLower(explanation)
	for _, m := range phoneticMarkers {
		if strings.Contains(lowerExpl, m) {
			return PatternPhonetic
		}
	}
	if len(strings.Fields(label)) > 1 {
		return PatternMultiWord
	}
	return PatternUnknown
}
