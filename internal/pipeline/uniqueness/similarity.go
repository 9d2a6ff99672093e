package uniqueness

import (
	"github.com/agnivade/levenshtein"

	"github.com/fairyhunter13/ai-puzzle-forge/pkg/textx"
)

const (
	labelWeight  = 0.6
	symbolWeight = 0.4
)

// Similarity blends normalized label edit distance with notable-symbol set
// overlap into a score in [0,1]. Symmetric by construction.
func Similarity(labelA string, symbolsA []string, labelB string, symbolsB []string) float64 {
	return labelWeight*labelSimilarity(labelA, labelB) + symbolWeight*Jaccard(symbolsA, symbolsB)
}

// labelSimilarity is 1 - levenshtein/maxLen over normalized labels. Two empty
// labels are defined as identical.
func labelSimilarity(a, b string) float64 {
	na, nb := textx.NormalizeLabel(a), textx.NormalizeLabel(b)
	la, lb := len([]rune(na)), len([]rune(nb))
	if la == 0 && lb == 0 {
		return 1.0
	}
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	d := levenshtein.ComputeDistance(na, nb)
	sim := 1.0 - float64(d)/float64(maxLen)
	if sim < 0 {
		return 0
	}
	return sim
}

// Jaccard returns |A∩B| / |A∪B| over two symbol sets; two empty sets are
// defined as identical.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	setA := make(map[string]bool, len(a))
	for _, s := range a {
		setA[s] = true
	}
	setB := make(map[string]bool, len(b))
	for _, s := range b {
		setB[s] = true
	}
	intersection := 0
	for s := range setA {
		if setB[s] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 1.0
	}
	return float64(intersection) / float64(union)
}

// SymbolOverlap returns the share of a's symbols that also appear in b,
// used by the component-combination check.
func SymbolOverlap(a, b []string) float64 {
	if len(a) == 0 {
		return 0
	}
	setB := make(map[string]bool, len(b))
	for _, s := range b {
		setB[s] = true
	}
	shared := 0
	for _, s := range a {
		if setB[s] {
			shared++
		}
	}
	return float64(shared) / float64(len(a))
}
