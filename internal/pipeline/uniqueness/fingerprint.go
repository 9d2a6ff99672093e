// Package uniqueness fingerprints candidates and scores their novelty against
// the recent-history window.
package uniqueness

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/fairyhunter13/ai-puzzle-forge/internal/domain"
	"github.com/fairyhunter13/ai-puzzle-forge/pkg/textx"
)

// FingerprintCandidate derives the stable identity hash of a candidate from
// its normalized fields: lower-cased label, sorted notable symbols, sorted
// content tokens and the category tag. Identical inputs always produce
// identical fingerprints; letter case of the label does not matter. This is
// an exact-match identity, not a similarity measure.
func FingerprintCandidate(c domain.Candidate) domain.Fingerprint {
	var b strings.Builder
	b.WriteString(textx.NormalizeLabel(c.Label))
	b.WriteByte('|')
	b.WriteString(strings.Join(textx.NotableSymbols(c.Content), ""))
	b.WriteByte('|')
	b.WriteString(strings.Join(textx.Tokens(c.Content), " "))
	b.WriteByte('|')
	b.WriteString(strings.ToLower(c.Category))
	h := sha256.Sum256([]byte(b.String()))
	return domain.Fingerprint(hex.EncodeToString(h[:]))
}
