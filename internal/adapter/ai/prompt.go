package ai

import (
	"fmt"
	"strings"

	"github.com/fairyhunter13/ai-puzzle-forge/internal/domain"
)

const systemPrompt = `You are a puzzle designer for a daily puzzle product.
Design one original puzzle and respond with ONLY a valid JSON object, no prose
and no markdown fences, matching this schema:
{
  "content": "the puzzle as presented to the solver",
  "label": "the short answer or name of the puzzle",
  "explanation": "why the answer is correct, written for the solver",
  "hints": ["optional progressive hints"],
  "category": "the puzzle category",
  "proposed_difficulty": 5,
  "complexity_profile": {
    "ambiguity": 5,
    "cognitive_steps": 5,
    "required_background": 5,
    "vocabulary_level": 5,
    "pattern_novelty": 5
  }
}
All complexity_profile values are integers from 1 (trivial) to 10 (extreme).`

// BuildUserPrompt assembles the generation request from the spec. Feedback
// from a prior rejected attempt is threaded in verbatim so the model can
// address the concrete shortfalls rather than regenerate blindly.
func BuildUserPrompt(spec domain.GenerationSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create one %s puzzle with target difficulty %d out of 10.\n",
		spec.Category, spec.TargetDifficulty)
	if spec.RequireNovelty {
		b.WriteString("The puzzle must use a fresh pattern, not a variation on common formats.\n")
	}
	if len(spec.Feedback) > 0 {
		b.WriteString("A previous attempt was rejected. Address every item below:\n")
		for _, f := range spec.Feedback {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	return b.String()
}

// SystemPrompt returns the fixed instruction block shared by all requests.
func SystemPrompt() string { return systemPrompt }
