// Package tokencount estimates token usage for generation calls.
//
// It uses tiktoken-go to count prompt and completion tokens, which keeps the
// usage numbers in generation logs comparable across providers even when a
// provider omits usage in its response.
package tokencount

import (
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"github.com/fairyhunter13/ai-puzzle-forge/internal/domain"
)

// Counter provides thread-safe token counting for backend models.
type Counter struct {
	encodingCache map[string]*tiktoken.Tiktoken
	mu            sync.RWMutex
}

// NewCounter creates a new token counter instance.
func NewCounter() *Counter {
	return &Counter{encodingCache: make(map[string]*tiktoken.Tiktoken)}
}

func (c *Counter) encodingFor(model string) (*tiktoken.Tiktoken, error) {
	normalized := normalizeModelName(model)

	c.mu.RLock()
	if enc, ok := c.encodingCache[normalized]; ok {
		c.mu.RUnlock()
		return enc, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.encodingCache[normalized]; ok {
		return enc, nil
	}
	enc, err := tiktoken.EncodingForModel(normalized)
	if err != nil {
		// cl100k_base approximates most modern model tokenizers well enough
		// for budgeting purposes.
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}
	c.encodingCache[normalized] = enc
	return enc, nil
}

// normalizeModelName strips provider prefixes and variant suffixes so
// "meta-llama/llama-3.1-8b-instruct:free" maps onto a known encoding.
func normalizeModelName(model string) string {
	model = strings.ToLower(model)
	if i := strings.LastIndex(model, "/"); i >= 0 {
		model = model[i+1:]
	}
	model = strings.TrimSuffix(model, ":free")
	if strings.Contains(model, "gpt-3.5") {
		return "gpt-3.5-turbo"
	}
	return "gpt-4"
}

// Count returns the number of tokens in text for the given model.
func (c *Counter) Count(text, model string) (int, error) {
	enc, err := c.encodingFor(model)
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// Usage computes full token usage for one chat completion. Counting failures
// degrade to a rough four-characters-per-token estimate rather than erroring.
func (c *Counter) Usage(systemPrompt, userPrompt, completion, model string) domain.TokenUsage {
	prompt, err := c.Count(systemPrompt+"\n"+userPrompt, model)
	if err != nil {
		prompt = (len(systemPrompt) + len(userPrompt)) / 4
	}
	// per-message overhead for OpenAI-compatible chat APIs
	prompt += 11

	done, err := c.Count(completion, model)
	if err != nil {
		done = len(completion) / 4
	}
	return domain.TokenUsage{
		PromptTokens:     prompt,
		CompletionTokens: done,
		TotalTokens:      prompt + done,
	}
}
