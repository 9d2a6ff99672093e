// Package openrouter implements domain.GenerativeBackend against the
// OpenRouter chat completions API (OpenAI-compatible).
//
// Each Complete call is a single request against one model. Retry and model
// fallback policy live above this layer; the client's job is classifying
// failures into the domain error taxonomy so callers can decide.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/ai-puzzle-forge/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/ai-puzzle-forge/internal/adapter/observability"
	"github.com/fairyhunter13/ai-puzzle-forge/internal/config"
	"github.com/fairyhunter13/ai-puzzle-forge/internal/domain"
)

const defaultCallTimeout = 60 * time.Second

// Client calls OpenRouter chat completions.
type Client struct {
	apiKey  string
	baseURL string
	hc      *http.Client
	counter *tokencount.Counter
}

// New constructs a Client from config. The HTTP client carries the hard
// per-call ceiling; individual requests may tighten it via ModelRequest.Timeout.
func New(cfg config.Config) *Client {
	timeout := cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Client{
		apiKey:  cfg.ProviderAPIKey,
		baseURL: strings.TrimRight(cfg.ProviderBaseURL, "/"),
		hc: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		counter: tokencount.NewCounter(),
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Messages    []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete performs one chat completion against the requested model.
func (c *Client) Complete(ctx context.Context, req domain.ModelRequest) (domain.ModelResponse, error) {
	if c.apiKey == "" {
		return domain.ModelResponse{}, fmt.Errorf("%w: PROVIDER_API_KEY missing", domain.ErrInvalidArgument)
	}
	if req.Model == "" {
		return domain.ModelResponse{}, fmt.Errorf("%w: model required", domain.ErrInvalidArgument)
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	body, _ := json.Marshal(chatRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
	})

	start := time.Now()
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return domain.ModelResponse{}, fmt.Errorf("op=openrouter.Complete: %w", err)
	}
	r.Header.Set("Authorization", "Bearer "+c.apiKey)
	r.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(r)
	observability.AIRequestDuration.WithLabelValues(req.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.AIRequestsTotal.WithLabelValues(req.Model, "transport_error").Inc()
		slog.Warn("backend transport error",
			slog.String("model", req.Model),
			slog.Any("error", err))
		return domain.ModelResponse{}, fmt.Errorf("%w: %v", domain.ErrTransientGateway, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		observability.AIRequestsTotal.WithLabelValues(req.Model, "read_error").Inc()
		return domain.ModelResponse{}, fmt.Errorf("%w: read body: %v", domain.ErrTransientGateway, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.ModelResponse{}, c.classifyStatus(req.Model, resp, respBody)
	}

	var out chatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		observability.AIRequestsTotal.WithLabelValues(req.Model, "decode_error").Inc()
		slog.Error("backend decode error", slog.String("model", req.Model), slog.Any("error", err))
		return domain.ModelResponse{}, fmt.Errorf("%w: decode response: %v", domain.ErrSchemaInvalid, err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		observability.AIRequestsTotal.WithLabelValues(req.Model, "empty").Inc()
		return domain.ModelResponse{}, fmt.Errorf("%w: empty choices", domain.ErrSchemaInvalid)
	}

	content := out.Choices[0].Message.Content
	usage := domain.TokenUsage{
		PromptTokens:     out.Usage.PromptTokens,
		CompletionTokens: out.Usage.CompletionTokens,
		TotalTokens:      out.Usage.TotalTokens,
	}
	if usage.TotalTokens == 0 {
		usage = c.counter.Usage(req.SystemPrompt, req.UserPrompt, content, req.Model)
	}
	observability.AIRequestsTotal.WithLabelValues(req.Model, "ok").Inc()
	observability.AITokensTotal.WithLabelValues(req.Model, "prompt").Add(float64(usage.PromptTokens))
	observability.AITokensTotal.WithLabelValues(req.Model, "completion").Add(float64(usage.CompletionTokens))

	actualModel := out.Model
	if actualModel == "" {
		actualModel = req.Model
	}
	if actualModel != req.Model {
		slog.Warn("model substitution detected",
			slog.String("requested_model", req.Model),
			slog.String("actual_model", actualModel))
	}
	slog.Debug("backend call ok",
		slog.String("model", actualModel),
		slog.Int("total_tokens", usage.TotalTokens),
		slog.Duration("elapsed", time.Since(start)))

	return domain.ModelResponse{Content: content, Model: actualModel, Usage: usage}, nil
}

// classifyStatus maps provider HTTP failures onto domain sentinels. Quota,
// rate limit, and gateway statuses are transient across the fallback chain;
// everything else in the 4xx range is the caller's bug and aborts.
func (c *Client) classifyStatus(model string, resp *http.Response, body []byte) error {
	snippet := string(body)
	if len(snippet) > 512 {
		snippet = snippet[:512]
	}
	status := resp.StatusCode

	var sentinel error
	var outcome string
	switch {
	case status == http.StatusNotFound:
		sentinel, outcome = domain.ErrModelNotFound, "model_not_found"
	case status == http.StatusPaymentRequired || strings.Contains(strings.ToLower(snippet), "quota"):
		sentinel, outcome = domain.ErrQuotaExhausted, "quota_exhausted"
	case status == http.StatusTooManyRequests:
		sentinel, outcome = domain.ErrRateLimited, "rate_limited"
	case status == http.StatusServiceUnavailable:
		sentinel, outcome = domain.ErrProviderUnavailable, "provider_unavailable"
	case status == http.StatusBadGateway || status == http.StatusGatewayTimeout:
		sentinel, outcome = domain.ErrTransientGateway, "gateway_error"
	case status >= 400 && status < 500:
		sentinel, outcome = domain.ErrInvalidArgument, "client_error"
	default:
		sentinel, outcome = domain.ErrTransientGateway, "server_error"
	}
	observability.AIRequestsTotal.WithLabelValues(model, outcome).Inc()

	slog.Warn("backend non-2xx",
		slog.String("model", model),
		slog.Int("status", status),
		slog.String("outcome", outcome),
		slog.String("x_request_id", resp.Header.Get("X-Request-Id")),
		slog.String("body", snippet))
	return fmt.Errorf("%w: status %d", sentinel, status)
}
