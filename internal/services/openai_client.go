package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"codebot/internal/config"
	"codebot/internal/observability"
	contextutils "codebot/internal/utils"
)

// TextGenerator is the opaque text generation capability the orchestrator
// calls. Implementations report failures through the closed error taxonomy:
// rate limited, unavailable, or malformed.
type TextGenerator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// OpenAIRequest represents a request to the OpenAI-compatible API
type OpenAIRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Message represents a chat message in the API request
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenAIResponse represents a response from the OpenAI-compatible API
type OpenAIResponse struct {
	Choices []Choice  `json:"choices"`
	Error   *APIError `json:"error,omitempty"`
}

// Choice represents a choice in the API response
type Choice struct {
	Message Message `json:"message"`
}

// APIError represents an error response from the API
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// OpenAIClient talks to the active provider's OpenAI-compatible endpoint
type OpenAIClient struct {
	httpClient  *http.Client
	provider    *config.ProviderConfig
	temperature float64
	logger      *observability.Logger
}

// NewOpenAIClient creates a client for the active provider. A missing URL or
// credential is a configuration error, surfaced here so the caller can
// disable the AI capability before any request is accepted.
func NewOpenAIClient(cfg *config.Config, logger *observability.Logger) (result0 *OpenAIClient, err error) {
	if err = cfg.ValidateAI(); err != nil {
		return nil, err
	}
	provider, _ := cfg.ActiveProvider()

	// Client timeout sits just under the per-call deadline so context
	// cancellation wins the race
	httpClient := &http.Client{
		Timeout: config.AIRequestTimeout - 5*time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanOptions(trace.WithSpanKind(trace.SpanKindClient)),
		),
	}

	temperature := cfg.AI.Temperature
	if temperature == 0 {
		temperature = 0.7
	}

	return &OpenAIClient{
		httpClient:  httpClient,
		provider:    provider,
		temperature: temperature,
		logger:      logger,
	}, nil
}

// maxTokensForModel returns the configured token cap for a model, zero when
// unset
func (c *OpenAIClient) maxTokensForModel(model string) int {
	for _, m := range c.provider.Models {
		if m.Code == model {
			return m.MaxTokens
		}
	}
	return 0
}

// Generate sends a prompt to the provider and returns the raw completion
// text
func (c *OpenAIClient) Generate(ctx context.Context, model, prompt string) (result0 string, err error) {
	_, span := observability.TraceAIFunction(ctx, "generate",
		attribute.String("ai.provider", c.provider.Code),
		attribute.String("ai.model", model),
		attribute.Int("prompt.length", len(prompt)),
	)
	defer observability.FinishSpan(span, &err)

	if model == "" {
		span.SetAttributes(attribute.String("call.result", "empty_model"))
		return "", contextutils.WrapError(contextutils.ErrAIConfigInvalid, "model is required")
	}
	if prompt == "" {
		span.SetAttributes(attribute.String("call.result", "empty_prompt"))
		return "", contextutils.WrapError(contextutils.ErrAIConfigInvalid, "prompt cannot be empty")
	}

	reqBody := OpenAIRequest{
		Model:       model,
		Messages:    []Message{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokensForModel(model),
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		span.SetAttributes(attribute.String("call.result", "marshal_failed"))
		return "", contextutils.WrapError(err, "failed to marshal request body")
	}

	url := c.provider.URL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		span.SetAttributes(attribute.String("call.result", "request_creation_failed"))
		return "", contextutils.WrapError(err, "failed to create HTTP request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "codebot/1.0")
	req.Header.Set("Authorization", "Bearer "+c.provider.APIKey)

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)

	if err != nil {
		c.logger.Error(ctx, "AI HTTP request failed", err, map[string]interface{}{
			"model":    model,
			"duration": duration.String(),
		})
		span.SetAttributes(attribute.String("call.result", "http_request_failed"), attribute.String("duration", duration.String()))
		return "", contextutils.WrapErrorf(contextutils.ErrAIUnavailable, "HTTP request failed after %v: %v", duration, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn(ctx, "Failed to close response body", map[string]interface{}{
				"error": closeErr.Error(),
			})
		}
	}()

	c.logger.Debug(ctx, "AI HTTP request completed", map[string]interface{}{
		"model":       model,
		"duration":    duration.String(),
		"status_code": resp.StatusCode,
	})

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.SetAttributes(attribute.String("call.result", "body_read_failed"))
		return "", contextutils.WrapErrorf(contextutils.ErrAIUnavailable, "failed to read response body: %v", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		span.SetAttributes(attribute.String("call.result", "rate_limited"))
		return "", contextutils.WrapErrorf(contextutils.ErrAIRateLimited, "provider rate limited request to %s", url)
	case resp.StatusCode != http.StatusOK:
		span.SetAttributes(attribute.String("call.result", "http_error"), attribute.Int("status_code", resp.StatusCode))
		return "", contextutils.WrapErrorf(contextutils.ErrAIUnavailable, "API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var openAIResp OpenAIResponse
	if err = json.Unmarshal(body, &openAIResp); err != nil {
		span.SetAttributes(attribute.String("call.result", "json_unmarshal_failed"))
		return "", contextutils.WrapErrorf(contextutils.ErrAIResponseMalformed, "failed to parse provider response envelope: %v", err)
	}

	if openAIResp.Error != nil {
		span.SetAttributes(attribute.String("call.result", "api_error"), attribute.String("error_type", openAIResp.Error.Type))
		return "", contextutils.WrapErrorf(contextutils.ErrAIUnavailable, "provider error: %s", openAIResp.Error.Message)
	}

	if len(openAIResp.Choices) == 0 {
		span.SetAttributes(attribute.String("call.result", "no_choices"))
		return "", contextutils.WrapError(contextutils.ErrAIResponseMalformed, "provider returned no choices")
	}

	content := openAIResp.Choices[0].Message.Content
	if content == "" {
		span.SetAttributes(attribute.String("call.result", "empty_content"))
		return "", contextutils.WrapError(contextutils.ErrAIResponseMalformed, "provider returned empty content")
	}

	span.SetAttributes(attribute.String("call.result", "success"), attribute.Int("content_length", len(content)))
	return content, nil
}
