// Package vision calls an OpenAI-compatible Responses API to analyze one
// class photo at a time.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"classlog/internal/verification/metrics"
	"classlog/internal/verification/models"
	pstrings "classlog/pkg/platform/strings"
)

const (
	defaultBaseURL = "https://api.openai.com"
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 30 * time.Second
	responsesPath  = "/v1/responses"
	maxBodyBytes   = 4 << 20
)

// Config configures the client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client analyzes photos. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
	timeout    time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(cl *Client) {
		cl.metrics = m
	}
}

// New builds a client. It returns ErrNotConfigured when cfg has no API key.
func New(cfg Config, opts ...Option) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	c := &Client{
		httpClient: &http.Client{},
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(orDefault(cfg.BaseURL, defaultBaseURL), "/"),
		model:      orDefault(cfg.Model, defaultModel),
		timeout:    cfg.Timeout,
		tracer:     otel.Tracer("classlog/verification/vision"),
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c, nil
}

type inputMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type responsesRequest struct {
	Model string         `json:"model"`
	Input []inputMessage `json:"input"`
	Text  struct {
		Format map[string]any `json:"format,omitempty"`
	} `json:"text"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type    string `json:"type"`
			Text    string `json:"text,omitempty"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
}

// Analyze sends one photo plus contextLabel to the service. Transport and
// status failures return an *AnalysisError; an unreadable answer returns a
// degraded uncertain result and no error. Calls are never retried.
func (c *Client) Analyze(ctx context.Context, photoURL, contextLabel string) (models.PhotoAnalysisResult, error) {
	ctx, span := c.tracer.Start(ctx, "vision.Analyze", trace.WithAttributes(
		attribute.String("photo.url", photoURL),
		attribute.String("vision.model", c.model),
	))
	defer span.End()

	start := time.Now()
	res, outcome, err := c.analyze(ctx, photoURL, contextLabel)
	c.metrics.ObserveVisionRequest(outcome, time.Since(start))
	span.SetAttributes(attribute.String("vision.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		c.logger.WarnContext(ctx, "photo analysis failed",
			"photo_url", photoURL,
			"outcome", outcome,
			"error", err,
		)
		return models.PhotoAnalysisResult{}, err
	}
	return res, nil
}

func (c *Client) analyze(ctx context.Context, photoURL, contextLabel string) (models.PhotoAnalysisResult, string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.doOnce(callCtx, c.buildRequest(photoURL, contextLabel))
	if err != nil {
		err = classify(ctx, callCtx, err)
		return models.PhotoAnalysisResult{}, string(CategoryOf(err)), err
	}

	var resp responsesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.logger.WarnContext(ctx, "vision response envelope unreadable",
			"photo_url", photoURL,
			"error", err,
		)
		return degraded(string(raw)), "degraded", nil
	}

	text, refusal := extractOutputText(resp)
	if strings.TrimSpace(text) == "" && refusal != "" {
		return degraded("model refused: " + refusal), "degraded", nil
	}
	result, ok := parseAnalysis(text)
	if !ok {
		c.logger.WarnContext(ctx, "vision response not in expected shape",
			"photo_url", photoURL,
			"excerpt", pstrings.Truncate(text, rawExcerptRunes),
		)
		return result, "degraded", nil
	}
	return result, "ok", nil
}

func (c *Client) buildRequest(photoURL, contextLabel string) responsesRequest {
	req := responsesRequest{
		Model: c.model,
		Input: []inputMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: []map[string]any{
				{"type": "input_text", "text": fmt.Sprintf(userPromptTemplate, contextLabel)},
				{"type": "input_image", "image_url": photoURL},
			}},
		},
	}
	req.Text.Format = map[string]any{
		"type":   "json_schema",
		"name":   schemaName,
		"schema": responseSchema,
		"strict": true,
	}
	return req
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

func (c *Client) doOnce(ctx context.Context, body any) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+responsesPath, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &httpStatusError{StatusCode: resp.StatusCode, Body: pstrings.Truncate(string(raw), rawExcerptRunes)}
	}
	return raw, nil
}

// classify maps a transport error onto the analysis taxonomy. parent is the
// caller's context; call carries the per-call deadline.
func classify(parent, call context.Context, err error) error {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		category := ErrorBadRequest
		if statusErr.StatusCode == http.StatusTooManyRequests ||
			statusErr.StatusCode == http.StatusRequestTimeout ||
			statusErr.StatusCode >= 500 {
			category = ErrorUpstreamStatus
		}
		return newAnalysisError(category, statusErr.StatusCode, statusErr.Body, nil)
	}
	if parent.Err() != nil {
		if errors.Is(parent.Err(), context.DeadlineExceeded) {
			return newAnalysisError(ErrorTimeout, 0, "caller deadline exceeded", parent.Err())
		}
		return newAnalysisError(ErrorCanceled, 0, "caller canceled", parent.Err())
	}
	if errors.Is(call.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return newAnalysisError(ErrorTimeout, 0, "analysis call timed out", err)
	}
	return newAnalysisError(ErrorUnreachable, 0, "request failed", err)
}

func extractOutputText(resp responsesResponse) (string, string) {
	var out, refusal strings.Builder
	for _, item := range resp.Output {
		if item.Type != "message" || item.Role != "assistant" {
			continue
		}
		for _, c := range item.Content {
			switch {
			case c.Type == "output_text" && c.Text != "":
				out.WriteString(c.Text)
			case c.Type == "refusal" && c.Refusal != "":
				refusal.WriteString(c.Refusal)
			}
		}
	}
	return out.String(), refusal.String()
}

func orDefault(v, def string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return def
}
