// Package llm talks to the OpenAI-compatible vision model that drives the
// submission loop: it renders the prompt, sends the screenshot, and parses
// the model's reply into a Decision.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/submitflow/submitflow/config"
	"github.com/submitflow/submitflow/types"
)

// Decider produces the next decision from the current page screenshot.
type Decider interface {
	Decide(ctx context.Context, req DecideRequest) *types.Decision
}

// DecideRequest carries everything one decision call needs.
type DecideRequest struct {
	Product          map[string]any
	Credentials      map[string]any
	History          []types.HistoryEntry
	ScreenshotBase64 string
}

// Engine calls an OpenAI-chat-completions compatible endpoint with a
// vision-capable model.
type Engine struct {
	cfg    config.LLMConfig
	client *http.Client
	logger *zap.Logger
}

// NewEngine builds an engine from config. The HTTP client timeout doubles as
// the per-call ceiling when the caller passes no deadline.
func NewEngine(cfg config.LLMConfig, logger *zap.Logger) *Engine {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Engine{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger.With(zap.String("component", "llm")),
	}
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Decide asks the model for the next step. It never returns an error: any
// transport, API, or parse failure is folded into a synthesized FAILED
// decision so the attempt loop can record it and proceed.
func (e *Engine) Decide(ctx context.Context, req DecideRequest) *types.Decision {
	content, err := e.complete(ctx, req)
	if err != nil {
		e.logger.Warn("model call failed", zap.Error(err))
		return FailedDecision(fmt.Sprintf("model call failed: %v", err))
	}
	decision := ParseDecision(content)
	e.logger.Debug("decision",
		zap.String("status", string(decision.Status)),
		zap.String("workflow_state", decision.WorkflowState),
		zap.Int("actions", len(decision.Actions)))
	return decision
}

func (e *Engine) complete(ctx context.Context, req DecideRequest) (string, error) {
	history := req.History
	if history == nil {
		history = []types.HistoryEntry{}
	}
	prompt, err := renderPrompt(req.Product, req.Credentials, history)
	if err != nil {
		return "", err
	}

	parts := []contentPart{{Type: "text", Text: prompt}}
	if req.ScreenshotBase64 != "" {
		parts = append(parts, contentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: "data:image/png;base64," + req.ScreenshotBase64},
		})
	}

	body, err := json.Marshal(chatRequest{
		Model:     e.cfg.Model,
		Messages:  []chatMessage{{Role: "user", Content: parts}},
		MaxTokens: e.cfg.MaxTokens,
	})
	if err != nil {
		return "", err
	}

	url := strings.TrimRight(e.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return "", types.NewError(types.ErrUpstreamError, "model request failed").WithCause(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", types.Errorf(types.ErrUpstreamError, "model endpoint returned %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", types.NewError(types.ErrUpstreamError, "malformed model response").WithCause(err)
	}
	if parsed.Error != nil {
		return "", types.Errorf(types.ErrUpstreamError, "model error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", types.NewError(types.ErrUpstreamError, "model response contained no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
