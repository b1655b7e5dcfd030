package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/submitflow/submitflow/config"
	"github.com/submitflow/submitflow/types"
)

func newTestEngine(t *testing.T, handler http.HandlerFunc) *Engine {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewEngine(config.LLMConfig{
		APIKey:    "test-key",
		BaseURL:   srv.URL,
		Model:     "test-model",
		MaxTokens: 512,
		Timeout:   2 * time.Second,
	}, zap.NewNop())
}

func chatReply(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return string(b)
}

func TestDecideParsesFencedModelOutput(t *testing.T) {
	var captured chatRequest
	e := newTestEngine(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/chat/completions", req.URL.Path)
		assert.Equal(t, "Bearer test-key", req.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(req.Body).Decode(&captured))
		w.Write([]byte(chatReply(fencedResponse)))
	})

	d := e.Decide(context.Background(), DecideRequest{
		Product:          map[string]any{"name": "SubmitFlow"},
		ScreenshotBase64: "aGVsbG8=",
	})

	assert.Equal(t, types.DecisionContinue, d.Status)
	require.Len(t, d.Actions, 2)

	// request carries the prompt text and the screenshot as a data URL
	assert.Equal(t, "test-model", captured.Model)
	assert.Equal(t, 512, captured.MaxTokens)
	require.Len(t, captured.Messages, 1)
	require.Len(t, captured.Messages[0].Content, 2)
	assert.Contains(t, captured.Messages[0].Content[0].Text, "SubmitFlow")
	require.NotNil(t, captured.Messages[0].Content[1].ImageURL)
	assert.True(t, strings.HasPrefix(captured.Messages[0].Content[1].ImageURL.URL, "data:image/png;base64,"))
}

func TestDecideOmitsImagePartWithoutScreenshot(t *testing.T) {
	var captured chatRequest
	e := newTestEngine(t, func(w http.ResponseWriter, req *http.Request) {
		require.NoError(t, json.NewDecoder(req.Body).Decode(&captured))
		w.Write([]byte(chatReply(`{"thought":"t","status":"DONE"}`)))
	})

	d := e.Decide(context.Background(), DecideRequest{Product: map[string]any{"name": "x"}})
	assert.Equal(t, types.DecisionDone, d.Status)
	require.Len(t, captured.Messages[0].Content, 1)
	assert.Equal(t, "text", captured.Messages[0].Content[0].Type)
}

func TestDecideTransportFailureYieldsFailedDecision(t *testing.T) {
	e := NewEngine(config.LLMConfig{
		BaseURL: "http://127.0.0.1:1", // nothing listens here
		Model:   "test-model",
		Timeout: time.Second,
	}, zap.NewNop())

	d := e.Decide(context.Background(), DecideRequest{Product: map[string]any{}})
	assert.Equal(t, types.DecisionFailed, d.Status)
	assert.Contains(t, d.Thought, "model call failed")
}

func TestDecideNon200YieldsFailedDecision(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, `{"error":{"message":"rate limit"}}`, http.StatusTooManyRequests)
	})

	d := e.Decide(context.Background(), DecideRequest{Product: map[string]any{}})
	assert.Equal(t, types.DecisionFailed, d.Status)
}

func TestDecideAPIErrorBodyYieldsFailedDecision(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"error":{"message":"model overloaded"}}`))
	})

	d := e.Decide(context.Background(), DecideRequest{Product: map[string]any{}})
	assert.Equal(t, types.DecisionFailed, d.Status)
	assert.Contains(t, d.Thought, "model overloaded")
}

func TestDecideEmptyChoicesYieldsFailedDecision(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	})

	d := e.Decide(context.Background(), DecideRequest{Product: map[string]any{}})
	assert.Equal(t, types.DecisionFailed, d.Status)
}

func TestDecideGarbageContentYieldsFailedDecision(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(chatReply("no JSON today")))
	})

	d := e.Decide(context.Background(), DecideRequest{Product: map[string]any{}})
	assert.Equal(t, types.DecisionFailed, d.Status)
}

func TestRenderPromptIncludesHistory(t *testing.T) {
	out, err := renderPrompt(
		map[string]any{"name": "SubmitFlow", "website": "https://submitflow.dev"},
		map[string]any{"username": "agent"},
		[]types.HistoryEntry{{Step: 1, Thought: "filled the email field"}},
	)
	require.NoError(t, err)
	assert.Contains(t, out, "https://submitflow.dev")
	assert.Contains(t, out, "filled the email field")
	assert.Contains(t, out, `"username": "agent"`)
}
