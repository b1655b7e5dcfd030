// Package resolver grounds semantic element names on the live page through
// the page-understanding service. The service is opaque, rate-limited, and
// best-effort: a failed resolution is an empty result plus an error the
// submission loop records, never a crash.
package resolver

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

// Resolver resolves a canonical grounding query ("{ name1, name2 }") into a
// name-to-element table.
type Resolver interface {
	Resolve(ctx context.Context, query string) (map[string]types.Element, error)
}

// HTTPResolver calls an AgentQL-style query-elements endpoint. Every call
// passes through the shared sliding-window limiter first.
type HTTPResolver struct {
	cfg     config.ResolverConfig
	client  *http.Client
	limiter *SlidingWindowLimiter
	logger  *zap.Logger
}

// NewHTTPResolver creates a resolver with its mandatory rate limiter.
func NewHTTPResolver(cfg config.ResolverConfig, limiter *SlidingWindowLimiter, logger *zap.Logger) *HTTPResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limiter == nil {
		limiter = NewSlidingWindowLimiter(cfg.RateLimit, cfg.RateWindow, nil)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPResolver{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		logger:  logger.With(zap.String("component", "resolver")),
	}
}

type queryRequest struct {
	Query string `json:"query"`
}

type queryResponse struct {
	Elements map[string]struct {
		Selector string `json:"selector"`
	} `json:"elements"`
	Error string `json:"error,omitempty"`
}

// Resolve sends the grounding query and returns the element table. Repeating
// an identical query against an unchanged page yields equivalent results.
func (r *HTTPResolver) Resolve(ctx context.Context, query string) (map[string]types.Element, error) {
	if strings.TrimSpace(query) == "" {
		return map[string]types.Element{}, nil
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return nil, types.NewError(types.ErrRateLimited, "rate limit wait interrupted").WithCause(err)
	}

	body, err := json.Marshal(queryRequest{Query: query})
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	endpoint := strings.TrimRight(r.cfg.Endpoint, "/") + "/v1/query-elements"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", r.cfg.APIKey)

	r.logger.Info("resolving elements", zap.String("query", query))

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "element resolution call failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, types.Errorf(types.ErrUpstreamError,
			"element resolution failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "decode resolution response").WithCause(err)
	}
	if parsed.Error != "" {
		return nil, types.Errorf(types.ErrUpstreamError, "element resolution failed: %s", parsed.Error)
	}

	table := make(map[string]types.Element, len(parsed.Elements))
	for name, el := range parsed.Elements {
		table[name] = types.Element{Name: name, Selector: el.Selector}
	}

	r.logger.Debug("elements resolved", zap.Int("count", len(table)))
	return table, nil
}
