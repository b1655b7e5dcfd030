package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/submitflow/submitflow/types"
)

// Executor applies one batch of normalized actions against the elements the
// resolver grounded on the live page.
//
// Failure semantics: an unresolved target or an unknown action kind is
// skipped and the batch continues; a missing upload file is a hard failure
// that aborts the remaining actions. The aggregate result is true only when
// no hard failure occurred.
type Executor struct {
	page        Page
	actionDelay time.Duration
	logger      *zap.Logger
}

// NewExecutor creates an Executor over a Page.
func NewExecutor(page Page, actionDelay time.Duration, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		page:        page,
		actionDelay: actionDelay,
		logger:      logger.With(zap.String("component", "executor")),
	}
}

// Apply executes the batch in order. The returned error is non-nil only for
// hard failures and carries the reason recorded on the step's action log.
func (e *Executor) Apply(ctx context.Context, table map[string]types.Element, actions []types.Action) (bool, error) {
	for _, action := range actions {
		element, ok := table[action.Target]
		if !ok {
			e.logger.Warn("target not in resolved element table, skipping",
				zap.String("target", action.Target),
				zap.String("kind", string(action.Kind)))
			continue
		}

		e.logger.Info("executing action",
			zap.String("kind", string(action.Kind)),
			zap.String("target", action.Target))

		switch action.Kind {
		case types.ActionFill:
			if err := e.page.Fill(ctx, element.Selector, stringValue(action.Value)); err != nil {
				e.logger.Warn("fill failed", zap.String("target", action.Target), zap.Error(err))
			}

		case types.ActionClick:
			if err := e.page.Click(ctx, element.Selector); err != nil {
				e.logger.Warn("standard click failed, retrying with force click",
					zap.String("target", action.Target), zap.Error(err))
				if err := e.page.ForceClick(ctx, element.Selector); err != nil {
					e.logger.Warn("force click failed", zap.String("target", action.Target), zap.Error(err))
				}
			}

		case types.ActionPress:
			if err := e.page.Press(ctx, stringValue(action.Value)); err != nil {
				e.logger.Warn("key press failed", zap.Error(err))
			}

		case types.ActionUpload:
			files, err := resolveUploadPaths(action.Value)
			if err != nil {
				e.logger.Error("upload aborted batch", zap.Error(err))
				return false, err
			}
			if err := e.page.Upload(ctx, element.Selector, files); err != nil {
				e.logger.Warn("upload failed", zap.String("target", action.Target), zap.Error(err))
			}

		default:
			e.logger.Warn("unknown action kind, skipping", zap.String("kind", string(action.Kind)))
			continue
		}

		// Let the page react before the next action.
		select {
		case <-time.After(e.actionDelay):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	return true, nil
}

// resolveUploadPaths normalizes the upload value (a single path, a list of
// paths, or an object carrying path/paths) into absolute, existing file
// paths. A missing file fails the whole batch.
func resolveUploadPaths(value any) ([]string, error) {
	var raw []string
	switch v := value.(type) {
	case string:
		raw = []string{v}
	case []string:
		raw = v
	case []any:
		for _, p := range v {
			raw = append(raw, fmt.Sprint(p))
		}
	case map[string]any:
		if p, ok := v["path"]; ok {
			raw = []string{fmt.Sprint(p)}
		} else if ps, ok := v["paths"].([]any); ok {
			for _, p := range ps {
				raw = append(raw, fmt.Sprint(p))
			}
		}
	}

	if len(raw) == 0 {
		return nil, types.NewError(types.ErrUploadMissing, "upload action missing file path(s)")
	}

	resolved := make([]string, 0, len(raw))
	for _, p := range raw {
		abs := p
		if !filepath.IsAbs(abs) {
			var err error
			abs, err = filepath.Abs(p)
			if err != nil {
				return nil, types.Errorf(types.ErrUploadMissing, "resolve upload path %q", p).WithCause(err)
			}
		}
		if _, err := os.Stat(abs); err != nil {
			return nil, types.Errorf(types.ErrUploadMissing, "upload file not found: %s", abs)
		}
		resolved = append(resolved, abs)
	}
	return resolved, nil
}

// stringValue renders an action value for fill/press, which only make sense
// as text.
func stringValue(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
