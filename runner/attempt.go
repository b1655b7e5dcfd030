// Package runner drives submission jobs: for each pending attempt it runs
// the bounded screenshot -> decision -> grounding -> action loop, persists a
// per-step audit trail, and settles job and attempt state machines.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/submitflow/submitflow/browser"
	"github.com/submitflow/submitflow/events"
	"github.com/submitflow/submitflow/internal/metrics"
	"github.com/submitflow/submitflow/llm"
	"github.com/submitflow/submitflow/resolver"
	"github.com/submitflow/submitflow/store"
	"github.com/submitflow/submitflow/types"
)

// PageSession is the slice of a browser session the attempt loop needs.
// *browser.Session satisfies it.
type PageSession interface {
	Navigate(ctx context.Context, url string) error
	Settle(ctx context.Context)
	Capture(ctx context.Context, label string) (*browser.Screenshot, error)
}

// Applier executes one normalized action batch against grounded elements.
// *browser.Executor satisfies it.
type Applier interface {
	Apply(ctx context.Context, table map[string]types.Element, actions []types.Action) (bool, error)
}

// CredentialsProvider supplies directory login credentials by key.
type CredentialsProvider interface {
	CredentialsFor(key string) (types.Credentials, bool)
}

// StaticCredentials is a fixed credential table.
type StaticCredentials map[string]types.Credentials

func (s StaticCredentials) CredentialsFor(key string) (types.Credentials, bool) {
	c, ok := s[key]
	return c, ok
}

// AttemptRunner executes a single directory-submission attempt to a terminal
// status. One runner instance is shared across attempts; per-attempt state
// (history, step counter) lives in Run.
type AttemptRunner struct {
	store       store.Store
	decider     llm.Decider
	resolver    resolver.Resolver
	credentials CredentialsProvider

	maxSteps      int
	historyBudget int

	bus     events.Bus
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewAttemptRunner wires an AttemptRunner. bus and collector may be nil.
func NewAttemptRunner(
	st store.Store,
	decider llm.Decider,
	res resolver.Resolver,
	credentials CredentialsProvider,
	maxSteps, historyBudget int,
	bus events.Bus,
	collector *metrics.Collector,
	logger *zap.Logger,
) *AttemptRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if credentials == nil {
		credentials = StaticCredentials{}
	}
	if bus == nil {
		bus = events.NewMemoryBus()
	}
	return &AttemptRunner{
		store:         st,
		decider:       decider,
		resolver:      res,
		credentials:   credentials,
		maxSteps:      maxSteps,
		historyBudget: historyBudget,
		bus:           bus,
		metrics:       collector,
		logger:        logger.With(zap.String("component", "runner")),
	}
}

// Run executes one attempt to completion. The attempt always ends in a
// terminal status: model-level failures, step-ceiling exhaustion, and even
// panics inside the loop are converted to a FAILED attempt rather than
// propagated. The returned error is reserved for infrastructure failures
// (persistence) where the attempt's state on disk is no longer trustworthy.
func (r *AttemptRunner) Run(
	ctx context.Context,
	session PageSession,
	applier Applier,
	product *types.Product,
	directory *types.Directory,
	attempt *types.Attempt,
) (err error) {
	logger := r.logger.With(
		zap.String("attempt_id", attempt.ID.String()),
		zap.String("directory", directory.Name),
	)

	defer func() {
		if p := recover(); p != nil {
			logger.Error("attempt panicked", zap.Any("panic", p))
			err = r.finish(ctx, attempt, types.AttemptFailed, fmt.Sprintf("internal error: %v", p))
		}
	}()

	now := time.Now().UTC()
	attempt.Status = types.AttemptInProgress
	attempt.StartedAt = &now
	if err := r.store.UpdateAttempt(ctx, attempt); err != nil {
		return err
	}
	r.publishAttempt(ctx, attempt)

	logger.Info("attempt started", zap.String("url", directory.SubmissionURL))
	if err := session.Navigate(ctx, directory.SubmissionURL); err != nil {
		logger.Warn("navigation failed", zap.Error(err))
		return r.finish(ctx, attempt, types.AttemptFailed, fmt.Sprintf("navigation failed: %v", err))
	}

	history := NewHistory(r.historyBudget)
	promptProduct := product.PromptData()
	promptCredentials := r.promptCredentials(directory)

	for step := 1; step <= r.maxSteps; step++ {
		if ctx.Err() != nil {
			return r.finish(ctx, attempt, types.AttemptFailed, "attempt canceled")
		}

		shot, err := session.Capture(ctx, fmt.Sprintf("%s_step%02d", attempt.ID, step))
		if err != nil {
			logger.Warn("screenshot failed", zap.Error(err))
			return r.finish(ctx, attempt, types.AttemptFailed, fmt.Sprintf("screenshot failed: %v", err))
		}

		decideStart := time.Now()
		decision := r.decider.Decide(ctx, llm.DecideRequest{
			Product:          promptProduct,
			Credentials:      promptCredentials,
			History:          history.Entries(),
			ScreenshotBase64: shot.Base64,
		})
		r.metrics.DecisionMade(string(decision.Status), time.Since(decideStart))

		logger.Info("decision",
			zap.Int("step", step),
			zap.String("status", string(decision.Status)),
			zap.String("workflow_state", decision.WorkflowState),
			zap.Int("actions", len(decision.Actions)))

		// The log row is written before any action runs, so a crash
		// mid-execution still leaves the step on record.
		log := &types.ActionLog{
			ID:             uuid.New(),
			AttemptID:      attempt.ID,
			StepNumber:     step,
			ScreenshotPath: shot.Path,
			Thought:        decision.Thought,
			WorkflowState:  decision.WorkflowState,
			RawQuery:       rawQuery(decision),
		}
		log.SetActions(decision.Actions)
		if err := r.store.AppendActionLog(ctx, log); err != nil {
			return err
		}
		r.metrics.StepExecuted()
		r.publishStep(ctx, attempt, step, decision.Thought)

		switch decision.Status {
		case types.DecisionDone:
			r.backfill(ctx, log, true, "")
			return r.finish(ctx, attempt, types.AttemptSubmitted, "")

		case types.DecisionFailed:
			// The model may recover on a later step; keep looping until
			// the ceiling.
			r.backfill(ctx, log, false, decision.Thought)
			history.Append(types.HistoryEntry{
				Step:    step,
				Thought: decision.Thought,
				Result:  "model reported failure",
			})
			session.Settle(ctx)

		default: // CONTINUE
			result, ok := r.executeStep(ctx, session, applier, decision, log, logger)
			if !ok {
				return r.finish(ctx, attempt, types.AttemptFailed, result)
			}
			history.Append(types.HistoryEntry{
				Step:    step,
				Thought: decision.Thought,
				Actions: decision.Actions,
				Result:  result,
			})
		}
	}

	return r.finish(ctx, attempt, types.AttemptFailed,
		fmt.Sprintf("Failed after %d steps", r.maxSteps))
}

// executeStep grounds and applies one CONTINUE decision. The returned bool is
// false only for hard failures that must end the attempt; the string is the
// history/log result text, or the failure message when ok is false.
func (r *AttemptRunner) executeStep(
	ctx context.Context,
	session PageSession,
	applier Applier,
	decision *types.Decision,
	log *types.ActionLog,
	logger *zap.Logger,
) (string, bool) {
	// CONTINUE with nothing to do is an explicit wait for the page.
	if decision.Query == "" || len(decision.Actions) == 0 {
		r.backfill(ctx, log, true, "")
		session.Settle(ctx)
		return "waited for page", true
	}

	waitStart := time.Now()
	table, err := r.resolver.Resolve(ctx, decision.Query)
	r.metrics.ResolverCalled(time.Since(waitStart))
	if err != nil {
		logger.Warn("element grounding failed", zap.Error(err))
		r.backfill(ctx, log, false, err.Error())
		return fmt.Sprintf("element grounding failed: %v", err), true
	}

	ok, err := applier.Apply(ctx, table, decision.Actions)
	if err != nil {
		r.backfill(ctx, log, false, err.Error())
		if ctx.Err() != nil {
			return "attempt canceled", false
		}
		// Hard execution failures (a missing upload file) are not
		// recoverable by another model round-trip.
		return err.Error(), false
	}

	r.backfill(ctx, log, ok, "")
	session.Settle(ctx)
	return fmt.Sprintf("executed %d action(s)", len(decision.Actions)), true
}

// backfill records the execution outcome on the already-persisted log row.
func (r *AttemptRunner) backfill(ctx context.Context, log *types.ActionLog, success bool, errMsg string) {
	log.Success = success
	log.Error = errMsg
	if err := r.store.UpdateActionLog(ctx, log); err != nil {
		r.logger.Warn("action log backfill failed", zap.Error(err))
	}
}

// finish drives the attempt to a terminal status.
func (r *AttemptRunner) finish(ctx context.Context, attempt *types.Attempt, status types.AttemptStatus, errMsg string) error {
	now := time.Now().UTC()
	attempt.Status = status
	attempt.CompletedAt = &now
	attempt.ErrorMessage = errMsg
	if err := r.store.UpdateAttempt(ctx, attempt); err != nil {
		return err
	}
	r.metrics.AttemptFinished(string(status))
	r.publishAttempt(ctx, attempt)
	r.logger.Info("attempt finished",
		zap.String("attempt_id", attempt.ID.String()),
		zap.String("status", string(status)),
		zap.String("error", errMsg))
	return nil
}

func (r *AttemptRunner) promptCredentials(directory *types.Directory) map[string]any {
	if !directory.RequiresLogin || directory.CredentialsKey == "" {
		return nil
	}
	creds, ok := r.credentials.CredentialsFor(directory.CredentialsKey)
	if !ok {
		r.logger.Warn("no credentials for directory",
			zap.String("directory", directory.Name),
			zap.String("key", directory.CredentialsKey))
		return nil
	}
	data := map[string]any{}
	if creds.Username != "" {
		data["username"] = creds.Username
	}
	if creds.Email != "" {
		data["email"] = creds.Email
	}
	if creds.Password != "" {
		data["password"] = creds.Password
	}
	return data
}

func (r *AttemptRunner) publishAttempt(ctx context.Context, attempt *types.Attempt) {
	r.bus.Publish(ctx, events.Event{
		Kind:      events.KindAttemptStatus,
		JobID:     attempt.JobID,
		AttemptID: attempt.ID,
		Status:    string(attempt.Status),
	})
}

func (r *AttemptRunner) publishStep(ctx context.Context, attempt *types.Attempt, step int, thought string) {
	r.bus.Publish(ctx, events.Event{
		Kind:      events.KindStep,
		JobID:     attempt.JobID,
		AttemptID: attempt.ID,
		Step:      step,
		Thought:   thought,
	})
}

// rawQuery prefers the model's original grounding payload for the audit log
// and falls back to the canonical form.
func rawQuery(d *types.Decision) string {
	if len(d.RawQuery) > 0 {
		return string(d.RawQuery)
	}
	return d.Query
}
