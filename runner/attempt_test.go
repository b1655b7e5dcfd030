package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/submitflow/submitflow/llm"
	"github.com/submitflow/submitflow/types"
)

func runSingleAttempt(t *testing.T, decider llm.Decider, res *fakeResolver, applier *fakeApplier) (*types.Attempt, *fakeSession, *AttemptRunner) {
	t.Helper()
	st := newRunnerStore(t)
	job, product, dirs := seedJob(t, st, 1)

	attempts, err := st.PendingAttempts(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	attempt := &attempts[0]

	r := newTestAttemptRunner(st, decider, res)
	session := &fakeSession{}
	require.NoError(t, r.Run(context.Background(), session, applier, product, &dirs[0], attempt))
	return attempt, session, r
}

func TestAttemptDoneOnFirstStep(t *testing.T) {
	decider := &scriptDecider{decisions: []*types.Decision{doneDecision()}}
	res := &fakeResolver{}
	applier := &fakeApplier{}

	attempt, session, r := runSingleAttempt(t, decider, res, applier)

	assert.Equal(t, types.AttemptSubmitted, attempt.Status)
	assert.NotNil(t, attempt.StartedAt)
	assert.NotNil(t, attempt.CompletedAt)
	assert.Empty(t, attempt.ErrorMessage)
	assert.Equal(t, 1, session.captures)
	assert.Empty(t, res.queries)
	assert.Empty(t, applier.batches)

	logs, err := r.store.LogsForAttempt(context.Background(), attempt.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Success)
	assert.Equal(t, 1, logs[0].StepNumber)
	assert.NotEmpty(t, logs[0].ScreenshotPath)
}

func TestAttemptContinueThenDone(t *testing.T) {
	fill := types.Action{Target: "email_input", Kind: types.ActionFill, Value: "a@b.c"}
	click := types.Action{Target: "submit_btn", Kind: types.ActionClick}
	decider := &scriptDecider{decisions: []*types.Decision{
		continueDecision("fill the form", "{ email_input, submit_btn }", fill, click),
		continueDecision("confirm", "{ confirm_btn }", types.Action{Target: "confirm_btn", Kind: types.ActionClick}),
		doneDecision(),
	}}
	res := &fakeResolver{}
	applier := &fakeApplier{}

	attempt, _, r := runSingleAttempt(t, decider, res, applier)

	assert.Equal(t, types.AttemptSubmitted, attempt.Status)
	assert.Equal(t, []string{"{ email_input, submit_btn }", "{ confirm_btn }"}, res.queries)
	require.Len(t, applier.batches, 2)
	assert.Equal(t, []types.Action{fill, click}, applier.batches[0])

	logs, err := r.store.LogsForAttempt(context.Background(), attempt.ID)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	for i, log := range logs {
		assert.Equal(t, i+1, log.StepNumber)
		assert.True(t, log.Success)
	}
	// history fed to the final call covers both executed steps
	require.Len(t, decider.lastReq.History, 2)
	assert.Equal(t, 1, decider.lastReq.History[0].Step)
	assert.Equal(t, "executed 2 action(s)", decider.lastReq.History[0].Result)
}

func TestAttemptFailsAfterStepCeiling(t *testing.T) {
	decider := &scriptDecider{decisions: []*types.Decision{failedDecision("hard captcha on page")}}
	res := &fakeResolver{}
	applier := &fakeApplier{}

	attempt, session, r := runSingleAttempt(t, decider, res, applier)

	assert.Equal(t, types.AttemptFailed, attempt.Status)
	assert.Equal(t, "Failed after 15 steps", attempt.ErrorMessage)
	assert.Equal(t, 15, session.captures)

	logs, err := r.store.LogsForAttempt(context.Background(), attempt.ID)
	require.NoError(t, err)
	require.Len(t, logs, 15)
	for _, log := range logs {
		assert.False(t, log.Success)
		assert.Equal(t, "hard captcha on page", log.Error)
	}
}

func TestAttemptModelFailureCanRecover(t *testing.T) {
	decider := &scriptDecider{decisions: []*types.Decision{
		failedDecision("page not readable yet"),
		doneDecision(),
	}}

	attempt, _, r := runSingleAttempt(t, decider, &fakeResolver{}, &fakeApplier{})

	assert.Equal(t, types.AttemptSubmitted, attempt.Status)
	logs, err := r.store.LogsForAttempt(context.Background(), attempt.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.False(t, logs[0].Success)
	assert.True(t, logs[1].Success)
}

func TestAttemptNavigationFailureFailsWithoutSteps(t *testing.T) {
	st := newRunnerStore(t)
	job, product, dirs := seedJob(t, st, 1)
	attempts, err := st.PendingAttempts(context.Background(), job.ID)
	require.NoError(t, err)
	attempt := &attempts[0]

	r := newTestAttemptRunner(st, &scriptDecider{decisions: []*types.Decision{doneDecision()}}, &fakeResolver{})
	session := &fakeSession{navErr: errors.New("dns lookup failed")}
	require.NoError(t, r.Run(context.Background(), session, &fakeApplier{}, product, &dirs[0], attempt))

	assert.Equal(t, types.AttemptFailed, attempt.Status)
	assert.Contains(t, attempt.ErrorMessage, "navigation failed")
	logs, err := st.LogsForAttempt(context.Background(), attempt.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestAttemptContinueWithoutActionsIsAWaitStep(t *testing.T) {
	decider := &scriptDecider{decisions: []*types.Decision{
		continueDecision("page still loading, wait", ""),
		doneDecision(),
	}}
	res := &fakeResolver{}
	applier := &fakeApplier{}

	attempt, _, r := runSingleAttempt(t, decider, res, applier)

	assert.Equal(t, types.AttemptSubmitted, attempt.Status)
	assert.Empty(t, res.queries, "wait steps must not spend a grounding call")
	assert.Empty(t, applier.batches)

	logs, err := r.store.LogsForAttempt(context.Background(), attempt.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.True(t, logs[0].Success)
}

func TestAttemptUploadFailureIsTerminal(t *testing.T) {
	decider := &scriptDecider{decisions: []*types.Decision{
		continueDecision("upload the logo", "{ logo_input }",
			types.Action{Target: "logo_input", Kind: types.ActionUpload, Value: "/missing/logo.png"}),
		doneDecision(),
	}}
	applier := &fakeApplier{err: types.NewError(types.ErrUploadMissing, "upload file not found: /missing/logo.png")}

	attempt, session, r := runSingleAttempt(t, decider, &fakeResolver{}, applier)

	assert.Equal(t, types.AttemptFailed, attempt.Status)
	assert.Contains(t, attempt.ErrorMessage, "upload file not found")
	assert.Equal(t, 1, session.captures, "no further steps after a hard execution failure")

	logs, err := r.store.LogsForAttempt(context.Background(), attempt.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.False(t, logs[0].Success)
	assert.Contains(t, logs[0].Error, "upload file not found")
}

func TestAttemptGroundingFailureContinuesLoop(t *testing.T) {
	res := &fakeResolver{err: types.NewError(types.ErrUpstreamError, "grounding service 500")}
	decider := &scriptDecider{decisions: []*types.Decision{
		continueDecision("click submit", "{ submit_btn }",
			types.Action{Target: "submit_btn", Kind: types.ActionClick}),
		doneDecision(),
	}}
	applier := &fakeApplier{}

	attempt, _, r := runSingleAttempt(t, decider, res, applier)

	assert.Equal(t, types.AttemptSubmitted, attempt.Status)
	assert.Empty(t, applier.batches)

	logs, err := r.store.LogsForAttempt(context.Background(), attempt.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.False(t, logs[0].Success)
	assert.Contains(t, logs[0].Error, "grounding service 500")
	assert.True(t, logs[1].Success)
}

func TestAttemptLogIsWrittenBeforeExecution(t *testing.T) {
	st := newRunnerStore(t)
	job, product, dirs := seedJob(t, st, 1)
	attempts, err := st.PendingAttempts(context.Background(), job.ID)
	require.NoError(t, err)
	attempt := &attempts[0]

	decider := &scriptDecider{decisions: []*types.Decision{
		continueDecision("click", "{ submit_btn }",
			types.Action{Target: "submit_btn", Kind: types.ActionClick}),
		doneDecision(),
	}}
	applier := &fakeApplier{}
	applier.onApply = func(ctx context.Context) {
		logs, err := st.LogsForAttempt(ctx, attempt.ID)
		require.NoError(t, err)
		require.Len(t, logs, 1, "log row must exist before actions run")
		assert.False(t, logs[0].Success, "success is backfilled only after execution")
	}

	r := newTestAttemptRunner(st, decider, &fakeResolver{})
	require.NoError(t, r.Run(context.Background(), &fakeSession{}, applier, product, &dirs[0], attempt))
	assert.Equal(t, types.AttemptSubmitted, attempt.Status)
}

func TestAttemptPanicBecomesFailedStatus(t *testing.T) {
	st := newRunnerStore(t)
	job, product, dirs := seedJob(t, st, 1)
	attempts, err := st.PendingAttempts(context.Background(), job.ID)
	require.NoError(t, err)
	attempt := &attempts[0]

	r := newTestAttemptRunner(st, panicDecider{}, &fakeResolver{})
	require.NoError(t, r.Run(context.Background(), &fakeSession{}, &fakeApplier{}, product, &dirs[0], attempt))

	assert.Equal(t, types.AttemptFailed, attempt.Status)
	assert.Contains(t, attempt.ErrorMessage, "internal error")
}

type panicDecider struct{}

func (panicDecider) Decide(context.Context, llm.DecideRequest) *types.Decision {
	panic("boom")
}

func TestAttemptPassesCredentialsForLoginDirectories(t *testing.T) {
	st := newRunnerStore(t)
	job, product, dirs := seedJob(t, st, 1)
	dirs[0].RequiresLogin = true
	dirs[0].CredentialsKey = "dir-a"
	require.NoError(t, st.UpdateDirectory(context.Background(), &dirs[0]))

	attempts, err := st.PendingAttempts(context.Background(), job.ID)
	require.NoError(t, err)
	attempt := &attempts[0]

	decider := &scriptDecider{decisions: []*types.Decision{doneDecision()}}
	creds := StaticCredentials{"dir-a": {Username: "agent", Password: "hunter2"}}
	r := NewAttemptRunner(st, decider, &fakeResolver{}, creds, 15, 0, nil, nil, zap.NewNop())

	require.NoError(t, r.Run(context.Background(), &fakeSession{}, &fakeApplier{}, product, &dirs[0], attempt))
	assert.Equal(t, map[string]any{"username": "agent", "password": "hunter2"}, decider.lastReq.Credentials)
}
