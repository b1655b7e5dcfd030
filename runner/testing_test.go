package runner

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/submitflow/submitflow/browser"
	"github.com/submitflow/submitflow/config"
	"github.com/submitflow/submitflow/llm"
	"github.com/submitflow/submitflow/store"
	"github.com/submitflow/submitflow/types"
)

// fakeSession satisfies RunSession (and browser.Page) without a browser.
type fakeSession struct {
	mu          sync.Mutex
	startErr    error
	navErr      error
	started     bool
	stopped     bool
	navigations []string
	captures    int
	pageCalls   []string
}

func (s *fakeSession) Start(context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	return nil
}

func (s *fakeSession) Stop() { s.stopped = true }

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.navErr != nil {
		return s.navErr
	}
	s.navigations = append(s.navigations, url)
	return nil
}

func (s *fakeSession) Settle(context.Context) {}

func (s *fakeSession) Capture(_ context.Context, label string) (*browser.Screenshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captures++
	return &browser.Screenshot{
		Data:   []byte("shot"),
		Base64: "c2hvdA==",
		Path:   "/tmp/screenshots/" + label + ".png",
	}, nil
}

func (s *fakeSession) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageCalls = append(s.pageCalls, call)
}

func (s *fakeSession) Fill(_ context.Context, selector, value string) error {
	s.record("fill " + selector + "=" + value)
	return nil
}

func (s *fakeSession) Click(_ context.Context, selector string) error {
	s.record("click " + selector)
	return nil
}

func (s *fakeSession) ForceClick(_ context.Context, selector string) error {
	s.record("forceclick " + selector)
	return nil
}

func (s *fakeSession) Press(_ context.Context, key string) error {
	s.record("press " + key)
	return nil
}

func (s *fakeSession) Upload(_ context.Context, selector string, files []string) error {
	s.record("upload " + selector)
	return nil
}

func (s *fakeSession) lastNavigation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.navigations) == 0 {
		return ""
	}
	return s.navigations[len(s.navigations)-1]
}

// scriptDecider replays a fixed decision sequence; the last decision repeats
// once the script is exhausted.
type scriptDecider struct {
	mu        sync.Mutex
	decisions []*types.Decision
	calls     int
	lastReq   llm.DecideRequest
	onDecide  func(call int)
}

func (d *scriptDecider) Decide(_ context.Context, req llm.DecideRequest) *types.Decision {
	d.mu.Lock()
	d.calls++
	call := d.calls
	d.lastReq = req
	d.mu.Unlock()
	if d.onDecide != nil {
		d.onDecide(call)
	}
	i := call - 1
	if i >= len(d.decisions) {
		i = len(d.decisions) - 1
	}
	return d.decisions[i]
}

// routedDecider scripts decisions per submission URL, so multi-attempt tests
// do not depend on attempt execution order. The last decision of a script
// repeats once exhausted.
type routedDecider struct {
	mu      sync.Mutex
	session *fakeSession
	routes  map[string][]*types.Decision
	counts  map[string]int
}

func newRoutedDecider(session *fakeSession) *routedDecider {
	return &routedDecider{
		session: session,
		routes:  map[string][]*types.Decision{},
		counts:  map[string]int{},
	}
}

func (d *routedDecider) route(url string, decisions ...*types.Decision) {
	d.routes[url] = decisions
}

func (d *routedDecider) Decide(_ context.Context, _ llm.DecideRequest) *types.Decision {
	url := d.session.lastNavigation()
	d.mu.Lock()
	i := d.counts[url]
	d.counts[url]++
	d.mu.Unlock()

	script := d.routes[url]
	if len(script) == 0 {
		return failedDecision("no script for " + url)
	}
	if i >= len(script) {
		i = len(script) - 1
	}
	return script[i]
}

// fakeResolver grounds every name in the canonical query onto a selector
// derived from the name.
type fakeResolver struct {
	mu      sync.Mutex
	queries []string
	err     error
}

func (r *fakeResolver) Resolve(_ context.Context, query string) (map[string]types.Element, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.queries = append(r.queries, query)
	table := map[string]types.Element{}
	inner := strings.TrimSuffix(strings.TrimPrefix(query, "{ "), " }")
	for _, name := range strings.Split(inner, ", ") {
		table[name] = types.Element{Name: name, Selector: "#" + name}
	}
	return table, nil
}

type fakeApplier struct {
	mu      sync.Mutex
	batches [][]types.Action
	err     error
	onApply func(ctx context.Context)
}

func (a *fakeApplier) Apply(ctx context.Context, _ map[string]types.Element, actions []types.Action) (bool, error) {
	a.mu.Lock()
	a.batches = append(a.batches, actions)
	a.mu.Unlock()
	if a.onApply != nil {
		a.onApply(ctx)
	}
	if a.err != nil {
		return false, a.err
	}
	return true, nil
}

func continueDecision(thought, query string, actions ...types.Action) *types.Decision {
	return &types.Decision{
		Thought:       thought,
		Status:        types.DecisionContinue,
		WorkflowState: "FORM",
		Query:         query,
		Actions:       actions,
	}
}

func doneDecision() *types.Decision {
	return &types.Decision{
		Thought:       "confirmation page visible",
		Status:        types.DecisionDone,
		WorkflowState: "CONFIRMATION",
	}
}

func failedDecision(thought string) *types.Decision {
	return &types.Decision{
		Thought:       thought,
		Status:        types.DecisionFailed,
		WorkflowState: "FAILED",
	}
}

func newRunnerStore(t *testing.T) *store.GormStore {
	t.Helper()
	st, err := store.Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// seedJob persists a product, n directories, and a NOT_STARTED job with one
// attempt per directory.
func seedJob(t *testing.T, st store.Store, n int) (*types.Job, *types.Product, []types.Directory) {
	t.Helper()
	ctx := context.Background()

	product := &types.Product{
		ID:         uuid.New(),
		Name:       "SubmitFlow",
		WebsiteURL: "https://submitflow.dev",
		Category:   "developer-tools",
	}
	require.NoError(t, st.CreateProduct(ctx, product))

	dirs := make([]types.Directory, n)
	ids := make([]uuid.UUID, n)
	for i := range dirs {
		dirs[i] = types.Directory{
			ID:            uuid.New(),
			Name:          "directory-" + string(rune('a'+i)),
			SubmissionURL: "https://dir" + string(rune('a'+i)) + ".example.com/submit",
		}
		require.NoError(t, st.CreateDirectory(ctx, &dirs[i]))
		ids[i] = dirs[i].ID
	}

	job := &types.Job{ID: uuid.New(), ProductID: product.ID}
	require.NoError(t, st.CreateJob(ctx, job, ids))
	return job, product, dirs
}

func newTestAttemptRunner(st store.Store, decider llm.Decider, res *fakeResolver) *AttemptRunner {
	return NewAttemptRunner(st, decider, res, nil, 15, 0, nil, nil, zap.NewNop())
}
