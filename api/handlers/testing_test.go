package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/submitflow/submitflow/config"
	"github.com/submitflow/submitflow/events"
	"github.com/submitflow/submitflow/store"
	"github.com/submitflow/submitflow/types"
)

// fakeController applies lifecycle transitions directly against the store,
// with the same guards the run manager enforces.
type fakeController struct {
	store store.Store
	calls []string
}

func (c *fakeController) transition(ctx context.Context, jobID uuid.UUID, op string,
	allowed func(types.JobStatus) bool, to types.JobStatus) error {
	c.calls = append(c.calls, op+" "+jobID.String())
	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !allowed(job.Status) {
		return types.Errorf(types.ErrInvalidTransition,
			"job %s cannot %s from status %s", jobID, op, job.Status)
	}
	return c.store.SetJobStatus(ctx, jobID, to)
}

func (c *fakeController) Start(ctx context.Context, id uuid.UUID) error {
	return c.transition(ctx, id, "start", types.JobStatus.CanStart, types.JobInProgress)
}

func (c *fakeController) Pause(ctx context.Context, id uuid.UUID) error {
	return c.transition(ctx, id, "pause", types.JobStatus.CanPause, types.JobPaused)
}

func (c *fakeController) Resume(ctx context.Context, id uuid.UUID) error {
	return c.transition(ctx, id, "resume", types.JobStatus.CanResume, types.JobInProgress)
}

func (c *fakeController) Stop(ctx context.Context, id uuid.UUID) error {
	return c.transition(ctx, id, "stop", types.JobStatus.CanStop, types.JobFailed)
}

type testAPI struct {
	mux        *http.ServeMux
	store      *store.GormStore
	controller *fakeController
	bus        *events.MemoryBus
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	st, err := store.Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	bus := events.NewMemoryBus()
	t.Cleanup(func() { bus.Close() })

	logger := zap.NewNop()
	controller := &fakeController{store: st}
	mux := http.NewServeMux()
	RegisterRoutes(mux,
		NewHealthHandler(st, logger),
		NewProductHandler(st, logger),
		NewDirectoryHandler(st, logger),
		NewJobHandler(st, controller, logger),
		NewEventsHandler(st, bus, logger),
	)
	return &testAPI{mux: mux, store: st, controller: controller, bus: bus}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.mux.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// decodeData unmarshals the envelope's data field into dst.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success, "expected a success envelope, got %s", rec.Body.String())
	require.NoError(t, json.Unmarshal(resp.Data, dst))
}

func (a *testAPI) seedProduct(t *testing.T) *types.Product {
	t.Helper()
	p := &types.Product{Name: "SubmitFlow", WebsiteURL: "https://submitflow.dev"}
	require.NoError(t, a.store.CreateProduct(context.Background(), p))
	return p
}

func (a *testAPI) seedDirectory(t *testing.T, name string) *types.Directory {
	t.Helper()
	d := &types.Directory{Name: name, SubmissionURL: "https://" + name + ".example.com/submit"}
	require.NoError(t, a.store.CreateDirectory(context.Background(), d))
	return d
}

func (a *testAPI) seedJob(t *testing.T, dirs int) *types.Job {
	t.Helper()
	product := a.seedProduct(t)
	ids := make([]uuid.UUID, dirs)
	for i := range ids {
		ids[i] = a.seedDirectory(t, "dir-"+string(rune('a'+i))).ID
	}
	job := &types.Job{ProductID: product.ID}
	require.NoError(t, a.store.CreateJob(context.Background(), job, ids))
	return job
}
