package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	cachememory "github.com/SaiNageswarS/NurixLearn/pkg/cache/memory"
	"github.com/SaiNageswarS/NurixLearn/pkg/catalog"
	"github.com/SaiNageswarS/NurixLearn/pkg/coherence"
	"github.com/SaiNageswarS/NurixLearn/pkg/engine"
	"github.com/SaiNageswarS/NurixLearn/pkg/log"
	"github.com/SaiNageswarS/NurixLearn/pkg/mocks"
	"github.com/SaiNageswarS/NurixLearn/pkg/models"
	"github.com/SaiNageswarS/NurixLearn/pkg/oracle"
	"github.com/SaiNageswarS/NurixLearn/pkg/persistence"
	"github.com/SaiNageswarS/NurixLearn/pkg/persistence/memory"
	"github.com/SaiNageswarS/NurixLearn/pkg/services"
	"github.com/SaiNageswarS/NurixLearn/pkg/session"
	"github.com/SaiNageswarS/NurixLearn/pkg/web"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) (*fiber.App, *mocks.MockOracle) {
	t.Helper()

	app, client, _ := setupTestAppWithStore(t)

	return app, client
}

func setupTestAppWithStore(t *testing.T) (*fiber.App, *mocks.MockOracle, persistence.Store) {
	t.Helper()

	store, err := memory.NewPersistence()
	require.NoError(t, err)

	c, err := cachememory.New(0)
	require.NoError(t, err)

	eng, err := engine.New(engine.Options{
		Store:  store,
		Logger: log.Discard(),
		Retry:  engine.RetryPolicy{Attempts: 2, Base: time.Millisecond, Max: 2 * time.Millisecond},
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = eng.Shutdown(ctx)
	})

	tracker := session.NewTracker(store, log.Discard())
	policy := coherence.New(c, coherence.Sources{
		coherence.KindSession:  tracker.Version,
		coherence.KindWorkflow: eng.Version,
	}, time.Minute, log.Discard())

	tracker.OnChange(func(ctx context.Context, socketID string) error {
		return policy.Invalidate(ctx, coherence.SessionOwner(socketID))
	})

	client := &mocks.MockOracle{}

	cat, err := catalog.New(catalog.Config{
		Oracle:      client,
		Tracker:     tracker,
		Invalidator: policy,
		Logger:      log.Discard(),
	})
	require.NoError(t, err)
	require.NoError(t, cat.Register(eng))

	handlers := web.NewAPIHandlers(
		services.NewWorkflows(eng, cat, store, policy, log.Discard()),
		services.NewEvaluation(eng, cat, policy, log.Discard()),
		services.NewSessions(tracker, policy, log.Discard()),
		services.NewHealth(store, c),
	)

	return web.NewApp(handlers, web.AppConfig{}), client, store
}

func do(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader

	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)

		reader = bytes.NewBuffer(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, raw
}

func problemType(t *testing.T, body []byte) string {
	t.Helper()

	var problem map[string]any
	require.NoError(t, json.Unmarshal(body, &problem))

	kind, _ := problem["type"].(string)

	return kind
}

var gradeBody = map[string]any{
	"socket_id":    "S1",
	"question_url": "https://cdn.example.com/q/1.png",
	"solution_url": "https://cdn.example.com/s/1.png",
	"bounding_box": map[string]float64{"minX": 100, "maxX": 300, "minY": 100, "maxY": 200},
}

func TestAPI_RootAndLiveness(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, body := do(t, app, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Nurix evaluation API", string(body))

	resp, body = do(t, app, http.MethodGet, "/livez", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	resp, body = do(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health web.HealthResponse
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health.Status)
}

func TestAPI_DetectError(t *testing.T) {
	t.Parallel()

	app, client := setupTestApp(t)
	client.On("Evaluate", mock.Anything, mock.Anything).Return(&oracle.ScoreResult{
		Score:    92,
		Errors:   []models.ScoreError{},
		Feedback: "Well done",
	}, nil)

	resp, body := do(t, app, http.MethodPost, "/detect-error", gradeBody)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))

	var first map[string]any
	require.NoError(t, json.Unmarshal(body, &first))
	assert.EqualValues(t, 1, first["total_attempts"])
	assert.Equal(t, true, first["solution_complete"])
	assert.EqualValues(t, 150, first["y"])
	assert.Equal(t, map[string]any{"minX": 100.0, "maxX": 300.0, "minY": 100.0, "maxY": 200.0}, first["cumulative_bounding_box"])

	resp, body = do(t, app, http.MethodPost, "/detect-error", gradeBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "HIT", resp.Header.Get("X-Cache"))

	var second map[string]any
	require.NoError(t, json.Unmarshal(body, &second))
	assert.Equal(t, first["job_id"], second["job_id"])

	client.AssertNumberOfCalls(t, "Evaluate", 1)

	resp, body = do(t, app, http.MethodGet, "/sessions/S1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats models.SessionStats
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, int64(1), stats.TotalAttempts)

	resp, _ = do(t, app, http.MethodDelete, "/cache/sessions/S1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = do(t, app, http.MethodPost, "/detect-error", gradeBody)
	assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))

	resp, _ = do(t, app, http.MethodDelete, "/sessions/S1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = do(t, app, http.MethodGet, "/sessions/S1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, services.CodeNotFound, problemType(t, body))
}

func TestAPI_DetectErrorFailures(t *testing.T) {
	t.Parallel()

	app, client := setupTestApp(t)
	client.On("Evaluate", mock.Anything, mock.Anything).Return(nil, oracle.ErrRejected)

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantType   string
	}{
		{name: "malformed json", body: `{"socket_id":`, wantStatus: http.StatusBadRequest, wantType: services.CodeValidation},
		{
			name: "missing socket id",
			body: map[string]any{
				"question_url": "https://a.b/q",
				"solution_url": "https://a.b/s",
				"bounding_box": map[string]float64{"minX": 1, "maxX": 2, "minY": 1, "maxY": 2},
			},
			wantStatus: http.StatusBadRequest,
			wantType:   services.CodeValidation,
		},
		{name: "oracle rejects submission", body: gradeBody, wantStatus: http.StatusBadGateway, wantType: services.CodeWorkflowFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, app, http.MethodPost, "/detect-error", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode, string(body))
			assert.Equal(t, tt.wantType, problemType(t, body))
		})
	}
}

func TestAPI_DetectionWorkflow(t *testing.T) {
	t.Parallel()

	app, client := setupTestApp(t)
	client.On("Evaluate", mock.Anything, mock.Anything).Return(&oracle.ScoreResult{
		Score: 30,
		Errors: []models.ScoreError{
			{Step: "1", ErrorType: "sign_error", Description: "sign flipped", Severity: "critical"},
			{Step: "2", ErrorType: "arithmetic", Description: "bad sum", Severity: "low"},
		},
	}, nil)

	resp, body := do(t, app, http.MethodPost, "/workflows/detections", map[string]any{
		"source":       "worksheet-5",
		"question_url": "https://cdn.example.com/q/5.png",
		"solution_url": "https://cdn.example.com/s/5.png",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))

	var started web.StartWorkflowResponse
	require.NoError(t, json.Unmarshal(body, &started))
	assert.Equal(t, catalog.KindDetectError, started.Kind)

	id := started.WorkflowID

	require.Eventually(t, func() bool {
		_, body := do(t, app, http.MethodGet, "/workflows", nil)

		var active web.ListActiveResponse
		if err := json.Unmarshal(body, &active); err != nil || active.Count != 1 {
			return false
		}

		return active.Workflows[0].Waiting == "wait_for_resolution"
	}, 10*time.Second, 10*time.Millisecond)

	resp, body = do(t, app, http.MethodGet, "/workflows/"+id+"/result", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, string(body))

	resp, body = do(t, app, http.MethodGet, "/workflows/"+id+"/errors", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var logs web.ErrorLogsResponse
	require.NoError(t, json.Unmarshal(body, &logs))
	require.Len(t, logs.Errors, 2)

	resp, body = do(t, app, http.MethodGet, "/workflows/"+id+"/report", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report catalog.ErrorReport
	require.NoError(t, json.Unmarshal(body, &report))
	assert.Equal(t, models.SeverityCritical, report.MaxSeverity)

	resp, _ = do(t, app, http.MethodPost, "/workflows/"+id+"/signals/ignore_error",
		map[string]string{"error_id": logs.Errors[1].ID})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, _ = do(t, app, http.MethodPost, "/workflows/"+id+"/signals/resolve_error", nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		resp, _ := do(t, app, http.MethodGet, "/workflows/"+id+"/result", nil)

		return resp.StatusCode == http.StatusOK
	}, 10*time.Second, 10*time.Millisecond)

	_, body = do(t, app, http.MethodGet, "/workflows/"+id+"/result", nil)

	var result catalog.DetectionResult
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, 1, result.ErrorsResolved)
	assert.Equal(t, 1, result.ErrorsIgnored)

	resp, body = do(t, app, http.MethodGet, "/workflows/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view services.ExecutionView
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, models.ExecutionCompleted, view.Status)

	resp, body = do(t, app, http.MethodPost, "/workflows/"+id+"/signals/resolve_error", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, services.CodeConflict, problemType(t, body))
}

func TestAPI_WorkflowErrors(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
	}{
		{name: "unknown workflow", method: http.MethodGet, path: "/workflows/nope", wantStatus: http.StatusNotFound},
		{name: "unknown history", method: http.MethodGet, path: "/workflows/nope/history", wantStatus: http.StatusNotFound},
		{name: "unknown report", method: http.MethodGet, path: "/workflows/nope/report", wantStatus: http.StatusNotFound},
		{name: "unknown signal name", method: http.MethodPost, path: "/workflows/nope/signals/reboot", wantStatus: http.StatusBadRequest},
		{name: "signal to unknown workflow", method: http.MethodPost, path: "/workflows/nope/signals/stop_monitoring", wantStatus: http.StatusNotFound},
		{name: "monitor without source", method: http.MethodPost, path: "/workflows/monitors", body: map[string]any{"question_url": "https://a.b/q"}, wantStatus: http.StatusBadRequest},
		{name: "detection without body", method: http.MethodPost, path: "/workflows/detections", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp, body := do(t, app, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode, string(body))
		})
	}
}

func TestAPI_ErrorLogQueries(t *testing.T) {
	t.Parallel()

	app, _, store := setupTestAppWithStore(t)

	created := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	for i, l := range []models.ErrorLog{
		{ID: "wf-a-0-0", WorkflowID: "wf-a", Source: "worksheet-1", Severity: models.SeverityHigh, Status: models.ErrorOpen},
		{ID: "wf-a-0-1", WorkflowID: "wf-a", Source: "worksheet-1", Severity: models.SeverityLow, Status: models.ErrorResolved},
		{ID: "wf-b-0-0", WorkflowID: "wf-b", Source: "worksheet-2", Severity: models.SeverityHigh, Status: models.ErrorOpen},
	} {
		l.CreatedAt = created.Add(time.Duration(i) * time.Minute)
		require.NoError(t, persistence.PutJSON(t.Context(), store, persistence.Key("errors", l.WorkflowID, l.ID), l))
	}

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantIDs    []string
	}{
		{name: "all", path: "/errors", wantStatus: http.StatusOK, wantIDs: []string{"wf-b-0-0", "wf-a-0-1", "wf-a-0-0"}},
		{name: "filtered", path: "/errors?severity=high&status=open&source=worksheet-1", wantStatus: http.StatusOK, wantIDs: []string{"wf-a-0-0"}},
		{name: "paged", path: "/errors?skip=1&limit=1", wantStatus: http.StatusOK, wantIDs: []string{"wf-a-0-1"}},
		{name: "unknown severity", path: "/errors?severity=severe", wantStatus: http.StatusBadRequest},
		{name: "non numeric skip", path: "/errors?skip=abc", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, app, http.MethodGet, tt.path, nil)
			require.Equal(t, tt.wantStatus, resp.StatusCode, string(body))

			if tt.wantStatus != http.StatusOK {
				assert.Equal(t, services.CodeValidation, problemType(t, body))

				return
			}

			var got web.ListErrorsResponse
			require.NoError(t, json.Unmarshal(body, &got))
			assert.Equal(t, len(tt.wantIDs), got.Count)

			ids := make([]string, len(got.Errors))
			for i, l := range got.Errors {
				ids[i] = l.ID
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}

	resp, body := do(t, app, http.MethodGet, "/errors/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats catalog.ErrorStatistics
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, 3, stats.TotalErrors)
	assert.Equal(t, 2, stats.BySeverity[models.SeverityHigh])
	assert.Equal(t, 2, stats.ByStatus[models.ErrorOpen])
	assert.Equal(t, 1, stats.BySource["worksheet-2"])
}

func TestAPI_CacheStats(t *testing.T) {
	t.Parallel()

	app, client := setupTestApp(t)
	client.On("Evaluate", mock.Anything, mock.Anything).Return(&oracle.ScoreResult{Score: 90, Errors: []models.ScoreError{}}, nil)

	resp, body := do(t, app, http.MethodGet, "/cache/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"cache_size":0}`, string(body))

	resp, _ = do(t, app, http.MethodPost, "/detect-error", gradeBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, app, http.MethodGet, "/cache/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"cache_size":2}`, string(body))
}
