package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/SaiNageswarS/NurixLearn/internal/xjson"
	"github.com/SaiNageswarS/NurixLearn/pkg/cache"
	cachememory "github.com/SaiNageswarS/NurixLearn/pkg/cache/memory"
	"github.com/SaiNageswarS/NurixLearn/pkg/catalog"
	"github.com/SaiNageswarS/NurixLearn/pkg/coherence"
	"github.com/SaiNageswarS/NurixLearn/pkg/engine"
	"github.com/SaiNageswarS/NurixLearn/pkg/fingerprint"
	"github.com/SaiNageswarS/NurixLearn/pkg/log"
	"github.com/SaiNageswarS/NurixLearn/pkg/mocks"
	"github.com/SaiNageswarS/NurixLearn/pkg/models"
	"github.com/SaiNageswarS/NurixLearn/pkg/oracle"
	"github.com/SaiNageswarS/NurixLearn/pkg/persistence"
	"github.com/SaiNageswarS/NurixLearn/pkg/persistence/memory"
	"github.com/SaiNageswarS/NurixLearn/pkg/services"
	"github.com/SaiNageswarS/NurixLearn/pkg/session"
	"github.com/SaiNageswarS/NurixLearn/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stack struct {
	store      persistence.Store
	cache      cache.Cache
	oracle     *mocks.MockOracle
	engine     *engine.Engine
	workflows  *services.Workflows
	evaluation *services.Evaluation
	sessions   *services.Sessions
	health     *services.Health
}

func newStack(t *testing.T) *stack {
	t.Helper()

	store, err := memory.NewPersistence()
	require.NoError(t, err)

	c, err := cachememory.New(0)
	require.NoError(t, err)

	s := &stack{store: store, cache: c, oracle: &mocks.MockOracle{}}

	s.engine, err = engine.New(engine.Options{
		Store:  store,
		Logger: log.Discard(),
		Retry:  engine.RetryPolicy{Attempts: 2, Base: time.Millisecond, Max: 2 * time.Millisecond},
	})
	require.NoError(t, err)

	tracker := session.NewTracker(store, log.Discard())
	policy := coherence.New(c, coherence.Sources{
		coherence.KindSession:  tracker.Version,
		coherence.KindWorkflow: s.engine.Version,
	}, time.Minute, log.Discard())

	tracker.OnChange(func(ctx context.Context, socketID string) error {
		return policy.Invalidate(ctx, coherence.SessionOwner(socketID))
	})

	cat, err := catalog.New(catalog.Config{
		Scanner:     catalog.NewOracleScanner(s.oracle),
		Oracle:      s.oracle,
		Tracker:     tracker,
		Invalidator: policy,
		Logger:      log.Discard(),
	})
	require.NoError(t, err)
	require.NoError(t, cat.Register(s.engine))

	s.workflows = services.NewWorkflows(s.engine, cat, store, policy, log.Discard())
	s.evaluation = services.NewEvaluation(s.engine, cat, policy, log.Discard())
	s.sessions = services.NewSessions(tracker, policy, log.Discard())
	s.health = services.NewHealth(store, c)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = s.engine.Shutdown(ctx)
	})

	return s
}

func (s *stack) oracleReturns(score float64, errs ...models.ScoreError) {
	s.oracle.On("Evaluate", mock.Anything, mock.Anything).Return(testutil.NewScoreResult(score, errs...), nil)
}

func gradeRequest(socketID string, region models.BoundingBox) catalog.GradeInput {
	return testutil.NewGradeInput(testutil.WithSocket(socketID), testutil.WithRegion(region))
}

var (
	regionA = models.BoundingBox{MinX: 100, MaxX: 300, MinY: 100, MaxY: 200}
	regionB = models.BoundingBox{MinX: 150, MaxX: 350, MinY: 150, MaxY: 250}
)

func TestGrade_IdenticalRequestIsServedFromCache(t *testing.T) {
	t.Parallel()

	s := newStack(t)
	s.oracleReturns(85)

	first, err := s.evaluation.Grade(t.Context(), gradeRequest("S1", regionA))
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := s.evaluation.Grade(t.Context(), gradeRequest("S1", regionA))
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.JobID, second.JobID)
	assert.Equal(t, int64(1), second.TotalAttempts)

	s.oracle.AssertNumberOfCalls(t, "Evaluate", 1)
}

func TestGrade_SessionsDoNotShareEntries(t *testing.T) {
	t.Parallel()

	s := newStack(t)
	s.oracleReturns(85)

	a, err := s.evaluation.Grade(t.Context(), gradeRequest("S1", regionA))
	require.NoError(t, err)

	b, err := s.evaluation.Grade(t.Context(), gradeRequest("S2", regionA))
	require.NoError(t, err)

	assert.False(t, b.CacheHit)
	assert.Equal(t, int64(1), a.TotalAttempts)
	assert.Equal(t, int64(1), b.TotalAttempts)
	assert.NotEqual(t, a.JobID, b.JobID)

	for _, socketID := range []string{"S1", "S2"} {
		req := gradeRequest(socketID, regionA)

		key, err := fingerprint.DeriveGrade(fingerprint.GradeDescriptor{
			SocketID:    socketID,
			QuestionRef: req.QuestionURL,
			SolutionRef: req.SolutionURL,
			Region:      regionA,
		})
		require.NoError(t, err)

		ok, err := s.cache.Exists(t.Context(), key)
		require.NoError(t, err)
		assert.True(t, ok, socketID)
	}

	s.oracle.AssertNumberOfCalls(t, "Evaluate", 2)
}

func TestGrade_CumulativeRegion(t *testing.T) {
	t.Parallel()

	s := newStack(t)
	s.oracleReturns(60)

	_, err := s.evaluation.Grade(t.Context(), gradeRequest("S1", regionA))
	require.NoError(t, err)

	second, err := s.evaluation.Grade(t.Context(), gradeRequest("S1", regionB))
	require.NoError(t, err)

	assert.Equal(t, int64(2), second.TotalAttempts)
	assert.Equal(t, models.BoundingBox{MinX: 100, MaxX: 350, MinY: 100, MaxY: 250}, second.CumulativeBoundingBox)
	assert.False(t, second.SolutionComplete)
}

func TestGrade_ResubmissionAfterNewAttemptIsRecomputed(t *testing.T) {
	t.Parallel()

	s := newStack(t)
	s.oracleReturns(85)

	_, err := s.evaluation.Grade(t.Context(), gradeRequest("S1", regionA))
	require.NoError(t, err)

	_, err = s.evaluation.Grade(t.Context(), gradeRequest("S1", regionB))
	require.NoError(t, err)

	again, err := s.evaluation.Grade(t.Context(), gradeRequest("S1", regionA))
	require.NoError(t, err)

	assert.False(t, again.CacheHit)
	assert.Equal(t, int64(3), again.TotalAttempts)
	assert.Equal(t, models.BoundingBox{MinX: 100, MaxX: 350, MinY: 100, MaxY: 250}, again.CumulativeBoundingBox)
	s.oracle.AssertNumberOfCalls(t, "Evaluate", 3)
}

func TestGrade_ValidationFailsBeforeAnyWork(t *testing.T) {
	t.Parallel()

	s := newStack(t)

	tests := []struct {
		name string
		req  catalog.GradeInput
	}{
		{name: "missing socket", req: gradeRequest("", regionA)},
		{name: "missing region", req: testutil.NewGradeInput(testutil.WithoutRegion())},
		{name: "inverted region", req: gradeRequest("S1", models.BoundingBox{MinX: 5, MaxX: 1, MaxY: 1})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.evaluation.Grade(t.Context(), tt.req)
			require.Error(t, err)
			assert.True(t, services.IsValidationError(err))
		})
	}

	active, err := s.workflows.ListActive(t.Context())
	require.NoError(t, err)
	assert.Empty(t, active)
	s.oracle.AssertNotCalled(t, "Evaluate", mock.Anything, mock.Anything)
}

func TestGrade_RejectedSubmissionIsWorkflowFailure(t *testing.T) {
	t.Parallel()

	s := newStack(t)
	s.oracle.On("Evaluate", mock.Anything, mock.Anything).Return(nil, oracle.ErrRejected)

	_, err := s.evaluation.Grade(t.Context(), gradeRequest("S1", regionA))
	require.Error(t, err)
	assert.True(t, services.IsWorkflowFailure(err))

	_, err = s.sessions.Stats(t.Context(), "S1")
	assert.True(t, services.IsNotFound(err))
}

func TestSessions_StatsAndReset(t *testing.T) {
	t.Parallel()

	s := newStack(t)
	s.oracleReturns(85)

	_, err := s.evaluation.Grade(t.Context(), gradeRequest("S1", regionA))
	require.NoError(t, err)

	stats, err := s.sessions.Stats(t.Context(), "S1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalAttempts)
	assert.Equal(t, 20000.0, stats.Area)

	require.NoError(t, s.sessions.Reset(t.Context(), "S1"))

	_, err = s.sessions.Stats(t.Context(), "S1")
	assert.True(t, services.IsNotFound(err))

	after, err := s.evaluation.Grade(t.Context(), gradeRequest("S1", regionA))
	require.NoError(t, err)
	assert.False(t, after.CacheHit)
	assert.Equal(t, int64(1), after.TotalAttempts)

	assert.True(t, services.IsNotFound(s.sessions.Reset(t.Context(), "unknown")))
	assert.True(t, services.IsValidationError(s.sessions.Reset(t.Context(), "")))
}

func TestSessions_InvalidateDropsCachedResponse(t *testing.T) {
	t.Parallel()

	s := newStack(t)
	s.oracleReturns(85)

	_, err := s.evaluation.Grade(t.Context(), gradeRequest("S1", regionA))
	require.NoError(t, err)

	require.NoError(t, s.sessions.Invalidate(t.Context(), "S1"))

	again, err := s.evaluation.Grade(t.Context(), gradeRequest("S1", regionA))
	require.NoError(t, err)
	assert.False(t, again.CacheHit)
	assert.Equal(t, int64(2), again.TotalAttempts)
}

func detectionBody(t *testing.T, timeout string) xjson.RawMessage {
	t.Helper()

	raw, err := xjson.Marshal(map[string]any{
		"source":             "worksheet-3",
		"question_url":       "https://cdn.example.com/q/3.png",
		"solution_url":       "https://cdn.example.com/s/3.png",
		"resolution_timeout": timeout,
	})
	require.NoError(t, err)

	return raw
}

func TestWorkflows_StartValidation(t *testing.T) {
	t.Parallel()

	s := newStack(t)

	tests := []struct {
		name string
		kind string
		body string
	}{
		{name: "unknown kind", kind: "compile_report", body: `{}`},
		{name: "empty body", kind: catalog.KindDetectError, body: ``},
		{name: "malformed body", kind: catalog.KindDetectError, body: `{"source":`},
		{name: "missing urls", kind: catalog.KindDetectError, body: `{"source":"x"}`},
		{name: "bad schedule", kind: catalog.KindErrorMonitoring, body: `{"source":"x","question_url":"https://a.b/q","solution_url":"https://a.b/s","schedule":"sometimes"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := s.workflows.Start(t.Context(), tt.kind, xjson.RawMessage(tt.body))
			require.Error(t, err)
			assert.True(t, services.IsValidationError(err), err.Error())
		})
	}
}

func TestWorkflows_DetectionLifecycle(t *testing.T) {
	t.Parallel()

	s := newStack(t)
	s.oracleReturns(40, models.ScoreError{Step: "2", ErrorType: "sign_error", Description: "sign flipped", Severity: "high"})

	id, err := s.workflows.Start(t.Context(), catalog.KindDetectError, detectionBody(t, "1h"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		view, err := s.workflows.Query(t.Context(), id)

		return err == nil && view.Waiting == "wait_for_resolution"
	}, 10*time.Second, 5*time.Millisecond)

	logs, hit, err := s.workflows.ErrorLogs(t.Context(), id)
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, logs, 1)
	assert.Equal(t, models.ErrorOpen, logs[0].Status)

	_, hit, err = s.workflows.ErrorLogs(t.Context(), id)
	require.NoError(t, err)
	assert.True(t, hit)

	report, err := s.workflows.Report(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalErrors)

	_, err = s.workflows.Result(t.Context(), id)
	assert.True(t, services.IsConflictError(err))

	_, err = s.workflows.Signal(t.Context(), id, models.SignalResolveError, xjson.RawMessage(`{"note":"fixed"}`))
	require.NoError(t, err)

	exec, err := s.engine.Wait(t.Context(), id)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionCompleted, exec.Status)

	logs, hit, err = s.workflows.ErrorLogs(t.Context(), id)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, models.ErrorResolved, logs[0].Status)

	raw, err := s.workflows.Result(t.Context(), id)
	require.NoError(t, err)

	var result catalog.DetectionResult
	require.NoError(t, xjson.Unmarshal(raw, &result))
	assert.Equal(t, 1, result.ErrorsResolved)

	history, err := s.workflows.History(t.Context(), id)
	require.NoError(t, err)
	assert.Len(t, history, 7)

	_, err = s.workflows.Signal(t.Context(), id, models.SignalResolveError, nil)
	assert.True(t, services.IsConflictError(err))
}

func TestWorkflows_SignalErrors(t *testing.T) {
	t.Parallel()

	s := newStack(t)

	_, err := s.workflows.Signal(t.Context(), "missing", models.SignalStopMonitoring, nil)
	assert.True(t, services.IsNotFound(err))

	_, err = s.workflows.Signal(t.Context(), "missing", "reboot", nil)
	assert.True(t, services.IsValidationError(err))

	_, err = s.workflows.Signal(t.Context(), "missing", models.SignalResolveError, xjson.RawMessage(`{`))
	assert.True(t, services.IsValidationError(err))

	_, _, err = s.workflows.ErrorLogs(t.Context(), "missing")
	assert.True(t, services.IsNotFound(err))

	_, err = s.workflows.Report(t.Context(), "missing")
	assert.True(t, services.IsNotFound(err))
}

func TestHealth_Check(t *testing.T) {
	t.Parallel()

	s := newStack(t)

	checks, ok := s.health.Check(t.Context())
	assert.True(t, ok)
	assert.Equal(t, "healthy", checks["store"])
	assert.Equal(t, "healthy", checks["cache"])
}

func TestHealth_CacheStats(t *testing.T) {
	t.Parallel()

	s := newStack(t)
	s.oracleReturns(85)

	stats, err := s.health.CacheStats(t.Context())
	require.NoError(t, err)
	assert.Zero(t, stats.Entries)

	_, err = s.evaluation.Grade(t.Context(), gradeRequest("S1", regionA))
	require.NoError(t, err)

	// the response entry and its session tag set
	stats, err = s.health.CacheStats(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Entries)
}

var errorLogEpoch = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func seedErrorLogs(t *testing.T, store persistence.Store) {
	t.Helper()

	logs := []models.ErrorLog{
		{ID: "wf-a-0-0", WorkflowID: "wf-a", Source: "worksheet-1", Severity: models.SeverityHigh, Status: models.ErrorOpen, CreatedAt: errorLogEpoch},
		{ID: "wf-a-0-1", WorkflowID: "wf-a", Source: "worksheet-1", Severity: models.SeverityLow, Status: models.ErrorResolved, CreatedAt: errorLogEpoch.Add(time.Minute)},
		{ID: "wf-b-0-0", WorkflowID: "wf-b", Source: "worksheet-2", Severity: models.SeverityHigh, Status: models.ErrorIgnored, CreatedAt: errorLogEpoch.Add(2 * time.Minute)},
		{ID: "wf-b-1-0", WorkflowID: "wf-b", Source: "worksheet-2", Severity: models.SeverityCritical, Status: models.ErrorOpen, CreatedAt: errorLogEpoch.Add(3 * time.Minute)},
	}

	for _, l := range logs {
		require.NoError(t, persistence.PutJSON(t.Context(), store, persistence.Key("errors", l.WorkflowID, l.ID), l))
	}
}

func errorIDs(logs []models.ErrorLog) []string {
	ids := make([]string, len(logs))
	for i, l := range logs {
		ids[i] = l.ID
	}

	return ids
}

func TestWorkflows_ListErrorLogs(t *testing.T) {
	t.Parallel()

	s := newStack(t)
	seedErrorLogs(t, s.store)

	tests := []struct {
		name   string
		filter catalog.ErrorLogFilter
		want   []string
	}{
		{name: "all newest first", want: []string{"wf-b-1-0", "wf-b-0-0", "wf-a-0-1", "wf-a-0-0"}},
		{name: "by severity", filter: catalog.ErrorLogFilter{Severity: models.SeverityHigh}, want: []string{"wf-b-0-0", "wf-a-0-0"}},
		{name: "by status", filter: catalog.ErrorLogFilter{Status: models.ErrorOpen}, want: []string{"wf-b-1-0", "wf-a-0-0"}},
		{name: "by source", filter: catalog.ErrorLogFilter{Source: "worksheet-1"}, want: []string{"wf-a-0-1", "wf-a-0-0"}},
		{name: "combined", filter: catalog.ErrorLogFilter{Severity: models.SeverityHigh, Status: models.ErrorIgnored}, want: []string{"wf-b-0-0"}},
		{name: "skip and limit", filter: catalog.ErrorLogFilter{Skip: 1, Limit: 2}, want: []string{"wf-b-0-0", "wf-a-0-1"}},
		{name: "skip past end", filter: catalog.ErrorLogFilter{Skip: 10}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs, err := s.workflows.ListErrorLogs(t.Context(), tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, errorIDs(logs))
		})
	}
}

func TestWorkflows_ListErrorLogsValidation(t *testing.T) {
	t.Parallel()

	s := newStack(t)

	for _, filter := range []catalog.ErrorLogFilter{
		{Severity: "severe"},
		{Status: "closed"},
		{Skip: -1},
		{Limit: catalog.MaxErrorLogLimit + 1},
	} {
		_, err := s.workflows.ListErrorLogs(t.Context(), filter)
		assert.True(t, services.IsValidationError(err), "%+v: %v", filter, err)
	}
}

func TestWorkflows_ErrorStats(t *testing.T) {
	t.Parallel()

	s := newStack(t)

	empty, err := s.workflows.ErrorStats(t.Context())
	require.NoError(t, err)
	assert.Zero(t, empty.TotalErrors)
	assert.Empty(t, empty.BySeverity)

	seedErrorLogs(t, s.store)

	stats, err := s.workflows.ErrorStats(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalErrors)
	assert.Equal(t, map[models.Severity]int{models.SeverityHigh: 2, models.SeverityLow: 1, models.SeverityCritical: 1}, stats.BySeverity)
	assert.Equal(t, map[models.ErrorStatus]int{models.ErrorOpen: 2, models.ErrorResolved: 1, models.ErrorIgnored: 1}, stats.ByStatus)
	assert.Equal(t, map[string]int{"worksheet-1": 2, "worksheet-2": 2}, stats.BySource)
}
