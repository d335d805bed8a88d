// Package engine runs durable multi-step workflows. Every execution is a record in the Store
// that is checkpointed after each step, so a restarted engine resumes where the last one
// stopped. Executions suspend on signals and timers without holding goroutines hostage to locks.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"dario.cat/mergo"
	"github.com/SaiNageswarS/NurixLearn/internal/xjson"
	"github.com/SaiNageswarS/NurixLearn/pkg/eventbus"
	"github.com/SaiNageswarS/NurixLearn/pkg/models"
	"github.com/SaiNageswarS/NurixLearn/pkg/otelhelper"
	"github.com/SaiNageswarS/NurixLearn/pkg/persistence"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const executionCollection = "executions"

type Options struct {
	Store     persistence.Store
	Publisher eventbus.EventPublisher
	Tracer    trace.Tracer
	Logger    *slog.Logger
	Retry     RetryPolicy
	Clock     func() time.Time
}

type Engine struct {
	store     persistence.Store
	publisher eventbus.EventPublisher
	tracer    trace.Tracer
	logger    *slog.Logger
	retry     RetryPolicy
	now       func() time.Time

	mu          sync.Mutex
	definitions map[string]*Definition
	runners     map[string]*runner

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("%w: a store is required", ErrInvalidDefinition)
	}

	if err := mergo.Merge(&opts.Retry, DefaultRetryPolicy); err != nil {
		return nil, fmt.Errorf("failed to apply retry defaults: %w", err)
	}

	if opts.Publisher == nil {
		opts.Publisher = eventbus.Discard{}
	}

	if opts.Tracer == nil {
		opts.Tracer = otelhelper.NoopTracer()
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		store:       opts.Store,
		publisher:   opts.Publisher,
		tracer:      opts.Tracer,
		logger:      opts.Logger.With("module", "workflow_engine"),
		retry:       opts.Retry,
		now:         opts.Clock,
		definitions: make(map[string]*Definition),
		runners:     make(map[string]*runner),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Register adds a workflow definition. Registering a kind twice replaces it.
func (e *Engine) Register(def *Definition) error {
	if err := def.validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.definitions[def.Kind] = def

	return nil
}

func (e *Engine) definition(kind string) (*Definition, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	def, ok := e.definitions[kind]

	return def, ok
}

func executionKey(id string) string {
	return persistence.Key(executionCollection, id)
}

// Start persists a scheduled execution of kind and launches its runner.
func (e *Engine) Start(ctx context.Context, kind string, input any) (string, error) {
	if _, ok := e.definition(kind); !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	raw, err := xjson.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s input: %w", kind, err)
	}

	now := e.now()
	exec := &models.WorkflowExecution{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    models.ExecutionScheduled,
		Input:     raw,
		History:   []models.StepRecord{},
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}

	if err := persistence.PutJSON(ctx, e.store, executionKey(exec.ID), exec); err != nil {
		return "", newExecutionError("start", exec.ID, err)
	}

	e.logger.InfoContext(ctx, "workflow scheduled", "workflow_id", exec.ID, "kind", kind)

	if err := e.spawn(exec.ID); err != nil {
		return "", err
	}

	return exec.ID, nil
}

// Recover restarts a runner for every non-terminal execution in the Store. Timers that fell due
// while no engine was running fire immediately.
func (e *Engine) Recover(ctx context.Context) (int, error) {
	execs, err := persistence.ListJSON[models.WorkflowExecution](ctx, e.store, persistence.Prefix(executionCollection))
	if err != nil {
		return 0, fmt.Errorf("failed to list executions: %w", err)
	}

	recovered := 0

	for _, exec := range execs {
		if exec.Status.Terminal() {
			continue
		}

		if err := e.spawn(exec.ID); err != nil {
			return recovered, err
		}

		recovered++
	}

	e.logger.InfoContext(ctx, "workflow executions recovered", "count", recovered)

	return recovered, nil
}

// Shutdown stops every runner. In-flight steps are abandoned at their current cursor and are
// re-run by the next Recover.
func (e *Engine) Shutdown(ctx context.Context) error {
	// spawn checks the context and adds to wg under mu, so no runner starts after this.
	e.mu.Lock()
	e.cancel()
	e.mu.Unlock()

	done := make(chan struct{})

	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) load(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	var exec models.WorkflowExecution
	if err := persistence.GetJSON(ctx, e.store, executionKey(id), &exec); err != nil {
		if persistence.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrExecutionNotFound, id)
		}

		return nil, err
	}

	return &exec, nil
}

// Get returns the full execution record.
func (e *Engine) Get(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	return e.load(ctx, id)
}

func (e *Engine) GetStatus(ctx context.Context, id string) (models.ExecutionStatus, error) {
	exec, err := e.load(ctx, id)
	if err != nil {
		return "", err
	}

	return exec.Status, nil
}

func (e *Engine) GetHistory(ctx context.Context, id string) ([]models.StepRecord, error) {
	exec, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}

	return exec.History, nil
}

// GetResult returns the result of a completed execution.
func (e *Engine) GetResult(ctx context.Context, id string) ([]byte, error) {
	exec, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}

	return resultOf(exec)
}

func resultOf(exec *models.WorkflowExecution) ([]byte, error) {
	switch exec.Status {
	case models.ExecutionCompleted:
		return exec.Result, nil
	case models.ExecutionFailed:
		return nil, newExecutionError("result", exec.ID, fmt.Errorf("%w: %s", ErrExecutionFailed, exec.Error))
	case models.ExecutionCancelled:
		return nil, newExecutionError("result", exec.ID, ErrExecutionCancelled)
	default:
		return nil, newExecutionError("result", exec.ID, ErrResultPending)
	}
}

// Version is the coherence version of an execution; 0 when it does not exist.
func (e *Engine) Version(ctx context.Context, id string) (int64, error) {
	exec, err := e.load(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return 0, nil
		}

		return 0, err
	}

	return exec.Version, nil
}

// ListActive returns every non-terminal execution, oldest first.
func (e *Engine) ListActive(ctx context.Context) ([]models.ExecutionSummary, error) {
	execs, err := persistence.ListJSON[models.WorkflowExecution](ctx, e.store, persistence.Prefix(executionCollection))
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	out := []models.ExecutionSummary{}

	for _, exec := range execs {
		if !exec.Status.Terminal() {
			out = append(out, exec.Summary())
		}
	}

	slices.SortFunc(out, func(a, b models.ExecutionSummary) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return out, nil
}

// Wait blocks until the execution is terminal and returns its final record.
func (e *Engine) Wait(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	for {
		exec, err := e.load(ctx, id)
		if err != nil {
			return nil, err
		}

		if exec.Status.Terminal() {
			return exec, nil
		}

		e.mu.Lock()
		r, running := e.runners[id]
		e.mu.Unlock()

		if !running {
			// The runner may have finished between the load and the lookup.
			if exec, err = e.load(ctx, id); err == nil && exec.Status.Terminal() {
				return exec, nil
			}

			if e.ctx.Err() != nil {
				return nil, newExecutionError("wait", id, ErrEngineStopped)
			}

			return nil, newExecutionError("wait", id, fmt.Errorf("%w: no runner", ErrResultPending))
		}

		select {
		case <-r.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (e *Engine) publish(ctx context.Context, workflowID string, event eventbus.Event) {
	if err := e.publisher.Publish(ctx, workflowID, event); err != nil {
		e.logger.WarnContext(ctx, "failed to publish workflow event",
			"workflow_id", workflowID,
			"event_type", event.GetType(),
			"error", err)
	}
}
