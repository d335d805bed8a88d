package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/SaiNageswarS/NurixLearn/internal/xjson"
	"github.com/SaiNageswarS/NurixLearn/pkg/models"
	"github.com/SaiNageswarS/NurixLearn/pkg/persistence"
)

// StepContext is a step's view of its execution. Saved values become visible to later steps
// only once the step's checkpoint is written.
type StepContext struct {
	exec    *models.WorkflowExecution
	step    string
	store   persistence.Store
	now     func() time.Time
	logger  *slog.Logger
	outputs map[string]json.RawMessage
	skipped bool
	detail  string
}

func newStepContext(e *Engine, exec *models.WorkflowExecution, step string) *StepContext {
	return &StepContext{
		exec:    exec,
		step:    step,
		store:   e.store,
		now:     e.now,
		logger:  e.logger.With("workflow_id", exec.ID, "step", step, "iteration", exec.Iteration),
		outputs: make(map[string]json.RawMessage),
	}
}

func (sc *StepContext) WorkflowID() string { return sc.exec.ID }
func (sc *StepContext) Kind() string       { return sc.exec.Kind }
func (sc *StepContext) Step() string       { return sc.step }
func (sc *StepContext) Iteration() int     { return sc.exec.Iteration }

func (sc *StepContext) Store() persistence.Store { return sc.store }
func (sc *StepContext) Logger() *slog.Logger     { return sc.logger }
func (sc *StepContext) Now() time.Time           { return sc.now() }

// Input decodes the execution input into v.
func (sc *StepContext) Input(v any) error {
	if len(sc.exec.Input) == 0 {
		return nil
	}

	return xjson.Unmarshal(sc.exec.Input, v)
}

// Load decodes the latest value saved under key. It reports false when nothing was saved.
func (sc *StepContext) Load(key string, v any) (bool, error) {
	raw, ok := sc.outputs[key]
	if !ok {
		raw, ok = sc.exec.State[key]
	}

	if !ok {
		return false, nil
	}

	if err := xjson.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("failed to decode state %q: %w", key, err)
	}

	return true, nil
}

func (sc *StepContext) Save(key string, v any) error {
	raw, err := xjson.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode state %q: %w", key, err)
	}

	sc.outputs[key] = raw

	return nil
}

// Skip records the step as skipped rather than succeeded.
func (sc *StepContext) Skip(detail string) {
	sc.skipped = true
	sc.detail = detail
}

// Detail attaches a short note to the step's history record.
func (sc *StepContext) Detail(detail string) {
	sc.detail = detail
}

func (sc *StepContext) reset() {
	clear(sc.outputs)
	sc.skipped = false
	sc.detail = ""
}

type effectMarker struct {
	WorkflowID string    `json:"workflow_id"`
	Step       string    `json:"step"`
	Iteration  int       `json:"iteration"`
	Name       string    `json:"name"`
	At         time.Time `json:"at"`
}

func effectKey(workflowID string, iteration int, name string) string {
	return persistence.Key("effects", workflowID, strconv.Itoa(iteration), name)
}

// Once runs fn at most once per execution, iteration and name, even across a crash and a
// resumed step. The marker is written before fn runs and removed again only when fn fails.
// It reports whether fn ran.
func (sc *StepContext) Once(ctx context.Context, name string, fn func(ctx context.Context) error) (bool, error) {
	key := effectKey(sc.exec.ID, sc.exec.Iteration, name)

	_, err := sc.store.Get(ctx, key)
	if err == nil {
		sc.logger.InfoContext(ctx, "side effect already performed", "effect", name)

		return false, nil
	}

	if !persistence.IsNotFound(err) {
		return false, fmt.Errorf("failed to read effect marker %s: %w", name, err)
	}

	marker := effectMarker{
		WorkflowID: sc.exec.ID,
		Step:       sc.step,
		Iteration:  sc.exec.Iteration,
		Name:       name,
		At:         sc.now(),
	}
	if err := persistence.PutJSON(ctx, sc.store, key, marker); err != nil {
		return false, fmt.Errorf("failed to write effect marker %s: %w", name, err)
	}

	if err := fn(ctx); err != nil {
		if delErr := sc.store.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			sc.logger.WarnContext(ctx, "failed to clear effect marker", "effect", name, "error", delErr)
		}

		return false, err
	}

	return true, nil
}
