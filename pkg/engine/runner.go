package engine

import (
	"context"
	"fmt"
	"time"

	"dario.cat/mergo"
	"github.com/SaiNageswarS/NurixLearn/internal/xjson"
	"github.com/SaiNageswarS/NurixLearn/pkg/events"
	"github.com/SaiNageswarS/NurixLearn/pkg/models"
	"github.com/SaiNageswarS/NurixLearn/pkg/otelhelper"
	"github.com/SaiNageswarS/NurixLearn/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
)

const (
	sleepStep  = "sleep"
	stopStep   = "stop"
	finishStep = "finish"
)

// runner is the single goroutine driving one execution.
type runner struct {
	id   string
	wake chan struct{}
	done chan struct{}
}

func (r *runner) poke() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// spawn launches a runner for id unless one is already active.
func (e *Engine) spawn(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ctx.Err() != nil {
		return newExecutionError("spawn", id, ErrEngineStopped)
	}

	if _, ok := e.runners[id]; ok {
		return nil
	}

	r := &runner{id: id, wake: make(chan struct{}, 1), done: make(chan struct{})}
	e.runners[id] = r

	e.wg.Add(1)

	go func() {
		defer e.wg.Done()
		defer func() {
			e.mu.Lock()
			delete(e.runners, id)
			e.mu.Unlock()
			close(r.done)
		}()

		if err := e.run(e.ctx, r); err != nil {
			e.logger.Error("workflow runner stopped", "workflow_id", id, "error", err)
		}
	}()

	return nil
}

func (e *Engine) run(ctx context.Context, r *runner) error {
	exec, err := e.load(ctx, r.id)
	if err != nil {
		return err
	}

	def, ok := e.definition(exec.Kind)
	if !ok {
		if exec.Status.Terminal() {
			return nil
		}

		return e.failStep(ctx, exec, "", 0, e.now(), fmt.Errorf("%w: %s", ErrUnknownKind, exec.Kind))
	}

	if exec.Status == models.ExecutionScheduled {
		if def.Repeat != nil {
			stopped, err := e.checkStop(ctx, exec, def)
			if err != nil || stopped {
				return err
			}
		}

		if err := e.startExecution(ctx, exec); err != nil {
			return err
		}
	}

	for !exec.Status.Terminal() {
		if ctx.Err() != nil {
			return nil
		}

		switch {
		case exec.Cursor >= len(def.Steps) && def.Repeat != nil:
			err = e.loopBoundary(ctx, r, exec, def)
		case exec.Cursor >= len(def.Steps):
			err = e.finish(ctx, exec, def)
		case def.Steps[exec.Cursor].Await != nil:
			err = e.await(ctx, r, exec, def.Steps[exec.Cursor])
		default:
			err = e.activity(ctx, exec, def.Steps[exec.Cursor])
		}

		if err != nil {
			if ctx.Err() != nil {
				e.logger.Info("workflow interrupted by shutdown",
					"workflow_id", exec.ID,
					"cursor", exec.Cursor,
					"iteration", exec.Iteration)

				return nil
			}

			return err
		}
	}

	return nil
}

func (e *Engine) startExecution(ctx context.Context, exec *models.WorkflowExecution) error {
	now := e.now()
	if err := transition(ctx, exec, triggerStart, now); err != nil {
		return err
	}

	if err := e.checkpoint(ctx, exec); err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "workflow started", "workflow_id", exec.ID, "kind", exec.Kind)
	e.publish(ctx, exec.ID, events.WorkflowExecutionStarted{
		BaseEvent: events.NewBaseEvent(events.WorkflowExecutionStartedEvent, exec.ID),
		Kind:      exec.Kind,
	})

	return nil
}

// checkpoint durably saves exec. It survives engine shutdown so finished work is never lost.
func (e *Engine) checkpoint(ctx context.Context, exec *models.WorkflowExecution) error {
	exec.Version++
	exec.UpdatedAt = e.now()

	_, err := e.retry.attempt(context.WithoutCancel(ctx), func(ctx context.Context, _ int) error {
		return persistence.PutJSON(ctx, e.store, executionKey(exec.ID), exec)
	})
	if err != nil {
		return newExecutionError("checkpoint", exec.ID, err)
	}

	return nil
}

func (e *Engine) policyFor(step Step) RetryPolicy {
	if step.Retry == nil {
		return e.retry
	}

	p := *step.Retry
	if err := mergo.Merge(&p, e.retry); err != nil {
		return e.retry
	}

	return p
}

// traced runs fn inside a span for one attempt of a step.
func (e *Engine) traced(ctx context.Context, exec *models.WorkflowExecution, step string, attempt int, fn func(ctx context.Context) error) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.step."+step,
		attribute.String(otelhelper.WorkflowIDKey, exec.ID),
		attribute.String(otelhelper.WorkflowKindKey, exec.Kind),
		attribute.String(otelhelper.StepNameKey, step),
		attribute.Int(otelhelper.IterationKey, exec.Iteration),
		attribute.Int(otelhelper.AttemptKey, attempt),
	)
	defer span.End()

	err := fn(ctx)
	if err != nil {
		otelhelper.SetError(span, err)
		e.logger.WarnContext(ctx, "step attempt failed",
			"workflow_id", exec.ID,
			"step", step,
			"attempt", attempt,
			"error", err)
	}

	return err
}

func mergeOutputs(exec *models.WorkflowExecution, sc *StepContext) {
	if len(sc.outputs) == 0 {
		return
	}

	if exec.State == nil {
		exec.State = make(map[string]xjson.RawMessage, len(sc.outputs))
	}

	for k, v := range sc.outputs {
		exec.State[k] = v
	}
}

func (e *Engine) activity(ctx context.Context, exec *models.WorkflowExecution, step Step) error {
	sc := newStepContext(e, exec, step.Name)
	started := e.now()

	attempts, err := e.policyFor(step).attempt(ctx, func(ctx context.Context, attempt int) error {
		sc.reset()

		return e.traced(ctx, exec, step.Name, attempt, func(ctx context.Context) error {
			return step.Run(ctx, sc)
		})
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		return e.failStep(ctx, exec, step.Name, attempts, started, err)
	}

	outcome := models.StepSucceeded
	if sc.skipped {
		outcome = models.StepSkipped
	}

	return e.completeStep(ctx, exec, sc, models.StepRecord{
		Name:      step.Name,
		Iteration: exec.Iteration,
		Attempts:  attempts,
		StartedAt: started,
		Outcome:   outcome,
		Detail:    sc.detail,
	}, true)
}

// completeStep records a finished step, optionally advances the cursor, and checkpoints.
func (e *Engine) completeStep(ctx context.Context, exec *models.WorkflowExecution, sc *StepContext, rec models.StepRecord, advance bool) error {
	rec.CompletedAt = e.now()

	mergeOutputs(exec, sc)
	exec.History = append(exec.History, rec)

	if advance {
		exec.Cursor++
		exec.Suspension = nil
	}

	if err := e.checkpoint(ctx, exec); err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "step completed",
		"workflow_id", exec.ID,
		"step", rec.Name,
		"iteration", rec.Iteration,
		"outcome", rec.Outcome,
		"attempts", rec.Attempts)

	e.publish(ctx, exec.ID, events.WorkflowStepCompleted{
		BaseEvent: events.NewBaseEvent(events.WorkflowStepCompletedEvent, exec.ID),
		Step:      rec.Name,
		Iteration: rec.Iteration,
		Attempts:  rec.Attempts,
		Outcome:   rec.Outcome,
	})

	return nil
}

// failStep marks the execution failed after a step exhausted its retries.
func (e *Engine) failStep(ctx context.Context, exec *models.WorkflowExecution, step string, attempts int, started time.Time, cause error) error {
	now := e.now()

	exec.History = append(exec.History, models.StepRecord{
		Name:        step,
		Iteration:   exec.Iteration,
		Attempts:    attempts,
		StartedAt:   started,
		CompletedAt: now,
		Outcome:     models.StepFailed,
		Error:       cause.Error(),
	})
	exec.Error = cause.Error()

	if err := transition(ctx, exec, triggerFail, now); err != nil {
		return err
	}

	if err := e.checkpoint(ctx, exec); err != nil {
		return err
	}

	e.purgeSignals(ctx, exec.ID)

	e.logger.ErrorContext(ctx, "workflow failed",
		"workflow_id", exec.ID,
		"step", step,
		"attempts", attempts,
		"error", cause)

	e.publish(ctx, exec.ID, events.WorkflowStepFailed{
		BaseEvent: events.NewBaseEvent(events.WorkflowStepFailedEvent, exec.ID),
		Step:      step,
		Iteration: exec.Iteration,
		Attempts:  attempts,
		Error:     cause.Error(),
	})
	e.publish(ctx, exec.ID, events.WorkflowExecutionFailed{
		BaseEvent: events.NewBaseEvent(events.WorkflowExecutionFailedEvent, exec.ID),
		Kind:      exec.Kind,
		Step:      step,
		Error:     cause.Error(),
		Duration:  now.Sub(exec.CreatedAt),
	})

	return nil
}

func (e *Engine) finish(ctx context.Context, exec *models.WorkflowExecution, def *Definition) error {
	sc := newStepContext(e, exec, finishStep)
	started := e.now()

	var result any

	attempts, err := e.retry.attempt(ctx, func(ctx context.Context, attempt int) error {
		return e.traced(ctx, exec, finishStep, attempt, func(ctx context.Context) error {
			var err error
			result, err = def.Finish(ctx, sc)

			return err
		})
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		return e.failStep(ctx, exec, finishStep, attempts, started, err)
	}

	raw, err := xjson.Marshal(result)
	if err != nil {
		return e.failStep(ctx, exec, finishStep, attempts, started, fmt.Errorf("failed to encode result: %w", err))
	}

	now := e.now()
	exec.Result = raw

	if err := transition(ctx, exec, triggerComplete, now); err != nil {
		return err
	}

	if err := e.checkpoint(ctx, exec); err != nil {
		return err
	}

	e.purgeSignals(ctx, exec.ID)

	e.logger.InfoContext(ctx, "workflow completed", "workflow_id", exec.ID, "kind", exec.Kind)
	e.publish(ctx, exec.ID, events.WorkflowExecutionCompleted{
		BaseEvent: events.NewBaseEvent(events.WorkflowExecutionCompletedEvent, exec.ID),
		Kind:      exec.Kind,
		Duration:  now.Sub(exec.CreatedAt),
	})

	return nil
}

// suspend persists the suspension record for step unless exec is already parked there.
func (e *Engine) suspend(ctx context.Context, exec *models.WorkflowExecution, step string, signals []string, due time.Time) error {
	if exec.Suspension != nil && exec.Suspension.Step == step {
		return nil
	}

	exec.Suspension = &models.Suspension{
		Step:    step,
		Signals: signals,
		DueAt:   due,
		Since:   e.now(),
	}

	if err := e.checkpoint(ctx, exec); err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "workflow suspended",
		"workflow_id", exec.ID,
		"step", step,
		"signals", signals,
		"due_at", due)

	return nil
}

// sleep blocks until due, a wake-up, or shutdown. It reports whether it was woken early.
func (e *Engine) sleep(ctx context.Context, r *runner, due time.Time) (bool, error) {
	timer := time.NewTimer(max(due.Sub(e.now()), 0))
	defer timer.Stop()

	select {
	case <-timer.C:
		return false, nil
	case <-r.wake:
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (e *Engine) await(ctx context.Context, r *runner, exec *models.WorkflowExecution, step Step) error {
	if exec.Suspension == nil || exec.Suspension.Step != step.Name {
		if step.Await.Satisfied != nil {
			skip, err := e.satisfied(ctx, exec, step)
			if err != nil || skip {
				return err
			}
		}

		timeout, err := step.Await.Timeout(newStepContext(e, exec, step.Name))
		if err != nil {
			return e.failStep(ctx, exec, step.Name, 1, e.now(), err)
		}

		if err := e.suspend(ctx, exec, step.Name, step.Await.Signals, e.now().Add(timeout)); err != nil {
			return err
		}
	}

	for {
		sig, found, err := e.nextSignal(ctx, exec, step.Await.Signals)
		if err != nil {
			return err
		}

		if found {
			done, err := e.consume(ctx, exec, step, sig)
			if err != nil || done || exec.Status.Terminal() {
				return err
			}

			continue
		}

		if !e.now().Before(exec.Suspension.DueAt) {
			return e.expire(ctx, exec, step)
		}

		if _, err := e.sleep(ctx, r, exec.Suspension.DueAt); err != nil {
			return err
		}
	}
}

// satisfied completes the wait as skipped when its condition already holds.
func (e *Engine) satisfied(ctx context.Context, exec *models.WorkflowExecution, step Step) (bool, error) {
	sc := newStepContext(e, exec, step.Name)
	started := e.now()

	var ok bool

	attempts, err := e.policyFor(step).attempt(ctx, func(ctx context.Context, attempt int) error {
		sc.reset()

		return e.traced(ctx, exec, step.Name, attempt, func(ctx context.Context) error {
			var err error
			ok, err = step.Await.Satisfied(ctx, sc)

			return err
		})
	})
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}

		return true, e.failStep(ctx, exec, step.Name, attempts, started, err)
	}

	if !ok {
		return false, nil
	}

	if sc.detail == "" {
		sc.Detail("nothing to wait for")
	}

	return true, e.completeStep(ctx, exec, sc, models.StepRecord{
		Name:      step.Name,
		Iteration: exec.Iteration,
		Attempts:  attempts,
		StartedAt: started,
		Outcome:   models.StepSkipped,
		Detail:    sc.detail,
	}, true)
}

// consume hands one signal to the waiting step. The signal ID is checkpointed as consumed
// before its queue record is deleted, so a replay never applies it twice.
func (e *Engine) consume(ctx context.Context, exec *models.WorkflowExecution, step Step, sig models.Signal) (bool, error) {
	sc := newStepContext(e, exec, step.Name)
	started := e.now()

	var done bool

	attempts, err := e.policyFor(step).attempt(ctx, func(ctx context.Context, attempt int) error {
		sc.reset()

		return e.traced(ctx, exec, step.Name, attempt, func(ctx context.Context) error {
			var err error
			done, err = step.Await.OnSignal(ctx, sc, sig)

			return err
		})
	})
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}

		return false, e.failStep(ctx, exec, step.Name, attempts, started, err)
	}

	exec.ConsumedSignals = append(exec.ConsumedSignals, sig.ID)

	detail := sig.Name
	if sc.detail != "" {
		detail = sig.Name + ": " + sc.detail
	}

	if err := e.completeStep(ctx, exec, sc, models.StepRecord{
		Name:      step.Name,
		Iteration: exec.Iteration,
		Attempts:  attempts,
		StartedAt: started,
		Outcome:   models.StepSignaled,
		Detail:    detail,
	}, done); err != nil {
		return false, err
	}

	e.deleteSignal(ctx, exec.ID, sig.ID)

	return done, nil
}

// expire completes a wait whose deadline passed.
func (e *Engine) expire(ctx context.Context, exec *models.WorkflowExecution, step Step) error {
	sc := newStepContext(e, exec, step.Name)
	started := e.now()
	attempts := 0

	if step.Await.OnTimeout != nil {
		var err error

		attempts, err = e.policyFor(step).attempt(ctx, func(ctx context.Context, attempt int) error {
			sc.reset()

			return e.traced(ctx, exec, step.Name, attempt, func(ctx context.Context) error {
				return step.Await.OnTimeout(ctx, sc)
			})
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			return e.failStep(ctx, exec, step.Name, attempts, started, err)
		}
	}

	return e.completeStep(ctx, exec, sc, models.StepRecord{
		Name:      step.Name,
		Iteration: exec.Iteration,
		Attempts:  attempts,
		StartedAt: started,
		Outcome:   models.StepTimedOut,
		Detail:    sc.detail,
	}, true)
}

// loopBoundary ends one monitoring iteration: it honours a queued stop signal, otherwise it
// sleeps until the schedule's next due time and starts the next iteration.
func (e *Engine) loopBoundary(ctx context.Context, r *runner, exec *models.WorkflowExecution, def *Definition) error {
	stopped, err := e.checkStop(ctx, exec, def)
	if err != nil || stopped {
		return err
	}

	if exec.Suspension == nil || exec.Suspension.Step != sleepStep {
		schedule, err := def.Repeat.Schedule(newStepContext(e, exec, sleepStep))
		if err != nil {
			return e.failStep(ctx, exec, sleepStep, 1, e.now(), err)
		}

		if err := e.suspend(ctx, exec, sleepStep, []string{def.Repeat.StopSignal}, schedule.Next(e.now())); err != nil {
			return err
		}
	}

	for e.now().Before(exec.Suspension.DueAt) {
		woke, err := e.sleep(ctx, r, exec.Suspension.DueAt)
		if err != nil {
			return err
		}

		if woke {
			if stopped, err := e.checkStop(ctx, exec, def); err != nil || stopped {
				return err
			}
		}
	}

	rec := models.StepRecord{
		Name:      sleepStep,
		Iteration: exec.Iteration,
		StartedAt: exec.Suspension.Since,
		Outcome:   models.StepSucceeded,
	}

	exec.Iteration++
	exec.Cursor = 0
	exec.Suspension = nil

	return e.completeStep(ctx, exec, newStepContext(e, exec, sleepStep), rec, false)
}

// checkStop cancels the execution when its stop signal is queued.
func (e *Engine) checkStop(ctx context.Context, exec *models.WorkflowExecution, def *Definition) (bool, error) {
	sig, found, err := e.nextSignal(ctx, exec, []string{def.Repeat.StopSignal})
	if err != nil || !found {
		return false, err
	}

	now := e.now()

	exec.ConsumedSignals = append(exec.ConsumedSignals, sig.ID)
	exec.History = append(exec.History, models.StepRecord{
		Name:        stopStep,
		Iteration:   exec.Iteration,
		StartedAt:   now,
		CompletedAt: now,
		Outcome:     models.StepSignaled,
		Detail:      sig.Name,
	})

	if err := transition(ctx, exec, triggerCancel, now); err != nil {
		return false, err
	}

	if err := e.checkpoint(ctx, exec); err != nil {
		return false, err
	}

	e.deleteSignal(ctx, exec.ID, sig.ID)
	e.purgeSignals(ctx, exec.ID)

	e.logger.InfoContext(ctx, "workflow cancelled", "workflow_id", exec.ID, "signal", sig.Name, "iteration", exec.Iteration)
	e.publish(ctx, exec.ID, events.WorkflowExecutionCancelled{
		BaseEvent: events.NewBaseEvent(events.WorkflowExecutionCancelledEvent, exec.ID),
		Kind:      exec.Kind,
		Reason:    sig.Name,
		Iteration: exec.Iteration,
	})

	return true, nil
}
