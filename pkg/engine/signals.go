package engine

import (
	"context"
	"crypto/rand"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/SaiNageswarS/NurixLearn/internal/xjson"
	"github.com/SaiNageswarS/NurixLearn/pkg/events"
	"github.com/SaiNageswarS/NurixLearn/pkg/models"
	"github.com/SaiNageswarS/NurixLearn/pkg/persistence"
	"github.com/oklog/ulid"
)

const signalCollection = "signals"

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// newSignalID returns a ULID that sorts after every ID issued before it by this process.
func newSignalID(at time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(at), entropy).String()
}

func signalKey(workflowID, signalID string) string {
	return persistence.Key(signalCollection, workflowID, signalID)
}

// Signal queues a named signal for a live execution and wakes its runner. Signals nothing is
// waiting for yet stay queued until a suspension point listens for them.
func (e *Engine) Signal(ctx context.Context, id, name string, payload any) (string, error) {
	if !models.KnownSignal(name) {
		return "", newExecutionError("signal", id, fmt.Errorf("%w: %q", ErrUnknownSignal, name))
	}

	exec, err := e.load(ctx, id)
	if err != nil {
		e.logger.WarnContext(ctx, "signal rejected", "workflow_id", id, "signal", name, "error", err)

		return "", newExecutionError("signal", id, err)
	}

	if exec.Status.Terminal() {
		e.logger.WarnContext(ctx, "signal rejected, execution is terminal",
			"workflow_id", id,
			"signal", name,
			"status", exec.Status)

		return "", newExecutionError("signal", id, ErrSignalOnTerminalExecution)
	}

	var raw xjson.RawMessage
	if payload != nil {
		if raw, err = xjson.Marshal(payload); err != nil {
			return "", newExecutionError("signal", id, fmt.Errorf("failed to encode payload: %w", err))
		}
	}

	now := e.now()
	sig := models.Signal{
		ID:         newSignalID(now),
		WorkflowID: id,
		Name:       name,
		Payload:    raw,
		ReceivedAt: now,
	}

	if err := persistence.PutJSON(ctx, e.store, signalKey(id, sig.ID), sig); err != nil {
		return "", newExecutionError("signal", id, err)
	}

	// The runner may have finished and purged the queue between the status check and the put.
	if exec, err = e.load(ctx, id); err != nil || exec.Status.Terminal() {
		if delErr := e.store.Delete(context.WithoutCancel(ctx), signalKey(id, sig.ID)); delErr != nil && !persistence.IsNotFound(delErr) {
			e.logger.WarnContext(ctx, "failed to withdraw signal", "workflow_id", id, "signal_id", sig.ID, "error", delErr)
		}

		if err == nil {
			e.logger.WarnContext(ctx, "signal rejected, execution finished while queueing",
				"workflow_id", id,
				"signal", name,
				"status", exec.Status)

			err = ErrSignalOnTerminalExecution
		}

		return "", newExecutionError("signal", id, err)
	}

	e.logger.InfoContext(ctx, "signal queued", "workflow_id", id, "signal", name, "signal_id", sig.ID)

	e.publish(ctx, id, events.WorkflowSignalReceived{
		BaseEvent: events.NewBaseEvent(events.WorkflowSignalReceivedEvent, id),
		SignalID:  sig.ID,
		Signal:    name,
	})

	e.wake(id)

	return sig.ID, nil
}

func (e *Engine) wake(id string) {
	e.mu.Lock()
	r, ok := e.runners[id]
	e.mu.Unlock()

	if ok {
		r.poke()
	}
}

// nextSignal returns the oldest queued signal whose name is in names. Records of signals the
// execution already consumed are cleaned up on the way.
func (e *Engine) nextSignal(ctx context.Context, exec *models.WorkflowExecution, names []string) (models.Signal, bool, error) {
	queued, err := persistence.ListJSON[models.Signal](ctx, e.store, persistence.Prefix(signalCollection, exec.ID))
	if err != nil {
		return models.Signal{}, false, fmt.Errorf("failed to read signal queue: %w", err)
	}

	for _, sig := range queued {
		if exec.HasConsumed(sig.ID) {
			e.deleteSignal(ctx, exec.ID, sig.ID)

			continue
		}

		if slices.Contains(names, sig.Name) {
			return *sig, true, nil
		}
	}

	return models.Signal{}, false, nil
}

func (e *Engine) deleteSignal(ctx context.Context, workflowID, signalID string) {
	if err := e.store.Delete(context.WithoutCancel(ctx), signalKey(workflowID, signalID)); err != nil {
		e.logger.WarnContext(ctx, "failed to delete consumed signal",
			"workflow_id", workflowID,
			"signal_id", signalID,
			"error", err)
	}
}

// purgeSignals drops whatever is still queued for an execution that just became terminal.
func (e *Engine) purgeSignals(ctx context.Context, workflowID string) {
	ctx = context.WithoutCancel(ctx)

	keys, err := e.store.List(ctx, persistence.Prefix(signalCollection, workflowID))
	if err != nil {
		e.logger.WarnContext(ctx, "failed to list leftover signals", "workflow_id", workflowID, "error", err)

		return
	}

	for _, key := range keys {
		if err := e.store.Delete(ctx, key); err != nil {
			e.logger.WarnContext(ctx, "failed to delete leftover signal", "key", key, "error", err)
		}
	}

	if len(keys) > 0 {
		e.logger.DebugContext(ctx, "dropped unconsumed signals", "workflow_id", workflowID, "count", len(keys))
	}
}
