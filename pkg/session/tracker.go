// Package session maintains cumulative per-socket grading state: attempt count, the merged
// bounding region and the attempt history.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SaiNageswarS/NurixLearn/pkg/models"
	"github.com/SaiNageswarS/NurixLearn/pkg/persistence"
)

const collection = "sessions"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrMissingSocketID = errors.New("socket_id is required")
)

// AttemptInput is one graded submission to fold into a session.
type AttemptInput struct {
	SocketID    string
	QuestionRef string
	SolutionRef string
	Region      models.BoundingBox
	ResultRef   string
}

// ChangeHook runs after a session has been durably changed, still inside the session's
// critical section. Cache invalidation hangs off it.
type ChangeHook func(ctx context.Context, socketID string) error

type Tracker struct {
	store    persistence.Store
	locks    *keyedLock
	onChange ChangeHook
	now      func() time.Time
	logger   *slog.Logger
}

func NewTracker(store persistence.Store, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:  store,
		locks:  newKeyedLock(),
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With("module", "session_tracker"),
	}
}

// OnChange registers the hook run after every append or reset.
func (t *Tracker) OnChange(hook ChangeHook) {
	t.onChange = hook
}

func key(socketID string) string {
	return persistence.Key(collection, socketID)
}

// AppendAttempt folds one attempt into the session under the socket's lock. An attempt whose
// non-empty ResultRef is already in the history is not applied twice.
func (t *Tracker) AppendAttempt(ctx context.Context, in AttemptInput) (*models.SessionState, error) {
	if in.SocketID == "" {
		return nil, ErrMissingSocketID
	}

	if err := in.Region.Validate(); err != nil {
		return nil, err
	}

	unlock := t.locks.Lock(in.SocketID)
	defer unlock()

	state, err := t.load(ctx, in.SocketID)
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}

	now := t.now()

	if state == nil {
		state = &models.SessionState{SocketID: in.SocketID, CreatedAt: now}
	}

	if in.ResultRef != "" {
		for _, a := range state.AttemptHistory {
			if a.ResultRef == in.ResultRef {
				t.logger.DebugContext(ctx, "attempt already recorded", "socket_id", in.SocketID, "result_ref", in.ResultRef)

				return state, nil
			}
		}
	}

	state.AttemptHistory = append(state.AttemptHistory, models.AttemptRecord{
		QuestionRef: in.QuestionRef,
		SolutionRef: in.SolutionRef,
		Region:      in.Region,
		ResultRef:   in.ResultRef,
		Timestamp:   now,
	})
	recompute(state)
	state.UpdatedAt = now

	if err := persistence.PutJSON(ctx, t.store, key(in.SocketID), state); err != nil {
		return nil, fmt.Errorf("failed to save session %s: %w", in.SocketID, err)
	}

	t.logger.InfoContext(ctx, "attempt appended",
		"socket_id", in.SocketID,
		"total_attempts", state.TotalAttempts,
		"cumulative_region", state.CumulativeRegion)

	t.changed(ctx, in.SocketID)

	return state, nil
}

// recompute derives the counters from the history; they are never set directly.
func recompute(state *models.SessionState) {
	regions := make([]models.BoundingBox, len(state.AttemptHistory))
	for i, a := range state.AttemptHistory {
		regions[i] = a.Region
	}

	state.CumulativeRegion, _ = models.UnionAll(regions...)
	state.TotalAttempts = int64(len(state.AttemptHistory))
}

func (t *Tracker) load(ctx context.Context, socketID string) (*models.SessionState, error) {
	var state models.SessionState
	if err := persistence.GetJSON(ctx, t.store, key(socketID), &state); err != nil {
		if persistence.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, socketID)
		}

		return nil, err
	}

	return &state, nil
}

func (t *Tracker) Get(ctx context.Context, socketID string) (*models.SessionState, error) {
	return t.load(ctx, socketID)
}

// Version is the coherence version of a session: its attempt count, 0 before the first attempt.
func (t *Tracker) Version(ctx context.Context, socketID string) (int64, error) {
	state, err := t.load(ctx, socketID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return 0, nil
		}

		return 0, err
	}

	return state.TotalAttempts, nil
}

func (t *Tracker) Stats(ctx context.Context, socketID string) (*models.SessionStats, error) {
	state, err := t.load(ctx, socketID)
	if err != nil {
		return nil, err
	}

	stats := &models.SessionStats{
		SocketID:         state.SocketID,
		TotalAttempts:    state.TotalAttempts,
		CumulativeRegion: state.CumulativeRegion,
		Area:             state.CumulativeRegion.Area(),
		Center:           state.CumulativeRegion.Center(),
	}

	if n := len(state.AttemptHistory); n > 0 {
		stats.FirstAttemptAt = state.AttemptHistory[0].Timestamp
		stats.LastAttemptAt = state.AttemptHistory[n-1].Timestamp
		stats.Duration = stats.LastAttemptAt.Sub(stats.FirstAttemptAt)
	}

	return stats, nil
}

// Reset deletes a session. It is an administrative operation; nothing calls it implicitly.
func (t *Tracker) Reset(ctx context.Context, socketID string) error {
	unlock := t.locks.Lock(socketID)
	defer unlock()

	if err := t.store.Delete(ctx, key(socketID)); err != nil {
		return fmt.Errorf("failed to reset session %s: %w", socketID, err)
	}

	t.logger.InfoContext(ctx, "session reset", "socket_id", socketID)
	t.changed(ctx, socketID)

	return nil
}

func (t *Tracker) changed(ctx context.Context, socketID string) {
	if t.onChange == nil {
		return
	}

	if err := t.onChange(ctx, socketID); err != nil {
		t.logger.WarnContext(ctx, "session change hook failed", "socket_id", socketID, "error", err)
	}
}
