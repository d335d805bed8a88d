package session_test

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/SaiNageswarS/NurixLearn/pkg/log"
	"github.com/SaiNageswarS/NurixLearn/pkg/persistence"
	"github.com/SaiNageswarS/NurixLearn/pkg/persistence/memory"
	"github.com/SaiNageswarS/NurixLearn/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slowPutStore struct {
	persistence.Store
	delay time.Duration
}

func (s *slowPutStore) Put(ctx context.Context, key string, value []byte) error {
	time.Sleep(s.delay)

	return s.Store.Put(ctx, key, value)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

// Not parallel: lock diagnostics are process-wide.
func TestAppendAttempt_LockWaitPastTimeoutIsReported(t *testing.T) {
	var out lockedBuffer

	session.ConfigureLockDiagnostics(50*time.Millisecond, slog.New(slog.NewTextHandler(&out, nil)))
	t.Cleanup(func() { session.ConfigureLockDiagnostics(session.DefaultLockWaitReport, nil) })

	inner, err := memory.NewPersistence()
	require.NoError(t, err)

	tracker := session.NewTracker(&slowPutStore{Store: inner, delay: 300 * time.Millisecond}, log.Discard())

	var wg sync.WaitGroup

	errs := make([]error, 2)
	for i := range 2 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, errs[i] = tracker.AppendAttempt(t.Context(), attempt("S1", float64(i), float64(i+10), 0, 10))
		}()
	}

	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	state, err := tracker.Get(t.Context(), "S1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), state.TotalAttempts)
	assert.Contains(t, out.String(), "session lock wait exceeded timeout")
}
