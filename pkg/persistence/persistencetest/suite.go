// Package persistencetest holds the behavioral suite every persistence.Store backend must pass.
package persistencetest

import (
	"testing"

	"github.com/SaiNageswarS/NurixLearn/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreTests exercises newStore against the Store contract. Each subtest gets a fresh store.
func RunStoreTests(t *testing.T, newStore func(t *testing.T) persistence.Store) {
	t.Helper()

	t.Run("get missing key", func(t *testing.T) {
		s := newStore(t)

		_, err := s.Get(t.Context(), "sessions/nope")
		require.Error(t, err)
		assert.True(t, persistence.IsNotFound(err))
	})

	t.Run("put then get", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.Put(t.Context(), "sessions/s1", []byte(`{"socket_id":"s1"}`)))

		got, err := s.Get(t.Context(), "sessions/s1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"socket_id":"s1"}`, string(got))
	})

	t.Run("put overwrites", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.Put(t.Context(), "executions/wf-1", []byte(`{"version":1}`)))
		require.NoError(t, s.Put(t.Context(), "executions/wf-1", []byte(`{"version":2}`)))

		got, err := s.Get(t.Context(), "executions/wf-1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"version":2}`, string(got))
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.Put(t.Context(), "errors/wf-1/e1", []byte(`{}`)))
		require.NoError(t, s.Delete(t.Context(), "errors/wf-1/e1"))
		require.NoError(t, s.Delete(t.Context(), "errors/wf-1/e1"))

		_, err := s.Get(t.Context(), "errors/wf-1/e1")
		assert.True(t, persistence.IsNotFound(err))
	})

	t.Run("list by prefix is sorted and scoped", func(t *testing.T) {
		s := newStore(t)

		for _, key := range []string{
			"signals/wf-1/03",
			"signals/wf-1/01",
			"signals/wf-10/01",
			"signals/wf-1/02",
			"executions/wf-1",
		} {
			require.NoError(t, s.Put(t.Context(), key, []byte(`{}`)))
		}

		keys, err := s.List(t.Context(), "signals/wf-1/")
		require.NoError(t, err)
		assert.Equal(t, []string{"signals/wf-1/01", "signals/wf-1/02", "signals/wf-1/03"}, keys)

		empty, err := s.List(t.Context(), "reports/")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("health check", func(t *testing.T) {
		s := newStore(t)

		assert.NoError(t, s.HealthCheck(t.Context()))
	})
}
