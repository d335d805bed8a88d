package persistence_test

import (
	"errors"
	"testing"

	"github.com/SaiNageswarS/NurixLearn/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestKeyError(t *testing.T) {
	t.Parallel()

	t.Run("unwraps to the sentinel", func(t *testing.T) {
		t.Parallel()

		err := persistence.NewKeyError("get", "sessions/s1", persistence.ErrNotFound)

		assert.True(t, persistence.IsNotFound(err))
		assert.True(t, errors.Is(err, persistence.ErrNotFound))
		assert.False(t, errors.Is(err, persistence.ErrInvalidKey))
	})

	t.Run("message carries op and key", func(t *testing.T) {
		t.Parallel()

		err := persistence.NewKeyError("put", "executions/wf-1", errors.New("disk full"))

		assert.Contains(t, err.Error(), "put")
		assert.Contains(t, err.Error(), "executions/wf-1")
		assert.Contains(t, err.Error(), "disk full")
	})
}

func TestKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "signals/wf-1/01J", persistence.Key("signals", "wf-1", "01J"))
	assert.Equal(t, "signals/wf-1/", persistence.Prefix("signals", "wf-1"))
}
