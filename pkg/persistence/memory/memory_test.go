package memory_test

import (
	"testing"

	"github.com/SaiNageswarS/NurixLearn/pkg/persistence"
	"github.com/SaiNageswarS/NurixLearn/pkg/persistence/memory"
	"github.com/SaiNageswarS/NurixLearn/pkg/persistence/persistencetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	persistencetest.RunStoreTests(t, func(t *testing.T) persistence.Store {
		t.Helper()

		store, err := memory.NewPersistence()
		require.NoError(t, err)

		return store
	})
}

func TestMemoryStore_ValuesAreCopied(t *testing.T) {
	t.Parallel()

	store, err := memory.NewPersistence()
	require.NoError(t, err)

	value := []byte(`{"a":1}`)
	require.NoError(t, store.Put(t.Context(), "k/1", value))
	value[2] = 'b'

	got, err := store.Get(t.Context(), "k/1")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))
}
