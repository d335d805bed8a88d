package file_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/SaiNageswarS/NurixLearn/pkg/persistence"
	"github.com/SaiNageswarS/NurixLearn/pkg/persistence/file"
	"github.com/SaiNageswarS/NurixLearn/pkg/persistence/persistencetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	t.Parallel()

	persistencetest.RunStoreTests(t, func(t *testing.T) persistence.Store {
		t.Helper()

		return file.NewPersistence(t.TempDir())
	})
}

func TestFileStore_SchemeAndLayout(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := file.NewPersistence("file://" + dir)

	require.NoError(t, store.Put(t.Context(), "sessions/socket one", []byte(`{}`)))

	_, err := os.Stat(filepath.Join(dir, "sessions", "socket%20one.json"))
	require.NoError(t, err)

	keys, err := store.List(t.Context(), "sessions/")
	require.NoError(t, err)
	assert.Equal(t, []string{"sessions/socket one"}, keys)
}

func TestFileStore_RejectsTraversal(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())

	tests := []struct {
		name string
		key  string
	}{
		{name: "parent segment", key: "sessions/../../etc/passwd"},
		{name: "empty segment", key: "sessions//s1"},
		{name: "empty key", key: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := store.Put(t.Context(), tt.key, []byte(`{}`))
			require.Error(t, err)
			assert.ErrorIs(t, err, persistence.ErrInvalidKey)
		})
	}
}

func TestFileStore_SlashInSegmentIsEscaped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := file.NewPersistence(dir)

	// A socket id containing a path separator must stay inside its collection.
	require.NoError(t, store.Put(t.Context(), persistence.Key("sessions", "a%2Fb"), []byte(`{}`)))

	got, err := store.Get(t.Context(), persistence.Key("sessions", "a%2Fb"))
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(got))
}

func TestFileStore_HealthCheckMissingRoot(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(filepath.Join(t.TempDir(), "missing"))

	assert.Error(t, store.HealthCheck(t.Context()))
}
