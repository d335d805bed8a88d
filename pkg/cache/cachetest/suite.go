// Package cachetest holds the behavioral suite every cache.Cache backend must pass.
package cachetest

import (
	"testing"
	"time"

	"github.com/SaiNageswarS/NurixLearn/pkg/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func RunCacheTests(t *testing.T, newCache func(t *testing.T) cache.Cache) {
	t.Helper()

	t.Run("miss is ErrMiss", func(t *testing.T) {
		c := newCache(t)

		_, err := c.Get(t.Context(), "fp-missing")
		assert.True(t, cache.IsMiss(err))

		ok, err := c.Exists(t.Context(), "fp-missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("set get delete", func(t *testing.T) {
		c := newCache(t)

		require.NoError(t, c.Set(t.Context(), "fp-1", []byte(`{"total_attempts":1}`), time.Minute))

		got, err := c.Get(t.Context(), "fp-1")
		require.NoError(t, err)
		assert.Equal(t, `{"total_attempts":1}`, string(got))

		ok, err := c.Exists(t.Context(), "fp-1")
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, c.Delete(t.Context(), "fp-1", "fp-never-set"))

		_, err = c.Get(t.Context(), "fp-1")
		assert.True(t, cache.IsMiss(err))
	})

	t.Run("sets accumulate members", func(t *testing.T) {
		c := newCache(t)

		require.NoError(t, c.AddToSet(t.Context(), "owner:session:s1", "fp-1", time.Minute))
		require.NoError(t, c.AddToSet(t.Context(), "owner:session:s1", "fp-2", time.Minute))
		require.NoError(t, c.AddToSet(t.Context(), "owner:session:s1", "fp-1", time.Minute))

		members, err := c.Members(t.Context(), "owner:session:s1")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"fp-1", "fp-2"}, members)

		empty, err := c.Members(t.Context(), "owner:session:none")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("size counts entries and sets", func(t *testing.T) {
		c := newCache(t)

		n, err := c.Size(t.Context())
		require.NoError(t, err)
		assert.Zero(t, n)

		require.NoError(t, c.Set(t.Context(), "fp-1", []byte("a"), time.Minute))
		require.NoError(t, c.Set(t.Context(), "fp-2", []byte("b"), time.Minute))
		require.NoError(t, c.AddToSet(t.Context(), "owner:session:s1", "fp-1", time.Minute))

		n, err = c.Size(t.Context())
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		require.NoError(t, c.Delete(t.Context(), "fp-2"))

		n, err = c.Size(t.Context())
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, newCache(t).Ping(t.Context()))
	})
}
