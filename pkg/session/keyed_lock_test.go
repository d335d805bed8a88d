package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedLock_ReleasesEntries(t *testing.T) {
	t.Parallel()

	locks := newKeyedLock()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		counter = map[string]int{}
	)

	for i := range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			key := []string{"a", "b", "c"}[i%3]
			unlock := locks.Lock(key)
			defer unlock()

			mu.Lock()
			counter[key]++
			mu.Unlock()
		}()
	}

	wg.Wait()

	assert.Equal(t, 0, locks.size())
	assert.Equal(t, 50, counter["a"]+counter["b"]+counter["c"])
}
