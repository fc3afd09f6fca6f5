package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{name: "lowercases", raw: "EMBARCADERO RD", expected: "embarcadero rd"},
		{name: "collapses inner whitespace", raw: "el   camino\treal", expected: "el camino real"},
		{name: "trims edges", raw: "  university ave ", expected: "university ave"},
		{name: "already normal", raw: "alma st", expected: "alma st"},
		{name: "empty", raw: "", expected: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeKey(tt.raw))
		})
	}
}

func TestGetOrComputeMemoizes(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "cache.json"), "test", nil)
	var calls atomic.Int32
	compute := func(context.Context) (string, error) {
		calls.Add(1)
		return "computed", nil
	}

	// Same key under different surface forms: one compute, identical results.
	for _, key := range []string{"University Ave", "university  ave", "UNIVERSITY AVE"} {
		got, err := GetOrComputeAs(context.Background(), store, key, compute)
		require.NoError(t, err)
		assert.Equal(t, "computed", got)
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, store.Len())
}

func TestGetOrComputeDoesNotCacheFailures(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "cache.json"), "test", nil)
	var calls atomic.Int32
	boom := errors.New("transport down")

	_, err := GetOrComputeAs(context.Background(), store, "key", func(context.Context) (string, error) {
		calls.Add(1)
		return "", boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, store.Len())

	// The next attempt retries and can succeed.
	got, err := GetOrComputeAs(context.Background(), store, "key", func(context.Context) (string, error) {
		calls.Add(1)
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetOrComputeCollapsesConcurrentMisses(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "cache.json"), "test", nil)
	var calls atomic.Int32
	release := make(chan struct{})

	const workers = 16
	var wg sync.WaitGroup
	results := make([]string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := GetOrComputeAs(context.Background(), store, "shared key", func(context.Context) (string, error) {
				calls.Add(1)
				<-release
				return "value", nil
			})
			assert.NoError(t, err)
			results[i] = got
		}(i)
	}
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "concurrent misses must collapse to one compute")
	for _, r := range results {
		assert.Equal(t, "value", r)
	}
}

func TestFlushAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	first := NewStore(path, "test", nil)
	_, err := GetOrComputeAs(context.Background(), first, "alpha", func(context.Context) (string, error) {
		return "a", nil
	})
	require.NoError(t, err)
	require.NoError(t, first.Flush())

	// A fresh store over the same file sees the persisted entry and never
	// recomputes it.
	second := NewStore(path, "test", nil)
	require.NoError(t, second.Load())
	got, err := GetOrComputeAs(context.Background(), second, "ALPHA", func(context.Context) (string, error) {
		t.Fatal("compute must not run for a cached key")
		return "", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "a", got)
}

func TestFlushMergesConcurrentWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	a := NewStore(path, "test", nil)
	b := NewStore(path, "test", nil)
	for name, st := range map[string]*Store{"a": a, "b": b} {
		_, err := GetOrComputeAs(context.Background(), st, name, func(context.Context) (string, error) {
			return name, nil
		})
		require.NoError(t, err)
	}

	require.NoError(t, a.Flush())
	require.NoError(t, b.Flush()) // must not clobber a's entry

	check := NewStore(path, "test", nil)
	require.NoError(t, check.Load())
	assert.Equal(t, 2, check.Len())
	for _, key := range []string{"a", "b"} {
		_, ok := check.Get(key)
		assert.True(t, ok, "key %q lost on flush", key)
	}
}

func TestFlushSkipsWhenNothingAdded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	store := NewStore(path, "test", nil)
	require.NoError(t, store.Flush())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "no-op flush must not create the file")
}

func TestLoadKeepsMemoryOnConflict(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"key": "\"disk\""}`), 0o644))

	store := NewStore(path, "test", nil)
	_, err := GetOrComputeAs(context.Background(), store, "key", func(context.Context) (string, error) {
		return "memory", nil
	})
	require.NoError(t, err)

	require.NoError(t, store.Load())
	got, err := GetOrComputeAs(context.Background(), store, "key", func(context.Context) (string, error) {
		return "", fmt.Errorf("must not recompute")
	})
	require.NoError(t, err)
	assert.Equal(t, "memory", got, "in-memory entries win over disk on load")
}
