// Package cache implements the persistent keyed memoization store that fronts
// the geocoding and categorization external calls. For a key already present
// the store is authoritative: the external call is never re-issued.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Store is a JSON-file-backed map from a normalized key to a previously
// computed result. Entries are append-only within a run; compute failures are
// never written, so a later run retries them.
type Store struct {
	path   string
	name   string
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]json.RawMessage
	added   int

	group singleflight.Group
}

func NewStore(path, name string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:    path,
		name:    name,
		logger:  logger,
		entries: make(map[string]json.RawMessage),
	}
}

// NormalizeKey trims, case-folds, and collapses internal whitespace so that
// surface-text variants of the same input share one cache slot.
func NormalizeKey(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}

// Load merges the on-disk mapping under the in-memory one. Keys already in
// memory win; a stale file never loses previously cached keys.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Info("cache.load.empty", "cache", s.name, "path", s.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read cache %s: %w", s.name, err)
	}

	var disk map[string]json.RawMessage
	if err := json.Unmarshal(data, &disk); err != nil {
		return fmt.Errorf("decode cache %s: %w", s.name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	merged := 0
	for k, v := range disk {
		if _, ok := s.entries[k]; !ok {
			s.entries[k] = v
			merged++
		}
	}
	s.logger.Info("cache.load.ok", "cache", s.name, "path", s.path, "entries", len(s.entries), "merged", merged)
	return nil
}

// Flush serializes the full mapping to disk via temp-file+rename, first
// re-merging any keys another run persisted since Load. Called after each
// batch rather than per key, bounding crash loss to one batch.
func (s *Store) Flush() error {
	s.mu.Lock()
	if s.added == 0 {
		s.mu.Unlock()
		return nil
	}

	if data, err := os.ReadFile(s.path); err == nil {
		var disk map[string]json.RawMessage
		if err := json.Unmarshal(data, &disk); err == nil {
			for k, v := range disk {
				if _, ok := s.entries[k]; !ok {
					s.entries[k] = v
				}
			}
		}
	}

	out, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("encode cache %s: %w", s.name, err)
	}
	count := len(s.entries)
	added := s.added
	s.added = 0
	s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("write cache %s: %w", s.name, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename cache %s: %w", s.name, err)
	}

	s.logger.Info("cache.flush.ok", "cache", s.name, "entries", count, "added", added)
	return nil
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Get returns the stored value for a raw (un-normalized) key.
func (s *Store) Get(rawKey string) (json.RawMessage, bool) {
	key := NormalizeKey(rawKey)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok
}

// GetOrCompute returns the cached value for the key, or invokes compute
// exactly once, stores the result, and returns it. Concurrent misses for the
// same key collapse to a single compute invocation. Compute errors are not
// cached.
func (s *Store) GetOrCompute(ctx context.Context, rawKey string, compute func(context.Context) (json.RawMessage, error)) (json.RawMessage, error) {
	key := NormalizeKey(rawKey)

	s.mu.RLock()
	v, ok := s.entries[key]
	s.mu.RUnlock()
	if ok {
		return v, nil
	}

	result, err, _ := s.group.Do(key, func() (any, error) {
		// Re-check under the flight: a sibling caller may have stored the
		// value between our miss and this callback.
		s.mu.RLock()
		v, ok := s.entries[key]
		s.mu.RUnlock()
		if ok {
			return v, nil
		}

		computed, err := compute(ctx)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.entries[key] = computed
		s.added++
		s.mu.Unlock()
		return computed, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(json.RawMessage), nil
}

// GetOrComputeAs is the typed variant of Store.GetOrCompute.
func GetOrComputeAs[T any](ctx context.Context, s *Store, rawKey string, compute func(context.Context) (T, error)) (T, error) {
	var zero T
	raw, err := s.GetOrCompute(ctx, rawKey, func(ctx context.Context) (json.RawMessage, error) {
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return zero, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("decode cached value for %q: %w", rawKey, err)
	}
	return out, nil
}
