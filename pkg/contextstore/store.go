// Package contextstore provides the shared key/value store agents use to
// hand results to one another.
//
// Values are kept in canonical JSON form, so the writer and the reader of a
// key may use different Go types as long as their JSON shapes agree. A
// *Store is a handle: every agent holding the same pointer sees the same data.
package contextstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Store is a thread-safe map from key to canonical JSON value
type Store struct {
	values map[string]json.RawMessage
	mu     sync.RWMutex
}

// New creates an empty store
func New() *Store {
	return &Store{
		values: make(map[string]json.RawMessage),
	}
}

// Set serializes value and stores it under key, replacing any previous value
func (s *Store) Set(key string, value interface{}) error {
	if key == "" {
		return fmt.Errorf("context key is required")
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to serialize context value %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = data
	return nil
}

// SetRaw stores an already-serialized JSON value under key
func (s *Store) SetRaw(key string, value json.RawMessage) error {
	if key == "" {
		return fmt.Errorf("context key is required")
	}
	if !json.Valid(value) {
		return fmt.Errorf("context value %q is not valid JSON", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = cloneRaw(value)
	return nil
}

// GetRaw returns a copy of the JSON stored under key
func (s *Store) GetRaw(key string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return nil, false
	}
	return cloneRaw(value), true
}

// Get decodes the value stored under key into T. The boolean reports
// whether the key was present.
func Get[T any](s *Store, key string) (T, bool, error) {
	var out T
	raw, ok := s.GetRaw(key)
	if !ok {
		return out, false, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, true, fmt.Errorf("failed to decode context value %q: %w", key, err)
	}
	return out, true, nil
}

// Contains reports whether key is present
func (s *Store) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[key]
	return ok
}

// Remove deletes key and reports whether it was present
func (s *Store) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.values[key]
	delete(s.values, key)
	return ok
}

// Keys returns all keys in sorted order
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.values))
	for key := range s.values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of stored keys
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Clear removes every key
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]json.RawMessage)
}

// Inject prepends a context block built from keys to task. Each present key
// is rendered as "=== KEY ===" followed by its pretty-printed value; missing
// keys are skipped, and the task is returned unchanged when none are present.
func (s *Store) Inject(task string, keys []string) string {
	if len(keys) == 0 {
		return task
	}

	sections := make([]string, 0, len(keys))
	for _, key := range keys {
		raw, ok := s.GetRaw(key)
		if !ok {
			continue
		}
		sections = append(sections, fmt.Sprintf("=== %s ===\n%s", strings.ToUpper(key), pretty(raw)))
	}

	if len(sections) == 0 {
		return task
	}
	return fmt.Sprintf("<context>\n%s\n</context>\n\n%s", strings.Join(sections, "\n\n"), task)
}

func pretty(raw json.RawMessage) string {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(data)
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
