// Package settings persists the user's API credential as a single opaque
// value in the shared kv medium.
package settings

import (
	"fmt"

	"github.com/pario-ai/inserter/pkg/kv"
)

// DefaultKey is the fixed settings identifier.
const DefaultKey = "ai-inserter-config"

// Store reads and writes the settings value.
type Store struct {
	kv  kv.Store
	key string
}

// New creates a Store over medium. An empty key uses DefaultKey.
func New(medium kv.Store, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{kv: medium, key: key}
}

// Load returns the stored value, or "" when none has been saved.
func (s *Store) Load() (string, error) {
	v, ok, err := s.kv.Get(s.key)
	if err != nil {
		return "", fmt.Errorf("load settings: %w", err)
	}
	if !ok {
		return "", nil
	}
	return v, nil
}

// Save overwrites the stored value.
func (s *Store) Save(value string) error {
	if err := s.kv.Set(s.key, value); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
