package memory

import (
	"sync"
	"time"

	"github.com/custodia-labs/carebot/internal/adapters/driven/config"
	"github.com/custodia-labs/carebot/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore keeps configuration in a map. Save and Load do nothing.
type ConfigStore struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewConfigStore creates a store seeded with dot-separated keys.
func NewConfigStore(seed ...map[string]any) *ConfigStore {
	s := &ConfigStore{values: make(map[string]any)}
	for _, m := range seed {
		for k, v := range m {
			s.values[k] = v
		}
	}
	return s
}

func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.values[key]
	return val, ok
}

func (s *ConfigStore) GetString(key string) string { return config.String(s.value(key)) }
func (s *ConfigStore) GetInt(key string) int { return config.Int(s.value(key)) }
func (s *ConfigStore) GetFloat(key string) float64 { return config.Float(s.value(key)) }
func (s *ConfigStore) GetDuration(key string) time.Duration { return config.Duration(s.value(key)) }
func (s *ConfigStore) GetBool(key string) bool { return config.Bool(s.value(key)) }
func (s *ConfigStore) GetStringSlice(key string) []string { return config.StringSlice(s.value(key)) }

func (s *ConfigStore) value(key string) any {
	v, _ := s.Get(key)
	return v
}

func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *ConfigStore) Save() error { return nil }
func (s *ConfigStore) Load() error { return nil }
func (s *ConfigStore) Path() string { return ":memory:" }
