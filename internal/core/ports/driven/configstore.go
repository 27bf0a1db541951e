package driven

import "time"

// ConfigStore is the persisted key/value configuration behind
// SettingsService. Keys are dot-separated ("retrieval.relevance_threshold",
// "session.idle_timeout"). Typed getters return the zero value for a missing
// key or a value of the wrong type.
type ConfigStore interface {
	Get(key string) (any, bool)
	GetString(key string) string

	// GetInt truncates floats.
	GetInt(key string) int

	// GetFloat accepts integers, so "relevance_threshold = 1" reads as 1.0.
	GetFloat(key string) float64

	// GetDuration parses Go duration strings ("15m"). Integers are seconds.
	GetDuration(key string) time.Duration

	GetBool(key string) bool

	// GetStringSlice skips non-string elements.
	GetStringSlice(key string) []string

	// Set stores a value. File-backed stores write it through at once.
	Set(key string, value any) error

	Save() error
	Load() error

	// Path is the backing file, or ":memory:".
	Path() string
}
