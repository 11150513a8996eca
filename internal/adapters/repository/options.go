package repository

import "time"

// Default store settings.
const (
	DefaultTimeout  = 10 * time.Second
	DefaultPageSize = 100
)

// Option applies a configuration option to a GuardedStore.
type Option func(*GuardedStore)

// WithTimeout bounds every store call. Non-positive values keep the default.
func WithTimeout(timeout time.Duration) Option {
	return func(s *GuardedStore) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithDriverName labels the wrapped driver in logs and stats.
func WithDriverName(name string) Option {
	return func(s *GuardedStore) {
		if name != "" {
			s.driver = name
		}
	}
}
