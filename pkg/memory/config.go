package memory

import (
	"github.com/sirupsen/logrus"
)

// Default configuration values. Each field falls back to its default
// independently when an out-of-range value is supplied.
const (
	DefaultMemoryThreshold     = 10
	DefaultRecentMessagesLimit = 6
	DefaultSessionTimeoutHours = 24
	DefaultMaxSessions         = 1000
)

// Config holds memory manager configuration from YAML.
type Config struct {
	// MemoryThreshold is the lifetime message count at which a
	// summarization pass is attempted. Range 1-100.
	MemoryThreshold int `yaml:"memory_threshold"`

	// RecentMessagesLimit is how many of the most recent messages are
	// kept verbatim after a successful summarization. Range 1-20 and
	// always strictly less than MemoryThreshold.
	RecentMessagesLimit int `yaml:"recent_messages_limit"`

	// SessionTimeoutHours is the inactivity window after which a
	// session is evicted. Range 1-168.
	SessionTimeoutHours int `yaml:"session_timeout_hours"`

	// MaxSessions caps the number of retained sessions; the oldest by
	// LastActivity are evicted beyond it. Range 1-10000.
	MaxSessions int `yaml:"max_sessions"`
}

// DefaultConfig returns the default memory configuration.
func DefaultConfig() Config {
	return Config{
		MemoryThreshold:     DefaultMemoryThreshold,
		RecentMessagesLimit: DefaultRecentMessagesLimit,
		SessionTimeoutHours: DefaultSessionTimeoutHours,
		MaxSessions:         DefaultMaxSessions,
	}
}

// Normalize validates the configuration, replacing each invalid field
// with its default. Replacements are logged; valid fields are untouched.
// The cross-field invariant RecentMessagesLimit < MemoryThreshold is
// restored last: the limit is reset to its default, and if the threshold
// is still not above it the threshold is reset too.
func (c *Config) Normalize(log logrus.FieldLogger) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	if c.MemoryThreshold < 1 || c.MemoryThreshold > 100 {
		log.WithFields(logrus.Fields{
			"field":   "memory_threshold",
			"value":   c.MemoryThreshold,
			"default": DefaultMemoryThreshold,
		}).Warn("invalid config value, using default")
		c.MemoryThreshold = DefaultMemoryThreshold
	}

	if c.RecentMessagesLimit < 1 || c.RecentMessagesLimit > 20 {
		log.WithFields(logrus.Fields{
			"field":   "recent_messages_limit",
			"value":   c.RecentMessagesLimit,
			"default": DefaultRecentMessagesLimit,
		}).Warn("invalid config value, using default")
		c.RecentMessagesLimit = DefaultRecentMessagesLimit
	}

	if c.SessionTimeoutHours < 1 || c.SessionTimeoutHours > 168 {
		log.WithFields(logrus.Fields{
			"field":   "session_timeout_hours",
			"value":   c.SessionTimeoutHours,
			"default": DefaultSessionTimeoutHours,
		}).Warn("invalid config value, using default")
		c.SessionTimeoutHours = DefaultSessionTimeoutHours
	}

	if c.MaxSessions < 1 || c.MaxSessions > 10000 {
		log.WithFields(logrus.Fields{
			"field":   "max_sessions",
			"value":   c.MaxSessions,
			"default": DefaultMaxSessions,
		}).Warn("invalid config value, using default")
		c.MaxSessions = DefaultMaxSessions
	}

	if c.RecentMessagesLimit >= c.MemoryThreshold {
		log.WithFields(logrus.Fields{
			"recent_messages_limit": c.RecentMessagesLimit,
			"memory_threshold":      c.MemoryThreshold,
		}).Warn("recent_messages_limit must be below memory_threshold, resetting")
		c.RecentMessagesLimit = DefaultRecentMessagesLimit
		if c.MemoryThreshold <= c.RecentMessagesLimit {
			c.MemoryThreshold = DefaultMemoryThreshold
		}
	}
}
