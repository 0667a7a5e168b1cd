package serving

import (
	"time"

	"github.com/rs/zerolog"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxBatchWait          = 10 * time.Millisecond
	defaultSessionAcquireTimeout = 2 * time.Second
	defaultQueueDepthCeiling     = 32
	defaultMaxBatchSize          = 8
	defaultSessionPoolSize       = 1
)

// Config encapsulates all tunables for Engine construction.
type Config struct {
	// MaxBatchWait bounds how long the oldest queued request may wait before
	// its batch is dispatched regardless of size.
	MaxBatchWait time.Duration
	// SessionAcquireTimeout bounds how long a dispatched batch may wait for a
	// free execution session before its members get an overloaded error.
	SessionAcquireTimeout time.Duration
	// QueueDepthCeiling is the per-model pending-request limit; admission
	// rejects at the ceiling.
	QueueDepthCeiling int
	// MemoryBudgetBytes caps the total payload bytes of queued requests
	// across all models. Zero disables the budget check.
	MemoryBudgetBytes int64
	// DefaultMaxBatchSize applies to models whose descriptor omits one.
	DefaultMaxBatchSize int
	// DefaultSessionPoolSize applies to models whose descriptor omits one.
	DefaultSessionPoolSize int

	Logger    zerolog.Logger
	Publisher EventPublisher
}

func (c *Config) applyDefaults() {
	if c.MaxBatchWait <= 0 {
		c.MaxBatchWait = defaultMaxBatchWait
	}
	if c.SessionAcquireTimeout <= 0 {
		c.SessionAcquireTimeout = defaultSessionAcquireTimeout
	}
	if c.QueueDepthCeiling <= 0 {
		c.QueueDepthCeiling = defaultQueueDepthCeiling
	}
	if c.DefaultMaxBatchSize <= 0 {
		c.DefaultMaxBatchSize = defaultMaxBatchSize
	}
	if c.DefaultSessionPoolSize <= 0 {
		c.DefaultSessionPoolSize = defaultSessionPoolSize
	}
	if c.Publisher == nil {
		c.Publisher = noopPublisher{}
	}
}
