package jobxredis

import "time"

// Retention bounds how many finished entries a queue keeps for inspection.
// Zero means unbounded.
type Retention struct {
	Completed int64
	Failed    int64
}

// Options configures the Redis backend.
type Options struct {
	// KeyPrefix namespaces all keys this backend touches.
	KeyPrefix string

	// RecoveryBound is how many times a stalled entry is requeued before
	// being abandoned as failed.
	RecoveryBound int

	// CompletedTTL expires completed job records so trimmed entries do not
	// accumulate forever.
	CompletedTTL time.Duration

	// RetentionByQueue holds per-queue retention bounds.
	RetentionByQueue map[string]Retention
}

func defaultOptions() Options {
	return Options{
		KeyPrefix:        "jobx",
		RecoveryBound:    3,
		CompletedTTL:     24 * time.Hour,
		RetentionByQueue: make(map[string]Retention),
	}
}

// Option is a functional option for the backend.
type Option func(*Options)

// WithKeyPrefix sets the Redis key namespace.
func WithKeyPrefix(prefix string) Option {
	return func(o *Options) {
		if prefix != "" {
			o.KeyPrefix = prefix
		}
	}
}

// WithRecoveryBound sets the stalled-entry recovery bound.
func WithRecoveryBound(n int) Option {
	return func(o *Options) {
		if n >= 0 {
			o.RecoveryBound = n
		}
	}
}

// WithCompletedTTL sets the expiry of completed job records.
func WithCompletedTTL(d time.Duration) Option {
	return func(o *Options) {
		o.CompletedTTL = d
	}
}

// WithRetention bounds the completed/failed entries kept for one queue.
func WithRetention(queue string, r Retention) Option {
	return func(o *Options) {
		o.RetentionByQueue[queue] = r
	}
}
