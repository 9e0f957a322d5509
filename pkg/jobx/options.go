package jobx

import "time"

// WorkerOptions configures the processing client.
type WorkerOptions struct {
	Queues          []string
	Concurrency     int
	PollInterval    time.Duration
	ShutdownTimeout time.Duration
	DequeueTimeout  time.Duration

	// JobTimeout bounds a single processing attempt wall-clock time.
	JobTimeout time.Duration

	// LeaseDuration is the exclusive claim granted on dequeue, renewed by
	// heartbeat while the handler runs.
	LeaseDuration time.Duration

	// RetryBackoff computes the delay before each retry attempt.
	RetryBackoff Backoff
}

func defaultWorkerOptions() WorkerOptions {
	return WorkerOptions{
		Queues:          []string{"default"},
		Concurrency:     1,
		PollInterval:    time.Second,
		ShutdownTimeout: 30 * time.Second,
		DequeueTimeout:  5 * time.Second,
		JobTimeout:      60 * time.Second,
		LeaseDuration:   30 * time.Second,
		RetryBackoff:    ExponentialBackoff{Base: 5 * time.Second, Factor: 2},
	}
}

// WorkerOption is a functional option for the client.
type WorkerOption func(*WorkerOptions)

// WithQueues sets the queues to consume, in priority order.
func WithQueues(queues ...string) WorkerOption {
	return func(o *WorkerOptions) {
		o.Queues = queues
	}
}

// WithConcurrency sets the number of worker goroutines.
func WithConcurrency(n int) WorkerOption {
	return func(o *WorkerOptions) {
		if n > 0 {
			o.Concurrency = n
		}
	}
}

// WithPollInterval sets the scheduler tick and idle dequeue backoff.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) {
		o.PollInterval = d
	}
}

// WithShutdownTimeout bounds the drain wait on shutdown.
func WithShutdownTimeout(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) {
		o.ShutdownTimeout = d
	}
}

// WithDequeueTimeout sets the blocking dequeue timeout.
func WithDequeueTimeout(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) {
		o.DequeueTimeout = d
	}
}

// WithJobTimeout bounds each processing attempt.
func WithJobTimeout(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) {
		o.JobTimeout = d
	}
}

// WithLeaseDuration sets the processing lease granted on dequeue.
func WithLeaseDuration(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) {
		o.LeaseDuration = d
	}
}

// WithRetryBackoff sets the delay strategy between retry attempts.
func WithRetryBackoff(b Backoff) WorkerOption {
	return func(o *WorkerOptions) {
		if b != nil {
			o.RetryBackoff = b
		}
	}
}
