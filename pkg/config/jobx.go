package config

import "time"

// JobxConfig configures the background job workers. Concurrency defaults
// to 1: the signer holds a single nonce sequence, so only one transaction
// job may run at a time across all queues.
type JobxConfig struct {
	Concurrency     int
	PollInterval    time.Duration
	ShutdownTimeout time.Duration
	DequeueTimeout  time.Duration
	JobTimeout      time.Duration
	LeaseDuration   time.Duration
}

func loadJobxConfig() JobxConfig {
	return JobxConfig{
		Concurrency:     getEnvInt("JOBX_CONCURRENCY", 1),
		PollInterval:    getEnvDuration("JOBX_POLL_INTERVAL", time.Second),
		ShutdownTimeout: getEnvDuration("JOBX_SHUTDOWN_TIMEOUT", 30*time.Second),
		DequeueTimeout:  getEnvDuration("JOBX_DEQUEUE_TIMEOUT", 5*time.Second),
		JobTimeout:      getEnvDuration("JOBX_JOB_TIMEOUT", 60*time.Second),
		LeaseDuration:   getEnvDuration("JOBX_LEASE_DURATION", 30*time.Second),
	}
}
