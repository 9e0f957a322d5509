package config

import "time"

// QueueConfig names the queue pair and tunes the retry policy.
type QueueConfig struct {
	MainQueue  string
	RetryQueue string

	RetryInitialDelay time.Duration
	RetryMaxAttempts  int
	RetryBackoffBase  time.Duration

	MainCompletedKeep  int64
	RetryCompletedKeep int64
	RetryFailedKeep    int64
}

func loadQueueConfig() QueueConfig {
	return QueueConfig{
		MainQueue:  getEnv("QUEUE_MAIN", "raffle-transactions"),
		RetryQueue: getEnv("QUEUE_RETRY", "raffle-transactions-retry"),

		RetryInitialDelay: getEnvDuration("QUEUE_RETRY_INITIAL_DELAY", 5*time.Second),
		RetryMaxAttempts:  getEnvInt("QUEUE_RETRY_MAX_ATTEMPTS", 3),
		RetryBackoffBase:  getEnvDuration("QUEUE_RETRY_BACKOFF_BASE", 5*time.Second),

		MainCompletedKeep:  getEnvInt64("QUEUE_MAIN_COMPLETED_KEEP", 100),
		RetryCompletedKeep: getEnvInt64("QUEUE_RETRY_COMPLETED_KEEP", 100),
		RetryFailedKeep:    getEnvInt64("QUEUE_RETRY_FAILED_KEEP", 500),
	}
}
