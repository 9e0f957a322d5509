package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/raffleport/relay/pkg/jobx"
	"github.com/raffleport/relay/pkg/logx"
)

// QueueNames identifies the queue pair.
type QueueNames struct {
	Main  string
	Retry string
}

// WorkerConfig tunes the hand-off policy.
type WorkerConfig struct {
	Queues QueueNames

	// RetryInitialDelay is the wait before a handed-off job's first retry
	// attempt.
	RetryInitialDelay time.Duration

	// RetryMaxAttempts bounds attempts in the retry queue.
	RetryMaxAttempts int
}

// Worker binds the executor to the queue pair. It registers one handler per
// job type on the jobx client; the client's concurrency of one guarantees a
// single in-flight chain call across both queues, which is what keeps the
// signer's nonce sequence coherent.
type Worker struct {
	jobs    *jobx.Client
	exec    *Executor
	monitor *Monitor
	cfg     WorkerConfig
}

// NewWorker creates the worker and registers its handlers.
func NewWorker(jobs *jobx.Client, exec *Executor, monitor *Monitor, cfg WorkerConfig) *Worker {
	if cfg.RetryInitialDelay <= 0 {
		cfg.RetryInitialDelay = 5 * time.Second
	}
	if cfg.RetryMaxAttempts <= 0 {
		cfg.RetryMaxAttempts = 3
	}

	w := &Worker{jobs: jobs, exec: exec, monitor: monitor, cfg: cfg}
	for _, t := range AllJobTypes {
		jobs.Register(string(t), w.handle)
	}
	return w
}

// Run consumes both queues until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	return w.jobs.Start(ctx)
}

// handle processes one delivery from either queue.
//
// Main-queue failures are a hand-off, not an error: the job reappears in
// the retry queue with a traceable id and the main entry completes, so the
// main FIFO is never blocked behind a doomed retry sequence. Retry-queue
// failures propagate so the queue's own backoff machinery advances them.
func (w *Worker) handle(ctx context.Context, job *jobx.JobInfo) ([]byte, error) {
	result, err := w.exec.Execute(ctx, JobType(job.Type), job.Payload)
	if err == nil {
		logx.WithFields(logx.Fields{
			"job_id": job.ID,
			"type":   job.Type,
			"queue":  job.Queue,
			"tx":     result.TxHash,
		}).Info("relay: transaction processed")
		return json.Marshal(result)
	}

	if isConfirmationTimeout(err) {
		// The transaction was broadcast and may still be mined. Submitting
		// it again could move funds twice, so the entry fails in place
		// instead of being handed off or recycled for re-submission.
		logx.WithFields(logx.Fields{
			"job_id": job.ID,
			"type":   job.Type,
			"queue":  job.Queue,
		}).Error("relay: confirmation timed out, not re-submitting")
		return nil, fmt.Errorf("%w: %w", jobx.SkipRetry, err)
	}

	if job.Queue != w.cfg.Queues.Main {
		// Retry queue: let the attempt/backoff machinery advance the job.
		return nil, err
	}

	retryJob := jobx.Job{
		ID:          "retry-" + job.ID,
		Type:        job.Type,
		Queue:       w.cfg.Queues.Retry,
		Payload:     job.Payload,
		MaxAttempts: w.cfg.RetryMaxAttempts,
	}

	retryID, enqErr := w.jobs.EnqueueDelayed(ctx, retryJob, w.cfg.RetryInitialDelay)
	if enqErr != nil {
		// The hand-off itself failed; surface the original error so the
		// entry is marked failed rather than silently dropped.
		logx.WithError(enqErr).Errorf("relay: retry hand-off failed for job %s", job.ID)
		return nil, err
	}

	logx.WithFields(logx.Fields{
		"job_id":   job.ID,
		"retry_id": retryID,
		"type":     job.Type,
		"delay":    w.cfg.RetryInitialDelay.String(),
	}).Warn("relay: job handed off to retry queue")

	if w.monitor != nil {
		w.monitor.RecordHandoff(job.Queue, job.ID, job.Type, err.Error())
	}

	return nil, nil
}
