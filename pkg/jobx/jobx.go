package jobx

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/raffleport/relay/pkg/logx"
)

// HandlerFunc processes one job attempt. The returned bytes are stored as
// the entry's result on success; a non-nil error advances the entry through
// the queue's retry/fail machinery.
type HandlerFunc func(ctx context.Context, job *JobInfo) ([]byte, error)

// SkipRetry marks a handler error as terminal. Wrap it into the returned
// error (checked with errors.Is) to fail the entry immediately even when
// attempts remain, for work that is unsafe to repeat.
var SkipRetry = errors.New("skip retry")

// JobEnqueuer enqueues jobs for processing.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, job Job) (string, error)
	EnqueueDelayed(ctx context.Context, job Job, delay time.Duration) (string, error)
}

// JobStatusReader reads job state.
type JobStatusReader interface {
	GetJob(ctx context.Context, jobID string) (*JobInfo, error)
}

// JobProcessor provides the backend operations the worker loop needs.
type JobProcessor interface {
	// Dequeue blocks up to timeout for a ready entry, acquires a
	// processing lease on it and increments its attempt counter.
	Dequeue(ctx context.Context, queues []string, timeout, lease time.Duration) (*JobInfo, error)

	// Heartbeat extends the processing lease of an active entry.
	Heartbeat(ctx context.Context, jobID string, lease time.Duration) error

	Complete(ctx context.Context, jobID string, result []byte) error

	// Fail records a failed attempt. It returns true when the entry has
	// attempts left and should be rescheduled; allowRetry false fails the
	// entry regardless of remaining attempts.
	Fail(ctx context.Context, jobID string, errMsg string, allowRetry bool) (retry bool, err error)

	// Retry schedules a failed entry for redelivery after delay.
	Retry(ctx context.Context, jobID string, delay time.Duration) error

	// PromoteScheduled moves delay-expired entries to the ready queue.
	PromoteScheduled(ctx context.Context, queues []string) error

	// RecoverStalled requeues lease-expired entries up to the backend's
	// recovery bound and abandons the rest. It returns the ids of
	// requeued and abandoned entries.
	RecoverStalled(ctx context.Context, queues []string) (requeued, abandoned []string, err error)
}

// QueueInspector reads live queue depths.
type QueueInspector interface {
	Counts(ctx context.Context, queue string) (QueueCounts, error)
}

// Queue combines all backend operations.
type Queue interface {
	JobEnqueuer
	JobStatusReader
	JobProcessor
	QueueInspector
}

// Client owns the worker loop over a Queue backend and fans queue lifecycle
// events out to subscribers.
type Client struct {
	queue       Queue
	opts        WorkerOptions
	handlers    map[string]HandlerFunc
	subscribers []chan Event
	mu          sync.RWMutex
	running     bool
}

// NewClient creates a processing client over the given backend.
func NewClient(queue Queue, options ...WorkerOption) *Client {
	opts := defaultWorkerOptions()
	for _, o := range options {
		o(&opts)
	}
	return &Client{
		queue:    queue,
		opts:     opts,
		handlers: make(map[string]HandlerFunc),
	}
}

// Register adds a handler for a job type.
func (c *Client) Register(jobType string, handler HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[jobType] = handler
}

// Enqueue admits a job for immediate processing and returns its id.
// It never blocks on the job's execution.
func (c *Client) Enqueue(ctx context.Context, job Job) (string, error) {
	return c.queue.Enqueue(ctx, normalize(job))
}

// EnqueueDelayed admits a job that becomes eligible after delay.
func (c *Client) EnqueueDelayed(ctx context.Context, job Job, delay time.Duration) (string, error) {
	return c.queue.EnqueueDelayed(ctx, normalize(job), delay)
}

func normalize(job Job) Job {
	if job.Queue == "" {
		job.Queue = "default"
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = 1
	}
	return job
}

// GetJob returns the current state of a queue entry.
func (c *Client) GetJob(ctx context.Context, jobID string) (*JobInfo, error) {
	return c.queue.GetJob(ctx, jobID)
}

// Counts returns the live depth of one queue.
func (c *Client) Counts(ctx context.Context, queue string) (QueueCounts, error) {
	return c.queue.Counts(ctx, queue)
}

// Start runs the scheduler and worker goroutines until ctx is cancelled,
// then drains in-flight jobs up to the shutdown timeout.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return jobxErrors.New(ErrAlreadyRunning)
	}
	c.running = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	logx.Infof("jobx: starting %d worker(s) on queues %v", c.opts.Concurrency, c.opts.Queues)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.schedulerLoop(ctx)
	}()

	for i := 0; i < c.opts.Concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c.workerLoop(ctx, id)
		}(i)
	}

	<-ctx.Done()
	logx.Info("jobx: shutting down workers...")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logx.Info("jobx: all workers stopped")
	case <-time.After(c.opts.ShutdownTimeout):
		logx.Warn("jobx: shutdown timed out, some jobs may not have completed")
	}

	return nil
}

// schedulerLoop promotes delay-expired entries and recovers stalled ones on
// every tick.
func (c *Client) schedulerLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.queue.PromoteScheduled(ctx, c.opts.Queues); err != nil {
				if ctx.Err() != nil {
					return
				}
				logx.WithError(err).Warn("jobx: failed to promote scheduled jobs")
				c.publish(Event{Type: EventError, Error: err.Error()})
			}

			for _, queue := range c.opts.Queues {
				requeued, abandoned, err := c.queue.RecoverStalled(ctx, []string{queue})
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					logx.WithError(err).Warn("jobx: failed to recover stalled jobs")
					c.publish(Event{Type: EventError, Queue: queue, Error: err.Error()})
					continue
				}
				for _, id := range requeued {
					logx.WithField("job_id", id).Warn("jobx: recovered stalled job")
					c.publish(Event{Type: EventStalled, Queue: queue, JobID: id})
				}
				for _, id := range abandoned {
					logx.WithField("job_id", id).Error("jobx: abandoned stalled job after recovery bound")
					c.publish(Event{Type: EventFailed, Queue: queue, JobID: id, Error: "stalled beyond recovery bound"})
				}
			}
		}
	}
}

func (c *Client) workerLoop(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := c.queue.Dequeue(ctx, c.opts.Queues, c.opts.DequeueTimeout, c.opts.LeaseDuration)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logx.WithError(err).Warnf("jobx: worker %d dequeue error", id)
			c.publish(Event{Type: EventError, Error: err.Error()})
			time.Sleep(c.opts.PollInterval)
			continue
		}
		if job == nil {
			continue
		}

		c.processJob(ctx, job)
	}
}

func (c *Client) processJob(ctx context.Context, job *JobInfo) {
	c.mu.RLock()
	handler, ok := c.handlers[job.Type]
	c.mu.RUnlock()

	if !ok {
		logx.Warnf("jobx: no handler for job type %q (id=%s)", job.Type, job.ID)
		_, _ = c.queue.Fail(ctx, job.ID, jobxErrors.New(ErrNoHandler).Error(), false)
		c.publish(Event{Type: EventFailed, Queue: job.Queue, JobID: job.ID, JobType: job.Type, Attempts: job.Attempts, Error: "no handler registered"})
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, c.opts.JobTimeout)
	defer cancel()

	// Renew the lease while the handler runs, so a healthy long-running
	// attempt is never mistaken for a stall.
	hbDone := make(chan struct{})
	go c.heartbeatLoop(jobCtx, job.ID, hbDone)

	result, err := handler(jobCtx, job)
	close(hbDone)

	if err != nil {
		logx.WithError(err).Warnf("jobx: job %s (type=%s, queue=%s, attempt=%d/%d) failed",
			job.ID, job.Type, job.Queue, job.Attempts, job.MaxAttempts)

		shouldRetry, failErr := c.queue.Fail(ctx, job.ID, err.Error(), !errors.Is(err, SkipRetry))
		if failErr != nil {
			logx.WithError(failErr).Errorf("jobx: failed to mark job %s as failed", job.ID)
			c.publish(Event{Type: EventError, Queue: job.Queue, JobID: job.ID, Error: failErr.Error()})
			return
		}

		if !shouldRetry {
			c.publish(Event{Type: EventFailed, Queue: job.Queue, JobID: job.ID, JobType: job.Type, Attempts: job.Attempts, Error: err.Error()})
			return
		}

		delay := c.opts.RetryBackoff.Delay(job.Attempts)
		if retryErr := c.queue.Retry(ctx, job.ID, delay); retryErr != nil {
			logx.WithError(retryErr).Errorf("jobx: failed to schedule retry for job %s", job.ID)
			c.publish(Event{Type: EventError, Queue: job.Queue, JobID: job.ID, Error: retryErr.Error()})
			return
		}
		logx.WithFields(logx.Fields{"job_id": job.ID, "delay": delay.String()}).Info("jobx: retry scheduled")
		c.publish(Event{Type: EventRetrying, Queue: job.Queue, JobID: job.ID, JobType: job.Type, Attempts: job.Attempts, Error: err.Error()})
		return
	}

	if err := c.queue.Complete(ctx, job.ID, result); err != nil {
		logx.WithError(err).Errorf("jobx: failed to complete job %s", job.ID)
		c.publish(Event{Type: EventError, Queue: job.Queue, JobID: job.ID, Error: err.Error()})
		return
	}
	c.publish(Event{Type: EventCompleted, Queue: job.Queue, JobID: job.ID, JobType: job.Type, Attempts: job.Attempts})
}

func (c *Client) heartbeatLoop(ctx context.Context, jobID string, done <-chan struct{}) {
	interval := c.opts.LeaseDuration / 3
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.queue.Heartbeat(ctx, jobID, c.opts.LeaseDuration); err != nil {
				logx.WithError(err).Warnf("jobx: heartbeat failed for job %s", jobID)
			}
		}
	}
}
