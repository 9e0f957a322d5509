package relay

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/raffleport/relay/pkg/chain"
	"github.com/raffleport/relay/pkg/errx"
	"github.com/raffleport/relay/pkg/jobx"
)

func confirmationTimeoutErr() error {
	return &errx.Error{
		Code:       chain.ErrConfirmationTimeout.Code,
		Message:    "Timed out waiting for confirmation",
		Type:       errx.TypeExternal,
		HTTPStatus: 504,
	}
}

// stubQueue records enqueues; the processing side is never exercised here.
type stubQueue struct {
	delayedJobs  []jobx.Job
	delayedWaits []time.Duration
	enqueueErr   error
}

func (q *stubQueue) Enqueue(_ context.Context, job jobx.Job) (string, error) {
	return job.ID, q.enqueueErr
}

func (q *stubQueue) EnqueueDelayed(_ context.Context, job jobx.Job, delay time.Duration) (string, error) {
	if q.enqueueErr != nil {
		return "", q.enqueueErr
	}
	q.delayedJobs = append(q.delayedJobs, job)
	q.delayedWaits = append(q.delayedWaits, delay)
	return job.ID, nil
}

func (q *stubQueue) GetJob(context.Context, string) (*jobx.JobInfo, error) {
	return nil, errors.New("not found")
}

func (q *stubQueue) Dequeue(context.Context, []string, time.Duration, time.Duration) (*jobx.JobInfo, error) {
	return nil, nil
}

func (q *stubQueue) Heartbeat(context.Context, string, time.Duration) error { return nil }

func (q *stubQueue) Complete(context.Context, string, []byte) error { return nil }

func (q *stubQueue) Fail(context.Context, string, string, bool) (bool, error) { return false, nil }

func (q *stubQueue) Retry(context.Context, string, time.Duration) error { return nil }

func (q *stubQueue) PromoteScheduled(context.Context, []string) error { return nil }

func (q *stubQueue) RecoverStalled(context.Context, []string) ([]string, []string, error) {
	return nil, nil, nil
}

func (q *stubQueue) Counts(context.Context, string) (jobx.QueueCounts, error) {
	return jobx.QueueCounts{}, nil
}

// stubSubmitter fails or succeeds every call.
type stubSubmitter struct {
	err error
}

func (s *stubSubmitter) Submit(_ context.Context, method string, args []interface{}, opts chain.SubmitOptions) (*chain.TxResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &chain.TxResult{Hash: "0xfeed", Confirmed: true}, nil
}

var testQueues = QueueNames{Main: "main", Retry: "main-retry"}

func newTestWorker(queue *stubQueue, submitErr error) (*Worker, *Monitor) {
	jobs := jobx.NewClient(queue, jobx.WithQueues(testQueues.Main, testQueues.Retry))
	exec := NewExecutor(&stubSubmitter{err: submitErr}, ExecutorConfig{TokenDecimals: 6})
	monitor := NewMonitor(queue, testQueues, nil)
	worker := NewWorker(jobs, exec, monitor, WorkerConfig{
		Queues:            testQueues,
		RetryInitialDelay: 5 * time.Second,
		RetryMaxAttempts:  3,
	})
	return worker, monitor
}

func TestWorker_SuccessReturnsResult(t *testing.T) {
	worker, _ := newTestWorker(&stubQueue{}, nil)

	result, err := worker.handle(context.Background(), &jobx.JobInfo{
		ID:    "job-1",
		Type:  string(JobPause),
		Queue: testQueues.Main,
	})
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	var decoded Result
	if err := json.Unmarshal(result, &decoded); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if decoded.TxHash != "0xfeed" || !decoded.Confirmed {
		t.Fatalf("result = %+v", decoded)
	}
}

func TestWorker_MainFailureHandsOffToRetryQueue(t *testing.T) {
	queue := &stubQueue{}
	worker, monitor := newTestWorker(queue, errors.New("rpc unavailable"))

	payload := json.RawMessage(`{"raffleId":"9"}`)
	result, err := worker.handle(context.Background(), &jobx.JobInfo{
		ID:      "job-1",
		Type:    string(JobExecuteRaffle),
		Queue:   testQueues.Main,
		Payload: payload,
	})

	// Hand-off completes the main entry: no error, no result.
	if err != nil {
		t.Fatalf("hand-off should swallow the failure, got %v", err)
	}
	if result != nil {
		t.Fatalf("unexpected result %s", result)
	}

	if len(queue.delayedJobs) != 1 {
		t.Fatalf("retry enqueues = %d, want 1", len(queue.delayedJobs))
	}
	retry := queue.delayedJobs[0]
	if retry.ID != "retry-job-1" {
		t.Fatalf("retry id = %q, want retry-job-1", retry.ID)
	}
	if retry.Queue != testQueues.Retry {
		t.Fatalf("retry queue = %q, want %q", retry.Queue, testQueues.Retry)
	}
	if retry.MaxAttempts != 3 {
		t.Fatalf("retry max attempts = %d, want 3", retry.MaxAttempts)
	}
	if string(retry.Payload) != string(payload) {
		t.Fatalf("retry payload = %s, want original payload", retry.Payload)
	}
	if queue.delayedWaits[0] != 5*time.Second {
		t.Fatalf("retry delay = %v, want 5s", queue.delayedWaits[0])
	}

	monitor.mu.Lock()
	handedOff := monitor.byQueue[testQueues.Main].handedOff
	monitor.mu.Unlock()
	if handedOff != 1 {
		t.Fatalf("handed-off counter = %d, want 1", handedOff)
	}
}

func TestWorker_RetryQueueFailurePropagates(t *testing.T) {
	queue := &stubQueue{}
	worker, _ := newTestWorker(queue, errors.New("still failing"))

	_, err := worker.handle(context.Background(), &jobx.JobInfo{
		ID:      "retry-job-1",
		Type:    string(JobExecuteRaffle),
		Queue:   testQueues.Retry,
		Payload: json.RawMessage(`{"raffleId":"9"}`),
	})
	if err == nil {
		t.Fatal("retry-queue failure must propagate to the attempt machinery")
	}
	if len(queue.delayedJobs) != 0 {
		t.Fatal("retry-queue failure must not enqueue another hand-off")
	}
}

func TestWorker_ConfirmationTimeoutFailsInPlace(t *testing.T) {
	queue := &stubQueue{}
	worker, _ := newTestWorker(queue, confirmationTimeoutErr())

	_, err := worker.handle(context.Background(), &jobx.JobInfo{
		ID:      "job-1",
		Type:    string(JobExecuteRefund),
		Queue:   testQueues.Main,
		Payload: json.RawMessage(`{"raffleId":"9"}`),
	})

	// The broadcast tx may still be mined; re-submitting it could move
	// funds twice, so there must be no hand-off.
	if err == nil {
		t.Fatal("confirmation timeout must fail the main entry")
	}
	if len(queue.delayedJobs) != 0 {
		t.Fatalf("retry enqueues = %d, want none for a pending tx", len(queue.delayedJobs))
	}
	if !errors.Is(err, jobx.SkipRetry) {
		t.Fatalf("err = %v, want it marked terminal", err)
	}
	var coded *errx.Error
	if !errx.As(err, &coded) || coded.Code != chain.ErrConfirmationTimeout.Code {
		t.Fatalf("err = %v, want the timeout code preserved", err)
	}
}

func TestWorker_ConfirmationTimeoutOnRetryQueueIsTerminal(t *testing.T) {
	queue := &stubQueue{}
	worker, _ := newTestWorker(queue, confirmationTimeoutErr())

	_, err := worker.handle(context.Background(), &jobx.JobInfo{
		ID:      "retry-job-1",
		Type:    string(JobExecuteRefund),
		Queue:   testQueues.Retry,
		Payload: json.RawMessage(`{"raffleId":"9"}`),
	})
	if !errors.Is(err, jobx.SkipRetry) {
		t.Fatalf("err = %v, want terminal failure instead of a backoff recycle", err)
	}
	if len(queue.delayedJobs) != 0 {
		t.Fatal("confirmation timeout must never enqueue another submission")
	}
}

func TestWorker_HandOffEnqueueFailureSurfacesOriginalError(t *testing.T) {
	queue := &stubQueue{enqueueErr: errors.New("redis down")}
	worker, _ := newTestWorker(queue, errors.New("rpc unavailable"))

	_, err := worker.handle(context.Background(), &jobx.JobInfo{
		ID:      "job-1",
		Type:    string(JobExecuteRaffle),
		Queue:   testQueues.Main,
		Payload: json.RawMessage(`{"raffleId":"9"}`),
	})
	if err == nil {
		t.Fatal("failed hand-off must fail the main entry")
	}
	if err.Error() == "redis down" {
		t.Fatal("want the execution error surfaced, not the enqueue error")
	}
}
