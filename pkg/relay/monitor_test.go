package relay

import (
	"context"
	"testing"
	"time"

	"github.com/raffleport/relay/pkg/jobx"
)

// stubInspector serves canned depths per queue.
type stubInspector struct {
	counts map[string]jobx.QueueCounts
}

func (s *stubInspector) Counts(_ context.Context, queue string) (jobx.QueueCounts, error) {
	return s.counts[queue], nil
}

// chanAlertSink signals each alert on a channel.
type chanAlertSink struct {
	alerts chan string
}

func (s *chanAlertSink) Alert(_ context.Context, subject, body string) error {
	s.alerts <- subject
	return nil
}

func newTestMonitor(counts map[string]jobx.QueueCounts, alerts AlertSink) *Monitor {
	if counts == nil {
		counts = map[string]jobx.QueueCounts{
			testQueues.Main:  {Active: 1},
			testQueues.Retry: {},
		}
	}
	return NewMonitor(&stubInspector{counts: counts}, testQueues, alerts)
}

func observeN(m *Monitor, event jobx.Event, n int) {
	for i := 0; i < n; i++ {
		m.observe(context.Background(), event)
	}
}

func TestMonitor_SnapshotHealthyBaseline(t *testing.T) {
	m := newTestMonitor(nil, nil)
	observeN(m, jobx.Event{Type: jobx.EventCompleted, Queue: testQueues.Main}, 5)

	snapshot, err := m.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snapshot.Status != HealthHealthy {
		t.Fatalf("status = %s (%v), want healthy", snapshot.Status, snapshot.Issues)
	}
	if snapshot.Queues[testQueues.Main].Completed != 5 {
		t.Fatalf("completed = %d, want 5", snapshot.Queues[testQueues.Main].Completed)
	}
}

func TestMonitor_FailureRateBoundaryIsExclusive(t *testing.T) {
	m := newTestMonitor(nil, nil)
	observeN(m, jobx.Event{Type: jobx.EventCompleted, Queue: testQueues.Main}, 9)
	observeN(m, jobx.Event{Type: jobx.EventFailed, Queue: testQueues.Main, JobID: "j1", Error: "reverted"}, 1)

	// 1 of 10 is exactly 10%: still healthy.
	snapshot, err := m.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snapshot.FailureRatePct != 10.0 {
		t.Fatalf("rate = %v, want 10.0", snapshot.FailureRatePct)
	}
	if snapshot.Status != HealthHealthy {
		t.Fatalf("status at exactly 10%% = %s, want healthy", snapshot.Status)
	}

	// One more failure pushes the rate over the line.
	observeN(m, jobx.Event{Type: jobx.EventFailed, Queue: testQueues.Main, JobID: "j2", Error: "reverted"}, 1)
	snapshot, _ = m.Snapshot(context.Background())
	if snapshot.Status != HealthWarning {
		t.Fatalf("status above 10%% = %s, want warning", snapshot.Status)
	}
}

func TestMonitor_HandoffsExcludedFromFailureRate(t *testing.T) {
	m := newTestMonitor(nil, nil)
	observeN(m, jobx.Event{Type: jobx.EventCompleted, Queue: testQueues.Main}, 1)
	for i := 0; i < 5; i++ {
		m.RecordHandoff(testQueues.Main, "j", string(JobExecuteRaffle), "rpc unavailable")
	}

	snapshot, err := m.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snapshot.FailureRatePct != 0 {
		t.Fatalf("rate = %v, want 0 with only hand-offs", snapshot.FailureRatePct)
	}
	if snapshot.Queues[testQueues.Main].HandedOff != 5 {
		t.Fatalf("handedOff = %d, want 5", snapshot.Queues[testQueues.Main].HandedOff)
	}
}

func TestMonitor_BacklogBoundaryIsExclusive(t *testing.T) {
	counts := map[string]jobx.QueueCounts{
		testQueues.Main:  {Waiting: 60, Active: 1},
		testQueues.Retry: {Delayed: 40},
	}
	m := newTestMonitor(counts, nil)

	snapshot, err := m.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snapshot.Backlog != 100 {
		t.Fatalf("backlog = %d, want 100", snapshot.Backlog)
	}
	if snapshot.Status != HealthHealthy {
		t.Fatalf("status at backlog 100 = %s, want healthy", snapshot.Status)
	}

	counts[testQueues.Retry] = jobx.QueueCounts{Delayed: 41}
	snapshot, _ = m.Snapshot(context.Background())
	if snapshot.Status != HealthWarning {
		t.Fatalf("status at backlog 101 = %s, want warning", snapshot.Status)
	}
}

func TestMonitor_ExcessiveStallsAreCritical(t *testing.T) {
	m := newTestMonitor(nil, nil)
	observeN(m, jobx.Event{Type: jobx.EventStalled, Queue: testQueues.Main, JobID: "j"}, 5)

	snapshot, _ := m.Snapshot(context.Background())
	if snapshot.Status != HealthHealthy {
		t.Fatalf("status at 5 stalls = %s, want healthy", snapshot.Status)
	}

	observeN(m, jobx.Event{Type: jobx.EventStalled, Queue: testQueues.Main, JobID: "j"}, 1)
	snapshot, _ = m.Snapshot(context.Background())
	if snapshot.Status != HealthCritical {
		t.Fatalf("status at 6 stalls = %s, want critical", snapshot.Status)
	}
}

func TestMonitor_WaitingWithNoActiveWorkerIsCritical(t *testing.T) {
	counts := map[string]jobx.QueueCounts{
		testQueues.Main:  {Waiting: 3},
		testQueues.Retry: {},
	}
	m := newTestMonitor(counts, nil)

	snapshot, err := m.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snapshot.Status != HealthCritical {
		t.Fatalf("status = %s, want critical when jobs wait with no worker", snapshot.Status)
	}
}

func TestMonitor_RecordsLastFailure(t *testing.T) {
	m := newTestMonitor(nil, nil)
	m.observe(context.Background(), jobx.Event{
		Type:    jobx.EventFailed,
		Queue:   testQueues.Main,
		JobID:   "j7",
		JobType: string(JobCancelRaffle),
		Error:   "reverted",
		At:      time.Now().UTC(),
	})

	snapshot, _ := m.Snapshot(context.Background())
	if snapshot.LastFailure == nil {
		t.Fatal("last failure not recorded")
	}
	if snapshot.LastFailure.JobID != "j7" || snapshot.LastFailure.Error != "reverted" {
		t.Fatalf("last failure = %+v", snapshot.LastFailure)
	}
}

func TestMonitor_RetryExhaustionFiresAlert(t *testing.T) {
	sink := &chanAlertSink{alerts: make(chan string, 1)}
	m := newTestMonitor(nil, sink)

	m.observe(context.Background(), jobx.Event{
		Type:     jobx.EventFailed,
		Queue:    testQueues.Retry,
		JobID:    "retry-j1",
		JobType:  string(JobExecuteRaffle),
		Attempts: 3,
		Error:    "rpc unavailable",
	})

	select {
	case subject := <-sink.alerts:
		if subject == "" {
			t.Fatal("empty alert subject")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("exhaustion alert never fired")
	}
}

func TestMonitor_MainQueueFailureDoesNotAlert(t *testing.T) {
	sink := &chanAlertSink{alerts: make(chan string, 1)}
	m := newTestMonitor(nil, sink)

	m.observe(context.Background(), jobx.Event{
		Type:  jobx.EventFailed,
		Queue: testQueues.Main,
		JobID: "j1",
		Error: "reverted",
	})

	select {
	case <-sink.alerts:
		t.Fatal("main-queue failure must not fire the exhaustion alert")
	case <-time.After(100 * time.Millisecond):
	}
}
