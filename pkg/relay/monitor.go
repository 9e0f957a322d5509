package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/raffleport/relay/pkg/asyncx"
	"github.com/raffleport/relay/pkg/jobx"
	"github.com/raffleport/relay/pkg/logx"
)

// Health classification thresholds.
const (
	// warnFailureRatePct triggers a warning when exceeded (exclusive:
	// exactly this rate is still healthy).
	warnFailureRatePct = 10.0
	// warnBacklog triggers a warning when waiting+delayed exceeds it.
	warnBacklog = 100
	// criticalStalled triggers critical when stall recoveries exceed it.
	criticalStalled = 5
)

// HealthStatus is the derived queue-pair health classification.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthWarning  HealthStatus = "warning"
	HealthCritical HealthStatus = "critical"
)

// FailureRecord describes the most recent terminal failure.
type FailureRecord struct {
	Queue   string    `json:"queue"`
	JobID   string    `json:"jobId"`
	JobType string    `json:"jobType,omitempty"`
	Error   string    `json:"error"`
	At      time.Time `json:"at"`
}

// QueueStats merges live backend depths with process-local counters for
// one queue.
type QueueStats struct {
	Waiting   int64 `json:"waiting"`
	Delayed   int64 `json:"delayed"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	HandedOff int64 `json:"handedOff"`
	Stalled   int64 `json:"stalled"`
}

// HealthSnapshot is a point-in-time projection over the queue backend and
// the monitor's counters. It is recomputed on demand and never persisted.
type HealthSnapshot struct {
	Status         HealthStatus          `json:"status"`
	Issues         []string              `json:"issues,omitempty"`
	Queues         map[string]QueueStats `json:"queues"`
	FailureRatePct float64               `json:"failureRatePct"`
	Backlog        int64                 `json:"backlog"`
	LastFailure    *FailureRecord        `json:"lastFailure,omitempty"`
	GeneratedAt    time.Time             `json:"generatedAt"`
}

// AlertSink receives terminal-failure notifications. Implementations must
// not block; the monitor fires them asynchronously regardless.
type AlertSink interface {
	Alert(ctx context.Context, subject, body string) error
}

// counters hold one queue's process-local tallies. They only increase
// within a process lifetime.
type counters struct {
	completed int64
	failed    int64
	handedOff int64
	stalled   int64
}

// Monitor passively observes queue lifecycle events and serves health
// snapshots. It never mutates queue state.
type Monitor struct {
	inspector jobx.QueueInspector
	queues    QueueNames
	alerts    AlertSink

	mu          sync.Mutex
	byQueue     map[string]*counters
	lastFailure *FailureRecord
}

// NewMonitor creates a monitor over the queue pair. alerts may be nil.
func NewMonitor(inspector jobx.QueueInspector, queues QueueNames, alerts AlertSink) *Monitor {
	return &Monitor{
		inspector: inspector,
		queues:    queues,
		alerts:    alerts,
		byQueue: map[string]*counters{
			queues.Main:  {},
			queues.Retry: {},
		},
	}
}

// Run consumes lifecycle events until ctx is cancelled or the channel
// closes.
func (m *Monitor) Run(ctx context.Context, events <-chan jobx.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			m.observe(ctx, event)
		}
	}
}

func (m *Monitor) observe(ctx context.Context, event jobx.Event) {
	m.mu.Lock()
	c := m.byQueue[event.Queue]
	if c == nil {
		c = &counters{}
		m.byQueue[event.Queue] = c
	}

	switch event.Type {
	case jobx.EventCompleted:
		c.completed++
	case jobx.EventStalled:
		c.stalled++
	case jobx.EventFailed:
		c.failed++
		m.lastFailure = &FailureRecord{
			Queue:   event.Queue,
			JobID:   event.JobID,
			JobType: event.JobType,
			Error:   event.Error,
			At:      event.At,
		}
	}
	m.mu.Unlock()

	// A terminal failure in the retry queue means the bounded retry
	// sequence is exhausted: the loudest condition this process reports.
	if event.Type == jobx.EventFailed && event.Queue == m.queues.Retry {
		exhausted := relayErrors.New(ErrRetryExhausted).
			WithDetail("job_id", event.JobID).
			WithDetail("job_type", event.JobType).
			WithDetail("attempts", event.Attempts)
		logx.WithError(exhausted).WithFields(logx.Fields{
			"job_id": event.JobID,
			"type":   event.JobType,
		}).Error("relay: retry attempts exhausted, manual intervention required")

		if m.alerts != nil {
			subject := fmt.Sprintf("relay: job %s exhausted its retries", event.JobID)
			body := fmt.Sprintf("job %s (type %s) failed terminally after %d attempts: %s",
				event.JobID, event.JobType, event.Attempts, event.Error)
			asyncx.DoCtx(ctx, func(ctx context.Context) {
				if err := m.alerts.Alert(ctx, subject, body); err != nil {
					logx.WithError(err).Warn("relay: failed to deliver exhaustion alert")
				}
			})
		}
	}
}

// RecordHandoff counts a main-to-retry hand-off. Hand-offs complete the
// main entry, so they are tracked separately to keep failure metrics
// honest.
func (m *Monitor) RecordHandoff(queue, jobID, jobType, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.byQueue[queue]
	if c == nil {
		c = &counters{}
		m.byQueue[queue] = c
	}
	c.handedOff++
}

// Snapshot computes the current health projection.
func (m *Monitor) Snapshot(ctx context.Context) (*HealthSnapshot, error) {
	snapshot := &HealthSnapshot{
		Queues:      make(map[string]QueueStats, 2),
		GeneratedAt: time.Now().UTC(),
	}

	var totalCompleted, totalFailed, totalStalled int64
	var waiting, delayed, active int64

	for _, queue := range []string{m.queues.Main, m.queues.Retry} {
		counts, err := m.inspector.Counts(ctx, queue)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		c := m.byQueue[queue]
		if c == nil {
			c = &counters{}
		}
		stats := QueueStats{
			Waiting:   counts.Waiting,
			Delayed:   counts.Delayed,
			Active:    counts.Active,
			Completed: c.completed,
			Failed:    c.failed,
			HandedOff: c.handedOff,
			Stalled:   c.stalled,
		}
		m.mu.Unlock()

		snapshot.Queues[queue] = stats
		totalCompleted += stats.Completed
		totalFailed += stats.Failed
		totalStalled += stats.Stalled
		waiting += stats.Waiting
		delayed += stats.Delayed
		active += stats.Active
	}

	m.mu.Lock()
	snapshot.LastFailure = m.lastFailure
	m.mu.Unlock()

	snapshot.Backlog = waiting + delayed
	if observed := totalCompleted + totalFailed; observed > 0 {
		snapshot.FailureRatePct = float64(totalFailed) / float64(observed) * 100
	}

	snapshot.Status = HealthHealthy
	warn := func(issue string) {
		snapshot.Issues = append(snapshot.Issues, issue)
		if snapshot.Status == HealthHealthy {
			snapshot.Status = HealthWarning
		}
	}
	critical := func(issue string) {
		snapshot.Issues = append(snapshot.Issues, issue)
		snapshot.Status = HealthCritical
	}

	if snapshot.FailureRatePct > warnFailureRatePct {
		warn(fmt.Sprintf("High failure rate: %.2f%%", snapshot.FailureRatePct))
	}
	if snapshot.Backlog > warnBacklog {
		warn(fmt.Sprintf("Large backlog: %d jobs waiting or delayed", snapshot.Backlog))
	}
	if totalStalled > criticalStalled {
		critical(fmt.Sprintf("Excessive stalled jobs: %d", totalStalled))
	}
	if active == 0 && waiting > 0 {
		critical("Jobs waiting with no active worker")
	}

	return snapshot, nil
}
