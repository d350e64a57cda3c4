package health

import (
	"context"

	"github.com/vietddude/recourse/internal/core/domain"
	"github.com/vietddude/recourse/internal/escalation/audit"
	"github.com/vietddude/recourse/internal/queue"
)

// Thresholds for queue degradation. A growing pending backlog means the
// scheduled pass cannot keep up; failed tasks mean escalations are being
// dropped after retry exhaustion.
const (
	degradedPendingBacklog = 500
	criticalFailedTasks    = 1
)

// Monitor assembles the health report from the queue and the audit ledger.
type Monitor struct {
	queue *queue.Queue
	audit *audit.Log
}

func NewMonitor(q *queue.Queue, a *audit.Log) *Monitor {
	return &Monitor{queue: q, audit: a}
}

// CheckHealth builds the current report. Queue storage being unreachable is
// critical; ledger reads fail open inside the audit layer and never worsen
// the status.
func (m *Monitor) CheckHealth(ctx context.Context) Report {
	report := Report{
		SystemStatus: StatusHealthy,
		Audit:        m.audit.Statistics(ctx),
	}

	counts, err := m.queue.Stats(ctx)
	if err != nil {
		report.SystemStatus = StatusCritical
		report.Queue = QueueHealth{Status: StatusCritical}
		return report
	}

	report.Queue = QueueHealth{
		Status:     StatusHealthy,
		Pending:    counts[domain.TaskStatusPending],
		Processing: counts[domain.TaskStatusProcessing],
		Completed:  counts[domain.TaskStatusCompleted],
		Failed:     counts[domain.TaskStatusFailed],
	}

	if report.Queue.Failed >= criticalFailedTasks || report.Queue.Pending >= degradedPendingBacklog {
		report.Queue.Status = StatusDegraded
		report.SystemStatus = StatusDegraded
	}
	return report
}
