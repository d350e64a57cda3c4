// Package health provides system health monitoring and status reporting.
package health

import (
	"github.com/vietddude/recourse/internal/core/domain"
)

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// QueueHealth contains task queue depth per status.
type QueueHealth struct {
	Status     SystemStatus `json:"status"`
	Pending    int          `json:"pending"`
	Processing int          `json:"processing"`
	Completed  int          `json:"completed"`
	Failed     int          `json:"failed"`
}

// Report contains the full system health report.
type Report struct {
	SystemStatus SystemStatus            `json:"system_status"`
	Queue        QueueHealth             `json:"queue"`
	Audit        *domain.AuditStatistics `json:"audit"`
}
