// Package policy holds the pure escalation decision rules. No storage, no
// clock: callers pass the claim's current level and the whole days elapsed
// since the claim was submitted.
package policy

import (
	"github.com/vietddude/recourse/internal/core/domain"
)

// Default silence thresholds, in whole days.
const (
	StatusRequestAfterDays = 7
	WarningAfterDays       = 14
	FormalNoticeAfterDays  = 21
)

// Thresholds configures the silence windows per escalation stage.
type Thresholds struct {
	StatusRequest int
	Warning       int
	FormalNotice  int
}

// DefaultThresholds returns the standard 7/14/21 day windows.
func DefaultThresholds() Thresholds {
	return Thresholds{
		StatusRequest: StatusRequestAfterDays,
		Warning:       WarningAfterDays,
		FormalNotice:  FormalNoticeAfterDays,
	}
}

// Action is one escalation decision: the level to move to and the task type
// that realizes it.
type Action struct {
	Level    domain.EscalationLevel
	TaskType string
}

// Task types realizing each escalation stage.
const (
	TaskStatusRequest = "escalation_status_request"
	TaskWarning       = "escalation_warning"
	TaskFormalNotice  = "escalation_formal_notice"
)

// NextAction decides the escalation step for a claim at currentLevel,
// daysSinceSubmission days after it was filed. Rules are evaluated highest
// first and the first match wins, so a claim far past several thresholds
// jumps straight to the strongest applicable stage rather than walking
// through each one. Returns (Action{}, false) when no step is due.
func (t Thresholds) NextAction(currentLevel domain.EscalationLevel, daysSinceSubmission int) (Action, bool) {
	switch {
	case daysSinceSubmission >= t.FormalNotice && currentLevel < domain.LevelFormalNotice:
		return Action{Level: domain.LevelFormalNotice, TaskType: TaskFormalNotice}, true
	case daysSinceSubmission >= t.Warning && currentLevel < domain.LevelWarning:
		return Action{Level: domain.LevelWarning, TaskType: TaskWarning}, true
	case daysSinceSubmission >= t.StatusRequest && currentLevel < domain.LevelStatusRequest:
		return Action{Level: domain.LevelStatusRequest, TaskType: TaskStatusRequest}, true
	}
	return Action{}, false
}
