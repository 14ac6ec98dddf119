package domain

import "time"

// SLARule maps a problem type to its priority label and hour allowance.
type SLARule struct {
	ID          int64
	ProblemType ProblemType
	Priority    TicketPriority
	Hours       int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Allowance returns the time allowed between opening and resolution.
func (r SLARule) Allowance() time.Duration {
	return time.Duration(r.Hours) * time.Hour
}

// SLAState classifies time remaining until a ticket's deadline.
type SLAState string

const (
	SLAStateUnknown  SLAState = "unknown"
	SLAStateViolated SLAState = "violated"
	SLAStateCritical SLAState = "critical"
	SLAStateWarning  SLAState = "warning"
	SLAStateOK       SLAState = "ok"
)

// SLAStatus is the evaluated deadline state of one ticket.
type SLAStatus struct {
	State          SLAState
	Message        string
	HoursRemaining *float64
}
