package events

import (
	"time"

	"github.com/edutech-ops/chromebook-helpdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventSLAViolated         EventType = "sla_violated"
	EventCriticalUnattended  EventType = "critical_unattended"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketNumber string                `json:"ticket_number"`
	ProblemType  domain.ProblemType    `json:"problem_type"`
	Priority     domain.TicketPriority `json:"priority"`
	SchoolUnit   string                `json:"school_unit"`
	SLADeadline  *time.Time            `json:"sla_deadline,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	TicketNumber string              `json:"ticket_number"`
	OldStatus    domain.TicketStatus `json:"old_status"`
	NewStatus    domain.TicketStatus `json:"new_status"`
	Responsible  string              `json:"responsible"`
}

// SLAViolatedPayload is emitted once, when a deadline is first seen as passed.
type SLAViolatedPayload struct {
	TicketNumber string             `json:"ticket_number"`
	Requester    string             `json:"requester"`
	SchoolUnit   string             `json:"school_unit"`
	ProblemType  domain.ProblemType `json:"problem_type"`
	OpenedAt     time.Time          `json:"opened_at"`
	Deadline     time.Time          `json:"deadline"`
}

// CriticalUnattendedPayload flags a critical ticket still open after the grace period.
type CriticalUnattendedPayload struct {
	TicketNumber string             `json:"ticket_number"`
	Requester    string             `json:"requester"`
	ProblemType  domain.ProblemType `json:"problem_type"`
	OpenedAt     time.Time          `json:"opened_at"`
	HoursOpen    int                `json:"hours_open"`
}
