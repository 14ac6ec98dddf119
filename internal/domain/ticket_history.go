package domain

import "time"

// TicketHistory is an immutable status transition entry.
type TicketHistory struct {
	ID             int64
	TicketID       int64
	PreviousStatus *TicketStatus
	NewStatus      TicketStatus
	Responsible    string
	Notes          *string
	ChangedAt      time.Time
}
