package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen          TicketStatus = "aberto"
	TicketStatusInAnalysis    TicketStatus = "em_analise"
	TicketStatusAwaitingPart  TicketStatus = "aguardando_peca"
	TicketStatusInMaintenance TicketStatus = "em_manutencao"
	TicketStatusResolved      TicketStatus = "resolvido"
	TicketStatusCancelled     TicketStatus = "cancelado"
)

// TicketStatuses lists every status in lifecycle order.
var TicketStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusInAnalysis,
	TicketStatusAwaitingPart,
	TicketStatusInMaintenance,
	TicketStatusResolved,
	TicketStatusCancelled,
}

// Valid reports whether s is one of the known statuses.
func (s TicketStatus) Valid() bool {
	for _, candidate := range TicketStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Closed reports whether the ticket no longer counts against its SLA.
func (s TicketStatus) Closed() bool {
	return s == TicketStatusResolved || s == TicketStatusCancelled
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "baixa"
	TicketPriorityMedium   TicketPriority = "media"
	TicketPriorityHigh     TicketPriority = "alta"
	TicketPriorityCritical TicketPriority = "critica"
)

var TicketPriorities = []TicketPriority{
	TicketPriorityLow,
	TicketPriorityMedium,
	TicketPriorityHigh,
	TicketPriorityCritical,
}

func (p TicketPriority) Valid() bool {
	for _, candidate := range TicketPriorities {
		if candidate == p {
			return true
		}
	}
	return false
}

// ProblemType is the closed set of reported Chromebook faults.
type ProblemType string

const (
	ProblemNoPower        ProblemType = "nao_liga"
	ProblemBrokenScreen   ProblemType = "tela_quebrada"
	ProblemNoImage        ProblemType = "tela_sem_imagem"
	ProblemKeyboard       ProblemType = "teclado_defeito"
	ProblemTouchpad       ProblemType = "touchpad_defeito"
	ProblemBattery        ProblemType = "problema_bateria"
	ProblemCharger        ProblemType = "problema_carregador"
	ProblemSystemFreezing ProblemType = "sistema_travando"
	ProblemWifi           ProblemType = "wifi_nao_conecta"
	ProblemOther          ProblemType = "outro"
)

var ProblemTypes = []ProblemType{
	ProblemNoPower,
	ProblemBrokenScreen,
	ProblemNoImage,
	ProblemKeyboard,
	ProblemTouchpad,
	ProblemBattery,
	ProblemCharger,
	ProblemSystemFreezing,
	ProblemWifi,
	ProblemOther,
}

func (p ProblemType) Valid() bool {
	for _, candidate := range ProblemTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// problemPriority is the fixed priority table applied at creation. It is
// intentionally independent of the priority column stored on SLA rules.
var problemPriority = map[ProblemType]TicketPriority{
	ProblemNoPower:      TicketPriorityCritical,
	ProblemBrokenScreen: TicketPriorityHigh,
	ProblemNoImage:      TicketPriorityHigh,
	ProblemWifi:         TicketPriorityMedium,
}

// PriorityFor returns the priority assigned to new tickets of the given type.
func PriorityFor(p ProblemType) TicketPriority {
	if priority, ok := problemPriority[p]; ok {
		return priority
	}
	return TicketPriorityMedium
}

// Ticket is a reported hardware fault with its lifecycle and SLA state.
type Ticket struct {
	ID                int64
	Number            string
	Requester         string
	Email             *string
	SchoolUnit        string
	AssetTag          string
	SerialNumber      *string
	ProblemType       ProblemType
	Description       string
	Priority          TicketPriority
	Status            TicketStatus
	OpenedAt          time.Time
	ResolvedAt        *time.Time
	Responsible       *string
	ResolutionNotes   *string
	SLAViolated       bool
	SLADeadline       *time.Time
	ResolutionMinutes *int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

const ticketNumberPrefix = "CH-"

// FormatTicketNumber renders a sequence as CH-0001.
func FormatTicketNumber(seq int) string {
	return fmt.Sprintf("%s%04d", ticketNumberPrefix, seq)
}

// ParseTicketNumber extracts the numeric suffix; malformed numbers yield 0.
func ParseTicketNumber(number string) int {
	suffix, ok := strings.CutPrefix(number, ticketNumberPrefix)
	if !ok {
		return 0
	}
	seq, err := strconv.Atoi(suffix)
	if err != nil || seq < 0 {
		return 0
	}
	return seq
}

// NextTicketNumber returns the number following the highest existing one.
func NextTicketNumber(last string) string {
	return FormatTicketNumber(ParseTicketNumber(last) + 1)
}
