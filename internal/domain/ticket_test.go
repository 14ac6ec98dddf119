package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriorityFor(t *testing.T) {
	expected := map[ProblemType]TicketPriority{
		ProblemNoPower:        TicketPriorityCritical,
		ProblemBrokenScreen:   TicketPriorityHigh,
		ProblemNoImage:        TicketPriorityHigh,
		ProblemKeyboard:       TicketPriorityMedium,
		ProblemTouchpad:       TicketPriorityMedium,
		ProblemBattery:        TicketPriorityMedium,
		ProblemCharger:        TicketPriorityMedium,
		ProblemSystemFreezing: TicketPriorityMedium,
		ProblemWifi:           TicketPriorityMedium,
		ProblemOther:          TicketPriorityMedium,
	}
	assert.Len(t, expected, len(ProblemTypes))
	for problem, priority := range expected {
		assert.Equal(t, priority, PriorityFor(problem), string(problem))
	}
}

func TestTicketNumbers(t *testing.T) {
	assert.Equal(t, "CH-0001", FormatTicketNumber(1))
	assert.Equal(t, "CH-0042", FormatTicketNumber(42))
	assert.Equal(t, "CH-12345", FormatTicketNumber(12345))

	assert.Equal(t, 7, ParseTicketNumber("CH-0007"))
	assert.Equal(t, 0, ParseTicketNumber("XX-0007"))
	assert.Equal(t, 0, ParseTicketNumber("CH-abc"))

	assert.Equal(t, "CH-0001", NextTicketNumber(""))
	assert.Equal(t, "CH-0010", NextTicketNumber("CH-0009"))
	assert.Equal(t, "CH-10000", NextTicketNumber("CH-9999"))
}

func TestEnumsValidate(t *testing.T) {
	assert.True(t, TicketStatusAwaitingPart.Valid())
	assert.False(t, TicketStatus("fechado").Valid())
	assert.True(t, TicketPriorityLow.Valid())
	assert.False(t, TicketPriority("urgente").Valid())
	assert.True(t, ProblemWifi.Valid())
	assert.False(t, ProblemType("").Valid())

	assert.True(t, TicketStatusResolved.Closed())
	assert.True(t, TicketStatusCancelled.Closed())
	assert.False(t, TicketStatusInMaintenance.Closed())
}
