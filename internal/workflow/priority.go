package workflow

import (
	"errors"
	"fmt"
)

// Priority is the display band derived from days until the event.
type Priority string

const (
	PriorityOverdue   Priority = "OVERDUE"
	PriorityUrgent    Priority = "URGENT"
	PriorityNearLimit Priority = "NEAR_LIMIT"
	PriorityRegular   Priority = "REGULAR"
)

// Rank orders priorities from most to least pressing.
func (p Priority) Rank() int {
	switch p {
	case PriorityOverdue:
		return 0
	case PriorityUrgent:
		return 1
	case PriorityNearLimit:
		return 2
	default:
		return 3
	}
}

// Band covers every non-negative day count up to and including MaxDays.
type Band struct {
	Priority Priority `json:"priority"`
	MaxDays  int      `json:"maxDays"`
}

// Bands is an ordered list of thresholds, strictly increasing in MaxDays.
type Bands []Band

// Default thresholds in business days.
const (
	DefaultUrgentDays    = 2
	DefaultNearLimitDays = 5
)

// ErrInvalidBands is returned by NewBands.
var ErrInvalidBands = errors.New("invalid priority bands")

// NewBands validates and returns bands.
func NewBands(bands ...Band) (Bands, error) {
	prev := -1
	for i, b := range bands {
		if b.Priority == "" || b.Priority == PriorityOverdue || b.Priority == PriorityRegular {
			return nil, fmt.Errorf("%w: band %d has reserved priority %q", ErrInvalidBands, i, b.Priority)
		}
		if b.MaxDays <= prev {
			return nil, fmt.Errorf("%w: thresholds must increase (%d after %d)", ErrInvalidBands, b.MaxDays, prev)
		}
		prev = b.MaxDays
	}
	out := make(Bands, len(bands))
	copy(out, bands)
	return out, nil
}

// DefaultBands returns URGENT up to 2 and NEAR_LIMIT up to 5 business days.
func DefaultBands() Bands {
	return Bands{
		{Priority: PriorityUrgent, MaxDays: DefaultUrgentDays},
		{Priority: PriorityNearLimit, MaxDays: DefaultNearLimitDays},
	}
}

// Horizon is the largest threshold; day counts beyond it are all REGULAR.
func (b Bands) Horizon() int {
	if len(b) == 0 {
		return 0
	}
	return b[len(b)-1].MaxDays
}

// Classify maps days until the event onto a priority band.
func Classify(daysUntilEvent int, bands Bands) Priority {
	if daysUntilEvent < 0 {
		return PriorityOverdue
	}
	for _, b := range bands {
		if daysUntilEvent <= b.MaxDays {
			return b.Priority
		}
	}
	return PriorityRegular
}
