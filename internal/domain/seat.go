package domain

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

type SeatClass string

const (
	SeatClassEconomy  SeatClass = "economy"
	SeatClassBusiness SeatClass = "business"
	SeatClassFirst    SeatClass = "first"
)

func ParseSeatClass(s string) (SeatClass, error) {
	switch c := SeatClass(s); c {
	case SeatClassEconomy, SeatClassBusiness, SeatClassFirst:
		return c, nil
	default:
		return "", NewValidationError("class", fmt.Sprintf("unknown seat class %q", s))
	}
}

// Seat is identified by (FlightID, SeatNumber). IsAvailable is false exactly when
// an active SeatAssignment references the seat.
type Seat struct {
	FlightID           int64     `json:"flight_id" db:"flight_id"`
	SeatNumber         string    `json:"seat_number" db:"seat_number"`
	Class              SeatClass `json:"class" db:"class"`
	PriceModifierCents int64     `json:"price_modifier_cents" db:"price_modifier_cents"`
	IsAvailable        bool      `json:"is_available" db:"is_available"`
}

// SeatPatch carries the administrative overrides for a seat. Nil fields are left untouched.
type SeatPatch struct {
	Class              *SeatClass `json:"class,omitempty"`
	IsAvailable        *bool      `json:"is_available,omitempty"`
	PriceModifierCents *int64     `json:"price_modifier_cents,omitempty"`
}

func (p SeatPatch) Empty() bool {
	return p.Class == nil && p.IsAvailable == nil && p.PriceModifierCents == nil
}

func (p SeatPatch) Apply(s Seat) Seat {
	if p.Class != nil {
		s.Class = *p.Class
	}
	if p.IsAvailable != nil {
		s.IsAvailable = *p.IsAvailable
	}
	if p.PriceModifierCents != nil {
		s.PriceModifierCents = *p.PriceModifierCents
	}
	return s
}

// InventoryAudit compares the seat flags of a flight with its active assignments.
type InventoryAudit struct {
	FlightID          int64 `json:"flight_id"`
	UnavailableSeats  int   `json:"unavailable_seats"`
	ActiveAssignments int   `json:"active_assignments"`
	Consistent        bool  `json:"consistent"`
}

// Check fills Consistent from the two counters.
func (a InventoryAudit) Check() InventoryAudit {
	a.Consistent = a.UnavailableSeats == a.ActiveAssignments
	return a
}

// CompareSeatNumbers orders seats by row number, then by seat letter, so "2A"
// sorts before "10A".
func CompareSeatNumbers(a, b string) int {
	ra, sa := splitSeatNumber(a)
	rb, sb := splitSeatNumber(b)
	switch {
	case ra != rb:
		return cmp.Compare(ra, rb)
	default:
		return strings.Compare(sa, sb)
	}
}

func SortSeats(seats []Seat) {
	slices.SortFunc(seats, func(x, y Seat) int { return CompareSeatNumbers(x.SeatNumber, y.SeatNumber) })
}

func splitSeatNumber(s string) (int, string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	row, err := strconv.Atoi(s[:i])
	if err != nil {
		return -1, s
	}
	return row, s[i:]
}
