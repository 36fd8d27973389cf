// Package pricing derives booking totals. Fares are charged per seat: every
// reserved seat costs the flight's base fare plus its own modifier. All amounts
// are integer minor units, so the sum is exact and no rounding step exists.
package pricing

import (
	"errors"
	"math"

	"github.com/Domenick1991/flightbooking/internal/domain"
)

var ErrOverflow = errors.New("booking total overflows")

// ComputeTotal returns Σ (baseFareCents + seat.PriceModifierCents).
func ComputeTotal(baseFareCents int64, seats []domain.Seat) (int64, error) {
	var total int64
	for _, s := range seats {
		line, err := add(baseFareCents, s.PriceModifierCents)
		if err != nil {
			return 0, err
		}
		if total, err = add(total, line); err != nil {
			return 0, err
		}
	}
	return total, nil
}

func add(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, ErrOverflow
	}
	return a + b, nil
}
