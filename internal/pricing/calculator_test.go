package pricing

import (
	"math"
	"testing"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTotal(t *testing.T) {
	testCases := []struct {
		name  string
		base  int64
		mods  []int64
		total int64
	}{
		{"two seats", 10000, []int64{2000, 0}, 22000},
		{"discounted seat", 10000, []int64{-1550}, 8450},
		{"no seats", 10000, nil, 0},
		{"odd cents kept exactly", 9999, []int64{1, 1, 1}, 30000},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			seats := make([]domain.Seat, 0, len(tc.mods))
			for _, m := range tc.mods {
				seats = append(seats, domain.Seat{PriceModifierCents: m})
			}
			total, err := ComputeTotal(tc.base, seats)
			require.NoError(t, err)
			assert.Equal(t, tc.total, total)
		})
	}
}

func TestComputeTotal_Overflow(t *testing.T) {
	seats := []domain.Seat{{PriceModifierCents: 0}, {PriceModifierCents: 0}}
	_, err := ComputeTotal(math.MaxInt64/2+1, seats)
	assert.ErrorIs(t, err, ErrOverflow)
}
