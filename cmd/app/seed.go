package main

import (
	"fmt"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/repository"
)

// seedDemo fills the in-memory store with two flights so a local run has
// something to book.
func seedDemo(store *repository.MemoryStore) {
	departure := time.Now().UTC().Truncate(time.Hour).Add(72 * time.Hour)
	routes := []struct {
		id     int64
		number string
		from   string
		to     string
		fare   int64
	}{
		{id: 1, number: "SU1234", from: "SVO", to: "LED", fare: 650000},
		{id: 2, number: "SU1402", from: "SVO", to: "KZN", fare: 720000},
	}

	for i, r := range routes {
		dep := departure.Add(time.Duration(i) * 6 * time.Hour)
		store.SeedFlight(domain.Flight{
			ID:            r.id,
			FlightNumber:  r.number,
			FromAirport:   r.from,
			ToAirport:     r.to,
			DepartureTime: dep,
			ArrivalTime:   dep.Add(90 * time.Minute),
			BaseFareCents: r.fare,
			Status:        domain.FlightStatusScheduled,
			CreatedAt:     time.Now().UTC(),
			UpdatedAt:     time.Now().UTC(),
		}, demoSeats(r.id))
	}
}

func demoSeats(flightID int64) []domain.Seat {
	var seats []domain.Seat
	for row := 1; row <= 20; row++ {
		class, modifier := domain.SeatClassEconomy, int64(0)
		switch {
		case row <= 2:
			class, modifier = domain.SeatClassFirst, 900000
		case row <= 5:
			class, modifier = domain.SeatClassBusiness, 400000
		}
		for _, letter := range "ABCDEF" {
			seats = append(seats, domain.Seat{
				FlightID:           flightID,
				SeatNumber:         fmt.Sprintf("%d%c", row, letter),
				Class:              class,
				PriceModifierCents: modifier,
				IsAvailable:        true,
			})
		}
	}
	return seats
}
