package domain

import "time"

type FlightStatus string

const (
	FlightStatusScheduled FlightStatus = "SCHEDULED"
	FlightStatusDelayed   FlightStatus = "DELAYED"
	FlightStatusBoarding  FlightStatus = "BOARDING"
	FlightStatusDeparted  FlightStatus = "DEPARTED"
	FlightStatusCancelled FlightStatus = "CANCELLED"
)

type Flight struct {
	ID            int64        `json:"id" db:"id"`
	FlightNumber  string       `json:"flight_number" db:"flight_number"`
	FromAirport   string       `json:"from_airport" db:"from_airport"`
	ToAirport     string       `json:"to_airport" db:"to_airport"`
	DepartureTime time.Time    `json:"departure_time" db:"departure_time"`
	ArrivalTime   time.Time    `json:"arrival_time" db:"arrival_time"`
	BaseFareCents int64        `json:"base_fare_cents" db:"base_fare_cents"`
	Status        FlightStatus `json:"status" db:"status"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at" db:"updated_at"`
}

// Bookable reports whether new seats may be sold on the flight.
func (f Flight) Bookable() bool {
	return f.Status == FlightStatusScheduled || f.Status == FlightStatusDelayed
}
