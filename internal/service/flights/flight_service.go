package flights

import (
	"context"
	"strconv"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/repository"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

type FlightUseCase interface {
	List(ctx context.Context) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
}

// FlightCache is a read-through cache for reference data. A miss returns nil and no error.
type FlightCache interface {
	GetFlights(ctx context.Context) ([]domain.Flight, error)
	SetFlights(ctx context.Context, flights []domain.Flight) error
	GetFlight(ctx context.Context, id int64) (*domain.Flight, error)
	SetFlight(ctx context.Context, flight *domain.Flight) error
}

type FlightService struct {
	repo   repository.FlightRepository
	cache  FlightCache
	group  singleflight.Group
	logger logrus.FieldLogger
}

func NewFlightService(repo repository.FlightRepository, cache FlightCache, logger logrus.FieldLogger) *FlightService {
	return &FlightService{repo: repo, cache: cache, logger: logger.WithField("component", "flights")}
}

func (s *FlightService) List(ctx context.Context) ([]domain.Flight, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetFlights(ctx); err == nil && cached != nil {
			return cached, nil
		}
	}

	v, err, _ := s.group.Do("flights", func() (interface{}, error) {
		flights, err := s.repo.List(ctx)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.SetFlights(ctx, flights); err != nil {
				s.logger.WithError(err).Warn("flights cache write failed")
			}
		}
		return flights, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Flight), nil
}

// GetByID collapses concurrent misses for the same flight into one repository read.
func (s *FlightService) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetFlight(ctx, id); err == nil && cached != nil {
			return cached, nil
		}
	}

	v, err, _ := s.group.Do("flight:"+strconv.FormatInt(id, 10), func() (interface{}, error) {
		flight, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.SetFlight(ctx, flight); err != nil {
				s.logger.WithError(err).WithField("flight_id", id).Warn("flight cache write failed")
			}
		}
		return flight, nil
	})
	if err != nil {
		return nil, err
	}
	flight := *v.(*domain.Flight)
	return &flight, nil
}

var _ FlightUseCase = (*FlightService)(nil)
