package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/flightbooking/api"
	"github.com/Domenick1991/flightbooking/config"
	bookingsapi "github.com/Domenick1991/flightbooking/internal/api/bookings_service_api"
	flightsapi "github.com/Domenick1991/flightbooking/internal/api/flights_service_api"
	"github.com/Domenick1991/flightbooking/internal/auth"
	"github.com/Domenick1991/flightbooking/internal/bootstrap"
	"github.com/Domenick1991/flightbooking/internal/cache"
	"github.com/Domenick1991/flightbooking/internal/logging"
	"github.com/Domenick1991/flightbooking/internal/outbox"
	"github.com/Domenick1991/flightbooking/internal/repository"
	"github.com/Domenick1991/flightbooking/internal/service/booking"
	"github.com/Domenick1991/flightbooking/internal/service/flights"
	"github.com/Domenick1991/flightbooking/internal/service/inventory"
	"github.com/Domenick1991/flightbooking/internal/service/invoice"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("server stopped with error")
	}
}

type storage struct {
	store   repository.Store
	flights repository.FlightRepository
	health  api.HealthCheck
	// outbox is set when no separate worker can drain the store.
	outbox  repository.OutboxRepository
	close   func()
}

func openStorage(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (*storage, error) {
	if cfg.Storage.Driver == "memory" {
		logger.Warn("using in-memory storage; data is lost on restart")
		mem := repository.NewMemoryStore()
		seedDemo(mem)
		return &storage{store: mem, flights: mem, outbox: mem, close: func() {}}, nil
	}

	db, closeFn, err := repository.OpenPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return &storage{
		store:   repository.NewStore(db),
		flights: repository.NewFlightRepository(db),
		health:  db.PingContext,
		close:   closeFn,
	}, nil
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	st, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	health := map[string]api.HealthCheck{}
	if st.health != nil {
		health["postgres"] = st.health
	}

	var flightCache flights.FlightCache
	var inventoryOpts []inventory.Option
	if cfg.Redis.Addr != "" {
		client := cache.NewRedisClient(cfg.Redis)
		defer client.Close()
		redisCache := cache.NewRedisCache(client, cfg.Booking.FlightsCacheDuration(), cfg.Booking.SeatMapCacheDuration())
		flightCache = redisCache
		inventoryOpts = append(inventoryOpts, inventory.WithSeatMapCache(redisCache))
		health["redis"] = redisCache.Ping
	}

	flightService := flights.NewFlightService(st.flights, flightCache, logger)
	inventoryService := inventory.NewInventoryService(st.store, logger, inventoryOpts...)
	bookingService := booking.NewBookingService(flightService, inventoryService, st.store, logger,
		booking.WithTopics(booking.Topics{
			BookingEvents: cfg.Kafka.BookingEventsTopic,
			Notifications: cfg.Kafka.NotificationsTopic,
			Invoices:      cfg.Kafka.InvoicesTopic,
		}),
		booking.WithCompensation(cfg.Booking.CompensationRetries, cfg.Booking.CompensationBackoff()),
	)
	invoiceService := invoice.NewService(st.store, flightService, logger)
	tokens := auth.NewTokenService(cfg.Auth)

	router := api.NewRouter(cfg.HTTP, api.RouterDeps{
		Flights:  api.NewFlightHandler(flightService, inventoryService, logger),
		Bookings: api.NewBookingHandler(bookingService, invoiceService, logger),
		Tokens:   tokens,
		Logger:   logger,
		Health:   health,
	})

	servers := bootstrap.NewServers(cfg, router, tokens,
		flightsapi.NewServer(flightService, inventoryService),
		bookingsapi.NewServer(bookingService, invoiceService),
		logger,
	)
	if st.outbox == nil {
		return servers.Run(ctx, cfg.GRPC.Address)
	}

	// In-memory events are invisible to cmd/worker, so they are relayed here.
	logger.Warn("no broker for in-memory storage; outbox messages are written to the log")
	relay := outbox.NewRelay(st.outbox, outbox.NewLogPublisher(logger),
		cfg.Worker.OutboxBatchSize, cfg.Worker.OutboxMaxAttempts,
		time.Duration(cfg.Worker.OutboxPollSeconds)*time.Second, logger)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return relay.Run(gctx) })
	g.Go(func() error { return servers.Run(gctx, cfg.GRPC.Address) })
	return g.Wait()
}
