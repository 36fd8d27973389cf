package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/flightbooking/config"
	"github.com/Domenick1991/flightbooking/internal/email"
	"github.com/Domenick1991/flightbooking/internal/kafka"
	"github.com/Domenick1991/flightbooking/internal/logging"
	"github.com/Domenick1991/flightbooking/internal/outbox"
	"github.com/Domenick1991/flightbooking/internal/rabbitmq"
	"github.com/Domenick1991/flightbooking/internal/repository"
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
	if cfg.Storage.Driver != "postgres" {
		logger.Fatal("worker requires postgres storage")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("worker stopped with error")
	}
	logger.Info("worker stopped")
}

type handlerFunc func(ctx context.Context, key string, payload []byte) error

// consumeFunc blocks reading topic until ctx is cancelled.
type consumeFunc func(ctx context.Context, topic, group string, handle handlerFunc) error

type transport struct {
	publisher outbox.Publisher
	consume   consumeFunc
	closer    io.Closer
}

func newTransport(cfg *config.Config, logger logrus.FieldLogger) (*transport, error) {
	switch cfg.Events.Transport {
	case "rabbitmq":
		publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQ.URL, logger)
		if err != nil {
			return nil, err
		}
		return &transport{
			publisher: publisher,
			closer:    publisher,
			consume: func(ctx context.Context, topic, _ string, handle handlerFunc) error {
				return rabbitmq.NewConsumer(cfg.RabbitMQ.URL, topic, logger).Consume(ctx, rabbitmq.Handler(handle))
			},
		}, nil
	case "kafka":
		producer := kafka.NewProducer(cfg.Kafka.Brokers, logger)
		return &transport{
			publisher: producer,
			closer:    producer,
			consume: func(ctx context.Context, topic, group string, handle handlerFunc) error {
				consumer := kafka.NewConsumer(cfg.Kafka.Brokers, group, topic, logger)
				defer consumer.Close()
				return consumer.Consume(ctx, kafka.Handler(handle))
			},
		}, nil
	default:
		return nil, fmt.Errorf("unknown events transport %q", cfg.Events.Transport)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	db, closeDB, err := repository.OpenPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeDB()

	store := repository.NewStore(db)
	flightService := flights.NewFlightService(repository.NewFlightRepository(db), nil, logger)
	inventoryService := inventory.NewInventoryService(store, logger)
	sender := email.NewSender(store, logger)
	archiver := invoice.NewArchiver(invoice.NewService(store, flightService, logger), cfg.Worker.InvoiceDir)

	tr, err := newTransport(cfg, logger)
	if err != nil {
		return err
	}
	defer tr.closer.Close()

	poll := time.Duration(cfg.Worker.OutboxPollSeconds) * time.Second
	relay := outbox.NewRelay(repository.NewOutboxRepository(db), tr.publisher,
		cfg.Worker.OutboxBatchSize, cfg.Worker.OutboxMaxAttempts, poll, logger,
		outbox.WithClaimLease(time.Duration(cfg.Worker.OutboxLeaseSeconds)*time.Second),
		outbox.WithRetryBackoff(poll, time.Duration(cfg.Worker.OutboxMaxBackoffSec)*time.Second),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return relay.Run(gctx) })
	if topic := cfg.Kafka.NotificationsTopic; topic != "" {
		g.Go(func() error { return tr.consume(gctx, topic, cfg.Kafka.GroupID+"-notifications", sender.Handle) })
	}
	if topic := cfg.Kafka.InvoicesTopic; topic != "" {
		g.Go(func() error { return tr.consume(gctx, topic, cfg.Kafka.GroupID+"-invoices", archiver.Handle) })
	}
	g.Go(func() error {
		return auditLoop(gctx, flightService, inventoryService, time.Duration(cfg.Worker.AuditIntervalMinutes)*time.Minute, logger)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// auditLoop compares seat flags with assignments for every flight on each tick.
// Inconsistencies are logged by the inventory service.
func auditLoop(ctx context.Context, flightSvc flights.FlightUseCase, inv inventory.InventoryUseCase, interval time.Duration, logger logrus.FieldLogger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			list, err := flightSvc.List(ctx)
			if err != nil {
				logger.WithError(err).Warn("audit sweep: list flights failed")
				continue
			}
			inconsistent := 0
			for _, f := range list {
				audit, err := inv.Audit(ctx, f.ID)
				if err != nil {
					logger.WithError(err).WithField("flight_id", f.ID).Warn("audit sweep: audit failed")
					continue
				}
				if !audit.Consistent {
					inconsistent++
				}
			}
			logger.WithFields(logrus.Fields{"flights": len(list), "inconsistent": inconsistent}).Info("audit sweep finished")
		}
	}
}
