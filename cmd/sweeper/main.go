package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	bookingsrepo "voltbook/internal/bookings/repository"
	stationsrepo "voltbook/internal/stations/repository"
	"voltbook/internal/sweeper/service"
	"voltbook/pkg/config"
	"voltbook/pkg/kafka"
	kafka_config "voltbook/pkg/kafka/config"
	kafka_middleware "voltbook/pkg/kafka/middleware"
	"voltbook/pkg/metrics"

	"github.com/robfig/cron/v3"
)

const ServiceName = "sweeper"

const sweepTimeout = 2 * time.Minute

func main() {
	once := flag.Bool("once", false, "run a single sweep pass and exit")
	flag.Parse()

	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	metrics.Register()

	kafkaCfg := kafka_config.Load()
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.BookingEventsTopic, cfg.BookingEventsTopic+".dlq")
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	defer producer.Close()

	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
		producer.Use(kafka_middleware.MetricsProducerMiddleware(cfg.BookingEventsTopic))
	}

	sweeper := service.NewSweeperService(
		bookingsrepo.NewMongoBookingRepository(cfg),
		stationsrepo.NewMongoStationRepository(cfg),
		producer,
		cfg,
	)

	if *once {
		cfg.Log.Info("Running single sweep pass")
		runSweep(cfg, sweeper)
		return
	}

	cfg.Log.Info("Starting sweeper", "schedule", cfg.SweepSchedule)

	c := cron.New()
	if _, err := c.AddFunc(cfg.SweepSchedule, func() {
		runSweep(cfg, sweeper)
	}); err != nil {
		cfg.Log.Fatal("Failed to schedule sweep", "error", err)
	}
	c.Start()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	sig := <-shutdown

	cfg.Log.Info("Shutdown signal received", "signal", sig)
	// Let an in-flight sweep finish before disconnecting.
	<-c.Stop().Done()
	cfg.Log.Info("Sweeper stopped gracefully")
}

func runSweep(cfg *config.Config, sweeper service.SweeperService) {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if _, err := sweeper.RunSweepOnce(ctx); err != nil {
		cfg.Log.Error("Sweep pass failed", "error", err)
	}
}
