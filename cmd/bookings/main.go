package main

import (
	bookingshandler "voltbook/internal/bookings/handler"
	bookingsrepo "voltbook/internal/bookings/repository"
	bookingsservice "voltbook/internal/bookings/service"
	bookingsvalidator "voltbook/internal/bookings/validator"
	otphandler "voltbook/internal/otp/handler"
	otprepo "voltbook/internal/otp/repository"
	otpservice "voltbook/internal/otp/service"
	stationsrepo "voltbook/internal/stations/repository"
	"voltbook/pkg/app"
	"voltbook/pkg/config"
	"voltbook/pkg/kafka"
	kafka_config "voltbook/pkg/kafka/config"
	kafka_middleware "voltbook/pkg/kafka/middleware"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Bookings service")

	kafkaCfg := kafka_config.Load()
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	bookingEvents := newProducer(cfg, kafkaCfg, cfg.BookingEventsTopic)
	defer bookingEvents.Close()
	emailEvents := newProducer(cfg, kafkaCfg, cfg.NotificationEmailsTopic)
	defer emailEvents.Close()

	bookingService, otpService := initServices(cfg, bookingEvents, emailEvents)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(
		bookingshandler.NewBookingHandler(bookingService, cfg.Log),
		otphandler.NewOTPHandler(otpService, cfg.Log),
	)
	serverApp.Run()
}

func newProducer(cfg *config.Config, kafkaCfg *kafka_config.Config, topic string) *kafka.Producer {
	producer, err := kafka.NewProducer(kafkaCfg, topic, topic+".dlq")
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "topic", topic, "error", err)
	}

	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
		producer.Use(kafka_middleware.MetricsProducerMiddleware(topic))
	}

	return producer
}

func initServices(cfg *config.Config, bookingEvents, emailEvents *kafka.Producer) (bookingsservice.BookingService, otpservice.OTPService) {
	bookingValidator := bookingsvalidator.NewBookingValidator(cfg.Log, cfg.MinBookingDurationMin, cfg.MaxBookingDurationMin)
	bookingRepo := bookingsrepo.NewMongoBookingRepository(cfg)
	stationRepo := stationsrepo.NewMongoStationRepository(cfg)
	bookingService := bookingsservice.NewBookingService(
		bookingRepo,
		stationRepo,
		bookingValidator,
		bookingEvents,
		cfg,
	)

	otpRepo := otprepo.NewMongoOTPRepository(cfg)
	otpService := otpservice.NewOTPService(otpRepo, emailEvents, cfg)

	cfg.Log.Info("Booking service initialized", "database", cfg.MongoDatabaseName)
	return bookingService, otpService
}
