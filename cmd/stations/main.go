package main

import (
	"voltbook/internal/stations/handler"
	"voltbook/internal/stations/repository"
	"voltbook/internal/stations/service"
	"voltbook/internal/stations/validator"
	"voltbook/pkg/app"
	"voltbook/pkg/config"
)

const ServiceName = "stations"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Stations service")
	stationService := initServices(cfg)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewStationHandler(stationService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config) service.StationService {
	stationValidator := validator.NewStationValidator(cfg.Log)
	stationRepo := repository.NewMongoStationRepository(cfg)
	stationService := service.NewStationService(
		stationRepo,
		stationValidator,
		cfg,
	)

	cfg.Log.Info("Station service initialized", "database", cfg.MongoDatabaseName)
	return stationService
}
