package main

import (
	"libris/internal/library"
	"libris/internal/lifecycle/events"
	"libris/pkg/app"
	"libris/pkg/clock"
	"libris/pkg/config"
	kafka_config "libris/pkg/kafka/config"
)

const ServiceName = "library"

func main() {
	cfg := config.Load(ServiceName)
	if err := cfg.RequireJWTSecret(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}
	cfg.SetMongo()

	cfg.Log.Info("Starting Library service")
	serverApp := app.NewApplication(cfg, ServiceName)
	publisher := initPublisher(cfg, serverApp)

	serverApp.SetApp(library.Handlers(cfg, publisher, clock.NewRealClock())...)
	serverApp.Run()
}

// initPublisher returns the lifecycle event publisher and closes it on shutdown.
func initPublisher(cfg *config.Config, serverApp *app.Application) events.Publisher {
	kcfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kcfg.LogConfiguration(cfg.Log)

	publisher, closePublisher, err := events.Open(kcfg, ServiceName, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize event publisher", "error", err)
	}
	serverApp.OnShutdown(func() {
		if err := closePublisher(); err != nil {
			cfg.Log.Error("Failed to close event publisher", "error", err)
		}
	})
	return publisher
}
