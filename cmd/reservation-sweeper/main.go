package main

import (
	"libris/internal/library"
	"libris/internal/lifecycle/events"
	"libris/internal/lifecycle/sweeper"
	"libris/pkg/app"
	"libris/pkg/clock"
	"libris/pkg/config"
	kafka_config "libris/pkg/kafka/config"
)

const ServiceName = "reservation-sweeper"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting Reservation sweeper")
	serverApp := app.NewApplication(cfg, ServiceName)

	clk := clock.NewRealClock()
	svc := library.NewLifecycleService(cfg, initPublisher(cfg, serverApp), clk)

	serverApp.SetHealth()
	serverApp.AddWorker(sweeper.New(svc, clk, sweeper.Config{
		Interval:  cfg.ExpirySweepInterval,
		BatchSize: cfg.ExpirySweepBatchSize,
	}, cfg.Log))
	serverApp.Run()
}

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
