package main

import (
	"context"

	notificationsrepo "libris/internal/notifications/repository"
	notificationsservice "libris/internal/notifications/service"
	"libris/pkg/app"
	"libris/pkg/clock"
	"libris/pkg/config"
	"libris/pkg/kafka"
	kafka_config "libris/pkg/kafka/config"
	kafka_middleware "libris/pkg/kafka/middleware"
)

const ServiceName = "notifier"

// consumerWorker runs a Kafka consumer under the application lifecycle.
type consumerWorker struct {
	consumer *kafka.Consumer
}

func (w consumerWorker) Name() string {
	return "lifecycle-consumer"
}

func (w consumerWorker) Run(ctx context.Context) error {
	return w.consumer.Start(ctx)
}

func main() {
	cfg := config.Load(ServiceName)

	kcfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kcfg.LogConfiguration(cfg.Log)
	if !kcfg.Enabled {
		cfg.Log.Fatal("Kafka is disabled, the notifier has nothing to consume")
	}

	cfg.SetMongo()
	cfg.Log.Info("Starting Notifier")

	notificationService := notificationsservice.NewNotificationService(
		notificationsrepo.NewMongoNotificationRepository(cfg),
		clock.NewRealClock(),
		cfg,
	)

	consumer, err := kafka.NewConsumer(
		kcfg,
		kcfg.LifecycleTopic,
		kcfg.NotifierGroupID,
		kcfg.LifecycleDLQTopic,
		notificationService.Handle,
		cfg.Log,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	metrics := kafka_middleware.NewMetrics()
	consumer.Use(metrics.ConsumerMiddleware())
	if kcfg.EnableMiddleware {
		consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
	}

	serverApp := app.NewApplication(cfg, ServiceName)
	serverApp.SetHealth()
	serverApp.AddWorker(consumerWorker{consumer: consumer})
	serverApp.OnShutdown(func() {
		metrics.Log(cfg.Log)
		if err := consumer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka consumer", "error", err)
		}
	})
	serverApp.Run()
}
