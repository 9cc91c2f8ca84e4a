//go:build integration

// Package mongotest starts one MongoDB container per test binary and hands
// each test its own migrated database.
package mongotest

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"libris/internal/migrations/mongo"
	"libris/pkg/client"
	"libris/pkg/config"
	"libris/pkg/logger"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// EnvMongoURI points the tests at an existing server instead of a container.
	EnvMongoURI = "LIBRIS_TEST_MONGO_URI"

	image             = "mongo:7.0"
	connectionTimeout = 10 * time.Second
)

var (
	containerOnce sync.Once
	containerURI  string
	containerErr  error
)

func mongoURI(t *testing.T) string {
	t.Helper()
	if uri := os.Getenv(EnvMongoURI); uri != "" {
		return uri
	}

	containerOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		defer cancel()

		c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        image,
				ExposedPorts: []string{"27017/tcp"},
				WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(90 * time.Second),
			},
			Started: true,
		})
		if err != nil {
			containerErr = fmt.Errorf("failed to start mongo container: %w", err)
			return
		}

		host, err := c.Host(ctx)
		if err != nil {
			containerErr = err
			return
		}
		port, err := c.MappedPort(ctx, "27017/tcp")
		if err != nil {
			containerErr = err
			return
		}
		containerURI = fmt.Sprintf("mongodb://%s:%s", host, port.Port())
	})

	if containerErr != nil {
		t.Fatalf("mongo unavailable: %v", containerErr)
	}
	return containerURI
}

// NewConfig connects to MongoDB, migrates a fresh database and returns a
// config wired to it. The database is dropped when the test ends.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()

	log := logger.NewNop()
	cfg := &config.Config{
		MongoURI:          mongoURI(t),
		MongoDatabaseName: "libris_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		MongoConnTimeout:  connectionTimeout,

		Port:              "0",
		RateLimitRequests: 10000,
		RateLimitWindow:   config.DefaultRateLimitWindow,
		RequestTimeout:    config.DefaultRequestTimeout,
		IdempotencyTTL:    time.Minute,
		MaxRequestSize:    config.DefaultMaxRequestSize,

		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		IdleTimeout:     config.DefaultIdleTimeout,
		ShutdownTimeout: 5 * time.Second,

		JWTSecret:        "integration-secret-0123456789abcdef",
		JWTTokenDuration: time.Hour,
		JWTIssuer:        config.DefaultJWTIssuer,
		BcryptCost:       4,

		LoanPeriod: 14 * 24 * time.Hour,
		HoldWindow: 48 * time.Hour,
		FinePerDay: 10,

		ExpirySweepInterval:  time.Minute,
		ExpirySweepBatchSize: 100,

		Log:    log,
		Client: client.NewClient(),
	}
	cfg.SetMongo()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	db := cfg.Client.Database(cfg.MongoDatabaseName)
	if err := mongo.RunMigration(ctx, db, log); err != nil {
		t.Fatalf("migration failed: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.Drop(ctx); err != nil {
			t.Logf("warning: failed to drop %s: %v", cfg.MongoDatabaseName, err)
		}
		cfg.GracefulShutdown()
	})
	return cfg
}
