package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		MongoURI:             DefaultMongoURI,
		MongoDatabaseName:    DefaultMongoDatabaseName,
		MongoConnTimeout:     DefaultMongoConnTimeout,
		Port:                 DefaultPort,
		RateLimitRequests:    DefaultRateLimitRequests,
		RateLimitWindow:      DefaultRateLimitWindow,
		RequestTimeout:       DefaultRequestTimeout,
		IdempotencyTTL:       DefaultIdempotencyTTL,
		MaxRequestSize:       DefaultMaxRequestSize,
		ReadTimeout:          DefaultReadTimeout,
		WriteTimeout:         DefaultWriteTimeout,
		IdleTimeout:          DefaultIdleTimeout,
		ShutdownTimeout:      DefaultShutdownTimeout,
		JWTTokenDuration:     DefaultJWTTokenDuration,
		JWTIssuer:            DefaultJWTIssuer,
		LoanPeriod:           DefaultLoanPeriod,
		HoldWindow:           DefaultHoldWindow,
		FinePerDay:           DefaultFinePerDay,
		ExpirySweepInterval:  DefaultExpirySweepInterval,
		ExpirySweepBatchSize: DefaultExpirySweepBatchSize,
	}
}

func TestValidate_Defaults(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		message string
	}{
		{"bad port", func(c *Config) { c.Port = "70000" }, "Port must be between"},
		{"bad mongo uri", func(c *Config) { c.MongoURI = "postgres://localhost" }, "MongoURI must start with"},
		{"empty database", func(c *Config) { c.MongoDatabaseName = "" }, "MongoDatabaseName cannot be empty"},
		{"zero loan period", func(c *Config) { c.LoanPeriod = 0 }, "LoanPeriod must be positive"},
		{"negative hold window", func(c *Config) { c.HoldWindow = -time.Minute }, "HoldWindow must be positive"},
		{"hold longer than loan", func(c *Config) { c.HoldWindow = 8 * 24 * time.Hour }, "must be shorter than LoanPeriod"},
		{"negative fine", func(c *Config) { c.FinePerDay = -1 }, "FinePerDay cannot be negative"},
		{"short jwt secret", func(c *Config) { c.JWTSecret = "short" }, "JWTSecret must be at least"},
		{"zero batch", func(c *Config) { c.ExpirySweepBatchSize = 0 }, "ExpirySweepBatchSize must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestValidate_AggregatesErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Port = "0"
	cfg.MongoDatabaseName = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "1. ") && strings.Contains(err.Error(), "2. "))
}

func TestRequireJWTSecret(t *testing.T) {
	cfg := validConfig()
	assert.Error(t, cfg.RequireJWTSecret())

	cfg.JWTSecret = strings.Repeat("s", MinJWTSecretLength)
	assert.NoError(t, cfg.RequireJWTSecret())
}

func TestRedactMongoURI(t *testing.T) {
	assert.Equal(t, "mongodb://***:***@db:27017", redactMongoURI("mongodb://admin:hunter2@db:27017"))
	assert.Equal(t, "mongodb://db:27017", redactMongoURI("mongodb://db:27017"))
}

func TestNormalizePagination(t *testing.T) {
	assert.Equal(t, 10, NormalizePaginationLimit(0))
	assert.Equal(t, 25, NormalizePaginationLimit(25))
	assert.Equal(t, DefaultPaginationLimit, NormalizePaginationLimit(5000))
	assert.Equal(t, int64(0), NormalizeOffset(-3))
	assert.Equal(t, int64(7), NormalizeOffset(7))
}
