package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "libris"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultJWTTokenDuration = 24 * time.Hour
	DefaultJWTIssuer        = "libris"
	DefaultBcryptCost       = 10
	MinJWTSecretLength      = 32

	DefaultLoanPeriod = 7 * 24 * time.Hour
	DefaultHoldWindow = 5 * time.Hour
	DefaultFinePerDay = 10

	DefaultExpirySweepInterval  = 5 * time.Minute
	DefaultExpirySweepBatchSize = 500

	DefaultPaginationLimit = 100
)
