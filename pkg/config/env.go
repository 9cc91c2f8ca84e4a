package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvJWTSecret        = "JWT_SECRET"
	EnvJWTTokenDuration = "JWT_TOKEN_DURATION"
	EnvJWTIssuer        = "JWT_ISSUER"
	EnvBcryptCost       = "BCRYPT_COST"

	EnvLoanPeriod = "LOAN_PERIOD"
	EnvHoldWindow = "HOLD_WINDOW"
	EnvFinePerDay = "FINE_PER_DAY"

	EnvExpirySweepInterval  = "EXPIRY_SWEEP_INTERVAL"
	EnvExpirySweepBatchSize = "EXPIRY_SWEEP_BATCH_SIZE"
)
