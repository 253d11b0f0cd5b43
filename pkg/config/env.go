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

	EnvMinBookingDurationMin = "MIN_BOOKING_DURATION_MIN"
	EnvMaxBookingDurationMin = "MAX_BOOKING_DURATION_MIN"
	EnvDefaultCurrency       = "DEFAULT_CURRENCY"

	EnvSweepSchedule = "SWEEP_SCHEDULE"

	EnvOTPTTL = "OTP_TTL"

	EnvBookingEventsTopic      = "BOOKING_EVENTS_TOPIC"
	EnvNotificationEmailsTopic = "NOTIFICATION_EMAILS_TOPIC"
)
