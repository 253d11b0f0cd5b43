package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "voltbook"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 10
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultMinBookingDurationMin = 15
	DefaultMaxBookingDurationMin = 24 * 60
	DefaultDefaultCurrency       = "INR"

	// Standard five-field cron expression, every five minutes.
	DefaultSweepSchedule = "*/5 * * * *"

	DefaultOTPTTL = 15 * time.Minute

	DefaultBookingEventsTopic      = "voltbook.booking.events"
	DefaultNotificationEmailsTopic = "voltbook.notification.emails"

	DefaultPaginationLimit = 100
)
