// Package config loads runtime configuration from notify_-prefixed
// environment variables, using a plain getEnv/getInt/getDuration helper
// style (no config library).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration. Every field has a default; some
// (the SMTP user, the shortener endpoint, the Sentry DSN) default empty.
type Config struct {
	// HTTP server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Postgres
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string
	DBMaxConns       int32
	DBMinConns       int32

	// Redis
	RedisHost         string
	RedisPort         int
	RedisDB           int
	RedisMessageTTL   time.Duration
	RepeaterBatchSize int

	// RabbitMQ
	RabbitMQHost     string
	RabbitMQPort     int
	RabbitMQUser     string
	RabbitMQPassword string

	// SMTP
	SMTPServer   string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	EmailFrom    string

	// JWT
	JWTAlgorithm     string
	JWTPublicKeyPath string

	// arq-equivalent worker settings
	ArqMaxJobs       int
	ArqJobTimeout    time.Duration
	ArqJobKeepResult time.Duration

	// Cron schedules
	PeriodicSchedule   string
	ScheduledSchedule  string
	RepeaterSchedule   string
	ScheduledBatchSize int
	PeriodicBatchSize  int

	// URL shortener
	ShortenerEndpoint string
	ShortenerTimeout  time.Duration

	// Misc
	SentryDSN                  string
	DefaultNotificationSubject string
	MockAuthService            bool
	SenderRateLimitPerSecond   int
}

func Load() (*Config, error) {
	return &Config{
		HTTPPort:        getEnv("NOTIFY_HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("NOTIFY_READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("NOTIFY_WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("NOTIFY_SHUTDOWN_TIMEOUT", 30*time.Second),

		PostgresUser:     getEnv("NOTIFY_POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("NOTIFY_POSTGRES_PASSWORD", "pass"),
		PostgresHost:     getEnv("NOTIFY_POSTGRES_HOST", "db"),
		PostgresPort:     getInt("NOTIFY_POSTGRES_PORT", 5432),
		PostgresDB:       getEnv("NOTIFY_POSTGRES_DB", "notification_db"),
		DBMaxConns:       int32(getInt("NOTIFY_DB_MAX_CONNS", 25)),
		DBMinConns:       int32(getInt("NOTIFY_DB_MIN_CONNS", 5)),

		RedisHost:         getEnv("NOTIFY_REDIS_HOST", "redis"),
		RedisPort:         getInt("NOTIFY_REDIS_PORT", 6379),
		RedisDB:           getInt("NOTIFY_REDIS_DB", 1),
		RedisMessageTTL:   getDuration("NOTIFY_REDIS_MESSAGE_TTL", 120*time.Second),
		RepeaterBatchSize: getInt("NOTIFY_REPEATER_BATCH_SIZE", 100),

		RabbitMQHost:     getEnv("NOTIFY_RABBITMQ_HOST", "rabbitmq"),
		RabbitMQPort:     getInt("NOTIFY_RABBITMQ_PORT", 5672),
		RabbitMQUser:     getEnv("NOTIFY_RABBITMQ_USER", "guest"),
		RabbitMQPassword: getEnv("NOTIFY_RABBITMQ_PASSWORD", "password"),

		SMTPServer:   getEnv("NOTIFY_SMTP_SERVER", "localhost"),
		SMTPPort:     getInt("NOTIFY_SMTP_PORT", 587),
		SMTPUser:     getEnv("NOTIFY_SMTP_USER", ""),
		SMTPPassword: getEnv("NOTIFY_SMTP_PASSWORD", ""),
		EmailFrom:    getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),

		JWTAlgorithm:     getEnv("NOTIFY_JWT_ALGORITHM", "RS256"),
		JWTPublicKeyPath: getEnv("NOTIFY_JWT_PUBLIC_KEY_PATH", "/app/keys/example_public_key.pem"),

		ArqMaxJobs:       getInt("NOTIFY_ARQ_MAX_JOBS", 10),
		ArqJobTimeout:    getDuration("NOTIFY_ARQ_JOB_TIMEOUT", 300*time.Second),
		ArqJobKeepResult: getDuration("NOTIFY_ARQ_JOB_KEEP_RESULT", 0),

		PeriodicSchedule:   getEnv("NOTIFY_PERIODIC_SCHEDULE", "* * * * *"),
		ScheduledSchedule:  getEnv("NOTIFY_SCHEDULED_SCHEDULE", "* * * * *"),
		RepeaterSchedule:   getEnv("NOTIFY_REPEATER_SCHEDULE", "* * * * *"),
		ScheduledBatchSize: getInt("NOTIFY_SCHEDULED_BATCH_SIZE", 100),
		PeriodicBatchSize:  getInt("NOTIFY_PERIODIC_BATCH_SIZE", 100),

		ShortenerEndpoint: getEnv("NOTIFY_SHORTENER_ENDPOINT", ""),
		ShortenerTimeout:  getDuration("NOTIFY_SHORTENER_TIMEOUT", 5*time.Second),

		SentryDSN:                  getEnv("NOTIFY_SENTRY_DSN", ""),
		DefaultNotificationSubject: getEnv("NOTIFY_DEFAULT_NOTIFICATION_SUBJECT", "Notification"),
		MockAuthService:            getBool("NOTIFY_MOCK_AUTH_SERVICE", true),
		SenderRateLimitPerSecond:   getInt("NOTIFY_SENDER_RATE_LIMIT", 10),
	}, nil
}

// DatabaseURL renders the pgx-compatible Postgres DSN.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort, c.PostgresDB)
}

// RedisAddr renders the host:port go-redis expects.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// RabbitMQURL renders the amqp091-go connection string.
func (c *Config) RabbitMQURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", c.RabbitMQUser, c.RabbitMQPassword, c.RabbitMQHost, c.RabbitMQPort)
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}
