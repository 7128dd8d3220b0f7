package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	// Logging
	LogLevel  string
	LogFormat string
	LogFile   string

	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Broker
	RabbitMQHost       string
	RabbitMQPort       int
	RabbitMQUsername   string
	RabbitMQPassword   string
	RabbitMQVhost      string
	FlightExchange     string
	FlightQueue        string
	TicketExchange     string
	TicketQueue        string
	AckAfterProcessing bool
	Prefetch           int

	// Remote services
	TicketsrvcURL    string
	ValidationsvcURL string
	RPCTimeout       time.Duration

	// Mail
	SMTPHost       string
	SMTPPort       int
	SMTPUsername   string
	SMTPPassword   string
	SMTPTLS        string
	SMTPTimeout    time.Duration
	SenderName     string
	SenderAddress  string
	MailRatePerSec int

	// Content
	FlightUpdateSubject string
	FlightUpdateBody    string
	TicketUpdateSubject string
	TicketUpdateBody    string
	TicketURLPrefix     string

	// Pipeline
	JobConcurrency int

	// Delivery log; disabled when DatabaseURL is empty
	DatabaseURL        string
	DBMaxConns         int32
	DBMinConns         int32
	DeliveryLogTimeout time.Duration
}

var required = []string{
	"RABBITMQ_HOST",
	"RABBITMQ_USERNAME",
	"RABBITMQ_PASSWORD",
	"TICKETSRVC_URL",
	"VALIDATIONSVC_URL",
	"SMTP_HOST",
	"SENDER_ADDRESS",
}

// Load reads an optional .env file, then the environment. Every missing
// required key is reported in one error.
func Load() (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	var errs []error
	for _, key := range required {
		if os.Getenv(key) == "" {
			errs = append(errs, fmt.Errorf("%s is required", key))
		}
	}

	cfg := &Config{
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		LogFile:   getEnv("LOG_FILE", ""),

		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		RabbitMQHost:       os.Getenv("RABBITMQ_HOST"),
		RabbitMQPort:       getInt("RABBITMQ_PORT", 5672),
		RabbitMQUsername:   os.Getenv("RABBITMQ_USERNAME"),
		RabbitMQPassword:   os.Getenv("RABBITMQ_PASSWORD"),
		RabbitMQVhost:      getEnv("RABBITMQ_VHOST", "/"),
		FlightExchange:     getEnv("FLIGHT_EXCHANGE", "flight-update"),
		FlightQueue:        getEnv("FLIGHT_QUEUE", "flight-queue"),
		TicketExchange:     getEnv("TICKET_EXCHANGE", "ticket-update"),
		TicketQueue:        getEnv("TICKET_QUEUE", "ticket-queue"),
		AckAfterProcessing: getBool("ACK_AFTER_PROCESSING", false),
		Prefetch:           getInt("RABBITMQ_PREFETCH", 10),

		TicketsrvcURL:    os.Getenv("TICKETSRVC_URL"),
		ValidationsvcURL: os.Getenv("VALIDATIONSVC_URL"),
		RPCTimeout:       getDuration("RPC_TIMEOUT", 10*time.Second),

		SMTPHost:       os.Getenv("SMTP_HOST"),
		SMTPPort:       getInt("SMTP_PORT", 25),
		SMTPUsername:   getEnv("SMTP_USERNAME", ""),
		SMTPPassword:   getEnv("SMTP_PASSWORD", ""),
		SMTPTLS:        strings.ToLower(getEnv("SMTP_TLS", "none")),
		SMTPTimeout:    getDuration("SMTP_TIMEOUT", 15*time.Second),
		SenderName:     getEnv("SENDER_NAME", "Flight Updates"),
		SenderAddress:  os.Getenv("SENDER_ADDRESS"),
		MailRatePerSec: getInt("MAIL_RATE_PER_SEC", 10),

		FlightUpdateSubject: getEnv("FLIGHT_UPDATE_SUBJECT", "Your flight has been updated"),
		FlightUpdateBody:    getEnv("FLIGHT_UPDATE_BODY", "There has been an update to your flight.\nPlease find your updated ticket below."),
		TicketUpdateSubject: getEnv("TICKET_UPDATE_SUBJECT", "Your ticket has been updated"),
		TicketUpdateBody:    getEnv("TICKET_UPDATE_BODY", "Your ticket has been updated.\nPlease find your new ticket below."),
		TicketURLPrefix:     getEnv("TICKET_URL_PREFIX", ""),

		JobConcurrency: getInt("JOB_CONCURRENCY", 4),

		DatabaseURL:        getEnv("DATABASE_URL", ""),
		DBMaxConns:         int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:         int32(getInt("DB_MIN_CONNS", 1)),
		DeliveryLogTimeout: getDuration("DELIVERY_LOG_TIMEOUT", 5*time.Second),
	}

	switch cfg.SMTPTLS {
	case "none", "starttls", "ssl_tls":
	default:
		errs = append(errs, fmt.Errorf("SMTP_TLS must be none, starttls or ssl_tls, got %q", cfg.SMTPTLS))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
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

func getBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
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
