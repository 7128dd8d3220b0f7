package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("RABBITMQ_HOST", "rabbit")
	t.Setenv("RABBITMQ_USERNAME", "svc")
	t.Setenv("RABBITMQ_PASSWORD", "secret")
	t.Setenv("TICKETSRVC_URL", "http://ticketsrvc:50051")
	t.Setenv("VALIDATIONSVC_URL", "http://validationsvc:50051")
	t.Setenv("SMTP_HOST", "mail")
	t.Setenv("SENDER_ADDRESS", "noreply@airline.example")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RabbitMQPort != 5672 || cfg.RabbitMQVhost != "/" {
		t.Errorf("unexpected broker defaults: port=%d vhost=%q", cfg.RabbitMQPort, cfg.RabbitMQVhost)
	}
	if cfg.FlightQueue != "flight-queue" || cfg.TicketExchange != "ticket-update" {
		t.Errorf("unexpected topology defaults: %+v", cfg)
	}
	if cfg.AckAfterProcessing {
		t.Error("automatic acknowledgment must be the default")
	}
	if cfg.SMTPPort != 25 || cfg.SMTPTLS != "none" || cfg.SMTPUsername != "" {
		t.Errorf("unexpected smtp defaults: port=%d tls=%q user=%q", cfg.SMTPPort, cfg.SMTPTLS, cfg.SMTPUsername)
	}
	if cfg.JobConcurrency != 4 || cfg.RPCTimeout != 10*time.Second {
		t.Errorf("unexpected pipeline defaults: concurrency=%d rpc=%s", cfg.JobConcurrency, cfg.RPCTimeout)
	}
	if cfg.DatabaseURL != "" || cfg.DeliveryLogTimeout != 5*time.Second {
		t.Errorf("unexpected delivery log defaults: url=%q timeout=%s", cfg.DatabaseURL, cfg.DeliveryLogTimeout)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("RABBITMQ_PORT", "5673")
	t.Setenv("ACK_AFTER_PROCESSING", "true")
	t.Setenv("SMTP_TLS", "STARTTLS")
	t.Setenv("JOB_CONCURRENCY", "1")
	t.Setenv("SMTP_TIMEOUT", "3s")
	t.Setenv("RPC_TIMEOUT", "not-a-duration")
	t.Setenv("DELIVERY_LOG_TIMEOUT", "750ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RabbitMQPort != 5673 || !cfg.AckAfterProcessing || cfg.SMTPTLS != "starttls" || cfg.JobConcurrency != 1 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.SMTPTimeout != 3*time.Second {
		t.Errorf("expected 3s smtp timeout, got %s", cfg.SMTPTimeout)
	}
	if cfg.RPCTimeout != 10*time.Second {
		t.Errorf("malformed duration must fall back to default, got %s", cfg.RPCTimeout)
	}
	if cfg.DeliveryLogTimeout != 750*time.Millisecond {
		t.Errorf("expected 750ms delivery log timeout, got %s", cfg.DeliveryLogTimeout)
	}
}

func TestLoad_ReportsAllMissingKeys(t *testing.T) {
	for _, key := range required {
		t.Setenv(key, "")
	}

	_, err := Load()
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, key := range required {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error does not mention %s: %v", key, err)
		}
	}
}

func TestLoad_RejectsUnknownTLSMode(t *testing.T) {
	setRequired(t)
	t.Setenv("SMTP_TLS", "maybe")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "SMTP_TLS") {
		t.Fatalf("expected SMTP_TLS error, got %v", err)
	}
}
