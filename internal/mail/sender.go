package mail

import (
	"context"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/ricirt/updatesvc/internal/domain"
	"github.com/ricirt/updatesvc/internal/ratelimiter"
)

// Transport is the part of *gomail.Client the sender uses.
type Transport interface {
	DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error
}

// SMTPConfig holds connection parameters for the SMTP transport.
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	Encryption string // "none", "starttls", "ssl_tls"
	Timeout    time.Duration
}

// NewSMTPClient builds the long-lived go-mail client. Authentication is only
// enabled when a username is configured.
func NewSMTPClient(cfg SMTPConfig) (*gomail.Client, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(tlsPolicyFromEncryption(cfg.Encryption)),
	}
	if cfg.Encryption == "ssl_tls" {
		opts = append(opts, gomail.WithSSL())
	}
	if cfg.Timeout > 0 {
		opts = append(opts, gomail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	c, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create mail client: %w", err)
	}
	return c, nil
}

// SMTPSender delivers composed messages. Errors wrap domain.ErrAddressParse,
// domain.ErrBuild or domain.ErrTransport.
type SMTPSender struct {
	transport Transport
	limiter   *ratelimiter.Limiter
}

func NewSMTPSender(transport Transport, limiter *ratelimiter.Limiter) *SMTPSender {
	if limiter == nil {
		limiter = ratelimiter.New(0)
	}
	return &SMTPSender{transport: transport, limiter: limiter}
}

// Send builds the MIME message and hands it to the transport.
func (s *SMTPSender) Send(ctx context.Context, msg domain.Message) error {
	m, err := buildMsg(msg)
	if err != nil {
		return err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: wait for send slot: %w", domain.ErrTransport, err)
	}
	if err := s.transport.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
	return nil
}

func buildMsg(msg domain.Message) (*gomail.Msg, error) {
	m := gomail.NewMsg()

	if err := setAddress(m.From, m.FromFormat, msg.FromName, msg.FromAddress); err != nil {
		return nil, fmt.Errorf("%w: sender %q: %w", domain.ErrAddressParse, msg.FromAddress, err)
	}
	to := func(addr string) error { return m.To(addr) }
	if err := setAddress(to, m.AddToFormat, msg.ToName, msg.ToAddress); err != nil {
		return nil, fmt.Errorf("%w: recipient %q: %w", domain.ErrAddressParse, msg.ToAddress, err)
	}

	if msg.Subject == "" {
		return nil, fmt.Errorf("%w: subject header is required", domain.ErrBuild)
	}
	if msg.HTMLBody == "" {
		return nil, fmt.Errorf("%w: body is required", domain.ErrBuild)
	}

	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextHTML, msg.HTMLBody)
	return m, nil
}

func setAddress(plain func(string) error, format func(string, string) error, name, addr string) error {
	if addr == "" {
		return fmt.Errorf("address is empty")
	}
	if name == "" {
		return plain(addr)
	}
	return format(name, addr)
}

// tlsPolicyFromEncryption converts the encryption string to a go-mail TLSPolicy.
func tlsPolicyFromEncryption(enc string) gomail.TLSPolicy {
	switch enc {
	case "ssl_tls":
		return gomail.TLSMandatory
	case "starttls":
		return gomail.TLSOpportunistic
	default:
		return gomail.NoTLS
	}
}
