package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"mailblast/internal/config"
	"mailblast/internal/types"
)

// implicitTLSPort is the submission port that expects a TLS session from the
// first byte. Every other port starts in plaintext and upgrades via STARTTLS.
const implicitTLSPort = 465

// SMTPTransport delivers messages by speaking SMTP directly to the configured
// relay. Each Send opens its own connection and closes it when the message is
// accepted or refused; nothing is pooled and nothing is retried.
type SMTPTransport struct {
	cfg    config.MailConfig
	logger *slog.Logger
}

// NewSMTPTransport validates the relay settings and returns the transport.
// A missing host is a configuration error: it must reject the whole batch
// before the first delivery attempt.
func NewSMTPTransport(cfg config.MailConfig, logger *slog.Logger) (*SMTPTransport, error) {
	if cfg.SMTP.Host == "" {
		return nil, types.NewAppError(types.ErrCodeConfigMail, "SMTP_HOST is required for the smtp backend", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPTransport{cfg: cfg, logger: logger}, nil
}

// Send submits one composed message. The session is bounded by the configured
// timeout as a whole; a deadline hit anywhere inside it surfaces as a timeout
// error for this recipient only.
func (t *SMTPTransport) Send(ctx context.Context, m *Message) error {
	raw := composeMIME(m, t.cfg, time.Now().UTC())
	addr := net.JoinHostPort(t.cfg.SMTP.Host, strconv.Itoa(t.cfg.SMTP.Port))

	client, err := t.dial(ctx, addr)
	if err != nil {
		return classifyTransportErr(types.ErrCodeTransportConnect, fmt.Sprintf("connecting to relay %s failed", addr), err)
	}
	defer client.Quit()

	if t.cfg.SMTP.Port != implicitTLSPort {
		if ok, _ := client.Extension("STARTTLS"); ok {
			tlsCfg := &tls.Config{ServerName: t.cfg.SMTP.Host}
			if err := client.StartTLS(tlsCfg); err != nil {
				return classifyTransportErr(types.ErrCodeTransportConnect, "STARTTLS negotiation failed", err)
			}
		}
	}

	if t.cfg.SMTP.User != "" && t.cfg.SMTP.Pass.IsSet() {
		auth := smtp.PlainAuth("", t.cfg.SMTP.User, t.cfg.SMTP.Pass.Unmask(), t.cfg.SMTP.Host)
		if err := client.Auth(auth); err != nil {
			return classifyTransportErr(types.ErrCodeTransportAuth, "relay rejected credentials", err)
		}
	}

	if err := client.Mail(t.cfg.SenderEmail); err != nil {
		return classifyTransportErr(types.ErrCodeTransportRejected, "relay rejected sender", err)
	}
	if err := client.Rcpt(m.To.Email); err != nil {
		return classifyTransportErr(types.ErrCodeTransportRejected, fmt.Sprintf("relay rejected recipient %s", m.To.Email), err)
	}

	w, err := client.Data()
	if err != nil {
		return classifyTransportErr(types.ErrCodeTransportRejected, "relay refused message data", err)
	}
	if _, err := w.Write([]byte(raw)); err != nil {
		return classifyTransportErr(types.ErrCodeTransportRejected, "message submission failed", err)
	}
	if err := w.Close(); err != nil {
		return classifyTransportErr(types.ErrCodeTransportRejected, "relay did not accept the message", err)
	}

	t.logger.Debug("message submitted",
		"backend", string(types.BackendSMTP),
		"to", m.To.Email,
		"bytes", len(raw),
	)
	return nil
}

// dial opens the connection: implicit TLS on 465, plaintext otherwise. The
// whole subsequent session shares one deadline so no exchange can hang past
// the configured timeout.
func (t *SMTPTransport) dial(ctx context.Context, addr string) (*smtp.Client, error) {
	d := &net.Dialer{Timeout: t.cfg.SMTP.Timeout}

	var conn net.Conn
	var err error
	if t.cfg.SMTP.Port == implicitTLSPort {
		tlsDialer := &tls.Dialer{NetDialer: d, Config: &tls.Config{ServerName: t.cfg.SMTP.Host}}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = d.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, err
	}

	if t.cfg.SMTP.Timeout > 0 {
		conn.SetDeadline(time.Now().Add(t.cfg.SMTP.Timeout))
	}

	client, err := smtp.NewClient(conn, t.cfg.SMTP.Host)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return client, nil
}

// classifyTransportErr wraps err as an AppError, promoting deadline hits to
// the timeout code so the dispatch report distinguishes slow relays from
// refusals.
func classifyTransportErr(code types.ErrorCode, message string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return types.NewAppError(types.ErrCodeTransportTimeout, message, err)
	}
	return types.NewAppError(code, message, err)
}
