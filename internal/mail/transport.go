package mail

import (
	"context"
	"fmt"
	"log/slog"

	"mailblast/internal/config"
	"mailblast/internal/types"
)

// Transport delivers exactly one message per call. Implementations fail with
// a typed *types.AppError and never panic; one recipient's failure carries no
// state into the next call.
type Transport interface {
	Send(ctx context.Context, m *Message) error
}

// NewTransport selects the backend once at startup. Incomplete settings for
// the selected backend surface here, before any dispatch can begin.
func NewTransport(cfg config.MailConfig, logger *slog.Logger) (Transport, error) {
	switch cfg.Backend {
	case types.BackendSMTP:
		return NewSMTPTransport(cfg, logger)
	case types.BackendAPI:
		return NewAPITransport(cfg, logger)
	default:
		return nil, types.NewAppError(types.ErrCodeConfigMail, fmt.Sprintf("unknown mail backend %q", cfg.Backend), nil)
	}
}

// Compile-time interface checks.
var (
	_ Transport = (*SMTPTransport)(nil)
	_ Transport = (*APITransport)(nil)
)
