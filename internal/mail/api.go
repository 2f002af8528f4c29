package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"mailblast/internal/config"
	"mailblast/internal/external"
	"mailblast/internal/types"
)

// userAgent identifies this tool on outbound provider calls.
const userAgent = "Mailblast/1.0"

// APITransport delivers messages through the transactional provider's
// v3 mail send endpoint. All requests ride the shared single-shot HTTP
// client; the provider's 202 Accepted is the only status treated as a
// delivered message.
type APITransport struct {
	base    *external.BaseClient
	cfg     config.MailConfig
	baseURL string
	logger  *slog.Logger
}

// NewAPITransport validates the provider settings and builds the transport
// with its own bounded HTTP client. A missing API key rejects the whole batch
// before the first delivery attempt.
func NewAPITransport(cfg config.MailConfig, logger *slog.Logger) (*APITransport, error) {
	if !cfg.API.Key.IsSet() {
		return nil, types.NewAppError(types.ErrCodeConfigMail, "MAIL_API_KEY is required for the api backend", nil)
	}
	base := external.NewBaseClient(&http.Client{Timeout: cfg.API.Timeout}, "mail-api", userAgent)
	return NewAPITransportWithBase(base, cfg, logger), nil
}

// NewAPITransportWithBase builds the transport over a caller-provided
// BaseClient. Tests use it to control breaker behavior and point the
// transport at a stub server.
func NewAPITransportWithBase(base *external.BaseClient, cfg config.MailConfig, logger *slog.Logger) *APITransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &APITransport{
		base:    base,
		cfg:     cfg,
		baseURL: strings.TrimSuffix(cfg.API.BaseURL, "/"),
		logger:  logger,
	}
}

// Send submits one message to the provider.
func (t *APITransport) Send(ctx context.Context, m *Message) error {
	body, err := json.Marshal(t.buildMailPayload(m))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal mail payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create mail send request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.cfg.API.Key.Unmask())

	resp, err := t.base.Do(req)
	if err != nil {
		return wrapProviderErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted {
		t.logger.Debug("message submitted",
			"backend", string(types.BackendAPI),
			"to", m.To.Email,
			"message_id", resp.Header.Get("X-Message-Id"),
		)
		return nil
	}

	return t.handleErrorResponse(resp)
}

// ---------------------------------------------------------------------------
// Payload construction
// ---------------------------------------------------------------------------

// apiMailPayload is the provider's v3 mail/send JSON request body.
type apiMailPayload struct {
	Personalizations []apiPersonalization `json:"personalizations"`
	From             apiAddress           `json:"from"`
	ReplyTo          *apiAddress          `json:"reply_to,omitempty"`
	Subject          string               `json:"subject"`
	Content          []apiContent         `json:"content"`
	Attachments      []apiAttachment      `json:"attachments,omitempty"`
}

type apiPersonalization struct {
	To      []apiAddress      `json:"to"`
	Headers map[string]string `json:"headers,omitempty"`
}

type apiAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type apiContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type apiAttachment struct {
	Content     string `json:"content"`
	Type        string `json:"type"`
	Filename    string `json:"filename"`
	Disposition string `json:"disposition"`
	ContentID   string `json:"content_id"`
}

// buildMailPayload maps a Message to the provider payload. The plain-text
// part must precede the HTML part; the provider rejects other orders.
func (t *APITransport) buildMailPayload(m *Message) apiMailPayload {
	personalization := apiPersonalization{
		To: []apiAddress{{Email: m.To.Email}},
	}
	if m.UnsubscribeURL != "" {
		personalization.Headers = map[string]string{
			"List-Unsubscribe": fmt.Sprintf("<%s>", m.UnsubscribeURL),
		}
	}

	payload := apiMailPayload{
		Personalizations: []apiPersonalization{personalization},
		From: apiAddress{
			Email: t.cfg.SenderEmail,
			Name:  t.cfg.SenderName,
		},
		Subject: m.Subject,
		Content: []apiContent{
			{Type: "text/plain", Value: PlainTextFallback},
			{Type: "text/html", Value: m.HTMLBody},
		},
	}

	if t.cfg.ReplyTo != "" {
		payload.ReplyTo = &apiAddress{Email: t.cfg.ReplyTo}
	}

	if m.Inline != nil {
		payload.Attachments = []apiAttachment{{
			Content:     m.Inline.Content,
			Type:        m.Inline.MIMEType,
			Filename:    m.Inline.Filename,
			Disposition: "inline",
			ContentID:   m.Inline.CID,
		}}
	}

	return payload
}

// ---------------------------------------------------------------------------
// Error handling
// ---------------------------------------------------------------------------

// apiErrorResponse is the JSON error body returned by the provider.
type apiErrorResponse struct {
	Errors []apiErrorDetail `json:"errors"`
}

type apiErrorDetail struct {
	Message string `json:"message"`
	Field   string `json:"field"`
	Help    string `json:"help"`
}

// handleErrorResponse turns any non-202 response into a typed failure
// carrying the provider's diagnostic. 429 and 5xx never reach here; the
// BaseClient maps those before returning.
func (t *APITransport) handleErrorResponse(resp *http.Response) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return types.NewAppError(
			types.ErrCodeTransportRejected,
			fmt.Sprintf("provider returned status %d and the response body was unreadable", resp.StatusCode),
			readErr,
		)
	}

	var apiErr apiErrorResponse
	detail := ""
	if jsonErr := json.Unmarshal(body, &apiErr); jsonErr == nil && len(apiErr.Errors) > 0 {
		detail = apiErr.Errors[0].Message
	} else {
		detail = strings.TrimSpace(string(body))
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return types.NewAppError(
			types.ErrCodeTransportAuth,
			fmt.Sprintf("provider refused credentials (%d): %s", resp.StatusCode, detail),
			nil,
		)
	default:
		return types.NewAppError(
			types.ErrCodeTransportRejected,
			fmt.Sprintf("provider rejected the message (%d): %s", resp.StatusCode, detail),
			nil,
		)
	}
}

// wrapProviderErr passes BaseClient errors through unchanged: they already
// carry the right transport code (timeout, rate limited, unreachable).
func wrapProviderErr(err error) error {
	if _, ok := err.(*types.AppError); ok {
		return err
	}
	return types.NewAppError(types.ErrCodeTransportConnect, "provider request failed", err)
}
