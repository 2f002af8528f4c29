package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"mailblast/internal/dispatch"
	"mailblast/internal/types"
	"mailblast/internal/web"
)

// BatchDispatcher runs one broadcast batch to completion.
type BatchDispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) (*dispatch.Report, error)
}

var _ BatchDispatcher = (*dispatch.Dispatcher)(nil)

// SendHandler turns the compose form into a dispatch request and renders the
// per-recipient report.
type SendHandler struct {
	dispatcher BatchDispatcher
	templates  *web.Templates
	flash      *web.CookieManager
	logger     *slog.Logger
}

// NewSendHandler creates a SendHandler with the provided dependencies.
func NewSendHandler(dispatcher BatchDispatcher, templates *web.Templates, flash *web.CookieManager, logger *slog.Logger) *SendHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SendHandler{
		dispatcher: dispatcher,
		templates:  templates,
		flash:      flash,
		logger:     logger,
	}
}

// RegisterRoutes mounts the dispatch route on the provided chi.Router.
func (h *SendHandler) RegisterRoutes(r chi.Router) {
	r.Post("/send", h.Send)
}

// Send handles POST /send.
//
// Validation failures flash a banner and bounce back to the compose form
// with nothing sent. Once the batch starts, per-recipient failures land in
// the report instead; the request blocks until every recipient has been
// attempted.
func (h *SendHandler) Send(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		flashAndRedirect(w, r, h.flash, web.FlashError, "invalid form submission", "/")
		return
	}

	subject := strings.TrimSpace(r.PostFormValue("subject"))
	bodyHTML := r.PostFormValue("body_html")
	if subject == "" || strings.TrimSpace(bodyHTML) == "" {
		flashAndRedirect(w, r, h.flash, web.FlashError, "subject and body are required", "/")
		return
	}

	req := dispatch.Request{
		Subject:     subject,
		BodyHTML:    bodyHTML,
		Recipients:  r.PostFormValue("recipients"),
		UseAudience: r.PostFormValue("use_audience") != "",
		Mode:        parseMode(r.PostFormValue("mode")),
		TestEmail:   r.PostFormValue("test_email"),
		ImageURL:    strings.TrimSpace(r.PostFormValue("image_url")),
	}

	report, err := h.dispatcher.Dispatch(r.Context(), req)
	if err != nil {
		h.logger.Warn("dispatch rejected", "error", err)
		flashAndRedirect(w, r, h.flash, web.FlashError, flashMessage(err), "/")
		return
	}

	failures := make([]web.FailureRow, 0, len(report.SentFail))
	for _, f := range report.SentFail {
		failures = append(failures, web.FailureRow{Email: f.Email, Reason: f.Reason})
	}

	h.templates.Report(w, web.ReportData{
		Page:     web.Page{Title: "Dispatch report"},
		Subject:  report.Subject,
		Mode:     report.Mode,
		SentOK:   report.SentOK,
		SentFail: failures,
	})
}

// parseMode maps the form value onto a dispatch mode. Anything but an
// explicit "send" stays in test mode; the destructive path must be opted
// into.
func parseMode(raw string) types.DispatchMode {
	if raw == string(types.ModeSend) {
		return types.ModeSend
	}
	return types.ModeTest
}
