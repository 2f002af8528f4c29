package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mailblast/internal/db"
	"mailblast/internal/web"
)

// ActiveCounter provides the dashboard's subscriber count.
type ActiveCounter interface {
	CountActive(ctx context.Context) (int, error)
}

var _ ActiveCounter = (*db.SubscriberRepository)(nil)

// PageHandler serves the read-only HTML pages: the dashboard with the
// compose form and the subscribe form.
type PageHandler struct {
	subs      ActiveCounter
	templates *web.Templates
	flash     *web.CookieManager
	logger    *slog.Logger
}

// NewPageHandler creates a PageHandler with the provided dependencies.
func NewPageHandler(subs ActiveCounter, templates *web.Templates, flash *web.CookieManager, logger *slog.Logger) *PageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageHandler{
		subs:      subs,
		templates: templates,
		flash:     flash,
		logger:    logger,
	}
}

// RegisterRoutes mounts the page routes on the provided chi.Router.
func (h *PageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Dashboard)
	r.Get("/subscribe", h.SubscribePage)
}

// Dashboard handles GET /. It shows the active subscriber count and the
// compose form. A count failure renders as zero rather than hiding the
// compose form behind a database hiccup.
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	count, err := h.subs.CountActive(r.Context())
	if err != nil {
		h.logger.Error("failed to count active subscribers", "error", err)
		count = 0
	}

	flash, _ := h.popFlash(w, r)
	h.templates.Dashboard(w, web.DashboardData{
		Page:        web.Page{Title: "Dashboard", Flash: flash},
		ActiveCount: count,
	})
}

// SubscribePage handles GET /subscribe.
func (h *PageHandler) SubscribePage(w http.ResponseWriter, r *http.Request) {
	flash, _ := h.popFlash(w, r)
	h.templates.Subscribe(w, web.SubscribeData{
		Page: web.Page{Title: "Subscribe", Flash: flash},
	})
}

// popFlash adapts PopFlash's value return to the *Flash the templates take.
func (h *PageHandler) popFlash(w http.ResponseWriter, r *http.Request) (*web.Flash, bool) {
	f, ok := h.flash.PopFlash(w, r)
	if !ok {
		return nil, false
	}
	return &f, true
}
