package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mailblast/internal/db"
	"mailblast/internal/web"
)

// SubscriberStore defines the data access contract for subscriber mutations.
// Mirrors the concrete db.SubscriberRepository methods this handler uses.
type SubscriberStore interface {
	Upsert(ctx context.Context, email, name string) error
	UnsubscribeByToken(ctx context.Context, token string) (bool, error)
}

var _ SubscriberStore = (*db.SubscriberRepository)(nil)

// SubscriberHandler covers the subscriber lifecycle exposed over HTTP:
// joining the list via the form and leaving it via the emailed token link.
type SubscriberHandler struct {
	store     SubscriberStore
	templates *web.Templates
	flash     *web.CookieManager
	logger    *slog.Logger
}

// NewSubscriberHandler creates a SubscriberHandler with the provided dependencies.
func NewSubscriberHandler(store SubscriberStore, templates *web.Templates, flash *web.CookieManager, logger *slog.Logger) *SubscriberHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriberHandler{
		store:     store,
		templates: templates,
		flash:     flash,
		logger:    logger,
	}
}

// RegisterRoutes mounts the subscriber routes on the provided chi.Router.
func (h *SubscriberHandler) RegisterRoutes(r chi.Router) {
	r.Post("/subscribe", h.Subscribe)
	r.Get("/unsubscribe", h.Unsubscribe)
}

// Subscribe handles POST /subscribe. A repeated submission for a known email
// reactivates the subscriber; the stored token and name survive.
func (h *SubscriberHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		flashAndRedirect(w, r, h.flash, web.FlashError, "invalid form submission", "/subscribe")
		return
	}

	email := r.PostFormValue("email")
	name := r.PostFormValue("name")

	if err := h.store.Upsert(r.Context(), email, name); err != nil {
		h.logger.Warn("subscribe failed", "error", err)
		flashAndRedirect(w, r, h.flash, web.FlashError, flashMessage(err), "/subscribe")
		return
	}

	flashAndRedirect(w, r, h.flash, web.FlashSuccess, "You are subscribed.", "/subscribe")
}

// Unsubscribe handles GET /unsubscribe?token=...
//
// An unknown token is a normal outcome, not an error: the page says so and
// nothing is mutated. A known token is idempotent; revisiting the link after
// opting out confirms again.
func (h *SubscriberHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	found, err := h.store.UnsubscribeByToken(r.Context(), token)
	if err != nil {
		h.logger.Error("unsubscribe failed", "error", err)
		http.Error(w, "something went wrong, please try the link again later", http.StatusInternalServerError)
		return
	}

	title := "Link not recognized"
	if found {
		title = "Unsubscribed"
	}
	h.templates.Unsubscribe(w, web.UnsubscribeData{
		Page:  web.Page{Title: title},
		Found: found,
	})
}
