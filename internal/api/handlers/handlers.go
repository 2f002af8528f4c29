// Package handlers contains the HTTP handler implementations for the
// mailblast operator UI: the dashboard and subscribe pages, the subscriber
// mutations, batch dispatch, and image upload.
//
// Handlers depend on narrow interfaces declared here rather than concrete
// types, so tests can inject function-field mocks without a database or a
// live transport.
package handlers

import (
	"errors"
	"net/http"

	"mailblast/internal/types"
	"mailblast/internal/web"
)

// flashMessage extracts a client-safe message from err for banner display.
// AppError messages are written for operators; anything else stays generic.
func flashMessage(err error) string {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "an unexpected error occurred"
}

// flashAndRedirect queues an error banner and sends the browser back to the
// given page. Form posts always answer with 303 so a refresh cannot repost.
func flashAndRedirect(w http.ResponseWriter, r *http.Request, flash *web.CookieManager, kind, message, location string) {
	flash.SetFlash(w, web.Flash{Kind: kind, Message: message})
	http.Redirect(w, r, location, http.StatusSeeOther)
}
