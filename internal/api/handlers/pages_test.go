package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"mailblast/internal/web"
)

// =============================================================================
// Mock Implementations for Page Handler
// =============================================================================

type mockActiveCounter struct {
	countActiveFn func(ctx context.Context) (int, error)
}

func (m *mockActiveCounter) CountActive(ctx context.Context) (int, error) {
	if m.countActiveFn != nil {
		return m.countActiveFn(ctx)
	}
	return 0, nil
}

func newTestPageHandler(t *testing.T) (*PageHandler, *mockActiveCounter, *web.CookieManager) {
	t.Helper()
	templates, flash := newTestWeb(t)
	counter := &mockActiveCounter{}
	h := NewPageHandler(counter, templates, flash, slog.Default())
	return h, counter, flash
}

// =============================================================================
// Page Handler Tests: Dashboard
// =============================================================================

func TestPageHandler_Dashboard_ShowsActiveCount(t *testing.T) {
	h, counter, _ := newTestPageHandler(t)

	counter.countActiveFn = func(_ context.Context) (int, error) {
		return 7, nil
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	h.Dashboard(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<strong>7</strong> active subscribers")
	assert.Contains(t, w.Body.String(), `action="/send"`)
}

func TestPageHandler_Dashboard_CountFailureRendersZero(t *testing.T) {
	h, counter, _ := newTestPageHandler(t)

	counter.countActiveFn = func(_ context.Context) (int, error) {
		return 0, errors.New("connection refused")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	h.Dashboard(w, req)

	// The compose form must stay reachable even when the count query fails.
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<strong>0</strong>")
	assert.Contains(t, w.Body.String(), `action="/send"`)
}

func TestPageHandler_Dashboard_ShowsAndClearsPendingFlash(t *testing.T) {
	h, _, flash := newTestPageHandler(t)

	setRec := httptest.NewRecorder()
	flash.SetFlash(setRec, web.Flash{Kind: web.FlashSuccess, Message: "You are subscribed."})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range setRec.Result().Cookies() {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()

	h.Dashboard(w, req)

	assert.Contains(t, w.Body.String(), `class="flash flash-success"`)
	assert.Contains(t, w.Body.String(), "You are subscribed.")

	var cleared bool
	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared, "the flash cookie should be deleted after display")
}

// =============================================================================
// Page Handler Tests: Subscribe Page
// =============================================================================

func TestPageHandler_SubscribePage_RendersForm(t *testing.T) {
	h, _, _ := newTestPageHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/subscribe", nil)
	w := httptest.NewRecorder()

	h.SubscribePage(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `action="/subscribe"`)
	assert.Contains(t, w.Body.String(), `name="email"`)
}
