package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"mailblast/internal/types"
	"mailblast/internal/web"
)

const testSessionSecret = types.SecretString("this-is-a-32-byte-or-longer-key!")

// =============================================================================
// Shared Test Helpers
// =============================================================================

func newTestWeb(t *testing.T) (*web.Templates, *web.CookieManager) {
	t.Helper()
	templates, err := web.NewTemplates()
	require.NoError(t, err)
	flash, err := web.NewCookieManager(testSessionSecret, false)
	require.NoError(t, err)
	return templates, flash
}

// postForm builds an already-parsed urlencoded form POST, the shape every
// browser form on the dashboard produces.
func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// flashFromResponse replays the flash cookie a handler set, the way the
// browser would on the redirect follow-up.
func flashFromResponse(t *testing.T, flash *web.CookieManager, rec *httptest.ResponseRecorder) web.Flash {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 {
			req.AddCookie(c)
		}
	}

	f, ok := flash.PopFlash(httptest.NewRecorder(), req)
	require.True(t, ok, "expected a flash cookie on the response")
	return f
}
