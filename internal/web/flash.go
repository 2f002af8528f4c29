// Package web holds the operator-facing presentation layer: the HTML page
// templates and the signed flash cookie that carries form feedback across
// redirects.
package web

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"mailblast/internal/types"
)

// flashCookieName is the single cookie used for post-redirect feedback.
const flashCookieName = "mb_flash"

// flashMaxAge caps how long an unread flash survives. One redirect hop is the
// intended lifetime; a minute covers slow clients.
const flashMaxAge = 60

// Flash kinds, used by the layout template to pick banner styling.
const (
	FlashSuccess = "success"
	FlashError   = "error"
)

var (
	errNoSecret     = errors.New("flash: secret must be at least 32 bytes")
	errBadSignature = errors.New("flash: invalid signature")
)

// Flash is one feedback message shown on the next page load.
type Flash struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// CookieManager signs and verifies flash cookies with HMAC-SHA256. The
// signature prevents a client from forging arbitrary banner content that the
// templates would then render as trusted text.
type CookieManager struct {
	secret []byte
	secure bool
}

// NewCookieManager creates a CookieManager from the session secret. The
// config validator enforces the minimum length at startup; the check here
// guards direct construction in tests.
func NewCookieManager(secret types.SecretString, secure bool) (*CookieManager, error) {
	raw := secret.Unmask()
	if len(raw) < 32 {
		return nil, errNoSecret
	}
	return &CookieManager{
		secret: []byte(raw),
		secure: secure,
	}, nil
}

// SetFlash queues a feedback message for the next page load.
func (m *CookieManager) SetFlash(w http.ResponseWriter, f Flash) {
	data, err := json.Marshal(f)
	if err != nil {
		// Flash carries two plain strings; Marshal cannot fail on it.
		return
	}
	http.SetCookie(w, m.cookie(m.sign(data), flashMaxAge))
}

// PopFlash reads and deletes the pending flash message. A missing, expired,
// or tampered cookie reads as no flash; feedback is best-effort.
func (m *CookieManager) PopFlash(w http.ResponseWriter, r *http.Request) (Flash, bool) {
	c, err := r.Cookie(flashCookieName)
	if err != nil {
		return Flash{}, false
	}

	// Delete-after-read regardless of whether verification succeeds.
	http.SetCookie(w, m.cookie("", -1))

	data, err := m.verify(c.Value)
	if err != nil {
		return Flash{}, false
	}

	var f Flash
	if err := json.Unmarshal(data, &f); err != nil {
		return Flash{}, false
	}
	return f, true
}

// sign produces the wire format: base64(value).base64(signature).
func (m *CookieManager) sign(value []byte) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write(value)
	sig := mac.Sum(nil)

	return base64.RawURLEncoding.EncodeToString(value) +
		"." + base64.RawURLEncoding.EncodeToString(sig)
}

// verify checks the signature and returns the embedded value.
func (m *CookieManager) verify(raw string) ([]byte, error) {
	parts := strings.SplitN(raw, ".", 2)
	if len(parts) != 2 {
		return nil, errBadSignature
	}

	value, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, errBadSignature
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, errBadSignature
	}

	mac := hmac.New(sha256.New, m.secret)
	mac.Write(value)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return nil, errBadSignature
	}
	return value, nil
}

// cookie builds the flash cookie with fixed scope attributes.
func (m *CookieManager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     flashCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   m.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
