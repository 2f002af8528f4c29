package types

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"time"
)

// Subscriber is the single persisted domain entity: one opted-in (or
// opted-out) email address with its permanent unsubscribe token.
type Subscriber struct {
	ID        int64            `json:"id" db:"id"`
	Email     string           `json:"email" db:"email"`
	Name      string           `json:"name,omitempty" db:"name"`
	Token     string           `json:"-" db:"token"`
	Status    SubscriberStatus `json:"status" db:"status"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}

// Recipient is one resolved dispatch target: a normalized address plus the
// unsubscribe token embedded in its message. The token is the subscriber's
// stored token when the address is known, otherwise a single-use value minted
// for this dispatch only.
type Recipient struct {
	Email string
	Token string
}

// NormalizeEmail applies the canonical address normalization used everywhere
// an email enters the system: trim surrounding whitespace, lowercase.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// subscriberTokenBytes and sendTokenBytes size the two token classes.
// Subscriber tokens are permanent credentials; per-send tokens only have to
// be unguessable for the lifetime of one message.
const (
	subscriberTokenBytes = 24
	sendTokenBytes       = 16
)

// NewSubscriberToken mints the permanent unsubscribe token stored with a new
// subscriber row. URL-safe so it can ride in a query string unescaped.
func NewSubscriberToken() string {
	return randomToken(subscriberTokenBytes)
}

// NewSendToken mints a single-use token for recipients that have no stored
// subscriber record. Never persisted.
func NewSendToken() string {
	return randomToken(sendTokenBytes)
}

func randomToken(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms.
		panic("types: crypto/rand unavailable: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
