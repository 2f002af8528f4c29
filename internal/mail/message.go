// Package mail renders and delivers one outbound message per call. It owns
// the promotional HTML wrapper, the RFC 5322 composition shared by the
// transports, and the two interchangeable backends (direct SMTP, HTTP API).
// Backend selection is a deployment detail: both produce the same visible
// content, the same List-Unsubscribe header, and the same inline-image
// behavior.
package mail

import (
	"mailblast/internal/images"
	"mailblast/internal/types"
)

// PlainTextFallback is the text/plain alternative carried by every message
// for clients that do not render HTML.
const PlainTextFallback = "This email requires an HTML-capable client to display properly."

// Message is one fully rendered outbound email, addressed to exactly one
// recipient. The dispatcher builds one Message per recipient; transports
// deliver it without further transformation.
type Message struct {
	To      types.Recipient
	Subject string
	// HTMLBody is the complete rendered document, unsubscribe footer
	// included. Transports never edit it.
	HTMLBody string
	// UnsubscribeURL is duplicated outside the body as the List-Unsubscribe
	// header value so mail clients can offer native opt-out.
	UnsubscribeURL string
	// Inline is the optional embedded image, shared across the whole batch.
	// Nil means the message body references no attached image.
	Inline *images.Inline
}
