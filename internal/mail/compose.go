package mail

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"mime"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"mailblast/internal/config"
	"mailblast/internal/images"
)

// composeMIME assembles the full RFC 5322 message submitted over SMTP.
//
// Layout without an inline image:
//
//	multipart/alternative
//	├── text/plain  (fallback)
//	└── text/html
//
// With an inline image the HTML part is wrapped in multipart/related so the
// cid: reference in the body resolves to the attached part:
//
//	multipart/alternative
//	├── text/plain  (fallback)
//	└── multipart/related
//	    ├── text/html
//	    └── image/*  (Content-ID, inline, base64)
func composeMIME(m *Message, cfg config.MailConfig, now time.Time) string {
	var msg strings.Builder

	from := mail.Address{Name: cfg.SenderName, Address: cfg.SenderEmail}
	msg.WriteString(fmt.Sprintf("From: %s\r\n", from.String()))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", m.To.Email))
	if cfg.ReplyTo != "" {
		msg.WriteString(fmt.Sprintf("Reply-To: %s\r\n", cfg.ReplyTo))
	}
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject)))
	msg.WriteString(fmt.Sprintf("Date: %s\r\n", now.Format(time.RFC1123Z)))
	msg.WriteString(fmt.Sprintf("Message-ID: <%s@%s>\r\n", uuid.NewString(), messageIDHost(cfg)))
	msg.WriteString("MIME-Version: 1.0\r\n")
	if m.UnsubscribeURL != "" {
		msg.WriteString(fmt.Sprintf("List-Unsubscribe: <%s>\r\n", m.UnsubscribeURL))
	}

	altBoundary := randomBoundary("alt")
	msg.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=%s\r\n\r\n", altBoundary))

	msg.WriteString(fmt.Sprintf("--%s\r\n", altBoundary))
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.WriteString(PlainTextFallback)
	msg.WriteString("\r\n\r\n")

	msg.WriteString(fmt.Sprintf("--%s\r\n", altBoundary))
	if m.Inline != nil {
		relBoundary := randomBoundary("rel")
		msg.WriteString(fmt.Sprintf("Content-Type: multipart/related; boundary=%s\r\n\r\n", relBoundary))
		msg.WriteString(fmt.Sprintf("--%s\r\n", relBoundary))
		writeHTMLPart(&msg, m.HTMLBody)
		writeInlinePart(&msg, m.Inline, relBoundary)
		msg.WriteString(fmt.Sprintf("--%s--\r\n", relBoundary))
	} else {
		writeHTMLPart(&msg, m.HTMLBody)
	}
	msg.WriteString(fmt.Sprintf("--%s--\r\n", altBoundary))

	return msg.String()
}

func writeHTMLPart(msg *strings.Builder, html string) {
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	msg.WriteString(html)
	msg.WriteString("\r\n\r\n")
}

// writeInlinePart emits the attached image. Inline.Content is already
// base64-encoded; it only needs line wrapping here.
func writeInlinePart(msg *strings.Builder, img *images.Inline, boundary string) {
	msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	msg.WriteString(fmt.Sprintf("Content-Type: %s\r\n", img.MIMEType))
	msg.WriteString(fmt.Sprintf("Content-Disposition: inline; filename=\"%s\"\r\n", img.Filename))
	msg.WriteString(fmt.Sprintf("Content-ID: <%s>\r\n", img.CID))
	msg.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
	for i := 0; i < len(img.Content); i += 76 {
		end := i + 76
		if end > len(img.Content) {
			end = len(img.Content)
		}
		msg.WriteString(img.Content[i:end])
		msg.WriteString("\r\n")
	}
	msg.WriteString("\r\n")
}

// messageIDHost picks the domain part of the Message-ID: the relay host when
// one is configured, the sender's domain otherwise (api backend).
func messageIDHost(cfg config.MailConfig) string {
	if cfg.SMTP.Host != "" {
		return cfg.SMTP.Host
	}
	if at := strings.LastIndex(cfg.SenderEmail, "@"); at >= 0 {
		return cfg.SenderEmail[at+1:]
	}
	return "localhost"
}

// randomBoundary returns a MIME boundary unique enough to never collide with
// message content. Falls back to a timestamp if the random source fails.
func randomBoundary(prefix string) string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%s", prefix, hex.EncodeToString(buf))
}
