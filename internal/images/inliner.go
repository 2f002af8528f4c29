// Package images covers both directions of image handling: fetching a remote
// image for CID inlining into outgoing mail, and hosting operator uploads
// (local disk or S3) so composed mail can reference them by URL.
package images

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"mailblast/internal/external"
)

// maxInlineBytes bounds the fetched image body. Anything larger is not worth
// inlining into an email.
const maxInlineBytes = 10 << 20 // 10 MiB

// Inline is a fetched image ready for CID embedding: base64 content plus the
// metadata the MIME composer needs.
type Inline struct {
	// Content is the standard-base64 encoded image body, unwrapped. The
	// transports re-wrap it to their own line-length rules.
	Content string

	// MIMEType is the media type reported by the origin, e.g. "image/png".
	MIMEType string

	// Filename is a derived attachment name, e.g. "inline.png".
	Filename string

	// CID is the Content-ID recipients' clients use to resolve the
	// cid: reference in the HTML body. Unique per dispatch.
	CID string
}

// Inliner fetches and validates a remote image for embedding. Every failure
// mode (unreachable host, non-2xx, non-image content type, oversized body,
// timeout) degrades to a nil result; Fetch never returns an error. Callers
// treat nil as "send without an inline image."
type Inliner struct {
	client *external.BaseClient
	logger *slog.Logger
}

// NewInliner creates an Inliner on the shared outbound HTTP client.
func NewInliner(client *external.BaseClient, logger *slog.Logger) *Inliner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inliner{client: client, logger: logger}
}

// Fetch validates and downloads the image at imageURL. It issues a HEAD
// request first (existence and content-type check), then a GET for the body.
// The result is computed once per dispatch and reused for every recipient;
// Fetch itself holds no cache.
func (i *Inliner) Fetch(ctx context.Context, imageURL string) *Inline {
	if strings.TrimSpace(imageURL) == "" {
		return nil
	}

	mimeType, ok := i.probe(ctx, imageURL)
	if !ok {
		return nil
	}

	body, ok := i.download(ctx, imageURL)
	if !ok {
		return nil
	}

	return &Inline{
		Content:  base64.StdEncoding.EncodeToString(body),
		MIMEType: mimeType,
		Filename: "inline" + extensionForType(mimeType),
		CID:      uuid.NewString() + "@mailblast",
	}
}

// probe checks that the URL answers a HEAD with 2xx and an image/* content
// type.
func (i *Inliner) probe(ctx context.Context, imageURL string) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, imageURL, nil)
	if err != nil {
		i.logger.Warn("inline image skipped: bad URL", slog.String("url", imageURL), slog.Any("error", err))
		return "", false
	}

	resp, err := i.client.Do(req)
	if err != nil {
		i.logger.Warn("inline image skipped: probe failed", slog.String("url", imageURL), slog.Any("error", err))
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		i.logger.Warn("inline image skipped: non-2xx probe",
			slog.String("url", imageURL),
			slog.Int("status", resp.StatusCode),
		)
		return "", false
	}

	mimeType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mimeType, "image/") {
		i.logger.Warn("inline image skipped: not an image",
			slog.String("url", imageURL),
			slog.String("content_type", resp.Header.Get("Content-Type")),
		)
		return "", false
	}

	return mimeType, true
}

// download fetches the image body with a bounded read.
func (i *Inliner) download(ctx context.Context, imageURL string) ([]byte, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, false
	}

	resp, err := i.client.Do(req)
	if err != nil {
		i.logger.Warn("inline image skipped: fetch failed", slog.String("url", imageURL), slog.Any("error", err))
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		i.logger.Warn("inline image skipped: non-2xx fetch",
			slog.String("url", imageURL),
			slog.Int("status", resp.StatusCode),
		)
		return nil, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxInlineBytes+1))
	if err != nil {
		i.logger.Warn("inline image skipped: body read failed", slog.String("url", imageURL), slog.Any("error", err))
		return nil, false
	}
	if len(body) > maxInlineBytes {
		i.logger.Warn("inline image skipped: body too large",
			slog.String("url", imageURL),
			slog.Int("limit_bytes", maxInlineBytes),
		)
		return nil, false
	}
	if len(body) == 0 {
		return nil, false
	}

	return body, true
}

// extensionForType maps an image media type to a filename extension. Unknown
// types fall back to .jpg.
func extensionForType(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	case "image/bmp":
		return ".bmp"
	default:
		return ".jpg"
	}
}

// CIDReference renders the src attribute value for an inline image.
func (im *Inline) CIDReference() string {
	return fmt.Sprintf("cid:%s", im.CID)
}
