// Package dispatch runs one send batch end to end: resolve the recipients,
// fetch the optional image once, then render and deliver one message per
// recipient, strictly sequentially, pausing a fixed delay after every send.
// A recipient failure is recorded and the loop continues; only resolver
// failures (validation, storage) abort the batch.
package dispatch

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"mailblast/internal/audience"
	"mailblast/internal/images"
	"mailblast/internal/mail"
	"mailblast/internal/metrics"
	"mailblast/internal/types"
)

// Request is one operator-submitted send batch, straight off the compose
// form.
type Request struct {
	Subject     string
	BodyHTML    string
	Recipients  string
	UseAudience bool
	Mode        types.DispatchMode
	TestEmail   string
	ImageURL    string
}

// Failure is one undelivered recipient with the human-readable reason shown
// on the report page.
type Failure struct {
	Email  string
	Reason string
}

// Report is the aggregate outcome of one batch. SentOK and SentFail each
// preserve dispatch order; nothing is retried or re-sorted.
type Report struct {
	Subject  string
	Mode     types.DispatchMode
	SentOK   []string
	SentFail []Failure
}

// Total is the number of recipients the batch attempted.
func (r *Report) Total() int {
	return len(r.SentOK) + len(r.SentFail)
}

// RecipientResolver produces the ordered target list for a batch.
type RecipientResolver interface {
	Resolve(ctx context.Context, req audience.Request) ([]types.Recipient, error)
}

// ImageFetcher fetches and encodes the batch image. A nil result means "send
// without an inline image"; it never errors.
type ImageFetcher interface {
	Fetch(ctx context.Context, imageURL string) *images.Inline
}

var (
	_ RecipientResolver = (*audience.Resolver)(nil)
	_ ImageFetcher      = (*images.Inliner)(nil)
)

// Config wires a Dispatcher. Resolver, Renderer, and Transport are required;
// the rest default to safe no-ops.
type Config struct {
	Resolver  RecipientResolver
	Inliner   ImageFetcher
	Renderer  *mail.Renderer
	Transport mail.Transport
	Recorder  metrics.DeliveryRecorder
	// Backend labels delivery metrics; it does not influence sending.
	Backend types.MailBackend
	// BaseURL is the public origin for unsubscribe links, no trailing slash.
	BaseURL string
	// BatchDelay is the fixed pause after every send, the last included.
	BatchDelay time.Duration
	// Sleep is swappable for tests; nil means time.Sleep.
	Sleep  func(time.Duration)
	Logger *slog.Logger
}

// Dispatcher executes send batches. Safe for concurrent use; each Dispatch
// call owns its own state.
type Dispatcher struct {
	resolver  RecipientResolver
	inliner   ImageFetcher
	renderer  *mail.Renderer
	transport mail.Transport
	recorder  metrics.DeliveryRecorder
	backend   types.MailBackend
	baseURL   string
	delay     time.Duration
	sleep     func(time.Duration)
	logger    *slog.Logger
}

// NewDispatcher applies Config defaults and returns the dispatcher.
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = metrics.NoopRecorder{}
	}
	return &Dispatcher{
		resolver:  cfg.Resolver,
		inliner:   cfg.Inliner,
		renderer:  cfg.Renderer,
		transport: cfg.Transport,
		recorder:  cfg.Recorder,
		backend:   cfg.Backend,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		delay:     cfg.BatchDelay,
		sleep:     cfg.Sleep,
		logger:    cfg.Logger,
	}
}

// Dispatch runs one batch to completion. It returns an error only when the
// resolver rejects the request (no recipients, missing test address, storage
// failure); once the loop starts, every outcome lands in the report and the
// batch always finishes.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Report, error) {
	recipients, err := d.resolver.Resolve(ctx, audience.Request{
		Recipients:  req.Recipients,
		UseAudience: req.UseAudience,
		Mode:        req.Mode,
		TestEmail:   req.TestEmail,
	})
	if err != nil {
		return nil, err
	}

	// The image is fetched at most once per batch and shared immutably by
	// every message.
	var inline *images.Inline
	if req.ImageURL != "" && d.inliner != nil {
		inline = d.inliner.Fetch(ctx, req.ImageURL)
	}
	var imageSrc template.URL
	switch {
	case inline != nil:
		imageSrc = template.URL(inline.CIDReference())
	case req.ImageURL != "":
		// Inlining degraded (or was never attempted): reference the image
		// by its original URL instead.
		imageSrc = template.URL(req.ImageURL)
	}

	started := time.Now()
	report := &Report{Subject: req.Subject, Mode: req.Mode}

	for _, rcpt := range recipients {
		unsubURL := d.unsubscribeURL(rcpt.Token)

		html, err := d.renderer.Render(mail.TemplateData{
			Subject:        req.Subject,
			BodyHTML:       template.HTML(req.BodyHTML),
			ImageSrc:       imageSrc,
			UnsubscribeURL: unsubURL,
		})
		if err == nil {
			err = d.transport.Send(ctx, &mail.Message{
				To:             rcpt,
				Subject:        req.Subject,
				HTMLBody:       html,
				UnsubscribeURL: unsubURL,
				Inline:         inline,
			})
		}

		if err != nil {
			reason := types.Reason(err)
			report.SentFail = append(report.SentFail, Failure{Email: rcpt.Email, Reason: reason})
			d.recorder.RecordDelivery(ctx, d.backend, false)
			d.logger.Warn("delivery failed",
				"recipient", rcpt.Email,
				"reason", reason,
			)
		} else {
			report.SentOK = append(report.SentOK, rcpt.Email)
			d.recorder.RecordDelivery(ctx, d.backend, true)
		}

		d.sleep(d.delay)
	}

	d.recorder.RecordBatch(ctx, len(recipients), len(report.SentFail), time.Since(started))
	d.logger.Info("dispatch complete",
		"mode", string(req.Mode),
		"total", len(recipients),
		"sent", len(report.SentOK),
		"failed", len(report.SentFail),
	)
	return report, nil
}

func (d *Dispatcher) unsubscribeURL(token string) string {
	return fmt.Sprintf("%s/unsubscribe?token=%s", d.baseURL, url.QueryEscape(token))
}
