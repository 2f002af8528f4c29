// Package audience turns a raw recipient specification (free-form operator
// text, the stored subscriber list, a dispatch mode) into the final ordered
// recipient set for one dispatch. Resolution is pure set arithmetic plus token
// lookup; it performs no delivery.
package audience

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"mailblast/internal/types"
)

// SubscriberSource provides the stored audience and token lookups. Satisfied
// by db.SubscriberRepository.
type SubscriberSource interface {
	ListActive(ctx context.Context) ([]types.Subscriber, error)
	TokensByEmails(ctx context.Context, emails []string) (map[string]string, error)
}

// Request carries the operator's recipient specification for one dispatch.
type Request struct {
	// Recipients is raw comma/semicolon-delimited address text. Tokens are
	// trimmed and lowercased; empties are discarded.
	Recipients string

	// UseAudience unions in every active subscriber.
	UseAudience bool

	// Mode selects live or test dispatch. In test mode the resolved set is
	// exactly the test address, regardless of Recipients and UseAudience.
	Mode types.DispatchMode

	// TestEmail is the single recipient used in test mode.
	TestEmail string
}

// Resolver computes the recipient set for a dispatch.
type Resolver struct {
	store  SubscriberSource
	logger *slog.Logger
}

// NewResolver creates a Resolver backed by the given subscriber source.
func NewResolver(store SubscriberSource, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, logger: logger}
}

// Resolve produces the final recipient list, sorted lexicographically by
// email so repeated runs with identical input process recipients in identical
// order.
//
// Each recipient carries an unsubscribe token: the stored token when the
// address belongs to a known subscriber (any status), otherwise a freshly
// generated single-use token that is never persisted.
//
// Errors are validation AppErrors (empty test address, empty final set) or
// storage AppErrors passed through from the subscriber source.
func (r *Resolver) Resolve(ctx context.Context, req Request) ([]types.Recipient, error) {
	set := make(map[string]struct{})

	if req.Mode == types.ModeTest {
		// Test mode replaces the whole set with the single test address.
		addr := types.NormalizeEmail(req.TestEmail)
		if addr == "" {
			return nil, types.NewAppError(
				types.ErrCodeValidationTestAddress,
				"test mode requires a test address",
				nil,
			)
		}
		set[addr] = struct{}{}
	} else {
		for _, tok := range splitAddressList(req.Recipients) {
			if addr := types.NormalizeEmail(tok); addr != "" {
				set[addr] = struct{}{}
			}
		}

		if req.UseAudience {
			subs, err := r.store.ListActive(ctx)
			if err != nil {
				return nil, err
			}
			for _, s := range subs {
				if addr := types.NormalizeEmail(s.Email); addr != "" {
					set[addr] = struct{}{}
				}
			}
		}
	}

	if len(set) == 0 {
		return nil, types.NewAppError(
			types.ErrCodeValidationNoRecipients,
			"no recipients",
			nil,
		)
	}

	emails := make([]string, 0, len(set))
	for addr := range set {
		emails = append(emails, addr)
	}
	sort.Strings(emails)

	tokens, err := r.store.TokensByEmails(ctx, emails)
	if err != nil {
		return nil, err
	}

	recipients := make([]types.Recipient, 0, len(emails))
	fresh := 0
	for _, addr := range emails {
		token, known := tokens[addr]
		if !known {
			token = types.NewSendToken()
			fresh++
		}
		recipients = append(recipients, types.Recipient{Email: addr, Token: token})
	}

	r.logger.Debug("recipients resolved",
		slog.Int("total", len(recipients)),
		slog.Int("fresh_tokens", fresh),
		slog.String("mode", string(req.Mode)),
	)

	return recipients, nil
}

// splitAddressList splits raw operator text on commas and semicolons.
func splitAddressList(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' })
}
