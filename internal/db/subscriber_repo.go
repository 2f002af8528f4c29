package db

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"mailblast/internal/types"
)

// subscriberColumns is the canonical column list scanned into types.Subscriber.
const subscriberColumns = `id, email, name, token, status, created_at`

// SubscriberRepository manages the subscriber registry.
//
// Key invariants:
//   - Upsert never creates a duplicate row for an email: re-submission resets
//     status to active and leaves the original token and name untouched.
//   - A token permanently identifies its subscriber; it is generated once at
//     insert and never rotated.
//   - Every method is a single SQL statement, so each call is atomic and no
//     partial update is ever visible to concurrent requests.
type SubscriberRepository struct {
	db     DBTX
	logger *slog.Logger
}

// NewSubscriberRepository creates a SubscriberRepository backed by the given
// database connection (pool or transaction).
func NewSubscriberRepository(db DBTX, logger *slog.Logger) *SubscriberRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriberRepository{db: db, logger: logger}
}

// Upsert registers an email address or re-activates an existing registration.
// The email is normalized first; an address that is empty after normalization
// is a validation error. New rows get a freshly minted permanent token;
// existing rows only have their status reset to active (token and stored name
// are preserved, matching the at-most-one-row-per-email invariant).
func (r *SubscriberRepository) Upsert(ctx context.Context, email, name string) error {
	email = types.NormalizeEmail(email)
	if email == "" {
		return types.NewAppError(types.ErrCodeValidationEmptyEmail, "email is empty", nil)
	}

	var storedName any
	if name != "" {
		storedName = name
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO subscribers (email, name, token, status)
		 VALUES ($1, $2, $3, 'active')
		 ON CONFLICT (email) DO UPDATE SET status = 'active'`,
		email,
		storedName,
		types.NewSubscriberToken(),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeStorageQuery, "failed to register subscriber", err)
	}

	r.logger.Info("subscriber upserted", slog.String("email", email))
	return nil
}

// UnsubscribeByToken flips the owning subscriber to unsubscribed. An unknown
// token is a normal outcome, reported as found=false with no error and no
// mutation. Repeat calls with a known token keep returning found=true: the
// UPDATE matches the row whether or not the status actually changes.
func (r *SubscriberRepository) UnsubscribeByToken(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE subscribers SET status = 'unsubscribed' WHERE token = $1`,
		token,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeStorageQuery, "failed to unsubscribe", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	r.logger.Info("subscriber unsubscribed")
	return true, nil
}

// ListActive returns the current audience, most-recently created first.
func (r *SubscriberRepository) ListActive(ctx context.Context) ([]types.Subscriber, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+subscriberColumns+`
		 FROM subscribers
		 WHERE status = 'active'
		 ORDER BY id DESC`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeStorageQuery, "failed to list active subscribers", err)
	}
	defer rows.Close()

	var subs []types.Subscriber
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeStorageQuery, "failed to scan subscriber row", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeStorageQuery, "failed to read subscriber rows", err)
	}
	return subs, nil
}

// CountActive returns the audience size for the dashboard.
func (r *SubscriberRepository) CountActive(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM subscribers WHERE status = 'active'`,
	).Scan(&n)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeStorageQuery, "failed to count active subscribers", err)
	}
	return n, nil
}

// TokensByEmails returns the stored token for every known subscriber among
// the given normalized addresses, regardless of status. The resolver uses
// this so a manually entered address that belongs to a subscriber carries
// that subscriber's real unsubscribe token instead of a throwaway one.
func (r *SubscriberRepository) TokensByEmails(ctx context.Context, emails []string) (map[string]string, error) {
	if len(emails) == 0 {
		return map[string]string{}, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT email, token FROM subscribers WHERE email = ANY($1)`,
		emails,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeStorageQuery, "failed to look up subscriber tokens", err)
	}
	defer rows.Close()

	tokens := make(map[string]string, len(emails))
	for rows.Next() {
		var email, token string
		if err := rows.Scan(&email, &token); err != nil {
			return nil, types.NewAppError(types.ErrCodeStorageQuery, "failed to scan token row", err)
		}
		tokens[email] = token
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeStorageQuery, "failed to read token rows", err)
	}
	return tokens, nil
}

// scanSubscriber reads one subscribers row. name is nullable.
func scanSubscriber(row pgx.Row) (types.Subscriber, error) {
	var (
		s    types.Subscriber
		name *string
	)
	err := row.Scan(&s.ID, &s.Email, &name, &s.Token, &s.Status, &s.CreatedAt)
	if err != nil {
		return types.Subscriber{}, err
	}
	if name != nil {
		s.Name = *name
	}
	return s, nil
}
