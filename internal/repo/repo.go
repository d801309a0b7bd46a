package repo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository wraps the Postgres pool behind the queries the bot needs.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a Repository over an existing pool.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Repository {
	return &Repository{pool: pool, logger: logger.With("component", "repo")}
}

// Connect opens a pgx pool and pings it.
func Connect(ctx context.Context, databaseURL string, logger *slog.Logger) (*Repository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return New(pool, logger), nil
}

// Close releases the underlying pool.
func (r *Repository) Close() {
	r.pool.Close()
}

// User is a chat user bound to a WhatsApp identity.
type User struct {
	ID                 string
	WAID               string
	DisplayName        *string
	LanguagePreference string
}

// UserProfile is the upsert payload extracted from an inbound event.
type UserProfile struct {
	WAID        string
	DisplayName *string
}

// UpsertUserByWA creates or refreshes a user keyed by WhatsApp id.
func (r *Repository) UpsertUserByWA(ctx context.Context, profile UserProfile) (*User, error) {
	const q = `
		INSERT INTO users (wa_id, display_name)
		VALUES ($1, $2)
		ON CONFLICT (wa_id) DO UPDATE
		SET display_name = COALESCE(EXCLUDED.display_name, users.display_name),
		    last_seen_at = now()
		RETURNING id, wa_id, display_name, COALESCE(language_preference, 'vi')`

	var u User
	err := r.pool.QueryRow(ctx, q, profile.WAID, profile.DisplayName).
		Scan(&u.ID, &u.WAID, &u.DisplayName, &u.LanguagePreference)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return &u, nil
}

// MessageRecord is one line of the conversation audit log.
type MessageRecord struct {
	UserID    string
	Direction string
	Type      string
	Content   *string
}

// InsertMessage appends to the conversation audit log.
func (r *Repository) InsertMessage(ctx context.Context, rec MessageRecord) error {
	const q = `
		INSERT INTO messages (user_id, direction, type, content)
		VALUES ($1, $2, $3, $4)`
	if _, err := r.pool.Exec(ctx, q, rec.UserID, rec.Direction, rec.Type, rec.Content); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Rows) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
