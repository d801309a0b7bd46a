package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"bot-chitieu/internal/parser"
)

// LoadParseContext snapshots the resolvable universe for one user. The
// snapshot is built fresh per request and never mutated afterwards.
func (r *Repository) LoadParseContext(ctx context.Context, userID string, now time.Time) (*parser.ParseContext, error) {
	accounts, err := r.listAccounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	people, err := r.listPeople(ctx, userID)
	if err != nil {
		return nil, err
	}
	shops, err := r.listShops(ctx, userID)
	if err != nil {
		return nil, err
	}
	categories, err := r.listCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &parser.ParseContext{
		Accounts:   accounts,
		People:     people,
		Shops:      shops,
		Categories: categories,
		Now:        now,
	}, nil
}

func (r *Repository) listAccounts(ctx context.Context, userID string) ([]parser.Account, error) {
	const q = `
		SELECT id, name, type, cashback_eligible
		FROM accounts
		WHERE user_id = $1 AND archived_at IS NULL
		ORDER BY name`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return collect(rows, func(rows pgx.Rows) (parser.Account, error) {
		var a parser.Account
		err := rows.Scan(&a.ID, &a.Name, &a.Type, &a.Cashback)
		return a, err
	})
}

func (r *Repository) listPeople(ctx context.Context, userID string) ([]parser.Person, error) {
	const q = `
		SELECT id, name, is_group, COALESCE(group_id::text, ''), is_owner
		FROM people
		WHERE user_id = $1 AND archived_at IS NULL
		ORDER BY name`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	return collect(rows, func(rows pgx.Rows) (parser.Person, error) {
		var p parser.Person
		err := rows.Scan(&p.ID, &p.Name, &p.IsGroup, &p.GroupID, &p.IsOwner)
		return p, err
	})
}

func (r *Repository) listShops(ctx context.Context, userID string) ([]parser.Shop, error) {
	const q = `SELECT id, name FROM shops WHERE user_id = $1 ORDER BY name`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list shops: %w", err)
	}
	return collect(rows, func(rows pgx.Rows) (parser.Shop, error) {
		var s parser.Shop
		err := rows.Scan(&s.ID, &s.Name)
		return s, err
	})
}

func (r *Repository) listCategories(ctx context.Context, userID string) ([]parser.Category, error) {
	const q = `SELECT id, name FROM categories WHERE user_id = $1 ORDER BY name`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return collect(rows, func(rows pgx.Rows) (parser.Category, error) {
		var c parser.Category
		err := rows.Scan(&c.ID, &c.Name)
		return c, err
	})
}
