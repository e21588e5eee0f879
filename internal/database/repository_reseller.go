package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"activation-server/internal/entitlement"
)

const resellerColumns = `id, email, name, password_hash, credits, created_at, updated_at`

func scanReseller(row pgx.Row) (*entitlement.Reseller, error) {
	var r entitlement.Reseller
	err := row.Scan(
		&r.ID,
		&r.Email,
		&r.Name,
		&r.PasswordHash,
		&r.Credits,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan reseller: %w", err)
	}
	return &r, nil
}

// GetResellerByID retrieves a reseller by id. Returns (nil, nil) when no
// such reseller exists.
func (s *store) GetResellerByID(ctx context.Context, id string) (*entitlement.Reseller, error) {
	query := fmt.Sprintf(`SELECT %s FROM resellers WHERE id = $1%s`, resellerColumns, s.lockSuffix())
	return scanReseller(s.q.QueryRow(ctx, query, id))
}

// GetResellerByEmail retrieves a reseller by email (login path)
func (r *Repository) GetResellerByEmail(ctx context.Context, email string) (*entitlement.Reseller, error) {
	query := fmt.Sprintf(`SELECT %s FROM resellers WHERE email = $1`, resellerColumns)
	return scanReseller(r.db.Pool.QueryRow(ctx, query, email))
}

// CreateReseller inserts a new reseller
func (s *store) CreateReseller(ctx context.Context, res *entitlement.Reseller) error {
	query := `
	INSERT INTO resellers (id, email, name, password_hash, credits)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING created_at, updated_at
	`

	err := s.q.QueryRow(ctx, query,
		res.ID,
		res.Email,
		res.Name,
		res.PasswordHash,
		res.Credits,
	).Scan(&res.CreatedAt, &res.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create reseller: %w", err)
	}
	return nil
}

// SaveReseller writes the mutable reseller fields back
func (s *store) SaveReseller(ctx context.Context, res *entitlement.Reseller) error {
	query := `
	UPDATE resellers
	SET email = $2, name = $3, password_hash = $4, credits = $5
	WHERE id = $1
	RETURNING updated_at
	`

	err := s.q.QueryRow(ctx, query,
		res.ID,
		res.Email,
		res.Name,
		res.PasswordHash,
		res.Credits,
	).Scan(&res.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to save reseller: %w", err)
	}
	return nil
}

// ListResellers retrieves all resellers ordered by creation time
func (r *Repository) ListResellers(ctx context.Context, limit, offset int) ([]entitlement.Reseller, int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM resellers`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count resellers: %w", err)
	}

	query := fmt.Sprintf(`
	SELECT %s FROM resellers
	ORDER BY created_at DESC
	LIMIT $1 OFFSET $2
	`, resellerColumns)

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list resellers: %w", err)
	}
	defer rows.Close()

	var resellers []entitlement.Reseller
	for rows.Next() {
		var res entitlement.Reseller
		err := rows.Scan(
			&res.ID, &res.Email, &res.Name, &res.PasswordHash,
			&res.Credits, &res.CreatedAt, &res.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan reseller: %w", err)
		}
		resellers = append(resellers, res)
	}

	return resellers, total, rows.Err()
}
