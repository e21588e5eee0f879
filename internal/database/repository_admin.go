package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateAdmin creates a new administrative account
func (r *Repository) CreateAdmin(ctx context.Context, admin *Admin) error {
	if admin.ID == "" {
		admin.ID = uuid.New().String()
	}
	admin.CreatedAt = time.Now()

	query := `
	INSERT INTO admins (id, email, name, password_hash, created_at)
	VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		admin.ID,
		admin.Email,
		admin.Name,
		admin.PasswordHash,
		admin.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	return nil
}

// GetAdminByEmail retrieves an admin by email
func (r *Repository) GetAdminByEmail(ctx context.Context, email string) (*Admin, error) {
	query := `
	SELECT id, email, COALESCE(name, ''), password_hash, created_at
	FROM admins
	WHERE email = $1
	`

	var admin Admin
	err := r.db.Pool.QueryRow(ctx, query, email).Scan(
		&admin.ID,
		&admin.Email,
		&admin.Name,
		&admin.PasswordHash,
		&admin.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get admin by email: %w", err)
	}
	return &admin, nil
}

// CountAdmins returns the number of admin accounts
func (r *Repository) CountAdmins(ctx context.Context) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM admins`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count admins: %w", err)
	}
	return count, nil
}
