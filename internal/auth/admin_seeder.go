package auth

import (
	"context"
	"fmt"
	"log"

	"activation-server/internal/database"

	"golang.org/x/crypto/bcrypt"
)

const (
	// AdminBcryptCost is the bcrypt cost for the seeded admin password
	AdminBcryptCost = 12
)

// SeedAdminUser ensures at least one admin account exists. It creates
// the configured default admin when the admins table is empty; an
// operator is expected to change the password after first login.
func SeedAdminUser(ctx context.Context, db *database.DB, email, password string) error {
	repo := database.NewRepository(db)

	count, err := repo.CountAdmins(ctx)
	if err != nil {
		return fmt.Errorf("failed to check for admin accounts: %w", err)
	}
	if count > 0 {
		return nil
	}

	if email == "" || password == "" {
		return fmt.Errorf("no admin accounts exist and no default admin credentials configured")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), AdminBcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	log.Printf("No admin accounts found. Creating default admin: %s", email)

	admin := &database.Admin{
		Email:        email,
		Name:         "Administrator",
		PasswordHash: string(hashedPassword),
	}

	if err := repo.CreateAdmin(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}

	log.Printf("Default admin created with ID: %s", admin.ID)
	return nil
}
