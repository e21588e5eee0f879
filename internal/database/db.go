package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB creates a new database connection
func NewDB(cfg Config) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	// Configure connection pool
	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log.Printf("Successfully connected to PostgreSQL database: %s", cfg.Database)

	return &DB{Pool: pool}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		log.Println("Database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	log.Println("Running database migrations...")

	migrations := []string{
		// Resellers hold the prepaid credit balance; the CHECK backs the
		// ledger's non-negativity invariant at the storage layer too.
		`CREATE TABLE IF NOT EXISTS resellers (
			id UUID PRIMARY KEY,
			email VARCHAR(255) UNIQUE NOT NULL,
			name VARCHAR(255) NOT NULL DEFAULT '',
			password_hash VARCHAR(255) NOT NULL,
			credits INTEGER NOT NULL DEFAULT 0 CHECK (credits >= 0),
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_resellers_email ON resellers(email)`,

		// Devices. status is a denormalized cache of the derived status,
		// kept for cheap filtering; the temporal columns are the source
		// of truth.
		`CREATE TABLE IF NOT EXISTS devices (
			id UUID PRIMARY KEY,
			code VARCHAR(64) UNIQUE NOT NULL,
			pin_hash VARCHAR(255) NOT NULL,
			trial_started_at TIMESTAMP,
			trial_expires_at TIMESTAMP,
			activated_until TIMESTAMP,
			lifetime BOOLEAN NOT NULL DEFAULT FALSE,
			is_banned BOOLEAN NOT NULL DEFAULT FALSE,
			banned_reason TEXT,
			reseller_id UUID REFERENCES resellers(id) ON DELETE SET NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'OPEN',
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_devices_code ON devices(code)`,
		`CREATE INDEX IF NOT EXISTS idx_devices_status ON devices(status)`,
		`CREATE INDEX IF NOT EXISTS idx_devices_reseller ON devices(reseller_id)`,

		// Append-only audit trail. No updates, no deletes.
		`CREATE TABLE IF NOT EXISTS activation_history (
			id UUID PRIMARY KEY,
			device_id UUID NOT NULL REFERENCES devices(id),
			action VARCHAR(32) NOT NULL,
			prev_status VARCHAR(16) NOT NULL,
			new_status VARCHAR(16) NOT NULL,
			actor_kind VARCHAR(16) NOT NULL,
			actor_id VARCHAR(64),
			detail TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_device ON activation_history(device_id)`,
		`CREATE INDEX IF NOT EXISTS idx_history_created ON activation_history(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_history_action ON activation_history(action)`,

		// Administrative accounts.
		`CREATE TABLE IF NOT EXISTS admins (
			id UUID PRIMARY KEY,
			email VARCHAR(255) UNIQUE NOT NULL,
			name VARCHAR(255) NOT NULL DEFAULT '',
			password_hash VARCHAR(255) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,

		// Keep updated_at current on row updates.
		`CREATE OR REPLACE FUNCTION update_updated_at_column()
		RETURNS TRIGGER AS $$
		BEGIN
			NEW.updated_at = CURRENT_TIMESTAMP;
			RETURN NEW;
		END;
		$$ language 'plpgsql'`,

		`DROP TRIGGER IF EXISTS update_devices_updated_at ON devices`,
		`CREATE TRIGGER update_devices_updated_at BEFORE UPDATE ON devices
		FOR EACH ROW EXECUTE FUNCTION update_updated_at_column()`,

		`DROP TRIGGER IF EXISTS update_resellers_updated_at ON resellers`,
		`CREATE TRIGGER update_resellers_updated_at BEFORE UPDATE ON resellers
		FOR EACH ROW EXECUTE FUNCTION update_updated_at_column()`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// HealthCheck performs a database health check
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}
