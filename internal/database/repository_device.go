package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"activation-server/internal/entitlement"
)

const deviceColumns = `id, code, pin_hash, trial_started_at, trial_expires_at,
	activated_until, lifetime, is_banned, banned_reason, reseller_id,
	status, created_at, updated_at`

func scanDevice(row pgx.Row) (*entitlement.Device, error) {
	var d entitlement.Device
	err := row.Scan(
		&d.ID,
		&d.Code,
		&d.PinHash,
		&d.TrialStartedAt,
		&d.TrialExpiresAt,
		&d.ActivatedUntil,
		&d.Lifetime,
		&d.IsBanned,
		&d.BannedReason,
		&d.ResellerID,
		&d.Status,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan device: %w", err)
	}
	return &d, nil
}

// GetDeviceByCode retrieves a device by its opaque code. Returns
// (nil, nil) when no such device exists.
func (s *store) GetDeviceByCode(ctx context.Context, code string) (*entitlement.Device, error) {
	query := fmt.Sprintf(`SELECT %s FROM devices WHERE code = $1%s`, deviceColumns, s.lockSuffix())
	return scanDevice(s.q.QueryRow(ctx, query, code))
}

// GetDeviceByID retrieves a device by its surrogate id.
func (s *store) GetDeviceByID(ctx context.Context, id string) (*entitlement.Device, error) {
	query := fmt.Sprintf(`SELECT %s FROM devices WHERE id = $1%s`, deviceColumns, s.lockSuffix())
	return scanDevice(s.q.QueryRow(ctx, query, id))
}

// CreateDevice inserts a new device
func (s *store) CreateDevice(ctx context.Context, d *entitlement.Device) error {
	query := `
	INSERT INTO devices (id, code, pin_hash, trial_started_at, trial_expires_at,
		activated_until, lifetime, is_banned, banned_reason, reseller_id, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING created_at, updated_at
	`

	err := s.q.QueryRow(ctx, query,
		d.ID,
		d.Code,
		d.PinHash,
		d.TrialStartedAt,
		d.TrialExpiresAt,
		d.ActivatedUntil,
		d.Lifetime,
		d.IsBanned,
		d.BannedReason,
		d.ResellerID,
		d.Status,
	).Scan(&d.CreatedAt, &d.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	return nil
}

// SaveDevice writes the mutable device fields back
func (s *store) SaveDevice(ctx context.Context, d *entitlement.Device) error {
	query := `
	UPDATE devices
	SET trial_started_at = $2, trial_expires_at = $3, activated_until = $4,
	    lifetime = $5, is_banned = $6, banned_reason = $7, reseller_id = $8,
	    status = $9
	WHERE id = $1
	RETURNING updated_at
	`

	err := s.q.QueryRow(ctx, query,
		d.ID,
		d.TrialStartedAt,
		d.TrialExpiresAt,
		d.ActivatedUntil,
		d.Lifetime,
		d.IsBanned,
		d.BannedReason,
		d.ResellerID,
		d.Status,
	).Scan(&d.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to save device: %w", err)
	}
	return nil
}

// ListDevices retrieves devices with optional filtering and paging. The
// status filter matches the cached column, so it is a dashboard view,
// not an authorization source.
func (r *Repository) ListDevices(ctx context.Context, filter DeviceFilter, limit, offset int) ([]entitlement.Device, int, error) {
	whereClause := "WHERE 1=1"
	args := []interface{}{}
	argNum := 1

	if filter.Status != "" {
		whereClause += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, filter.Status)
		argNum++
	}
	if filter.ResellerID != "" {
		whereClause += fmt.Sprintf(" AND reseller_id = $%d", argNum)
		args = append(args, filter.ResellerID)
		argNum++
	}
	if filter.Code != "" {
		whereClause += fmt.Sprintf(" AND code LIKE $%d", argNum)
		args = append(args, filter.Code+"%")
		argNum++
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM devices %s", whereClause)
	var total int
	if err := r.db.Pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count devices: %w", err)
	}

	query := fmt.Sprintf(`
	SELECT %s FROM devices
	%s
	ORDER BY created_at DESC
	LIMIT $%d OFFSET $%d
	`, deviceColumns, whereClause, argNum, argNum+1)
	args = append(args, limit, offset)

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var devices []entitlement.Device
	for rows.Next() {
		var d entitlement.Device
		err := rows.Scan(
			&d.ID, &d.Code, &d.PinHash, &d.TrialStartedAt, &d.TrialExpiresAt,
			&d.ActivatedUntil, &d.Lifetime, &d.IsBanned, &d.BannedReason,
			&d.ResellerID, &d.Status, &d.CreatedAt, &d.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, d)
	}

	return devices, total, rows.Err()
}

// GetStats returns aggregate counters for the admin dashboard
func (r *Repository) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{DevicesByStatus: make(map[string]int)}

	rows, err := r.db.Pool.Query(ctx, `SELECT status, COUNT(*) FROM devices GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to get device stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		stats.DevicesByStatus[status] = count
		stats.TotalDevices += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(credits), 0) FROM resellers`,
	).Scan(&stats.TotalResellers, &stats.CreditsOutstanding)
	if err != nil {
		return nil, fmt.Errorf("failed to get reseller stats: %w", err)
	}

	err = r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM activation_history
		 WHERE action = $1 AND created_at > NOW() - INTERVAL '7 days'`,
		entitlement.ActionActivateCredits,
	).Scan(&stats.RecentActivations)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent activations: %w", err)
	}

	return stats, nil
}
