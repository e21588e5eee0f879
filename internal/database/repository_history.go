package database

import (
	"context"
	"fmt"

	"activation-server/internal/entitlement"
)

// AppendHistory inserts one audit entry. The table is append-only; there
// are no update or delete paths.
func (s *store) AppendHistory(ctx context.Context, e *entitlement.HistoryEntry) error {
	query := `
	INSERT INTO activation_history (id, device_id, action, prev_status, new_status,
		actor_kind, actor_id, detail, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.q.Exec(ctx, query,
		e.ID,
		e.DeviceID,
		e.Action,
		e.PrevStatus,
		e.NewStatus,
		e.ActorKind,
		nullIfEmpty(e.ActorID),
		nullIfEmpty(e.Detail),
		e.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// ListHistory retrieves the audit trail for a device, oldest first.
// Creation order is the canonical history view.
func (r *Repository) ListHistory(ctx context.Context, deviceID string, limit, offset int) ([]entitlement.HistoryEntry, int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM activation_history WHERE device_id = $1`, deviceID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count history: %w", err)
	}

	query := `
	SELECT id, device_id, action, prev_status, new_status,
	       actor_kind, COALESCE(actor_id, ''), COALESCE(detail, ''), created_at
	FROM activation_history
	WHERE device_id = $1
	ORDER BY created_at ASC
	LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool.Query(ctx, query, deviceID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []entitlement.HistoryEntry
	for rows.Next() {
		var e entitlement.HistoryEntry
		err := rows.Scan(
			&e.ID, &e.DeviceID, &e.Action, &e.PrevStatus, &e.NewStatus,
			&e.ActorKind, &e.ActorID, &e.Detail, &e.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, total, rows.Err()
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
