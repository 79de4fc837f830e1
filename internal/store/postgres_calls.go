package store

import (
	"context"
	"fmt"
	"strings"
)

// Terminal call statuses per Twilio's call resource lifecycle. The partial
// index in the call_records migration mirrors this set.
var terminalCallStatuses = []string{"completed", "busy", "failed", "no-answer", "canceled"}

func terminalStatusList() string {
	quoted := make([]string, len(terminalCallStatuses))
	for i, status := range terminalCallStatuses {
		quoted[i] = "'" + status + "'"
	}
	return strings.Join(quoted, ", ")
}

func (s *PostgresStore) UpsertCallRecord(ctx context.Context, c CallRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO call_records (id, owner_id, call_sid, from_number, to_number, mode, status, duration_seconds, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (call_sid) DO UPDATE SET
			status=EXCLUDED.status,
			duration_seconds=GREATEST(call_records.duration_seconds, EXCLUDED.duration_seconds),
			updated_at=NOW()
	`, c.ID, c.OwnerID, c.CallSID, c.FromNumber, c.ToNumber, c.Mode, c.Status, c.DurationSeconds, c.StartedAt)
	if err != nil {
		return fmt.Errorf("upsert call record: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCallBySID(ctx context.Context, callSID string) (CallRecord, error) {
	var c CallRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, call_sid, from_number, to_number, mode, status, duration_seconds, started_at, ended_at, updated_at
		FROM call_records WHERE call_sid=$1
	`, callSID).Scan(&c.ID, &c.OwnerID, &c.CallSID, &c.FromNumber, &c.ToNumber, &c.Mode, &c.Status,
		&c.DurationSeconds, &c.StartedAt, &c.EndedAt, &c.UpdatedAt)
	if err != nil {
		return CallRecord{}, err
	}
	return c, nil
}

func (s *PostgresStore) ListCalls(ctx context.Context, ownerID string, limit int) ([]CallRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, call_sid, from_number, to_number, mode, status, duration_seconds, started_at, ended_at, updated_at
		FROM call_records WHERE owner_id=$1
		ORDER BY started_at DESC LIMIT $2
	`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	defer rows.Close()

	items := make([]CallRecord, 0)
	for rows.Next() {
		var c CallRecord
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.CallSID, &c.FromNumber, &c.ToNumber, &c.Mode, &c.Status,
			&c.DurationSeconds, &c.StartedAt, &c.EndedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// ListOpenCalls returns calls not yet in a terminal status, oldest first.
// The reconciliation cron polls the provider for each of these.
func (s *PostgresStore) ListOpenCalls(ctx context.Context, limit int) ([]CallRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, call_sid, from_number, to_number, mode, status, duration_seconds, started_at, ended_at, updated_at
		FROM call_records
		WHERE status NOT IN (`+terminalStatusList()+`)
		ORDER BY started_at ASC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list open calls: %w", err)
	}
	defer rows.Close()

	items := make([]CallRecord, 0)
	for rows.Next() {
		var c CallRecord
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.CallSID, &c.FromNumber, &c.ToNumber, &c.Mode, &c.Status,
			&c.DurationSeconds, &c.StartedAt, &c.EndedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan open call: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// FinalizeCall transitions a call to a terminal status. The guard clause
// makes the transition idempotent: a second poller or a late status webhook
// finds zero rows to update.
func (s *PostgresStore) FinalizeCall(ctx context.Context, callSID, status string, durationSeconds int) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE call_records
		SET status=$2, duration_seconds=$3, ended_at=NOW(), updated_at=NOW()
		WHERE call_sid=$1
			AND status NOT IN (`+terminalStatusList()+`)
	`, callSID, status, durationSeconds)
	if err != nil {
		return false, fmt.Errorf("finalize call: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("finalize call rows: %w", err)
	}
	return affected > 0, nil
}

// IsTerminalCallStatus reports whether the provider status ends a call.
func IsTerminalCallStatus(status string) bool {
	for _, terminal := range terminalCallStatuses {
		if status == terminal {
			return true
		}
	}
	return false
}
