package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInsufficientCredits is returned when a debit would take the owner's
// balance below zero.
var ErrInsufficientCredits = errors.New("insufficient credits")

func (s *PostgresStore) CreditBalance(ctx context.Context, ownerID string) (int, error) {
	var balance int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(delta), 0) FROM credit_ledger WHERE owner_id=$1
	`, ownerID).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("credit balance: %w", err)
	}
	return balance, nil
}

func (s *PostgresStore) GrantCredits(ctx context.Context, ownerID string, amount int, reason, ref string) error {
	if amount <= 0 {
		return fmt.Errorf("grant amount must be positive")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credit_ledger (owner_id, delta, reason, ref) VALUES ($1, $2, $3, $4)
	`, ownerID, amount, reason, ref)
	if err != nil {
		return fmt.Errorf("grant credits: %w", err)
	}
	return nil
}

// DebitCredits appends a negative ledger row if and only if the current
// balance covers it. Debits for one owner serialize on a transaction-scoped
// advisory lock, so two concurrent debits cannot both read the same balance
// snapshot and drive it negative.
func (s *PostgresStore) DebitCredits(ctx context.Context, ownerID string, amount int, reason, ref string) error {
	if amount <= 0 {
		return fmt.Errorf("debit amount must be positive")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin debit tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		SELECT pg_advisory_xact_lock(hashtext($1))
	`, ownerID); err != nil {
		return fmt.Errorf("lock debit: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO credit_ledger (owner_id, delta, reason, ref)
		SELECT $1, -$2::int, $3, $4
		WHERE (SELECT COALESCE(SUM(delta), 0) FROM credit_ledger WHERE owner_id=$1) >= $2
	`, ownerID, amount, reason, ref)
	if err != nil {
		return fmt.Errorf("debit credits: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit credits rows: %w", err)
	}
	if affected == 0 {
		return ErrInsufficientCredits
	}

	return tx.Commit()
}

func (s *PostgresStore) ListCreditEntries(ctx context.Context, ownerID string, limit int) ([]CreditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, delta, reason, ref, created_at
		FROM credit_ledger WHERE owner_id=$1
		ORDER BY id DESC LIMIT $2
	`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list credit entries: %w", err)
	}
	defer rows.Close()

	items := make([]CreditEntry, 0)
	for rows.Next() {
		var entry CreditEntry
		if err := rows.Scan(&entry.ID, &entry.OwnerID, &entry.Delta, &entry.Reason, &entry.Ref, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan credit entry: %w", err)
		}
		items = append(items, entry)
	}
	return items, rows.Err()
}

// CreditReportRow aggregates ledger activity by reason over a period.
type CreditReportRow struct {
	Reason string
	Count  int
	Total  int
}

func (s *PostgresStore) CreditReport(ctx context.Context, ownerID string, from, to time.Time) ([]CreditReportRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT reason, COUNT(1), SUM(delta)
		FROM credit_ledger
		WHERE owner_id=$1 AND created_at >= $2 AND created_at < $3
		GROUP BY reason
		ORDER BY reason
	`, ownerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("credit report: %w", err)
	}
	defer rows.Close()

	items := make([]CreditReportRow, 0)
	for rows.Next() {
		var row CreditReportRow
		if err := rows.Scan(&row.Reason, &row.Count, &row.Total); err != nil {
			return nil, fmt.Errorf("scan credit report row: %w", err)
		}
		items = append(items, row)
	}
	return items, rows.Err()
}
