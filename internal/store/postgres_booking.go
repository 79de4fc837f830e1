package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func (s *PostgresStore) InsertCloser(ctx context.Context, c Closer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO closers (id, owner_id, name, email, work_start, work_end, active)
		VALUES ($1, $2, $3, LOWER($4), $5, $6, $7)
	`, c.ID, c.OwnerID, c.Name, c.Email, c.WorkStart, c.WorkEnd, c.Active)
	if err != nil {
		return fmt.Errorf("insert closer: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListClosers(ctx context.Context, ownerID string, activeOnly bool) ([]Closer, error) {
	query := `
		SELECT id, owner_id, name, email, work_start, work_end, active, created_at
		FROM closers WHERE owner_id=$1
	`
	if activeOnly {
		query += ` AND active=TRUE`
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list closers: %w", err)
	}
	defer rows.Close()

	items := make([]Closer, 0)
	for rows.Next() {
		var c Closer
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Email, &c.WorkStart, &c.WorkEnd, &c.Active, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan closer: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func (s *PostgresStore) SetCloserActive(ctx context.Context, ownerID, closerID string, active bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE closers SET active=$3 WHERE owner_id=$1 AND id=$2
	`, ownerID, closerID, active)
	if err != nil {
		return fmt.Errorf("set closer active: %w", err)
	}
	return nil
}

// ListAppointmentsForDay returns every appointment for the owner whose start
// falls on the same UTC day as the given time. The booking fairness scan
// works off this slice in memory; the set is small per tenant per day.
func (s *PostgresStore) ListAppointmentsForDay(ctx context.Context, ownerID string, day time.Time) ([]Appointment, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, closer_id, contact_name, contact_phone, notes, starts_at, ends_at, created_at
		FROM appointments
		WHERE owner_id=$1 AND starts_at >= $2 AND starts_at < $3
		ORDER BY starts_at
	`, ownerID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("list appointments for day: %w", err)
	}
	defer rows.Close()

	items := make([]Appointment, 0)
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.CloserID, &a.ContactName, &a.ContactPhone,
			&a.Notes, &a.StartsAt, &a.EndsAt, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

// InsertAppointment writes the booking. The appointments_no_overlap
// exclusion constraint rejects an overlapping slot for the closer, even
// against a concurrent insert; that conflict reports inserted=false.
func (s *PostgresStore) InsertAppointment(ctx context.Context, a Appointment) (bool, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO appointments (id, owner_id, closer_id, contact_name, contact_phone, notes, starts_at, ends_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, a.ID, a.OwnerID, a.CloserID, a.ContactName, a.ContactPhone, a.Notes, a.StartsAt, a.EndsAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23P01" {
			return false, nil
		}
		return false, fmt.Errorf("insert appointment: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) ListAppointments(ctx context.Context, ownerID string, from, to time.Time) ([]Appointment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, closer_id, contact_name, contact_phone, notes, starts_at, ends_at, created_at
		FROM appointments
		WHERE owner_id=$1 AND starts_at >= $2 AND starts_at < $3
		ORDER BY starts_at
	`, ownerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	items := make([]Appointment, 0)
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.CloserID, &a.ContactName, &a.ContactPhone,
			&a.Notes, &a.StartsAt, &a.EndsAt, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

// ── Leads ──

func (s *PostgresStore) InsertLead(ctx context.Context, lead Lead) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leads (id, owner_id, name, phone, email, source, notes, enriched_company)
		VALUES ($1, $2, $3, $4, LOWER($5), $6, $7, $8)
	`, lead.ID, lead.OwnerID, lead.Name, lead.Phone, lead.Email, lead.Source, lead.Notes, lead.EnrichedCompany)
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateLeadEnrichment(ctx context.Context, leadID, company string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE leads SET enriched_company=$2 WHERE id=$1
	`, leadID, company)
	if err != nil {
		return fmt.Errorf("update lead enrichment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, ownerID string, limit int) ([]Lead, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, name, phone, email, source, notes, enriched_company, created_at
		FROM leads WHERE owner_id=$1
		ORDER BY created_at DESC LIMIT $2
	`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	items := make([]Lead, 0)
	for rows.Next() {
		var lead Lead
		if err := rows.Scan(&lead.ID, &lead.OwnerID, &lead.Name, &lead.Phone, &lead.Email,
			&lead.Source, &lead.Notes, &lead.EnrichedCompany, &lead.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		items = append(items, lead)
	}
	return items, rows.Err()
}
