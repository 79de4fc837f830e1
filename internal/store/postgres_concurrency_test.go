package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func openTestStore(t *testing.T, ctx context.Context) *PostgresStore {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("HOMEBASE_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("HOMEBASE_TEST_DATABASE_URL is not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("ping postgres: %v", err)
	}
	if err := resetPublicSchema(ctx, db); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if err := ApplyMigrations(ctx, db, filepath.Join("..", "..", "db", "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	if _, err := db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash) VALUES ('user-1', 'Avery', 'avery@example.com', 'x')
	`); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	return NewPostgresStore(db)
}

// Two goroutines race to book the same closer for overlapping slots; the
// exclusion constraint must let exactly one through.
func TestInsertAppointmentConcurrentOverlap(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	s := openTestStore(t, ctx)

	if err := s.InsertCloser(ctx, Closer{ID: "clo-1", OwnerID: "user-1", Name: "Sam", Active: true}); err != nil {
		t.Fatalf("insert closer: %v", err)
	}

	start := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	book := func(id string) (bool, error) {
		return s.InsertAppointment(ctx, Appointment{
			ID: id, OwnerID: "user-1", CloserID: "clo-1",
			ContactName: "Pat", StartsAt: start, EndsAt: start.Add(30 * time.Minute),
		})
	}

	var wg sync.WaitGroup
	results := make([]bool, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = book(fmt.Sprintf("apt-%d", i))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("booking %d: %v", i, err)
		}
	}
	if results[0] == results[1] {
		t.Fatalf("expected exactly one booking to win, got %v and %v", results[0], results[1])
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM appointments`).Scan(&count); err != nil {
		t.Fatalf("count appointments: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 appointment, got %d", count)
	}
}

// Concurrent debits against a balance that covers only one of them must not
// drive the ledger negative.
func TestDebitCreditsConcurrentNeverNegative(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	s := openTestStore(t, ctx)

	if err := s.GrantCredits(ctx, "user-1", 1, "signup_grant", ""); err != nil {
		t.Fatalf("grant: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.DebitCredits(ctx, "user-1", 1, "sms_outbound", "")
		}(i)
	}
	wg.Wait()

	insufficient := 0
	for i, err := range errs {
		switch {
		case err == nil:
		case errors.Is(err, ErrInsufficientCredits):
			insufficient++
		default:
			t.Fatalf("debit %d: %v", i, err)
		}
	}
	if insufficient != 1 {
		t.Fatalf("expected exactly one debit rejected, got %d", insufficient)
	}

	balance, err := s.CreditBalance(ctx, "user-1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected balance 0, got %d", balance)
	}
}
