package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ── Users ──

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, role, is_email_verified, verification_token)
		VALUES ($1, $2, LOWER($3), $4, $5, $6, $7)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, user.Role, user.IsEmailVerified, user.VerificationToken)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, role, is_email_verified
		FROM users WHERE email = LOWER($1)
	`, email).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.IsEmailVerified)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, role, is_email_verified
		FROM users WHERE id = $1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.IsEmailVerified)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET verification_token=$2, verification_expires_at=$3, updated_at=NOW()
		WHERE id=$1
	`, userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("update verification token: %w", err)
	}
	return nil
}

func (s *PostgresStore) VerifyUserEmail(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET is_email_verified=TRUE, verification_token='', updated_at=NOW()
		WHERE verification_token=$1 AND verification_expires_at > NOW()
	`, token)
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("verify email rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1
	`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (token, user_id, expires_at) VALUES ($1, $2, $3)
	`, token, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM password_resets
		WHERE token=$1 AND used_at IS NULL AND expires_at > NOW()
	`, token).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *PostgresStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE password_resets SET used_at=NOW() WHERE token=$1`, token)
	if err != nil {
		return fmt.Errorf("mark password reset used: %w", err)
	}
	return nil
}

// ── Refresh sessions (Postgres fallback when Redis is not configured) ──

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.display_name, u.email, u.role
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.DisplayName, &user.Email, &user.Role)
	if err != nil {
		return User{}, err
	}
	if user.Role == "" {
		user.Role = "owner"
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

// ── Access token revocation ──

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, expiresAt)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti=$1 AND expires_at > NOW())
	`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// ── Business profiles ──

const profileColumns = `id, owner_id, name, industry, phone, email, website, address, timezone,
	greeting, forward_number, blocked_numbers, webhook_token, capture_token, created_at, updated_at`

func (s *PostgresStore) scanProfile(row *sql.Row) (BusinessProfile, error) {
	var p BusinessProfile
	var blockedRaw []byte
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Industry, &p.Phone, &p.Email, &p.Website,
		&p.Address, &p.Timezone, &p.Greeting, &p.ForwardNumber, &blockedRaw,
		&p.WebhookToken, &p.CaptureToken, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return BusinessProfile{}, err
	}
	_ = json.Unmarshal(blockedRaw, &p.BlockedNumbers)
	return p, nil
}

func (s *PostgresStore) GetProfileByOwner(ctx context.Context, ownerID string) (BusinessProfile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM business_profiles WHERE owner_id=$1`, ownerID)
	return s.scanProfile(row)
}

func (s *PostgresStore) GetProfileByWebhookToken(ctx context.Context, token string) (BusinessProfile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM business_profiles WHERE webhook_token=$1`, token)
	return s.scanProfile(row)
}

func (s *PostgresStore) GetProfileByCaptureToken(ctx context.Context, token string) (BusinessProfile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM business_profiles WHERE capture_token=$1`, token)
	return s.scanProfile(row)
}

// UpsertProfile inserts or updates the single profile row for an owner.
// The unique index on owner_id enforces at-most-one under concurrent PUTs.
func (s *PostgresStore) UpsertProfile(ctx context.Context, p BusinessProfile) (BusinessProfile, error) {
	blocked := p.BlockedNumbers
	if blocked == nil {
		blocked = []string{}
	}
	encodedBlocked, err := json.Marshal(blocked)
	if err != nil {
		return BusinessProfile{}, fmt.Errorf("marshal blocked numbers: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO business_profiles
			(id, owner_id, name, industry, phone, email, website, address, timezone,
			 greeting, forward_number, blocked_numbers, webhook_token, capture_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb, $13, $14)
		ON CONFLICT (owner_id) DO UPDATE SET
			name=EXCLUDED.name, industry=EXCLUDED.industry, phone=EXCLUDED.phone,
			email=EXCLUDED.email, website=EXCLUDED.website, address=EXCLUDED.address,
			timezone=EXCLUDED.timezone, greeting=EXCLUDED.greeting,
			forward_number=EXCLUDED.forward_number, blocked_numbers=EXCLUDED.blocked_numbers,
			updated_at=NOW()
		RETURNING id, webhook_token, capture_token, created_at, updated_at
	`, p.ID, p.OwnerID, p.Name, p.Industry, p.Phone, p.Email, p.Website, p.Address, p.Timezone,
		p.Greeting, p.ForwardNumber, string(encodedBlocked), p.WebhookToken, p.CaptureToken).
		Scan(&p.ID, &p.WebhookToken, &p.CaptureToken, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return BusinessProfile{}, fmt.Errorf("upsert profile: %w", err)
	}
	return p, nil
}

// ── Service setups ──

func (s *PostgresStore) ListServiceSetups(ctx context.Context, ownerID string) ([]ServiceSetup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT owner_id, slug, enabled, updated_at
		FROM service_setups WHERE owner_id=$1 ORDER BY slug
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list service setups: %w", err)
	}
	defer rows.Close()

	items := make([]ServiceSetup, 0)
	for rows.Next() {
		var setup ServiceSetup
		if err := rows.Scan(&setup.OwnerID, &setup.Slug, &setup.Enabled, &setup.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan service setup: %w", err)
		}
		items = append(items, setup)
	}
	return items, rows.Err()
}

func (s *PostgresStore) SetServiceEnabled(ctx context.Context, ownerID, slug string, enabled bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO service_setups (owner_id, slug, enabled)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner_id, slug) DO UPDATE SET enabled=EXCLUDED.enabled, updated_at=NOW()
	`, ownerID, slug, enabled)
	if err != nil {
		return fmt.Errorf("set service enabled: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsServiceEnabled(ctx context.Context, ownerID, slug string) (bool, error) {
	var enabled bool
	err := s.db.QueryRowContext(ctx, `
		SELECT enabled FROM service_setups WHERE owner_id=$1 AND slug=$2
	`, ownerID, slug).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check service enabled: %w", err)
	}
	return enabled, nil
}

// ── Owner iteration for cron flows ──

func (s *PostgresStore) ListOwnersWithService(ctx context.Context, slug string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT owner_id FROM service_setups WHERE slug=$1 AND enabled=TRUE ORDER BY owner_id
	`, slug)
	if err != nil {
		return nil, fmt.Errorf("list owners with service: %w", err)
	}
	defer rows.Close()

	owners := make([]string, 0)
	for rows.Next() {
		var ownerID string
		if err := rows.Scan(&ownerID); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		owners = append(owners, ownerID)
	}
	return owners, rows.Err()
}
