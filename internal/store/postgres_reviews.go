package store

import (
	"context"
	"database/sql"
	"fmt"
)

func (s *PostgresStore) InsertReviewRequest(ctx context.Context, r ReviewRequest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_requests (id, owner_id, contact_name, phone, email, token, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.ID, r.OwnerID, r.ContactName, r.Phone, r.Email, r.Token, r.Status)
	if err != nil {
		return fmt.Errorf("insert review request: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetReviewRequestByToken(ctx context.Context, token string) (ReviewRequest, error) {
	var r ReviewRequest
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, contact_name, phone, email, token, status, created_at
		FROM review_requests WHERE token=$1
	`, token).Scan(&r.ID, &r.OwnerID, &r.ContactName, &r.Phone, &r.Email, &r.Token, &r.Status, &r.CreatedAt)
	if err != nil {
		return ReviewRequest{}, err
	}
	return r, nil
}

func (s *PostgresStore) UpdateReviewRequestStatus(ctx context.Context, requestID, status string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE review_requests SET status=$2 WHERE id=$1
	`, requestID, status)
	if err != nil {
		return fmt.Errorf("update review request status: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListReviewRequests(ctx context.Context, ownerID string, limit int) ([]ReviewRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, contact_name, phone, email, token, status, created_at
		FROM review_requests WHERE owner_id=$1
		ORDER BY created_at DESC LIMIT $2
	`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list review requests: %w", err)
	}
	defer rows.Close()

	items := make([]ReviewRequest, 0)
	for rows.Next() {
		var r ReviewRequest
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.ContactName, &r.Phone, &r.Email, &r.Token, &r.Status, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review request: %w", err)
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

// InsertReview records a submitted review. A request token may only complete
// once; the caller flips the request status in the same transaction scope.
func (s *PostgresStore) InsertReview(ctx context.Context, review Review) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin review tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if review.RequestID != nil {
		result, err := tx.ExecContext(ctx, `
			UPDATE review_requests SET status='completed'
			WHERE id=$1 AND status <> 'completed'
		`, *review.RequestID)
		if err != nil {
			return fmt.Errorf("complete review request: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("complete review request rows: %w", err)
		}
		if affected == 0 {
			return sql.ErrNoRows
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO reviews (id, owner_id, request_id, rating, comment, author)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, review.ID, review.OwnerID, review.RequestID, review.Rating, review.Comment, review.Author); err != nil {
		return fmt.Errorf("insert review: %w", err)
	}

	return tx.Commit()
}

func (s *PostgresStore) ListReviews(ctx context.Context, ownerID string, limit int) ([]Review, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, request_id, rating, comment, author, created_at
		FROM reviews WHERE owner_id=$1
		ORDER BY created_at DESC LIMIT $2
	`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	items := make([]Review, 0)
	for rows.Next() {
		var r Review
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.RequestID, &r.Rating, &r.Comment, &r.Author, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

func (s *PostgresStore) ReviewSummary(ctx context.Context, ownerID string) (count int, average float64, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(1), COALESCE(AVG(rating), 0) FROM reviews WHERE owner_id=$1
	`, ownerID).Scan(&count, &average)
	if err != nil {
		return 0, 0, fmt.Errorf("review summary: %w", err)
	}
	return count, average, nil
}
