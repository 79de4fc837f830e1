package store

import (
	"context"
	"fmt"
	"time"
)

// ── Blog sites ──

func (s *PostgresStore) InsertBlogSite(ctx context.Context, site BlogSite) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blog_sites (id, owner_id, slug, title, description)
		VALUES ($1, $2, $3, $4, $5)
	`, site.ID, site.OwnerID, site.Slug, site.Title, site.Description)
	if err != nil {
		return fmt.Errorf("insert blog site: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBlogSite(ctx context.Context, ownerID, siteID string) (BlogSite, error) {
	var site BlogSite
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, slug, title, description, created_at, updated_at
		FROM blog_sites WHERE owner_id=$1 AND id=$2
	`, ownerID, siteID).Scan(&site.ID, &site.OwnerID, &site.Slug, &site.Title, &site.Description,
		&site.CreatedAt, &site.UpdatedAt)
	if err != nil {
		return BlogSite{}, err
	}
	return site, nil
}

func (s *PostgresStore) ListBlogSites(ctx context.Context, ownerID string) ([]BlogSite, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, slug, title, description, created_at, updated_at
		FROM blog_sites WHERE owner_id=$1 ORDER BY slug
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list blog sites: %w", err)
	}
	defer rows.Close()

	items := make([]BlogSite, 0)
	for rows.Next() {
		var site BlogSite
		if err := rows.Scan(&site.ID, &site.OwnerID, &site.Slug, &site.Title, &site.Description,
			&site.CreatedAt, &site.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan blog site: %w", err)
		}
		items = append(items, site)
	}
	return items, rows.Err()
}

// ── Blog posts ──

func (s *PostgresStore) InsertBlogPost(ctx context.Context, post BlogPost) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blog_posts (id, site_id, owner_id, slug, title, body, topic, status, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, post.ID, post.SiteID, post.OwnerID, post.Slug, post.Title, post.Body, post.Topic, post.Status, post.UpdatedBy)
	if err != nil {
		return fmt.Errorf("insert blog post: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBlogPost(ctx context.Context, ownerID, postID string) (BlogPost, error) {
	var post BlogPost
	err := s.db.QueryRowContext(ctx, `
		SELECT id, site_id, owner_id, slug, title, body, topic, status, updated_by, published_at, created_at, updated_at
		FROM blog_posts WHERE owner_id=$1 AND id=$2
	`, ownerID, postID).Scan(&post.ID, &post.SiteID, &post.OwnerID, &post.Slug, &post.Title, &post.Body,
		&post.Topic, &post.Status, &post.UpdatedBy, &post.PublishedAt, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return BlogPost{}, err
	}
	return post, nil
}

func (s *PostgresStore) ListBlogPosts(ctx context.Context, ownerID, siteID string) ([]BlogPost, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, site_id, owner_id, slug, title, body, topic, status, updated_by, published_at, created_at, updated_at
		FROM blog_posts WHERE owner_id=$1 AND site_id=$2
		ORDER BY updated_at DESC
	`, ownerID, siteID)
	if err != nil {
		return nil, fmt.Errorf("list blog posts: %w", err)
	}
	defer rows.Close()

	items := make([]BlogPost, 0)
	for rows.Next() {
		var post BlogPost
		if err := rows.Scan(&post.ID, &post.SiteID, &post.OwnerID, &post.Slug, &post.Title, &post.Body,
			&post.Topic, &post.Status, &post.UpdatedBy, &post.PublishedAt, &post.CreatedAt, &post.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan blog post: %w", err)
		}
		items = append(items, post)
	}
	return items, rows.Err()
}

func (s *PostgresStore) ListRecentPublishedPosts(ctx context.Context, ownerID string, since time.Time) ([]BlogPost, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, site_id, owner_id, slug, title, body, topic, status, updated_by, published_at, created_at, updated_at
		FROM blog_posts
		WHERE owner_id=$1 AND status='published' AND published_at >= $2
		ORDER BY published_at DESC
	`, ownerID, since)
	if err != nil {
		return nil, fmt.Errorf("list recent posts: %w", err)
	}
	defer rows.Close()

	items := make([]BlogPost, 0)
	for rows.Next() {
		var post BlogPost
		if err := rows.Scan(&post.ID, &post.SiteID, &post.OwnerID, &post.Slug, &post.Title, &post.Body,
			&post.Topic, &post.Status, &post.UpdatedBy, &post.PublishedAt, &post.CreatedAt, &post.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan recent post: %w", err)
		}
		items = append(items, post)
	}
	return items, rows.Err()
}

func (s *PostgresStore) UpdateBlogPost(ctx context.Context, ownerID, postID, title, body, status, updatedBy string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE blog_posts SET title=$3, body=$4, status=$5, updated_by=$6,
			published_at = CASE WHEN $5='published' AND published_at IS NULL THEN NOW() ELSE published_at END,
			updated_at=NOW()
		WHERE owner_id=$1 AND id=$2
	`, ownerID, postID, title, body, status, updatedBy)
	if err != nil {
		return fmt.Errorf("update blog post: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteBlogPost(ctx context.Context, ownerID, postID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM blog_posts WHERE owner_id=$1 AND id=$2`, ownerID, postID)
	if err != nil {
		return fmt.Errorf("delete blog post: %w", err)
	}
	return nil
}

// ── Newsletters + subscribers ──

func (s *PostgresStore) InsertNewsletter(ctx context.Context, n Newsletter) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO newsletters (id, owner_id, subject, body, recipient_count, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, n.ID, n.OwnerID, n.Subject, n.Body, n.RecipientCount, n.SentAt)
	if err != nil {
		return fmt.Errorf("insert newsletter: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListNewsletters(ctx context.Context, ownerID string, limit int) ([]Newsletter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, subject, body, recipient_count, sent_at, created_at
		FROM newsletters WHERE owner_id=$1
		ORDER BY created_at DESC LIMIT $2
	`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list newsletters: %w", err)
	}
	defer rows.Close()

	items := make([]Newsletter, 0)
	for rows.Next() {
		var n Newsletter
		if err := rows.Scan(&n.ID, &n.OwnerID, &n.Subject, &n.Body, &n.RecipientCount, &n.SentAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan newsletter: %w", err)
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

func (s *PostgresStore) InsertSubscriber(ctx context.Context, sub Subscriber) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO subscribers (id, owner_id, email, name)
		VALUES ($1, $2, LOWER($3), $4)
		ON CONFLICT (owner_id, email) DO NOTHING
	`, sub.ID, sub.OwnerID, sub.Email, sub.Name)
	if err != nil {
		return false, fmt.Errorf("insert subscriber: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert subscriber rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ListSubscribers(ctx context.Context, ownerID string) ([]Subscriber, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, email, name, created_at
		FROM subscribers WHERE owner_id=$1 ORDER BY email
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	items := make([]Subscriber, 0)
	for rows.Next() {
		var sub Subscriber
		if err := rows.Scan(&sub.ID, &sub.OwnerID, &sub.Email, &sub.Name, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		items = append(items, sub)
	}
	return items, rows.Err()
}
