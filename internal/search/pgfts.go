package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across inbox_messages and blog_posts
// using plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text, q.OwnerID}

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultMessage {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'message'::text AS type, m.id, m.peer AS title,
				ts_headline('english', coalesce(m.body, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				m.thread_id AS thread_id, ''::text AS site_id,
				ts_rank(m.fts, %s) AS rank
			FROM inbox_messages m
			WHERE m.owner_id = $2 AND m.fts @@ %s`, tsQuery, tsQuery, tsQuery))
	}

	if q.FilterType == "" || q.FilterType == ResultPost {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'post'::text AS type, b.id, b.title,
				ts_headline('english', coalesce(b.body, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				''::text AS thread_id, b.site_id,
				ts_rank(b.fts, %s) AS rank
			FROM blog_posts b
			WHERE b.owner_id = $2 AND b.fts @@ %s`, tsQuery, tsQuery, tsQuery))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, thread_id, site_id
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.ThreadID, &r.SiteID); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		r.OwnerID = q.OwnerID
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]MessageRecord, []PostRecord, error) {
	messageRows, err := p.db.QueryContext(ctx, `
		SELECT id, owner_id, thread_id, peer, channel, body
		FROM inbox_messages
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load messages: %w", err)
	}
	defer messageRows.Close()

	messages := make([]MessageRecord, 0)
	for messageRows.Next() {
		var m MessageRecord
		if err := messageRows.Scan(&m.ID, &m.OwnerID, &m.ThreadID, &m.Peer, &m.Channel, &m.Body); err != nil {
			return nil, nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := messageRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate messages: %w", err)
	}

	postRows, err := p.db.QueryContext(ctx, `
		SELECT id, owner_id, site_id, title, body, status
		FROM blog_posts
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load posts: %w", err)
	}
	defer postRows.Close()

	posts := make([]PostRecord, 0)
	for postRows.Next() {
		var post PostRecord
		if err := postRows.Scan(&post.ID, &post.OwnerID, &post.SiteID, &post.Title, &post.Body, &post.Status); err != nil {
			return nil, nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := postRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate posts: %w", err)
	}

	return messages, posts, nil
}
