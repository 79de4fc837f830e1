package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// UpsertThread inserts a thread keyed by (owner_id, thread_key) or refreshes
// its preview columns. Concurrent webhook deliveries race on the unique
// index, not on application locks.
func (s *PostgresStore) UpsertThread(ctx context.Context, t InboxThread) (InboxThread, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO inbox_threads
			(id, owner_id, thread_key, channel, peer, peer_name, subject, last_preview, unread_count, last_message_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (owner_id, thread_key) DO UPDATE SET
			peer_name = CASE WHEN EXCLUDED.peer_name <> '' THEN EXCLUDED.peer_name ELSE inbox_threads.peer_name END,
			last_preview = EXCLUDED.last_preview,
			unread_count = inbox_threads.unread_count + EXCLUDED.unread_count,
			last_message_at = NOW()
		RETURNING id, unread_count, last_message_at, created_at
	`, t.ID, t.OwnerID, t.ThreadKey, t.Channel, t.Peer, t.PeerName, t.Subject, t.LastPreview, t.UnreadCount).
		Scan(&t.ID, &t.UnreadCount, &t.LastMessageAt, &t.CreatedAt)
	if err != nil {
		return InboxThread{}, fmt.Errorf("upsert thread: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) GetThread(ctx context.Context, ownerID, threadID string) (InboxThread, error) {
	var t InboxThread
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, thread_key, channel, peer, peer_name, subject, last_preview, unread_count, last_message_at, created_at
		FROM inbox_threads WHERE owner_id=$1 AND id=$2
	`, ownerID, threadID).Scan(&t.ID, &t.OwnerID, &t.ThreadKey, &t.Channel, &t.Peer, &t.PeerName,
		&t.Subject, &t.LastPreview, &t.UnreadCount, &t.LastMessageAt, &t.CreatedAt)
	if err != nil {
		return InboxThread{}, err
	}
	return t, nil
}

func (s *PostgresStore) ListThreads(ctx context.Context, ownerID string, limit int) ([]InboxThread, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, thread_key, channel, peer, peer_name, subject, last_preview, unread_count, last_message_at, created_at
		FROM inbox_threads WHERE owner_id=$1
		ORDER BY last_message_at DESC
		LIMIT $2
	`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	items := make([]InboxThread, 0)
	for rows.Next() {
		var t InboxThread
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.ThreadKey, &t.Channel, &t.Peer, &t.PeerName,
			&t.Subject, &t.LastPreview, &t.UnreadCount, &t.LastMessageAt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

func (s *PostgresStore) MarkThreadRead(ctx context.Context, ownerID, threadID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE inbox_threads SET unread_count=0 WHERE owner_id=$1 AND id=$2
	`, ownerID, threadID)
	if err != nil {
		return fmt.Errorf("mark thread read: %w", err)
	}
	return nil
}

// InsertMessage writes a message row. Rows carrying a provider SID dedupe on
// the partial unique index; a retried webhook delivery reports inserted=false.
func (s *PostgresStore) InsertMessage(ctx context.Context, m InboxMessage) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO inbox_messages
			(id, thread_id, owner_id, direction, channel, peer, subject, body, provider_sid, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10)
		ON CONFLICT (owner_id, provider_sid) WHERE provider_sid IS NOT NULL DO NOTHING
	`, m.ID, m.ThreadID, m.OwnerID, m.Direction, m.Channel, m.Peer, m.Subject, m.Body, m.ProviderSID, m.Status)
	if err != nil {
		return false, fmt.Errorf("insert message: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert message rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, ownerID, threadID string, limit int) ([]InboxMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, thread_id, owner_id, direction, channel, peer, subject, body, COALESCE(provider_sid, ''), status, created_at
		FROM inbox_messages WHERE owner_id=$1 AND thread_id=$2
		ORDER BY created_at ASC
		LIMIT $3
	`, ownerID, threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	items := make([]InboxMessage, 0)
	for rows.Next() {
		var m InboxMessage
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.OwnerID, &m.Direction, &m.Channel, &m.Peer,
			&m.Subject, &m.Body, &m.ProviderSID, &m.Status, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func (s *PostgresStore) UpdateMessageStatus(ctx context.Context, ownerID, providerSID, status string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE inbox_messages SET status=$3 WHERE owner_id=$1 AND provider_sid=$2
	`, ownerID, providerSID, status)
	if err != nil {
		return fmt.Errorf("update message status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update message status rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) InsertAttachment(ctx context.Context, a InboxAttachment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inbox_attachments (id, message_id, file_name, content_type, object_key, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, a.ID, a.MessageID, a.FileName, a.ContentType, a.ObjectKey, a.Size)
	if err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAttachments(ctx context.Context, messageID string) ([]InboxAttachment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message_id, file_name, content_type, object_key, size_bytes, created_at
		FROM inbox_attachments WHERE message_id=$1 ORDER BY created_at
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	items := make([]InboxAttachment, 0)
	for rows.Next() {
		var a InboxAttachment
		if err := rows.Scan(&a.ID, &a.MessageID, &a.FileName, &a.ContentType, &a.ObjectKey, &a.Size, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

// ThreadExists reports whether the thread belongs to the owner. Used by
// handlers to distinguish 404 from an empty message list.
func (s *PostgresStore) ThreadExists(ctx context.Context, ownerID, threadID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM inbox_threads WHERE owner_id=$1 AND id=$2)
	`, ownerID, threadID).Scan(&exists)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("check thread: %w", err)
	}
	return exists, nil
}
