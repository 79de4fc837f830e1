package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) InsertMediaFolder(ctx context.Context, f MediaFolder) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO media_folders (id, owner_id, name) VALUES ($1, $2, $3)
	`, f.ID, f.OwnerID, f.Name)
	if err != nil {
		return fmt.Errorf("insert media folder: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetMediaFolder(ctx context.Context, ownerID, folderID string) (MediaFolder, error) {
	var f MediaFolder
	err := s.db.QueryRowContext(ctx, `
		SELECT f.id, f.owner_id, f.name, COUNT(i.id), f.created_at
		FROM media_folders f
		LEFT JOIN media_items i ON i.folder_id = f.id
		WHERE f.owner_id=$1 AND f.id=$2
		GROUP BY f.id
	`, ownerID, folderID).Scan(&f.ID, &f.OwnerID, &f.Name, &f.ItemCount, &f.CreatedAt)
	if err != nil {
		return MediaFolder{}, err
	}
	return f, nil
}

func (s *PostgresStore) ListMediaFolders(ctx context.Context, ownerID string) ([]MediaFolder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, f.owner_id, f.name, COUNT(i.id), f.created_at
		FROM media_folders f
		LEFT JOIN media_items i ON i.folder_id = f.id
		WHERE f.owner_id=$1
		GROUP BY f.id
		ORDER BY f.name
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list media folders: %w", err)
	}
	defer rows.Close()

	items := make([]MediaFolder, 0)
	for rows.Next() {
		var f MediaFolder
		if err := rows.Scan(&f.ID, &f.OwnerID, &f.Name, &f.ItemCount, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan media folder: %w", err)
		}
		items = append(items, f)
	}
	return items, rows.Err()
}

func (s *PostgresStore) DeleteMediaFolder(ctx context.Context, ownerID, folderID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM media_items WHERE owner_id=$1 AND folder_id=$2
	`, ownerID, folderID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count folder items: %w", err)
	}
	if count > 0 {
		return count, nil
	}
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM media_folders WHERE owner_id=$1 AND id=$2
	`, ownerID, folderID)
	if err != nil {
		return 0, fmt.Errorf("delete media folder: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return -1, nil
	}
	return 0, nil
}

func (s *PostgresStore) InsertMediaItem(ctx context.Context, item MediaItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO media_items (id, owner_id, folder_id, file_name, content_type, object_key, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, item.ID, item.OwnerID, item.FolderID, item.FileName, item.ContentType, item.ObjectKey, item.Size)
	if err != nil {
		return fmt.Errorf("insert media item: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetMediaItem(ctx context.Context, ownerID, itemID string) (MediaItem, error) {
	var item MediaItem
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, folder_id, file_name, content_type, object_key, size_bytes, created_at
		FROM media_items WHERE owner_id=$1 AND id=$2
	`, ownerID, itemID).Scan(&item.ID, &item.OwnerID, &item.FolderID, &item.FileName,
		&item.ContentType, &item.ObjectKey, &item.Size, &item.CreatedAt)
	if err != nil {
		return MediaItem{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListMediaItems(ctx context.Context, ownerID, folderID string) ([]MediaItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, folder_id, file_name, content_type, object_key, size_bytes, created_at
		FROM media_items WHERE owner_id=$1 AND folder_id=$2
		ORDER BY file_name, created_at
	`, ownerID, folderID)
	if err != nil {
		return nil, fmt.Errorf("list media items: %w", err)
	}
	defer rows.Close()

	items := make([]MediaItem, 0)
	for rows.Next() {
		var item MediaItem
		if err := rows.Scan(&item.ID, &item.OwnerID, &item.FolderID, &item.FileName,
			&item.ContentType, &item.ObjectKey, &item.Size, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan media item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) DeleteMediaItem(ctx context.Context, ownerID, itemID string) (MediaItem, error) {
	var item MediaItem
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM media_items WHERE owner_id=$1 AND id=$2
		RETURNING id, owner_id, folder_id, file_name, content_type, object_key, size_bytes, created_at
	`, ownerID, itemID).Scan(&item.ID, &item.OwnerID, &item.FolderID, &item.FileName,
		&item.ContentType, &item.ObjectKey, &item.Size, &item.CreatedAt)
	if err != nil {
		return MediaItem{}, err
	}
	return item, nil
}
