package app

import (
	"context"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"homebase/api/internal/media"
	"homebase/api/internal/store"
	"homebase/api/internal/util"
)

func (s *Service) CreateMediaFolder(ctx context.Context, session Session, name string) (map[string]any, error) {
	if err := s.requireService(ctx, session.UserID, "media"); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	folder := store.MediaFolder{
		ID:      util.NewID("fld"),
		OwnerID: session.UserID,
		Name:    name,
	}
	if err := s.store.InsertMediaFolder(ctx, folder); err != nil {
		return nil, err
	}
	return folderPayload(folder), nil
}

func (s *Service) ListFolders(ctx context.Context, session Session) ([]map[string]any, error) {
	if err := s.requireService(ctx, session.UserID, "media"); err != nil {
		return nil, err
	}
	folders, err := s.store.ListMediaFolders(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(folders))
	for _, folder := range folders {
		items = append(items, folderPayload(folder))
	}
	return items, nil
}

// DeleteFolder removes the folder rows and best-effort removes the stored
// object content behind them.
func (s *Service) DeleteFolder(ctx context.Context, session Session, folderID string) error {
	if err := s.requireService(ctx, session.UserID, "media"); err != nil {
		return err
	}
	if _, err := s.store.GetMediaFolder(ctx, session.UserID, folderID); err != nil {
		return err
	}
	items, err := s.store.ListMediaItems(ctx, session.UserID, folderID)
	if err != nil {
		return err
	}
	if _, err := s.store.DeleteMediaFolder(ctx, session.UserID, folderID); err != nil {
		return err
	}
	for _, item := range items {
		if err := s.media.Remove(ctx, item.ObjectKey); err != nil {
			log.Printf(`{"event":"media_remove_failed","item_id":"%s","error":"%s"}`, item.ID, err)
		}
	}
	return nil
}

// UploadMediaItem stores item content in the object store and records the
// library row.
func (s *Service) UploadMediaItem(ctx context.Context, session Session, folderID, fileName, contentType string, size int64, content io.Reader) (map[string]any, error) {
	if err := s.requireService(ctx, session.UserID, "media"); err != nil {
		return nil, err
	}
	if _, err := s.store.GetMediaFolder(ctx, session.UserID, folderID); err != nil {
		return nil, err
	}
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "fileName is required", nil)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	item := store.MediaItem{
		ID:          util.NewID("itm"),
		OwnerID:     session.UserID,
		FolderID:    folderID,
		FileName:    fileName,
		ContentType: contentType,
		ObjectKey:   "media/" + session.UserID + "/" + util.NewID("obj"),
		Size:        size,
	}
	if err := s.media.Put(ctx, item.ObjectKey, content, size, contentType); err != nil {
		return nil, err
	}
	if err := s.store.InsertMediaItem(ctx, item); err != nil {
		if removeErr := s.media.Remove(ctx, item.ObjectKey); removeErr != nil {
			log.Printf(`{"event":"media_cleanup_failed","object_key":"%s","error":"%s"}`, item.ObjectKey, removeErr)
		}
		return nil, err
	}
	return itemPayload(item), nil
}

func (s *Service) ListFolderItems(ctx context.Context, session Session, folderID string) ([]map[string]any, error) {
	if err := s.requireService(ctx, session.UserID, "media"); err != nil {
		return nil, err
	}
	if _, err := s.store.GetMediaFolder(ctx, session.UserID, folderID); err != nil {
		return nil, err
	}
	items, err := s.store.ListMediaItems(ctx, session.UserID, folderID)
	if err != nil {
		return nil, err
	}
	payloads := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payloads = append(payloads, itemPayload(item))
	}
	return payloads, nil
}

// OpenMediaItem returns the item row and a reader over its content. The
// caller closes the reader.
func (s *Service) OpenMediaItem(ctx context.Context, session Session, itemID string) (store.MediaItem, io.ReadCloser, error) {
	if err := s.requireService(ctx, session.UserID, "media"); err != nil {
		return store.MediaItem{}, nil, err
	}
	item, err := s.store.GetMediaItem(ctx, session.UserID, itemID)
	if err != nil {
		return store.MediaItem{}, nil, err
	}
	reader, err := s.media.Get(ctx, item.ObjectKey)
	if err != nil {
		return store.MediaItem{}, nil, err
	}
	return item, reader, nil
}

func (s *Service) DeleteMediaItem(ctx context.Context, session Session, itemID string) error {
	if err := s.requireService(ctx, session.UserID, "media"); err != nil {
		return err
	}
	item, err := s.store.DeleteMediaItem(ctx, session.UserID, itemID)
	if err != nil {
		return err
	}
	if err := s.media.Remove(ctx, item.ObjectKey); err != nil {
		log.Printf(`{"event":"media_remove_failed","item_id":"%s","error":"%s"}`, item.ID, err)
	}
	return nil
}

// FolderForArchive validates feature access and folder ownership. The
// handler calls it before the ZIP stream commits response headers, so a
// disabled service or missing folder still gets a proper error response.
func (s *Service) FolderForArchive(ctx context.Context, session Session, folderID string) (store.MediaFolder, error) {
	if err := s.requireService(ctx, session.UserID, "media"); err != nil {
		return store.MediaFolder{}, err
	}
	return s.store.GetMediaFolder(ctx, session.UserID, folderID)
}

// WriteFolderArchive streams a ZIP of the folder's items. Entry order is
// deterministic and duplicate file names are disambiguated.
func (s *Service) WriteFolderArchive(ctx context.Context, session Session, folder store.MediaFolder, w io.Writer) error {
	items, err := s.store.ListMediaItems(ctx, session.UserID, folder.ID)
	if err != nil {
		return err
	}

	entries := make([]media.ZipEntry, 0, len(items))
	for _, item := range items {
		objectKey := item.ObjectKey
		entries = append(entries, media.ZipEntry{
			Name: item.FileName,
			Open: func() (io.ReadCloser, error) {
				return s.media.Get(ctx, objectKey)
			},
		})
	}

	return media.WriteZip(w, entries)
}

func folderPayload(folder store.MediaFolder) map[string]any {
	return map[string]any{
		"id":        folder.ID,
		"name":      folder.Name,
		"itemCount": folder.ItemCount,
		"createdAt": folder.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func itemPayload(item store.MediaItem) map[string]any {
	return map[string]any{
		"id":          item.ID,
		"folderId":    item.FolderID,
		"fileName":    item.FileName,
		"contentType": item.ContentType,
		"size":        item.Size,
		"createdAt":   item.CreatedAt.UTC().Format(time.RFC3339),
	}
}
