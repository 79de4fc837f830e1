package app

import (
	"fmt"
	"io"
	"log"
	"net/http"
)

// maxUploadBytes caps multipart uploads at 25 MiB.
const maxUploadBytes = 25 << 20

// handleMedia dispatches /api/media routes.
func (s *HTTPServer) handleMedia(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	// ["api", "media", "folders" | "items", ...]
	if len(parts) < 3 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	if parts[2] == "folders" {
		if len(parts) == 3 {
			switch r.Method {
			case http.MethodGet:
				payload, err := s.service.ListFolders(r.Context(), session)
				if err != nil {
					status, code, message, details := mapError(err)
					writeError(w, status, code, message, details)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"folders": payload})
			case http.MethodPost:
				var body struct {
					Name string `json:"name"`
				}
				if err := decodeBody(r, &body); err != nil {
					writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
					return
				}
				payload, err := s.service.CreateMediaFolder(r.Context(), session, body.Name)
				if err != nil {
					status, code, message, details := mapError(err)
					writeError(w, status, code, message, details)
					return
				}
				writeJSON(w, http.StatusCreated, payload)
			default:
				writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			}
			return
		}

		folderID := parts[3]

		if len(parts) == 4 && r.Method == http.MethodDelete {
			if err := s.service.DeleteFolder(r.Context(), session, folderID); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}

		if len(parts) == 5 && parts[4] == "items" {
			switch r.Method {
			case http.MethodGet:
				payload, err := s.service.ListFolderItems(r.Context(), session, folderID)
				if err != nil {
					status, code, message, details := mapError(err)
					writeError(w, status, code, message, details)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"items": payload})
			case http.MethodPost:
				s.handleMediaUpload(w, r, session, folderID)
			default:
				writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			}
			return
		}

		if len(parts) == 5 && parts[4] == "archive" && r.Method == http.MethodGet {
			folder, err := s.service.FolderForArchive(r.Context(), session, folderID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			w.Header().Set("Content-Type", "application/zip")
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", folder.Name+".zip"))
			w.WriteHeader(http.StatusOK)
			if err := s.service.WriteFolderArchive(r.Context(), session, folder, w); err != nil {
				// Headers are out; log and stop writing.
				log.Printf(`{"event":"folder_archive_failed","folder_id":"%s","error":"%s"}`, folder.ID, err)
			}
			return
		}

		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	if parts[2] == "items" && len(parts) == 4 {
		itemID := parts[3]
		switch r.Method {
		case http.MethodGet:
			item, content, err := s.service.OpenMediaItem(r.Context(), session, itemID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			defer content.Close()
			w.Header().Set("Content-Type", item.ContentType)
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", item.FileName))
			w.WriteHeader(http.StatusOK)
			_, _ = io.Copy(w, content)
		case http.MethodDelete:
			if err := s.service.DeleteMediaItem(r.Context(), session, itemID); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		}
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleMediaUpload(w http.ResponseWriter, r *http.Request, session Session, folderID string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid multipart body", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "file field is required", nil)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	payload, err := s.service.UploadMediaItem(r.Context(), session, folderID, header.Filename, contentType, header.Size, file)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusCreated, payload)
}
