package app

import (
	"fmt"
	"net/http"
)

// handleInbox dispatches /api/inbox routes.
func (s *HTTPServer) handleInbox(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	// ["api", "inbox", "threads", ...]
	if len(parts) < 3 || parts[2] != "threads" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	if len(parts) == 3 {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.ListInboxThreads(r.Context(), session, queryInt(r, "limit"))
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"threads": payload})
		case http.MethodPost:
			var body struct {
				Channel string `json:"channel"`
				Peer    string `json:"peer"`
				Subject string `json:"subject"`
				Body    string `json:"body"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.StartThread(r.Context(), session, body.Channel, body.Peer, body.Subject, body.Body)
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

	threadID := parts[3]

	if len(parts) == 4 && r.Method == http.MethodGet {
		payload, err := s.service.ListThreadMessages(r.Context(), session, threadID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if len(parts) == 5 && parts[4] == "read" && r.Method == http.MethodPost {
		if err := s.service.MarkInboxThreadRead(r.Context(), session, threadID); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if len(parts) == 5 && parts[4] == "messages" && r.Method == http.MethodPost {
		var body struct {
			Body string `json:"body"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.SendThreadMessage(r.Context(), session, threadID, body.Body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, payload)
		return
	}

	// ["api", "inbox", "threads", id, "messages", mid, "attachments", aid]
	if len(parts) == 8 && parts[4] == "messages" && parts[6] == "attachments" && r.Method == http.MethodGet {
		attachment, content, err := s.service.GetAttachment(r.Context(), session, threadID, parts[5], parts[7])
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		w.Header().Set("Content-Type", attachment.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachment.FileName))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(content)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}
