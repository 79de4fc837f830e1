package app

import "net/http"

// handleBlogs dispatches /api/blogs routes.
func (s *HTTPServer) handleBlogs(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	// ["api", "blogs", "sites" | "posts", ...]
	if len(parts) < 3 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	if parts[2] == "sites" {
		if len(parts) == 3 {
			switch r.Method {
			case http.MethodGet:
				payload, err := s.service.ListSites(r.Context(), session)
				if err != nil {
					status, code, message, details := mapError(err)
					writeError(w, status, code, message, details)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"sites": payload})
			case http.MethodPost:
				var body struct {
					Slug        string `json:"slug"`
					Title       string `json:"title"`
					Description string `json:"description"`
				}
				if err := decodeBody(r, &body); err != nil {
					writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
					return
				}
				payload, err := s.service.CreateBlogSite(r.Context(), session, body.Slug, body.Title, body.Description)
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

		if len(parts) == 5 && parts[4] == "posts" {
			siteID := parts[3]
			switch r.Method {
			case http.MethodGet:
				payload, err := s.service.ListPosts(r.Context(), session, siteID)
				if err != nil {
					status, code, message, details := mapError(err)
					writeError(w, status, code, message, details)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"posts": payload})
			case http.MethodPost:
				var input PostInput
				if err := decodeBody(r, &input); err != nil {
					writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
					return
				}
				payload, err := s.service.CreateBlogPost(r.Context(), session, siteID, input)
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

		if len(parts) == 5 && parts[4] == "generate" && r.Method == http.MethodPost {
			var body struct {
				Topic string `json:"topic"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.GenerateBlogPost(r.Context(), session, parts[3], body.Topic)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusCreated, payload)
			return
		}

		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	if parts[2] == "posts" && len(parts) >= 4 {
		postID := parts[3]

		if len(parts) == 4 {
			switch r.Method {
			case http.MethodGet:
				payload, err := s.service.GetPost(r.Context(), session, postID)
				if err != nil {
					status, code, message, details := mapError(err)
					writeError(w, status, code, message, details)
					return
				}
				writeJSON(w, http.StatusOK, payload)
			case http.MethodPut:
				var input PostInput
				if err := decodeBody(r, &input); err != nil {
					writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
					return
				}
				payload, err := s.service.UpdatePost(r.Context(), session, postID, input)
				if err != nil {
					status, code, message, details := mapError(err)
					writeError(w, status, code, message, details)
					return
				}
				writeJSON(w, http.StatusOK, payload)
			case http.MethodDelete:
				if err := s.service.DeletePost(r.Context(), session, postID); err != nil {
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

		if len(parts) == 5 && parts[4] == "publish" && r.Method == http.MethodPost {
			payload, err := s.service.PublishPost(r.Context(), session, postID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, payload)
			return
		}

		if len(parts) == 5 && parts[4] == "history" && r.Method == http.MethodGet {
			payload, err := s.service.PostHistory(r.Context(), session, postID, queryInt(r, "limit"))
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"history": payload})
			return
		}

		if len(parts) == 6 && parts[4] == "history" && r.Method == http.MethodGet {
			payload, err := s.service.PostRevision(r.Context(), session, postID, parts[5])
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, payload)
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}
