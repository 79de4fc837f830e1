package app

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// handlePortal dispatches the session-guarded portal routes.
func (s *HTTPServer) handlePortal(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	// Profile
	if r.Method == http.MethodGet && r.URL.Path == "/api/profile" {
		payload, err := s.service.GetProfile(r.Context(), session)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodPut && r.URL.Path == "/api/profile" {
		var input ProfileInput
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.SaveProfile(r.Context(), session, input)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	// Service setups
	if r.Method == http.MethodGet && r.URL.Path == "/api/services" {
		payload, err := s.service.ListServices(r.Context(), session)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"services": payload})
		return
	}

	if r.Method == http.MethodPut && len(parts) == 3 && parts[1] == "services" {
		var body struct {
			Enabled bool `json:"enabled"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.SetService(r.Context(), session, parts[2], body.Enabled)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"services": payload})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/summary" {
		payload, err := s.service.DashboardSummary(r.Context(), session)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	// Inbox
	if len(parts) >= 2 && parts[1] == "inbox" {
		s.handleInbox(w, r, session, parts)
		return
	}

	// Blogs
	if len(parts) >= 2 && parts[1] == "blogs" {
		s.handleBlogs(w, r, session, parts)
		return
	}

	// Newsletters + subscribers
	if r.Method == http.MethodGet && r.URL.Path == "/api/newsletters" {
		payload, err := s.service.ListOwnerNewsletters(r.Context(), session, queryInt(r, "limit"))
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"newsletters": payload})
		return
	}

	if r.URL.Path == "/api/newsletters/subscribers" {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.ListOwnerSubscribers(r.Context(), session)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"subscribers": payload})
		case http.MethodPost:
			var body struct {
				Email string `json:"email"`
				Name  string `json:"name"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.AddSubscriber(r.Context(), session, body.Email, body.Name)
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

	// Reviews
	if r.Method == http.MethodGet && r.URL.Path == "/api/reviews" {
		payload, err := s.service.ListOwnerReviews(r.Context(), session, queryInt(r, "limit"))
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.URL.Path == "/api/reviews/requests" {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.ListOwnerReviewRequests(r.Context(), session, queryInt(r, "limit"))
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"requests": payload})
		case http.MethodPost:
			var input ReviewRequestInput
			if err := decodeBody(r, &input); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.CreateReviewRequest(r.Context(), session, input)
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

	// Media library
	if len(parts) >= 2 && parts[1] == "media" {
		s.handleMedia(w, r, session, parts)
		return
	}

	// Booking
	if len(parts) >= 2 && parts[1] == "booking" {
		s.handleBooking(w, r, session, parts)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/leads" {
		payload, err := s.service.ListOwnerLeads(r.Context(), session, queryInt(r, "limit"))
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"leads": payload})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/calls" {
		payload, err := s.service.ListCallRecords(r.Context(), session, queryInt(r, "limit"))
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"calls": payload})
		return
	}

	// Billing
	if r.Method == http.MethodGet && r.URL.Path == "/api/billing/credits" {
		payload, err := s.service.CreditSummary(r.Context(), session)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/billing/report" {
		from, to := queryPeriod(r)
		payload, err := s.service.CreditReport(r.Context(), session, from, to)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/billing/report/pdf" {
		from, to := queryPeriod(r)
		result, err := s.service.ExportCreditReport(r.Context(), session, from, to)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		w.Header().Set("Content-Type", result.MimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)
		return
	}

	// Search
	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		query := r.URL.Query()
		payload, err := s.service.SearchAll(r.Context(), session, query.Get("q"), query.Get("type"), queryInt(r, "limit"), queryInt(r, "offset"))
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func queryInt(r *http.Request, key string) int {
	value, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return value
}

func queryPeriod(r *http.Request) (time.Time, time.Time) {
	var from, to time.Time
	if raw := r.URL.Query().Get("from"); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			from = parsed
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			to = parsed
		}
	}
	return from, to
}
