package app

import "net/http"

// handleBooking dispatches /api/booking routes.
func (s *HTTPServer) handleBooking(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	// ["api", "booking", "closers" | "appointments", ...]
	if len(parts) < 3 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	if parts[2] == "closers" {
		if len(parts) == 3 {
			switch r.Method {
			case http.MethodGet:
				payload, err := s.service.ListOwnerClosers(r.Context(), session)
				if err != nil {
					status, code, message, details := mapError(err)
					writeError(w, status, code, message, details)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"closers": payload})
			case http.MethodPost:
				var input CloserInput
				if err := decodeBody(r, &input); err != nil {
					writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
					return
				}
				payload, err := s.service.CreateCloser(r.Context(), session, input)
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

		if len(parts) == 4 && r.Method == http.MethodPut {
			var body struct {
				Active bool `json:"active"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if err := s.service.SetCloserActive(r.Context(), session, parts[3], body.Active); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}

		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	if parts[2] == "appointments" && len(parts) == 3 {
		switch r.Method {
		case http.MethodGet:
			from, to := queryPeriod(r)
			payload, err := s.service.ListOwnerAppointments(r.Context(), session, from, to)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"appointments": payload})
		case http.MethodPost:
			var input AppointmentInput
			if err := decodeBody(r, &input); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.BookAppointment(r.Context(), session, input)
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

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}
