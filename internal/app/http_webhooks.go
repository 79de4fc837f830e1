package app

import (
	"log"
	"net/http"
	"strconv"

	"homebase/api/internal/receptionist"
	"homebase/api/internal/store"
)

// handleWebhook routes /api/webhooks/{token}/{kind}. The token resolves the
// tenant; an unknown token is a 404 so providers stop retrying.
func (s *HTTPServer) handleWebhook(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path)
	// ["api", "webhooks", token, kind]
	if len(parts) != 4 || r.Method != http.MethodPost {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	token := parts[2]
	kind := parts[3]

	profile, err := s.service.store.GetProfileByWebhookToken(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch kind {
	case "sms":
		s.handleInboundSMS(w, r, profile)
	case "voice":
		s.handleInboundVoice(w, r, profile)
	case "agent":
		s.handleAgentTurn(w, r, profile)
	case "status":
		s.handleProviderStatus(w, r, profile)
	case "email":
		s.handleInboundEmail(w, r, profile)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleInboundSMS(w http.ResponseWriter, r *http.Request, profile store.BusinessProfile) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid form body", nil)
		return
	}
	from := r.PostFormValue("From")
	body := r.PostFormValue("Body")
	messageSID := r.PostFormValue("MessageSid")
	if from == "" || messageSID == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "From and MessageSid are required", nil)
		return
	}

	if err := s.service.RecordInboundSMS(r.Context(), profile, from, body, messageSID); err != nil {
		log.Printf(`{"event":"inbound_sms_failed","owner_id":"%s","error":"%s"}`, profile.OwnerID, err)
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil)
		return
	}

	// Twilio expects TwiML; an empty response acknowledges without replying.
	ack, err := receptionist.Render(receptionist.Response{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil)
		return
	}
	writeXML(w, http.StatusOK, ack)
}

func (s *HTTPServer) handleInboundVoice(w http.ResponseWriter, r *http.Request, profile store.BusinessProfile) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid form body", nil)
		return
	}
	from := r.PostFormValue("From")
	to := r.PostFormValue("To")
	callSID := r.PostFormValue("CallSid")

	twiml, err := s.service.PlanInboundCall(r.Context(), profile, from, callSID, to)
	if err != nil {
		log.Printf(`{"event":"inbound_voice_failed","owner_id":"%s","error":"%s"}`, profile.OwnerID, err)
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil)
		return
	}
	writeXML(w, http.StatusOK, twiml)
}

// handleAgentTurn serves the speech-gather callback on AI-answered calls.
// Twilio posts the caller's transcription as SpeechResult.
func (s *HTTPServer) handleAgentTurn(w http.ResponseWriter, r *http.Request, profile store.BusinessProfile) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid form body", nil)
		return
	}

	twiml, err := s.service.AgentTurn(r.Context(), profile, r.PostFormValue("SpeechResult"))
	if err != nil {
		log.Printf(`{"event":"agent_turn_failed","owner_id":"%s","error":"%s"}`, profile.OwnerID, err)
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil)
		return
	}
	writeXML(w, http.StatusOK, twiml)
}

// handleProviderStatus takes both message and call status callbacks; Twilio
// posts CallSid for voice and MessageSid for SMS.
func (s *HTTPServer) handleProviderStatus(w http.ResponseWriter, r *http.Request, profile store.BusinessProfile) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid form body", nil)
		return
	}

	if callSID := r.PostFormValue("CallSid"); callSID != "" {
		duration, _ := strconv.Atoi(r.PostFormValue("CallDuration"))
		if err := s.service.RecordCallStatus(r.Context(), profile, callSID, r.PostFormValue("CallStatus"), duration); err != nil {
			log.Printf(`{"event":"call_status_failed","call_sid":"%s","error":"%s"}`, callSID, err)
			writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	messageSID := r.PostFormValue("MessageSid")
	status := r.PostFormValue("MessageStatus")
	if err := s.service.RecordDeliveryStatus(r.Context(), profile, messageSID, status); err != nil {
		log.Printf(`{"event":"message_status_failed","message_sid":"%s","error":"%s"}`, messageSID, err)
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleInboundEmail(w http.ResponseWriter, r *http.Request, profile store.BusinessProfile) {
	var body struct {
		From        string              `json:"from"`
		Subject     string              `json:"subject"`
		Body        string              `json:"body"`
		MessageID   string              `json:"messageId"`
		Attachments []InboundAttachment `json:"attachments"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if body.From == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "from is required", nil)
		return
	}

	if err := s.service.RecordInboundEmail(r.Context(), profile, body.From, body.Subject, body.Body, body.MessageID, body.Attachments); err != nil {
		log.Printf(`{"event":"inbound_email_failed","owner_id":"%s","error":"%s"}`, profile.OwnerID, err)
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handlePublicReview serves the tokened review form endpoints.
func (s *HTTPServer) handlePublicReview(w http.ResponseWriter, r *http.Request, token string) {
	switch r.Method {
	case http.MethodGet:
		request, err := s.service.store.GetReviewRequestByToken(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		profile, err := s.service.store.GetProfileByOwner(r.Context(), request.OwnerID)
		if err != nil {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"businessName": profile.Name,
			"contactName":  request.ContactName,
			"completed":    request.Status == "completed",
		})
	case http.MethodPost:
		var body struct {
			Rating  int    `json:"rating"`
			Comment string `json:"comment"`
			Author  string `json:"author"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.SubmitReview(r.Context(), token, body.Rating, body.Comment, body.Author)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, payload)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleLeadCapture(w http.ResponseWriter, r *http.Request, token string) {
	profile, err := s.service.store.GetProfileByCaptureToken(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	var input LeadInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	payload, err := s.service.CaptureLead(r.Context(), profile, input)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusCreated, payload)
}

// handleCron serves the token-guarded scheduled and admin endpoints.
func (s *HTTPServer) handleCron(w http.ResponseWriter, r *http.Request) {
	cronToken := r.Header.Get("x-homebase-cron-token")
	if cronToken == "" || cronToken != s.service.CronToken() {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch r.URL.Path {
	case "/api/cron/reconcile-calls":
		payload, err := s.service.ReconcileCalls(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case "/api/cron/newsletters":
		payload, err := s.service.SendNewsletters(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case "/api/cron/generate-posts":
		payload, err := s.service.GenerateScheduledPosts(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case "/api/cron/grant-credits":
		var body struct {
			OwnerID string `json:"ownerId"`
			Amount  int    `json:"amount"`
			Reason  string `json:"reason"`
			Ref     string `json:"ref"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.GrantOwnerCredits(r.Context(), body.OwnerID, body.Amount, body.Reason, body.Ref)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}
