package app

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"homebase/api/internal/receptionist"
	"homebase/api/internal/store"
	"homebase/api/internal/util"
)

// PlanInboundCall decides how to answer an inbound call and renders the
// TwiML response. Calls handed to the agent or forwarded get a call row;
// reconciliation settles their terminal status later.
func (s *Service) PlanInboundCall(ctx context.Context, profile store.BusinessProfile, from, callSID, to string) ([]byte, error) {
	mode, response := receptionist.Plan(profile, from, s.cfg.AgentStreamURL, s.agentTurnURL(profile.WebhookToken))

	if mode != receptionist.ModeBlocked && callSID != "" {
		if err := s.store.UpsertCallRecord(ctx, store.CallRecord{
			ID:         util.NewID("call"),
			OwnerID:    profile.OwnerID,
			CallSID:    callSID,
			FromNumber: from,
			ToNumber:   to,
			Mode:       mode,
			Status:     "in-progress",
			StartedAt:  time.Now().UTC(),
		}); err != nil {
			return nil, err
		}
	}

	return receptionist.Render(response)
}

// agentTurnURL is where the provider posts each gathered caller statement.
func (s *Service) agentTurnURL(webhookToken string) string {
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/api/webhooks/" + webhookToken + "/agent"
}

// AgentTurn answers one conversational exchange on an AI-handled call: the
// caller's transcribed statement goes to the model and the reply comes back
// as spoken TwiML with another gather. Model failures fall back to a
// message-taking prompt so the call stays alive.
func (s *Service) AgentTurn(ctx context.Context, profile store.BusinessProfile, callerStatement string) ([]byte, error) {
	reply := "Sorry, I didn't catch that. Could you repeat it, or leave your name and number so we can call you back?"
	if s.ai != nil && s.ai.IsConfigured() && strings.TrimSpace(callerStatement) != "" {
		generated, err := s.ai.ReceptionistReply(ctx, profile.Name, profile.Greeting, callerStatement)
		if err != nil {
			log.Printf(`{"event":"agent_reply_failed","owner_id":"%s","error":"%s"}`, profile.OwnerID, err)
		} else if generated != "" {
			reply = generated
		}
	}
	return receptionist.Render(receptionist.TurnResponse(reply, s.agentTurnURL(profile.WebhookToken)))
}

// RecordCallStatus applies a provider status callback. The first terminal
// transition of an agent-handled call debits credits by call duration.
func (s *Service) RecordCallStatus(ctx context.Context, profile store.BusinessProfile, callSID, status string, durationSeconds int) error {
	if callSID == "" || status == "" {
		return nil
	}
	if !store.IsTerminalCallStatus(status) {
		return nil
	}

	finalized, err := s.store.FinalizeCall(ctx, callSID, status, durationSeconds)
	if err != nil {
		return err
	}
	if !finalized {
		return nil
	}
	s.settleCallCredits(ctx, callSID, status, durationSeconds)
	return nil
}

// ReconcileCalls polls the provider for calls still marked in-progress and
// settles the ones that reached a terminal state. Invoked by cron.
func (s *Service) ReconcileCalls(ctx context.Context) (map[string]any, error) {
	open, err := s.store.ListOpenCalls(ctx, 100)
	if err != nil {
		return nil, err
	}

	checked := 0
	settled := 0
	for _, record := range open {
		checked++
		if s.sms == nil || !s.sms.IsConfigured() {
			break
		}
		call, err := s.sms.GetCall(ctx, record.CallSID)
		if err != nil {
			log.Printf(`{"event":"call_lookup_failed","call_sid":"%s","error":"%s"}`, record.CallSID, err)
			continue
		}
		if !store.IsTerminalCallStatus(call.Status) {
			continue
		}
		duration, _ := strconv.Atoi(call.Duration)
		finalized, err := s.store.FinalizeCall(ctx, record.CallSID, call.Status, duration)
		if err != nil {
			log.Printf(`{"event":"call_finalize_failed","call_sid":"%s","error":"%s"}`, record.CallSID, err)
			continue
		}
		if finalized {
			settled++
			s.settleCallCredits(ctx, record.CallSID, call.Status, duration)
		}
	}

	return map[string]any{"checked": checked, "settled": settled}, nil
}

func (s *Service) ListCallRecords(ctx context.Context, session Session, limit int) ([]map[string]any, error) {
	if err := s.requireService(ctx, session.UserID, "receptionist"); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	calls, err := s.store.ListCalls(ctx, session.UserID, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(calls))
	for _, call := range calls {
		item := map[string]any{
			"id":              call.ID,
			"callSid":         call.CallSID,
			"from":            call.FromNumber,
			"to":              call.ToNumber,
			"mode":            call.Mode,
			"status":          call.Status,
			"durationSeconds": call.DurationSeconds,
			"startedAt":       call.StartedAt.UTC().Format(time.RFC3339),
		}
		if call.EndedAt != nil {
			item["endedAt"] = call.EndedAt.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}
	return items, nil
}

// settleCallCredits debits agent-handled call time, one credit per started
// minute. Ledger failures are logged; the call stays finalized.
func (s *Service) settleCallCredits(ctx context.Context, callSID, status string, durationSeconds int) {
	if status != "completed" || durationSeconds <= 0 {
		return
	}
	record, err := s.store.GetCallBySID(ctx, callSID)
	if err != nil {
		log.Printf(`{"event":"call_settle_lookup_failed","call_sid":"%s","error":"%s"}`, callSID, err)
		return
	}
	if record.Mode != receptionist.ModeAgent {
		return
	}
	credits := (durationSeconds + 59) / 60
	if err := s.store.DebitCredits(ctx, record.OwnerID, credits, "ai_call", callSID); err != nil {
		log.Printf(`{"event":"call_debit_failed","call_sid":"%s","error":"%s"}`, callSID, err)
	}
}
