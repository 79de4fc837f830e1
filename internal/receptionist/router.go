package receptionist

import (
	"homebase/api/internal/inbox"
	"homebase/api/internal/store"
)

// Call handling modes recorded on call rows.
const (
	ModeBlocked = "blocked"
	ModeForward = "forward"
	ModeAgent   = "agent"
)

// Plan chooses how to answer an inbound call for a tenant. Blocked callers
// are rejected; a configured forwarding number bridges the call; otherwise
// the AI agent takes it, over a media stream when one is configured or a
// speech-gather conversation loop posting to agentTurnURL when not.
func Plan(profile store.BusinessProfile, from, agentStreamURL, agentTurnURL string) (string, Response) {
	if isBlocked(profile.BlockedNumbers, from) {
		return ModeBlocked, RejectResponse()
	}

	if profile.ForwardNumber != "" {
		return ModeForward, ForwardResponse(profile.ForwardNumber, profile.Phone)
	}

	greeting := profile.Greeting
	if greeting == "" && profile.Name != "" {
		greeting = "Thank you for calling " + profile.Name + ". How can I help you today?"
	}
	if agentStreamURL != "" {
		return ModeAgent, AgentResponse(greeting, agentStreamURL)
	}
	return ModeAgent, TurnResponse(greeting, agentTurnURL)
}

func isBlocked(blocked []string, from string) bool {
	caller := inbox.NormalizePhone(from)
	for _, number := range blocked {
		if inbox.NormalizePhone(number) == caller {
			return true
		}
	}
	return false
}
