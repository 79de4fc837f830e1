package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"homebase/api/internal/store"
	"homebase/api/internal/util"

	"github.com/google/uuid"
)

type ProfileInput struct {
	Name           string   `json:"name"`
	Industry       string   `json:"industry"`
	Phone          string   `json:"phone"`
	Email          string   `json:"email"`
	Website        string   `json:"website"`
	Address        string   `json:"address"`
	Timezone       string   `json:"timezone"`
	Greeting       string   `json:"greeting"`
	ForwardNumber  string   `json:"forwardNumber"`
	BlockedNumbers []string `json:"blockedNumbers"`
}

func (s *Service) GetProfile(ctx context.Context, session Session) (map[string]any, error) {
	profile, err := s.store.GetProfileByOwner(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	return profilePayload(profile), nil
}

// SaveProfile creates or updates the owner's single profile row. Webhook
// and capture tokens are minted once and survive updates.
func (s *Service) SaveProfile(ctx context.Context, session Session, input ProfileInput) (map[string]any, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}

	profile := store.BusinessProfile{
		OwnerID:        session.UserID,
		Name:           name,
		Industry:       strings.TrimSpace(input.Industry),
		Phone:          strings.TrimSpace(input.Phone),
		Email:          strings.TrimSpace(input.Email),
		Website:        strings.TrimSpace(input.Website),
		Address:        strings.TrimSpace(input.Address),
		Timezone:       strings.TrimSpace(input.Timezone),
		Greeting:       strings.TrimSpace(input.Greeting),
		ForwardNumber:  strings.TrimSpace(input.ForwardNumber),
		BlockedNumbers: input.BlockedNumbers,
	}

	existing, err := s.store.GetProfileByOwner(ctx, session.UserID)
	switch {
	case err == nil:
		profile.ID = existing.ID
		profile.WebhookToken = existing.WebhookToken
		profile.CaptureToken = existing.CaptureToken
	case errors.Is(err, sql.ErrNoRows):
		profile.ID = util.NewID("biz")
		profile.WebhookToken = uuid.NewString()
		profile.CaptureToken = uuid.NewString()
	default:
		return nil, err
	}

	saved, err := s.store.UpsertProfile(ctx, profile)
	if err != nil {
		return nil, err
	}
	return profilePayload(saved), nil
}

func (s *Service) ListServices(ctx context.Context, session Session) ([]map[string]any, error) {
	setups, err := s.store.ListServiceSetups(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	enabled := make(map[string]store.ServiceSetup, len(setups))
	for _, setup := range setups {
		enabled[setup.Slug] = setup
	}

	items := make([]map[string]any, 0, len(ServiceSlugs))
	for _, slug := range ServiceSlugs {
		item := map[string]any{"slug": slug, "enabled": false}
		if setup, ok := enabled[slug]; ok {
			item["enabled"] = setup.Enabled
			item["updatedAt"] = setup.UpdatedAt.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Service) SetService(ctx context.Context, session Session, slug string, enabled bool) ([]map[string]any, error) {
	if _, ok := serviceSlugSet[slug]; !ok {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown service slug", map[string]any{"slug": slug})
	}
	if err := s.store.SetServiceEnabled(ctx, session.UserID, slug, enabled); err != nil {
		return nil, err
	}
	return s.ListServices(ctx, session)
}

// DashboardSummary backs the portal landing page.
func (s *Service) DashboardSummary(ctx context.Context, session Session) (map[string]any, error) {
	balance, err := s.store.CreditBalance(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	reviewCount, reviewAverage, err := s.store.ReviewSummary(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	threads, err := s.store.ListThreads(ctx, session.UserID, 200)
	if err != nil {
		return nil, err
	}
	unread := 0
	for _, thread := range threads {
		unread += thread.UnreadCount
	}
	leads, err := s.store.ListLeads(ctx, session.UserID, 200)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"creditBalance": balance,
		"unreadCount":   unread,
		"threadCount":   len(threads),
		"leadCount":     len(leads),
		"reviews": map[string]any{
			"count":   reviewCount,
			"average": reviewAverage,
		},
	}, nil
}

func profilePayload(p store.BusinessProfile) map[string]any {
	blocked := p.BlockedNumbers
	if blocked == nil {
		blocked = []string{}
	}
	return map[string]any{
		"id":             p.ID,
		"name":           p.Name,
		"industry":       p.Industry,
		"phone":          p.Phone,
		"email":          p.Email,
		"website":        p.Website,
		"address":        p.Address,
		"timezone":       p.Timezone,
		"greeting":       p.Greeting,
		"forwardNumber":  p.ForwardNumber,
		"blockedNumbers": blocked,
		"webhookToken":   p.WebhookToken,
		"captureToken":   p.CaptureToken,
		"updatedAt":      p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
