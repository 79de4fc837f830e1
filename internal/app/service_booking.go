package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"homebase/api/internal/booking"
	"homebase/api/internal/inbox"
	"homebase/api/internal/store"
	"homebase/api/internal/util"
)

type CloserInput struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	WorkStart string `json:"workStart"`
	WorkEnd   string `json:"workEnd"`
}

func (s *Service) CreateCloser(ctx context.Context, session Session, input CloserInput) (map[string]any, error) {
	if err := s.requireService(ctx, session.UserID, "booking"); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}

	closer := store.Closer{
		ID:        util.NewID("clo"),
		OwnerID:   session.UserID,
		Name:      name,
		Email:     strings.TrimSpace(strings.ToLower(input.Email)),
		WorkStart: strings.TrimSpace(input.WorkStart),
		WorkEnd:   strings.TrimSpace(input.WorkEnd),
		Active:    true,
	}
	if err := s.store.InsertCloser(ctx, closer); err != nil {
		return nil, err
	}
	return closerPayload(closer), nil
}

func (s *Service) ListOwnerClosers(ctx context.Context, session Session) ([]map[string]any, error) {
	if err := s.requireService(ctx, session.UserID, "booking"); err != nil {
		return nil, err
	}
	closers, err := s.store.ListClosers(ctx, session.UserID, false)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(closers))
	for _, closer := range closers {
		items = append(items, closerPayload(closer))
	}
	return items, nil
}

func (s *Service) SetCloserActive(ctx context.Context, session Session, closerID string, active bool) error {
	if err := s.requireService(ctx, session.UserID, "booking"); err != nil {
		return err
	}
	return s.store.SetCloserActive(ctx, session.UserID, closerID, active)
}

type AppointmentInput struct {
	ContactName  string `json:"contactName"`
	ContactPhone string `json:"contactPhone"`
	Notes        string `json:"notes"`
	StartsAt     string `json:"startsAt"`
	EndsAt       string `json:"endsAt"`
}

// BookAppointment assigns the fairest available closer and books the slot.
// The overlap check reruns inside the conditional insert, so two racing
// bookings for the same closer cannot both land.
func (s *Service) BookAppointment(ctx context.Context, session Session, input AppointmentInput) (map[string]any, error) {
	if err := s.requireService(ctx, session.UserID, "booking"); err != nil {
		return nil, err
	}
	contactName := strings.TrimSpace(input.ContactName)
	if contactName == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "contactName is required", nil)
	}
	startsAt, err := time.Parse(time.RFC3339, input.StartsAt)
	if err != nil {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "startsAt must be RFC 3339", nil)
	}
	endsAt, err := time.Parse(time.RFC3339, input.EndsAt)
	if err != nil {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "endsAt must be RFC 3339", nil)
	}
	if !endsAt.After(startsAt) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "endsAt must be after startsAt", nil)
	}

	closers, err := s.store.ListClosers(ctx, session.UserID, true)
	if err != nil {
		return nil, err
	}
	sameDay, err := s.store.ListAppointmentsForDay(ctx, session.UserID, startsAt)
	if err != nil {
		return nil, err
	}

	picked, err := booking.PickCloser(closers, sameDay, startsAt, endsAt)
	if err != nil {
		if errors.Is(err, booking.ErrNoCloserAvailable) {
			return nil, domainError(http.StatusConflict, "NO_CLOSER_AVAILABLE", "No closer is available for this slot", nil)
		}
		return nil, err
	}

	appointment := store.Appointment{
		ID:           util.NewID("apt"),
		OwnerID:      session.UserID,
		CloserID:     picked.ID,
		ContactName:  contactName,
		ContactPhone: inbox.NormalizePhone(input.ContactPhone),
		Notes:        strings.TrimSpace(input.Notes),
		StartsAt:     startsAt.UTC(),
		EndsAt:       endsAt.UTC(),
	}
	inserted, err := s.store.InsertAppointment(ctx, appointment)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, domainError(http.StatusConflict, "SLOT_TAKEN", "The closer was booked concurrently, try again", nil)
	}

	payload := appointmentPayload(appointment)
	payload["closerName"] = picked.Name
	return payload, nil
}

func (s *Service) ListOwnerAppointments(ctx context.Context, session Session, from, to time.Time) ([]map[string]any, error) {
	if err := s.requireService(ctx, session.UserID, "booking"); err != nil {
		return nil, err
	}
	if to.IsZero() {
		to = time.Now().AddDate(0, 1, 0)
	}
	if from.IsZero() {
		from = time.Now().AddDate(0, 0, -7)
	}
	appointments, err := s.store.ListAppointments(ctx, session.UserID, from, to)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(appointments))
	for _, appointment := range appointments {
		items = append(items, appointmentPayload(appointment))
	}
	return items, nil
}

// ── Leads ──

type LeadInput struct {
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Email  string `json:"email"`
	Source string `json:"source"`
	Notes  string `json:"notes"`
}

// CaptureLead accepts the public tokened lead form. Enrichment and the
// owner notification run in the background.
func (s *Service) CaptureLead(ctx context.Context, profile store.BusinessProfile, input LeadInput) (map[string]any, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}

	lead := store.Lead{
		ID:      util.NewID("lead"),
		OwnerID: profile.OwnerID,
		Name:    name,
		Phone:   inbox.NormalizePhone(input.Phone),
		Email:   strings.TrimSpace(strings.ToLower(input.Email)),
		Source:  firstNonBlank(strings.TrimSpace(input.Source), "web"),
		Notes:   strings.TrimSpace(input.Notes),
	}
	if err := s.store.InsertLead(ctx, lead); err != nil {
		return nil, err
	}

	go s.enrichLead(lead)
	go s.notifyLead(profile, lead)

	return map[string]any{"ok": true, "id": lead.ID}, nil
}

func (s *Service) ListOwnerLeads(ctx context.Context, session Session, limit int) ([]map[string]any, error) {
	if err := s.requireService(ctx, session.UserID, "booking"); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	leads, err := s.store.ListLeads(ctx, session.UserID, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(leads))
	for _, lead := range leads {
		items = append(items, map[string]any{
			"id":              lead.ID,
			"name":            lead.Name,
			"phone":           lead.Phone,
			"email":           lead.Email,
			"source":          lead.Source,
			"notes":           lead.Notes,
			"enrichedCompany": lead.EnrichedCompany,
			"createdAt":       lead.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return items, nil
}

// enrichLead derives the lead's company from a business email domain.
func (s *Service) enrichLead(lead store.Lead) {
	at := strings.LastIndex(lead.Email, "@")
	if at < 0 {
		return
	}
	domain := lead.Email[at+1:]
	switch domain {
	case "gmail.com", "yahoo.com", "hotmail.com", "outlook.com", "icloud.com", "aol.com":
		return
	}
	company := strings.TrimSuffix(domain, ".com")
	if dot := strings.Index(company, "."); dot > 0 {
		company = company[:dot]
	}
	if company == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.store.UpdateLeadEnrichment(ctx, lead.ID, company); err != nil {
		log.Printf(`{"event":"lead_enrich_failed","lead_id":"%s","error":"%s"}`, lead.ID, err)
	}
}

func (s *Service) notifyLead(profile store.BusinessProfile, lead store.Lead) {
	if !s.SMTPConfigured() || profile.Email == "" {
		return
	}
	body := "New lead for " + profile.Name + ":\n\n" +
		"Name: " + lead.Name + "\n" +
		"Phone: " + lead.Phone + "\n" +
		"Email: " + lead.Email + "\n" +
		"Source: " + lead.Source + "\n"
	if err := s.email.SendEmail([]string{profile.Email}, "New lead: "+lead.Name, body); err != nil {
		log.Printf(`{"event":"lead_notify_failed","lead_id":"%s","error":"%s"}`, lead.ID, err)
	}
}

func closerPayload(closer store.Closer) map[string]any {
	return map[string]any{
		"id":        closer.ID,
		"name":      closer.Name,
		"email":     closer.Email,
		"workStart": closer.WorkStart,
		"workEnd":   closer.WorkEnd,
		"active":    closer.Active,
	}
}

func appointmentPayload(appointment store.Appointment) map[string]any {
	return map[string]any{
		"id":           appointment.ID,
		"closerId":     appointment.CloserID,
		"contactName":  appointment.ContactName,
		"contactPhone": appointment.ContactPhone,
		"notes":        appointment.Notes,
		"startsAt":     appointment.StartsAt.UTC().Format(time.RFC3339),
		"endsAt":       appointment.EndsAt.UTC().Format(time.RFC3339),
	}
}
