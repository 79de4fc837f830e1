package export

import (
	"context"
	"fmt"
	"time"

	"homebase/api/internal/store"
)

// ReportStore defines the data access the report builder needs.
type ReportStore interface {
	GetProfileByOwner(ctx context.Context, ownerID string) (store.BusinessProfile, error)
	CreditBalance(ctx context.Context, ownerID string) (int, error)
	CreditReport(ctx context.Context, ownerID string, from, to time.Time) ([]store.CreditReportRow, error)
	ListCreditEntries(ctx context.Context, ownerID string, limit int) ([]store.CreditEntry, error)
}

// Service builds credit report PDFs.
type Service struct {
	store ReportStore
}

// NewService creates a new export service.
func NewService(store ReportStore) *Service {
	return &Service{store: store}
}

// Export renders the owner's credit report for the period as a PDF.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	profile, err := s.store.GetProfileByOwner(ctx, req.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	balance, err := s.store.CreditBalance(ctx, req.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("credit balance: %w", err)
	}

	rows, err := s.store.CreditReport(ctx, req.OwnerID, req.From, req.To)
	if err != nil {
		return nil, fmt.Errorf("credit report: %w", err)
	}

	entries, err := s.store.ListCreditEntries(ctx, req.OwnerID, 50)
	if err != nil {
		return nil, fmt.Errorf("list credit entries: %w", err)
	}

	data := TemplateData{
		BusinessName: profile.Name,
		From:         req.From,
		To:           req.To,
		Balance:      balance,
		GeneratedAt:  time.Now().UTC(),
	}
	for _, row := range rows {
		data.Rows = append(data.Rows, TemplateRow{Reason: row.Reason, Count: row.Count, Total: row.Total})
	}
	for _, entry := range entries {
		if entry.CreatedAt.Before(req.From) || !entry.CreatedAt.Before(req.To) {
			continue
		}
		data.Entries = append(data.Entries, TemplateEntry{
			When:   entry.CreatedAt,
			Delta:  entry.Delta,
			Reason: entry.Reason,
			Ref:    entry.Ref,
		})
	}

	html, err := RenderReportHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	title := fmt.Sprintf("%s credit report %s", profile.Name, req.From.Format("2006-01"))
	return exportPDF(html, title)
}
