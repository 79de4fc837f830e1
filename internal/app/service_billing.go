package app

import (
	"context"
	"net/http"
	"time"

	"homebase/api/internal/export"
	"homebase/api/internal/search"
)

func (s *Service) CreditSummary(ctx context.Context, session Session) (map[string]any, error) {
	balance, err := s.store.CreditBalance(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListCreditEntries(ctx, session.UserID, 50)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		items = append(items, map[string]any{
			"id":        entry.ID,
			"delta":     entry.Delta,
			"reason":    entry.Reason,
			"ref":       entry.Ref,
			"createdAt": entry.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return map[string]any{
		"balance": balance,
		"entries": items,
	}, nil
}

// GrantOwnerCredits appends a grant to the owner's ledger. Exposed through
// the cron-token-guarded admin route.
func (s *Service) GrantOwnerCredits(ctx context.Context, ownerID string, amount int, reason, ref string) (map[string]any, error) {
	if amount <= 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "amount must be positive", nil)
	}
	if reason == "" {
		reason = "grant"
	}
	if err := s.store.GrantCredits(ctx, ownerID, amount, reason, ref); err != nil {
		return nil, err
	}
	balance, err := s.store.CreditBalance(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"ownerId": ownerID, "balance": balance}, nil
}

func (s *Service) CreditReport(ctx context.Context, session Session, from, to time.Time) (map[string]any, error) {
	from, to = reportPeriod(from, to)
	rows, err := s.store.CreditReport(ctx, session.UserID, from, to)
	if err != nil {
		return nil, err
	}
	balance, err := s.store.CreditBalance(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		items = append(items, map[string]any{
			"reason": row.Reason,
			"count":  row.Count,
			"total":  row.Total,
		})
	}
	return map[string]any{
		"from":    from.UTC().Format(time.RFC3339),
		"to":      to.UTC().Format(time.RFC3339),
		"balance": balance,
		"rows":    items,
	}, nil
}

// ExportCreditReport renders the period report as a PDF.
func (s *Service) ExportCreditReport(ctx context.Context, session Session, from, to time.Time) (*export.Result, error) {
	from, to = reportPeriod(from, to)
	result, err := s.export.Export(ctx, export.Request{
		OwnerID: session.UserID,
		From:    from,
		To:      to,
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SearchAll queries inbox messages and blog posts scoped to the owner.
func (s *Service) SearchAll(ctx context.Context, session Session, text, filterType string, limit, offset int) (map[string]any, error) {
	response := s.search.Search(search.Query{
		Text:       text,
		OwnerID:    session.UserID,
		FilterType: search.ResultType(filterType),
		Limit:      limit,
		Offset:     offset,
	})

	items := make([]map[string]any, 0, len(response.Results))
	for _, result := range response.Results {
		item := map[string]any{
			"type":    string(result.Type),
			"id":      result.ID,
			"title":   result.Title,
			"snippet": result.Snippet,
		}
		if result.ThreadID != "" {
			item["threadId"] = result.ThreadID
		}
		if result.SiteID != "" {
			item["siteId"] = result.SiteID
		}
		items = append(items, item)
	}
	return map[string]any{
		"results": items,
		"total":   response.Total,
		"query":   response.Query,
	}, nil
}

func reportPeriod(from, to time.Time) (time.Time, time.Time) {
	now := time.Now().UTC()
	if to.IsZero() {
		to = now
	}
	if from.IsZero() {
		from = to.AddDate(0, -1, 0)
	}
	return from, to
}
