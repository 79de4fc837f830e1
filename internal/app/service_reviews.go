package app

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"homebase/api/internal/inbox"
	"homebase/api/internal/store"
	"homebase/api/internal/util"

	"github.com/google/uuid"
)

type ReviewRequestInput struct {
	ContactName string `json:"contactName"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
}

// CreateReviewRequest records the request and fans out delivery over SMS
// and email. Delivery is best-effort; the request row is the durable fact.
func (s *Service) CreateReviewRequest(ctx context.Context, session Session, input ReviewRequestInput) (map[string]any, error) {
	if err := s.requireService(ctx, session.UserID, "reviews"); err != nil {
		return nil, err
	}
	contactName := strings.TrimSpace(input.ContactName)
	phone := strings.TrimSpace(input.Phone)
	emailAddr := strings.TrimSpace(strings.ToLower(input.Email))
	if contactName == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "contactName is required", nil)
	}
	if phone == "" && emailAddr == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "phone or email is required", nil)
	}

	profile, err := s.store.GetProfileByOwner(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	request := store.ReviewRequest{
		ID:          util.NewID("rvq"),
		OwnerID:     session.UserID,
		ContactName: contactName,
		Phone:       phone,
		Email:       emailAddr,
		Token:       uuid.NewString(),
		Status:      "pending",
	}
	if err := s.store.InsertReviewRequest(ctx, request); err != nil {
		return nil, err
	}

	reviewURL := s.cfg.PublicBaseURL + "/r/" + request.Token
	go s.deliverReviewRequest(request, profile.Name, reviewURL)

	return reviewRequestPayload(request), nil
}

func (s *Service) deliverReviewRequest(request store.ReviewRequest, businessName, reviewURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	delivered := false
	if request.Phone != "" && s.sms != nil && s.sms.IsConfigured() {
		body := "Hi " + request.ContactName + ", thanks for choosing " + businessName + "! We'd love your feedback: " + reviewURL
		if _, err := s.sms.SendSMS(ctx, inbox.NormalizePhone(request.Phone), body); err != nil {
			log.Printf(`{"event":"review_sms_failed","request_id":"%s","error":"%s"}`, request.ID, err)
		} else {
			delivered = true
		}
	}
	if request.Email != "" && s.SMTPConfigured() {
		if err := s.email.SendReviewRequestEmail(request.Email, request.ContactName, businessName, reviewURL); err != nil {
			log.Printf(`{"event":"review_email_failed","request_id":"%s","error":"%s"}`, request.ID, err)
		} else {
			delivered = true
		}
	}

	if delivered {
		if err := s.store.UpdateReviewRequestStatus(ctx, request.ID, "sent"); err != nil {
			log.Printf(`{"event":"review_status_failed","request_id":"%s","error":"%s"}`, request.ID, err)
		}
	}
}

func (s *Service) ListOwnerReviewRequests(ctx context.Context, session Session, limit int) ([]map[string]any, error) {
	if err := s.requireService(ctx, session.UserID, "reviews"); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	requests, err := s.store.ListReviewRequests(ctx, session.UserID, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(requests))
	for _, request := range requests {
		items = append(items, reviewRequestPayload(request))
	}
	return items, nil
}

// SubmitReview accepts the public tokened review form. The token resolves
// the tenant; no session is involved.
func (s *Service) SubmitReview(ctx context.Context, token string, rating int, comment, author string) (map[string]any, error) {
	request, err := s.store.GetReviewRequestByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if request.Status == "completed" {
		return nil, domainError(http.StatusConflict, "ALREADY_REVIEWED", "This review was already submitted", nil)
	}
	if rating < 1 || rating > 5 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "rating must be between 1 and 5", nil)
	}

	requestID := request.ID
	review := store.Review{
		ID:        util.NewID("rev"),
		OwnerID:   request.OwnerID,
		RequestID: &requestID,
		Rating:    rating,
		Comment:   strings.TrimSpace(comment),
		Author:    firstNonBlank(strings.TrimSpace(author), request.ContactName),
	}
	if err := s.store.InsertReview(ctx, review); err != nil {
		return nil, err
	}
	if err := s.store.UpdateReviewRequestStatus(ctx, request.ID, "completed"); err != nil {
		return nil, err
	}

	return map[string]any{"ok": true, "rating": rating}, nil
}

func (s *Service) ListOwnerReviews(ctx context.Context, session Session, limit int) (map[string]any, error) {
	if err := s.requireService(ctx, session.UserID, "reviews"); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	reviews, err := s.store.ListReviews(ctx, session.UserID, limit)
	if err != nil {
		return nil, err
	}
	count, average, err := s.store.ReviewSummary(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(reviews))
	for _, review := range reviews {
		items = append(items, map[string]any{
			"id":        review.ID,
			"rating":    review.Rating,
			"comment":   review.Comment,
			"author":    review.Author,
			"createdAt": review.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return map[string]any{
		"reviews": items,
		"count":   count,
		"average": average,
	}, nil
}

func reviewRequestPayload(request store.ReviewRequest) map[string]any {
	return map[string]any{
		"id":          request.ID,
		"contactName": request.ContactName,
		"phone":       request.Phone,
		"email":       request.Email,
		"status":      request.Status,
		"createdAt":   request.CreatedAt.UTC().Format(time.RFC3339),
	}
}
