package app

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"homebase/api/internal/revisions"
	"homebase/api/internal/search"
	"homebase/api/internal/store"
	"homebase/api/internal/util"
)

const aiGenerationCreditCost = 5

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ── Blog sites ──

func (s *Service) CreateBlogSite(ctx context.Context, session Session, slug, title, description string) (map[string]any, error) {
	if err := s.requireService(ctx, session.UserID, "blogs"); err != nil {
		return nil, err
	}
	slug = strings.TrimSpace(strings.ToLower(slug))
	title = strings.TrimSpace(title)
	if !slugPattern.MatchString(slug) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "slug must be lowercase letters, digits, and hyphens", nil)
	}
	if title == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}

	existing, err := s.store.ListBlogSites(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	for _, site := range existing {
		if site.Slug == slug {
			return nil, domainError(http.StatusConflict, "SLUG_EXISTS", "A site with this slug already exists", nil)
		}
	}

	site := store.BlogSite{
		ID:          util.NewID("site"),
		OwnerID:     session.UserID,
		Slug:        slug,
		Title:       title,
		Description: strings.TrimSpace(description),
	}
	if err := s.store.InsertBlogSite(ctx, site); err != nil {
		return nil, err
	}
	if err := s.revisions.EnsureSiteRepo(site.ID, session.UserName); err != nil {
		return nil, err
	}
	return sitePayload(site), nil
}

func (s *Service) ListSites(ctx context.Context, session Session) ([]map[string]any, error) {
	if err := s.requireService(ctx, session.UserID, "blogs"); err != nil {
		return nil, err
	}
	sites, err := s.store.ListBlogSites(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(sites))
	for _, site := range sites {
		items = append(items, sitePayload(site))
	}
	return items, nil
}

// ── Blog posts ──

type PostInput struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
	Body  string `json:"body"`
	Topic string `json:"topic"`
}

func (s *Service) CreateBlogPost(ctx context.Context, session Session, siteID string, input PostInput) (map[string]any, error) {
	if err := s.requireService(ctx, session.UserID, "blogs"); err != nil {
		return nil, err
	}
	if _, err := s.store.GetBlogSite(ctx, session.UserID, siteID); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	slug := strings.TrimSpace(strings.ToLower(input.Slug))
	if slug == "" {
		slug = slugify(title)
	}
	if !slugPattern.MatchString(slug) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "slug must be lowercase letters, digits, and hyphens", nil)
	}

	post := store.BlogPost{
		ID:        util.NewID("post"),
		SiteID:    siteID,
		OwnerID:   session.UserID,
		Slug:      slug,
		Title:     title,
		Body:      input.Body,
		Topic:     strings.TrimSpace(input.Topic),
		Status:    "draft",
		UpdatedBy: session.UserName,
	}
	if err := s.store.InsertBlogPost(ctx, post); err != nil {
		return nil, err
	}
	return postPayload(post), nil
}

// GenerateBlogPost drafts a post with the AI client. Generation debits the
// ledger up front; a generation failure refunds it.
func (s *Service) GenerateBlogPost(ctx context.Context, session Session, siteID, topic string) (map[string]any, error) {
	if err := s.requireService(ctx, session.UserID, "blogs"); err != nil {
		return nil, err
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "topic is required", nil)
	}
	if s.ai == nil || !s.ai.IsConfigured() {
		return nil, domainError(http.StatusServiceUnavailable, "AI_UNAVAILABLE", "AI generation is not configured", nil)
	}
	if _, err := s.store.GetBlogSite(ctx, session.UserID, siteID); err != nil {
		return nil, err
	}

	profile, err := s.store.GetProfileByOwner(ctx, session.UserID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	businessName := firstNonBlank(profile.Name, session.UserName)

	ref := util.NewID("gen")
	if err := s.store.DebitCredits(ctx, session.UserID, aiGenerationCreditCost, "ai_post", ref); err != nil {
		if errors.Is(err, store.ErrInsufficientCredits) {
			return nil, domainError(http.StatusPaymentRequired, "INSUFFICIENT_CREDITS", "Not enough credits for AI generation", nil)
		}
		return nil, err
	}

	generated, err := s.ai.GenerateBlogPost(ctx, businessName, profile.Industry, topic)
	if err != nil {
		if refundErr := s.store.GrantCredits(ctx, session.UserID, aiGenerationCreditCost, "ai_refund", ref); refundErr != nil {
			log.Printf(`{"event":"ai_refund_failed","ref":"%s","error":"%s"}`, ref, refundErr)
		}
		return nil, domainError(http.StatusBadGateway, "PROVIDER_ERROR", "AI generation failed", nil)
	}

	post := store.BlogPost{
		ID:        util.NewID("post"),
		SiteID:    siteID,
		OwnerID:   session.UserID,
		Slug:      slugify(generated.Title),
		Title:     generated.Title,
		Body:      generated.Body,
		Topic:     topic,
		Status:    "draft",
		UpdatedBy: session.UserName,
	}
	if err := s.store.InsertBlogPost(ctx, post); err != nil {
		return nil, err
	}
	return postPayload(post), nil
}

func (s *Service) ListPosts(ctx context.Context, session Session, siteID string) ([]map[string]any, error) {
	if err := s.requireService(ctx, session.UserID, "blogs"); err != nil {
		return nil, err
	}
	if _, err := s.store.GetBlogSite(ctx, session.UserID, siteID); err != nil {
		return nil, err
	}
	posts, err := s.store.ListBlogPosts(ctx, session.UserID, siteID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(posts))
	for _, post := range posts {
		items = append(items, postPayload(post))
	}
	return items, nil
}

func (s *Service) GetPost(ctx context.Context, session Session, postID string) (map[string]any, error) {
	if err := s.requireService(ctx, session.UserID, "blogs"); err != nil {
		return nil, err
	}
	post, err := s.store.GetBlogPost(ctx, session.UserID, postID)
	if err != nil {
		return nil, err
	}
	return postPayload(post), nil
}

func (s *Service) UpdatePost(ctx context.Context, session Session, postID string, input PostInput) (map[string]any, error) {
	if err := s.requireService(ctx, session.UserID, "blogs"); err != nil {
		return nil, err
	}
	post, err := s.store.GetBlogPost(ctx, session.UserID, postID)
	if err != nil {
		return nil, err
	}

	title := firstNonBlank(strings.TrimSpace(input.Title), post.Title)
	body := input.Body
	if body == "" {
		body = post.Body
	}
	if err := s.store.UpdateBlogPost(ctx, session.UserID, postID, title, body, post.Status, session.UserName); err != nil {
		return nil, err
	}

	updated, err := s.store.GetBlogPost(ctx, session.UserID, postID)
	if err != nil {
		return nil, err
	}
	if updated.Status == "published" {
		if _, err := s.revisions.CommitPost(updated.SiteID, updated.ID, postContent(updated), session.UserName, "Update "+updated.Slug); err != nil {
			return nil, err
		}
		s.indexPost(updated)
	}
	return postPayload(updated), nil
}

// PublishPost flips a post to published, commits the snapshot to the site's
// revision history, and indexes the body for search.
func (s *Service) PublishPost(ctx context.Context, session Session, postID string) (map[string]any, error) {
	if err := s.requireService(ctx, session.UserID, "blogs"); err != nil {
		return nil, err
	}
	post, err := s.store.GetBlogPost(ctx, session.UserID, postID)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateBlogPost(ctx, session.UserID, postID, post.Title, post.Body, "published", session.UserName); err != nil {
		return nil, err
	}
	published, err := s.store.GetBlogPost(ctx, session.UserID, postID)
	if err != nil {
		return nil, err
	}

	commit, err := s.revisions.CommitPost(published.SiteID, published.ID, postContent(published), session.UserName, "Publish "+published.Slug)
	if err != nil {
		return nil, err
	}
	s.indexPost(published)

	payload := postPayload(published)
	payload["commit"] = commitPayload(commit)
	return payload, nil
}

func (s *Service) DeletePost(ctx context.Context, session Session, postID string) error {
	if err := s.requireService(ctx, session.UserID, "blogs"); err != nil {
		return err
	}
	if _, err := s.store.GetBlogPost(ctx, session.UserID, postID); err != nil {
		return err
	}
	if err := s.store.DeleteBlogPost(ctx, session.UserID, postID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeletePost(postID)
	}
	return nil
}

// PostHistory lists the post's revision commits, newest first.
func (s *Service) PostHistory(ctx context.Context, session Session, postID string, limit int) ([]map[string]any, error) {
	if err := s.requireService(ctx, session.UserID, "blogs"); err != nil {
		return nil, err
	}
	post, err := s.store.GetBlogPost(ctx, session.UserID, postID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	commits, err := s.revisions.PostHistory(post.SiteID, post.ID, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(commits))
	for _, commit := range commits {
		items = append(items, commitPayload(commit))
	}
	return items, nil
}

// PostRevision returns the post content as of one revision commit.
func (s *Service) PostRevision(ctx context.Context, session Session, postID, hash string) (map[string]any, error) {
	if err := s.requireService(ctx, session.UserID, "blogs"); err != nil {
		return nil, err
	}
	post, err := s.store.GetBlogPost(ctx, session.UserID, postID)
	if err != nil {
		return nil, err
	}
	content, err := s.revisions.GetPostAtCommit(post.SiteID, post.ID, hash)
	if err != nil {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Revision not found", nil)
	}
	return map[string]any{
		"postId": post.ID,
		"hash":   hash,
		"slug":   content.Slug,
		"title":  content.Title,
		"body":   content.Body,
		"topic":  content.Topic,
		"status": content.Status,
	}, nil
}

// ── Newsletters + subscribers ──

func (s *Service) ListOwnerNewsletters(ctx context.Context, session Session, limit int) ([]map[string]any, error) {
	if err := s.requireService(ctx, session.UserID, "blogs"); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	newsletters, err := s.store.ListNewsletters(ctx, session.UserID, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(newsletters))
	for _, n := range newsletters {
		item := map[string]any{
			"id":             n.ID,
			"subject":        n.Subject,
			"body":           n.Body,
			"recipientCount": n.RecipientCount,
			"createdAt":      n.CreatedAt.UTC().Format(time.RFC3339),
		}
		if n.SentAt != nil {
			item["sentAt"] = n.SentAt.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Service) AddSubscriber(ctx context.Context, session Session, emailAddr, name string) (map[string]any, error) {
	if err := s.requireService(ctx, session.UserID, "blogs"); err != nil {
		return nil, err
	}
	emailAddr = strings.TrimSpace(strings.ToLower(emailAddr))
	if emailAddr == "" || !strings.Contains(emailAddr, "@") {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "a valid email is required", nil)
	}
	inserted, err := s.store.InsertSubscriber(ctx, store.Subscriber{
		ID:      util.NewID("sub"),
		OwnerID: session.UserID,
		Email:   emailAddr,
		Name:    strings.TrimSpace(name),
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"email": emailAddr, "created": inserted}, nil
}

func (s *Service) ListOwnerSubscribers(ctx context.Context, session Session) ([]map[string]any, error) {
	if err := s.requireService(ctx, session.UserID, "blogs"); err != nil {
		return nil, err
	}
	subscribers, err := s.store.ListSubscribers(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(subscribers))
	for _, sub := range subscribers {
		items = append(items, map[string]any{
			"id":    sub.ID,
			"email": sub.Email,
			"name":  sub.Name,
		})
	}
	return items, nil
}

// SendNewsletters generates and sends one newsletter per owner with blogs
// enabled. Invoked by cron; per-owner and per-recipient failures are
// logged, never fatal.
func (s *Service) SendNewsletters(ctx context.Context) (map[string]any, error) {
	owners, err := s.store.ListOwnersWithService(ctx, "blogs")
	if err != nil {
		return nil, err
	}

	sent := 0
	skipped := 0
	for _, ownerID := range owners {
		ok, err := s.sendOwnerNewsletter(ctx, ownerID)
		if err != nil {
			log.Printf(`{"event":"newsletter_failed","owner_id":"%s","error":"%s"}`, ownerID, err)
			skipped++
			continue
		}
		if ok {
			sent++
		} else {
			skipped++
		}
	}
	return map[string]any{"owners": len(owners), "sent": sent, "skipped": skipped}, nil
}

func (s *Service) sendOwnerNewsletter(ctx context.Context, ownerID string) (bool, error) {
	if s.ai == nil || !s.ai.IsConfigured() || !s.SMTPConfigured() {
		return false, nil
	}

	profile, err := s.store.GetProfileByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	subscribers, err := s.store.ListSubscribers(ctx, ownerID)
	if err != nil {
		return false, err
	}
	if len(subscribers) == 0 {
		return false, nil
	}

	since := time.Now().AddDate(0, -1, 0)
	posts, err := s.store.ListRecentPublishedPosts(ctx, ownerID, since)
	if err != nil {
		return false, err
	}
	if len(posts) == 0 {
		return false, nil
	}

	titles := make([]string, 0, len(posts))
	for _, post := range posts {
		titles = append(titles, post.Title)
	}
	generated, err := s.ai.GenerateNewsletter(ctx, profile.Name, titles)
	if err != nil {
		return false, err
	}

	delivered := 0
	for _, sub := range subscribers {
		if err := s.email.SendNewsletterEmail([]string{sub.Email}, profile.Name, generated.Subject, generated.Body); err != nil {
			log.Printf(`{"event":"newsletter_send_failed","owner_id":"%s","to":"%s","error":"%s"}`, ownerID, sub.Email, err)
			continue
		}
		delivered++
	}

	now := time.Now().UTC()
	if err := s.store.InsertNewsletter(ctx, store.Newsletter{
		ID:             util.NewID("nws"),
		OwnerID:        ownerID,
		Subject:        generated.Subject,
		Body:           generated.Body,
		RecipientCount: delivered,
		SentAt:         &now,
	}); err != nil {
		return false, err
	}
	return true, nil
}

// GenerateScheduledPosts drafts one AI post per owner with blogs enabled,
// using the profile's industry as the topic seed. Invoked by cron.
func (s *Service) GenerateScheduledPosts(ctx context.Context) (map[string]any, error) {
	if s.ai == nil || !s.ai.IsConfigured() {
		return map[string]any{"owners": 0, "generated": 0}, nil
	}

	owners, err := s.store.ListOwnersWithService(ctx, "blogs")
	if err != nil {
		return nil, err
	}

	generated := 0
	for _, ownerID := range owners {
		profile, err := s.store.GetProfileByOwner(ctx, ownerID)
		if err != nil {
			continue
		}
		sites, err := s.store.ListBlogSites(ctx, ownerID)
		if err != nil || len(sites) == 0 {
			continue
		}
		topic := firstNonBlank(profile.Industry, profile.Name)
		draft, err := s.ai.GenerateBlogPost(ctx, profile.Name, profile.Industry, "Fresh ideas for "+topic+" customers")
		if err != nil {
			log.Printf(`{"event":"scheduled_post_failed","owner_id":"%s","error":"%s"}`, ownerID, err)
			continue
		}
		post := store.BlogPost{
			ID:        util.NewID("post"),
			SiteID:    sites[0].ID,
			OwnerID:   ownerID,
			Slug:      slugify(draft.Title),
			Title:     draft.Title,
			Body:      draft.Body,
			Topic:     topic,
			Status:    "draft",
			UpdatedBy: "scheduler",
		}
		if err := s.store.InsertBlogPost(ctx, post); err != nil {
			log.Printf(`{"event":"scheduled_post_insert_failed","owner_id":"%s","error":"%s"}`, ownerID, err)
			continue
		}
		generated++
	}
	return map[string]any{"owners": len(owners), "generated": generated}, nil
}

func (s *Service) indexPost(post store.BlogPost) {
	if s.search == nil {
		return
	}
	s.search.IndexPost(search.PostRecord{
		ID:      post.ID,
		OwnerID: post.OwnerID,
		SiteID:  post.SiteID,
		Title:   post.Title,
		Body:    post.Body,
		Status:  post.Status,
	})
}

func postContent(post store.BlogPost) revisions.PostContent {
	return revisions.PostContent{
		Slug:   post.Slug,
		Title:  post.Title,
		Body:   post.Body,
		Topic:  post.Topic,
		Status: post.Status,
	}
}

func sitePayload(site store.BlogSite) map[string]any {
	return map[string]any{
		"id":          site.ID,
		"slug":        site.Slug,
		"title":       site.Title,
		"description": site.Description,
		"createdAt":   site.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func postPayload(post store.BlogPost) map[string]any {
	payload := map[string]any{
		"id":        post.ID,
		"siteId":    post.SiteID,
		"slug":      post.Slug,
		"title":     post.Title,
		"body":      post.Body,
		"topic":     post.Topic,
		"status":    post.Status,
		"updatedBy": post.UpdatedBy,
		"updatedAt": post.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if post.PublishedAt != nil {
		payload["publishedAt"] = post.PublishedAt.UTC().Format(time.RFC3339)
	}
	return payload
}

func commitPayload(commit store.CommitInfo) map[string]any {
	return map[string]any{
		"hash":      commit.Hash,
		"message":   strings.TrimSpace(commit.Message),
		"author":    commit.Author,
		"createdAt": commit.CreatedAt.UTC().Format(time.RFC3339),
	}
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = nonSlugChars.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = util.NewID("")[:12]
	}
	if len(slug) > 64 {
		slug = strings.Trim(slug[:64], "-")
	}
	return slug
}
