package app

import (
	"context"
	"io"
	"net/http"
	"time"

	"homebase/api/internal/ai"
	"homebase/api/internal/auth"
	"homebase/api/internal/authpw"
	"homebase/api/internal/config"
	"homebase/api/internal/export"
	"homebase/api/internal/revisions"
	"homebase/api/internal/search"
	"homebase/api/internal/sms"
	"homebase/api/internal/store"
	"homebase/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

// ServiceSlugs are the toggleable portal features.
var ServiceSlugs = []string{"inbox", "blogs", "reviews", "receptionist", "media", "booking"}

var serviceSlugSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(ServiceSlugs))
	for _, slug := range ServiceSlugs {
		set[slug] = struct{}{}
	}
	return set
}()

type dataStore interface {
	GetUserByID(context.Context, string) (store.User, error)
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)
	GetProfileByOwner(context.Context, string) (store.BusinessProfile, error)
	GetProfileByWebhookToken(context.Context, string) (store.BusinessProfile, error)
	GetProfileByCaptureToken(context.Context, string) (store.BusinessProfile, error)
	UpsertProfile(context.Context, store.BusinessProfile) (store.BusinessProfile, error)
	ListServiceSetups(context.Context, string) ([]store.ServiceSetup, error)
	SetServiceEnabled(context.Context, string, string, bool) error
	IsServiceEnabled(context.Context, string, string) (bool, error)
	ListOwnersWithService(context.Context, string) ([]string, error)
	UpsertThread(context.Context, store.InboxThread) (store.InboxThread, error)
	GetThread(context.Context, string, string) (store.InboxThread, error)
	ListThreads(context.Context, string, int) ([]store.InboxThread, error)
	MarkThreadRead(context.Context, string, string) error
	InsertMessage(context.Context, store.InboxMessage) (bool, error)
	ListMessages(context.Context, string, string, int) ([]store.InboxMessage, error)
	UpdateMessageStatus(context.Context, string, string, string) error
	InsertAttachment(context.Context, store.InboxAttachment) error
	ListAttachments(context.Context, string) ([]store.InboxAttachment, error)
	ThreadExists(context.Context, string, string) (bool, error)
	InsertMediaFolder(context.Context, store.MediaFolder) error
	GetMediaFolder(context.Context, string, string) (store.MediaFolder, error)
	ListMediaFolders(context.Context, string) ([]store.MediaFolder, error)
	DeleteMediaFolder(context.Context, string, string) (int, error)
	InsertMediaItem(context.Context, store.MediaItem) error
	GetMediaItem(context.Context, string, string) (store.MediaItem, error)
	ListMediaItems(context.Context, string, string) ([]store.MediaItem, error)
	DeleteMediaItem(context.Context, string, string) (store.MediaItem, error)
	InsertBlogSite(context.Context, store.BlogSite) error
	GetBlogSite(context.Context, string, string) (store.BlogSite, error)
	ListBlogSites(context.Context, string) ([]store.BlogSite, error)
	InsertBlogPost(context.Context, store.BlogPost) error
	GetBlogPost(context.Context, string, string) (store.BlogPost, error)
	ListBlogPosts(context.Context, string, string) ([]store.BlogPost, error)
	ListRecentPublishedPosts(context.Context, string, time.Time) ([]store.BlogPost, error)
	UpdateBlogPost(context.Context, string, string, string, string, string, string) error
	DeleteBlogPost(context.Context, string, string) error
	InsertNewsletter(context.Context, store.Newsletter) error
	ListNewsletters(context.Context, string, int) ([]store.Newsletter, error)
	InsertSubscriber(context.Context, store.Subscriber) (bool, error)
	ListSubscribers(context.Context, string) ([]store.Subscriber, error)
	InsertReviewRequest(context.Context, store.ReviewRequest) error
	GetReviewRequestByToken(context.Context, string) (store.ReviewRequest, error)
	UpdateReviewRequestStatus(context.Context, string, string) error
	ListReviewRequests(context.Context, string, int) ([]store.ReviewRequest, error)
	InsertReview(context.Context, store.Review) error
	ListReviews(context.Context, string, int) ([]store.Review, error)
	ReviewSummary(context.Context, string) (int, float64, error)
	InsertCloser(context.Context, store.Closer) error
	ListClosers(context.Context, string, bool) ([]store.Closer, error)
	SetCloserActive(context.Context, string, string, bool) error
	ListAppointmentsForDay(context.Context, string, time.Time) ([]store.Appointment, error)
	InsertAppointment(context.Context, store.Appointment) (bool, error)
	ListAppointments(context.Context, string, time.Time, time.Time) ([]store.Appointment, error)
	InsertLead(context.Context, store.Lead) error
	UpdateLeadEnrichment(context.Context, string, string) error
	ListLeads(context.Context, string, int) ([]store.Lead, error)
	CreditBalance(context.Context, string) (int, error)
	GrantCredits(context.Context, string, int, string, string) error
	DebitCredits(context.Context, string, int, string, string) error
	ListCreditEntries(context.Context, string, int) ([]store.CreditEntry, error)
	CreditReport(context.Context, string, time.Time, time.Time) ([]store.CreditReportRow, error)
	UpsertCallRecord(context.Context, store.CallRecord) error
	GetCallBySID(context.Context, string) (store.CallRecord, error)
	ListCalls(context.Context, string, int) ([]store.CallRecord, error)
	ListOpenCalls(context.Context, int) ([]store.CallRecord, error)
	FinalizeCall(context.Context, string, string, int) (bool, error)
	Ping(ctx context.Context) error
}

// refreshStore holds refresh sessions. Redis in production, the Postgres
// fallback when Redis is not configured.
type refreshStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type mailer interface {
	IsConfigured() bool
	SendEmail(to []string, subject, body string) error
	SendVerificationEmail(to, userName, verificationURL string) error
	SendPasswordResetEmail(to, userName, resetURL string) error
	SendReviewRequestEmail(to, contactName, businessName, reviewURL string) error
	SendNewsletterEmail(to []string, businessName, subject, htmlBody string) error
}

type smsSender interface {
	IsConfigured() bool
	SendSMS(ctx context.Context, to, body string) (sms.Message, error)
	GetCall(ctx context.Context, callSID string) (sms.Call, error)
}

type textGenerator interface {
	IsConfigured() bool
	ReceptionistReply(ctx context.Context, businessName, greeting, callerStatement string) (string, error)
	GenerateBlogPost(ctx context.Context, businessName, industry, topic string) (ai.GeneratedPost, error)
	GenerateNewsletter(ctx context.Context, businessName string, postTitles []string) (ai.GeneratedNewsletter, error)
}

type searchIndex interface {
	Search(q search.Query) search.Response
	IndexMessage(m search.MessageRecord)
	IndexPost(p search.PostRecord)
	DeletePost(id string)
}

type objectStore interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}

type revisionStore interface {
	EnsureSiteRepo(siteID, author string) error
	CommitPost(siteID, postID string, content revisions.PostContent, author, message string) (store.CommitInfo, error)
	PostHistory(siteID, postID string, limit int) ([]store.CommitInfo, error)
	GetPostAtCommit(siteID, postID, hash string) (revisions.PostContent, error)
}

type reportExporter interface {
	Export(ctx context.Context, req export.Request) (*export.Result, error)
}

// Dependencies carries the integrations the service orchestrates.
type Dependencies struct {
	Sessions  refreshStore
	Auth      *authpw.Service
	Email     mailer
	SMS       smsSender
	AI        textGenerator
	Search    searchIndex
	Media     objectStore
	Revisions revisionStore
	Export    reportExporter
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  refreshStore
	authpw    *authpw.Service
	email     mailer
	sms       smsSender
	ai        textGenerator
	search    searchIndex
	media     objectStore
	revisions revisionStore
	export    reportExporter
}

func New(cfg config.Config, dataStore *store.PostgresStore, deps Dependencies) *Service {
	return &Service{
		cfg:       cfg,
		store:     dataStore,
		sessions:  deps.Sessions,
		authpw:    deps.Auth,
		email:     deps.Email,
		sms:       deps.SMS,
		ai:        deps.AI,
		search:    deps.Search,
		media:     deps.Media,
		revisions: deps.Revisions,
		export:    deps.Export,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

func (s *Service) SMTPConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

func (s *Service) CronToken() string {
	return s.cfg.CronToken
}

func (s *Service) PublicBaseURL() string {
	return s.cfg.PublicBaseURL
}

// CreateSession issues an access and refresh token pair for a verified user.
func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	found, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, found.ID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		Role: user.Role,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// requireService gates feature operations on the owner's service setup.
func (s *Service) requireService(ctx context.Context, ownerID, slug string) error {
	enabled, err := s.store.IsServiceEnabled(ctx, ownerID, slug)
	if err != nil {
		return err
	}
	if !enabled {
		return domainError(http.StatusForbidden, "SERVICE_DISABLED", "The "+slug+" service is not enabled", nil)
	}
	return nil
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
