package store

import "time"

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	Role                  string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// BusinessProfile is the at-most-one-per-owner tenant record. WebhookToken
// scopes provider callbacks to a tenant; CaptureToken scopes the public
// review/lead forms.
type BusinessProfile struct {
	ID            string
	OwnerID       string
	Name          string
	Industry      string
	Phone         string
	Email         string
	Website       string
	Address       string
	Timezone      string
	Greeting      string
	ForwardNumber string
	BlockedNumbers []string
	WebhookToken  string
	CaptureToken  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type ServiceSetup struct {
	OwnerID   string
	Slug      string
	Enabled   bool
	UpdatedAt time.Time
}

type InboxThread struct {
	ID            string
	OwnerID       string
	ThreadKey     string
	Channel       string
	Peer          string
	PeerName      string
	Subject       string
	LastPreview   string
	UnreadCount   int
	LastMessageAt time.Time
	CreatedAt     time.Time
}

type InboxMessage struct {
	ID          string
	ThreadID    string
	OwnerID     string
	Direction   string
	Channel     string
	Peer        string
	Subject     string
	Body        string
	ProviderSID string
	Status      string
	CreatedAt   time.Time
}

type InboxAttachment struct {
	ID          string
	MessageID   string
	FileName    string
	ContentType string
	ObjectKey   string
	Size        int64
	CreatedAt   time.Time
}

type MediaFolder struct {
	ID        string
	OwnerID   string
	Name      string
	ItemCount int
	CreatedAt time.Time
}

type MediaItem struct {
	ID          string
	OwnerID     string
	FolderID    string
	FileName    string
	ContentType string
	ObjectKey   string
	Size        int64
	CreatedAt   time.Time
}

type BlogSite struct {
	ID          string
	OwnerID     string
	Slug        string
	Title       string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type BlogPost struct {
	ID          string
	SiteID      string
	OwnerID     string
	Slug        string
	Title       string
	Body        string
	Topic       string
	Status      string
	UpdatedBy   string
	PublishedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Newsletter struct {
	ID             string
	OwnerID        string
	Subject        string
	Body           string
	RecipientCount int
	SentAt         *time.Time
	CreatedAt      time.Time
}

type Subscriber struct {
	ID        string
	OwnerID   string
	Email     string
	Name      string
	CreatedAt time.Time
}

type ReviewRequest struct {
	ID          string
	OwnerID     string
	ContactName string
	Phone       string
	Email       string
	Token       string
	Status      string
	CreatedAt   time.Time
}

type Review struct {
	ID        string
	OwnerID   string
	RequestID *string
	Rating    int
	Comment   string
	Author    string
	CreatedAt time.Time
}

type Closer struct {
	ID        string
	OwnerID   string
	Name      string
	Email     string
	WorkStart string
	WorkEnd   string
	Active    bool
	CreatedAt time.Time
}

type Appointment struct {
	ID           string
	OwnerID      string
	CloserID     string
	ContactName  string
	ContactPhone string
	Notes        string
	StartsAt     time.Time
	EndsAt       time.Time
	CreatedAt    time.Time
}

type Lead struct {
	ID              string
	OwnerID         string
	Name            string
	Phone           string
	Email           string
	Source          string
	Notes           string
	EnrichedCompany string
	CreatedAt       time.Time
}

// CreditEntry is one row of the append-only credit ledger. Balance is the
// sum of Delta across an owner's rows.
type CreditEntry struct {
	ID        int64
	OwnerID   string
	Delta     int
	Reason    string
	Ref       string
	CreatedAt time.Time
}

type CallRecord struct {
	ID              string
	OwnerID         string
	CallSID         string
	FromNumber      string
	ToNumber        string
	Mode            string
	Status          string
	DurationSeconds int
	StartedAt       time.Time
	EndedAt         *time.Time
	UpdatedAt       time.Time
}

type CommitInfo struct {
	Hash      string
	Message   string
	Author    string
	CreatedAt time.Time
}
