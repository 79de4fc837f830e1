// Package search provides full-text search over inbox messages and blog
// posts, backed by Meilisearch with a PostgreSQL FTS fallback.
package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultMessage ResultType = "message"
	ResultPost    ResultType = "post"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type     ResultType `json:"type"`
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Snippet  string     `json:"snippet"`
	ThreadID string     `json:"threadId,omitempty"`
	SiteID   string     `json:"siteId,omitempty"`
	OwnerID  string     `json:"-"`
}

// Query describes a search request. OwnerID is always set; tenants never
// see each other's results.
type Query struct {
	Text       string
	OwnerID    string
	FilterType ResultType // empty = all types
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// MessageRecord is the data we index for an inbox message.
type MessageRecord struct {
	ID       string `json:"id"`
	OwnerID  string `json:"ownerId"`
	ThreadID string `json:"threadId"`
	Peer     string `json:"peer"`
	Channel  string `json:"channel"`
	Body     string `json:"body"`
}

// PostRecord is the data we index for a blog post.
type PostRecord struct {
	ID      string `json:"id"`
	OwnerID string `json:"ownerId"`
	SiteID  string `json:"siteId"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	Status  string `json:"status"`
}
