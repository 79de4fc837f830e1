package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexMessage indexes an inbox message (fire-and-forget to Meilisearch).
func (s *Service) IndexMessage(m MessageRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexMessage(m); err != nil {
			log.Printf("search: index message %s: %v", m.ID, err)
		}
	}()
}

// IndexPost indexes a blog post (fire-and-forget to Meilisearch).
func (s *Service) IndexPost(p PostRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexPost(p); err != nil {
			log.Printf("search: index post %s: %v", p.ID, err)
		}
	}()
}

// DeletePost removes a blog post from the search index (fire-and-forget).
func (s *Service) DeletePost(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeletePost(id); err != nil {
			log.Printf("search: delete post %s: %v", id, err)
		}
	}()
}

// ReindexAll pushes the given records to Meilisearch in bulk.
func (s *Service) ReindexAll(messages []MessageRecord, posts []PostRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}

	if len(messages) > 0 {
		if err := s.meili.IndexMessages(messages); err != nil {
			log.Printf("search: reindex messages: %v", err)
		}
	}
	if len(posts) > 0 {
		if err := s.meili.IndexPosts(posts); err != nil {
			log.Printf("search: reindex posts: %v", err)
		}
	}
}

// ReindexAllFromPG reindexes all searchable entities from PostgreSQL into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	messages, posts, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	s.ReindexAll(messages, posts)
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
