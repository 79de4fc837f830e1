// Package revisions keeps blog post content in per-site git repositories.
// Every publish commits the post file to main, so post history is the
// linear commit log filtered by the post's path.
package revisions

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"homebase/api/internal/store"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// PostContent is the snapshot committed for one post.
type PostContent struct {
	Slug   string `json:"slug"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	Topic  string `json:"topic,omitempty"`
	Status string `json:"status"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// EnsureSiteRepo initializes the repository for a blog site. Safe to call
// repeatedly; an existing repo is left untouched.
func (s *Service) EnsureSiteRepo(siteID, author string) error {
	lock := s.siteLock(siteID)
	lock.Lock()
	defer lock.Unlock()

	path := s.repoPath(siteID)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat repo path: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create repo dir: %w", err)
	}

	repo, err := git.PlainInit(path, false)
	if err != nil {
		return fmt.Errorf("init repo: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	if err := os.WriteFile(filepath.Join(path, ".gitkeep"), nil, 0o644); err != nil {
		return fmt.Errorf("write repo marker: %w", err)
	}
	if _, err := worktree.Add(".gitkeep"); err != nil {
		return fmt.Errorf("git add repo marker: %w", err)
	}
	hash, err := worktree.Commit("Initialize site", &git.CommitOptions{
		Author: signature(author),
	})
	if err != nil {
		return fmt.Errorf("commit initial content: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("main"), hash)); err != nil {
		return fmt.Errorf("set main branch ref: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return fmt.Errorf("set HEAD to main: %w", err)
	}
	return nil
}

// CommitPost writes the post snapshot and commits it to main.
func (s *Service) CommitPost(siteID, postID string, content PostContent, author, message string) (store.CommitInfo, error) {
	lock := s.siteLock(siteID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(siteID))
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("open repo: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("open worktree: %w", err)
	}

	payload, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("marshal post content: %w", err)
	}

	repoRoot := worktree.Filesystem.Root()
	if err := os.MkdirAll(filepath.Join(repoRoot, "posts"), 0o755); err != nil {
		return store.CommitInfo{}, fmt.Errorf("create posts dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(repoRoot, postFile(postID)), append(payload, '\n'), 0o644); err != nil {
		return store.CommitInfo{}, fmt.Errorf("write post file: %w", err)
	}

	if _, err := worktree.Add(postFile(postID)); err != nil {
		return store.CommitInfo{}, fmt.Errorf("git add post: %w", err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: signature(author),
	})
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("commit post: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommitInfo(commitObj), nil
}

// PostHistory lists the commits that touched one post, newest first.
func (s *Service) PostHistory(siteID, postID string, limit int) ([]store.CommitInfo, error) {
	lock := s.siteLock(siteID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(siteID))
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	if err != nil {
		return nil, fmt.Errorf("resolve main: %w", err)
	}

	fileName := postFile(postID)
	iter, err := repo.Log(&git.LogOptions{
		From:     ref.Hash(),
		FileName: &fileName,
	})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]store.CommitInfo, 0, limit)
	count := 0
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommitInfo(commitObj))
		count++
		if limit > 0 && count >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// GetPostAtCommit reads a post snapshot as of the given commit hash.
// Abbreviated hashes from PostHistory resolve too.
func (s *Service) GetPostAtCommit(siteID, postID, hash string) (PostContent, error) {
	lock := s.siteLock(siteID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(siteID))
	if err != nil {
		return PostContent{}, fmt.Errorf("open repo: %w", err)
	}

	resolvedHash, err := resolveHash(repo, hash)
	if err != nil {
		return PostContent{}, err
	}
	commitObj, err := repo.CommitObject(resolvedHash)
	if err != nil {
		return PostContent{}, fmt.Errorf("read commit %s: %w", hash, err)
	}

	file, err := commitObj.File(postFile(postID))
	if err != nil {
		return PostContent{}, fmt.Errorf("load post from commit: %w", err)
	}
	reader, err := file.Reader()
	if err != nil {
		return PostContent{}, fmt.Errorf("open post reader: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return PostContent{}, fmt.Errorf("read post bytes: %w", err)
	}

	var content PostContent
	if err := json.Unmarshal(data, &content); err != nil {
		return PostContent{}, fmt.Errorf("decode post content: %w", err)
	}
	return content, nil
}

func (s *Service) repoPath(siteID string) string {
	return filepath.Join(s.baseDir, siteID)
}

func (s *Service) siteLock(siteID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[siteID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[siteID] = lock
	return lock
}

func postFile(postID string) string {
	return filepath.Join("posts", postID+".json")
}

func signature(author string) *object.Signature {
	return &object.Signature{
		Name:  author,
		Email: fmt.Sprintf("%s@local.homebase.dev", sanitizeEmail(author)),
		When:  time.Now(),
	}
}

func toCommitInfo(commitObj *object.Commit) store.CommitInfo {
	return store.CommitInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	runes := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			runes = append(runes, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			runes = append(runes, '.')
		}
	}
	if len(runes) == 0 {
		return "user"
	}
	return string(runes)
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}
