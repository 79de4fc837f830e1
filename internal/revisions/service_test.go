package revisions

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestSiteRepoLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	if err := svc.EnsureSiteRepo("site-1", "Avery"); err != nil {
		t.Fatalf("EnsureSiteRepo() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "site-1")); err != nil {
		t.Fatalf("repo directory missing: %v", err)
	}

	// Idempotent
	if err := svc.EnsureSiteRepo("site-1", "Avery"); err != nil {
		t.Fatalf("EnsureSiteRepo() second call error = %v", err)
	}

	content := PostContent{
		Slug:   "winter-pipes",
		Title:  "Protecting pipes in winter",
		Body:   "<p>Insulate everything.</p>",
		Status: "published",
	}
	commit, err := svc.CommitPost("site-1", "post-1", content, "Avery", "Publish winter pipes")
	if err != nil {
		t.Fatalf("CommitPost() error = %v", err)
	}
	if commit.Hash == "" {
		t.Fatal("expected commit hash")
	}

	updated := content
	updated.Body = "<p>Insulate everything. Drain outdoor taps.</p>"
	second, err := svc.CommitPost("site-1", "post-1", updated, "Avery", "Expand winter pipes")
	if err != nil {
		t.Fatalf("CommitPost() second error = %v", err)
	}

	history, err := svc.PostHistory("site-1", "post-1", 10)
	if err != nil {
		t.Fatalf("PostHistory() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	if history[0].Hash != second.Hash {
		t.Errorf("expected newest commit first, got %s", history[0].Hash)
	}

	old, err := svc.GetPostAtCommit("site-1", "post-1", commit.Hash)
	if err != nil {
		t.Fatalf("GetPostAtCommit() error = %v", err)
	}
	if old.Body != content.Body {
		t.Errorf("expected original body at first commit, got %q", old.Body)
	}

	head, err := svc.GetPostAtCommit("site-1", "post-1", second.Hash)
	if err != nil {
		t.Fatalf("GetPostAtCommit() head error = %v", err)
	}
	if head.Body != updated.Body {
		t.Errorf("expected updated body at head, got %q", head.Body)
	}
}

func TestPostHistoryIsPerPost(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	if err := svc.EnsureSiteRepo("site-1", "Avery"); err != nil {
		t.Fatalf("EnsureSiteRepo() error = %v", err)
	}

	if _, err := svc.CommitPost("site-1", "post-a", PostContent{Slug: "a", Title: "A", Status: "draft"}, "Avery", "Draft A"); err != nil {
		t.Fatalf("CommitPost() error = %v", err)
	}
	if _, err := svc.CommitPost("site-1", "post-b", PostContent{Slug: "b", Title: "B", Status: "draft"}, "Avery", "Draft B"); err != nil {
		t.Fatalf("CommitPost() error = %v", err)
	}

	history, err := svc.PostHistory("site-1", "post-a", 10)
	if err != nil {
		t.Fatalf("PostHistory() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 entry for post-a, got %d", len(history))
	}
	if !strings.Contains(history[0].Message, "Draft A") {
		t.Errorf("unexpected commit message %q", history[0].Message)
	}
}

func TestConcurrentCommitsSameSite(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	if err := svc.EnsureSiteRepo("site-1", "Avery"); err != nil {
		t.Fatalf("EnsureSiteRepo() error = %v", err)
	}

	const writers = 12
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			content := PostContent{
				Slug:   "shared",
				Title:  fmt.Sprintf("Revision %02d", idx),
				Status: "draft",
			}
			if _, err := svc.CommitPost("site-1", "post-1", content, "Avery", fmt.Sprintf("Commit %02d", idx)); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			t.Fatalf("CommitPost() concurrent error = %v", err)
		}
	}

	history, err := svc.PostHistory("site-1", "post-1", 100)
	if err != nil {
		t.Fatalf("PostHistory() error = %v", err)
	}
	if len(history) != writers {
		t.Fatalf("expected %d commits, got %d", writers, len(history))
	}
}
