package repository

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/maheshrc27/genposting/internal/models"
)

func newPost(id string, at time.Time) *models.ScheduledPost {
	return &models.ScheduledPost{
		ID:              id,
		Platform:        models.PlatformInstagram,
		PlatformUserID:  "fb-1",
		AccessToken:     "token",
		Content:         "caption",
		MediaReferences: []string{"https://cdn.example.com/a.jpg"},
		Comments:        []string{"first"},
		ScheduledTime:   at,
	}
}

func TestCreateStartsPendingAndAssignsID(t *testing.T) {
	repo := NewPostRepository()
	ctx := context.Background()

	id, err := repo.Create(ctx, newPost("", time.Now().Add(time.Hour)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated id")
	}

	got, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.PostStatusPending {
		t.Fatalf("status = %q, want pending", got.Status)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("created_at not set")
	}
}

func TestCreateDuplicateIDKeepsOriginal(t *testing.T) {
	repo := NewPostRepository()
	ctx := context.Background()
	at := time.Now().Add(time.Hour)

	if _, err := repo.Create(ctx, newPost("p1", at)); err != nil {
		t.Fatal(err)
	}
	dup := newPost("p1", at)
	dup.Content = "other"
	if _, err := repo.Create(ctx, dup); !errors.Is(err, ErrPostExists) {
		t.Fatalf("err = %v, want ErrPostExists", err)
	}

	got, _ := repo.GetByID(ctx, "p1")
	if got.Content != "caption" {
		t.Fatalf("content overwritten: %q", got.Content)
	}
}

func TestGetMissing(t *testing.T) {
	repo := NewPostRepository()
	if _, err := repo.GetByID(context.Background(), "nope"); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("err = %v, want ErrPostNotFound", err)
	}
}

func TestListDueBoundary(t *testing.T) {
	repo := NewPostRepository()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	repo.Create(ctx, newPost("past", now.Add(-time.Second)))
	repo.Create(ctx, newPost("exact", now))
	repo.Create(ctx, newPost("future", now.Add(time.Second)))

	due, err := repo.ListDue(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	ids := map[string]bool{}
	for _, p := range due {
		ids[p.ID] = true
	}
	if !ids["past"] || !ids["exact"] || ids["future"] {
		t.Fatalf("unexpected due set: %v", ids)
	}

	due, _ = repo.ListDue(ctx, now.Add(time.Second))
	if len(due) != 3 {
		t.Fatalf("expected future post to become due, got %d", len(due))
	}
}

func TestListDueSkipsFinished(t *testing.T) {
	repo := NewPostRepository()
	ctx := context.Background()
	now := time.Now()

	repo.Create(ctx, newPost("a", now.Add(-time.Minute)))
	repo.Create(ctx, newPost("b", now.Add(-time.Minute)))
	if err := repo.MarkPublished(ctx, "a", "M1"); err != nil {
		t.Fatal(err)
	}
	if err := repo.MarkFailed(ctx, "b", "boom"); err != nil {
		t.Fatal(err)
	}

	due, _ := repo.ListDue(ctx, now)
	if len(due) != 0 {
		t.Fatalf("expected no due posts, got %d", len(due))
	}
}

func TestListOrderedByScheduledTime(t *testing.T) {
	repo := NewPostRepository()
	ctx := context.Background()
	base := time.Now()

	repo.Create(ctx, newPost("c", base.Add(3*time.Hour)))
	repo.Create(ctx, newPost("a", base.Add(1*time.Hour)))
	repo.Create(ctx, newPost("b", base.Add(2*time.Hour)))

	posts, _ := repo.List(ctx)
	var got []string
	for _, p := range posts {
		got = append(got, p.ID)
	}
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("order = %v", got)
	}
}

func TestUpdateIsIdempotent(t *testing.T) {
	repo := NewPostRepository().(*postRepository)
	ctx := context.Background()
	fixed := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	repo.Create(ctx, newPost("p1", fixed.Add(time.Hour)))
	edit, _ := repo.GetByID(ctx, "p1")
	edit.Content = "edited"
	edit.Comments = []string{"x", "y"}

	if err := repo.Update(ctx, edit); err != nil {
		t.Fatal(err)
	}
	once, _ := repo.GetByID(ctx, "p1")
	if err := repo.Update(ctx, edit); err != nil {
		t.Fatal(err)
	}
	twice, _ := repo.GetByID(ctx, "p1")

	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("state differs after repeated update:\n%+v\n%+v", once, twice)
	}
}

func TestUpdateCannotReopenFinishedPost(t *testing.T) {
	repo := NewPostRepository()
	ctx := context.Background()

	repo.Create(ctx, newPost("p1", time.Now().Add(-time.Minute)))
	repo.MarkFailed(ctx, "p1", "rate_limited")

	post, _ := repo.GetByID(ctx, "p1")
	post.Status = models.PostStatusPending
	if err := repo.Update(ctx, post); !errors.Is(err, ErrPostNotPending) {
		t.Fatalf("err = %v, want ErrPostNotPending", err)
	}
}

func TestTransitionsHappenOnce(t *testing.T) {
	repo := NewPostRepository()
	ctx := context.Background()
	repo.Create(ctx, newPost("p1", time.Now()))

	if err := repo.MarkPublished(ctx, "p1", "M1"); err != nil {
		t.Fatal(err)
	}
	if err := repo.MarkFailed(ctx, "p1", "late"); !errors.Is(err, ErrPostNotPending) {
		t.Fatalf("err = %v, want ErrPostNotPending", err)
	}
	got, _ := repo.GetByID(ctx, "p1")
	if got.Status != models.PostStatusPublished || got.PublishedID != "M1" || got.FailureReason != "" {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestReturnedCopiesAreIsolated(t *testing.T) {
	repo := NewPostRepository()
	ctx := context.Background()
	repo.Create(ctx, newPost("p1", time.Now()))

	got, _ := repo.GetByID(ctx, "p1")
	got.Comments[0] = "mutated"
	got.MediaReferences = append(got.MediaReferences, "extra")

	again, _ := repo.GetByID(ctx, "p1")
	if again.Comments[0] != "first" || len(again.MediaReferences) != 1 {
		t.Fatalf("store shares memory with caller: %+v", again)
	}
}

func TestConcurrentTransitionsSingleWinner(t *testing.T) {
	repo := NewPostRepository()
	ctx := context.Background()
	repo.Create(ctx, newPost("p1", time.Now()))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				err = repo.MarkPublished(ctx, "p1", "M")
			} else {
				err = repo.MarkFailed(ctx, "p1", "f")
			}
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("wins = %d, want 1", wins)
	}
}

func TestRemoveFinishedBefore(t *testing.T) {
	repo := NewPostRepository().(*postRepository)
	ctx := context.Background()
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return old }

	repo.Create(ctx, newPost("done", old))
	repo.Create(ctx, newPost("pending", old))
	repo.MarkPublished(ctx, "done", "M1")

	n, err := repo.RemoveFinishedBefore(ctx, old.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("removed = %d, want 1", n)
	}
	if _, err := repo.GetByID(ctx, "pending"); err != nil {
		t.Fatalf("pending post removed: %v", err)
	}
}

func TestUpdateRejectsFinishedPost(t *testing.T) {
	repo := NewPostRepository()
	ctx := context.Background()

	repo.Create(ctx, newPost("p1", time.Now().Add(-time.Minute)))
	repo.MarkFailed(ctx, "p1", "rate_limited")

	post, _ := repo.GetByID(ctx, "p1")
	post.Content = "rewritten after failure"
	post.FailureReason = "all good"
	if err := repo.Update(ctx, post); !errors.Is(err, ErrPostNotPending) {
		t.Fatalf("err = %v, want ErrPostNotPending", err)
	}

	got, _ := repo.GetByID(ctx, "p1")
	if got.Content != "caption" || got.FailureReason != "rate_limited" {
		t.Fatalf("finished post changed: %+v", got)
	}

	if _, err := repo.Modify(ctx, "p1", func(p *models.ScheduledPost) error {
		p.Content = "again"
		return nil
	}); !errors.Is(err, ErrPostNotPending) {
		t.Fatalf("modify err = %v, want ErrPostNotPending", err)
	}
}

func TestUpdateKeepsOutcomeFields(t *testing.T) {
	repo := NewPostRepository()
	ctx := context.Background()
	repo.Create(ctx, newPost("p1", time.Now().Add(time.Hour)))

	for _, status := range []models.PostStatus{models.PostStatusPublished, "bogus"} {
		post, _ := repo.GetByID(ctx, "p1")
		post.Status = status
		post.PublishedID = "M1"
		post.FailureReason = "nope"
		post.Content = "edited " + string(status)
		if err := repo.Update(ctx, post); err != nil {
			t.Fatalf("update: %v", err)
		}

		got, _ := repo.GetByID(ctx, "p1")
		if got.Status != models.PostStatusPending || got.PublishedID != "" || got.FailureReason != "" {
			t.Fatalf("outcome fields written through Update: %+v", got)
		}
		if got.Content != "edited "+string(status) {
			t.Fatalf("content = %q", got.Content)
		}
	}
}

func TestCreateAlwaysStartsPending(t *testing.T) {
	repo := NewPostRepository()
	ctx := context.Background()

	post := newPost("p1", time.Now().Add(time.Hour))
	post.Status = models.PostStatusPublished
	post.PublishedID = "M1"
	repo.Create(ctx, post)

	got, _ := repo.GetByID(ctx, "p1")
	if got.Status != models.PostStatusPending || got.PublishedID != "" || got.Revision != 1 {
		t.Fatalf("got %+v", got)
	}
}

func TestUpdateFromStaleSnapshotConflicts(t *testing.T) {
	repo := NewPostRepository()
	ctx := context.Background()
	repo.Create(ctx, newPost("p1", time.Now().Add(time.Hour)))

	a, _ := repo.GetByID(ctx, "p1")
	b, _ := repo.GetByID(ctx, "p1")

	a.Content = "writer A content"
	if err := repo.Update(ctx, a); err != nil {
		t.Fatal(err)
	}
	b.Comments = []string{"writer B comment"}
	if err := repo.Update(ctx, b); !errors.Is(err, ErrPostConflict) {
		t.Fatalf("err = %v, want ErrPostConflict", err)
	}

	got, _ := repo.GetByID(ctx, "p1")
	if got.Content != "writer A content" || got.Comments[0] != "first" || got.Revision != 2 {
		t.Fatalf("got %+v", got)
	}
}

func TestConcurrentModifyKeepsEveryEdit(t *testing.T) {
	repo := NewPostRepository()
	ctx := context.Background()
	post := newPost("p1", time.Now().Add(time.Hour))
	post.Comments = nil
	repo.Create(ctx, post)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			repo.Modify(ctx, "p1", func(p *models.ScheduledPost) error {
				p.Comments = append(p.Comments, "c")
				return nil
			})
		}()
	}
	wg.Wait()

	got, _ := repo.GetByID(ctx, "p1")
	if len(got.Comments) != 20 || got.Revision != 21 {
		t.Fatalf("comments = %d revision = %d", len(got.Comments), got.Revision)
	}
}

func TestModifyErrorLeavesPostUnchanged(t *testing.T) {
	repo := NewPostRepository()
	ctx := context.Background()
	repo.Create(ctx, newPost("p1", time.Now().Add(time.Hour)))

	boom := errors.New("boom")
	_, err := repo.Modify(ctx, "p1", func(p *models.ScheduledPost) error {
		p.Content = "half edited"
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	got, _ := repo.GetByID(ctx, "p1")
	if got.Content != "caption" || got.Revision != 1 {
		t.Fatalf("got %+v", got)
	}
}
