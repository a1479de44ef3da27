package job

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/maheshrc27/genposting/internal/models"
	"github.com/maheshrc27/genposting/internal/repository"
	"github.com/maheshrc27/genposting/internal/service"
)

type fakeClient struct {
	mu           sync.Mutex
	result       service.PublishResult
	panicMsg     string
	block        bool
	requests     []service.PublishRequest
	comments     []string
	commentIDs   []string
	failComments map[string]bool
}

func (f *fakeClient) Publish(ctx context.Context, req service.PublishRequest) service.PublishResult {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	panicMsg, block := f.panicMsg, f.block
	f.mu.Unlock()

	if panicMsg != "" {
		panic(panicMsg)
	}
	if block {
		<-ctx.Done()
		return service.Failed(ctx.Err())
	}
	return f.result
}

func (f *fakeClient) AddComment(ctx context.Context, accessToken, publishedID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments = append(f.comments, text)
	f.commentIDs = append(f.commentIDs, publishedID)
	if f.failComments[text] {
		return errors.New("comment rejected")
	}
	return nil
}

func (f *fakeClient) publishCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type harness struct {
	job      *DispatchJob
	posts    repository.PostRepository
	history  repository.PostingHistoryRepository
	ig       *fakeClient
	linkedIn *fakeClient
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		posts:    repository.NewPostRepository(),
		history:  repository.NewMemoryPostingHistoryRepository(),
		ig:       &fakeClient{result: service.Published("M1")},
		linkedIn: &fakeClient{result: service.Published("urn:li:share:1")},
	}
	h.job = NewDispatchJob(
		h.posts,
		h.history,
		map[models.Platform]service.PlatformClient{
			models.PlatformInstagram: h.ig,
			models.PlatformLinkedIn:  h.linkedIn,
		},
		service.NewCommentSequencer(nil),
		service.NewCredentialSealer(""),
		time.Hour,
	)
	return h
}

func (h *harness) schedule(t *testing.T, post *models.ScheduledPost) string {
	t.Helper()
	id, err := h.posts.Create(context.Background(), post)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func (h *harness) get(t *testing.T, id string) *models.ScheduledPost {
	t.Helper()
	post, err := h.posts.GetByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return post
}

func instagramPost(media ...string) *models.ScheduledPost {
	return &models.ScheduledPost{
		Platform:        models.PlatformInstagram,
		PlatformUserID:  "fb-1",
		AccessToken:     "tok",
		Content:         "caption",
		MediaReferences: media,
		ScheduledTime:   time.Now().Add(-time.Second),
	}
}

func TestInstagramPostPublishedWithComments(t *testing.T) {
	h := newHarness(t)
	post := instagramPost("https://cdn.example.com/a.jpg")
	post.Comments = []string{"nice!", "🔥"}
	id := h.schedule(t, post)

	report := h.job.RunOnce(context.Background())
	if report.Published != 1 || report.Failed != 0 {
		t.Fatalf("report = %+v", report)
	}

	got := h.get(t, id)
	if got.Status != models.PostStatusPublished || got.PublishedID != "M1" {
		t.Fatalf("post = %+v", got)
	}
	if !reflect.DeepEqual(h.ig.comments, []string{"nice!", "🔥"}) {
		t.Fatalf("comments = %v", h.ig.comments)
	}
	for _, pid := range h.ig.commentIDs {
		if pid != "M1" {
			t.Fatalf("comment posted against %q", pid)
		}
	}

	req := h.ig.requests[0]
	if req.UserID != "fb-1" || req.Subtype != "Post" || req.AccessToken != "tok" {
		t.Fatalf("request = %+v", req)
	}
}

func TestLinkedInFailureSkipsComments(t *testing.T) {
	h := newHarness(t)
	h.linkedIn.result = service.PublishResult{Kind: service.PublishRejected, Error: "rate_limited"}
	id := h.schedule(t, &models.ScheduledPost{
		Platform:      models.PlatformLinkedIn,
		AccessToken:   "tok",
		Content:       "hello",
		Comments:      []string{"one", "two"},
		ScheduledTime: time.Now().Add(-time.Second),
	})

	h.job.RunOnce(context.Background())

	got := h.get(t, id)
	if got.Status != models.PostStatusFailed || !strings.Contains(got.FailureReason, "rate_limited") {
		t.Fatalf("post = %+v", got)
	}
	if len(h.linkedIn.comments) != 0 {
		t.Fatalf("comments attempted after failure: %v", h.linkedIn.comments)
	}
	if h.linkedIn.requests[0].Subtype != "NONE" {
		t.Fatalf("subtype = %q", h.linkedIn.requests[0].Subtype)
	}
}

func TestInstagramWithoutMediaNeverCallsAdapter(t *testing.T) {
	h := newHarness(t)
	id := h.schedule(t, instagramPost())
	blank := h.schedule(t, instagramPost(" "))

	h.job.RunOnce(context.Background())

	for _, pid := range []string{id, blank} {
		got := h.get(t, pid)
		if got.Status != models.PostStatusFailed || !strings.Contains(got.FailureReason, "MissingMedia") {
			t.Fatalf("post = %+v", got)
		}
	}
	if h.ig.publishCount() != 0 {
		t.Fatal("adapter invoked for a post without media")
	}
}

func TestCommentFailureDoesNotStopOthers(t *testing.T) {
	h := newHarness(t)
	h.ig.failComments = map[string]bool{"second": true}
	post := instagramPost("https://cdn.example.com/a.jpg")
	post.Comments = []string{"first", "", "second", "   ", "third"}
	id := h.schedule(t, post)

	h.job.RunOnce(context.Background())

	if !reflect.DeepEqual(h.ig.comments, []string{"first", "second", "third"}) {
		t.Fatalf("comments = %v", h.ig.comments)
	}
	got := h.get(t, id)
	if got.Status != models.PostStatusPublished || got.FailureReason != "" {
		t.Fatalf("comment failure changed the post: %+v", got)
	}
}

func TestPanicBecomesFailureAndBatchContinues(t *testing.T) {
	h := newHarness(t)
	h.ig.panicMsg = "nil map write"

	broken := h.schedule(t, instagramPost("https://cdn.example.com/a.jpg"))
	fine := h.schedule(t, &models.ScheduledPost{
		Platform:      models.PlatformLinkedIn,
		AccessToken:   "tok",
		ScheduledTime: time.Now().Add(-time.Second),
	})

	report := h.job.RunOnce(context.Background())
	if report.Failed != 1 || report.Published != 1 {
		t.Fatalf("report = %+v", report)
	}

	got := h.get(t, broken)
	if got.Status != models.PostStatusFailed || !strings.Contains(got.FailureReason, "nil map write") {
		t.Fatalf("post = %+v", got)
	}
	if h.get(t, fine).Status != models.PostStatusPublished {
		t.Fatal("second post not published")
	}
}

func TestFuturePostsStayPending(t *testing.T) {
	h := newHarness(t)
	post := instagramPost("https://cdn.example.com/a.jpg")
	post.ScheduledTime = time.Now().Add(time.Hour)
	id := h.schedule(t, post)

	report := h.job.RunOnce(context.Background())
	if report.Due != 0 {
		t.Fatalf("report = %+v", report)
	}
	if h.get(t, id).Status != models.PostStatusPending {
		t.Fatal("future post changed status")
	}
}

func TestFinishedPostsAreNotRedispatched(t *testing.T) {
	h := newHarness(t)
	h.ig.result = service.PublishResult{Kind: service.ContainerTimeout, Error: "not ready"}
	h.schedule(t, instagramPost("https://cdn.example.com/a.mp4"))

	h.job.RunOnce(context.Background())
	h.job.RunOnce(context.Background())

	if h.ig.publishCount() != 1 {
		t.Fatalf("publish calls = %d, want 1", h.ig.publishCount())
	}
}

func TestCancelledCycleLeavesPostsPending(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	id := h.schedule(t, instagramPost("https://cdn.example.com/a.jpg"))
	h.job.RunOnce(ctx)

	if h.get(t, id).Status != models.PostStatusPending {
		t.Fatal("post touched by a cancelled cycle")
	}
	if h.ig.publishCount() != 0 {
		t.Fatal("adapter called after cancellation")
	}
}

func TestShutdownDuringPublishLeavesPending(t *testing.T) {
	h := newHarness(t)
	h.ig.block = true
	first := h.schedule(t, instagramPost("https://cdn.example.com/a.jpg"))
	second := instagramPost("https://cdn.example.com/b.jpg")
	second.ScheduledTime = time.Now().Add(-time.Millisecond)
	secondID := h.schedule(t, second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan CycleReport, 1)
	go func() { done <- h.job.RunOnce(ctx) }()

	for h.ig.publishCount() == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()

	report := <-done
	if report.Skipped != 2 {
		t.Fatalf("report = %+v", report)
	}
	for _, id := range []string{first, secondID} {
		if h.get(t, id).Status != models.PostStatusPending {
			t.Fatalf("post %s not pending after shutdown", id)
		}
	}
	if h.ig.publishCount() != 1 {
		t.Fatalf("publish calls = %d, want 1", h.ig.publishCount())
	}
}

func TestHistoryRecordsEachAttempt(t *testing.T) {
	h := newHarness(t)
	ok := h.schedule(t, instagramPost("https://cdn.example.com/a.jpg"))
	missing := h.schedule(t, instagramPost())

	h.job.RunOnce(context.Background())

	entries, _ := h.history.ListByPostID(context.Background(), ok)
	if len(entries) != 1 || entries[0].PublishedID != "M1" || entries[0].ErrorMessage != "" {
		t.Fatalf("history = %+v", entries)
	}
	entries, _ = h.history.ListByPostID(context.Background(), missing)
	if len(entries) != 1 || !strings.Contains(entries[0].ErrorMessage, "MissingMedia") {
		t.Fatalf("history = %+v", entries)
	}
}

func TestSealedCredentialsAreOpened(t *testing.T) {
	h := newHarness(t)
	sealer := service.NewCredentialSealer("secret")
	h.job.sealer = sealer

	sealed, err := sealer.Seal("real-token")
	if err != nil {
		t.Fatal(err)
	}
	post := instagramPost("https://cdn.example.com/a.jpg")
	post.AccessToken = sealed
	h.schedule(t, post)

	bad := instagramPost("https://cdn.example.com/b.jpg")
	bad.AccessToken = "not-sealed"
	badID := h.schedule(t, bad)

	h.job.RunOnce(context.Background())

	if h.ig.requests[0].AccessToken != "real-token" {
		t.Fatalf("token = %q", h.ig.requests[0].AccessToken)
	}
	if reason := h.get(t, badID).FailureReason; !strings.Contains(reason, string(service.InvalidCredential)) {
		t.Fatalf("reason = %q", reason)
	}
}

func TestRunStopsOnCancelAndHonoursNudge(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.job.Run(ctx)
		close(stopped)
	}()

	time.Sleep(10 * time.Millisecond)
	id := h.schedule(t, instagramPost("https://cdn.example.com/a.jpg"))
	h.job.Nudge()

	deadline := time.Now().Add(2 * time.Second)
	for h.get(t, id).Status == models.PostStatusPending {
		if time.Now().After(deadline) {
			t.Fatal("nudge did not trigger a cycle")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestPublishNow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, report, err := h.job.PublishNow(ctx, models.PlatformLinkedIn, service.PublishRequest{AccessToken: "tok"}, []string{"a", "b"})
	if err != nil || !res.Success || report.Attempted != 2 {
		t.Fatalf("res = %+v report = %+v err = %v", res, report, err)
	}

	res, _, err = h.job.PublishNow(ctx, models.PlatformInstagram, service.PublishRequest{AccessToken: "tok"}, nil)
	if err != nil || res.Kind != service.MissingMedia {
		t.Fatalf("res = %+v err = %v", res, err)
	}

	if _, _, err := h.job.PublishNow(ctx, "tiktok", service.PublishRequest{}, nil); !errors.Is(err, ErrNoPublisher) {
		t.Fatalf("err = %v, want ErrNoPublisher", err)
	}
}

func TestRetentionPurge(t *testing.T) {
	posts := repository.NewPostRepository()
	ctx := context.Background()
	id, _ := posts.Create(ctx, instagramPost("https://cdn.example.com/a.jpg"))
	pending, _ := posts.Create(ctx, instagramPost("https://cdn.example.com/b.jpg"))
	posts.MarkPublished(ctx, id, "M1")

	job := NewRetentionJob(posts, time.Hour)
	job.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	job.PurgeFinished()

	if _, err := posts.GetByID(ctx, id); !errors.Is(err, repository.ErrPostNotFound) {
		t.Fatalf("finished post kept: %v", err)
	}
	if _, err := posts.GetByID(ctx, pending); err != nil {
		t.Fatalf("pending post removed: %v", err)
	}
}
