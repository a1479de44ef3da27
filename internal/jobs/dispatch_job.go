package job

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/maheshrc27/genposting/internal/metrics"
	"github.com/maheshrc27/genposting/internal/models"
	"github.com/maheshrc27/genposting/internal/repository"
	"github.com/maheshrc27/genposting/internal/service"
)

var ErrNoPublisher = errors.New("no publisher registered for platform")

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomePublished
	outcomeFailed
)

// CycleReport summarizes one pass over the due posts. Skipped posts are still
// pending: the cycle was cancelled before or while handling them, or their
// record changed underneath the dispatcher.
type CycleReport struct {
	Due       int
	Published int
	Failed    int
	Skipped   int
}

// DispatchJob is the only writer of publish outcomes. Run drives it on a
// fixed interval from a single goroutine, so cycles never overlap.
type DispatchJob struct {
	posts    repository.PostRepository
	history  repository.PostingHistoryRepository
	clients  map[models.Platform]service.PlatformClient
	comments *service.CommentSequencer
	sealer   *service.CredentialSealer
	interval time.Duration
	nudge    chan struct{}
	now      func() time.Time
}

func NewDispatchJob(
	posts repository.PostRepository,
	history repository.PostingHistoryRepository,
	clients map[models.Platform]service.PlatformClient,
	comments *service.CommentSequencer,
	sealer *service.CredentialSealer,
	interval time.Duration) *DispatchJob {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &DispatchJob{
		posts:    posts,
		history:  history,
		clients:  clients,
		comments: comments,
		sealer:   sealer,
		interval: interval,
		nudge:    make(chan struct{}, 1),
		now:      time.Now,
	}
}

// Nudge asks Run to start the next cycle without waiting for the interval.
// It never blocks, and nudges that arrive during a cycle collapse into one.
func (j *DispatchJob) Nudge() {
	select {
	case j.nudge <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is done, running a cycle, then waiting for the
// interval or a nudge, then running the next.
func (j *DispatchJob) Run(ctx context.Context) {
	log.Printf("Dispatch loop started, checking every %s", j.interval)

	timer := time.NewTimer(j.interval)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			break
		}
		j.RunOnce(ctx)

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(j.interval)

		select {
		case <-ctx.Done():
		case <-timer.C:
		case <-j.nudge:
		}
	}

	log.Println("Dispatch loop stopped")
}

// RunOnce processes every post due at the start of the cycle, one after the
// other. ctx is checked before each post; posts not reached stay pending.
func (j *DispatchJob) RunOnce(ctx context.Context) CycleReport {
	var report CycleReport
	if ctx.Err() != nil {
		return report
	}

	start := time.Now()
	metrics.DispatchCycles.Inc()
	defer metrics.ObserveDispatchDuration(start)

	due, err := j.posts.ListDue(ctx, j.now())
	if err != nil {
		slog.Info("Unable to list due posts", "error", err.Error())
		return report
	}
	sort.Slice(due, func(a, b int) bool {
		if due[a].ScheduledTime.Equal(due[b].ScheduledTime) {
			return due[a].CreatedAt.Before(due[b].CreatedAt)
		}
		return due[a].ScheduledTime.Before(due[b].ScheduledTime)
	})
	report.Due = len(due)

	for i, post := range due {
		if ctx.Err() != nil {
			report.Skipped += len(due) - i
			log.Printf("Dispatch cycle cancelled, %d posts left pending", len(due)-i)
			break
		}

		switch j.dispatch(ctx, post) {
		case outcomePublished:
			report.Published++
		case outcomeFailed:
			report.Failed++
		default:
			report.Skipped++
		}
	}

	if report.Due > 0 {
		log.Printf("Dispatch cycle done: %d due, %d published, %d failed, %d skipped",
			report.Due, report.Published, report.Failed, report.Skipped)
	}
	return report
}

// dispatch handles one post. Any panic is turned into a failed transition so
// the rest of the batch still runs.
func (j *DispatchJob) dispatch(ctx context.Context, post *models.ScheduledPost) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Recovered panic while dispatching post", "post_id", post.ID, "panic", fmt.Sprint(r))
			out = j.fail(ctx, post, service.PublishResult{Kind: service.Panic, Error: fmt.Sprint(r)})
		}
	}()

	client, ok := j.clients[post.Platform]
	if !ok {
		return j.fail(ctx, post, service.PublishResult{
			Kind:  service.PublishRejected,
			Error: fmt.Sprintf("%v: %s", ErrNoPublisher, post.Platform),
		})
	}

	if post.Platform == models.PlatformInstagram && !hasPrimaryMedia(post.MediaReferences) {
		return j.fail(ctx, post, service.PublishResult{
			Kind:  service.MissingMedia,
			Error: "Instagram post has no media reference",
		})
	}

	token, err := j.sealer.Open(post.AccessToken)
	if err != nil {
		return j.fail(ctx, post, service.PublishResult{
			Kind:  service.InvalidCredential,
			Error: "stored access token could not be decrypted",
		})
	}

	log.Printf("Publishing %s post %s (scheduled %s)", post.Platform, post.ID, post.ScheduledTime.Format(time.RFC3339))
	result := client.Publish(ctx, service.PublishRequest{
		AccessToken:     token,
		UserID:          post.PlatformUserID,
		Content:         post.Content,
		MediaReferences: post.MediaReferences,
		Subtype:         post.Subtype(),
	})

	if !result.Success {
		if ctx.Err() != nil {
			log.Printf("Publishing post %s interrupted by shutdown, leaving it pending", post.ID)
			return outcomeSkipped
		}
		return j.fail(ctx, post, result)
	}

	return j.succeed(ctx, post, client, token, result)
}

func (j *DispatchJob) succeed(ctx context.Context, post *models.ScheduledPost, client service.PlatformClient, token string, result service.PublishResult) outcome {
	writeCtx := context.WithoutCancel(ctx)

	metrics.PostsPublished.WithLabelValues(string(post.Platform)).Inc()
	j.record(writeCtx, post, result.PublishedID, "")

	if err := j.posts.MarkPublished(writeCtx, post.ID, result.PublishedID); err != nil {
		slog.Info("Post published but its record could not be updated, skipping comments",
			"post_id", post.ID, "published_id", result.PublishedID, "error", err.Error())
		return outcomePublished
	}
	log.Printf("Post %s published as %s", post.ID, result.PublishedID)

	report := j.comments.Post(ctx, post.Platform, client, token, result.PublishedID, post.Comments)
	if report.Failed > 0 {
		slog.Warn("Some comments were not posted", "post_id", post.ID,
			"attempted", report.Attempted, "failed", report.Failed, "errors", strings.Join(report.Errors, "; "))
	}

	return outcomePublished
}

func (j *DispatchJob) fail(ctx context.Context, post *models.ScheduledPost, result service.PublishResult) outcome {
	writeCtx := context.WithoutCancel(ctx)
	reason := result.Reason()

	metrics.PostsFailed.WithLabelValues(string(post.Platform), string(result.Kind)).Inc()
	log.Printf("Post %s failed: %s", post.ID, reason)
	j.record(writeCtx, post, "", reason)

	if err := j.posts.MarkFailed(writeCtx, post.ID, reason); err != nil {
		slog.Info("Unable to mark post failed", "post_id", post.ID, "error", err.Error())
		return outcomeSkipped
	}
	return outcomeFailed
}

func (j *DispatchJob) record(ctx context.Context, post *models.ScheduledPost, publishedID, errMsg string) {
	if j.history == nil {
		return
	}
	_, err := j.history.Create(ctx, &models.PostingHistory{
		PostID:       post.ID,
		Platform:     post.Platform,
		PublishedID:  publishedID,
		ErrorMessage: errMsg,
	})
	if err != nil {
		log.Printf("Error saving posting history for post %s: %v", post.ID, err)
	}
}

// PublishNow publishes straight away without touching the store, then posts
// the comments the same way a scheduled post would.
func (j *DispatchJob) PublishNow(ctx context.Context, platform models.Platform, req service.PublishRequest, comments []string) (service.PublishResult, service.CommentReport, error) {
	client, ok := j.clients[platform]
	if !ok {
		return service.PublishResult{}, service.CommentReport{}, fmt.Errorf("%w: %s", ErrNoPublisher, platform)
	}

	if platform == models.PlatformInstagram && !hasPrimaryMedia(req.MediaReferences) {
		return service.PublishResult{Kind: service.MissingMedia, Error: "Instagram post has no media reference"}, service.CommentReport{}, nil
	}

	result := client.Publish(ctx, req)
	if !result.Success {
		metrics.PostsFailed.WithLabelValues(string(platform), string(result.Kind)).Inc()
		return result, service.CommentReport{}, nil
	}
	metrics.PostsPublished.WithLabelValues(string(platform)).Inc()

	report := j.comments.Post(ctx, platform, client, req.AccessToken, result.PublishedID, comments)
	return result, report, nil
}

func hasPrimaryMedia(refs []string) bool {
	return len(refs) > 0 && strings.TrimSpace(refs[0]) != ""
}
