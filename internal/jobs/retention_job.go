package job

import (
	"context"
	"log"
	"log/slog"
	"time"

	"github.com/maheshrc27/genposting/internal/repository"
	"github.com/robfig/cron"
)

// RetentionJob drops published and failed posts once they are older than the
// retention window. Pending posts are never touched.
type RetentionJob struct {
	posts     repository.PostRepository
	retention time.Duration
	now       func() time.Time
}

func NewRetentionJob(posts repository.PostRepository, retention time.Duration) *RetentionJob {
	return &RetentionJob{
		posts:     posts,
		retention: retention,
		now:       time.Now,
	}
}

func (r *RetentionJob) PurgeFinished() {
	if r.retention <= 0 {
		return
	}

	cutoff := r.now().Add(-r.retention)
	removed, err := r.posts.RemoveFinishedBefore(context.Background(), cutoff)
	if err != nil {
		slog.Info(err.Error())
		return
	}
	if removed > 0 {
		log.Printf("Removed %d finished posts older than %s", removed, cutoff.Format(time.RFC3339))
	}
}

// Schedule registers the purge on c.
func (r *RetentionJob) Schedule(c *cron.Cron, spec string) error {
	return c.AddFunc(spec, r.PurgeFinished)
}
