package service

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"strings"
	"time"

	"github.com/maheshrc27/genposting/internal/metrics"
	"github.com/maheshrc27/genposting/internal/models"
	"golang.org/x/time/rate"
)

type CommentReport struct {
	Attempted int
	Failed    int
	Errors    []string
}

// CommentSequencer posts follow-up comments one at a time, in order, after a
// successful publish. Pacing is the minimum gap between two comments on the
// same platform.
type CommentSequencer struct {
	pacing map[models.Platform]time.Duration
}

func NewCommentSequencer(pacing map[models.Platform]time.Duration) *CommentSequencer {
	p := make(map[models.Platform]time.Duration, len(pacing))
	for k, v := range pacing {
		p[k] = v
	}
	return &CommentSequencer{pacing: p}
}

func (s *CommentSequencer) limiter(platform models.Platform) *rate.Limiter {
	gap := s.pacing[platform]
	if gap <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(gap), 1)
}

// Post attempts every non-blank comment exactly once. A failed comment is
// logged and counted; it never stops the ones after it. Cancellation of ctx
// stops the sequence before the next comment.
func (s *CommentSequencer) Post(ctx context.Context, platform models.Platform, poster CommentPoster, accessToken, publishedID string, comments []string) CommentReport {
	var report CommentReport
	if publishedID == "" {
		return report
	}

	limiter := s.limiter(platform)
	for i, comment := range comments {
		if strings.TrimSpace(comment) == "" {
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			slog.Info("Comment sequence interrupted", "published_id", publishedID, "error", err.Error())
			return report
		}

		report.Attempted++
		metrics.CommentsAttempted.WithLabelValues(string(platform)).Inc()

		if err := poster.AddComment(ctx, accessToken, publishedID, comment); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("comment %d: %v", i+1, err))
			metrics.CommentsFailed.WithLabelValues(string(platform)).Inc()
			log.Printf("%s: comment %d on %s failed: %v", CommentFailed, i+1, publishedID, err)
			continue
		}
	}

	return report
}
