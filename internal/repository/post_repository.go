package repository

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/maheshrc27/genposting/internal/models"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	ErrPostNotFound   = errors.New("scheduled post not found")
	ErrPostExists     = errors.New("scheduled post already exists")
	ErrPostNotPending = errors.New("scheduled post is no longer pending")
	ErrPostConflict   = errors.New("scheduled post was changed by another writer")
)

type PostRepository interface {
	Create(ctx context.Context, post *models.ScheduledPost) (string, error)
	GetByID(ctx context.Context, id string) (*models.ScheduledPost, error)
	Update(ctx context.Context, post *models.ScheduledPost) error
	Modify(ctx context.Context, id string, fn func(post *models.ScheduledPost) error) (*models.ScheduledPost, error)
	Remove(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.ScheduledPost, error)
	ListDue(ctx context.Context, now time.Time) ([]*models.ScheduledPost, error)
	MarkPublished(ctx context.Context, id, publishedID string) error
	MarkFailed(ctx context.Context, id, reason string) error
	RemoveFinishedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// postRepository keeps scheduled posts in process memory. Every operation
// holds the lock for its whole read-modify-write, so writes to one id are
// linearizable. Records are copied on the way in and out.
type postRepository struct {
	mu    sync.RWMutex
	posts map[string]*models.ScheduledPost
	now   func() time.Time
}

func NewPostRepository() PostRepository {
	return &postRepository{
		posts: make(map[string]*models.ScheduledPost),
		now:   time.Now,
	}
}

// Create inserts the post, assigning an id when it has none. A duplicate id
// returns ErrPostExists and leaves the stored record untouched.
func (r *postRepository) Create(ctx context.Context, post *models.ScheduledPost) (string, error) {
	if post == nil {
		return "", errors.New("post is nil")
	}

	stored := post.Clone()
	if stored.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			slog.Info(err.Error())
			return "", err
		}
		stored.ID = id
	}
	now := r.now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	stored.Status = models.PostStatusPending
	stored.PublishedID = ""
	stored.FailureReason = ""
	stored.Revision = 1

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.posts[stored.ID]; ok {
		return "", ErrPostExists
	}
	r.posts[stored.ID] = stored

	return stored.ID, nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.ScheduledPost, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	post, ok := r.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	return post.Clone(), nil
}

// Update replaces the editable fields of a pending post. post.Revision must
// match the stored revision; a stale write that would change nothing is a
// no-op, any other stale write returns ErrPostConflict. Status, PublishedID
// and FailureReason only change through MarkPublished and MarkFailed.
func (r *postRepository) Update(ctx context.Context, post *models.ScheduledPost) error {
	if post == nil {
		return errors.New("post is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.posts[post.ID]
	if !ok {
		return ErrPostNotFound
	}
	if current.Status != models.PostStatusPending {
		return ErrPostNotPending
	}
	if post.Revision != current.Revision {
		if sameEdits(current, post) {
			return nil
		}
		return ErrPostConflict
	}

	r.posts[post.ID] = r.applyEdits(current, post)
	return nil
}

// Modify runs fn on a copy of a pending post while holding the lock and
// stores the edited fields if fn returns nil.
func (r *postRepository) Modify(ctx context.Context, id string, fn func(post *models.ScheduledPost) error) (*models.ScheduledPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	if current.Status != models.PostStatusPending {
		return nil, ErrPostNotPending
	}

	edit := current.Clone()
	if err := fn(edit); err != nil {
		return nil, err
	}

	next := r.applyEdits(current, edit)
	r.posts[id] = next
	return next.Clone(), nil
}

func (r *postRepository) applyEdits(current, edit *models.ScheduledPost) *models.ScheduledPost {
	next := current.Clone()
	next.PlatformUserID = edit.PlatformUserID
	next.AccessToken = edit.AccessToken
	next.Content = edit.Content
	next.MediaReferences = slices.Clone(edit.MediaReferences)
	next.MediaType = edit.MediaType
	next.PostType = edit.PostType
	next.Comments = slices.Clone(edit.Comments)
	next.ThumbnailURL = edit.ThumbnailURL
	next.ScheduledTime = edit.ScheduledTime
	next.Revision = current.Revision + 1
	next.UpdatedAt = r.now()
	return next
}

func sameEdits(a, b *models.ScheduledPost) bool {
	return a.PlatformUserID == b.PlatformUserID &&
		a.AccessToken == b.AccessToken &&
		a.Content == b.Content &&
		slices.Equal(a.MediaReferences, b.MediaReferences) &&
		a.MediaType == b.MediaType &&
		a.PostType == b.PostType &&
		slices.Equal(a.Comments, b.Comments) &&
		a.ThumbnailURL == b.ThumbnailURL &&
		a.ScheduledTime.Equal(b.ScheduledTime)
}

func (r *postRepository) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.posts[id]; !ok {
		return ErrPostNotFound
	}
	delete(r.posts, id)
	return nil
}

// List returns every post ordered by scheduled time, oldest first.
func (r *postRepository) List(ctx context.Context) ([]*models.ScheduledPost, error) {
	r.mu.RLock()
	posts := make([]*models.ScheduledPost, 0, len(r.posts))
	for _, p := range r.posts {
		posts = append(posts, p.Clone())
	}
	r.mu.RUnlock()

	sort.SliceStable(posts, func(i, j int) bool {
		if posts[i].ScheduledTime.Equal(posts[j].ScheduledTime) {
			return posts[i].CreatedAt.Before(posts[j].CreatedAt)
		}
		return posts[i].ScheduledTime.Before(posts[j].ScheduledTime)
	})
	return posts, nil
}

// ListDue returns pending posts whose scheduled time is at or before now.
func (r *postRepository) ListDue(ctx context.Context, now time.Time) ([]*models.ScheduledPost, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var due []*models.ScheduledPost
	for _, p := range r.posts {
		if p.IsDue(now) {
			due = append(due, p.Clone())
		}
	}
	return due, nil
}

func (r *postRepository) MarkPublished(ctx context.Context, id, publishedID string) error {
	return r.transition(id, func(p *models.ScheduledPost) {
		p.Status = models.PostStatusPublished
		p.PublishedID = publishedID
	})
}

func (r *postRepository) MarkFailed(ctx context.Context, id, reason string) error {
	return r.transition(id, func(p *models.ScheduledPost) {
		p.Status = models.PostStatusFailed
		p.FailureReason = reason
	})
}

// transition applies fn only while the post is still pending.
func (r *postRepository) transition(id string, fn func(p *models.ScheduledPost)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	post, ok := r.posts[id]
	if !ok {
		return ErrPostNotFound
	}
	if post.Status != models.PostStatusPending {
		return ErrPostNotPending
	}

	next := post.Clone()
	fn(next)
	next.Revision++
	next.UpdatedAt = r.now()
	r.posts[id] = next
	return nil
}

// RemoveFinishedBefore drops published and failed posts last touched before cutoff.
func (r *postRepository) RemoveFinishedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, p := range r.posts {
		if p.Status == models.PostStatusPending {
			continue
		}
		if p.UpdatedAt.Before(cutoff) {
			delete(r.posts, id)
			removed++
		}
	}
	return removed, nil
}
