package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"github.com/maheshrc27/genposting/internal/models"
	"github.com/maheshrc27/genposting/internal/repository"
	"github.com/maheshrc27/genposting/internal/transfer"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var ErrInvalidPost = errors.New("invalid post")

var allowedMediaTypes = map[string]struct{}{
	"mp4": {}, "mov": {}, "jpg": {}, "png": {},
}

type PostService interface {
	CreatePost(ctx context.Context, pc *transfer.PostCreation) (*models.ScheduledPost, time.Duration, error)
	ValidatePost(pc *transfer.PostCreation) error
	ValidateMedia(file []byte) error
	UploadMedia(ctx context.Context, file []byte) (string, error)
	List(ctx context.Context) ([]*models.ScheduledPost, error)
	PostInfo(ctx context.Context, postID string) (*models.ScheduledPost, error)
	UpdatePost(ctx context.Context, postID string, pu *transfer.PostUpdate) (*models.ScheduledPost, time.Duration, error)
	Remove(ctx context.Context, postID string) error
	History(ctx context.Context, postID string) ([]*models.PostingHistory, error)
}

type postService struct {
	pr     repository.PostRepository
	ph     repository.PostingHistoryRepository
	media  MediaStore
	sealer *CredentialSealer
	now    func() time.Time
}

func NewPostService(
	pr repository.PostRepository,
	ph repository.PostingHistoryRepository,
	media MediaStore,
	sealer *CredentialSealer) PostService {
	return &postService{
		pr:     pr,
		ph:     ph,
		media:  media,
		sealer: sealer,
		now:    time.Now,
	}
}

func invalid(format string, args ...any) error {
	err := fmt.Errorf("%w: %s", ErrInvalidPost, fmt.Sprintf(format, args...))
	slog.Info(err.Error())
	return err
}

// CreatePost validates and stores a new pending post. The returned duration
// is how long until it becomes due.
func (s *postService) CreatePost(ctx context.Context, pc *transfer.PostCreation) (*models.ScheduledPost, time.Duration, error) {
	platform, postType, err := s.validateCreation(pc)
	if err != nil {
		return nil, 0, err
	}

	token, err := s.sealer.Seal(pc.AccessToken)
	if err != nil {
		return nil, 0, fmt.Errorf("error sealing access token: %w", err)
	}

	post := &models.ScheduledPost{
		ID:              pc.ID,
		Platform:        platform,
		PlatformUserID:  pc.PlatformUserID,
		AccessToken:     token,
		Content:         pc.Content,
		MediaReferences: cleanReferences(pc.MediaReferences),
		MediaType:       strings.ToUpper(pc.MediaType),
		PostType:        postType,
		Comments:        pc.Comments,
		ThumbnailURL:    pc.ThumbnailURL,
		ScheduledTime:   pc.ScheduledTime,
		Status:          models.PostStatusPending,
	}

	id, err := s.pr.Create(ctx, post)
	if err != nil {
		return nil, 0, fmt.Errorf("error creating post: %w", err)
	}

	created, err := s.pr.GetByID(ctx, id)
	if err != nil {
		return nil, 0, fmt.Errorf("error reading created post: %w", err)
	}

	log.Printf("Scheduled %s post %s for %s", platform, id, created.ScheduledTime.Format(time.RFC3339))
	return created, s.delayUntil(created.ScheduledTime), nil
}

// ValidatePost runs the checks CreatePost runs, without storing anything.
func (s *postService) ValidatePost(pc *transfer.PostCreation) error {
	_, _, err := s.validateCreation(pc)
	return err
}

func (s *postService) validateCreation(pc *transfer.PostCreation) (models.Platform, models.InstagramPostType, error) {
	if pc == nil {
		return "", "", invalid("post creation data is nil")
	}

	platform := models.Platform(strings.ToLower(pc.Platform))
	if !platform.Valid() {
		return "", "", invalid("unsupported platform %q", pc.Platform)
	}
	if pc.AccessToken == "" {
		return "", "", invalid("access token is required")
	}
	if platform == models.PlatformInstagram && pc.PlatformUserID == "" {
		return "", "", invalid("platform_user_id is required for Instagram")
	}
	if !pc.ScheduledTime.After(s.now()) {
		return "", "", invalid("scheduled time must be in the future")
	}

	postType, err := ParsePostType(platform, pc.PostType)
	if err != nil {
		return "", "", err
	}
	if err := checkLinkedInMedia(platform, pc.MediaType, pc.MediaReferences); err != nil {
		return "", "", err
	}
	return platform, postType, nil
}

// checkLinkedInMedia requires IMAGE and VIDEO shares to reference uploaded
// LinkedIn assets; LinkedIn does not fetch media from URLs.
func checkLinkedInMedia(platform models.Platform, mediaType string, refs []string) error {
	if platform != models.PlatformLinkedIn {
		return nil
	}
	switch strings.ToUpper(mediaType) {
	case "IMAGE", "VIDEO":
	default:
		return nil
	}
	for _, ref := range cleanReferences(refs) {
		if !strings.HasPrefix(ref, "urn:li:") {
			return invalid("LinkedIn media reference %q is not an asset URN", ref)
		}
	}
	return nil
}

// ValidateMedia reports whether UploadMedia would accept the file.
func (s *postService) ValidateMedia(file []byte) error {
	_, err := sniffMedia(file)
	return err
}

func sniffMedia(file []byte) (types.Type, error) {
	if len(file) == 0 {
		return types.Unknown, invalid("empty file")
	}

	kind, err := filetype.Match(file)
	if err != nil || kind == types.Unknown {
		return types.Unknown, invalid("unsupported file type")
	}
	if !filetype.IsImage(file) && !filetype.IsVideo(file) {
		return types.Unknown, invalid("file type %s is not allowed", kind.Extension)
	}
	return kind, nil
}

// UploadMedia sniffs the file, stores it under a random key with an extension
// Instagram can classify, and returns its public URL.
func (s *postService) UploadMedia(ctx context.Context, file []byte) (string, error) {
	if s.media == nil {
		return "", errors.New("media storage is not configured")
	}
	kind, err := sniffMedia(file)
	if err != nil {
		return "", err
	}

	id, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	key := id + "." + mediaExtension(kind)
	url, err := s.media.Upload(ctx, bytes.NewReader(file), key, kind.MIME.Value)
	if err != nil {
		return "", fmt.Errorf("error uploading file: %w", err)
	}

	log.Printf("Uploaded media %s (%s)", key, kind.MIME.Value)
	return url, nil
}

// mediaExtension keeps known extensions and otherwise falls back to mp4 for
// video and jpg for everything else.
func mediaExtension(kind types.Type) string {
	if _, ok := allowedMediaTypes[kind.Extension]; ok {
		return kind.Extension
	}
	if kind.MIME.Type == "video" {
		return "mp4"
	}
	return "jpg"
}

func (s *postService) List(ctx context.Context) ([]*models.ScheduledPost, error) {
	posts, err := s.pr.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}
	return posts, nil
}

func (s *postService) PostInfo(ctx context.Context, postID string) (*models.ScheduledPost, error) {
	if postID == "" {
		return nil, invalid("post id is required")
	}
	return s.pr.GetByID(ctx, postID)
}

// UpdatePost edits a pending post. Published and failed posts are immutable.
// The edit runs under the store lock, so concurrent updates never drop each
// other's fields; a stale pu.Revision returns repository.ErrPostConflict.
func (s *postService) UpdatePost(ctx context.Context, postID string, pu *transfer.PostUpdate) (*models.ScheduledPost, time.Duration, error) {
	if pu == nil {
		return nil, 0, invalid("post update data is nil")
	}
	if pu.ScheduledTime != nil && !pu.ScheduledTime.After(s.now()) {
		return nil, 0, invalid("scheduled time must be in the future")
	}

	var sealed string
	if pu.AccessToken != nil {
		token, err := s.sealer.Seal(*pu.AccessToken)
		if err != nil {
			return nil, 0, fmt.Errorf("error sealing access token: %w", err)
		}
		sealed = token
	}

	updated, err := s.pr.Modify(ctx, postID, func(post *models.ScheduledPost) error {
		if pu.Revision != nil && *pu.Revision != post.Revision {
			return repository.ErrPostConflict
		}
		if pu.PostType != nil {
			postType, err := ParsePostType(post.Platform, *pu.PostType)
			if err != nil {
				return err
			}
			post.PostType = postType
		}
		if pu.ScheduledTime != nil {
			post.ScheduledTime = *pu.ScheduledTime
		}
		if pu.AccessToken != nil {
			post.AccessToken = sealed
		}
		if pu.Content != nil {
			post.Content = *pu.Content
		}
		if pu.MediaReferences != nil {
			post.MediaReferences = cleanReferences(pu.MediaReferences)
		}
		if pu.MediaType != nil {
			post.MediaType = strings.ToUpper(*pu.MediaType)
		}
		if pu.Comments != nil {
			post.Comments = pu.Comments
		}
		if pu.ThumbnailURL != nil {
			post.ThumbnailURL = *pu.ThumbnailURL
		}
		return checkLinkedInMedia(post.Platform, post.MediaType, post.MediaReferences)
	})
	if err != nil {
		return nil, 0, err
	}

	return updated, s.delayUntil(updated.ScheduledTime), nil
}

func (s *postService) Remove(ctx context.Context, postID string) error {
	if postID == "" {
		return invalid("post id is required")
	}
	return s.pr.Remove(ctx, postID)
}

func (s *postService) History(ctx context.Context, postID string) ([]*models.PostingHistory, error) {
	return s.ph.ListByPostID(ctx, postID)
}

func (s *postService) delayUntil(t time.Time) time.Duration {
	delay := t.Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	return delay
}

// ParsePostType matches raw against the Instagram post types, ignoring case.
// Other platforms have no post type and always get "".
func ParsePostType(platform models.Platform, raw string) (models.InstagramPostType, error) {
	if platform != models.PlatformInstagram || raw == "" {
		return "", nil
	}
	for _, t := range []models.InstagramPostType{models.InstagramPost, models.InstagramReel, models.InstagramStory} {
		if strings.EqualFold(raw, string(t)) {
			return t, nil
		}
	}
	return "", invalid("unknown Instagram post type %q", raw)
}

func cleanReferences(refs []string) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
