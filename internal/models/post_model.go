package models

import (
	"slices"
	"time"
)

type Platform string

const (
	PlatformLinkedIn  Platform = "linkedin"
	PlatformInstagram Platform = "instagram"
)

func (p Platform) Valid() bool {
	return p == PlatformLinkedIn || p == PlatformInstagram
}

type InstagramPostType string

const (
	InstagramPost  InstagramPostType = "Post"
	InstagramReel  InstagramPostType = "Reel"
	InstagramStory InstagramPostType = "Story"
)

type PostStatus string

const (
	PostStatusPending   PostStatus = "pending"
	PostStatusPublished PostStatus = "published"
	PostStatusFailed    PostStatus = "failed"
)

// ScheduledPost is the unit of work handed to the dispatcher. For Instagram,
// PostType selects the container branch; for LinkedIn, MediaType carries the
// share media category (NONE, IMAGE, VIDEO, ARTICLE).
type ScheduledPost struct {
	ID              string            `json:"id"`
	Platform        Platform          `json:"platform"`
	PlatformUserID  string            `json:"platform_user_id"`
	AccessToken     string            `json:"-"`
	Content         string            `json:"content"`
	MediaReferences []string          `json:"media_references"`
	MediaType       string            `json:"media_type"`
	PostType        InstagramPostType `json:"post_type,omitempty"`
	Comments        []string          `json:"comments"`
	ThumbnailURL    string            `json:"thumbnail_url,omitempty"`
	ScheduledTime   time.Time         `json:"scheduled_time"`
	Status          PostStatus        `json:"status"`
	FailureReason   string            `json:"failure_reason,omitempty"`
	PublishedID     string            `json:"published_id,omitempty"`
	Revision        int64             `json:"revision"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Clone returns a deep copy so callers never share slices with the store.
func (p *ScheduledPost) Clone() *ScheduledPost {
	if p == nil {
		return nil
	}
	c := *p
	c.MediaReferences = slices.Clone(p.MediaReferences)
	c.Comments = slices.Clone(p.Comments)
	return &c
}

// IsDue reports whether the post is pending and its scheduled time has come.
func (p *ScheduledPost) IsDue(now time.Time) bool {
	return p.Status == PostStatusPending && !p.ScheduledTime.After(now)
}

// Subtype returns the adapter branch hint for the post's platform.
func (p *ScheduledPost) Subtype() string {
	if p.Platform == PlatformInstagram {
		if p.PostType == "" {
			return string(InstagramPost)
		}
		return string(p.PostType)
	}
	if p.MediaType == "" {
		return "NONE"
	}
	return p.MediaType
}
