package transfer

import (
	"strings"
	"time"
)

// CommentSeparator splits the comments form field into separate comments.
const CommentSeparator = "|||"

type PostCreation struct {
	ID              string    `json:"id,omitempty"`
	Platform        string    `json:"platform"`
	PlatformUserID  string    `json:"platform_user_id"`
	AccessToken     string    `json:"access_token"`
	Content         string    `json:"content"`
	MediaReferences []string  `json:"media_references"`
	MediaType       string    `json:"media_type"`
	PostType        string    `json:"post_type"`
	Comments        []string  `json:"comments"`
	ThumbnailURL    string    `json:"thumbnail_url"`
	ScheduledTime   time.Time `json:"scheduled_time"`
}

// PostUpdate carries the editable fields of a pending post. Nil fields are
// left as they are. When Revision is set the update only applies if the
// stored post is still at that revision.
type PostUpdate struct {
	Revision        *int64     `json:"revision"`
	AccessToken     *string    `json:"access_token"`
	Content         *string    `json:"content"`
	MediaReferences []string   `json:"media_references"`
	MediaType       *string    `json:"media_type"`
	PostType        *string    `json:"post_type"`
	Comments        []string   `json:"comments"`
	ThumbnailURL    *string    `json:"thumbnail_url"`
	ScheduledTime   *time.Time `json:"scheduled_time"`
}

// PublishNow is the body of an immediate publish request.
type PublishNow struct {
	PlatformUserID  string   `json:"platform_user_id"`
	AccessToken     string   `json:"access_token"`
	Content         string   `json:"content"`
	MediaReferences []string `json:"media_references"`
	MediaType       string   `json:"media_type"`
	PostType        string   `json:"post_type"`
	Comments        []string `json:"comments"`
}

type PublishNowResult struct {
	Success           bool     `json:"success"`
	PublishedID       string   `json:"published_id,omitempty"`
	Error             string   `json:"error,omitempty"`
	CommentsAttempted int      `json:"comments_attempted"`
	CommentErrors     []string `json:"comment_errors,omitempty"`
}

// SplitComments turns the raw form value into comments. Without a separator
// the whole value is one comment; an empty value yields none.
func SplitComments(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	if !strings.Contains(raw, CommentSeparator) {
		return []string{raw}
	}

	var comments []string
	for _, part := range strings.Split(raw, CommentSeparator) {
		if part = strings.TrimSpace(part); part != "" {
			comments = append(comments, part)
		}
	}
	return comments
}
