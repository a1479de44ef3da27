package service

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies why a publish attempt failed.
type ErrorKind string

const (
	NoLinkedAccount           ErrorKind = "NoLinkedAccount"
	ContainerRejected         ErrorKind = "ContainerRejected"
	ContainerProcessingFailed ErrorKind = "ContainerProcessingFailed"
	ContainerTimeout          ErrorKind = "ContainerTimeout"
	MissingMedia              ErrorKind = "MissingMedia"
	PublishRejected           ErrorKind = "PublishRejected"
	TransportError            ErrorKind = "TransportError"
	CommentFailed             ErrorKind = "CommentFailed"
	InvalidCredential         ErrorKind = "InvalidCredential"
	Panic                     ErrorKind = "Panic"
)

type PublishError struct {
	Kind    ErrorKind
	Message string
}

func (e *PublishError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newPublishError(kind ErrorKind, format string, args ...any) *PublishError {
	return &PublishError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// PublishRequest is the platform-neutral input of a publish adapter.
type PublishRequest struct {
	AccessToken     string
	UserID          string
	Content         string
	MediaReferences []string
	Subtype         string
}

// PublishResult is returned by adapters instead of an error. PublishedID is
// set only on success and only when the platform hands one back.
type PublishResult struct {
	Success     bool
	Kind        ErrorKind
	Error       string
	PublishedID string
}

func Published(publishedID string) PublishResult {
	return PublishResult{Success: true, PublishedID: publishedID}
}

func Failed(err error) PublishResult {
	var pe *PublishError
	if errors.As(err, &pe) {
		return PublishResult{Kind: pe.Kind, Error: pe.Message}
	}
	return PublishResult{Kind: TransportError, Error: err.Error()}
}

// Reason is the failure text stored on a failed post.
func (r PublishResult) Reason() string {
	if r.Success {
		return ""
	}
	return (&PublishError{Kind: r.Kind, Message: r.Error}).Error()
}

type PublishAdapter interface {
	Publish(ctx context.Context, req PublishRequest) PublishResult
}

type CommentPoster interface {
	AddComment(ctx context.Context, accessToken, publishedID, text string) error
}

// PlatformClient is what the dispatcher needs from one platform.
type PlatformClient interface {
	PublishAdapter
	CommentPoster
}
