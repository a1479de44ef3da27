package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	config "github.com/maheshrc27/genposting/configs"
	"github.com/maheshrc27/genposting/internal/metrics"
	"github.com/maheshrc27/genposting/internal/models"
	"github.com/maheshrc27/genposting/internal/transfer"
)

const (
	containerFinished = "FINISHED"
	containerError    = "ERROR"
)

var videoExtensions = map[string]struct{}{
	".mp4": {}, ".mov": {},
}

type InstagramService interface {
	PlatformClient
	GetUserID(ctx context.Context, accessToken string) (string, error)
}

type instagramService struct {
	graphURL     string
	client       *http.Client
	pollInterval time.Duration
	pollAttempts int
}

func NewInstagramService(cfg config.Config, client *http.Client) InstagramService {
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	attempts := cfg.Instagram.PollAttempts
	if attempts <= 0 {
		attempts = 20
	}
	return &instagramService{
		graphURL:     strings.TrimRight(cfg.Instagram.GraphURL, "/"),
		client:       client,
		pollInterval: cfg.Instagram.PollInterval,
		pollAttempts: attempts,
	}
}

// Publish runs the container workflow: resolve the business account, create
// a media container, wait for it to finish processing, then publish it.
// Every failure comes back inside the result.
func (s *instagramService) Publish(ctx context.Context, req PublishRequest) PublishResult {
	if len(req.MediaReferences) == 0 || strings.TrimSpace(req.MediaReferences[0]) == "" {
		return Failed(newPublishError(MissingMedia, "no media reference for Instagram post"))
	}
	mediaURL := req.MediaReferences[0]

	igUserID, err := s.businessAccountID(ctx, req.AccessToken, req.UserID)
	if err != nil {
		return Failed(err)
	}

	log.Printf("Creating Instagram container for account %s", igUserID)
	containerID, err := s.createContainer(ctx, req.AccessToken, igUserID, mediaURL, req.Content, models.InstagramPostType(req.Subtype))
	if err != nil {
		return Failed(err)
	}

	if err := s.waitForContainer(ctx, req.AccessToken, containerID); err != nil {
		return Failed(err)
	}

	publishedID, err := s.publishContainer(ctx, req.AccessToken, igUserID, containerID)
	if err != nil {
		return Failed(err)
	}

	return Published(publishedID)
}

func (s *instagramService) AddComment(ctx context.Context, accessToken, mediaID, text string) error {
	params := url.Values{}
	params.Set("message", text)
	params.Set("access_token", accessToken)

	endpoint := fmt.Sprintf("%s/%s/comments?%s", s.graphURL, url.PathEscape(mediaID), params.Encode())
	body, status, err := s.do(ctx, http.MethodPost, endpoint)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("instagram comment rejected (status %d): %s", status, graphErrorMessage(body))
	}
	return nil
}

// GetUserID returns the Facebook user id that owns accessToken.
func (s *instagramService) GetUserID(ctx context.Context, accessToken string) (string, error) {
	endpoint := fmt.Sprintf("%s/me?fields=id,name&access_token=%s", s.graphURL, url.QueryEscape(accessToken))
	body, status, err := s.do(ctx, http.MethodGet, endpoint)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("unexpected status code from Graph API: %d", status)
	}

	var me transfer.FacebookUser
	if err := json.Unmarshal(body, &me); err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("error parsing response: %w", err)
	}
	return me.ID, nil
}

// businessAccountID picks the first page of the user that has an Instagram
// business account linked.
func (s *instagramService) businessAccountID(ctx context.Context, accessToken, userID string) (string, error) {
	if userID == "" {
		return "", newPublishError(NoLinkedAccount, "platform user id is empty")
	}

	params := url.Values{}
	params.Set("fields", "name,instagram_business_account")
	params.Set("access_token", accessToken)
	endpoint := fmt.Sprintf("%s/%s/accounts?%s", s.graphURL, url.PathEscape(userID), params.Encode())

	body, status, err := s.do(ctx, http.MethodGet, endpoint)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", newPublishError(NoLinkedAccount, "unable to list pages (status %d): %s", status, graphErrorMessage(body))
	}

	var pages transfer.FacebookPagesResponse
	if err := json.Unmarshal(body, &pages); err != nil {
		return "", newPublishError(TransportError, "error parsing pages response: %v", err)
	}
	if len(pages.Data) == 0 {
		return "", newPublishError(NoLinkedAccount, "no Facebook pages found for this user")
	}

	for _, page := range pages.Data {
		if page.InstagramBusinessAccount != nil && page.InstagramBusinessAccount.ID != "" {
			return page.InstagramBusinessAccount.ID, nil
		}
	}

	return "", newPublishError(NoLinkedAccount, "none of %d pages has an Instagram business account connected", len(pages.Data))
}

// containerParams builds the container creation parameters. Stories pick the
// image or video field from the media extension; reels and video files become
// REELS; everything else is an image post.
func containerParams(mediaURL, caption string, postType models.InstagramPostType) url.Values {
	params := url.Values{}
	params.Set("caption", caption)

	video := isVideoURL(mediaURL)
	switch {
	case postType == models.InstagramStory:
		params.Set("media_type", "STORIES")
		if video {
			params.Set("video_url", mediaURL)
		} else {
			params.Set("image_url", mediaURL)
		}
	case postType == models.InstagramReel || video:
		params.Set("media_type", "REELS")
		params.Set("video_url", mediaURL)
	default:
		params.Set("image_url", mediaURL)
	}
	return params
}

func isVideoURL(mediaURL string) bool {
	p := mediaURL
	if u, err := url.Parse(mediaURL); err == nil {
		p = u.Path
	}
	_, ok := videoExtensions[strings.ToLower(path.Ext(p))]
	return ok
}

func (s *instagramService) createContainer(ctx context.Context, accessToken, igUserID, mediaURL, caption string, postType models.InstagramPostType) (string, error) {
	params := containerParams(mediaURL, caption, postType)
	params.Set("access_token", accessToken)
	endpoint := fmt.Sprintf("%s/%s/media?%s", s.graphURL, url.PathEscape(igUserID), params.Encode())

	body, status, err := s.do(ctx, http.MethodPost, endpoint)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", newPublishError(ContainerRejected, "Instagram rejected media/caption (status %d): %s", status, graphErrorMessage(body))
	}

	var container transfer.InstagramContainer
	if err := json.Unmarshal(body, &container); err != nil {
		return "", newPublishError(TransportError, "error parsing container response: %v", err)
	}
	if container.ID == "" {
		return "", newPublishError(ContainerRejected, "no container ID returned from Instagram")
	}
	return container.ID, nil
}

// waitForContainer checks the container status up to pollAttempts times,
// pollInterval apart. FINISHED returns at once, ERROR fails at once.
func (s *instagramService) waitForContainer(ctx context.Context, accessToken, containerID string) error {
	params := url.Values{}
	params.Set("fields", "status_code,status")
	params.Set("access_token", accessToken)
	endpoint := fmt.Sprintf("%s/%s?%s", s.graphURL, url.PathEscape(containerID), params.Encode())

	for attempt := 1; attempt <= s.pollAttempts; attempt++ {
		metrics.ContainerPolls.Inc()

		body, status, err := s.do(ctx, http.MethodGet, endpoint)
		if err != nil {
			return err
		}
		if status == http.StatusOK {
			var cs transfer.InstagramContainerStatus
			if err := json.Unmarshal(body, &cs); err != nil {
				return newPublishError(TransportError, "error parsing container status: %v", err)
			}
			log.Printf("Container %s status: %s (attempt %d/%d)", containerID, cs.StatusCode, attempt, s.pollAttempts)

			switch cs.StatusCode {
			case containerFinished:
				return nil
			case containerError:
				return newPublishError(ContainerProcessingFailed,
					"container %s processing failed: %s. Verify the file is H.264 MP4 (AAC audio) and publicly reachable", containerID, cs.Status)
			}
		} else {
			slog.Info("Container status check failed", "container", containerID, "status", status)
		}

		if attempt == s.pollAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return newPublishError(TransportError, "waiting for container %s: %v", containerID, ctx.Err())
		case <-time.After(s.pollInterval):
		}
	}

	return newPublishError(ContainerTimeout, "container %s not ready after %d checks", containerID, s.pollAttempts)
}

func (s *instagramService) publishContainer(ctx context.Context, accessToken, igUserID, containerID string) (string, error) {
	params := url.Values{}
	params.Set("creation_id", containerID)
	params.Set("access_token", accessToken)
	endpoint := fmt.Sprintf("%s/%s/media_publish?%s", s.graphURL, url.PathEscape(igUserID), params.Encode())

	body, status, err := s.do(ctx, http.MethodPost, endpoint)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", newPublishError(PublishRejected, "Instagram refused to publish container %s (status %d): %s", containerID, status, graphErrorMessage(body))
	}

	var published transfer.InstagramContainer
	if err := json.Unmarshal(body, &published); err != nil {
		return "", newPublishError(TransportError, "error parsing publish response: %v", err)
	}
	if published.ID == "" {
		return "", newPublishError(PublishRejected, "no media ID returned for container %s", containerID)
	}

	log.Printf("Published Instagram container %s as media %s", containerID, published.ID)
	return published.ID, nil
}

// do sends a body-less Graph API request. Transport failures come back as
// TransportError; the URL is left out of the message because it carries the token.
func (s *instagramService) do(ctx context.Context, method, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, 0, newPublishError(TransportError, "error creating request")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, newPublishError(TransportError, "HTTP request error: %s", redactURLError(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, newPublishError(TransportError, "error reading response body: %v", err)
	}
	return body, resp.StatusCode, nil
}

func graphErrorMessage(body []byte) string {
	var e transfer.InstagramErrorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		if e.Error.ErrorUserMsg != "" {
			return e.Error.Message + " (" + e.Error.ErrorUserMsg + ")"
		}
		return e.Error.Message
	}
	return strings.TrimSpace(string(body))
}

// redactURLError drops the request URL from a *url.Error.
func redactURLError(err error) string {
	if ue, ok := err.(*url.Error); ok {
		return fmt.Sprintf("%s: %v", ue.Op, ue.Err)
	}
	return err.Error()
}
