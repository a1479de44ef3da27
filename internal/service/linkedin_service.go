package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	config "github.com/maheshrc27/genposting/configs"
	"github.com/maheshrc27/genposting/internal/transfer"
)

const (
	linkedInRestliVersion = "2.0.0"
	linkedInAPIVersion    = "202306"
	linkedInMediaTitle    = "Media Content"

	linkedInImageRecipe = "urn:li:digitalmediaRecipe:feedshare-image"
	linkedInVideoRecipe = "urn:li:digitalmediaRecipe:feedshare-video"
)

type LinkedInService interface {
	PlatformClient
	GetPersonURN(ctx context.Context, accessToken string) (string, error)
	UploadMedia(ctx context.Context, accessToken string, r io.Reader, contentType string, isVideo bool) (string, error)
}

type linkedInService struct {
	apiURL string
	client *http.Client
}

func NewLinkedInService(cfg config.Config, client *http.Client) LinkedInService {
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	return &linkedInService{
		apiURL: strings.TrimRight(cfg.LinkedIn.APIURL, "/"),
		client: client,
	}
}

// Publish resolves the member URN for the token and creates a public UGC
// post. Media entries are attached only when the subtype is not NONE.
func (s *linkedInService) Publish(ctx context.Context, req PublishRequest) PublishResult {
	authorURN, err := s.GetPersonURN(ctx, req.AccessToken)
	if err != nil {
		return Failed(err)
	}

	category := strings.ToUpper(req.Subtype)
	if category == "" {
		category = "NONE"
	}

	share := transfer.LinkedInShareContent{
		ShareCommentary:    transfer.LinkedInText{Text: req.Content},
		ShareMediaCategory: category,
	}
	if category != "NONE" {
		for _, ref := range req.MediaReferences {
			if strings.TrimSpace(ref) == "" {
				continue
			}
			share.Media = append(share.Media, transfer.LinkedInMedia{
				Status:      "READY",
				Description: transfer.LinkedInText{Text: linkedInMediaTitle},
				Media:       ref,
				Title:       transfer.LinkedInText{Text: linkedInMediaTitle},
			})
		}
	}

	payload := transfer.LinkedInUgcPost{
		Author:          authorURN,
		LifecycleState:  "PUBLISHED",
		SpecificContent: transfer.LinkedInSpecificContent{ShareContent: share},
		Visibility:      transfer.LinkedInVisibility{MemberNetworkVisibility: "PUBLIC"},
	}

	body, header, status, err := s.send(ctx, http.MethodPost, s.apiURL+"/ugcPosts", req.AccessToken, payload)
	if err != nil {
		return Failed(err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return Failed(newPublishError(PublishRejected, "LinkedIn rejected the post (status %d): %s", status, strings.TrimSpace(string(body))))
	}

	var created transfer.LinkedInUgcPostCreated
	if len(body) > 0 {
		if err := json.Unmarshal(body, &created); err != nil {
			slog.Info("Unable to parse LinkedIn post response", "error", err.Error())
		}
	}
	if created.ID == "" {
		created.ID = header.Get("X-RestLi-Id")
	}

	log.Printf("Published LinkedIn post %s for %s", created.ID, authorURN)
	return Published(created.ID)
}

func (s *linkedInService) AddComment(ctx context.Context, accessToken, postURN, text string) error {
	actor, err := s.GetPersonURN(ctx, accessToken)
	if err != nil {
		return err
	}

	comment := transfer.LinkedInComment{
		Actor:   actor,
		Message: transfer.LinkedInText{Text: text},
	}
	endpoint := fmt.Sprintf("%s/socialActions/%s/comments", s.apiURL, url.PathEscape(postURN))

	body, _, status, err := s.send(ctx, http.MethodPost, endpoint, accessToken, comment)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return fmt.Errorf("linkedin comment rejected (status %d): %s", status, strings.TrimSpace(string(body)))
	}
	return nil
}

// UploadMedia registers an upload for the token owner, PUTs the file to the
// returned upload URL and returns the digitalmediaAsset URN that ugcPosts
// media entries refer to.
func (s *linkedInService) UploadMedia(ctx context.Context, accessToken string, r io.Reader, contentType string, isVideo bool) (string, error) {
	owner, err := s.GetPersonURN(ctx, accessToken)
	if err != nil {
		return "", err
	}

	recipe := linkedInImageRecipe
	if isVideo {
		recipe = linkedInVideoRecipe
	}
	register := transfer.LinkedInRegisterUpload{
		RegisterUploadRequest: transfer.LinkedInRegisterUploadRequest{
			Recipes: []string{recipe},
			Owner:   owner,
			ServiceRelationships: []transfer.LinkedInServiceRelationship{
				{RelationshipType: "OWNER", Identifier: "urn:li:userGeneratedContent"},
			},
		},
	}

	body, _, status, err := s.send(ctx, http.MethodPost, s.apiURL+"/assets?action=registerUpload", accessToken, register)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		err := fmt.Errorf("linkedin register upload rejected (status %d): %s", status, strings.TrimSpace(string(body)))
		slog.Info(err.Error())
		return "", err
	}

	var registered transfer.LinkedInRegisterUploadResponse
	if err := json.Unmarshal(body, &registered); err != nil {
		return "", fmt.Errorf("error parsing register upload response: %w", err)
	}
	uploadURL := registered.Value.UploadMechanism.UploadHTTPRequest.UploadURL
	asset := registered.Value.Asset
	if uploadURL == "" || asset == "" {
		return "", fmt.Errorf("linkedin register upload returned no upload url or asset")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, r)
	if err != nil {
		return "", fmt.Errorf("error creating upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", contentType)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error uploading media to linkedin: %s", redactURLError(err))
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := fmt.Errorf("linkedin media upload rejected (status %d)", resp.StatusCode)
		slog.Info(err.Error())
		return "", err
	}

	log.Printf("Uploaded LinkedIn asset %s for %s", asset, owner)
	return asset, nil
}

// GetPersonURN returns urn:li:person:{sub} for the token owner.
func (s *linkedInService) GetPersonURN(ctx context.Context, accessToken string) (string, error) {
	body, _, status, err := s.send(ctx, http.MethodGet, s.apiURL+"/userinfo", accessToken, nil)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", newPublishError(NoLinkedAccount, "unable to read LinkedIn profile (status %d)", status)
	}

	var info transfer.LinkedInUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return "", newPublishError(TransportError, "error parsing LinkedIn profile: %v", err)
	}
	if info.Sub == "" {
		return "", newPublishError(NoLinkedAccount, "LinkedIn profile has no member id")
	}

	return "urn:li:person:" + info.Sub, nil
}

func (s *linkedInService) send(ctx context.Context, method, endpoint, accessToken string, payload any) ([]byte, http.Header, int, error) {
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, 0, newPublishError(TransportError, "error encoding request: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, nil, 0, newPublishError(TransportError, "error creating request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("X-Restli-Protocol-Version", linkedInRestliVersion)
	req.Header.Set("LinkedIn-Version", linkedInAPIVersion)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, 0, newPublishError(TransportError, "HTTP request error: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.Header, resp.StatusCode, newPublishError(TransportError, "error reading response body: %v", err)
	}
	return body, resp.Header, resp.StatusCode, nil
}
