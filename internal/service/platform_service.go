package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"strings"
	"time"

	config "github.com/maheshrc27/genposting/configs"
	"github.com/maheshrc27/genposting/internal/models"
	"github.com/maheshrc27/genposting/internal/transfer"
	"github.com/maheshrc27/genposting/pkg/utils"
	"golang.org/x/oauth2"
)

const (
	FACEBOOK_AUTH_URL  = "https://www.facebook.com/v19.0/dialog/oauth"
	LINKEDIN_AUTH_URL  = "https://www.linkedin.com/oauth/v2/authorization"
	LINKEDIN_TOKEN_URL = "https://www.linkedin.com/oauth/v2/accessToken"

	stateTTL = 10 * time.Minute
)

var ErrUnsupportedPlatform = errors.New("unsupported platform")

type PlatformService interface {
	GetAuthURL(ctx context.Context, platform string) (string, error)
	Exchange(ctx context.Context, platform, code, state string) (*transfer.LinkedAccount, error)
}

type platformService struct {
	secretKey string
	client    *http.Client
	oauth     map[models.Platform]*oauth2.Config
	ig        InstagramService
	li        LinkedInService
}

func NewPlatformService(cfg config.Config, client *http.Client, ig InstagramService, li LinkedInService) PlatformService {
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	return &platformService{
		secretKey: cfg.SecretKey,
		client:    client,
		ig:        ig,
		li:        li,
		oauth: map[models.Platform]*oauth2.Config{
			models.PlatformInstagram: {
				ClientID:     cfg.Instagram.ClientID,
				ClientSecret: cfg.Instagram.ClientSecret,
				RedirectURL:  cfg.Instagram.RedirectURI,
				Scopes: []string{
					"instagram_basic",
					"instagram_content_publish",
					"instagram_manage_comments",
					"pages_show_list",
					"pages_read_engagement",
				},
				Endpoint: oauth2.Endpoint{
					AuthURL:   FACEBOOK_AUTH_URL,
					TokenURL:  strings.TrimRight(cfg.Instagram.GraphURL, "/") + "/oauth/access_token",
					AuthStyle: oauth2.AuthStyleInParams,
				},
			},
			models.PlatformLinkedIn: {
				ClientID:     cfg.LinkedIn.ClientID,
				ClientSecret: cfg.LinkedIn.ClientSecret,
				RedirectURL:  cfg.LinkedIn.RedirectURI,
				Scopes:       []string{"openid", "profile", "w_member_social"},
				Endpoint: oauth2.Endpoint{
					AuthURL:   LINKEDIN_AUTH_URL,
					TokenURL:  LINKEDIN_TOKEN_URL,
					AuthStyle: oauth2.AuthStyleInParams,
				},
			},
		},
	}
}

func (s *platformService) oauthConfig(platform string) (models.Platform, *oauth2.Config, error) {
	p := models.Platform(strings.ToLower(platform))
	oc, ok := s.oauth[p]
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, platform)
	}
	if oc.ClientID == "" {
		return "", nil, fmt.Errorf("%s OAuth client is not configured", p)
	}
	if s.secretKey == "" {
		return "", nil, errors.New("SECRET_KEY is required for OAuth")
	}
	return p, oc, nil
}

// GetAuthURL returns the consent page URL. The state parameter is a short
// lived signed token bound to the platform.
func (s *platformService) GetAuthURL(ctx context.Context, platform string) (string, error) {
	p, oc, err := s.oauthConfig(platform)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	state, err := utils.GenerateToken(s.secretKey, transfer.CustomClaims{
		Purpose:  transfer.PurposeOAuthState,
		Platform: string(p),
	}, stateTTL)
	if err != nil {
		return "", err
	}

	return oc.AuthCodeURL(state), nil
}

// Exchange trades an authorization code for an access token and resolves the
// platform user id the dispatcher publishes as.
func (s *platformService) Exchange(ctx context.Context, platform, code, state string) (*transfer.LinkedAccount, error) {
	p, oc, err := s.oauthConfig(platform)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	if code == "" {
		return nil, errors.New("authorization code is missing")
	}

	claims, err := utils.ValidateToken(s.secretKey, state, transfer.PurposeOAuthState)
	if err != nil {
		return nil, fmt.Errorf("invalid state: %w", err)
	}
	if claims.Platform != string(p) {
		return nil, errors.New("state was issued for another platform")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)
	token, err := oc.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("error exchanging code: %w", err)
	}

	account := &transfer.LinkedAccount{
		Platform:    string(p),
		AccessToken: token.AccessToken,
		ExpiresAt:   token.Expiry,
	}

	switch p {
	case models.PlatformInstagram:
		account.PlatformUserID, err = s.ig.GetUserID(ctx, token.AccessToken)
	case models.PlatformLinkedIn:
		account.PlatformUserID, err = s.li.GetPersonURN(ctx, token.AccessToken)
	}
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("error reading %s profile: %w", p, err)
	}

	log.Printf("Linked %s account %s", p, account.PlatformUserID)
	return account, nil
}
