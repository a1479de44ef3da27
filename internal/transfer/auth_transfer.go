package transfer

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	PurposeSession    = "session"
	PurposeOAuthState = "oauth_state"
)

type CustomClaims struct {
	Purpose  string `json:"purpose"`
	Platform string `json:"platform,omitempty"`
	jwt.RegisteredClaims
}

// LinkedAccount is what the OAuth callback hands back to the caller, who
// supplies it when scheduling posts.
type LinkedAccount struct {
	Platform       string    `json:"platform"`
	PlatformUserID string    `json:"platform_user_id"`
	AccessToken    string    `json:"access_token"`
	ExpiresAt      time.Time `json:"expires_at,omitempty"`
}
