package service

import (
	"log/slog"

	"github.com/maheshrc27/genposting/pkg/utils"
)

// CredentialSealer encrypts access tokens at rest. With an empty secret it
// passes tokens through unchanged.
type CredentialSealer struct {
	key []byte
}

func NewCredentialSealer(secret string) *CredentialSealer {
	if secret == "" {
		slog.Warn("SECRET_KEY is empty, access tokens are stored in plain text")
		return &CredentialSealer{}
	}
	return &CredentialSealer{key: utils.DeriveKey(secret)}
}

func (c *CredentialSealer) Seal(token string) (string, error) {
	if c == nil || c.key == nil || token == "" {
		return token, nil
	}
	return utils.Encrypt([]byte(token), c.key)
}

func (c *CredentialSealer) Open(sealed string) (string, error) {
	if c == nil || c.key == nil || sealed == "" {
		return sealed, nil
	}
	return utils.Decrypt(sealed, c.key)
}
