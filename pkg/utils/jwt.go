package utils

import (
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/maheshrc27/genposting/internal/transfer"
)

const tokenIssuer = "genposting"

// GenerateToken fills the registered claims and signs an HS256 token.
// claims.Purpose separates API session tokens from OAuth state tokens.
func GenerateToken(secretKey string, claims transfer.CustomClaims, tokenDuration time.Duration) (string, error) {
	nonce, err := RandomString(12)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	now := time.Now()
	claims.ID = nonce
	claims.Issuer = tokenIssuer
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(tokenDuration))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(secretKey))
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	return signedToken, nil
}

func ValidateToken(secretKey, tokenString, purpose string) (*transfer.CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &transfer.CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid token signing method")
		}
		return []byte(secretKey), nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	claims, ok := token.Claims.(*transfer.CustomClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Purpose != purpose {
		return nil, errors.New("token issued for another purpose")
	}
	return claims, nil
}
