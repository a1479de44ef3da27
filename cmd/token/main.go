// Command token mints an API session token signed with SECRET_KEY.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	config "github.com/maheshrc27/genposting/configs"
	"github.com/maheshrc27/genposting/internal/transfer"
	"github.com/maheshrc27/genposting/pkg/utils"
)

func main() {
	subject := flag.String("subject", "admin", "token subject")
	ttl := flag.Duration("ttl", 30*24*time.Hour, "token lifetime")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()
	if cfg.SecretKey == "" {
		log.Fatal("SECRET_KEY is not set")
	}

	token, err := utils.GenerateToken(cfg.SecretKey, transfer.CustomClaims{
		Purpose: transfer.PurposeSession,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: *subject,
		},
	}, *ttl)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	fmt.Println(token)
}
