package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	cfg "github.com/maheshrc27/genposting/configs"
)

// MediaStore puts an uploaded file somewhere publicly reachable and returns
// its URL, which is what Instagram fetches when it builds a container.
type MediaStore interface {
	Upload(ctx context.Context, body io.Reader, key, contentType string) (string, error)
}

type R2Service struct {
	config cfg.R2
	client *s3.Client
}

// NewR2Service builds the S3 client for R2 up front. When R2 is not
// configured it returns a service whose Enabled reports false.
func NewR2Service(ctx context.Context, c cfg.Config) (*R2Service, error) {
	r := &R2Service{config: c.R2}
	if !r.Enabled() {
		return r, nil
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(r.config.AccessKey, r.config.SecretKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("error loading R2 config: %w", err)
	}

	endpoint := r.config.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", r.config.AccountID)
	}
	r.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	return r, nil
}

// Enabled reports whether R2 credentials and a public URL are configured.
func (r *R2Service) Enabled() bool {
	return r.config.AccountID != "" && r.config.BucketName != "" && r.config.PublicURL != ""
}

func (r *R2Service) Upload(ctx context.Context, body io.Reader, key, contentType string) (string, error) {
	if r.client == nil {
		return "", fmt.Errorf("media storage is not configured")
	}

	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.config.BucketName),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	return PublicMediaURL(r.config.PublicURL, key), nil
}

func PublicMediaURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
