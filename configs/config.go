package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
	// Endpoint overrides https://<account>.r2.cloudflarestorage.com.
	Endpoint string
}

type Instagram struct {
	ClientID      string
	ClientSecret  string
	RedirectURI   string
	GraphURL      string
	PollInterval  time.Duration
	PollAttempts  int
	CommentPacing time.Duration
}

type LinkedIn struct {
	ClientID      string
	ClientSecret  string
	RedirectURI   string
	APIURL        string
	CommentPacing time.Duration
}

type Config struct {
	Instagram        Instagram
	LinkedIn         LinkedIn
	DispatchInterval time.Duration
	HTTPTimeout      time.Duration
	Retention        time.Duration
	PostgresURI      string
	RedisURI         string
	MetricsAddr      string
	Port             string
	FrontendURL      string
	R2               R2
	SecretKey        string
	CookieName       string
}

func LoadConfig() *Config {
	cfg := &Config{
		Instagram: Instagram{
			ClientID:      getEnv("INSTAGRAM_CLIENT_ID", ""),
			ClientSecret:  getEnv("INSTAGRAM_CLIENT_SECRET", ""),
			RedirectURI:   getEnv("INSTAGRAM_REDIRECT_URI", ""),
			GraphURL:      getEnv("GRAPH_API_URL", "https://graph.facebook.com/v19.0"),
			PollInterval:  getEnvDuration("IG_POLL_INTERVAL", 3*time.Second),
			PollAttempts:  getEnvInt("IG_POLL_ATTEMPTS", 20),
			CommentPacing: getEnvDuration("INSTAGRAM_COMMENT_DELAY", 0),
		},
		LinkedIn: LinkedIn{
			ClientID:      getEnv("LINKEDIN_CLIENT_ID", ""),
			ClientSecret:  getEnv("LINKEDIN_CLIENT_SECRET", ""),
			RedirectURI:   getEnv("LINKEDIN_REDIRECT_URI", ""),
			APIURL:        getEnv("LINKEDIN_API_URL", "https://api.linkedin.com/v2"),
			CommentPacing: getEnvDuration("LINKEDIN_COMMENT_DELAY", 500*time.Millisecond),
		},
		DispatchInterval: getEnvDuration("DISPATCH_INTERVAL", 30*time.Second),
		HTTPTimeout:      getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		Retention:        getEnvDuration("RETENTION", 7*24*time.Hour),
		PostgresURI:      getEnv("POSTGRES_URI", ""),
		RedisURI:         getEnv("REDIS_URI", ""),
		MetricsAddr:      getEnv("METRICS_ADDR", ""),
		Port:             getEnv("PORT", "3000"),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:5173"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("MEDIA_PUBLIC_URL", ""),
			Endpoint:   getEnv("R2_ENDPOINT", ""),
		},
		SecretKey:  getEnv("SECRET_KEY", ""),
		CookieName: getEnv("COOKIE_NAME", "genposting_session"),
	}

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			slog.Info("Unable to apply config file", "path", path, "error", err.Error())
		}
	}

	return cfg
}

// DispatchFile is the yaml overlay for dispatcher tuning.
type DispatchFile struct {
	Dispatch struct {
		Interval  string `yaml:"interval"`
		Instagram struct {
			PollInterval  string `yaml:"pollInterval"`
			PollAttempts  int    `yaml:"pollAttempts"`
			CommentPacing string `yaml:"commentPacing"`
		} `yaml:"instagram"`
		LinkedIn struct {
			CommentPacing string `yaml:"commentPacing"`
		} `yaml:"linkedin"`
	} `yaml:"dispatch"`
}

// ApplyFile overrides dispatcher tuning with the values present in a yaml file.
// Empty fields keep the current value.
func (c *Config) ApplyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return c.ApplyYAML(raw)
}

func (c *Config) ApplyYAML(raw []byte) error {
	var f DispatchFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return err
	}

	d := f.Dispatch
	var errs []error
	set := func(dst *time.Duration, v string) {
		if v == "" {
			return
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, err)
			return
		}
		*dst = parsed
	}

	set(&c.DispatchInterval, d.Interval)
	set(&c.Instagram.PollInterval, d.Instagram.PollInterval)
	set(&c.Instagram.CommentPacing, d.Instagram.CommentPacing)
	set(&c.LinkedIn.CommentPacing, d.LinkedIn.CommentPacing)
	if d.Instagram.PollAttempts > 0 {
		c.Instagram.PollAttempts = d.Instagram.PollAttempts
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Info("Invalid duration in environment", "key", key, "value", value)
		return defaultValue
	}
	return d
}
