package postadmin

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// SiteConfig holds all configuration for a postadmin instance.
type SiteConfig struct {
	Name string // Site name (default "Posts")
	URL  string // Canonical URL (default "http://localhost:3000")
	Addr string // Listen address (default ":3000")

	DatabaseDriver string // "sqlite" (default) or "postgres"
	DatabasePath   string // SQLite path (default "data/posts.db")
	DatabaseURL    string // Postgres URL

	AdminPassword     string // plain admin password
	AdminPasswordHash string // bcrypt hash, preferred over AdminPassword
	SessionSecret     string // Required: session encryption secret
	CookieSecure      bool   // Set true for HTTPS

	AssetBackend string // "local" (default) or "s3"
	UploadsDir   string // local asset root (default "public")
	S3Bucket     string
	AWSRegion    string // default "us-east-1"
	S3Endpoint   string
	S3PublicURL  string

	RabbitMQURL  string   // empty disables post.published events
	APIJWTSecret string   // empty disables the JSON API
	CORSOrigins  []string // allowed origins for the JSON API

	CategoryCacheTTL time.Duration // default 5min
	PageSize         int           // admin list page size (default 10)

	Log      string // "dev" for the development logger
	LogLevel string // default "info"
	LogDir   string // rotated log directory (default "logs")
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Posts"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabaseDriver == "" {
		c.DatabaseDriver = "sqlite"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/posts.db"
	}
	if c.AssetBackend == "" {
		c.AssetBackend = "local"
	}
	if c.UploadsDir == "" {
		c.UploadsDir = "public"
	}
	if c.AWSRegion == "" {
		c.AWSRegion = "us-east-1"
	}
	if c.CategoryCacheTTL == 0 {
		c.CategoryCacheTTL = 5 * time.Minute
	}
	if c.PageSize <= 0 || c.PageSize > MaxPageSize {
		c.PageSize = DefaultPageSize
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// LoadConfig reads .env (if present) and the environment. It does not log so
// it can run before the logger exists.
func LoadConfig() SiteConfig {
	_ = godotenv.Load()

	cfg := SiteConfig{
		Name: os.Getenv("SITE_NAME"),
		URL:  os.Getenv("SITE_URL"),
		Addr: os.Getenv("ADDR"),

		DatabaseDriver: strings.ToLower(os.Getenv("DATABASE_DRIVER")),
		DatabasePath:   os.Getenv("DATABASE_PATH"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),

		AdminPassword:     os.Getenv("ADMIN_PASSWORD"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		SessionSecret:     os.Getenv("SESSION_SECRET"),
		CookieSecure:      envBool("COOKIE_SECURE"),

		AssetBackend: strings.ToLower(os.Getenv("ASSET_BACKEND")),
		UploadsDir:   os.Getenv("UPLOADS_DIR"),
		S3Bucket:     os.Getenv("S3_BUCKET"),
		AWSRegion:    os.Getenv("AWS_REGION"),
		S3Endpoint:   os.Getenv("S3_ENDPOINT"),
		S3PublicURL:  os.Getenv("S3_PUBLIC_URL"),

		RabbitMQURL:  os.Getenv("RABBITMQ_URL"),
		APIJWTSecret: os.Getenv("API_JWT_SECRET"),
		CORSOrigins:  splitList(os.Getenv("CORS_ORIGINS")),

		Log:      strings.ToLower(os.Getenv("LOG")),
		LogLevel: strings.ToLower(os.Getenv("LOG_LEVEL")),
		LogDir:   EnvOr("LOG_DIR", "logs"),
	}
	if d, err := time.ParseDuration(os.Getenv("CATEGORY_CACHE_TTL")); err == nil {
		cfg.CategoryCacheTTL = d
	}
	if n, err := strconv.Atoi(os.Getenv("PAGE_SIZE")); err == nil {
		cfg.PageSize = n
	}
	cfg.setDefaults()
	return cfg
}

// Validate returns warnings for optional integrations left unconfigured and
// an error when the admin panel cannot run safely.
func (c *SiteConfig) Validate() (warnings []string, err error) {
	if c.AdminPassword == "" && c.AdminPasswordHash == "" {
		return nil, errors.New("postadmin: ADMIN_PASSWORD or ADMIN_PASSWORD_HASH is required")
	}
	if c.SessionSecret == "" {
		return nil, errors.New("postadmin: SESSION_SECRET is required")
	}
	if c.DatabaseDriver == "postgres" && c.DatabaseURL == "" {
		return nil, errors.New("postadmin: DATABASE_URL is required for the postgres driver")
	}
	if c.AssetBackend == "s3" && c.S3Bucket == "" {
		return nil, errors.New("postadmin: S3_BUCKET is required for the s3 asset backend")
	}
	if c.RabbitMQURL == "" {
		warnings = append(warnings, "RABBITMQ_URL is empty, post.published events are disabled")
	}
	if c.APIJWTSecret == "" {
		warnings = append(warnings, "API_JWT_SECRET is empty, the JSON API is disabled")
	}
	if !c.CookieSecure && strings.HasPrefix(c.URL, "https://") {
		warnings = append(warnings, "COOKIE_SECURE is off for an https site")
	}
	return warnings, nil
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	b, _ := strconv.ParseBool(os.Getenv(key))
	return b
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
