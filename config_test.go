package postadmin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDefaults(t *testing.T) {
	var cfg SiteConfig
	cfg.setDefaults()

	assert.Equal(t, "Posts", cfg.Name)
	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "data/posts.db", cfg.DatabasePath)
	assert.Equal(t, "local", cfg.AssetBackend)
	assert.Equal(t, "public", cfg.UploadsDir)
	assert.Equal(t, 5*time.Minute, cfg.CategoryCacheTTL)
	assert.Equal(t, DefaultPageSize, cfg.PageSize)
	assert.Equal(t, "info", cfg.LogLevel)

	cfg = SiteConfig{PageSize: MaxPageSize + 1}
	cfg.setDefaults()
	assert.Equal(t, DefaultPageSize, cfg.PageSize)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("SITE_NAME", "Newsroom")
	t.Setenv("DATABASE_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/posts")
	t.Setenv("COOKIE_SECURE", "true")
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("CATEGORY_CACHE_TTL", "30s")
	t.Setenv("PAGE_SIZE", "25")
	t.Setenv("ASSET_BACKEND", "")

	cfg := LoadConfig()
	assert.Equal(t, "Newsroom", cfg.Name)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 30*time.Second, cfg.CategoryCacheTTL)
	assert.Equal(t, 25, cfg.PageSize)
	assert.Equal(t, "local", cfg.AssetBackend)
}

func TestValidate(t *testing.T) {
	cfg := SiteConfig{SessionSecret: "s"}
	_, err := cfg.Validate()
	require.ErrorContains(t, err, "ADMIN_PASSWORD")

	cfg = SiteConfig{AdminPassword: "p"}
	_, err = cfg.Validate()
	require.ErrorContains(t, err, "SESSION_SECRET")

	cfg = SiteConfig{AdminPassword: "p", SessionSecret: "s", DatabaseDriver: "postgres"}
	_, err = cfg.Validate()
	require.ErrorContains(t, err, "DATABASE_URL")

	cfg = SiteConfig{AdminPassword: "p", SessionSecret: "s", AssetBackend: "s3"}
	_, err = cfg.Validate()
	require.ErrorContains(t, err, "S3_BUCKET")

	cfg = SiteConfig{AdminPasswordHash: "$2a$...", SessionSecret: "s", URL: "https://example.com"}
	warnings, err := cfg.Validate()
	require.NoError(t, err)
	assert.Len(t, warnings, 3)

	cfg = SiteConfig{AdminPassword: "p", SessionSecret: "s", RabbitMQURL: "amqp://", APIJWTSecret: "k", CookieSecure: true}
	warnings, err = cfg.Validate()
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestEnvOr(t *testing.T) {
	t.Setenv("POSTADMIN_TEST_KEY", "")
	assert.Equal(t, "fallback", EnvOr("POSTADMIN_TEST_KEY", "fallback"))
	t.Setenv("POSTADMIN_TEST_KEY", "set")
	assert.Equal(t, "set", EnvOr("POSTADMIN_TEST_KEY", "fallback"))
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a", "b"}, splitList("a, b,"))
}
