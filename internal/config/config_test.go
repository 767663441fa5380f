package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("APP_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "http://localhost:3000", cfg.AppURL)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.NotEmpty(t, cfg.CORSOrigins)
}

func TestLoadRequiresAppURLInProduction(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("APP_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APP_URL")
}

func TestLoadProviders(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("TWITTER_CLIENT_ID", "tw-id")
	t.Setenv("TWITTER_CLIENT_SECRET", "tw-secret")
	t.Setenv("LINKEDIN_CLIENT_ID", "li-id")
	t.Setenv("LINKEDIN_CLIENT_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)

	tw := cfg.Provider("twitter")
	require.NotNil(t, tw)
	assert.True(t, tw.Enabled)
	assert.Equal(t, "tw-id", tw.ClientID)
	assert.Equal(t, []string{"tweet.read", "tweet.write", "users.read", "offline.access"}, tw.Scopes)

	// a provider missing either credential stays disabled
	li := cfg.Provider("linkedin")
	require.NotNil(t, li)
	assert.False(t, li.Enabled)

	assert.Nil(t, cfg.Provider("myspace"))
}

func TestLoadProviderScopeOverride(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("TWITTER_CLIENT_ID", "tw-id")
	t.Setenv("TWITTER_CLIENT_SECRET", "tw-secret")
	t.Setenv("TWITTER_SCOPES", "tweet.read, users.read")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"tweet.read", "users.read"}, cfg.Provider("twitter").Scopes)
}

func TestCallbackAndSettingsURLs(t *testing.T) {
	cfg := &Config{AppURL: "https://app.example.com"}

	assert.Equal(t, "https://app.example.com/api/auth/twitter/callback", cfg.CallbackURL("twitter"))
	assert.Equal(t, "https://app.example.com/dashboard/settings", cfg.SettingsURL())
}

func TestValidateRejectsShortJWTSecret(t *testing.T) {
	cfg := &Config{
		Environment: "production",
		AppURL:      "https://app.example.com",
		JWTSecret:   "short",
		CORSOrigins: []string{"https://app.example.com"},
		Database:    DatabaseConfig{Type: "postgres"},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestValidateRejectsUnknownDatabase(t *testing.T) {
	cfg := &Config{
		Environment: "development",
		AppURL:      "https://app.example.com",
		CORSOrigins: []string{"https://app.example.com"},
		Database:    DatabaseConfig{Type: "mysql"},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database type")
}
