package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Config holds application configuration
type Config struct {
	Port        int
	Environment string
	LogLevel    string
	AppURL      string
	Database    DatabaseConfig
	JWTSecret   string
	CORSOrigins []string
	Providers   map[string]*ProviderConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Type         string // postgres
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// ProviderConfig holds OAuth credentials for one social provider
type ProviderConfig struct {
	Enabled      bool
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// ProviderNames lists the social providers this server can link
var ProviderNames = []string{"twitter", "linkedin", "instagram"}

var defaultScopes = map[string][]string{
	"twitter":   {"tweet.read", "tweet.write", "users.read", "offline.access"},
	"linkedin":  {"openid", "profile", "email", "w_member_social"},
	"instagram": {"user_profile", "user_media"},
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	env := getEnv("ENVIRONMENT", "production")

	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		Environment: env,
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		AppURL:      strings.TrimRight(getEnv("APP_URL", ""), "/"),
		Database: DatabaseConfig{
			Type:         getEnv("DATABASE_TYPE", "postgres"),
			DSN:          getEnv("DATABASE_DSN", buildPostgresDSN()),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		},
		JWTSecret:   os.Getenv("JWT_SECRET"),
		CORSOrigins: loadCORSOrigins(),
		Providers:   loadProviders(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.AppURL == "" {
		if c.Environment == "production" {
			return fmt.Errorf("APP_URL is required")
		}
		c.AppURL = "http://localhost:3000"
	}

	if _, err := url.Parse(c.AppURL); err != nil {
		return fmt.Errorf("APP_URL is not a valid URL: %w", err)
	}

	if c.Database.Type != "postgres" {
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	if c.Environment == "production" && c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
	}

	if len(c.CORSOrigins) == 0 {
		return fmt.Errorf("at least one CORS origin must be configured")
	}

	return nil
}

// Provider returns the configuration for a provider, nil when unknown
func (c *Config) Provider(name string) *ProviderConfig {
	return c.Providers[name]
}

// CallbackURL returns the fixed OAuth callback URL for a provider
func (c *Config) CallbackURL(provider string) string {
	return c.AppURL + "/api/auth/" + provider + "/callback"
}

// SettingsURL returns the dashboard settings page all callback exits redirect to
func (c *Config) SettingsURL() string {
	return c.AppURL + "/dashboard/settings"
}

func buildPostgresDSN() string {
	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	user := getEnv("POSTGRES_USER", "nexura")
	password := getEnv("POSTGRES_PASSWORD", "secret")
	dbName := getEnv("POSTGRES_DB", "nexura")
	sslMode := getEnv("POSTGRES_SSLMODE", "disable")

	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(user, password),
		Host:   fmt.Sprintf("%s:%s", host, port),
		Path:   dbName,
	}

	query := u.Query()
	query.Set("sslmode", sslMode)
	u.RawQuery = query.Encode()

	return u.String()
}

func loadCORSOrigins() []string {
	if appURL := strings.TrimRight(os.Getenv("APP_URL"), "/"); appURL != "" {
		return []string{appURL}
	}

	return []string{"http://localhost:3000", "http://localhost:8080"}
}

// loadProviders reads <PROVIDER>_CLIENT_ID / <PROVIDER>_CLIENT_SECRET for
// every known provider. A provider with missing credentials stays disabled;
// using it surfaces a configuration error at request time.
func loadProviders() map[string]*ProviderConfig {
	providers := make(map[string]*ProviderConfig, len(ProviderNames))

	for _, name := range ProviderNames {
		prefix := strings.ToUpper(name)
		clientID := os.Getenv(prefix + "_CLIENT_ID")
		clientSecret := os.Getenv(prefix + "_CLIENT_SECRET")

		scopes := defaultScopes[name]
		if scopesEnv := os.Getenv(prefix + "_SCOPES"); scopesEnv != "" {
			scopes = splitAndTrim(scopesEnv, ",")
		}

		providers[name] = &ProviderConfig{
			Enabled:      clientID != "" && clientSecret != "",
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       scopes,
		}
	}

	return providers
}

func splitAndTrim(s, sep string) []string {
	parts := []string{}
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}
