package social

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nexura/nexura-server/internal/config"
	"github.com/nexura/nexura-server/internal/models"
)

// Stage identifies which provider interaction failed
type Stage string

const (
	StageToken   Stage = "token"
	StageProfile Stage = "profile"
	StagePost    Stage = "post"
)

// UpstreamError is a non-2xx answer from a provider endpoint. The body is
// kept for server-side logging only and must never reach the browser.
type UpstreamError struct {
	Provider   string
	Stage      Stage
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s %s endpoint returned status %d", e.Provider, e.Stage, e.StatusCode)
}

// Unauthorized reports whether the provider rejected the stored token
func (e *UpstreamError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// TokenPair holds the tokens issued by a provider's token endpoint.
// Both are opaque; nothing beyond presence is validated locally.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Profile holds the provider-side identity fetched after token exchange
type Profile struct {
	ID           string
	Username     string
	ProfileImage string
}

// PostInput is one post to publish through a provider. Media carries the
// uploaded file for providers that accept binary uploads; MediaURL is for
// providers (Instagram) that only publish from a reachable URL.
type PostInput struct {
	Text      string
	Media     []byte
	MediaMIME string
	MediaType string // image | video
	MediaURL  string
}

// Provider is one social network's OAuth and posting capability. Providers
// that do not use PKCE ignore the code challenge and verifier arguments.
type Provider interface {
	Name() string
	BuildAuthURL(state, codeChallenge string) string
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*TokenPair, error)
	FetchProfile(ctx context.Context, accessToken string) (*Profile, error)
	CreatePost(ctx context.Context, account *models.SocialAccount, post *PostInput) (string, error)
}

// Registry holds the providers enabled by configuration
type Registry struct {
	providers map[string]Provider
}

// NewRegistry constructs a provider for every configuration entry that has
// credentials. Disabled providers stay absent and surface a configuration
// error when used.
func NewRegistry(cfg *config.Config, logger *zap.Logger) *Registry {
	r := &Registry{providers: make(map[string]Provider)}

	for name, pc := range cfg.Providers {
		if pc == nil || !pc.Enabled {
			continue
		}

		switch name {
		case "twitter":
			r.Register(NewTwitter(pc, cfg.CallbackURL(name)))
		case "linkedin":
			r.Register(NewLinkedIn(pc, cfg.CallbackURL(name)))
		case "instagram":
			r.Register(NewInstagram(pc, cfg.CallbackURL(name)))
		default:
			logger.Warn("Unknown social provider configured", zap.String("provider", name))
		}
	}

	return r
}

// Register adds or replaces a provider
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// Get returns a provider by name
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Names returns the names of all registered providers
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// upstreamError drains up to 4 KiB of the response body into the error
func upstreamError(provider string, stage Stage, resp *http.Response) *UpstreamError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &UpstreamError{
		Provider:   provider,
		Stage:      stage,
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
}
