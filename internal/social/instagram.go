package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/nexura/nexura-server/internal/config"
	"github.com/nexura/nexura-server/internal/models"
)

// ErrMediaURLRequired is returned before any network call when an Instagram
// post has no media_url. Graph publishing only accepts media by URL.
var ErrMediaURLRequired = errors.New("instagram posts require a media_url")

// InstagramEndpoints holds the Instagram API URLs
type InstagramEndpoints struct {
	Authorize string
	Token     string
	Graph     string
}

// Instagram implements Provider for Instagram via the Graph API. Publishing
// is the two-step container flow: create a media container from a reachable
// URL, then publish it.
type Instagram struct {
	cfg         *config.ProviderConfig
	redirectURL string
	httpClient  *http.Client
	Endpoints   InstagramEndpoints
}

// NewInstagram creates the Instagram provider
func NewInstagram(cfg *config.ProviderConfig, redirectURL string) *Instagram {
	return &Instagram{
		cfg:         cfg,
		redirectURL: redirectURL,
		httpClient:  newHTTPClient(),
		Endpoints: InstagramEndpoints{
			Authorize: "https://api.instagram.com/oauth/authorize",
			Token:     "https://api.instagram.com/oauth/access_token",
			Graph:     "https://graph.instagram.com",
		},
	}
}

func (i *Instagram) Name() string {
	return "instagram"
}

// BuildAuthURL ignores the code challenge; Instagram's flow has no PKCE.
func (i *Instagram) BuildAuthURL(state, _ string) string {
	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", i.cfg.ClientID)
	params.Set("redirect_uri", i.redirectURL)
	params.Set("scope", strings.Join(i.cfg.Scopes, ","))
	params.Set("state", state)

	return i.Endpoints.Authorize + "?" + params.Encode()
}

// ExchangeCode exchanges the authorization code for an access token
func (i *Instagram) ExchangeCode(ctx context.Context, code, _ string) (*TokenPair, error) {
	data := url.Values{}
	data.Set("client_id", i.cfg.ClientID)
	data.Set("client_secret", i.cfg.ClientSecret)
	data.Set("grant_type", "authorization_code")
	data.Set("redirect_uri", i.redirectURL)
	data.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.Endpoints.Token, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token exchange request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, upstreamError(i.Name(), StageToken, resp)
	}

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if result.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}

	// Instagram issues no refresh token in this flow
	return &TokenPair{AccessToken: result.AccessToken}, nil
}

// FetchProfile reads id and username from the Graph API
func (i *Instagram) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	endpoint := i.Endpoints.Graph + "/me?fields=id,username&access_token=" + url.QueryEscape(accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile request: %w", err)
	}

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, upstreamError(i.Name(), StageProfile, resp)
	}

	var result struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode profile response: %w", err)
	}
	if result.Username == "" {
		return nil, fmt.Errorf("profile response missing username")
	}

	return &Profile{ID: result.ID, Username: result.Username}, nil
}

// CreatePost creates a media container from the post's media_url and
// publishes it
func (i *Instagram) CreatePost(ctx context.Context, account *models.SocialAccount, post *PostInput) (string, error) {
	if post.MediaURL == "" {
		return "", ErrMediaURLRequired
	}

	container := url.Values{}
	container.Set("caption", post.Text)
	container.Set("access_token", account.AccessToken)
	if post.MediaType == "video" {
		container.Set("media_type", "REELS")
		container.Set("video_url", post.MediaURL)
	} else {
		container.Set("image_url", post.MediaURL)
	}

	creationID, err := i.graphPost(ctx, "/"+account.ExternalID+"/media", container)
	if err != nil {
		return "", err
	}

	publish := url.Values{}
	publish.Set("creation_id", creationID)
	publish.Set("access_token", account.AccessToken)

	return i.graphPost(ctx, "/"+account.ExternalID+"/media_publish", publish)
}

func (i *Instagram) graphPost(ctx context.Context, path string, data url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.Endpoints.Graph+path, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create graph request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("graph request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", upstreamError(i.Name(), StagePost, resp)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode graph response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("graph response missing id")
	}

	return result.ID, nil
}
