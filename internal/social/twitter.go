package social

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/nexura/nexura-server/internal/config"
	"github.com/nexura/nexura-server/internal/models"
)

// TwitterEndpoints holds the Twitter API URLs; fields exist so tests can
// point the provider at local servers.
type TwitterEndpoints struct {
	Authorize   string
	Token       string
	UserInfo    string
	Tweets      string
	MediaUpload string
}

// Twitter implements Provider for Twitter/X: OAuth 2.0 authorization code
// with PKCE (S256), token exchange over HTTP Basic auth, v2 user lookup and
// tweet creation, v1.1 media upload.
type Twitter struct {
	cfg         *config.ProviderConfig
	redirectURL string
	httpClient  *http.Client
	Endpoints   TwitterEndpoints
}

// NewTwitter creates the Twitter provider
func NewTwitter(cfg *config.ProviderConfig, redirectURL string) *Twitter {
	return &Twitter{
		cfg:         cfg,
		redirectURL: redirectURL,
		httpClient:  newHTTPClient(),
		Endpoints: TwitterEndpoints{
			Authorize:   "https://twitter.com/i/oauth2/authorize",
			Token:       "https://api.twitter.com/2/oauth2/token",
			UserInfo:    "https://api.twitter.com/2/users/me",
			Tweets:      "https://api.twitter.com/2/tweets",
			MediaUpload: "https://upload.twitter.com/1.1/media/upload.json",
		},
	}
}

func (t *Twitter) Name() string {
	return "twitter"
}

// BuildAuthURL returns the provider authorization URL with PKCE parameters
func (t *Twitter) BuildAuthURL(state, codeChallenge string) string {
	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", t.cfg.ClientID)
	params.Set("redirect_uri", t.redirectURL)
	params.Set("scope", strings.Join(t.cfg.Scopes, " "))
	params.Set("state", state)
	params.Set("code_challenge", codeChallenge)
	params.Set("code_challenge_method", "S256")

	return t.Endpoints.Authorize + "?" + params.Encode()
}

// ExchangeCode exchanges the authorization code for tokens. An empty
// verifier is forwarded as-is; the provider rejects the exchange, which is
// the intended failure path when the verifier cookie has gone missing.
// Codes are single-use, so a failed exchange is never retried.
func (t *Twitter) ExchangeCode(ctx context.Context, code, codeVerifier string) (*TokenPair, error) {
	data := url.Values{}
	data.Set("code", code)
	data.Set("grant_type", "authorization_code")
	data.Set("client_id", t.cfg.ClientID)
	data.Set("redirect_uri", t.redirectURL)
	data.Set("code_verifier", codeVerifier)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Endpoints.Token, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+basicCredentials(t.cfg.ClientID, t.cfg.ClientSecret))

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token exchange request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, upstreamError(t.Name(), StageToken, resp)
	}

	var result struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if result.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}

	return &TokenPair{AccessToken: result.AccessToken, RefreshToken: result.RefreshToken}, nil
}

// FetchProfile fetches the authenticated user's handle and avatar
func (t *Twitter) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.Endpoints.UserInfo+"?user.fields=username,profile_image_url", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, upstreamError(t.Name(), StageProfile, resp)
	}

	var result struct {
		Data struct {
			ID              string `json:"id"`
			Username        string `json:"username"`
			ProfileImageURL string `json:"profile_image_url"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode profile response: %w", err)
	}
	if result.Data.Username == "" {
		return nil, fmt.Errorf("profile response missing username")
	}

	return &Profile{
		ID:           result.Data.ID,
		Username:     result.Data.Username,
		ProfileImage: result.Data.ProfileImageURL,
	}, nil
}

// CreatePost publishes a tweet, uploading attached media first
func (t *Twitter) CreatePost(ctx context.Context, account *models.SocialAccount, post *PostInput) (string, error) {
	payload := map[string]any{"text": post.Text}

	if len(post.Media) > 0 {
		mediaID, err := t.uploadMedia(ctx, account.AccessToken, post)
		if err != nil {
			return "", err
		}
		payload["media"] = map[string]any{"media_ids": []string{mediaID}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode tweet payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Endpoints.Tweets, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create tweet request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+account.AccessToken)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("tweet request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", upstreamError(t.Name(), StagePost, resp)
	}

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode tweet response: %w", err)
	}
	if result.Data.ID == "" {
		return "", fmt.Errorf("tweet response missing id")
	}

	return result.Data.ID, nil
}

// uploadMedia pushes the file through the v1.1 simple upload endpoint and
// returns the media id to attach to the tweet
func (t *Twitter) uploadMedia(ctx context.Context, accessToken string, post *PostInput) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("media", "media")
	if err != nil {
		return "", fmt.Errorf("failed to build media upload: %w", err)
	}
	if _, err := part.Write(post.Media); err != nil {
		return "", fmt.Errorf("failed to build media upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to build media upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Endpoints.MediaUpload, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create media upload request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("media upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", upstreamError(t.Name(), StagePost, resp)
	}

	var result struct {
		MediaIDString string `json:"media_id_string"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode media upload response: %w", err)
	}
	if result.MediaIDString == "" {
		return "", fmt.Errorf("media upload response missing media id")
	}

	return result.MediaIDString, nil
}

func basicCredentials(clientID, clientSecret string) string {
	return base64.StdEncoding.EncodeToString([]byte(clientID + ":" + clientSecret))
}
