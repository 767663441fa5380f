package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/nexura/nexura-server/internal/config"
	"github.com/nexura/nexura-server/internal/models"
)

// LinkedInEndpoints holds the LinkedIn API URLs
type LinkedInEndpoints struct {
	Authorize     string
	Token         string
	UserInfo      string
	Posts         string
	RegisterAsset string
}

// LinkedIn implements Provider for LinkedIn. The token exchange carries the
// client secret in the form body (no PKCE); identity comes from the OpenID
// userinfo endpoint and posts go through ugcPosts.
type LinkedIn struct {
	cfg         *config.ProviderConfig
	redirectURL string
	httpClient  *http.Client
	Endpoints   LinkedInEndpoints
}

// NewLinkedIn creates the LinkedIn provider
func NewLinkedIn(cfg *config.ProviderConfig, redirectURL string) *LinkedIn {
	return &LinkedIn{
		cfg:         cfg,
		redirectURL: redirectURL,
		httpClient:  newHTTPClient(),
		Endpoints: LinkedInEndpoints{
			Authorize:     "https://www.linkedin.com/oauth/v2/authorization",
			Token:         "https://www.linkedin.com/oauth/v2/accessToken",
			UserInfo:      "https://api.linkedin.com/v2/userinfo",
			Posts:         "https://api.linkedin.com/v2/ugcPosts",
			RegisterAsset: "https://api.linkedin.com/v2/assets?action=registerUpload",
		},
	}
}

func (l *LinkedIn) Name() string {
	return "linkedin"
}

// BuildAuthURL ignores the code challenge; LinkedIn does not support PKCE
// for confidential clients.
func (l *LinkedIn) BuildAuthURL(state, _ string) string {
	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", l.cfg.ClientID)
	params.Set("redirect_uri", l.redirectURL)
	params.Set("scope", strings.Join(l.cfg.Scopes, " "))
	params.Set("state", state)

	return l.Endpoints.Authorize + "?" + params.Encode()
}

// ExchangeCode exchanges the authorization code for tokens
func (l *LinkedIn) ExchangeCode(ctx context.Context, code, _ string) (*TokenPair, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", l.redirectURL)
	data.Set("client_id", l.cfg.ClientID)
	data.Set("client_secret", l.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.Endpoints.Token, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token exchange request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, upstreamError(l.Name(), StageToken, resp)
	}

	var result struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
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

// FetchProfile reads the OpenID userinfo claims
func (l *LinkedIn) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.Endpoints.UserInfo, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, upstreamError(l.Name(), StageProfile, resp)
	}

	var result struct {
		Sub     string `json:"sub"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode profile response: %w", err)
	}
	if result.Sub == "" {
		return nil, fmt.Errorf("profile response missing sub claim")
	}

	username := result.Name
	if username == "" {
		username = result.Sub
	}

	return &Profile{ID: result.Sub, Username: username, ProfileImage: result.Picture}, nil
}

// CreatePost publishes a ugcPost under the member's URN, registering an
// image asset first when media is attached
func (l *LinkedIn) CreatePost(ctx context.Context, account *models.SocialAccount, post *PostInput) (string, error) {
	author := "urn:li:person:" + account.ExternalID

	shareContent := map[string]any{
		"shareCommentary":    map[string]any{"text": post.Text},
		"shareMediaCategory": "NONE",
	}

	if len(post.Media) > 0 {
		asset, err := l.uploadAsset(ctx, account.AccessToken, author, post)
		if err != nil {
			return "", err
		}
		shareContent["shareMediaCategory"] = "IMAGE"
		shareContent["media"] = []map[string]any{
			{"status": "READY", "media": asset},
		}
	}

	payload := map[string]any{
		"author":         author,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": shareContent,
		},
		"visibility": map[string]any{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode post payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.Endpoints.Posts, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create post request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")
	req.Header.Set("Authorization", "Bearer "+account.AccessToken)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("post request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", upstreamError(l.Name(), StagePost, resp)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode post response: %w", err)
	}
	if result.ID == "" {
		// ugcPosts also exposes the id as a response header
		result.ID = resp.Header.Get("X-RestLi-Id")
	}
	if result.ID == "" {
		return "", fmt.Errorf("post response missing id")
	}

	return result.ID, nil
}

// uploadAsset registers an upload slot and PUTs the image bytes into it,
// returning the asset URN
func (l *LinkedIn) uploadAsset(ctx context.Context, accessToken, owner string, post *PostInput) (string, error) {
	register := map[string]any{
		"registerUploadRequest": map[string]any{
			"recipes": []string{"urn:li:digitalmediaRecipe:feedshare-image"},
			"owner":   owner,
			"serviceRelationships": []map[string]any{
				{"relationshipType": "OWNER", "identifier": "urn:li:userGeneratedContent"},
			},
		},
	}

	body, err := json.Marshal(register)
	if err != nil {
		return "", fmt.Errorf("failed to encode upload registration: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.Endpoints.RegisterAsset, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create upload registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload registration request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", upstreamError(l.Name(), StagePost, resp)
	}

	var result struct {
		Value struct {
			Asset           string `json:"asset"`
			UploadMechanism map[string]struct {
				UploadURL string `json:"uploadUrl"`
			} `json:"uploadMechanism"`
		} `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode upload registration response: %w", err)
	}

	var uploadURL string
	for _, mechanism := range result.Value.UploadMechanism {
		if mechanism.UploadURL != "" {
			uploadURL = mechanism.UploadURL
			break
		}
	}
	if result.Value.Asset == "" || uploadURL == "" {
		return "", fmt.Errorf("upload registration response missing asset or upload URL")
	}

	putReq, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(post.Media))
	if err != nil {
		return "", fmt.Errorf("failed to create media upload request: %w", err)
	}
	if post.MediaMIME != "" {
		putReq.Header.Set("Content-Type", post.MediaMIME)
	}
	putReq.Header.Set("Authorization", "Bearer "+accessToken)

	putResp, err := l.httpClient.Do(putReq)
	if err != nil {
		return "", fmt.Errorf("media upload request failed: %w", err)
	}
	defer putResp.Body.Close()

	if putResp.StatusCode < 200 || putResp.StatusCode > 299 {
		return "", upstreamError(l.Name(), StagePost, putResp)
	}

	return result.Value.Asset, nil
}
