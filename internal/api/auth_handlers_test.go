package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nexura/nexura-server/internal/config"
	"github.com/nexura/nexura-server/internal/models"
	"github.com/nexura/nexura-server/internal/social"
	"github.com/nexura/nexura-server/internal/store"
)

type fakeAccountStore struct {
	accounts  map[string]*models.SocialAccount
	upserts   []*models.SocialAccount
	prepends  []models.PostRecord
	upsertErr error
}

func newFakeAccountStore() *fakeAccountStore {
	return &fakeAccountStore{accounts: make(map[string]*models.SocialAccount)}
}

func (f *fakeAccountStore) ReadAccount(ctx context.Context, uid, provider string) (*models.SocialAccount, error) {
	acct, ok := f.accounts[uid+"/"+provider]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	return acct, nil
}

func (f *fakeAccountStore) UpsertAccount(ctx context.Context, acct *models.SocialAccount) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	key := acct.UserID + "/" + acct.Provider
	if existing, ok := f.accounts[key]; ok {
		acct.Posts = existing.Posts
	}
	f.accounts[key] = acct
	f.upserts = append(f.upserts, acct)
	return nil
}

func (f *fakeAccountStore) PrependPost(ctx context.Context, uid, provider string, post models.PostRecord) error {
	acct, ok := f.accounts[uid+"/"+provider]
	if !ok {
		return store.ErrAccountNotFound
	}
	acct.Posts = append(models.PostList{post}, acct.Posts...)
	f.prepends = append(f.prepends, post)
	return nil
}

func (f *fakeAccountStore) UserDocument(ctx context.Context, uid string) (map[string]any, error) {
	doc := map[string]any{"id": uid}
	found := false
	for _, acct := range f.accounts {
		if acct.UserID == uid {
			doc[models.AccountKey(acct.Provider)] = acct.Document()
			found = true
		}
	}
	if !found {
		return nil, store.ErrUserNotFound
	}
	return doc, nil
}

type fakeSessionStore struct {
	sessions  map[string]*models.OAuthSession
	createErr error
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*models.OAuthSession)}
}

func (f *fakeSessionStore) CreateSession(ctx context.Context, session *models.OAuthSession) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.sessions[session.Nonce] = session
	return nil
}

func (f *fakeSessionStore) ConsumeSession(ctx context.Context, nonce string) (*models.OAuthSession, error) {
	session, ok := f.sessions[nonce]
	if !ok || session.ExpiresAt.Before(time.Now()) {
		return nil, store.ErrSessionNotFound
	}
	delete(f.sessions, nonce)
	return session, nil
}

type fakeNotifier struct {
	events []string
}

func (f *fakeNotifier) Notify(userID, eventType string, payload any) {
	f.events = append(f.events, userID+":"+eventType)
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		AppURL:      "https://app.example.com",
		CORSOrigins: []string{"https://app.example.com"},
		Providers: map[string]*config.ProviderConfig{
			"twitter": {
				Enabled:      true,
				ClientID:     "client-id",
				ClientSecret: "client-secret",
				Scopes:       []string{"tweet.read", "tweet.write", "users.read", "offline.access"},
			},
		},
	}
}

func testRegistry(cfg *config.Config) (*social.Registry, *social.Twitter) {
	tw := social.NewTwitter(cfg.Provider("twitter"), cfg.CallbackURL("twitter"))
	reg := social.NewRegistry(&config.Config{Providers: map[string]*config.ProviderConfig{}}, zap.NewNop())
	reg.Register(tw)
	return reg, tw
}

func authRouter(cfg *config.Config, accounts AccountStore, sessions SessionStore, providers *social.Registry, hub Notifier) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/api/auth/{provider}", HandleAuthorize(cfg, sessions, providers, zap.NewNop()))
	r.Get("/api/auth/{provider}/callback", HandleCallback(cfg, accounts, sessions, providers, hub, zap.NewNop()))
	return r
}

func jsonDecode(rec *httptest.ResponseRecorder, v any) error {
	return json.NewDecoder(rec.Body).Decode(v)
}

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestHandleAuthorizeRequiresIdentity(t *testing.T) {
	cfg := testConfig()
	reg, _ := testRegistry(cfg)
	r := authRouter(cfg, newFakeAccountStore(), newFakeSessionStore(), reg, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/twitter", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestHandleAuthorizeReturnsURLAndCookies(t *testing.T) {
	cfg := testConfig()
	reg, _ := testRegistry(cfg)
	sessions := newFakeSessionStore()
	r := authRouter(cfg, newFakeAccountStore(), sessions, reg, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/twitter", nil)
	req.Header.Set("x-user-id", "user-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, jsonDecode(rec, &body))
	authURL, err := url.Parse(body["url"])
	require.NoError(t, err)
	q := authURL.Query()
	assert.Equal(t, "user-1", q.Get("state"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))

	cookies := rec.Result().Cookies()
	verifier := cookieByName(cookies, "code_verifier")
	require.NotNil(t, verifier)
	assert.Len(t, verifier.Value, 43)
	assert.True(t, verifier.HttpOnly)
	assert.Equal(t, 600, verifier.MaxAge)

	nonce := cookieByName(cookies, "oauth_session")
	require.NotNil(t, nonce)
	session, ok := sessions.sessions[nonce.Value]
	require.True(t, ok)
	assert.Equal(t, "user-1", session.UserID)
	assert.Equal(t, "twitter", session.Provider)

	// challenge must be derived from the cookied verifier
	assert.Equal(t, social.GenerateCodeChallenge(verifier.Value), q.Get("code_challenge"))
}

func TestHandleCallbackMissingParams(t *testing.T) {
	cfg := testConfig()
	reg, tw := testRegistry(cfg)
	tw.Endpoints.Token = "http://127.0.0.1:1/unreachable"
	r := authRouter(cfg, newFakeAccountStore(), newFakeSessionStore(), reg, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/twitter/callback?code=abc", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://app.example.com/dashboard/settings?error=missing_params", rec.Header().Get("Location"))
}

func TestHandleCallbackStateMismatch(t *testing.T) {
	cfg := testConfig()
	reg, _ := testRegistry(cfg)
	sessions := newFakeSessionStore()
	sessions.sessions["nonce-1"] = &models.OAuthSession{
		Nonce:     "nonce-1",
		UserID:    "user-1",
		Provider:  "twitter",
		ExpiresAt: time.Now().Add(time.Minute),
	}
	r := authRouter(cfg, newFakeAccountStore(), sessions, reg, nil)

	// the state names a different user than the session cookie
	req := httptest.NewRequest(http.MethodGet, "/api/auth/twitter/callback?code=abc&state=user-2", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_session", Value: "nonce-1"})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://app.example.com/dashboard/settings?error=state_mismatch", rec.Header().Get("Location"))
}

func TestHandleCallbackNoSessionCookie(t *testing.T) {
	cfg := testConfig()
	reg, _ := testRegistry(cfg)
	r := authRouter(cfg, newFakeAccountStore(), newFakeSessionStore(), reg, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/twitter/callback?code=abc&state=user-1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://app.example.com/dashboard/settings?error=state_mismatch", rec.Header().Get("Location"))
}

func TestHandleCallbackTokenExchangeFailed(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer tokenSrv.Close()

	profileCalled := false
	profileSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		profileCalled = true
	}))
	defer profileSrv.Close()

	cfg := testConfig()
	reg, tw := testRegistry(cfg)
	tw.Endpoints.Token = tokenSrv.URL
	tw.Endpoints.UserInfo = profileSrv.URL

	sessions := newFakeSessionStore()
	sessions.sessions["nonce-1"] = &models.OAuthSession{
		Nonce: "nonce-1", UserID: "user-1", Provider: "twitter", ExpiresAt: time.Now().Add(time.Minute),
	}
	r := authRouter(cfg, newFakeAccountStore(), sessions, reg, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/twitter/callback?code=bad&state=user-1", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_session", Value: "nonce-1"})
	req.AddCookie(&http.Cookie{Name: "code_verifier", Value: "verifier"})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://app.example.com/dashboard/settings?error=token_exchange_failed", rec.Header().Get("Location"))
	assert.False(t, profileCalled)
}

func TestHandleCallbackSuccess(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-verifier", r.PostForm.Get("code_verifier"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1"}`))
	}))
	defer tokenSrv.Close()

	profileSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"id":"42","username":"jack","profile_image_url":"https://pbs.example.com/jack.png"}}`))
	}))
	defer profileSrv.Close()

	cfg := testConfig()
	reg, tw := testRegistry(cfg)
	tw.Endpoints.Token = tokenSrv.URL
	tw.Endpoints.UserInfo = profileSrv.URL

	accounts := newFakeAccountStore()
	sessions := newFakeSessionStore()
	sessions.sessions["nonce-1"] = &models.OAuthSession{
		Nonce: "nonce-1", UserID: "user-1", Provider: "twitter", ExpiresAt: time.Now().Add(time.Minute),
	}
	hub := &fakeNotifier{}
	r := authRouter(cfg, accounts, sessions, reg, hub)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/twitter/callback?code=good&state=user-1", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_session", Value: "nonce-1"})
	req.AddCookie(&http.Cookie{Name: "code_verifier", Value: "the-verifier"})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://app.example.com/dashboard/settings?success=true", rec.Header().Get("Location"))

	require.Len(t, accounts.upserts, 1)
	acct := accounts.upserts[0]
	assert.Equal(t, "user-1", acct.UserID)
	assert.Equal(t, "twitter", acct.Provider)
	assert.Equal(t, "42", acct.ExternalID)
	assert.Equal(t, "jack", acct.Username)
	assert.Equal(t, "at-1", acct.AccessToken)
	require.NotNil(t, acct.RefreshToken)
	assert.Equal(t, "rt-1", *acct.RefreshToken)

	// flow cookies cleared, session consumed, dashboard notified
	verifier := cookieByName(rec.Result().Cookies(), "code_verifier")
	require.NotNil(t, verifier)
	assert.Equal(t, -1, verifier.MaxAge)
	assert.Empty(t, sessions.sessions)
	assert.Equal(t, []string{"user-1:account_connected"}, hub.events)
}

func TestHandleCallbackStorageUnavailable(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-1"}`))
	}))
	defer tokenSrv.Close()

	profileSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"id":"42","username":"jack"}}`))
	}))
	defer profileSrv.Close()

	cfg := testConfig()
	reg, tw := testRegistry(cfg)
	tw.Endpoints.Token = tokenSrv.URL
	tw.Endpoints.UserInfo = profileSrv.URL

	accounts := newFakeAccountStore()
	accounts.upsertErr = assert.AnError
	sessions := newFakeSessionStore()
	sessions.sessions["nonce-1"] = &models.OAuthSession{
		Nonce: "nonce-1", UserID: "user-1", Provider: "twitter", ExpiresAt: time.Now().Add(time.Minute),
	}
	r := authRouter(cfg, accounts, sessions, reg, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/twitter/callback?code=good&state=user-1", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_session", Value: "nonce-1"})
	req.AddCookie(&http.Cookie{Name: "code_verifier", Value: "v"})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://app.example.com/dashboard/settings?error=storage_unavailable", rec.Header().Get("Location"))
}
