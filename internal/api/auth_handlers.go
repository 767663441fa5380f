package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexura/nexura-server/internal/config"
	"github.com/nexura/nexura-server/internal/models"
	"github.com/nexura/nexura-server/internal/social"
)

const (
	verifierCookieName = "code_verifier"
	sessionCookieName  = "oauth_session"

	// flowTTL bounds one authorization attempt: cookie lifetime and
	// server-side session expiry both.
	flowTTL = 10 * time.Minute
)

// AccountStore is the slice of persistence the handlers need
type AccountStore interface {
	ReadAccount(ctx context.Context, uid, provider string) (*models.SocialAccount, error)
	UpsertAccount(ctx context.Context, acct *models.SocialAccount) error
	PrependPost(ctx context.Context, uid, provider string, post models.PostRecord) error
	UserDocument(ctx context.Context, uid string) (map[string]any, error)
}

// SessionStore persists in-flight authorization attempts
type SessionStore interface {
	CreateSession(ctx context.Context, session *models.OAuthSession) error
	ConsumeSession(ctx context.Context, nonce string) (*models.OAuthSession, error)
}

// Notifier pushes dashboard events; nil disables pushing
type Notifier interface {
	Notify(userID, eventType string, payload any)
}

// HandleAuthorize initiates the OAuth flow for a provider: generates the
// PKCE pair, records a nonce session bound to the caller, and returns the
// authorization URL with verifier and nonce set as short-lived cookies.
func HandleAuthorize(cfg *config.Config, sessions SessionStore, providers *social.Registry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerName := chi.URLParam(r, "provider")

		uid := callerIdentity(r, cfg.JWTSecret)
		if uid == "" {
			respondError(w, http.StatusBadRequest, "User ID is required")
			return
		}

		provider, ok := providers.Get(providerName)
		if !ok {
			pc := cfg.Provider(providerName)
			logger.Error("Provider is not configured",
				zap.String("provider", providerName),
				zap.Bool("has_client_id", pc != nil && pc.ClientID != ""),
				zap.Bool("has_client_secret", pc != nil && pc.ClientSecret != ""),
			)
			respondError(w, http.StatusInternalServerError, "Failed to initialize "+providerName+" authentication")
			return
		}

		verifier, err := social.GenerateCodeVerifier()
		if err != nil {
			logger.Error("Failed to generate code verifier", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "Failed to initialize "+providerName+" authentication")
			return
		}
		challenge := social.GenerateCodeChallenge(verifier)

		now := time.Now().UTC()
		session := &models.OAuthSession{
			Nonce:     uuid.NewString(),
			UserID:    uid,
			Provider:  providerName,
			CreatedAt: now,
			ExpiresAt: now.Add(flowTTL),
		}
		if err := sessions.CreateSession(r.Context(), session); err != nil {
			logger.Error("Failed to create oauth session", zap.String("provider", providerName), zap.Error(err))
			respondError(w, http.StatusInternalServerError, "Failed to initialize "+providerName+" authentication")
			return
		}

		// The state parameter carries the uid; the stored document is
		// keyed by it at callback time.
		authURL := provider.BuildAuthURL(uid, challenge)

		setFlowCookie(w, cfg, verifierCookieName, verifier)
		setFlowCookie(w, cfg, sessionCookieName, session.Nonce)

		logger.Info("Authorization flow initiated",
			zap.String("provider", providerName),
			zap.String("user_id", uid),
		)
		respondJSON(w, http.StatusOK, map[string]string{"url": authURL})
	}
}

// HandleCallback finishes the OAuth flow: validate params, exchange the
// code, fetch the profile, persist the connected account. Every exit is a
// redirect to the settings page; error detail stays in the server log.
func HandleCallback(cfg *config.Config, accounts AccountStore, sessions SessionStore, providers *social.Registry, hub Notifier, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerName := chi.URLParam(r, "provider")
		settingsURL := cfg.SettingsURL()
		fail := func(code string) {
			http.Redirect(w, r, settingsURL+"?error="+code, http.StatusFound)
		}

		code := r.URL.Query().Get("code")
		state := r.URL.Query().Get("state")
		logger.Info("OAuth callback received",
			zap.String("provider", providerName),
			zap.Bool("has_code", code != ""),
			zap.Bool("has_state", state != ""),
		)

		if code == "" || state == "" {
			fail("missing_params")
			return
		}

		provider, ok := providers.Get(providerName)
		if !ok {
			logger.Error("Callback for unconfigured provider", zap.String("provider", providerName))
			fail("auth_failed")
			return
		}

		// The state parameter alone is attacker-controlled; the callback
		// must come from the browser that started the flow, carrying the
		// nonce of a live session bound to the same uid.
		nonce := cookieValue(r, sessionCookieName)
		session, err := sessions.ConsumeSession(r.Context(), nonce)
		if err != nil || session.UserID != state || session.Provider != providerName {
			logger.Warn("OAuth session did not match callback",
				zap.String("provider", providerName),
				zap.Bool("has_session_cookie", nonce != ""),
				zap.Bool("session_found", err == nil),
			)
			fail("state_mismatch")
			return
		}

		// A missing verifier cookie is forwarded as an empty string; the
		// provider rejects the exchange, which is the intended failure
		// path rather than a local short-circuit.
		verifier := cookieValue(r, verifierCookieName)

		ctx := r.Context()

		tokens, err := provider.ExchangeCode(ctx, code, verifier)
		if err != nil {
			logUpstreamFailure(logger, "Token exchange failed", err,
				zap.Bool("has_verifier", verifier != ""))
			fail("token_exchange_failed")
			return
		}

		profile, err := provider.FetchProfile(ctx, tokens.AccessToken)
		if err != nil {
			logUpstreamFailure(logger, "Profile fetch failed", err)
			fail("user_info_failed")
			return
		}

		now := time.Now().UTC()
		acct := &models.SocialAccount{
			UserID:      state,
			Provider:    providerName,
			ExternalID:  profile.ID,
			Username:    profile.Username,
			AccessToken: tokens.AccessToken,
			ConnectedAt: now,
		}
		if tokens.RefreshToken != "" {
			acct.RefreshToken = &tokens.RefreshToken
		}
		if profile.ProfileImage != "" {
			acct.ProfileImage = &profile.ProfileImage
		}

		if err := accounts.UpsertAccount(ctx, acct); err != nil {
			// The provider considers the app authorized at this point,
			// but without a record the link is lost; the user re-links.
			logger.Error("Failed to persist connected account",
				zap.String("provider", providerName),
				zap.String("user_id", state),
				zap.Error(err),
			)
			fail("storage_unavailable")
			return
		}

		clearFlowCookie(w, cfg, verifierCookieName)
		clearFlowCookie(w, cfg, sessionCookieName)

		if hub != nil {
			hub.Notify(state, "account_connected", map[string]string{
				"provider": providerName,
				"username": profile.Username,
			})
		}

		logger.Info("Account connected",
			zap.String("provider", providerName),
			zap.String("user_id", state),
			zap.String("username", profile.Username),
			zap.Bool("has_refresh_token", tokens.RefreshToken != ""),
		)
		http.Redirect(w, r, settingsURL+"?success=true", http.StatusFound)
	}
}

func setFlowCookie(w http.ResponseWriter, cfg *config.Config, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(flowTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Environment == "production",
		SameSite: http.SameSiteLaxMode,
	})
}

func clearFlowCookie(w http.ResponseWriter, cfg *config.Config, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Environment == "production",
		SameSite: http.SameSiteLaxMode,
	})
}

func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// logUpstreamFailure logs a provider failure with stage and status when the
// error carries them. Tokens and credentials never appear in these logs.
func logUpstreamFailure(logger *zap.Logger, msg string, err error, extra ...zap.Field) {
	var ue *social.UpstreamError
	if errors.As(err, &ue) {
		fields := append([]zap.Field{
			zap.String("provider", ue.Provider),
			zap.String("stage", string(ue.Stage)),
			zap.Int("status", ue.StatusCode),
			zap.String("response", ue.Body),
		}, extra...)
		logger.Error(msg, fields...)
		return
	}
	logger.Error(msg, append([]zap.Field{zap.Error(err)}, extra...)...)
}
