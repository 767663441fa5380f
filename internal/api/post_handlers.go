package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/nexura/nexura-server/internal/models"
	"github.com/nexura/nexura-server/internal/social"
	"github.com/nexura/nexura-server/internal/store"
)

// maxMediaBytes caps an uploaded media file; larger uploads fail parsing
const maxMediaBytes = 32 << 20

// HandleCreatePost publishes a post through a connected provider and
// records it in the user's document. The body is multipart form data with
// a text field and an optional media file or media_url.
func HandleCreatePost(accounts AccountStore, providers *social.Registry, hub Notifier, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerName := chi.URLParam(r, "provider")
		uid := userIDFrom(r.Context())

		if err := r.ParseMultipartForm(maxMediaBytes); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid form data")
			return
		}

		text := r.FormValue("text")
		if text == "" {
			respondError(w, http.StatusBadRequest, "Post text is required")
			return
		}

		// the composer declares the type; a file upload's MIME is the fallback
		input := &social.PostInput{
			Text:      text,
			MediaURL:  r.FormValue("media_url"),
			MediaType: r.FormValue("mediaType"),
		}
		if file, header, err := r.FormFile("media"); err == nil {
			media, mediaType, err := readMedia(file, header)
			if err != nil {
				logger.Error("Failed to read uploaded media", zap.Error(err))
				respondError(w, http.StatusBadRequest, "Failed to read media file")
				return
			}
			input.Media = media
			input.MediaMIME = header.Header.Get("Content-Type")
			if input.MediaType == "" {
				input.MediaType = mediaType
			}
		}

		provider, ok := providers.Get(providerName)
		if !ok {
			respondError(w, http.StatusInternalServerError, "Failed to initialize "+providerName+" client")
			return
		}

		account, err := accounts.ReadAccount(r.Context(), uid, providerName)
		if err != nil {
			if errors.Is(err, store.ErrAccountNotFound) || errors.Is(err, store.ErrUserNotFound) {
				respondError(w, http.StatusNotFound, "No "+providerName+" account connected")
				return
			}
			logger.Error("Failed to read account", zap.String("provider", providerName), zap.Error(err))
			respondError(w, http.StatusInternalServerError, "Failed to read account")
			return
		}

		postID, err := provider.CreatePost(r.Context(), account, input)
		if err != nil {
			if errors.Is(err, social.ErrMediaURLRequired) {
				respondError(w, http.StatusBadRequest, "Instagram requires a publicly reachable media_url")
				return
			}

			var ue *social.UpstreamError
			if errors.As(err, &ue) && ue.Unauthorized() {
				logUpstreamFailure(logger, "Provider rejected stored token", err, zap.String("user_id", uid))
				respondError(w, http.StatusUnauthorized, titleCase(providerName)+" authentication failed. Please reconnect your account in settings.")
				return
			}

			logUpstreamFailure(logger, "Post publish failed", err, zap.String("user_id", uid))
			respondError(w, http.StatusBadGateway, "Failed to publish post to "+providerName)
			return
		}

		record := models.PostRecord{
			Content:        text,
			CreatedAt:      time.Now().UTC().Format(time.RFC3339),
			Status:         "posted",
			ProviderPostID: postID,
			HasMedia:       len(input.Media) > 0 || input.MediaURL != "",
		}
		if record.HasMedia && input.MediaType != "" {
			mt := input.MediaType
			record.MediaType = &mt
		}

		if err := accounts.PrependPost(r.Context(), uid, providerName, record); err != nil {
			// The provider already accepted the post; surfacing the storage
			// failure lets the caller know the document is behind.
			logger.Error("Post published but not recorded",
				zap.String("provider", providerName),
				zap.String("user_id", uid),
				zap.String("post_id", postID),
				zap.Error(err),
			)
			respondError(w, http.StatusInternalServerError, "Post was published but could not be recorded")
			return
		}

		if hub != nil {
			hub.Notify(uid, "post_created", map[string]string{
				"provider": providerName,
				"id":       postID,
			})
		}

		logger.Info("Post published",
			zap.String("provider", providerName),
			zap.String("user_id", uid),
			zap.String("post_id", postID),
			zap.Bool("has_media", record.HasMedia),
		)
		respondJSON(w, http.StatusOK, map[string]string{"id": postID, "text": text})
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// readMedia loads the uploaded file and classifies it as image or video
// from its declared MIME type.
func readMedia(file multipart.File, header *multipart.FileHeader) ([]byte, string, error) {
	defer file.Close()

	media, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}

	mediaType := "image"
	if strings.HasPrefix(header.Header.Get("Content-Type"), "video/") {
		mediaType = "video"
	}
	return media, mediaType, nil
}
