package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/nexura/nexura-server/internal/store"
)

// HandleGetUserDocument returns the caller's full document: one entry per
// connected account keyed <provider>Account, with the recorded posts inline.
// A user with no row yet gets a minimal document rather than a 404 so the
// dashboard renders an empty state.
func HandleGetUserDocument(accounts AccountStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := userIDFrom(r.Context())

		doc, err := accounts.UserDocument(r.Context(), uid)
		if err != nil {
			if errors.Is(err, store.ErrUserNotFound) {
				respondJSON(w, http.StatusOK, map[string]any{"id": uid})
				return
			}
			logger.Error("Failed to read user document", zap.String("user_id", uid), zap.Error(err))
			respondError(w, http.StatusInternalServerError, "Failed to read user document")
			return
		}

		respondJSON(w, http.StatusOK, doc)
	}
}
