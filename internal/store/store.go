package store

import (
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrUserNotFound means no document exists for the uid
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountNotFound means the provider was never connected for the uid
	ErrAccountNotFound = errors.New("account not found")
	// ErrSessionNotFound means the nonce matches no live OAuth session
	ErrSessionNotFound = errors.New("oauth session not found")
)

// Store persists user documents, connected social accounts and in-flight
// OAuth sessions. It is constructed once at startup and passed to whoever
// needs it; a failed database connection is a constructor-time error, not
// something handlers discover mid-request.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// New creates a Store on an established database connection
func New(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger.Named("store")}
}
