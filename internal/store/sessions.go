package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nexura/nexura-server/internal/models"
)

// CreateSession records an in-flight authorization attempt
func (s *Store) CreateSession(ctx context.Context, session *models.OAuthSession) error {
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("failed to create oauth session: %w", err)
	}
	return nil
}

// ConsumeSession looks up a live session by nonce and deletes it. Sessions
// are single-use; a replayed nonce gets ErrSessionNotFound.
func (s *Store) ConsumeSession(ctx context.Context, nonce string) (*models.OAuthSession, error) {
	var session models.OAuthSession
	err := s.db.WithContext(ctx).Where("nonce = ? AND expires_at > ?", nonce, time.Now()).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read oauth session: %w", err)
	}

	if err := s.db.WithContext(ctx).Delete(&session).Error; err != nil {
		// The flow can continue; the sweep job will collect the row.
		s.logger.Warn("Failed to delete consumed oauth session", zap.Error(err))
	}

	return &session, nil
}

// DeleteExpiredSessions removes sessions past their expiry
func (s *Store) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Where("expires_at < ?", time.Now()).Delete(&models.OAuthSession{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete expired oauth sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}
