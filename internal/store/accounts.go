package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nexura/nexura-server/internal/models"
)

// ReadAccount returns the connected account for uid and provider
func (s *Store) ReadAccount(ctx context.Context, uid, provider string) (*models.SocialAccount, error) {
	var acct models.SocialAccount
	err := s.db.WithContext(ctx).Where("user_id = ? AND provider = ?", uid, provider).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read account: %w", err)
	}
	return &acct, nil
}

// UpsertAccount merge-writes a connected account record. On reconnect the
// credential columns are overwritten and everything else — notably the post
// history — stays untouched. The owning user row is created on first
// contact.
func (s *Store) UpsertAccount(ctx context.Context, acct *models.SocialAccount) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		user := models.User{ID: acct.UserID, CreatedAt: now, UpdatedAt: now}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"updated_at": now}),
		}).Create(&user).Error; err != nil {
			return fmt.Errorf("failed to upsert user: %w", err)
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "provider"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"external_id", "username", "access_token", "refresh_token",
				"profile_image", "connected_at", "updated_at",
			}),
		}).Create(acct).Error; err != nil {
			return fmt.Errorf("failed to upsert account: %w", err)
		}

		return nil
	})
}

// PrependPost pushes a post onto the front of the account's history as a
// single atomic JSONB update. Concurrent posters both land; there is no
// read-modify-write window to lose one in.
func (s *Store) PrependPost(ctx context.Context, uid, provider string, post models.PostRecord) error {
	entry, err := json.Marshal([]models.PostRecord{post})
	if err != nil {
		return fmt.Errorf("failed to encode post: %w", err)
	}

	result := s.db.WithContext(ctx).Exec(
		`UPDATE social_accounts SET posts = ?::jsonb || posts, updated_at = ? WHERE user_id = ? AND provider = ?`,
		string(entry), time.Now().UTC(), uid, provider,
	)
	if result.Error != nil {
		return fmt.Errorf("failed to prepend post: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}

	return nil
}

// UserDocument assembles the full user document the dashboard reads:
// the user row plus one account record per connected provider.
func (s *Store) UserDocument(ctx context.Context, uid string) (map[string]any, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", uid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user: %w", err)
	}

	var accounts []models.SocialAccount
	if err := s.db.WithContext(ctx).Where("user_id = ?", uid).Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to read accounts: %w", err)
	}

	doc := map[string]any{
		"id":        user.ID,
		"createdAt": user.CreatedAt.UTC().Format(time.RFC3339),
		"updatedAt": user.UpdatedAt.UTC().Format(time.RFC3339),
	}
	for i := range accounts {
		doc[models.AccountKey(accounts[i].Provider)] = accounts[i].Document()
	}

	return doc, nil
}
