package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// PostRecord is one entry of a connected account's post history. The JSON
// keys are part of the document contract the dashboard reads; timestamps
// are ISO-8601 strings, not time.Time, to keep the stored form stable.
type PostRecord struct {
	Content        string  `json:"content"`
	CreatedAt      string  `json:"createdAt"`
	Status         string  `json:"status"`
	ProviderPostID string  `json:"providerPostId"`
	HasMedia       bool    `json:"hasMedia"`
	MediaType      *string `json:"mediaType,omitempty"`
}

// PostList is a post history, newest first. Stored as a JSONB array so the
// whole history lives inside the account row like a document field.
type PostList []PostRecord

// Value implements driver.Valuer for JSONB storage
func (p PostList) Value() (driver.Value, error) {
	if p == nil {
		p = PostList{}
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner for JSONB storage
func (p *PostList) Scan(value interface{}) error {
	if value == nil {
		*p = PostList{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("unsupported type for PostList: %T", value)
	}
}

// SocialAccount is one linked provider account under a user document.
// ExternalID is the provider-side user id (needed for author URNs when
// posting); it is not part of the document the dashboard reads.
type SocialAccount struct {
	ID           int       `gorm:"primaryKey;autoIncrement"`
	UserID       string    `gorm:"uniqueIndex:idx_social_accounts_user_provider;not null"`
	Provider     string    `gorm:"uniqueIndex:idx_social_accounts_user_provider;not null"`
	ExternalID   string    `gorm:"not null"`
	Username     string    `gorm:"not null"`
	AccessToken  string    `gorm:"not null"`
	RefreshToken *string
	ProfileImage *string
	ConnectedAt  time.Time `gorm:"not null"`
	Posts        PostList  `gorm:"type:jsonb;not null;default:'[]'"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName specifies the table name for SocialAccount
func (SocialAccount) TableName() string {
	return "social_accounts"
}

// AccountKey returns the user-document field a provider's record lives under
func AccountKey(provider string) string {
	return provider + "Account"
}

// PostsKey returns the history field name inside an account record.
// Twitter history is "tweets" for historical reasons, everything else "posts".
func PostsKey(provider string) string {
	if provider == "twitter" {
		return "tweets"
	}
	return "posts"
}

// Document renders the connected-account record in the document shape the
// dashboard consumes.
func (a *SocialAccount) Document() map[string]any {
	doc := map[string]any{
		"username":    a.Username,
		"accessToken": a.AccessToken,
		"connectedAt": a.ConnectedAt.UTC().Format(time.RFC3339),
	}

	if a.RefreshToken != nil && *a.RefreshToken != "" {
		doc["refreshToken"] = *a.RefreshToken
	}
	if a.ProfileImage != nil && *a.ProfileImage != "" {
		doc["profileImage"] = *a.ProfileImage
	}

	posts := a.Posts
	if posts == nil {
		posts = PostList{}
	}
	doc[PostsKey(a.Provider)] = posts

	return doc
}
