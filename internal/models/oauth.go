package models

import "time"

// OAuthSession binds an in-flight authorization attempt to the authenticated
// user that started it. The nonce travels back in a cookie and is validated
// against the callback's state parameter, so an intercepted authorization
// code cannot be bound to an arbitrary account. The PKCE verifier is never
// stored server-side; it round-trips through the browser's cookie jar only.
type OAuthSession struct {
	ID        int       `json:"id" gorm:"primaryKey;autoIncrement"`
	Nonce     string    `json:"nonce" gorm:"uniqueIndex;not null"`
	UserID    string    `json:"user_id" gorm:"not null"`
	Provider  string    `json:"provider" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null"`
}

// TableName specifies the table name for OAuthSession
func (OAuthSession) TableName() string {
	return "oauth_sessions"
}
