package models

import "time"

// User is the root document a dashboard user owns. The id is the opaque
// identifier handed to us by the identity provider; connected social
// accounts hang off it one row per provider.
type User struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}
