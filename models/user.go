package models

import "time"

// User is an account holder. Papers, tags, projects and reading entries
// all hang off a user.
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Email        string `json:"email" gorm:"uniqueIndex;not null;size:320"`
	PasswordHash string `json:"-" gorm:"not null"`

	// Preferred summary style applied when a request omits one.
	DefaultStyle string `json:"default_style" gorm:"size:16;default:'simple'"`
}

// TableName gives GORM the explicit table name.
func (User) TableName() string {
	return "users"
}
