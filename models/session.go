package models

import "time"

// Session is a server-side login session referenced by the cookie token.
type Session struct {
	Token     string    `json:"-" gorm:"primaryKey;size:36"`
	UserID    uint      `json:"-" gorm:"index;not null"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at" gorm:"index"`
}

// TableName gives GORM the explicit table name.
func (Session) TableName() string {
	return "sessions"
}

// Expired reports whether the session is past its expiry.
func (s *Session) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}
