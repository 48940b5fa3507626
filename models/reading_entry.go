package models

import "time"

// Reading statuses for a ReadingEntry.
const (
	ReadingUnread  = "unread"
	ReadingReading = "reading"
	ReadingRead    = "read"
)

// ReadingEntry places a paper on the user's reading list. At most one
// entry per (user, paper).
type ReadingEntry struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID  uint `json:"-" gorm:"index;uniqueIndex:idx_reading_user_paper"`
	PaperID uint `json:"paper_id" gorm:"uniqueIndex:idx_reading_user_paper"`

	Status string `json:"status" gorm:"size:16;default:'unread'"`
	Note   string `json:"note,omitempty" gorm:"type:text"`

	Paper Paper `json:"paper,omitempty" gorm:"foreignKey:PaperID"`
}

// TableName gives GORM the explicit table name.
func (ReadingEntry) TableName() string {
	return "reading_entries"
}

// ValidReadingStatus reports whether s is one of the known statuses.
func ValidReadingStatus(s string) bool {
	return s == ReadingUnread || s == ReadingReading || s == ReadingRead
}
