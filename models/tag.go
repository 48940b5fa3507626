package models

// Tag is a user-scoped label attachable to any number of papers.
type Tag struct {
	ID     uint   `json:"id" gorm:"primaryKey"`
	UserID uint   `json:"-" gorm:"index;uniqueIndex:idx_tags_user_name"`
	Name   string `json:"name" gorm:"not null;size:64;uniqueIndex:idx_tags_user_name"`
	Color  string `json:"color,omitempty" gorm:"size:7"` // e.g. "#7c3aed"
}

// TableName gives GORM the explicit table name.
func (Tag) TableName() string {
	return "tags"
}
