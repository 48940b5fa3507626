package models

import "time"

// Project groups papers for a piece of work (a survey, a thesis chapter).
type Project struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID      uint   `json:"-" gorm:"index;uniqueIndex:idx_projects_user_name"`
	Name        string `json:"name" gorm:"not null;size:128;uniqueIndex:idx_projects_user_name"`
	Description string `json:"description,omitempty" gorm:"type:text"`

	Papers []Paper `json:"papers,omitempty" gorm:"many2many:project_papers;"`
}

// TableName gives GORM the explicit table name.
func (Project) TableName() string {
	return "projects"
}
