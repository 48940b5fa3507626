package models

import "time"

// QAExchange is one question/answer pair recorded against a paper.
// Sources holds the JSON-encoded supporting snippets computed by the
// answerer ([{label, text}, ...]).
type QAExchange struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	UserID  uint `json:"-" gorm:"index"`
	PaperID uint `json:"paper_id" gorm:"index"`

	Question string `json:"question" gorm:"type:text;not null"`
	Answer   string `json:"answer" gorm:"type:text"`
	Sources  []byte `json:"sources" gorm:"type:jsonb"`
}

// TableName gives GORM the explicit table name.
func (QAExchange) TableName() string {
	return "qa_exchanges"
}
