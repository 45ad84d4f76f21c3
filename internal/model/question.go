package model

import "encoding/json"

type QuestionType string

const (
	QuestionChoice   QuestionType = "choice"
	QuestionOpen     QuestionType = "open"
	QuestionSlider   QuestionType = "slider"
	QuestionImageMap QuestionType = "image_map"
)

// Question holds one item of an assignment. Type-specific scoring config lives
// in the JSON columns; the grading package parses them into typed records and
// treats malformed config as "no config" (scores 0, never panics).
// swagger:model Question
type Question struct {
	BaseModel
	AssignmentID uint         `gorm:"index;type:bigint unsigned" json:"assignmentId"`
	SessionID    *uint        `gorm:"index;type:bigint unsigned" json:"sessionId,omitempty"`
	QuestionType QuestionType `gorm:"size:50;not null" json:"questionType"`
	Title        string       `gorm:"size:255" json:"title"`
	Content      string       `gorm:"type:text;not null" json:"content"` // Stem

	Options        json.RawMessage `gorm:"type:json" json:"options,omitempty"`        // choice: []grading.ChoiceOption
	SliderConfig   json.RawMessage `gorm:"type:json" json:"sliderConfig,omitempty"`   // slider: grading.SliderConfig
	ImageMapConfig json.RawMessage `gorm:"type:json" json:"imageMapConfig,omitempty"` // image_map: grading.ImageMapConfig

	// CorrectAnswer is the stored choice id. Multi-correct questions store a
	// comma-joined id set; a single student selection never matches that form.
	CorrectAnswer   string `gorm:"type:text" json:"correctAnswer"`
	ReferenceAnswer string `gorm:"type:text" json:"referenceAnswer"` // biases the judge for open questions
	Rubric          string `gorm:"type:text" json:"rubric"`

	Points           int    `gorm:"default:0" json:"points"`
	HasCorrectAnswer bool   `gorm:"default:true" json:"hasCorrectAnswer"` // false = survey question, never auto-scored
	Order            int    `gorm:"column:question_order;default:0" json:"order"`
	Explanation      string `gorm:"type:text" json:"explanation"`
}

func (Question) TableName() string {
	return "questions"
}
