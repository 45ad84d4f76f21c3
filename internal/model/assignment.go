package model

import "time"

// Assignment is a teacher-authored question set. A standalone assignment has no
// sessions; a multi-session assignment is traversed one session at a time
// through a Journey.
// swagger:model Assignment
type Assignment struct {
	BaseModel
	CreatorID   uint       `gorm:"index;type:bigint unsigned" json:"creatorId"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	TimeLimit   int        `gorm:"default:0" json:"timeLimit"` // Minutes
	IsPublished bool       `gorm:"default:false" json:"isPublished"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

func (Assignment) TableName() string {
	return "assignments"
}

// AssignmentSession is one ordered step of a multi-session assignment.
type AssignmentSession struct {
	BaseModel
	AssignmentID uint   `gorm:"index;type:bigint unsigned" json:"assignmentId"`
	Title        string `gorm:"size:255;not null" json:"title"`
	Order        int    `gorm:"column:session_order;default:0" json:"order"`
}

func (AssignmentSession) TableName() string {
	return "assignment_sessions"
}
