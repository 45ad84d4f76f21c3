package model

import "time"

type JourneyStatus string

const (
	JourneyInProgress JourneyStatus = "in_progress"
	JourneyCompleted  JourneyStatus = "completed"
)

// Journey is one student's run through an assignment's ordered sessions. The
// rollup columns are a cache recomputed on read, never a source of truth.
// swagger:model Journey
type Journey struct {
	UUIDBase
	AssignmentID uint `gorm:"index;type:bigint unsigned" json:"assignmentId"`
	UserID       uint `gorm:"index;type:bigint unsigned" json:"userId"`

	CurrentSessionIndex int           `gorm:"default:0" json:"currentSessionIndex"`
	OverallStatus       JourneyStatus `gorm:"size:20;default:'in_progress'" json:"overallStatus"`

	TotalScore   int    `gorm:"default:0" json:"totalScore"`
	MaxScore     int    `gorm:"default:0" json:"maxScore"`
	OverallLevel string `gorm:"size:20" json:"overallLevel"`

	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func (Journey) TableName() string {
	return "journeys"
}
