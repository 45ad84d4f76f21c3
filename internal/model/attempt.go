package model

import "time"

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
	AttemptGrading    AttemptStatus = "grading"
	AttemptGraded     AttemptStatus = "graded"
)

// Attempt is one student submission for an assignment (or one session of a
// journey). Mutated only by the grading pipeline after creation; immutable once
// IsFinal except through an explicit regrade or delete.
// swagger:model Attempt
type Attempt struct {
	UUIDBase
	AssignmentID uint    `gorm:"index;type:bigint unsigned" json:"assignmentId"`
	UserID       uint    `gorm:"index;type:bigint unsigned" json:"userId"`
	JourneyID    *string `gorm:"index;type:varchar(36)" json:"journeyId,omitempty"`
	SessionID    *uint   `gorm:"index;type:bigint unsigned" json:"sessionId,omitempty"`

	MCQScore  int `gorm:"default:0" json:"mcqScore"` // deterministic portion
	MCQTotal  int `gorm:"default:0" json:"mcqTotal"`
	OpenScore int `gorm:"default:0" json:"openScore"` // judge-graded portion
	OpenTotal int `gorm:"default:0" json:"openTotal"`

	TotalScore int    `gorm:"default:0" json:"totalScore"` // MCQScore + OpenScore
	MaxScore   int    `gorm:"default:0" json:"maxScore"`   // excludes survey questions
	Level      string `gorm:"size:20" json:"level"`

	Status  AttemptStatus `gorm:"size:20;default:'in_progress'" json:"status"`
	IsFinal bool          `gorm:"default:false" json:"isFinal"`

	GradingProgress int `gorm:"default:0" json:"gradingProgress"` // judge items completed
	GradingTotal    int `gorm:"default:0" json:"gradingTotal"`

	// Generation tags one grading pass. Regrade bumps it; writes from a stale
	// pass carry the old value and no-op.
	Generation uint `gorm:"default:1" json:"-"`

	StartedAt   time.Time  `json:"startedAt"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	GradedAt    *time.Time `json:"gradedAt,omitempty"`
}

func (Attempt) TableName() string {
	return "attempts"
}
