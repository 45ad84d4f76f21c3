package model

import "time"

// AttemptAnswer is one (attempt, question) row holding the raw student
// response. ImmediateScore is the deterministic portion, written at submission.
// Score stays NULL for anything awaiting the judge and is filled exactly once
// per grading pass.
type AttemptAnswer struct {
	UUIDBase
	AttemptID  string `gorm:"index;type:varchar(36)" json:"attemptId"`
	QuestionID uint   `gorm:"index;type:bigint unsigned" json:"questionId"`
	Response   string `gorm:"type:json" json:"response"` // raw student answer, shape depends on question type

	ImmediateScore int  `gorm:"default:0" json:"immediateScore"`
	MaxScore       int  `gorm:"default:0" json:"maxScore"`
	IsCorrect      bool `gorm:"default:false" json:"isCorrect"`

	PendingAI bool       `gorm:"default:false" json:"pendingAi"` // has judge-graded content
	Score     *int       `json:"score,omitempty"`                // judge portion, NULL until graded
	Feedback  string     `gorm:"type:text" json:"feedback"`
	GradedAt  *time.Time `json:"gradedAt,omitempty"`

	Generation uint `gorm:"default:1" json:"-"`
}

func (AttemptAnswer) TableName() string {
	return "attempt_answers"
}

// TotalScore is the answer's current contribution to the attempt total.
func (a *AttemptAnswer) TotalScore() int {
	total := a.ImmediateScore
	if a.Score != nil {
		total += *a.Score
	}
	return total
}
