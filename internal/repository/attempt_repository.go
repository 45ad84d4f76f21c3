package repository

import (
	"quizpath_backend/internal/model"

	"gorm.io/gorm"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) CreateAttempt(a *model.Attempt) error {
	return r.DB.Create(a).Error
}

func (r *AttemptRepository) FindAttemptByID(id string) (*model.Attempt, error) {
	var a model.Attempt
	err := r.DB.Where("id = ?", id).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AttemptRepository) UpdateAttempt(a *model.Attempt) error {
	return r.DB.Save(a).Error
}

// UpdateAttemptGuarded applies fields only while the attempt still carries the
// given generation. Returns false when a regrade has moved the generation on,
// in which case the caller's pass is stale and must stop writing.
func (r *AttemptRepository) UpdateAttemptGuarded(id string, generation uint, fields map[string]interface{}) (bool, error) {
	res := r.DB.Model(&model.Attempt{}).
		Where("id = ? AND generation = ?", id, generation).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *AttemptRepository) ListAttempts(assignmentID uint, page, limit int) ([]model.Attempt, int64, error) {
	var as []model.Attempt
	var total int64
	query := r.DB.Model(&model.Attempt{}).Where("assignment_id = ?", assignmentID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&as).Error
	return as, total, err
}

func (r *AttemptRepository) ListAttemptsByJourney(journeyID string) ([]model.Attempt, error) {
	var as []model.Attempt
	// newest first; callers pick the latest final attempt per session
	err := r.DB.Where("journey_id = ?", journeyID).Order("started_at desc").Find(&as).Error
	return as, err
}

func (r *AttemptRepository) DeleteAttempt(id string) error {
	return r.DB.Where("id = ?", id).Delete(&model.Attempt{}).Error
}

// Answers

func (r *AttemptRepository) CreateAnswers(answers []model.AttemptAnswer) error {
	if len(answers) == 0 {
		return nil
	}
	return r.DB.Create(&answers).Error
}

func (r *AttemptRepository) ListAnswers(attemptID string) ([]model.AttemptAnswer, error) {
	var ans []model.AttemptAnswer
	err := r.DB.Where("attempt_id = ?", attemptID).Find(&ans).Error
	return ans, err
}

func (r *AttemptRepository) UpdateAnswer(a *model.AttemptAnswer) error {
	return r.DB.Save(a).Error
}

// UpdateAnswerGuarded is the per-answer counterpart of UpdateAttemptGuarded.
func (r *AttemptRepository) UpdateAnswerGuarded(id string, generation uint, fields map[string]interface{}) (bool, error) {
	res := r.DB.Model(&model.AttemptAnswer{}).
		Where("id = ? AND generation = ?", id, generation).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ResetAnswers clears every grading artifact on the attempt's answers and
// stamps them with the new generation, as the first step of a regrade.
func (r *AttemptRepository) ResetAnswers(attemptID string, generation uint) error {
	return r.DB.Model(&model.AttemptAnswer{}).
		Where("attempt_id = ?", attemptID).
		Updates(map[string]interface{}{
			"immediate_score": 0,
			"is_correct":      false,
			"score":           nil,
			"feedback":        "",
			"graded_at":       nil,
			"generation":      generation,
		}).Error
}

func (r *AttemptRepository) DeleteAnswers(attemptID string) error {
	return r.DB.Where("attempt_id = ?", attemptID).Delete(&model.AttemptAnswer{}).Error
}
