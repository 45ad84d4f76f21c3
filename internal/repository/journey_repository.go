package repository

import (
	"quizpath_backend/internal/model"

	"gorm.io/gorm"
)

type JourneyRepository struct {
	DB *gorm.DB
}

func NewJourneyRepository(db *gorm.DB) *JourneyRepository {
	return &JourneyRepository{DB: db}
}

func (r *JourneyRepository) Create(j *model.Journey) error {
	return r.DB.Create(j).Error
}

func (r *JourneyRepository) FindByID(id string) (*model.Journey, error) {
	var j model.Journey
	err := r.DB.Where("id = ?", id).First(&j).Error
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *JourneyRepository) FindByUserAndAssignment(userID, assignmentID uint) (*model.Journey, error) {
	var j model.Journey
	err := r.DB.Where("user_id = ? AND assignment_id = ?", userID, assignmentID).First(&j).Error
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *JourneyRepository) Update(j *model.Journey) error {
	return r.DB.Save(j).Error
}

// UpdateRollup persists the recomputed cache columns only.
func (r *JourneyRepository) UpdateRollup(id string, totalScore, maxScore int, level string) error {
	return r.DB.Model(&model.Journey{}).Where("id = ?", id).Updates(map[string]interface{}{
		"total_score":   totalScore,
		"max_score":     maxScore,
		"overall_level": level,
	}).Error
}
