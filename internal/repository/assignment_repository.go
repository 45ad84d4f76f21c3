package repository

import (
	"quizpath_backend/internal/model"

	"gorm.io/gorm"
)

type AssignmentRepository struct {
	DB *gorm.DB
}

func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{DB: db}
}

func (r *AssignmentRepository) CreateAssignment(a *model.Assignment) error {
	return r.DB.Create(a).Error
}

func (r *AssignmentRepository) FindAssignmentByID(id uint) (*model.Assignment, error) {
	var a model.Assignment
	err := r.DB.First(&a, id).Error
	return &a, err
}

func (r *AssignmentRepository) UpdateAssignment(a *model.Assignment) error {
	return r.DB.Save(a).Error
}

func (r *AssignmentRepository) DeleteAssignment(id uint) error {
	return r.DB.Delete(&model.Assignment{}, id).Error
}

func (r *AssignmentRepository) ListAssignments(page, limit int, creatorID uint) ([]model.Assignment, int64, error) {
	var as []model.Assignment
	var total int64
	query := r.DB.Model(&model.Assignment{})
	if creatorID > 0 {
		query = query.Where("creator_id = ?", creatorID)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&as).Error
	return as, total, err
}

// Sessions

func (r *AssignmentRepository) CreateSession(s *model.AssignmentSession) error {
	return r.DB.Create(s).Error
}

func (r *AssignmentRepository) FindSessionByID(id uint) (*model.AssignmentSession, error) {
	var s model.AssignmentSession
	err := r.DB.First(&s, id).Error
	return &s, err
}

func (r *AssignmentRepository) ListSessions(assignmentID uint) ([]model.AssignmentSession, error) {
	var ss []model.AssignmentSession
	err := r.DB.Where("assignment_id = ?", assignmentID).
		Order("session_order asc, created_at asc").Find(&ss).Error
	return ss, err
}

func (r *AssignmentRepository) DeleteSession(id uint) error {
	return r.DB.Delete(&model.AssignmentSession{}, id).Error
}

// Questions

func (r *AssignmentRepository) CreateQuestion(q *model.Question) error {
	return r.DB.Create(q).Error
}

func (r *AssignmentRepository) FindQuestionByID(id uint) (*model.Question, error) {
	var q model.Question
	err := r.DB.First(&q, id).Error
	return &q, err
}

func (r *AssignmentRepository) UpdateQuestion(q *model.Question) error {
	return r.DB.Save(q).Error
}

func (r *AssignmentRepository) DeleteQuestion(id uint) error {
	return r.DB.Delete(&model.Question{}, id).Error
}

// ListQuestions returns the assignment's questions in grading order. When
// sessionID is non-nil only that session's questions are returned.
func (r *AssignmentRepository) ListQuestions(assignmentID uint, sessionID *uint) ([]model.Question, error) {
	var qs []model.Question
	query := r.DB.Where("assignment_id = ?", assignmentID)
	if sessionID != nil {
		query = query.Where("session_id = ?", *sessionID)
	}
	err := query.Order("question_order asc, created_at asc").Find(&qs).Error
	return qs, err
}
