package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"quizpath_backend/internal/grading"
	"quizpath_backend/internal/model"
	"quizpath_backend/internal/repository"
	"quizpath_backend/internal/util"
)

// AssignmentService covers teacher-side authoring: assignments, sessions,
// questions, and content redirects. Question configs are validated at write
// time so the graders can treat stored config as best-effort parseable.
type AssignmentService struct {
	repo      *repository.AssignmentRepository
	redirects *repository.RedirectRepository
}

func NewAssignmentService(repo *repository.AssignmentRepository, redirects *repository.RedirectRepository) *AssignmentService {
	return &AssignmentService{repo: repo, redirects: redirects}
}

// EnsureOwner verifies the caller authored the assignment. Admins bypass.
func (s *AssignmentService) EnsureOwner(assignmentID, userID uint, role model.UserRole) (*model.Assignment, error) {
	assignment, err := s.repo.FindAssignmentByID(assignmentID)
	if err != nil {
		return nil, util.ErrAssignmentNotFound
	}
	if assignment.CreatorID != userID && role != model.Admin {
		return nil, util.ErrPermissionDenied
	}
	return assignment, nil
}

func (s *AssignmentService) Create(a *model.Assignment) error {
	return s.repo.CreateAssignment(a)
}

func (s *AssignmentService) Get(id uint) (*model.Assignment, error) {
	assignment, err := s.repo.FindAssignmentByID(id)
	if err != nil {
		return nil, util.ErrAssignmentNotFound
	}
	return assignment, nil
}

func (s *AssignmentService) Update(a *model.Assignment) error {
	return s.repo.UpdateAssignment(a)
}

func (s *AssignmentService) Delete(id uint) error {
	return s.repo.DeleteAssignment(id)
}

func (s *AssignmentService) List(page, limit int, creatorID uint) ([]model.Assignment, int64, error) {
	return s.repo.ListAssignments(page, limit, creatorID)
}

// Publish makes the assignment visible to students. Publishing requires at
// least one question.
func (s *AssignmentService) Publish(a *model.Assignment) error {
	questions, err := s.repo.ListQuestions(a.ID, nil)
	if err != nil {
		return err
	}
	if len(questions) == 0 {
		return fmt.Errorf("%w: assignment has no questions", util.ErrInvalidQuestionConfig)
	}
	now := time.Now()
	a.IsPublished = true
	a.PublishedAt = &now
	return s.repo.UpdateAssignment(a)
}

func (s *AssignmentService) CreateSession(session *model.AssignmentSession) error {
	return s.repo.CreateSession(session)
}

func (s *AssignmentService) ListSessions(assignmentID uint) ([]model.AssignmentSession, error) {
	return s.repo.ListSessions(assignmentID)
}

func (s *AssignmentService) DeleteSession(id uint) error {
	return s.repo.DeleteSession(id)
}

// CreateQuestion validates type-specific config before persisting.
func (s *AssignmentService) CreateQuestion(q *model.Question) error {
	if err := validateQuestion(q); err != nil {
		return err
	}
	return s.repo.CreateQuestion(q)
}

func (s *AssignmentService) UpdateQuestion(q *model.Question) error {
	if err := validateQuestion(q); err != nil {
		return err
	}
	return s.repo.UpdateQuestion(q)
}

func (s *AssignmentService) GetQuestion(id uint) (*model.Question, error) {
	q, err := s.repo.FindQuestionByID(id)
	if err != nil {
		return nil, util.ErrQuestionNotFound
	}
	return q, nil
}

func (s *AssignmentService) DeleteQuestion(id uint) error {
	return s.repo.DeleteQuestion(id)
}

func (s *AssignmentService) ListQuestions(assignmentID uint, sessionID *uint) ([]model.Question, error) {
	return s.repo.ListQuestions(assignmentID, sessionID)
}

// CreateRedirect stores a level redirect after validating the level name.
func (s *AssignmentService) CreateRedirect(ctx context.Context, cr *model.ContentRedirect) error {
	if !validLevel(cr.Level) {
		return util.ErrInvalidLevel
	}
	if cr.TargetURL == "" && cr.EmbedHTML == "" {
		return fmt.Errorf("%w: redirect needs a target url or embed html", util.ErrInvalidQuestionConfig)
	}
	return s.redirects.Create(ctx, cr)
}

func (s *AssignmentService) DeleteRedirect(ctx context.Context, id uint) error {
	return s.redirects.Delete(ctx, id)
}

func validLevel(level string) bool {
	switch grading.Level(level) {
	case grading.LevelBeginner, grading.LevelIntermediate, grading.LevelAdvanced:
		return true
	}
	return false
}

// validateQuestion rejects configs the graders could not act on. Survey
// questions (HasCorrectAnswer false) skip answer-key checks but still need
// well-formed structural config.
func validateQuestion(q *model.Question) error {
	if q.Points < 0 {
		return fmt.Errorf("%w: negative points", util.ErrInvalidQuestionConfig)
	}
	switch q.QuestionType {
	case model.QuestionChoice:
		options, ok := grading.ParseChoiceOptions(q.Options)
		if !ok || len(options) < 2 {
			return fmt.Errorf("%w: choice question needs at least two options", util.ErrInvalidQuestionConfig)
		}
		if q.HasCorrectAnswer && !choiceAnswerKnown(options, q.CorrectAnswer) {
			return fmt.Errorf("%w: correct answer is not an option id", util.ErrInvalidQuestionConfig)
		}
	case model.QuestionSlider:
		if _, ok := grading.ParseSliderConfig(q.SliderConfig); !ok {
			return fmt.Errorf("%w: malformed slider config", util.ErrInvalidQuestionConfig)
		}
	case model.QuestionImageMap:
		cfg, ok := grading.ParseImageMapConfig(q.ImageMapConfig)
		if !ok || len(cfg.Flags) == 0 {
			return fmt.Errorf("%w: image map needs at least one flag", util.ErrInvalidQuestionConfig)
		}
	case model.QuestionOpen:
	default:
		return fmt.Errorf("%w: unknown question type %q", util.ErrInvalidQuestionConfig, q.QuestionType)
	}
	return nil
}

// choiceAnswerKnown accepts a single option id or a comma-joined id set, the
// stored form for multi-correct questions.
func choiceAnswerKnown(options []grading.ChoiceOption, answer string) bool {
	ids := make(map[string]bool, len(options))
	for _, opt := range options {
		ids[opt.ID] = true
	}
	for _, part := range strings.Split(answer, ",") {
		if !ids[strings.TrimSpace(part)] {
			return false
		}
	}
	return answer != ""
}
