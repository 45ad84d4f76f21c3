package service

import (
	"context"
	"time"

	"quizpath_backend/internal/grading"
	"quizpath_backend/internal/model"
	"quizpath_backend/internal/util"
	"quizpath_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// JourneyStore is the journey persistence surface.
type JourneyStore interface {
	Create(j *model.Journey) error
	FindByID(id string) (*model.Journey, error)
	FindByUserAndAssignment(userID, assignmentID uint) (*model.Journey, error)
	Update(j *model.Journey) error
	UpdateRollup(id string, totalScore, maxScore int, level string) error
}

// JourneyAttemptSource reads the attempts a journey aggregates over.
type JourneyAttemptSource interface {
	ListAttemptsByJourney(journeyID string) ([]model.Attempt, error)
}

// SessionCatalog resolves an assignment's ordered session list.
type SessionCatalog interface {
	FindAssignmentByID(id uint) (*model.Assignment, error)
	ListSessions(assignmentID uint) ([]model.AssignmentSession, error)
}

// RedirectSource resolves post-attempt content redirects.
type RedirectSource interface {
	Find(ctx context.Context, assignmentID uint, level string, sessionID *uint) (*model.ContentRedirect, error)
}

const (
	SessionLocked    = "locked"
	SessionCurrent   = "current"
	SessionCompleted = "completed"
)

// SessionProgress is one session's state within a journey summary. Sessions
// past the current index are locked until the student advances to them.
type SessionProgress struct {
	Session model.AssignmentSession `json:"session"`
	Status  string                  `json:"status"`
	Attempt *model.Attempt          `json:"attempt,omitempty"`
}

// JourneySummary is the aggregate view: the journey row with freshly computed
// rollup values plus per-session progress.
type JourneySummary struct {
	Journey  model.Journey            `json:"journey"`
	Sessions []SessionProgress        `json:"sessions"`
	Redirect *model.ContentRedirect   `json:"redirect,omitempty"`
}

// JourneyService tracks a student's run through an assignment's sessions and
// aggregates attempt results. The rollup columns on the journey row are a
// cache: every Summary call recomputes them from the attempts and persists
// the fresh values opportunistically.
type JourneyService struct {
	journeys  JourneyStore
	attempts  JourneyAttemptSource
	catalog   SessionCatalog
	redirects RedirectSource
}

func NewJourneyService(journeys JourneyStore, attempts JourneyAttemptSource, catalog SessionCatalog, redirects RedirectSource) *JourneyService {
	return &JourneyService{
		journeys:  journeys,
		attempts:  attempts,
		catalog:   catalog,
		redirects: redirects,
	}
}

// Start opens a journey for the student, or resumes the existing in-progress
// one. Requires a published assignment with at least one session.
func (s *JourneyService) Start(userID, assignmentID uint) (*model.Journey, error) {
	assignment, err := s.catalog.FindAssignmentByID(assignmentID)
	if err != nil {
		return nil, util.ErrAssignmentNotFound
	}
	if !assignment.IsPublished {
		return nil, util.ErrAssignmentNotPublished
	}
	sessions, err := s.catalog.ListSessions(assignmentID)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, util.ErrNoSessions
	}

	existing, err := s.journeys.FindByUserAndAssignment(userID, assignmentID)
	if err == nil && existing.OverallStatus == model.JourneyInProgress {
		return existing, nil
	}
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, err
	}

	journey := &model.Journey{
		AssignmentID:  assignmentID,
		UserID:        userID,
		OverallStatus: model.JourneyInProgress,
	}
	if err := s.journeys.Create(journey); err != nil {
		return nil, err
	}
	return journey, nil
}

// Advance moves the journey to the next session once the current session has
// a final attempt. Advancing past the last session completes the journey.
func (s *JourneyService) Advance(journeyID string, userID uint) (*model.Journey, error) {
	journey, err := s.journeys.FindByID(journeyID)
	if err != nil {
		return nil, util.ErrJourneyNotFound
	}
	if journey.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	if journey.OverallStatus == model.JourneyCompleted {
		return nil, util.ErrJourneyCompleted
	}

	sessions, err := s.catalog.ListSessions(journey.AssignmentID)
	if err != nil {
		return nil, err
	}
	if journey.CurrentSessionIndex >= len(sessions) {
		return nil, util.ErrSessionNotFound
	}
	current := sessions[journey.CurrentSessionIndex]

	attempts, err := s.attempts.ListAttemptsByJourney(journeyID)
	if err != nil {
		return nil, err
	}
	if latestFinalForSession(attempts, current.ID) == nil {
		return nil, util.ErrSessionNotFinished
	}

	journey.CurrentSessionIndex++
	if journey.CurrentSessionIndex >= len(sessions) {
		journey.OverallStatus = model.JourneyCompleted
		now := time.Now()
		journey.CompletedAt = &now
	}
	if err := s.journeys.Update(journey); err != nil {
		return nil, err
	}
	return journey, nil
}

// Summary recomputes the journey rollup from final attempts, persists it, and
// returns per-session progress. For completed journeys it also resolves the
// overall-level content redirect.
func (s *JourneyService) Summary(ctx context.Context, journeyID string, userID uint, role model.UserRole) (*JourneySummary, error) {
	journey, err := s.journeys.FindByID(journeyID)
	if err != nil {
		return nil, util.ErrJourneyNotFound
	}
	if journey.UserID != userID && role == model.Student {
		return nil, util.ErrPermissionDenied
	}

	sessions, err := s.catalog.ListSessions(journey.AssignmentID)
	if err != nil {
		return nil, err
	}
	attempts, err := s.attempts.ListAttemptsByJourney(journeyID)
	if err != nil {
		return nil, err
	}

	var totalScore, maxScore int
	progress := make([]SessionProgress, 0, len(sessions))
	for i := range sessions {
		session := sessions[i]
		sp := SessionProgress{Session: session, Status: SessionLocked}
		if attempt := latestFinalForSession(attempts, session.ID); attempt != nil {
			sp.Attempt = attempt
			sp.Status = SessionCompleted
			totalScore += attempt.TotalScore
			maxScore += attempt.MaxScore
		} else if i == journey.CurrentSessionIndex {
			sp.Status = SessionCurrent
		}
		progress = append(progress, sp)
	}

	level := string(grading.Classify(totalScore, maxScore))
	if totalScore != journey.TotalScore || maxScore != journey.MaxScore || level != journey.OverallLevel {
		if err := s.journeys.UpdateRollup(journey.ID, totalScore, maxScore, level); err != nil {
			logger.Log.Warn("journey rollup persist failed",
				zap.String("journeyId", journey.ID), zap.Error(err))
		}
	}
	journey.TotalScore = totalScore
	journey.MaxScore = maxScore
	journey.OverallLevel = level

	summary := &JourneySummary{Journey: *journey, Sessions: progress}
	if journey.OverallStatus == model.JourneyCompleted {
		if redirect, err := s.redirects.Find(ctx, journey.AssignmentID, level, nil); err == nil {
			summary.Redirect = redirect
		}
	}
	return summary, nil
}

// ResolveRedirect returns the post-attempt content target for a level, with
// session-scoped entries taking precedence over assignment-wide ones.
func (s *JourneyService) ResolveRedirect(ctx context.Context, assignmentID uint, level string, sessionID *uint) (*model.ContentRedirect, error) {
	redirect, err := s.redirects.Find(ctx, assignmentID, level, sessionID)
	if err != nil {
		return nil, util.ErrRedirectNotFound
	}
	return redirect, nil
}

// latestFinalForSession picks the most recent final attempt for a session.
// Attempts arrive newest first from the store.
func latestFinalForSession(attempts []model.Attempt, sessionID uint) *model.Attempt {
	for i := range attempts {
		a := &attempts[i]
		if a.IsFinal && a.SessionID != nil && *a.SessionID == sessionID {
			return a
		}
	}
	return nil
}
