package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"quizpath_backend/internal/grading"
	"quizpath_backend/internal/model"
	"quizpath_backend/internal/util"
	"quizpath_backend/pkg/logger"
	"quizpath_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// AttemptStore is the persistence surface the lifecycle manager needs. The
// gorm repository satisfies it; tests use in-memory fakes.
type AttemptStore interface {
	CreateAttempt(a *model.Attempt) error
	FindAttemptByID(id string) (*model.Attempt, error)
	UpdateAttempt(a *model.Attempt) error
	UpdateAttemptGuarded(id string, generation uint, fields map[string]interface{}) (bool, error)
	ListAttempts(assignmentID uint, page, limit int) ([]model.Attempt, int64, error)
	ListAttemptsByJourney(journeyID string) ([]model.Attempt, error)
	DeleteAttempt(id string) error
	CreateAnswers(answers []model.AttemptAnswer) error
	ListAnswers(attemptID string) ([]model.AttemptAnswer, error)
	UpdateAnswerGuarded(id string, generation uint, fields map[string]interface{}) (bool, error)
	ResetAnswers(attemptID string, generation uint) error
	DeleteAnswers(attemptID string) error
}

// QuestionCatalog resolves the assignment and question set an attempt is
// graded against.
type QuestionCatalog interface {
	FindAssignmentByID(id uint) (*model.Assignment, error)
	ListQuestions(assignmentID uint, sessionID *uint) ([]model.Question, error)
}

// SubmittedAnswer is one (question, response) pair from the submit payload.
type SubmittedAnswer struct {
	QuestionID uint            `json:"questionId" binding:"required"`
	Response   json.RawMessage `json:"response"`
}

// BulkOutcome records per-attempt results of a bulk operation. A bulk call
// never aborts on one bad id; the ledger says what happened to each.
type BulkOutcome struct {
	Succeeded []string      `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`
}

type BulkFailure struct {
	AttemptID string `json:"attemptId"`
	Reason    string `json:"reason"`
}

// AttemptService drives the attempt lifecycle: start, submit with immediate
// grading, the deferred judge pass, regrade, and delete. All judge work runs
// on the internal queue's single worker; request handlers only enqueue.
type AttemptService struct {
	attempts AttemptStore
	catalog  QuestionCatalog
	judge    Judge
	queue    *GradingQueue
	interval time.Duration
}

func NewAttemptService(attempts AttemptStore, catalog QuestionCatalog, judge Judge, queueSize int, callInterval time.Duration) *AttemptService {
	s := &AttemptService{
		attempts: attempts,
		catalog:  catalog,
		judge:    judge,
		interval: callInterval,
	}
	s.queue = NewGradingQueue(queueSize, s.runGradingTask)
	return s
}

// StartWorker launches the background grading worker.
func (s *AttemptService) StartWorker() { s.queue.Start() }

// StopWorker drains the in-flight task and stops the worker.
func (s *AttemptService) StopWorker() { s.queue.Stop() }

// StartAttempt opens a new in-progress attempt for a published assignment.
func (s *AttemptService) StartAttempt(userID, assignmentID uint, journeyID *string, sessionID *uint) (*model.Attempt, error) {
	assignment, err := s.catalog.FindAssignmentByID(assignmentID)
	if err != nil {
		return nil, util.ErrAssignmentNotFound
	}
	if !assignment.IsPublished {
		return nil, util.ErrAssignmentNotPublished
	}
	attempt := &model.Attempt{
		AssignmentID: assignmentID,
		UserID:       userID,
		JourneyID:    journeyID,
		SessionID:    sessionID,
		Status:       model.AttemptInProgress,
		Generation:   1,
		StartedAt:    time.Now(),
	}
	if err := s.attempts.CreateAttempt(attempt); err != nil {
		return nil, err
	}
	return attempt, nil
}

// Submit grades the deterministic portion synchronously, persists provisional
// results, and schedules at most one background judge task. Attempts with no
// judge work are final on return.
func (s *AttemptService) Submit(attemptID string, userID uint, submitted []SubmittedAnswer) (*model.Attempt, error) {
	attempt, err := s.attempts.FindAttemptByID(attemptID)
	if err != nil {
		return nil, util.ErrAttemptNotFound
	}
	if attempt.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	if attempt.SubmittedAt != nil {
		return nil, util.ErrAttemptAlreadySubmitted
	}

	questions, err := s.catalog.ListQuestions(attempt.AssignmentID, attempt.SessionID)
	if err != nil {
		return nil, err
	}

	responses := make(map[uint]json.RawMessage, len(submitted))
	for _, sa := range submitted {
		responses[sa.QuestionID] = sa.Response
	}

	answers := make([]model.AttemptAnswer, 0, len(questions))
	var mcqScore, mcqTotal, openTotal, gradingTotal int
	for i := range questions {
		q := &questions[i]
		raw := responses[q.ID]
		res := grading.GradeImmediate(q, raw)

		answers = append(answers, model.AttemptAnswer{
			AttemptID:      attempt.ID,
			QuestionID:     q.ID,
			Response:       string(raw),
			ImmediateScore: res.Score,
			MaxScore:       res.MaxScore + res.PendingMax,
			IsCorrect:      res.IsCorrect,
			PendingAI:      len(res.PendingFlags) > 0,
			Generation:     attempt.Generation,
		})
		mcqScore += res.Score
		mcqTotal += res.MaxScore
		openTotal += res.PendingMax
		gradingTotal += len(res.PendingFlags)
	}
	if err := s.attempts.CreateAnswers(answers); err != nil {
		return nil, err
	}

	now := time.Now()
	attempt.MCQScore = mcqScore
	attempt.MCQTotal = mcqTotal
	attempt.OpenScore = 0
	attempt.OpenTotal = openTotal
	attempt.TotalScore = mcqScore
	attempt.MaxScore = mcqTotal + openTotal
	attempt.SubmittedAt = &now
	attempt.GradingProgress = 0
	attempt.GradingTotal = gradingTotal

	attempt.Status = model.AttemptSubmitted
	if gradingTotal == 0 {
		attempt.Status = model.AttemptGraded
		attempt.IsFinal = true
		attempt.GradedAt = &now
		attempt.Level = string(grading.Classify(attempt.TotalScore, attempt.MaxScore))
	} else {
		attempt.Status = model.AttemptGrading
	}
	if err := s.attempts.UpdateAttempt(attempt); err != nil {
		return nil, err
	}

	if gradingTotal > 0 {
		s.queue.Enqueue(GradingTask{AttemptID: attempt.ID, Generation: attempt.Generation})
	}
	return attempt, nil
}

// Get returns an attempt with its answers. Students only see their own;
// teachers and admins see any. Poll this while status is "grading".
func (s *AttemptService) Get(attemptID string, userID uint, role model.UserRole) (*model.Attempt, []model.AttemptAnswer, error) {
	attempt, err := s.attempts.FindAttemptByID(attemptID)
	if err != nil {
		return nil, nil, util.ErrAttemptNotFound
	}
	if attempt.UserID != userID && role == model.Student {
		return nil, nil, util.ErrPermissionDenied
	}
	answers, err := s.attempts.ListAnswers(attemptID)
	if err != nil {
		return nil, nil, err
	}
	return attempt, answers, nil
}

// List pages through an assignment's attempts, newest first. Teachers only
// see attempts on assignments they created.
func (s *AttemptService) List(assignmentID, userID uint, role model.UserRole, page, limit int) ([]model.Attempt, int64, error) {
	if err := s.ensureAssignmentOwner(assignmentID, userID, role); err != nil {
		return nil, 0, err
	}
	return s.attempts.ListAttempts(assignmentID, page, limit)
}

// ensureAssignmentOwner rejects teachers acting on assignments they did not
// create. Admins pass.
func (s *AttemptService) ensureAssignmentOwner(assignmentID, userID uint, role model.UserRole) error {
	if role == model.Admin {
		return nil
	}
	assignment, err := s.catalog.FindAssignmentByID(assignmentID)
	if err != nil {
		return util.ErrAssignmentNotFound
	}
	if assignment.CreatorID != userID {
		return util.ErrPermissionDenied
	}
	return nil
}

// Regrade wipes all grading output, bumps the attempt generation so an
// in-flight pass goes stale, re-runs immediate grading, and schedules a fresh
// judge pass. Idempotent in outcome: the same submission regrades to the same
// deterministic scores.
func (s *AttemptService) Regrade(attemptID string, userID uint, role model.UserRole) (*model.Attempt, error) {
	attempt, err := s.attempts.FindAttemptByID(attemptID)
	if err != nil {
		return nil, util.ErrAttemptNotFound
	}
	if err := s.ensureAssignmentOwner(attempt.AssignmentID, userID, role); err != nil {
		return nil, err
	}
	if attempt.SubmittedAt == nil {
		return nil, util.ErrAttemptNotSubmitted
	}

	oldGen := attempt.Generation
	newGen := oldGen + 1
	applied, err := s.attempts.UpdateAttemptGuarded(attemptID, oldGen, map[string]interface{}{
		"generation":       newGen,
		"status":           model.AttemptGrading,
		"is_final":         false,
		"graded_at":        nil,
		"level":            "",
		"grading_progress": 0,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, util.ErrRegradeConflict
	}
	if err := s.attempts.ResetAnswers(attemptID, newGen); err != nil {
		return nil, err
	}

	questions, err := s.catalog.ListQuestions(attempt.AssignmentID, attempt.SessionID)
	if err != nil {
		return nil, err
	}
	byQuestion := make(map[uint]*model.Question, len(questions))
	for i := range questions {
		byQuestion[questions[i].ID] = &questions[i]
	}

	answers, err := s.attempts.ListAnswers(attemptID)
	if err != nil {
		return nil, err
	}

	var mcqScore, mcqTotal, openTotal, gradingTotal int
	for i := range answers {
		ans := &answers[i]
		q, ok := byQuestion[ans.QuestionID]
		if !ok {
			continue
		}
		res := grading.GradeImmediate(q, json.RawMessage(ans.Response))
		if _, err := s.attempts.UpdateAnswerGuarded(ans.ID, newGen, map[string]interface{}{
			"immediate_score": res.Score,
			"max_score":       res.MaxScore + res.PendingMax,
			"is_correct":      res.IsCorrect,
			"pending_ai":      len(res.PendingFlags) > 0,
		}); err != nil {
			return nil, err
		}
		mcqScore += res.Score
		mcqTotal += res.MaxScore
		openTotal += res.PendingMax
		gradingTotal += len(res.PendingFlags)
	}

	fields := map[string]interface{}{
		"mcq_score":     mcqScore,
		"mcq_total":     mcqTotal,
		"open_score":    0,
		"open_total":    openTotal,
		"total_score":   mcqScore,
		"max_score":     mcqTotal + openTotal,
		"grading_total": gradingTotal,
	}
	if gradingTotal == 0 {
		now := time.Now()
		fields["status"] = model.AttemptGraded
		fields["is_final"] = true
		fields["graded_at"] = now
		fields["level"] = string(grading.Classify(mcqScore, mcqTotal+openTotal))
	}
	if _, err := s.attempts.UpdateAttemptGuarded(attemptID, newGen, fields); err != nil {
		return nil, err
	}

	if gradingTotal > 0 {
		s.queue.Enqueue(GradingTask{AttemptID: attemptID, Generation: newGen})
	}
	return s.attempts.FindAttemptByID(attemptID)
}

// Delete removes an attempt and its answers. Answers go first; a failure
// between the two steps leaves an answerless attempt row and reports which
// step failed.
func (s *AttemptService) Delete(attemptID string, userID uint, role model.UserRole) error {
	attempt, err := s.attempts.FindAttemptByID(attemptID)
	if err != nil {
		return util.ErrAttemptNotFound
	}
	if err := s.ensureAssignmentOwner(attempt.AssignmentID, userID, role); err != nil {
		return err
	}
	if err := s.attempts.DeleteAnswers(attemptID); err != nil {
		return fmt.Errorf("%w: %v", util.ErrAnswerDeleteFailed, err)
	}
	if err := s.attempts.DeleteAttempt(attemptID); err != nil {
		return fmt.Errorf("%w: %v", util.ErrAttemptDeleteFailed, err)
	}
	return nil
}

// BulkRegrade regrades each id independently and reports per-attempt outcomes.
func (s *AttemptService) BulkRegrade(ids []string, userID uint, role model.UserRole) BulkOutcome {
	out := BulkOutcome{Succeeded: []string{}, Failed: []BulkFailure{}}
	for _, id := range ids {
		if _, err := s.Regrade(id, userID, role); err != nil {
			out.Failed = append(out.Failed, BulkFailure{AttemptID: id, Reason: err.Error()})
			continue
		}
		out.Succeeded = append(out.Succeeded, id)
	}
	return out
}

// BulkDelete deletes each id independently and reports per-attempt outcomes.
func (s *AttemptService) BulkDelete(ids []string, userID uint, role model.UserRole) BulkOutcome {
	out := BulkOutcome{Succeeded: []string{}, Failed: []BulkFailure{}}
	for _, id := range ids {
		if err := s.Delete(id, userID, role); err != nil {
			out.Failed = append(out.Failed, BulkFailure{AttemptID: id, Reason: err.Error()})
			continue
		}
		out.Succeeded = append(out.Succeeded, id)
	}
	return out
}

// runGradingTask is the queue worker body: judge every pending answer of the
// attempt, then finalize totals and level. Every write is guarded by the
// task's generation, so a pass made stale by a regrade silently stops. A
// write failure on one answer is logged and skipped; the remaining answers
// are still judged and the attempt still finalizes rather than sticking in
// grading forever.
func (s *AttemptService) runGradingTask(ctx context.Context, task GradingTask) {
	attempt, err := s.attempts.FindAttemptByID(task.AttemptID)
	if err != nil {
		monitoring.GradingTasksTotal.WithLabelValues("gone").Inc()
		return
	}
	if attempt.Generation != task.Generation {
		monitoring.GradingTasksTotal.WithLabelValues("stale").Inc()
		return
	}

	questions, err := s.catalog.ListQuestions(attempt.AssignmentID, attempt.SessionID)
	if err != nil {
		s.failTask(task, "load questions", err)
		return
	}
	byQuestion := make(map[uint]*model.Question, len(questions))
	for i := range questions {
		byQuestion[questions[i].ID] = &questions[i]
	}
	answers, err := s.attempts.ListAnswers(task.AttemptID)
	if err != nil {
		s.failTask(task, "load answers", err)
		return
	}

	progress := 0
	openScore := 0
	judged := false
	for i := range answers {
		ans := &answers[i]
		if ans.Score != nil {
			openScore += *ans.Score
		}
		if !ans.PendingAI || ans.Score != nil {
			continue
		}
		q, ok := byQuestion[ans.QuestionID]
		if !ok {
			continue
		}

		score, feedback := s.judgeAnswer(ctx, q, ans, task, &progress, &judged)
		now := time.Now()
		applied, err := s.attempts.UpdateAnswerGuarded(ans.ID, task.Generation, map[string]interface{}{
			"score":     score,
			"feedback":  feedback,
			"graded_at": now,
		})
		if err != nil {
			s.failItem(task, ans.QuestionID, "persist answer verdict", err)
			continue
		}
		if !applied {
			monitoring.GradingTasksTotal.WithLabelValues("stale").Inc()
			return
		}
		openScore += score

		if applied, err := s.attempts.UpdateAttemptGuarded(task.AttemptID, task.Generation, map[string]interface{}{
			"open_score":       openScore,
			"grading_progress": progress,
		}); err != nil || !applied {
			if err != nil {
				s.failItem(task, ans.QuestionID, "persist progress", err)
				continue
			}
			monitoring.GradingTasksTotal.WithLabelValues("stale").Inc()
			return
		}
	}

	now := time.Now()
	total := attempt.MCQScore + openScore
	max := attempt.MaxScore
	applied, err := s.attempts.UpdateAttemptGuarded(task.AttemptID, task.Generation, map[string]interface{}{
		"open_score":  openScore,
		"total_score": total,
		"level":       string(grading.Classify(total, max)),
		"status":      model.AttemptGraded,
		"is_final":    true,
		"graded_at":   now,
	})
	if err != nil {
		s.failTask(task, "finalize attempt", err)
		return
	}
	if !applied {
		monitoring.GradingTasksTotal.WithLabelValues("stale").Inc()
		return
	}
	monitoring.GradingTasksTotal.WithLabelValues("ok").Inc()
}

// judgeAnswer grades every pending flag of one answer and composes the
// answer-level score and feedback. A failed verdict scores that flag 0 with a
// marked feedback line and never aborts the rest of the pass. judged tracks
// whether an earlier judge call happened in this pass so consecutive calls
// are spaced by the configured interval, across answers as well as within one.
func (s *AttemptService) judgeAnswer(ctx context.Context, q *model.Question, ans *model.AttemptAnswer, task GradingTask, progress *int, judged *bool) (int, string) {
	res := grading.GradeImmediate(q, json.RawMessage(ans.Response))

	score := 0
	lines := make([]string, 0, len(res.PendingFlags))
	for _, flag := range res.PendingFlags {
		if *judged {
			s.pause(ctx)
		}
		verdict := s.judge.GradeTextWithRetry(ctx, JudgeItem{
			QuestionID: q.ID,
			FlagID:     flag.FlagID,
			Prompt:     q.Content,
			Reference:  flag.Reference,
			Rubric:     q.Rubric,
			Points:     flag.Points,
			Answer:     flag.Answer,
		})
		*judged = true
		*progress++
		score += verdict.Score

		line := verdict.Feedback
		if verdict.Failed {
			line = GradingErrorMarker + " " + verdict.Feedback
		}
		if flag.FlagID != "" && flag.Label != "" {
			line = flag.Label + ": " + line
		}
		lines = append(lines, line)
	}
	return score, strings.Join(lines, "\n")
}

func (s *AttemptService) pause(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	select {
	case <-time.After(s.interval):
	case <-ctx.Done():
	}
}

// failItem logs a write failure for one answer; the pass moves on to the
// remaining answers and still finalizes.
func (s *AttemptService) failItem(task GradingTask, questionID uint, stage string, err error) {
	logger.Log.Error("grading item write failed",
		zap.String("attemptId", task.AttemptID),
		zap.Uint("generation", task.Generation),
		zap.Uint("questionId", questionID),
		zap.String("stage", stage),
		zap.Error(err),
	)
}

func (s *AttemptService) failTask(task GradingTask, stage string, err error) {
	monitoring.GradingTasksTotal.WithLabelValues("failed").Inc()
	logger.Log.Error("grading task aborted",
		zap.String("attemptId", task.AttemptID),
		zap.Uint("generation", task.Generation),
		zap.String("stage", stage),
		zap.Error(err),
	)
}
