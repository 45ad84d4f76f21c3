package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"quizpath_backend/internal/grading"
	"quizpath_backend/internal/model"
	"quizpath_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeAttemptStore keeps attempts and answers in memory with the same guarded
// write semantics as the gorm repository.
type fakeAttemptStore struct {
	attempts map[string]model.Attempt
	answers  map[string]model.AttemptAnswer
	order    []string

	// one-shot write errors keyed by question id
	answerWriteErrs map[uint]error
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{
		attempts: map[string]model.Attempt{},
		answers:  map[string]model.AttemptAnswer{},
	}
}

func (f *fakeAttemptStore) CreateAttempt(a *model.Attempt) error {
	if a.ID == "" {
		a.ID = model.GenerateUUID()
	}
	f.attempts[a.ID] = *a
	return nil
}

func (f *fakeAttemptStore) FindAttemptByID(id string) (*model.Attempt, error) {
	a, ok := f.attempts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := a
	return &copied, nil
}

func (f *fakeAttemptStore) UpdateAttempt(a *model.Attempt) error {
	f.attempts[a.ID] = *a
	return nil
}

func (f *fakeAttemptStore) UpdateAttemptGuarded(id string, generation uint, fields map[string]interface{}) (bool, error) {
	a, ok := f.attempts[id]
	if !ok || a.Generation != generation {
		return false, nil
	}
	applyAttemptFields(&a, fields)
	f.attempts[id] = a
	return true, nil
}

func applyAttemptFields(a *model.Attempt, fields map[string]interface{}) {
	for key, value := range fields {
		switch key {
		case "generation":
			a.Generation = value.(uint)
		case "status":
			a.Status = value.(model.AttemptStatus)
		case "is_final":
			a.IsFinal = value.(bool)
		case "graded_at":
			if value == nil {
				a.GradedAt = nil
			} else {
				t := value.(time.Time)
				a.GradedAt = &t
			}
		case "level":
			a.Level = value.(string)
		case "grading_progress":
			a.GradingProgress = value.(int)
		case "grading_total":
			a.GradingTotal = value.(int)
		case "mcq_score":
			a.MCQScore = value.(int)
		case "mcq_total":
			a.MCQTotal = value.(int)
		case "open_score":
			a.OpenScore = value.(int)
		case "open_total":
			a.OpenTotal = value.(int)
		case "total_score":
			a.TotalScore = value.(int)
		case "max_score":
			a.MaxScore = value.(int)
		}
	}
}

func (f *fakeAttemptStore) ListAttempts(assignmentID uint, page, limit int) ([]model.Attempt, int64, error) {
	var out []model.Attempt
	for _, a := range f.attempts {
		if a.AssignmentID == assignmentID {
			out = append(out, a)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeAttemptStore) ListAttemptsByJourney(journeyID string) ([]model.Attempt, error) {
	var out []model.Attempt
	for _, a := range f.attempts {
		if a.JourneyID != nil && *a.JourneyID == journeyID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (f *fakeAttemptStore) DeleteAttempt(id string) error {
	delete(f.attempts, id)
	return nil
}

func (f *fakeAttemptStore) CreateAnswers(answers []model.AttemptAnswer) error {
	for i := range answers {
		if answers[i].ID == "" {
			answers[i].ID = model.GenerateUUID()
		}
		f.answers[answers[i].ID] = answers[i]
		f.order = append(f.order, answers[i].ID)
	}
	return nil
}

func (f *fakeAttemptStore) ListAnswers(attemptID string) ([]model.AttemptAnswer, error) {
	var out []model.AttemptAnswer
	for _, id := range f.order {
		if ans, ok := f.answers[id]; ok && ans.AttemptID == attemptID {
			out = append(out, ans)
		}
	}
	return out, nil
}

func (f *fakeAttemptStore) UpdateAnswerGuarded(id string, generation uint, fields map[string]interface{}) (bool, error) {
	ans, ok := f.answers[id]
	if !ok || ans.Generation != generation {
		return false, nil
	}
	if err, hit := f.answerWriteErrs[ans.QuestionID]; hit {
		delete(f.answerWriteErrs, ans.QuestionID)
		return false, err
	}
	for key, value := range fields {
		switch key {
		case "immediate_score":
			ans.ImmediateScore = value.(int)
		case "max_score":
			ans.MaxScore = value.(int)
		case "is_correct":
			ans.IsCorrect = value.(bool)
		case "pending_ai":
			ans.PendingAI = value.(bool)
		case "score":
			s := value.(int)
			ans.Score = &s
		case "feedback":
			ans.Feedback = value.(string)
		case "graded_at":
			t := value.(time.Time)
			ans.GradedAt = &t
		}
	}
	f.answers[id] = ans
	return true, nil
}

func (f *fakeAttemptStore) ResetAnswers(attemptID string, generation uint) error {
	for id, ans := range f.answers {
		if ans.AttemptID != attemptID {
			continue
		}
		ans.ImmediateScore = 0
		ans.IsCorrect = false
		ans.Score = nil
		ans.Feedback = ""
		ans.GradedAt = nil
		ans.Generation = generation
		f.answers[id] = ans
	}
	return nil
}

func (f *fakeAttemptStore) DeleteAnswers(attemptID string) error {
	for id, ans := range f.answers {
		if ans.AttemptID == attemptID {
			delete(f.answers, id)
		}
	}
	return nil
}

type fakeCatalog struct {
	assignments map[uint]model.Assignment
	questions   []model.Question
	sessions    []model.AssignmentSession
}

func (f *fakeCatalog) FindAssignmentByID(id uint) (*model.Assignment, error) {
	a, ok := f.assignments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &a, nil
}

func (f *fakeCatalog) ListQuestions(assignmentID uint, sessionID *uint) ([]model.Question, error) {
	var out []model.Question
	for _, q := range f.questions {
		if q.AssignmentID != assignmentID {
			continue
		}
		if sessionID != nil && (q.SessionID == nil || *q.SessionID != *sessionID) {
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

// stubJudge returns canned verdicts and never touches the network.
type stubJudge struct {
	verdict JudgeVerdict
	calls   int
}

func (j *stubJudge) GradeText(ctx context.Context, item JudgeItem) JudgeVerdict {
	j.calls++
	if strings.TrimSpace(item.Answer) == "" {
		return JudgeVerdict{Feedback: NoAnswerFeedback}
	}
	return j.verdict
}

func (j *stubJudge) GradeTextWithRetry(ctx context.Context, item JudgeItem) JudgeVerdict {
	return j.GradeText(ctx, item)
}

func testFixture(judge Judge) (*AttemptService, *fakeAttemptStore, *fakeCatalog) {
	store := newFakeAttemptStore()
	catalog := &fakeCatalog{
		assignments: map[uint]model.Assignment{
			1: {BaseModel: model.BaseModel{ID: 1}, Title: "Geography", CreatorID: 30, IsPublished: true},
			2: {BaseModel: model.BaseModel{ID: 2}, Title: "Draft", CreatorID: 30},
		},
		questions: []model.Question{
			{
				BaseModel:        model.BaseModel{ID: 10},
				AssignmentID:     1,
				QuestionType:     model.QuestionChoice,
				Options:          json.RawMessage(`[{"id":"a","text":"Paris"},{"id":"b","text":"Lyon"}]`),
				CorrectAnswer:    "a",
				Points:           2,
				HasCorrectAnswer: true,
			},
			{
				BaseModel:        model.BaseModel{ID: 11},
				AssignmentID:     1,
				QuestionType:     model.QuestionOpen,
				Content:          "Explain recursion",
				ReferenceAnswer:  "A function calling itself",
				Points:           3,
				HasCorrectAnswer: true,
			},
		},
	}
	svc := NewAttemptService(store, catalog, judge, 16, 0)
	return svc, store, catalog
}

// drainTask pulls the single queued grading task without starting the worker,
// so tests run the pass synchronously.
func drainTask(t *testing.T, svc *AttemptService) GradingTask {
	t.Helper()
	select {
	case task := <-svc.queue.tasks:
		return task
	default:
		t.Fatal("expected a queued grading task")
		return GradingTask{}
	}
}

func submitFull(t *testing.T, svc *AttemptService) *model.Attempt {
	t.Helper()
	attempt, err := svc.StartAttempt(7, 1, nil, nil)
	require.NoError(t, err)
	attempt, err = svc.Submit(attempt.ID, 7, []SubmittedAnswer{
		{QuestionID: 10, Response: json.RawMessage(`"a"`)},
		{QuestionID: 11, Response: json.RawMessage(`"it calls itself until a base case"`)},
	})
	require.NoError(t, err)
	return attempt
}

func TestStartAttemptRequiresPublishedAssignment(t *testing.T) {
	svc, _, _ := testFixture(&stubJudge{})

	_, err := svc.StartAttempt(7, 2, nil, nil)
	assert.ErrorIs(t, err, util.ErrAssignmentNotPublished)

	_, err = svc.StartAttempt(7, 99, nil, nil)
	assert.ErrorIs(t, err, util.ErrAssignmentNotFound)
}

func TestSubmitGradesDeterministicPortionImmediately(t *testing.T) {
	svc, _, _ := testFixture(&stubJudge{verdict: JudgeVerdict{Score: 2, Feedback: "Good."}})

	attempt := submitFull(t, svc)

	assert.Equal(t, model.AttemptGrading, attempt.Status)
	assert.False(t, attempt.IsFinal)
	assert.Equal(t, 2, attempt.MCQScore)
	assert.Equal(t, 2, attempt.MCQTotal)
	assert.Equal(t, 3, attempt.OpenTotal)
	assert.Equal(t, 2, attempt.TotalScore)
	assert.Equal(t, 5, attempt.MaxScore)
	assert.Equal(t, 1, attempt.GradingTotal)
	assert.Equal(t, 0, attempt.GradingProgress)
	require.NotNil(t, attempt.SubmittedAt)
}

func TestSubmitTwiceFails(t *testing.T) {
	svc, _, _ := testFixture(&stubJudge{verdict: JudgeVerdict{Score: 2}})
	attempt := submitFull(t, svc)

	_, err := svc.Submit(attempt.ID, 7, nil)
	assert.ErrorIs(t, err, util.ErrAttemptAlreadySubmitted)
}

func TestGradingPassFinalizesAttempt(t *testing.T) {
	judge := &stubJudge{verdict: JudgeVerdict{Score: 2, Feedback: "Good."}}
	svc, store, _ := testFixture(judge)

	attempt := submitFull(t, svc)
	task := drainTask(t, svc)
	svc.runGradingTask(context.Background(), task)

	graded, err := store.FindAttemptByID(attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptGraded, graded.Status)
	assert.True(t, graded.IsFinal)
	assert.Equal(t, 2, graded.OpenScore)
	assert.Equal(t, 4, graded.TotalScore)
	assert.Equal(t, 5, graded.MaxScore)
	// 4/5 = 80%
	assert.Equal(t, string(grading.LevelAdvanced), graded.Level)
	assert.Equal(t, 1, graded.GradingProgress)
	require.NotNil(t, graded.GradedAt)

	answers, err := store.ListAnswers(attempt.ID)
	require.NoError(t, err)
	require.Len(t, answers, 2)
	open := answers[1]
	require.NotNil(t, open.Score)
	assert.Equal(t, 2, *open.Score)
	assert.Equal(t, "Good.", open.Feedback)
	require.NotNil(t, open.GradedAt)
}

func TestDeterministicOnlySubmissionIsFinalImmediately(t *testing.T) {
	judge := &stubJudge{}
	svc, _, catalog := testFixture(judge)
	// strip the open question so everything grades synchronously
	catalog.questions = catalog.questions[:1]

	attempt, err := svc.StartAttempt(7, 1, nil, nil)
	require.NoError(t, err)
	attempt, err = svc.Submit(attempt.ID, 7, []SubmittedAnswer{
		{QuestionID: 10, Response: json.RawMessage(`"a"`)},
	})
	require.NoError(t, err)

	assert.Equal(t, model.AttemptGraded, attempt.Status)
	assert.True(t, attempt.IsFinal)
	assert.Equal(t, 2, attempt.TotalScore)
	assert.Equal(t, string(grading.LevelAdvanced), attempt.Level)
	assert.Equal(t, 0, judge.calls)

	select {
	case <-svc.queue.tasks:
		t.Fatal("no grading task should be queued")
	default:
	}
}

func TestJudgeFailureScoresZeroWithMarker(t *testing.T) {
	judge := &stubJudge{verdict: JudgeVerdict{Score: 0, Feedback: "This answer could not be graded automatically.", Failed: true}}
	svc, store, _ := testFixture(judge)

	attempt := submitFull(t, svc)
	svc.runGradingTask(context.Background(), drainTask(t, svc))

	graded, err := store.FindAttemptByID(attempt.ID)
	require.NoError(t, err)
	assert.True(t, graded.IsFinal, "a failed judge call never blocks finalization")
	assert.Equal(t, 2, graded.TotalScore)

	answers, _ := store.ListAnswers(attempt.ID)
	open := answers[1]
	require.NotNil(t, open.Score)
	assert.Equal(t, 0, *open.Score)
	assert.Contains(t, open.Feedback, GradingErrorMarker)
}

func TestRegradeBumpsGenerationAndRestoresScores(t *testing.T) {
	judge := &stubJudge{verdict: JudgeVerdict{Score: 2, Feedback: "Good."}}
	svc, store, _ := testFixture(judge)

	attempt := submitFull(t, svc)
	svc.runGradingTask(context.Background(), drainTask(t, svc))

	regraded, err := svc.Regrade(attempt.ID, 30, model.Teacher)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptGrading, regraded.Status)
	assert.False(t, regraded.IsFinal)
	assert.Equal(t, uint(2), regraded.Generation)
	assert.Equal(t, 2, regraded.TotalScore, "deterministic portion is restored synchronously")

	svc.runGradingTask(context.Background(), drainTask(t, svc))

	final, err := store.FindAttemptByID(attempt.ID)
	require.NoError(t, err)
	assert.True(t, final.IsFinal)
	assert.Equal(t, 4, final.TotalScore)
	assert.Equal(t, string(grading.LevelAdvanced), final.Level)
}

func TestStaleGradingPassIsDiscarded(t *testing.T) {
	judge := &stubJudge{verdict: JudgeVerdict{Score: 2, Feedback: "Good."}}
	svc, store, _ := testFixture(judge)

	attempt := submitFull(t, svc)
	staleTask := drainTask(t, svc)

	// regrade before the first pass runs; its task now carries an old generation
	_, err := svc.Regrade(attempt.ID, 30, model.Teacher)
	require.NoError(t, err)
	freshTask := drainTask(t, svc)

	svc.runGradingTask(context.Background(), staleTask)
	mid, err := store.FindAttemptByID(attempt.ID)
	require.NoError(t, err)
	assert.False(t, mid.IsFinal, "stale pass must not finalize")
	assert.Equal(t, model.AttemptGrading, mid.Status)

	svc.runGradingTask(context.Background(), freshTask)
	final, err := store.FindAttemptByID(attempt.ID)
	require.NoError(t, err)
	assert.True(t, final.IsFinal)
	assert.Equal(t, 4, final.TotalScore)
}

func TestRegradeRequiresSubmission(t *testing.T) {
	svc, _, _ := testFixture(&stubJudge{})
	attempt, err := svc.StartAttempt(7, 1, nil, nil)
	require.NoError(t, err)

	_, err = svc.Regrade(attempt.ID, 30, model.Teacher)
	assert.ErrorIs(t, err, util.ErrAttemptNotSubmitted)
}

func TestDeleteRemovesAttemptAndAnswers(t *testing.T) {
	svc, store, _ := testFixture(&stubJudge{verdict: JudgeVerdict{Score: 2}})
	attempt := submitFull(t, svc)

	require.NoError(t, svc.Delete(attempt.ID, 30, model.Teacher))

	_, err := store.FindAttemptByID(attempt.ID)
	assert.Error(t, err)
	answers, _ := store.ListAnswers(attempt.ID)
	assert.Empty(t, answers)

	assert.ErrorIs(t, svc.Delete(attempt.ID, 30, model.Teacher), util.ErrAttemptNotFound)
}

func TestBulkDeleteReportsPerAttemptOutcomes(t *testing.T) {
	svc, _, _ := testFixture(&stubJudge{verdict: JudgeVerdict{Score: 2}})
	attempt := submitFull(t, svc)

	out := svc.BulkDelete([]string{attempt.ID, "no-such-id"}, 30, model.Teacher)

	assert.Equal(t, []string{attempt.ID}, out.Succeeded)
	require.Len(t, out.Failed, 1)
	assert.Equal(t, "no-such-id", out.Failed[0].AttemptID)
	assert.Equal(t, util.ErrAttemptNotFound.Error(), out.Failed[0].Reason)
}

func TestBulkRegradeReportsPerAttemptOutcomes(t *testing.T) {
	judge := &stubJudge{verdict: JudgeVerdict{Score: 2}}
	svc, _, _ := testFixture(judge)
	attempt := submitFull(t, svc)
	svc.runGradingTask(context.Background(), drainTask(t, svc))

	out := svc.BulkRegrade([]string{attempt.ID, "no-such-id"}, 30, model.Teacher)

	assert.Equal(t, []string{attempt.ID}, out.Succeeded)
	require.Len(t, out.Failed, 1)
	assert.Equal(t, "no-such-id", out.Failed[0].AttemptID)
}

func TestGetEnforcesOwnership(t *testing.T) {
	svc, _, _ := testFixture(&stubJudge{verdict: JudgeVerdict{Score: 2}})
	attempt := submitFull(t, svc)

	_, _, err := svc.Get(attempt.ID, 99, model.Student)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	got, answers, err := svc.Get(attempt.ID, 99, model.Teacher)
	require.NoError(t, err)
	assert.Equal(t, attempt.ID, got.ID)
	assert.Len(t, answers, 2)
}

// timingJudge records when each judge call happened.
type timingJudge struct {
	verdict JudgeVerdict
	calls   []time.Time
}

func (j *timingJudge) GradeText(ctx context.Context, item JudgeItem) JudgeVerdict {
	j.calls = append(j.calls, time.Now())
	return j.verdict
}

func (j *timingJudge) GradeTextWithRetry(ctx context.Context, item JudgeItem) JudgeVerdict {
	return j.GradeText(ctx, item)
}

func secondOpenQuestion() model.Question {
	return model.Question{
		BaseModel:        model.BaseModel{ID: 12},
		AssignmentID:     1,
		QuestionType:     model.QuestionOpen,
		Content:          "Explain closures",
		Points:           3,
		HasCorrectAnswer: true,
	}
}

func submitThree(t *testing.T, svc *AttemptService) *model.Attempt {
	t.Helper()
	attempt, err := svc.StartAttempt(7, 1, nil, nil)
	require.NoError(t, err)
	attempt, err = svc.Submit(attempt.ID, 7, []SubmittedAnswer{
		{QuestionID: 10, Response: json.RawMessage(`"a"`)},
		{QuestionID: 11, Response: json.RawMessage(`"it calls itself until a base case"`)},
		{QuestionID: 12, Response: json.RawMessage(`"a function capturing its scope"`)},
	})
	require.NoError(t, err)
	return attempt
}

func TestAnswerWriteFailureDoesNotAbortPass(t *testing.T) {
	judge := &stubJudge{verdict: JudgeVerdict{Score: 2, Feedback: "Good."}}
	svc, store, catalog := testFixture(judge)
	catalog.questions = append(catalog.questions, secondOpenQuestion())

	attempt := submitThree(t, svc)
	store.answerWriteErrs = map[uint]error{11: errors.New("disk full")}

	svc.runGradingTask(context.Background(), drainTask(t, svc))

	final, err := store.FindAttemptByID(attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptGraded, final.Status, "one bad write must not leave the attempt stuck")
	assert.True(t, final.IsFinal)

	answers, err := store.ListAnswers(attempt.ID)
	require.NoError(t, err)
	for _, ans := range answers {
		switch ans.QuestionID {
		case 11:
			assert.Nil(t, ans.Score, "failed write leaves the answer unscored")
		case 12:
			require.NotNil(t, ans.Score, "sibling answers are still graded")
			assert.Equal(t, 2, *ans.Score)
		}
	}
	assert.Equal(t, 4, final.TotalScore, "totals count only the answers that persisted")
}

func TestJudgeCallsAreSpacedAcrossAnswers(t *testing.T) {
	judge := &timingJudge{verdict: JudgeVerdict{Score: 2, Feedback: "Good."}}
	svc, _, catalog := testFixture(judge)
	catalog.questions = append(catalog.questions, secondOpenQuestion())
	svc.interval = 40 * time.Millisecond

	submitThree(t, svc)
	svc.runGradingTask(context.Background(), drainTask(t, svc))

	require.Len(t, judge.calls, 2)
	gap := judge.calls[1].Sub(judge.calls[0])
	assert.GreaterOrEqual(t, gap, 40*time.Millisecond, "consecutive answers must respect the call interval")
}

func TestRegradeAndDeleteRequireAssignmentOwnership(t *testing.T) {
	judge := &stubJudge{verdict: JudgeVerdict{Score: 2}}
	svc, _, _ := testFixture(judge)
	attempt := submitFull(t, svc)
	svc.runGradingTask(context.Background(), drainTask(t, svc))

	_, err := svc.Regrade(attempt.ID, 99, model.Teacher)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
	assert.ErrorIs(t, svc.Delete(attempt.ID, 99, model.Teacher), util.ErrPermissionDenied)

	_, err = svc.Regrade(attempt.ID, 1, model.Admin)
	require.NoError(t, err)
	drainTask(t, svc)

	require.NoError(t, svc.Delete(attempt.ID, 30, model.Teacher))
}

func TestListRequiresAssignmentOwnership(t *testing.T) {
	svc, _, _ := testFixture(&stubJudge{verdict: JudgeVerdict{Score: 2}})
	submitFull(t, svc)

	_, _, err := svc.List(1, 99, model.Teacher, 1, 20)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	attempts, total, err := svc.List(1, 30, model.Teacher, 1, 20)
	require.NoError(t, err)
	assert.Len(t, attempts, 1)
	assert.Equal(t, int64(1), total)
}
