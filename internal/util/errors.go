package util

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailRegistered    = errors.New("email already registered")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrQuestionNotFound   = errors.New("question not found")
	ErrAttemptNotFound    = errors.New("attempt not found")
	ErrJourneyNotFound    = errors.New("journey not found")
	ErrRedirectNotFound   = errors.New("redirect not found")

	ErrAttemptAlreadySubmitted = errors.New("attempt already submitted")
	ErrAttemptNotSubmitted     = errors.New("attempt has not been submitted")
	ErrRegradeConflict         = errors.New("attempt changed while regrade was starting")
	ErrAssignmentNotPublished  = errors.New("assignment not published or not accessible")
	ErrJourneyCompleted        = errors.New("journey already completed")
	ErrSessionNotFinished      = errors.New("current session has no graded attempt")
	ErrNoSessions              = errors.New("assignment has no sessions")
	ErrInvalidQuestionConfig   = errors.New("invalid question configuration")
	ErrInvalidLevel            = errors.New("invalid level")

	// Delete reports these two separately so the caller knows how much was
	// rolled back (answers go first, then the attempt row).
	ErrAnswerDeleteFailed  = errors.New("failed to delete attempt answers")
	ErrAttemptDeleteFailed = errors.New("failed to delete attempt")
)
