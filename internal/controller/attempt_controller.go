package controller

import (
	"errors"
	"strconv"

	"quizpath_backend/internal/service"
	"quizpath_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	Attempts *service.AttemptService
}

func NewAttemptController(attempts *service.AttemptService) *AttemptController {
	return &AttemptController{Attempts: attempts}
}

type StartAttemptRequest struct {
	AssignmentID uint    `json:"assignmentId" binding:"required"`
	JourneyID    *string `json:"journeyId"`
	SessionID    *uint   `json:"sessionId"`
}

// Start godoc
// @Summary Open an attempt on a published assignment
// @Tags attempts
// @Accept json
// @Produce json
// @Param body body StartAttemptRequest true "start payload"
// @Success 201 {object} util.Response
// @Router /api/attempts [post]
func (c *AttemptController) Start(ctx *gin.Context) {
	var req StartAttemptRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	claims := util.GetUserFromContext(ctx)

	attempt, err := c.Attempts.StartAttempt(claims.UserID, req.AssignmentID, req.JourneyID, req.SessionID)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrAssignmentNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrAssignmentNotPublished):
			util.Forbidden(ctx)
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Created(ctx, attempt)
}

type SubmitRequest struct {
	Answers []service.SubmittedAnswer `json:"answers" binding:"required"`
}

// Submit godoc
// @Summary Submit answers; deterministic scores return immediately
// @Description Free-text portions are graded in the background. Poll GET
// @Description /api/attempts/{id} until status is "graded".
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path string true "attempt id"
// @Param body body SubmitRequest true "answers"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/submit [post]
func (c *AttemptController) Submit(ctx *gin.Context) {
	var req SubmitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	claims := util.GetUserFromContext(ctx)

	attempt, err := c.Attempts.Submit(ctx.Param("id"), claims.UserID, req.Answers)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrAttemptNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrPermissionDenied):
			util.Forbidden(ctx)
		case errors.Is(err, util.ErrAttemptAlreadySubmitted):
			util.Error(ctx, 409, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, attempt)
}

// Get godoc
// @Summary Fetch an attempt with answers and grading progress
// @Tags attempts
// @Produce json
// @Param id path string true "attempt id"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id} [get]
func (c *AttemptController) Get(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	attempt, answers, err := c.Attempts.Get(ctx.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		if errors.Is(err, util.ErrPermissionDenied) {
			util.Forbidden(ctx)
		} else {
			util.NotFound(ctx)
		}
		return
	}
	util.Success(ctx, gin.H{"attempt": attempt, "answers": answers})
}

// List godoc
// @Summary Page through an assignment's attempts
// @Tags attempts
// @Produce json
// @Param assignmentId query int true "assignment id"
// @Param page query int false "page"
// @Param limit query int false "page size"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/attempts [get]
func (c *AttemptController) List(ctx *gin.Context) {
	assignmentID := util.MustParseUint(ctx.Query("assignmentId"))
	if assignmentID == 0 {
		util.BadRequest(ctx, "assignmentId is required")
		return
	}
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	claims := util.GetUserFromContext(ctx)

	attempts, total, err := c.Attempts.List(assignmentID, claims.UserID, claims.Role, page, limit)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrAssignmentNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrPermissionDenied):
			util.Forbidden(ctx)
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, util.PageResponse{List: attempts, Total: total, Page: page, Limit: limit})
}

// Regrade godoc
// @Summary Re-run the full grading pipeline for one attempt
// @Tags attempts
// @Produce json
// @Param id path string true "attempt id"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/regrade [post]
func (c *AttemptController) Regrade(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	attempt, err := c.Attempts.Regrade(ctx.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrAttemptNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrPermissionDenied):
			util.Forbidden(ctx)
		case errors.Is(err, util.ErrAttemptNotSubmitted), errors.Is(err, util.ErrRegradeConflict):
			util.Error(ctx, 409, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, attempt)
}

// Delete godoc
// @Summary Delete an attempt and its answers
// @Tags attempts
// @Produce json
// @Param id path string true "attempt id"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id} [delete]
func (c *AttemptController) Delete(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if err := c.Attempts.Delete(ctx.Param("id"), claims.UserID, claims.Role); err != nil {
		switch {
		case errors.Is(err, util.ErrAttemptNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrPermissionDenied):
			util.Forbidden(ctx)
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, nil)
}

type BulkRequest struct {
	AttemptIDs []string `json:"attemptIds" binding:"required,min=1"`
}

// BulkRegrade godoc
// @Summary Regrade several attempts; reports per-attempt outcomes
// @Tags attempts
// @Accept json
// @Produce json
// @Param body body BulkRequest true "attempt ids"
// @Success 200 {object} util.Response
// @Router /api/attempts/bulk/regrade [post]
func (c *AttemptController) BulkRegrade(ctx *gin.Context) {
	var req BulkRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	claims := util.GetUserFromContext(ctx)
	util.Success(ctx, c.Attempts.BulkRegrade(req.AttemptIDs, claims.UserID, claims.Role))
}

// BulkDelete godoc
// @Summary Delete several attempts; reports per-attempt outcomes
// @Tags attempts
// @Accept json
// @Produce json
// @Param body body BulkRequest true "attempt ids"
// @Success 200 {object} util.Response
// @Router /api/attempts/bulk/delete [post]
func (c *AttemptController) BulkDelete(ctx *gin.Context) {
	var req BulkRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	claims := util.GetUserFromContext(ctx)
	util.Success(ctx, c.Attempts.BulkDelete(req.AttemptIDs, claims.UserID, claims.Role))
}
