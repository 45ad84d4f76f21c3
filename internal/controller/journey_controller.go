package controller

import (
	"errors"

	"quizpath_backend/internal/service"
	"quizpath_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type JourneyController struct {
	Journeys *service.JourneyService
}

func NewJourneyController(journeys *service.JourneyService) *JourneyController {
	return &JourneyController{Journeys: journeys}
}

type StartJourneyRequest struct {
	AssignmentID uint `json:"assignmentId" binding:"required"`
}

// Start godoc
// @Summary Start or resume a journey through a multi-session assignment
// @Tags journeys
// @Accept json
// @Produce json
// @Param body body StartJourneyRequest true "start payload"
// @Success 201 {object} util.Response
// @Router /api/journeys [post]
func (c *JourneyController) Start(ctx *gin.Context) {
	var req StartJourneyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	claims := util.GetUserFromContext(ctx)

	journey, err := c.Journeys.Start(claims.UserID, req.AssignmentID)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrAssignmentNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrAssignmentNotPublished):
			util.Forbidden(ctx)
		case errors.Is(err, util.ErrNoSessions):
			util.BadRequest(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Created(ctx, journey)
}

// Advance godoc
// @Summary Move to the next session once the current one is graded
// @Tags journeys
// @Produce json
// @Param id path string true "journey id"
// @Success 200 {object} util.Response
// @Router /api/journeys/{id}/advance [post]
func (c *JourneyController) Advance(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	journey, err := c.Journeys.Advance(ctx.Param("id"), claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrJourneyNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrPermissionDenied):
			util.Forbidden(ctx)
		case errors.Is(err, util.ErrJourneyCompleted), errors.Is(err, util.ErrSessionNotFinished):
			util.Error(ctx, 409, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, journey)
}

// Summary godoc
// @Summary Aggregate view of a journey: rollup scores and per-session state
// @Tags journeys
// @Produce json
// @Param id path string true "journey id"
// @Success 200 {object} util.Response
// @Router /api/journeys/{id} [get]
func (c *JourneyController) Summary(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	summary, err := c.Journeys.Summary(ctx.Request.Context(), ctx.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		if errors.Is(err, util.ErrPermissionDenied) {
			util.Forbidden(ctx)
		} else {
			util.NotFound(ctx)
		}
		return
	}
	util.Success(ctx, summary)
}

// Redirect godoc
// @Summary Resolve the post-attempt content for a level
// @Tags journeys
// @Produce json
// @Param assignmentId query int true "assignment id"
// @Param level query string true "beginner, intermediate, or advanced"
// @Param sessionId query int false "session id"
// @Success 200 {object} util.Response
// @Router /api/redirects/resolve [get]
func (c *JourneyController) Redirect(ctx *gin.Context) {
	assignmentID := util.MustParseUint(ctx.Query("assignmentId"))
	level := ctx.Query("level")
	if assignmentID == 0 || level == "" {
		util.BadRequest(ctx, "assignmentId and level are required")
		return
	}
	var sessionID *uint
	if raw := ctx.Query("sessionId"); raw != "" {
		id := util.MustParseUint(raw)
		sessionID = &id
	}

	redirect, err := c.Journeys.ResolveRedirect(ctx.Request.Context(), assignmentID, level, sessionID)
	if err != nil {
		util.NotFound(ctx)
		return
	}
	util.Success(ctx, redirect)
}
