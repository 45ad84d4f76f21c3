package controller

import (
	"encoding/json"
	"errors"
	"strconv"

	"quizpath_backend/internal/model"
	"quizpath_backend/internal/service"
	"quizpath_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AssignmentController struct {
	Assignments *service.AssignmentService
	Storage     *service.StorageService
}

func NewAssignmentController(assignments *service.AssignmentService, storage *service.StorageService) *AssignmentController {
	return &AssignmentController{Assignments: assignments, Storage: storage}
}

type AssignmentRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	TimeLimit   int    `json:"timeLimit"`
}

// Create godoc
// @Summary Create an assignment
// @Tags assignments
// @Accept json
// @Produce json
// @Param body body AssignmentRequest true "assignment payload"
// @Success 201 {object} util.Response
// @Router /api/assignments [post]
func (c *AssignmentController) Create(ctx *gin.Context) {
	var req AssignmentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	claims := util.GetUserFromContext(ctx)

	assignment := &model.Assignment{
		CreatorID:   claims.UserID,
		Title:       req.Title,
		Description: req.Description,
		TimeLimit:   req.TimeLimit,
	}
	if err := c.Assignments.Create(assignment); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Created(ctx, assignment)
}

// Get godoc
// @Summary Fetch one assignment with its sessions and questions
// @Tags assignments
// @Produce json
// @Param id path int true "assignment id"
// @Success 200 {object} util.Response
// @Router /api/assignments/{id} [get]
func (c *AssignmentController) Get(ctx *gin.Context) {
	id := util.MustParseUint(ctx.Param("id"))
	assignment, err := c.Assignments.Get(id)
	if err != nil {
		util.NotFound(ctx)
		return
	}
	sessions, err := c.Assignments.ListSessions(id)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	questions, err := c.Assignments.ListQuestions(id, nil)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"assignment": assignment,
		"sessions":   sessions,
		"questions":  questions,
	})
}

// List godoc
// @Summary Page through assignments
// @Tags assignments
// @Produce json
// @Param page query int false "page"
// @Param limit query int false "page size"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/assignments [get]
func (c *AssignmentController) List(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	creatorID := util.MustParseUint(ctx.Query("creatorId"))

	assignments, total, err := c.Assignments.List(page, limit, creatorID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: assignments, Total: total, Page: page, Limit: limit})
}

// Update godoc
// @Summary Update an assignment's metadata
// @Tags assignments
// @Accept json
// @Produce json
// @Param id path int true "assignment id"
// @Success 200 {object} util.Response
// @Router /api/assignments/{id} [put]
func (c *AssignmentController) Update(ctx *gin.Context) {
	assignment, ok := c.mustOwn(ctx)
	if !ok {
		return
	}
	var req AssignmentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	assignment.Title = req.Title
	assignment.Description = req.Description
	assignment.TimeLimit = req.TimeLimit
	if err := c.Assignments.Update(assignment); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, assignment)
}

// Publish godoc
// @Summary Publish an assignment to students
// @Tags assignments
// @Produce json
// @Param id path int true "assignment id"
// @Success 200 {object} util.Response
// @Router /api/assignments/{id}/publish [post]
func (c *AssignmentController) Publish(ctx *gin.Context) {
	assignment, ok := c.mustOwn(ctx)
	if !ok {
		return
	}
	if err := c.Assignments.Publish(assignment); err != nil {
		if errors.Is(err, util.ErrInvalidQuestionConfig) {
			util.BadRequest(ctx, err.Error())
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, assignment)
}

// Delete godoc
// @Summary Delete an assignment
// @Tags assignments
// @Produce json
// @Param id path int true "assignment id"
// @Success 200 {object} util.Response
// @Router /api/assignments/{id} [delete]
func (c *AssignmentController) Delete(ctx *gin.Context) {
	assignment, ok := c.mustOwn(ctx)
	if !ok {
		return
	}
	if err := c.Assignments.Delete(assignment.ID); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

type SessionRequest struct {
	Title string `json:"title" binding:"required"`
	Order int    `json:"order"`
}

// CreateSession godoc
// @Summary Add a session to an assignment
// @Tags assignments
// @Accept json
// @Produce json
// @Param id path int true "assignment id"
// @Success 201 {object} util.Response
// @Router /api/assignments/{id}/sessions [post]
func (c *AssignmentController) CreateSession(ctx *gin.Context) {
	assignment, ok := c.mustOwn(ctx)
	if !ok {
		return
	}
	var req SessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	session := &model.AssignmentSession{
		AssignmentID: assignment.ID,
		Title:        req.Title,
		Order:        req.Order,
	}
	if err := c.Assignments.CreateSession(session); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Created(ctx, session)
}

// DeleteSession godoc
// @Summary Remove a session
// @Tags assignments
// @Produce json
// @Param id path int true "assignment id"
// @Param sessionId path int true "session id"
// @Success 200 {object} util.Response
// @Router /api/assignments/{id}/sessions/{sessionId} [delete]
func (c *AssignmentController) DeleteSession(ctx *gin.Context) {
	if _, ok := c.mustOwn(ctx); !ok {
		return
	}
	if err := c.Assignments.DeleteSession(util.MustParseUint(ctx.Param("sessionId"))); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

type QuestionRequest struct {
	SessionID        *uint           `json:"sessionId"`
	QuestionType     string          `json:"questionType" binding:"required,oneof=choice open slider image_map"`
	Title            string          `json:"title"`
	Content          string          `json:"content" binding:"required"`
	Options          json.RawMessage `json:"options"`
	SliderConfig     json.RawMessage `json:"sliderConfig"`
	ImageMapConfig   json.RawMessage `json:"imageMapConfig"`
	CorrectAnswer    string          `json:"correctAnswer"`
	ReferenceAnswer  string          `json:"referenceAnswer"`
	Rubric           string          `json:"rubric"`
	Points           int             `json:"points"`
	HasCorrectAnswer *bool           `json:"hasCorrectAnswer"`
	Order            int             `json:"order"`
	Explanation      string          `json:"explanation"`
}

func (req *QuestionRequest) toModel(assignmentID uint) *model.Question {
	hasCorrect := true
	if req.HasCorrectAnswer != nil {
		hasCorrect = *req.HasCorrectAnswer
	}
	return &model.Question{
		AssignmentID:     assignmentID,
		SessionID:        req.SessionID,
		QuestionType:     model.QuestionType(req.QuestionType),
		Title:            req.Title,
		Content:          req.Content,
		Options:          req.Options,
		SliderConfig:     req.SliderConfig,
		ImageMapConfig:   req.ImageMapConfig,
		CorrectAnswer:    req.CorrectAnswer,
		ReferenceAnswer:  req.ReferenceAnswer,
		Rubric:           req.Rubric,
		Points:           req.Points,
		HasCorrectAnswer: hasCorrect,
		Order:            req.Order,
		Explanation:      req.Explanation,
	}
}

// CreateQuestion godoc
// @Summary Add a question to an assignment
// @Tags assignments
// @Accept json
// @Produce json
// @Param id path int true "assignment id"
// @Param body body QuestionRequest true "question payload"
// @Success 201 {object} util.Response
// @Router /api/assignments/{id}/questions [post]
func (c *AssignmentController) CreateQuestion(ctx *gin.Context) {
	assignment, ok := c.mustOwn(ctx)
	if !ok {
		return
	}
	var req QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	question := req.toModel(assignment.ID)
	if err := c.Assignments.CreateQuestion(question); err != nil {
		if errors.Is(err, util.ErrInvalidQuestionConfig) {
			util.BadRequest(ctx, err.Error())
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Created(ctx, question)
}

// UpdateQuestion godoc
// @Summary Update a question
// @Tags assignments
// @Accept json
// @Produce json
// @Param id path int true "assignment id"
// @Param questionId path int true "question id"
// @Success 200 {object} util.Response
// @Router /api/assignments/{id}/questions/{questionId} [put]
func (c *AssignmentController) UpdateQuestion(ctx *gin.Context) {
	assignment, ok := c.mustOwn(ctx)
	if !ok {
		return
	}
	existing, err := c.Assignments.GetQuestion(util.MustParseUint(ctx.Param("questionId")))
	if err != nil || existing.AssignmentID != assignment.ID {
		util.NotFound(ctx)
		return
	}
	var req QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	question := req.toModel(assignment.ID)
	question.ID = existing.ID
	if err := c.Assignments.UpdateQuestion(question); err != nil {
		if errors.Is(err, util.ErrInvalidQuestionConfig) {
			util.BadRequest(ctx, err.Error())
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, question)
}

// DeleteQuestion godoc
// @Summary Delete a question
// @Tags assignments
// @Produce json
// @Param id path int true "assignment id"
// @Param questionId path int true "question id"
// @Success 200 {object} util.Response
// @Router /api/assignments/{id}/questions/{questionId} [delete]
func (c *AssignmentController) DeleteQuestion(ctx *gin.Context) {
	if _, ok := c.mustOwn(ctx); !ok {
		return
	}
	if err := c.Assignments.DeleteQuestion(util.MustParseUint(ctx.Param("questionId"))); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

type RedirectRequest struct {
	Level     string `json:"level" binding:"required"`
	SessionID *uint  `json:"sessionId"`
	TargetURL string `json:"targetUrl"`
	EmbedHTML string `json:"embedHtml"`
}

// CreateRedirect godoc
// @Summary Map a level to post-attempt content
// @Tags assignments
// @Accept json
// @Produce json
// @Param id path int true "assignment id"
// @Success 201 {object} util.Response
// @Router /api/assignments/{id}/redirects [post]
func (c *AssignmentController) CreateRedirect(ctx *gin.Context) {
	assignment, ok := c.mustOwn(ctx)
	if !ok {
		return
	}
	var req RedirectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	redirect := &model.ContentRedirect{
		AssignmentID: assignment.ID,
		Level:        req.Level,
		SessionID:    req.SessionID,
		TargetURL:    req.TargetURL,
		EmbedHTML:    req.EmbedHTML,
	}
	if err := c.Assignments.CreateRedirect(ctx.Request.Context(), redirect); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	util.Created(ctx, redirect)
}

// DeleteRedirect godoc
// @Summary Remove a level redirect
// @Tags assignments
// @Produce json
// @Param id path int true "assignment id"
// @Param redirectId path int true "redirect id"
// @Success 200 {object} util.Response
// @Router /api/assignments/{id}/redirects/{redirectId} [delete]
func (c *AssignmentController) DeleteRedirect(ctx *gin.Context) {
	if _, ok := c.mustOwn(ctx); !ok {
		return
	}
	if err := c.Assignments.DeleteRedirect(ctx.Request.Context(), util.MustParseUint(ctx.Param("redirectId"))); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// UploadImage godoc
// @Summary Upload an image for questions or image maps
// @Tags assignments
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "image file"
// @Success 201 {object} util.Response
// @Router /api/uploads/images [post]
func (c *AssignmentController) UploadImage(ctx *gin.Context) {
	header, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "missing file")
		return
	}
	url, err := c.Storage.UploadImage(ctx.Request.Context(), header)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	util.Created(ctx, gin.H{"url": url})
}

func (c *AssignmentController) mustOwn(ctx *gin.Context) (*model.Assignment, bool) {
	claims := util.GetUserFromContext(ctx)
	id := util.MustParseUint(ctx.Param("id"))
	assignment, err := c.Assignments.EnsureOwner(id, claims.UserID, claims.Role)
	if err != nil {
		if errors.Is(err, util.ErrPermissionDenied) {
			util.Forbidden(ctx)
		} else {
			util.NotFound(ctx)
		}
		return nil, false
	}
	return assignment, true
}
