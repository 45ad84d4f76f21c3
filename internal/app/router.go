package app

import (
	"quizpath_backend/internal/config"
	"quizpath_backend/internal/middleware"
	"quizpath_backend/internal/model"
	"quizpath_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		authGroup.GET("/me", c.auth.Me)

		// Student-facing
		authGroup.GET("/assignments", c.assignment.List)
		authGroup.GET("/assignments/:id", c.assignment.Get)
		authGroup.POST("/attempts", c.attempt.Start)
		authGroup.POST("/attempts/:id/submit", c.attempt.Submit)
		authGroup.GET("/attempts/:id", c.attempt.Get)
		authGroup.POST("/journeys", c.journey.Start)
		authGroup.GET("/journeys/:id", c.journey.Summary)
		authGroup.POST("/journeys/:id/advance", c.journey.Advance)
		authGroup.GET("/redirects/resolve", c.journey.Redirect)

		// Teacher-facing
		teacher := authGroup.Group("")
		teacher.Use(middleware.RoleMiddleware(model.Teacher))
		{
			teacher.POST("/assignments", c.assignment.Create)
			teacher.PUT("/assignments/:id", c.assignment.Update)
			teacher.DELETE("/assignments/:id", c.assignment.Delete)
			teacher.POST("/assignments/:id/publish", c.assignment.Publish)
			teacher.POST("/assignments/:id/sessions", c.assignment.CreateSession)
			teacher.DELETE("/assignments/:id/sessions/:sessionId", c.assignment.DeleteSession)
			teacher.POST("/assignments/:id/questions", c.assignment.CreateQuestion)
			teacher.PUT("/assignments/:id/questions/:questionId", c.assignment.UpdateQuestion)
			teacher.DELETE("/assignments/:id/questions/:questionId", c.assignment.DeleteQuestion)
			teacher.POST("/assignments/:id/redirects", c.assignment.CreateRedirect)
			teacher.DELETE("/assignments/:id/redirects/:redirectId", c.assignment.DeleteRedirect)
			teacher.POST("/uploads/images", c.assignment.UploadImage)

			teacher.GET("/attempts", c.attempt.List)
			teacher.POST("/attempts/:id/regrade", c.attempt.Regrade)
			teacher.DELETE("/attempts/:id", c.attempt.Delete)
			teacher.POST("/attempts/bulk/regrade", c.attempt.BulkRegrade)
			teacher.POST("/attempts/bulk/delete", c.attempt.BulkDelete)
		}
	}
}
