package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quizpath_backend/internal/config"
	"quizpath_backend/internal/controller"
	"quizpath_backend/internal/repository"
	"quizpath_backend/internal/service"
	"quizpath_backend/pkg/configwatcher"
	"quizpath_backend/pkg/database"
	"quizpath_backend/pkg/logger"
	"quizpath_backend/pkg/monitoring"
	"quizpath_backend/pkg/security"
	"quizpath_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *gorm.DB
	Redis    *redis.Client
	services *services
}

type repositories struct {
	user       *repository.UserRepository
	assignment *repository.AssignmentRepository
	attempt    *repository.AttemptRepository
	journey    *repository.JourneyRepository
	redirect   *repository.RedirectRepository
}

type services struct {
	auth       *service.AuthService
	storage    *service.StorageService
	judge      *service.AIService
	attempt    *service.AttemptService
	journey    *service.JourneyService
	assignment *service.AssignmentService
}

type controllers struct {
	auth       *controller.AuthController
	assignment *controller.AssignmentController
	attempt    *controller.AttemptController
	journey    *controller.JourneyController
	health     *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client) *repositories {
	return &repositories{
		user:       repository.NewUserRepository(db),
		assignment: repository.NewAssignmentRepository(db),
		attempt:    repository.NewAttemptRepository(db),
		journey:    repository.NewJourneyRepository(db),
		redirect:   repository.NewRedirectRepository(db, rdb),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config) (*services, error) {
	s := &services{}

	storage, err := service.NewStorageService(&cfg.Storage)
	if err != nil {
		return nil, err
	}
	s.storage = storage

	s.auth = service.NewAuthService(repos.user, cfg)
	s.judge = service.NewAIService(cfg.AI)
	s.attempt = service.NewAttemptService(
		repos.attempt,
		repos.assignment,
		s.judge,
		cfg.Grading.QueueSize,
		time.Duration(cfg.AI.CallIntervalMS)*time.Millisecond,
	)
	s.journey = service.NewJourneyService(repos.journey, repos.attempt, repos.assignment, repos.redirect)
	s.assignment = service.NewAssignmentService(repos.assignment, repos.redirect)

	return s, nil
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:       controller.NewAuthController(s.auth),
		assignment: controller.NewAssignmentController(s.assignment, s.storage),
		attempt:    controller.NewAttemptController(s.attempt),
		journey:    controller.NewJourneyController(s.journey),
		health:     controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 1000
	}
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(maxRequests, window))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}
	if cfg.MigrateOnly {
		return &App{Config: cfg, DB: db}
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db, rdb)
	svcs, err := app.initServices(repos, cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize services", zap.Error(err))
	}
	app.services = svcs
	ctrls := app.initControllers(svcs, db, rdb)

	monitoring.Init()

	gin.SetMode(cfg.Server.Mode)
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("quizpath", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, ctrls, repos, cfg)

	if cfg.Storage.Type == "local" || cfg.Storage.Type == "" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	// Judge settings follow the config file without a restart.
	go configwatcher.WatchConfig("configs/config.yaml", cfg, func(raw interface{}) {
		if next, ok := raw.(*config.Config); ok {
			svcs.judge.UpdateConfig(next.AI)
			logger.Log.Info("AI judge config reloaded", zap.String("model", next.AI.Model))
		}
	})

	return app
}

func (a *App) Run() {
	a.services.attempt.StartWorker()

	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	// Let the current grading task finish before exiting.
	a.services.attempt.StopWorker()

	log.Println("Server exiting")
}
