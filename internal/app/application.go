package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"curriculum-backend/internal/background"
	"curriculum-backend/internal/config"
	"curriculum-backend/internal/handlers"
	"curriculum-backend/internal/middleware"
	"curriculum-backend/internal/models"
	"curriculum-backend/internal/repository"
	"curriculum-backend/internal/service"
	"curriculum-backend/pkg/cache"
	"curriculum-backend/pkg/logger"
)

// Options lets callers supply ready-made dependencies. A nil DB opens the
// Postgres database from config.
type Options struct {
	DB *gorm.DB
}

type Application struct {
	cfg *config.Config

	db          *gorm.DB
	cache       *cache.Cache
	scheduler   *background.Scheduler
	rateLimiter *middleware.RateLimitManager

	repositories repositoryContainer
	services     serviceContainer
	handlers     handlerContainer

	router *gin.Engine
	server *http.Server
}

type repositoryContainer struct {
	Course        repository.CourseRepository
	LessonContent repository.LessonContentRepository
}

type serviceContainer struct {
	Content *service.ContentService
}

type handlerContainer struct {
	Content *handlers.ContentHandler
}

func New(cfg *config.Config, opts Options) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	app := &Application{cfg: cfg, db: opts.DB}

	if app.db == nil {
		if err := app.initDatabase(); err != nil {
			return nil, err
		}
	}

	if err := app.runMigrations(); err != nil {
		return nil, err
	}

	if err := app.initCache(); err != nil {
		return nil, err
	}

	app.scheduler = background.NewScheduler(background.SchedulerConfig{WorkerCount: 1, QueueSize: 8})
	app.scheduler.Start(context.Background())

	app.initRepositories()
	app.initServices()
	app.initHandlers()
	app.initRouter()

	app.server = &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        app.router,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	if cfg.BackfillOnStart {
		if err := app.scheduler.ScheduleUnique(app.services.Content.BackfillJob(cfg.BackfillBatchSize)); err != nil {
			logger.Error(err, "Failed to schedule start-up backfill", nil)
		}
	}

	return app, nil
}

func (a *Application) Run() error {
	logger.Info("Server starting", map[string]interface{}{
		"port":           a.cfg.Port,
		"environment":    a.cfg.Environment,
		"schema_version": a.services.Content.SchemaVersion(),
	})

	return a.server.ListenAndServe()
}

func (a *Application) Shutdown(ctx context.Context) error {
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	if a.scheduler != nil {
		if err := a.scheduler.Shutdown(ctx); err != nil {
			logger.Error(err, "Background jobs did not stop in time", nil)
		}
	}

	if a.rateLimiter != nil {
		_ = a.rateLimiter.Shutdown()
	}

	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			logger.Error(err, "Failed to close cache connection", nil)
		}
	}

	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			sqlDB.Close()
		}
	}

	return nil
}

func (a *Application) Router() *gin.Engine {
	return a.router
}

func (a *Application) initDatabase() error {
	logger.Info("Connecting to database", nil)

	db, err := gorm.Open(postgres.Open(a.cfg.DatabaseURL), &gorm.Config{
		Logger: logger.NewGormLogger(),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	a.db = db
	return nil
}

func (a *Application) runMigrations() error {
	if a.db == nil {
		return fmt.Errorf("database connection is not initialized")
	}

	logger.Info("Running database migrations", nil)

	if err := a.db.AutoMigrate(
		&models.CourseRecord{},
		&models.LessonContentRecord{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("Database migration completed", nil)
	return nil
}

func (a *Application) initCache() error {
	c, err := cache.NewCache(a.cfg.RedisURL, a.cfg.EnableRedis)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	a.cache = c
	return nil
}

func (a *Application) initRepositories() {
	a.repositories = repositoryContainer{
		Course:        repository.NewCourseRepository(a.db),
		LessonContent: repository.NewLessonContentRepository(a.db),
	}
}

func (a *Application) initServices() {
	a.services = serviceContainer{
		Content: service.NewContentService(
			a.repositories.Course,
			a.repositories.LessonContent,
			a.cache,
			service.ContentServiceConfig{
				SchemaVersion:     a.cfg.ContentSchemaVersion,
				CacheTTL:          a.cfg.CacheTTL,
				ImportConcurrency: a.cfg.ImportConcurrency,
				MaxImportBatch:    a.cfg.MaxImportBatch,
			},
		),
	}
}

func (a *Application) initHandlers() {
	a.handlers = handlerContainer{
		Content: handlers.NewContentHandler(a.services.Content, a.scheduler, a.cfg.BackfillBatchSize),
	}
}

func (a *Application) initRouter() {
	if a.cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	a.rateLimiter = middleware.NewRateLimitManager(
		context.Background(),
		a.cfg.RateLimitRequests,
		a.cfg.RateLimitWindow,
		a.cfg.RateLimitBurst,
	)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(logger.GinLogger())
	if a.cfg.EnableMetrics {
		router.Use(middleware.MetricsMiddleware())
	}
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.RateLimitMiddleware(a.rateLimiter))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     a.cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	if a.cfg.EnableMetrics {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	content := a.handlers.Content
	v1 := router.Group("/api/v1")
	{
		v1.POST("/content/migrate", content.MigrateLesson)
		v1.POST("/content/detect", content.DetectShape)

		v1.POST("/courses/normalize", content.NormalizeCourse)
		v1.POST("/courses/import", content.ImportCourses)
		v1.POST("/courses", content.SaveCourse)
		v1.GET("/courses", content.ListCourses)
		v1.GET("/courses/:slug", content.GetCourse)

		admin := v1.Group("/admin")
		{
			admin.POST("/backfill", content.StartBackfill)
			admin.GET("/backfill", content.BackfillStatus)
			admin.DELETE("/cache", content.ClearCache)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Route not found",
				"path":  c.Request.URL.Path,
			})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	a.router = router
}
