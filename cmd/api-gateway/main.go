package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/campus-exit-api/api/swagger"
	"github.com/noah-isme/campus-exit-api/internal/handler"
	"github.com/noah-isme/campus-exit-api/internal/middleware"
	"github.com/noah-isme/campus-exit-api/internal/models"
	"github.com/noah-isme/campus-exit-api/internal/repository"
	"github.com/noah-isme/campus-exit-api/internal/service"
	"github.com/noah-isme/campus-exit-api/pkg/cache"
	"github.com/noah-isme/campus-exit-api/pkg/config"
	"github.com/noah-isme/campus-exit-api/pkg/database"
	"github.com/noah-isme/campus-exit-api/pkg/export"
	"github.com/noah-isme/campus-exit-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/campus-exit-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/campus-exit-api/pkg/middleware/requestid"
)

// @title Campus Exit Pass API
// @version 1.0.0
// @description Exit-request workflow: student submission, mentor and HOD approval, guard gate control
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, guard cache disabled", "error", err)
		redisClient = nil
	}

	// Repositories.
	requestRepo := repository.NewExitRequestRepository(db)
	batchRuleRepo := repository.NewBatchRuleRepository(db)
	assignmentRepo := repository.NewMentorAssignmentRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	mentorRepo := repository.NewMentorRepository(db)
	hodRepo := repository.NewHODRepository(db)
	faceRepo := repository.NewFaceRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	// Services.
	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "campus-exit-api",
	})
	requestSvc := service.NewRequestService(service.RequestServiceDeps{
		Requests:      requestRepo,
		Students:      studentRepo,
		Mentors:       mentorRepo,
		HODs:          hodRepo,
		BatchRules:    batchRuleRepo,
		Assignments:   assignmentRepo,
		Faces:         faceRepo,
		Cache:         cacheRepo,
		Tx:            db,
		Metrics:       metricsSvc,
		Logger:        logr,
		DailyCap:      cfg.Requests.DailyCap,
		GuardCacheTTL: cfg.Requests.GuardCacheTTL,
	})
	assignmentSvc := service.NewAssignmentService(batchRuleRepo, assignmentRepo, mentorRepo, db, nil, logr)
	mentorSvc := service.NewMentorService(mentorRepo, userRepo, nil, logr)
	exportSvc := service.NewExportService(requestSvc, export.NewSlipExporter(), export.NewCSVExporter(), logr,
		cfg.Exports.PassSlipsEnabled, cfg.Exports.DailyLogEnabled)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	requestHandler := handler.NewRequestHandler(requestSvc)
	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc)
	mentorHandler := handler.NewMentorHandler(mentorSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
	}

	requests := api.Group("/requests", middleware.JWT(authSvc))
	{
		requests.POST("", middleware.RequireRoles(models.RoleStudent), requestHandler.Create)
		requests.GET("/my", middleware.RequireRoles(models.RoleStudent), requestHandler.MyHistory)
		requests.GET("/my/today", middleware.RequireRoles(models.RoleStudent), requestHandler.MyToday)
		requests.DELETE("/:id", middleware.RequireRoles(models.RoleStudent), requestHandler.Delete)

		requests.GET("/mentor/pending", middleware.RequireRoles(models.RoleMentor), requestHandler.MentorQueue)
		requests.POST("/:id/mentor/approve", middleware.RequireRoles(models.RoleMentor), requestHandler.MentorApprove)
		requests.POST("/:id/mentor/reject", middleware.RequireRoles(models.RoleMentor), requestHandler.MentorReject)

		requests.GET("/hod/pending", middleware.RequireRoles(models.RoleHOD), requestHandler.HODQueue)
		requests.GET("/hod/decided", middleware.RequireRoles(models.RoleHOD), requestHandler.HODDecided)
		requests.POST("/:id/hod/approve", middleware.RequireRoles(models.RoleHOD), requestHandler.HODApprove)
		requests.POST("/:id/hod/reject", middleware.RequireRoles(models.RoleHOD), requestHandler.HODReject)

		requests.GET("/guard/approved", middleware.RequireRoles(models.RoleGuard), requestHandler.GuardQueue)
		requests.POST("/:id/exit", middleware.RequireRoles(models.RoleGuard), requestHandler.MarkExit)

		requests.GET("", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), requestHandler.ListAll)
		requests.GET("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin, models.RoleHOD, models.RoleMentor), requestHandler.Get)
		requests.POST("/sweep", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), requestHandler.Sweep)

		requests.GET("/:id/slip", middleware.RequireRoles(models.RoleStudent, models.RoleGuard, models.RoleAdmin, models.RoleSuperAdmin), exportHandler.PassSlip)
	}

	admin := api.Group("/admin", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	{
		admin.POST("/batch-rules", assignmentHandler.CreateBatchRule)
		admin.GET("/batch-rules", assignmentHandler.ListBatchRules)
		admin.DELETE("/batch-rules/:id", assignmentHandler.DeleteBatchRule)

		admin.POST("/assignments", assignmentHandler.CreateAssignment)
		admin.GET("/assignments", assignmentHandler.ListAssignments)
		admin.POST("/assignments/reset", assignmentHandler.ResetSemester)
		admin.POST("/assignments/:id/unlock", assignmentHandler.UnlockAssignment)

		admin.POST("/mentors", mentorHandler.Create)
		admin.GET("/mentors", mentorHandler.List)
		admin.GET("/mentors/:id", mentorHandler.Get)
		admin.PUT("/mentors/:id", mentorHandler.Update)
		admin.DELETE("/mentors/:id", mentorHandler.Delete)

		admin.GET("/exports/daily-log", exportHandler.DailyLog)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
