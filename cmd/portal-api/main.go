package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/university-portal-api/api/swagger"
	"github.com/noah-isme/university-portal-api/internal/handler"
	"github.com/noah-isme/university-portal-api/internal/middleware"
	"github.com/noah-isme/university-portal-api/internal/models"
	"github.com/noah-isme/university-portal-api/internal/repository"
	"github.com/noah-isme/university-portal-api/internal/service"
	"github.com/noah-isme/university-portal-api/pkg/cache"
	"github.com/noah-isme/university-portal-api/pkg/config"
	"github.com/noah-isme/university-portal-api/pkg/database"
	"github.com/noah-isme/university-portal-api/pkg/export"
	"github.com/noah-isme/university-portal-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/university-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/university-portal-api/pkg/middleware/requestid"
)

// @title University Portal API
// @version 1.0.0
// @description Administration portal for registration, transcripts, grades, fees and support
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	// The portal stays up without Redis; the catalog just skips its cache.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, catalog caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	termRepo := repository.NewTermRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	transcriptRepo := repository.NewTranscriptRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	ticketRepo := repository.NewTicketRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "university-portal-api",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	termSvc := service.NewTermService(termRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, termRepo, cacheRepo, metricsSvc, cfg.Catalog.CacheTTL, validate, logr)
	registrationSvc := service.NewRegistrationService(registrationRepo, courseRepo, termRepo, userRepo, cacheRepo, metricsSvc, validate, logr)
	transcriptSvc := service.NewTranscriptService(transcriptRepo, gradeRepo, userRepo, export.NewTranscriptPDFExporter(), userRepo, metricsSvc, validate, logr)
	gradeSvc := service.NewGradeService(gradeRepo, courseRepo, userRepo, validate, logr)
	invoiceSvc := service.NewInvoiceService(invoiceRepo, userRepo, export.NewCSVExporter(), userRepo, validate, logr)
	ticketSvc := service.NewTicketService(ticketRepo, userRepo, validate, logr)
	announcementSvc := service.NewAnnouncementService(announcementRepo, userRepo, validate, logr)
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Terms:         termRepo,
		Announcements: announcementSvc,
		Enrollments:   registrationRepo,
		Teaching:      courseRepo,
		Tickets:       ticketRepo,
		Logger:        logr,
	})

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	termHandler := handler.NewTermHandler(termSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	registrationHandler := handler.NewRegistrationHandler(registrationSvc)
	transcriptHandler := handler.NewTranscriptHandler(transcriptSvc)
	gradeHandler := handler.NewGradeHandler(gradeSvc)
	invoiceHandler := handler.NewInvoiceHandler(invoiceSvc)
	ticketHandler := handler.NewTicketHandler(ticketSvc)
	announcementHandler := handler.NewAnnouncementHandler(announcementSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)

		authed := auth.Group("", middleware.JWT(authSvc))
		authed.POST("/logout", authHandler.Logout)
		authed.POST("/change-password", authHandler.ChangePassword)
		authed.GET("/me", authHandler.Me)
	}

	users := api.Group("/users", middleware.JWT(authSvc))
	{
		users.GET("", middleware.RequireRoles(models.RoleAdmin), userHandler.List)
		users.POST("", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(userRepo, "USER_CREATE", "users"), userHandler.Create)
		users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Get)
		users.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Update)
		users.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(userRepo, "USER_DEACTIVATE", "users"), userHandler.Deactivate)
	}

	terms := api.Group("/terms", middleware.JWT(authSvc))
	{
		terms.GET("", termHandler.List)
		terms.GET("/active", termHandler.Active)
		terms.GET("/:id", termHandler.Get)
		terms.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar), termHandler.Create)
		terms.PUT("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar), termHandler.Update)
		terms.PUT("/:id/activate", middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar), middleware.Audit(userRepo, "TERM_ACTIVATE", "terms"), termHandler.SetActive)
	}

	courses := api.Group("/courses", middleware.JWT(authSvc))
	{
		courses.GET("", courseHandler.List)
		courses.GET("/:id", courseHandler.Get)
		courses.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar), courseHandler.Create)
		courses.PUT("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar), courseHandler.Update)
	}

	api.GET("/catalog", middleware.JWT(authSvc), courseHandler.Catalog)

	sections := api.Group("/sections", middleware.JWT(authSvc))
	{
		sections.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar), courseHandler.CreateSection)
		sections.POST("/:id/instructors", middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar), courseHandler.AssignInstructor)
		sections.GET("/:id/seats", registrationHandler.SeatCount)
		sections.GET("/:id/grades", middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar, models.RoleFaculty), gradeHandler.ListBySection)
		sections.PUT("/:id/grades", middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar, models.RoleFaculty), gradeHandler.Upsert)
	}

	registrations := api.Group("/registrations", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleStudent))
	{
		registrations.POST("", registrationHandler.RequestSeat)
		registrations.POST("/drop", registrationHandler.DropSeat)
		registrations.GET("", registrationHandler.ListMine)
	}

	api.GET("/grades", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleStudent, models.RoleAlumni), gradeHandler.ListMine)

	transcripts := api.Group("/transcript-requests", middleware.JWT(authSvc))
	{
		transcripts.POST("", middleware.RequireRoles(models.RoleStudent, models.RoleAlumni), transcriptHandler.Submit)
		transcripts.GET("", transcriptHandler.List)
		transcripts.GET("/:id", transcriptHandler.Get)
		transcripts.PUT("/:id/review", middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar), transcriptHandler.StartReview)
		transcripts.PUT("/:id/approve", middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar), transcriptHandler.Approve)
		transcripts.PUT("/:id/reject", middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar), transcriptHandler.Reject)
		transcripts.PUT("/:id/issue", middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar), transcriptHandler.Issue)
		transcripts.PUT("/:id/cancel", middleware.RequireRoles(models.RoleStudent, models.RoleAlumni), transcriptHandler.Cancel)
		transcripts.GET("/:id/download", transcriptHandler.Download)
	}

	api.GET("/transcripts/unofficial", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleStudent, models.RoleAlumni), transcriptHandler.Unofficial)

	invoices := api.Group("/invoices", middleware.JWT(authSvc))
	{
		invoices.GET("", invoiceHandler.List)
		invoices.GET("/export", middleware.RequireRoles(models.RoleAdmin, models.RoleFinance), invoiceHandler.Export)
		invoices.GET("/:id", invoiceHandler.Get)
		invoices.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleFinance), invoiceHandler.Create)
		invoices.PUT("/:id/pay", middleware.RequireRoles(models.RoleAdmin, models.RoleFinance), invoiceHandler.MarkPaid)
	}

	tickets := api.Group("/tickets", middleware.JWT(authSvc))
	{
		tickets.POST("", ticketHandler.Create)
		tickets.GET("", ticketHandler.List)
		tickets.GET("/:id", ticketHandler.Get)
		tickets.POST("/:id/messages", ticketHandler.AddMessage)
		tickets.PUT("/:id/status", middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar, models.RoleFinance), ticketHandler.UpdateStatus)
	}

	announcements := api.Group("/announcements", middleware.JWT(authSvc))
	{
		announcements.GET("", announcementHandler.List)
		announcements.GET("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar), announcementHandler.Get)
		announcements.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar), announcementHandler.Create)
		announcements.PUT("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar), announcementHandler.Update)
		announcements.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar), announcementHandler.Delete)
	}

	api.GET("/dashboard", middleware.JWT(authSvc), dashboardHandler.Overview)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
