package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/edupagos/colegio-api/api/swagger"
	"github.com/edupagos/colegio-api/internal/handler"
	"github.com/edupagos/colegio-api/internal/middleware"
	"github.com/edupagos/colegio-api/internal/models"
	"github.com/edupagos/colegio-api/internal/repository"
	"github.com/edupagos/colegio-api/internal/service"
	"github.com/edupagos/colegio-api/pkg/cache"
	"github.com/edupagos/colegio-api/pkg/config"
	"github.com/edupagos/colegio-api/pkg/database"
	"github.com/edupagos/colegio-api/pkg/export"
	"github.com/edupagos/colegio-api/pkg/logger"
	corsmiddleware "github.com/edupagos/colegio-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edupagos/colegio-api/pkg/middleware/requestid"
)

// @title Colegio Pagos API
// @version 1.0.0
// @description Administracion de pagos escolares: estudiantes, deudas, pagos y planes de pago
// @BasePath /api/v1
// @schemes http

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

	// Redis is optional: without it the API still serves, minus caching and
	// the change-event stream.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, continuing without cache", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	// Repositories.
	conceptRepo := repository.NewConceptRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	debtRepo := repository.NewDebtRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	planRepo := repository.NewPlanRepository(db)
	guardianRepo := repository.NewGuardianRepository(db)
	userRepo := repository.NewUserRepository(db)
	authRepo := repository.NewAuthRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)
	defer cacheRepo.Close() //nolint:errcheck

	// Services.
	metricsService := service.NewMetricsService()

	var eventService *service.EventService
	if cfg.Events.Enabled && redisClient != nil {
		eventRepo := repository.NewEventRepository(redisClient, cfg.Events.ChannelPrefix+":changes")
		eventService = service.NewEventService(eventRepo, eventRepo, logr)
	} else {
		eventService = service.NewEventService(nil, nil, logr)
	}

	authService := service.NewAuthService(userRepo, authRepo, validate, logr, service.AuthConfig{
		Secret:            cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		RefreshExpiry:     cfg.JWT.RefreshExpiration,
		Issuer:            "colegio-api",
	})
	userService := service.NewUserService(userRepo, authRepo, validate, logr)
	conceptService := service.NewConceptService(conceptRepo, validate, logr)
	gradeService := service.NewGradeService(gradeRepo, validate, logr)
	studentService := service.NewStudentService(studentRepo, debtRepo, conceptRepo, paymentRepo, eventService, validate, logr)
	debtService := service.NewDebtService(debtRepo, studentRepo, conceptRepo, eventService, metricsService, cfg.Ledger.DefaultLateFee, validate, logr)
	planService := service.NewPlanService(planRepo, conceptRepo, studentRepo, eventService, cfg.Ledger.InstallmentConceptName, validate, logr)
	paymentService := service.NewPaymentService(paymentRepo, debtRepo, studentRepo, planRepo, authRepo, eventService, metricsService, validate, logr)
	guardianService := service.NewGuardianService(guardianRepo, studentRepo, userRepo, eventService, validate, logr)

	var dashboardService *service.DashboardService
	if cfg.Dashboard.Enabled {
		dashboardService = service.NewDashboardService(debtRepo, studentRepo, paymentRepo, cacheRepo, metricsService, cfg.Dashboard.CacheTTL, logr)
	} else {
		dashboardService = service.NewDashboardService(debtRepo, studentRepo, paymentRepo, nil, metricsService, cfg.Dashboard.CacheTTL, logr)
	}

	// Handlers.
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	conceptHandler := handler.NewConceptHandler(conceptService)
	gradeHandler := handler.NewGradeHandler(gradeService)
	studentHandler := handler.NewStudentHandler(studentService, guardianService)
	debtHandler := handler.NewDebtHandler(debtService, guardianService)
	planHandler := handler.NewPlanHandler(planService)
	paymentHandler := handler.NewPaymentHandler(paymentService, guardianService, dashboardService,
		export.NewReceiptRenderer(cfg.Receipts.SchoolName, cfg.Receipts.City))
	guardianHandler := handler.NewGuardianHandler(guardianService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService)
	eventHandler := handler.NewEventHandler(eventService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), routeHandlers{
		auth:      authHandler,
		users:     userHandler,
		concepts:  conceptHandler,
		grades:    gradeHandler,
		students:  studentHandler,
		debts:     debtHandler,
		plans:     planHandler,
		payments:  paymentHandler,
		guardians: guardianHandler,
		dashboard: dashboardHandler,
		events:    eventHandler,
	}, authService)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

type routeHandlers struct {
	auth      *handler.AuthHandler
	users     *handler.UserHandler
	concepts  *handler.ConceptHandler
	grades    *handler.GradeHandler
	students  *handler.StudentHandler
	debts     *handler.DebtHandler
	plans     *handler.PlanHandler
	payments  *handler.PaymentHandler
	guardians *handler.GuardianHandler
	dashboard *handler.DashboardHandler
	events    *handler.EventHandler
}

// registerRoutes mounts the API surface. Admin-only writes sit behind the
// role gate; parent access to student-scoped reads is checked inside the
// handlers because it depends on the guardian link, not the role alone.
func registerRoutes(api *gin.RouterGroup, h routeHandlers, authService *service.AuthService) {
	api.POST("/auth/login", h.auth.Login)
	api.POST("/auth/refresh", h.auth.Refresh)

	authed := api.Group("", middleware.JWT(authService))

	authed.POST("/auth/logout", h.auth.Logout)
	authed.POST("/auth/change-password", h.auth.ChangePassword)
	authed.GET("/auth/me", h.auth.Me)

	authed.GET("/events", h.events.Stream)
	authed.GET("/me/students", h.guardians.MyStudents)

	authed.GET("/concepts", h.concepts.List)
	authed.GET("/concepts/:id", h.concepts.Get)
	authed.GET("/grades", h.grades.List)
	authed.GET("/grades/:id", h.grades.Get)

	authed.GET("/students/:id", h.students.Get)
	authed.GET("/students/:id/balance", h.students.Balance)
	authed.GET("/debts", h.debts.List)
	authed.GET("/debts/:id", h.debts.Get)
	authed.GET("/payments", h.payments.List)
	authed.GET("/payments/:id", h.payments.Get)
	authed.GET("/payments/receipts/:receiptNumber", h.payments.Receipt)

	staff := authed.Group("", middleware.RequireRoles(models.RoleAdmin, models.RoleUser))
	staff.GET("/students", h.students.List)
	staff.GET("/students/:id/guardians", h.guardians.ListByStudent)
	staff.GET("/payment-plans", h.plans.List)
	staff.GET("/payment-plans/:id", h.plans.Get)
	staff.GET("/dashboard/stats", h.dashboard.Stats)
	staff.GET("/dashboard/reports", h.dashboard.Reports)
	staff.POST("/payments", h.payments.Register)

	admin := authed.Group("", middleware.RequireAdmin())
	admin.POST("/concepts", h.concepts.Create)
	admin.PUT("/concepts/:id", h.concepts.Update)
	admin.DELETE("/concepts/:id", h.concepts.Delete)
	admin.POST("/grades", h.grades.Create)
	admin.PUT("/grades/:id", h.grades.Update)
	admin.DELETE("/grades/:id", h.grades.Delete)
	admin.POST("/students", h.students.Create)
	admin.PUT("/students/:id", h.students.Update)
	admin.DELETE("/students/:id", h.students.Delete)
	admin.POST("/debts", h.debts.Create)
	admin.POST("/debts/:id/late-fee", h.debts.ApplyLateFee)
	admin.DELETE("/debts/:id", h.debts.Delete)
	admin.POST("/payment-plans", h.plans.Create)
	admin.PUT("/payment-plans/:id", h.plans.Update)
	admin.DELETE("/payment-plans/:id", h.plans.Delete)
	admin.POST("/payments/:id/cancel", h.payments.Cancel)
	admin.GET("/payments/export", h.payments.ExportCSV)
	admin.POST("/guardians", h.guardians.Link)
	admin.DELETE("/guardians/:id", h.guardians.Unlink)
	admin.GET("/users", h.users.List)
	admin.GET("/users/:id", h.users.Get)
	admin.POST("/users", h.users.Create)
	admin.PUT("/users/:id", h.users.Update)
	admin.POST("/users/:id/reset-password", h.users.ResetPassword)
	admin.DELETE("/users/:id", h.users.Delete)
}
