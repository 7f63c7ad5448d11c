package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"xrayqc/api/internal/aiclient"
	"xrayqc/api/internal/config"
	"xrayqc/api/internal/events"
	"xrayqc/api/internal/middleware"
	"xrayqc/api/internal/models"
	"xrayqc/api/internal/repository"
	"xrayqc/api/internal/service"
	"xrayqc/api/internal/storage"
)

type HandlerSet struct {
	log         zerolog.Logger
	cfg         *config.AppConfig
	authService *service.AuthService
	inspections *service.InspectionService
	db          *pgxpool.Pool
	cache       *redis.Client
	users       *repository.UserRepository
	logs        *repository.InspectionRepository
	detectors   *repository.DetectorRepository
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, cache *redis.Client, store *storage.ObjectStore, cfg *config.AppConfig) HandlerSet {
	userRepo := repository.NewUserRepository(db)
	logRepo := repository.NewInspectionRepository(db)
	detectorRepo := repository.NewDetectorRepository(db)

	predictor := aiclient.New(cfg.AI, log)
	publisher := events.NewPublisher(cache, log)

	var archiver service.Archiver
	if store != nil {
		archiver = store
	}

	auth := service.NewAuthService(userRepo, cfg, log)
	inspections := service.NewInspectionService(logRepo, predictor, archiver, publisher, cfg, log)

	return HandlerSet{
		log:         log,
		cfg:         cfg,
		authService: auth,
		inspections: inspections,
		db:          db,
		cache:       cache,
		users:       userRepo,
		logs:        logRepo,
		detectors:   detectorRepo,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/health", h.Health)

	auth := router.Group("/auth")
	auth.POST("/register", h.RegisterUser)
	auth.POST("/login", h.Login)

	authed := router.Group("")
	authed.Use(middleware.Auth(h.cfg))
	{
		authed.GET("/auth/status", h.AuthStatus)
		authed.PUT("/auth/profile", h.UpdateProfile)

		inspection := authed.Group("/inspection")
		inspection.POST("/upload", h.UploadInspection)
		inspection.POST("/batch", h.BatchInspection)
		inspection.GET("/logs", h.InspectionLogs)

		authed.GET("/feed/latest", h.LatestFeed)
		authed.GET("/stats/summary", h.StatsSummary)
		authed.GET("/log/defect/:id", h.DefectDetail)
		authed.POST("/log/feedback/:id", h.RecordFeedback)
		authed.GET("/logs/history", h.History)

		admin := authed.Group("/admin")
		admin.Use(middleware.RequireRoles(models.UserRoleAdmin))
		admin.GET("/users/pending", h.PendingUsers)
		admin.POST("/users/approve", h.ApproveUser)
		admin.POST("/users/reject", h.RejectUser)
		admin.PUT("/users/role", h.UpdateUserRole)
		admin.GET("/reports", h.Reports)
		admin.GET("/users", h.ListUsers)
	}
}
