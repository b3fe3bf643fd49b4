// Package router declares the HTTP route table and the role required by each route.
package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/coursework-api/internal/handler"
	"github.com/noah-isme/coursework-api/internal/middleware"
	"github.com/noah-isme/coursework-api/internal/models"
	"github.com/noah-isme/coursework-api/internal/service"
	"github.com/noah-isme/coursework-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/coursework-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/coursework-api/pkg/middleware/requestid"
)

// Handlers groups the resource handlers mounted by New.
type Handlers struct {
	Auth        *handler.AuthHandler
	Users       *handler.UserHandler
	Tasks       *handler.TaskHandler
	Submissions *handler.SubmissionHandler
	Files       *handler.FileHandler
	Statistics  *handler.StatisticsHandler
	Metrics     *handler.MetricsHandler
}

// Options configures the engine.
type Options struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
	EnableMetrics  bool
}

// New builds the gin engine with global middleware and every route.
func New(opts Options, h Handlers, tokens middleware.TokenValidator, metrics *service.MetricsService, logr *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	if opts.EnableMetrics {
		r.GET("/metrics", h.Metrics.Prometheus)
	}
	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(opts.APIPrefix)
	authenticated := middleware.JWT(tokens)
	student := middleware.RequireRoles(models.RoleStudent)
	professor := middleware.RequireRoles(models.RoleProfessor)
	admin := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleProfessor, models.RoleAdmin)
	studentOrProfessor := middleware.RequireRoles(models.RoleStudent, models.RoleProfessor)

	auth := api.Group("/auth")
	auth.POST("/login", h.Auth.Login)
	auth.POST("/verify", h.Auth.Verify)
	auth.POST("/register", h.Auth.Register)
	auth.GET("/me", authenticated, h.Auth.Me)

	api.GET("/files/:token", h.Files.Download)

	users := api.Group("/users", authenticated)
	users.GET("/me", h.Users.Me)
	users.GET("", admin, h.Users.List)
	users.GET("/search", admin, h.Users.Search)
	users.GET("/lookup", admin, h.Users.Lookup)
	users.GET("/role/:role", admin, h.Users.ByRole)
	users.GET("/:id", admin, h.Users.Get)
	users.POST("", admin, h.Users.Create)
	users.PUT("/:id", admin, h.Users.Update)
	users.DELETE("/:id", admin, h.Users.Delete)

	tasks := api.Group("/tasks", authenticated)
	tasks.GET("", h.Tasks.List)
	tasks.GET("/active", h.Tasks.Active)
	tasks.GET("/search", h.Tasks.Search)
	tasks.GET("/due-after", h.Tasks.DueAfter)
	tasks.GET("/due-before", h.Tasks.DueBefore)
	tasks.GET("/status/:status", h.Tasks.ByStatus)
	tasks.GET("/:id", h.Tasks.Get)
	tasks.POST("", professor, h.Tasks.Create)
	tasks.PUT("/:id", professor, h.Tasks.Update)
	tasks.DELETE("/:id", professor, h.Tasks.Delete)

	submissions := api.Group("/submissions", authenticated)
	submissions.GET("", h.Submissions.List)
	submissions.GET("/graded", h.Submissions.Graded)
	submissions.GET("/pending", h.Submissions.Pending)
	submissions.GET("/late", h.Submissions.Late)
	submissions.GET("/between", h.Submissions.Between)
	submissions.GET("/task/:taskId", h.Submissions.ByTask)
	submissions.GET("/user/:userId", h.Submissions.ByUser)
	submissions.GET("/status/:status", h.Submissions.ByStatus)
	submissions.GET("/:id", h.Submissions.Get)
	submissions.GET("/:id/file", h.Submissions.FileLink)
	submissions.POST("", student, h.Submissions.Create)
	submissions.PUT("/:id", studentOrProfessor, h.Submissions.Update)
	submissions.DELETE("/:id", student, h.Submissions.Delete)
	submissions.POST("/:id/file", student, h.Submissions.Upload)

	statistics := api.Group("/statistics", authenticated)
	statistics.GET("/general", staff, h.Statistics.General)
	statistics.GET("/user/:userId", h.Statistics.User)
	statistics.GET("/task/:taskId", staff, h.Statistics.Task)
	statistics.GET("/ranking/students", staff, h.Statistics.Ranking)
	statistics.GET("/ranking/students/export", staff, h.Statistics.ExportRanking)

	return r
}
