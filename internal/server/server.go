// Package server contains the HTTP handlers and routing for the application.
package server

import (
	"fmt"
	"sync"
	"time"

	"quill/internal/cache"
	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/repository"
	"quill/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var (
	promOnce     sync.Once
	promInstance *fiberprometheus.FiberPrometheus
)

// httpMetrics returns the process-wide Prometheus HTTP middleware. A single
// instance is shared by every Server so collectors register exactly once.
func httpMetrics() *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		promInstance = fiberprometheus.New("quill")
	})
	return promInstance
}

// Server holds all dependencies and provides handlers.
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	promMiddleware *fiberprometheus.FiberPrometheus

	userRepo    repository.UserRepository
	groupRepo   repository.GroupRepository
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
	followRepo  repository.FollowRepository

	userService    *service.UserService
	feedService    *service.FeedService
	postService    *service.PostService
	commentService *service.CommentService
	followService  *service.FollowService
	mediaService   *service.MediaService
}

// NewServer creates a server instance, connecting the database and Redis.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)

	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Tests use it with an in-memory SQLite database and miniredis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: httpMetrics(),
		userRepo:       repository.NewUserRepository(db),
		groupRepo:      repository.NewGroupRepository(db),
		postRepo:       repository.NewPostRepository(db),
		commentRepo:    repository.NewCommentRepository(db),
		followRepo:     repository.NewFollowRepository(db),
	}

	server.userService = service.NewUserService(server.userRepo)
	server.feedService = service.NewFeedService(server.postRepo, server.groupRepo, server.userRepo, server.followRepo)
	server.postService = service.NewPostService(server.postRepo, server.groupRepo)
	server.commentService = service.NewCommentService(server.commentRepo, server.postRepo)
	server.followService = service.NewFollowService(server.followRepo, server.userRepo)
	server.mediaService = service.NewMediaService(cfg.MediaDir)

	middleware.InitMiddleware(cfg)

	return server, nil
}

// SetupMiddleware configures the ambient middleware stack for the Fiber app.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	// After requestid and context middleware so entries carry correlation ids.
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))
}

// SetupRoutes registers all application routes.
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Account lifecycle. The login GET is the target of every auth redirect.
	auth := app.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	auth.Get("/login", s.LoginPage)
	auth.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/logout", s.Logout)

	// The global feed is the only whole-page-cached route.
	app.Get("/", cache.PageCache(s.config.PageCacheTTL()), s.Index)

	app.Get("/group/:slug", s.GroupFeed)

	// Composer routes before the parameterized profile/post routes.
	app.Get("/create", middleware.LoginRequired(), s.NewPostForm)
	app.Post("/create", middleware.LoginRequired(), s.CreatePost)

	app.Get("/follow", middleware.LoginRequired(), s.FollowIndex)

	app.Get("/profile/:username", middleware.OptionalUser(), s.Profile)
	app.Get("/profile/:username/follow", middleware.LoginRequired(), s.Follow)
	app.Post("/profile/:username/follow", middleware.LoginRequired(), s.Follow)
	app.Get("/profile/:username/unfollow", middleware.LoginRequired(), s.Unfollow)
	app.Post("/profile/:username/unfollow", middleware.LoginRequired(), s.Unfollow)

	app.Get("/posts/:id", s.GetPost)
	app.Get("/posts/:id/edit", middleware.LoginRequired(), s.EditPostForm)
	app.Post("/posts/:id/edit", middleware.LoginRequired(), s.UpdatePost)
	app.Post("/posts/:id/comment", middleware.LoginRequired(), s.AddComment)

	// Uploaded post images.
	app.Static("/media", s.config.MediaDir)

	// Everything unrouted is the application's 404, not Fiber's default.
	app.Use(s.NotFoundHandler)
}

// LivenessCheck reports that the process is up.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// ReadinessCheck reports whether the database (and Redis, when configured)
// answer.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	sqlDB, err := s.db.DB()
	if err != nil || sqlDB.PingContext(c.Context()) != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "degraded", "database": "down",
		})
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "ok"
		if err := s.redis.Ping(c.Context()).Err(); err != nil {
			redisStatus = "down"
		}
	}

	return c.JSON(fiber.Map{"status": "ok", "database": "ok", "redis": redisStatus})
}

// NotFoundHandler is the terminal handler for unknown paths.
func (s *Server) NotFoundHandler(c *fiber.Ctx) error {
	return models.RespondWithError(c, fiber.StatusNotFound,
		models.NewNotFoundError("Page", c.Path()))
}
