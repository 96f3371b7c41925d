package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/auth"
	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/backend"
	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/config"
	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/handlers"
	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/middleware"
)

const version = "3.0.0"

type Server struct {
	cfg      *config.Config
	backend  backend.Backend
	handler  *handlers.Handler
	verifier auth.Verifier
	limiter  *middleware.RateLimiter
	storage  *handlers.StorageHandler
	logger   *zap.Logger
}

// New wires the handler stack and returns a configured *http.Server.
// storage is nil unless the local backend is active.
func New(
	cfg *config.Config,
	b backend.Backend,
	verifier auth.Verifier,
	limiter *middleware.RateLimiter,
	storage *handlers.StorageHandler,
	logger *zap.Logger,
) *http.Server {
	s := &Server{
		cfg:      cfg,
		backend:  b,
		handler:  handlers.NewHandler(b, logger),
		verifier: verifier,
		limiter:  limiter,
		storage:  storage,
		logger:   logger,
	}

	return &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// NewRouter builds the gin engine without the surrounding http.Server.
func NewRouter(
	cfg *config.Config,
	b backend.Backend,
	verifier auth.Verifier,
	limiter *middleware.RateLimiter,
	storage *handlers.StorageHandler,
	logger *zap.Logger,
) *gin.Engine {
	s := &Server{
		cfg:      cfg,
		backend:  b,
		handler:  handlers.NewHandler(b, logger),
		verifier: verifier,
		limiter:  limiter,
		storage:  storage,
		logger:   logger,
	}
	return s.RegisterRoutes()
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.logger))
	r.Use(middleware.SecurityHeaders())

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.Use(middleware.Auth(s.logger, s.verifier))
	if s.limiter != nil {
		r.Use(s.limiter.Middleware())
	}

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"provider": s.backend.Provider(),
			"version":  version,
		})
	})

	// Local object store routes; cloud providers sign their own URLs.
	if s.storage != nil {
		r.PUT("/storage/*key", s.storage.Put)
		r.GET("/storage/*key", s.storage.Get)
	}

	// API routes
	api := r.Group("/api")
	{
		// Public reads
		api.GET("/posts", s.handler.Post.ListPosts)
		api.GET("/posts/:postId", s.handler.Post.GetPost)

		// Protected routes (authentication required)
		protected := api.Group("")
		protected.Use(middleware.RequireUser(s.logger))
		{
			protected.POST("/posts", s.handler.Post.CreatePost)
			protected.DELETE("/posts/:postId", s.handler.Post.DeletePost)

			protected.GET("/upload-urls", s.handler.Upload.CreateUploadURLs)
			protected.POST("/upload-urls", s.handler.Upload.CreateUploadURLs)

			protected.GET("/profile", s.handler.Profile.GetProfile)
			protected.POST("/profile", s.handler.Profile.UpdateProfile)
		}
	}

	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
