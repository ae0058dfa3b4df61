package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/romangod6/html-audit/internal/storage"
)

type Config struct {
	Port      int
	Store     storage.Store
	MapPath   string
	ReportDir string
	// PagesDir roots the dir of POST /api/runs; empty disables the route.
	PagesDir string
	// Fetch runs a fetch pipeline; nil disables POST /api/runs.
	Fetch  FetchFunc
	Logger *log.Logger
}

type Server struct {
	router *gin.Engine
	port   int
	server *http.Server
	logger *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	jobs   sync.WaitGroup
}

func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(cfg.Logger))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		router: router,
		port:   cfg.Port,
		logger: cfg.Logger,
		ctx:    ctx,
		cancel: cancel,
	}

	handler := NewHandler(cfg, s.background)

	api := router.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		})

		runs := api.Group("/runs")
		{
			runs.GET("", handler.ListRuns)
			runs.POST("", handler.StartRun)
			runs.GET("/:id", handler.GetRun)
			runs.GET("/:id/downloads", handler.ListDownloads)
		}

		api.GET("/audits", handler.ListAudits)
		api.GET("/map", handler.GetMap)
		api.GET("/reports/:name", handler.GetReport)
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting API server", "port", s.port)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the listener, cancels background runs and waits for them.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.jobs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

// background runs fn outside the request lifecycle.
func (s *Server) background(fn func(ctx context.Context)) {
	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		fn(s.ctx)
	}()
}

func requestLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
