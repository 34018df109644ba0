package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"citron/jobs"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const DefaultListenAddr = ":12369"

// max upload size in bytes
const DefaultMaxUploadSize = 512 << 20

const shutdownTimeout = time.Second * 10

// Server maps HTTP requests onto the job store, runner, and pool.
type Server struct {
	log *zap.Logger

	engine *gin.Engine
	http   *http.Server

	store  *jobs.Store
	runner *jobs.Runner
	pool   *jobs.Pool

	maxUploadSize int64
}

type ServerOptions struct {
	ParentLogger *zap.Logger
	Store        *jobs.Store
	Runner       *jobs.Runner
	Pool         *jobs.Pool

	ListenAddr    string
	MaxUploadSize int64
}

func NewServer(options ServerOptions) *Server {
	if options.ParentLogger.Core().Enabled(zapcore.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		log: options.ParentLogger.Named("api"),

		store:  options.Store,
		runner: options.Runner,
		pool:   options.Pool,

		maxUploadSize: options.MaxUploadSize,
	}
	if s.maxUploadSize <= 0 {
		s.maxUploadSize = DefaultMaxUploadSize
	}

	listenAddr := options.ListenAddr
	if listenAddr == "" {
		listenAddr = DefaultListenAddr
	}

	s.engine = gin.New()
	s.engine.Use(
		s.recoveryMiddleware(),
		s.requestIDMiddleware(),
		s.loggingMiddleware(),
	)

	s.engine.POST("/asr", s.handleSyncASR)
	s.engine.POST("/tasks", s.handleCreateTask)
	s.engine.GET("/tasks/:id", s.handleTaskStatus)
	s.engine.GET("/tasks/:id/result", s.handleTaskResult)

	s.http = &http.Server{
		Addr:    listenAddr,
		Handler: s.engine,
	}

	return s
}

// Handler exposes the route tree for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run binds the listener and serves until ctx ends, then shuts down
// gracefully so in-flight responses finish.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("binding %s: %w", s.http.Addr, err)
	}
	s.log.With(zap.String("addr", s.http.Addr)).Info("http server listening")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.http.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}

	s.log.Info("http server stopped")
	return nil
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func respondError(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, errorResponse{Detail: detail})
}
