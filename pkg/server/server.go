// Package server exposes an opened store over HTTP for host-side tooling:
// raw key access, statistics and the block map.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/FramKV/framkv/pkg/common/log"
	"github.com/FramKV/framkv/pkg/store"
)

// Server owns the HTTP listener and routes.
type Server struct {
	addr    string
	store   *store.Store
	engine  *gin.Engine
	handler StoreHandler
	srv     *http.Server
	logger  log.Logger
}

// NewServer builds the router over an already-begun store.
func NewServer(addr string, s *store.Store, logger log.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(requestID(), gin.Recovery())

	server := &Server{
		addr:    addr,
		store:   s,
		engine:  engine,
		handler: StoreHandler{store: s},
		logger:  logger.WithField("component", "server"),
	}
	server.registerRoutes()

	return server
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1")

	keys := v1.Group("/keys")
	{
		keys.GET("/:key", s.handler.Read)
		keys.PUT("/:key", s.handler.Write)
		keys.DELETE("/:key", s.handler.Delete)
		keys.GET("/:key/exists", s.handler.Exists)
	}

	v1.GET("/stats", s.handler.Stats)
	v1.GET("/blocks", s.handler.Blocks)
	v1.POST("/clear", s.handler.Clear)
}

// requestID tags every request with an identifier for log correlation.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:         s.addr,
		Handler:      s.engine,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.logger.Info("listening on %s", s.addr)
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
