package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"edu-arena/internal/config"
	"edu-arena/internal/rendezvous"
	"edu-arena/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Server is the rendezvous service: hosts claim a globally unique peer id and
// students resolve it to the host's websocket URL.
type Server struct {
	config   *config.Config
	registry repository.Registry
	router   *gin.Engine
	logger   *slog.Logger
}

func NewServer(cfg *config.Config, registry repository.Registry, logger *slog.Logger) *Server {
	router := gin.New()
	router.Use(gin.Recovery())

	server := &Server{
		config:   cfg,
		registry: registry,
		router:   router,
		logger:   logger,
	}

	server.setupRoutes()
	return server
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestLogger())

	// CORS middleware
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-Peer-Token")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := s.router.Group("/api/v1")
	{
		api.POST("/peers", s.registerPeer)
		api.GET("/peers", s.listPeers)
		api.GET("/peers/:id", s.getPeer)
		api.DELETE("/peers/:id", s.releasePeer)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("rendezvous request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) registerPeer(c *gin.Context) {
	var req struct {
		ID  string `json:"id" binding:"required,max=64"`
		URL string `json:"url" binding:"required,url"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	reg := rendezvous.Registration{
		ID:        req.ID,
		URL:       req.URL,
		Token:     uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.registry.Register(c.Request.Context(), reg); err != nil {
		s.writeError(c, err)
		return
	}

	s.logger.Info("peer registered", "peer_id", reg.ID, "url", reg.URL)
	c.JSON(201, reg)
}

func (s *Server) listPeers(c *gin.Context) {
	peers, err := s.registry.List(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	if peers == nil {
		peers = []rendezvous.Registration{}
	}
	c.JSON(200, peers)
}

func (s *Server) getPeer(c *gin.Context) {
	reg, err := s.registry.Lookup(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	reg.Token = ""
	c.JSON(200, reg)
}

func (s *Server) releasePeer(c *gin.Context) {
	id := c.Param("id")
	if err := s.registry.Release(c.Request.Context(), id, c.GetHeader("X-Peer-Token")); err != nil {
		s.writeError(c, err)
		return
	}
	s.logger.Info("peer released", "peer_id", id)
	c.JSON(200, gin.H{"message": "Peer released"})
}

func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, rendezvous.ErrIDTaken):
		c.JSON(409, gin.H{"error": err.Error()})
	case errors.Is(err, rendezvous.ErrNotFound):
		c.JSON(404, gin.H{"error": err.Error()})
	case errors.Is(err, rendezvous.ErrTokenMismatch):
		c.JSON(403, gin.H{"error": err.Error()})
	default:
		s.logger.Error("registry failure", "error", err)
		c.JSON(500, gin.H{"error": "registry unavailable"})
	}
}
