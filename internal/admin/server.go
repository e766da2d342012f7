package admin

import (
	"net/http"
	"time"

	"github.com/danmuck/ghostnet/internal/auth"
	"github.com/danmuck/ghostnet/internal/engine"
	"github.com/danmuck/ghostnet/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SnapshotSource returns the latest published engine state. It is called from
// HTTP handler goroutines.
type SnapshotSource interface {
	Snapshot() (engine.Snapshot, bool)
}

type Server struct {
	node      string
	addr      string
	source    SnapshotSource
	validator auth.Validator
	router    *gin.Engine
	appeared  time.Time
}

// New builds the admin router. A nil validator leaves every route open;
// otherwise all routes but /health require a bearer token.
func New(node, addr string, corsOrigins []string, source SnapshotSource, validator auth.Validator) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.AdminMiddleware(node))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		node:      node,
		addr:      addr,
		source:    source,
		validator: validator,
		router:    r,
		appeared:  time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Addr() string {
	return s.addr
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.appeared).String(),
			"service": s.node,
		})
	})

	routes := s.router.Group("/")
	if s.validator != nil {
		routes.Use(s.requireToken)
	}

	routes.GET("/metrics", gin.WrapH(promhttp.Handler()))

	routes.GET("/ready", func(c *gin.Context) {
		snap, ok := s.source.Snapshot()
		if !ok {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"ready":   true,
			"name":    snap.Name,
			"address": snap.Address,
		})
	})

	routes.GET("/spaces", func(c *gin.Context) {
		snap, ok := s.latest(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, snap)
	})

	routes.GET("/spaces/:space/peers", func(c *gin.Context) {
		sp, ok := s.space(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"space":       sp.Space,
			"peers":       sp.Peers,
			"connections": sp.Connections,
		})
	})

	routes.GET("/spaces/:space/entries", func(c *gin.Context) {
		sp, ok := s.space(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"space":   sp.Space,
			"entries": sp.Entries,
		})
	})
}

func (s *Server) requireToken(c *gin.Context) {
	token, err := auth.BearerToken(c.GetHeader("Authorization"))
	if err == nil {
		err = s.validator.Validate(token)
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.Next()
}

func (s *Server) latest(c *gin.Context) (engine.Snapshot, bool) {
	snap, ok := s.source.Snapshot()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "engine not started"})
		return engine.Snapshot{}, false
	}
	return snap, true
}

func (s *Server) space(c *gin.Context) (engine.SpaceSnapshot, bool) {
	snap, ok := s.latest(c)
	if !ok {
		return engine.SpaceSnapshot{}, false
	}
	key := c.Param("space")
	sp, ok := snap.Space(key)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": engine.ErrUnknownSpace.Error(), "space": key})
		return engine.SpaceSnapshot{}, false
	}
	return sp, true
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
