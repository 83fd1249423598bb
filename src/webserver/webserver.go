package webserver

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/anonthink/modrelay/src/components/moderation"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Config struct {
	Addr       string
	AdminToken string
	JWTSecret  string
}

// Server is the ops HTTP API: liveness plus a moderator-only statistics
// endpoint behind the auth flow.
type Server struct {
	config  Config
	engine  *moderation.Engine
	srv     *http.Server
	limiter *RateLimiter
}

func New(config Config, engine *moderation.Engine) *Server {
	g := gin.New()
	g.Use(gin.Logger(), gin.Recovery())

	s := &Server{
		config: config,
		engine: engine,
	}
	s.attachRoutes(g)
	s.srv = &http.Server{
		Addr:    config.Addr,
		Handler: g,
	}
	return s
}

func (s *Server) attachRoutes(g *gin.Engine) {
	g.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
	}))

	g.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.limiter = NewRateLimiter(30, time.Minute)

	v1 := g.Group("/v1")
	v1.Use(RateLimitMiddleware(s.limiter))
	{
		v1.POST("/auth", s.auth)

		secured := v1.Use(JWTMiddleware([]byte(s.config.JWTSecret)))
		secured.GET("/stats", s.stats)
	}
}

func (s *Server) stats(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Report())
}

func (s *Server) Start() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server: %v", err)
		}
	}()
	log.Printf("HTTP API listening on %s", s.config.Addr)
}

func (s *Server) Stop(ctx context.Context) {
	s.limiter.Stop()
	if err := s.srv.Shutdown(ctx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
}
