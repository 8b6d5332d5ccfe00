package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tradecopia/vps-service/internal/config"
)

type Server struct {
	router  *gin.Engine
	handler *Handler
	cfg     *config.Config

	// Login rate limiter: 10 attempts per IP per hour, enough for fat
	// fingers without inviting credential stuffing.
	loginLimiter *RateLimiter
}

func NewServer(cfg *config.Config, service ProvisionAPI) *Server {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:       router,
		handler:      NewHandler(service, cfg),
		cfg:          cfg,
		loginLimiter: NewRateLimiter(10, time.Hour),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "vps-service",
		})
	})

	// Provisioning API - shared-secret auth, called by the storefront
	provision := s.router.Group("/")
	provision.Use(APIKeyAuthMiddleware(s.cfg.APIKey))
	{
		provision.POST("/create_vps", s.handler.CreateVPS)
		provision.POST("/delete_vps", s.handler.DeleteVPS)
	}

	// Dashboard API - session auth for the records browser
	s.router.POST("/api/auth/login", RateLimitMiddleware(s.loginLimiter), s.handler.Login)

	dashboard := s.router.Group("/api")
	dashboard.Use(SessionAuthMiddleware(s.cfg.Dashboard.JWTSecret))
	{
		dashboard.GET("/vps-records", s.handler.ListRecords)
	}
}

func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}
