package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tradecopia/vps-service/internal/client"
	"github.com/tradecopia/vps-service/internal/config"
	"github.com/tradecopia/vps-service/internal/models"
	"github.com/tradecopia/vps-service/internal/repository"
)

// sessionTTL matches the dashboard's historical 7-day session cookie.
const sessionTTL = 7 * 24 * time.Hour

// ProvisionAPI is what the handlers need from the provisioning service.
type ProvisionAPI interface {
	CreateVPS(ctx context.Context, email, planID string) (*models.CreateVPSResponse, error)
	DeleteVPS(ctx context.Context, email string) (*models.DeleteVPSResponse, error)
	ListRecords(ctx context.Context, period, search string, limit int64) (*models.RecordsResponse, error)
}

type Handler struct {
	service ProvisionAPI
	cfg     *config.Config
}

func NewHandler(service ProvisionAPI, cfg *config.Config) *Handler {
	return &Handler{service: service, cfg: cfg}
}

// CreateVPS handles POST /create_vps.
func (h *Handler) CreateVPS(c *gin.Context) {
	var req models.CreateVPSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}
	if req.PlanID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan_id is required"})
		return
	}

	resp, err := h.service.CreateVPS(c.Request.Context(), req.Email, req.PlanID.String())
	if err != nil {
		writeProvisionError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// DeleteVPS handles POST /delete_vps.
func (h *Handler) DeleteVPS(c *gin.Context) {
	var req models.DeleteVPSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}

	resp, err := h.service.DeleteVPS(c.Request.Context(), req.Email)
	if err != nil {
		writeProvisionError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListRecords handles GET /api/vps-records for the dashboard.
func (h *Handler) ListRecords(c *gin.Context) {
	var limit int64
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive number"})
			return
		}
		limit = parsed
	}

	resp, err := h.service.ListRecords(c.Request.Context(), c.Query("period"), c.Query("search"), limit)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidPeriod) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Login handles POST /api/auth/login and issues a dashboard session token.
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	emailOK := subtle.ConstantTimeCompare([]byte(req.Email), []byte(h.cfg.Dashboard.Email)) == 1
	passwordOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.cfg.Dashboard.Password)) == 1
	if !emailOK || !passwordOK {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	expiresAt := time.Now().Add(sessionTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": req.Email,
		"iat": time.Now().Unix(),
		"exp": expiresAt.Unix(),
	})

	signed, err := token.SignedString([]byte(h.cfg.Dashboard.JWTSecret))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue session token"})
		return
	}

	c.JSON(http.StatusOK, models.LoginResponse{Token: signed, ExpiresAt: expiresAt})
}

// writeProvisionError maps workflow failures onto the boundary contract:
// upstream transport/business failures are 502, precondition misses 404,
// anything else 500. Upstream diagnostics include the target URL but never
// credentials (the client strips query parameters from its errors).
func writeProvisionError(c *gin.Context, err error) {
	var upstreamErr *client.UpstreamError
	switch {
	case errors.As(err, &upstreamErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "url": upstreamErr.URL})
	case errors.Is(err, client.ErrRejected):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.Is(err, client.ErrUserNotFound), errors.Is(err, client.ErrServerNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
