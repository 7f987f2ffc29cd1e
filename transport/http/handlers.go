package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/layer-3/beatauth/core"
	"github.com/layer-3/beatauth/internal/eth"
	"github.com/layer-3/beatauth/service"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService     *service.AuthService
	identityService *service.IdentityService
	log             zerolog.Logger
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, identityService *service.IdentityService, log zerolog.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService:     authService,
		identityService: identityService,
		log:             log,
	}
}

type userResponse struct {
	Address     string              `json:"address"`
	DisplayName string              `json:"display_name"`
	Scheme      core.IdentityScheme `json:"scheme"`
	StoredRole  core.Role           `json:"stored_role"`
	IsVerified  bool                `json:"is_verified"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func toUserResponse(i *core.Identity) userResponse {
	return userResponse{
		Address:     i.PrimaryKey,
		DisplayName: i.DisplayName,
		Scheme:      i.Scheme,
		StoredRole:  i.Role,
		IsVerified:  i.IsVerified,
		CreatedAt:   i.CreatedAt,
		UpdatedAt:   i.UpdatedAt,
	}
}

// Nonce issues a fresh sign-in challenge
func (h *AuthHandlers) Nonce(c *gin.Context) {
	challenge, err := h.authService.Nonce(c.Request.Context())
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"nonce":      challenge.Nonce,
		"issued_at":  challenge.IssuedAt,
		"expires_at": challenge.ExpiresAt,
	})
}

// Verify checks a signed SIWE message and opens a session
func (h *AuthHandlers) Verify(c *gin.Context) {
	var req struct {
		Message   string `json:"message" binding:"required"`
		Signature string `json:"signature" binding:"required"`
		Address   string `json:"address"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	res, err := h.authService.Verify(c.Request.Context(), req.Address, req.Message, req.Signature)
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"user":        toUserResponse(res.Identity),
		"role":        res.Role,
		"permissions": res.Permissions.Sorted(),
		"token":       res.Token,
		"token_type":  "Bearer",
		"expires_at":  res.ExpiresAt,
	})
}

// Logout revokes the bearer session token
func (h *AuthHandlers) Logout(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid authorization header"})
		return
	}

	if err := h.authService.Logout(c.Request.Context(), token); err != nil {
		abortWithError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me returns the authenticated user with the role resolved for this request
func (h *AuthHandlers) Me(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "user not found in context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":        toUserResponse(principal.Identity),
		"role":        principal.Role,
		"permissions": principal.Permissions.Sorted(),
		"expires_at":  principal.ExpiresAt,
	})
}

// UpdateMe edits the caller's own profile
func (h *AuthHandlers) UpdateMe(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "user not found in context"})
		return
	}

	var req service.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	identity, err := h.identityService.UpdateProfile(c.Request.Context(), principal, req)
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(identity)})
}

// User returns a stored profile by address
func (h *AuthHandlers) User(c *gin.Context) {
	identity, err := h.identityService.Profile(c.Request.Context(), c.Param("address"))
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(identity)})
}

// SetRole changes a user's stored role
func (h *AuthHandlers) SetRole(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "user not found in context"})
		return
	}

	var req struct {
		Address string `json:"address" binding:"required"`
		Role    string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}
	if !eth.IsAddress(req.Address) {
		abortWithError(c, h.log, core.ErrInvalidAddress)
		return
	}

	role, err := core.ParseRole(req.Role)
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}

	identity, err := h.identityService.PromoteRole(c.Request.Context(), principal, req.Address, role)
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(identity)})
}
