package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"camps-pdf/internal/domain"
	"camps-pdf/internal/repository"
	"camps-pdf/internal/service"
)

// AuthHandler mantiene dependencias para endpoints de autenticación y usuarios.
type AuthHandler struct {
	logger   *zap.Logger
	userServ *service.UserService
	jwtServ  *service.JWTService
	audits   repository.AuditLogRepository
}

// NewAuthHandler crea una instancia de AuthHandler con dependencias necesarias.
func NewAuthHandler(logger *zap.Logger, userServ *service.UserService, jwtServ *service.JWTService, audits repository.AuditLogRepository) *AuthHandler {
	return &AuthHandler{
		logger:   logger,
		userServ: userServ,
		jwtServ:  jwtServ,
		audits:   audits,
	}
}

// Login maneja POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email y password son obligatorios"})
		return
	}

	user, err := h.userServ.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "credenciales invalidas"})
		case errors.Is(err, service.ErrUserInactive):
			c.JSON(http.StatusForbidden, gin.H{"error": "usuario desactivado"})
		case errors.Is(err, service.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "demasiados intentos"})
		default:
			h.logger.Error("login failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no se pudo iniciar sesion"})
		}
		return
	}

	tokens, err := h.jwtServ.GeneratePair(user)
	if err != nil {
		h.logger.Error("jwt issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "no se pudieron emitir tokens"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "login exitoso",
		"user":          user,
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
	})
}

// Refresh maneja POST /api/auth/refresh. Recibe el refresh token como
// bearer y emite solo un access token nuevo; el refresh no se rota.
func (h *AuthHandler) Refresh(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	claims, err := h.jwtServ.ParseRefreshToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	user, err := h.userServ.GetByID(c.Request.Context(), claims.UserID)
	if err != nil || !user.IsActive {
		c.JSON(http.StatusForbidden, gin.H{"error": "usuario no disponible"})
		return
	}

	access, err := h.jwtServ.GenerateAccess(user)
	if err != nil {
		h.logger.Error("jwt issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "no se pudo emitir token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"access_token": access})
}

// Me maneja GET /api/auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	user, err := h.userServ.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":        user,
		"permissions": user.Role.Permissions(),
	})
}

// Logout maneja POST /api/auth/logout. Es idempotente: un refresh token
// ya revocado o invalido no lo convierte en error.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = c.ShouldBindJSON(&req)

	if req.RefreshToken != "" {
		_ = h.jwtServ.RevokeRefresh(req.RefreshToken)
	}
	c.JSON(http.StatusOK, gin.H{"message": "logout exitoso"})
}

// ListUsers maneja GET /api/auth/users.
func (h *AuthHandler) ListUsers(c *gin.Context) {
	users, err := h.userServ.ListUsers(c.Request.Context())
	if err != nil {
		h.logger.Error("list users failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "no se pudieron listar usuarios"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// CreateUser maneja POST /api/auth/users.
func (h *AuthHandler) CreateUser(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Name     string `json:"name" binding:"required"`
		Password string `json:"password" binding:"required"`
		Role     string `json:"role"`
		IsActive *bool  `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	user, err := h.userServ.CreateUser(c.Request.Context(), service.CreateUserInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     req.Role,
		IsActive: isActive,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "email ya registrado"})
		case errors.Is(err, service.ErrInvalidEmail), errors.Is(err, service.ErrInvalidRole),
			errors.Is(err, service.ErrInvalidCredentials):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("create user failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no se pudo crear el usuario"})
		}
		return
	}

	if actor, ok := GetAuthUser(c); ok {
		entry := domain.AuditLog{
			ID:          uuid.NewString(),
			UserID:      &actor.ID,
			Action:      "create_user",
			Description: fmt.Sprintf("Usuario %s creado por %s", user.Email, actor.Email),
			IPAddress:   c.ClientIP(),
			UserAgent:   c.Request.UserAgent(),
			Timestamp:   time.Now().UTC(),
		}
		if err := h.audits.Create(c.Request.Context(), entry); err != nil {
			h.logger.Warn("registrando auditoria de usuario", zap.Error(err))
		}
	}

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// UpdateUser maneja PUT /api/auth/users/:id.
func (h *AuthHandler) UpdateUser(c *gin.Context) {
	var req struct {
		Email    *string `json:"email"`
		Name     *string `json:"name"`
		Role     *string `json:"role"`
		IsActive *bool   `json:"is_active"`
		Password *string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := h.userServ.UpdateUser(c.Request.Context(), c.Param("id"), service.UpdateUserInput{
		Email:    req.Email,
		Name:     req.Name,
		Role:     req.Role,
		IsActive: req.IsActive,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "usuario no encontrado"})
		case errors.Is(err, service.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "email ya registrado"})
		case errors.Is(err, service.ErrInvalidEmail), errors.Is(err, service.ErrInvalidRole):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("update user failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no se pudo actualizar el usuario"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// DeleteUser maneja DELETE /api/auth/users/:id.
func (h *AuthHandler) DeleteUser(c *gin.Context) {
	actor, _ := GetAuthUser(c)

	err := h.userServ.DeleteUser(c.Request.Context(), actor.ID, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSelfDelete):
			c.JSON(http.StatusBadRequest, gin.H{"error": "no puede eliminar su propio usuario"})
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "usuario no encontrado"})
		default:
			h.logger.Error("delete user failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no se pudo eliminar el usuario"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "usuario eliminado"})
}

// ChangePassword maneja POST /api/auth/change-password.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	var req struct {
		CurrentPassword string `json:"current_password" binding:"required"`
		NewPassword     string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	err := h.userServ.ChangePassword(c.Request.Context(), claims.UserID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWrongPassword):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "password actual incorrecto"})
		case errors.Is(err, service.ErrInvalidCredentials):
			c.JSON(http.StatusBadRequest, gin.H{"error": "password nuevo invalido"})
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "usuario no encontrado"})
		default:
			h.logger.Error("change password failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no se pudo cambiar el password"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "password actualizado"})
}
