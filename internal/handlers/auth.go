package handlers

import (
	"github.com/autocat/backup-server/internal/middleware"
	"github.com/autocat/backup-server/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type AuthHandler struct {
	db      *gorm.DB
	jwtAuth *middleware.JWTAuth
}

func NewAuthHandler(db *gorm.DB, jwtAuth *middleware.JWTAuth) *AuthHandler {
	return &AuthHandler{
		db:      db,
		jwtAuth: jwtAuth,
	}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UserResponse struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	var user models.User
	if err := h.db.Preload("Role").Where("email = ?", req.Email).First(&user).Error; err != nil {
		Unauthorized(c, "Invalid email or password")
		return
	}

	if !user.CheckPassword(req.Password) || !user.IsActive {
		Unauthorized(c, "Invalid email or password")
		return
	}

	token, err := h.jwtAuth.GenerateToken(user.ID, user.Email, user.Role.Name)
	if err != nil {
		InternalError(c, "Failed to generate token")
		return
	}

	Success(c, AuthResponse{
		Token: token,
		User: UserResponse{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
			Role:  user.Role.Name,
		},
	})
}

// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var user models.User
	if err := h.db.Preload("Role").First(&user, userID).Error; err != nil {
		NotFound(c, "User not found")
		return
	}

	Success(c, UserResponse{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role.Name,
	})
}
