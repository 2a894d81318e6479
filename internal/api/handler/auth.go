// Package handler provides HTTP handlers for the API.
// This file handles authentication: login, registration and token validation.
package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/draftforge/draftforge/consts"
	"github.com/draftforge/draftforge/internal/config"
	"github.com/draftforge/draftforge/internal/model"
	"github.com/draftforge/draftforge/internal/store"
	"github.com/draftforge/draftforge/pkg/errors"
	"github.com/draftforge/draftforge/pkg/idgen"
	"github.com/draftforge/draftforge/pkg/logger"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	store store.Store
	cfg   *config.Config
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(s store.Store, cfg *config.Config) *AuthHandler {
	return &AuthHandler{store: s, cfg: cfg}
}

// Claims represents the JWT claims carried by issued tokens
type Claims struct {
	UserID   string `json:"uid"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Username   string `json:"username" binding:"required"`
	Password   string `json:"password" binding:"required"`
	RememberMe bool   `json:"remember_me"`
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

// TokenResponse carries an issued token and the authenticated user
type TokenResponse struct {
	Token     string      `json:"token"`
	ExpiresAt string      `json:"expires_at"`
	User      *model.User `json:"user"`
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    errors.ErrCodeValidation,
			"message": "Username and password are required",
		})
		return
	}

	user, err := h.store.User().GetByUsername(req.Username)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    errors.ErrCodeUnauthorized,
				"message": "Invalid username or password",
			})
			return
		}
		logger.Error("Failed to load user for login", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    errors.ErrCodeDBQuery,
			"message": "Failed to process login",
		})
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		logger.Warn("Login failed", zap.String("username", req.Username), zap.String("ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    errors.ErrCodeUnauthorized,
			"message": "Invalid username or password",
		})
		return
	}

	hours := h.cfg.Auth.TokenHours
	if req.RememberMe {
		hours = h.cfg.Auth.RememberMeHours
	}

	token, expiresAt, err := h.issueToken(user, time.Duration(hours)*time.Hour)
	if err != nil {
		logger.Error("Failed to sign token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    errors.ErrCodeInternal,
			"message": "Failed to generate token",
		})
		return
	}

	now := time.Now()
	if err := h.store.User().UpdateLastLogin(user.ID, now); err != nil {
		logger.Warn("Failed to stamp last login", zap.String("user_id", user.ID), zap.Error(err))
	}
	user.LastLoginAt = &now

	logger.Info("User logged in",
		zap.String("user_id", user.ID),
		zap.String("username", user.Username),
		zap.Bool("remember_me", req.RememberMe),
	)

	c.JSON(http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
		User:      user,
	})
}

// Register handles POST /api/v1/auth/register.
// The first registered account receives the admin role.
func (h *AuthHandler) Register(c *gin.Context) {
	if !h.cfg.Auth.AllowRegistration {
		c.JSON(http.StatusForbidden, gin.H{
			"code":    errors.ErrCodeForbidden,
			"message": "Registration is disabled",
		})
		return
	}

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    errors.ErrCodeValidation,
			"message": "Username (3-64 chars) and password (8-128 chars) are required",
		})
		return
	}

	if _, err := h.store.User().GetByUsername(req.Username); err == nil {
		c.JSON(http.StatusConflict, gin.H{
			"code":    errors.ErrCodeConflict,
			"message": "Username is already taken",
		})
		return
	} else if err != gorm.ErrRecordNotFound {
		logger.Error("Failed to check username", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    errors.ErrCodeDBQuery,
			"message": "Failed to process registration",
		})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("Failed to hash password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    errors.ErrCodeInternal,
			"message": "Failed to process registration",
		})
		return
	}

	role := model.UserRoleUser
	if count, err := h.store.User().Count(); err == nil && count == 0 {
		role = model.UserRoleAdmin
	}

	user := &model.User{
		ID:           idgen.NewID(),
		Username:     req.Username,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := h.store.User().Create(user); err != nil {
		logger.Error("Failed to create user", zap.String("username", req.Username), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    errors.ErrCodeDBQuery,
			"message": "Failed to create account",
		})
		return
	}

	token, expiresAt, err := h.issueToken(user, time.Duration(h.cfg.Auth.TokenHours)*time.Hour)
	if err != nil {
		logger.Error("Failed to sign token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    errors.ErrCodeInternal,
			"message": "Failed to generate token",
		})
		return
	}

	logger.Info("User registered",
		zap.String("user_id", user.ID),
		zap.String("username", user.Username),
		zap.String("role", string(user.Role)),
	)

	c.JSON(http.StatusCreated, TokenResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
		User:      user,
	})
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.store.User().GetByID(currentUserID(c))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    errors.ErrCodeUnauthorized,
				"message": "Account no longer exists",
			})
			return
		}
		logger.Error("Failed to load current user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    errors.ErrCodeDBQuery,
			"message": "Failed to load account",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// issueToken signs a JWT for the user with the given lifetime
func (h *AuthHandler) issueToken(user *model.User, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    consts.ServiceName,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(h.cfg.Auth.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateToken implements middleware.TokenValidator. It parses and
// verifies a token and returns the embedded user identity.
func (h *AuthHandler) ValidateToken(tokenString string) (string, string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(h.cfg.Auth.JWTSecret), nil
	})
	if err != nil {
		return "", "", err
	}
	if !token.Valid || claims.UserID == "" {
		return "", "", errors.New(errors.ErrCodeUnauthorized, "invalid token")
	}
	return claims.UserID, claims.Username, nil
}
