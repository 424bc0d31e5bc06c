package api

import (
	"net/http" // HTTP status codes
	"net/mail" // Email address parsing
	"strings"  // String manipulation
	"time"     // Token lifetime

	"farm_market/internal/domain" // Importing domain models
	"farm_market/internal/utils"  // Utility functions

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
	"golang.org/x/crypto/bcrypt" // Password hashing
	"gorm.io/gorm"               // GORM ORM library
)

// RegisterRequest is the sign-up form
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`     // Login email
	Password string `json:"password" binding:"required"`  // Plain password
	FullName string `json:"full_name" binding:"required"` // Display name
	Role     string `json:"role" binding:"required"`      // farmer or consumer
	FarmName string `json:"farm_name"`                    // Optional, farmers only
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

// LoginRequest is the sign-in form
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse carries the issued token
type AuthResponse struct {
	Token string               `json:"token"` // JWT token
	User  domain.PublicProfile `json:"user"`
}

// normalizeEmail lower-cases and validates an email address
func normalizeEmail(email string) (string, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", false
	}
	return email, true
}

// isValidPassword checks the password length; bcrypt ignores bytes past 72
func isValidPassword(password string) bool {
	return len(password) >= 6 && len(password) <= 72
}

// RegisterHandler creates a farmer or consumer account
func RegisterHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		email, ok := normalizeEmail(req.Email)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email address"})
			return
		}
		if !isValidPassword(req.Password) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be 6-72 characters"})
			return
		}
		role := strings.ToLower(strings.TrimSpace(req.Role))
		if !domain.ValidRole(role) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Role must be farmer or consumer"})
			return
		}
		fullName := strings.TrimSpace(req.FullName)
		if fullName == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Full name is required"})
			return
		}

		var count int64
		if err := db.Model(&domain.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register"})
			return
		}
		if count > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}
		user := domain.User{
			Email:    email,
			Password: string(hash),
			FullName: fullName,
			Role:     role,
			Phone:    strings.TrimSpace(req.Phone),
			Address:  strings.TrimSpace(req.Address),
		}
		if role == domain.RoleFarmer {
			user.FarmName = strings.TrimSpace(req.FarmName)
		}
		// The unique index still catches a concurrent sign-up with the same email
		if err := db.Create(&user).Error; err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			return
		}
		logrus.WithFields(logrus.Fields{
			"user_id": user.ID,
			"role":    user.Role,
		}).Info("User registered")
		c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully", "user": user.Public()})
	}
}

// LoginHandler authenticates a user and returns a JWT token
func LoginHandler(db *gorm.DB, jwtSecret string, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		var user domain.User
		if err := db.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		token, err := utils.GenerateJWT(user.ID, user.Role, jwtSecret, ttl)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}
		c.JSON(http.StatusOK, AuthResponse{Token: token, User: user.Public()})
	}
}
