package api

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"farm_market/internal/domain" // Importing domain models

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"golang.org/x/crypto/bcrypt"   // Password hashing
	"gorm.io/gorm"                 // GORM ORM library
)

// UpdateProfileRequest holds the editable profile fields; omitted fields are kept
type UpdateProfileRequest struct {
	FullName *string `json:"full_name"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	Address  *string `json:"address"`
	FarmName *string `json:"farm_name"` // Ignored for consumers
}

// ChangePasswordRequest is the settings page password form
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

// ProfileResponse is the caller's own account, including private fields
type ProfileResponse struct {
	domain.User
}

// GetProfileHandler returns the authenticated user's profile
func GetProfileHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		var user domain.User
		if err := db.WithContext(c.Request.Context()).First(&user, userID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusOK, ProfileResponse{User: user})
	}
}

// UpdateProfileHandler edits name, contact details and farm name
func UpdateProfileHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		var req UpdateProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		tx := db.WithContext(c.Request.Context())
		var user domain.User
		if err := tx.First(&user, userID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}

		updates := map[string]any{}
		if req.FullName != nil {
			name := strings.TrimSpace(*req.FullName)
			if name == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Full name is required"})
				return
			}
			updates["full_name"] = name
		}
		if req.Email != nil {
			email, valid := normalizeEmail(*req.Email)
			if !valid {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email address"})
				return
			}
			if email != user.Email {
				var count int64
				if err := tx.Model(&domain.User{}).Where("email = ? AND id <> ?", email, userID).Count(&count).Error; err != nil {
					c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
					return
				}
				if count > 0 {
					c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
					return
				}
				updates["email"] = email
			}
		}
		if req.Phone != nil {
			updates["phone"] = strings.TrimSpace(*req.Phone)
		}
		if req.Address != nil {
			updates["address"] = strings.TrimSpace(*req.Address)
		}
		if req.FarmName != nil && user.Role == domain.RoleFarmer {
			updates["farm_name"] = strings.TrimSpace(*req.FarmName)
		}

		if len(updates) > 0 {
			if err := tx.Model(&user).Updates(updates).Error; err != nil {
				c.JSON(http.StatusConflict, gin.H{"error": "Failed to update profile"})
				return
			}
			// Listings carry the farmer's display name
			if _, renamed := updates["farm_name"]; renamed || updates["full_name"] != nil {
				if user.Role == domain.RoleFarmer {
					var productIDs []uint
					if err := tx.Model(&domain.Product{}).Where("farmer_id = ?", userID).Pluck("id", &productIDs).Error; err != nil {
						logrus.WithError(err).WithField("user_id", userID).Warn("Failed to list products for cache invalidation")
					}
					invalidateMarket(c.Request.Context(), rdb, productIDs...)
				}
			}
		}
		if err := tx.First(&user, userID).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
			return
		}
		logrus.WithField("user_id", userID).Info("Profile updated")
		c.JSON(http.StatusOK, ProfileResponse{User: user})
	}
}

// ChangePasswordHandler verifies the current password and stores a new hash
func ChangePasswordHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		var req ChangePasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "All password fields are required"})
			return
		}
		if req.NewPassword != req.ConfirmPassword {
			c.JSON(http.StatusBadRequest, gin.H{"error": "New passwords do not match"})
			return
		}
		if !isValidPassword(req.NewPassword) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be 6-72 characters"})
			return
		}
		tx := db.WithContext(c.Request.Context())
		var user domain.User
		if err := tx.First(&user, userID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Current password is incorrect"})
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}
		if err := tx.Model(&user).Update("password", string(hash)).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update password"})
			return
		}
		logrus.WithField("user_id", userID).Info("Password changed")
		c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
	}
}
