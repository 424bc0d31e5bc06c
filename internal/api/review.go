package api

import (
	"errors"   // Error comparison
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"farm_market/internal/domain"     // Importing domain models
	"farm_market/internal/middleware" // Caller identity

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"gorm.io/gorm"                 // GORM ORM library
	"gorm.io/gorm/clause"          // Upsert clause
)

// ReviewRequest rates a product
type ReviewRequest struct {
	Rating  int    `json:"rating" binding:"required"`
	Comment string `json:"comment"`
}

// ReviewView is a review with its author's name
type ReviewView struct {
	domain.Review
	ReviewerName string `json:"reviewer_name"`
}

// productExists writes a 404 when the product is missing
func productExists(c *gin.Context, db *gorm.DB, productID uint) (domain.Product, bool) {
	var p domain.Product
	err := db.First(&p, productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return p, false
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load product"})
		return p, false
	}
	return p, true
}

// ListReviewsHandler returns a product's reviews, newest first, with the rating summary
func ListReviewsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, ok := pathID(c, "id")
		if !ok {
			return
		}
		tx := db.WithContext(c.Request.Context())
		if _, ok := productExists(c, tx, productID); !ok {
			return
		}
		var reviews []domain.Review
		if err := tx.Where("product_id = ?", productID).
			Order("created_at DESC, id DESC").
			Find(&reviews).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch reviews"})
			return
		}

		ids := make([]uint, len(reviews))
		for i, r := range reviews {
			ids[i] = r.UserID
		}
		names := make(map[uint]string)
		if len(ids) > 0 {
			var users []domain.User
			if err := tx.Where("id IN ?", ids).Find(&users).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch reviews"})
				return
			}
			for _, u := range users {
				names[u.ID] = u.FullName
			}
		}

		callerID, _ := middleware.UserID(c)
		views := make([]ReviewView, len(reviews))
		var mine *ReviewView
		for i, r := range reviews {
			name := names[r.UserID]
			if name == "" {
				name = "Anonymous"
			}
			views[i] = ReviewView{Review: r, ReviewerName: name}
			if callerID != 0 && r.UserID == callerID {
				mine = &views[i]
			}
		}
		avg, count := domain.RatingSummary(reviews)
		c.JSON(http.StatusOK, gin.H{
			"reviews":        views,
			"average_rating": avg,
			"count":          count,
			"my_review":      mine,
		})
	}
}

// UpsertReviewHandler creates or replaces the caller's review of a product
func UpsertReviewHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		productID, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req ReviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if req.Rating < 1 || req.Rating > 5 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Rating must be between 1 and 5"})
			return
		}
		tx := db.WithContext(c.Request.Context())
		p, ok := productExists(c, tx, productID)
		if !ok {
			return
		}
		if p.FarmerID == userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "You cannot review your own product"})
			return
		}

		// Decides the response status only
		var existing int64
		if err := tx.Model(&domain.Review{}).Where("product_id = ? AND user_id = ?", productID, userID).Count(&existing).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save review"})
			return
		}

		review := domain.Review{
			ProductID: productID,
			UserID:    userID,
			Rating:    req.Rating,
			Comment:   strings.TrimSpace(req.Comment),
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"rating", "comment", "updated_at"}),
		}).Create(&review).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save review"})
			return
		}
		var saved domain.Review
		if err := tx.Where("product_id = ? AND user_id = ?", productID, userID).First(&saved).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save review"})
			return
		}
		invalidateProducts(c.Request.Context(), rdb, productID)

		status := http.StatusOK
		if existing == 0 {
			status = http.StatusCreated
		}
		logrus.WithFields(logrus.Fields{
			"product_id": productID,
			"user_id":    userID,
			"rating":     saved.Rating,
			"created":    status == http.StatusCreated,
		}).Info("Review saved")
		c.JSON(status, saved)
	}
}

// DeleteReviewHandler removes the caller's review of a product
func DeleteReviewHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		productID, ok := pathID(c, "id")
		if !ok {
			return
		}
		res := db.WithContext(c.Request.Context()).
			Where("product_id = ? AND user_id = ?", productID, userID).
			Delete(&domain.Review{})
		if res.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete review"})
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Review not found"})
			return
		}
		invalidateProducts(c.Request.Context(), rdb, productID)
		c.JSON(http.StatusOK, gin.H{"message": "Review deleted"})
	}
}
