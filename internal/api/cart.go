package api

import (
	"errors"   // Error comparison
	"net/http" // HTTP status codes

	"farm_market/internal/cart"   // Redis cart store
	"farm_market/internal/domain" // Importing domain models

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// AddToCartRequest adds a product; quantity defaults to 1
type AddToCartRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity"`
}

// SetQuantityRequest overwrites a line's quantity
type SetQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// GuestLine is one line of a cart built before sign-in
type GuestLine struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

// MergeCartRequest carries a guest cart
type MergeCartRequest struct {
	Items []GuestLine `json:"items"`
}

// SkippedLine explains why a guest line was not merged
type SkippedLine struct {
	ProductID uint   `json:"product_id"`
	Reason    string `json:"reason"`
}

// cartableProduct loads a product with its farmer and checks it can go in userID's cart
func cartableProduct(db *gorm.DB, userID, productID uint) (domain.Product, domain.User, error) {
	var p domain.Product
	if err := db.First(&p, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return p, domain.User{}, domain.ErrNotFound
		}
		return p, domain.User{}, err
	}
	if p.FarmerID == userID {
		return p, domain.User{}, domain.ErrOwnProduct
	}
	if !p.InStock(1) {
		return p, domain.User{}, domain.ErrProductUnavailable
	}
	var farmer domain.User
	if err := db.First(&farmer, p.FarmerID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return p, farmer, err
	}
	return p, farmer, nil
}

// cartError maps cart and product errors to a response
func cartError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
	case errors.Is(err, domain.ErrOwnProduct), errors.Is(err, domain.ErrProductUnavailable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logrus.WithError(err).Error("Cart operation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update cart"})
	}
}

// GetCartHandler returns the caller's cart
func GetCartHandler(carts *cart.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		crt, err := carts.Get(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load cart"})
			return
		}
		c.JSON(http.StatusOK, crt)
	}
}

// AddToCartHandler adds a product, merging with an existing line
func AddToCartHandler(db *gorm.DB, carts *cart.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		var req AddToCartRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if req.Quantity == 0 {
			req.Quantity = 1
		}
		if req.Quantity < 1 {
			cartError(c, domain.ErrInvalidQuantity)
			return
		}
		ctx := c.Request.Context()
		p, farmer, err := cartableProduct(db.WithContext(ctx), userID, req.ProductID)
		if err != nil {
			cartError(c, err)
			return
		}
		qty, err := carts.Add(ctx, userID, cart.ItemFromProduct(p, farmer), req.Quantity)
		if err != nil {
			cartError(c, err)
			return
		}
		crt, err := carts.Get(ctx, userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load cart"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": p.Name + " added to cart", "quantity": qty, "cart": crt})
	}
}

// UpdateCartItemHandler sets the quantity of a line
func UpdateCartItemHandler(carts *cart.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		productID, ok := pathID(c, "product_id")
		if !ok {
			return
		}
		var req SetQuantityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if err := carts.SetQuantity(c.Request.Context(), userID, productID, req.Quantity); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Item not in cart"})
				return
			}
			cartError(c, err)
			return
		}
		crt, err := carts.Get(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load cart"})
			return
		}
		c.JSON(http.StatusOK, crt)
	}
}

// RemoveCartItemHandler drops a line
func RemoveCartItemHandler(carts *cart.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		productID, ok := pathID(c, "product_id")
		if !ok {
			return
		}
		if err := carts.Remove(c.Request.Context(), userID, productID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Item not in cart"})
				return
			}
			cartError(c, err)
			return
		}
		crt, err := carts.Get(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load cart"})
			return
		}
		c.JSON(http.StatusOK, crt)
	}
}

// ClearCartHandler empties the cart
func ClearCartHandler(carts *cart.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		if err := carts.Clear(c.Request.Context(), userID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear cart"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Cart cleared"})
	}
}

// MergeCartHandler folds a guest cart into the caller's cart.
// Lines that cannot be bought are skipped and reported.
func MergeCartHandler(db *gorm.DB, carts *cart.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		var req MergeCartRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		ctx := c.Request.Context()
		tx := db.WithContext(ctx)
		skipped := []SkippedLine{}
		merged := 0
		for _, line := range req.Items {
			if line.Quantity < 1 {
				skipped = append(skipped, SkippedLine{ProductID: line.ProductID, Reason: domain.ErrInvalidQuantity.Error()})
				continue
			}
			p, farmer, err := cartableProduct(tx, userID, line.ProductID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrOwnProduct) || errors.Is(err, domain.ErrProductUnavailable) {
					skipped = append(skipped, SkippedLine{ProductID: line.ProductID, Reason: err.Error()})
					continue
				}
				cartError(c, err)
				return
			}
			if _, err := carts.Add(ctx, userID, cart.ItemFromProduct(p, farmer), line.Quantity); err != nil {
				cartError(c, err)
				return
			}
			merged++
		}
		crt, err := carts.Get(ctx, userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load cart"})
			return
		}
		logrus.WithFields(logrus.Fields{
			"user_id": userID,
			"merged":  merged,
			"skipped": len(skipped),
		}).Info("Guest cart merged")
		c.JSON(http.StatusOK, gin.H{"cart": crt, "merged": merged, "skipped": skipped})
	}
}
