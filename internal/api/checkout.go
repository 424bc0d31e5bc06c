package api

import (
	"errors"   // Error comparison
	"fmt"      // Error wrapping
	"io"       // Empty body detection
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"farm_market/internal/cart"   // Redis cart store
	"farm_market/internal/domain" // Importing domain models

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"gorm.io/gorm"                 // GORM ORM library
)

// CheckoutRequest is the optional checkout form
type CheckoutRequest struct {
	DeliveryAddress string `json:"delivery_address"` // Falls back to the profile address
	Notes           string `json:"notes"`
}

// priceCart loads the current product rows for a cart.
// Every line must still be buyable by the caller.
func priceCart(db *gorm.DB, userID uint, quantities map[uint]int) ([]domain.CheckoutLine, error) {
	ids := make([]uint, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	var products []domain.Product
	if err := db.Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	lines := make([]domain.CheckoutLine, 0, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: product %d no longer exists", domain.ErrProductUnavailable, id)
		}
		if p.FarmerID == userID {
			return nil, fmt.Errorf("%w: %s", domain.ErrOwnProduct, p.Name)
		}
		if !p.Available {
			return nil, fmt.Errorf("%w: %s", domain.ErrProductUnavailable, p.Name)
		}
		lines = append(lines, domain.CheckoutLine{Product: p, Quantity: quantities[id]})
	}
	return lines, nil
}

// placeOrders creates one pending order per farmer and takes the stock, all or nothing
func placeOrders(db *gorm.DB, consumerID uint, groups []domain.FarmerGroup, address, notes string) ([]domain.Order, error) {
	orders := make([]domain.Order, 0, len(groups))
	err := db.Transaction(func(tx *gorm.DB) error {
		for _, g := range groups {
			for _, l := range g.Lines {
				res := tx.Model(&domain.Product{}).
					Where("id = ? AND available = ? AND stock_quantity >= ?", l.Product.ID, true, l.Quantity).
					UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", l.Quantity))
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					return fmt.Errorf("%w: %s", domain.ErrInsufficientStock, l.Product.Name)
				}
			}
			order := domain.NewOrderFromGroup(consumerID, g, address, notes)
			if err := tx.Create(&order).Error; err != nil {
				return err
			}
			orders = append(orders, order)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// CheckoutHandler turns the caller's cart into one order per farmer
func CheckoutHandler(db *gorm.DB, rdb *redis.Client, carts *cart.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		var req CheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		ctx := c.Request.Context()
		tx := db.WithContext(ctx)

		quantities, err := carts.Quantities(ctx, userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load cart"})
			return
		}
		if len(quantities) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrEmptyCart.Error()})
			return
		}

		var consumer domain.User
		if err := tx.First(&consumer, userID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		address := strings.TrimSpace(req.DeliveryAddress)
		if address == "" {
			address = strings.TrimSpace(consumer.Address)
		}
		if address == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Delivery address is required"})
			return
		}

		lines, err := priceCart(tx, userID, quantities)
		if err != nil {
			if errors.Is(err, domain.ErrProductUnavailable) || errors.Is(err, domain.ErrOwnProduct) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load products"})
			return
		}
		groups := domain.GroupLinesByFarmer(lines)

		orders, err := placeOrders(tx, userID, groups, address, strings.TrimSpace(req.Notes))
		if err != nil {
			if errors.Is(err, domain.ErrInsufficientStock) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			logrus.WithError(err).WithField("user_id", userID).Error("Checkout failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to place order"})
			return
		}

		// Only what was ordered leaves the cart
		if _, err := carts.Deduct(ctx, userID, quantities); err != nil {
			logrus.WithError(err).WithField("user_id", userID).Warn("Failed to clear cart after checkout")
		}
		productIDs := make([]uint, 0, len(lines))
		for _, l := range lines {
			productIDs = append(productIDs, l.Product.ID)
		}
		invalidateMarket(ctx, rdb, productIDs...)

		views, err := orderViews(tx, orders, false)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load orders"})
			return
		}
		for _, o := range orders {
			logrus.WithFields(logrus.Fields{
				"order_id":    o.ID,
				"consumer_id": userID,
				"farmer_id":   o.FarmerID,
				"total":       o.TotalAmount.StringFixed(2),
				"items":       len(o.Items),
			}).Info("Order placed")
		}
		c.JSON(http.StatusCreated, gin.H{
			"message": fmt.Sprintf("%d order(s) placed", len(views)),
			"orders":  views,
		})
	}
}
