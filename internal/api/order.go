package api

import (
	"errors"   // Error comparison
	"net/http" // HTTP status codes
	"time"     // Update timestamps

	"farm_market/internal/domain" // Importing domain models
	"farm_market/internal/utils"  // Pagination helpers

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"gorm.io/gorm"                 // GORM ORM library
)

// StatusUpdateRequest moves an order along its lifecycle
type StatusUpdateRequest struct {
	Status string `json:"status" binding:"required"`
}

// ConsumerContact is what a farmer sees of a buyer
type ConsumerContact struct {
	ID       uint   `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// OrderView is an order with the names of both parties
type OrderView struct {
	domain.Order
	FarmerName string           `json:"farmer_name"`
	Consumer   *ConsumerContact `json:"consumer,omitempty"`
}

// orderViews decorates orders with farmer names and, for farmers, buyer contact details
func orderViews(db *gorm.DB, orders []domain.Order, withConsumer bool) ([]OrderView, error) {
	seen := make(map[uint]bool)
	var ids []uint
	for _, o := range orders {
		for _, id := range []uint{o.FarmerID, o.ConsumerID} {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	users := make(map[uint]domain.User, len(ids))
	if len(ids) > 0 {
		var found []domain.User
		if err := db.Where("id IN ?", ids).Find(&found).Error; err != nil {
			return nil, err
		}
		for _, u := range found {
			users[u.ID] = u
		}
	}

	views := make([]OrderView, len(orders))
	for i, o := range orders {
		views[i] = OrderView{Order: o, FarmerName: users[o.FarmerID].DisplayName()}
		if withConsumer {
			u := users[o.ConsumerID]
			views[i].Consumer = &ConsumerContact{ID: o.ConsumerID, FullName: u.FullName, Email: u.Email, Phone: u.Phone}
		}
	}
	return views, nil
}

// statusFilter reads ?status= or writes a 400
func statusFilter(c *gin.Context) (domain.OrderStatus, bool) {
	raw := c.Query("status")
	if raw == "" || raw == "all" {
		return "", true
	}
	st, err := domain.ParseOrderStatus(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return st, true
}

// transitionOrder applies one lifecycle step. The status is compared again in the
// update so two concurrent transitions cannot both succeed. Cancelling returns the
// items to stock.
func transitionOrder(db *gorm.DB, order *domain.Order, to domain.OrderStatus) error {
	if !domain.CanTransition(order.Status, to) {
		return domain.ErrInvalidTransition
	}
	now := time.Now().UnixMilli()
	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Order{}).
			Where("id = ? AND status = ?", order.ID, order.Status).
			Updates(map[string]any{"status": to, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrInvalidTransition
		}
		if to != domain.OrderStatusCancelled {
			return nil
		}
		for _, item := range order.Items {
			if err := tx.Model(&domain.Product{}).Where("id = ?", item.ProductID).
				UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", item.Quantity)).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	order.Status = to
	order.UpdatedAt = now
	return nil
}

// orderItemProducts lists the product IDs of an order
func orderItemProducts(o domain.Order) []uint {
	ids := make([]uint, len(o.Items))
	for i, item := range o.Items {
		ids[i] = item.ProductID
	}
	return ids
}

// listOrders pages through orders where column matches userID
func listOrders(c *gin.Context, db *gorm.DB, column string, userID uint, withConsumer bool) {
	status, ok := statusFilter(c)
	if !ok {
		return
	}
	page := utils.ParsePage(c)
	query := func() *gorm.DB {
		tx := db.WithContext(c.Request.Context()).Model(&domain.Order{}).Where(column+" = ?", userID)
		if status != "" {
			tx = tx.Where("status = ?", status)
		}
		return tx
	}
	var total int64
	if err := query().Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count orders"})
		return
	}
	var orders []domain.Order
	if err := query().Preload("Items").
		Order("created_at DESC, id DESC").
		Offset(page.Offset()).Limit(page.PageSize).
		Find(&orders).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
		return
	}
	views, err := orderViews(db.WithContext(c.Request.Context()), orders, withConsumer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orders":      views,
		"page":        page.Page,
		"page_size":   page.PageSize,
		"total":       total,
		"total_pages": page.TotalPages(total),
	})
}

// ListOrdersHandler returns the caller's purchases, newest first
func ListOrdersHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		listOrders(c, db, "consumer_id", userID, false)
	}
}

// ListFarmerOrdersHandler returns the orders placed with the calling farmer
func ListFarmerOrdersHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		farmerID, ok := currentUser(c)
		if !ok {
			return
		}
		listOrders(c, db, "farmer_id", farmerID, true)
	}
}

// loadOrder fetches an order with items where the caller is the given party, or writes a 404
func loadOrder(c *gin.Context, db *gorm.DB, where string, args ...any) (domain.Order, bool) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return domain.Order{}, false
	}
	var o domain.Order
	err := db.WithContext(c.Request.Context()).Preload("Items").
		Where("id = ?", orderID).Where(where, args...).
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return o, false
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load order"})
		return o, false
	}
	return o, true
}

// GetOrderHandler returns one order to its consumer or its farmer
func GetOrderHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		o, ok := loadOrder(c, db, "consumer_id = ? OR farmer_id = ?", userID, userID)
		if !ok {
			return
		}
		views, err := orderViews(db.WithContext(c.Request.Context()), []domain.Order{o}, o.FarmerID == userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load order"})
			return
		}
		c.JSON(http.StatusOK, views[0])
	}
}

// CancelOrderHandler lets a consumer cancel their own pending order
func CancelOrderHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		o, ok := loadOrder(c, db, "consumer_id = ?", userID)
		if !ok {
			return
		}
		from := o.Status
		if err := transitionOrder(db.WithContext(c.Request.Context()), &o, domain.OrderStatusCancelled); err != nil {
			writeTransitionError(c, err)
			return
		}
		invalidateMarket(c.Request.Context(), rdb, orderItemProducts(o)...)
		logrus.WithFields(logrus.Fields{
			"order_id": o.ID,
			"user_id":  userID,
			"from":     from,
			"to":       o.Status,
		}).Info("Order cancelled by consumer")
		c.JSON(http.StatusOK, o)
	}
}

// UpdateOrderStatusHandler lets a farmer apply one allowed transition to their order
func UpdateOrderStatusHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		farmerID, ok := currentUser(c)
		if !ok {
			return
		}
		var req StatusUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		to, err := domain.ParseOrderStatus(req.Status)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		o, ok := loadOrder(c, db, "farmer_id = ?", farmerID)
		if !ok {
			return
		}
		from := o.Status
		if err := transitionOrder(db.WithContext(c.Request.Context()), &o, to); err != nil {
			writeTransitionError(c, err)
			return
		}
		if to == domain.OrderStatusCancelled {
			invalidateMarket(c.Request.Context(), rdb, orderItemProducts(o)...)
		}
		logrus.WithFields(logrus.Fields{
			"order_id":  o.ID,
			"farmer_id": farmerID,
			"from":      from,
			"to":        o.Status,
		}).Info("Order status updated")
		c.JSON(http.StatusOK, o)
	}
}

func writeTransitionError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrInvalidTransition) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	logrus.WithError(err).Error("Order transition failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order"})
}
