package api

import (
	"context"  // Context for Redis operations
	"net/http" // HTTP status codes
	"strconv"  // String conversion

	"farm_market/internal/middleware" // Auth context helpers
	"farm_market/internal/utils"      // Cache helpers

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
)

// Cache namespaces and key prefixes
const (
	marketNamespace  = "market:products"
	productKeyPrefix = "product:detail:"
)

// currentUser returns the authenticated user's ID or writes a 401
func currentUser(c *gin.Context) (uint, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return 0, false
	}
	return userID, true
}

// pathID parses a positive numeric path parameter or writes a 400
func pathID(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(v), true
}

func productCacheKey(id uint) string {
	return productKeyPrefix + strconv.FormatUint(uint64(id), 10)
}

// invalidateMarket drops the marketplace listings and the given product details.
// Cache errors are logged and never fail the request.
func invalidateMarket(ctx context.Context, rdb *redis.Client, productIDs ...uint) {
	if _, err := utils.BumpCacheVersion(ctx, rdb, marketNamespace); err != nil {
		logrus.WithError(err).Warn("Failed to invalidate marketplace cache")
	}
	invalidateProducts(ctx, rdb, productIDs...)
}

// invalidateProducts drops cached product detail pages
func invalidateProducts(ctx context.Context, rdb *redis.Client, productIDs ...uint) {
	if len(productIDs) == 0 {
		return
	}
	keys := make([]string, len(productIDs))
	for i, id := range productIDs {
		keys[i] = productCacheKey(id)
	}
	if err := utils.DeleteCache(ctx, rdb, keys...); err != nil {
		logrus.WithError(err).Warn("Failed to invalidate product cache")
	}
}
