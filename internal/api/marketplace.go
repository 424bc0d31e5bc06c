package api

import (
	"context"  // Context for Redis operations
	"errors"   // Error comparison
	"net/http" // HTTP status codes
	"strconv"  // Cache key formatting
	"strings"  // String manipulation
	"time"     // Cache TTL

	"farm_market/internal/domain"     // Importing domain models
	"farm_market/internal/middleware" // Caller identity
	"farm_market/internal/utils"      // Cache and pagination helpers

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"gorm.io/gorm"                 // GORM ORM library
)

// relatedLimit is how many similar products a detail page shows
const relatedLimit = 4

// likeEscaper makes search text match literally under ESCAPE '!'
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// ProductListing is a marketplace card
type ProductListing struct {
	domain.Product
	FarmerName   string `json:"farmer_name"`
	IsOwnProduct bool   `json:"is_own_product"`
}

// ProductListResponse is one marketplace page
type ProductListResponse struct {
	Products   []ProductListing `json:"products"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	Total      int64            `json:"total"`
	TotalPages int              `json:"total_pages"`
	Cached     bool             `json:"cached"`
}

// ProductDetail is the product page
type ProductDetail struct {
	Product       domain.Product       `json:"product"`
	Farmer        domain.PublicProfile `json:"farmer"`
	FarmerName    string               `json:"farmer_name"`
	AverageRating float64              `json:"average_rating"`
	ReviewCount   int                  `json:"review_count"`
	Related       []ProductListing     `json:"related"`
	IsOwnProduct  bool                 `json:"is_own_product"`
	Cached        bool                 `json:"cached"`
}

// farmerNames maps farmer IDs to display names
func farmerNames(db *gorm.DB, ids []uint) (map[uint]string, error) {
	names := make(map[uint]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	var farmers []domain.User
	if err := db.Where("id IN ?", ids).Find(&farmers).Error; err != nil {
		return nil, err
	}
	for _, f := range farmers {
		names[f.ID] = f.DisplayName()
	}
	return names, nil
}

// toListings attaches farmer names to products
func toListings(db *gorm.DB, products []domain.Product) ([]ProductListing, error) {
	seen := make(map[uint]bool)
	var ids []uint
	for _, p := range products {
		if !seen[p.FarmerID] {
			seen[p.FarmerID] = true
			ids = append(ids, p.FarmerID)
		}
	}
	names, err := farmerNames(db, ids)
	if err != nil {
		return nil, err
	}
	out := make([]ProductListing, len(products))
	for i, p := range products {
		name, ok := names[p.FarmerID]
		if !ok {
			name = domain.User{}.DisplayName()
		}
		out[i] = ProductListing{Product: p, FarmerName: name}
	}
	return out, nil
}

// markOwn flags the caller's own products
func markOwn(listings []ProductListing, callerID uint) {
	for i := range listings {
		listings[i].IsOwnProduct = callerID != 0 && listings[i].FarmerID == callerID
	}
}

// ListProductsHandler returns available products with optional category and text filters
func ListProductsHandler(db *gorm.DB, rdb *redis.Client, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		page := utils.ParsePage(c)
		category := strings.ToLower(strings.TrimSpace(c.Query("category")))
		if category == "all" {
			category = ""
		}
		if category != "" && !domain.ValidCategory(category) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown category"})
			return
		}
		q := strings.ToLower(strings.TrimSpace(c.Query("q")))
		callerID, _ := middleware.UserID(c)

		cacheKey := ""
		if version, err := utils.CacheVersion(ctx, rdb, marketNamespace); err == nil {
			cacheKey = marketNamespace + ":v" + version + ":cat=" + category + ":q=" + q +
				":page=" + strconv.Itoa(page.Page) + ":size=" + strconv.Itoa(page.PageSize)
		} else {
			logrus.WithError(err).Warn("Marketplace cache unavailable")
		}

		var resp ProductListResponse
		if cacheKey != "" {
			if found, err := utils.GetCache(ctx, rdb, cacheKey, &resp); err == nil && found {
				resp.Cached = true
				markOwn(resp.Products, callerID)
				c.JSON(http.StatusOK, resp)
				return
			}
		}

		query := func() *gorm.DB {
			tx := db.WithContext(ctx).Model(&domain.Product{}).
				Joins("JOIN users ON users.id = products.farmer_id").
				Where("products.available = ?", true)
			if category != "" {
				tx = tx.Where("products.category = ?", category)
			}
			if q != "" {
				like := "%" + likeEscaper.Replace(q) + "%"
				tx = tx.Where("LOWER(products.name) LIKE ? ESCAPE '!' OR LOWER(products.description) LIKE ? ESCAPE '!' OR "+
					"LOWER(users.farm_name) LIKE ? ESCAPE '!' OR LOWER(users.full_name) LIKE ? ESCAPE '!'",
					like, like, like, like)
			}
			return tx
		}

		var total int64
		if err := query().Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count products"})
			return
		}
		var products []domain.Product
		if err := query().Select("products.*").
			Order("products.created_at DESC, products.id DESC").
			Offset(page.Offset()).Limit(page.PageSize).
			Find(&products).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
			return
		}
		listings, err := toListings(db.WithContext(ctx), products)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch farmers"})
			return
		}

		resp = ProductListResponse{
			Products:   listings,
			Page:       page.Page,
			PageSize:   page.PageSize,
			Total:      total,
			TotalPages: page.TotalPages(total),
		}
		if cacheKey != "" {
			if err := utils.SetCache(ctx, rdb, cacheKey, resp, ttl); err != nil {
				logrus.WithError(err).Warn("Failed to cache marketplace page")
			}
		}
		markOwn(resp.Products, callerID)
		c.JSON(http.StatusOK, resp)
	}
}

// loadProductDetail builds the product, farmer and rating part of a product page
func loadProductDetail(ctx context.Context, db *gorm.DB, productID uint) (ProductDetail, error) {
	tx := db.WithContext(ctx)
	var d ProductDetail
	if err := tx.First(&d.Product, productID).Error; err != nil {
		return d, err
	}
	var farmer domain.User
	if err := tx.First(&farmer, d.Product.FarmerID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return d, err
	}
	d.Farmer = farmer.Public()
	d.FarmerName = farmer.DisplayName()

	var reviews []domain.Review
	if err := tx.Where("product_id = ?", productID).Find(&reviews).Error; err != nil {
		return d, err
	}
	d.AverageRating, d.ReviewCount = domain.RatingSummary(reviews)
	return d, nil
}

// loadRelated returns available products of the same category, newest first
func loadRelated(ctx context.Context, db *gorm.DB, p domain.Product) ([]ProductListing, error) {
	tx := db.WithContext(ctx)
	var related []domain.Product
	if err := tx.Where("category = ? AND available = ? AND id <> ?", p.Category, true, p.ID).
		Order("created_at DESC, id DESC").
		Limit(relatedLimit).
		Find(&related).Error; err != nil {
		return nil, err
	}
	return toListings(tx, related)
}

// relatedProducts caches related listings under the marketplace version,
// so any listing change drops them along with the marketplace pages.
func relatedProducts(ctx context.Context, db *gorm.DB, rdb *redis.Client, ttl time.Duration, p domain.Product) ([]ProductListing, error) {
	cacheKey := ""
	if version, err := utils.CacheVersion(ctx, rdb, marketNamespace); err == nil {
		cacheKey = marketNamespace + ":v" + version + ":related:" + strconv.FormatUint(uint64(p.ID), 10)
	} else {
		logrus.WithError(err).Warn("Marketplace cache unavailable")
	}

	var related []ProductListing
	if cacheKey != "" {
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &related); err == nil && found {
			return related, nil
		}
	}
	related, err := loadRelated(ctx, db, p)
	if err != nil {
		return nil, err
	}
	if cacheKey != "" {
		if err := utils.SetCache(ctx, rdb, cacheKey, related, ttl); err != nil {
			logrus.WithError(err).Warn("Failed to cache related products")
		}
	}
	return related, nil
}

// GetProductHandler returns a product page; hidden products are visible to their farmer only
func GetProductHandler(db *gorm.DB, rdb *redis.Client, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, ok := pathID(c, "id")
		if !ok {
			return
		}
		ctx := c.Request.Context()
		callerID, _ := middleware.UserID(c)

		var d ProductDetail
		found, err := utils.GetCache(ctx, rdb, productCacheKey(productID), &d)
		if err != nil {
			logrus.WithError(err).Warn("Product cache unavailable")
		}
		if found && err == nil {
			d.Cached = true
		} else {
			d, err = loadProductDetail(ctx, db, productID)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
				return
			} else if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
				return
			}
			if err := utils.SetCache(ctx, rdb, productCacheKey(productID), d, ttl); err != nil {
				logrus.WithError(err).Warn("Failed to cache product")
			}
		}

		d.IsOwnProduct = callerID != 0 && d.Product.FarmerID == callerID
		if !d.Product.Available && !d.IsOwnProduct {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		d.Related, err = relatedProducts(ctx, db, rdb, ttl, d.Product)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch related products"})
			return
		}
		markOwn(d.Related, callerID)
		c.JSON(http.StatusOK, d)
	}
}

// CategoriesHandler returns the listing vocabularies
func CategoriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"categories": domain.Categories, "units": domain.Units})
	}
}
