package api

import (
	"bytes"    // Normalised image buffer
	"errors"   // Error comparison
	"fmt"      // Object key formatting
	"net/http" // HTTP status codes

	"farm_market/internal/domain"  // Importing domain models
	"farm_market/internal/storage" // Image bucket

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/google/uuid"        // Object key IDs
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Money
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library
)

// ProductRequest is the listing form used for create and update
type ProductRequest struct {
	Name          string          `json:"name" binding:"required"`
	Description   string          `json:"description"`
	Category      string          `json:"category" binding:"required"`
	Price         decimal.Decimal `json:"price"`
	Unit          string          `json:"unit" binding:"required"`
	StockQuantity int             `json:"stock_quantity"`
	Available     *bool           `json:"available"` // Defaults to true on create
}

// DeleteImageRequest names the image to drop
type DeleteImageRequest struct {
	URL string `json:"url" binding:"required"`
}

// apply copies the form onto p and validates the result
func (r ProductRequest) apply(p *domain.Product) error {
	p.Name = r.Name
	p.Description = r.Description
	p.Category = r.Category
	p.Price = r.Price.Round(2)
	p.Unit = r.Unit
	p.StockQuantity = r.StockQuantity
	if r.Available != nil {
		p.Available = *r.Available
	}
	return p.Validate()
}

// loadOwnProduct fetches a product owned by farmerID or writes a 404
func loadOwnProduct(c *gin.Context, db *gorm.DB, farmerID uint) (domain.Product, bool) {
	productID, ok := pathID(c, "id")
	if !ok {
		return domain.Product{}, false
	}
	var p domain.Product
	err := db.WithContext(c.Request.Context()).Where("id = ? AND farmer_id = ?", productID, farmerID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return p, false
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load product"})
		return p, false
	}
	return p, true
}

// CreateProductHandler lists a new product for the calling farmer
func CreateProductHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		farmerID, ok := currentUser(c)
		if !ok {
			return
		}
		var req ProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		p := domain.Product{FarmerID: farmerID, Available: true, ImageURLs: []string{}}
		if err := req.apply(&p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := db.WithContext(c.Request.Context()).Create(&p).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create product"})
			return
		}
		invalidateMarket(c.Request.Context(), rdb)
		logrus.WithFields(logrus.Fields{
			"farmer_id":  farmerID,
			"product_id": p.ID,
			"price":      p.Price.StringFixed(2),
		}).Info("Product created")
		c.JSON(http.StatusCreated, p)
	}
}

// ListFarmerProductsHandler returns every product of the calling farmer, newest first
func ListFarmerProductsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		farmerID, ok := currentUser(c)
		if !ok {
			return
		}
		products := []domain.Product{}
		if err := db.WithContext(c.Request.Context()).
			Where("farmer_id = ?", farmerID).
			Order("created_at DESC, id DESC").
			Find(&products).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"products": products, "total": len(products)})
	}
}

// GetFarmerProductHandler returns one of the calling farmer's products
func GetFarmerProductHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		farmerID, ok := currentUser(c)
		if !ok {
			return
		}
		if p, ok := loadOwnProduct(c, db, farmerID); ok {
			c.JSON(http.StatusOK, p)
		}
	}
}

// UpdateProductHandler replaces the listing fields of a product
func UpdateProductHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		farmerID, ok := currentUser(c)
		if !ok {
			return
		}
		p, ok := loadOwnProduct(c, db, farmerID)
		if !ok {
			return
		}
		var req ProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if err := req.apply(&p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := db.WithContext(c.Request.Context()).Model(&p).
			Select("name", "description", "category", "price", "unit", "stock_quantity", "available").
			Updates(&p).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update product"})
			return
		}
		invalidateMarket(c.Request.Context(), rdb, p.ID)
		logrus.WithFields(logrus.Fields{
			"farmer_id":  farmerID,
			"product_id": p.ID,
		}).Info("Product updated")
		c.JSON(http.StatusOK, p)
	}
}

// ToggleAvailabilityHandler flips a product between listed and hidden
func ToggleAvailabilityHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		farmerID, ok := currentUser(c)
		if !ok {
			return
		}
		p, ok := loadOwnProduct(c, db, farmerID)
		if !ok {
			return
		}
		p.Available = !p.Available
		if err := db.WithContext(c.Request.Context()).Model(&p).Update("available", p.Available).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update availability"})
			return
		}
		invalidateMarket(c.Request.Context(), rdb, p.ID)
		c.JSON(http.StatusOK, gin.H{"id": p.ID, "available": p.Available})
	}
}

// DeleteProductHandler removes a product with its reviews and images.
// Past orders keep their item snapshots.
func DeleteProductHandler(db *gorm.DB, rdb *redis.Client, bucket storage.Bucket) gin.HandlerFunc {
	return func(c *gin.Context) {
		farmerID, ok := currentUser(c)
		if !ok {
			return
		}
		p, ok := loadOwnProduct(c, db, farmerID)
		if !ok {
			return
		}
		err := db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("product_id = ?", p.ID).Delete(&domain.Review{}).Error; err != nil {
				return err
			}
			return tx.Delete(&p).Error
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete product"})
			return
		}
		for _, url := range p.ImageURLs {
			removeObject(c, bucket, url)
		}
		invalidateMarket(c.Request.Context(), rdb, p.ID)
		logrus.WithFields(logrus.Fields{
			"farmer_id":  farmerID,
			"product_id": p.ID,
		}).Info("Product deleted")
		c.JSON(http.StatusOK, gin.H{"message": "Product deleted"})
	}
}

// UploadProductImagesHandler appends uploaded images to a product's gallery
func UploadProductImagesHandler(db *gorm.DB, rdb *redis.Client, bucket storage.Bucket) gin.HandlerFunc {
	return func(c *gin.Context) {
		farmerID, ok := currentUser(c)
		if !ok {
			return
		}
		p, ok := loadOwnProduct(c, db, farmerID)
		if !ok {
			return
		}
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Expected multipart form with images"})
			return
		}
		files := form.File["images"]
		if len(files) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No images uploaded"})
			return
		}
		if len(p.ImageURLs)+len(files) > domain.MaxProductImages {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("A product can have at most %d images", domain.MaxProductImages)})
			return
		}

		var uploaded []string
		rollback := func() {
			for _, url := range uploaded {
				removeObject(c, bucket, url)
			}
		}
		for _, fh := range files {
			if fh.Size > storage.MaxImageBytes {
				rollback()
				c.JSON(http.StatusBadRequest, gin.H{"error": fh.Filename + ": " + storage.ErrImageTooLarge.Error()})
				return
			}
			f, err := fh.Open()
			if err != nil {
				rollback()
				c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read " + fh.Filename})
				return
			}
			data, err := storage.NormalizeImage(f, storage.MaxImageWidth)
			f.Close()
			if err != nil {
				rollback()
				status := http.StatusInternalServerError
				if errors.Is(err, storage.ErrNotImage) || errors.Is(err, storage.ErrImageTooLarge) {
					status = http.StatusBadRequest
				}
				c.JSON(status, gin.H{"error": fh.Filename + ": " + err.Error()})
				return
			}
			key := fmt.Sprintf("product-images/%d-%s.jpg", farmerID, uuid.NewString())
			url, err := bucket.Put(c.Request.Context(), key, bytes.NewReader(data), "image/jpeg")
			if err != nil {
				rollback()
				logrus.WithError(err).WithField("key", key).Error("Failed to store image")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store image"})
				return
			}
			uploaded = append(uploaded, url)
		}

		p.SetImages(append(append([]string{}, p.ImageURLs...), uploaded...))
		if err := db.WithContext(c.Request.Context()).Model(&p).Select("image_url", "image_urls").Updates(&p).Error; err != nil {
			rollback()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save images"})
			return
		}
		invalidateMarket(c.Request.Context(), rdb, p.ID)
		logrus.WithFields(logrus.Fields{
			"product_id": p.ID,
			"count":      len(uploaded),
		}).Info("Product images uploaded")
		c.JSON(http.StatusCreated, gin.H{"image_url": p.ImageURL, "image_urls": p.ImageURLs})
	}
}

// DeleteProductImageHandler drops one image from a product and the bucket
func DeleteProductImageHandler(db *gorm.DB, rdb *redis.Client, bucket storage.Bucket) gin.HandlerFunc {
	return func(c *gin.Context) {
		farmerID, ok := currentUser(c)
		if !ok {
			return
		}
		p, ok := loadOwnProduct(c, db, farmerID)
		if !ok {
			return
		}
		var req DeleteImageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		kept := make([]string, 0, len(p.ImageURLs))
		for _, url := range p.ImageURLs {
			if url != req.URL {
				kept = append(kept, url)
			}
		}
		if len(kept) == len(p.ImageURLs) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Image not found on product"})
			return
		}
		p.SetImages(kept)
		if err := db.WithContext(c.Request.Context()).Model(&p).Select("image_url", "image_urls").Updates(&p).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update images"})
			return
		}
		removeObject(c, bucket, req.URL)
		invalidateMarket(c.Request.Context(), rdb, p.ID)
		c.JSON(http.StatusOK, gin.H{"image_url": p.ImageURL, "image_urls": p.ImageURLs})
	}
}

// removeObject deletes a bucket object by URL; failures only leave an orphan file
func removeObject(c *gin.Context, bucket storage.Bucket, url string) {
	key, ok := bucket.KeyFromURL(url)
	if !ok {
		return
	}
	if err := bucket.Delete(c.Request.Context(), key); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Failed to delete image")
	}
}
