package api

import (
	"time" // Token and cache lifetimes

	"farm_market/internal/cart"       // Redis cart store
	"farm_market/internal/domain"     // Account roles
	"farm_market/internal/middleware" // Custom package for middleware
	"farm_market/internal/storage"    // Image bucket

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"gorm.io/gorm"                 // GORM ORM library
)

// Deps are the services the handlers are built from
type Deps struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Carts     *cart.Store
	Bucket    storage.Bucket
	UploadDir string        // Served under /uploads when set
	JWTSecret string        // HS256 signing key
	JWTTTL    time.Duration // Issued token lifetime
	CacheTTL  time.Duration // Marketplace cache lifetime
}

// NewRouter registers every route on a fresh gin engine
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())

	if d.UploadDir != "" {
		r.Static("/uploads", d.UploadDir) // Product images
	}

	auth := middleware.JWTAuthMiddleware(d.JWTSecret)
	optionalAuth := middleware.OptionalJWTMiddleware(d.JWTSecret)
	farmerOnly := middleware.RequireRole(d.DB, domain.RoleFarmer)

	// Auth routes
	r.POST("/auth/register", RegisterHandler(d.DB))
	r.POST("/auth/login", LoginHandler(d.DB, d.JWTSecret, d.JWTTTL))

	// Marketplace routes (public, caller identified when a token is sent)
	r.GET("/categories", CategoriesHandler())
	r.GET("/products", optionalAuth, ListProductsHandler(d.DB, d.Redis, d.CacheTTL))
	r.GET("/products/:id", optionalAuth, GetProductHandler(d.DB, d.Redis, d.CacheTTL))
	r.GET("/products/:id/reviews", optionalAuth, ListReviewsHandler(d.DB))
	r.PUT("/products/:id/reviews", auth, UpsertReviewHandler(d.DB, d.Redis))
	r.DELETE("/products/:id/reviews", auth, DeleteReviewHandler(d.DB, d.Redis))

	// Profile routes
	profile := r.Group("/profile", auth)
	profile.GET("", GetProfileHandler(d.DB))
	profile.PUT("", UpdateProfileHandler(d.DB, d.Redis))
	profile.PUT("/password", ChangePasswordHandler(d.DB))

	// Cart routes
	cartGroup := r.Group("/cart", auth)
	cartGroup.GET("", GetCartHandler(d.Carts))
	cartGroup.DELETE("", ClearCartHandler(d.Carts))
	cartGroup.POST("/items", AddToCartHandler(d.DB, d.Carts))
	cartGroup.PUT("/items/:product_id", UpdateCartItemHandler(d.Carts))
	cartGroup.DELETE("/items/:product_id", RemoveCartItemHandler(d.Carts))
	cartGroup.POST("/merge", MergeCartHandler(d.DB, d.Carts))

	r.POST("/checkout", auth, CheckoutHandler(d.DB, d.Redis, d.Carts))

	// Consumer order routes
	orders := r.Group("/orders", auth)
	orders.GET("", ListOrdersHandler(d.DB))
	orders.GET("/:id", GetOrderHandler(d.DB))
	orders.POST("/:id/cancel", CancelOrderHandler(d.DB, d.Redis))

	// Messaging routes
	messages := r.Group("/messages", auth)
	messages.POST("", SendMessageHandler(d.DB))
	messages.GET("/conversations", ConversationsHandler(d.DB))
	messages.GET("/unread-count", UnreadCountHandler(d.DB))
	messages.GET("/:partner_id", ThreadHandler(d.DB))

	// Farmer routes (role checked against the database)
	farmer := r.Group("/farmer", auth, farmerOnly)
	farmer.POST("/products", CreateProductHandler(d.DB, d.Redis))
	farmer.GET("/products", ListFarmerProductsHandler(d.DB))
	farmer.GET("/products/:id", GetFarmerProductHandler(d.DB))
	farmer.PUT("/products/:id", UpdateProductHandler(d.DB, d.Redis))
	farmer.PATCH("/products/:id/availability", ToggleAvailabilityHandler(d.DB, d.Redis))
	farmer.DELETE("/products/:id", DeleteProductHandler(d.DB, d.Redis, d.Bucket))
	farmer.POST("/products/:id/images", UploadProductImagesHandler(d.DB, d.Redis, d.Bucket))
	farmer.DELETE("/products/:id/images", DeleteProductImageHandler(d.DB, d.Redis, d.Bucket))
	farmer.GET("/orders", ListFarmerOrdersHandler(d.DB))
	farmer.GET("/orders/export", ExportFarmerOrdersHandler(d.DB))
	farmer.PATCH("/orders/:id/status", UpdateOrderStatusHandler(d.DB, d.Redis))

	return r
}
