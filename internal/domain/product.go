package domain

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Categories a product may be listed under
var Categories = []string{"vegetables", "fruits", "grains", "dairy", "herbs", "other"}

// Units a product may be sold by
var Units = []string{"kg", "lb", "piece", "dozen", "bunch", "liter"}

// MaxProductImages caps the gallery size of one product
const MaxProductImages = 10

// Product Model
type Product struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	FarmerID      uint            `gorm:"not null;index" json:"farmer_id"`
	Name          string          `gorm:"size:200;not null" json:"name"`
	Description   string          `gorm:"type:text" json:"description"`
	Category      string          `gorm:"size:40;not null;index" json:"category"`
	Price         decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Unit          string          `gorm:"size:20;not null" json:"unit"`
	StockQuantity int             `gorm:"not null;default:0" json:"stock_quantity"`
	ImageURL      string          `gorm:"size:500" json:"image_url"`                   // Primary image, first of ImageURLs
	ImageURLs     []string        `gorm:"type:text;serializer:json" json:"image_urls"` // Full gallery
	Available     bool            `gorm:"not null;index" json:"available"`
	CreatedAt     int64           `gorm:"autoCreateTime:milli;index" json:"created_at"`
	UpdatedAt     int64           `gorm:"autoUpdateTime:milli" json:"updated_at"`
}

// Validate checks the listing invariants a farmer must respect
func (p *Product) Validate() error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return errors.New("product name is required")
	}
	if !p.Price.IsPositive() {
		return errors.New("price must be greater than 0")
	}
	if p.StockQuantity < 0 {
		return errors.New("stock quantity cannot be negative")
	}
	if !contains(Categories, p.Category) {
		return errors.New("unknown category")
	}
	if !contains(Units, p.Unit) {
		return errors.New("unknown unit")
	}
	return nil
}

// SetImages replaces the gallery and keeps the primary image in sync
func (p *Product) SetImages(urls []string) {
	p.ImageURLs = urls
	p.ImageURL = ""
	if len(urls) > 0 {
		p.ImageURL = urls[0]
	}
}

// InStock reports whether qty units can be sold right now
func (p *Product) InStock(qty int) bool {
	return p.Available && p.StockQuantity >= qty
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// ValidCategory reports whether c names a known category
func ValidCategory(c string) bool {
	return contains(Categories, c)
}
