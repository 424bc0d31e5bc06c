package domain

import "math"

// Review Model; a user reviews a product at most once
type Review struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	ProductID uint   `gorm:"not null;uniqueIndex:idx_reviews_product_user,priority:1" json:"product_id"`
	UserID    uint   `gorm:"not null;uniqueIndex:idx_reviews_product_user,priority:2" json:"user_id"`
	Rating    int    `gorm:"not null" json:"rating"`
	Comment   string `gorm:"type:text" json:"comment"`
	CreatedAt int64  `gorm:"autoCreateTime:milli" json:"created_at"`
	UpdatedAt int64  `gorm:"autoUpdateTime:milli" json:"updated_at"`
}

// RatingSummary returns the average rating rounded to one decimal and the review count
func RatingSummary(reviews []Review) (float64, int) {
	if len(reviews) == 0 {
		return 0, 0
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	avg := float64(sum) / float64(len(reviews))
	return math.Round(avg*10) / 10, len(reviews)
}
