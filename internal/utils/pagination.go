package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// Page is a validated page request
type Page struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// Offset is the number of rows to skip
func (p Page) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// TotalPages for a result set of total rows
func (p Page) TotalPages(total int64) int {
	return (int(total) + p.PageSize - 1) / p.PageSize
}

// ParsePage reads page and page_size from the query string.
// Invalid values fall back to page 1 and 20 rows; page_size is capped at 100.
func ParsePage(c *gin.Context) Page {
	p := Page{Page: 1, PageSize: 20}
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(c.Query("page_size")); err == nil && v > 0 && v <= 100 {
		p.PageSize = v
	}
	return p
}
