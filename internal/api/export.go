package api

import (
	"fmt"      // Cell names and file name
	"net/http" // HTTP status codes
	"time"     // Timestamp formatting

	"farm_market/internal/domain" // Importing domain models

	"github.com/gin-gonic/gin"    // Gin web framework
	"github.com/sirupsen/logrus"  // Logging library
	"github.com/xuri/excelize/v2" // Spreadsheet writer
	"gorm.io/gorm"                // GORM ORM library
)

const (
	exportSheet = "Orders"
	xlsxMime    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var exportHeader = []any{
	"Order ID", "Created At", "Status", "Consumer", "Consumer Email", "Consumer Phone",
	"Product", "Quantity", "Unit", "Unit Price", "Subtotal", "Order Total", "Delivery Address",
}

// buildOrdersWorkbook writes one row per order item
func buildOrdersWorkbook(views []OrderView) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return nil, err
	}
	if err := f.SetRowStyle(exportSheet, 1, 1, bold); err != nil {
		return nil, err
	}

	row := 2
	for _, v := range views {
		var consumer ConsumerContact
		if v.Consumer != nil {
			consumer = *v.Consumer
		}
		created := time.UnixMilli(v.CreatedAt).UTC().Format("2006-01-02 15:04")
		total, _ := v.TotalAmount.Float64()
		for _, item := range v.Items {
			price, _ := item.PriceAtPurchase.Float64()
			subtotal, _ := item.Subtotal.Float64()
			values := []any{
				v.ID, created, string(v.Status), consumer.FullName, consumer.Email, consumer.Phone,
				item.ProductName, item.Quantity, item.Unit, price, subtotal, total, v.DeliveryAddress,
			}
			if err := f.SetSheetRow(exportSheet, fmt.Sprintf("A%d", row), &values); err != nil {
				return nil, err
			}
			row++
		}
	}
	if err := f.SetColWidth(exportSheet, "A", "M", 16); err != nil {
		return nil, err
	}
	return f, nil
}

// ExportFarmerOrdersHandler streams the calling farmer's orders as an xlsx workbook
func ExportFarmerOrdersHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		farmerID, ok := currentUser(c)
		if !ok {
			return
		}
		status, ok := statusFilter(c)
		if !ok {
			return
		}
		tx := db.WithContext(c.Request.Context())
		query := tx.Preload("Items").Where("farmer_id = ?", farmerID)
		if status != "" {
			query = query.Where("status = ?", status)
		}
		var orders []domain.Order
		if err := query.Order("created_at DESC, id DESC").Find(&orders).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
			return
		}
		views, err := orderViews(tx, orders, true)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
			return
		}
		f, err := buildOrdersWorkbook(views)
		if err != nil {
			logrus.WithError(err).Error("Failed to build orders workbook")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export orders"})
			return
		}
		defer f.Close()

		name := fmt.Sprintf("orders-%s.xlsx", time.Now().UTC().Format("20060102"))
		c.Header("Content-Type", xlsxMime)
		c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
		c.Status(http.StatusOK)
		if err := f.Write(c.Writer); err != nil {
			logrus.WithError(err).Error("Failed to write orders workbook")
		}
	}
}
