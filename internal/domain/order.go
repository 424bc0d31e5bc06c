package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle position of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderStatuses in lifecycle order, cancelled last
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusReady,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// forward is the single successor of each non-terminal status
var forward = map[OrderStatus]OrderStatus{
	OrderStatusPending:   OrderStatusConfirmed,
	OrderStatusConfirmed: OrderStatusPreparing,
	OrderStatusPreparing: OrderStatusReady,
	OrderStatusReady:     OrderStatusCompleted,
}

// ParseOrderStatus validates a status received from a client
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range OrderStatuses {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Next returns the forward successor of s, if any
func (s OrderStatus) Next() (OrderStatus, bool) {
	n, ok := forward[s]
	return n, ok
}

// IsTerminal reports whether no transition leaves s
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// CanTransition reports whether an order may move from one status to another.
// Only pending orders can be cancelled.
func CanTransition(from, to OrderStatus) bool {
	if to == OrderStatusCancelled {
		return from == OrderStatusPending
	}
	next, ok := from.Next()
	return ok && next == to
}

// Order Model, one per farmer per checkout
type Order struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	ConsumerID      uint            `gorm:"not null;index" json:"consumer_id"`
	FarmerID        uint            `gorm:"not null;index" json:"farmer_id"`
	Status          OrderStatus     `gorm:"size:20;not null;index" json:"status"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	DeliveryAddress string          `gorm:"size:500;not null" json:"delivery_address"`
	Notes           string          `gorm:"type:text" json:"notes"`
	Items           []OrderItem     `gorm:"constraint:OnDelete:CASCADE;" json:"items,omitempty"`
	CreatedAt       int64           `gorm:"autoCreateTime:milli;index" json:"created_at"`
	UpdatedAt       int64           `gorm:"autoUpdateTime:milli" json:"updated_at"`
}

// OrderItem Model; name, unit and price are snapshots taken at checkout
type OrderItem struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	OrderID         uint            `gorm:"not null;index" json:"order_id"`
	ProductID       uint            `gorm:"not null;index" json:"product_id"`
	ProductName     string          `gorm:"size:200;not null" json:"product_name"`
	Unit            string          `gorm:"size:20" json:"unit"`
	ImageURL        string          `gorm:"size:500" json:"image_url"`
	Quantity        int             `gorm:"not null" json:"quantity"`
	PriceAtPurchase decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price_at_purchase"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
}

// CheckoutLine is one cart line priced from the current product row
type CheckoutLine struct {
	Product  Product
	Quantity int
}

// Subtotal is price times quantity
func (l CheckoutLine) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// FarmerGroup is the set of lines that become a single order
type FarmerGroup struct {
	FarmerID uint
	Lines    []CheckoutLine
	Total    decimal.Decimal
}

// GroupLinesByFarmer splits a checkout into one group per seller.
// Groups are ordered by farmer ID and lines within a group by product ID.
func GroupLinesByFarmer(lines []CheckoutLine) []FarmerGroup {
	byFarmer := make(map[uint]*FarmerGroup)
	for _, l := range lines {
		g, ok := byFarmer[l.Product.FarmerID]
		if !ok {
			g = &FarmerGroup{FarmerID: l.Product.FarmerID, Total: decimal.Zero}
			byFarmer[l.Product.FarmerID] = g
		}
		g.Lines = append(g.Lines, l)
		g.Total = g.Total.Add(l.Subtotal())
	}

	groups := make([]FarmerGroup, 0, len(byFarmer))
	for _, g := range byFarmer {
		sort.Slice(g.Lines, func(i, j int) bool { return g.Lines[i].Product.ID < g.Lines[j].Product.ID })
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].FarmerID < groups[j].FarmerID })
	return groups
}

// NewOrderFromGroup builds the pending order and its item snapshots
func NewOrderFromGroup(consumerID uint, g FarmerGroup, address, notes string) Order {
	o := Order{
		ConsumerID:      consumerID,
		FarmerID:        g.FarmerID,
		Status:          OrderStatusPending,
		TotalAmount:     g.Total,
		DeliveryAddress: address,
		Notes:           notes,
	}
	for _, l := range g.Lines {
		o.Items = append(o.Items, OrderItem{
			ProductID:       l.Product.ID,
			ProductName:     l.Product.Name,
			Unit:            l.Product.Unit,
			ImageURL:        l.Product.ImageURL,
			Quantity:        l.Quantity,
			PriceAtPurchase: l.Product.Price,
			Subtotal:        l.Subtotal(),
		})
	}
	return o
}
