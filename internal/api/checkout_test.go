package api

import (
	"net/http"

	"farm_market/internal/domain"

	"github.com/shopspring/decimal"
)

func (s *APISuite) addToCart(token string, productID uint, qty int) {
	w := s.do(http.MethodPost, "/cart/items", token, map[string]any{"product_id": productID, "quantity": qty})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
}

type checkoutResponse struct {
	Orders []OrderView `json:"orders"`
}

func (s *APISuite) TestCheckoutSplitsOrdersByFarmer() {
	f1, f1ID := s.farmer("bea")
	f2, f2ID := s.farmer("cy")
	buyer, buyerID := s.consumer("dee")
	apples := s.product(f1, "Apples", "fruits", "1.50", 10)
	milk := s.product(f2, "Milk", "dairy", "2.00", 5)
	rye := s.product(f1, "Rye", "grains", "4.25", 3)

	s.addToCart(buyer, apples.ID, 4)
	s.addToCart(buyer, milk.ID, 2)
	s.addToCart(buyer, rye.ID, 1)

	w := s.do(http.MethodPost, "/checkout", buyer, map[string]any{"notes": "back door"})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var resp checkoutResponse
	s.decode(w, &resp)
	s.Require().Len(resp.Orders, 2)

	first, second := resp.Orders[0], resp.Orders[1]
	s.Equal(f1ID, first.FarmerID)
	s.Equal(f2ID, second.FarmerID)
	s.Equal("bea Farm", first.FarmerName)
	s.Equal(buyerID, first.ConsumerID)
	s.Equal(domain.OrderStatusPending, first.Status)
	s.Equal("1 dee Street", first.DeliveryAddress, "profile address is the fallback")
	s.Equal("back door", first.Notes)
	s.Require().Len(first.Items, 2)
	s.Equal(apples.ID, first.Items[0].ProductID)
	s.True(decimal.RequireFromString("10.25").Equal(first.TotalAmount), "got %s", first.TotalAmount)
	s.True(decimal.RequireFromString("4").Equal(second.TotalAmount), "got %s", second.TotalAmount)

	s.Equal(6, s.stockOf(apples.ID))
	s.Equal(3, s.stockOf(milk.ID))
	s.Equal(2, s.stockOf(rye.ID))
	s.Empty(s.cart(buyer).Items)

	var count int64
	s.db.Model(&domain.OrderItem{}).Count(&count)
	s.Equal(int64(3), count)
}

func (s *APISuite) TestCheckoutUsesCurrentPrice() {
	farm, _ := s.farmer("eli")
	buyer, _ := s.consumer("flo")
	p := s.product(farm, "Cream", "dairy", "3", 5)
	s.addToCart(buyer, p.ID, 2)

	w := s.do(http.MethodPut, urlf("/farmer/products/%d", p.ID), farm, map[string]any{
		"name": "Cream", "category": "dairy", "price": "3.50", "unit": "liter", "stock_quantity": 5,
	})
	s.Require().Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/checkout", buyer, map[string]any{"delivery_address": "Market Square"})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var resp checkoutResponse
	s.decode(w, &resp)
	s.Require().Len(resp.Orders, 1)
	s.Equal("Market Square", resp.Orders[0].DeliveryAddress)
	s.True(decimal.RequireFromString("3.50").Equal(resp.Orders[0].Items[0].PriceAtPurchase))
	s.True(decimal.RequireFromString("7").Equal(resp.Orders[0].TotalAmount))
}

func (s *APISuite) TestCheckoutShortfallRollsBack() {
	f1, _ := s.farmer("gil")
	f2, _ := s.farmer("hue")
	buyer, _ := s.consumer("ian")
	plenty := s.product(f1, "Potatoes", "vegetables", "1", 50)
	scarce := s.product(f2, "Truffles", "other", "90", 1)

	s.addToCart(buyer, plenty.ID, 5)
	s.addToCart(buyer, scarce.ID, 2)

	w := s.do(http.MethodPost, "/checkout", buyer, nil)
	s.Equal(http.StatusConflict, w.Code, w.Body.String())
	s.Contains(w.Body.String(), "Truffles")

	var orders int64
	s.db.Model(&domain.Order{}).Count(&orders)
	s.Zero(orders)
	s.Equal(50, s.stockOf(plenty.ID), "stock taken before the shortfall is restored")
	s.Equal(1, s.stockOf(scarce.ID))
	s.Len(s.cart(buyer).Items, 2, "cart is kept when checkout fails")
}

func (s *APISuite) TestCheckoutRejectsHiddenProduct() {
	farm, _ := s.farmer("jay")
	buyer, _ := s.consumer("kai")
	p := s.product(farm, "Mint", "herbs", "1", 5)
	s.addToCart(buyer, p.ID, 1)
	s.Require().Equal(http.StatusOK, s.do(http.MethodPatch, urlf("/farmer/products/%d/availability", p.ID), farm, nil).Code)

	s.Equal(http.StatusConflict, s.do(http.MethodPost, "/checkout", buyer, nil).Code)
	s.Equal(5, s.stockOf(p.ID))
}

func (s *APISuite) TestCheckoutPreconditions() {
	farm, _ := s.farmer("lea")
	p := s.product(farm, "Dill", "herbs", "1", 5)

	buyer, _ := s.consumer("max")
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/checkout", buyer, nil).Code, "empty cart")

	homeless, _ := s.account("nomad@home.test", domain.RoleConsumer, nil)
	s.addToCart(homeless, p.ID, 1)
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/checkout", homeless, nil).Code, "no address")
}
