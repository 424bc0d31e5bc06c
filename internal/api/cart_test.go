package api

import (
	"net/http"

	"farm_market/internal/cart"

	"github.com/shopspring/decimal"
)

func (s *APISuite) cart(token string) cart.Cart {
	w := s.do(http.MethodGet, "/cart", token, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var c cart.Cart
	s.decode(w, &c)
	return c
}

func (s *APISuite) TestAddToCartMergesLines() {
	farm, _ := s.farmer("tess")
	buyer, _ := s.consumer("uma")
	p := s.product(farm, "Figs", "fruits", "2.25", 10)

	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/cart/items", buyer, map[string]any{"product_id": p.ID}).Code)
	w := s.do(http.MethodPost, "/cart/items", buyer, map[string]any{"product_id": p.ID, "quantity": 3})
	s.Require().Equal(http.StatusOK, w.Code)
	var added struct {
		Quantity int `json:"quantity"`
	}
	s.decode(w, &added)
	s.Equal(4, added.Quantity)

	c := s.cart(buyer)
	s.Require().Len(c.Items, 1)
	s.Equal(4, c.Items[0].Quantity)
	s.Equal("tess Farm", c.Items[0].FarmerName)
	s.True(decimal.RequireFromString("9").Equal(c.Subtotal), "subtotal %s", c.Subtotal)
	s.Equal(4, c.ItemCount)
}

func (s *APISuite) TestAddToCartRejections() {
	farm, _ := s.farmer("vic")
	buyer, _ := s.consumer("wes")
	p := s.product(farm, "Garlic", "vegetables", "1", 3)
	empty := s.product(farm, "Ginger", "vegetables", "1", 0)

	s.Equal(http.StatusConflict, s.do(http.MethodPost, "/cart/items", farm, map[string]any{"product_id": p.ID}).Code, "own product")
	s.Equal(http.StatusConflict, s.do(http.MethodPost, "/cart/items", buyer, map[string]any{"product_id": empty.ID}).Code, "out of stock")
	s.Equal(http.StatusNotFound, s.do(http.MethodPost, "/cart/items", buyer, map[string]any{"product_id": 4242}).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/cart/items", buyer, map[string]any{"product_id": p.ID, "quantity": -1}).Code)

	s.Require().Equal(http.StatusOK, s.do(http.MethodPatch, urlf("/farmer/products/%d/availability", p.ID), farm, nil).Code)
	s.Equal(http.StatusConflict, s.do(http.MethodPost, "/cart/items", buyer, map[string]any{"product_id": p.ID}).Code, "hidden")
	s.Empty(s.cart(buyer).Items)
}

func (s *APISuite) TestUpdateAndRemoveCartItems() {
	farm, _ := s.farmer("xan")
	buyer, _ := s.consumer("yara")
	p := s.product(farm, "Lettuce", "vegetables", "1.1", 9)
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/cart/items", buyer, map[string]any{"product_id": p.ID}).Code)

	s.Equal(http.StatusOK, s.do(http.MethodPut, urlf("/cart/items/%d", p.ID), buyer, map[string]any{"quantity": 5}).Code)
	s.Equal(5, s.cart(buyer).Items[0].Quantity)

	s.Equal(http.StatusBadRequest, s.do(http.MethodPut, urlf("/cart/items/%d", p.ID), buyer, map[string]any{"quantity": 0}).Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodPut, "/cart/items/777", buyer, map[string]any{"quantity": 2}).Code)

	s.Equal(http.StatusOK, s.do(http.MethodDelete, urlf("/cart/items/%d", p.ID), buyer, nil).Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodDelete, urlf("/cart/items/%d", p.ID), buyer, nil).Code)

	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/cart/items", buyer, map[string]any{"product_id": p.ID}).Code)
	s.Equal(http.StatusOK, s.do(http.MethodDelete, "/cart", buyer, nil).Code)
	s.Empty(s.cart(buyer).Items)
}

func (s *APISuite) TestMergeGuestCart() {
	farm, _ := s.farmer("zed")
	buyer, _ := s.consumer("abe")
	a := s.product(farm, "Peas", "vegetables", "2", 10)
	b := s.product(farm, "Beans", "vegetables", "3", 10)
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/cart/items", buyer, map[string]any{"product_id": a.ID, "quantity": 2}).Code)

	w := s.do(http.MethodPost, "/cart/merge", buyer, map[string]any{"items": []map[string]any{
		{"product_id": a.ID, "quantity": 1},
		{"product_id": b.ID, "quantity": 2},
		{"product_id": 5555, "quantity": 1},
		{"product_id": b.ID, "quantity": 0},
	}})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Cart    cart.Cart     `json:"cart"`
		Merged  int           `json:"merged"`
		Skipped []SkippedLine `json:"skipped"`
	}
	s.decode(w, &resp)
	s.Equal(2, resp.Merged)
	s.Len(resp.Skipped, 2)
	s.Require().Len(resp.Cart.Items, 2)
	s.Equal(3, resp.Cart.Items[0].Quantity, "guest quantity adds to the account line")
	s.Equal(2, resp.Cart.Items[1].Quantity)
}
