package api

import (
	"net/http"
)

func (s *APISuite) TestMarketplaceListsAvailableProducts() {
	mia, _ := s.farmer("mia")
	ned, _ := s.farmer("ned")
	tomato := s.product(mia, "Tomatoes", "vegetables", "3", 10)
	s.product(mia, "Basil", "herbs", "1.5", 10)
	hidden := s.product(ned, "Honey", "other", "9", 2)
	s.Require().Equal(http.StatusOK, s.do(http.MethodPatch, urlf("/farmer/products/%d/availability", hidden.ID), ned, nil).Code)

	w := s.do(http.MethodGet, "/products", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var page ProductListResponse
	s.decode(w, &page)
	s.Equal(int64(2), page.Total)
	s.Len(page.Products, 2)
	s.Equal("Basil", page.Products[0].Name, "newest first")
	s.Equal("mia Farm", page.Products[0].FarmerName)
	s.False(page.Cached)

	w = s.do(http.MethodGet, "/products?category=vegetables", "", nil)
	s.decode(w, &page)
	s.Require().Len(page.Products, 1)
	s.Equal(tomato.ID, page.Products[0].ID)

	w = s.do(http.MethodGet, "/products?category=all&q=MIA", "", nil)
	s.decode(w, &page)
	s.Len(page.Products, 2, "search matches the farm name")

	w = s.do(http.MethodGet, "/products?q=toma", "", nil)
	s.decode(w, &page)
	s.Len(page.Products, 1)

	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/products?category=meat", "", nil).Code)
}

func (s *APISuite) TestMarketplacePagination() {
	token, _ := s.farmer("oli")
	for i := 0; i < 5; i++ {
		s.product(token, urlf("Squash %d", i), "vegetables", "2", 1)
	}
	w := s.do(http.MethodGet, "/products?page=2&page_size=2", "", nil)
	var page ProductListResponse
	s.decode(w, &page)
	s.Equal(2, page.Page)
	s.Equal(3, page.TotalPages)
	s.Equal(int64(5), page.Total)
	s.Require().Len(page.Products, 2)
	s.Equal("Squash 2", page.Products[0].Name)
}

func (s *APISuite) TestMarketplaceCacheInvalidatedByMutations() {
	token, _ := s.farmer("pat")
	s.product(token, "Leeks", "vegetables", "2", 4)

	var page ProductListResponse
	s.decode(s.do(http.MethodGet, "/products", "", nil), &page)
	s.False(page.Cached)
	s.decode(s.do(http.MethodGet, "/products", "", nil), &page)
	s.True(page.Cached)
	s.Len(page.Products, 1)

	s.product(token, "Onions", "vegetables", "1", 4)
	s.decode(s.do(http.MethodGet, "/products", "", nil), &page)
	s.False(page.Cached)
	s.Len(page.Products, 2)
}

func (s *APISuite) TestMarketplaceSurvivesRedisOutage() {
	token, _ := s.farmer("quin")
	s.product(token, "Beets", "vegetables", "2", 4)
	s.mr.Close()

	w := s.do(http.MethodGet, "/products", "", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var page ProductListResponse
	s.decode(w, &page)
	s.Len(page.Products, 1)
}

func (s *APISuite) TestProductDetail() {
	rae, _ := s.farmer("rae")
	buyer, _ := s.consumer("sam")
	cherries := s.product(rae, "Cherries", "fruits", "6", 5)
	for i := 0; i < 5; i++ {
		s.product(rae, urlf("Berry %d", i), "fruits", "3", 5)
	}
	s.product(rae, "Oats", "grains", "1", 5)

	w := s.do(http.MethodGet, urlf("/products/%d", cherries.ID), buyer, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var d ProductDetail
	s.decode(w, &d)
	s.Equal("Cherries", d.Product.Name)
	s.Equal("rae Farm", d.FarmerName)
	s.False(d.IsOwnProduct)
	s.Len(d.Related, relatedLimit)
	for _, r := range d.Related {
		s.Equal("fruits", r.Category)
		s.NotEqual(cherries.ID, r.ID)
	}

	w = s.do(http.MethodGet, urlf("/products/%d", cherries.ID), rae, nil)
	s.decode(w, &d)
	s.True(d.IsOwnProduct)
	s.True(d.Cached)

	s.Require().Equal(http.StatusOK, s.do(http.MethodPatch, urlf("/farmer/products/%d/availability", cherries.ID), rae, nil).Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, urlf("/products/%d", cherries.ID), buyer, nil).Code)
	s.Equal(http.StatusOK, s.do(http.MethodGet, urlf("/products/%d", cherries.ID), rae, nil).Code)

	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/products/9999", "", nil).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/products/abc", "", nil).Code)
}

func (s *APISuite) TestCategories() {
	w := s.do(http.MethodGet, "/categories", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "vegetables")
	s.Contains(w.Body.String(), "dozen")
}

func (s *APISuite) TestSearchTreatsWildcardsLiterally() {
	token, _ := s.farmer("uma")
	s.product(token, "Tomatoes", "vegetables", "3", 4)
	s.product(token, "Basil", "herbs", "1", 4)

	var page ProductListResponse
	for _, q := range []string{"%25", "_", "!"} {
		s.decode(s.do(http.MethodGet, "/products?q="+q, "", nil), &page)
		s.Equal(int64(0), page.Total, "q=%s", q)
	}

	s.product(token, "100% Rye_flour!", "grains", "4", 4)
	for _, q := range []string{"%25", "_", "!"} {
		s.decode(s.do(http.MethodGet, "/products?q="+q, "", nil), &page)
		s.Require().Equal(int64(1), page.Total, "q=%s", q)
		s.Equal("100% Rye_flour!", page.Products[0].Name)
	}
}

func (s *APISuite) TestRelatedProductsFollowListingChanges() {
	token, _ := s.farmer("vic")
	apples := s.product(token, "Apples", "fruits", "2", 5)
	pears := s.product(token, "Pears", "fruits", "3", 5)

	var d ProductDetail
	s.decode(s.do(http.MethodGet, urlf("/products/%d", pears.ID), "", nil), &d)
	s.Require().Len(d.Related, 1)
	s.Equal(apples.ID, d.Related[0].ID)

	s.Require().Equal(http.StatusOK, s.do(http.MethodPatch, urlf("/farmer/products/%d/availability", apples.ID), token, nil).Code)
	s.decode(s.do(http.MethodGet, urlf("/products/%d", pears.ID), "", nil), &d)
	s.True(d.Cached)
	s.Empty(d.Related, "hidden products are not related")

	s.Require().Equal(http.StatusOK, s.do(http.MethodPatch, urlf("/farmer/products/%d/availability", apples.ID), token, nil).Code)
	s.decode(s.do(http.MethodGet, urlf("/products/%d", pears.ID), "", nil), &d)
	s.Require().Len(d.Related, 1)

	s.Require().Equal(http.StatusOK, s.do(http.MethodDelete, urlf("/farmer/products/%d", apples.ID), token, nil).Code)
	s.decode(s.do(http.MethodGet, urlf("/products/%d", pears.ID), "", nil), &d)
	s.Empty(d.Related, "deleted products are not related")
}
