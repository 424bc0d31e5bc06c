package api

import (
	"errors"
	"net/http"
	"strings"

	"farm_market/internal/domain"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"gorm.io/gorm"
)

func (s *APISuite) TestRegisterAndLogin() {
	token, id := s.account("Ana@Farm.test", domain.RoleFarmer, map[string]any{"farm_name": "Green Acres"})
	s.NotEmpty(token)
	s.NotZero(id)

	var user domain.User
	s.Require().NoError(s.db.First(&user, id).Error)
	s.Equal("ana@farm.test", user.Email)
	s.NotEqual("secret1", user.Password)
	s.Equal("Green Acres", user.FarmName)
}

func (s *APISuite) TestRegisterValidation() {
	s.account("taken@home.test", domain.RoleConsumer, nil)

	cases := map[string]map[string]any{
		"duplicate email": {"email": "TAKEN@home.test", "password": "secret1", "full_name": "X", "role": "consumer"},
		"bad email":       {"email": "not-an-email", "password": "secret1", "full_name": "X", "role": "consumer"},
		"short password":  {"email": "a@b.test", "password": "123", "full_name": "X", "role": "consumer"},
		"long password":   {"email": "a@b.test", "password": strings.Repeat("x", 73), "full_name": "X", "role": "consumer"},
		"unknown role":    {"email": "a@b.test", "password": "secret1", "full_name": "X", "role": "admin"},
		"missing name":    {"email": "a@b.test", "password": "secret1", "role": "farmer"},
	}
	want := map[string]int{
		"duplicate email": http.StatusConflict,
		"bad email":       http.StatusBadRequest,
		"short password":  http.StatusBadRequest,
		"long password":   http.StatusBadRequest,
		"unknown role":    http.StatusBadRequest,
		"missing name":    http.StatusBadRequest,
	}
	for name, body := range cases {
		w := s.do(http.MethodPost, "/auth/register", "", body)
		s.Equal(want[name], w.Code, name)
		if strings.HasSuffix(name, "password") {
			s.Contains(w.Body.String(), "6-72 characters", name)
		}
	}
}

func (s *APISuite) TestLoginRejectsWrongPassword() {
	s.account("bob@home.test", domain.RoleConsumer, nil)
	w := s.do(http.MethodPost, "/auth/login", "", map[string]any{"email": "bob@home.test", "password": "wrong-pass"})
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/auth/login", "", map[string]any{"email": "nobody@home.test", "password": "secret1"})
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *APISuite) TestProtectedRoutesNeedToken() {
	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/profile", "", nil).Code)
	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/cart", "", nil).Code)
	s.Equal(http.StatusUnauthorized, s.do(http.MethodPost, "/checkout", "bogus", nil).Code)
}

func (s *APISuite) TestFarmerRoutesRejectConsumers() {
	token, _ := s.consumer("carl")
	w := s.do(http.MethodPost, "/farmer/products", token, map[string]any{
		"name": "Eggs", "category": "dairy", "price": "3", "unit": "dozen", "stock_quantity": 5,
	})
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal(http.StatusForbidden, s.do(http.MethodGet, "/farmer/orders", token, nil).Code)
}

func (s *APISuite) TestProfileUpdate() {
	token, _ := s.farmer("dora")
	s.consumer("erin")

	w := s.do(http.MethodPut, "/profile", token, map[string]any{"phone": " 555-0101 ", "farm_name": "Dora's Dairy"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var resp ProfileResponse
	s.decode(w, &resp)
	s.Equal("555-0101", resp.Phone)
	s.Equal("Dora's Dairy", resp.FarmName)
	s.Equal("dora@farm.test", resp.Email)

	w = s.do(http.MethodPut, "/profile", token, map[string]any{"email": "erin@home.test"})
	s.Equal(http.StatusConflict, w.Code)

	w = s.do(http.MethodPut, "/profile", token, map[string]any{"full_name": "  "})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/profile", token, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.NotContains(w.Body.String(), "password")
}

func (s *APISuite) TestFarmerRenameDropsListingsWhenProductLookupFails() {
	token, _ := s.farmer("gil")
	s.product(token, "Garlic", "vegetables", "2", 3)

	var page ProductListResponse
	s.decode(s.do(http.MethodGet, "/products", "", nil), &page)
	s.decode(s.do(http.MethodGet, "/products", "", nil), &page)
	s.Require().True(page.Cached)

	hook := logtest.NewGlobal()
	defer logrus.StandardLogger().ReplaceHooks(make(logrus.LevelHooks))
	s.Require().NoError(s.db.Callback().Query().Before("gorm:query").Register("fail_product_reads", func(tx *gorm.DB) {
		if tx.Statement.Table == "products" {
			_ = tx.AddError(errors.New("products unavailable"))
		}
	}))

	w := s.do(http.MethodPut, "/profile", token, map[string]any{"farm_name": "Gil's Garden"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "Failed to list products for cache invalidation" {
			warned = true
		}
	}
	s.True(warned)

	s.Require().NoError(s.db.Callback().Query().Remove("fail_product_reads"))
	s.decode(s.do(http.MethodGet, "/products", "", nil), &page)
	s.False(page.Cached)
	s.Require().Len(page.Products, 1)
	s.Equal("Gil's Garden", page.Products[0].FarmerName)
}

func (s *APISuite) TestChangePassword() {
	token, _ := s.consumer("fay")

	w := s.do(http.MethodPut, "/profile/password", token, map[string]any{
		"current_password": "secret1", "new_password": "better1", "confirm_password": "better2",
	})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPut, "/profile/password", token, map[string]any{
		"current_password": "wrong", "new_password": "better1", "confirm_password": "better1",
	})
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPut, "/profile/password", token, map[string]any{
		"current_password": "secret1", "new_password": "better1", "confirm_password": "better1",
	})
	s.Require().Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/auth/login", "", map[string]any{"email": "fay@home.test", "password": "better1"})
	s.Equal(http.StatusOK, w.Code)
}
