package api

import (
	"net/http"
)

type reviewList struct {
	Reviews       []ReviewView `json:"reviews"`
	AverageRating float64      `json:"average_rating"`
	Count         int          `json:"count"`
	MyReview      *ReviewView  `json:"my_review"`
}

func (s *APISuite) review(token string, productID uint, rating int, comment string) int {
	return s.do(http.MethodPut, urlf("/products/%d/reviews", productID), token, map[string]any{"rating": rating, "comment": comment}).Code
}

func (s *APISuite) TestReviewUpsert() {
	farm, _ := s.farmer("gia")
	a, _ := s.consumer("hank")
	b, _ := s.consumer("iris")
	p := s.product(farm, "Walnuts", "other", "8", 10)

	s.Equal(http.StatusCreated, s.review(a, p.ID, 4, "Tasty"))
	s.Equal(http.StatusOK, s.review(a, p.ID, 5, "Even better the second time"))
	s.Equal(http.StatusCreated, s.review(b, p.ID, 4, ""))

	var list reviewList
	s.decode(s.do(http.MethodGet, urlf("/products/%d/reviews", p.ID), a, nil), &list)
	s.Equal(2, list.Count, "one review per user")
	s.Equal(4.5, list.AverageRating)
	s.Require().NotNil(list.MyReview)
	s.Equal(5, list.MyReview.Rating)
	s.Equal("Even better the second time", list.MyReview.Comment)
	s.Equal("User hank@home.test", list.MyReview.ReviewerName)

	s.decode(s.do(http.MethodGet, urlf("/products/%d/reviews", p.ID), "", nil), &list)
	s.Nil(list.MyReview)
}

func (s *APISuite) TestReviewRules() {
	farm, _ := s.farmer("jack")
	buyer, _ := s.consumer("kate")
	p := s.product(farm, "Hazelnuts", "other", "7", 10)

	s.Equal(http.StatusForbidden, s.review(farm, p.ID, 5, "My own are the best"))
	s.Equal(http.StatusBadRequest, s.review(buyer, p.ID, 6, ""))
	s.Equal(http.StatusBadRequest, s.review(buyer, p.ID, 0, ""))
	s.Equal(http.StatusNotFound, s.review(buyer, 31337, 3, ""))
	s.Equal(http.StatusUnauthorized, s.review("", p.ID, 3, ""))

	s.Equal(http.StatusNotFound, s.do(http.MethodDelete, urlf("/products/%d/reviews", p.ID), buyer, nil).Code)
	s.Require().Equal(http.StatusCreated, s.review(buyer, p.ID, 3, "ok"))
	s.Equal(http.StatusOK, s.do(http.MethodDelete, urlf("/products/%d/reviews", p.ID), buyer, nil).Code)
}

func (s *APISuite) TestReviewRefreshesProductPage() {
	farm, _ := s.farmer("lia")
	buyer, _ := s.consumer("moe")
	p := s.product(farm, "Chard", "vegetables", "2", 10)

	var d ProductDetail
	s.decode(s.do(http.MethodGet, urlf("/products/%d", p.ID), "", nil), &d)
	s.Zero(d.ReviewCount)

	s.Require().Equal(http.StatusCreated, s.review(buyer, p.ID, 2, "bitter"))
	s.decode(s.do(http.MethodGet, urlf("/products/%d", p.ID), "", nil), &d)
	s.False(d.Cached)
	s.Equal(1, d.ReviewCount)
	s.Equal(2.0, d.AverageRating)
}
