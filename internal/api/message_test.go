package api

import (
	"net/http"
	"strings"

	"farm_market/internal/domain"
)

func (s *APISuite) send(token string, to uint, body string) int {
	return s.do(http.MethodPost, "/messages", token, map[string]any{"receiver_id": to, "message": body}).Code
}

func (s *APISuite) unread(token string) int64 {
	var resp struct {
		Unread int64 `json:"unread"`
	}
	s.decode(s.do(http.MethodGet, "/messages/unread-count", token, nil), &resp)
	return resp.Unread
}

func (s *APISuite) TestMessagingFlow() {
	farm, farmID := s.farmer("bo")
	buyer, buyerID := s.consumer("cat")
	other, otherID := s.consumer("dan")

	s.Require().Equal(http.StatusCreated, s.send(buyer, farmID, "  Are the eggs free range?  "))
	s.Require().Equal(http.StatusCreated, s.send(buyer, farmID, "Also, do you deliver?"))
	s.Require().Equal(http.StatusCreated, s.send(other, farmID, "Hello"))
	s.Require().Equal(http.StatusCreated, s.send(farm, buyerID, "Yes to both"))

	s.Equal(int64(3), s.unread(farm))
	s.Equal(int64(1), s.unread(buyer))

	var convs struct {
		Conversations []Conversation `json:"conversations"`
	}
	s.decode(s.do(http.MethodGet, "/messages/conversations", farm, nil), &convs)
	s.Require().Len(convs.Conversations, 2)
	byPartner := map[uint]Conversation{}
	for _, c := range convs.Conversations {
		byPartner[c.Partner.ID] = c
	}
	s.Equal("Yes to both", byPartner[buyerID].LastMessage)
	s.Equal(2, byPartner[buyerID].UnreadCount)
	s.Equal("cat@home.test", byPartner[buyerID].Partner.Email)
	s.Equal(1, byPartner[otherID].UnreadCount)

	w := s.do(http.MethodGet, urlf("/messages/%d", buyerID), farm, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var thread struct {
		Messages   []domain.Message `json:"messages"`
		MarkedRead int64            `json:"marked_read"`
	}
	s.decode(w, &thread)
	s.Require().Len(thread.Messages, 3)
	s.Equal("Are the eggs free range?", thread.Messages[0].Body)
	s.Equal("Yes to both", thread.Messages[2].Body)
	s.Equal(int64(2), thread.MarkedRead)

	s.Equal(int64(1), s.unread(farm), "only the opened thread is marked read")
	s.Equal(int64(1), s.unread(buyer), "reading does not touch the other side")
}

func (s *APISuite) TestSendMessageValidation() {
	token, id := s.consumer("eve")
	_, farmID := s.farmer("fox")

	s.Equal(http.StatusBadRequest, s.send(token, id, "talking to myself"))
	s.Equal(http.StatusBadRequest, s.send(token, farmID, "   "))
	s.Equal(http.StatusBadRequest, s.send(token, farmID, strings.Repeat("a", domain.MaxMessageLength+1)))
	s.Equal(http.StatusCreated, s.send(token, farmID, strings.Repeat("é", domain.MaxMessageLength)))
	s.Equal(http.StatusNotFound, s.send(token, 9999, "hello?"))
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/messages/9999", token, nil).Code)
}
