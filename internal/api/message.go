package api

import (
	"errors"       // Error comparison
	"net/http"     // HTTP status codes
	"strings"      // String manipulation
	"unicode/utf8" // Message length in characters

	"farm_market/internal/domain" // Importing domain models

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// SendMessageRequest is a chat message to another user
type SendMessageRequest struct {
	ReceiverID uint   `json:"receiver_id" binding:"required"`
	Message    string `json:"message" binding:"required"`
}

// Partner is the other side of a conversation
type Partner struct {
	ID       uint   `json:"id"`
	FullName string `json:"full_name"`
	FarmName string `json:"farm_name,omitempty"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Conversation summarises one chat thread
type Conversation struct {
	Partner       Partner `json:"partner"`
	LastMessage   string  `json:"last_message"`
	LastMessageAt int64   `json:"last_message_at"`
	UnreadCount   int     `json:"unread_count"`
}

func partnerOf(u domain.User) Partner {
	return Partner{ID: u.ID, FullName: u.FullName, FarmName: u.FarmName, Email: u.Email, Role: u.Role}
}

// SendMessageHandler stores a message from the caller
func SendMessageHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		senderID, ok := currentUser(c)
		if !ok {
			return
		}
		var req SendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		body := strings.TrimSpace(req.Message)
		if body == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Message cannot be empty"})
			return
		}
		if utf8.RuneCountInString(body) > domain.MaxMessageLength {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Message is too long"})
			return
		}
		if req.ReceiverID == senderID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot message yourself"})
			return
		}
		tx := db.WithContext(c.Request.Context())
		var receiver domain.User
		if err := tx.First(&receiver, req.ReceiverID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Recipient not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
			return
		}
		msg := domain.Message{SenderID: senderID, ReceiverID: receiver.ID, Body: body}
		if err := tx.Create(&msg).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
			return
		}
		logrus.WithFields(logrus.Fields{
			"message_id":  msg.ID,
			"sender_id":   senderID,
			"receiver_id": receiver.ID,
		}).Info("Message sent")
		c.JSON(http.StatusCreated, msg)
	}
}

// ConversationsHandler lists the caller's chat partners, most recent first
func ConversationsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		tx := db.WithContext(c.Request.Context())
		var messages []domain.Message
		if err := tx.Where("sender_id = ? OR receiver_id = ?", userID, userID).
			Order("created_at DESC, id DESC").
			Find(&messages).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch conversations"})
			return
		}

		// Messages arrive newest first, so the first one seen per partner is the latest
		byPartner := make(map[uint]*Conversation)
		var order []uint
		for _, m := range messages {
			pid := m.PartnerOf(userID)
			conv, ok := byPartner[pid]
			if !ok {
				conv = &Conversation{Partner: Partner{ID: pid}, LastMessage: m.Body, LastMessageAt: m.CreatedAt}
				byPartner[pid] = conv
				order = append(order, pid)
			}
			if m.ReceiverID == userID && !m.Read {
				conv.UnreadCount++
			}
		}

		if len(order) > 0 {
			var partners []domain.User
			if err := tx.Where("id IN ?", order).Find(&partners).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch conversations"})
				return
			}
			for _, p := range partners {
				byPartner[p.ID].Partner = partnerOf(p)
			}
		}
		conversations := make([]Conversation, 0, len(order))
		for _, pid := range order {
			conversations = append(conversations, *byPartner[pid])
		}
		c.JSON(http.StatusOK, gin.H{"conversations": conversations})
	}
}

// ThreadHandler returns the conversation with one partner, oldest first,
// and marks the partner's messages to the caller as read.
func ThreadHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		partnerID, ok := pathID(c, "partner_id")
		if !ok {
			return
		}
		tx := db.WithContext(c.Request.Context())
		var partner domain.User
		if err := tx.First(&partner, partnerID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		res := tx.Model(&domain.Message{}).
			Where("sender_id = ? AND receiver_id = ? AND is_read = ?", partnerID, userID, false).
			Update("is_read", true)
		if res.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark messages read"})
			return
		}
		messages := []domain.Message{}
		if err := tx.Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userID, partnerID, partnerID, userID).
			Order("created_at ASC, id ASC").
			Find(&messages).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch messages"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"partner":     partnerOf(partner),
			"messages":    messages,
			"marked_read": res.RowsAffected,
		})
	}
}

// UnreadCountHandler returns how many messages wait for the caller
func UnreadCountHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		var count int64
		if err := db.WithContext(c.Request.Context()).Model(&domain.Message{}).
			Where("receiver_id = ? AND is_read = ?", userID, false).
			Count(&count).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count messages"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"unread": count})
	}
}
