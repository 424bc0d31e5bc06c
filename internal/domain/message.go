package domain

// MaxMessageLength bounds a single chat message
const MaxMessageLength = 2000

// Message Model
type Message struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	SenderID   uint   `gorm:"not null;index:idx_messages_pair,priority:1" json:"sender_id"`
	ReceiverID uint   `gorm:"not null;index:idx_messages_pair,priority:2;index" json:"receiver_id"`
	Body       string `gorm:"column:message;type:text;not null" json:"message"`
	Read       bool   `gorm:"column:is_read;not null;index" json:"read"`
	CreatedAt  int64  `gorm:"autoCreateTime:milli;index" json:"created_at"`
}

// PartnerOf returns the other participant from userID's point of view
func (m Message) PartnerOf(userID uint) uint {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}
