package model

import "time"

type Message struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID uint64    `gorm:"column:conversation_id;not null;index" json:"conversation_id"`
	SenderID       uint64    `gorm:"column:sender_id;not null;index" json:"sender_id"`
	Body           string    `gorm:"column:message;type:text;not null" json:"message"`
	Read           bool      `gorm:"column:is_read;not null;default:false" json:"read"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}
