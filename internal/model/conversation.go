package model

import "time"

type Conversation struct {
	ID                uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ItemID            uint64    `gorm:"column:item_id;not null;uniqueIndex:uniq_item_buyer_seller" json:"item_id"`
	BuyerID           uint64    `gorm:"column:buyer_id;not null;uniqueIndex:uniq_item_buyer_seller;index" json:"buyer_id"`
	SellerID          uint64    `gorm:"column:seller_id;not null;uniqueIndex:uniq_item_buyer_seller;index" json:"seller_id"`
	LastMessage       string    `gorm:"column:last_message;type:text" json:"last_message"`
	UnreadCount       int       `gorm:"column:unread_count;not null;default:0" json:"unread_count"`
	SellerUnreadCount int       `gorm:"column:seller_unread_count;not null;default:0" json:"seller_unread_count"`
	CreatedAt         time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at;index" json:"updated_at"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// IsParticipant reports whether uid is the buyer or the seller.
func (c *Conversation) IsParticipant(uid uint64) bool {
	return c.BuyerID == uid || c.SellerID == uid
}

// CounterpartOf returns the other participant's id.
func (c *Conversation) CounterpartOf(uid uint64) uint64 {
	if c.BuyerID == uid {
		return c.SellerID
	}
	return c.BuyerID
}

// UnreadFor returns the unread counter that belongs to uid.
func (c *Conversation) UnreadFor(uid uint64) int {
	switch uid {
	case c.BuyerID:
		return c.UnreadCount
	case c.SellerID:
		return c.SellerUnreadCount
	}
	return 0
}
