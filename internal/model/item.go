package model

import "time"

type Item struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	Title       string    `gorm:"size:120;not null"`
	Description string    `gorm:"type:text"`
	Price       uint      `gorm:"not null;default:0"`
	SellerID    uint64    `gorm:"column:seller_id;not null;index"`
	Status      string    `gorm:"size:32;not null;default:available"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (Item) TableName() string {
	return "items"
}
