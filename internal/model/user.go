package model

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"size:120;not null" json:"name"`
	Email       string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Role        string    `gorm:"size:32;not null;default:user" json:"role"`
	FirebaseUID *string   `gorm:"column:firebase_uid;size:128;uniqueIndex" json:"-"`
	IsVerified  bool      `gorm:"column:is_verified;not null;default:false" json:"is_verified"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (User) TableName() string {
	return "users"
}
