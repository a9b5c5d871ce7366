package models

import (
	"time"
)

// Balance holds a user's top-up balance in minor units. One row per user,
// created lazily on first access; amount_cents never goes below zero.
type Balance struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	AmountCents int64     `gorm:"not null;default:0" json:"amount_cents"`
	Currency    string    `gorm:"size:3;default:'RUB'" json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Balance) TableName() string {
	return "balances"
}
