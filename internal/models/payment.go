package models

import (
	"time"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusCanceled  = "canceled"
	PaymentStatusFailed    = "failed"
)

// Payment is the durable record of one gateway payment attempt. ExternalID is
// the gateway's payment id and is globally unique, so at-least-once webhook
// delivery can never create a second row for the same payment. Once the status
// leaves "pending" it never changes again; the balance credit happened if and
// only if the status is "succeeded".
type Payment struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"not null;index:idx_payments_user_created" json:"user_id"`
	ExternalID  string     `gorm:"size:128;uniqueIndex;not null" json:"external_id"`
	AmountCents int64      `gorm:"not null" json:"amount_cents"`
	Currency    string     `gorm:"size:3;default:'RUB'" json:"currency"`
	Status      string     `gorm:"size:20;not null;index" json:"status"`
	Description string     `gorm:"size:255" json:"description"`
	PayerEmail  string     `gorm:"size:255" json:"payer_email"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `gorm:"index:idx_payments_user_created" json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

// IsTerminal reports whether the payment can no longer change state.
func (p *Payment) IsTerminal() bool {
	return p.Status != PaymentStatusPending
}
