package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PaymentRecord is a bank-transfer intent or a card checkout for an access pack.
type PaymentRecord struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	AccountID   uint           `gorm:"not null;index" json:"account_id"`
	Kind        string         `gorm:"size:20;not null;index" json:"kind"` // bank_transfer | card
	Pack        string         `gorm:"size:32;not null" json:"pack"`
	AmountDue   int64          `gorm:"not null" json:"amount_due"`
	Currency    string         `gorm:"size:3;default:'EUR'" json:"currency"`
	Status      string         `gorm:"size:20;not null;index" json:"status"` // pending, paid, cancelled, failed
	Reference   string         `gorm:"size:32;uniqueIndex;not null" json:"reference"`
	ProviderRef *string        `gorm:"size:255;uniqueIndex" json:"provider_ref,omitempty"`
	CheckoutURL string         `gorm:"size:512" json:"checkout_url,omitempty"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty"`
	PaidAt      *time.Time     `json:"paid_at,omitempty"`
	AccessUntil *time.Time     `json:"access_until,omitempty"`
	Metadata    datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Account Account `gorm:"foreignKey:AccountID" json:"-"`
}

func (PaymentRecord) TableName() string {
	return "payment_records"
}
