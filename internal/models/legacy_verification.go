package models

import (
	"time"

	"gorm.io/gorm"
)

// LegacyVerification is a request to have a historical, non-digital payment confirmed by staff.
type LegacyVerification struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	AccountID   uint           `gorm:"not null;index" json:"account_id"`
	Pack        string         `gorm:"size:32;not null" json:"pack"`
	PaidWith    string         `gorm:"size:20;not null" json:"paid_with"`
	Status      string         `gorm:"size:20;not null;index" json:"status"` // pending, confirmed, rejected
	ReviewedBy  *uint          `json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time     `json:"reviewed_at,omitempty"`
	AccessUntil *time.Time     `json:"access_until,omitempty"`
	Note        string         `gorm:"size:255" json:"note,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Account Account `gorm:"foreignKey:AccountID" json:"-"`
}

func (LegacyVerification) TableName() string {
	return "legacy_verifications"
}
