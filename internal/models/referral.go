package models

import (
	"time"

	"gorm.io/gorm"
)

// ReferralCode is the invite code of an account. Each account has at most one.
type ReferralCode struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	AccountID uint           `gorm:"uniqueIndex;not null" json:"account_id"`
	Code      string         `gorm:"uniqueIndex;size:20;not null" json:"code"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Account Account `gorm:"foreignKey:AccountID" json:"-"`
}

func (ReferralCode) TableName() string { return "referral_codes" }

// Referral links a referrer to the account that signed up with their code.
// The referrer earns a commission, paid from the treasury, on the first
// domain.MaxReferralCommissions access payments of the referred account.
type Referral struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	ReferrerID        uint           `gorm:"not null;index" json:"referrer_id"`
	ReferredAccountID uint           `gorm:"uniqueIndex;not null" json:"referred_account_id"` // an account can only be referred once
	CompletedCount    int            `gorm:"not null;default:0" json:"completed_count"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`

	Referrer        Account `gorm:"foreignKey:ReferrerID" json:"referrer,omitempty"`
	ReferredAccount Account `gorm:"foreignKey:ReferredAccountID" json:"referred_account,omitempty"`
}

func (Referral) TableName() string { return "referrals" }
