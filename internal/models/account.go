package models

import (
	"time"

	"memberhub/internal/domain"

	"gorm.io/gorm"
)

// Account is a registered user. Balance is in credits (smallest unit) and only moves through the ledger.
type Account struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	Username            string         `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Email               string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash        string         `gorm:"size:255" json:"-"`
	FacebookID          *string        `gorm:"uniqueIndex;size:255" json:"-"` // nil for email signups
	AvatarURL           string         `gorm:"size:512" json:"avatar_url"`
	Role                string         `gorm:"size:20;not null;index;default:'user'" json:"role"`
	Balance             int64          `gorm:"not null;default:0" json:"balance"`
	PaidAccessExpiresAt *time.Time     `json:"paid_access_expires_at"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Account) TableName() string {
	return "accounts"
}

func (a *Account) IsStaff() bool { return domain.IsStaff(a.Role) }
