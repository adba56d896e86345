package models

import (
	"time"

	"gorm.io/gorm"
)

type Listing struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	SellerID    uint           `gorm:"not null;index" json:"seller_id"`
	Title       string         `gorm:"size:120;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	ImageURL    string         `gorm:"size:512" json:"image_url"`
	Price       int64          `gorm:"not null" json:"price"`
	Status      string         `gorm:"size:20;not null;index;default:'active'" json:"status"`
	BuyerID     *uint          `gorm:"index" json:"buyer_id,omitempty"`
	SoldAt      *time.Time     `json:"sold_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Seller Account `gorm:"foreignKey:SellerID" json:"-"`
}

func (Listing) TableName() string {
	return "listings"
}
