package models

import (
	"time"

	"memberhub/internal/domain"

	"gorm.io/gorm"
)

// Content backs the academy, culture videos, blog, goodies and partners sections.
type Content struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Kind         string         `gorm:"size:20;not null;index" json:"kind"`
	Slug         string         `gorm:"size:120;uniqueIndex;not null" json:"slug"`
	Title        string         `gorm:"size:200;not null" json:"title"`
	Summary      string         `gorm:"size:500" json:"summary"`
	Body         string         `gorm:"type:text" json:"body,omitempty"`
	MediaURL     string         `gorm:"size:512" json:"media_url,omitempty"`
	RequiredTier domain.Tier    `gorm:"not null;default:0" json:"required_tier"`
	Published    bool           `gorm:"default:false;index" json:"published"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Content) TableName() string {
	return "contents"
}
