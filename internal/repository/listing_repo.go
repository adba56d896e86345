package repository

import (
	"time"

	"memberhub/internal/domain"
	"memberhub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ListingRepository struct {
	db *gorm.DB
}

func NewListingRepository(db *gorm.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

func (r *ListingRepository) Create(l *models.Listing) error {
	return r.db.Create(l).Error
}

func (r *ListingRepository) GetByID(id uint) (*models.Listing, error) {
	var l models.Listing
	err := r.db.First(&l, id).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *ListingRepository) GetForUpdate(id uint) (*models.Listing, error) {
	var l models.Listing
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&l, id).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListActive returns active listings, newest first, optionally excluding one seller.
func (r *ListingRepository) ListActive(excludeSeller uint, limit, offset int) ([]models.Listing, error) {
	q := r.db.Where("status = ?", domain.ListingStatusActive)
	if excludeSeller != 0 {
		q = q.Where("seller_id <> ?", excludeSeller)
	}
	var list []models.Listing
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

func (r *ListingRepository) ListBySeller(sellerID uint) ([]models.Listing, error) {
	var list []models.Listing
	err := r.db.Where("seller_id = ?", sellerID).Order("created_at DESC").Find(&list).Error
	return list, err
}

// MarkSold flips an active listing to sold. It reports false if the listing was no longer active.
func (r *ListingRepository) MarkSold(id, buyerID uint, at time.Time) (bool, error) {
	res := r.db.Model(&models.Listing{}).
		Where("id = ? AND status = ?", id, domain.ListingStatusActive).
		Updates(map[string]interface{}{
			"status":   domain.ListingStatusSold,
			"buyer_id": buyerID,
			"sold_at":  at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Archive flips an active listing to archived.
func (r *ListingRepository) Archive(id uint) (bool, error) {
	res := r.db.Model(&models.Listing{}).
		Where("id = ? AND status = ?", id, domain.ListingStatusActive).
		Update("status", domain.ListingStatusArchived)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *ListingRepository) UpdateImage(id uint, url string) error {
	return r.db.Model(&models.Listing{}).Where("id = ?", id).Update("image_url", url).Error
}
