package repository

import (
	"time"

	"memberhub/internal/domain"
	"memberhub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LegacyRepository struct {
	db *gorm.DB
}

func NewLegacyRepository(db *gorm.DB) *LegacyRepository {
	return &LegacyRepository{db: db}
}

func (r *LegacyRepository) Create(v *models.LegacyVerification) error {
	return r.db.Create(v).Error
}

func (r *LegacyRepository) GetForUpdate(id uint) (*models.LegacyVerification, error) {
	var v models.LegacyVerification
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&v, id).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// FindOpen returns the account's pending or confirmed request, if any.
func (r *LegacyRepository) FindOpen(accountID uint) (*models.LegacyVerification, error) {
	var v models.LegacyVerification
	err := r.db.Where("account_id = ? AND status IN ?", accountID,
		[]string{domain.LegacyStatusPending, domain.LegacyStatusConfirmed}).
		Order("id DESC").
		First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *LegacyRepository) ListByAccount(accountID uint) ([]models.LegacyVerification, error) {
	var list []models.LegacyVerification
	err := r.db.Where("account_id = ?", accountID).Order("id DESC").Find(&list).Error
	return list, err
}

// ListActiveGrants returns confirmed verifications whose access window is still open at now.
func (r *LegacyRepository) ListActiveGrants(accountID uint, now time.Time) ([]models.LegacyVerification, error) {
	var list []models.LegacyVerification
	err := r.db.Where("account_id = ? AND status = ? AND access_until > ?", accountID, domain.LegacyStatusConfirmed, now).
		Find(&list).Error
	return list, err
}

func (r *LegacyRepository) Update(v *models.LegacyVerification) error {
	return r.db.Save(v).Error
}

func (r *LegacyRepository) List(status string, page, limit int) ([]models.LegacyVerification, int64, error) {
	q := r.db.Model(&models.LegacyVerification{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.LegacyVerification
	err := q.Order("id ASC").Limit(limit).Offset((page - 1) * limit).Find(&list).Error
	return list, total, err
}
