package repository

import (
	"memberhub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(a *models.Account) error {
	return r.db.Create(a).Error
}

func (r *AccountRepository) GetByID(id uint) (*models.Account, error) {
	var a models.Account
	err := r.db.First(&a, id).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetForUpdate reads the account row under SELECT ... FOR UPDATE. Use inside a transaction.
func (r *AccountRepository) GetForUpdate(id uint) (*models.Account, error) {
	var a models.Account
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&a, id).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepository) GetByEmail(email string) (*models.Account, error) {
	var a models.Account
	err := r.db.Where("email = ?", email).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepository) GetByUsername(username string) (*models.Account, error) {
	var a models.Account
	err := r.db.Where("username = ?", username).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepository) GetByFacebookID(facebookID string) (*models.Account, error) {
	var a models.Account
	err := r.db.Where("facebook_id = ?", facebookID).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Debit subtracts amount only if the balance covers it. It reports false when no row qualified.
func (r *AccountRepository) Debit(id uint, amount int64) (bool, error) {
	res := r.db.Model(&models.Account{}).
		Where("id = ? AND balance >= ?", id, amount).
		UpdateColumn("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *AccountRepository) Credit(id uint, amount int64) error {
	return r.db.Model(&models.Account{}).
		Where("id = ?", id).
		UpdateColumn("balance", gorm.Expr("balance + ?", amount)).Error
}

func (r *AccountRepository) UpdateProfile(a *models.Account) error {
	return r.db.Model(a).Select("username", "avatar_url", "facebook_id", "password_hash").Updates(a).Error
}

func (r *AccountRepository) UpdateRole(id uint, role string) error {
	return r.db.Model(&models.Account{}).Where("id = ?", id).Update("role", role).Error
}

func (r *AccountRepository) UpdatePaidAccessExpiresAt(a *models.Account) error {
	return r.db.Model(a).Update("paid_access_expires_at", a.PaidAccessExpiresAt).Error
}

// List returns accounts with search, role filter, and pagination.
func (r *AccountRepository) List(search, role string, page, limit int) ([]models.Account, int64, error) {
	q := r.db.Model(&models.Account{})
	if search != "" {
		q = q.Where("username LIKE ? OR email LIKE ?", "%"+search+"%", "%"+search+"%")
	}
	if role != "" {
		q = q.Where("role = ?", role)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.Account
	err := q.Order("created_at DESC").Limit(limit).Offset((page - 1) * limit).Find(&list).Error
	return list, total, err
}
