package repository

import (
	"memberhub/internal/models"

	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(rows ...*models.Transaction) error {
	for _, t := range rows {
		if err := r.db.Create(t).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *TransactionRepository) ListByAccount(accountID uint, limit, offset int) ([]models.Transaction, error) {
	var list []models.Transaction
	err := r.db.Where("account_id = ?", accountID).
		Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&list).Error
	return list, err
}

func (r *TransactionRepository) ListByCorrelation(correlationID string) ([]models.Transaction, error) {
	var list []models.Transaction
	err := r.db.Where("correlation_id = ?", correlationID).Order("id ASC").Find(&list).Error
	return list, err
}

// List returns ledger rows with optional type filter for the admin surface.
func (r *TransactionRepository) List(txType string, page, limit int) ([]models.Transaction, int64, error) {
	q := r.db.Model(&models.Transaction{})
	if txType != "" {
		q = q.Where("type = ?", txType)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.Transaction
	err := q.Order("id DESC").Limit(limit).Offset((page - 1) * limit).Find(&list).Error
	return list, total, err
}
