package repository

import (
	"time"

	"memberhub/internal/models"

	"gorm.io/gorm"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(n *models.Notification) error {
	return r.db.Create(n).Error
}

func (r *NotificationRepository) ListByAccountID(accountID uint, limit, offset int) ([]models.Notification, error) {
	var list []models.Notification
	err := r.db.Where("account_id = ?", accountID).Order("id DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

func (r *NotificationRepository) CountUnread(accountID uint) (int64, error) {
	var n int64
	err := r.db.Model(&models.Notification{}).Where("account_id = ? AND read_at IS NULL", accountID).Count(&n).Error
	return n, err
}

// MarkRead stamps one notification; it reports false when the id does not belong to the account.
func (r *NotificationRepository) MarkRead(id, accountID uint) (bool, error) {
	res := r.db.Model(&models.Notification{}).
		Where("id = ? AND account_id = ?", id, accountID).
		Update("read_at", time.Now())
	return res.RowsAffected == 1, res.Error
}

func (r *NotificationRepository) MarkAllRead(accountID uint) error {
	return r.db.Model(&models.Notification{}).
		Where("account_id = ? AND read_at IS NULL", accountID).
		Update("read_at", time.Now()).Error
}
