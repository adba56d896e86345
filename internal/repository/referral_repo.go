package repository

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"memberhub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReferralRepository struct {
	db *gorm.DB
}

func NewReferralRepository(db *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// generateReferralCode returns an 8-character uppercase hex code.
func generateReferralCode() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}

// GetOrCreateCode returns the account's referral code, creating a unique one on first use.
func (r *ReferralRepository) GetOrCreateCode(accountID uint) (*models.ReferralCode, error) {
	var rc models.ReferralCode
	if err := r.db.Where("account_id = ?", accountID).First(&rc).Error; err == nil {
		return &rc, nil
	}
	for i := 0; i < 10; i++ {
		code, err := generateReferralCode()
		if err != nil {
			return nil, err
		}
		rc = models.ReferralCode{AccountID: accountID, Code: code, IsActive: true}
		if err := r.db.Create(&rc).Error; err == nil {
			return &rc, nil
		}
		// collision, retry
	}
	return nil, fmt.Errorf("failed to generate a unique referral code after retries")
}

func (r *ReferralRepository) GetByCode(code string) (*models.ReferralCode, error) {
	var rc models.ReferralCode
	err := r.db.Where("code = ? AND is_active = ?", strings.ToUpper(code), true).First(&rc).Error
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

func (r *ReferralRepository) CreateReferral(referral *models.Referral) error {
	return r.db.Create(referral).Error
}

// GetByReferredAccountIDForUpdate returns the referral of a referred account under a row lock.
func (r *ReferralRepository) GetByReferredAccountIDForUpdate(accountID uint) (*models.Referral, error) {
	var ref models.Referral
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("referred_account_id = ?", accountID).
		First(&ref).Error
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *ReferralRepository) IncrementCompletedCount(referralID uint) error {
	return r.db.Model(&models.Referral{}).
		Where("id = ?", referralID).
		UpdateColumn("completed_count", gorm.Expr("completed_count + 1")).Error
}

// ListByReferrerID returns referrals created by the referrer, with the referred account preloaded.
func (r *ReferralRepository) ListByReferrerID(referrerID uint, limit, offset int) ([]models.Referral, error) {
	var list []models.Referral
	err := r.db.Where("referrer_id = ?", referrerID).
		Preload("ReferredAccount").
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&list).Error
	return list, err
}

func (r *ReferralRepository) Count() (int64, error) {
	var n int64
	err := r.db.Model(&models.Referral{}).Count(&n).Error
	return n, err
}
