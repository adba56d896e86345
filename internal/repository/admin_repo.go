package repository

import (
	"time"

	"memberhub/internal/domain"
	"memberhub/internal/models"

	"gorm.io/gorm"
)

type DashboardStats struct {
	TotalAccounts        int64 `json:"total_accounts"`
	PaidAccounts         int64 `json:"paid_accounts"`
	StaffAccounts        int64 `json:"staff_accounts"`
	ActiveListings       int64 `json:"active_listings"`
	SoldListings         int64 `json:"sold_listings"`
	TotalTransactions    int64 `json:"total_transactions"`
	CreditsInCirculation int64 `json:"credits_in_circulation"`
	PendingPayments      int64 `json:"pending_payments"`
	PaidRevenueCents     int64 `json:"paid_revenue_cents"`
	PendingLegacy        int64 `json:"pending_legacy"`
	TotalReferrals       int64 `json:"total_referrals"`
}

type TimeSeriesPoint struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type RevenuePoint struct {
	Date        string `json:"date"`
	AmountCents int64  `json:"amount_cents"`
}

type AdminRepository struct {
	db *gorm.DB
}

func NewAdminRepository(db *gorm.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

func (r *AdminRepository) GetDashboardStats(now time.Time) (*DashboardStats, error) {
	var s DashboardStats
	counts := []struct {
		q   *gorm.DB
		dst *int64
	}{
		{r.db.Model(&models.Account{}), &s.TotalAccounts},
		{r.db.Model(&models.Account{}).Where("paid_access_expires_at > ?", now), &s.PaidAccounts},
		{r.db.Model(&models.Account{}).Where("role IN ?", domain.StaffRoles), &s.StaffAccounts},
		{r.db.Model(&models.Listing{}).Where("status = ?", domain.ListingStatusActive), &s.ActiveListings},
		{r.db.Model(&models.Listing{}).Where("status = ?", domain.ListingStatusSold), &s.SoldListings},
		{r.db.Model(&models.Transaction{}), &s.TotalTransactions},
		{r.db.Model(&models.PaymentRecord{}).Where("status = ?", domain.PaymentStatusPending), &s.PendingPayments},
		{r.db.Model(&models.LegacyVerification{}).Where("status = ?", domain.LegacyStatusPending), &s.PendingLegacy},
		{r.db.Model(&models.Referral{}), &s.TotalReferrals},
	}
	for _, c := range counts {
		if err := c.q.Count(c.dst).Error; err != nil {
			return nil, err
		}
	}

	var sum struct{ Total int64 }
	if err := r.db.Model(&models.Account{}).Select("COALESCE(SUM(balance), 0) as total").Scan(&sum).Error; err != nil {
		return nil, err
	}
	s.CreditsInCirculation = sum.Total

	sum.Total = 0
	if err := r.db.Model(&models.PaymentRecord{}).Select("COALESCE(SUM(amount_due), 0) as total").
		Where("status = ?", domain.PaymentStatusPaid).Scan(&sum).Error; err != nil {
		return nil, err
	}
	s.PaidRevenueCents = sum.Total
	return &s, nil
}

// AccountSignupsByDay returns daily signup counts for the last N days.
func (r *AdminRepository) AccountSignupsByDay(days int) ([]TimeSeriesPoint, error) {
	since := time.Now().AddDate(0, 0, -days)
	var points []TimeSeriesPoint
	err := r.db.Model(&models.Account{}).
		Select("DATE(created_at) as date, COUNT(*) as count").
		Where("created_at >= ?", since).
		Group("DATE(created_at)").
		Order("date ASC").
		Scan(&points).Error
	return points, err
}

// RevenueByDay returns daily paid revenue for the last N days.
func (r *AdminRepository) RevenueByDay(days int) ([]RevenuePoint, error) {
	since := time.Now().AddDate(0, 0, -days)
	var points []RevenuePoint
	err := r.db.Model(&models.PaymentRecord{}).
		Select("DATE(paid_at) as date, COALESCE(SUM(amount_due), 0) as amount_cents").
		Where("status = ? AND paid_at >= ?", domain.PaymentStatusPaid, since).
		Group("DATE(paid_at)").
		Order("date ASC").
		Scan(&points).Error
	return points, err
}
