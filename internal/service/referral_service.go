package service

import (
	"log"

	"memberhub/internal/models"
	"memberhub/internal/repository"
)

// ReferralService links new accounts to their referrer. Commissions are paid by the reconciler.
type ReferralService struct {
	referralRepo *repository.ReferralRepository
}

func NewReferralService(referralRepo *repository.ReferralRepository) *ReferralService {
	return &ReferralService{referralRepo: referralRepo}
}

// ProcessReferralCode creates a referral record for newAccount. Unknown codes and self-referrals are ignored.
func (s *ReferralService) ProcessReferralCode(referralCode string, newAccount *models.Account) {
	if s == nil || referralCode == "" {
		return
	}
	rc, err := s.referralRepo.GetByCode(referralCode)
	if err != nil || rc.AccountID == newAccount.ID {
		return
	}
	if err := s.referralRepo.CreateReferral(&models.Referral{
		ReferrerID:        rc.AccountID,
		ReferredAccountID: newAccount.ID,
	}); err != nil {
		log.Printf("[referral] failed to create referral: %v", err)
		return
	}
	log.Printf("[referral] account %d referred by %d", newAccount.ID, rc.AccountID)
}

func (s *ReferralService) GetOrCreateCode(accountID uint) (*models.ReferralCode, error) {
	return s.referralRepo.GetOrCreateCode(accountID)
}

func (s *ReferralService) ListReferrals(referrerID uint, limit, offset int) ([]models.Referral, error) {
	return s.referralRepo.ListByReferrerID(referrerID, limit, offset)
}
