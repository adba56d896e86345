package service

import (
	"encoding/json"
	"fmt"
	"log"

	"memberhub/internal/domain"
	"memberhub/internal/models"
	"memberhub/internal/repository"
)

// Pusher delivers a JSON payload to an account's open realtime connections.
type Pusher interface {
	BroadcastToUser(accountID uint, payload interface{})
}

type NotificationService struct {
	repo   *repository.NotificationRepository
	pusher Pusher
}

func NewNotificationService(repo *repository.NotificationRepository, pusher Pusher) *NotificationService {
	return &NotificationService{repo: repo, pusher: pusher}
}

func (s *NotificationService) Notify(accountID uint, notifType, title, body string, data map[string]interface{}) error {
	var dataJSON string
	if data != nil {
		b, _ := json.Marshal(data)
		dataJSON = string(b)
	}
	n := &models.Notification{
		AccountID: accountID,
		Type:      notifType,
		Title:     title,
		Body:      body,
		Data:      dataJSON,
	}
	if err := s.repo.Create(n); err != nil {
		return err
	}
	s.Push(accountID, map[string]interface{}{"type": "notification", "notification": n})
	return nil
}

// Push sends a realtime event without persisting it.
func (s *NotificationService) Push(accountID uint, payload interface{}) {
	if s == nil || s.pusher == nil {
		return
	}
	s.pusher.BroadcastToUser(accountID, payload)
}

// notify is the best-effort form used after a commit; failures are logged, never returned.
func (s *NotificationService) notify(accountID uint, notifType, title, body string, data map[string]interface{}) {
	if s == nil {
		return
	}
	if err := s.Notify(accountID, notifType, title, body, data); err != nil {
		log.Printf("[notification] %s for account %d: %v", notifType, accountID, err)
	}
}

func (s *NotificationService) NotifyTransferReceived(accountID uint, amount int64, fromUsername, correlationID string) {
	s.notify(accountID, domain.NotifTransferReceived, "Credits received",
		fmt.Sprintf("%s sent you %s", fromUsername, domain.FormatCredits(amount)),
		map[string]interface{}{"amount": amount, "correlation_id": correlationID})
}

func (s *NotificationService) NotifyListingSold(sellerID, listingID uint, title string, price int64) {
	s.notify(sellerID, domain.NotifListingSold, "Listing sold",
		fmt.Sprintf("%q sold for %s", title, domain.FormatCredits(price)),
		map[string]interface{}{"listing_id": listingID, "amount": price})
}

func (s *NotificationService) NotifyPaymentConfirmed(accountID uint, pack string, p *models.PaymentRecord) {
	s.notify(accountID, domain.NotifPaymentConfirmed, "Payment confirmed",
		fmt.Sprintf("Your %s access is active", pack),
		map[string]interface{}{"payment_id": p.ID, "reference": p.Reference, "access_until": p.AccessUntil})
}

func (s *NotificationService) NotifyLegacyReviewed(v *models.LegacyVerification) {
	if v.Status == domain.LegacyStatusConfirmed {
		s.notify(v.AccountID, domain.NotifLegacyConfirmed, "Verification confirmed",
			"Your earlier payment was confirmed and your access is active",
			map[string]interface{}{"verification_id": v.ID, "access_until": v.AccessUntil})
		return
	}
	s.notify(v.AccountID, domain.NotifLegacyRejected, "Verification rejected", v.Note,
		map[string]interface{}{"verification_id": v.ID})
}

func (s *NotificationService) NotifyReferralCommission(referrerID uint, amount int64, referredID uint) {
	s.notify(referrerID, domain.NotifReferralCommission, "Referral commission",
		fmt.Sprintf("You earned %s from a referral", domain.FormatCredits(amount)),
		map[string]interface{}{"amount": amount, "referred_account_id": referredID})
}

func (s *NotificationService) List(accountID uint, limit, offset int) ([]models.Notification, int64, error) {
	list, err := s.repo.ListByAccountID(accountID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	unread, err := s.repo.CountUnread(accountID)
	return list, unread, err
}

func (s *NotificationService) MarkRead(accountID, id uint) (bool, error) {
	return s.repo.MarkRead(id, accountID)
}

func (s *NotificationService) MarkAllRead(accountID uint) error {
	return s.repo.MarkAllRead(accountID)
}
