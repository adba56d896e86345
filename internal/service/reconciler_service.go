package service

import (
	"context"
	"errors"
	"log"
	"time"

	"memberhub/internal/apperr"
	"memberhub/internal/domain"
	"memberhub/internal/models"
	"memberhub/internal/repository"
	"memberhub/pkg/payment"

	"gorm.io/gorm"
)

// ReconcilerService is the only place payment state becomes access: provider webhooks,
// provider polls, staff confirmations and CLI operators all land here.
type ReconcilerService struct {
	db         *gorm.DB
	ledger     *LedgerService
	notify     *NotificationService
	provider   payment.Provider
	treasuryID uint
	now        func() time.Time
}

func NewReconcilerService(db *gorm.DB, ledger *LedgerService, notify *NotificationService, provider payment.Provider, treasuryID uint) *ReconcilerService {
	return &ReconcilerService{db: db, ledger: ledger, notify: notify, provider: provider, treasuryID: treasuryID, now: time.Now}
}

// grantAccess extends the account's paid access by the pack duration, starting from the later of
// paidAt and the current expiry. It returns the new expiry.
func grantAccess(tx *gorm.DB, accountID uint, pack domain.Pack, paidAt time.Time) (time.Time, error) {
	acc, err := lockAccount(tx, accountID)
	if err != nil {
		return time.Time{}, err
	}
	start := paidAt
	if acc.PaidAccessExpiresAt != nil && acc.PaidAccessExpiresAt.After(start) {
		start = *acc.PaidAccessExpiresAt
	}
	until := start.Add(pack.Duration)
	acc.PaidAccessExpiresAt = &until
	if err := repository.NewAccountRepository(tx).UpdatePaidAccessExpiresAt(acc); err != nil {
		return time.Time{}, err
	}
	return until, nil
}

func requireStaff(tx *gorm.DB, reviewerID uint) error {
	reviewer, err := repository.NewAccountRepository(tx).GetByID(reviewerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.ErrForbidden
	}
	if err != nil {
		return err
	}
	if !reviewer.IsStaff() {
		return apperr.ErrForbidden
	}
	return nil
}

// MarkPaid moves a pending payment to paid and grants its pack. A zero paidAt means now.
func (s *ReconcilerService) MarkPaid(ctx context.Context, paymentID uint, paidAt time.Time) (*models.PaymentRecord, error) {
	if paidAt.IsZero() {
		paidAt = s.now()
	}
	var rec *models.PaymentRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewPaymentRepository(tx)
		p, err := repo.GetForUpdate(paymentID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrNotFound
		}
		if err != nil {
			return err
		}
		if p.Status != domain.PaymentStatusPending {
			return apperr.ErrAlreadyFinalized
		}
		pack, ok := domain.LookupPack(p.Pack)
		if !ok {
			return apperr.Invalid("payment names an unknown pack")
		}
		until, err := grantAccess(tx, p.AccountID, pack, paidAt)
		if err != nil {
			return err
		}
		p.Status = domain.PaymentStatusPaid
		p.PaidAt = &paidAt
		p.AccessUntil = &until
		if err := repo.Update(p); err != nil {
			return err
		}
		rec = p
		return nil
	})
	if err != nil {
		return nil, apperr.Ensure(err)
	}
	log.Printf("[reconciler] payment %d (%s) paid, access until %s", rec.ID, rec.Reference, rec.AccessUntil.Format(time.RFC3339))
	s.notify.NotifyPaymentConfirmed(rec.AccountID, rec.Pack, rec)
	s.payReferralCommission(ctx, rec.AccountID)
	return rec, nil
}

// MarkPaidByReference resolves a payment by its bank reference or provider session id.
func (s *ReconcilerService) MarkPaidByReference(ctx context.Context, reference string, paidAt time.Time) (*models.PaymentRecord, error) {
	p, err := s.findByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	return s.MarkPaid(ctx, p.ID, paidAt)
}

func (s *ReconcilerService) findByReference(ctx context.Context, reference string) (*models.PaymentRecord, error) {
	if reference == "" {
		return nil, apperr.Invalid("reference is required")
	}
	repo := repository.NewPaymentRepository(s.db.WithContext(ctx))
	p, err := repo.GetByReference(repository.NormalizeReference(reference))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p, err = repo.GetByProviderRef(reference)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return p, nil
}

// MarkFailed records a provider-reported failure of a pending payment.
func (s *ReconcilerService) MarkFailed(ctx context.Context, paymentID uint) (*models.PaymentRecord, error) {
	var rec *models.PaymentRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewPaymentRepository(tx)
		p, err := repo.GetForUpdate(paymentID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrNotFound
		}
		if err != nil {
			return err
		}
		if p.Status != domain.PaymentStatusPending {
			return apperr.ErrAlreadyFinalized
		}
		p.Status = domain.PaymentStatusFailed
		rec = p
		return repo.Update(p)
	})
	if err != nil {
		return nil, apperr.Ensure(err)
	}
	log.Printf("[reconciler] payment %d (%s) failed", rec.ID, rec.Reference)
	return rec, nil
}

func (s *ReconcilerService) MarkFailedByReference(ctx context.Context, reference string) (*models.PaymentRecord, error) {
	p, err := s.findByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	return s.MarkFailed(ctx, p.ID)
}

// SyncCheckout polls the provider for a pending card payment. A paid session is marked paid;
// an unpaid session past its expiry is marked failed; otherwise the record is returned unchanged.
func (s *ReconcilerService) SyncCheckout(ctx context.Context, paymentID uint) (*models.PaymentRecord, error) {
	if s.provider == nil {
		return nil, apperr.New(apperr.CodeStorageUnavailable, "no payment provider configured")
	}
	p, err := repository.NewPaymentRepository(s.db.WithContext(ctx)).GetByID(paymentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}
	if p.Kind != domain.PaymentKindCard || p.ProviderRef == nil {
		return nil, apperr.Invalid("payment has no provider session")
	}
	if p.Status != domain.PaymentStatusPending {
		return nil, apperr.ErrAlreadyFinalized
	}
	paid, err := s.provider.VerifyPayment(ctx, *p.ProviderRef)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorageUnavailable, "payment provider unavailable", err)
	}
	switch {
	case paid:
		return s.MarkPaid(ctx, p.ID, time.Time{})
	case p.ExpiresAt != nil && !s.now().Before(*p.ExpiresAt):
		return s.MarkFailed(ctx, p.ID)
	default:
		return p, nil
	}
}

// SyncResult counts the outcomes of one SyncPendingCheckouts pass.
type SyncResult struct {
	Checked int `json:"checked"`
	Paid    int `json:"paid"`
	Failed  int `json:"failed"`
	Errors  int `json:"errors"`
}

// SyncPendingCheckouts polls every pending card session. Per-record errors are logged and counted.
func (s *ReconcilerService) SyncPendingCheckouts(ctx context.Context) (SyncResult, error) {
	var res SyncResult
	list, err := repository.NewPaymentRepository(s.db.WithContext(ctx)).ListPendingCheckouts()
	if err != nil {
		return res, apperr.Storage(err)
	}
	for _, p := range list {
		res.Checked++
		rec, err := s.SyncCheckout(ctx, p.ID)
		switch {
		case errors.Is(err, apperr.ErrAlreadyFinalized):
		case err != nil:
			res.Errors++
			log.Printf("[reconciler] sync payment %d: %v", p.ID, err)
		case rec.Status == domain.PaymentStatusPaid:
			res.Paid++
		case rec.Status == domain.PaymentStatusFailed:
			res.Failed++
		}
	}
	return res, nil
}

// review runs the shared pending-only transition of a legacy verification.
func (s *ReconcilerService) review(ctx context.Context, reviewerID, legacyID uint, apply func(tx *gorm.DB, v *models.LegacyVerification, at time.Time) error) (*models.LegacyVerification, error) {
	var rec *models.LegacyVerification
	at := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireStaff(tx, reviewerID); err != nil {
			return err
		}
		repo := repository.NewLegacyRepository(tx)
		v, err := repo.GetForUpdate(legacyID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrNotFound
		}
		if err != nil {
			return err
		}
		if v.Status != domain.LegacyStatusPending {
			return apperr.ErrAlreadyFinalized
		}
		if err := apply(tx, v, at); err != nil {
			return err
		}
		v.ReviewedBy = &reviewerID
		v.ReviewedAt = &at
		if err := repo.Update(v); err != nil {
			return err
		}
		rec = v
		return audit(tx, reviewerID, "legacy."+v.Status, "legacy_verification", v.ID,
			map[string]interface{}{"account_id": v.AccountID, "paid_with": v.PaidWith})
	})
	if err != nil {
		return nil, apperr.Ensure(err)
	}
	log.Printf("[reconciler] legacy verification %d %s by %d", rec.ID, rec.Status, reviewerID)
	s.notify.NotifyLegacyReviewed(rec)
	return rec, nil
}

// MarkConfirmed confirms a pending legacy verification and grants the legacy pack.
func (s *ReconcilerService) MarkConfirmed(ctx context.Context, reviewerID, legacyID uint) (*models.LegacyVerification, error) {
	rec, err := s.review(ctx, reviewerID, legacyID, func(tx *gorm.DB, v *models.LegacyVerification, at time.Time) error {
		pack, ok := domain.LookupPack(v.Pack)
		if !ok {
			return apperr.Invalid("verification names an unknown pack")
		}
		until, err := grantAccess(tx, v.AccountID, pack, at)
		if err != nil {
			return err
		}
		v.Status = domain.LegacyStatusConfirmed
		v.AccessUntil = &until
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.payReferralCommission(ctx, rec.AccountID)
	return rec, nil
}

// MarkRejected rejects a pending legacy verification. No access is granted.
func (s *ReconcilerService) MarkRejected(ctx context.Context, reviewerID, legacyID uint, note string) (*models.LegacyVerification, error) {
	return s.review(ctx, reviewerID, legacyID, func(_ *gorm.DB, v *models.LegacyVerification, _ time.Time) error {
		v.Status = domain.LegacyStatusRejected
		v.Note = note
		return nil
	})
}

// payReferralCommission pays the referrer of accountID from the treasury for each of the
// referred account's first domain.MaxReferralCommissions paid payments. A payment whose
// commission failed is not made up later. Failures are logged and never undo the payment.
func (s *ReconcilerService) payReferralCommission(ctx context.Context, accountID uint) {
	if s.ledger == nil || s.treasuryID == 0 {
		return
	}
	amount := repository.NewSettingRepository(s.db.WithContext(ctx)).GetInt64(domain.SettingReferralCommission, 0)
	if amount <= 0 {
		return
	}
	var debit, credit *models.Transaction
	var referrerID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewReferralRepository(tx)
		ref, err := repo.GetByReferredAccountIDForUpdate(accountID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if ref.CompletedCount >= domain.MaxReferralCommissions || ref.ReferrerID == s.treasuryID {
			return nil
		}
		paid, err := repository.NewPaymentRepository(tx).CountPaid(accountID)
		if err != nil {
			return err
		}
		if paid > domain.MaxReferralCommissions {
			return nil
		}
		debit, credit, err = s.ledger.transferTx(tx, s.treasuryID, ref.ReferrerID, amount, "referral commission")
		if err != nil {
			return err
		}
		referrerID = ref.ReferrerID
		return repo.IncrementCompletedCount(ref.ID)
	})
	if err != nil {
		log.Printf("[reconciler] referral commission for account %d: %v", accountID, err)
		return
	}
	if debit == nil {
		return
	}
	s.ledger.afterMove(debit, credit)
	s.notify.NotifyReferralCommission(referrerID, amount, accountID)
}
