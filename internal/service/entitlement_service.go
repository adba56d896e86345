package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"memberhub/config"
	"memberhub/internal/apperr"
	"memberhub/internal/domain"
	"memberhub/internal/models"
	"memberhub/internal/repository"
	"memberhub/pkg/payment"

	"github.com/samber/lo"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Access is an account's resolved entitlement with the grants it was computed from.
type Access struct {
	Tier                domain.Tier    `json:"tier"`
	Role                string         `json:"role"`
	PaidAccessExpiresAt *time.Time     `json:"paid_access_expires_at"`
	Grants              []domain.Grant `json:"grants"`
}

type EntitlementService struct {
	db       *gorm.DB
	cfg      *config.PaymentConfig
	provider payment.Provider
	now      func() time.Time
}

func NewEntitlementService(db *gorm.DB, cfg *config.PaymentConfig, provider payment.Provider) *EntitlementService {
	return &EntitlementService{db: db, cfg: cfg, provider: provider, now: time.Now}
}

func grantFor(pack string, until *time.Time) (domain.Grant, bool) {
	p, ok := domain.LookupPack(pack)
	if !ok {
		return domain.Grant{}, false
	}
	return domain.Grant{Tier: p.Tier, Until: until}, true
}

// Access loads the account and its live grants and resolves the tier at now.
func (s *EntitlementService) Access(ctx context.Context, accountID uint) (*Access, error) {
	db := s.db.WithContext(ctx)
	acc, err := repository.NewAccountRepository(db).GetByID(accountID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrAccountNotFound
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}
	now := s.now()
	paid, err := repository.NewPaymentRepository(db).ListActiveGrants(accountID, now)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	legacy, err := repository.NewLegacyRepository(db).ListActiveGrants(accountID, now)
	if err != nil {
		return nil, apperr.Storage(err)
	}

	grants := lo.FilterMap(paid, func(p models.PaymentRecord, _ int) (domain.Grant, bool) {
		return grantFor(p.Pack, p.AccessUntil)
	})
	grants = append(grants, lo.FilterMap(legacy, func(v models.LegacyVerification, _ int) (domain.Grant, bool) {
		return grantFor(v.Pack, v.AccessUntil)
	})...)

	e := domain.Entitlement{Role: acc.Role, PaidAccessExpiresAt: acc.PaidAccessExpiresAt, Grants: grants}
	return &Access{
		Tier:                domain.ResolveTier(e, now),
		Role:                acc.Role,
		PaidAccessExpiresAt: acc.PaidAccessExpiresAt,
		Grants:              grants,
	}, nil
}

func (s *EntitlementService) ResolveTier(ctx context.Context, accountID uint) (domain.Tier, error) {
	a, err := s.Access(ctx, accountID)
	if err != nil {
		return domain.TierPublic, err
	}
	return a.Tier, nil
}

func (s *EntitlementService) HasAccess(ctx context.Context, accountID uint, required domain.Tier) (bool, error) {
	tier, err := s.ResolveTier(ctx, accountID)
	if err != nil {
		return false, err
	}
	return domain.HasAccess(tier, required), nil
}

func lockAccount(tx *gorm.DB, accountID uint) (*models.Account, error) {
	acc, err := repository.NewAccountRepository(tx).GetForUpdate(accountID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrAccountNotFound
	}
	return acc, err
}

// RequestLegacyVerification records that the account paid through a historical channel.
// A pending or confirmed request is returned as is with alreadyRequested set.
func (s *EntitlementService) RequestLegacyVerification(ctx context.Context, accountID uint, paidWith string) (*models.LegacyVerification, bool, error) {
	if !domain.ValidLegacyChannel(paidWith) {
		return nil, false, apperr.Invalid(fmt.Sprintf("unknown payment channel %q", paidWith))
	}
	var rec *models.LegacyVerification
	var already bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockAccount(tx, accountID); err != nil {
			return err
		}
		repo := repository.NewLegacyRepository(tx)
		existing, err := repo.FindOpen(accountID)
		if err == nil {
			rec, already = existing, true
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		rec = &models.LegacyVerification{
			AccountID: accountID,
			Pack:      domain.LegacyPack,
			PaidWith:  paidWith,
			Status:    domain.LegacyStatusPending,
		}
		return repo.Create(rec)
	})
	if err != nil {
		return nil, false, apperr.Ensure(err)
	}
	if !already {
		log.Printf("[entitlement] legacy verification %d requested by account %d via %s", rec.ID, accountID, paidWith)
	}
	return rec, already, nil
}

type bankDetails struct {
	IBAN      string `json:"iban"`
	Holder    string `json:"holder"`
	Reference string `json:"reference"`
}

// CreateOrReuseBankTransferIntent returns the account's pending bank-transfer record, creating one
// with a fresh reference when none exists. A pending record is reused even if it names another pack.
func (s *EntitlementService) CreateOrReuseBankTransferIntent(ctx context.Context, accountID uint, packID string) (*models.PaymentRecord, bool, error) {
	pack, ok := domain.LookupPack(packID)
	if !ok {
		return nil, false, apperr.Invalid(fmt.Sprintf("unknown pack %q", packID))
	}
	var rec *models.PaymentRecord
	var reused bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockAccount(tx, accountID); err != nil {
			return err
		}
		repo := repository.NewPaymentRepository(tx)
		existing, err := repo.FindPending(accountID, domain.PaymentKindBankTransfer)
		if err == nil {
			rec, reused = existing, true
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		rec = &models.PaymentRecord{
			AccountID: accountID,
			Kind:      domain.PaymentKindBankTransfer,
			Pack:      pack.ID,
			AmountDue: pack.PriceCents,
			Currency:  s.cfg.Currency,
			Status:    domain.PaymentStatusPending,
		}
		if err := repo.CreateWithReference(rec); err != nil {
			return err
		}
		meta, err := json.Marshal(bankDetails{IBAN: s.cfg.BankIBAN, Holder: s.cfg.BankHolder, Reference: rec.Reference})
		if err != nil {
			return err
		}
		rec.Metadata = datatypes.JSON(meta)
		return repo.Update(rec)
	})
	if err != nil {
		return nil, false, apperr.Ensure(err)
	}
	if !reused {
		log.Printf("[entitlement] bank transfer intent %s for account %d pack %s", rec.Reference, accountID, pack.ID)
	}
	return rec, reused, nil
}

// checkoutOpenWindow bounds how long a card record may wait for its provider session.
// A record still without a session after this window is treated as abandoned.
const checkoutOpenWindow = 2 * time.Minute

// CreateCardCheckout opens a hosted card checkout for a pack. A pending session that has not
// expired is reused; an expired one is cancelled first. While another call is still opening
// the session, callers get a retryable StorageUnavailable error.
func (s *EntitlementService) CreateCardCheckout(ctx context.Context, accountID uint, packID string) (*models.PaymentRecord, bool, error) {
	pack, ok := domain.LookupPack(packID)
	if !ok {
		return nil, false, apperr.Invalid(fmt.Sprintf("unknown pack %q", packID))
	}
	now := s.now()
	var rec *models.PaymentRecord
	var email string
	var reused bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acc, err := lockAccount(tx, accountID)
		if err != nil {
			return err
		}
		email = acc.Email
		repo := repository.NewPaymentRepository(tx)
		existing, err := repo.FindPending(accountID, domain.PaymentKindCard)
		switch {
		case err == nil && existing.ExpiresAt != nil && existing.ExpiresAt.After(now):
			if existing.ProviderRef == nil || existing.CheckoutURL == "" {
				return apperr.New(apperr.CodeStorageUnavailable, "checkout is being opened, retry shortly")
			}
			rec, reused = existing, true
			return nil
		case err == nil:
			existing.Status = domain.PaymentStatusCancelled
			if err := repo.Update(existing); err != nil {
				return err
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		opening := now.Add(checkoutOpenWindow)
		rec = &models.PaymentRecord{
			AccountID: accountID,
			Kind:      domain.PaymentKindCard,
			Pack:      pack.ID,
			AmountDue: pack.PriceCents,
			Currency:  s.cfg.Currency,
			Status:    domain.PaymentStatusPending,
			ExpiresAt: &opening,
		}
		return repo.CreateWithReference(rec)
	})
	if err != nil {
		return nil, false, apperr.Ensure(err)
	}
	if reused {
		return rec, true, nil
	}

	session, err := s.provider.CreateCheckout(ctx, payment.CheckoutRequest{
		AccountID:   accountID,
		Reference:   rec.Reference,
		Pack:        pack.ID,
		AmountCents: pack.PriceCents,
		Currency:    s.cfg.Currency,
		Description: pack.Name + " access",
		Email:       email,
		SuccessURL:  s.cfg.SuccessURL,
		CancelURL:   s.cfg.CancelURL,
		ExpiresIn:   s.cfg.SessionExpiry,
	})
	repo := repository.NewPaymentRepository(s.db.WithContext(ctx))
	if err != nil {
		log.Printf("[entitlement] checkout for %s failed: %v", rec.Reference, err)
		rec.Status = domain.PaymentStatusFailed
		if uerr := repo.Update(rec); uerr != nil {
			log.Printf("[entitlement] mark %s failed: %v", rec.Reference, uerr)
		}
		return nil, false, apperr.Wrap(apperr.CodeStorageUnavailable, "payment provider unavailable", err)
	}
	attached, err := repo.AttachSession(rec.ID, session.SessionID, session.CheckoutURL, session.ExpiresAt)
	if err != nil {
		return nil, false, apperr.Storage(err)
	}
	if !attached {
		log.Printf("[entitlement] checkout %s was cancelled before session %s attached", rec.Reference, session.SessionID)
		return nil, false, apperr.New(apperr.CodeStorageUnavailable, "checkout was superseded, retry")
	}
	rec.ProviderRef = &session.SessionID
	rec.CheckoutURL = session.CheckoutURL
	rec.ExpiresAt = &session.ExpiresAt
	log.Printf("[entitlement] card checkout %s for account %d pack %s", rec.Reference, accountID, pack.ID)
	return rec, false, nil
}

// Payments lists the account's payment records and legacy verification requests.
func (s *EntitlementService) Payments(ctx context.Context, accountID uint) ([]models.PaymentRecord, []models.LegacyVerification, error) {
	db := s.db.WithContext(ctx)
	payments, err := repository.NewPaymentRepository(db).ListByAccount(accountID)
	if err != nil {
		return nil, nil, apperr.Storage(err)
	}
	legacy, err := repository.NewLegacyRepository(db).ListByAccount(accountID)
	if err != nil {
		return nil, nil, apperr.Storage(err)
	}
	return payments, legacy, nil
}
