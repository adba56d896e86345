package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"memberhub/internal/apperr"
	"memberhub/internal/domain"
	"memberhub/internal/models"
	"memberhub/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WalletEvent is pushed to an account's realtime stream after its balance changes.
type WalletEvent struct {
	Type          string `json:"type"`
	Balance       int64  `json:"balance"`
	Delta         int64  `json:"delta"`
	CorrelationID string `json:"correlation_id"`
	TxType        string `json:"tx_type"`
}

// LedgerService moves credits between accounts. Every balance change goes through it.
type LedgerService struct {
	db     *gorm.DB
	notify *NotificationService
	now    func() time.Time
}

func NewLedgerService(db *gorm.DB, notify *NotificationService) *LedgerService {
	return &LedgerService{db: db, notify: notify, now: time.Now}
}

// lockAccounts reads the accounts under row locks in ascending id order.
func lockAccounts(tx *gorm.DB, ids ...uint) (map[uint]*models.Account, error) {
	sorted := append([]uint(nil), ids...)
	if len(sorted) == 2 && sorted[0] > sorted[1] {
		sorted[0], sorted[1] = sorted[1], sorted[0]
	}
	repo := repository.NewAccountRepository(tx)
	out := make(map[uint]*models.Account, len(sorted))
	for _, id := range sorted {
		a, err := repo.GetForUpdate(id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrAccountNotFound
		}
		if err != nil {
			return nil, err
		}
		out[id] = a
	}
	return out, nil
}

// move debits from and credits to inside tx and writes the paired ledger rows.
// debitType is "debit" for transfers and "exchange" for listing purchases.
func (s *LedgerService) move(tx *gorm.DB, from, to *models.Account, amount int64, debitType, description string, listingID *uint) (*models.Transaction, *models.Transaction, error) {
	if from.Balance < amount {
		return nil, nil, apperr.ErrInsufficientFunds
	}
	accounts := repository.NewAccountRepository(tx)
	ok, err := accounts.Debit(from.ID, amount)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, apperr.ErrInsufficientFunds
	}
	if err := accounts.Credit(to.ID, amount); err != nil {
		return nil, nil, err
	}

	correlationID := uuid.NewString()
	debit := &models.Transaction{
		CorrelationID: correlationID,
		AccountID:     from.ID,
		Type:          debitType,
		Amount:        amount,
		BalanceBefore: from.Balance,
		BalanceAfter:  from.Balance - amount,
		Status:        domain.TxStatusCompleted,
		FromAccountID: from.ID,
		ToAccountID:   to.ID,
		ListingID:     listingID,
		Description:   description,
	}
	credit := &models.Transaction{
		CorrelationID: correlationID,
		AccountID:     to.ID,
		Type:          domain.TxTypeCredit,
		Amount:        amount,
		BalanceBefore: to.Balance,
		BalanceAfter:  to.Balance + amount,
		Status:        domain.TxStatusCompleted,
		FromAccountID: from.ID,
		ToAccountID:   to.ID,
		ListingID:     listingID,
		Description:   description,
	}
	if err := repository.NewTransactionRepository(tx).Create(debit, credit); err != nil {
		return nil, nil, err
	}
	from.Balance = debit.BalanceAfter
	to.Balance = credit.BalanceAfter
	return debit, credit, nil
}

// transferTx is the body of Transfer, usable inside a caller's transaction.
func (s *LedgerService) transferTx(tx *gorm.DB, fromID, toID uint, amount int64, description string) (*models.Transaction, *models.Transaction, error) {
	accounts, err := lockAccounts(tx, fromID, toID)
	if err != nil {
		return nil, nil, err
	}
	return s.move(tx, accounts[fromID], accounts[toID], amount, domain.TxTypeDebit, description, nil)
}

func validateTransfer(fromID, toID uint, amount int64, description string) error {
	if amount <= 0 {
		return apperr.ErrInvalidAmount
	}
	if strings.TrimSpace(description) == "" {
		return apperr.Invalid("description is required")
	}
	if fromID == toID {
		return apperr.Invalid("cannot transfer to the same account")
	}
	return nil
}

// Transfer moves amount from one account to another and returns the debit row.
// The credit row shares its CorrelationID.
func (s *LedgerService) Transfer(ctx context.Context, fromID, toID uint, amount int64, description string) (*models.Transaction, error) {
	description = strings.TrimSpace(description)
	if err := validateTransfer(fromID, toID, amount, description); err != nil {
		return nil, err
	}
	var debit, credit *models.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		debit, credit, err = s.transferTx(tx, fromID, toID, amount, description)
		return err
	})
	if err != nil {
		return nil, apperr.Ensure(err)
	}
	s.afterMove(debit, credit)
	if s.notify != nil {
		var from models.Account
		if err := s.db.WithContext(ctx).Select("username").First(&from, fromID).Error; err == nil {
			s.notify.NotifyTransferReceived(toID, amount, from.Username, debit.CorrelationID)
		}
	}
	return debit, nil
}

// Exchange buys an active listing: the price moves from buyer to seller and the listing becomes sold.
// It returns the buyer's exchange row.
func (s *LedgerService) Exchange(ctx context.Context, buyerID, listingID uint) (*models.Transaction, error) {
	var debit, credit *models.Transaction
	var listing *models.Listing
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		listings := repository.NewListingRepository(tx)
		l, err := listings.GetForUpdate(listingID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrListingUnavailable
		}
		if err != nil {
			return err
		}
		if l.Status != domain.ListingStatusActive {
			return apperr.ErrListingUnavailable
		}
		if l.SellerID == buyerID {
			return apperr.Invalid("cannot buy your own listing")
		}
		accounts, err := lockAccounts(tx, buyerID, l.SellerID)
		if err != nil {
			return err
		}
		debit, credit, err = s.move(tx, accounts[buyerID], accounts[l.SellerID], l.Price,
			domain.TxTypeExchange, "purchase: "+l.Title, &l.ID)
		if err != nil {
			return err
		}
		ok, err := listings.MarkSold(l.ID, buyerID, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrListingUnavailable
		}
		listing = l
		return nil
	})
	if err != nil {
		return nil, apperr.Ensure(err)
	}
	s.afterMove(debit, credit)
	s.notify.NotifyListingSold(listing.SellerID, listing.ID, listing.Title, listing.Price)
	return debit, nil
}

func (s *LedgerService) afterMove(rows ...*models.Transaction) {
	for _, t := range rows {
		s.notify.Push(t.AccountID, WalletEvent{
			Type:          "balance",
			Balance:       t.BalanceAfter,
			Delta:         t.Delta(),
			CorrelationID: t.CorrelationID,
			TxType:        t.Type,
		})
	}
	log.Printf("[ledger] %s %d credits %d -> %d (%s)",
		rows[0].Type, rows[0].Amount, rows[0].FromAccountID, rows[0].ToAccountID, rows[0].CorrelationID)
}

// CreateListing puts an item up for exchange.
func (s *LedgerService) CreateListing(ctx context.Context, sellerID uint, title, description string, price int64) (*models.Listing, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperr.Invalid("title is required")
	}
	if price <= 0 {
		return nil, apperr.ErrInvalidAmount
	}
	l := &models.Listing{
		SellerID:    sellerID,
		Title:       title,
		Description: description,
		Price:       price,
		Status:      domain.ListingStatusActive,
	}
	if err := repository.NewListingRepository(s.db.WithContext(ctx)).Create(l); err != nil {
		return nil, apperr.Storage(err)
	}
	return l, nil
}

// ArchiveListing withdraws an active listing. Only its seller may archive it.
func (s *LedgerService) ArchiveListing(ctx context.Context, sellerID, listingID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		listings := repository.NewListingRepository(tx)
		l, err := listings.GetForUpdate(listingID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrListingUnavailable
		}
		if err != nil {
			return err
		}
		if l.SellerID != sellerID {
			return apperr.ErrForbidden
		}
		ok, err := listings.Archive(l.ID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrListingUnavailable
		}
		return nil
	})
	return apperr.Ensure(err)
}

func (s *LedgerService) GetListing(ctx context.Context, id uint) (*models.Listing, error) {
	l, err := repository.NewListingRepository(s.db.WithContext(ctx)).GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return l, nil
}

func (s *LedgerService) ListListings(ctx context.Context, excludeSeller uint, limit, offset int) ([]models.Listing, error) {
	list, err := repository.NewListingRepository(s.db.WithContext(ctx)).ListActive(excludeSeller, limit, offset)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return list, nil
}

// SellerListings returns every listing of sellerID whatever its status, newest first.
func (s *LedgerService) SellerListings(ctx context.Context, sellerID uint) ([]models.Listing, error) {
	list, err := repository.NewListingRepository(s.db.WithContext(ctx)).ListBySeller(sellerID)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return list, nil
}

func (s *LedgerService) SetListingImage(ctx context.Context, sellerID, listingID uint, url string) error {
	repo := repository.NewListingRepository(s.db.WithContext(ctx))
	l, err := repo.GetByID(listingID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.ErrNotFound
	}
	if err != nil {
		return apperr.Storage(err)
	}
	if l.SellerID != sellerID {
		return apperr.ErrForbidden
	}
	return apperr.Ensure(repo.UpdateImage(listingID, url))
}

// Balance returns the account's current balance.
func (s *LedgerService) Balance(ctx context.Context, accountID uint) (int64, error) {
	a, err := repository.NewAccountRepository(s.db.WithContext(ctx)).GetByID(accountID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, apperr.ErrAccountNotFound
	}
	if err != nil {
		return 0, apperr.Storage(err)
	}
	return a.Balance, nil
}

// History lists the account's ledger rows, newest first.
func (s *LedgerService) History(ctx context.Context, accountID uint, limit, offset int) ([]models.Transaction, error) {
	list, err := repository.NewTransactionRepository(s.db.WithContext(ctx)).ListByAccount(accountID, limit, offset)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return list, nil
}

// Pair returns both rows written under correlationID.
func (s *LedgerService) Pair(ctx context.Context, correlationID string) ([]models.Transaction, error) {
	if _, err := uuid.Parse(correlationID); err != nil {
		return nil, apperr.Invalid("invalid correlation id")
	}
	list, err := repository.NewTransactionRepository(s.db.WithContext(ctx)).ListByCorrelation(correlationID)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	if len(list) == 0 {
		return nil, apperr.ErrNotFound
	}
	return list, nil
}
