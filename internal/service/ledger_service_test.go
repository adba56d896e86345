package service

import (
	"context"
	"sync"
	"testing"

	"memberhub/internal/apperr"
	"memberhub/internal/domain"
	"memberhub/internal/models"
	"memberhub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferMovesBalanceAndWritesPair(t *testing.T) {
	f := newFixture(t)
	a := f.account("alice", "", 1000)
	b := f.account("bob", "", 0)
	ctx := context.Background()

	debit, err := f.ledger.Transfer(ctx, a.ID, b.ID, 300, "gift")
	require.NoError(t, err)
	require.Equal(t, int64(700), f.balance(a.ID))
	require.Equal(t, int64(300), f.balance(b.ID))

	require.Equal(t, domain.TxTypeDebit, debit.Type)
	require.Equal(t, a.ID, debit.AccountID)
	require.Equal(t, int64(1000), debit.BalanceBefore)
	require.Equal(t, int64(700), debit.BalanceAfter)
	require.Equal(t, domain.TxStatusCompleted, debit.Status)

	pair, err := f.ledger.Pair(ctx, debit.CorrelationID)
	require.NoError(t, err)
	require.Len(t, pair, 2)
	credit := pair[1]
	require.Equal(t, domain.TxTypeCredit, credit.Type)
	require.Equal(t, b.ID, credit.AccountID)
	require.Equal(t, int64(0), credit.BalanceBefore)
	require.Equal(t, int64(300), credit.BalanceAfter)
	require.Equal(t, "gift", credit.Description)

	require.Len(t, f.pusher.walletEvents(b.ID), 1)
	require.Equal(t, int64(300), f.pusher.walletEvents(b.ID)[0].Balance)
	require.Equal(t, int64(-300), f.pusher.walletEvents(a.ID)[0].Delta)
	require.Equal(t, int64(1), testutil.CountRows(t, f.db, &models.Notification{}, "account_id = ? AND type = ?", b.ID, domain.NotifTransferReceived))

	var n models.Notification
	require.NoError(t, f.db.Where("account_id = ? AND type = ?", b.ID, domain.NotifTransferReceived).First(&n).Error)
	require.Equal(t, "alice sent you 300 credits", n.Body)
}

func TestTransferValidation(t *testing.T) {
	f := newFixture(t)
	a := f.account("alice", "", 1000)
	b := f.account("bob", "", 0)
	ctx := context.Background()

	_, err := f.ledger.Transfer(ctx, a.ID, b.ID, 0, "gift")
	require.ErrorIs(t, err, apperr.ErrInvalidAmount)
	_, err = f.ledger.Transfer(ctx, a.ID, b.ID, -5, "gift")
	require.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
	_, err = f.ledger.Transfer(ctx, a.ID, b.ID, 10, "   ")
	require.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
	_, err = f.ledger.Transfer(ctx, a.ID, a.ID, 10, "self")
	require.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
	_, err = f.ledger.Transfer(ctx, a.ID, 9999, 10, "ghost")
	require.ErrorIs(t, err, apperr.ErrAccountNotFound)
	_, err = f.ledger.Transfer(ctx, 9999, a.ID, 10, "ghost")
	require.ErrorIs(t, err, apperr.ErrAccountNotFound)

	require.Equal(t, int64(1000), f.balance(a.ID))
	require.Equal(t, int64(0), testutil.CountRows(t, f.db, &models.Transaction{}))
}

func TestTransferInsufficientFundsLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	a := f.account("alice", "", 100)
	b := f.account("bob", "", 5)

	_, err := f.ledger.Transfer(context.Background(), a.ID, b.ID, 101, "too much")
	require.ErrorIs(t, err, apperr.ErrInsufficientFunds)
	require.Equal(t, int64(100), f.balance(a.ID))
	require.Equal(t, int64(5), f.balance(b.ID))
	require.Equal(t, int64(0), testutil.CountRows(t, f.db, &models.Transaction{}))
}

func TestConcurrentTransfersNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	a := f.account("alice", "", 1000)
	b := f.account("bob", "", 0)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var ok, short int
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.Transfer(context.Background(), a.ID, b.ID, 300, "race")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case apperr.CodeOf(err) == apperr.CodeInsufficientFunds:
				short++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 3, ok)
	require.Equal(t, 7, short)
	require.Equal(t, int64(100), f.balance(a.ID))
	require.Equal(t, int64(900), f.balance(b.ID))
	require.Equal(t, int64(6), testutil.CountRows(t, f.db, &models.Transaction{}))
}

func TestConcurrentDrainOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	a := f.account("alice", "", 500)
	b := f.account("bob", "", 0)
	c := f.account("carol", "", 0)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, to := range []uint{b.ID, c.ID} {
		wg.Add(1)
		go func(to uint) {
			defer wg.Done()
			_, err := f.ledger.Transfer(context.Background(), a.ID, to, 500, "drain")
			errs <- err
		}(to)
	}
	wg.Wait()
	close(errs)

	var succeeded int
	for err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, apperr.ErrInsufficientFunds)
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, int64(0), f.balance(a.ID))
	require.Equal(t, int64(500), f.balance(b.ID)+f.balance(c.ID))
}

func TestExchangeSellsListingOnce(t *testing.T) {
	f := newFixture(t)
	seller := f.account("seller", "", 40)
	buyer := f.account("buyer", "", 500)
	ctx := context.Background()

	l, err := f.ledger.CreateListing(ctx, seller.ID, "Signed poster", "", 500)
	require.NoError(t, err)

	row, err := f.ledger.Exchange(ctx, buyer.ID, l.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TxTypeExchange, row.Type)
	require.Equal(t, int64(500), row.BalanceBefore)
	require.Equal(t, int64(0), row.BalanceAfter)
	require.NotNil(t, row.ListingID)
	require.Equal(t, l.ID, *row.ListingID)

	require.Equal(t, int64(0), f.balance(buyer.ID))
	require.Equal(t, int64(540), f.balance(seller.ID))

	sold, err := f.ledger.GetListing(ctx, l.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ListingStatusSold, sold.Status)
	require.Equal(t, buyer.ID, *sold.BuyerID)
	require.NotNil(t, sold.SoldAt)

	pair, err := f.ledger.Pair(ctx, row.CorrelationID)
	require.NoError(t, err)
	require.Len(t, pair, 2)
	require.Equal(t, domain.TxTypeCredit, pair[1].Type)
	require.Equal(t, int64(40), pair[1].BalanceBefore)
	require.Equal(t, int64(540), pair[1].BalanceAfter)

	other := f.account("other", "", 1000)
	_, err = f.ledger.Exchange(ctx, other.ID, l.ID)
	require.ErrorIs(t, err, apperr.ErrListingUnavailable)
	require.Equal(t, int64(1000), f.balance(other.ID))
	require.Equal(t, int64(2), testutil.CountRows(t, f.db, &models.Transaction{}))
	require.Equal(t, int64(1), testutil.CountRows(t, f.db, &models.Notification{}, "account_id = ? AND type = ?", seller.ID, domain.NotifListingSold))
}

func TestExchangeFailures(t *testing.T) {
	f := newFixture(t)
	seller := f.account("seller", "", 0)
	buyer := f.account("buyer", "", 100)
	ctx := context.Background()
	l, err := f.ledger.CreateListing(ctx, seller.ID, "Lamp", "brass", 150)
	require.NoError(t, err)

	_, err = f.ledger.Exchange(ctx, buyer.ID, l.ID)
	require.ErrorIs(t, err, apperr.ErrInsufficientFunds)

	_, err = f.ledger.Exchange(ctx, seller.ID, l.ID)
	require.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))

	_, err = f.ledger.Exchange(ctx, buyer.ID, 9999)
	require.ErrorIs(t, err, apperr.ErrListingUnavailable)

	_, err = f.ledger.Exchange(ctx, 9999, l.ID)
	require.ErrorIs(t, err, apperr.ErrAccountNotFound)

	still, err := f.ledger.GetListing(ctx, l.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ListingStatusActive, still.Status)
	require.Equal(t, int64(100), f.balance(buyer.ID))
	require.Equal(t, int64(0), testutil.CountRows(t, f.db, &models.Transaction{}))
}

func TestConcurrentExchangeSellsOnce(t *testing.T) {
	f := newFixture(t)
	seller := f.account("seller", "", 0)
	ctx := context.Background()
	l, err := f.ledger.CreateListing(ctx, seller.ID, "Rare vinyl", "", 200)
	require.NoError(t, err)

	buyers := make([]*models.Account, 5)
	for i := range buyers {
		buyers[i] = f.account("buyer"+string(rune('a'+i)), "", 200)
	}
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for _, b := range buyers {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			_, err := f.ledger.Exchange(ctx, id, l.ID)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, apperr.ErrListingUnavailable)
		}(b.ID)
	}
	wg.Wait()
	require.Equal(t, 1, wins)
	require.Equal(t, int64(200), f.balance(seller.ID))
}

func TestArchiveListing(t *testing.T) {
	f := newFixture(t)
	seller := f.account("seller", "", 0)
	stranger := f.account("stranger", "", 500)
	ctx := context.Background()
	l, err := f.ledger.CreateListing(ctx, seller.ID, "Chair", "", 50)
	require.NoError(t, err)

	require.ErrorIs(t, f.ledger.ArchiveListing(ctx, stranger.ID, l.ID), apperr.ErrForbidden)
	require.NoError(t, f.ledger.ArchiveListing(ctx, seller.ID, l.ID))
	require.ErrorIs(t, f.ledger.ArchiveListing(ctx, seller.ID, l.ID), apperr.ErrListingUnavailable)

	_, err = f.ledger.Exchange(ctx, stranger.ID, l.ID)
	require.ErrorIs(t, err, apperr.ErrListingUnavailable)

	active, err := f.ledger.ListListings(ctx, 0, 20, 0)
	require.NoError(t, err)
	require.Empty(t, active)
}

func TestCreateListingValidation(t *testing.T) {
	f := newFixture(t)
	seller := f.account("seller", "", 0)
	ctx := context.Background()

	_, err := f.ledger.CreateListing(ctx, seller.ID, "", "", 10)
	require.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
	_, err = f.ledger.CreateListing(ctx, seller.ID, "Thing", "", 0)
	require.ErrorIs(t, err, apperr.ErrInvalidAmount)
}

func TestHistoryAndPair(t *testing.T) {
	f := newFixture(t)
	a := f.account("alice", "", 1000)
	b := f.account("bob", "", 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.ledger.Transfer(ctx, a.ID, b.ID, 100, "weekly")
		require.NoError(t, err)
	}
	hist, err := f.ledger.History(ctx, a.ID, 2, 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	require.Equal(t, int64(700), hist[0].BalanceAfter)
	require.Equal(t, int64(800), hist[1].BalanceAfter)

	_, err = f.ledger.Pair(ctx, "nope")
	require.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
	_, err = f.ledger.Pair(ctx, "3b241101-e2bb-4255-8caf-4136c566a962")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}
