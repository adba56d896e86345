package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"memberhub/config"
	"memberhub/internal/database"
	"memberhub/internal/models"
	"memberhub/internal/repository"
	"memberhub/internal/testutil"
	"memberhub/pkg/payment"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type pushed struct {
	accountID uint
	payload   interface{}
}

type recordingPusher struct {
	mu     sync.Mutex
	events []pushed
}

func (p *recordingPusher) BroadcastToUser(accountID uint, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, pushed{accountID, payload})
}

func (p *recordingPusher) walletEvents(accountID uint) []WalletEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []WalletEvent
	for _, e := range p.events {
		if ev, ok := e.payload.(WalletEvent); ok && e.accountID == accountID {
			out = append(out, ev)
		}
	}
	return out
}

type fakeProvider struct {
	mu        sync.Mutex
	now       func() time.Time
	calls     int
	fail      bool
	opening   func() // runs while the session is being created
	paid      map[string]bool
	verifyErr error
}

func (f *fakeProvider) CreateCheckout(_ context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	if f.opening != nil {
		f.opening()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("provider down")
	}
	f.calls++
	id := "cs_" + req.Reference
	return &payment.CheckoutSession{
		SessionID:   id,
		CheckoutURL: "https://pay.example/" + id,
		ExpiresAt:   f.now().Add(req.ExpiresIn),
	}, nil
}

func (f *fakeProvider) VerifyPayment(_ context.Context, sessionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.verifyErr != nil {
		return false, f.verifyErr
	}
	return f.paid[sessionID], nil
}

type fixture struct {
	t           *testing.T
	db          *gorm.DB
	clock       time.Time
	pusher      *recordingPusher
	provider    *fakeProvider
	notify      *NotificationService
	ledger      *LedgerService
	entitlement *EntitlementService
	reconciler  *ReconcilerService
	treasury    *models.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	treasury, err := database.SeedTreasury(db, &config.TreasuryConfig{Email: "treasury@example.test", OpeningCredits: 100000})
	require.NoError(t, err)
	require.NoError(t, database.SeedSettings(db, database.DefaultSettings))

	f := &fixture{t: t, db: db, clock: epoch, pusher: &recordingPusher{}, treasury: treasury}
	now := func() time.Time { return f.clock }
	f.provider = &fakeProvider{now: now, paid: map[string]bool{}}
	f.notify = NewNotificationService(repository.NewNotificationRepository(db), f.pusher)
	f.ledger = NewLedgerService(db, f.notify)
	f.ledger.now = now
	f.entitlement = NewEntitlementService(db, &config.PaymentConfig{
		Currency:      "EUR",
		SessionExpiry: 30 * time.Minute,
		BankIBAN:      "FR7630006000011234567890189",
		BankHolder:    "Memberhub",
	}, f.provider)
	f.entitlement.now = now
	f.reconciler = NewReconcilerService(db, f.ledger, f.notify, f.provider, treasury.ID)
	f.reconciler.now = now
	return f
}

func (f *fixture) account(username, role string, balance int64) *models.Account {
	return testutil.CreateAccount(f.t, f.db, username, role, balance)
}

func (f *fixture) balance(id uint) int64 {
	return testutil.Balance(f.t, f.db, id)
}

func (f *fixture) reload(a *models.Account) *models.Account {
	var out models.Account
	require.NoError(f.t, f.db.First(&out, a.ID).Error)
	return &out
}

// pay creates a bank-transfer intent for pack and marks it paid at the fixture clock.
func (f *fixture) pay(accountID uint, pack string) *models.PaymentRecord {
	f.t.Helper()
	rec, _, err := f.entitlement.CreateOrReuseBankTransferIntent(context.Background(), accountID, pack)
	require.NoError(f.t, err)
	paid, err := f.reconciler.MarkPaid(context.Background(), rec.ID, time.Time{})
	require.NoError(f.t, err)
	return paid
}
