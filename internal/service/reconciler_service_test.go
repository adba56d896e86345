package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"memberhub/internal/apperr"
	"memberhub/internal/domain"
	"memberhub/internal/models"
	"memberhub/internal/testutil"

	"github.com/stretchr/testify/require"
)

const year = 365 * 24 * time.Hour

func TestMarkPaidGrantsOnce(t *testing.T) {
	f := newFixture(t)
	a := f.account("alice", "", 0)
	ctx := context.Background()
	rec, _, err := f.entitlement.CreateOrReuseBankTransferIntent(ctx, a.ID, domain.PackPremium)
	require.NoError(t, err)

	paid, err := f.reconciler.MarkPaid(ctx, rec.ID, time.Time{})
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusPaid, paid.Status)
	require.True(t, paid.PaidAt.Equal(epoch))
	require.True(t, paid.AccessUntil.Equal(epoch.Add(year)))
	require.True(t, f.reload(a).PaidAccessExpiresAt.Equal(epoch.Add(year)))

	f.clock = f.clock.Add(time.Hour)
	_, err = f.reconciler.MarkPaid(ctx, rec.ID, time.Time{})
	require.ErrorIs(t, err, apperr.ErrAlreadyFinalized)
	require.True(t, f.reload(a).PaidAccessExpiresAt.Equal(epoch.Add(year)))
	require.Equal(t, int64(1), testutil.CountRows(t, f.db, &models.Notification{}, "type = ?", domain.NotifPaymentConfirmed))

	_, err = f.reconciler.MarkPaid(ctx, 9999, time.Time{})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMarkPaidExtendsCurrentAccess(t *testing.T) {
	f := newFixture(t)
	a := f.account("alice", "", 0)
	current := epoch.Add(10 * 24 * time.Hour)
	require.NoError(t, f.db.Model(&models.Account{}).Where("id = ?", a.ID).Update("paid_access_expires_at", current).Error)

	paid := f.pay(a.ID, domain.PackMembership)
	require.True(t, paid.AccessUntil.Equal(current.Add(year)))
	require.True(t, f.reload(a).PaidAccessExpiresAt.Equal(current.Add(year)))
}

func TestConcurrentMarkPaidGrantsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	a := f.account("alice", "", 0)
	ctx := context.Background()
	rec, _, err := f.entitlement.CreateOrReuseBankTransferIntent(ctx, a.ID, domain.PackVIP)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.reconciler.MarkPaid(ctx, rec.ID, time.Time{}); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
	require.True(t, f.reload(a).PaidAccessExpiresAt.Equal(epoch.Add(year)))
}

func TestMarkPaidByReference(t *testing.T) {
	f := newFixture(t)
	a := f.account("alice", "", 0)
	ctx := context.Background()
	rec, _, err := f.entitlement.CreateOrReuseBankTransferIntent(ctx, a.ID, domain.PackMembership)
	require.NoError(t, err)

	paidAt := epoch.Add(-48 * time.Hour)
	paid, err := f.reconciler.MarkPaidByReference(ctx, " "+strings.ToLower(rec.Reference)+" ", paidAt)
	require.NoError(t, err)
	require.Equal(t, rec.ID, paid.ID)
	require.True(t, paid.AccessUntil.Equal(paidAt.Add(year)))

	_, err = f.reconciler.MarkPaidByReference(ctx, "MH-0000-0000", time.Time{})
	require.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.reconciler.MarkPaidByReference(ctx, "", time.Time{})
	require.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
}

func TestMarkPaidByProviderSession(t *testing.T) {
	f := newFixture(t)
	a := f.account("alice", "", 0)
	ctx := context.Background()
	rec, _, err := f.entitlement.CreateCardCheckout(ctx, a.ID, domain.PackPremium)
	require.NoError(t, err)

	paid, err := f.reconciler.MarkPaidByReference(ctx, *rec.ProviderRef, time.Time{})
	require.NoError(t, err)
	require.Equal(t, rec.ID, paid.ID)
}

func TestMarkFailed(t *testing.T) {
	f := newFixture(t)
	a := f.account("alice", "", 0)
	ctx := context.Background()
	rec, _, err := f.entitlement.CreateOrReuseBankTransferIntent(ctx, a.ID, domain.PackMembership)
	require.NoError(t, err)

	failed, err := f.reconciler.MarkFailed(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusFailed, failed.Status)

	_, err = f.reconciler.MarkPaid(ctx, rec.ID, time.Time{})
	require.ErrorIs(t, err, apperr.ErrAlreadyFinalized)
	require.Nil(t, f.reload(a).PaidAccessExpiresAt)
}

func TestMarkConfirmedGrantsLegacyPack(t *testing.T) {
	f := newFixture(t)
	a := f.account("alice", "", 0)
	admin := f.account("admin", domain.RoleAdmin, 0)
	ctx := context.Background()
	v, _, err := f.entitlement.RequestLegacyVerification(ctx, a.ID, domain.PaidWithTipeee)
	require.NoError(t, err)

	confirmed, err := f.reconciler.MarkConfirmed(ctx, admin.ID, v.ID)
	require.NoError(t, err)
	require.Equal(t, domain.LegacyStatusConfirmed, confirmed.Status)
	require.Equal(t, admin.ID, *confirmed.ReviewedBy)
	require.True(t, confirmed.AccessUntil.Equal(epoch.Add(year)))

	tier, err := f.entitlement.ResolveTier(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TierMember, tier)

	_, err = f.reconciler.MarkConfirmed(ctx, admin.ID, v.ID)
	require.ErrorIs(t, err, apperr.ErrAlreadyFinalized)
	_, err = f.reconciler.MarkRejected(ctx, admin.ID, v.ID, "changed my mind")
	require.ErrorIs(t, err, apperr.ErrAlreadyFinalized)

	require.Equal(t, int64(1), testutil.CountRows(t, f.db, &models.AuditLog{}, "action = ?", "legacy.confirmed"))
	_, already, err := f.entitlement.RequestLegacyVerification(ctx, a.ID, domain.PaidWithNaho)
	require.NoError(t, err)
	require.True(t, already)
}

func TestMarkRejected(t *testing.T) {
	f := newFixture(t)
	a := f.account("alice", "", 0)
	mod := f.account("mod", domain.RoleModerator, 0)
	ctx := context.Background()
	v, _, err := f.entitlement.RequestLegacyVerification(ctx, a.ID, domain.PaidWithCash)
	require.NoError(t, err)

	rejected, err := f.reconciler.MarkRejected(ctx, mod.ID, v.ID, "no receipt")
	require.NoError(t, err)
	require.Equal(t, domain.LegacyStatusRejected, rejected.Status)
	require.Equal(t, "no receipt", rejected.Note)
	require.Nil(t, rejected.AccessUntil)

	tier, err := f.entitlement.ResolveTier(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TierPublic, tier)
	require.Equal(t, int64(1), testutil.CountRows(t, f.db, &models.Notification{}, "type = ?", domain.NotifLegacyRejected))
}

func TestLegacyReviewRequiresStaff(t *testing.T) {
	f := newFixture(t)
	a := f.account("alice", "", 0)
	b := f.account("bob", domain.RoleVIP, 0)
	ctx := context.Background()
	v, _, err := f.entitlement.RequestLegacyVerification(ctx, a.ID, domain.PaidWithNaho)
	require.NoError(t, err)

	_, err = f.reconciler.MarkConfirmed(ctx, b.ID, v.ID)
	require.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.reconciler.MarkConfirmed(ctx, 9999, v.ID)
	require.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.reconciler.MarkConfirmed(ctx, f.treasury.ID, 9999)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestReferralCommissionPaidTwiceAtMost(t *testing.T) {
	f := newFixture(t)
	referrer := f.account("referrer", "", 0)
	referred := f.account("referred", "", 0)
	require.NoError(t, f.db.Create(&models.Referral{ReferrerID: referrer.ID, ReferredAccountID: referred.ID}).Error)

	f.pay(referred.ID, domain.PackMembership)
	require.Equal(t, int64(500), f.balance(referrer.ID))
	f.pay(referred.ID, domain.PackPremium)
	f.pay(referred.ID, domain.PackVIP)

	require.Equal(t, int64(1000), f.balance(referrer.ID))
	require.Equal(t, int64(100000-1000), f.balance(f.treasury.ID))

	var ref models.Referral
	require.NoError(t, f.db.Where("referred_account_id = ?", referred.ID).First(&ref).Error)
	require.Equal(t, domain.MaxReferralCommissions, ref.CompletedCount)
	require.Equal(t, int64(2), testutil.CountRows(t, f.db, &models.Notification{}, "account_id = ? AND type = ?", referrer.ID, domain.NotifReferralCommission))
}

func TestReferralCommissionSkippedWhenTreasuryShort(t *testing.T) {
	f := newFixture(t)
	referrer := f.account("referrer", "", 0)
	referred := f.account("referred", "", 0)
	require.NoError(t, f.db.Create(&models.Referral{ReferrerID: referrer.ID, ReferredAccountID: referred.ID}).Error)
	require.NoError(t, f.db.Model(&models.Account{}).Where("id = ?", f.treasury.ID).Update("balance", 10).Error)

	paid := f.pay(referred.ID, domain.PackMembership)
	require.Equal(t, domain.PaymentStatusPaid, paid.Status)
	require.Equal(t, int64(0), f.balance(referrer.ID))

	var ref models.Referral
	require.NoError(t, f.db.Where("referred_account_id = ?", referred.ID).First(&ref).Error)
	require.Equal(t, 0, ref.CompletedCount)
}

func TestSyncCheckoutFollowsProvider(t *testing.T) {
	f := newFixture(t)
	a := f.account("alice", "", 0)
	ctx := context.Background()

	rec, _, err := f.entitlement.CreateCardCheckout(ctx, a.ID, domain.PackPremium)
	require.NoError(t, err)

	same, err := f.reconciler.SyncCheckout(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusPending, same.Status)

	f.provider.paid[*rec.ProviderRef] = true
	paid, err := f.reconciler.SyncCheckout(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusPaid, paid.Status)
	require.NotNil(t, f.reload(a).PaidAccessExpiresAt)

	_, err = f.reconciler.SyncCheckout(ctx, rec.ID)
	require.ErrorIs(t, err, apperr.ErrAlreadyFinalized)
}

func TestSyncCheckoutFailsExpiredSession(t *testing.T) {
	f := newFixture(t)
	a := f.account("alice", "", 0)
	ctx := context.Background()

	rec, _, err := f.entitlement.CreateCardCheckout(ctx, a.ID, domain.PackVIP)
	require.NoError(t, err)
	f.clock = f.clock.Add(time.Hour)

	failed, err := f.reconciler.SyncCheckout(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusFailed, failed.Status)
	require.Nil(t, f.reload(a).PaidAccessExpiresAt)
}

func TestSyncCheckoutRejectsBadTargets(t *testing.T) {
	f := newFixture(t)
	a := f.account("alice", "", 0)
	ctx := context.Background()

	bank, _, err := f.entitlement.CreateOrReuseBankTransferIntent(ctx, a.ID, domain.PackMembership)
	require.NoError(t, err)
	_, err = f.reconciler.SyncCheckout(ctx, bank.ID)
	require.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))

	_, err = f.reconciler.SyncCheckout(ctx, 9999)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	card, _, err := f.entitlement.CreateCardCheckout(ctx, a.ID, domain.PackPremium)
	require.NoError(t, err)
	f.provider.verifyErr = errors.New("timeout")
	_, err = f.reconciler.SyncCheckout(ctx, card.ID)
	require.Equal(t, apperr.CodeStorageUnavailable, apperr.CodeOf(err))

	var still models.PaymentRecord
	require.NoError(t, f.db.First(&still, card.ID).Error)
	require.Equal(t, domain.PaymentStatusPending, still.Status)
}

func TestSyncPendingCheckouts(t *testing.T) {
	f := newFixture(t)
	alice := f.account("alice", "", 0)
	bob := f.account("bob", "", 0)
	carol := f.account("carol", "", 0)
	ctx := context.Background()

	paid, _, err := f.entitlement.CreateCardCheckout(ctx, alice.ID, domain.PackPremium)
	require.NoError(t, err)
	_, _, err = f.entitlement.CreateCardCheckout(ctx, bob.ID, domain.PackPremium)
	require.NoError(t, err)
	_, _, err = f.entitlement.CreateOrReuseBankTransferIntent(ctx, carol.ID, domain.PackMembership)
	require.NoError(t, err)
	f.provider.paid[*paid.ProviderRef] = true

	res, err := f.reconciler.SyncPendingCheckouts(ctx)
	require.NoError(t, err)
	require.Equal(t, SyncResult{Checked: 2, Paid: 1}, res)

	f.clock = f.clock.Add(time.Hour)
	res, err = f.reconciler.SyncPendingCheckouts(ctx)
	require.NoError(t, err)
	require.Equal(t, SyncResult{Checked: 1, Failed: 1}, res)
}

func TestReferralCommissionOnlyForFirstPayments(t *testing.T) {
	f := newFixture(t)
	referrer := f.account("referrer", "", 0)
	referred := f.account("referred", "", 0)
	require.NoError(t, f.db.Create(&models.Referral{ReferrerID: referrer.ID, ReferredAccountID: referred.ID}).Error)
	require.NoError(t, f.db.Model(&models.Account{}).Where("id = ?", f.treasury.ID).Update("balance", 10).Error)

	f.pay(referred.ID, domain.PackMembership)
	require.Equal(t, int64(0), f.balance(referrer.ID))

	require.NoError(t, f.db.Model(&models.Account{}).Where("id = ?", f.treasury.ID).Update("balance", 100000).Error)
	f.pay(referred.ID, domain.PackPremium)
	require.Equal(t, int64(500), f.balance(referrer.ID))

	f.pay(referred.ID, domain.PackVIP)
	require.Equal(t, int64(500), f.balance(referrer.ID), "a third payment never earns a commission")

	var ref models.Referral
	require.NoError(t, f.db.Where("referred_account_id = ?", referred.ID).First(&ref).Error)
	require.Equal(t, 1, ref.CompletedCount)
}
