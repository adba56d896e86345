package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"memberhub/internal/apperr"
	"memberhub/internal/domain"
	"memberhub/internal/models"
	"memberhub/internal/testutil"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

var referencePattern = regexp.MustCompile(`^MH-[0-9A-HJKMNP-TV-Z]{4}-[0-9A-HJKMNP-TV-Z]{4}$`)

func TestRequestLegacyVerificationIsIdempotent(t *testing.T) {
	f := newFixture(t)
	a := f.account("alice", "", 0)
	ctx := context.Background()

	first, already, err := f.entitlement.RequestLegacyVerification(ctx, a.ID, domain.PaidWithNaho)
	require.NoError(t, err)
	require.False(t, already)
	require.Equal(t, domain.LegacyStatusPending, first.Status)
	require.Equal(t, domain.LegacyPack, first.Pack)

	second, already, err := f.entitlement.RequestLegacyVerification(ctx, a.ID, domain.PaidWithNaho)
	require.NoError(t, err)
	require.True(t, already)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, int64(1), testutil.CountRows(t, f.db, &models.LegacyVerification{}))
}

func TestRequestLegacyVerificationValidation(t *testing.T) {
	f := newFixture(t)
	a := f.account("alice", "", 0)
	ctx := context.Background()

	_, _, err := f.entitlement.RequestLegacyVerification(ctx, a.ID, "bitcoin")
	require.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
	_, _, err = f.entitlement.RequestLegacyVerification(ctx, 9999, domain.PaidWithCash)
	require.ErrorIs(t, err, apperr.ErrAccountNotFound)
	require.Equal(t, int64(0), testutil.CountRows(t, f.db, &models.LegacyVerification{}))
}

func TestRequestLegacyVerificationAfterRejection(t *testing.T) {
	f := newFixture(t)
	a := f.account("alice", "", 0)
	ctx := context.Background()

	first, _, err := f.entitlement.RequestLegacyVerification(ctx, a.ID, domain.PaidWithPayPal)
	require.NoError(t, err)
	_, err = f.reconciler.MarkRejected(ctx, f.treasury.ID, first.ID, "no matching payment")
	require.NoError(t, err)

	again, already, err := f.entitlement.RequestLegacyVerification(ctx, a.ID, domain.PaidWithCheque)
	require.NoError(t, err)
	require.False(t, already)
	require.NotEqual(t, first.ID, again.ID)
}

func TestBankTransferIntentReusesPending(t *testing.T) {
	f := newFixture(t)
	a := f.account("alice", "", 0)
	ctx := context.Background()

	rec, reused, err := f.entitlement.CreateOrReuseBankTransferIntent(ctx, a.ID, domain.PackMembership)
	require.NoError(t, err)
	require.False(t, reused)
	require.Regexp(t, referencePattern, rec.Reference)
	require.Equal(t, int64(5000), rec.AmountDue)
	require.Equal(t, domain.PaymentKindBankTransfer, rec.Kind)
	require.Equal(t, rec.Reference, gjson.GetBytes(rec.Metadata, "reference").String())
	require.Equal(t, "Memberhub", gjson.GetBytes(rec.Metadata, "holder").String())

	again, reused, err := f.entitlement.CreateOrReuseBankTransferIntent(ctx, a.ID, domain.PackVIP)
	require.NoError(t, err)
	require.True(t, reused)
	require.Equal(t, rec.ID, again.ID)
	require.Equal(t, domain.PackMembership, again.Pack)
	require.Equal(t, rec.Reference, again.Reference)
	require.Equal(t, int64(1), testutil.CountRows(t, f.db, &models.PaymentRecord{}))

	_, err = f.reconciler.MarkPaid(ctx, rec.ID, time.Time{})
	require.NoError(t, err)
	next, reused, err := f.entitlement.CreateOrReuseBankTransferIntent(ctx, a.ID, domain.PackVIP)
	require.NoError(t, err)
	require.False(t, reused)
	require.NotEqual(t, rec.Reference, next.Reference)
	require.Equal(t, int64(30000), next.AmountDue)
}

func TestBankTransferIntentUnknownPack(t *testing.T) {
	f := newFixture(t)
	a := f.account("alice", "", 0)
	_, _, err := f.entitlement.CreateOrReuseBankTransferIntent(context.Background(), a.ID, "gold")
	require.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
}

func TestCardCheckoutReuseAndExpiry(t *testing.T) {
	f := newFixture(t)
	a := f.account("alice", "", 0)
	ctx := context.Background()

	rec, reused, err := f.entitlement.CreateCardCheckout(ctx, a.ID, domain.PackPremium)
	require.NoError(t, err)
	require.False(t, reused)
	require.Equal(t, "https://pay.example/cs_"+rec.Reference, rec.CheckoutURL)
	require.NotNil(t, rec.ProviderRef)
	require.Equal(t, 1, f.provider.calls)

	f.clock = f.clock.Add(10 * time.Minute)
	again, reused, err := f.entitlement.CreateCardCheckout(ctx, a.ID, domain.PackPremium)
	require.NoError(t, err)
	require.True(t, reused)
	require.Equal(t, rec.ID, again.ID)
	require.Equal(t, 1, f.provider.calls)

	f.clock = f.clock.Add(time.Hour)
	fresh, reused, err := f.entitlement.CreateCardCheckout(ctx, a.ID, domain.PackPremium)
	require.NoError(t, err)
	require.False(t, reused)
	require.NotEqual(t, rec.ID, fresh.ID)

	var old models.PaymentRecord
	require.NoError(t, f.db.First(&old, rec.ID).Error)
	require.Equal(t, domain.PaymentStatusCancelled, old.Status)
	require.Equal(t, int64(1), testutil.CountRows(t, f.db, &models.PaymentRecord{}, "status = ?", domain.PaymentStatusPending))
}

func TestCardCheckoutProviderFailure(t *testing.T) {
	f := newFixture(t)
	a := f.account("alice", "", 0)
	f.provider.fail = true

	_, _, err := f.entitlement.CreateCardCheckout(context.Background(), a.ID, domain.PackVIP)
	require.Equal(t, apperr.CodeStorageUnavailable, apperr.CodeOf(err))
	require.Equal(t, int64(1), testutil.CountRows(t, f.db, &models.PaymentRecord{}, "status = ?", domain.PaymentStatusFailed))
}

func TestCardCheckoutWhileSessionIsOpening(t *testing.T) {
	f := newFixture(t)
	a := f.account("alice", "", 0)
	ctx := context.Background()

	var concurrentErr error
	var concurrent *models.PaymentRecord
	f.provider.opening = func() {
		f.provider.opening = nil
		concurrent, _, concurrentErr = f.entitlement.CreateCardCheckout(ctx, a.ID, domain.PackPremium)
	}
	rec, reused, err := f.entitlement.CreateCardCheckout(ctx, a.ID, domain.PackPremium)
	require.NoError(t, err)
	require.False(t, reused)
	require.NotEmpty(t, rec.CheckoutURL)

	require.Nil(t, concurrent)
	require.Equal(t, apperr.CodeStorageUnavailable, apperr.CodeOf(concurrentErr))
	require.True(t, apperr.CodeOf(concurrentErr).Retryable())

	again, reused, err := f.entitlement.CreateCardCheckout(ctx, a.ID, domain.PackPremium)
	require.NoError(t, err)
	require.True(t, reused)
	require.Equal(t, rec.ID, again.ID)
	require.Equal(t, rec.CheckoutURL, again.CheckoutURL)
	require.NotNil(t, again.ProviderRef)
	require.Equal(t, 1, f.provider.calls)
}

func TestCardCheckoutReplacesAbandonedOpening(t *testing.T) {
	f := newFixture(t)
	a := f.account("alice", "", 0)
	ctx := context.Background()

	opening := f.clock.Add(checkoutOpenWindow)
	stale := &models.PaymentRecord{
		AccountID: a.ID,
		Kind:      domain.PaymentKindCard,
		Pack:      domain.PackPremium,
		AmountDue: 12000,
		Currency:  "EUR",
		Status:    domain.PaymentStatusPending,
		Reference: "MH-STAL-E000",
		ExpiresAt: &opening,
	}
	require.NoError(t, f.db.Create(stale).Error)

	_, _, err := f.entitlement.CreateCardCheckout(ctx, a.ID, domain.PackPremium)
	require.Equal(t, apperr.CodeStorageUnavailable, apperr.CodeOf(err))

	f.clock = f.clock.Add(checkoutOpenWindow + time.Second)
	rec, reused, err := f.entitlement.CreateCardCheckout(ctx, a.ID, domain.PackPremium)
	require.NoError(t, err)
	require.False(t, reused)
	require.NotEqual(t, stale.ID, rec.ID)
	require.NotEmpty(t, rec.CheckoutURL)

	require.NoError(t, f.db.First(stale, stale.ID).Error)
	require.Equal(t, domain.PaymentStatusCancelled, stale.Status)
	require.Equal(t, int64(1), testutil.CountRows(t, f.db, &models.PaymentRecord{}, "status = ?", domain.PaymentStatusPending))
}

func TestResolveTierFollowsPaymentsAndExpiry(t *testing.T) {
	f := newFixture(t)
	a := f.account("alice", "", 0)
	ctx := context.Background()

	tier, err := f.entitlement.ResolveTier(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TierPublic, tier)

	f.pay(a.ID, domain.PackPremium)
	tier, err = f.entitlement.ResolveTier(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TierPremium, tier)

	ok, err := f.entitlement.HasAccess(ctx, a.ID, domain.TierMember)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = f.entitlement.HasAccess(ctx, a.ID, domain.TierVIP)
	require.NoError(t, err)
	require.False(t, ok)

	f.pay(a.ID, domain.PackMembership)
	tier, err = f.entitlement.ResolveTier(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TierPremium, tier, "a lower pack never lowers the tier")

	f.clock = f.clock.Add(3 * 365 * 24 * time.Hour)
	tier, err = f.entitlement.ResolveTier(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TierPublic, tier)
}

func TestResolveTierStaffAndMissingAccount(t *testing.T) {
	f := newFixture(t)
	mod := f.account("mod", domain.RoleModerator, 0)
	ctx := context.Background()

	tier, err := f.entitlement.ResolveTier(ctx, mod.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TierVIP, tier)

	_, err = f.entitlement.ResolveTier(ctx, 9999)
	require.ErrorIs(t, err, apperr.ErrAccountNotFound)
}
