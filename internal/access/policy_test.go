package access

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/homework-access/internal/models"
)

var testNow = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := testNow.Add(d)
	return &t
}

func daysFromNow(n int) *time.Time {
	t := testNow.AddDate(0, 0, n)
	return &t
}

func verifiedTx(exp, revocation *time.Time) models.Transaction {
	return models.Transaction{
		ID:             "tx-1",
		OriginalID:     "orig-1",
		ProductID:      testProductID,
		PurchaseDate:   testNow.AddDate(0, -1, 0),
		ExpirationDate: exp,
		RevocationDate: revocation,
		Verification:   models.Verified,
	}
}

func TestResolveEntitlement(t *testing.T) {
	tests := []struct {
		name       string
		tx         models.Transaction
		wantStatus models.AccessStatus
		wantDays   *int
		wantPush   *models.AccessStatus
	}{
		{
			name:       "no expiration date",
			tx:         verifiedTx(nil, nil),
			wantStatus: models.StatusExpired,
		},
		{
			name:       "expires in ten days",
			tx:         verifiedTx(daysFromNow(10), nil),
			wantStatus: models.StatusActive,
			wantDays:   ptr(10),
			wantPush:   ptr(models.StatusActive),
		},
		{
			name:       "expires later today",
			tx:         verifiedTx(at(2*time.Hour), nil),
			wantStatus: models.StatusActive,
			wantDays:   ptr(0),
			wantPush:   ptr(models.StatusActive),
		},
		{
			name:       "expired two days ago with grace in three days",
			tx:         verifiedTx(daysFromNow(-2), daysFromNow(3)),
			wantStatus: models.StatusGracePeriod,
			wantDays:   ptr(3),
		},
		{
			name:       "grace ends later today resolves expired",
			tx:         verifiedTx(daysFromNow(-2), at(3*time.Hour)),
			wantStatus: models.StatusExpired,
			wantPush:   ptr(models.StatusExpired),
		},
		{
			name:       "grace already over",
			tx:         verifiedTx(daysFromNow(-5), daysFromNow(-1)),
			wantStatus: models.StatusExpired,
			wantPush:   ptr(models.StatusExpired),
		},
		{
			name:       "expired without grace",
			tx:         verifiedTx(daysFromNow(-1), nil),
			wantStatus: models.StatusExpired,
			wantPush:   ptr(models.StatusExpired),
		},
		{
			name:       "expiration exactly now is expired",
			tx:         verifiedTx(at(0), nil),
			wantStatus: models.StatusExpired,
			wantPush:   ptr(models.StatusExpired),
		},
		{
			name: "store grace period date",
			tx: func() models.Transaction {
				tx := verifiedTx(daysFromNow(-1), nil)
				tx.GracePeriodExpiresDate = daysFromNow(6)
				return tx
			}(),
			wantStatus: models.StatusGracePeriod,
			wantDays:   ptr(6),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, push := resolveEntitlement(tt.tx, testNow, time.UTC)
			assert.Equal(t, tt.wantStatus, state.Status)
			assert.Equal(t, tt.wantDays, state.DaysRemaining)
			if state.DaysRemaining != nil {
				assert.GreaterOrEqual(t, *state.DaysRemaining, 0)
			}
			if state.Status == models.StatusGracePeriod {
				assert.Positive(t, *state.DaysRemaining, "grace period never has zero days")
			}

			if tt.wantPush == nil {
				assert.Nil(t, push)
				return
			}
			require.NotNil(t, push)
			assert.Equal(t, *tt.wantPush, push.status)
			if push.status == models.StatusActive {
				require.NotNil(t, push.endDate)
				assert.True(t, tt.tx.ExpirationDate.Equal(*push.endDate))
				assert.True(t, tt.tx.ExpirationDate.Equal(*state.RenewalOrExpiryDate))
			} else {
				assert.Nil(t, push.endDate)
			}
		})
	}
}

func TestResolveEntitlement_ActiveDaysConsistentWithRenewalDate(t *testing.T) {
	for n := 1; n <= 400; n += 37 {
		state, _ := resolveEntitlement(verifiedTx(daysFromNow(n), nil), testNow, time.UTC)
		require.Equal(t, models.StatusActive, state.Status)
		require.NotNil(t, state.DaysRemaining)
		assert.Equal(t, n, *state.DaysRemaining)
		assert.Equal(t, state.DaysRemaining, DaysRemaining(state, testNow, time.UTC))
	}
}

func TestResolveTrial(t *testing.T) {
	tests := []struct {
		name       string
		status     *models.TrialStatus
		wantStatus models.AccessStatus
		wantDays   *int
	}{
		{
			name:       "trial ends tomorrow",
			status:     &models.TrialStatus{SubscriptionStatus: "trial", SubscriptionEndDate: daysFromNow(1)},
			wantStatus: models.StatusTrial,
			wantDays:   ptr(1),
		},
		{
			name:       "trial ends early tomorrow counts as one calendar day",
			status:     &models.TrialStatus{SubscriptionStatus: "trial", SubscriptionEndDate: at(10 * time.Hour)},
			wantStatus: models.StatusTrial,
			wantDays:   ptr(1),
		},
		{
			name:       "trial ends later today",
			status:     &models.TrialStatus{SubscriptionStatus: "trial", SubscriptionEndDate: at(time.Hour)},
			wantStatus: models.StatusExpired,
		},
		{
			name:       "trial ended",
			status:     &models.TrialStatus{SubscriptionStatus: "trial", SubscriptionEndDate: daysFromNow(-3)},
			wantStatus: models.StatusExpired,
		},
		{
			name:       "status is not trial",
			status:     &models.TrialStatus{SubscriptionStatus: "active", SubscriptionEndDate: daysFromNow(20)},
			wantStatus: models.StatusExpired,
		},
		{
			name:       "mixed case status",
			status:     &models.TrialStatus{SubscriptionStatus: " Trial ", SubscriptionEndDate: daysFromNow(7)},
			wantStatus: models.StatusTrial,
			wantDays:   ptr(7),
		},
		{
			name:       "missing end date",
			status:     &models.TrialStatus{SubscriptionStatus: "trial"},
			wantStatus: models.StatusExpired,
		},
		{
			name:       "no response",
			wantStatus: models.StatusExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := resolveTrial(tt.status, testNow, time.UTC)
			assert.Equal(t, tt.wantStatus, state.Status)
			assert.Equal(t, tt.wantDays, state.DaysRemaining)
		})
	}
}

func TestResolveTrial_UsesLocationForCalendarDays(t *testing.T) {
	// 23:30 UTC 10 марта — уже 11 марта в UTC+3
	now := time.Date(2025, 3, 10, 23, 30, 0, 0, time.UTC)
	end := time.Date(2025, 3, 11, 20, 0, 0, 0, time.UTC)
	status := &models.TrialStatus{SubscriptionStatus: "trial", SubscriptionEndDate: &end}

	assert.Equal(t, models.StatusTrial, resolveTrial(status, now, time.UTC).Status)
	assert.Equal(t, models.StatusExpired, resolveTrial(status, now, time.FixedZone("MSK", 3*60*60)).Status)
}

func TestDaysRemaining(t *testing.T) {
	tests := []struct {
		name  string
		state models.AccessState
		want  *int
	}{
		{name: "unknown", state: models.UnknownState()},
		{name: "expired", state: models.ExpiredState()},
		{name: "trial", state: models.AccessState{Status: models.StatusTrial, RenewalOrExpiryDate: daysFromNow(4), DaysRemaining: ptr(4)}, want: ptr(4)},
		{name: "grace", state: models.AccessState{Status: models.StatusGracePeriod, RenewalOrExpiryDate: daysFromNow(2), DaysRemaining: ptr(2)}, want: ptr(2)},
		{name: "active from renewal date", state: models.AccessState{Status: models.StatusActive, RenewalOrExpiryDate: daysFromNow(12), DaysRemaining: ptr(99)}, want: ptr(12)},
		{name: "active without date", state: models.AccessState{Status: models.StatusActive}},
		{name: "negative stored value is floored", state: models.AccessState{Status: models.StatusTrial, DaysRemaining: ptr(-2)}, want: ptr(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysRemaining(tt.state, testNow, time.UTC))
		})
	}
}

func TestHasAccess(t *testing.T) {
	for status, want := range map[models.AccessStatus]bool{
		models.StatusUnknown:     false,
		models.StatusTrial:       true,
		models.StatusActive:      true,
		models.StatusGracePeriod: true,
		models.StatusExpired:     false,
	} {
		assert.Equal(t, want, HasAccess(models.AccessState{Status: status}), string(status))
	}
}

func TestSelectEntitlement(t *testing.T) {
	older := verifiedTx(daysFromNow(5), nil)
	newer := verifiedTx(daysFromNow(30), nil)
	newer.ID = "tx-2"
	unverified := verifiedTx(daysFromNow(90), nil)
	unverified.ID = "tx-forged"
	unverified.Verification = models.Unverified
	other := verifiedTx(daysFromNow(365), nil)
	other.ID = "tx-other"
	other.ProductID = "com.other.product"
	noExpiry := verifiedTx(nil, nil)
	noExpiry.ID = "tx-noexp"

	got := selectEntitlement([]models.Transaction{noExpiry, older, unverified, newer, other}, testProductID)
	require.NotNil(t, got)
	assert.Equal(t, "tx-2", got.ID)

	assert.Nil(t, selectEntitlement([]models.Transaction{unverified, other}, testProductID))
	assert.Nil(t, selectEntitlement(nil, testProductID))

	only := selectEntitlement([]models.Transaction{noExpiry}, testProductID)
	require.NotNil(t, only)
	assert.Equal(t, "tx-noexp", only.ID)
}

func ptr[T any](v T) *T {
	return &v
}
