package services

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"referral-shop/internal/apperrors"
	"referral-shop/internal/models"
)

func TestDashboardStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	referrer := env.register(t, "Anshul", "a@example.com", "")
	referred := env.register(t, "Bella", "b@example.com", referrer.ReferralCode)
	env.buy(t, referred.ID, 99)
	env.buy(t, referred.ID, 50)

	stats, err := env.dashboard.GetStats(ctx, referred.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bella", stats.User.Name)
	assert.Equal(t, int64(2), stats.Purchases.Total)
	assert.Equal(t, "149.00", stats.Purchases.TotalSpent)
	assert.True(t, stats.Purchases.HasFirstPurchase)
	assert.NotNil(t, stats.Purchases.FirstPurchaseDate)
	assert.Equal(t, 2, stats.Credits.Current)
	assert.Equal(t, 2, stats.Credits.EarnedFromOwnPurchase)
	assert.Zero(t, stats.Credits.EarnedFromReferrals)

	referrerStats, err := env.dashboard.GetStats(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), referrerStats.TotalReferrals)
	assert.Equal(t, int64(1), referrerStats.SuccessfulReferrals)
	assert.Equal(t, "100.00", referrerStats.Referrals.ConversionRate)
	assert.Equal(t, int64(2), referrerStats.Credits.EarnedFromReferrals)
	assert.False(t, referrerStats.Purchases.HasFirstPurchase)
	assert.Equal(t, "0.00", referrerStats.Purchases.TotalSpent)
}

func TestDashboardStatsOwnPurchaseWithoutReferral(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "Solo", "solo@example.com", "")
	env.buy(t, user.ID, 10)

	stats, err := env.dashboard.GetStats(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, stats.Purchases.HasFirstPurchase)
	assert.Zero(t, stats.Credits.EarnedFromOwnPurchase)

	_, err = env.dashboard.GetStats(context.Background(), 9999)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestDashboardMetrics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	referrer := env.register(t, "Anshul", "a@example.com", "")
	referred := env.register(t, "Bella", "b@example.com", referrer.ReferralCode)

	now := time.Now().UTC()
	env.dashboard.now = func() time.Time { return now }
	env.purchases.now = func() time.Time { return now }
	for i := 0; i < 7; i++ {
		env.buy(t, referrer.ID, 10)
	}
	env.buy(t, referred.ID, 99)

	metrics, err := env.dashboard.GetMetrics(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Len(t, metrics.RecentPurchases, 5)
	require.Len(t, metrics.RecentReferrals, 1)
	assert.Equal(t, "Bella", metrics.RecentReferrals[0].ReferredUser.Name)

	require.Len(t, metrics.Trends.Purchases, 1)
	assert.Equal(t, int64(7), metrics.Trends.Purchases[0].Count)
	assert.True(t, decimal.NewFromInt(70).Equal(metrics.Trends.Purchases[0].TotalAmount))
	assert.Equal(t, int(now.Month()), metrics.Trends.Purchases[0].Month)

	require.Len(t, metrics.Trends.Referrals, 1)
	assert.Equal(t, int64(1), metrics.Trends.Referrals[0].Count)
	assert.Equal(t, int64(1), metrics.Trends.Referrals[0].Converted)

	assert.Equal(t, int64(1), metrics.Summary.TotalReferred)
	assert.Equal(t, int64(1), metrics.Summary.TotalConverted)
	assert.Equal(t, 2, metrics.Summary.TotalCredits)
}

func TestDashboardActivity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	referrer := env.register(t, "Anshul", "a@example.com", "")
	env.register(t, "Bella", "b@example.com", referrer.ReferralCode)

	env.purchases.now = func() time.Time { return time.Now().Add(time.Hour) }
	env.buy(t, referrer.ID, 25)

	feed, err := env.dashboard.GetActivity(ctx, referrer.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, feed.Activities, 2)

	assert.Equal(t, ActivityPurchase, feed.Activities[0].Type)
	assert.Equal(t, "Purchased Premium Plan", feed.Activities[0].Description)
	require.NotNil(t, feed.Activities[0].FirstPurchase)
	assert.True(t, *feed.Activities[0].FirstPurchase)

	assert.Equal(t, ActivityReferral, feed.Activities[1].Type)
	assert.Equal(t, "Referred Bella", feed.Activities[1].Description)
	assert.Equal(t, models.ReferralStatusPending, feed.Activities[1].Status)
	assert.Equal(t, int64(2), feed.Pagination.TotalItems)

	page, err := env.dashboard.GetActivity(ctx, referrer.ID, 2, 1)
	require.NoError(t, err)
	require.Len(t, page.Activities, 1)
	assert.Equal(t, ActivityReferral, page.Activities[0].Type)

	beyond, err := env.dashboard.GetActivity(ctx, referrer.ID, 5, 10)
	require.NoError(t, err)
	assert.Empty(t, beyond.Activities)

	huge, err := env.dashboard.GetActivity(ctx, referrer.ID, math.MaxInt, 10)
	require.NoError(t, err)
	assert.Empty(t, huge.Activities)
	assert.Equal(t, MaxPage, huge.Pagination.CurrentPage)
	assert.False(t, huge.Pagination.HasNextPage)
}

func TestPurchaseTrendsGroupByMonth(t *testing.T) {
	jan := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)

	trends := purchaseTrends([]models.Purchase{
		{Amount: decimal.NewFromInt(5), PurchaseDate: feb},
		{Amount: decimal.NewFromInt(10), PurchaseDate: jan},
		{Amount: decimal.NewFromInt(15), PurchaseDate: jan},
	})

	require.Len(t, trends, 2)
	assert.Equal(t, 1, trends[0].Month)
	assert.Equal(t, int64(2), trends[0].Count)
	assert.True(t, decimal.NewFromInt(25).Equal(trends[0].TotalAmount))
	assert.Equal(t, 2, trends[1].Month)
}
