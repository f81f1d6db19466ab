package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"referral-shop/internal/apperrors"
)

func TestCreateReferralRejectsSelfReferral(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "Anshul", "a@example.com", "")

	_, err := env.referrals.CreateReferral(ctx, user.ID, user.ID)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	assert.Equal(t, "User cannot refer themselves", apperrors.PublicMessage(err))

	counts, err := env.repo.CountReferrals(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, counts.Total)
}

func TestCreateReferralRejectsDuplicatePair(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.register(t, "Anshul", "a@example.com", "")
	other := env.register(t, "Bella", "b@example.com", user.ReferralCode)

	_, err := env.referrals.CreateReferral(ctx, user.ID, other.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	counts, err := env.repo.CountReferrals(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Total)
}

func TestReferralStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	referrer := env.register(t, "Anshul", "a@example.com", "")
	first := env.register(t, "Bella", "b@example.com", referrer.ReferralCode)
	env.register(t, "Carl", "c@example.com", referrer.ReferralCode)

	env.buy(t, first.ID, 99)

	stats, err := env.referrals.GetStats(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalReferredUsers)
	assert.Equal(t, int64(1), stats.ConvertedUsers)
	assert.Equal(t, int64(1), stats.PendingUsers)
	assert.Equal(t, 2, stats.TotalCreditsEarned)
	assert.Equal(t, int64(2), stats.CreditsFromReferrals)
	assert.Equal(t, referrer.ReferralCode, stats.ReferralCode)
	assert.Equal(t, "50.00", stats.ConversionRate)

	empty, err := env.referrals.GetStats(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.00", empty.ConversionRate)

	_, err = env.referrals.GetStats(ctx, 9999)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestReferralLink(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "Anshul", "a@example.com", "")

	link, err := env.referrals.GetLink(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ReferralCode, link.ReferralCode)
	assert.Equal(t, "http://localhost:3000/register?ref="+user.ReferralCode, link.ReferralLink)
	assert.Contains(t, link.ShareMessage, user.ReferralCode)
}

func TestValidateCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "Anshul", "a@example.com", "")

	valid, err := env.referrals.ValidateCode(ctx, " "+user.ReferralCode+" ")
	require.NoError(t, err)
	assert.True(t, valid.Valid)
	assert.Equal(t, "Anshul", valid.ReferrerName)
	assert.Equal(t, user.ReferralCode, valid.ReferralCode)

	invalid, err := env.referrals.ValidateCode(ctx, "NOPE")
	require.NoError(t, err)
	assert.False(t, invalid.Valid)
	assert.Equal(t, "Invalid referral code", invalid.Message)

	_, err = env.referrals.ValidateCode(ctx, "  ")
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestReferralHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	referrer := env.register(t, "Anshul", "a@example.com", "")
	env.register(t, "Bella", "b@example.com", referrer.ReferralCode)
	env.register(t, "Carl", "c@example.com", referrer.ReferralCode)
	env.register(t, "Dana", "d@example.com", referrer.ReferralCode)

	history, err := env.referrals.GetHistory(ctx, referrer.ID, 1, 2)
	require.NoError(t, err)
	require.Len(t, history.Referrals, 2)
	assert.Equal(t, int64(3), history.Pagination.TotalItems)
	assert.Equal(t, 2, history.Pagination.TotalPages)
	for _, entry := range history.Referrals {
		require.NotNil(t, entry.ReferredUser)
		assert.NotEmpty(t, entry.ReferredUser.Email)
	}

	page2, err := env.referrals.GetHistory(ctx, referrer.ID, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page2.Referrals, 1)
	assert.False(t, page2.Pagination.HasNextPage)
	assert.True(t, page2.Pagination.HasPrevPage)
}
