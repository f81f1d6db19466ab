package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"referral-shop/internal/auth"
	"referral-shop/internal/config"
	"referral-shop/internal/database"
	"referral-shop/internal/models"
	"referral-shop/internal/repository"
)

type testEnv struct {
	repo      *repository.Repository
	auth      *AuthService
	referrals *ReferralService
	purchases *PurchaseService
	dashboard *DashboardService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	auth.InitJWT("test_secret", 0)

	db, err := database.Open(config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	log := zaptest.NewLogger(t)
	repo := repository.NewRepository(db)
	credits := config.DefaultReferralConfig()
	referrals := NewReferralService(repo, credits, "http://localhost:3000", log)

	return &testEnv{
		repo:      repo,
		auth:      NewAuthService(repo, referrals, log),
		referrals: referrals,
		purchases: NewPurchaseService(repo, credits, log),
		dashboard: NewDashboardService(repo, credits, log),
	}
}

func (e *testEnv) register(t *testing.T, name, email, code string) *models.User {
	t.Helper()

	result, err := e.auth.Register(context.Background(), RegisterInput{
		Name:         name,
		Email:        email,
		Password:     "secret123",
		ReferralCode: code,
	})
	require.NoError(t, err)
	return result.User
}

func (e *testEnv) buy(t *testing.T, userID uint, amount int64) *PurchaseResult {
	t.Helper()

	result, err := e.purchases.CreatePurchase(context.Background(), PurchaseInput{
		UserID:      userID,
		ProductID:   "prod-1",
		ProductName: "Premium Plan",
		Amount:      decimal.NewFromInt(amount),
	})
	require.NoError(t, err)
	return result
}

func (e *testEnv) credits(t *testing.T, userID uint) int {
	t.Helper()

	user, err := e.repo.GetUserByID(context.Background(), userID)
	require.NoError(t, err)
	return user.Credits
}
