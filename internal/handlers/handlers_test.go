package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"referral-shop/internal/auth"
	"referral-shop/internal/config"
	"referral-shop/internal/database"
	"referral-shop/internal/repository"
	"referral-shop/internal/services"
)

type envelope struct {
	Status     string             `json:"status"`
	StatusCode int                `json:"statusCode"`
	Message    string             `json:"message"`
	Data       json.RawMessage    `json:"data"`
	Errors     []ValidationDetail `json:"errors"`
}

type testServer struct {
	router *gin.Engine
	redis  *miniredis.Miniredis
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth.InitJWT("test_secret", time.Hour)

	db, err := database.Open(config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	mr := miniredis.RunT(t)
	denylist := services.NewTokenDenylist(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	log := zaptest.NewLogger(t)
	repo := repository.NewRepository(db)
	credits := config.DefaultReferralConfig()
	referrals := services.NewReferralService(repo, credits, "http://localhost:3000", log)

	router := gin.New()
	RegisterRoutes(router, Handlers{
		Auth:      NewAuthHandler(services.NewAuthService(repo, referrals, log), denylist),
		Referral:  NewReferralHandler(referrals),
		Purchase:  NewPurchaseHandler(services.NewPurchaseService(repo, credits, log)),
		Dashboard: NewDashboardHandler(services.NewDashboardService(repo, credits, log)),
	}, denylist)

	return &testServer{router: router, redis: mr}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

type authData struct {
	User struct {
		ID           uint   `json:"id"`
		Email        string `json:"email"`
		Credits      int    `json:"credits"`
		ReferrerID   *uint  `json:"referrerId"`
		PasswordHash string `json:"passwordHash"`
	} `json:"user"`
	Token        string `json:"token"`
	ReferralCode string `json:"referralCode"`
}

func (s *testServer) register(t *testing.T, name, email, code string) authData {
	t.Helper()

	status, env := s.do(t, http.MethodPost, "/api/v2/auth/register", "", gin.H{
		"name":         name,
		"email":        email,
		"password":     "secret123",
		"referralCode": code,
	})
	require.Equal(t, http.StatusCreated, status, env.Message)

	var data authData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data
}

func TestReferralFlow(t *testing.T) {
	s := newTestServer(t)

	anshul := s.register(t, "Anshul", "anshul@example.com", "")
	assert.Regexp(t, `^ANSH[A-Z0-9]{6}$`, anshul.ReferralCode)
	assert.Empty(t, anshul.User.PasswordHash)

	bella := s.register(t, "Bella", "bella@example.com", anshul.ReferralCode)
	require.NotNil(t, bella.User.ReferrerID)
	assert.Equal(t, anshul.User.ID, *bella.User.ReferrerID)

	status, env := s.do(t, http.MethodPost, "/api/v2/purchase/create", bella.Token, gin.H{
		"productId": "pdf-pro", "productName": "PDF Pro", "amount": 99,
	})
	require.Equal(t, http.StatusCreated, status, env.Message)

	var result struct {
		IsFirstPurchase   bool `json:"isFirstPurchase"`
		ReferralProcessed bool `json:"referralProcessed"`
		CreditsAwarded    int  `json:"creditsAwarded"`
		TotalCredits      int  `json:"totalCredits"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.True(t, result.IsFirstPurchase)
	assert.True(t, result.ReferralProcessed)
	assert.Equal(t, 2, result.CreditsAwarded)
	assert.Equal(t, 2, result.TotalCredits)

	status, env = s.do(t, http.MethodPost, "/api/v2/purchase/create", bella.Token, gin.H{
		"productId": "pdf-pro", "productName": "PDF Pro", "amount": "50.00",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Purchase successful!", env.Message)

	status, env = s.do(t, http.MethodGet, "/api/v2/referral/stats", anshul.Token, nil)
	require.Equal(t, http.StatusOK, status)
	var stats services.ReferralStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, int64(1), stats.ConvertedUsers)
	assert.Equal(t, 2, stats.TotalCreditsEarned)
	assert.Equal(t, "100.00", stats.ConversionRate)

	status, env = s.do(t, http.MethodGet, "/api/v2/purchase/history?page=1&limit=1", bella.Token, nil)
	require.Equal(t, http.StatusOK, status)
	var history struct {
		Purchases  []json.RawMessage   `json:"purchases"`
		TotalSpent decimal.Decimal     `json:"totalSpent"`
		Pagination services.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &history))
	assert.Len(t, history.Purchases, 1)
	assert.True(t, decimal.NewFromInt(149).Equal(history.TotalSpent), history.TotalSpent.String())
	assert.Equal(t, 2, history.Pagination.TotalPages)

	status, _ = s.do(t, http.MethodGet, fmt.Sprintf("/api/v2/purchase/user/%d", bella.User.ID), anshul.Token, nil)
	assert.Equal(t, http.StatusOK, status)

	for _, path := range []string{"/api/v2/dashboard/stats", "/api/v2/dashboard/metrics", "/api/v2/dashboard/activity", "/api/v2/referral/history", "/api/v2/referral/link"} {
		status, env = s.do(t, http.MethodGet, path, anshul.Token, nil)
		assert.Equal(t, http.StatusOK, status, path)
		assert.Equal(t, "success", env.Status, path)
	}
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, http.MethodPost, "/api/v2/auth/register", "", gin.H{
		"name": "A", "email": "not-an-email", "password": "123",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, http.StatusBadRequest, env.StatusCode)

	fields := map[string]bool{}
	for _, e := range env.Errors {
		fields[e.Field] = true
	}
	assert.True(t, fields["name"])
	assert.True(t, fields["email"])
	assert.True(t, fields["password"])

	s.register(t, "Anshul", "anshul@example.com", "")
	status, env = s.do(t, http.MethodPost, "/api/v2/auth/register", "", gin.H{
		"name": "Other", "email": "ANSHUL@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "User with this email already exists", env.Message)
}

func TestLoginErrors(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "Anshul", "anshul@example.com", "")

	status, env := s.do(t, http.MethodPost, "/api/v2/auth/login", "", gin.H{
		"email": "anshul@example.com", "password": "wrong-pass",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid password. Please try again.", env.Message)

	status, _ = s.do(t, http.MethodPost, "/api/v2/auth/login", "", gin.H{
		"email": "ghost@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusNotFound, status)

	status, env = s.do(t, http.MethodPost, "/api/v2/auth/login", "", gin.H{
		"email": "anshul@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", env.Status)

	var data map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Contains(t, data, "user")
	assert.Contains(t, data, "token")
	assert.NotContains(t, data, "referralCode")
}

func TestPurchaseValidation(t *testing.T) {
	s := newTestServer(t)
	user := s.register(t, "Anshul", "anshul@example.com", "")

	status, env := s.do(t, http.MethodPost, "/api/v2/purchase/create", user.Token, gin.H{
		"productId": "p", "productName": "P",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotEmpty(t, env.Errors)
	assert.Equal(t, "amount", env.Errors[0].Field)

	status, env = s.do(t, http.MethodPost, "/api/v2/purchase/create", user.Token, gin.H{
		"productId": "p", "productName": "P", "amount": -5,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Amount cannot be negative", env.Message)

	status, env = s.do(t, http.MethodPost, "/api/v2/purchase/create", user.Token, gin.H{
		"productId": "p", "productName": "P", "amount": 1e10,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "error", env.Status)

	status, _ = s.do(t, http.MethodPost, "/api/v2/purchase/create", "", gin.H{
		"productId": "p", "productName": "P", "amount": 5,
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(t, http.MethodGet, "/api/v2/purchase/user/abc", user.Token, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodGet, "/api/v2/purchase/user/9999", user.Token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestValidateReferralCode(t *testing.T) {
	s := newTestServer(t)
	user := s.register(t, "Anshul", "anshul@example.com", "")

	status, env := s.do(t, http.MethodPost, "/api/v2/referral/validate", "", gin.H{"referralCode": user.ReferralCode})
	require.Equal(t, http.StatusOK, status)
	var result services.CodeValidation
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.True(t, result.Valid)
	assert.Equal(t, "Anshul", result.ReferrerName)

	status, env = s.do(t, http.MethodPost, "/api/v2/referral/validate", "", gin.H{"referralCode": "BOGUS"})
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.False(t, result.Valid)

	status, _ = s.do(t, http.MethodPost, "/api/v2/referral/validate", "", gin.H{})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestLogoutRevokesToken(t *testing.T) {
	s := newTestServer(t)
	user := s.register(t, "Anshul", "anshul@example.com", "")

	status, _ := s.do(t, http.MethodGet, "/api/v2/auth/me", user.Token, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = s.do(t, http.MethodPost, "/api/v2/auth/logout", user.Token, nil)
	require.Equal(t, http.StatusOK, status)

	status, env := s.do(t, http.MethodGet, "/api/v2/auth/me", user.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, env.Message, "revoked")
}

func TestOversizedPageReturnsEmptyPage(t *testing.T) {
	s := newTestServer(t)
	user := s.register(t, "Anshul", "anshul@example.com", "")

	for _, path := range []string{
		"/api/v2/dashboard/activity?page=9223372036854775807",
		"/api/v2/purchase/history?page=9223372036854775807",
		"/api/v2/referral/history?page=9223372036854775807",
	} {
		status, env := s.do(t, http.MethodGet, path, user.Token, nil)
		assert.Equal(t, http.StatusOK, status, path)
		assert.Equal(t, "success", env.Status, path)
	}
}

func TestHealthAndNotFound(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	status, env := s.do(t, http.MethodGet, "/api/v2/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "error", env.Status)
}
