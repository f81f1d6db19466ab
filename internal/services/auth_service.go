package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"referral-shop/internal/apperrors"
	"referral-shop/internal/auth"
	"referral-shop/internal/models"
	"referral-shop/internal/repository"
	"referral-shop/internal/utils"
)

const codeAttemptsPerLength = 10

// RegisterInput carries the fields accepted at registration
type RegisterInput struct {
	Name         string
	Email        string
	Password     string
	ReferralCode string
}

// AuthResult is returned by register, login and refresh
type AuthResult struct {
	User         *models.User `json:"user"`
	Token        string       `json:"token"`
	ReferralCode string       `json:"referralCode,omitempty"`
}

// AuthService handles authentication business logic
type AuthService struct {
	repo         *repository.Repository
	referrals    *ReferralService
	log          *zap.Logger
	generateCode func(name string, suffixLength int) (string, error)
	codeTaken    func(ctx context.Context, code string) (bool, error)
}

// NewAuthService creates a new AuthService
func NewAuthService(repo *repository.Repository, referrals *ReferralService, log *zap.Logger) *AuthService {
	return &AuthService{
		repo:         repo,
		referrals:    referrals,
		log:          log,
		generateCode: utils.GenerateReferralCode,
		codeTaken:    repo.ReferralCodeExists,
	}
}

// Register creates an account, links it to a referrer when a valid code is
// given, and issues a token. A bad referral code never fails registration.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	email := models.NormalizeEmail(input.Email)

	_, err := s.repo.GetUserByEmail(ctx, email)
	if err == nil {
		return nil, apperrors.Validation("User with this email already exists")
	}
	if !repository.IsNotFound(err) {
		return nil, apperrors.Internal("Failed to register user", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Internal("Failed to register user", fmt.Errorf("hash password: %w", err))
	}

	user := &models.User{
		Name:         input.Name,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.createUser(ctx, user); err != nil {
		return nil, err
	}

	if input.ReferralCode != "" {
		s.linkReferrer(ctx, user, input.ReferralCode)
	}

	s.log.Info("User registered",
		zap.Uint("user_id", user.ID),
		zap.String("referral_code", user.ReferralCode),
		zap.Bool("referred", user.ReferrerID != nil),
	)

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	result.ReferralCode = user.ReferralCode
	return result, nil
}

// createUser inserts the user with a fresh referral code. A unique violation
// on the code means another registration claimed it after the check, so a new
// code is drawn once.
func (s *AuthService) createUser(ctx context.Context, user *models.User) error {
	for attempt := 1; ; attempt++ {
		code, err := s.uniqueReferralCode(ctx, user.Name)
		if err != nil {
			return apperrors.Internal("Failed to generate referral code", err)
		}
		user.ID = 0
		user.ReferralCode = code

		err = s.repo.CreateUser(ctx, user)
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.Internal("Failed to register user", err)
		}
		if _, lookupErr := s.repo.GetUserByEmail(ctx, user.Email); lookupErr == nil {
			return apperrors.Validation("User with this email already exists")
		}
		if attempt == 2 {
			return apperrors.Internal("Failed to register user", err)
		}
		s.log.Warn("Referral code claimed concurrently, drawing another", zap.String("code", code))
	}
}

// linkReferrer records the referral relationship. Failures are logged only.
func (s *AuthService) linkReferrer(ctx context.Context, user *models.User, code string) {
	referrer, err := s.repo.GetUserByReferralCode(ctx, code)
	if err != nil {
		if repository.IsNotFound(err) {
			s.log.Warn("Referral code not found at registration",
				zap.Uint("user_id", user.ID),
				zap.String("code", models.NormalizeReferralCode(code)),
			)
		} else {
			s.log.Error("Failed to look up referral code", zap.Uint("user_id", user.ID), zap.Error(err))
		}
		return
	}

	if _, err := s.referrals.CreateReferral(ctx, referrer.ID, user.ID); err != nil {
		s.log.Warn("Failed to create referral",
			zap.Uint("referrer_id", referrer.ID),
			zap.Uint("referred_id", user.ID),
			zap.Error(err),
		)
		return
	}
	user.ReferrerID = &referrer.ID
}

// uniqueReferralCode tries short suffixes first, then longer ones, and gives
// up after a bounded number of collisions
func (s *AuthService) uniqueReferralCode(ctx context.Context, name string) (string, error) {
	for _, length := range []int{utils.ReferralSuffixLength, utils.ReferralFallbackSuffixLength} {
		for i := 0; i < codeAttemptsPerLength; i++ {
			code, err := s.generateCode(name, length)
			if err != nil {
				return "", err
			}
			exists, err := s.codeTaken(ctx, code)
			if err != nil {
				return "", fmt.Errorf("check referral code: %w", err)
			}
			if !exists {
				return code, nil
			}
		}
	}
	return "", fmt.Errorf("no unique referral code after %d attempts", 2*codeAttemptsPerLength)
}

// Login verifies credentials and issues a token
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NotFound("No user found with this email. Please create an account first.")
		}
		return nil, apperrors.Internal("Failed to log in", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.Unauthorized("Invalid password. Please try again.")
	}

	s.log.Info("User logged in", zap.Uint("user_id", user.ID))
	return s.issue(user)
}

// GetUserByID returns the user or a NotFound error
func (s *AuthService) GetUserByID(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NotFound("User not found")
		}
		return nil, apperrors.Internal("Failed to load user", err)
	}
	return user, nil
}

// RefreshToken issues a fresh token for an authenticated user
func (s *AuthService) RefreshToken(ctx context.Context, userID uint) (*AuthResult, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := auth.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, apperrors.Internal("Failed to generate token", err)
	}
	return &AuthResult{User: user, Token: token}, nil
}
