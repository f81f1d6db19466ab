package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"referral-shop/internal/apperrors"
	"referral-shop/internal/config"
	"referral-shop/internal/models"
	"referral-shop/internal/repository"
)

// ReferralStats summarizes a user's referral performance
type ReferralStats struct {
	TotalReferredUsers   int64  `json:"totalReferredUsers"`
	ConvertedUsers       int64  `json:"convertedUsers"`
	PendingUsers         int64  `json:"pendingUsers"`
	TotalCreditsEarned   int    `json:"totalCreditsEarned"`
	CreditsFromReferrals int64  `json:"creditsFromReferrals"`
	ReferralCode         string `json:"referralCode"`
	ConversionRate       string `json:"conversionRate"`
}

// ReferralLink is what a user shares to invite others
type ReferralLink struct {
	ReferralCode string `json:"referralCode"`
	ReferralLink string `json:"referralLink"`
	ShareMessage string `json:"shareMessage"`
}

// CodeValidation is the answer to a public referral code check
type CodeValidation struct {
	Valid        bool   `json:"valid"`
	ReferrerName string `json:"referrerName,omitempty"`
	ReferralCode string `json:"referralCode,omitempty"`
	Message      string `json:"message"`
}

// ReferredUser is the public view of a referred account
type ReferredUser struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReferralEntry is one row of the referral history
type ReferralEntry struct {
	ID             uint                  `json:"id"`
	ReferredUser   *ReferredUser         `json:"referredUser,omitempty"`
	Status         models.ReferralStatus `json:"status"`
	Credited       bool                  `json:"credited"`
	ConversionDate *time.Time            `json:"conversionDate,omitempty"`
	CreatedAt      time.Time             `json:"createdAt"`
}

// ReferralHistory is a page of referrals made by a user
type ReferralHistory struct {
	Referrals  []ReferralEntry `json:"referrals"`
	Pagination Pagination      `json:"pagination"`
}

type ReferralService struct {
	repo        *repository.Repository
	credits     config.ReferralConfig
	frontendURL string
	log         *zap.Logger
}

func NewReferralService(repo *repository.Repository, credits config.ReferralConfig, frontendURL string, log *zap.Logger) *ReferralService {
	return &ReferralService{
		repo:        repo,
		credits:     credits,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		log:         log,
	}
}

// CreateReferral records that referrerID invited referredID and remembers the
// referrer on the referred user. The pair is unique.
func (s *ReferralService) CreateReferral(ctx context.Context, referrerID, referredID uint) (*models.Referral, error) {
	if referrerID == referredID {
		return nil, apperrors.Validation("User cannot refer themselves")
	}

	referral := &models.Referral{
		ReferrerID: referrerID,
		ReferredID: referredID,
		Status:     models.ReferralStatusPending,
	}

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.CreateReferral(ctx, referral); err != nil {
			return err
		}
		return tx.SetReferrer(ctx, referredID, referrerID)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.Validation("Referral already exists")
		}
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperrors.Internal("Failed to create referral", err)
	}

	s.log.Info("Referral created",
		zap.Uint("referrer_id", referrerID),
		zap.Uint("referred_id", referredID),
	)
	return referral, nil
}

// GetStats returns referral counters for a user
func (s *ReferralService) GetStats(ctx context.Context, userID uint) (*ReferralStats, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	counts, err := s.repo.CountReferrals(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("Failed to load referral stats", err)
	}

	return &ReferralStats{
		TotalReferredUsers:   counts.Total,
		ConvertedUsers:       counts.Converted,
		PendingUsers:         counts.Pending,
		TotalCreditsEarned:   user.Credits,
		CreditsFromReferrals: counts.Credited * int64(s.credits.ReferrerCredit),
		ReferralCode:         user.ReferralCode,
		ConversionRate:       conversionRate(counts.Converted, counts.Total),
	}, nil
}

// GetLink builds the shareable registration link for a user
func (s *ReferralService) GetLink(ctx context.Context, userID uint) (*ReferralLink, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &ReferralLink{
		ReferralCode: user.ReferralCode,
		ReferralLink: fmt.Sprintf("%s/register?ref=%s", s.frontendURL, user.ReferralCode),
		ShareMessage: fmt.Sprintf(
			"Join FileShare using my referral code %s and get %d credits on your first purchase!",
			user.ReferralCode, s.credits.ReferredCredit,
		),
	}, nil
}

// ValidateCode reports whether a referral code belongs to a user
func (s *ReferralService) ValidateCode(ctx context.Context, code string) (*CodeValidation, error) {
	if strings.TrimSpace(code) == "" {
		return nil, apperrors.Validation("Referral code is required")
	}

	referrer, err := s.repo.GetUserByReferralCode(ctx, code)
	if err != nil {
		if repository.IsNotFound(err) {
			return &CodeValidation{Valid: false, Message: "Invalid referral code"}, nil
		}
		return nil, apperrors.Internal("Failed to validate referral code", err)
	}

	return &CodeValidation{
		Valid:        true,
		ReferrerName: referrer.Name,
		ReferralCode: referrer.ReferralCode,
		Message:      "Valid referral code",
	}, nil
}

// GetHistory returns a page of referrals made by a user, newest first
func (s *ReferralService) GetHistory(ctx context.Context, userID uint, page, limit int) (*ReferralHistory, error) {
	page, limit = NormalizePage(page, limit)

	counts, err := s.repo.CountReferrals(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("Failed to load referral history", err)
	}

	referrals, err := s.repo.ListReferrals(ctx, userID, offset(page, limit), limit)
	if err != nil {
		return nil, apperrors.Internal("Failed to load referral history", err)
	}

	entries := make([]ReferralEntry, 0, len(referrals))
	for _, r := range referrals {
		entries = append(entries, newReferralEntry(r))
	}

	return &ReferralHistory{
		Referrals:  entries,
		Pagination: NewPagination(page, limit, counts.Total),
	}, nil
}

func (s *ReferralService) loadUser(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NotFound("User not found")
		}
		return nil, apperrors.Internal("Failed to load user", err)
	}
	return user, nil
}

func newReferralEntry(r models.Referral) ReferralEntry {
	entry := ReferralEntry{
		ID:             r.ID,
		Status:         r.Status,
		Credited:       r.Credited,
		ConversionDate: r.ConversionDate,
		CreatedAt:      r.CreatedAt,
	}
	if r.Referred != nil {
		entry.ReferredUser = &ReferredUser{
			ID:        r.Referred.ID,
			Name:      r.Referred.Name,
			Email:     r.Referred.Email,
			CreatedAt: r.Referred.CreatedAt,
		}
	}
	return entry
}

// conversionRate formats converted/total as a percentage with two decimals
func conversionRate(converted, total int64) string {
	if total == 0 {
		return "0.00"
	}
	return fmt.Sprintf("%.2f", float64(converted)/float64(total)*100)
}
