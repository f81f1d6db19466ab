package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"referral-shop/internal/apperrors"
	"referral-shop/internal/config"
	"referral-shop/internal/models"
	"referral-shop/internal/repository"
)

// MaxPurchaseAmount is the largest amount a decimal(12,2) column holds
var MaxPurchaseAmount = decimal.RequireFromString("9999999999.99")

// PurchaseInput describes a simulated purchase
type PurchaseInput struct {
	UserID      uint
	ProductID   string
	ProductName string
	Amount      decimal.Decimal
}

// PurchaseResult reports the purchase and any referral credit it triggered
type PurchaseResult struct {
	Purchase          *models.Purchase `json:"purchase"`
	IsFirstPurchase   bool             `json:"isFirstPurchase"`
	ReferralProcessed bool             `json:"referralProcessed"`
	CreditsAwarded    int              `json:"creditsAwarded"`
	TotalCredits      int              `json:"totalCredits"`
	Message           string           `json:"message"`
}

// PurchaseHistory is a page of a user's purchases
type PurchaseHistory struct {
	Purchases  []models.Purchase `json:"purchases"`
	TotalSpent decimal.Decimal   `json:"totalSpent"`
	Pagination Pagination        `json:"pagination"`
}

// awardOutcome says what happened to the buyer's referral on a first purchase
type awardOutcome int

const (
	awardNotReferred awardOutcome = iota
	awardAlreadyCredited
	awardGranted
)

type PurchaseService struct {
	repo    *repository.Repository
	credits config.ReferralConfig
	log     *zap.Logger
	now     func() time.Time
}

func NewPurchaseService(repo *repository.Repository, credits config.ReferralConfig, log *zap.Logger) *PurchaseService {
	return &PurchaseService{
		repo:    repo,
		credits: credits,
		log:     log,
		now:     time.Now,
	}
}

// CreatePurchase records a purchase. On the buyer's first purchase a pending
// referral is converted and both sides are credited, all in one transaction.
func (s *PurchaseService) CreatePurchase(ctx context.Context, input PurchaseInput) (*PurchaseResult, error) {
	amount := input.Amount.Round(2)
	if amount.IsNegative() {
		return nil, apperrors.Validation("Amount cannot be negative")
	}
	if amount.GreaterThan(MaxPurchaseAmount) {
		return nil, apperrors.Validation("Amount exceeds the maximum of " + MaxPurchaseAmount.StringFixed(2))
	}

	purchase := &models.Purchase{
		UserID:      input.UserID,
		ProductID:   input.ProductID,
		ProductName: input.ProductName,
		Amount:      amount,
	}
	outcome := awardNotReferred

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		user, err := tx.LockUser(ctx, input.UserID)
		if err != nil {
			if repository.IsNotFound(err) {
				return apperrors.NotFound("User not found")
			}
			return fmt.Errorf("lock user: %w", err)
		}

		// stamped under the lock so the first purchase is also the earliest
		now := s.now()
		purchase.PurchaseDate = now

		existing, err := tx.CountPurchases(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("count purchases: %w", err)
		}
		purchase.FirstPurchase = existing == 0

		if err := tx.CreatePurchase(ctx, purchase); err != nil {
			return fmt.Errorf("create purchase: %w", err)
		}

		if !purchase.FirstPurchase {
			return nil
		}
		outcome, err = s.awardReferral(ctx, tx, user, now)
		return err
	})
	if err != nil {
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperrors.Internal("Failed to process purchase", err)
	}

	user, err := s.repo.GetUserByID(ctx, input.UserID)
	if err != nil {
		return nil, apperrors.Internal("Failed to load updated credits", err)
	}

	result := &PurchaseResult{
		Purchase:          purchase,
		IsFirstPurchase:   purchase.FirstPurchase,
		ReferralProcessed: outcome == awardGranted,
		TotalCredits:      user.Credits,
	}
	if result.ReferralProcessed {
		result.CreditsAwarded = s.credits.ReferredCredit
	}
	result.Message = purchaseMessage(result)

	s.log.Info("Purchase created",
		zap.Uint("user_id", input.UserID),
		zap.Uint("purchase_id", purchase.ID),
		zap.String("amount", purchase.Amount.StringFixed(2)),
		zap.Bool("first_purchase", purchase.FirstPurchase),
		zap.Bool("referral_processed", result.ReferralProcessed),
	)
	return result, nil
}

// awardReferral converts the buyer's referral and credits both users. It must
// run inside the purchase transaction.
func (s *PurchaseService) awardReferral(ctx context.Context, tx *repository.Repository, buyer *models.User, at time.Time) (awardOutcome, error) {
	if buyer.ReferrerID == nil {
		s.log.Debug("First purchase without referrer", zap.Uint("user_id", buyer.ID))
		return awardNotReferred, nil
	}

	referral, err := tx.FindReferral(ctx, *buyer.ReferrerID, buyer.ID)
	if err != nil {
		if repository.IsNotFound(err) {
			s.log.Warn("Referrer set but referral record missing",
				zap.Uint("user_id", buyer.ID),
				zap.Uint("referrer_id", *buyer.ReferrerID),
			)
			return awardNotReferred, nil
		}
		return awardNotReferred, fmt.Errorf("find referral: %w", err)
	}

	converted, err := tx.MarkReferralConverted(ctx, referral.ID, at)
	if err != nil {
		return awardNotReferred, fmt.Errorf("convert referral: %w", err)
	}
	if !converted {
		s.log.Info("Referral already credited",
			zap.Uint("referral_id", referral.ID),
			zap.Uint("user_id", buyer.ID),
		)
		return awardAlreadyCredited, nil
	}

	if err := tx.IncrementCredits(ctx, referral.ReferrerID, s.credits.ReferrerCredit); err != nil {
		return awardNotReferred, fmt.Errorf("credit referrer: %w", err)
	}
	if err := tx.IncrementCredits(ctx, buyer.ID, s.credits.ReferredCredit); err != nil {
		return awardNotReferred, fmt.Errorf("credit referred user: %w", err)
	}

	s.log.Info("Referral credits awarded",
		zap.Uint("referral_id", referral.ID),
		zap.Uint("referrer_id", referral.ReferrerID),
		zap.Uint("referred_id", buyer.ID),
		zap.Int("referrer_credit", s.credits.ReferrerCredit),
		zap.Int("referred_credit", s.credits.ReferredCredit),
	)
	return awardGranted, nil
}

// GetHistory returns a page of the user's purchases, newest first, and the
// total amount they have spent
func (s *PurchaseService) GetHistory(ctx context.Context, userID uint, page, limit int) (*PurchaseHistory, error) {
	page, limit = NormalizePage(page, limit)

	total, err := s.repo.CountPurchases(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("Failed to load purchase history", err)
	}

	purchases, err := s.repo.ListPurchases(ctx, userID, offset(page, limit), limit)
	if err != nil {
		return nil, apperrors.Internal("Failed to load purchase history", err)
	}

	spent, err := s.repo.SumPurchases(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("Failed to load purchase history", err)
	}

	return &PurchaseHistory{
		Purchases:  purchases,
		TotalSpent: spent,
		Pagination: NewPagination(page, limit, total),
	}, nil
}

// GetUserPurchases is GetHistory for an arbitrary user that must exist
func (s *PurchaseService) GetUserPurchases(ctx context.Context, userID uint, page, limit int) (*PurchaseHistory, error) {
	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NotFound("User not found")
		}
		return nil, apperrors.Internal("Failed to load user", err)
	}
	return s.GetHistory(ctx, userID, page, limit)
}

func purchaseMessage(r *PurchaseResult) string {
	switch {
	case r.ReferralProcessed:
		return fmt.Sprintf("Purchase successful! You earned %d credits from your referral.", r.CreditsAwarded)
	case r.IsFirstPurchase:
		return "Purchase successful! This is your first purchase."
	default:
		return "Purchase successful!"
	}
}
