package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"referral-shop/internal/models"
)

// ErrNotFound is returned when a lookup matches no record
var ErrNotFound = gorm.ErrRecordNotFound

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Transaction runs fn inside a database transaction. The repository passed to
// fn is bound to the transaction; fn must not use the outer repository.
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

// IsNotFound reports whether err means the record does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// --- users ---

// CreateUser inserts a new user
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetUserByID retrieves a user by ID
func (r *Repository) GetUserByID(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// LockUser retrieves a user and holds a row lock until the surrounding
// transaction ends. SQLite ignores the locking clause.
func (r *Repository) LockUser(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", userID).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by normalized email
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("email = ?", models.NormalizeEmail(email)).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByReferralCode retrieves the owner of a referral code
func (r *Repository) GetUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("referral_code = ?", models.NormalizeReferralCode(code)).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ReferralCodeExists checks whether a code is already taken
func (r *Repository) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("referral_code = ?", models.NormalizeReferralCode(code)).
		Count(&count).Error
	return count > 0, err
}

// SetReferrer records who referred a user
func (r *Repository) SetReferrer(ctx context.Context, userID, referrerID uint) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("referrer_id", referrerID).Error
}

// IncrementCredits atomically adds credits to a user's balance
func (r *Repository) IncrementCredits(ctx context.Context, userID uint, amount int) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("credits", gorm.Expr("credits + ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// --- referrals ---

// CreateReferral inserts a pending, uncredited referral
func (r *Repository) CreateReferral(ctx context.Context, referral *models.Referral) error {
	return r.db.WithContext(ctx).Create(referral).Error
}

// FindReferral retrieves the referral for a (referrer, referred) pair
func (r *Repository) FindReferral(ctx context.Context, referrerID, referredID uint) (*models.Referral, error) {
	var referral models.Referral
	err := r.db.WithContext(ctx).
		Where("referrer_id = ? AND referred_id = ?", referrerID, referredID).
		First(&referral).Error
	if err != nil {
		return nil, err
	}
	return &referral, nil
}

// MarkReferralConverted flips a pending referral to converted/credited.
// It reports false when the referral was already converted.
func (r *Repository) MarkReferralConverted(ctx context.Context, referralID uint, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Referral{}).
		Where("id = ? AND status = ? AND credited = ?", referralID, models.ReferralStatusPending, false).
		Updates(map[string]interface{}{
			"status":          models.ReferralStatusConverted,
			"credited":        true,
			"conversion_date": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ReferralCounts aggregates a referrer's referrals
type ReferralCounts struct {
	Total     int64
	Converted int64
	Pending   int64
	Credited  int64
}

// CountReferrals aggregates the referrals made by a user in one query
func (r *Repository) CountReferrals(ctx context.Context, referrerID uint) (ReferralCounts, error) {
	var counts ReferralCounts
	err := r.db.WithContext(ctx).Model(&models.Referral{}).
		Select(
			"COUNT(*) AS total, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS converted, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS pending, "+
				"COALESCE(SUM(CASE WHEN credited THEN 1 ELSE 0 END), 0) AS credited",
			models.ReferralStatusConverted, models.ReferralStatusPending,
		).
		Where("referrer_id = ?", referrerID).
		Scan(&counts).Error
	return counts, err
}

// ListReferrals returns a page of referrals made by a user, newest first,
// with the referred user preloaded
func (r *Repository) ListReferrals(ctx context.Context, referrerID uint, offset, limit int) ([]models.Referral, error) {
	var referrals []models.Referral
	err := r.db.WithContext(ctx).
		Where("referrer_id = ?", referrerID).
		Preload("Referred").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&referrals).Error
	return referrals, err
}

// ListReferralsSince returns referrals made by a user created at or after since
func (r *Repository) ListReferralsSince(ctx context.Context, referrerID uint, since time.Time) ([]models.Referral, error) {
	var referrals []models.Referral
	err := r.db.WithContext(ctx).
		Where("referrer_id = ? AND created_at >= ?", referrerID, since).
		Order("created_at ASC").
		Find(&referrals).Error
	return referrals, err
}

// --- purchases ---

// CreatePurchase inserts a purchase record
func (r *Repository) CreatePurchase(ctx context.Context, purchase *models.Purchase) error {
	return r.db.WithContext(ctx).Create(purchase).Error
}

// CountPurchases counts a user's purchases
func (r *Repository) CountPurchases(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Purchase{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

// SumPurchases totals the amount a user has spent
func (r *Repository) SumPurchases(ctx context.Context, userID uint) (decimal.Decimal, error) {
	var total decimal.Decimal
	row := r.db.WithContext(ctx).Model(&models.Purchase{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Row()
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// FindFirstPurchase returns the purchase flagged as the user's first
func (r *Repository) FindFirstPurchase(ctx context.Context, userID uint) (*models.Purchase, error) {
	var purchase models.Purchase
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND first_purchase = ?", userID, true).
		First(&purchase).Error
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// ListPurchases returns a page of a user's purchases, newest first
func (r *Repository) ListPurchases(ctx context.Context, userID uint, offset, limit int) ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("purchase_date DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&purchases).Error
	return purchases, err
}

// ListPurchasesSince returns a user's purchases made at or after since
func (r *Repository) ListPurchasesSince(ctx context.Context, userID uint, since time.Time) ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND purchase_date >= ?", userID, since).
		Order("purchase_date ASC").
		Find(&purchases).Error
	return purchases, err
}
