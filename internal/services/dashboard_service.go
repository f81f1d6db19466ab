package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"referral-shop/internal/apperrors"
	"referral-shop/internal/config"
	"referral-shop/internal/models"
	"referral-shop/internal/repository"
)

const (
	recentItemsLimit = 5
	trendMonths      = 6
)

// DashboardUser is the profile block of the dashboard
type DashboardUser struct {
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Credits      int       `json:"credits"`
	ReferralCode string    `json:"referralCode"`
	MemberSince  time.Time `json:"memberSince"`
}

type DashboardReferrals struct {
	Total          int64  `json:"total"`
	Converted      int64  `json:"converted"`
	Pending        int64  `json:"pending"`
	ConversionRate string `json:"conversionRate"`
}

type DashboardPurchases struct {
	Total             int64      `json:"total"`
	TotalSpent        string     `json:"totalSpent"`
	HasFirstPurchase  bool       `json:"hasFirstPurchase"`
	FirstPurchaseDate *time.Time `json:"firstPurchaseDate,omitempty"`
}

type DashboardCredits struct {
	Current               int   `json:"current"`
	EarnedFromReferrals   int64 `json:"earnedFromReferrals"`
	EarnedFromOwnPurchase int   `json:"earnedFromOwnPurchase"`
}

// DashboardStats aggregates everything the dashboard home shows
type DashboardStats struct {
	User                DashboardUser      `json:"user"`
	TotalReferrals      int64              `json:"totalReferrals"`
	SuccessfulReferrals int64              `json:"successfulReferrals"`
	Referrals           DashboardReferrals `json:"referrals"`
	Purchases           DashboardPurchases `json:"purchases"`
	Credits             DashboardCredits   `json:"credits"`
}

// ReferralTrend counts referrals made in one calendar month
type ReferralTrend struct {
	Year      int   `json:"year"`
	Month     int   `json:"month"`
	Count     int64 `json:"count"`
	Converted int64 `json:"converted"`
}

// PurchaseTrend counts purchases made in one calendar month
type PurchaseTrend struct {
	Year        int             `json:"year"`
	Month       int             `json:"month"`
	Count       int64           `json:"count"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

type DashboardTrends struct {
	Referrals []ReferralTrend `json:"referrals"`
	Purchases []PurchaseTrend `json:"purchases"`
}

type DashboardSummary struct {
	TotalReferred  int64  `json:"totalReferred"`
	TotalConverted int64  `json:"totalConverted"`
	TotalCredits   int    `json:"totalCredits"`
	ReferralCode   string `json:"referralCode"`
}

// DashboardMetrics holds recent items and monthly trends
type DashboardMetrics struct {
	RecentReferrals []ReferralEntry   `json:"recentReferrals"`
	RecentPurchases []models.Purchase `json:"recentPurchases"`
	Trends          DashboardTrends   `json:"trends"`
	Summary         DashboardSummary  `json:"summary"`
}

// ActivityType distinguishes the entries of the activity feed
type ActivityType string

const (
	ActivityReferral ActivityType = "referral"
	ActivityPurchase ActivityType = "purchase"
)

// Activity is one event in the user's feed
type Activity struct {
	Type          ActivityType          `json:"type"`
	Date          time.Time             `json:"date"`
	Description   string                `json:"description"`
	Status        models.ReferralStatus `json:"status,omitempty"`
	Credited      *bool                 `json:"credited,omitempty"`
	Amount        *decimal.Decimal      `json:"amount,omitempty"`
	FirstPurchase *bool                 `json:"firstPurchase,omitempty"`
}

type ActivityFeed struct {
	Activities []Activity `json:"activities"`
	Pagination Pagination `json:"pagination"`
}

type DashboardService struct {
	repo    *repository.Repository
	credits config.ReferralConfig
	log     *zap.Logger
	now     func() time.Time
}

func NewDashboardService(repo *repository.Repository, credits config.ReferralConfig, log *zap.Logger) *DashboardService {
	return &DashboardService{
		repo:    repo,
		credits: credits,
		log:     log,
		now:     time.Now,
	}
}

// GetStats returns the dashboard summary for a user
func (s *DashboardService) GetStats(ctx context.Context, userID uint) (*DashboardStats, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	counts, err := s.repo.CountReferrals(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("Failed to load dashboard stats", err)
	}

	purchases, err := s.repo.CountPurchases(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("Failed to load dashboard stats", err)
	}

	spent, err := s.repo.SumPurchases(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("Failed to load dashboard stats", err)
	}

	stats := &DashboardStats{
		User: DashboardUser{
			Name:         user.Name,
			Email:        user.Email,
			Credits:      user.Credits,
			ReferralCode: user.ReferralCode,
			MemberSince:  user.CreatedAt,
		},
		TotalReferrals:      counts.Total,
		SuccessfulReferrals: counts.Converted,
		Referrals: DashboardReferrals{
			Total:          counts.Total,
			Converted:      counts.Converted,
			Pending:        counts.Pending,
			ConversionRate: conversionRate(counts.Converted, counts.Total),
		},
		Purchases: DashboardPurchases{
			Total:      purchases,
			TotalSpent: spent.StringFixed(2),
		},
		Credits: DashboardCredits{
			Current:             user.Credits,
			EarnedFromReferrals: counts.Credited * int64(s.credits.ReferrerCredit),
		},
	}

	first, err := s.repo.FindFirstPurchase(ctx, userID)
	switch {
	case err == nil:
		stats.Purchases.HasFirstPurchase = true
		stats.Purchases.FirstPurchaseDate = &first.PurchaseDate
	case !repository.IsNotFound(err):
		return nil, apperrors.Internal("Failed to load dashboard stats", err)
	}

	// the referred side is only paid when the user's own referral was credited
	if user.ReferrerID != nil {
		own, err := s.repo.FindReferral(ctx, *user.ReferrerID, user.ID)
		switch {
		case err == nil:
			if own.Credited {
				stats.Credits.EarnedFromOwnPurchase = s.credits.ReferredCredit
			}
		case !repository.IsNotFound(err):
			return nil, apperrors.Internal("Failed to load dashboard stats", err)
		}
	}

	return stats, nil
}

// GetMetrics returns recent activity and six months of monthly trends
func (s *DashboardService) GetMetrics(ctx context.Context, userID uint) (*DashboardMetrics, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	recentReferrals, err := s.repo.ListReferrals(ctx, userID, 0, recentItemsLimit)
	if err != nil {
		return nil, apperrors.Internal("Failed to load dashboard metrics", err)
	}
	recentPurchases, err := s.repo.ListPurchases(ctx, userID, 0, recentItemsLimit)
	if err != nil {
		return nil, apperrors.Internal("Failed to load dashboard metrics", err)
	}

	since := s.now().AddDate(0, -trendMonths, 0)
	referrals, err := s.repo.ListReferralsSince(ctx, userID, since)
	if err != nil {
		return nil, apperrors.Internal("Failed to load dashboard metrics", err)
	}
	purchases, err := s.repo.ListPurchasesSince(ctx, userID, since)
	if err != nil {
		return nil, apperrors.Internal("Failed to load dashboard metrics", err)
	}

	counts, err := s.repo.CountReferrals(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("Failed to load dashboard metrics", err)
	}

	entries := make([]ReferralEntry, 0, len(recentReferrals))
	for _, r := range recentReferrals {
		entries = append(entries, newReferralEntry(r))
	}

	return &DashboardMetrics{
		RecentReferrals: entries,
		RecentPurchases: recentPurchases,
		Trends: DashboardTrends{
			Referrals: referralTrends(referrals),
			Purchases: purchaseTrends(purchases),
		},
		Summary: DashboardSummary{
			TotalReferred:  counts.Total,
			TotalConverted: counts.Converted,
			TotalCredits:   user.Credits,
			ReferralCode:   user.ReferralCode,
		},
	}, nil
}

// GetActivity merges referrals and purchases into one feed, newest first
func (s *DashboardService) GetActivity(ctx context.Context, userID uint, page, limit int) (*ActivityFeed, error) {
	page, limit = NormalizePage(page, limit)

	referrals, err := s.repo.ListReferrals(ctx, userID, 0, -1)
	if err != nil {
		return nil, apperrors.Internal("Failed to load activity", err)
	}
	purchases, err := s.repo.ListPurchases(ctx, userID, 0, -1)
	if err != nil {
		return nil, apperrors.Internal("Failed to load activity", err)
	}

	activities := make([]Activity, 0, len(referrals)+len(purchases))
	for _, r := range referrals {
		name := "a user"
		if r.Referred != nil && r.Referred.Name != "" {
			name = r.Referred.Name
		}
		credited := r.Credited
		activities = append(activities, Activity{
			Type:        ActivityReferral,
			Date:        r.CreatedAt,
			Description: fmt.Sprintf("Referred %s", name),
			Status:      r.Status,
			Credited:    &credited,
		})
	}
	for _, p := range purchases {
		amount := p.Amount
		first := p.FirstPurchase
		activities = append(activities, Activity{
			Type:          ActivityPurchase,
			Date:          p.PurchaseDate,
			Description:   fmt.Sprintf("Purchased %s", p.ProductName),
			Amount:        &amount,
			FirstPurchase: &first,
		})
	}

	sort.SliceStable(activities, func(i, j int) bool {
		return activities[i].Date.After(activities[j].Date)
	})

	total := int64(len(activities))
	start := offset(page, limit)
	if start > len(activities) {
		start = len(activities)
	}
	end := start + limit
	if end > len(activities) {
		end = len(activities)
	}

	return &ActivityFeed{
		Activities: activities[start:end],
		Pagination: NewPagination(page, limit, total),
	}, nil
}

func (s *DashboardService) loadUser(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NotFound("User not found")
		}
		return nil, apperrors.Internal("Failed to load user", err)
	}
	return user, nil
}

type monthKey struct {
	year  int
	month int
}

func monthOf(t time.Time) monthKey {
	t = t.UTC()
	return monthKey{year: t.Year(), month: int(t.Month())}
}

func (k monthKey) before(o monthKey) bool {
	if k.year != o.year {
		return k.year < o.year
	}
	return k.month < o.month
}

// referralTrends groups referrals by calendar month, oldest month first
func referralTrends(referrals []models.Referral) []ReferralTrend {
	byMonth := make(map[monthKey]*ReferralTrend)
	for _, r := range referrals {
		key := monthOf(r.CreatedAt)
		trend, ok := byMonth[key]
		if !ok {
			trend = &ReferralTrend{Year: key.year, Month: key.month}
			byMonth[key] = trend
		}
		trend.Count++
		if r.Status == models.ReferralStatusConverted {
			trend.Converted++
		}
	}

	trends := make([]ReferralTrend, 0, len(byMonth))
	for _, t := range byMonth {
		trends = append(trends, *t)
	}
	sort.Slice(trends, func(i, j int) bool {
		return monthKey{trends[i].Year, trends[i].Month}.before(monthKey{trends[j].Year, trends[j].Month})
	})
	return trends
}

// purchaseTrends groups purchases by calendar month, oldest month first
func purchaseTrends(purchases []models.Purchase) []PurchaseTrend {
	byMonth := make(map[monthKey]*PurchaseTrend)
	for _, p := range purchases {
		key := monthOf(p.PurchaseDate)
		trend, ok := byMonth[key]
		if !ok {
			trend = &PurchaseTrend{Year: key.year, Month: key.month, TotalAmount: decimal.Zero}
			byMonth[key] = trend
		}
		trend.Count++
		trend.TotalAmount = trend.TotalAmount.Add(p.Amount)
	}

	trends := make([]PurchaseTrend, 0, len(byMonth))
	for _, t := range byMonth {
		trends = append(trends, *t)
	}
	sort.Slice(trends, func(i, j int) bool {
		return monthKey{trends[i].Year, trends[i].Month}.before(monthKey{trends[j].Year, trends[j].Month})
	})
	return trends
}
