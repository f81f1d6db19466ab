package models

import (
	"time"

	"gorm.io/gorm"

	"referral-shop/internal/apperrors"
)

type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusConverted ReferralStatus = "converted"
)

// Referral represents a referral relationship between users.
// Status only ever moves from pending to converted.
type Referral struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ReferrerID     uint           `gorm:"not null;uniqueIndex:idx_referrals_pair,priority:1;index:idx_referrals_referrer_status,priority:1" json:"referrerId"`
	Referrer       *User          `gorm:"foreignKey:ReferrerID" json:"referrer,omitempty"`
	ReferredID     uint           `gorm:"not null;uniqueIndex:idx_referrals_pair,priority:2;index" json:"referredId"`
	Referred       *User          `gorm:"foreignKey:ReferredID" json:"referred,omitempty"`
	Status         ReferralStatus `gorm:"size:20;not null;default:pending;index:idx_referrals_referrer_status,priority:2" json:"status"`
	Credited       bool           `gorm:"not null;default:false;index" json:"credited"`
	ConversionDate *time.Time     `json:"conversionDate,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

func (Referral) TableName() string {
	return "referrals"
}

// BeforeCreate rejects self-referrals
func (r *Referral) BeforeCreate(tx *gorm.DB) error {
	if r.ReferrerID == r.ReferredID {
		return apperrors.Validation("User cannot refer themselves")
	}
	if r.Status == "" {
		r.Status = ReferralStatusPending
	}
	return nil
}
