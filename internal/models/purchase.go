package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"referral-shop/internal/apperrors"
)

// Purchase is an immutable record of a simulated transaction.
// At most one purchase per user carries FirstPurchase = true; the partial
// unique index enforces it in storage.
type Purchase struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	UserID        uint            `gorm:"not null;index:idx_purchases_user_date,priority:1;uniqueIndex:idx_purchases_first,where:first_purchase = true" json:"userId"`
	User          *User           `gorm:"foreignKey:UserID" json:"-"`
	ProductID     string          `gorm:"size:100;not null" json:"productId"`
	ProductName   string          `gorm:"size:255;not null" json:"productName"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	FirstPurchase bool            `gorm:"not null;default:false" json:"firstPurchase"`
	PurchaseDate  time.Time       `gorm:"not null;index:idx_purchases_user_date,priority:2" json:"purchaseDate"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// TableName specifies the table name for Purchase model
func (Purchase) TableName() string {
	return "purchases"
}

// BeforeCreate validates the amount and stamps the purchase date
func (p *Purchase) BeforeCreate(tx *gorm.DB) error {
	if p.Amount.IsNegative() {
		return apperrors.Validation("Amount cannot be negative")
	}
	if p.PurchaseDate.IsZero() {
		p.PurchaseDate = time.Now()
	}
	return nil
}

// BeforeUpdate keeps purchase records immutable
func (p *Purchase) BeforeUpdate(tx *gorm.DB) error {
	return apperrors.Validation("purchases cannot be modified")
}
