package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

type Producer struct {
	ID               uint       `gorm:"primary_key" json:"id"`
	UserID           uint       `gorm:"not null;uniqueIndex" json:"user_id"`
	User             User       `json:"user"`
	CompanyName      string     `gorm:"size:200;not null" json:"company_name"`
	BrandName        string     `gorm:"size:100" json:"brand_name"`
	TaxNumber        string     `gorm:"size:20;index" json:"tax_number"`
	Phone            string     `gorm:"size:20" json:"phone"`
	MoldLimit        int        `gorm:"not null;default:100" json:"mold_limit"`
	MonthlyLimit     int        `gorm:"not null;default:500" json:"monthly_limit"`
	IsActive         bool       `gorm:"not null;index" json:"is_active"`
	IsVerified       bool       `gorm:"not null;index" json:"is_verified"`
	VerificationDate *time.Time `json:"verification_date"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeSave rejects a producer whose owner account is staff or superuser.
func (p *Producer) BeforeSave(tx *gorm.DB) error {
	if p.UserID == 0 {
		if p.User.IsPrivileged() {
			return ErrProducerPrivileged
		}
		return nil
	}
	var u User
	err := tx.Session(&gorm.Session{NewDB: true}).
		Select("id", "is_staff", "is_superuser").
		Where("id = ?", p.UserID).
		Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if u.IsPrivileged() {
		return ErrProducerPrivileged
	}
	return nil
}

// Verify marks the producer verified at now.
func (p *Producer) Verify(now time.Time) {
	p.IsVerified = true
	p.VerificationDate = &now
}
