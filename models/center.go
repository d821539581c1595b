package models

import "time"

type Center struct {
	ID           uint      `gorm:"primary_key" json:"id"`
	UserID       uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	User         User      `json:"user"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	Phone        string    `gorm:"size:20" json:"phone"`
	Address      string    `gorm:"type:text" json:"address"`
	MoldLimit    int       `gorm:"not null;default:10" json:"mold_limit"`
	MonthlyLimit int       `gorm:"not null;default:50" json:"monthly_limit"`
	IsActive     bool      `gorm:"not null;index" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
